// Package descriptor parses field and method descriptors and generic
// signatures as they appear in class files.
package descriptor

import (
	"strings"

	"jclass/internal/classfmt"
)

// MaxArrayDims is the largest number of array dimensions a descriptor may declare.
const MaxArrayDims = 255

// FieldType is a parsed field descriptor.
type FieldType struct {
	Dims      int    `json:"dims,omitempty"`
	Base      byte   `json:"base"`                 // B C D F I J S Z or L
	ClassName string `json:"class_name,omitempty"` // internal name when Base == 'L'
}

// IsReference reports whether values of this type are object references.
func (t FieldType) IsReference() bool { return t.Dims > 0 || t.Base == 'L' }

// Slots returns the number of local variable or operand stack slots a value
// of this type occupies.
func (t FieldType) Slots() int {
	if t.Dims == 0 && (t.Base == 'J' || t.Base == 'D') {
		return 2
	}
	return 1
}

// String returns the descriptor form of t.
func (t FieldType) String() string {
	var b strings.Builder
	for i := 0; i < t.Dims; i++ {
		b.WriteByte('[')
	}
	b.WriteByte(t.Base)
	if t.Base == 'L' {
		b.WriteString(t.ClassName)
		b.WriteByte(';')
	}
	return b.String()
}

// Elem returns the element type of an array type.
func (t FieldType) Elem() FieldType {
	if t.Dims == 0 {
		return t
	}
	t.Dims--
	return t
}

// Method is a parsed method descriptor. Return is nil for void.
type Method struct {
	Params []FieldType `json:"params"`
	Return *FieldType  `json:"return,omitempty"`
}

// ParamSlots returns the number of local slots the parameters occupy,
// not counting the receiver.
func (m Method) ParamSlots() int {
	n := 0
	for _, p := range m.Params {
		n += p.Slots()
	}
	return n
}

func (m Method) String() string {
	var b strings.Builder
	b.WriteByte('(')
	for _, p := range m.Params {
		b.WriteString(p.String())
	}
	b.WriteByte(')')
	if m.Return == nil {
		b.WriteByte('V')
	} else {
		b.WriteString(m.Return.String())
	}
	return b.String()
}

func descError(s, format string, args ...any) error {
	e := classfmt.Errorf(classfmt.KindInvalidDescriptor, -1, format, args...)
	e.Actual = s
	return e
}

// ParseField parses a field descriptor such as "I", "[J" or "Ljava/lang/String;".
func ParseField(s string) (FieldType, error) {
	t, n, err := scanField(s, 0)
	if err != nil {
		return FieldType{}, err
	}
	if n != len(s) {
		return FieldType{}, descError(s, "trailing bytes at %d", n)
	}
	return t, nil
}

// ParseReturn parses a return descriptor: a field descriptor or "V".
// The result is nil for void.
func ParseReturn(s string) (*FieldType, error) {
	if s == "V" {
		return nil, nil
	}
	t, err := ParseField(s)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

// ParseMethod parses a method descriptor such as "(ILjava/lang/Object;)V".
func ParseMethod(s string) (Method, error) {
	if len(s) == 0 || s[0] != '(' {
		return Method{}, descError(s, "method descriptor must start with '('")
	}
	var m Method
	pos := 1
	for {
		if pos >= len(s) {
			return Method{}, descError(s, "unbalanced parentheses")
		}
		if s[pos] == ')' {
			pos++
			break
		}
		t, n, err := scanField(s, pos)
		if err != nil {
			return Method{}, err
		}
		m.Params = append(m.Params, t)
		pos = n
	}
	if pos >= len(s) {
		return Method{}, descError(s, "missing return type")
	}
	if s[pos] == 'V' {
		pos++
	} else {
		t, n, err := scanField(s, pos)
		if err != nil {
			return Method{}, err
		}
		m.Return = &t
		pos = n
	}
	if pos != len(s) {
		return Method{}, descError(s, "trailing bytes at %d", pos)
	}
	if m.ParamSlots() > 255 {
		return Method{}, descError(s, "parameters occupy %d slots (max 255)", m.ParamSlots())
	}
	return m, nil
}

// scanField reads one field type starting at pos and returns the position
// after it.
func scanField(s string, pos int) (FieldType, int, error) {
	var t FieldType
	for pos < len(s) && s[pos] == '[' {
		t.Dims++
		pos++
	}
	if t.Dims > MaxArrayDims {
		return FieldType{}, 0, descError(s, "%d array dimensions (max %d)", t.Dims, MaxArrayDims)
	}
	if pos >= len(s) {
		return FieldType{}, 0, descError(s, "missing type at %d", pos)
	}
	c := s[pos]
	switch c {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		t.Base = c
		return t, pos + 1, nil
	case 'L':
		end := strings.IndexByte(s[pos:], ';')
		if end < 0 {
			return FieldType{}, 0, descError(s, "unterminated class name at %d", pos)
		}
		name := s[pos+1 : pos+end]
		if !ValidInternalName(name) {
			return FieldType{}, 0, descError(s, "invalid class name %q", name)
		}
		t.Base = 'L'
		t.ClassName = name
		return t, pos + end + 1, nil
	}
	return FieldType{}, 0, descError(s, "unexpected %q at %d", c, pos)
}

// ValidInternalName reports whether name is a well-formed binary class name
// in internal form (slash-separated, no empty segments).
func ValidInternalName(name string) bool {
	if name == "" {
		return false
	}
	for _, seg := range strings.Split(name, "/") {
		if !validUnqualified(seg) {
			return false
		}
	}
	return true
}

func validUnqualified(s string) bool {
	if s == "" {
		return false
	}
	return !strings.ContainsAny(s, ".;[/")
}

// ValidMemberName reports whether name is a legal field or method name.
// Method names may additionally be "<init>" or "<clinit>".
func ValidMemberName(name string, method bool) bool {
	if method && (name == "<init>" || name == "<clinit>") {
		return true
	}
	if !validUnqualified(name) {
		return false
	}
	return !method || !strings.ContainsAny(name, "<>")
}
