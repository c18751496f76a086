// Package classfile assembles a parsed JVM class file: header, constant
// pool, members and attributes, checked against each other.
package classfile

import (
	"encoding/json"

	"jclass/internal/annotation"
	"jclass/internal/bytecode"
	"jclass/internal/constpool"
	"jclass/internal/descriptor"
	"jclass/internal/stackmap"
)

// Magic is the first word of every class file.
const Magic = 0xCAFEBABE

// AccessFlags is a class, field, method or inner class access_flags word.
type AccessFlags uint16

const (
	AccPublic       AccessFlags = 0x0001
	AccPrivate      AccessFlags = 0x0002
	AccProtected    AccessFlags = 0x0004
	AccStatic       AccessFlags = 0x0008
	AccFinal        AccessFlags = 0x0010
	AccSuper        AccessFlags = 0x0020
	AccSynchronized AccessFlags = 0x0020
	AccVolatile     AccessFlags = 0x0040
	AccBridge       AccessFlags = 0x0040
	AccTransient    AccessFlags = 0x0080
	AccVarargs      AccessFlags = 0x0080
	AccNative       AccessFlags = 0x0100
	AccInterface    AccessFlags = 0x0200
	AccAbstract     AccessFlags = 0x0400
	AccStrict       AccessFlags = 0x0800
	AccSynthetic    AccessFlags = 0x1000
	AccAnnotation   AccessFlags = 0x2000
	AccEnum         AccessFlags = 0x4000
	AccModule       AccessFlags = 0x8000
)

func (f AccessFlags) Has(flag AccessFlags) bool { return f&flag != 0 }

// Class is a fully parsed class file. It is never modified after Parse
// returns.
type Class struct {
	MinorVersion uint16      `json:"minor_version"`
	MajorVersion uint16      `json:"major_version"`
	AccessFlags  AccessFlags `json:"access_flags"`
	Name         string      `json:"name"`
	SuperName    string      `json:"super,omitempty"` // "" only for java/lang/Object and modules
	Interfaces   []string    `json:"interfaces,omitempty"`
	Fields       []Field     `json:"fields,omitempty"`
	Methods      []Method    `json:"methods,omitempty"`

	SourceFile           string            `json:"source_file,omitempty"`
	SourceDebugExtension string            `json:"source_debug_extension,omitempty"`
	InnerClasses         []InnerClass      `json:"inner_classes,omitempty"`
	EnclosingMethod      *EnclosingMethod  `json:"enclosing_method,omitempty"`
	BootstrapMethods     []BootstrapMethod `json:"bootstrap_methods,omitempty"`
	NestHost             string            `json:"nest_host,omitempty"`
	NestMembers          []string          `json:"nest_members,omitempty"`
	PermittedSubclasses  []string          `json:"permitted_subclasses,omitempty"`
	Record               []RecordComponent `json:"record,omitempty"`
	IsRecord             bool              `json:"is_record,omitempty"`

	Common
}

// Common holds the attributes any declaration may carry.
type Common struct {
	Signature   string             `json:"signature,omitempty"`
	Deprecated  bool               `json:"deprecated,omitempty"`
	Synthetic   bool               `json:"synthetic,omitempty"`
	Annotations Annotations        `json:"annotations"`
	Unknown     []UnknownAttribute `json:"unknown_attributes,omitempty"`
}

// Annotations collects the four Runtime*Annotations attribute kinds.
type Annotations struct {
	Visible       []annotation.Annotation     `json:"visible,omitempty"`
	Invisible     []annotation.Annotation     `json:"invisible,omitempty"`
	VisibleType   []annotation.TypeAnnotation `json:"visible_type,omitempty"`
	InvisibleType []annotation.TypeAnnotation `json:"invisible_type,omitempty"`
}

// UnknownAttribute records an attribute that was skipped.
type UnknownAttribute struct {
	Name   string `json:"name"`
	Length uint32 `json:"length"`
}

// Constant is a ConstantValue. Int holds int, short, char, byte, boolean
// and long values. Float and double values keep their IEEE 754 bits in
// Bits, widened to 64 bits for floats.
type Constant struct {
	Tag    constpool.Tag `json:"tag"`
	Int    int64         `json:"int,omitempty"`
	Bits   uint64        `json:"bits,omitempty"`
	String string        `json:"string,omitempty"`
}

// Float64 returns the value of a Float or Double constant, 0 otherwise.
func (c Constant) Float64() float64 {
	switch c.Tag {
	case constpool.TagFloat:
		return float64(constpool.Float{Bits: uint32(c.Bits)}.Value())
	case constpool.TagDouble:
		return constpool.Double{Bits: c.Bits}.Value()
	}
	return 0
}

// MarshalJSON adds the decimal text of float constants next to the bits.
// JSON numbers cannot hold NaN or the infinities.
func (c Constant) MarshalJSON() ([]byte, error) {
	type plain Constant
	var text string
	switch c.Tag {
	case constpool.TagFloat:
		text = constpool.Float{Bits: uint32(c.Bits)}.String()
	case constpool.TagDouble:
		text = constpool.Double{Bits: c.Bits}.String()
	}
	return json.Marshal(struct {
		plain
		Float string `json:"float,omitempty"`
	}{plain(c), text})
}

// Field is one field_info with its attributes.
type Field struct {
	AccessFlags   AccessFlags          `json:"access_flags"`
	Name          string               `json:"name"`
	Descriptor    string               `json:"descriptor"`
	Type          descriptor.FieldType `json:"-"`
	ConstantValue *Constant            `json:"constant_value,omitempty"`
	Common
}

// Method is one method_info with its attributes. Code is nil for abstract
// and native methods.
type Method struct {
	AccessFlags          AccessFlags              `json:"access_flags"`
	Name                 string                   `json:"name"`
	Descriptor           string                   `json:"descriptor"`
	Type                 descriptor.Method        `json:"-"`
	Code                 *Code                    `json:"code,omitempty"`
	Exceptions           []string                 `json:"exceptions,omitempty"`
	Parameters           []Parameter              `json:"parameters,omitempty"`
	ParameterAnnotations ParameterAnnotations     `json:"parameter_annotations"`
	AnnotationDefault    *annotation.ElementValue `json:"annotation_default,omitempty"`
	Common
}

// Parameter is one MethodParameters entry. Name is "" when the entry has
// no name.
type Parameter struct {
	Name        string      `json:"name,omitempty"`
	AccessFlags AccessFlags `json:"access_flags"`
}

// ParameterAnnotations holds the per-parameter annotation attributes.
type ParameterAnnotations struct {
	Visible   [][]annotation.Annotation `json:"visible,omitempty"`
	Invisible [][]annotation.Annotation `json:"invisible,omitempty"`
}

// Code is a decoded Code attribute.
type Code struct {
	MaxStack           uint16                 `json:"max_stack"`
	MaxLocals          uint16                 `json:"max_locals"`
	Length             int                    `json:"code_length"`
	Instructions       []bytecode.Instruction `json:"instructions"`
	Handlers           []bytecode.Handler     `json:"exception_table,omitempty"`
	Frames             []stackmap.Frame       `json:"stack_map,omitempty"`
	LineNumbers        []LineNumber           `json:"line_numbers,omitempty"`
	LocalVariables     []LocalVariable        `json:"local_variables,omitempty"`
	LocalVariableTypes []LocalVariable        `json:"local_variable_types,omitempty"`
	TypeAnnotations    Annotations            `json:"type_annotations"`
	Unknown            []UnknownAttribute     `json:"unknown_attributes,omitempty"`
}

// LineNumber maps the instruction at StartPC to a source line.
type LineNumber struct {
	StartPC uint16 `json:"start_pc"`
	Line    uint16 `json:"line"`
}

// LocalVariable is a LocalVariableTable entry, or a LocalVariableTypeTable
// entry with the signature in Descriptor.
type LocalVariable struct {
	StartPC    uint16 `json:"start_pc"`
	Length     uint16 `json:"length"`
	Name       string `json:"name"`
	Descriptor string `json:"descriptor"`
	Index      uint16 `json:"index"`
}

// InnerClass is one InnerClasses entry. Outer and Name are "" for local and
// anonymous classes.
type InnerClass struct {
	Inner       string      `json:"inner"`
	Outer       string      `json:"outer,omitempty"`
	Name        string      `json:"name,omitempty"`
	AccessFlags AccessFlags `json:"access_flags"`
}

// EnclosingMethod names the class, and method if any, enclosing a local or
// anonymous class.
type EnclosingMethod struct {
	Class      string `json:"class"`
	Name       string `json:"name,omitempty"`
	Descriptor string `json:"descriptor,omitempty"`
}

// BootstrapMethod is one BootstrapMethods entry. Arguments are constant
// pool indices of loadable constants.
type BootstrapMethod struct {
	Kind      uint8         `json:"kind"`
	Method    constpool.Ref `json:"method"`
	Arguments []uint16      `json:"arguments,omitempty"`
}

// RecordComponent is one component of a Record attribute.
type RecordComponent struct {
	Name       string `json:"name"`
	Descriptor string `json:"descriptor"`
	Common
}

// Method returns the first method with the given name and descriptor.
func (c *Class) Method(name, desc string) (*Method, bool) {
	for i := range c.Methods {
		if c.Methods[i].Name == name && c.Methods[i].Descriptor == desc {
			return &c.Methods[i], true
		}
	}
	return nil, false
}
