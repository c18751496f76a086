// Package bytecode decodes JVM instruction streams into typed stack-effect
// records, simulates the operand stack, and builds basic-block CFGs.
package bytecode

import "jclass/internal/descriptor"

// Item is the kind of one operand stack value.
type Item uint8

const (
	Int Item = iota + 1
	Float
	Ref
	ReturnAddress
	Any1 // any category-1 value; produced when paths disagree
	Long
	Double
)

var itemNames = [...]string{
	Int:           "int",
	Float:         "float",
	Ref:           "ref",
	ReturnAddress: "retaddr",
	Any1:          "any1",
	Long:          "long",
	Double:        "double",
}

func (k Item) String() string {
	if int(k) < len(itemNames) && itemNames[k] != "" {
		return itemNames[k]
	}
	return "?"
}

// Category returns 2 for long and double, 1 otherwise.
func (k Item) Category() int {
	if k == Long || k == Double {
		return 2
	}
	return 1
}

// Slots returns the stack depth of items, counting category-2 values twice.
func Slots(items []Item) int {
	n := 0
	for _, it := range items {
		n += it.Category()
	}
	return n
}

// accepts reports whether a value of kind got satisfies a pop of kind want.
func (want Item) accepts(got Item) bool {
	switch {
	case want == got:
		return true
	case want == Any1:
		return got.Category() == 1
	case got == Any1:
		return want.Category() == 1
	}
	return false
}

// ItemOf maps a field type to the stack item that holds it.
func ItemOf(t descriptor.FieldType) Item {
	if t.IsReference() {
		return Ref
	}
	switch t.Base {
	case 'J':
		return Long
	case 'D':
		return Double
	case 'F':
		return Float
	}
	return Int
}

// Role groups opcodes by what they do to the operand stack.
type Role uint8

const (
	RoleNop Role = iota
	RoleConst
	RoleLoad
	RoleStore
	RoleArrayLoad
	RoleArrayStore
	RoleStack
	RoleArith
	RoleConvert
	RoleCompare
	RoleBranch
	RoleSwitch
	RoleReturn
	RoleThrow
	RoleField
	RoleInvoke
	RoleObject
	RoleMonitor
)

var roleNames = [...]string{
	RoleNop:        "nop",
	RoleConst:      "const",
	RoleLoad:       "load",
	RoleStore:      "store",
	RoleArrayLoad:  "array-load",
	RoleArrayStore: "array-store",
	RoleStack:      "stack",
	RoleArith:      "arith",
	RoleConvert:    "convert",
	RoleCompare:    "compare",
	RoleBranch:     "branch",
	RoleSwitch:     "switch",
	RoleReturn:     "return",
	RoleThrow:      "throw",
	RoleField:      "field",
	RoleInvoke:     "invoke",
	RoleObject:     "object",
	RoleMonitor:    "monitor",
}

func (r Role) String() string {
	if int(r) < len(roleNames) {
		return roleNames[r]
	}
	return "?"
}

// Predicate is the condition tested by a conditional branch.
type Predicate uint8

const (
	EQ Predicate = iota
	NE
	LT
	GE
	GT
	LE
)

func (p Predicate) String() string {
	return [...]string{"eq", "ne", "lt", "ge", "gt", "le"}[p]
}

// Operands describes what a conditional branch compares.
type Operands uint8

const (
	IntZero Operands = iota // int against 0
	IntInt
	RefRef
	RefNull
)

func (o Operands) String() string {
	return [...]string{"int-zero", "int-int", "ref-ref", "ref-null"}[o]
}

// Compare is the comparison carried by a conditional branch.
type Compare struct {
	Pred     Predicate `json:"pred"`
	Operands Operands  `json:"operands"`
}

func (k Item) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

func (r Role) MarshalText() ([]byte, error) { return []byte(r.String()), nil }

func (p Predicate) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func (o Operands) MarshalText() ([]byte, error) { return []byte(o.String()), nil }
