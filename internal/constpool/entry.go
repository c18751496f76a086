// Package constpool decodes and resolves the class-file constant pool.
package constpool

import (
	"fmt"
	"math"
	"strconv"
)

// Tag identifies a constant pool entry kind.
type Tag uint8

const (
	TagUtf8               Tag = 1
	TagInteger            Tag = 3
	TagFloat              Tag = 4
	TagLong               Tag = 5
	TagDouble             Tag = 6
	TagClass              Tag = 7
	TagString             Tag = 8
	TagFieldref           Tag = 9
	TagMethodref          Tag = 10
	TagInterfaceMethodref Tag = 11
	TagNameAndType        Tag = 12
	TagMethodHandle       Tag = 15
	TagMethodType         Tag = 16
	TagDynamic            Tag = 17
	TagInvokeDynamic      Tag = 18
	TagModule             Tag = 19
	TagPackage            Tag = 20

	// TagUnusable marks the slot following a Long or Double. It never
	// appears in a class file.
	TagUnusable Tag = 0
)

var tagNames = map[Tag]string{
	TagUtf8:               "Utf8",
	TagInteger:            "Integer",
	TagFloat:              "Float",
	TagLong:               "Long",
	TagDouble:             "Double",
	TagClass:              "Class",
	TagString:             "String",
	TagFieldref:           "Fieldref",
	TagMethodref:          "Methodref",
	TagInterfaceMethodref: "InterfaceMethodref",
	TagNameAndType:        "NameAndType",
	TagMethodHandle:       "MethodHandle",
	TagMethodType:         "MethodType",
	TagDynamic:            "Dynamic",
	TagInvokeDynamic:      "InvokeDynamic",
	TagModule:             "Module",
	TagPackage:            "Package",
	TagUnusable:           "Unusable",
}

func (t Tag) String() string {
	if s, ok := tagNames[t]; ok {
		return s
	}
	return fmt.Sprintf("Tag(%d)", uint8(t))
}

// Entry is one constant pool slot. The set of implementations is closed.
type Entry interface {
	Tag() Tag
}

type Utf8 struct{ Value string }

type Integer struct{ Value int32 }

// Float and Double keep the raw IEEE 754 bits, so NaN payloads survive and
// equal input bytes always give equal entries.
type Float struct{ Bits uint32 }

type Long struct{ Value int64 }

type Double struct{ Bits uint64 }

type Class struct{ NameIndex uint16 }

type String struct{ StringIndex uint16 }

type Fieldref struct{ ClassIndex, NameAndTypeIndex uint16 }

type Methodref struct{ ClassIndex, NameAndTypeIndex uint16 }

type InterfaceMethodref struct{ ClassIndex, NameAndTypeIndex uint16 }

type NameAndType struct{ NameIndex, DescriptorIndex uint16 }

// MethodHandle reference kinds.
const (
	RefGetField         = 1
	RefGetStatic        = 2
	RefPutField         = 3
	RefPutStatic        = 4
	RefInvokeVirtual    = 5
	RefInvokeStatic     = 6
	RefInvokeSpecial    = 7
	RefNewInvokeSpecial = 8
	RefInvokeInterface  = 9
)

type MethodHandle struct {
	Kind           uint8
	ReferenceIndex uint16
}

type MethodType struct{ DescriptorIndex uint16 }

// Dynamic is a dynamically-computed constant (condy).
type Dynamic struct{ BootstrapIndex, NameAndTypeIndex uint16 }

type InvokeDynamic struct{ BootstrapIndex, NameAndTypeIndex uint16 }

type Module struct{ NameIndex uint16 }

type Package struct{ NameIndex uint16 }

// Unusable occupies the index after a Long or Double.
type Unusable struct{}

func (Utf8) Tag() Tag               { return TagUtf8 }
func (Integer) Tag() Tag            { return TagInteger }
func (Float) Tag() Tag              { return TagFloat }
func (Long) Tag() Tag               { return TagLong }
func (Double) Tag() Tag             { return TagDouble }
func (Class) Tag() Tag              { return TagClass }
func (String) Tag() Tag             { return TagString }
func (Fieldref) Tag() Tag           { return TagFieldref }
func (Methodref) Tag() Tag          { return TagMethodref }
func (InterfaceMethodref) Tag() Tag { return TagInterfaceMethodref }
func (NameAndType) Tag() Tag        { return TagNameAndType }
func (MethodHandle) Tag() Tag       { return TagMethodHandle }
func (MethodType) Tag() Tag         { return TagMethodType }
func (Dynamic) Tag() Tag            { return TagDynamic }
func (InvokeDynamic) Tag() Tag      { return TagInvokeDynamic }
func (Module) Tag() Tag             { return TagModule }
func (Package) Tag() Tag            { return TagPackage }
func (Unusable) Tag() Tag           { return TagUnusable }

func (f Float) Value() float32 { return math.Float32frombits(f.Bits) }

// String formats f the way Java source would, with NaN and ±Inf spelled out.
func (f Float) String() string {
	return strconv.FormatFloat(float64(f.Value()), 'g', -1, 32)
}

func (d Double) Value() float64 { return math.Float64frombits(d.Bits) }

func (d Double) String() string {
	return strconv.FormatFloat(d.Value(), 'g', -1, 64)
}

// Ref is a resolved Fieldref, Methodref or InterfaceMethodref.
type Ref struct {
	Tag        Tag
	Class      string
	Name       string
	Descriptor string
}

// String formats r as owner.name:descriptor.
func (r Ref) String() string {
	return r.Class + "." + r.Name + ":" + r.Descriptor
}
