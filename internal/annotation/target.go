package annotation

import (
	"fmt"

	"jclass/internal/classfmt"
	"jclass/internal/constpool"
)

// Target types (target_type values of type_annotation).
const (
	TargetClassTypeParameter           = 0x00
	TargetMethodTypeParameter          = 0x01
	TargetClassExtends                 = 0x10
	TargetClassTypeParameterBound      = 0x11
	TargetMethodTypeParameterBound     = 0x12
	TargetField                        = 0x13
	TargetMethodReturn                 = 0x14
	TargetMethodReceiver               = 0x15
	TargetMethodFormalParameter        = 0x16
	TargetThrows                       = 0x17
	TargetLocalVariable                = 0x40
	TargetResourceVariable             = 0x41
	TargetExceptionParameter           = 0x42
	TargetInstanceof                   = 0x43
	TargetNew                          = 0x44
	TargetConstructorReference         = 0x45
	TargetMethodReference              = 0x46
	TargetCast                         = 0x47
	TargetConstructorInvocationTypeArg = 0x48
	TargetMethodInvocationTypeArg      = 0x49
	TargetConstructorReferenceTypeArg  = 0x4a
	TargetMethodReferenceTypeArg       = 0x4b
)

// SuperclassIndex is the supertype_index that marks an annotation on the
// extends clause rather than on an implemented interface.
const SuperclassIndex = 0xffff

// Location is where a type annotation attribute appears.
type Location uint8

const (
	OnClass Location = iota
	OnField
	OnMethod
	OnCode
	OnRecordComponent
)

func (l Location) String() string {
	return [...]string{"class", "field", "method", "Code", "record component"}[l]
}

// allowed reports whether target type t may appear in an attribute at l.
func (l Location) allowed(t uint8) bool {
	switch l {
	case OnClass:
		return t == TargetClassTypeParameter || t == TargetClassExtends || t == TargetClassTypeParameterBound
	case OnField, OnRecordComponent:
		return t == TargetField
	case OnMethod:
		return t == TargetMethodTypeParameter || (t >= TargetMethodTypeParameterBound && t <= TargetThrows && t != TargetField)
	case OnCode:
		return t >= TargetLocalVariable && t <= TargetMethodReferenceTypeArg
	}
	return false
}

// LocalVar is one entry of a localvar_target table.
type LocalVar struct {
	StartPC uint16 `json:"start_pc"`
	Length  uint16 `json:"length"`
	Index   uint16 `json:"index"`
}

// Target is a decoded target_info. Type selects which fields are
// meaningful; the rest stay zero.
type Target struct {
	Type                 uint8      `json:"target_type"`
	TypeParameterIndex   uint8      `json:"type_parameter_index,omitempty"`
	SupertypeIndex       uint16     `json:"supertype_index,omitempty"`
	BoundIndex           uint8      `json:"bound_index,omitempty"`
	FormalParameterIndex uint8      `json:"formal_parameter_index,omitempty"`
	ThrowsTypeIndex      uint16     `json:"throws_type_index,omitempty"`
	LocalVars            []LocalVar `json:"localvars,omitempty"`
	CatchIndex           uint16     `json:"exception_table_index,omitempty"`
	Offset               uint16     `json:"offset,omitempty"`
	TypeArgumentIndex    uint8      `json:"type_argument_index,omitempty"`
}

// Superclass reports whether t annotates the extends clause of a class.
func (t Target) Superclass() bool {
	return t.Type == TargetClassExtends && t.SupertypeIndex == SuperclassIndex
}

// PathKind is a type_path_kind.
type PathKind uint8

const (
	PathArray PathKind = iota
	PathNested
	PathWildcard
	PathTypeArgument
)

func (k PathKind) String() string {
	switch k {
	case PathArray:
		return "array"
	case PathNested:
		return "nested"
	case PathWildcard:
		return "wildcard"
	case PathTypeArgument:
		return "type_argument"
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

func (k PathKind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// PathElement is one step of a type_path. ArgumentIndex is meaningful only
// for PathTypeArgument.
type PathElement struct {
	Kind          PathKind `json:"kind"`
	ArgumentIndex uint8    `json:"type_argument_index,omitempty"`
}

// TypeAnnotation is one type_annotation entry.
type TypeAnnotation struct {
	Target Target        `json:"target"`
	Path   []PathElement `json:"path,omitempty"`
	Annotation
}

// DecodeTarget reads a target_type byte and its target_info payload.
func DecodeTarget(r *classfmt.Reader) (Target, error) {
	at := r.Offset()
	tt, err := r.ReadU1()
	if err != nil {
		return Target{}, err
	}
	t := Target{Type: tt}

	switch tt {
	case TargetClassTypeParameter, TargetMethodTypeParameter:
		t.TypeParameterIndex, err = r.ReadU1()
	case TargetClassExtends:
		t.SupertypeIndex, err = r.ReadU2()
	case TargetClassTypeParameterBound, TargetMethodTypeParameterBound:
		if t.TypeParameterIndex, err = r.ReadU1(); err == nil {
			t.BoundIndex, err = r.ReadU1()
		}
	case TargetField, TargetMethodReturn, TargetMethodReceiver:
	case TargetMethodFormalParameter:
		t.FormalParameterIndex, err = r.ReadU1()
	case TargetThrows:
		t.ThrowsTypeIndex, err = r.ReadU2()
	case TargetLocalVariable, TargetResourceVariable:
		t.LocalVars, err = readLocalVars(r)
	case TargetExceptionParameter:
		t.CatchIndex, err = r.ReadU2()
	case TargetInstanceof, TargetNew, TargetConstructorReference, TargetMethodReference:
		t.Offset, err = r.ReadU2()
	case TargetCast, TargetConstructorInvocationTypeArg, TargetMethodInvocationTypeArg,
		TargetConstructorReferenceTypeArg, TargetMethodReferenceTypeArg:
		if t.Offset, err = r.ReadU2(); err == nil {
			t.TypeArgumentIndex, err = r.ReadU1()
		}
	default:
		return Target{}, classfmt.Errorf(classfmt.KindUnknownTag, at, "target_type 0x%02x", tt)
	}
	if err != nil {
		return Target{}, err
	}
	return t, nil
}

func readLocalVars(r *classfmt.Reader) ([]LocalVar, error) {
	n, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	out := make([]LocalVar, 0, n)
	for range int(n) {
		var lv LocalVar
		if lv.StartPC, err = r.ReadU2(); err != nil {
			return nil, err
		}
		if lv.Length, err = r.ReadU2(); err != nil {
			return nil, err
		}
		if lv.Index, err = r.ReadU2(); err != nil {
			return nil, err
		}
		out = append(out, lv)
	}
	return out, nil
}

// DecodePath reads a type_path.
func DecodePath(r *classfmt.Reader) ([]PathElement, error) {
	n, err := r.ReadU1()
	if err != nil {
		return nil, err
	}
	path := make([]PathElement, 0, n)
	for range int(n) {
		at := r.Offset()
		kind, err := r.ReadU1()
		if err != nil {
			return nil, err
		}
		if kind > uint8(PathTypeArgument) {
			return nil, classfmt.Errorf(classfmt.KindUnknownTag, at, "type_path_kind %d", kind)
		}
		arg, err := r.ReadU1()
		if err != nil {
			return nil, err
		}
		path = append(path, PathElement{Kind: PathKind(kind), ArgumentIndex: arg})
	}
	return path, nil
}

// DecodeTypeAnnotations reads a Runtime*TypeAnnotations body found at loc.
// Targets that cannot appear at loc are rejected.
func DecodeTypeAnnotations(r *classfmt.Reader, pool *constpool.Pool, loc Location) ([]TypeAnnotation, error) {
	d := &decoder{r: r, pool: pool}
	n, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	out := make([]TypeAnnotation, 0, n)
	for range int(n) {
		at := r.Offset()
		t, err := DecodeTarget(r)
		if err != nil {
			return nil, err
		}
		if !loc.allowed(t.Type) {
			return nil, classfmt.Errorf(classfmt.KindInvalidClassStructure, at, "target_type 0x%02x on %s", t.Type, loc)
		}
		path, err := DecodePath(r)
		if err != nil {
			return nil, err
		}
		a, err := d.annotation(0)
		if err != nil {
			return nil, err
		}
		out = append(out, TypeAnnotation{Target: t, Path: path, Annotation: a})
	}
	return out, nil
}
