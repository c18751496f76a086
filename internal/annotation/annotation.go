// Package annotation decodes annotation attributes: annotations and their
// element values, parameter annotations, and type annotations with their
// target_info and type_path.
package annotation

import (
	"encoding/json"

	"jclass/internal/classfmt"
	"jclass/internal/constpool"
	"jclass/internal/descriptor"
)

// maxNesting bounds how deep element values may nest.
const maxNesting = 256

// Annotation is one annotation: its type descriptor and element-value pairs.
type Annotation struct {
	Type     string        `json:"type"`
	Elements []ElementPair `json:"elements,omitempty"`
}

// ElementPair is a named element value.
type ElementPair struct {
	Name  string       `json:"name"`
	Value ElementValue `json:"value"`
}

// ElementValue is a tagged element_value. Which field is set depends on Tag:
//
//	B C I J S Z  Int
//	D F          Bits (IEEE 754; a float's 32 bits widened to uint64)
//	s            String
//	e            EnumType and String (the constant name)
//	c            String (a return descriptor)
//	@            Nested
//	[            Array
type ElementValue struct {
	Tag      byte           `json:"tag"`
	Int      int64          `json:"int,omitempty"`
	Bits     uint64         `json:"bits,omitempty"`
	String   string         `json:"string,omitempty"`
	EnumType string         `json:"enum_type,omitempty"`
	Nested   *Annotation    `json:"annotation,omitempty"`
	Array    []ElementValue `json:"array,omitempty"`
}

// Float64 returns the value of an F or D element, 0 otherwise.
func (v ElementValue) Float64() float64 {
	switch v.Tag {
	case 'F':
		return float64(constpool.Float{Bits: uint32(v.Bits)}.Value())
	case 'D':
		return constpool.Double{Bits: v.Bits}.Value()
	}
	return 0
}

// MarshalJSON adds the decimal text of F and D elements next to the bits.
// JSON numbers cannot hold NaN or the infinities.
func (v ElementValue) MarshalJSON() ([]byte, error) {
	type plain ElementValue
	var text string
	switch v.Tag {
	case 'F':
		text = constpool.Float{Bits: uint32(v.Bits)}.String()
	case 'D':
		text = constpool.Double{Bits: v.Bits}.String()
	}
	return json.Marshal(struct {
		plain
		Float string `json:"float,omitempty"`
	}{plain(v), text})
}

type decoder struct {
	r    *classfmt.Reader
	pool *constpool.Pool
}

// locate fills in the offset of pool and descriptor errors, which carry none.
func locate(err error, at int) error {
	if ce, ok := err.(*classfmt.Error); ok && ce.Offset < 0 {
		ce.Offset = at
	}
	return err
}

// DecodeAnnotations reads a RuntimeVisibleAnnotations or
// RuntimeInvisibleAnnotations body.
func DecodeAnnotations(r *classfmt.Reader, pool *constpool.Pool) ([]Annotation, error) {
	d := &decoder{r: r, pool: pool}
	return d.annotations()
}

// DecodeParameterAnnotations reads a Runtime*ParameterAnnotations body: one
// annotation list per declared parameter.
func DecodeParameterAnnotations(r *classfmt.Reader, pool *constpool.Pool) ([][]Annotation, error) {
	d := &decoder{r: r, pool: pool}
	n, err := r.ReadU1()
	if err != nil {
		return nil, err
	}
	out := make([][]Annotation, 0, n)
	for range int(n) {
		as, err := d.annotations()
		if err != nil {
			return nil, err
		}
		out = append(out, as)
	}
	return out, nil
}

// DecodeElementValue reads a single element_value, the body of an
// AnnotationDefault attribute.
func DecodeElementValue(r *classfmt.Reader, pool *constpool.Pool) (ElementValue, error) {
	d := &decoder{r: r, pool: pool}
	return d.value(0)
}

func (d *decoder) annotations() ([]Annotation, error) {
	n, err := d.r.ReadU2()
	if err != nil {
		return nil, err
	}
	out := make([]Annotation, 0, n)
	for range int(n) {
		a, err := d.annotation(0)
		if err != nil {
			return nil, err
		}
		out = append(out, a)
	}
	return out, nil
}

func (d *decoder) utf8(at int) (string, error) {
	idx, err := d.r.ReadU2()
	if err != nil {
		return "", err
	}
	s, err := d.pool.Utf8(idx)
	return s, locate(err, at)
}

func (d *decoder) annotation(depth int) (Annotation, error) {
	at := d.r.Offset()
	typ, err := d.utf8(at)
	if err != nil {
		return Annotation{}, err
	}
	ft, err := descriptor.ParseField(typ)
	if err != nil {
		return Annotation{}, locate(err, at)
	}
	if ft.Dims > 0 || ft.Base != 'L' {
		return Annotation{}, classfmt.Errorf(classfmt.KindInvalidDescriptor, at, "annotation type %s is not a class type", typ)
	}

	n, err := d.r.ReadU2()
	if err != nil {
		return Annotation{}, err
	}
	a := Annotation{Type: typ, Elements: make([]ElementPair, 0, n)}
	for range int(n) {
		name, err := d.utf8(d.r.Offset())
		if err != nil {
			return Annotation{}, err
		}
		v, err := d.value(depth + 1)
		if err != nil {
			return Annotation{}, err
		}
		a.Elements = append(a.Elements, ElementPair{Name: name, Value: v})
	}
	return a, nil
}

func (d *decoder) value(depth int) (ElementValue, error) {
	at := d.r.Offset()
	if depth > maxNesting {
		return ElementValue{}, classfmt.Errorf(classfmt.KindInvalidClassStructure, at, "element values nested deeper than %d", maxNesting)
	}
	tag, err := d.r.ReadU1()
	if err != nil {
		return ElementValue{}, err
	}
	v := ElementValue{Tag: tag}

	switch tag {
	case 'B', 'C', 'I', 'S', 'Z', 'J', 'F', 'D':
		idx, err := d.r.ReadU2()
		if err != nil {
			return v, err
		}
		return v, locate(d.constant(&v, idx), at)
	case 's':
		v.String, err = d.utf8(at)
		return v, err
	case 'e':
		if v.EnumType, err = d.utf8(at); err != nil {
			return v, err
		}
		if _, err := descriptor.ParseField(v.EnumType); err != nil {
			return v, locate(err, at)
		}
		v.String, err = d.utf8(at)
		return v, err
	case 'c':
		if v.String, err = d.utf8(at); err != nil {
			return v, err
		}
		_, err = descriptor.ParseReturn(v.String)
		return v, locate(err, at)
	case '@':
		a, err := d.annotation(depth)
		if err != nil {
			return v, err
		}
		v.Nested = &a
		return v, nil
	case '[':
		n, err := d.r.ReadU2()
		if err != nil {
			return v, err
		}
		v.Array = make([]ElementValue, 0, n)
		for range int(n) {
			e, err := d.value(depth + 1)
			if err != nil {
				return v, err
			}
			v.Array = append(v.Array, e)
		}
		return v, nil
	}
	return v, classfmt.Errorf(classfmt.KindUnknownTag, at, "element_value tag %q", tag)
}

// constant resolves a primitive element value, whose pool entry tag must
// match the element tag.
func (d *decoder) constant(v *ElementValue, idx uint16) error {
	e, err := d.pool.Entry(idx)
	if err != nil {
		return err
	}
	switch c := e.(type) {
	case constpool.Integer:
		if v.Tag != 'J' && v.Tag != 'F' && v.Tag != 'D' {
			v.Int = int64(c.Value)
			return nil
		}
	case constpool.Long:
		if v.Tag == 'J' {
			v.Int = c.Value
			return nil
		}
	case constpool.Float:
		if v.Tag == 'F' {
			v.Bits = uint64(c.Bits)
			return nil
		}
	case constpool.Double:
		if v.Tag == 'D' {
			v.Bits = c.Bits
			return nil
		}
	}
	return classfmt.IndexError(int(idx), "constant for element tag "+string(v.Tag), e.Tag().String())
}
