package classfile

import (
	"fmt"

	"jclass/internal/annotation"
	"jclass/internal/classfmt"
	"jclass/internal/constpool"
	"jclass/internal/descriptor"
)

// attrHandler decodes the body of one attribute from a reader bounded to
// its declared length. It reports false for names it does not handle.
type attrHandler func(name string, r *classfmt.Reader) (bool, error)

// repeatable lists the attributes that may occur more than once in one
// attribute table.
var repeatable = map[string]bool{
	"LineNumberTable":        true,
	"LocalVariableTable":     true,
	"LocalVariableTypeTable": true,
}

// attributes reads attributes_count and the attribute table from r, routing
// each body to handle. Unhandled attributes are skipped and returned.
func (p *parser) attributes(r *classfmt.Reader, handle attrHandler) ([]UnknownAttribute, error) {
	n, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	var unknown []UnknownAttribute
	seen := make(map[string]bool)
	for i := 0; i < int(n); i++ {
		at := r.Offset()
		idx, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		length, err := r.ReadU4()
		if err != nil {
			return nil, err
		}
		name, err := p.pool.Utf8(idx)
		if err != nil {
			return nil, locate(err, at)
		}
		body, err := r.Sub(int(length))
		if err != nil {
			return nil, err
		}

		known, err := handle(name, body)
		if err != nil {
			if classfmt.KindOf(err) == classfmt.KindInsufficientData {
				return nil, classfmt.Errorf(classfmt.KindInvalidAttributeLength, at,
					"%s: content runs past declared length %d", name, length)
			}
			return nil, fmt.Errorf("%s: %w", name, err)
		}
		if !known {
			unknown = append(unknown, UnknownAttribute{Name: p.s.intern(name), Length: length})
			continue
		}
		if rest := body.Remaining(); rest != 0 {
			return nil, classfmt.Errorf(classfmt.KindInvalidAttributeLength, at,
				"%s: declared length %d, %d bytes unused", name, length, rest)
		}
		if seen[name] && !repeatable[name] {
			return nil, classfmt.Errorf(classfmt.KindInvalidClassStructure, at, "duplicate %s attribute", name)
		}
		seen[name] = true
	}
	return unknown, nil
}

// common decodes the attributes shared by classes, fields, methods and
// record components.
func (p *parser) common(c *Common, loc annotation.Location, name string, r *classfmt.Reader) (bool, error) {
	var err error
	switch name {
	case "Signature":
		c.Signature, err = p.utf8(r)
	case "Deprecated":
		if loc == annotation.OnRecordComponent {
			return false, nil
		}
		c.Deprecated = true
	case "Synthetic":
		if loc == annotation.OnRecordComponent {
			return false, nil
		}
		c.Synthetic = true
	case "RuntimeVisibleAnnotations":
		c.Annotations.Visible, err = annotation.DecodeAnnotations(r, p.pool)
	case "RuntimeInvisibleAnnotations":
		c.Annotations.Invisible, err = annotation.DecodeAnnotations(r, p.pool)
	case "RuntimeVisibleTypeAnnotations":
		c.Annotations.VisibleType, err = annotation.DecodeTypeAnnotations(r, p.pool, loc)
	case "RuntimeInvisibleTypeAnnotations":
		c.Annotations.InvisibleType, err = annotation.DecodeTypeAnnotations(r, p.pool, loc)
	default:
		return false, nil
	}
	return true, err
}

// utf8 reads a u2 index that must name a CONSTANT_Utf8.
func (p *parser) utf8(r *classfmt.Reader) (string, error) {
	at := r.Offset()
	idx, err := r.ReadU2()
	if err != nil {
		return "", err
	}
	s, err := p.pool.Utf8(idx)
	if err != nil {
		return "", locate(err, at)
	}
	return p.s.intern(s), nil
}

// optUtf8 is utf8 with index 0 meaning absent.
func (p *parser) optUtf8(r *classfmt.Reader) (string, error) {
	at := r.Offset()
	idx, err := r.ReadU2()
	if err != nil || idx == 0 {
		return "", err
	}
	s, err := p.pool.Utf8(idx)
	if err != nil {
		return "", locate(err, at)
	}
	return p.s.intern(s), nil
}

// classRef reads a u2 CONSTANT_Class index.
func (p *parser) classRef(r *classfmt.Reader) (string, error) {
	at := r.Offset()
	idx, err := r.ReadU2()
	if err != nil {
		return "", err
	}
	name, err := p.pool.ClassName(idx)
	if err != nil {
		return "", locate(err, at)
	}
	return p.s.intern(name), nil
}

// optClassRef is classRef with index 0 meaning absent.
func (p *parser) optClassRef(r *classfmt.Reader) (string, error) {
	at := r.Offset()
	idx, err := r.ReadU2()
	if err != nil || idx == 0 {
		return "", err
	}
	name, err := p.pool.ClassName(idx)
	if err != nil {
		return "", locate(err, at)
	}
	return p.s.intern(name), nil
}

func (p *parser) classList(r *classfmt.Reader) ([]string, error) {
	n, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, n)
	for range int(n) {
		name, err := p.classRef(r)
		if err != nil {
			return nil, err
		}
		out = append(out, name)
	}
	return out, nil
}

func (p *parser) classAttr(name string, r *classfmt.Reader) (bool, error) {
	c := p.c
	var err error
	switch name {
	case "SourceFile":
		c.SourceFile, err = p.utf8(r)
	case "SourceDebugExtension":
		var b []byte
		if b, err = r.ReadBytes(r.Remaining()); err == nil {
			c.SourceDebugExtension, err = classfmt.DecodeModifiedUTF8(b, r.Offset()-len(b))
		}
	case "InnerClasses":
		c.InnerClasses, err = p.innerClasses(r)
	case "EnclosingMethod":
		c.EnclosingMethod, err = p.enclosingMethod(r)
	case "BootstrapMethods":
		c.BootstrapMethods, err = p.bootstrapMethods(r)
	case "NestHost":
		c.NestHost, err = p.classRef(r)
	case "NestMembers":
		c.NestMembers, err = p.classList(r)
	case "PermittedSubclasses":
		c.PermittedSubclasses, err = p.classList(r)
	case "Record":
		c.IsRecord = true
		c.Record, err = p.record(r)
	default:
		return p.common(&c.Common, annotation.OnClass, name, r)
	}
	return true, err
}

func (p *parser) innerClasses(r *classfmt.Reader) ([]InnerClass, error) {
	n, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	out := make([]InnerClass, 0, n)
	for range int(n) {
		var ic InnerClass
		if ic.Inner, err = p.classRef(r); err != nil {
			return nil, err
		}
		if ic.Outer, err = p.optClassRef(r); err != nil {
			return nil, err
		}
		if ic.Name, err = p.optUtf8(r); err != nil {
			return nil, err
		}
		flags, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		ic.AccessFlags = AccessFlags(flags)
		out = append(out, ic)
	}
	return out, nil
}

func (p *parser) enclosingMethod(r *classfmt.Reader) (*EnclosingMethod, error) {
	class, err := p.classRef(r)
	if err != nil {
		return nil, err
	}
	em := &EnclosingMethod{Class: class}
	at := r.Offset()
	idx, err := r.ReadU2()
	if err != nil || idx == 0 {
		return em, err
	}
	name, desc, err := p.pool.NameAndType(idx)
	if err != nil {
		return nil, locate(err, at)
	}
	if _, err := descriptor.ParseMethod(desc); err != nil {
		return nil, locate(err, at)
	}
	em.Name, em.Descriptor = p.s.intern(name), p.s.intern(desc)
	return em, nil
}

func (p *parser) bootstrapMethods(r *classfmt.Reader) ([]BootstrapMethod, error) {
	n, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	out := make([]BootstrapMethod, 0, n)
	for range int(n) {
		at := r.Offset()
		idx, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		e, err := p.pool.Entry(idx)
		if err != nil {
			return nil, locate(err, at)
		}
		mh, ok := e.(constpool.MethodHandle)
		if !ok {
			return nil, locate(classfmt.IndexError(int(idx), constpool.TagMethodHandle.String(), e.Tag().String()), at)
		}
		ref, err := p.pool.MemberRef(mh.ReferenceIndex)
		if err != nil {
			return nil, locate(err, at)
		}
		bm := BootstrapMethod{Kind: mh.Kind, Method: ref}

		argc, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		bm.Arguments = make([]uint16, 0, argc)
		for range int(argc) {
			at := r.Offset()
			arg, err := r.ReadU2()
			if err != nil {
				return nil, err
			}
			if err := p.loadable(arg); err != nil {
				return nil, locate(err, at)
			}
			bm.Arguments = append(bm.Arguments, arg)
		}
		out = append(out, bm)
	}
	return out, nil
}

// loadable checks that idx names a constant ldc could push.
func (p *parser) loadable(idx uint16) error {
	e, err := p.pool.Entry(idx)
	if err != nil {
		return err
	}
	switch e.Tag() {
	case constpool.TagInteger, constpool.TagFloat, constpool.TagLong, constpool.TagDouble,
		constpool.TagClass, constpool.TagString, constpool.TagMethodHandle,
		constpool.TagMethodType, constpool.TagDynamic:
		return nil
	}
	return classfmt.IndexError(int(idx), "loadable constant", e.Tag().String())
}

func (p *parser) record(r *classfmt.Reader) ([]RecordComponent, error) {
	n, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	out := make([]RecordComponent, 0, n)
	for range int(n) {
		at := r.Offset()
		var rc RecordComponent
		if rc.Name, err = p.utf8(r); err != nil {
			return nil, err
		}
		if rc.Descriptor, err = p.utf8(r); err != nil {
			return nil, err
		}
		if _, err := descriptor.ParseField(rc.Descriptor); err != nil {
			return nil, locate(err, at+2)
		}
		handle := func(name string, r *classfmt.Reader) (bool, error) {
			return p.common(&rc.Common, annotation.OnRecordComponent, name, r)
		}
		if rc.Unknown, err = p.attributes(r, handle); err != nil {
			return nil, fmt.Errorf("record component %s: %w", rc.Name, err)
		}
		out = append(out, rc)
	}
	return out, nil
}

func (p *parser) fieldAttr(f *Field) attrHandler {
	return func(name string, r *classfmt.Reader) (bool, error) {
		if name != "ConstantValue" {
			return p.common(&f.Common, annotation.OnField, name, r)
		}
		at := r.Offset()
		idx, err := r.ReadU2()
		if err != nil {
			return true, err
		}
		f.ConstantValue, err = p.constantValue(idx, f.Type)
		return true, locate(err, at)
	}
}

// constantTag returns the pool tag a ConstantValue for ft must carry, or
// false when ft cannot have one.
func constantTag(ft descriptor.FieldType) (constpool.Tag, bool) {
	if ft.Dims > 0 {
		return 0, false
	}
	switch ft.Base {
	case 'J':
		return constpool.TagLong, true
	case 'F':
		return constpool.TagFloat, true
	case 'D':
		return constpool.TagDouble, true
	case 'L':
		return constpool.TagString, ft.ClassName == "java/lang/String"
	}
	return constpool.TagInteger, true
}

// constantValue resolves a ConstantValue index, whose entry tag must suit
// the field's type.
func (p *parser) constantValue(idx uint16, ft descriptor.FieldType) (*Constant, error) {
	e, err := p.pool.Entry(idx)
	if err != nil {
		return nil, err
	}
	if want, ok := constantTag(ft); !ok || e.Tag() != want {
		return nil, classfmt.IndexError(int(idx), "constant for "+ft.String(), e.Tag().String())
	}
	c := &Constant{Tag: e.Tag()}
	switch v := e.(type) {
	case constpool.Integer:
		c.Int = int64(v.Value)
	case constpool.Long:
		c.Int = v.Value
	case constpool.Float:
		c.Bits = uint64(v.Bits)
	case constpool.Double:
		c.Bits = v.Bits
	case constpool.String:
		if c.String, err = p.pool.Utf8(v.StringIndex); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (p *parser) methodAttr(m *Method) attrHandler {
	return func(name string, r *classfmt.Reader) (bool, error) {
		var err error
		switch name {
		case "Code":
			m.Code, err = p.code(m, r)
		case "Exceptions":
			m.Exceptions, err = p.classList(r)
		case "MethodParameters":
			m.Parameters, err = p.methodParameters(r)
		case "RuntimeVisibleParameterAnnotations":
			m.ParameterAnnotations.Visible, err = annotation.DecodeParameterAnnotations(r, p.pool)
		case "RuntimeInvisibleParameterAnnotations":
			m.ParameterAnnotations.Invisible, err = annotation.DecodeParameterAnnotations(r, p.pool)
		case "AnnotationDefault":
			var v annotation.ElementValue
			if v, err = annotation.DecodeElementValue(r, p.pool); err == nil {
				m.AnnotationDefault = &v
			}
		default:
			return p.common(&m.Common, annotation.OnMethod, name, r)
		}
		return true, err
	}
}

func (p *parser) methodParameters(r *classfmt.Reader) ([]Parameter, error) {
	n, err := r.ReadU1()
	if err != nil {
		return nil, err
	}
	out := make([]Parameter, 0, n)
	for range int(n) {
		var mp Parameter
		if mp.Name, err = p.optUtf8(r); err != nil {
			return nil, err
		}
		flags, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		mp.AccessFlags = AccessFlags(flags)
		out = append(out, mp)
	}
	return out, nil
}
