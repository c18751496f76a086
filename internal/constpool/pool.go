package constpool

import (
	"fmt"

	"jclass/internal/classfmt"
	"jclass/internal/descriptor"
)

// Pool is a decoded, resolved constant pool. Index 0 is never valid.
// A Pool is read-only once Parse returns.
type Pool struct {
	entries []Entry
	offsets []int // absolute byte offset of each entry's tag
}

// Len returns constant_pool_count: one more than the largest valid index.
func (p *Pool) Len() int { return len(p.entries) }

// Parse reads constant_pool_count and the entries that follow, then checks
// every cross-reference.
func Parse(r *classfmt.Reader, opts classfmt.Options) (*Pool, error) {
	start := r.Offset()
	count, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	if count == 0 {
		return nil, classfmt.Errorf(classfmt.KindInvalidConstantPoolIndex, start, "constant_pool_count is 0")
	}
	if limit := opts.EffectiveMaxConstantPoolCount(); int(count) > limit {
		return nil, classfmt.Errorf(classfmt.KindDataTooLarge, start, "constant_pool_count %d exceeds %d", count, limit)
	}

	p := &Pool{
		entries: make([]Entry, count),
		offsets: make([]int, count),
	}
	for i := 1; i < int(count); i++ {
		off := r.Offset()
		e, err := readEntry(r)
		if err != nil {
			return nil, err
		}
		p.entries[i] = e
		p.offsets[i] = off
		if t := e.Tag(); t == TagLong || t == TagDouble {
			if i+1 >= int(count) {
				return nil, classfmt.Errorf(classfmt.KindInvalidConstantPoolIndex, off,
					"%s at index %d has no room for its second slot", t, i)
			}
			i++
			p.entries[i] = Unusable{}
			p.offsets[i] = off
		}
	}

	for i := 1; i < int(count); i++ {
		if err := p.resolve(i); err != nil {
			return nil, err
		}
	}
	return p, nil
}

func readEntry(r *classfmt.Reader) (Entry, error) {
	off := r.Offset()
	tag, err := r.ReadU1()
	if err != nil {
		return nil, err
	}
	switch Tag(tag) {
	case TagUtf8:
		n, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		bodyOff := r.Offset()
		b, err := r.ReadBytes(int(n))
		if err != nil {
			return nil, err
		}
		s, err := classfmt.DecodeModifiedUTF8(b, bodyOff)
		if err != nil {
			return nil, err
		}
		return Utf8{Value: s}, nil
	case TagInteger:
		v, err := r.ReadS4()
		return Integer{Value: v}, err
	case TagFloat:
		v, err := r.ReadU4()
		return Float{Bits: v}, err
	case TagLong:
		v, err := r.ReadS8()
		return Long{Value: v}, err
	case TagDouble:
		v, err := r.ReadU8()
		return Double{Bits: v}, err
	case TagClass:
		v, err := r.ReadU2()
		return Class{NameIndex: v}, err
	case TagString:
		v, err := r.ReadU2()
		return String{StringIndex: v}, err
	case TagMethodType:
		v, err := r.ReadU2()
		return MethodType{DescriptorIndex: v}, err
	case TagModule:
		v, err := r.ReadU2()
		return Module{NameIndex: v}, err
	case TagPackage:
		v, err := r.ReadU2()
		return Package{NameIndex: v}, err
	case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType, TagDynamic, TagInvokeDynamic:
		a, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		b, err := r.ReadU2()
		if err != nil {
			return nil, err
		}
		switch Tag(tag) {
		case TagFieldref:
			return Fieldref{ClassIndex: a, NameAndTypeIndex: b}, nil
		case TagMethodref:
			return Methodref{ClassIndex: a, NameAndTypeIndex: b}, nil
		case TagInterfaceMethodref:
			return InterfaceMethodref{ClassIndex: a, NameAndTypeIndex: b}, nil
		case TagNameAndType:
			return NameAndType{NameIndex: a, DescriptorIndex: b}, nil
		case TagDynamic:
			return Dynamic{BootstrapIndex: a, NameAndTypeIndex: b}, nil
		default:
			return InvokeDynamic{BootstrapIndex: a, NameAndTypeIndex: b}, nil
		}
	case TagMethodHandle:
		kind, err := r.ReadU1()
		if err != nil {
			return nil, err
		}
		ref, err := r.ReadU2()
		return MethodHandle{Kind: kind, ReferenceIndex: ref}, err
	}
	return nil, classfmt.Errorf(classfmt.KindUnknownTag, off, "constant pool tag %d", tag)
}

// Entry returns the entry at index i.
func (p *Pool) Entry(i uint16) (Entry, error) {
	if i == 0 || int(i) >= len(p.entries) {
		return nil, classfmt.IndexError(int(i), "", fmt.Sprintf("out of range [1,%d)", len(p.entries)))
	}
	e := p.entries[i]
	if _, ok := e.(Unusable); ok {
		return nil, classfmt.IndexError(int(i), "", "unusable slot after Long/Double")
	}
	return e, nil
}

// Offset returns the byte offset of entry i's tag, or -1.
func (p *Pool) Offset(i uint16) int {
	if int(i) < len(p.offsets) && i != 0 {
		return p.offsets[i]
	}
	return -1
}

func (p *Pool) get(i uint16, want ...Tag) (Entry, error) {
	e, err := p.Entry(i)
	if err != nil {
		if ce, ok := err.(*classfmt.Error); ok {
			ce.Expected = tagList(want)
		}
		return nil, err
	}
	for _, t := range want {
		if e.Tag() == t {
			return e, nil
		}
	}
	return nil, classfmt.IndexError(int(i), tagList(want), e.Tag().String())
}

func tagList(tags []Tag) string {
	s := ""
	for i, t := range tags {
		if i > 0 {
			s += "|"
		}
		s += t.String()
	}
	return s
}

// Utf8 returns the string at index i.
func (p *Pool) Utf8(i uint16) (string, error) {
	e, err := p.get(i, TagUtf8)
	if err != nil {
		return "", err
	}
	return e.(Utf8).Value, nil
}

// ClassName returns the internal name of the Class entry at index i.
func (p *Pool) ClassName(i uint16) (string, error) {
	e, err := p.get(i, TagClass)
	if err != nil {
		return "", err
	}
	return p.Utf8(e.(Class).NameIndex)
}

// NameAndType returns the name and descriptor of the NameAndType entry at i.
func (p *Pool) NameAndType(i uint16) (name, desc string, err error) {
	e, err := p.get(i, TagNameAndType)
	if err != nil {
		return "", "", err
	}
	nt := e.(NameAndType)
	if name, err = p.Utf8(nt.NameIndex); err != nil {
		return "", "", err
	}
	if desc, err = p.Utf8(nt.DescriptorIndex); err != nil {
		return "", "", err
	}
	return name, desc, nil
}

// MemberRef resolves a Fieldref, Methodref or InterfaceMethodref at i.
func (p *Pool) MemberRef(i uint16) (Ref, error) {
	e, err := p.get(i, TagFieldref, TagMethodref, TagInterfaceMethodref)
	if err != nil {
		return Ref{}, err
	}
	var classIdx, ntIdx uint16
	switch v := e.(type) {
	case Fieldref:
		classIdx, ntIdx = v.ClassIndex, v.NameAndTypeIndex
	case Methodref:
		classIdx, ntIdx = v.ClassIndex, v.NameAndTypeIndex
	case InterfaceMethodref:
		classIdx, ntIdx = v.ClassIndex, v.NameAndTypeIndex
	}
	ref := Ref{Tag: e.Tag()}
	if ref.Class, err = p.ClassName(classIdx); err != nil {
		return Ref{}, err
	}
	if ref.Name, ref.Descriptor, err = p.NameAndType(ntIdx); err != nil {
		return Ref{}, err
	}
	return ref, nil
}

// BootstrapRefs returns the largest bootstrap method index referenced by a
// Dynamic or InvokeDynamic entry, and whether any such entry exists.
func (p *Pool) BootstrapRefs() (maxIndex int, ok bool) {
	maxIndex = -1
	for _, e := range p.entries {
		var idx uint16
		switch v := e.(type) {
		case Dynamic:
			idx = v.BootstrapIndex
		case InvokeDynamic:
			idx = v.BootstrapIndex
		default:
			continue
		}
		maxIndex = max(maxIndex, int(idx))
	}
	return maxIndex, maxIndex >= 0
}

// resolve checks the references held by entry i.
func (p *Pool) resolve(i int) error {
	err := p.resolveEntry(p.entries[i])
	if err != nil {
		if ce, ok := err.(*classfmt.Error); ok && ce.Offset < 0 {
			ce.Offset = p.offsets[i]
			if ce.Msg == "" {
				ce.Msg = fmt.Sprintf("%s entry at index %d", p.entries[i].Tag(), i)
			}
		}
	}
	return err
}

func (p *Pool) resolveEntry(e Entry) error {
	switch v := e.(type) {
	case Class:
		name, err := p.Utf8(v.NameIndex)
		if err != nil {
			return err
		}
		return checkClassName(name)
	case String:
		_, err := p.Utf8(v.StringIndex)
		return err
	case Module:
		_, err := p.Utf8(v.NameIndex)
		return err
	case Package:
		_, err := p.Utf8(v.NameIndex)
		return err
	case MethodType:
		d, err := p.Utf8(v.DescriptorIndex)
		if err != nil {
			return err
		}
		_, err = descriptor.ParseMethod(d)
		return err
	case NameAndType:
		if _, err := p.Utf8(v.NameIndex); err != nil {
			return err
		}
		_, err := p.Utf8(v.DescriptorIndex)
		return err
	case Fieldref:
		return p.resolveMember(v.ClassIndex, v.NameAndTypeIndex, false)
	case Methodref:
		return p.resolveMember(v.ClassIndex, v.NameAndTypeIndex, true)
	case InterfaceMethodref:
		return p.resolveMember(v.ClassIndex, v.NameAndTypeIndex, true)
	case MethodHandle:
		return p.resolveHandle(v)
	case Dynamic:
		_, d, err := p.NameAndType(v.NameAndTypeIndex)
		if err != nil {
			return err
		}
		_, err = descriptor.ParseField(d)
		return err
	case InvokeDynamic:
		_, d, err := p.NameAndType(v.NameAndTypeIndex)
		if err != nil {
			return err
		}
		_, err = descriptor.ParseMethod(d)
		return err
	}
	return nil
}

func (p *Pool) resolveMember(classIdx, ntIdx uint16, method bool) error {
	if _, err := p.get(classIdx, TagClass); err != nil {
		return err
	}
	name, d, err := p.NameAndType(ntIdx)
	if err != nil {
		return err
	}
	if !descriptor.ValidMemberName(name, method) {
		return classfmt.Errorf(classfmt.KindInvalidClassStructure, -1, "invalid member name %q", name)
	}
	if method {
		_, err = descriptor.ParseMethod(d)
	} else {
		_, err = descriptor.ParseField(d)
	}
	return err
}

func (p *Pool) resolveHandle(h MethodHandle) error {
	var want []Tag
	switch h.Kind {
	case RefGetField, RefGetStatic, RefPutField, RefPutStatic:
		want = []Tag{TagFieldref}
	case RefInvokeVirtual, RefNewInvokeSpecial:
		want = []Tag{TagMethodref}
	case RefInvokeStatic, RefInvokeSpecial:
		want = []Tag{TagMethodref, TagInterfaceMethodref}
	case RefInvokeInterface:
		want = []Tag{TagInterfaceMethodref}
	default:
		return classfmt.Errorf(classfmt.KindUnknownTag, -1, "method handle kind %d", h.Kind)
	}
	if _, err := p.get(h.ReferenceIndex, want...); err != nil {
		return err
	}
	ref, err := p.MemberRef(h.ReferenceIndex)
	if err != nil {
		return err
	}
	switch {
	case h.Kind == RefNewInvokeSpecial && ref.Name != "<init>":
		return classfmt.Errorf(classfmt.KindInvalidClassStructure, -1, "newInvokeSpecial handle to %s", ref.Name)
	case h.Kind != RefNewInvokeSpecial && (ref.Name == "<init>" || ref.Name == "<clinit>"):
		return classfmt.Errorf(classfmt.KindInvalidClassStructure, -1, "method handle kind %d to %s", h.Kind, ref.Name)
	}
	return nil
}

// checkClassName accepts internal names and array descriptors, which both
// appear in Class entries.
func checkClassName(name string) error {
	if len(name) > 0 && name[0] == '[' {
		_, err := descriptor.ParseField(name)
		return err
	}
	if !descriptor.ValidInternalName(name) {
		return classfmt.Errorf(classfmt.KindInvalidDescriptor, -1, "invalid class name %q", name)
	}
	return nil
}
