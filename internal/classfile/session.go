package classfile

import (
	"fmt"
	"strings"

	"jclass/internal/classfmt"
	"jclass/internal/constpool"
	"jclass/internal/descriptor"
)

// Session parses class files with one set of options and interns the names
// and descriptors shared across them. A Session is not safe for concurrent
// use; give each goroutine its own.
type Session struct {
	opts  classfmt.Options
	names map[string]string
}

// NewSession returns a session using opts.
func NewSession(opts classfmt.Options) *Session {
	return &Session{opts: opts, names: make(map[string]string)}
}

// Options returns the session's parse options.
func (s *Session) Options() classfmt.Options { return s.opts }

// Interned returns the number of distinct strings interned so far.
func (s *Session) Interned() int { return len(s.names) }

func (s *Session) intern(v string) string {
	if c, ok := s.names[v]; ok {
		return c
	}
	s.names[v] = v
	return v
}

// Parse decodes a single class file with a fresh session.
func Parse(data []byte, opts classfmt.Options) (*Class, error) {
	return NewSession(opts).Parse(data)
}

type parser struct {
	s    *Session
	r    *classfmt.Reader
	pool *constpool.Pool
	c    *Class
}

// Parse decodes data as a class file. On any structural violation it
// returns an error wrapping a *classfmt.Error and no class.
func (s *Session) Parse(data []byte) (*Class, error) {
	p := &parser{s: s, r: classfmt.NewReader(data), c: &Class{}}
	if err := p.parse(); err != nil {
		return nil, err
	}
	return p.c, nil
}

func (p *parser) parse() error {
	if err := p.header(); err != nil {
		return err
	}
	pool, err := constpool.Parse(p.r, p.s.opts)
	if err != nil {
		return fmt.Errorf("constant pool: %w", err)
	}
	p.pool = pool

	if err := p.declaration(); err != nil {
		return err
	}
	if err := p.fields(); err != nil {
		return err
	}
	if err := p.methods(); err != nil {
		return err
	}
	unknown, err := p.attributes(p.r, p.classAttr)
	if err != nil {
		return fmt.Errorf("class %s: %w", p.c.Name, err)
	}
	p.c.Unknown = unknown
	if n := p.r.Remaining(); n > 0 {
		return classfmt.Errorf(classfmt.KindInvalidClassStructure, p.r.Offset(), "%d trailing bytes after class attributes", n)
	}
	return p.check()
}

func (p *parser) header() error {
	at := p.r.Offset()
	magic, err := p.r.ReadU4()
	if err != nil {
		return err
	}
	if magic != Magic {
		return classfmt.Errorf(classfmt.KindNotAClassFile, at, "magic 0x%08x", magic)
	}
	at = p.r.Offset()
	if p.c.MinorVersion, err = p.r.ReadU2(); err != nil {
		return err
	}
	if p.c.MajorVersion, err = p.r.ReadU2(); err != nil {
		return err
	}
	major, minor := p.c.MajorVersion, p.c.MinorVersion
	if major < classfmt.MinMajorVersion || major > p.s.opts.EffectiveMaxMajorVersion() {
		return classfmt.Errorf(classfmt.KindUnsupportedVersion, at, "version %d.%d", major, minor)
	}
	// From Java 12 the minor version is 0, or 65535 for preview features.
	if major >= 56 && minor != 0 && minor != 0xffff {
		return classfmt.Errorf(classfmt.KindUnsupportedVersion, at, "version %d.%d", major, minor)
	}
	return nil
}

// className reads a u2 CONSTANT_Class index naming a class or interface,
// never an array type.
func (p *parser) className(what string) (string, error) {
	at := p.r.Offset()
	idx, err := p.r.ReadU2()
	if err != nil {
		return "", err
	}
	return p.classAt(idx, at, what)
}

func (p *parser) classAt(idx uint16, at int, what string) (string, error) {
	name, err := p.pool.ClassName(idx)
	if err != nil {
		return "", locate(err, at)
	}
	if strings.HasPrefix(name, "[") {
		return "", classfmt.Errorf(classfmt.KindInvalidClassStructure, at, "%s is array type %s", what, name)
	}
	return p.s.intern(name), nil
}

// locate fills in the offset of an error raised without one.
func locate(err error, at int) error {
	if ce, ok := err.(*classfmt.Error); ok && ce.Offset < 0 {
		ce.Offset = at
	}
	return err
}

func (p *parser) declaration() error {
	c := p.c
	flags, err := p.r.ReadU2()
	if err != nil {
		return err
	}
	c.AccessFlags = AccessFlags(flags)
	if c.Name, err = p.className("this_class"); err != nil {
		return err
	}

	at := p.r.Offset()
	super, err := p.r.ReadU2()
	if err != nil {
		return err
	}
	switch {
	case super != 0:
		if c.SuperName, err = p.classAt(super, at, "super_class"); err != nil {
			return err
		}
	case c.Name != "java/lang/Object" && !c.AccessFlags.Has(AccModule):
		return classfmt.Errorf(classfmt.KindInvalidClassStructure, at, "%s has no superclass", c.Name)
	}

	n, err := p.r.ReadU2()
	if err != nil {
		return err
	}
	seen := make(map[string]bool, n)
	for i := 0; i < int(n); i++ {
		at := p.r.Offset()
		name, err := p.className("interface")
		if err != nil {
			return err
		}
		if seen[name] {
			return classfmt.Errorf(classfmt.KindInvalidClassStructure, at, "interface %s listed twice", name)
		}
		seen[name] = true
		c.Interfaces = append(c.Interfaces, name)
	}
	return nil
}

// member reads the access_flags, name_index and descriptor_index common to
// field_info and method_info.
func (p *parser) member(method bool) (AccessFlags, string, string, error) {
	flags, err := p.r.ReadU2()
	if err != nil {
		return 0, "", "", err
	}
	at := p.r.Offset()
	nameIdx, err := p.r.ReadU2()
	if err != nil {
		return 0, "", "", err
	}
	descIdx, err := p.r.ReadU2()
	if err != nil {
		return 0, "", "", err
	}
	name, err := p.pool.Utf8(nameIdx)
	if err != nil {
		return 0, "", "", locate(err, at)
	}
	if !descriptor.ValidMemberName(name, method) {
		return 0, "", "", classfmt.Errorf(classfmt.KindInvalidClassStructure, at, "invalid member name %q", name)
	}
	desc, err := p.pool.Utf8(descIdx)
	if err != nil {
		return 0, "", "", locate(err, at+2)
	}
	return AccessFlags(flags), p.s.intern(name), p.s.intern(desc), nil
}

func (p *parser) fields() error {
	n, err := p.r.ReadU2()
	if err != nil {
		return err
	}
	seen := make(map[string]bool, n)
	for i := 0; i < int(n); i++ {
		at := p.r.Offset()
		flags, name, desc, err := p.member(false)
		if err != nil {
			return fmt.Errorf("field %d: %w", i, err)
		}
		ft, err := descriptor.ParseField(desc)
		if err != nil {
			return fmt.Errorf("field %s: %w", name, locate(err, at+4))
		}
		key := name + ":" + desc
		if seen[key] {
			return classfmt.Errorf(classfmt.KindInvalidClassStructure, at, "duplicate field %s %s", name, desc)
		}
		seen[key] = true
		f := Field{AccessFlags: flags, Name: name, Descriptor: desc, Type: ft}
		if f.Unknown, err = p.attributes(p.r, p.fieldAttr(&f)); err != nil {
			return fmt.Errorf("field %s: %w", name, err)
		}
		p.c.Fields = append(p.c.Fields, f)
	}
	return nil
}

func (p *parser) methods() error {
	n, err := p.r.ReadU2()
	if err != nil {
		return err
	}
	seen := make(map[string]bool, n)
	for i := 0; i < int(n); i++ {
		at := p.r.Offset()
		flags, name, desc, err := p.member(true)
		if err != nil {
			return fmt.Errorf("method %d: %w", i, err)
		}
		mt, err := descriptor.ParseMethod(desc)
		if err != nil {
			return fmt.Errorf("method %s: %w", name, locate(err, at+4))
		}
		if (name == "<init>" || name == "<clinit>") && mt.Return != nil {
			return classfmt.Errorf(classfmt.KindInvalidClassStructure, at, "%s must return void, has %s", name, desc)
		}
		key := name + desc
		if seen[key] {
			return classfmt.Errorf(classfmt.KindInvalidClassStructure, at, "duplicate method %s%s", name, desc)
		}
		seen[key] = true
		m := Method{AccessFlags: flags, Name: name, Descriptor: desc, Type: mt}
		if m.Unknown, err = p.attributes(p.r, p.methodAttr(&m)); err != nil {
			return fmt.Errorf("method %s%s: %w", name, desc, err)
		}
		p.c.Methods = append(p.c.Methods, m)
	}
	return nil
}
