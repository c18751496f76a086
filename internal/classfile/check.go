package classfile

import (
	"fmt"
	"strings"

	"jclass/internal/classfmt"
	"jclass/internal/descriptor"
)

// check runs the cross-section checks that need the whole class.
func (p *parser) check() error {
	c := p.c
	if c.Signature != "" {
		sig, err := descriptor.ParseClassSignature(c.Signature)
		if err == nil {
			err = descriptor.CheckClassSignature(sig, c.SuperName, c.Interfaces)
		}
		if err != nil {
			return fmt.Errorf("class %s signature: %w", c.Name, err)
		}
	}
	for i := range c.Fields {
		if err := p.checkField(&c.Fields[i]); err != nil {
			return fmt.Errorf("field %s: %w", c.Fields[i].Name, err)
		}
	}
	for i := range c.Methods {
		m := &c.Methods[i]
		if err := checkMethod(m); err != nil {
			return fmt.Errorf("method %s%s: %w", m.Name, m.Descriptor, err)
		}
	}
	for _, rc := range c.Record {
		if rc.Signature == "" {
			continue
		}
		if _, err := descriptor.ParseFieldSignature(rc.Signature); err != nil {
			return fmt.Errorf("record component %s signature: %w", rc.Name, err)
		}
	}
	if err := p.checkBootstrap(); err != nil {
		return err
	}
	return checkInnerClasses(c.InnerClasses)
}

func (p *parser) checkField(f *Field) error {
	if f.ConstantValue != nil && !f.AccessFlags.Has(AccStatic) && !p.s.opts.PermitConstantsInInstanceFields {
		return classfmt.Errorf(classfmt.KindInvalidClassStructure, -1, "ConstantValue on instance field")
	}
	if f.Signature != "" {
		if _, err := descriptor.ParseFieldSignature(f.Signature); err != nil {
			return fmt.Errorf("signature: %w", err)
		}
	}
	return nil
}

func checkMethod(m *Method) error {
	bodiless := m.AccessFlags.Has(AccAbstract) || m.AccessFlags.Has(AccNative)
	switch {
	case bodiless && m.Code != nil:
		return classfmt.Errorf(classfmt.KindInvalidClassStructure, -1, "abstract or native method has Code")
	case !bodiless && m.Code == nil:
		return classfmt.Errorf(classfmt.KindInvalidClassStructure, -1, "missing Code attribute")
	}
	if m.Signature == "" {
		return nil
	}
	sig, err := descriptor.ParseMethodSignature(m.Signature)
	if err == nil {
		err = descriptor.CheckMethodSignature(sig, m.Type, m.Name == "<init>")
	}
	if err != nil {
		return fmt.Errorf("signature: %w", err)
	}
	return nil
}

// checkBootstrap requires a BootstrapMethods table covering every bootstrap
// index named by a Dynamic or InvokeDynamic constant.
func (p *parser) checkBootstrap() error {
	idx, ok := p.pool.BootstrapRefs()
	if !ok {
		return nil
	}
	if n := len(p.c.BootstrapMethods); idx >= n {
		return classfmt.Errorf(classfmt.KindInvalidClassStructure, -1,
			"bootstrap method %d referenced, BootstrapMethods has %d entries", idx, n)
	}
	return nil
}

// checkInnerClasses rejects self-nesting, repeated entries, and member
// classes whose binary name does not extend the outer class name.
func checkInnerClasses(entries []InnerClass) error {
	seen := make(map[string]bool, len(entries))
	for _, ic := range entries {
		if ic.Inner == ic.Outer {
			return classfmt.Errorf(classfmt.KindInvalidClassStructure, -1, "inner class %s is its own outer class", ic.Inner)
		}
		if seen[ic.Inner] {
			return classfmt.Errorf(classfmt.KindInvalidClassStructure, -1, "inner class %s listed twice", ic.Inner)
		}
		seen[ic.Inner] = true
		if ic.Outer != "" && ic.Name != "" && !strings.HasPrefix(ic.Inner, ic.Outer+"$") {
			return classfmt.Errorf(classfmt.KindInvalidClassStructure, -1, "inner class %s is not nested in %s", ic.Inner, ic.Outer)
		}
	}
	return nil
}
