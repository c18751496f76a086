package descriptor

import (
	"strings"

	"jclass/internal/classfmt"
)

// SigKind distinguishes the forms of a Java type signature.
type SigKind uint8

const (
	SigBase SigKind = iota
	SigClass
	SigTypeVar
	SigArray
)

// TypeSig is a parsed Java type signature.
type TypeSig struct {
	Kind  SigKind   `json:"kind"`
	Base  byte      `json:"base,omitempty"`  // SigBase
	Class *ClassSig `json:"class,omitempty"` // SigClass
	Var   string    `json:"var,omitempty"`   // SigTypeVar
	Elem  *TypeSig  `json:"elem,omitempty"`  // SigArray
}

// ClassSig is a class type signature: an optional package prefix followed by
// one or more simple class signatures separated by '.'.
type ClassSig struct {
	Package string        `json:"package,omitempty"` // "java/util/" including trailing slash
	Parts   []SimpleClass `json:"parts"`
}

// SimpleClass is one segment of a class type signature.
type SimpleClass struct {
	Name string    `json:"name"`
	Args []TypeArg `json:"args,omitempty"`
}

// TypeArg is a type argument. Wildcard is '*', '+', '-' or 0.
type TypeArg struct {
	Wildcard byte     `json:"wildcard,omitempty"`
	Type     *TypeSig `json:"type,omitempty"`
}

// Erasure returns the binary name of the class, with inner classes joined by '$'.
func (c *ClassSig) Erasure() string {
	names := make([]string, len(c.Parts))
	for i, p := range c.Parts {
		names[i] = p.Name
	}
	return c.Package + strings.Join(names, "$")
}

// TypeParam is a formal type parameter declaration.
type TypeParam struct {
	Name            string    `json:"name"`
	ClassBound      *TypeSig  `json:"class_bound,omitempty"`
	InterfaceBounds []TypeSig `json:"interface_bounds,omitempty"`
}

// ClassSignature is the parsed Signature attribute of a class.
type ClassSignature struct {
	TypeParams []TypeParam `json:"type_params,omitempty"`
	Super      ClassSig    `json:"super"`
	Interfaces []ClassSig  `json:"interfaces,omitempty"`
}

// MethodSignature is the parsed Signature attribute of a method. Return is
// nil for void.
type MethodSignature struct {
	TypeParams []TypeParam `json:"type_params,omitempty"`
	Params     []TypeSig   `json:"params"`
	Return     *TypeSig    `json:"return,omitempty"`
	Throws     []TypeSig   `json:"throws,omitempty"`
}

type sigScanner struct {
	s   string
	pos int
}

func (p *sigScanner) fail(format string, args ...any) error {
	e := classfmt.Errorf(classfmt.KindInvalidSignature, -1, format, args...)
	e.Actual = p.s
	return e
}

func (p *sigScanner) peek() byte {
	if p.pos < len(p.s) {
		return p.s[p.pos]
	}
	return 0
}

func (p *sigScanner) expect(c byte) error {
	if p.peek() != c {
		return p.fail("expected %q at %d", c, p.pos)
	}
	p.pos++
	return nil
}

func (p *sigScanner) done() error {
	if p.pos != len(p.s) {
		return p.fail("trailing bytes at %d", p.pos)
	}
	return nil
}

// identifier reads up to (not including) the first of . ; [ / < > :
func (p *sigScanner) identifier() (string, error) {
	start := p.pos
	for p.pos < len(p.s) && !strings.ContainsRune(".;[/<>:", rune(p.s[p.pos])) {
		p.pos++
	}
	if p.pos == start {
		return "", p.fail("empty identifier at %d", start)
	}
	return p.s[start:p.pos], nil
}

// ParseClassSignature parses a class Signature attribute value.
func ParseClassSignature(s string) (ClassSignature, error) {
	p := &sigScanner{s: s}
	var cs ClassSignature
	var err error
	if p.peek() == '<' {
		if cs.TypeParams, err = p.typeParams(); err != nil {
			return ClassSignature{}, err
		}
	}
	sup, err := p.classType()
	if err != nil {
		return ClassSignature{}, err
	}
	cs.Super = *sup
	for p.pos < len(s) {
		iface, err := p.classType()
		if err != nil {
			return ClassSignature{}, err
		}
		cs.Interfaces = append(cs.Interfaces, *iface)
	}
	return cs, nil
}

// ParseMethodSignature parses a method Signature attribute value.
func ParseMethodSignature(s string) (MethodSignature, error) {
	p := &sigScanner{s: s}
	var ms MethodSignature
	var err error
	if p.peek() == '<' {
		if ms.TypeParams, err = p.typeParams(); err != nil {
			return MethodSignature{}, err
		}
	}
	if err := p.expect('('); err != nil {
		return MethodSignature{}, err
	}
	for p.peek() != ')' {
		if p.pos >= len(s) {
			return MethodSignature{}, p.fail("unbalanced parentheses")
		}
		t, err := p.javaType()
		if err != nil {
			return MethodSignature{}, err
		}
		ms.Params = append(ms.Params, *t)
	}
	p.pos++
	if p.peek() == 'V' {
		p.pos++
	} else {
		if ms.Return, err = p.javaType(); err != nil {
			return MethodSignature{}, err
		}
	}
	for p.peek() == '^' {
		p.pos++
		var t *TypeSig
		switch p.peek() {
		case 'L':
			c, err := p.classType()
			if err != nil {
				return MethodSignature{}, err
			}
			t = &TypeSig{Kind: SigClass, Class: c}
		case 'T':
			if t, err = p.typeVar(); err != nil {
				return MethodSignature{}, err
			}
		default:
			return MethodSignature{}, p.fail("invalid throws signature at %d", p.pos)
		}
		ms.Throws = append(ms.Throws, *t)
	}
	if err := p.done(); err != nil {
		return MethodSignature{}, err
	}
	return ms, nil
}

// ParseFieldSignature parses a field Signature attribute value, which must
// be a reference type signature.
func ParseFieldSignature(s string) (TypeSig, error) {
	p := &sigScanner{s: s}
	t, err := p.referenceType()
	if err != nil {
		return TypeSig{}, err
	}
	if err := p.done(); err != nil {
		return TypeSig{}, err
	}
	return *t, nil
}

func (p *sigScanner) typeParams() ([]TypeParam, error) {
	p.pos++ // '<'
	var out []TypeParam
	for p.peek() != '>' {
		if p.pos >= len(p.s) {
			return nil, p.fail("unterminated type parameters")
		}
		name, err := p.identifier()
		if err != nil {
			return nil, err
		}
		tp := TypeParam{Name: name}
		if err := p.expect(':'); err != nil {
			return nil, err
		}
		if c := p.peek(); c == 'L' || c == 'T' || c == '[' {
			if tp.ClassBound, err = p.referenceType(); err != nil {
				return nil, err
			}
		}
		for p.peek() == ':' {
			p.pos++
			b, err := p.referenceType()
			if err != nil {
				return nil, err
			}
			tp.InterfaceBounds = append(tp.InterfaceBounds, *b)
		}
		out = append(out, tp)
	}
	p.pos++
	if len(out) == 0 {
		return nil, p.fail("empty type parameter list")
	}
	return out, nil
}

func (p *sigScanner) javaType() (*TypeSig, error) {
	switch c := p.peek(); c {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z':
		p.pos++
		return &TypeSig{Kind: SigBase, Base: c}, nil
	}
	return p.referenceType()
}

func (p *sigScanner) referenceType() (*TypeSig, error) {
	switch p.peek() {
	case 'L':
		c, err := p.classType()
		if err != nil {
			return nil, err
		}
		return &TypeSig{Kind: SigClass, Class: c}, nil
	case 'T':
		return p.typeVar()
	case '[':
		p.pos++
		elem, err := p.javaType()
		if err != nil {
			return nil, err
		}
		return &TypeSig{Kind: SigArray, Elem: elem}, nil
	}
	return nil, p.fail("expected reference type at %d", p.pos)
}

func (p *sigScanner) typeVar() (*TypeSig, error) {
	p.pos++ // 'T'
	name, err := p.identifier()
	if err != nil {
		return nil, err
	}
	if err := p.expect(';'); err != nil {
		return nil, err
	}
	return &TypeSig{Kind: SigTypeVar, Var: name}, nil
}

func (p *sigScanner) classType() (*ClassSig, error) {
	if err := p.expect('L'); err != nil {
		return nil, err
	}
	c := &ClassSig{}
	var pkg strings.Builder
	for {
		id, err := p.identifier()
		if err != nil {
			return nil, err
		}
		if p.peek() != '/' {
			part := SimpleClass{Name: id}
			if part.Args, err = p.typeArgs(); err != nil {
				return nil, err
			}
			c.Parts = append(c.Parts, part)
			break
		}
		p.pos++
		pkg.WriteString(id)
		pkg.WriteByte('/')
	}
	c.Package = pkg.String()
	for p.peek() == '.' {
		p.pos++
		id, err := p.identifier()
		if err != nil {
			return nil, err
		}
		part := SimpleClass{Name: id}
		if part.Args, err = p.typeArgs(); err != nil {
			return nil, err
		}
		c.Parts = append(c.Parts, part)
	}
	if err := p.expect(';'); err != nil {
		return nil, err
	}
	return c, nil
}

func (p *sigScanner) typeArgs() ([]TypeArg, error) {
	if p.peek() != '<' {
		return nil, nil
	}
	p.pos++
	var out []TypeArg
	for p.peek() != '>' {
		if p.pos >= len(p.s) {
			return nil, p.fail("unterminated type arguments")
		}
		var a TypeArg
		switch c := p.peek(); c {
		case '*':
			p.pos++
			a.Wildcard = '*'
			out = append(out, a)
			continue
		case '+', '-':
			p.pos++
			a.Wildcard = c
		}
		t, err := p.referenceType()
		if err != nil {
			return nil, err
		}
		a.Type = t
		out = append(out, a)
	}
	p.pos++
	if len(out) == 0 {
		return nil, p.fail("empty type argument list")
	}
	return out, nil
}

// CheckClassSignature reports whether the erasures of sig's superclass and
// interfaces equal the class's declared super and interfaces.
func CheckClassSignature(sig ClassSignature, super string, interfaces []string) error {
	if super != "" && sig.Super.Erasure() != super {
		return sigMismatch("superclass %s does not match %s", sig.Super.Erasure(), super)
	}
	if len(sig.Interfaces) != len(interfaces) {
		return sigMismatch("%d interfaces in signature, %d declared", len(sig.Interfaces), len(interfaces))
	}
	for i := range sig.Interfaces {
		if got := sig.Interfaces[i].Erasure(); got != interfaces[i] {
			return sigMismatch("interface %s does not match %s", got, interfaces[i])
		}
	}
	return nil
}

// CheckMethodSignature compares the parameter count of sig with desc.
// Constructors may declare fewer parameters than their descriptor since
// compilers omit synthetic outer-instance and enum parameters.
func CheckMethodSignature(sig MethodSignature, desc Method, constructor bool) error {
	n, want := len(sig.Params), len(desc.Params)
	if n == want || (constructor && n < want) {
		return nil
	}
	return sigMismatch("%d parameters in signature, %d in descriptor", n, want)
}

func sigMismatch(format string, args ...any) error {
	return classfmt.Errorf(classfmt.KindInvalidSignature, -1, format, args...)
}
