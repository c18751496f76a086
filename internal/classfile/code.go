package classfile

import (
	"fmt"

	"jclass/internal/annotation"
	"jclass/internal/bytecode"
	"jclass/internal/classfmt"
	"jclass/internal/descriptor"
	"jclass/internal/stackmap"
)

// code decodes a Code attribute body for m and runs the instruction, stack
// and stack map checks over it.
func (p *parser) code(m *Method, r *classfmt.Reader) (*Code, error) {
	c := &Code{}
	var err error
	if c.MaxStack, err = r.ReadU2(); err != nil {
		return nil, err
	}
	if c.MaxLocals, err = r.ReadU2(); err != nil {
		return nil, err
	}
	at := r.Offset()
	length, err := r.ReadU4()
	if err != nil {
		return nil, err
	}
	if length == 0 {
		return nil, classfmt.Errorf(classfmt.KindInvalidBytecode, at, "empty code array")
	}
	if limit := p.s.opts.EffectiveMaxCodeLength(); int64(length) > int64(limit) {
		return nil, classfmt.Errorf(classfmt.KindDataTooLarge, at, "code_length %d exceeds %d", length, limit)
	}
	c.Length = int(length)

	start := r.Offset()
	body, err := r.Sub(c.Length)
	if err != nil {
		return nil, err
	}
	if c.Instructions, err = bytecode.DecodeVersion(body, p.pool, p.c.MajorVersion); err != nil {
		return nil, err
	}
	if c.Handlers, err = p.exceptionTable(r); err != nil {
		return nil, err
	}
	if err := bytecode.CheckHandlers(c.Instructions, c.Length, c.Handlers); err != nil {
		return nil, locate(err, start)
	}
	if err := bytecode.CheckLocals(c.Instructions, int(c.MaxLocals)); err != nil {
		return nil, locate(err, start)
	}
	initial := stackmap.InitialLocals(p.c.Name, m.Name, m.AccessFlags.Has(AccStatic), m.Type)
	if n := stackmap.Slots(initial); n > int(c.MaxLocals) {
		return nil, classfmt.Errorf(classfmt.KindInvalidBytecode, start,
			"parameters need %d locals, max_locals is %d", n, c.MaxLocals)
	}

	if c.Unknown, err = p.attributes(r, p.codeAttr(c)); err != nil {
		return nil, err
	}

	flow, err := bytecode.Simulate(c.Instructions, c.Handlers, int(c.MaxStack))
	if err != nil {
		return nil, locate(err, start)
	}
	states, err := stackmap.Expand(initial, c.Frames)
	if err != nil {
		return nil, locate(err, start)
	}
	if err := stackmap.Check(states, c.Instructions, flow, int(c.MaxLocals), int(c.MaxStack)); err != nil {
		return nil, locate(err, start)
	}
	return c, nil
}

func (p *parser) exceptionTable(r *classfmt.Reader) ([]bytecode.Handler, error) {
	n, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	out := make([]bytecode.Handler, 0, n)
	for range int(n) {
		var h bytecode.Handler
		if h.StartPC, err = r.ReadU2(); err != nil {
			return nil, err
		}
		if h.EndPC, err = r.ReadU2(); err != nil {
			return nil, err
		}
		if h.HandlerPC, err = r.ReadU2(); err != nil {
			return nil, err
		}
		if h.CatchType, err = p.optClassRef(r); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, nil
}

func (p *parser) codeAttr(c *Code) attrHandler {
	return func(name string, r *classfmt.Reader) (bool, error) {
		var (
			err   error
			table []LocalVariable
		)
		switch name {
		case "StackMapTable":
			c.Frames, err = stackmap.Decode(r, p.pool)
		case "LineNumberTable":
			var lines []LineNumber
			if lines, err = p.lineNumbers(r, c.Length); err == nil {
				c.LineNumbers = append(c.LineNumbers, lines...)
			}
		case "LocalVariableTable":
			if table, err = p.localVariables(r, c.Length, false); err == nil {
				c.LocalVariables = append(c.LocalVariables, table...)
			}
		case "LocalVariableTypeTable":
			if table, err = p.localVariables(r, c.Length, true); err == nil {
				c.LocalVariableTypes = append(c.LocalVariableTypes, table...)
			}
		case "RuntimeVisibleTypeAnnotations":
			c.TypeAnnotations.VisibleType, err = annotation.DecodeTypeAnnotations(r, p.pool, annotation.OnCode)
		case "RuntimeInvisibleTypeAnnotations":
			c.TypeAnnotations.InvisibleType, err = annotation.DecodeTypeAnnotations(r, p.pool, annotation.OnCode)
		default:
			return false, nil
		}
		return true, err
	}
}

func (p *parser) lineNumbers(r *classfmt.Reader, codeLen int) ([]LineNumber, error) {
	n, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	out := make([]LineNumber, 0, n)
	for range int(n) {
		at := r.Offset()
		var ln LineNumber
		if ln.StartPC, err = r.ReadU2(); err != nil {
			return nil, err
		}
		if ln.Line, err = r.ReadU2(); err != nil {
			return nil, err
		}
		if int(ln.StartPC) >= codeLen {
			return nil, classfmt.Errorf(classfmt.KindInvalidBytecode, at, "line %d starts at pc %d past code end", ln.Line, ln.StartPC)
		}
		out = append(out, ln)
	}
	return out, nil
}

// localVariables reads a LocalVariableTable, or a LocalVariableTypeTable
// when generic is set.
func (p *parser) localVariables(r *classfmt.Reader, codeLen int, generic bool) ([]LocalVariable, error) {
	n, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	out := make([]LocalVariable, 0, n)
	for range int(n) {
		at := r.Offset()
		var lv LocalVariable
		if lv.StartPC, err = r.ReadU2(); err != nil {
			return nil, err
		}
		if lv.Length, err = r.ReadU2(); err != nil {
			return nil, err
		}
		if lv.Name, err = p.utf8(r); err != nil {
			return nil, err
		}
		if lv.Descriptor, err = p.utf8(r); err != nil {
			return nil, err
		}
		if lv.Index, err = r.ReadU2(); err != nil {
			return nil, err
		}
		if end := int(lv.StartPC) + int(lv.Length); end > codeLen {
			return nil, classfmt.Errorf(classfmt.KindInvalidBytecode, at, "local %s covers [%d,%d) past code end %d", lv.Name, lv.StartPC, end, codeLen)
		}
		if generic {
			_, err = descriptor.ParseFieldSignature(lv.Descriptor)
		} else {
			_, err = descriptor.ParseField(lv.Descriptor)
		}
		if err != nil {
			return nil, fmt.Errorf("local %s: %w", lv.Name, locate(err, at+6))
		}
		out = append(out, lv)
	}
	return out, nil
}
