package bytecode

import (
	"fmt"
	"strconv"
	"strings"

	"jclass/internal/classfmt"
	"jclass/internal/constpool"
	"jclass/internal/descriptor"
)

// Instruction is one decoded instruction and its operand stack effect.
// Pops and Pushes are listed bottom to top.
type Instruction struct {
	Offset  int      `json:"offset"`
	Opcode  uint8    `json:"opcode"`
	Length  int      `json:"length"`
	Wide    bool     `json:"wide,omitempty"`
	Role    Role     `json:"role"`
	Pops    []Item   `json:"pops,omitempty"`
	Pushes  []Item   `json:"pushes,omitempty"`
	Local   int      `json:"local"`             // local variable index, -1 if none
	Operand int32    `json:"operand,omitempty"` // immediate: push value, iinc delta, newarray type, dimensions
	CPIndex uint16   `json:"cp_index,omitempty"`
	Symbol  string   `json:"symbol,omitempty"`  // resolved member, class or constant
	Targets []int    `json:"targets,omitempty"` // branch targets; switches list default first
	Keys    []int32  `json:"keys,omitempty"`    // switch match values, parallel to Targets[1:]
	Compare *Compare `json:"compare,omitempty"`
}

// Name returns the mnemonic.
func (in *Instruction) Name() string { return Mnemonic(in.Opcode) }

// IsInvoke reports whether in calls a method.
func (in *Instruction) IsInvoke() bool { return in.Role == RoleInvoke }

// IsJsr reports whether in is jsr or jsr_w.
func (in *Instruction) IsJsr() bool { return in.Opcode == OpJsr || in.Opcode == OpJsrW }

// FallsThrough reports whether control can continue at the next instruction.
// A jsr falls through once its subroutine returns.
func (in *Instruction) FallsThrough() bool {
	switch in.Role {
	case RoleReturn, RoleThrow, RoleSwitch:
		return false
	case RoleBranch:
		return in.Compare != nil || in.IsJsr()
	}
	return true
}

// Terminal reports whether in ends the method: a return, athrow or ret.
func (in *Instruction) Terminal() bool {
	return in.Role == RoleReturn || in.Role == RoleThrow || in.Opcode == OpRet
}

func (in *Instruction) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%4d: ", in.Offset)
	if in.Wide {
		b.WriteString("wide ")
	}
	b.WriteString(in.Name())
	switch {
	case in.Symbol != "":
		fmt.Fprintf(&b, " %s", in.Symbol)
	case in.Opcode == OpIinc:
		fmt.Fprintf(&b, " %d %d", in.Local, in.Operand)
	case in.Local >= 0 && in.Length > 1:
		fmt.Fprintf(&b, " %d", in.Local)
	case in.Opcode == OpBipush || in.Opcode == OpSipush || in.Opcode == OpNewarray:
		fmt.Fprintf(&b, " %d", in.Operand)
	}
	if in.Role == RoleSwitch {
		fmt.Fprintf(&b, " default:%d", in.Targets[0])
		for i, k := range in.Keys {
			fmt.Fprintf(&b, " %d:%d", k, in.Targets[i+1])
		}
	} else {
		for _, t := range in.Targets {
			fmt.Fprintf(&b, " %d", t)
		}
	}
	return b.String()
}

type decoder struct {
	r     *classfmt.Reader
	pool  *constpool.Pool
	major uint16 // 0 skips version checks
	base  int    // absolute offset of pc 0
	pc    int
}

// ldcSince is the first class file version whose ldc may load each tag.
var ldcSince = map[constpool.Tag]uint16{
	constpool.TagClass:        49,
	constpool.TagMethodType:   51,
	constpool.TagMethodHandle: 51,
	constpool.TagDynamic:      55,
}

func (d *decoder) fail(format string, args ...any) error {
	return classfmt.Errorf(classfmt.KindInvalidBytecode, d.base+d.pc, "pc %d: %s", d.pc, fmt.Sprintf(format, args...))
}

// locate fills in the offset of pool errors, which carry none.
func (d *decoder) locate(err error) error {
	if ce, ok := err.(*classfmt.Error); ok && ce.Offset < 0 {
		ce.Offset = d.base + d.pc
	}
	return err
}

// Decode reads the instruction stream in r, which must span exactly the
// method's code array. Branch targets are checked to land on instruction
// starts.
func Decode(r *classfmt.Reader, pool *constpool.Pool) ([]Instruction, error) {
	return DecodeVersion(r, pool, 0)
}

// DecodeVersion is Decode for code from a class file of the given major
// version. ldc of a constant kind that version cannot load is rejected.
func DecodeVersion(r *classfmt.Reader, pool *constpool.Pool, major uint16) ([]Instruction, error) {
	d := &decoder{r: r, pool: pool, major: major, base: r.Offset() - r.Position()}
	start := r.Position()
	var insts []Instruction
	for r.Remaining() > 0 {
		d.pc = r.Position() - start
		in, err := d.next()
		if err != nil {
			if classfmt.KindOf(err) == classfmt.KindInsufficientData {
				return nil, d.fail("instruction extends past end of code")
			}
			return nil, err
		}
		in.Offset = d.pc
		in.Length = r.Position() - start - d.pc
		insts = append(insts, in)
	}

	codeLen := r.Position() - start
	starts := make([]bool, codeLen)
	for _, in := range insts {
		starts[in.Offset] = true
	}
	for _, in := range insts {
		for _, t := range in.Targets {
			if t < 0 || t >= codeLen || !starts[t] {
				d.pc = in.Offset
				return nil, d.fail("%s target %d is not an instruction start", in.Name(), t)
			}
		}
	}
	return insts, nil
}

func (d *decoder) next() (Instruction, error) {
	op, err := d.r.ReadU1()
	if err != nil {
		return Instruction{}, err
	}
	info := opcodes[op]
	if info == nil {
		return Instruction{}, classfmt.Errorf(classfmt.KindUnknownTag, d.base+d.pc, "pc %d: opcode 0x%02x", d.pc, op)
	}
	in := Instruction{
		Opcode:  op,
		Role:    info.role,
		Pops:    info.pops,
		Pushes:  info.pushes,
		Local:   info.local,
		Compare: info.cmp,
	}

	switch {
	case op == OpBipush:
		v, err := d.r.ReadS1()
		in.Operand = int32(v)
		return in, err
	case op == OpSipush:
		v, err := d.r.ReadS2()
		in.Operand = int32(v)
		return in, err
	case op == OpLdc:
		idx, err := d.r.ReadU1()
		if err != nil {
			return in, err
		}
		return in, d.ldc(&in, uint16(idx), false)
	case op == OpLdcW || op == OpLdc2W:
		idx, err := d.r.ReadU2()
		if err != nil {
			return in, err
		}
		return in, d.ldc(&in, idx, op == OpLdc2W)
	case (op >= OpIload && op <= OpAload) || (op >= OpIstore && op <= OpAstore) || op == OpRet:
		v, err := d.r.ReadU1()
		in.Local = int(v)
		return in, err
	case op == OpIinc:
		v, err := d.r.ReadU1()
		if err != nil {
			return in, err
		}
		delta, err := d.r.ReadS1()
		in.Local, in.Operand = int(v), int32(delta)
		return in, err
	case (op >= OpIfeq && op <= OpJsr) || op == OpIfnull || op == OpIfnonnull:
		off, err := d.r.ReadS2()
		in.Targets = []int{d.pc + int(off)}
		return in, err
	case op == OpGotoW || op == OpJsrW:
		off, err := d.r.ReadS4()
		in.Targets = []int{d.pc + int(off)}
		return in, err
	case op == OpTableswitch:
		return in, d.tableswitch(&in)
	case op == OpLookupswitch:
		return in, d.lookupswitch(&in)
	case op >= OpGetstatic && op <= OpPutfield:
		return in, d.field(&in)
	case op >= OpInvokevirtual && op <= OpInvokedynamic:
		return in, d.invoke(&in)
	case op == OpNew || op == OpAnewarray || op == OpCheckcast || op == OpInstanceof:
		idx, err := d.r.ReadU2()
		if err != nil {
			return in, err
		}
		in.CPIndex = idx
		if in.Symbol, err = d.pool.ClassName(idx); err != nil {
			return in, d.locate(err)
		}
		if op == OpNew && strings.HasPrefix(in.Symbol, "[") {
			return in, d.fail("new of array type %s", in.Symbol)
		}
		return in, nil
	case op == OpNewarray:
		t, err := d.r.ReadU1()
		if err != nil {
			return in, err
		}
		if t < 4 || t > 11 {
			return in, d.fail("newarray type %d", t)
		}
		in.Operand = int32(t)
		return in, nil
	case op == OpMultianewarray:
		return in, d.multianewarray(&in)
	case op == OpWide:
		return in, d.wide(&in)
	}
	return in, nil
}

func (d *decoder) ldc(in *Instruction, idx uint16, wide bool) error {
	in.CPIndex = idx
	e, err := d.pool.Entry(idx)
	if err != nil {
		return d.locate(err)
	}
	var item Item
	switch v := e.(type) {
	case constpool.Integer:
		item, in.Symbol = Int, strconv.Itoa(int(v.Value))
	case constpool.Float:
		item, in.Symbol = Float, v.String()+"f"
	case constpool.Long:
		item, in.Symbol = Long, strconv.FormatInt(v.Value, 10)+"L"
	case constpool.Double:
		item, in.Symbol = Double, v.String()
	case constpool.String:
		s, err := d.pool.Utf8(v.StringIndex)
		if err != nil {
			return d.locate(err)
		}
		item, in.Symbol = Ref, strconv.Quote(s)
	case constpool.Class:
		name, err := d.pool.Utf8(v.NameIndex)
		if err != nil {
			return d.locate(err)
		}
		item, in.Symbol = Ref, name+".class"
	case constpool.MethodType:
		desc, err := d.pool.Utf8(v.DescriptorIndex)
		if err != nil {
			return d.locate(err)
		}
		item, in.Symbol = Ref, desc
	case constpool.MethodHandle:
		ref, err := d.pool.MemberRef(v.ReferenceIndex)
		if err != nil {
			return d.locate(err)
		}
		item, in.Symbol = Ref, ref.String()
	case constpool.Dynamic:
		name, desc, err := d.pool.NameAndType(v.NameAndTypeIndex)
		if err != nil {
			return d.locate(err)
		}
		ft, err := descriptor.ParseField(desc)
		if err != nil {
			return d.locate(err)
		}
		item, in.Symbol = ItemOf(ft), name+":"+desc
	default:
		return d.locate(classfmt.IndexError(int(idx), "loadable constant", e.Tag().String()))
	}
	if since := ldcSince[e.Tag()]; d.major != 0 && d.major < since {
		return d.fail("ldc of %s needs class file version %d, got %d", e.Tag(), since, d.major)
	}
	want := 1
	if wide {
		want = 2
	}
	if item.Category() != want {
		return d.locate(classfmt.IndexError(int(idx), fmt.Sprintf("category %d constant", want), e.Tag().String()))
	}
	in.Pushes = []Item{item}
	return nil
}

// pad skips the 0-3 bytes that align switch operands to a multiple of four
// from the start of the code array.
func (d *decoder) pad() error {
	return d.r.Skip((4 - (d.pc+1)%4) % 4)
}

func (d *decoder) tableswitch(in *Instruction) error {
	if err := d.pad(); err != nil {
		return err
	}
	def, err := d.r.ReadS4()
	if err != nil {
		return err
	}
	low, err := d.r.ReadS4()
	if err != nil {
		return err
	}
	high, err := d.r.ReadS4()
	if err != nil {
		return err
	}
	if low > high {
		return d.fail("tableswitch low %d > high %d", low, high)
	}
	n := int64(high) - int64(low) + 1
	if n*4 > int64(d.r.Remaining()) {
		return d.fail("tableswitch with %d entries extends past end of code", n)
	}
	in.Targets = make([]int, 0, n+1)
	in.Keys = make([]int32, 0, n)
	in.Targets = append(in.Targets, d.pc+int(def))
	for i := int64(0); i < n; i++ {
		off, err := d.r.ReadS4()
		if err != nil {
			return err
		}
		in.Keys = append(in.Keys, int32(int64(low)+i))
		in.Targets = append(in.Targets, d.pc+int(off))
	}
	return nil
}

func (d *decoder) lookupswitch(in *Instruction) error {
	if err := d.pad(); err != nil {
		return err
	}
	def, err := d.r.ReadS4()
	if err != nil {
		return err
	}
	npairs, err := d.r.ReadS4()
	if err != nil {
		return err
	}
	if npairs < 0 || int64(npairs)*8 > int64(d.r.Remaining()) {
		return d.fail("lookupswitch with %d pairs", npairs)
	}
	in.Targets = append(make([]int, 0, npairs+1), d.pc+int(def))
	in.Keys = make([]int32, 0, npairs)
	for i := 0; i < int(npairs); i++ {
		key, err := d.r.ReadS4()
		if err != nil {
			return err
		}
		off, err := d.r.ReadS4()
		if err != nil {
			return err
		}
		if i > 0 && key <= in.Keys[i-1] {
			return d.fail("lookupswitch keys not sorted at %d", key)
		}
		in.Keys = append(in.Keys, key)
		in.Targets = append(in.Targets, d.pc+int(off))
	}
	return nil
}

func (d *decoder) field(in *Instruction) error {
	idx, err := d.r.ReadU2()
	if err != nil {
		return err
	}
	in.CPIndex = idx
	ref, err := d.pool.MemberRef(idx)
	if err != nil {
		return d.locate(err)
	}
	if ref.Tag != constpool.TagFieldref {
		return d.locate(classfmt.IndexError(int(idx), "Fieldref", ref.Tag.String()))
	}
	ft, err := descriptor.ParseField(ref.Descriptor)
	if err != nil {
		return d.locate(err)
	}
	in.Symbol = ref.String()
	v := ItemOf(ft)
	switch in.Opcode {
	case OpGetstatic:
		in.Pushes = []Item{v}
	case OpPutstatic:
		in.Pops = []Item{v}
	case OpGetfield:
		in.Pops, in.Pushes = []Item{Ref}, []Item{v}
	case OpPutfield:
		in.Pops = []Item{Ref, v}
	}
	return nil
}

func (d *decoder) invoke(in *Instruction) error {
	idx, err := d.r.ReadU2()
	if err != nil {
		return err
	}
	in.CPIndex = idx

	var name, desc string
	if in.Opcode == OpInvokedynamic {
		e, err := d.pool.Entry(idx)
		if err != nil {
			return d.locate(err)
		}
		indy, ok := e.(constpool.InvokeDynamic)
		if !ok {
			return d.locate(classfmt.IndexError(int(idx), "InvokeDynamic", e.Tag().String()))
		}
		if name, desc, err = d.pool.NameAndType(indy.NameAndTypeIndex); err != nil {
			return d.locate(err)
		}
		in.Symbol = fmt.Sprintf("#%d:%s:%s", indy.BootstrapIndex, name, desc)
		z, err := d.r.ReadU2()
		if err != nil {
			return err
		}
		if z != 0 {
			return d.fail("invokedynamic reserved bytes are 0x%04x", z)
		}
	} else {
		ref, err := d.pool.MemberRef(idx)
		if err != nil {
			return d.locate(err)
		}
		var ok bool
		switch in.Opcode {
		case OpInvokevirtual:
			ok = ref.Tag == constpool.TagMethodref
		case OpInvokeinterface:
			ok = ref.Tag == constpool.TagInterfaceMethodref
		default:
			ok = ref.Tag == constpool.TagMethodref || ref.Tag == constpool.TagInterfaceMethodref
		}
		if !ok {
			return d.locate(classfmt.IndexError(int(idx), "method reference", ref.Tag.String()))
		}
		name, desc = ref.Name, ref.Descriptor
		in.Symbol = ref.String()
	}

	if name == "<clinit>" || (name == "<init>" && in.Opcode != OpInvokespecial) {
		return d.fail("%s cannot invoke %s", in.Name(), name)
	}
	m, err := descriptor.ParseMethod(desc)
	if err != nil {
		return d.locate(err)
	}

	if in.Opcode == OpInvokeinterface {
		count, err := d.r.ReadU1()
		if err != nil {
			return err
		}
		zero, err := d.r.ReadU1()
		if err != nil {
			return err
		}
		if int(count) != 1+m.ParamSlots() {
			return d.fail("invokeinterface count %d, descriptor needs %d", count, 1+m.ParamSlots())
		}
		if zero != 0 {
			return d.fail("invokeinterface reserved byte is %d", zero)
		}
	}

	pops := make([]Item, 0, len(m.Params)+1)
	if in.Opcode != OpInvokestatic && in.Opcode != OpInvokedynamic {
		pops = append(pops, Ref)
	}
	for _, p := range m.Params {
		pops = append(pops, ItemOf(p))
	}
	in.Pops = pops
	if m.Return != nil {
		in.Pushes = []Item{ItemOf(*m.Return)}
	}
	return nil
}

func (d *decoder) multianewarray(in *Instruction) error {
	idx, err := d.r.ReadU2()
	if err != nil {
		return err
	}
	dims, err := d.r.ReadU1()
	if err != nil {
		return err
	}
	in.CPIndex, in.Operand = idx, int32(dims)
	if in.Symbol, err = d.pool.ClassName(idx); err != nil {
		return d.locate(err)
	}
	ft, err := descriptor.ParseField(in.Symbol)
	if err != nil || dims == 0 || ft.Dims < int(dims) {
		return d.fail("multianewarray of %s with %d dimensions", in.Symbol, dims)
	}
	in.Pops = make([]Item, dims)
	for i := range in.Pops {
		in.Pops[i] = Int
	}
	return nil
}

func (d *decoder) wide(in *Instruction) error {
	op, err := d.r.ReadU1()
	if err != nil {
		return err
	}
	if !((op >= OpIload && op <= OpAload) || (op >= OpIstore && op <= OpAstore) || op == OpRet || op == OpIinc) {
		return d.fail("wide cannot modify opcode 0x%02x", op)
	}
	info := opcodes[op]
	in.Opcode, in.Wide = op, true
	in.Role, in.Pops, in.Pushes = info.role, info.pops, info.pushes
	idx, err := d.r.ReadU2()
	if err != nil {
		return err
	}
	in.Local = int(idx)
	if op == OpIinc {
		delta, err := d.r.ReadS2()
		if err != nil {
			return err
		}
		in.Operand = int32(delta)
	}
	return nil
}

// Index maps each instruction offset to its position in insts.
func Index(insts []Instruction) map[int]int {
	m := make(map[int]int, len(insts))
	for i, in := range insts {
		m[in.Offset] = i
	}
	return m
}
