package bytecode

import (
	"math"
	"reflect"
	"testing"

	"jclass/internal/classfmt"
	"jclass/internal/classtest"
	"jclass/internal/constpool"
)

func pool(t *testing.T, b *classtest.Builder) *constpool.Pool {
	t.Helper()
	p, err := constpool.Parse(classfmt.NewReader(b.PoolBytes()), classfmt.Options{})
	if err != nil {
		t.Fatalf("pool: %v", err)
	}
	return p
}

func decode(t *testing.T, b *classtest.Builder, code ...[]byte) ([]Instruction, error) {
	t.Helper()
	return Decode(classfmt.NewReader(classtest.Cat(code...)), pool(t, b))
}

func mustDecode(t *testing.T, b *classtest.Builder, code ...[]byte) []Instruction {
	t.Helper()
	insts, err := decode(t, b, code...)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	return insts
}

func TestDecode_Constructor(t *testing.T) {
	b := classtest.New()
	init := b.Methodref("java/lang/Object", "<init>", "()V")
	insts := mustDecode(t, b, []byte{0x2a, 0xb7}, classtest.U2(init), []byte{0xb1})

	if len(insts) != 3 {
		t.Fatalf("instructions = %d, want 3", len(insts))
	}
	wantOffsets := []int{0, 1, 4}
	wantNames := []string{"aload_0", "invokespecial", "return"}
	for i, in := range insts {
		if in.Offset != wantOffsets[i] || in.Name() != wantNames[i] {
			t.Errorf("inst %d = %s@%d, want %s@%d", i, in.Name(), in.Offset, wantNames[i], wantOffsets[i])
		}
	}
	if insts[0].Local != 0 || !reflect.DeepEqual(insts[0].Pushes, []Item{Ref}) {
		t.Errorf("aload_0 = local %d pushes %v", insts[0].Local, insts[0].Pushes)
	}
	call := insts[1]
	if call.Symbol != "java/lang/Object.<init>:()V" {
		t.Errorf("symbol = %q", call.Symbol)
	}
	if !reflect.DeepEqual(call.Pops, []Item{Ref}) || len(call.Pushes) != 0 {
		t.Errorf("invokespecial pops %v pushes %v", call.Pops, call.Pushes)
	}
	if call.Length != 3 || call.CPIndex != init {
		t.Errorf("invokespecial length %d cp %d", call.Length, call.CPIndex)
	}
	if !insts[2].Terminal() {
		t.Error("return should be terminal")
	}
}

func TestDecode_TableswitchPadding(t *testing.T) {
	// iconst_0 at 0, tableswitch at 1 with two pad bytes, returns at 24 and 25.
	code := classtest.Cat(
		[]byte{0x03, 0xaa, 0, 0},
		classtest.U4(23), // default -> 24
		classtest.U4(0), classtest.U4(1),
		classtest.U4(23), classtest.U4(24),
		[]byte{0xb1, 0xb1},
	)
	insts := mustDecode(t, classtest.New(), code)
	if len(insts) != 4 {
		t.Fatalf("instructions = %d, want 4", len(insts))
	}
	sw := insts[1]
	if sw.Length != 23 {
		t.Errorf("tableswitch length = %d, want 23", sw.Length)
	}
	if !reflect.DeepEqual(sw.Targets, []int{24, 24, 25}) {
		t.Errorf("targets = %v", sw.Targets)
	}
	if !reflect.DeepEqual(sw.Keys, []int32{0, 1}) {
		t.Errorf("keys = %v", sw.Keys)
	}
	if sw.FallsThrough() {
		t.Error("switch should not fall through")
	}
}

func TestDecode_LookupswitchAligned(t *testing.T) {
	// lookupswitch at 3 needs no padding.
	code := classtest.Cat(
		[]byte{0x00, 0x00, 0x03, 0xab},
		classtest.U4(25), // default -> 28
		classtest.U4(2),
		classtest.U4(0xffffffff), classtest.U4(25), // -1 -> 28
		classtest.U4(7), classtest.U4(26), // 7 -> 29
		[]byte{0xb1, 0xb1},
	)
	insts := mustDecode(t, classtest.New(), code)
	sw := insts[3]
	if sw.Length != 25 {
		t.Errorf("lookupswitch length = %d, want 25", sw.Length)
	}
	if !reflect.DeepEqual(sw.Keys, []int32{-1, 7}) || !reflect.DeepEqual(sw.Targets, []int{28, 28, 29}) {
		t.Errorf("keys %v targets %v", sw.Keys, sw.Targets)
	}
}

func TestDecode_Wide(t *testing.T) {
	insts := mustDecode(t, classtest.New(),
		[]byte{0xc4, 0x84, 0x01, 0x00, 0xff, 0xfe}, // wide iinc 256 -2
		[]byte{0xc4, 0x16, 0x01, 0x02},             // wide lload 258
		[]byte{0xb1},
	)
	iinc := insts[0]
	if !iinc.Wide || iinc.Opcode != OpIinc || iinc.Local != 256 || iinc.Operand != -2 || iinc.Length != 6 {
		t.Errorf("wide iinc = %+v", iinc)
	}
	load := insts[1]
	if !load.Wide || load.Name() != "lload" || load.Local != 258 || load.Offset != 6 {
		t.Errorf("wide lload = %+v", load)
	}
	if err := CheckLocals(insts, 260); err != nil {
		t.Errorf("CheckLocals(260): %v", err)
	}
	if err := CheckLocals(insts, 259); classfmt.KindOf(err) != classfmt.KindInvalidBytecode {
		t.Errorf("CheckLocals(259) = %v, want InvalidBytecode", err)
	}
}

func TestDecode_Constants(t *testing.T) {
	b := classtest.New()
	long := b.Long(5)
	str := b.String("hi")
	ints := b.Integer(-7)
	insts := mustDecode(t, b,
		[]byte{0x14}, classtest.U2(long),
		[]byte{0x12, byte(str)},
		[]byte{0x13}, classtest.U2(ints),
		[]byte{0x10, 0xf0},
		[]byte{0x11, 0x01, 0x00},
		[]byte{0xb1},
	)
	tests := []struct {
		sym     string
		pushes  Item
		operand int32
	}{
		{"5L", Long, 0},
		{`"hi"`, Ref, 0},
		{"-7", Int, 0},
		{"", Int, -16},
		{"", Int, 256},
	}
	for i, tt := range tests {
		in := insts[i]
		if in.Symbol != tt.sym || in.Pushes[0] != tt.pushes || in.Operand != tt.operand {
			t.Errorf("%s: symbol %q pushes %v operand %d", in.Name(), in.Symbol, in.Pushes, in.Operand)
		}
	}
}

func TestDecode_Errors(t *testing.T) {
	tests := []struct {
		name string
		code func(b *classtest.Builder) []byte
		kind classfmt.Kind
	}{
		{"unassigned opcode", func(*classtest.Builder) []byte { return []byte{0xca} }, classfmt.KindUnknownTag},
		{"opcode 0xff", func(*classtest.Builder) []byte { return []byte{0x00, 0xff} }, classfmt.KindUnknownTag},
		{"truncated operand", func(*classtest.Builder) []byte { return []byte{0x11, 0x01} }, classfmt.KindInvalidBytecode},
		{"target inside instruction", func(*classtest.Builder) []byte {
			return []byte{0xa7, 0x00, 0x01, 0xb1}
		}, classfmt.KindInvalidBytecode},
		{"target past end", func(*classtest.Builder) []byte {
			return []byte{0xa7, 0x00, 0x04, 0xb1}
		}, classfmt.KindInvalidBytecode},
		{"backward target before start", func(*classtest.Builder) []byte {
			return []byte{0x00, 0xa7, 0xff, 0xfe}
		}, classfmt.KindInvalidBytecode},
		{"wide of non-local opcode", func(*classtest.Builder) []byte {
			return []byte{0xc4, 0x60, 0x00, 0x00}
		}, classfmt.KindInvalidBytecode},
		{"tableswitch low above high", func(*classtest.Builder) []byte {
			return classtest.Cat([]byte{0xaa, 0, 0, 0}, classtest.U4(0), classtest.U4(2), classtest.U4(1))
		}, classfmt.KindInvalidBytecode},
		{"lookupswitch unsorted", func(*classtest.Builder) []byte {
			return classtest.Cat([]byte{0xab, 0, 0, 0}, classtest.U4(20), classtest.U4(2),
				classtest.U4(5), classtest.U4(20), classtest.U4(4), classtest.U4(20), []byte{0xb1})
		}, classfmt.KindInvalidBytecode},
		{"ldc of long", func(b *classtest.Builder) []byte {
			return []byte{0x12, byte(b.Long(1))}
		}, classfmt.KindInvalidConstantPoolIndex},
		{"ldc2_w of int", func(b *classtest.Builder) []byte {
			return classtest.Cat([]byte{0x14}, classtest.U2(b.Integer(1)))
		}, classfmt.KindInvalidConstantPoolIndex},
		{"ldc of utf8", func(b *classtest.Builder) []byte {
			return []byte{0x12, byte(b.Utf8("x"))}
		}, classfmt.KindInvalidConstantPoolIndex},
		{"getfield of methodref", func(b *classtest.Builder) []byte {
			return classtest.Cat([]byte{0xb4}, classtest.U2(b.Methodref("A", "m", "()V")))
		}, classfmt.KindInvalidConstantPoolIndex},
		{"invokevirtual of <init>", func(b *classtest.Builder) []byte {
			return classtest.Cat([]byte{0xb6}, classtest.U2(b.Methodref("A", "<init>", "()V")))
		}, classfmt.KindInvalidBytecode},
		{"invokestatic of <clinit>", func(b *classtest.Builder) []byte {
			return classtest.Cat([]byte{0xb8}, classtest.U2(b.Methodref("A", "<clinit>", "()V")))
		}, classfmt.KindInvalidBytecode},
		{"invokeinterface count", func(b *classtest.Builder) []byte {
			return classtest.Cat([]byte{0xb9}, classtest.U2(b.InterfaceMethodref("I", "m", "(J)V")), []byte{2, 0})
		}, classfmt.KindInvalidBytecode},
		{"invokeinterface reserved byte", func(b *classtest.Builder) []byte {
			return classtest.Cat([]byte{0xb9}, classtest.U2(b.InterfaceMethodref("I", "m", "(J)V")), []byte{3, 1})
		}, classfmt.KindInvalidBytecode},
		{"invokeinterface of methodref", func(b *classtest.Builder) []byte {
			return classtest.Cat([]byte{0xb9}, classtest.U2(b.Methodref("I", "m", "()V")), []byte{1, 0})
		}, classfmt.KindInvalidConstantPoolIndex},
		{"invokedynamic reserved bytes", func(b *classtest.Builder) []byte {
			return classtest.Cat([]byte{0xba}, classtest.U2(b.InvokeDynamic(0, "run", "()V")), []byte{0, 1})
		}, classfmt.KindInvalidBytecode},
		{"new of array", func(b *classtest.Builder) []byte {
			return classtest.Cat([]byte{0xbb}, classtest.U2(b.Class("[I")))
		}, classfmt.KindInvalidBytecode},
		{"newarray bad type", func(*classtest.Builder) []byte {
			return []byte{0x03, 0xbc, 0x03}
		}, classfmt.KindInvalidBytecode},
		{"multianewarray too many dims", func(b *classtest.Builder) []byte {
			return classtest.Cat([]byte{0xc5}, classtest.U2(b.Class("[[I")), []byte{3})
		}, classfmt.KindInvalidBytecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := classtest.New()
			code := tt.code(b)
			_, err := decode(t, b, code)
			if got := classfmt.KindOf(err); got != tt.kind {
				t.Fatalf("err = %v (kind %v), want %v", err, got, tt.kind)
			}
		})
	}
}

func TestDecodeVersion_Ldc(t *testing.T) {
	class := func(b *classtest.Builder) uint16 { return b.Class("A") }
	mtype := func(b *classtest.Builder) uint16 { return b.MethodType("()V") }
	handle := func(b *classtest.Builder) uint16 {
		return b.MethodHandle(constpool.RefInvokeStatic, b.Methodref("A", "m", "()V"))
	}
	dynamic := func(b *classtest.Builder) uint16 { return b.Dynamic(0, "x", "I") }
	tests := []struct {
		name  string
		entry func(b *classtest.Builder) uint16
		major uint16
		ok    bool
	}{
		{"class at 49", class, 49, true},
		{"class at 48", class, 48, false},
		{"method type at 51", mtype, 51, true},
		{"method type at 50", mtype, 50, false},
		{"method handle at 51", handle, 51, true},
		{"method handle at 50", handle, 50, false},
		{"dynamic at 55", dynamic, 55, true},
		{"dynamic at 54", dynamic, 54, false},
		{"string at 45", func(b *classtest.Builder) uint16 { return b.String("s") }, 45, true},
		{"class without version", class, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := classtest.New()
			idx := tt.entry(b)
			_, err := DecodeVersion(classfmt.NewReader([]byte{0x12, byte(idx)}), pool(t, b), tt.major)
			if tt.ok {
				if err != nil {
					t.Fatalf("DecodeVersion: %v", err)
				}
				return
			}
			if got := classfmt.KindOf(err); got != classfmt.KindInvalidBytecode {
				t.Fatalf("err = %v (kind %v), want InvalidBytecode", err, got)
			}
		})
	}
}

func TestDecode_NonFiniteConstants(t *testing.T) {
	b := classtest.New()
	nan := b.Raw(4, classtest.U4(0x7fc00000)...)
	inf := b.Double(math.Inf(-1))
	insts := mustDecode(t, b, []byte{0x12, byte(nan)}, []byte{0x14}, classtest.U2(inf))
	if insts[0].Symbol != "NaNf" || insts[0].Pushes[0] != Float {
		t.Errorf("ldc float: symbol %q pushes %v", insts[0].Symbol, insts[0].Pushes)
	}
	if insts[1].Symbol != "-Inf" || insts[1].Pushes[0] != Double {
		t.Errorf("ldc2_w double: symbol %q pushes %v", insts[1].Symbol, insts[1].Pushes)
	}
}

func TestDecode_Invoke(t *testing.T) {
	b := classtest.New()
	iface := b.InterfaceMethodref("java/util/List", "get", "(I)Ljava/lang/Object;")
	static := b.Methodref("Util", "sum", "(JD[I)J")
	indy := b.InvokeDynamic(0, "run", "(Ljava/lang/String;)Ljava/lang/Runnable;")
	insts := mustDecode(t, b,
		[]byte{0xb9}, classtest.U2(iface), []byte{2, 0},
		[]byte{0xb8}, classtest.U2(static),
		[]byte{0xba}, classtest.U2(indy), []byte{0, 0},
	)
	tests := []struct {
		pops   []Item
		pushes []Item
		length int
	}{
		{[]Item{Ref, Int}, []Item{Ref}, 5},
		{[]Item{Long, Double, Ref}, []Item{Long}, 3},
		{[]Item{Ref}, []Item{Ref}, 5},
	}
	for i, tt := range tests {
		in := insts[i]
		if !in.IsInvoke() {
			t.Errorf("%s: not an invoke", in.Name())
		}
		if !reflect.DeepEqual(in.Pops, tt.pops) || !reflect.DeepEqual(in.Pushes, tt.pushes) || in.Length != tt.length {
			t.Errorf("%s: pops %v pushes %v length %d", in.Name(), in.Pops, in.Pushes, in.Length)
		}
	}
	if insts[2].Symbol != "#0:run:(Ljava/lang/String;)Ljava/lang/Runnable;" {
		t.Errorf("indy symbol = %q", insts[2].Symbol)
	}
}

func TestMnemonic(t *testing.T) {
	tests := map[uint8]string{
		0x00: "nop",
		0x1a: "iload_0",
		0x2d: "aload_3",
		0x60: "iadd",
		0x7f: "land",
		0x83: "lxor",
		0x93: "i2s",
		0x9f: "if_icmpeq",
		0xc9: "jsr_w",
		0xca: "",
		0xff: "",
	}
	for op, want := range tests {
		if got := Mnemonic(op); got != want {
			t.Errorf("Mnemonic(0x%02x) = %q, want %q", op, got, want)
		}
	}
}
