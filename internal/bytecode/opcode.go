package bytecode

// Opcodes referenced by the decoder and simulator.
const (
	OpNop             = 0x00
	OpAconstNull      = 0x01
	OpBipush          = 0x10
	OpSipush          = 0x11
	OpLdc             = 0x12
	OpLdcW            = 0x13
	OpLdc2W           = 0x14
	OpIload           = 0x15
	OpAload           = 0x19
	OpIload0          = 0x1a
	OpAload3          = 0x2d
	OpIaload          = 0x2e
	OpIstore          = 0x36
	OpAstore          = 0x3a
	OpIstore0         = 0x3b
	OpAstore3         = 0x4e
	OpIastore         = 0x4f
	OpPop             = 0x57
	OpPop2            = 0x58
	OpDup             = 0x59
	OpDupX1           = 0x5a
	OpDupX2           = 0x5b
	OpDup2            = 0x5c
	OpDup2X1          = 0x5d
	OpDup2X2          = 0x5e
	OpSwap            = 0x5f
	OpIinc            = 0x84
	OpIfeq            = 0x99
	OpIfle            = 0x9e
	OpIfIcmpeq        = 0x9f
	OpIfIcmple        = 0xa4
	OpIfAcmpeq        = 0xa5
	OpIfAcmpne        = 0xa6
	OpGoto            = 0xa7
	OpJsr             = 0xa8
	OpRet             = 0xa9
	OpTableswitch     = 0xaa
	OpLookupswitch    = 0xab
	OpIreturn         = 0xac
	OpReturn          = 0xb1
	OpGetstatic       = 0xb2
	OpPutstatic       = 0xb3
	OpGetfield        = 0xb4
	OpPutfield        = 0xb5
	OpInvokevirtual   = 0xb6
	OpInvokespecial   = 0xb7
	OpInvokestatic    = 0xb8
	OpInvokeinterface = 0xb9
	OpInvokedynamic   = 0xba
	OpNew             = 0xbb
	OpNewarray        = 0xbc
	OpAnewarray       = 0xbd
	OpAthrow          = 0xbf
	OpCheckcast       = 0xc0
	OpInstanceof      = 0xc1
	OpWide            = 0xc4
	OpMultianewarray  = 0xc5
	OpIfnull          = 0xc6
	OpIfnonnull       = 0xc7
	OpGotoW           = 0xc8
	OpJsrW            = 0xc9
)

type opInfo struct {
	name   string
	size   int // total length including the opcode; 0 = variable or computed
	role   Role
	pops   []Item
	pushes []Item
	local  int // implicit local index (xload_n/xstore_n), -1 otherwise
	cmp    *Compare
}

var opcodes [256]*opInfo

func def(op int, name string, size int, role Role, pops, pushes []Item) *opInfo {
	info := &opInfo{name: name, size: size, role: role, pops: pops, pushes: pushes, local: -1}
	opcodes[op] = info
	return info
}

func items(k ...Item) []Item { return k }

func init() {
	def(OpNop, "nop", 1, RoleNop, nil, nil)
	def(OpAconstNull, "aconst_null", 1, RoleConst, nil, items(Ref))
	for i, n := range []string{"iconst_m1", "iconst_0", "iconst_1", "iconst_2", "iconst_3", "iconst_4", "iconst_5"} {
		def(0x02+i, n, 1, RoleConst, nil, items(Int))
	}
	def(0x09, "lconst_0", 1, RoleConst, nil, items(Long))
	def(0x0a, "lconst_1", 1, RoleConst, nil, items(Long))
	def(0x0b, "fconst_0", 1, RoleConst, nil, items(Float))
	def(0x0c, "fconst_1", 1, RoleConst, nil, items(Float))
	def(0x0d, "fconst_2", 1, RoleConst, nil, items(Float))
	def(0x0e, "dconst_0", 1, RoleConst, nil, items(Double))
	def(0x0f, "dconst_1", 1, RoleConst, nil, items(Double))
	def(OpBipush, "bipush", 2, RoleConst, nil, items(Int))
	def(OpSipush, "sipush", 3, RoleConst, nil, items(Int))
	def(OpLdc, "ldc", 2, RoleConst, nil, nil)
	def(OpLdcW, "ldc_w", 3, RoleConst, nil, nil)
	def(OpLdc2W, "ldc2_w", 3, RoleConst, nil, nil)

	// Typed families in the order int, long, float, double, reference.
	kinds := []Item{Int, Long, Float, Double, Ref}
	prefix := []string{"i", "l", "f", "d", "a"}
	for t, k := range kinds {
		def(OpIload+t, prefix[t]+"load", 2, RoleLoad, nil, items(k))
		store := k
		if k == Ref {
			store = Any1 // astore also stores return addresses
		}
		def(OpIstore+t, prefix[t]+"store", 2, RoleStore, items(store), nil)
		for n := 0; n < 4; n++ {
			def(OpIload0+4*t+n, prefix[t]+"load_"+string(rune('0'+n)), 1, RoleLoad, nil, items(k)).local = n
			def(OpIstore0+4*t+n, prefix[t]+"store_"+string(rune('0'+n)), 1, RoleStore, items(store), nil).local = n
		}
		def(OpIreturn+t, prefix[t]+"return", 1, RoleReturn, items(k), nil)
	}

	// Array loads and stores: int long float double ref byte char short.
	arrayKinds := []Item{Int, Long, Float, Double, Ref, Int, Int, Int}
	arrayPrefix := []string{"i", "l", "f", "d", "a", "b", "c", "s"}
	for t, k := range arrayKinds {
		def(OpIaload+t, arrayPrefix[t]+"aload", 1, RoleArrayLoad, items(Ref, Int), items(k))
		def(OpIastore+t, arrayPrefix[t]+"astore", 1, RoleArrayStore, items(Ref, Int, k), nil)
	}

	for op, n := range map[int]string{
		OpPop: "pop", OpPop2: "pop2", OpDup: "dup", OpDupX1: "dup_x1", OpDupX2: "dup_x2",
		OpDup2: "dup2", OpDup2X1: "dup2_x1", OpDup2X2: "dup2_x2", OpSwap: "swap",
	} {
		def(op, n, 1, RoleStack, nil, nil)
	}

	// Arithmetic: add sub mul div rem neg for i l f d.
	num := []Item{Int, Long, Float, Double}
	for g, n := range []string{"add", "sub", "mul", "div", "rem"} {
		for t, k := range num {
			def(0x60+4*g+t, prefix[t]+n, 1, RoleArith, items(k, k), items(k))
		}
	}
	for t, k := range num {
		def(0x74+t, prefix[t]+"neg", 1, RoleArith, items(k), items(k))
	}
	for g, n := range []string{"shl", "shr", "ushr"} {
		def(0x78+2*g, "i"+n, 1, RoleArith, items(Int, Int), items(Int))
		def(0x79+2*g, "l"+n, 1, RoleArith, items(Long, Int), items(Long))
	}
	for g, n := range []string{"and", "or", "xor"} {
		def(0x7e+2*g, "i"+n, 1, RoleArith, items(Int, Int), items(Int))
		def(0x7f+2*g, "l"+n, 1, RoleArith, items(Long, Long), items(Long))
	}
	def(OpIinc, "iinc", 3, RoleArith, nil, nil)

	conv := []struct {
		name     string
		from, to Item
	}{
		{"i2l", Int, Long}, {"i2f", Int, Float}, {"i2d", Int, Double},
		{"l2i", Long, Int}, {"l2f", Long, Float}, {"l2d", Long, Double},
		{"f2i", Float, Int}, {"f2l", Float, Long}, {"f2d", Float, Double},
		{"d2i", Double, Int}, {"d2l", Double, Long}, {"d2f", Double, Float},
		{"i2b", Int, Int}, {"i2c", Int, Int}, {"i2s", Int, Int},
	}
	for i, c := range conv {
		def(0x85+i, c.name, 1, RoleConvert, items(c.from), items(c.to))
	}

	def(0x94, "lcmp", 1, RoleCompare, items(Long, Long), items(Int))
	def(0x95, "fcmpl", 1, RoleCompare, items(Float, Float), items(Int))
	def(0x96, "fcmpg", 1, RoleCompare, items(Float, Float), items(Int))
	def(0x97, "dcmpl", 1, RoleCompare, items(Double, Double), items(Int))
	def(0x98, "dcmpg", 1, RoleCompare, items(Double, Double), items(Int))

	preds := []Predicate{EQ, NE, LT, GE, GT, LE}
	for i, p := range preds {
		def(OpIfeq+i, "if"+p.String(), 3, RoleBranch, items(Int), nil).cmp = &Compare{Pred: p, Operands: IntZero}
		def(OpIfIcmpeq+i, "if_icmp"+p.String(), 3, RoleBranch, items(Int, Int), nil).cmp = &Compare{Pred: p, Operands: IntInt}
	}
	def(OpIfAcmpeq, "if_acmpeq", 3, RoleBranch, items(Ref, Ref), nil).cmp = &Compare{Pred: EQ, Operands: RefRef}
	def(OpIfAcmpne, "if_acmpne", 3, RoleBranch, items(Ref, Ref), nil).cmp = &Compare{Pred: NE, Operands: RefRef}
	def(OpIfnull, "ifnull", 3, RoleBranch, items(Ref), nil).cmp = &Compare{Pred: EQ, Operands: RefNull}
	def(OpIfnonnull, "ifnonnull", 3, RoleBranch, items(Ref), nil).cmp = &Compare{Pred: NE, Operands: RefNull}
	def(OpGoto, "goto", 3, RoleBranch, nil, nil)
	def(OpGotoW, "goto_w", 5, RoleBranch, nil, nil)
	def(OpJsr, "jsr", 3, RoleBranch, nil, items(ReturnAddress))
	def(OpJsrW, "jsr_w", 5, RoleBranch, nil, items(ReturnAddress))
	def(OpRet, "ret", 2, RoleBranch, nil, nil)
	def(OpTableswitch, "tableswitch", 0, RoleSwitch, items(Int), nil)
	def(OpLookupswitch, "lookupswitch", 0, RoleSwitch, items(Int), nil)
	def(OpReturn, "return", 1, RoleReturn, nil, nil)

	def(OpGetstatic, "getstatic", 3, RoleField, nil, nil)
	def(OpPutstatic, "putstatic", 3, RoleField, nil, nil)
	def(OpGetfield, "getfield", 3, RoleField, nil, nil)
	def(OpPutfield, "putfield", 3, RoleField, nil, nil)
	def(OpInvokevirtual, "invokevirtual", 3, RoleInvoke, nil, nil)
	def(OpInvokespecial, "invokespecial", 3, RoleInvoke, nil, nil)
	def(OpInvokestatic, "invokestatic", 3, RoleInvoke, nil, nil)
	def(OpInvokeinterface, "invokeinterface", 5, RoleInvoke, nil, nil)
	def(OpInvokedynamic, "invokedynamic", 5, RoleInvoke, nil, nil)

	def(OpNew, "new", 3, RoleObject, nil, items(Ref))
	def(OpNewarray, "newarray", 2, RoleObject, items(Int), items(Ref))
	def(OpAnewarray, "anewarray", 3, RoleObject, items(Int), items(Ref))
	def(0xbe, "arraylength", 1, RoleObject, items(Ref), items(Int))
	def(OpAthrow, "athrow", 1, RoleThrow, items(Ref), nil)
	def(OpCheckcast, "checkcast", 3, RoleObject, items(Ref), items(Ref))
	def(OpInstanceof, "instanceof", 3, RoleObject, items(Ref), items(Int))
	def(0xc2, "monitorenter", 1, RoleMonitor, items(Ref), nil)
	def(0xc3, "monitorexit", 1, RoleMonitor, items(Ref), nil)
	def(OpWide, "wide", 0, RoleNop, nil, nil)
	def(OpMultianewarray, "multianewarray", 4, RoleObject, nil, items(Ref))
}

// Mnemonic returns the name of op, or "" for an unassigned opcode.
func Mnemonic(op uint8) string {
	if info := opcodes[op]; info != nil {
		return info.name
	}
	return ""
}
