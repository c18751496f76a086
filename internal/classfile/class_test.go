package classfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/fxamacker/cbor/v2"

	"jclass/internal/bytecode"
	"jclass/internal/classfmt"
	"jclass/internal/classtest"
	"jclass/internal/constpool"
)

func parse(t *testing.T, b *classtest.Builder, opts classfmt.Options) (*Class, error) {
	t.Helper()
	return Parse(b.Bytes(), opts)
}

func mustParse(t *testing.T, b *classtest.Builder, opts classfmt.Options) *Class {
	t.Helper()
	c, err := parse(t, b, opts)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	return c
}

func wantKind(t *testing.T, err error, kind classfmt.Kind) {
	t.Helper()
	if got := classfmt.KindOf(err); got != kind {
		t.Fatalf("err = %v (kind %q), want %q", err, got, kind)
	}
}

func TestParse_Minimal(t *testing.T) {
	c := mustParse(t, classtest.Minimal(), classfmt.Options{})

	if c.Name != "Minimal" || c.SuperName != "java/lang/Object" {
		t.Errorf("name = %q super = %q", c.Name, c.SuperName)
	}
	if c.AccessFlags != 0x21 {
		t.Errorf("access = 0x%x, want 0x21", uint16(c.AccessFlags))
	}
	if c.MajorVersion != 52 {
		t.Errorf("major = %d", c.MajorVersion)
	}
	if len(c.Methods) != 1 {
		t.Fatalf("methods = %d, want 1", len(c.Methods))
	}
	m, ok := c.Method("<init>", "()V")
	if !ok {
		t.Fatal("no <init>()V")
	}
	if m.Code == nil {
		t.Fatal("Code missing")
	}
	if len(m.Code.Frames) != 0 {
		t.Errorf("frames = %d, want 0", len(m.Code.Frames))
	}
	if m.Code.MaxStack != 1 || m.Code.MaxLocals != 1 || m.Code.Length != 5 {
		t.Errorf("code header = %d/%d/%d", m.Code.MaxStack, m.Code.MaxLocals, m.Code.Length)
	}
	ops := []uint8{0x2a, bytecode.OpInvokespecial, bytecode.OpReturn} // aload_0
	if len(m.Code.Instructions) != len(ops) {
		t.Fatalf("instructions = %d, want %d", len(m.Code.Instructions), len(ops))
	}
	for i, op := range ops {
		if got := m.Code.Instructions[i].Opcode; got != op {
			t.Errorf("inst %d = %s, want %s", i, bytecode.Mnemonic(got), bytecode.Mnemonic(op))
		}
	}
	if sym := m.Code.Instructions[1].Symbol; sym != "java/lang/Object.<init>:()V" {
		t.Errorf("invokespecial symbol = %q", sym)
	}
}

func TestParse_Truncated(t *testing.T) {
	data := classtest.Minimal().Bytes()
	for n := 0; n < len(data); n++ {
		_, err := Parse(data[:n], classfmt.Options{})
		if classfmt.KindOf(err) != classfmt.KindInsufficientData {
			t.Fatalf("truncated to %d bytes: err = %v, want InsufficientData", n, err)
		}
	}
}

func TestParse_Magic(t *testing.T) {
	tests := []struct {
		at  int
		bad byte
	}{
		{0, 0xCB},
		{1, 0xFF},
		{2, 0xBB},
		{3, 0xBF},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("byte %d", tt.at), func(t *testing.T) {
			data := classtest.Minimal().Bytes()
			data[tt.at] = tt.bad
			_, err := Parse(data, classfmt.Options{})
			wantKind(t, err, classfmt.KindNotAClassFile)
			if !errors.Is(err, classfmt.ErrNotAClassFile) {
				t.Errorf("errors.Is(%v, ErrNotAClassFile) = false", err)
			}
			var ce *classfmt.Error
			if !errors.As(err, &ce) || ce.Offset != 0 {
				t.Errorf("error = %#v, want offset 0", ce)
			}
		})
	}
}

const bsmDesc = "(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;)Ljava/lang/invoke/CallSite;"

// richClass builds a class that uses every constant pool kind, non-finite
// float and double constants, a type annotation and a StackMapTable.
func richClass() *classtest.Builder {
	b := classtest.Minimal()
	b.Major = 61
	fnan := b.Raw(4, classtest.U4(0x7fc00001)...)
	dinf := b.Double(math.Inf(1))
	dninf := b.Double(math.Inf(-1))
	dnan := b.Raw(6, classtest.U8(0x7ff8000000000001)...)
	long := b.Long(1 << 40)
	mh := b.MethodHandle(constpool.RefInvokeStatic, b.Methodref("Minimal", "bsm", bsmDesc))
	b.Attributes = append(b.Attributes, b.Attr("BootstrapMethods", classtest.U2(1, mh, 1, b.MethodType("()V"))))
	dyn := b.Dynamic(0, "answer", "I")
	b.InvokeDynamic(0, "run", "()Ljava/lang/Runnable;")
	b.InterfaceMethodref("java/lang/Runnable", "run", "()V")
	field := b.Fieldref("Minimal", "f", "F")

	b.Field(classtest.AccStatic, "f", "F", b.Attr("ConstantValue", classtest.U2(fnan)))
	b.Field(classtest.AccStatic, "d", "D", b.Attr("ConstantValue", classtest.U2(dinf)))
	b.Field(classtest.AccStatic, "n", "D", b.Attr("ConstantValue", classtest.U2(dninf)))
	b.Field(classtest.AccStatic, "j", "J", b.Attr("ConstantValue", classtest.U2(long)))
	b.Field(classtest.AccStatic, "s", "Ljava/lang/String;", b.Attr("ConstantValue", classtest.U2(b.String("hi"))))

	// ldc; pop and ldc2_w; pop2
	ldc := func(idx uint16) []byte { return []byte{0x12, byte(idx), 0x57} }
	ldc2 := func(idx uint16) []byte { return classtest.Cat([]byte{0x14}, classtest.U2(idx), []byte{0x58}) }
	code := classtest.Cat(
		ldc(b.Integer(7)), ldc(fnan), ldc(b.String("hi")), ldc(b.Class("Minimal")),
		ldc(b.MethodType("()V")), ldc(mh), ldc(dyn),
		ldc2(long), ldc2(dinf), ldc2(dnan),
		[]byte{0xb2}, classtest.U2(field), []byte{0x57}, // getstatic; pop
		[]byte{0xb1},
	)
	b.Method(classtest.AccStatic, "consts", "()V", b.Code(2, 0, code, nil))
	// 0 iload_0; 1 ifeq 4; 4 return
	b.Method(classtest.AccStatic, "f", "(I)V", b.Code(1, 1, []byte{0x1a, 0x99, 0x00, 0x03, 0xb1}, nil,
		b.Attr("StackMapTable", []byte{0, 1, 4})))

	// @Range(max = NaN) on the superclass
	ann := classtest.Cat(classtest.U2(1), []byte{0x10}, classtest.U2(0xffff), []byte{0},
		classtest.U2(b.Utf8("Lcom/example/Range;"), 1, b.Utf8("max")), []byte{'D'}, classtest.U2(dnan))
	b.Attributes = append(b.Attributes, b.Attr("RuntimeVisibleTypeAnnotations", ann))
	return b
}

func TestParse_Idempotent(t *testing.T) {
	tests := []struct {
		name string
		b    *classtest.Builder
	}{
		{"minimal", classtest.Minimal()},
		{"rich", richClass()},
	}
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		t.Fatal(err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data := tt.b.Bytes()
			a, err := Parse(data, classfmt.Options{})
			if err != nil {
				t.Fatal(err)
			}
			b, err := Parse(data, classfmt.Options{})
			if err != nil {
				t.Fatal(err)
			}
			if !reflect.DeepEqual(a, b) {
				t.Error("two parses of the same bytes differ")
			}

			ea, err := em.Marshal(a)
			if err != nil {
				t.Fatal(err)
			}
			eb, err := em.Marshal(b)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(ea, eb) {
				t.Error("canonical encodings differ")
			}

			ja, err := json.Marshal(a)
			if err != nil {
				t.Fatal(err)
			}
			jb, err := json.Marshal(b)
			if err != nil {
				t.Fatal(err)
			}
			if !bytes.Equal(ja, jb) {
				t.Error("json encodings differ")
			}
		})
	}
}

func TestParse_NonFinite(t *testing.T) {
	c := mustParse(t, richClass(), classfmt.Options{})
	want := map[string]uint64{
		"f": 0x7fc00001,
		"d": math.Float64bits(math.Inf(1)),
		"n": math.Float64bits(math.Inf(-1)),
	}
	for _, f := range c.Fields {
		w, ok := want[f.Name]
		if !ok {
			continue
		}
		if f.ConstantValue == nil || f.ConstantValue.Bits != w {
			t.Errorf("field %s constant = %+v, want bits %#x", f.Name, f.ConstantValue, w)
		}
	}
	if v := c.Annotations.VisibleType; len(v) != 1 || v[0].Annotation.Elements[0].Value.Bits != 0x7ff8000000000001 {
		t.Errorf("type annotations = %+v", v)
	}
	m, _ := c.Method("f", "(I)V")
	if len(m.Code.Frames) != 1 {
		t.Errorf("frames = %+v", m.Code.Frames)
	}

	out, err := json.Marshal(c)
	if err != nil {
		t.Fatalf("json: %v", err)
	}
	for _, s := range []string{`"float":"NaN"`, `"float":"+Inf"`, `"float":"-Inf"`} {
		if !strings.Contains(string(out), s) {
			t.Errorf("json missing %s", s)
		}
	}
}

func TestParse_LdcVersion(t *testing.T) {
	build := func(major uint16) *classtest.Builder {
		b := classtest.Minimal()
		b.Major = major
		code := []byte{0x12, byte(b.Class("Minimal")), 0x57, 0xb1}
		b.Method(classtest.AccStatic, "k", "()V", b.Code(1, 0, code, nil))
		return b
	}
	mustParse(t, build(49), classfmt.Options{})
	_, err := parse(t, build(48), classfmt.Options{})
	wantKind(t, err, classfmt.KindInvalidBytecode)
}

func TestParse_Version(t *testing.T) {
	tests := []struct {
		name         string
		major, minor uint16
		opts         classfmt.Options
		ok           bool
	}{
		{"java 1.1", 45, 3, classfmt.Options{}, true},
		{"java 8", 52, 0, classfmt.Options{}, true},
		{"too old", 44, 0, classfmt.Options{}, false},
		{"too new", 70, 0, classfmt.Options{}, false},
		{"preview", 61, 0xffff, classfmt.Options{}, true},
		{"bad minor", 56, 1, classfmt.Options{}, false},
		{"old minor", 55, 1, classfmt.Options{}, true},
		{"above configured max", 61, 0, classfmt.Options{MaxMajorVersion: 60}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := classtest.Minimal()
			b.Major, b.Minor = tt.major, tt.minor
			_, err := parse(t, b, tt.opts)
			if tt.ok {
				if err != nil {
					t.Fatalf("Parse: %v", err)
				}
				return
			}
			wantKind(t, err, classfmt.KindUnsupportedVersion)
		})
	}
}

func TestParse_Structure(t *testing.T) {
	tests := []struct {
		name  string
		build func(b *classtest.Builder)
		kind  classfmt.Kind
	}{
		{"abstract with code", func(b *classtest.Builder) {
			b.Method(classtest.AccPublic|classtest.AccAbstract, "run", "()V",
				b.Code(0, 1, []byte{0xb1}, nil))
		}, classfmt.KindInvalidClassStructure},
		{"concrete without code", func(b *classtest.Builder) {
			b.Method(classtest.AccPublic, "run", "()V")
		}, classfmt.KindInvalidClassStructure},
		{"duplicate method", func(b *classtest.Builder) {
			b.Method(classtest.AccPublic|classtest.AccNative, "<init>", "()V")
		}, classfmt.KindInvalidClassStructure},
		{"init returns value", func(b *classtest.Builder) {
			b.Method(classtest.AccPublic|classtest.AccNative, "<init>", "()I")
		}, classfmt.KindInvalidClassStructure},
		{"bad method descriptor", func(b *classtest.Builder) {
			b.Method(classtest.AccPublic|classtest.AccNative, "run", "(V)V")
		}, classfmt.KindInvalidDescriptor},
		{"no superclass", func(b *classtest.Builder) {
			b.Super = 0
		}, classfmt.KindInvalidClassStructure},
		{"array this_class", func(b *classtest.Builder) {
			b.This = b.Class("[LMinimal;")
		}, classfmt.KindInvalidClassStructure},
		{"duplicate interface", func(b *classtest.Builder) {
			r := b.Class("java/lang/Runnable")
			b.Interfaces = []uint16{r, r}
		}, classfmt.KindInvalidClassStructure},
		{"super not a class", func(b *classtest.Builder) {
			b.Super = b.Utf8("java/lang/Object")
		}, classfmt.KindInvalidConstantPoolIndex},
		{"empty code", func(b *classtest.Builder) {
			b.Method(classtest.AccStatic, "run", "()V", b.Code(0, 0, nil, nil))
		}, classfmt.KindInvalidBytecode},
		{"params exceed max_locals", func(b *classtest.Builder) {
			b.Method(classtest.AccStatic, "run", "(J)V", b.Code(0, 1, []byte{0xb1}, nil))
		}, classfmt.KindInvalidBytecode},
		{"stack overflow", func(b *classtest.Builder) {
			b.Method(classtest.AccStatic, "run", "()V", b.Code(0, 0, []byte{0x03, 0x57, 0xb1}, nil))
		}, classfmt.KindInvalidBytecode},
		{"line past code end", func(b *classtest.Builder) {
			b.Method(classtest.AccStatic, "run", "()V", b.Code(0, 0, []byte{0xb1}, nil,
				b.Attr("LineNumberTable", classtest.U2(1, 1, 10))))
		}, classfmt.KindInvalidBytecode},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := classtest.Minimal()
			tt.build(b)
			_, err := parse(t, b, classfmt.Options{})
			wantKind(t, err, tt.kind)
		})
	}
}

func TestParse_TrailingBytes(t *testing.T) {
	data := append(classtest.Minimal().Bytes(), 0)
	_, err := Parse(data, classfmt.Options{})
	wantKind(t, err, classfmt.KindInvalidClassStructure)
}

func TestParse_CodeLimit(t *testing.T) {
	_, err := parse(t, classtest.Minimal(), classfmt.Options{MaxCodeLength: 4})
	wantKind(t, err, classfmt.KindDataTooLarge)
	if _, err := parse(t, classtest.Minimal(), classfmt.Options{MaxCodeLength: 5}); err != nil {
		t.Errorf("code at the limit: %v", err)
	}
}

func TestParse_UnknownAttribute(t *testing.T) {
	b := classtest.Minimal()
	b.Attributes = append(b.Attributes, b.Attr("com.example.Custom", []byte{1, 2, 3}))
	b.Methods[0].Attributes = append(b.Methods[0].Attributes, b.Attr("ConstantValue", classtest.U2(1)))
	c := mustParse(t, b, classfmt.Options{})

	want := []UnknownAttribute{{Name: "com.example.Custom", Length: 3}}
	if !reflect.DeepEqual(c.Unknown, want) {
		t.Errorf("class unknown = %+v, want %+v", c.Unknown, want)
	}
	// ConstantValue is only meaningful on fields.
	want = []UnknownAttribute{{Name: "ConstantValue", Length: 2}}
	if got := c.Methods[0].Unknown; !reflect.DeepEqual(got, want) {
		t.Errorf("method unknown = %+v, want %+v", got, want)
	}
}

func TestParse_AttributeLength(t *testing.T) {
	tests := []struct {
		name string
		data func(b *classtest.Builder) []byte
		kind classfmt.Kind
	}{
		{"unused bytes", func(b *classtest.Builder) []byte {
			return classtest.Cat(classtest.U2(b.Utf8("Minimal.java")), []byte{0})
		}, classfmt.KindInvalidAttributeLength},
		{"content past length", func(b *classtest.Builder) []byte {
			return []byte{0}
		}, classfmt.KindInvalidAttributeLength},
		{"bad index", func(b *classtest.Builder) []byte {
			return classtest.U2(b.Class("Minimal"))
		}, classfmt.KindInvalidConstantPoolIndex},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := classtest.Minimal()
			b.Attributes = append(b.Attributes, b.Attr("SourceFile", tt.data(b)))
			_, err := parse(t, b, classfmt.Options{})
			wantKind(t, err, tt.kind)
		})
	}
}

func TestParse_DuplicateAttribute(t *testing.T) {
	b := classtest.Minimal()
	src := b.Attr("SourceFile", classtest.U2(b.Utf8("Minimal.java")))
	b.Attributes = append(b.Attributes, src)
	c := mustParse(t, b, classfmt.Options{})
	if c.SourceFile != "Minimal.java" {
		t.Errorf("SourceFile = %q", c.SourceFile)
	}

	b.Attributes = append(b.Attributes, src)
	_, err := parse(t, b, classfmt.Options{})
	wantKind(t, err, classfmt.KindInvalidClassStructure)
}

func TestParse_ConstantValue(t *testing.T) {
	tests := []struct {
		name   string
		access uint16
		desc   string
		value  func(b *classtest.Builder) uint16
		opts   classfmt.Options
		kind   classfmt.Kind
		want   Constant
	}{
		{"static int", classtest.AccStatic, "I", func(b *classtest.Builder) uint16 { return b.Integer(7) },
			classfmt.Options{}, "", Constant{Tag: constpool.TagInteger, Int: 7}},
		{"static boolean", classtest.AccStatic, "Z", func(b *classtest.Builder) uint16 { return b.Integer(1) },
			classfmt.Options{}, "", Constant{Tag: constpool.TagInteger, Int: 1}},
		{"static long", classtest.AccStatic, "J", func(b *classtest.Builder) uint16 { return b.Long(-5) },
			classfmt.Options{}, "", Constant{Tag: constpool.TagLong, Int: -5}},
		{"static double", classtest.AccStatic, "D", func(b *classtest.Builder) uint16 { return b.Double(0.5) },
			classfmt.Options{}, "", Constant{Tag: constpool.TagDouble, Bits: math.Float64bits(0.5)}},
		{"static float NaN", classtest.AccStatic, "F", func(b *classtest.Builder) uint16 { return b.Raw(4, classtest.U4(0x7fc00001)...) },
			classfmt.Options{}, "", Constant{Tag: constpool.TagFloat, Bits: 0x7fc00001}},
		{"static double +Inf", classtest.AccStatic, "D", func(b *classtest.Builder) uint16 { return b.Double(math.Inf(1)) },
			classfmt.Options{}, "", Constant{Tag: constpool.TagDouble, Bits: math.Float64bits(math.Inf(1))}},
		{"static double -Inf", classtest.AccStatic, "D", func(b *classtest.Builder) uint16 { return b.Double(math.Inf(-1)) },
			classfmt.Options{}, "", Constant{Tag: constpool.TagDouble, Bits: math.Float64bits(math.Inf(-1))}},
		{"static string", classtest.AccStatic, "Ljava/lang/String;", func(b *classtest.Builder) uint16 { return b.String("hi") },
			classfmt.Options{}, "", Constant{Tag: constpool.TagString, String: "hi"}},
		{"instance int", 0, "I", func(b *classtest.Builder) uint16 { return b.Integer(7) },
			classfmt.Options{}, classfmt.KindInvalidClassStructure, Constant{}},
		{"instance int permitted", 0, "I", func(b *classtest.Builder) uint16 { return b.Integer(7) },
			classfmt.Options{PermitConstantsInInstanceFields: true}, "", Constant{Tag: constpool.TagInteger, Int: 7}},
		{"long for int", classtest.AccStatic, "I", func(b *classtest.Builder) uint16 { return b.Long(7) },
			classfmt.Options{}, classfmt.KindInvalidConstantPoolIndex, Constant{}},
		{"string for object", classtest.AccStatic, "Ljava/lang/Object;", func(b *classtest.Builder) uint16 { return b.String("hi") },
			classfmt.Options{}, classfmt.KindInvalidConstantPoolIndex, Constant{}},
		{"array", classtest.AccStatic, "[I", func(b *classtest.Builder) uint16 { return b.Integer(0) },
			classfmt.Options{}, classfmt.KindInvalidConstantPoolIndex, Constant{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := classtest.Minimal()
			b.Field(tt.access, "x", tt.desc, b.Attr("ConstantValue", classtest.U2(tt.value(b))))
			c, err := parse(t, b, tt.opts)
			if tt.kind != "" {
				wantKind(t, err, tt.kind)
				return
			}
			if err != nil {
				t.Fatalf("Parse: %v", err)
			}
			cv := c.Fields[0].ConstantValue
			if cv == nil || *cv != tt.want {
				t.Errorf("ConstantValue = %+v, want %+v", cv, tt.want)
			}
		})
	}
}

func TestParse_Signature(t *testing.T) {
	sig := func(b *classtest.Builder, s string) classtest.Attribute {
		return b.Attr("Signature", classtest.U2(b.Utf8(s)))
	}
	tests := []struct {
		name  string
		build func(b *classtest.Builder)
		kind  classfmt.Kind
	}{
		{"class ok", func(b *classtest.Builder) {
			b.Attributes = append(b.Attributes, sig(b, "<T:Ljava/lang/Object;>Ljava/lang/Object;"))
		}, ""},
		{"class super mismatch", func(b *classtest.Builder) {
			b.Attributes = append(b.Attributes, sig(b, "Ljava/lang/Number;"))
		}, classfmt.KindInvalidSignature},
		{"class malformed", func(b *classtest.Builder) {
			b.Attributes = append(b.Attributes, sig(b, "Ljava/lang/Object"))
		}, classfmt.KindInvalidSignature},
		{"field ok", func(b *classtest.Builder) {
			b.Field(classtest.AccPrivate, "xs", "Ljava/util/List;", sig(b, "Ljava/util/List<Ljava/lang/String;>;"))
		}, ""},
		{"field primitive", func(b *classtest.Builder) {
			b.Field(classtest.AccPrivate, "n", "I", sig(b, "I"))
		}, classfmt.KindInvalidSignature},
		{"method param count", func(b *classtest.Builder) {
			b.Method(classtest.AccNative, "f", "()V", sig(b, "(TT;)V"))
		}, classfmt.KindInvalidSignature},
		{"constructor omits synthetic param", func(b *classtest.Builder) {
			b.Method(classtest.AccNative, "<init>", "(LOuter;I)V", sig(b, "(I)V"))
		}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := classtest.Minimal()
			tt.build(b)
			_, err := parse(t, b, classfmt.Options{})
			if tt.kind == "" {
				if err != nil {
					t.Fatalf("Parse: %v", err)
				}
				return
			}
			wantKind(t, err, tt.kind)
		})
	}
}

func TestParse_BootstrapMethods(t *testing.T) {
	build := func(withTable bool) *classtest.Builder {
		b := classtest.Minimal()
		b.InvokeDynamic(0, "run", "()Ljava/lang/Runnable;")
		if withTable {
			mh := b.MethodHandle(constpool.RefInvokeStatic, b.Methodref("Minimal", "bsm",
				"(Ljava/lang/invoke/MethodHandles$Lookup;Ljava/lang/String;Ljava/lang/invoke/MethodType;)Ljava/lang/invoke/CallSite;"))
			arg := b.MethodType("()V")
			b.Attributes = append(b.Attributes, b.Attr("BootstrapMethods", classtest.U2(1, mh, 1, arg)))
		}
		return b
	}

	_, err := parse(t, build(false), classfmt.Options{})
	wantKind(t, err, classfmt.KindInvalidClassStructure)

	c := mustParse(t, build(true), classfmt.Options{})
	if len(c.BootstrapMethods) != 1 {
		t.Fatalf("bootstrap methods = %d", len(c.BootstrapMethods))
	}
	bm := c.BootstrapMethods[0]
	if bm.Kind != constpool.RefInvokeStatic || bm.Method.Name != "bsm" || len(bm.Arguments) != 1 {
		t.Errorf("bootstrap method = %+v", bm)
	}
}

func TestParse_StackMapTable(t *testing.T) {
	// 0 iload_0; 1 ifeq 4; 4 return
	code := []byte{0x1a, 0x99, 0x00, 0x03, 0xb1}
	tests := []struct {
		name   string
		frames []byte
		kind   classfmt.Kind
	}{
		{"same at 4", []byte{0, 1, 4}, ""},
		{"off instruction start", []byte{0, 1, 3}, classfmt.KindInvalidStackMap},
		{"stack disagrees", []byte{0, 1, 64 + 4, 1}, classfmt.KindInvalidStackMap},
		{"reserved type", []byte{0, 1, 200}, classfmt.KindUnknownTag},
		{"chop below zero", []byte{0, 1, 248, 0, 4}, classfmt.KindInvalidStackMap},
		{"leftover bytes", []byte{0, 1, 4, 0}, classfmt.KindInvalidAttributeLength},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := classtest.Minimal()
			b.Method(classtest.AccStatic, "f", "(I)V", b.Code(1, 1, code, nil,
				b.Attr("StackMapTable", tt.frames)))
			c, err := parse(t, b, classfmt.Options{})
			if tt.kind == "" {
				if err != nil {
					t.Fatalf("Parse: %v", err)
				}
				m, _ := c.Method("f", "(I)V")
				if len(m.Code.Frames) != 1 || m.Code.Frames[0].Offset != 4 {
					t.Errorf("frames = %+v", m.Code.Frames)
				}
				return
			}
			wantKind(t, err, tt.kind)
		})
	}
}

func TestParse_InnerClasses(t *testing.T) {
	tests := []struct {
		name  string
		entry func(b *classtest.Builder) []byte
		ok    bool
	}{
		{"member", func(b *classtest.Builder) []byte {
			return classtest.U2(1, b.Class("Minimal$A"), b.Class("Minimal"), b.Utf8("A"), classtest.AccStatic)
		}, true},
		{"anonymous", func(b *classtest.Builder) []byte {
			return classtest.U2(1, b.Class("Minimal$1"), 0, 0, 0)
		}, true},
		{"self outer", func(b *classtest.Builder) []byte {
			return classtest.U2(1, b.Class("Minimal"), b.Class("Minimal"), b.Utf8("Minimal"), 0)
		}, false},
		{"wrong outer", func(b *classtest.Builder) []byte {
			return classtest.U2(1, b.Class("Other$A"), b.Class("Minimal"), b.Utf8("A"), 0)
		}, false},
		{"listed twice", func(b *classtest.Builder) []byte {
			a := b.Class("Minimal$1")
			return classtest.U2(2, a, 0, 0, 0, a, 0, 0, 0)
		}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := classtest.Minimal()
			b.Attributes = append(b.Attributes, b.Attr("InnerClasses", tt.entry(b)))
			_, err := parse(t, b, classfmt.Options{})
			if tt.ok {
				if err != nil {
					t.Fatalf("Parse: %v", err)
				}
				return
			}
			wantKind(t, err, classfmt.KindInvalidClassStructure)
		})
	}
}

func TestParse_CommonAttributes(t *testing.T) {
	b := classtest.Minimal()
	ann := classtest.Cat(classtest.U2(1, b.Utf8("Ljava/lang/Deprecated;"), 0))
	b.Attributes = append(b.Attributes,
		b.Attr("Deprecated"),
		b.Attr("RuntimeVisibleAnnotations", ann),
		b.Attr("NestMembers", classtest.U2(1, b.Class("Minimal$A"))),
	)
	b.Field(classtest.AccPrivate|0x1000, "x", "I", b.Attr("Synthetic"))
	b.Method(classtest.AccPublic|classtest.AccAbstract, "run", "(I)V",
		b.Attr("MethodParameters", []byte{1}, classtest.U2(b.Utf8("n"), classtest.AccFinal)),
		b.Attr("Exceptions", classtest.U2(1, b.Class("java/io/IOException"))))

	c := mustParse(t, b, classfmt.Options{})
	if !c.Deprecated || len(c.Annotations.Visible) != 1 || c.Annotations.Visible[0].Type != "Ljava/lang/Deprecated;" {
		t.Errorf("class common = %+v", c.Common)
	}
	if !reflect.DeepEqual(c.NestMembers, []string{"Minimal$A"}) {
		t.Errorf("nest members = %v", c.NestMembers)
	}
	if !c.Fields[0].Synthetic {
		t.Error("field not synthetic")
	}
	m, _ := c.Method("run", "(I)V")
	if len(m.Parameters) != 1 || m.Parameters[0].Name != "n" || !m.Parameters[0].AccessFlags.Has(AccFinal) {
		t.Errorf("parameters = %+v", m.Parameters)
	}
	if !reflect.DeepEqual(m.Exceptions, []string{"java/io/IOException"}) {
		t.Errorf("exceptions = %v", m.Exceptions)
	}
}

func TestSession_Interns(t *testing.T) {
	s := NewSession(classfmt.Options{})
	data := classtest.Minimal().Bytes()
	if _, err := s.Parse(data); err != nil {
		t.Fatal(err)
	}
	n := s.Interned()
	if n == 0 {
		t.Fatal("nothing interned")
	}
	if _, err := s.Parse(data); err != nil {
		t.Fatal(err)
	}
	if s.Interned() != n {
		t.Errorf("interned %d after reparse, want %d", s.Interned(), n)
	}
}
