package descriptor

import (
	"errors"
	"strings"
	"testing"

	"jclass/internal/classfmt"
)

func TestParseField(t *testing.T) {
	tests := []struct {
		in    string
		dims  int
		base  byte
		class string
		slots int
	}{
		{"I", 0, 'I', "", 1},
		{"J", 0, 'J', "", 2},
		{"D", 0, 'D', "", 2},
		{"[J", 1, 'J', "", 1},
		{"Ljava/lang/String;", 0, 'L', "java/lang/String", 1},
		{"[[Ljava/util/Map$Entry;", 2, 'L', "java/util/Map$Entry", 1},
	}
	for _, tt := range tests {
		ft, err := ParseField(tt.in)
		if err != nil {
			t.Errorf("ParseField(%q): %v", tt.in, err)
			continue
		}
		if ft.Dims != tt.dims || ft.Base != tt.base || ft.ClassName != tt.class {
			t.Errorf("ParseField(%q) = %+v", tt.in, ft)
		}
		if ft.Slots() != tt.slots {
			t.Errorf("ParseField(%q).Slots() = %d, want %d", tt.in, ft.Slots(), tt.slots)
		}
		if ft.String() != tt.in {
			t.Errorf("ParseField(%q).String() = %q", tt.in, ft.String())
		}
	}
}

func TestParseField_Invalid(t *testing.T) {
	for _, in := range []string{
		"",
		"V",
		"X",
		"II",
		"[",
		"Ljava/lang/String",
		"L;",
		"Ljava//String;",
		"Ljava.lang.String;",
		strings.Repeat("[", 256) + "I",
	} {
		if _, err := ParseField(in); !errors.Is(err, classfmt.ErrInvalidDescriptor) {
			t.Errorf("ParseField(%q): expected ErrInvalidDescriptor, got %v", in, err)
		}
	}
	if _, err := ParseField(strings.Repeat("[", 255) + "I"); err != nil {
		t.Errorf("255 dimensions: %v", err)
	}
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in     string
		params int
		slots  int
		void   bool
	}{
		{"()V", 0, 0, true},
		{"(IJ)D", 2, 3, false},
		{"([Ljava/lang/String;)V", 1, 1, true},
		{"(Ljava/lang/Object;DI)Ljava/lang/Object;", 3, 4, false},
	}
	for _, tt := range tests {
		m, err := ParseMethod(tt.in)
		if err != nil {
			t.Errorf("ParseMethod(%q): %v", tt.in, err)
			continue
		}
		if len(m.Params) != tt.params {
			t.Errorf("ParseMethod(%q) params = %d, want %d", tt.in, len(m.Params), tt.params)
		}
		if m.ParamSlots() != tt.slots {
			t.Errorf("ParseMethod(%q) slots = %d, want %d", tt.in, m.ParamSlots(), tt.slots)
		}
		if (m.Return == nil) != tt.void {
			t.Errorf("ParseMethod(%q) void = %v", tt.in, m.Return == nil)
		}
		if m.String() != tt.in {
			t.Errorf("ParseMethod(%q).String() = %q", tt.in, m.String())
		}
	}
}

func TestParseMethod_Invalid(t *testing.T) {
	for _, in := range []string{
		"",
		"V",
		"(",
		"(I",
		"()",
		"(V)V",
		"()VV",
		"()II",
		"(I)Ljava/lang/String",
	} {
		if _, err := ParseMethod(in); !errors.Is(err, classfmt.ErrInvalidDescriptor) {
			t.Errorf("ParseMethod(%q): expected ErrInvalidDescriptor, got %v", in, err)
		}
	}
}

func TestValidMemberName(t *testing.T) {
	tests := []struct {
		name   string
		method bool
		want   bool
	}{
		{"foo", false, true},
		{"<init>", true, true},
		{"<init>", false, true},
		{"a<b", true, false},
		{"a<b", false, true},
		{"a.b", false, false},
		{"", true, false},
	}
	for _, tt := range tests {
		if got := ValidMemberName(tt.name, tt.method); got != tt.want {
			t.Errorf("ValidMemberName(%q, %v) = %v, want %v", tt.name, tt.method, got, tt.want)
		}
	}
}

func TestParseClassSignature(t *testing.T) {
	sig, err := ParseClassSignature("<K:Ljava/lang/Object;V::Ljava/lang/Comparable<TV;>;>Ljava/util/AbstractMap<TK;TV;>;Ljava/util/Map<TK;TV;>;Ljava/io/Serializable;")
	if err != nil {
		t.Fatal(err)
	}
	if len(sig.TypeParams) != 2 {
		t.Fatalf("type params = %d, want 2", len(sig.TypeParams))
	}
	if sig.TypeParams[1].ClassBound != nil || len(sig.TypeParams[1].InterfaceBounds) != 1 {
		t.Errorf("V bounds = %+v", sig.TypeParams[1])
	}
	if got := sig.Super.Erasure(); got != "java/util/AbstractMap" {
		t.Errorf("super erasure = %q", got)
	}
	err = CheckClassSignature(sig, "java/util/AbstractMap", []string{"java/util/Map", "java/io/Serializable"})
	if err != nil {
		t.Errorf("CheckClassSignature: %v", err)
	}
	err = CheckClassSignature(sig, "java/lang/Object", []string{"java/util/Map", "java/io/Serializable"})
	if !errors.Is(err, classfmt.ErrInvalidSignature) {
		t.Errorf("wrong super: expected ErrInvalidSignature, got %v", err)
	}
	err = CheckClassSignature(sig, "java/util/AbstractMap", []string{"java/util/Map"})
	if !errors.Is(err, classfmt.ErrInvalidSignature) {
		t.Errorf("wrong interfaces: expected ErrInvalidSignature, got %v", err)
	}
}

func TestClassSig_InnerErasure(t *testing.T) {
	sig, err := ParseFieldSignature("Lcom/example/Outer<TT;>.Inner<*>;")
	if err != nil {
		t.Fatal(err)
	}
	if sig.Kind != SigClass {
		t.Fatalf("kind = %d", sig.Kind)
	}
	if got := sig.Class.Erasure(); got != "com/example/Outer$Inner" {
		t.Errorf("erasure = %q", got)
	}
	if a := sig.Class.Parts[1].Args; len(a) != 1 || a[0].Wildcard != '*' {
		t.Errorf("inner args = %+v", a)
	}
}

func TestParseMethodSignature(t *testing.T) {
	sig, err := ParseMethodSignature("<T:Ljava/lang/Object;>(Ljava/util/List<+TT;>;I)[TT;^Ljava/io/IOException;^TE;")
	if err != nil {
		t.Fatal(err)
	}
	if len(sig.Params) != 2 || len(sig.Throws) != 2 {
		t.Errorf("params = %d throws = %d", len(sig.Params), len(sig.Throws))
	}
	if sig.Return == nil || sig.Return.Kind != SigArray {
		t.Errorf("return = %+v", sig.Return)
	}

	desc, _ := ParseMethod("(Ljava/util/List;I)[Ljava/lang/Object;")
	if err := CheckMethodSignature(sig, desc, false); err != nil {
		t.Errorf("CheckMethodSignature: %v", err)
	}
	short, _ := ParseMethod("(Ljava/util/List;)[Ljava/lang/Object;")
	if err := CheckMethodSignature(sig, short, false); !errors.Is(err, classfmt.ErrInvalidSignature) {
		t.Errorf("arity mismatch: expected ErrInvalidSignature, got %v", err)
	}
	// Constructors of inner classes carry an extra outer-instance parameter.
	ctorSig, _ := ParseMethodSignature("(Ljava/util/List<TT;>;)V")
	ctorDesc, _ := ParseMethod("(Lcom/example/Outer;Ljava/util/List;)V")
	if err := CheckMethodSignature(ctorSig, ctorDesc, true); err != nil {
		t.Errorf("constructor: %v", err)
	}
}

func TestParseSignature_Invalid(t *testing.T) {
	for _, in := range []string{"", "I", "Ljava/lang/Object", "TT", "Ljava/util/List<>;", "[V"} {
		if _, err := ParseFieldSignature(in); !errors.Is(err, classfmt.ErrInvalidSignature) {
			t.Errorf("ParseFieldSignature(%q): expected ErrInvalidSignature, got %v", in, err)
		}
	}
	for _, in := range []string{"", "()", "(I", "<>()V", "()V^I", "()VX"} {
		if _, err := ParseMethodSignature(in); !errors.Is(err, classfmt.ErrInvalidSignature) {
			t.Errorf("ParseMethodSignature(%q): expected ErrInvalidSignature, got %v", in, err)
		}
	}
	for _, in := range []string{"", "<T>Ljava/lang/Object;", "Ljava/lang/Object;I"} {
		if _, err := ParseClassSignature(in); !errors.Is(err, classfmt.ErrInvalidSignature) {
			t.Errorf("ParseClassSignature(%q): expected ErrInvalidSignature, got %v", in, err)
		}
	}
}
