// Package classtest assembles class-file images for tests. It writes exactly
// what it is told to, so tests can also build malformed input.
package classtest

import (
	"encoding/binary"
	"math"

	"jclass/internal/classfmt"
)

// Raw constant pool tags, kept local so any package's tests can use the builder.
const (
	tagUtf8               = 1
	tagInteger            = 3
	tagFloat              = 4
	tagLong               = 5
	tagDouble             = 6
	tagClass              = 7
	tagString             = 8
	tagFieldref           = 9
	tagMethodref          = 10
	tagInterfaceMethodref = 11
	tagNameAndType        = 12
	tagMethodHandle       = 15
	tagMethodType         = 16
	tagDynamic            = 17
	tagInvokeDynamic      = 18
)

// Access flags used by fixtures.
const (
	AccPublic    = 0x0001
	AccPrivate   = 0x0002
	AccStatic    = 0x0008
	AccFinal     = 0x0010
	AccSuper     = 0x0020
	AccNative    = 0x0100
	AccInterface = 0x0200
	AccAbstract  = 0x0400
)

// Attribute is a named attribute body.
type Attribute struct {
	Name uint16
	Data []byte
}

// Member is a field or method record.
type Member struct {
	Access     uint16
	Name       uint16
	Descriptor uint16
	Attributes []Attribute
}

// Handler is one exception table entry.
type Handler struct {
	Start, End, Handler, CatchType uint16
}

// Builder accumulates a class file. Constant helpers deduplicate identical
// entries and return their index.
type Builder struct {
	Minor, Major uint16
	Access       uint16
	This, Super  uint16
	Interfaces   []uint16
	Fields       []Member
	Methods      []Member
	Attributes   []Attribute

	pool  []byte
	next  uint16
	index map[string]uint16
}

// New returns a builder for a version 52.0 class with an empty pool.
func New() *Builder {
	return &Builder{Major: 52, next: 1, index: make(map[string]uint16)}
}

// PoolCount returns the constant_pool_count the builder will emit.
func (b *Builder) PoolCount() uint16 { return b.next }

func (b *Builder) add(key string, slots uint16, body []byte) uint16 {
	if idx, ok := b.index[key]; ok {
		return idx
	}
	idx := b.next
	b.pool = append(b.pool, body...)
	b.next += slots
	b.index[key] = idx
	return idx
}

// Raw appends an entry verbatim, without deduplication, and returns its index.
func (b *Builder) Raw(tag byte, payload ...byte) uint16 {
	idx := b.next
	b.pool = append(b.pool, tag)
	b.pool = append(b.pool, payload...)
	b.next++
	if tag == tagLong || tag == tagDouble {
		b.next++
	}
	return idx
}

func (b *Builder) Utf8(s string) uint16 {
	enc, err := classfmt.EncodeModifiedUTF8(s)
	if err != nil {
		panic(err)
	}
	body := append([]byte{tagUtf8}, U2(uint16(len(enc)))...)
	return b.add("u:"+s, 1, append(body, enc...))
}

func (b *Builder) Integer(v int32) uint16 {
	body := append([]byte{tagInteger}, U4(uint32(v))...)
	return b.add(string(body), 1, body)
}

func (b *Builder) Float(v float32) uint16 {
	body := append([]byte{tagFloat}, U4(math.Float32bits(v))...)
	return b.add(string(body), 1, body)
}

func (b *Builder) Long(v int64) uint16 {
	body := append([]byte{tagLong}, U8(uint64(v))...)
	return b.add(string(body), 2, body)
}

func (b *Builder) Double(v float64) uint16 {
	body := append([]byte{tagDouble}, U8(math.Float64bits(v))...)
	return b.add(string(body), 2, body)
}

func (b *Builder) ref1(tag byte, idx uint16) uint16 {
	body := append([]byte{tag}, U2(idx)...)
	return b.add(string(body), 1, body)
}

func (b *Builder) ref2(tag byte, x, y uint16) uint16 {
	body := append([]byte{tag}, U2(x, y)...)
	return b.add(string(body), 1, body)
}

func (b *Builder) Class(name string) uint16   { return b.ref1(tagClass, b.Utf8(name)) }
func (b *Builder) String(s string) uint16     { return b.ref1(tagString, b.Utf8(s)) }
func (b *Builder) MethodType(d string) uint16 { return b.ref1(tagMethodType, b.Utf8(d)) }

func (b *Builder) NameAndType(name, desc string) uint16 {
	return b.ref2(tagNameAndType, b.Utf8(name), b.Utf8(desc))
}

func (b *Builder) Fieldref(class, name, desc string) uint16 {
	return b.ref2(tagFieldref, b.Class(class), b.NameAndType(name, desc))
}

func (b *Builder) Methodref(class, name, desc string) uint16 {
	return b.ref2(tagMethodref, b.Class(class), b.NameAndType(name, desc))
}

func (b *Builder) InterfaceMethodref(class, name, desc string) uint16 {
	return b.ref2(tagInterfaceMethodref, b.Class(class), b.NameAndType(name, desc))
}

func (b *Builder) MethodHandle(kind byte, ref uint16) uint16 {
	body := append([]byte{tagMethodHandle, kind}, U2(ref)...)
	return b.add(string(body), 1, body)
}

func (b *Builder) Dynamic(bsm uint16, name, desc string) uint16 {
	return b.ref2(tagDynamic, bsm, b.NameAndType(name, desc))
}

func (b *Builder) InvokeDynamic(bsm uint16, name, desc string) uint16 {
	return b.ref2(tagInvokeDynamic, bsm, b.NameAndType(name, desc))
}

// Attr builds an attribute, adding its name to the pool.
func (b *Builder) Attr(name string, data ...[]byte) Attribute {
	return Attribute{Name: b.Utf8(name), Data: Cat(data...)}
}

// Code builds a Code attribute.
func (b *Builder) Code(maxStack, maxLocals uint16, code []byte, handlers []Handler, attrs ...Attribute) Attribute {
	out := U2(maxStack, maxLocals)
	out = append(out, U4(uint32(len(code)))...)
	out = append(out, code...)
	out = append(out, U2(uint16(len(handlers)))...)
	for _, h := range handlers {
		out = append(out, U2(h.Start, h.End, h.Handler, h.CatchType)...)
	}
	out = append(out, attributes(attrs)...)
	return b.Attr("Code", out)
}

// Method adds a method and returns it for further editing.
func (b *Builder) Method(access uint16, name, desc string, attrs ...Attribute) *Member {
	b.Methods = append(b.Methods, Member{Access: access, Name: b.Utf8(name), Descriptor: b.Utf8(desc), Attributes: attrs})
	return &b.Methods[len(b.Methods)-1]
}

// Field adds a field.
func (b *Builder) Field(access uint16, name, desc string, attrs ...Attribute) {
	b.Fields = append(b.Fields, Member{Access: access, Name: b.Utf8(name), Descriptor: b.Utf8(desc), Attributes: attrs})
}

// PoolBytes returns constant_pool_count followed by the pool entries.
func (b *Builder) PoolBytes() []byte {
	return append(U2(b.next), b.pool...)
}

// Bytes assembles the class file.
func (b *Builder) Bytes() []byte {
	out := U4(0xCAFEBABE)
	out = append(out, U2(b.Minor, b.Major)...)
	out = append(out, b.PoolBytes()...)
	out = append(out, U2(b.Access, b.This, b.Super, uint16(len(b.Interfaces)))...)
	out = append(out, U2(b.Interfaces...)...)
	out = append(out, members(b.Fields)...)
	out = append(out, members(b.Methods)...)
	out = append(out, attributes(b.Attributes)...)
	return out
}

func members(ms []Member) []byte {
	out := U2(uint16(len(ms)))
	for _, m := range ms {
		out = append(out, U2(m.Access, m.Name, m.Descriptor)...)
		out = append(out, attributes(m.Attributes)...)
	}
	return out
}

func attributes(as []Attribute) []byte {
	out := U2(uint16(len(as)))
	for _, a := range as {
		out = append(out, U2(a.Name)...)
		out = append(out, U4(uint32(len(a.Data)))...)
		out = append(out, a.Data...)
	}
	return out
}

// U2 encodes big-endian 16-bit values.
func U2(vs ...uint16) []byte {
	out := make([]byte, 2*len(vs))
	for i, v := range vs {
		binary.BigEndian.PutUint16(out[2*i:], v)
	}
	return out
}

// U4 encodes a big-endian 32-bit value.
func U4(v uint32) []byte {
	return binary.BigEndian.AppendUint32(nil, v)
}

// U8 encodes a big-endian 64-bit value.
func U8(v uint64) []byte {
	return binary.BigEndian.AppendUint64(nil, v)
}

// Cat concatenates byte slices.
func Cat(parts ...[]byte) []byte {
	var out []byte
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// Minimal returns the builder for a class "Minimal extends java/lang/Object"
// with one constructor: aload_0; invokespecial Object.<init>; return.
func Minimal() *Builder {
	b := New()
	b.Access = AccPublic | AccSuper
	b.This = b.Class("Minimal")
	b.Super = b.Class("java/lang/Object")
	init := b.Methodref("java/lang/Object", "<init>", "()V")
	code := Cat([]byte{0x2a, 0xb7}, U2(init), []byte{0xb1})
	b.Method(AccPublic, "<init>", "()V", b.Code(1, 1, code, nil))
	return b
}
