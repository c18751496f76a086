// Package classfmt provides the low-level reader, error taxonomy and options
// shared by every stage of JVM class-file decoding.
package classfmt

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a decoding failure.
type Kind string

const (
	KindNotAClassFile            Kind = "not_a_class_file"
	KindUnsupportedVersion       Kind = "unsupported_version"
	KindInsufficientData         Kind = "insufficient_data"
	KindInvalidConstantPoolIndex Kind = "invalid_constant_pool_index"
	KindInvalidAttributeLength   Kind = "invalid_attribute_length"
	KindInvalidDescriptor        Kind = "invalid_descriptor"
	KindInvalidSignature         Kind = "invalid_signature"
	KindDataTooLarge             Kind = "data_too_large"
	KindInvalidUtf16Sequence     Kind = "invalid_utf16_sequence"
	KindUnknownTag               Kind = "unknown_tag"
	KindInvalidBytecode          Kind = "invalid_bytecode"
	KindInvalidStackMap          Kind = "invalid_stack_map"
	KindInvalidClassStructure    Kind = "invalid_class_structure"
)

// Sentinels for errors.Is. Every *Error unwraps to the sentinel of its Kind.
var (
	ErrNotAClassFile            = errors.New("classfmt: not a class file")
	ErrUnsupportedVersion       = errors.New("classfmt: unsupported class file version")
	ErrInsufficientData         = errors.New("classfmt: insufficient data")
	ErrInvalidConstantPoolIndex = errors.New("classfmt: invalid constant pool index")
	ErrInvalidAttributeLength   = errors.New("classfmt: invalid attribute length")
	ErrInvalidDescriptor        = errors.New("classfmt: invalid descriptor")
	ErrInvalidSignature         = errors.New("classfmt: invalid signature")
	ErrDataTooLarge             = errors.New("classfmt: data too large")
	ErrInvalidUtf16Sequence     = errors.New("classfmt: invalid UTF-16 sequence")
	ErrUnknownTag               = errors.New("classfmt: unknown tag")
	ErrInvalidBytecode          = errors.New("classfmt: invalid bytecode")
	ErrInvalidStackMap          = errors.New("classfmt: invalid stack map")
	ErrInvalidClassStructure    = errors.New("classfmt: invalid class structure")
)

var sentinels = map[Kind]error{
	KindNotAClassFile:            ErrNotAClassFile,
	KindUnsupportedVersion:       ErrUnsupportedVersion,
	KindInsufficientData:         ErrInsufficientData,
	KindInvalidConstantPoolIndex: ErrInvalidConstantPoolIndex,
	KindInvalidAttributeLength:   ErrInvalidAttributeLength,
	KindInvalidDescriptor:        ErrInvalidDescriptor,
	KindInvalidSignature:         ErrInvalidSignature,
	KindDataTooLarge:             ErrDataTooLarge,
	KindInvalidUtf16Sequence:     ErrInvalidUtf16Sequence,
	KindUnknownTag:               ErrUnknownTag,
	KindInvalidBytecode:          ErrInvalidBytecode,
	KindInvalidStackMap:          ErrInvalidStackMap,
	KindInvalidClassStructure:    ErrInvalidClassStructure,
}

// Error is a structural decoding failure. Fields other than Kind are
// optional context; zero values are omitted from the message.
type Error struct {
	Kind     Kind   `json:"kind"`
	Offset   int    `json:"offset"`             // absolute byte offset, -1 if unknown
	Index    int    `json:"index,omitempty"`    // constant pool index, if relevant
	Expected string `json:"expected,omitempty"` // expected tag or value
	Actual   string `json:"actual,omitempty"`   // actual tag or value
	Need     int    `json:"need,omitempty"`     // bytes requested (InsufficientData)
	Msg      string `json:"msg,omitempty"`
}

func (e *Error) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s]", e.Kind)
	if e.Offset >= 0 {
		fmt.Fprintf(&b, " 0x%x:", e.Offset)
	}
	if e.Msg != "" {
		b.WriteString(" ")
		b.WriteString(e.Msg)
	}
	if e.Index != 0 {
		fmt.Fprintf(&b, " (index %d)", e.Index)
	}
	if e.Expected != "" || e.Actual != "" {
		fmt.Fprintf(&b, " (expected %s, got %s)", orNone(e.Expected), orNone(e.Actual))
	}
	if e.Need != 0 {
		fmt.Fprintf(&b, " (need %d bytes)", e.Need)
	}
	return b.String()
}

func (e *Error) Unwrap() error { return sentinels[e.Kind] }

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}

// Errorf builds an *Error of the given kind at offset.
func Errorf(kind Kind, offset int, format string, args ...any) *Error {
	return &Error{Kind: kind, Offset: offset, Msg: fmt.Sprintf(format, args...)}
}

// IndexError builds an InvalidConstantPoolIndex error.
func IndexError(index int, expected, actual string) *Error {
	return &Error{
		Kind:     KindInvalidConstantPoolIndex,
		Offset:   -1,
		Index:    index,
		Expected: expected,
		Actual:   actual,
	}
}

// KindOf returns the Kind carried by err, or "" if err is not a decoding error.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
