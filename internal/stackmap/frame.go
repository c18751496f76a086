// Package stackmap decodes StackMapTable frames and replays them into full
// local/stack states that can be checked against the decoded bytecode.
package stackmap

import (
	"fmt"
	"strconv"

	"jclass/internal/classfmt"
	"jclass/internal/constpool"
)

// Tag is a verification_type_info tag.
type Tag uint8

const (
	Top Tag = iota
	Integer
	Float
	Double
	Long
	Null
	UninitializedThis
	Object
	Uninitialized
)

var tagNames = [...]string{
	Top:               "top",
	Integer:           "int",
	Float:             "float",
	Double:            "double",
	Long:              "long",
	Null:              "null",
	UninitializedThis: "uninitialized_this",
	Object:            "object",
	Uninitialized:     "uninitialized",
}

func (t Tag) String() string {
	if int(t) < len(tagNames) {
		return tagNames[t]
	}
	return "tag(" + strconv.Itoa(int(t)) + ")"
}

func (t Tag) MarshalText() ([]byte, error) { return []byte(t.String()), nil }

// VerificationType is one local or stack entry of a frame. Class is set for
// Object, Offset (of the creating new instruction) for Uninitialized.
type VerificationType struct {
	Tag    Tag    `json:"tag"`
	Class  string `json:"class,omitempty"`
	Offset uint16 `json:"offset,omitempty"`
}

// Category returns 2 for long and double, 1 otherwise.
func (v VerificationType) Category() int {
	if v.Tag == Long || v.Tag == Double {
		return 2
	}
	return 1
}

func (v VerificationType) String() string {
	switch v.Tag {
	case Object:
		return v.Class
	case Uninitialized:
		return fmt.Sprintf("uninitialized(%d)", v.Offset)
	}
	return v.Tag.String()
}

// Slots returns the number of local or stack slots vts occupy.
func Slots(vts []VerificationType) int {
	n := 0
	for _, v := range vts {
		n += v.Category()
	}
	return n
}

// Kind is the shape of a frame.
type Kind uint8

const (
	Same Kind = iota
	SameLocals1StackItem
	SameLocals1StackItemExtended
	Chop
	SameExtended
	Append
	Full
)

var kindNames = [...]string{
	Same:                         "same",
	SameLocals1StackItem:         "same_locals_1_stack_item",
	SameLocals1StackItemExtended: "same_locals_1_stack_item_extended",
	Chop:                         "chop",
	SameExtended:                 "same_extended",
	Append:                       "append",
	Full:                         "full",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return "?"
}

func (k Kind) MarshalText() ([]byte, error) { return []byte(k.String()), nil }

// Frame is one decoded stack_map_frame. Locals holds the appended locals for
// Append frames and the complete list for Full frames. Stack holds the single
// item of the SameLocals1 shapes or the complete stack of a Full frame.
type Frame struct {
	Kind        Kind               `json:"kind"`
	Type        uint8              `json:"frame_type"`
	OffsetDelta uint16             `json:"offset_delta"`
	Offset      int                `json:"offset"` // effective bytecode offset
	Chopped     int                `json:"chopped,omitempty"`
	Locals      []VerificationType `json:"locals,omitempty"`
	Stack       []VerificationType `json:"stack,omitempty"`
}

// Decode reads a StackMapTable attribute body: number_of_entries followed by
// the frames. Effective offsets are computed as they are read.
func Decode(r *classfmt.Reader, pool *constpool.Pool) ([]Frame, error) {
	n, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	frames := make([]Frame, 0, n)
	prev := -1
	for i := 0; i < int(n); i++ {
		f, err := decodeFrame(r, pool)
		if err != nil {
			return nil, fmt.Errorf("frame %d: %w", i, err)
		}
		f.Offset = prev + 1 + int(f.OffsetDelta)
		prev = f.Offset
		frames = append(frames, f)
	}
	return frames, nil
}

func decodeFrame(r *classfmt.Reader, pool *constpool.Pool) (Frame, error) {
	at := r.Offset()
	ft, err := r.ReadU1()
	if err != nil {
		return Frame{}, err
	}
	f := Frame{Type: ft}

	switch {
	case ft <= 63:
		f.Kind, f.OffsetDelta = Same, uint16(ft)
		return f, nil
	case ft <= 127:
		f.Kind, f.OffsetDelta = SameLocals1StackItem, uint16(ft-64)
		f.Stack, err = readTypes(r, pool, 1)
		return f, err
	case ft <= 246:
		return Frame{}, classfmt.Errorf(classfmt.KindUnknownTag, at, "reserved frame_type %d", ft)
	}

	if f.OffsetDelta, err = r.ReadU2(); err != nil {
		return Frame{}, err
	}
	switch {
	case ft == 247:
		f.Kind = SameLocals1StackItemExtended
		f.Stack, err = readTypes(r, pool, 1)
	case ft <= 250:
		f.Kind, f.Chopped = Chop, int(251-ft)
	case ft == 251:
		f.Kind = SameExtended
	case ft <= 254:
		f.Kind = Append
		f.Locals, err = readTypes(r, pool, int(ft-251))
	default:
		f.Kind = Full
		if f.Locals, err = readList(r, pool); err != nil {
			return Frame{}, err
		}
		f.Stack, err = readList(r, pool)
	}
	return f, err
}

func readList(r *classfmt.Reader, pool *constpool.Pool) ([]VerificationType, error) {
	n, err := r.ReadU2()
	if err != nil {
		return nil, err
	}
	return readTypes(r, pool, int(n))
}

func readTypes(r *classfmt.Reader, pool *constpool.Pool, n int) ([]VerificationType, error) {
	out := make([]VerificationType, 0, n)
	for range n {
		v, err := readType(r, pool)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func readType(r *classfmt.Reader, pool *constpool.Pool) (VerificationType, error) {
	at := r.Offset()
	tag, err := r.ReadU1()
	if err != nil {
		return VerificationType{}, err
	}
	v := VerificationType{Tag: Tag(tag)}
	switch v.Tag {
	case Top, Integer, Float, Double, Long, Null, UninitializedThis:
		return v, nil
	case Object:
		idx, err := r.ReadU2()
		if err != nil {
			return v, err
		}
		if v.Class, err = pool.ClassName(idx); err != nil {
			if ce, ok := err.(*classfmt.Error); ok && ce.Offset < 0 {
				ce.Offset = at
			}
			return v, err
		}
		return v, nil
	case Uninitialized:
		v.Offset, err = r.ReadU2()
		return v, err
	}
	return v, classfmt.Errorf(classfmt.KindUnknownTag, at, "verification type tag %d", tag)
}
