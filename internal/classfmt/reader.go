package classfmt

import "encoding/binary"

// Reader reads big-endian class-file data. It only moves forward; the
// cursor advances only when a read succeeds.
type Reader struct {
	data []byte
	pos  int
	end  int
	base int // absolute offset of data[0] in the original buffer
}

// NewReader creates a reader over data.
func NewReader(data []byte) *Reader {
	return &Reader{data: data, end: len(data)}
}

// Position returns the read position relative to the start of this reader.
func (r *Reader) Position() int { return r.pos }

// Offset returns the absolute offset of the read position in the original buffer.
func (r *Reader) Offset() int { return r.base + r.pos }

// Remaining returns bytes left to read.
func (r *Reader) Remaining() int { return r.end - r.pos }

func (r *Reader) need(n int) error {
	if n < 0 || r.end-r.pos < n {
		return &Error{
			Kind:   KindInsufficientData,
			Offset: r.Offset(),
			Need:   n,
			Msg:    "unexpected end of data",
		}
	}
	return nil
}

// ReadU1 reads an unsigned byte.
func (r *Reader) ReadU1() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

// ReadS1 reads a signed byte.
func (r *Reader) ReadS1() (int8, error) {
	v, err := r.ReadU1()
	return int8(v), err
}

// ReadU2 reads a big-endian uint16.
func (r *Reader) ReadU2() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

// ReadS2 reads a big-endian int16.
func (r *Reader) ReadS2() (int16, error) {
	v, err := r.ReadU2()
	return int16(v), err
}

// ReadU4 reads a big-endian uint32.
func (r *Reader) ReadU4() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

// ReadS4 reads a big-endian int32.
func (r *Reader) ReadS4() (int32, error) {
	v, err := r.ReadU4()
	return int32(v), err
}

// ReadU8 reads a big-endian uint64.
func (r *Reader) ReadU8() (uint64, error) {
	if err := r.need(8); err != nil {
		return 0, err
	}
	v := binary.BigEndian.Uint64(r.data[r.pos:])
	r.pos += 8
	return v, nil
}

// ReadS8 reads a big-endian int64.
func (r *Reader) ReadS8() (int64, error) {
	v, err := r.ReadU8()
	return int64(v), err
}

// ReadBytes reads n bytes into a new slice.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	out := make([]byte, n)
	copy(out, r.data[r.pos:r.pos+n])
	r.pos += n
	return out, nil
}

// Skip advances the position by n bytes.
func (r *Reader) Skip(n int) error {
	if err := r.need(n); err != nil {
		return err
	}
	r.pos += n
	return nil
}

// Sub returns a reader limited to the next n bytes and advances r past them.
// Reads on the child can never observe bytes outside that window.
func (r *Reader) Sub(n int) (*Reader, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	child := &Reader{
		data: r.data[r.pos : r.pos+n : r.pos+n],
		end:  n,
		base: r.base + r.pos,
	}
	r.pos += n
	return child, nil
}
