package classfmt

import (
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

// DecodeModifiedUTF8 converts the class-file "modified UTF-8" encoding to a
// Go string. NUL is encoded as C0 80 and supplementary characters as two
// three-byte surrogate halves; a surrogate half without its partner fails.
// offset is used for error context only.
func DecodeModifiedUTF8(b []byte, offset int) (string, error) {
	ascii := true
	for _, c := range b {
		if c == 0 || c >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b), nil
	}

	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c == 0:
			return "", Errorf(KindInvalidUtf16Sequence, offset+i, "NUL byte in modified UTF-8")
		case c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0:
			if i+1 >= len(b) || b[i+1]&0xC0 != 0x80 {
				return "", Errorf(KindInvalidUtf16Sequence, offset+i, "truncated two-byte sequence")
			}
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0:
			if i+2 >= len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 {
				return "", Errorf(KindInvalidUtf16Sequence, offset+i, "truncated three-byte sequence")
			}
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			return "", Errorf(KindInvalidUtf16Sequence, offset+i, "illegal byte 0x%02x", c)
		}
	}

	var sb strings.Builder
	sb.Grow(len(b))
	for i := 0; i < len(units); i++ {
		u := units[i]
		switch {
		case u >= 0xD800 && u < 0xDC00:
			if i+1 >= len(units) || units[i+1] < 0xDC00 || units[i+1] >= 0xE000 {
				return "", Errorf(KindInvalidUtf16Sequence, offset, "high surrogate U+%04X without low surrogate", u)
			}
			sb.WriteRune(utf16.DecodeRune(rune(u), rune(units[i+1])))
			i++
		case u >= 0xDC00 && u < 0xE000:
			return "", Errorf(KindInvalidUtf16Sequence, offset, "lone low surrogate U+%04X", u)
		default:
			sb.WriteRune(rune(u))
		}
	}
	return sb.String(), nil
}

// EncodeModifiedUTF8 converts a Go string to modified UTF-8. Invalid UTF-8 in
// s cannot be represented as UTF-16 and fails.
func EncodeModifiedUTF8(s string) ([]byte, error) {
	out := make([]byte, 0, len(s))
	for i := 0; i < len(s); {
		r, size := utf8.DecodeRuneInString(s[i:])
		if r == utf8.RuneError && size == 1 {
			return nil, Errorf(KindInvalidUtf16Sequence, -1, "invalid UTF-8 at byte %d", i)
		}
		i += size
		switch {
		case r == 0:
			out = append(out, 0xC0, 0x80)
		case r < 0x80:
			out = append(out, byte(r))
		case r < 0x800:
			out = append(out, 0xC0|byte(r>>6), 0x80|byte(r&0x3F))
		case r < 0x10000:
			out = appendUnit3(out, uint16(r))
		default:
			hi, lo := utf16.EncodeRune(r)
			out = appendUnit3(out, uint16(hi))
			out = appendUnit3(out, uint16(lo))
		}
	}
	return out, nil
}

func appendUnit3(out []byte, u uint16) []byte {
	return append(out, 0xE0|byte(u>>12), 0x80|byte((u>>6)&0x3F), 0x80|byte(u&0x3F))
}
