package pak

import (
	"encoding/binary"
	"io"
	"unicode/utf16"
	"unicode/utf8"
)

// maxAlloc caps length prefixes before allocating. A larger length is far
// beyond any real archive field and indicates parsing with the wrong
// version, so it is reported as an unexpected EOF for the prober to consume.
const maxAlloc = 1 << 27

// stream reads little-endian pak primitives from an io.Reader and tracks
// how many bytes it has consumed.
type stream struct {
	r io.Reader
	n int64
}

func newStream(r io.Reader) *stream {
	return &stream{r: r}
}

// pos returns the number of bytes consumed so far.
func (s *stream) pos() int64 { return s.n }

func (s *stream) read(p []byte) error {
	n, err := io.ReadFull(s.r, p)
	s.n += int64(n)
	return err
}

func (s *stream) skip(n int64) error {
	c, err := io.CopyN(io.Discard, s.r, n)
	s.n += c
	if err == io.EOF {
		err = io.ErrUnexpectedEOF
	}
	return err
}

func (s *stream) u8() (byte, error) {
	var b [1]byte
	if err := s.read(b[:]); err != nil {
		return 0, err
	}
	return b[0], nil
}

func (s *stream) u16() (uint16, error) {
	var b [2]byte
	if err := s.read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint16(b[:]), nil
}

func (s *stream) u32() (uint32, error) {
	var b [4]byte
	if err := s.read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint32(b[:]), nil
}

func (s *stream) u64() (uint64, error) {
	var b [8]byte
	if err := s.read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// boolean reads a single flag byte, accepting only 0 and 1. Anything else
// usually means the stream is being parsed with the wrong version.
func (s *stream) boolean() (bool, error) {
	b, err := s.u8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	}
	return false, &BoolError{Got: b}
}

// guid reads 16 opaque bytes.
func (s *stream) guid() ([16]byte, error) {
	var g [16]byte
	err := s.read(g[:])
	return g, err
}

// str reads a length-prefixed string. A non-negative length selects UTF-8,
// a negative length selects UTF-16LE with |length| code units. The trailing
// NUL, when present, is stripped.
func (s *stream) str() (string, error) {
	n, err := s.u32()
	if err != nil {
		return "", err
	}
	length := int64(int32(n))
	switch {
	case length == 0:
		return "", nil
	case length > 0:
		if length > maxAlloc {
			return "", io.ErrUnexpectedEOF
		}
		buf := make([]byte, length)
		if err := s.read(buf); err != nil {
			return "", err
		}
		if buf[len(buf)-1] == 0 {
			buf = buf[:len(buf)-1]
		}
		if !utf8.Valid(buf) {
			return "", ErrUTF8
		}
		return string(buf), nil
	default:
		units := -length
		if units > maxAlloc/2 {
			return "", io.ErrUnexpectedEOF
		}
		buf := make([]byte, 2*units)
		if err := s.read(buf); err != nil {
			return "", err
		}
		u := make([]uint16, units)
		for i := range u {
			u[i] = binary.LittleEndian.Uint16(buf[2*i:])
		}
		if len(u) > 0 && u[len(u)-1] == 0 {
			u = u[:len(u)-1]
		}
		if !validUTF16(u) {
			return "", ErrUTF16
		}
		return string(utf16.Decode(u)), nil
	}
}

// validUTF16 reports whether every surrogate code unit is part of a valid
// high/low pair. utf16.Decode silently replaces stray surrogates, but the
// format treats them as corruption.
func validUTF16(u []uint16) bool {
	for i := 0; i < len(u); i++ {
		switch c := u[i]; {
		case c >= 0xD800 && c < 0xDC00:
			if i+1 >= len(u) || u[i+1] < 0xDC00 || u[i+1] >= 0xE000 {
				return false
			}
			i++
		case c >= 0xDC00 && c < 0xE000:
			return false
		}
	}
	return true
}

// count reads a 32-bit array length, bounded for sanity.
func (s *stream) count() (int, error) {
	n, err := s.u32()
	if err != nil {
		return 0, err
	}
	if n > maxAlloc {
		return 0, io.ErrUnexpectedEOF
	}
	return int(n), nil
}
