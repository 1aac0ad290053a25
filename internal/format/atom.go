package format

import "github.com/NotTobi/soundcloud-dl-sub000/internal/buf"

// Header describes one atom as declared in the buffer.
type Header struct {
	Offset int
	Length uint32
	Tag    Tag
}

// End returns the offset one past the atom's last byte.
func (h Header) End() int {
	return h.Offset + int(h.Length)
}

// ReadAtom decodes the atom header located at off within b.
//
// ok is false when fewer than HeaderSize bytes remain, when the declared
// length is smaller than the header itself (which also covers the 64-bit
// "largesize" and "to end of file" encodings), or when the atom would
// extend past len(b). Callers treat a false result as the end of the
// current sequence, not as an error.
func ReadAtom(b []byte, off int) (Header, bool) {
	head, ok := buf.Slice(b, off, HeaderSize)
	if !ok {
		return Header{}, false
	}
	length := buf.U32BE(head)
	if length < HeaderSize {
		return Header{}, false
	}
	if !buf.Has(b, off, int(length)) {
		return Header{}, false
	}
	h := Header{Offset: off, Length: length}
	copy(h.Tag[:], head[LengthFieldSize:HeaderSize])
	return h, true
}

// PutHeader writes length and tag into dst[0:8].
// It reports false when dst is too short.
func PutHeader(dst []byte, length uint32, tag Tag) bool {
	if len(dst) < HeaderSize {
		return false
	}
	buf.PutU32BE(dst, length)
	copy(dst[LengthFieldSize:HeaderSize], tag[:])
	return true
}

// AppendHeader appends an 8-byte header to dst.
func AppendHeader(dst []byte, length uint32, tag Tag) []byte {
	var h [HeaderSize]byte
	PutHeader(h[:], length, tag)
	return append(dst, h[:]...)
}
