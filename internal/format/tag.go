package format

import (
	"bytes"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
)

// Tag is a four-byte atom identifier. Tags are opaque bytes; several
// metadata tags begin with 0xA9, which is '©' in Mac OS Roman.
type Tag [TagSize]byte

// String renders the tag as UTF-8, decoding high-bit bytes as Mac OS Roman.
func (t Tag) String() string {
	s, err := charmap.Macintosh.NewDecoder().Bytes(t[:])
	if err != nil {
		return string(t[:])
	}
	return string(s)
}

// ParseTag encodes s into a Tag. UTF-8 input such as "©nam" is mapped
// through Mac OS Roman; anything else (e.g. "\xa9nam") is taken as raw tag
// bytes. The encoded form must be 1-4 bytes; shorter tags are right-padded
// with spaces.
func ParseTag(s string) (Tag, error) {
	var t Tag
	raw := []byte(s)
	if utf8.ValidString(s) {
		var err error
		raw, err = charmap.Macintosh.NewEncoder().Bytes(raw)
		if err != nil {
			return t, validation("format: tag "+quote(s)+" is not representable", ErrTagShape)
		}
	}
	if len(raw) < 1 || len(raw) > TagSize {
		return t, validation("format: tag "+quote(s)+" must encode to 1-4 bytes", ErrTagShape)
	}
	copy(t[:], bytes.Repeat([]byte{' '}, TagSize))
	copy(t[:], raw)
	return t, nil
}

// MustTag is ParseTag for constants; it panics on malformed input.
func MustTag(s string) Tag {
	t, err := ParseTag(s)
	if err != nil {
		panic(err)
	}
	return t
}

func quote(s string) string {
	return "\"" + s + "\""
}
