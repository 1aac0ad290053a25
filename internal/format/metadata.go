package format

import (
	"math"

	"github.com/gabriel-vasile/mimetype"
	"golang.org/x/text/unicode/norm"

	"github.com/NotTobi/soundcloud-dl-sub000/internal/buf"
)

// Classifier is the well-known data type stored in the low 24 bits of a
// metadata item's 'data' version/flags field.
type Classifier uint32

const (
	ClassImplicit Classifier = 0  // binary, layout implied by the tag (trkn, disk)
	ClassUTF8     Classifier = 1  // text without terminator
	ClassJPEG     Classifier = 13 // image/jpeg
	ClassPNG      Classifier = 14 // image/png
	ClassBEInt    Classifier = 21 // big-endian signed integer
)

// ValueKind distinguishes the three payload shapes a metadata item can carry.
type ValueKind int

const (
	KindText ValueKind = iota
	KindInt
	KindBytes
)

func (k ValueKind) String() string {
	switch k {
	case KindText:
		return "text"
	case KindInt:
		return "integer"
	case KindBytes:
		return "bytes"
	default:
		return "unknown"
	}
}

// Value is a semantic value to embed.
type Value struct {
	kind ValueKind
	text string
	num  uint64
	raw  []byte
}

// TextValue wraps s. It is normalised to NFC when encoded.
func TextValue(s string) Value { return Value{kind: KindText, text: s} }

// IntValue wraps a non-negative integer.
func IntValue(n uint64) Value { return Value{kind: KindInt, num: n} }

// BytesValue wraps an opaque payload such as image bytes.
func BytesValue(b []byte) Value { return Value{kind: KindBytes, raw: b} }

// Kind reports the value's shape.
func (v Value) Kind() ValueKind { return v.kind }

// ClassifierFor returns the classifier stored for tag. It is derived from
// the tag alone, except that artwork is sniffed to pick JPEG or PNG.
func ClassifierFor(tag Tag, payload []byte) Classifier {
	switch tag {
	case TagArtwork:
		if len(payload) > 0 && mimetype.Detect(payload).Is("image/png") {
			return ClassPNG
		}
		return ClassJPEG
	case TagTrack, TagDisc:
		return ClassImplicit
	case TagTempo, TagCompilation, TagRating:
		return ClassBEInt
	default:
		return ClassUTF8
	}
}

// kindFor is the only value kind each classifier family accepts.
func kindFor(tag Tag) ValueKind {
	switch ClassifierFor(tag, nil) {
	case ClassJPEG, ClassPNG:
		return KindBytes
	case ClassImplicit, ClassBEInt:
		return KindInt
	default:
		return KindText
	}
}

// EncodePayload returns the raw payload bytes for v under tag.
func EncodePayload(tag Tag, v Value) ([]byte, error) {
	if want := kindFor(tag); v.kind != want {
		return nil, validation("format: "+tag.String()+" expects "+want.String()+
			" value, got "+v.kind.String(), ErrUnsupportedValue)
	}

	switch v.kind {
	case KindText:
		s := norm.NFC.String(v.text)
		if s == "" {
			return nil, validation("format: empty text for "+tag.String(), ErrEmptyValue)
		}
		return []byte(s), nil

	case KindBytes:
		if len(v.raw) == 0 {
			return nil, validation("format: empty payload for "+tag.String(), ErrEmptyValue)
		}
		return v.raw, nil

	case KindInt:
		return encodeInt(tag, v.num)
	}
	return nil, validation("format: unknown value kind", ErrUnsupportedValue)
}

// encodeInt lays out integers the way iTunes readers expect:
//
//	trkn, disk: 0x0000 | index (2) | total (2) | 0x0000
//	tmpo:       2 bytes
//	cpil, rtng: 1 byte
func encodeInt(tag Tag, n uint64) ([]byte, error) {
	switch tag {
	case TagTrack, TagDisc:
		if n > math.MaxUint16 {
			return nil, validation("format: "+tag.String()+" index exceeds 16 bits", ErrValueRange)
		}
		out := make([]byte, 8)
		out[2] = byte(n >> 8)
		out[3] = byte(n)
		return out, nil
	case TagTempo:
		if n > math.MaxUint16 {
			return nil, validation("format: tempo exceeds 16 bits", ErrValueRange)
		}
		return []byte{byte(n >> 8), byte(n)}, nil
	case TagCompilation, TagRating:
		if n > math.MaxUint8 {
			return nil, validation("format: "+tag.String()+" exceeds 8 bits", ErrValueRange)
		}
		return []byte{byte(n)}, nil
	}
	if n > math.MaxUint32 {
		out := make([]byte, 8)
		buf.PutU64BE(out, n)
		return out, nil
	}
	out := make([]byte, 4)
	buf.PutU32BE(out, uint32(n))
	return out, nil
}

// BuildMetadataAtom encodes v as a metadata item atom for tag (given as
// text, e.g. "©nam"). It returns the parsed tag and the item body: the
// bytes that follow the item's own 8-byte header, i.e. the complete 'data'
// child. The item's total length is HeaderSize + len(body).
func BuildMetadataAtom(tag string, v Value) (Tag, []byte, error) {
	t, err := ParseTag(tag)
	if err != nil {
		return Tag{}, nil, err
	}
	body, err := BuildMetadataBody(t, v)
	if err != nil {
		return Tag{}, nil, err
	}
	return t, body, nil
}

// BuildMetadataBody is BuildMetadataAtom for an already parsed tag.
func BuildMetadataBody(t Tag, v Value) ([]byte, error) {
	payload, err := EncodePayload(t, v)
	if err != nil {
		return nil, err
	}
	if uint64(len(payload)) > MaxAtomLength-ItemHeaderSize {
		return nil, validation("format: payload too large for "+t.String(), ErrValueRange)
	}

	body := make([]byte, DataAtomHeaderSize+len(payload))
	PutHeader(body, uint32(len(body)), TagData)
	// version 0, classifier in the low 24 bits; locale stays zero
	buf.PutU32BE(body[HeaderSize:], uint32(ClassifierFor(t, payload))&0x00FFFFFF)
	copy(body[DataAtomHeaderSize:], payload)
	return body, nil
}

// Item is a decoded metadata item atom.
type Item struct {
	Tag        Tag
	Classifier Classifier
	Payload    []byte
}

// DecodeItem decodes an item atom (header included) built by
// BuildMetadataAtom or found in an 'ilst' container.
func DecodeItem(b []byte) (Item, error) {
	h, ok := ReadAtom(b, 0)
	if !ok {
		return Item{}, validation("format: item header", ErrTruncated)
	}
	d, ok := ReadAtom(b[:h.Length], HeaderSize)
	if !ok || d.Tag != TagData || d.Length < DataAtomHeaderSize {
		return Item{}, validation("format: item "+h.Tag.String()+" has no data atom", ErrTruncated)
	}
	flags := buf.U32BE(b[d.Offset+HeaderSize:])
	return Item{
		Tag:        h.Tag,
		Classifier: Classifier(flags & 0x00FFFFFF),
		Payload:    b[d.Offset+DataAtomHeaderSize : d.End()],
	}, nil
}
