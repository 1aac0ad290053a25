// Package format houses low-level decoders and encoders for the MP4-family
// box ("atom") layout. The goal is to keep the parsing focused,
// allocation-free where possible, and independent from the public API so
// higher-level packages can orchestrate the data in a more ergonomic form.
//
// Every atom starts with an 8-byte header (big-endian):
//
//	Offset  Size  Field
//	0x00    4     Total length including this header
//	0x04    4     Four-byte tag ('moov', 'ilst', 0xA9 'n' 'a' 'm', ...)
//
// Container atoms hold a sequence of child atoms after the header. Two
// containers carry non-atom bytes before their first child: 'meta'
// (version+flags) and 'stsd' (version+flags+entry count).
package format

const (
	// HeaderSize is the size of the length+tag header preceding every atom.
	HeaderSize = 8

	// LengthFieldSize and TagSize split the header.
	LengthFieldSize = 4
	TagSize         = 4

	// MetaExtensionSize is the version+flags prefix of a 'meta' atom.
	MetaExtensionSize = 4

	// StsdExtensionSize is the version+flags+entry-count prefix of 'stsd'.
	StsdExtensionSize = 8

	// DataAtomHeaderSize covers the 'data' child of a metadata item:
	// length(4) 'data'(4) version(1) classifier(3) locale(4).
	DataAtomHeaderSize = 16

	// ItemHeaderSize is the fixed size of an encoded metadata item before
	// its payload: the item header plus the 'data' header.
	ItemHeaderSize = HeaderSize + DataAtomHeaderSize

	// MaxAtomLength is the largest length representable in the 32-bit field.
	MaxAtomLength = 0xFFFFFFFF
)

// mvhd field offsets, relative to the start of the atom (header included).
//
//	v0: version/flags 0x08, creation 0x0C (4), modification 0x10 (4),
//	    timescale 0x14 (4), duration 0x18 (4)
//	v1: version/flags 0x08, creation 0x0C (8), modification 0x14 (8),
//	    timescale 0x1C (4), duration 0x20 (8)
const (
	MvhdVersionOffset     = 0x08
	MvhdV0TimescaleOffset = 0x14
	MvhdV0DurationOffset  = 0x18
	MvhdV0DurationSize    = 4
	MvhdV1TimescaleOffset = 0x1C
	MvhdV1DurationOffset  = 0x20
	MvhdV1DurationSize    = 8
)

// Well-known structural tags.
var (
	TagFtyp = Tag{'f', 't', 'y', 'p'}
	TagMoov = Tag{'m', 'o', 'o', 'v'}
	TagMvhd = Tag{'m', 'v', 'h', 'd'}
	TagTrak = Tag{'t', 'r', 'a', 'k'}
	TagMdia = Tag{'m', 'd', 'i', 'a'}
	TagMinf = Tag{'m', 'i', 'n', 'f'}
	TagStbl = Tag{'s', 't', 'b', 'l'}
	TagStsd = Tag{'s', 't', 's', 'd'}
	TagUdta = Tag{'u', 'd', 't', 'a'}
	TagMeta = Tag{'m', 'e', 't', 'a'}
	TagHdlr = Tag{'h', 'd', 'l', 'r'}
	TagIlst = Tag{'i', 'l', 's', 't'}
	TagData = Tag{'d', 'a', 't', 'a'}
	TagMdat = Tag{'m', 'd', 'a', 't'}
	TagFree = Tag{'f', 'r', 'e', 'e'}
)

// iTunes-style metadata item tags. 0xA9 is '©' in Mac OS Roman.
var (
	TagTitle       = Tag{0xA9, 'n', 'a', 'm'}
	TagArtist      = Tag{0xA9, 'A', 'R', 'T'}
	TagAlbumArtist = Tag{'a', 'A', 'R', 'T'}
	TagAlbum       = Tag{0xA9, 'a', 'l', 'b'}
	TagComment     = Tag{0xA9, 'c', 'm', 't'}
	TagYear        = Tag{0xA9, 'd', 'a', 'y'}
	TagGrouping    = Tag{0xA9, 'g', 'r', 'p'}
	TagGenre       = Tag{0xA9, 'g', 'e', 'n'}
	TagTrack       = Tag{'t', 'r', 'k', 'n'}
	TagDisc        = Tag{'d', 'i', 's', 'k'}
	TagArtwork     = Tag{'c', 'o', 'v', 'r'}
	TagTempo       = Tag{'t', 'm', 'p', 'o'}
	TagCompilation = Tag{'c', 'p', 'i', 'l'}
	TagRating      = Tag{'r', 't', 'n', 'g'}
)

// RootTag is the top-level container whose presence makes a buffer a
// usable metadata target.
var RootTag = TagMoov

// MetadataPath is the chain of containers leading to the metadata items.
var MetadataPath = []Tag{TagMoov, TagUdta, TagMeta, TagIlst}

// IsContainer reports whether atoms tagged t hold child atoms.
func IsContainer(t Tag) bool {
	switch t {
	case TagMoov, TagUdta, TagMeta, TagIlst,
		TagTrak, TagMdia, TagMinf, TagStbl, TagStsd:
		return true
	}
	return false
}

// ExtensionSize returns the number of non-atom bytes between a container's
// header and its first child.
func ExtensionSize(t Tag) int {
	switch t {
	case TagMeta:
		return MetaExtensionSize
	case TagStsd:
		return StsdExtensionSize
	}
	return 0
}

// ContainerHeaderSize is HeaderSize plus the container extension for t.
func ContainerHeaderSize(t Tag) int {
	return HeaderSize + ExtensionSize(t)
}
