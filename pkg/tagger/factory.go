package tagger

import (
	"bytes"

	"github.com/gabriel-vasile/mimetype"

	"github.com/NotTobi/soundcloud-dl-sub000/internal/format"
	"github.com/NotTobi/soundcloud-dl-sub000/pkg/types"
)

// Writer is a TagWriter that also reports what went wrong.
type Writer interface {
	types.TagWriter
	types.DiagnosticSource
	HasValidStructure() bool
	Format() types.Format
}

var (
	_ Writer = (*MP4Writer)(nil)
	_ Writer = (*MP3Writer)(nil)
	_ Writer = (*WAVWriter)(nil)
)

// Detect identifies the container format of b from its leading bytes,
// falling back to content sniffing.
func Detect(b []byte) types.Format {
	switch {
	case len(b) >= 8 && format.Tag(b[4:8]) == format.TagFtyp:
		return types.FormatMP4
	case len(b) >= 8 && format.Tag(b[4:8]) == format.RootTag:
		return types.FormatMP4
	case len(b) >= 12 && bytes.Equal(b[0:4], []byte("RIFF")) && bytes.Equal(b[8:12], []byte("WAVE")):
		return types.FormatWAV
	case len(b) >= 3 && bytes.Equal(b[0:3], []byte("ID3")):
		return types.FormatMP3
	case len(b) >= 2 && b[0] == 0xFF && b[1]&0xE0 == 0xE0:
		return types.FormatMP3
	}

	m := mimetype.Detect(b)
	switch {
	case m.Is("audio/mp4"), m.Is("video/mp4"), m.Is("audio/x-m4a"):
		return types.FormatMP4
	case m.Is("audio/mpeg"):
		return types.FormatMP3
	case m.Is("audio/wav"):
		return types.FormatWAV
	}
	return types.FormatUnknown
}

// New detects the format of b and returns the matching writer.
func New(b []byte, opts Options) (Writer, error) {
	var (
		w   Writer
		err error
	)
	switch Detect(b) {
	case types.FormatMP4:
		var mw *MP4Writer
		mw, err = NewMP4(b, opts)
		w = mw
	case types.FormatMP3:
		var mw *MP3Writer
		mw, err = NewMP3(b, opts)
		w = mw
	case types.FormatWAV:
		var ww *WAVWriter
		ww, err = NewWAV(b, opts)
		w = ww
	default:
		return nil, types.ErrUnsupportedFormat
	}
	if err != nil {
		return nil, err
	}
	return w, nil
}
