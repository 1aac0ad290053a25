package tagger

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"github.com/go-audio/wav"
	"golang.org/x/text/encoding"
	"golang.org/x/text/encoding/charmap"

	"github.com/NotTobi/soundcloud-dl-sub000/internal/buf"
	"github.com/NotTobi/soundcloud-dl-sub000/pkg/types"
)

const riffHeaderSize = 12

// RIFF INFO sub-chunk identifiers.
const (
	infoTitle    = "INAM"
	infoArtist   = "IART"
	infoAlbum    = "IPRD"
	infoComment  = "ICMT"
	infoTrack    = "ITRK"
	infoYear     = "ICRD"
	infoGrouping = "ISBJ"
)

type riffChunk struct {
	id   string
	data []byte // payload without the pad byte
}

// WAVWriter rewrites the RIFF LIST/INFO chunk of a WAVE buffer. Existing
// INFO fields are kept unless set again; all other chunks are copied as is.
type WAVWriter struct {
	writer
	src     []byte
	valid   bool
	chunks  []riffChunk // top-level chunks except LIST/INFO, in file order
	info    []riffChunk
	trailer []byte
	dirty   bool
}

var _ types.TagWriter = (*WAVWriter)(nil)

// NewWAV reads the chunk list of b. It fails only when b does not start
// with a RIFF/WAVE header. A header whose fmt chunk cannot be decoded is
// recorded and leaves the writer inert.
func NewWAV(b []byte, opts Options) (*WAVWriter, error) {
	if len(b) < riffHeaderSize || string(b[0:4]) != "RIFF" || string(b[8:12]) != "WAVE" {
		return nil, types.Errorf(types.ErrKindStructural, "tagger: no RIFF/WAVE header", nil)
	}
	w := &WAVWriter{
		writer: newWriter(types.FormatWAV, opts),
		src:    b,
	}
	if !wav.NewDecoder(bytes.NewReader(b)).IsValidFile() {
		w.record("RIFF", types.Errorf(types.ErrKindMissing, "tagger: WAVE fmt chunk unreadable", nil))
		return w, nil
	}
	w.readChunks()
	w.valid = true
	return w, nil
}

// readChunks walks the top-level chunk list. A chunk that runs past the
// end of the buffer stops the walk; the rest is kept verbatim.
func (w *WAVWriter) readChunks() {
	b := w.src
	pos := riffHeaderSize
	for {
		head, ok := buf.Slice(b, pos, 8)
		if !ok {
			break
		}
		size := int(buf.U32LE(head[4:]))
		data, ok := buf.Slice(b, pos+8, size)
		if !ok {
			break
		}
		id := string(head[:4])
		if id == "LIST" && len(data) >= 4 && string(data[:4]) == "INFO" {
			w.info = append(w.info, parseInfo(data[4:])...)
		} else {
			w.chunks = append(w.chunks, riffChunk{id: id, data: data})
		}
		pos += 8 + size + size&1
	}
	w.trailer = b[min(pos, len(b)):]
}

func parseInfo(b []byte) []riffChunk {
	var out []riffChunk
	for pos := 0; ; {
		head, ok := buf.Slice(b, pos, 8)
		if !ok {
			return out
		}
		size := int(buf.U32LE(head[4:]))
		data, ok := buf.Slice(b, pos+8, size)
		if !ok {
			return out
		}
		out = append(out, riffChunk{id: string(head[:4]), data: data})
		pos += 8 + size + size&1
	}
}

// HasValidStructure reports whether the WAVE header could be read.
func (w *WAVWriter) HasValidStructure() bool { return w.valid }

// setInfo replaces or appends the INFO field id.
func (w *WAVWriter) setInfo(id, s string) {
	if !w.open(id) {
		return
	}
	if !w.valid {
		w.record("RIFF", types.ErrMissingStructure)
		return
	}
	text, err := encoding.ReplaceUnsupported(charmap.Windows1252.NewEncoder()).String(s)
	if err != nil {
		w.record(id, invalid(id, "text encoding", err))
		return
	}
	data := append([]byte(text), 0)

	w.dirty = true
	for i := range w.info {
		if w.info[i].id == id {
			w.info[i].data = data
			return
		}
	}
	w.info = append(w.info, riffChunk{id: id, data: data})
}

func (w *WAVWriter) text(id, s string) {
	if _, err := validText(id, s); err != nil {
		w.record(id, err)
		return
	}
	w.setInfo(id, s)
}

func (w *WAVWriter) SetTitle(title string)       { w.text(infoTitle, title) }
func (w *WAVWriter) SetAlbum(album string)       { w.text(infoAlbum, album) }
func (w *WAVWriter) SetComment(comment string)   { w.text(infoComment, comment) }
func (w *WAVWriter) SetGrouping(grouping string) { w.text(infoGrouping, grouping) }

func (w *WAVWriter) SetArtists(artists []string) {
	s, err := joinArtists(artists)
	if err != nil {
		w.record(infoArtist, err)
		return
	}
	w.setInfo(infoArtist, s)
}

func (w *WAVWriter) SetTrackNumber(n int) {
	if err := validTrack(n); err != nil {
		w.record(infoTrack, err)
		return
	}
	w.setInfo(infoTrack, strconv.Itoa(n))
}

func (w *WAVWriter) SetYear(year int) {
	if err := validYear(year); err != nil {
		w.record(infoYear, err)
		return
	}
	w.setInfo(infoYear, strconv.Itoa(year))
}

// SetArtwork is not supported by RIFF INFO and is recorded as such.
func (w *WAVWriter) SetArtwork([]byte) { w.unsupported("artwork") }

// SetDuration is not supported: a WAVE file's length is implied by its
// data chunk.
func (w *WAVWriter) SetDuration(time.Duration) { w.unsupported("duration") }

func (w *WAVWriter) unsupported(field string) {
	if !w.open(field) {
		return
	}
	w.record(field, types.Errorf(types.ErrKindUnsupported, fmt.Sprintf("tagger: wav has no %s field", field), nil))
}

// Finalize emits the RIFF header, the original chunks, one LIST/INFO chunk
// and any trailing bytes. When nothing was set it returns the input as is.
func (w *WAVWriter) Finalize() (out []byte) {
	if !w.beginFinalize() {
		return nil
	}
	src := w.src
	defer func() {
		w.src, w.chunks, w.info, w.trailer = nil, nil, nil, nil
	}()
	if !w.dirty {
		return src
	}
	defer w.recoverRebuild(&out, src)

	b, err := w.encode()
	if err != nil {
		w.record("RIFF", err)
		return src
	}
	return b
}

func (w *WAVWriter) encode() ([]byte, error) {
	list := []byte("INFO")
	for _, c := range w.info {
		list = appendChunk(list, c)
	}

	out := make([]byte, 0, len(w.src)+len(list)+8)
	out = append(out, "RIFF\x00\x00\x00\x00WAVE"...)
	for _, c := range w.chunks {
		out = appendChunk(out, c)
	}
	out = appendChunk(out, riffChunk{id: "LIST", data: list})
	out = append(out, w.trailer...)

	size := uint64(len(out)) - 8
	if size > 0xFFFFFFFF {
		return nil, types.Errorf(types.ErrKindRebuild, "tagger: RIFF size overflows 32 bits", nil)
	}
	buf.PutU32LE(out[4:], uint32(size))
	return out, nil
}

func appendChunk(dst []byte, c riffChunk) []byte {
	var head [8]byte
	copy(head[:4], c.id)
	buf.PutU32LE(head[4:], uint32(len(c.data)))
	dst = append(dst, head[:]...)
	dst = append(dst, c.data...)
	if len(c.data)%2 == 1 {
		dst = append(dst, 0)
	}
	return dst
}
