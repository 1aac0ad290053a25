package tagger

import (
	"bytes"
	"strconv"
	"time"

	"github.com/bogem/id3v2/v2"
	"github.com/gabriel-vasile/mimetype"

	"github.com/NotTobi/soundcloud-dl-sub000/pkg/types"
)

const (
	id3HeaderSize = 10
	id3FooterFlag = 0x10
)

// MP3Writer replaces the buffer's leading ID3v2 tag (or prepends one) with
// a version 2.4 tag carrying the existing frames plus everything set.
type MP3Writer struct {
	writer
	src   []byte
	tag   *id3v2.Tag
	audio int // offset of the first byte after the original tag
	dirty bool
}

var _ types.TagWriter = (*MP3Writer)(nil)

// NewMP3 reads the leading ID3v2 tag of b, if any. It fails only for an
// empty buffer. An unreadable tag is recorded and leaves the writer inert.
func NewMP3(b []byte, opts Options) (*MP3Writer, error) {
	if len(b) == 0 {
		return nil, types.Errorf(types.ErrKindStructural, "tagger: empty mp3 buffer", nil)
	}
	w := &MP3Writer{
		writer: newWriter(types.FormatMP3, opts),
		src:    b,
		audio:  id3TagSize(b),
	}
	tag, err := id3v2.ParseReader(bytes.NewReader(b), id3v2.Options{Parse: true})
	if err != nil {
		w.record("ID3", types.Errorf(types.ErrKindMissing, "tagger: unreadable ID3v2 tag", err))
		return w, nil
	}
	tag.SetVersion(4)
	tag.SetDefaultEncoding(id3v2.EncodingUTF8)
	w.tag = tag
	return w, nil
}

// id3TagSize is the size of the ID3v2 tag at the start of b, footer
// included, or 0 when there is none.
func id3TagSize(b []byte) int {
	if len(b) < id3HeaderSize || string(b[:3]) != "ID3" {
		return 0
	}
	n := 0
	for _, c := range b[6:10] {
		n = n<<7 | int(c&0x7F)
	}
	n += id3HeaderSize
	if b[5]&id3FooterFlag != 0 {
		n += id3HeaderSize
	}
	return min(n, len(b))
}

// HasValidStructure reports whether the leading tag could be read.
func (w *MP3Writer) HasValidStructure() bool { return w.tag != nil }

// edit runs fn on the tag when the writer is usable.
func (w *MP3Writer) edit(field string, fn func(t *id3v2.Tag)) {
	if !w.open(field) {
		return
	}
	if w.tag == nil {
		w.record("ID3", types.ErrMissingStructure)
		return
	}
	fn(w.tag)
	w.dirty = true
}

func (w *MP3Writer) text(field, s string, fn func(t *id3v2.Tag, s string)) {
	if _, err := validText(field, s); err != nil {
		w.record(field, err)
		return
	}
	w.edit(field, func(t *id3v2.Tag) { fn(t, s) })
}

func (w *MP3Writer) SetTitle(title string) {
	w.text("TIT2", title, (*id3v2.Tag).SetTitle)
}

func (w *MP3Writer) SetAlbum(album string) {
	w.text("TALB", album, (*id3v2.Tag).SetAlbum)
}

func (w *MP3Writer) SetGrouping(grouping string) {
	w.text("TIT1", grouping, func(t *id3v2.Tag, s string) {
		t.AddTextFrame(t.CommonID("Content group description"), id3v2.EncodingUTF8, s)
	})
}

// SetComment replaces all comment frames with one English comment.
func (w *MP3Writer) SetComment(comment string) {
	w.text("COMM", comment, func(t *id3v2.Tag, s string) {
		id := t.CommonID("Comments")
		t.DeleteFrames(id)
		t.AddCommentFrame(id3v2.CommentFrame{
			Encoding: id3v2.EncodingUTF8,
			Language: "eng",
			Text:     s,
		})
	})
}

func (w *MP3Writer) SetArtists(artists []string) {
	s, err := joinArtists(artists)
	if err != nil {
		w.record("TPE1", err)
		return
	}
	w.edit("TPE1", func(t *id3v2.Tag) { t.SetArtist(s) })
}

func (w *MP3Writer) SetTrackNumber(n int) {
	if err := validTrack(n); err != nil {
		w.record("TRCK", err)
		return
	}
	w.edit("TRCK", func(t *id3v2.Tag) {
		t.AddTextFrame(t.CommonID("Track number/Position in set"), id3v2.EncodingUTF8, strconv.Itoa(n))
	})
}

func (w *MP3Writer) SetYear(year int) {
	if err := validYear(year); err != nil {
		w.record("TDRC", err)
		return
	}
	w.edit("TDRC", func(t *id3v2.Tag) { t.SetYear(strconv.Itoa(year)) })
}

// SetArtwork replaces any attached pictures with a front cover.
func (w *MP3Writer) SetArtwork(image []byte) {
	if err := validArtwork(image); err != nil {
		w.record("APIC", err)
		return
	}
	w.edit("APIC", func(t *id3v2.Tag) {
		t.DeleteFrames(t.CommonID("Attached picture"))
		t.AddAttachedPicture(id3v2.PictureFrame{
			Encoding:    id3v2.EncodingUTF8,
			MimeType:    mimetype.Detect(image).String(),
			PictureType: id3v2.PTFrontCover,
			Description: "Cover",
			Picture:     image,
		})
	})
}

// SetDuration stores the length in milliseconds as TLEN.
func (w *MP3Writer) SetDuration(d time.Duration) {
	if err := validDuration(d); err != nil {
		w.record("TLEN", err)
		return
	}
	w.edit("TLEN", func(t *id3v2.Tag) {
		t.AddTextFrame("TLEN", id3v2.EncodingUTF8, strconv.FormatInt(d.Milliseconds(), 10))
	})
}

// Finalize writes the new tag followed by the untouched audio frames. When
// nothing was set it returns the input as is.
func (w *MP3Writer) Finalize() (out []byte) {
	if !w.beginFinalize() {
		return nil
	}
	src := w.src
	defer func() {
		w.tag = nil
		w.src = nil
	}()
	if !w.dirty {
		return src
	}
	defer w.recoverRebuild(&out, src)

	var b bytes.Buffer
	b.Grow(w.tag.Size() + len(src) - w.audio)
	if _, err := w.tag.WriteTo(&b); err != nil {
		w.record("ID3", types.Errorf(types.ErrKindRebuild, "tagger: write ID3v2 tag", err))
		return src
	}
	b.Write(src[w.audio:])
	return b.Bytes()
}
