package tagger

import (
	"fmt"
	"math"
	"math/bits"
	"strconv"
	"time"

	"github.com/NotTobi/soundcloud-dl-sub000/internal/buf"
	"github.com/NotTobi/soundcloud-dl-sub000/internal/edit"
	"github.com/NotTobi/soundcloud-dl-sub000/internal/format"
	"github.com/NotTobi/soundcloud-dl-sub000/internal/tree"
	"github.com/NotTobi/soundcloud-dl-sub000/pkg/types"
)

var mvhdPath = []format.Tag{format.TagMoov, format.TagMvhd}

// MP4Writer embeds iTunes-style metadata items into moov/udta/meta/ilst,
// creating any missing part of that chain.
type MP4Writer struct {
	writer
	tree *tree.Tree
	src  []byte
}

var _ types.TagWriter = (*MP4Writer)(nil)

// NewMP4 parses the top-level atoms of b. It fails only when b holds no
// readable atom. A buffer without a moov atom is accepted; every setter on
// it is then a recorded no-op and Finalize returns b unchanged.
func NewMP4(b []byte, opts Options) (*MP4Writer, error) {
	t, err := tree.Parse(b)
	if err != nil {
		return nil, err
	}
	w := &MP4Writer{
		writer: newWriter(types.FormatMP4, opts),
		tree:   t,
		src:    b,
	}
	if !t.HasValidStructure() {
		w.record(format.RootTag.String(), types.ErrMissingStructure)
	}
	return w, nil
}

// HasValidStructure reports whether the buffer has a top-level moov atom.
func (w *MP4Writer) HasValidStructure() bool { return w.tree.HasValidStructure() }

func (w *MP4Writer) SetTitle(title string)       { w.setText(format.TagTitle, title) }
func (w *MP4Writer) SetAlbum(album string)       { w.setText(format.TagAlbum, album) }
func (w *MP4Writer) SetComment(comment string)   { w.setText(format.TagComment, comment) }
func (w *MP4Writer) SetGrouping(grouping string) { w.setText(format.TagGrouping, grouping) }
func (w *MP4Writer) SetAlbumArtist(name string)  { w.setText(format.TagAlbumArtist, name) }
func (w *MP4Writer) SetGenre(genre string)       { w.setText(format.TagGenre, genre) }

// SetArtists stores all non-blank names, joined with ", ", as one ©ART item.
func (w *MP4Writer) SetArtists(artists []string) {
	s, err := joinArtists(artists)
	if err != nil {
		w.record(format.TagArtist.String(), err)
		return
	}
	w.setItem(format.TagArtist, format.TextValue(s))
}

// SetTrackNumber stores n as a trkn tuple with no total.
func (w *MP4Writer) SetTrackNumber(n int) {
	if err := validTrack(n); err != nil {
		w.record(format.TagTrack.String(), err)
		return
	}
	w.setItem(format.TagTrack, format.IntValue(uint64(n)))
}

// SetYear stores the year as ©day text.
func (w *MP4Writer) SetYear(year int) {
	if err := validYear(year); err != nil {
		w.record(format.TagYear.String(), err)
		return
	}
	w.setItem(format.TagYear, format.TextValue(strconv.Itoa(year)))
}

// SetArtwork stores image as covr; PNG images are flagged as such, anything
// else as JPEG.
func (w *MP4Writer) SetArtwork(image []byte) {
	if err := validArtwork(image); err != nil {
		w.record(format.TagArtwork.String(), err)
		return
	}
	w.setItem(format.TagArtwork, format.BytesValue(image))
}

func (w *MP4Writer) setText(tag format.Tag, s string) {
	if _, err := validText(tag.String(), s); err != nil {
		w.record(tag.String(), err)
		return
	}
	w.setItem(tag, format.TextValue(s))
}

// setItem appends one item to ilst. The item is encoded before the tree is
// touched, so a rejected value never creates the chain.
func (w *MP4Writer) setItem(tag format.Tag, v format.Value) {
	name := tag.String()
	if !w.open(name) {
		return
	}
	if !w.tree.HasValidStructure() {
		w.record(format.RootTag.String(), types.ErrMissingStructure)
		return
	}

	body, err := format.BuildMetadataBody(tag, v)
	if err != nil {
		w.record(name, err)
		return
	}
	leaf, err := tree.NewLeaf(tag, body)
	if err != nil {
		w.record(name, err)
		return
	}

	if _, err := w.tree.AppendAt(format.MetadataPath, leaf); err != nil {
		w.record(name, err)
	}
}

// SetDuration overwrites the movie header's duration in place, scaled by
// its timescale. No atom changes length.
func (w *MP4Writer) SetDuration(d time.Duration) {
	const field = "mvhd"
	if !w.open(field) {
		return
	}
	if err := validDuration(d); err != nil {
		w.record(field, err)
		return
	}
	if !w.tree.HasValidStructure() {
		w.record(format.RootTag.String(), types.ErrMissingStructure)
		return
	}

	mvhd := w.tree.Resolve(mvhdPath)
	if mvhd == nil {
		w.record(field, types.Errorf(types.ErrKindInsertion, "tagger: no movie header", nil))
		return
	}
	raw, ok := buf.Slice(w.src, mvhd.Offset, int(mvhd.Length))
	if !ok || len(raw) <= format.MvhdVersionOffset {
		w.record(field, types.Errorf(types.ErrKindInsertion, "tagger: movie header truncated", nil))
		return
	}

	var tsOff, durOff, durSize int
	switch raw[format.MvhdVersionOffset] {
	case 0:
		tsOff, durOff, durSize = format.MvhdV0TimescaleOffset, format.MvhdV0DurationOffset, format.MvhdV0DurationSize
	case 1:
		tsOff, durOff, durSize = format.MvhdV1TimescaleOffset, format.MvhdV1DurationOffset, format.MvhdV1DurationSize
	default:
		w.record(field, types.Errorf(types.ErrKindUnsupported,
			fmt.Sprintf("tagger: movie header version %d", raw[format.MvhdVersionOffset]), nil))
		return
	}
	if len(raw) < durOff+durSize {
		w.record(field, types.Errorf(types.ErrKindInsertion, "tagger: movie header truncated", nil))
		return
	}

	ts := buf.U32BE(raw[tsOff:])
	if ts == 0 {
		w.record(field, invalid("duration", "movie timescale is zero", errOutOfRange))
		return
	}
	units, ok := scaleDuration(d, ts)
	if !ok || (durSize == format.MvhdV0DurationSize && units > math.MaxUint32) {
		w.record(field, invalid("duration", d.String()+" does not fit the movie header", errOutOfRange))
		return
	}

	field8 := make([]byte, 8)
	buf.PutU64BE(field8, units)
	if err := w.tree.Overwrite(mvhd, durOff, field8[8-durSize:]); err != nil {
		w.record(field, err)
	}
}

// scaleDuration converts d to timescale units, truncating.
func scaleDuration(d time.Duration, timescale uint32) (uint64, bool) {
	hi, lo := bits.Mul64(uint64(d), uint64(timescale))
	if hi >= uint64(time.Second) {
		return 0, false
	}
	q, _ := bits.Div64(hi, lo, uint64(time.Second))
	return q, true
}

// Finalize rebuilds the buffer once and releases the parsed tree. On any
// rebuild failure it returns the original input. A second call returns nil.
func (w *MP4Writer) Finalize() (out []byte) {
	if !w.beginFinalize() {
		return nil
	}
	src := w.src
	defer func() {
		w.tree.Release()
		w.src = nil
	}()
	defer w.recoverRebuild(&out, src)

	b, err := edit.Rebuild(w.tree)
	if err != nil {
		w.record("finalize", err)
		return src
	}
	return b
}
