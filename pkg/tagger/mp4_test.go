package tagger

import (
	"bytes"
	"encoding/binary"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/dhowden/tag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NotTobi/soundcloud-dl-sub000/internal/format"
	"github.com/NotTobi/soundcloud-dl-sub000/internal/testutil"
	"github.com/NotTobi/soundcloud-dl-sub000/internal/tree"
	"github.com/NotTobi/soundcloud-dl-sub000/pkg/types"
)

var pngMagic = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 0x0d, 'I', 'H', 'D', 'R'}

// items decodes every item of the rebuilt ilst.
func items(t *testing.T, b []byte) []format.Item {
	t.Helper()
	tr, err := tree.Parse(b)
	require.NoError(t, err)
	ilst := tr.Resolve(format.MetadataPath)
	require.NotNil(t, ilst, "no ilst in output")

	var out []format.Item
	for _, a := range tr.ExpandChildren(ilst) {
		it, err := format.DecodeItem(b[a.Offset : a.Offset+int(a.Length)])
		require.NoError(t, err)
		out = append(out, it)
	}
	return out
}

func newMP4(t *testing.T, b []byte) *MP4Writer {
	t.Helper()
	w, err := NewMP4(b, Options{})
	require.NoError(t, err)
	return w
}

func TestMP4FinalizeWithoutChangesIsIdentity(t *testing.T) {
	in := testutil.M4A(testutil.M4AOptions{Chain: true, Samples: 100})
	w := newMP4(t, in)

	// rejected values leave nothing behind
	w.SetTitle("")
	w.SetTrackNumber(0)
	w.SetArtwork(nil)

	assert.Equal(t, in, w.Finalize())
	assert.Equal(t, 3, w.Diagnostics().Summary.Warnings)
}

func TestMP4RoundTripTitle(t *testing.T) {
	in := testutil.M4A(testutil.M4AOptions{Chain: true})
	w := newMP4(t, in)
	w.SetTitle("X")
	out := w.Finalize()

	got := items(t, out)
	require.Len(t, got, 1)
	assert.Equal(t, format.TagTitle, got[0].Tag)
	assert.Equal(t, []byte("X"), got[0].Payload)
	assert.False(t, w.Diagnostics().HasAnyIssues())
}

func TestMP4AppendOrderFollowsCalls(t *testing.T) {
	w := newMP4(t, testutil.M4A(testutil.M4AOptions{Chain: true}))
	w.SetTitle("A")
	w.SetComment("B")
	w.SetTitle("C")

	got := items(t, w.Finalize())
	require.Len(t, got, 3)
	assert.Equal(t, format.TagTitle, got[0].Tag)
	assert.Equal(t, format.TagComment, got[1].Tag)
	assert.Equal(t, []byte("B"), got[1].Payload)
	assert.Equal(t, []byte("C"), got[2].Payload)
}

func TestMP4GracefulDegradation(t *testing.T) {
	t.Run("no atoms", func(t *testing.T) {
		_, err := NewMP4([]byte{1, 2, 3}, Options{})
		assert.ErrorIs(t, err, types.ErrStructural)
	})

	t.Run("no root", func(t *testing.T) {
		in := append(testutil.Ftyp(), testutil.Atom("mdat", []byte("audio"))...)
		w := newMP4(t, in)
		assert.False(t, w.HasValidStructure())

		w.SetTitle("T")
		w.SetArtists([]string{"A"})
		w.SetAlbum("B")
		w.SetTrackNumber(2)
		w.SetYear(2020)
		w.SetArtwork([]byte{0xff, 0xd8, 0xff})
		w.SetDuration(time.Minute)

		assert.Equal(t, in, w.Finalize())
		report := w.Diagnostics()
		require.Len(t, report.Diagnostics, 1, "missing structure is reported once")
		assert.Equal(t, types.ErrMissingStructure.Error(), report.Diagnostics[0].Issue)
	})
}

func TestMP4LengthClosure(t *testing.T) {
	for name, in := range map[string][]byte{
		"existing chain": testutil.M4A(testutil.M4AOptions{Chain: true, Samples: 10}),
		"no chain":       testutil.M4A(testutil.M4AOptions{Samples: 10}),
		"bare root":      testutil.Atom("moov"),
	} {
		t.Run(name, func(t *testing.T) {
			w := newMP4(t, in)
			w.SetTitle("Title")
			w.SetArtwork(pngMagic)

			for a := w.tree.Resolve(format.MetadataPath); a != nil; a = a.Parent {
				assert.NoError(t, tree.Verify(a))
			}

			out := w.Finalize()
			tr, err := tree.Parse(out)
			require.NoError(t, err)
			ilst := tr.Resolve(format.MetadataPath)
			require.NotNil(t, ilst)
			tr.ExpandChildren(ilst)
			for a := ilst; a != nil; a = a.Parent {
				assert.NoError(t, tree.Verify(a))
				assert.Equal(t, uint32(a.ClosureLength()), a.Length)
			}
		})
	}
}

func TestMP4TrackNumberBounds(t *testing.T) {
	for _, tc := range []struct {
		n  int
		ok bool
	}{
		{0, false},
		{1, true},
		{32767, true},
		{32768, false},
		{-5, false},
	} {
		w := newMP4(t, testutil.M4A(testutil.M4AOptions{Chain: true}))
		moov := w.tree.Find(format.TagMoov)
		before := moov.Length

		w.SetTrackNumber(tc.n)
		if tc.ok {
			assert.Equal(t, before+32, moov.Length, "track %d", tc.n)
			assert.False(t, w.Diagnostics().HasAnyIssues())
			got := items(t, w.Finalize())
			require.Len(t, got, 1)
			assert.Equal(t, uint16(tc.n), binary.BigEndian.Uint16(got[0].Payload[2:]))
		} else {
			assert.Equal(t, before, moov.Length, "track %d", tc.n)
			assert.False(t, moov.Dirty)
			report := w.Diagnostics()
			require.Len(t, report.Diagnostics, 1)
			assert.Equal(t, types.DiagValidation, report.Diagnostics[0].Category)
		}
	}
}

func TestMP4DemoScenario(t *testing.T) {
	w := newMP4(t, testutil.Atom("moov"))
	w.SetAlbum("Demo")

	ilst := w.tree.Resolve(format.MetadataPath)
	require.NotNil(t, ilst)
	assert.Equal(t, 8, ilst.Parent.Parent.Offset, "udta placed after the 8-byte root")

	out := w.Finalize()
	require.Len(t, out, 64)
	assert.Equal(t, uint32(8+8+12+8+28), binary.BigEndian.Uint32(out))

	got := items(t, out)
	require.Len(t, got, 1)
	assert.Equal(t, format.TagAlbum, got[0].Tag)
	assert.Equal(t, []byte("Demo"), got[0].Payload)
}

func TestMP4Duration(t *testing.T) {
	t.Run("v0", func(t *testing.T) {
		in := testutil.M4A(testutil.M4AOptions{Timescale: 44100, Duration: 1})
		w := newMP4(t, in)
		w.SetDuration(90 * time.Second)
		out := w.Finalize()

		require.Len(t, out, len(in), "duration never changes lengths")
		mvhd := len(testutil.Ftyp()) + 8
		assert.Equal(t, uint32(90*44100), binary.BigEndian.Uint32(out[mvhd+format.MvhdV0DurationOffset:]))
		assert.Equal(t, uint32(1), binary.BigEndian.Uint32(in[mvhd+format.MvhdV0DurationOffset:]))
	})

	t.Run("v1", func(t *testing.T) {
		in := testutil.Atom("moov", testutil.MvhdV1(1000, 7))
		w := newMP4(t, in)
		w.SetDuration(1500 * time.Millisecond)
		out := w.Finalize()
		assert.Equal(t, uint64(1500), binary.BigEndian.Uint64(out[8+format.MvhdV1DurationOffset:]))
	})

	t.Run("overflow", func(t *testing.T) {
		in := testutil.M4A(testutil.M4AOptions{Timescale: 1 << 30})
		w := newMP4(t, in)
		w.SetDuration(time.Hour)
		assert.Equal(t, in, w.Finalize())
		assert.Equal(t, 1, w.Diagnostics().Summary.Warnings)
	})

	t.Run("no movie header", func(t *testing.T) {
		in := testutil.Atom("moov")
		w := newMP4(t, in)
		w.SetDuration(time.Second)
		assert.Equal(t, in, w.Finalize())
		report := w.Diagnostics()
		require.Len(t, report.Diagnostics, 1)
		assert.Equal(t, types.DiagInsertion, report.Diagnostics[0].Category)
	})
}

func TestMP4ArtworkClassifier(t *testing.T) {
	jpeg := []byte{0xff, 0xd8, 0xff, 0xe0, 0, 0x10, 'J', 'F', 'I', 'F', 0}
	for name, tc := range map[string]struct {
		image []byte
		class format.Classifier
	}{
		"jpeg": {jpeg, format.ClassJPEG},
		"png":  {pngMagic, format.ClassPNG},
	} {
		t.Run(name, func(t *testing.T) {
			w := newMP4(t, testutil.M4A(testutil.M4AOptions{}))
			w.SetArtwork(tc.image)
			got := items(t, w.Finalize())
			require.Len(t, got, 1)
			assert.Equal(t, format.TagArtwork, got[0].Tag)
			assert.Equal(t, tc.class, got[0].Classifier)
			assert.Equal(t, tc.image, got[0].Payload)
		})
	}
}

func TestMP4ReadBack(t *testing.T) {
	w := newMP4(t, testutil.M4A(testutil.M4AOptions{Samples: 256}))
	w.SetTitle("Night Drive")
	w.SetArtists([]string{"First", " ", "Second"})
	w.SetAlbum("Tapes")
	w.SetComment("from the stream")
	w.SetTrackNumber(7)
	w.SetYear(2019)
	w.SetGenre("Electronic")
	out := w.Finalize()
	require.False(t, w.Diagnostics().HasAnyIssues(), w.Diagnostics().FormatTextCompact())

	m, err := tag.ReadFrom(bytes.NewReader(out))
	require.NoError(t, err)
	assert.Equal(t, tag.MP4, m.Format())
	assert.Equal(t, "Night Drive", m.Title())
	assert.Equal(t, "First, Second", m.Artist())
	assert.Equal(t, "Tapes", m.Album())
	assert.Equal(t, "from the stream", m.Comment())
	assert.Equal(t, 2019, m.Year())
	assert.Equal(t, "Electronic", m.Genre())
	track, _ := m.Track()
	assert.Equal(t, 7, track)
}

func TestMP4FinalizeTwice(t *testing.T) {
	w := newMP4(t, testutil.Atom("moov"))
	w.SetTitle("Once")
	require.NotNil(t, w.Finalize())

	assert.Nil(t, w.Finalize())
	w.SetAlbum("late")
	w.SetDuration(time.Second)

	report := w.Diagnostics()
	require.Len(t, report.Diagnostics, 1)
	assert.Equal(t, types.ErrFinalized.Error(), report.Diagnostics[0].Issue)
	assert.True(t, w.tree.Released())
}

func TestMP4DiagnosticsLoggedOnce(t *testing.T) {
	var logs bytes.Buffer
	l := slog.New(slog.NewTextHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	shared := types.NewDedupSink(nil)

	in := testutil.Atom("free", []byte{0, 1})
	w, err := NewMP4(in, Options{Logger: l, Sink: shared})
	require.NoError(t, err)
	for range 5 {
		w.SetTitle("again")
	}
	w.SetYear(0)
	w.SetYear(0)

	assert.Equal(t, 1, strings.Count(logs.String(), types.ErrMissingStructure.Error()))
	assert.Contains(t, logs.String(), "level=INFO")
	assert.Contains(t, logs.String(), "format=mp4")
	assert.Equal(t, 2, shared.Len())
	assert.Equal(t, 2, w.Diagnostics().Summary.Warnings)
}
