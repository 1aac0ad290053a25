package format

import (
	"errors"
	"testing"

	"github.com/NotTobi/soundcloud-dl-sub000/pkg/types"
)

func TestParseTag(t *testing.T) {
	cases := map[string]Tag{
		"©nam":     TagTitle,
		"\xa9nam":  TagTitle,
		"\xa9ART":  TagArtist,
		"\xff\x00": {0xFF, 0x00, ' ', ' '},
		"trkn":     TagTrack,
		"a":        {'a', ' ', ' ', ' '},
		"cov":      {'c', 'o', 'v', ' '},
	}
	for in, want := range cases {
		got, err := ParseTag(in)
		if err != nil {
			t.Fatalf("ParseTag(%q): %v", in, err)
		}
		if got != want {
			t.Fatalf("ParseTag(%q) = %x, want %x", in, got, want)
		}
	}
}

func TestParseTagRejectsBadShape(t *testing.T) {
	for _, in := range []string{"", "title", "©name", "日本", "\xa9name"} {
		_, err := ParseTag(in)
		if err == nil {
			t.Fatalf("ParseTag(%q) should fail", in)
		}
		if !errors.Is(err, ErrTagShape) || !errors.Is(err, types.ErrValidation) {
			t.Fatalf("ParseTag(%q) error %v should be a tag-shape validation error", in, err)
		}
	}
}

func TestMustTagPanics(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatalf("MustTag should panic on a 5-byte tag")
		}
	}()
	MustTag("toolong")
}
