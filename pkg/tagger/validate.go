package tagger

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/NotTobi/soundcloud-dl-sub000/pkg/types"
)

var (
	errEmpty      = errors.New("value is empty")
	errOutOfRange = errors.New("value out of range")
)

func invalid(field, msg string, cause error) error {
	return types.Errorf(types.ErrKindValidation, fmt.Sprintf("tagger: %s: %s", field, msg), cause)
}

func validText(field, s string) (string, error) {
	if strings.TrimSpace(s) == "" {
		return "", invalid(field, "text", errEmpty)
	}
	return s, nil
}

// joinArtists drops blank names and joins the rest with ", ".
func joinArtists(artists []string) (string, error) {
	names := make([]string, 0, len(artists))
	for _, a := range artists {
		if a = strings.TrimSpace(a); a != "" {
			names = append(names, a)
		}
	}
	if len(names) == 0 {
		return "", invalid("artists", "no names", errEmpty)
	}
	return strings.Join(names, ", "), nil
}

func validTrack(n int) error {
	if n < types.MinTrackNumber || n > types.MaxTrackNumber {
		return invalid("track", fmt.Sprintf("%d not in [%d,%d]", n, types.MinTrackNumber, types.MaxTrackNumber), errOutOfRange)
	}
	return nil
}

func validYear(y int) error {
	if y < 1 {
		return invalid("year", fmt.Sprintf("%d is before year 1", y), errOutOfRange)
	}
	return nil
}

func validArtwork(b []byte) error {
	if len(b) == 0 {
		return invalid("artwork", "image", errEmpty)
	}
	return nil
}

func validDuration(d time.Duration) error {
	if d <= 0 {
		return invalid("duration", d.String()+" is not positive", errOutOfRange)
	}
	return nil
}
