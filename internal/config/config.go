// Package config loads the track metadata documents the sctag CLI embeds.
//
// A document is read from the file given by --meta or, when the flag is
// absent, from the SCTAG_META environment variable. There is no discovery.
//
//	title: Night Drive
//	artists: [First, Second]
//	album: Tapes
//	track: 7
//	year: 2019
//	artwork: cover.jpg   # relative to the document
//	duration: 3m25s
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/NotTobi/soundcloud-dl-sub000/pkg/types"
)

// EnvMeta names the environment variable consulted when no path is given.
const EnvMeta = "SCTAG_META"

// ErrNoDocument is returned by Load when neither a path nor EnvMeta is set.
var ErrNoDocument = errors.New("config: no metadata document given")

// TrackMetadata is one track's descriptive metadata.
type TrackMetadata struct {
	Title       string        `yaml:"title,omitempty"`
	Artists     []string      `yaml:"artists,omitempty"`
	Album       string        `yaml:"album,omitempty"`
	AlbumArtist string        `yaml:"album_artist,omitempty"`
	Comment     string        `yaml:"comment,omitempty"`
	Grouping    string        `yaml:"grouping,omitempty"`
	Genre       string        `yaml:"genre,omitempty"`
	Track       int           `yaml:"track,omitempty"`
	Year        int           `yaml:"year,omitempty"`
	Duration    time.Duration `yaml:"duration,omitempty"`

	// Artwork is an image path. Load resolves it against the document's
	// directory.
	Artwork string `yaml:"artwork,omitempty"`
}

// Load reads the document at path, or at $SCTAG_META when path is empty.
func Load(path string) (*TrackMetadata, error) {
	if path == "" {
		path = os.Getenv(EnvMeta)
	}
	if path == "" {
		return nil, ErrNoDocument
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	m, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("config: %s: %w", path, err)
	}
	if m.Artwork != "" && !filepath.IsAbs(m.Artwork) {
		m.Artwork = filepath.Join(filepath.Dir(path), m.Artwork)
	}
	return m, nil
}

// Parse decodes a document. Unknown keys are rejected.
func Parse(data []byte) (*TrackMetadata, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var m TrackMetadata
	if err := dec.Decode(&m); err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks ranges. Empty fields are allowed; they are not embedded.
func (m *TrackMetadata) Validate() error {
	var errs []error
	if m.Track != 0 && (m.Track < types.MinTrackNumber || m.Track > types.MaxTrackNumber) {
		errs = append(errs, fmt.Errorf("track %d not in [%d,%d]", m.Track, types.MinTrackNumber, types.MaxTrackNumber))
	}
	if m.Year < 0 {
		errs = append(errs, fmt.Errorf("year %d is negative", m.Year))
	}
	if m.Duration < 0 {
		errs = append(errs, fmt.Errorf("duration %s is negative", m.Duration))
	}
	return errors.Join(errs...)
}

// Merge overlays every non-zero field of o onto m.
func (m *TrackMetadata) Merge(o TrackMetadata) {
	set := func(dst *string, src string) {
		if src != "" {
			*dst = src
		}
	}
	set(&m.Title, o.Title)
	set(&m.Album, o.Album)
	set(&m.AlbumArtist, o.AlbumArtist)
	set(&m.Comment, o.Comment)
	set(&m.Grouping, o.Grouping)
	set(&m.Genre, o.Genre)
	set(&m.Artwork, o.Artwork)
	if len(o.Artists) > 0 {
		m.Artists = o.Artists
	}
	if o.Track != 0 {
		m.Track = o.Track
	}
	if o.Year != 0 {
		m.Year = o.Year
	}
	if o.Duration != 0 {
		m.Duration = o.Duration
	}
}

// extendedWriter is implemented by writers with fields beyond TagWriter.
type extendedWriter interface {
	SetAlbumArtist(string)
	SetGenre(string)
}

// Apply calls the setter of every non-empty field on w. The artwork file is
// read here; a read failure is returned after all other fields were set.
func (m *TrackMetadata) Apply(w types.TagWriter) error {
	if m.Title != "" {
		w.SetTitle(m.Title)
	}
	if len(m.Artists) > 0 {
		w.SetArtists(m.Artists)
	}
	if m.Album != "" {
		w.SetAlbum(m.Album)
	}
	if m.Comment != "" {
		w.SetComment(m.Comment)
	}
	if m.Grouping != "" {
		w.SetGrouping(m.Grouping)
	}
	if m.Track != 0 {
		w.SetTrackNumber(m.Track)
	}
	if m.Year != 0 {
		w.SetYear(m.Year)
	}
	if m.Duration != 0 {
		w.SetDuration(m.Duration)
	}
	if ew, ok := w.(extendedWriter); ok {
		if m.AlbumArtist != "" {
			ew.SetAlbumArtist(m.AlbumArtist)
		}
		if m.Genre != "" {
			ew.SetGenre(m.Genre)
		}
	}

	if m.Artwork == "" {
		return nil
	}
	img, err := os.ReadFile(m.Artwork)
	if err != nil {
		return fmt.Errorf("config: artwork: %w", err)
	}
	w.SetArtwork(img)
	return nil
}
