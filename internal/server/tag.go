package server

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/NotTobi/soundcloud-dl-sub000/internal/config"
	"github.com/NotTobi/soundcloud-dl-sub000/pkg/tagger"
	"github.com/NotTobi/soundcloud-dl-sub000/pkg/types"
)

const (
	headerFormat      = "X-Tag-Format"
	headerDiagnostics = "X-Tag-Diagnostics"
)

var contentTypes = map[types.Format]string{
	types.FormatMP4: "audio/mp4",
	types.FormatMP3: "audio/mpeg",
	types.FormatWAV: "audio/wav",
}

// tag handles a multipart upload with the audio in "audio_file", an
// optional image in "artwork_file" and one form field per metadata field.
// It replies with the tagged file.
func (s *Server) tag(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, s.cfg.MaxUploadBytes)

	audio, name, err := formFile(c, "audio_file")
	if err != nil {
		s.fail(c, http.StatusBadRequest, "audio_file is required", err)
		return
	}
	meta, err := formMetadata(c)
	if err != nil {
		s.fail(c, http.StatusBadRequest, "invalid metadata", err)
		return
	}
	artwork, _, err := formFile(c, "artwork_file")
	if err != nil && !errors.Is(err, http.ErrMissingFile) {
		s.fail(c, http.StatusBadRequest, "artwork_file unreadable", err)
		return
	}

	w, err := tagger.New(audio, tagger.Options{
		Logger: s.log.With("file", name),
		Sink:   s.sink,
	})
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, types.ErrUnsupportedFormat) {
			status = http.StatusUnsupportedMediaType
		}
		s.fail(c, status, "cannot tag file", err)
		return
	}
	if err := meta.Apply(w); err != nil {
		s.fail(c, http.StatusInternalServerError, "apply metadata", err)
		return
	}
	if len(artwork) > 0 {
		w.SetArtwork(artwork)
	}
	out := w.Finalize()

	report := w.Diagnostics()
	c.Header(headerFormat, w.Format().String())
	c.Header(headerDiagnostics, strconv.Itoa(len(report.Diagnostics)))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(name)))
	c.Data(http.StatusOK, contentTypes[w.Format()], out)
}

func (s *Server) fail(c *gin.Context, status int, msg string, err error) {
	s.log.Info(msg, "error", err, "status", status)
	c.JSON(status, Response{Success: false, Message: fmt.Sprintf("%s: %v", msg, err)})
}

func formFile(c *gin.Context, field string) ([]byte, string, error) {
	fh, err := c.FormFile(field)
	if err != nil {
		return nil, "", err
	}
	data, err := readPart(fh)
	return data, fh.Filename, err
}

func readPart(fh *multipart.FileHeader) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return io.ReadAll(f)
}

// formMetadata reads the metadata fields. Artwork arrives as a file part,
// never as a path.
func formMetadata(c *gin.Context) (*config.TrackMetadata, error) {
	m := &config.TrackMetadata{
		Title:       c.PostForm("title"),
		Artists:     c.PostFormArray("artist"),
		Album:       c.PostForm("album"),
		AlbumArtist: c.PostForm("album_artist"),
		Comment:     c.PostForm("comment"),
		Grouping:    c.PostForm("grouping"),
		Genre:       c.PostForm("genre"),
	}
	var err error
	if m.Track, err = formInt(c, "track"); err != nil {
		return nil, err
	}
	if m.Year, err = formInt(c, "year"); err != nil {
		return nil, err
	}
	if v := c.PostForm("duration"); v != "" {
		if m.Duration, err = time.ParseDuration(v); err != nil {
			return nil, fmt.Errorf("duration: %w", err)
		}
	}
	return m, m.Validate()
}

func formInt(c *gin.Context, field string) (int, error) {
	v := c.PostForm(field)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", field, err)
	}
	return n, nil
}
