package main

import (
	"bytes"
	"fmt"
	"strings"

	mp4 "github.com/abema/go-mp4"
	"github.com/dhowden/tag"
	"github.com/spf13/cobra"

	"github.com/NotTobi/soundcloud-dl-sub000/internal/mmfile"
	"github.com/NotTobi/soundcloud-dl-sub000/pkg/tagger"
	"github.com/NotTobi/soundcloud-dl-sub000/pkg/types"
)

func init() {
	rootCmd.AddCommand(newInspectCmd())
}

func newInspectCmd() *cobra.Command {
	var boxes bool
	cmd := &cobra.Command{
		Use:   "inspect <file>",
		Short: "Show the detected format and embedded metadata",
		Long: `The inspect command reports an audio file's container format and the
metadata a tag reader finds in it. With --boxes, MP4 files also get their
box tree printed.

Example:
  sctag inspect tagged.m4a
  sctag inspect tagged.m4a --boxes --json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInspect(args, boxes)
		},
	}
	cmd.Flags().BoolVar(&boxes, "boxes", false, "Print the MP4 box tree")
	return cmd
}

// boxEntry is one MP4 box in the structure dump.
type boxEntry struct {
	Depth  int    `json:"depth"`
	Type   string `json:"type"`
	Offset uint64 `json:"offset"`
	Size   uint64 `json:"size"`
}

// tagInfo is what a tag reader sees in the file.
type tagInfo struct {
	Title       string `json:"title,omitempty"`
	Artist      string `json:"artist,omitempty"`
	Album       string `json:"album,omitempty"`
	AlbumArtist string `json:"album_artist,omitempty"`
	Comment     string `json:"comment,omitempty"`
	Genre       string `json:"genre,omitempty"`
	Year        int    `json:"year,omitempty"`
	Track       int    `json:"track,omitempty"`
	Artwork     string `json:"artwork,omitempty"`
}

type inspectResult struct {
	File   string     `json:"file"`
	Format string     `json:"format"`
	Size   int        `json:"size"`
	Tags   *tagInfo   `json:"tags,omitempty"`
	Boxes  []boxEntry `json:"boxes,omitempty"`
}

func runInspect(args []string, boxes bool) error {
	path := args[0]
	data, unmap, err := mmfile.Map(path)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	defer unmap()

	res := inspectResult{
		File:   path,
		Format: tagger.Detect(data).String(),
		Size:   len(data),
	}
	if t, err := readTags(data); err == nil {
		res.Tags = t
	} else {
		printVerbose("No readable tags: %v\n", err)
	}
	if boxes && res.Format == types.FormatMP4.String() {
		res.Boxes, err = boxTree(data)
		if err != nil {
			return fmt.Errorf("failed to walk boxes: %w", err)
		}
	}

	if jsonOut {
		return printJSON(res)
	}

	printInfo("\nFile Information:\n")
	printInfo("  File: %s\n", path)
	printInfo("  Format: %s\n", res.Format)
	printInfo("  Size: %s\n", humanSize(res.Size))
	if t := res.Tags; t != nil {
		printInfo("\nTags:\n")
		for _, kv := range [][2]string{
			{"Title", t.Title}, {"Artist", t.Artist}, {"Album", t.Album},
			{"Album artist", t.AlbumArtist}, {"Comment", t.Comment}, {"Genre", t.Genre},
			{"Artwork", t.Artwork},
		} {
			if kv[1] != "" {
				printInfo("  %s: %s\n", kv[0], kv[1])
			}
		}
		if t.Track > 0 {
			printInfo("  Track: %d\n", t.Track)
		}
		if t.Year > 0 {
			printInfo("  Year: %d\n", t.Year)
		}
	}
	if len(res.Boxes) > 0 {
		printInfo("\nBoxes:\n")
		for _, b := range res.Boxes {
			printInfo("  %s%s @%d (%d bytes)\n", strings.Repeat("  ", b.Depth), b.Type, b.Offset, b.Size)
		}
	}
	return nil
}

func readTags(data []byte) (*tagInfo, error) {
	m, err := tag.ReadFrom(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	t := &tagInfo{
		Title:       m.Title(),
		Artist:      m.Artist(),
		Album:       m.Album(),
		AlbumArtist: m.AlbumArtist(),
		Comment:     m.Comment(),
		Genre:       m.Genre(),
		Year:        m.Year(),
	}
	t.Track, _ = m.Track()
	if p := m.Picture(); p != nil {
		t.Artwork = fmt.Sprintf("%s, %d bytes", p.MIMEType, len(p.Data))
	}
	return t, nil
}

// boxTree lists every box, descending into the ones the parser knows.
func boxTree(data []byte) ([]boxEntry, error) {
	var out []boxEntry
	_, err := mp4.ReadBoxStructure(bytes.NewReader(data), func(h *mp4.ReadHandle) (any, error) {
		out = append(out, boxEntry{
			Depth:  len(h.Path) - 1,
			Type:   h.BoxInfo.Type.String(),
			Offset: h.BoxInfo.Offset,
			Size:   h.BoxInfo.Size,
		})
		if h.BoxInfo.IsSupportedType() && h.BoxInfo.Type != mp4.BoxTypeMdat() {
			return h.Expand()
		}
		return nil, nil
	})
	return out, err
}
