package main

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/NotTobi/soundcloud-dl-sub000/internal/config"
	"github.com/NotTobi/soundcloud-dl-sub000/internal/logger"
	"github.com/NotTobi/soundcloud-dl-sub000/internal/mmfile"
	"github.com/NotTobi/soundcloud-dl-sub000/pkg/tagger"
	"github.com/NotTobi/soundcloud-dl-sub000/pkg/types"
)

type embedOptions struct {
	output  string
	inPlace bool
	meta    string
	fields  config.TrackMetadata
}

func init() {
	rootCmd.AddCommand(newEmbedCmd())
}

func newEmbedCmd() *cobra.Command {
	var opts embedOptions
	cmd := &cobra.Command{
		Use:   "embed <file>",
		Short: "Embed metadata into an audio file",
		Long: `The embed command writes metadata into an M4A/MP4, MP3 or WAV file.
Values come from a YAML document (--meta or $SCTAG_META) and from flags;
flags win. Fields a format cannot hold are reported and skipped.

Example:
  sctag embed track.m4a --title "Night Drive" --artist First --artist Second -o tagged.m4a
  sctag embed track.mp3 --meta track.yaml --in-place`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runEmbed(args, opts)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.output, "output", "o", "", "Output file (default <file>.tagged<ext>)")
	f.BoolVar(&opts.inPlace, "in-place", false, "Replace the input file")
	f.StringVar(&opts.meta, "meta", "", "YAML metadata document")
	f.StringVar(&opts.fields.Title, "title", "", "Track title")
	f.StringArrayVar(&opts.fields.Artists, "artist", nil, "Artist name (repeatable)")
	f.StringVar(&opts.fields.Album, "album", "", "Album")
	f.StringVar(&opts.fields.AlbumArtist, "album-artist", "", "Album artist (MP4 only)")
	f.StringVar(&opts.fields.Comment, "comment", "", "Comment")
	f.StringVar(&opts.fields.Grouping, "grouping", "", "Grouping")
	f.StringVar(&opts.fields.Genre, "genre", "", "Genre (MP4 only)")
	f.IntVar(&opts.fields.Track, "track", 0, "Track number (1-32767)")
	f.IntVar(&opts.fields.Year, "year", 0, "Release year")
	f.DurationVar(&opts.fields.Duration, "duration", 0, "Track duration, e.g. 3m25s")
	f.StringVar(&opts.fields.Artwork, "artwork", "", "Cover image file")
	cmd.MarkFlagsMutuallyExclusive("output", "in-place")
	return cmd
}

// embedResult is the machine-readable summary of one embed run.
type embedResult struct {
	Input       string                  `json:"input"`
	Output      string                  `json:"output"`
	Format      string                  `json:"format"`
	InputSize   int                     `json:"input_size"`
	OutputSize  int                     `json:"output_size"`
	Unchanged   bool                    `json:"unchanged"`
	Diagnostics *types.DiagnosticReport `json:"diagnostics"`
}

func runEmbed(args []string, opts embedOptions) error {
	input := args[0]

	meta := config.TrackMetadata{}
	if opts.meta != "" || os.Getenv(config.EnvMeta) != "" {
		m, err := config.Load(opts.meta)
		if err != nil {
			return err
		}
		meta = *m
	}
	meta.Merge(opts.fields)
	if err := meta.Validate(); err != nil {
		return err
	}

	output := opts.output
	switch {
	case opts.inPlace:
		output = input
	case output == "":
		ext := filepath.Ext(input)
		output = input[:len(input)-len(ext)] + ".tagged" + ext
	}

	printVerbose("Mapping %s\n", input)
	data, unmap, err := mmfile.Map(input)
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", input, err)
	}
	defer unmap()

	start := time.Now()
	w, err := tagger.New(data, tagger.Options{Logger: logger.L.With("file", input)})
	if err != nil {
		return fmt.Errorf("cannot tag %s: %w", input, err)
	}
	applyErr := meta.Apply(w)
	valid := w.HasValidStructure()
	out := w.Finalize()
	logger.L.Debug("finalized", "file", input, "elapsed", time.Since(start))

	if err := writeAtomic(output, out); err != nil {
		return err
	}

	res := embedResult{
		Input:       input,
		Output:      output,
		Format:      w.Format().String(),
		InputSize:   len(data),
		OutputSize:  len(out),
		Unchanged:   bytes.Equal(out, data),
		Diagnostics: w.Diagnostics(),
	}
	if jsonOut {
		if err := printJSON(res); err != nil {
			return err
		}
		return applyErr
	}

	printInfo("\nTagged %s (%s):\n", input, res.Format)
	printInfo("  Output: %s\n", output)
	printInfo("  Size: %s -> %s\n", humanSize(res.InputSize), humanSize(res.OutputSize))
	if !valid {
		printInfo("  ! No usable tag structure; file copied unchanged\n")
	}
	if res.Diagnostics.HasAnyIssues() {
		printInfo("\nDiagnostics:\n%s", res.Diagnostics.FormatTextCompact())
	}
	return applyErr
}

// writeAtomic writes data to a temporary file next to path and renames it
// into place, so a mapped input can be replaced safely.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	f, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*")
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	tmp := f.Name()
	_, werr := f.Write(data)
	merr := f.Chmod(0o644)
	cerr := f.Close()
	if err := errors.Join(werr, merr, cerr); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write output: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}
