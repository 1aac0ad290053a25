// Package tagger embeds descriptive metadata into in-memory audio buffers.
//
// Each supported container format has its own writer (MP4Writer,
// MP3Writer, WAVWriter). All of them implement types.TagWriter, so the
// download pipeline can hand any buffer to New and call the same setters:
//
//	w, err := tagger.New(audio, tagger.Options{Logger: log})
//	if err != nil {
//	    return audio // nothing readable in the buffer
//	}
//	w.SetTitle("Song")
//	w.SetArtists([]string{"A", "B"})
//	w.SetTrackNumber(3)
//	tagged := w.Finalize()
//
// Setters never fail loudly. A value that cannot be embedded is recorded as
// a diagnostic (see Diagnostics) and the pending output is left as it was.
// Finalize is terminal: it returns the tagged buffer, or the original input
// when the output could not be rebuilt consistently.
//
// Writers are not safe for concurrent use.
package tagger
