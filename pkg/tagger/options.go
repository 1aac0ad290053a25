package tagger

import (
	"log/slog"

	"github.com/NotTobi/soundcloud-dl-sub000/pkg/types"
)

// Options configures a writer. The zero value is usable.
type Options struct {
	// Logger receives the first occurrence of every diagnostic at a
	// lowered level (Debug for info, Info otherwise). Nil discards.
	Logger *slog.Logger

	// Sink additionally receives every diagnostic the writer records for
	// the first time, e.g. a types.DedupSink shared across a batch.
	Sink types.Sink
}
