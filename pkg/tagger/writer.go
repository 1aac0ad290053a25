package tagger

import (
	"fmt"

	"github.com/NotTobi/soundcloud-dl-sub000/pkg/types"
)

// writer holds the state every format writer shares: its diagnostics and
// whether Finalize has run.
type writer struct {
	format    types.Format
	diag      *types.DedupSink
	shared    types.Sink
	finalized bool
}

func newWriter(f types.Format, opts Options) writer {
	l := opts.Logger
	if l != nil {
		l = l.With("format", f.String())
	}
	return writer{
		format: f,
		diag:   types.NewDedupSink(l),
		shared: opts.Sink,
	}
}

// Format reports the container format the writer handles.
func (w *writer) Format() types.Format { return w.format }

// Diagnostics returns a snapshot of everything recorded so far.
func (w *writer) Diagnostics() *types.DiagnosticReport { return w.diag.Report() }

// record turns err into a diagnostic attributed to structure.
func (w *writer) record(structure string, err error) {
	w.recordDiag(types.DiagnosticFromError(structure, err))
}

func (w *writer) recordDiag(d types.Diagnostic) {
	if w.diag.Record(d) && w.shared != nil {
		w.shared.Record(d)
	}
}

// open reports whether setters may still run, recording a diagnostic if not.
func (w *writer) open(field string) bool {
	if w.finalized {
		w.record(field, types.ErrFinalized)
		return false
	}
	return true
}

// beginFinalize marks the writer finalized. It reports false on a repeated
// call, which the caller answers with nil.
func (w *writer) beginFinalize() bool {
	if w.finalized {
		w.record("finalize", types.ErrFinalized)
		return false
	}
	w.finalized = true
	return true
}

// recoverRebuild converts a panic during rebuild into a diagnostic and
// substitutes fallback as the result. It must be deferred directly.
func (w *writer) recoverRebuild(out *[]byte, fallback []byte) {
	if r := recover(); r != nil {
		w.record("finalize", types.Errorf(types.ErrKindRebuild, fmt.Sprintf("tagger: rebuild panicked: %v", r), nil))
		*out = fallback
	}
}
