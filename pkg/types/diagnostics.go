package types

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync"
)

// -----------------------------------------------------------------------------
// Diagnostic System
// -----------------------------------------------------------------------------
//
// Tag writers never surface failures as errors past their constructor. Every
// dropped field, skipped insertion or rebuild fallback becomes a Diagnostic,
// recorded once per unique message text so a bad file produces one line per
// problem rather than one per setter call.

// Severity classifies how serious a diagnostic issue is.
type Severity int

const (
	SevInfo     Severity = iota // Informational (format has no slot for the field)
	SevWarning                  // A requested field could not be embedded
	SevError                    // Output fell back to the original buffer
	SevCritical                 // Buffer unusable; construction failed
)

func (s Severity) String() string {
	switch s {
	case SevInfo:
		return "INFO"
	case SevWarning:
		return "WARNING"
	case SevError:
		return "ERROR"
	case SevCritical:
		return "CRITICAL"
	default:
		return "UNKNOWN"
	}
}

// MarshalText keeps JSON reports readable.
func (s Severity) MarshalText() ([]byte, error) { return []byte(s.String()), nil }

// DiagCategory classifies the type of issue found.
type DiagCategory int

const (
	DiagStructure  DiagCategory = iota // missing root, no records, malformed container
	DiagValidation                     // rejected setter argument
	DiagInsertion                      // metadata chain could not be resolved or created
	DiagRebuild                        // output reconstruction failed
)

func (c DiagCategory) String() string {
	switch c {
	case DiagStructure:
		return "STRUCTURE"
	case DiagValidation:
		return "VALIDATION"
	case DiagInsertion:
		return "INSERTION"
	case DiagRebuild:
		return "REBUILD"
	default:
		return "UNKNOWN"
	}
}

// MarshalText keeps JSON reports readable.
func (c DiagCategory) MarshalText() ([]byte, error) { return []byte(c.String()), nil }

// Diagnostic represents a single issue found while tagging a buffer.
type Diagnostic struct {
	// Classification
	Severity Severity     `json:"severity"`
	Category DiagCategory `json:"category"`

	// Location
	Offset    int64  `json:"offset"`              // Byte offset in the input, -1 when not applicable
	Structure string `json:"structure,omitempty"` // "moov", "ilst", "ID3", "RIFF", field name...

	// Description
	Issue    string `json:"issue"`              // Human-readable description, also the dedup key
	Expected any    `json:"expected,omitempty"` // Expected value (for validation errors)
	Actual   any    `json:"actual,omitempty"`   // Actual value found
}

// DiagnosticFromError classifies err by its ErrKind.
func DiagnosticFromError(structure string, err error) Diagnostic {
	d := Diagnostic{
		Severity:  SevWarning,
		Category:  DiagStructure,
		Offset:    -1,
		Structure: structure,
		Issue:     err.Error(),
	}
	var te *Error
	if !errors.As(err, &te) {
		return d
	}
	switch te.Kind {
	case ErrKindValidation:
		d.Category = DiagValidation
	case ErrKindInsertion:
		d.Category = DiagInsertion
	case ErrKindRebuild:
		d.Category = DiagRebuild
		d.Severity = SevError
	case ErrKindStructural:
		d.Severity = SevCritical
	case ErrKindUnsupported, ErrKindState:
		d.Severity = SevInfo
	}
	return d
}

// DiagnosticReport collects all diagnostics recorded by one writer.
type DiagnosticReport struct {
	// Issues
	Diagnostics []Diagnostic `json:"diagnostics"`

	// Summary statistics
	Summary DiagSummary `json:"summary"`

	// Pre-computed groupings for efficient querying
	BySeverity map[Severity][]Diagnostic `json:"-"`
	ByOffset   []Diagnostic              `json:"-"` // sorted by offset
}

// DiagSummary provides quick statistics.
type DiagSummary struct {
	Critical int `json:"critical"`
	Errors   int `json:"errors"`
	Warnings int `json:"warnings"`
	Info     int `json:"info"`
}

// NewDiagnosticReport creates an empty report.
func NewDiagnosticReport() *DiagnosticReport {
	return &DiagnosticReport{
		BySeverity: make(map[Severity][]Diagnostic),
	}
}

// Add adds a diagnostic to the report and updates indices.
func (r *DiagnosticReport) Add(d Diagnostic) {
	r.Diagnostics = append(r.Diagnostics, d)

	switch d.Severity {
	case SevCritical:
		r.Summary.Critical++
	case SevError:
		r.Summary.Errors++
	case SevWarning:
		r.Summary.Warnings++
	case SevInfo:
		r.Summary.Info++
	}

	r.BySeverity[d.Severity] = append(r.BySeverity[d.Severity], d)
}

// Finalize sorts diagnostics by offset and prepares for output.
func (r *DiagnosticReport) Finalize() {
	r.ByOffset = make([]Diagnostic, len(r.Diagnostics))
	copy(r.ByOffset, r.Diagnostics)
	sort.SliceStable(r.ByOffset, func(i, j int) bool {
		return r.ByOffset[i].Offset < r.ByOffset[j].Offset
	})
}

// HasErrors returns true if any errors or critical issues were found.
func (r *DiagnosticReport) HasErrors() bool {
	return r.Summary.Critical > 0 || r.Summary.Errors > 0
}

// HasAnyIssues returns true if any issues were found (including warnings and info).
func (r *DiagnosticReport) HasAnyIssues() bool {
	return len(r.Diagnostics) > 0
}

// FormatJSON returns the report as formatted JSON (2-space indentation).
func (r *DiagnosticReport) FormatJSON() (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", err
	}
	return string(data), nil
}

// FormatTextCompact returns a compact one-line-per-issue text format.
func (r *DiagnosticReport) FormatTextCompact() string {
	var b strings.Builder

	for _, d := range r.Diagnostics {
		if d.Offset >= 0 {
			fmt.Fprintf(&b, "0x%08X ", d.Offset)
		}
		fmt.Fprintf(&b, "[%s/%s/%s] %s\n", d.Severity, d.Structure, d.Category, d.Issue)
	}

	if len(r.Diagnostics) == 0 {
		b.WriteString("No issues found.\n")
	}

	return b.String()
}

// -----------------------------------------------------------------------------
// Sinks
// -----------------------------------------------------------------------------

// Sink receives diagnostics from a writer. Record reports whether d was new.
type Sink interface {
	Record(d Diagnostic) bool
}

// DedupSink records each unique Issue text once and forwards first
// occurrences to a logger at a dropped severity (Debug for info, Info for
// everything else). A DedupSink may be shared across writers for quieter
// batch logging; it only ever grows.
type DedupSink struct {
	mu     sync.Mutex
	seen   map[string]struct{}
	report *DiagnosticReport
	log    *slog.Logger
}

// NewDedupSink creates a sink that logs first occurrences to l.
// A nil logger discards log output; the report is still kept.
func NewDedupSink(l *slog.Logger) *DedupSink {
	if l == nil {
		l = slog.New(slog.DiscardHandler)
	}
	return &DedupSink{
		seen:   make(map[string]struct{}),
		report: NewDiagnosticReport(),
		log:    l,
	}
}

// Record adds d unless a diagnostic with the same Issue text was seen.
func (s *DedupSink) Record(d Diagnostic) bool {
	s.mu.Lock()
	if _, dup := s.seen[d.Issue]; dup {
		s.mu.Unlock()
		return false
	}
	s.seen[d.Issue] = struct{}{}
	s.report.Add(d)
	s.mu.Unlock()

	level := slog.LevelInfo
	if d.Severity == SevInfo {
		level = slog.LevelDebug
	}
	s.log.Log(context.Background(), level, d.Issue,
		slog.String("severity", d.Severity.String()),
		slog.String("category", d.Category.String()),
		slog.String("structure", d.Structure),
		slog.Int64("offset", d.Offset),
	)
	return true
}

// Merge records every diagnostic of other into s, keeping dedup semantics.
func (s *DedupSink) Merge(other *DedupSink) {
	if other == nil || other == s {
		return
	}
	for _, d := range other.Report().Diagnostics {
		s.Record(d)
	}
}

// Report returns a finalized snapshot of the recorded diagnostics.
func (s *DedupSink) Report() *DiagnosticReport {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := NewDiagnosticReport()
	for _, d := range s.report.Diagnostics {
		out.Add(d)
	}
	out.Finalize()
	return out
}

// Len returns the number of unique diagnostics recorded.
func (s *DedupSink) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.report.Diagnostics)
}
