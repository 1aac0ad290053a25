package types

import "time"

// -----------------------------------------------------------------------------
// Typed Errors (stable categories for programmatic handling)
// -----------------------------------------------------------------------------

// ErrKind classifies errors so callers can branch on intent rather than text.
type ErrKind int

const (
	ErrKindStructural  ErrKind = iota // buffer yields zero records; nothing can proceed
	ErrKindMissing                    // records exist but the root container is absent
	ErrKindValidation                 // bad argument: empty/out-of-range value, malformed tag
	ErrKindInsertion                  // metadata container could not be resolved or created
	ErrKindRebuild                    // inconsistency while reconstructing the output
	ErrKindState                      // invalid operation for current state (e.g., finalized)
	ErrKindUnsupported                // format or field not supported by this writer
)

func (k ErrKind) String() string {
	switch k {
	case ErrKindStructural:
		return "structural"
	case ErrKindMissing:
		return "missing-structure"
	case ErrKindValidation:
		return "validation"
	case ErrKindInsertion:
		return "insertion"
	case ErrKindRebuild:
		return "rebuild"
	case ErrKindState:
		return "state"
	case ErrKindUnsupported:
		return "unsupported"
	default:
		return "unknown"
	}
}

// Error is a typed error with an optional underlying cause.
type Error struct {
	Kind ErrKind
	Msg  string
	Err  error // optional underlying cause
}

func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same kind, so errors.Is(err, ErrValidation)
// holds for every validation failure regardless of its message.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && e != nil && t != nil && e.Kind == t.Kind
}

// Sentinels commonly returned by implementations.
var (
	// ErrStructural indicates the buffer yielded no records at all.
	ErrStructural = &Error{Kind: ErrKindStructural, Msg: "no records found in buffer"}
	// ErrMissingStructure indicates the root container is absent.
	ErrMissingStructure = &Error{Kind: ErrKindMissing, Msg: "no valid structure"}
	// ErrValidation indicates a rejected argument.
	ErrValidation = &Error{Kind: ErrKindValidation, Msg: "invalid value"}
	// ErrInsertion indicates the metadata container could not be resolved or created.
	ErrInsertion = &Error{Kind: ErrKindInsertion, Msg: "insertion failed"}
	// ErrRebuild indicates the output could not be reconstructed consistently.
	ErrRebuild = &Error{Kind: ErrKindRebuild, Msg: "rebuild failed"}
	// ErrFinalized indicates a call after the terminal Finalize.
	ErrFinalized = &Error{Kind: ErrKindState, Msg: "writer already finalized"}
	// ErrUnsupportedFormat indicates the buffer is not a format we can tag.
	ErrUnsupportedFormat = &Error{Kind: ErrKindUnsupported, Msg: "unsupported audio format"}
)

// Errorf builds a typed error of kind k wrapping cause (which may be nil).
func Errorf(k ErrKind, msg string, cause error) error {
	return &Error{Kind: k, Msg: msg, Err: cause}
}

// -----------------------------------------------------------------------------
// Formats
// -----------------------------------------------------------------------------

// Format identifies the container format of an audio buffer.
type Format int

const (
	FormatUnknown Format = iota
	FormatMP4
	FormatMP3
	FormatWAV
)

func (f Format) String() string {
	switch f {
	case FormatMP4:
		return "mp4"
	case FormatMP3:
		return "mp3"
	case FormatWAV:
		return "wav"
	default:
		return "unknown"
	}
}

// -----------------------------------------------------------------------------
// Tag writing (best-effort, terminal Finalize)
// -----------------------------------------------------------------------------

// Track number bounds accepted by SetTrackNumber.
const (
	MinTrackNumber = 1
	MaxTrackNumber = 32767
)

// TagWriter is the capability set every format codec implements. Setters
// never fail loudly: an invalid value or an unusable buffer is recorded as a
// diagnostic and the call leaves the pending output untouched.
//
// Finalize is terminal. It returns the tagged buffer, or the original input
// when the output could not be rebuilt consistently.
type TagWriter interface {
	SetTitle(title string)
	SetArtists(artists []string)
	SetAlbum(album string)
	SetComment(comment string)
	SetTrackNumber(n int)
	SetYear(year int)
	SetGrouping(grouping string)
	SetArtwork(image []byte)
	SetDuration(d time.Duration)

	Finalize() []byte
}

// DiagnosticSource is implemented by writers that expose what went wrong.
type DiagnosticSource interface {
	Diagnostics() *DiagnosticReport
}
