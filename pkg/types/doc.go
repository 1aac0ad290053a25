// Package types defines the format-agnostic contract shared by every tag
// writer: the TagWriter capability set, the error taxonomy, and the
// diagnostic model used to report best-effort failures.
//
// Design goals:
//   - One calling pipeline for every container format (MP4, MP3, WAV).
//   - Never panic on malformed input; failures become diagnostics.
//   - Typed errors with stable categories (structural/validation/rebuild/...).
//
// Apart from log/slog this package has no dependencies beyond the standard library.
package types
