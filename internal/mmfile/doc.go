// Package mmfile maps audio files into memory for read-only access.
//
// Callers must not write to the returned slice: on unix it is backed by a
// read-only shared mapping and a write faults.
package mmfile
