// Package testutil builds synthetic audio containers for tests. Fixtures
// are assembled in memory so no binary testdata has to be checked in.
package testutil

import (
	"encoding/binary"
	"os"
	"path/filepath"
	"testing"
)

// Atom builds an atom whose payload is the concatenation of parts. tag is
// copied byte-for-byte, so high-bit tags are written as "\xa9nam".
func Atom(tag string, parts ...[]byte) []byte {
	n := 8
	for _, p := range parts {
		n += len(p)
	}
	b := make([]byte, 8, n)
	binary.BigEndian.PutUint32(b, uint32(n))
	copy(b[4:8], tag)
	for _, p := range parts {
		b = append(b, p...)
	}
	return b
}

// Meta builds a 'meta' container with its 4-byte version/flags prefix.
func Meta(children ...[]byte) []byte {
	return Atom("meta", append([][]byte{make([]byte, 4)}, children...)...)
}

// Ftyp builds an M4A file-type atom.
func Ftyp() []byte {
	return Atom("ftyp", []byte("M4A "), make([]byte, 4), []byte("M4A mp42isom"))
}

// Hdlr builds the 'mdir'/'appl' handler that iTunes-style metadata expects.
func Hdlr() []byte {
	p := make([]byte, 25)
	copy(p[8:12], "mdir")
	copy(p[12:16], "appl")
	return Atom("hdlr", p)
}

// Mvhd builds a version 0 movie header with the given timescale and duration.
func Mvhd(timescale, duration uint32) []byte {
	p := make([]byte, 100)
	binary.BigEndian.PutUint32(p[12:], timescale)
	binary.BigEndian.PutUint32(p[16:], duration)
	binary.BigEndian.PutUint32(p[20:], 0x00010000) // rate 1.0
	binary.BigEndian.PutUint16(p[24:], 0x0100)     // volume 1.0
	binary.BigEndian.PutUint32(p[96:], 2)          // next track id
	return Atom("mvhd", p)
}

// MvhdV1 builds a version 1 movie header with a 64-bit duration.
func MvhdV1(timescale uint32, duration uint64) []byte {
	p := make([]byte, 112)
	p[0] = 1
	binary.BigEndian.PutUint32(p[20:], timescale)
	binary.BigEndian.PutUint64(p[24:], duration)
	binary.BigEndian.PutUint32(p[32:], 0x00010000)
	binary.BigEndian.PutUint16(p[36:], 0x0100)
	binary.BigEndian.PutUint32(p[108:], 2)
	return Atom("mvhd", p)
}

// Item builds an 'ilst' item holding one 'data' atom.
func Item(tag string, class uint32, payload []byte) []byte {
	flags := make([]byte, 8)
	binary.BigEndian.PutUint32(flags, class&0x00FFFFFF)
	return Atom(tag, Atom("data", flags, payload))
}

// M4AOptions controls the shape of M4A.
type M4AOptions struct {
	// Chain includes moov/udta/meta(hdlr)/ilst.
	Chain bool
	// Items are appended to ilst when Chain is set.
	Items [][]byte
	// Timescale and Duration feed the v0 mvhd. Zero selects 1000 and 0.
	Timescale uint32
	Duration  uint32
	// Samples is the mdat payload size.
	Samples int
}

// M4A builds ftyp + moov(mvhd [udta]) + mdat.
func M4A(opts M4AOptions) []byte {
	ts := opts.Timescale
	if ts == 0 {
		ts = 1000
	}
	moovParts := [][]byte{Mvhd(ts, opts.Duration)}
	if opts.Chain {
		ilst := Atom("ilst", opts.Items...)
		moovParts = append(moovParts, Atom("udta", Meta(Hdlr(), ilst)))
	}

	samples := make([]byte, opts.Samples)
	for i := range samples {
		samples[i] = byte(i * 7)
	}

	var out []byte
	out = append(out, Ftyp()...)
	out = append(out, Atom("moov", moovParts...)...)
	out = append(out, Atom("mdat", samples)...)
	return out
}

// MP3 builds a buffer of MPEG-1 Layer III frames of silence, optionally
// preceded by an ID3v2.4 tag carrying a TIT2 frame.
func MP3(withTag bool, frames int) []byte {
	var out []byte
	if withTag {
		text := append([]byte{3}, "Old title"...)
		frame := make([]byte, 10, 10+len(text))
		copy(frame, "TIT2")
		putSyncsafe(frame[4:8], len(text))
		frame = append(frame, text...)

		head := []byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0, 0}
		putSyncsafe(head[6:10], len(frame))
		out = append(out, head...)
		out = append(out, frame...)
	}
	// 128 kbps, 44.1 kHz, no padding: 417 bytes per frame
	for range frames {
		f := make([]byte, 417)
		f[0], f[1], f[2], f[3] = 0xFF, 0xFB, 0x90, 0x64
		out = append(out, f...)
	}
	return out
}

func putSyncsafe(b []byte, n int) {
	b[0] = byte(n>>21) & 0x7F
	b[1] = byte(n>>14) & 0x7F
	b[2] = byte(n>>7) & 0x7F
	b[3] = byte(n) & 0x7F
}

// WAV builds a 16-bit mono PCM RIFF/WAVE buffer holding samples frames.
func WAV(samples int) []byte {
	fmtChunk := make([]byte, 24)
	copy(fmtChunk, "fmt ")
	binary.LittleEndian.PutUint32(fmtChunk[4:], 16)
	binary.LittleEndian.PutUint16(fmtChunk[8:], 1)      // PCM
	binary.LittleEndian.PutUint16(fmtChunk[10:], 1)     // mono
	binary.LittleEndian.PutUint32(fmtChunk[12:], 8000)  // sample rate
	binary.LittleEndian.PutUint32(fmtChunk[16:], 16000) // byte rate
	binary.LittleEndian.PutUint16(fmtChunk[20:], 2)     // block align
	binary.LittleEndian.PutUint16(fmtChunk[22:], 16)    // bits per sample

	data := make([]byte, 8+samples*2)
	copy(data, "data")
	binary.LittleEndian.PutUint32(data[4:], uint32(samples*2))
	for i := 0; i < samples; i++ {
		binary.LittleEndian.PutUint16(data[8+i*2:], uint16(i*300))
	}

	out := make([]byte, 12, 12+len(fmtChunk)+len(data))
	copy(out, "RIFF")
	binary.LittleEndian.PutUint32(out[4:], uint32(4+len(fmtChunk)+len(data)))
	copy(out[8:], "WAVE")
	out = append(out, fmtChunk...)
	out = append(out, data...)
	return out
}

// WriteTemp writes data to name inside a per-test directory and returns the path.
func WriteTemp(t *testing.T, name string, data []byte) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}
