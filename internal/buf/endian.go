// Package buf contains helpers for endian-safe decoding routines.
package buf

import "encoding/binary"

// U16BE reads a big-endian uint16 from b. Returns 0 when b is too short.
func U16BE(b []byte) uint16 {
	if len(b) < 2 {
		return 0
	}
	return binary.BigEndian.Uint16(b)
}

// U32BE reads a big-endian uint32 from b. Returns 0 when b is too short.
func U32BE(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return binary.BigEndian.Uint32(b)
}

// U64BE reads a big-endian uint64 from b. Returns 0 when b is too short.
func U64BE(b []byte) uint64 {
	if len(b) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(b)
}

// U32LE reads a little-endian uint32 from b. Returns 0 when b is too short.
// RIFF chunk sizes are the only little-endian fields we touch.
func U32LE(b []byte) uint32 {
	if len(b) < 4 {
		return 0
	}
	return binary.LittleEndian.Uint32(b)
}

// PutU32BE writes v into b[0:4]. It reports false when b is too short.
func PutU32BE(b []byte, v uint32) bool {
	if len(b) < 4 {
		return false
	}
	binary.BigEndian.PutUint32(b, v)
	return true
}

// PutU64BE writes v into b[0:8]. It reports false when b is too short.
func PutU64BE(b []byte, v uint64) bool {
	if len(b) < 8 {
		return false
	}
	binary.BigEndian.PutUint64(b, v)
	return true
}

// PutU32LE writes v into b[0:4] little-endian. It reports false when b is too short.
func PutU32LE(b []byte, v uint32) bool {
	if len(b) < 4 {
		return false
	}
	binary.LittleEndian.PutUint32(b, v)
	return true
}
