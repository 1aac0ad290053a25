package buf

import "testing"

func TestEndianHelpers(t *testing.T) {
	data := []byte{0x01, 0x23, 0x45, 0x67, 0x89, 0xab, 0xcd, 0xef}

	if got := U16BE(data); got != 0x0123 {
		t.Fatalf("U16BE = 0x%x, want 0x0123", got)
	}
	if got := U32BE(data); got != 0x01234567 {
		t.Fatalf("U32BE = 0x%x, want 0x01234567", got)
	}
	if got := U64BE(data); got != 0x0123456789abcdef {
		t.Fatalf("U64BE = 0x%x, want 0x0123456789abcdef", got)
	}
	if got := U32LE(data); got != 0x67452301 {
		t.Fatalf("U32LE = 0x%x, want 0x67452301", got)
	}

	short := []byte{0xAA}
	if U16BE(short) != 0 || U32BE(short) != 0 || U64BE(short) != 0 || U32LE(short) != 0 {
		t.Fatalf("short reads should return 0")
	}
}

func TestPutHelpers(t *testing.T) {
	b := make([]byte, 8)
	if !PutU32BE(b, 0xdeadbeef) {
		t.Fatalf("PutU32BE reported short buffer")
	}
	if b[0] != 0xde || b[3] != 0xef {
		t.Fatalf("PutU32BE wrote %x", b[:4])
	}
	if !PutU64BE(b, 1) || b[7] != 1 || b[0] != 0 {
		t.Fatalf("PutU64BE wrote %x", b)
	}
	if !PutU32LE(b, 0x01020304) || b[0] != 0x04 || b[3] != 0x01 {
		t.Fatalf("PutU32LE wrote %x", b[:4])
	}
	if PutU32BE(b[:3], 1) || PutU64BE(b[:7], 1) || PutU32LE(b[:2], 1) {
		t.Fatalf("short writes should report false")
	}
}
