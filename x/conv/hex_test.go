package conv

import "testing"

func TestHex(t *testing.T) {
	var b [8]byte
	if got := string(U8Hex(b[:], 0xA8)); got != "A8" {
		t.Fatalf("U8Hex = %q", got)
	}
	if got := string(U8Hex(b[:], 0x05)); got != "05" {
		t.Fatalf("U8Hex = %q", got)
	}
	if got := string(U32Hex(b[:], 0xDEADBEEF)); got != "DEADBEEF" {
		t.Fatalf("U32Hex = %q", got)
	}
	if len(U8Hex(b[:1], 1)) != 0 {
		t.Fatal("short buffer should yield empty slice")
	}
}
