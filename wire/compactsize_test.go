package wire

import "testing"

func TestCompactSizeRoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 0xfc, 0xfd, 0xffff, 0x10000, 0xffffffff, 0x100000000}
	for _, n := range cases {
		enc := EncodeCompactSize(n)
		got, consumed, err := DecodeCompactSize(enc)
		if err != nil {
			t.Fatalf("DecodeCompactSize(%d): %v", n, err)
		}
		if got != n {
			t.Fatalf("expected %d, got %d", n, got)
		}
		if consumed != len(enc) {
			t.Fatalf("expected to consume %d bytes, consumed %d", len(enc), consumed)
		}
	}
}

func TestDecodeCompactSizeRejectsNonMinimal(t *testing.T) {
	// 0xfd prefix followed by a value that should have fit in 1 byte.
	buf := []byte{0xfd, 0x05, 0x00}
	if _, _, err := DecodeCompactSize(buf); err == nil {
		t.Fatalf("expected non-minimal encoding to be rejected")
	}
}
