package primitives

import "testing"

func TestUint64LERoundTrip(t *testing.T) {
	cases := []uint64{0, 1, 42, 1_000_000_000, ^uint64(0)}
	for _, v := range cases {
		b := Uint64ToBytesLE(v)
		if len(b) != 8 {
			t.Fatalf("Uint64ToBytesLE(%d) returned %d bytes, want 8", v, len(b))
		}
		if got := Uint64LE(b); got != v {
			t.Fatalf("round trip failed: got %d, want %d", got, v)
		}
	}
}

func TestUint64LEIsLittleEndian(t *testing.T) {
	b := Uint64ToBytesLE(1)
	if b[0] != 1 || b[7] != 0 {
		t.Fatalf("Uint64ToBytesLE(1) = %v, expected byte 0 to carry the value", b)
	}
}

func TestUint32LERoundTrip(t *testing.T) {
	cases := []uint32{0, 1, 42, 4_000_000_000}
	for _, v := range cases {
		b := Uint32ToBytesLE(v)
		if got := Uint32LE(b); got != v {
			t.Fatalf("round trip failed: got %d, want %d", got, v)
		}
	}
}

func TestUint16LERoundTrip(t *testing.T) {
	b := make([]byte, 2)
	PutUint16LE(b, 0xABCD)
	if got := Uint16LE(b); got != 0xABCD {
		t.Fatalf("round trip failed: got %x, want %x", got, 0xABCD)
	}
	if b[0] != 0xCD || b[1] != 0xAB {
		t.Fatalf("PutUint16LE did not write little-endian: %v", b)
	}
}
