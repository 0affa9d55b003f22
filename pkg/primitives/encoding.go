package primitives

import "encoding/binary"

// PutUint64LE writes v into b[:8] in little-endian order.
func PutUint64LE(b []byte, v uint64) {
	binary.LittleEndian.PutUint64(b, v)
}

// Uint64LE reads a little-endian uint64 from b[:8].
func Uint64LE(b []byte) uint64 {
	return binary.LittleEndian.Uint64(b)
}

// PutUint32LE writes v into b[:4] in little-endian order.
func PutUint32LE(b []byte, v uint32) {
	binary.LittleEndian.PutUint32(b, v)
}

// Uint32LE reads a little-endian uint32 from b[:4].
func Uint32LE(b []byte) uint32 {
	return binary.LittleEndian.Uint32(b)
}

// PutUint16LE writes v into b[:2] in little-endian order.
func PutUint16LE(b []byte, v uint16) {
	binary.LittleEndian.PutUint16(b, v)
}

// Uint16LE reads a little-endian uint16 from b[:2].
func Uint16LE(b []byte) uint16 {
	return binary.LittleEndian.Uint16(b)
}

// Uint64ToBytesLE returns v encoded as 8 little-endian bytes.
func Uint64ToBytesLE(v uint64) []byte {
	b := make([]byte, 8)
	PutUint64LE(b, v)
	return b
}

// Uint32ToBytesLE returns v encoded as 4 little-endian bytes.
func Uint32ToBytesLE(v uint32) []byte {
	b := make([]byte, 4)
	PutUint32LE(b, v)
	return b
}
