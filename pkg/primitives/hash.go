// Package primitives provides the canonical hashing and little-endian
// encoding shared by every other component. Every package in this module
// depends on it; nothing in here depends on anything else in the module.
package primitives

import (
	"encoding/hex"

	"github.com/zeebo/blake3"
)

// HashSize is the width in bytes of every hash value in this system.
const HashSize = 32

// Hash is a 32-byte BLAKE3-256 digest.
type Hash [HashSize]byte

// IsZero reports whether h is the all-zero hash.
func (h Hash) IsZero() bool {
	for _, b := range h {
		if b != 0 {
			return false
		}
	}
	return true
}

// Bytes returns a copy of h as a byte slice.
func (h Hash) Bytes() []byte {
	out := make([]byte, HashSize)
	copy(out, h[:])
	return out
}

// Hex returns h as lowercase 64-character hex, the wire form used at
// API edges (job status, logs).
func (h Hash) Hex() string {
	return hex.EncodeToString(h[:])
}

// Sum computes H(x) = BLAKE3-256(x).
func Sum(data ...[]byte) Hash {
	h := blake3.New()
	for _, d := range data {
		h.Write(d)
	}
	var out Hash
	copy(out[:], h.Sum(nil))
	return out
}

// HashPair computes H(left ∥ right), the internal Merkle node hash.
func HashPair(left, right Hash) Hash {
	return Sum(left[:], right[:])
}
