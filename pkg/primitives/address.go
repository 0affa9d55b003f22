package primitives

import (
	"encoding/hex"
	"errors"

	"github.com/mr-tron/base58"
)

// AddressSize is the fixed width of an address, in bytes.
const AddressSize = 32

// Address is a 32-byte account identifier. Hashing always operates on
// these raw bytes, never on an encoded form.
type Address [AddressSize]byte

var (
	ErrInvalidAddressLength = errors.New("primitives: decoded address is not 32 bytes")
	ErrInvalidAddressHex    = errors.New("primitives: address hex must be 64 characters")
)

// IsZero reports whether a is the all-zero address.
func (a Address) IsZero() bool {
	for _, b := range a {
		if b != 0 {
			return false
		}
	}
	return true
}

// DecodeAddress accepts either base58 or 64-char hex and returns the raw
// 32 bytes. It does not guess: a string of exactly 64 hex-valid
// characters is treated as hex, everything else is tried as base58.
func DecodeAddress(s string) (Address, error) {
	var addr Address
	if len(s) == 64 && isHex(s) {
		b, err := hex.DecodeString(s)
		if err != nil {
			return addr, ErrInvalidAddressHex
		}
		if len(b) != AddressSize {
			return addr, ErrInvalidAddressLength
		}
		copy(addr[:], b)
		return addr, nil
	}

	b, err := base58.Decode(s)
	if err != nil {
		return addr, err
	}
	if len(b) != AddressSize {
		return addr, ErrInvalidAddressLength
	}
	copy(addr[:], b)
	return addr, nil
}

// EncodeAddressBase58 renders an address in base58.
func EncodeAddressBase58(a Address) string {
	return base58.Encode(a[:])
}

// EncodeAddressHex renders an address as 64 lower-case hex characters.
func EncodeAddressHex(a Address) string {
	return hex.EncodeToString(a[:])
}

func isHex(s string) bool {
	for _, c := range s {
		switch {
		case c >= '0' && c <= '9':
		case c >= 'a' && c <= 'f':
		case c >= 'A' && c <= 'F':
		default:
			return false
		}
	}
	return true
}
