package primitives

import (
	"bytes"
	"testing"
)

func TestSumDeterministic(t *testing.T) {
	a := Sum([]byte("hello"))
	b := Sum([]byte("hello"))
	if a != b {
		t.Fatalf("Sum is not deterministic: %x != %x", a, b)
	}
}

func TestSumDiffersOnInput(t *testing.T) {
	a := Sum([]byte("hello"))
	b := Sum([]byte("world"))
	if a == b {
		t.Fatalf("distinct inputs hashed to the same digest")
	}
}

func TestSumMultiArgEqualsConcat(t *testing.T) {
	multi := Sum([]byte("foo"), []byte("bar"))
	concat := Sum([]byte("foobar"))
	if multi != concat {
		t.Fatalf("Sum(a, b) != Sum(concat(a, b)): %x != %x", multi, concat)
	}
}

func TestHashZero(t *testing.T) {
	var z Hash
	if !z.IsZero() {
		t.Fatal("zero-valued Hash reports non-zero")
	}
	z[0] = 1
	if z.IsZero() {
		t.Fatal("non-zero Hash reports zero")
	}
}

// TestCommitmentHashStable computes H(amount_le8 ∥ r ∥ pk_spend) for a
// fixed test triple and checks that it is byte-stable across calls and
// not the zero hash. No expected digest is pinned.
func TestCommitmentHashStable(t *testing.T) {
	var r, pk Hash
	for i := range r {
		r[i] = byte(i)
	}
	for i := range pk {
		pk[i] = byte(0xA0 + i%16)
	}
	amount := Uint64ToBytesLE(1_000_000_000)

	c1 := Sum(amount, r[:], pk[:])
	c2 := Sum(amount, r[:], pk[:])
	if c1 != c2 {
		t.Fatalf("commitment hash not byte-stable across calls")
	}
	if bytes.Equal(c1[:], make([]byte, HashSize)) {
		t.Fatalf("commitment hash collided with the zero hash")
	}
}

// TestNullifierHashStable checks that H(sk_spend ∥ leaf_index_le4) is
// byte-stable across calls and changes with the leaf index. No expected
// digest is pinned.
func TestNullifierHashStable(t *testing.T) {
	var sk Hash
	for i := range sk {
		sk[i] = byte(i * 3)
	}
	leafIndex := Uint32ToBytesLE(42)

	nf1 := Sum(sk[:], leafIndex)
	nf2 := Sum(sk[:], leafIndex)
	if nf1 != nf2 {
		t.Fatalf("nullifier hash not byte-stable across calls")
	}

	otherLeaf := Uint32ToBytesLE(43)
	nf3 := Sum(sk[:], otherLeaf)
	if nf1 == nf3 {
		t.Fatalf("distinct leaf indices produced the same nullifier")
	}
}
