package circuit

import (
	"math/big"

	"github.com/consensys/gnark-crypto/ecc/bn254/fr/mimc"
)

// FieldFromHash reduces a 32-byte hash into the BN254 scalar field by
// big-endian interpretation modulo the field order, the same reduction
// frontend.Variable witness assignment performs implicitly. Two
// distinct 32-byte hashes colliding under this reduction is possible in
// principle (the field is ~254 bits, hashes are 256) and is accepted as
// the standard cost of binding an outer hash domain to a SNARK public
// input; see DESIGN.md.
func FieldFromHash(h [32]byte) *big.Int {
	return new(big.Int).SetBytes(h[:])
}

// mimcSum is the off-circuit MiMC hash over BN254. BuildAssignment uses
// it (through the helpers below) to derive the commitment, Merkle
// nodes, nullifier and outputs fold the circuit proves over; the kernel
// and relay use it only through OutputsHashFold, to recompute
// outputs_hash without invoking the prover.
func mimcSum(elems ...*big.Int) *big.Int {
	h := mimc.NewMiMC()
	for _, e := range elems {
		b := make([]byte, 32)
		e.FillBytes(b)
		h.Write(b)
	}
	sum := h.Sum(nil)
	return new(big.Int).SetBytes(sum)
}

// PkSpend computes H(sk_spend) in the MiMC domain.
func PkSpend(skSpend *big.Int) *big.Int {
	return mimcSum(skSpend)
}

// CommitmentField computes H(amount ∥ r ∥ pk_spend) in the MiMC domain.
func CommitmentField(amount, r, pkSpend *big.Int) *big.Int {
	return mimcSum(amount, r, pkSpend)
}

// NullifierField computes H(sk_spend ∥ leaf_index) in the MiMC domain.
func NullifierField(skSpend, leafIndex *big.Int) *big.Int {
	return mimcSum(skSpend, leafIndex)
}

// MerkleHashPair computes the MiMC-domain internal node hash used by
// the circuit's shadow Merkle tree.
func MerkleHashPair(left, right *big.Int) *big.Int {
	return mimcSum(left, right)
}

// OutputsHashFold recomputes the running fold of constraint 6 over the
// same ordered (address, amount) pairs the circuit folds, so the
// kernel's cheap pre-check (SPEC_FULL.md §4.4 step 2) and the relay's
// validation can agree with the proof's public input without invoking
// the verifier.
func OutputsHashFold(addresses, amounts []*big.Int) *big.Int {
	acc := big.NewInt(0)
	for i := range addresses {
		acc = mimcSum(acc, addresses[i], amounts[i])
	}
	return acc
}
