// Package circuit defines the withdraw proof's witness, public inputs,
// and constraint set: the contract every prover and the settlement
// kernel's verifier must satisfy byte-for-byte, per SPEC_FULL.md §4.3.
package circuit

import (
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/std/hash/mimc"
)

// MaxOutputs bounds the withdraw instruction's recipient list, k ∈ [1,5].
const MaxOutputs = 5

// TreeDepth mirrors internal/index.Depth; duplicated as a plain constant
// here so the circuit package carries no dependency on the index
// package, matching the teacher's own habit of keeping zkp circuits
// free of storage-layer imports.
const TreeDepth = 32

// WithdrawCircuit is the R1CS realization of SPEC_FULL.md §4.3.
//
// The off-circuit system (index, kernel, relay) hashes with BLAKE3 over
// raw bytes, as C1 mandates. BLAKE3 has no practical R1CS encoding
// anywhere in this toolchain, so every hash domain that crosses the
// proof boundary — the Merkle node hash, the commitment, the nullifier,
// and the outputs binding — is instead computed in-circuit with MiMC,
// the SNARK-friendly hash gnark ships natively. A prover builds its
// witness against a MiMC-domain shadow of the same tree the index
// maintains in BLAKE3. The kernel takes root, nullifier and
// outputs_hash as given in the withdraw instruction, so its root ring
// and nullifier shards hold these MiMC-domain values (32-byte
// big-endian encodings of field elements), the same values it passes to
// groth16.Verify. This split is recorded as an Open Question
// resolution in DESIGN.md rather than left implicit.
type WithdrawCircuit struct {
	// Public inputs, 104 bytes off-circuit (root, nf, outputs_hash 32B
	// each, amount 8B LE); in-circuit these are single field elements.
	Root        frontend.Variable `gnark:",public"`
	Nullifier   frontend.Variable `gnark:",public"`
	OutputsHash frontend.Variable `gnark:",public"`
	Amount      frontend.Variable `gnark:",public"`

	// Private witness.
	R         frontend.Variable
	SkSpend   frontend.Variable
	LeafIndex frontend.Variable

	PathElements [TreeDepth - 1]frontend.Variable
	PathIndices  [TreeDepth - 1]frontend.Variable // 0 (left) or 1 (right)

	OutputCount   frontend.Variable // k, asserted in [1, MaxOutputs]
	OutputAddress [MaxOutputs]frontend.Variable
	OutputAmount  [MaxOutputs]frontend.Variable

	FeeQuotient  frontend.Variable // floor(Amount * VarNum / VarDen)
	FeeRemainder frontend.Variable
}

func mimcHash(api frontend.API, elems ...frontend.Variable) frontend.Variable {
	h, err := mimc.NewMiMC(api)
	if err != nil {
		panic(err) // construction only fails on an unsupported curve
	}
	h.Write(elems...)
	return h.Sum()
}

// isActiveSlot returns 1 if output slot i (0-indexed) is one of the
// first OutputCount active outputs, 0 otherwise.
func isActiveSlot(api frontend.API, i int, outputCount frontend.Variable) frontend.Variable {
	cmp := api.Cmp(frontend.Variable(i+1), outputCount) // -1, 0, or 1
	// active when (i+1) <= OutputCount, i.e. cmp is -1 or 0.
	isGreater := api.IsZero(api.Sub(cmp, 1))
	return api.Sub(1, isGreater)
}

// Define realizes constraints 1–6 of SPEC_FULL.md §4.3.
func (c *WithdrawCircuit) Define(api frontend.API) error {
	api.AssertIsLessOrEqual(1, c.OutputCount)
	api.AssertIsLessOrEqual(c.OutputCount, MaxOutputs)

	// 1. pk_spend == H(sk_spend)
	pkSpend := mimcHash(api, c.SkSpend)

	// 2. C == H(amount ∥ r ∥ pk_spend)
	commitment := mimcHash(api, c.Amount, c.R, pkSpend)

	// 3. Merkle inclusion: walk from C to the root, selecting
	// (sibling, current) vs (current, sibling) per path_indices[level].
	current := commitment
	for level := 0; level < TreeDepth-1; level++ {
		bit := c.PathIndices[level]
		api.AssertIsBoolean(bit)

		sibling := c.PathElements[level]
		left := api.Select(bit, sibling, current)
		right := api.Select(bit, current, sibling)
		current = mimcHash(api, left, right)
	}
	api.AssertIsEqual(current, c.Root)

	// 4. nf == H(sk_spend ∥ leaf_index)
	nf := mimcHash(api, c.SkSpend, c.LeafIndex)
	api.AssertIsEqual(nf, c.Nullifier)

	// 5. Conservation: sum(outputs.amount) + fee(amount) == amount,
	// fee = FIXED_FEE + floor(amount*VAR_NUM/VAR_DEN). The quotient and
	// remainder of that floor division travel as witness and are
	// checked: amount*VAR_NUM == quotient*VAR_DEN + remainder, with
	// 0 <= remainder < VAR_DEN. Inactive output slots (i >= OutputCount)
	// are masked out of the sum rather than trusted to be zero.
	api.AssertIsLessOrEqual(c.FeeRemainder, VarDen-1)
	lhs := api.Mul(c.Amount, VarNum)
	rhs := api.Add(api.Mul(c.FeeQuotient, VarDen), c.FeeRemainder)
	api.AssertIsEqual(lhs, rhs)
	fee := api.Add(c.FeeQuotient, FixedFee)

	outputSum := frontend.Variable(0)
	for i := 0; i < MaxOutputs; i++ {
		active := isActiveSlot(api, i, c.OutputCount)
		masked := api.Mul(active, c.OutputAmount[i])
		outputSum = api.Add(outputSum, masked)
	}
	api.AssertIsEqual(api.Add(outputSum, fee), c.Amount)

	// 6. Outputs binding: outputs_hash is a running MiMC fold over the
	// active (address, amount) pairs in order, matching the order
	// significance SPEC_FULL.md §4.3 constraint 6 requires. Inactive
	// slots leave the accumulator untouched.
	acc := frontend.Variable(0)
	for i := 0; i < MaxOutputs; i++ {
		active := isActiveSlot(api, i, c.OutputCount)
		folded := mimcHash(api, acc, c.OutputAddress[i], c.OutputAmount[i])
		acc = api.Select(active, folded, acc)
	}
	api.AssertIsEqual(acc, c.OutputsHash)

	return nil
}
