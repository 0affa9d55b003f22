package circuit

import (
	"bytes"
	"math/big"

	"github.com/consensys/gnark-crypto/ecc"
	"github.com/consensys/gnark/frontend"
	"github.com/consensys/gnark/witness"
)

// MerklePath carries the sibling hashes and left/right bits a prover
// needs to walk a leaf up to the root, in the circuit's MiMC domain
// (see WithdrawCircuit in circuit.go and DESIGN.md for the
// BLAKE3-to-MiMC shadow-tree rationale).
type MerklePath struct {
	Siblings [TreeDepth - 1]*big.Int
	Indices  [TreeDepth - 1]int // 0 = leaf is left child, 1 = leaf is right child
}

// Output is one recipient of a withdraw instruction.
type Output struct {
	Address *big.Int
	Amount  uint64
}

// WitnessInputs bundles everything a prover needs to build a
// WithdrawCircuit assignment, in the plain-Go domain (uint64 amounts,
// *big.Int field elements) before conversion to frontend.Variable.
type WitnessInputs struct {
	Amount    uint64
	R         *big.Int
	SkSpend   *big.Int
	LeafIndex uint32
	Path      MerklePath
	Outputs   []Output
}

// BuildAssignment converts plain-Go witness inputs into a fully
// populated WithdrawCircuit ready for Manager.Prove. It also derives
// the four public inputs (root, nullifier, outputs_hash, amount) from
// the same off-circuit MiMC helpers the circuit itself uses, so the
// caller never has to hand-compute them separately.
func BuildAssignment(in WitnessInputs) (*WithdrawCircuit, error) {
	if len(in.Outputs) < 1 || len(in.Outputs) > MaxOutputs {
		return nil, ErrInvalidOutputCount
	}

	fee, ok := Fee(in.Amount)
	if !ok {
		return nil, ErrFeeOverflow
	}
	var outputSum uint64
	for _, o := range in.Outputs {
		outputSum += o.Amount
	}
	if outputSum+fee != in.Amount {
		return nil, ErrConservationMismatch
	}

	leafIndexF := new(big.Int).SetUint64(uint64(in.LeafIndex))
	pkSpend := PkSpend(in.SkSpend)
	commitment := CommitmentField(new(big.Int).SetUint64(in.Amount), in.R, pkSpend)

	current := commitment
	for level := 0; level < TreeDepth-1; level++ {
		sibling := in.Path.Siblings[level]
		if in.Path.Indices[level] == 0 {
			current = MerkleHashPair(current, sibling)
		} else {
			current = MerkleHashPair(sibling, current)
		}
	}
	root := current

	nullifier := NullifierField(in.SkSpend, leafIndexF)

	addresses := make([]*big.Int, len(in.Outputs))
	amounts := make([]*big.Int, len(in.Outputs))
	for i, o := range in.Outputs {
		addresses[i] = o.Address
		amounts[i] = new(big.Int).SetUint64(o.Amount)
	}
	outputsHash := OutputsHashFold(addresses, amounts)

	amountNum := new(big.Int).SetUint64(in.Amount)
	varNum := big.NewInt(VarNum)
	varDen := big.NewInt(VarDen)
	lhs := new(big.Int).Mul(amountNum, varNum)
	feeQuotient := new(big.Int).Div(lhs, varDen)
	feeRemainder := new(big.Int).Mod(lhs, varDen)

	a := &WithdrawCircuit{
		Root:        root,
		Nullifier:   nullifier,
		OutputsHash: outputsHash,
		Amount:      amountNum,

		R:         in.R,
		SkSpend:   in.SkSpend,
		LeafIndex: leafIndexF,

		OutputCount:  len(in.Outputs),
		FeeQuotient:  feeQuotient,
		FeeRemainder: feeRemainder,
	}
	for level := 0; level < TreeDepth-1; level++ {
		a.PathElements[level] = in.Path.Siblings[level]
		a.PathIndices[level] = in.Path.Indices[level]
	}
	for i := 0; i < MaxOutputs; i++ {
		if i < len(in.Outputs) {
			a.OutputAddress[i] = addresses[i]
			a.OutputAmount[i] = amounts[i]
		} else {
			a.OutputAddress[i] = 0
			a.OutputAmount[i] = 0
		}
	}
	return a, nil
}

// PublicInputs mirrors WithdrawCircuit's four public fields in the
// plain-Go domain, the shape the kernel stores alongside a submitted
// proof and compares against its own recomputation.
type PublicInputs struct {
	Root        *big.Int
	Nullifier   *big.Int
	OutputsHash *big.Int
	Amount      *big.Int
}

func newPublicWitness(serialized []byte) (witness.Witness, error) {
	w, err := witness.New(ecc.BN254.ScalarField())
	if err != nil {
		return nil, err
	}
	if _, err := w.ReadFrom(bytes.NewReader(serialized)); err != nil {
		return nil, err
	}
	return w, nil
}

// PublicWitnessBytes serializes pub the same way Manager.Prove's
// returned publicWitness is encoded, so a verifier that only has the
// four public values (not a Manager-produced witness) can still call
// Manager.Verify.
func PublicWitnessBytes(pub PublicInputs) ([]byte, error) {
	assignment := &WithdrawCircuit{
		Root:        pub.Root,
		Nullifier:   pub.Nullifier,
		OutputsHash: pub.OutputsHash,
		Amount:      pub.Amount,
	}
	w, err := frontend.NewWitness(assignment, ecc.BN254.ScalarField(), frontend.PublicOnly())
	if err != nil {
		return nil, err
	}
	var buf bytes.Buffer
	if _, err := w.WriteTo(&buf); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
