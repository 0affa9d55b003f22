package kernel

import (
	"bytes"
	"math/big"
	"testing"

	"github.com/duskline/withdraw/internal/circuit"
	"github.com/duskline/withdraw/pkg/primitives"
)

func newTestKernel(t *testing.T) (*Kernel, *circuit.Manager) {
	t.Helper()
	mgr := circuit.NewManager()
	if err := mgr.Setup(); err != nil {
		t.Fatalf("circuit Setup: %v", err)
	}
	k := Initialise(Config{
		AdminAuthority:     primitives.Address{0xAD},
		InitialPoolBalance: 10_000_000_000,
		Circuit:            mgr,
		NullifierCapacity:  1024,
	})
	return k, mgr
}

func buildWithdraw(t *testing.T, mgr *circuit.Manager, amount uint64, recipient primitives.Address, outAmount uint64, leafIndex uint32) WithdrawArgs {
	t.Helper()

	skSpend := big.NewInt(777)
	r := big.NewInt(31)

	var path circuit.MerklePath
	for i := range path.Siblings {
		path.Siblings[i] = big.NewInt(int64(i + 2))
		path.Indices[i] = (i + leafIndexParity(leafIndex)) % 2
	}

	in := circuit.WitnessInputs{
		Amount:    amount,
		R:         r,
		SkSpend:   skSpend,
		LeafIndex: leafIndex,
		Path:      path,
		Outputs: []circuit.Output{
			{Address: addressToField(recipient), Amount: outAmount},
		},
	}

	assignment, err := circuit.BuildAssignment(in)
	if err != nil {
		t.Fatalf("BuildAssignment: %v", err)
	}

	proof, _, err := mgr.Prove(assignment)
	if err != nil {
		t.Fatalf("Prove: %v", err)
	}
	proofBytes, err := circuit.EncodeProof(proof)
	if err != nil {
		t.Fatalf("EncodeProof: %v", err)
	}

	return WithdrawArgs{
		Proof:       proofBytes,
		Root:        fieldToHash(assignment.Root.(*big.Int)),
		Nullifier:   fieldToHash(assignment.Nullifier.(*big.Int)),
		Amount:      amount,
		OutputsHash: fieldToHash(assignment.OutputsHash.(*big.Int)),
		Outputs: []WithdrawOutput{
			{Address: recipient, Amount: outAmount},
		},
	}
}

func leafIndexParity(i uint32) int { return int(i % 2) }

func addressToField(a primitives.Address) *big.Int {
	return circuit.FieldFromHash(primitives.Hash(a))
}

func fieldToHash(f *big.Int) primitives.Hash {
	var h primitives.Hash
	b := f.Bytes()
	copy(h[32-len(b):], b)
	return h
}

// TestWithdrawHappyPath settles when the root is in the ring, the proof
// verifies, and conservation holds — spec §8 scenario 1/5 shape.
func TestWithdrawHappyPath(t *testing.T) {
	k, mgr := newTestKernel(t)

	amount := uint64(1_000_000_000)
	fee, _ := circuit.Fee(amount)
	recipient := primitives.Address{0x01, 0x02}
	args := buildWithdraw(t, mgr, amount, recipient, amount-fee, 7)

	k.Roots.Push(args.Root)

	if err := k.Withdraw(args); err != nil {
		t.Fatalf("Withdraw: %v", err)
	}
	if k.Nullifiers.IsSpent(args.Nullifier) != true {
		t.Fatal("nullifier not recorded as spent after settlement")
	}
}

// TestWithdrawDoubleSpendFails is spec §8 scenario (double-spend): the
// same withdraw submitted twice must fail DoubleSpend the second time.
func TestWithdrawDoubleSpendFails(t *testing.T) {
	k, mgr := newTestKernel(t)

	amount := uint64(1_000_000_000)
	fee, _ := circuit.Fee(amount)
	recipient := primitives.Address{0x03}
	args := buildWithdraw(t, mgr, amount, recipient, amount-fee, 9)
	k.Roots.Push(args.Root)

	if err := k.Withdraw(args); err != nil {
		t.Fatalf("first Withdraw: %v", err)
	}
	if err := k.Withdraw(args); err != ErrDoubleSpend {
		t.Fatalf("second Withdraw error = %v, want ErrDoubleSpend", err)
	}
}

// TestWithdrawInvalidRootWhenNotPushed is spec §8 scenario (expired
// root): a root never pushed (or aged out of the ring) fails InvalidRoot.
func TestWithdrawInvalidRootWhenNotPushed(t *testing.T) {
	k, mgr := newTestKernel(t)

	amount := uint64(1_000_000_000)
	fee, _ := circuit.Fee(amount)
	args := buildWithdraw(t, mgr, amount, primitives.Address{0x04}, amount-fee, 1)
	// deliberately do not push args.Root

	if err := k.Withdraw(args); err != ErrInvalidRoot {
		t.Fatalf("Withdraw error = %v, want ErrInvalidRoot", err)
	}
}

func TestWithdrawExpiredRootAfterRingRotation(t *testing.T) {
	k, mgr := newTestKernel(t)

	amount := uint64(1_000_000_000)
	fee, _ := circuit.Fee(amount)
	args := buildWithdraw(t, mgr, amount, primitives.Address{0x05}, amount-fee, 2)
	k.Roots.Push(args.Root)

	for i := 0; i < RingSize; i++ {
		k.Roots.Push(primitives.Sum([]byte{byte(i)}))
	}

	if err := k.Withdraw(args); err != ErrInvalidRoot {
		t.Fatalf("Withdraw error = %v, want ErrInvalidRoot after ring rotation", err)
	}
}

// TestWithdrawOutputsMismatchOnTamperedRecipientAmount tampers with a
// recipient's amount after proof generation; the kernel's outputs_hash
// pre-check must reject it with OutputsMismatch before the proof is
// verified.
func TestWithdrawOutputsMismatchOnTamperedRecipientAmount(t *testing.T) {
	k, mgr := newTestKernel(t)

	amount := uint64(1_000_000_000)
	fee, _ := circuit.Fee(amount)
	args := buildWithdraw(t, mgr, amount, primitives.Address{0x06}, amount-fee, 3)
	k.Roots.Push(args.Root)

	args.Outputs[0].Amount += 1 // no longer matches outputs_hash

	if err := k.Withdraw(args); err != ErrOutputsMismatch {
		t.Fatalf("Withdraw error = %v, want ErrOutputsMismatch", err)
	}
}

// TestSumOutputsAndFeeOverflow is spec §8's MathOverflow boundary: two
// outputs summing past u64::MAX must be rejected by checked arithmetic
// rather than wrapping. A full Withdraw can never reach this state
// through a verifying proof (conservation pins outputSum below Amount,
// itself a u64), so sumOutputsAndFee is exercised directly.
func TestSumOutputsAndFeeOverflow(t *testing.T) {
	outputs := []WithdrawOutput{
		{Amount: ^uint64(0)},
		{Amount: 1},
	}
	if _, _, err := sumOutputsAndFee(outputs, 1); err != ErrMathOverflow {
		t.Fatalf("sumOutputsAndFee error = %v, want ErrMathOverflow", err)
	}
}

// TestSumOutputsAndFeeFeePushesPastMax covers the second overflow site:
// a single output at u64::MAX with any positive fee.
func TestSumOutputsAndFeeFeePushesPastMax(t *testing.T) {
	outputs := []WithdrawOutput{{Amount: ^uint64(0)}}
	if _, _, err := sumOutputsAndFee(outputs, 1_000_000_000); err != ErrMathOverflow {
		t.Fatalf("sumOutputsAndFee error = %v, want ErrMathOverflow", err)
	}
}

func TestParseWithdrawRejectsBadOutputCount(t *testing.T) {
	buf := make([]byte, proofSize+publicInputsWireSize+32+32+8+2+32+1)
	buf[len(buf)-1] = 0 // num_outputs = 0, outside [1,5]
	if _, err := ParseWithdraw(buf); err != ErrBadIxLength {
		t.Fatalf("ParseWithdraw error = %v, want ErrBadIxLength", err)
	}
}

func TestParseWithdrawRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	buf.Write(make([]byte, proofSize))
	buf.Write(make([]byte, publicInputsWireSize))
	var root, nf, outputsHash primitives.Hash
	root[0], nf[0], outputsHash[0] = 1, 2, 3
	buf.Write(root[:])
	buf.Write(nf[:])
	buf.Write(primitives.Uint64ToBytesLE(5_000_000_000))
	buf.Write(primitives.Uint32ToBytesLE(0)[:2]) // fee_bps placeholder
	buf.Write(outputsHash[:])
	buf.WriteByte(1)
	var recipient primitives.Address
	recipient[0] = 9
	buf.Write(recipient[:])
	buf.Write(primitives.Uint64ToBytesLE(4_990_000_000))

	args, err := ParseWithdraw(buf.Bytes())
	if err != nil {
		t.Fatalf("ParseWithdraw: %v", err)
	}
	if args.Amount != 5_000_000_000 || len(args.Outputs) != 1 || args.Outputs[0].Amount != 4_990_000_000 {
		t.Fatalf("ParseWithdraw produced unexpected args: %+v", args)
	}
}
