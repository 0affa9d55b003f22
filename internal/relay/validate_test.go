package relay

import (
	"math/big"
	"testing"

	"github.com/duskline/withdraw/internal/circuit"
	"github.com/duskline/withdraw/pkg/primitives"
)

func testRequest(t *testing.T) EnqueueRequest {
	t.Helper()
	recipient := primitives.Address{1}
	amount := uint64(1_000_000)

	outputsHash := circuit.OutputsHashFold(
		[]*big.Int{circuit.FieldFromHash(primitives.Hash(recipient))},
		[]*big.Int{new(big.Int).SetUint64(amount)},
	)
	var outputsHashBytes primitives.Hash
	outputsHash.FillBytes(outputsHashBytes[:])

	return EnqueueRequest{
		Proof:        make([]byte, 256),
		PublicInputs: make([]byte, 64),
		Root:         primitives.Hash{9},
		Nullifier:    primitives.Hash{8},
		Amount:       amount,
		OutputsHash:  outputsHashBytes,
		Outputs:      []Output{{Address: recipient, Amount: amount}},
	}
}

func TestValidateHappyPath(t *testing.T) {
	req := testRequest(t)
	roots := NewRootCache()
	roots.Refresh([]primitives.Hash{req.Root})
	nullifiers := NewNullifierCache()

	if err := Validate(req, roots, nullifiers); err != nil {
		t.Fatalf("expected validation to pass: %v", err)
	}
}

func TestValidateRejectsUnknownRoot(t *testing.T) {
	req := testRequest(t)
	roots := NewRootCache() // empty: req.Root not accepted
	nullifiers := NewNullifierCache()

	if err := Validate(req, roots, nullifiers); err != ErrRootNotAccepted {
		t.Fatalf("expected ErrRootNotAccepted, got %v", err)
	}
}

func TestValidateRejectsSeenNullifier(t *testing.T) {
	req := testRequest(t)
	roots := NewRootCache()
	roots.Refresh([]primitives.Hash{req.Root})
	nullifiers := NewNullifierCache()
	nullifiers.MarkSeen(req.Nullifier)

	if err := Validate(req, roots, nullifiers); err != ErrNullifierSeen {
		t.Fatalf("expected ErrNullifierSeen, got %v", err)
	}
}

func TestValidateRejectsTamperedOutputsHash(t *testing.T) {
	req := testRequest(t)
	req.OutputsHash[0] ^= 0xFF
	roots := NewRootCache()
	roots.Refresh([]primitives.Hash{req.Root})
	nullifiers := NewNullifierCache()

	if err := Validate(req, roots, nullifiers); err != ErrBadOutputsHash {
		t.Fatalf("expected ErrBadOutputsHash, got %v", err)
	}
}

func TestValidateRejectsZeroAddressOutput(t *testing.T) {
	req := testRequest(t)
	req.Outputs[0].Address = primitives.Address{}
	roots := NewRootCache()
	roots.Refresh([]primitives.Hash{req.Root})
	nullifiers := NewNullifierCache()

	if err := Validate(req, roots, nullifiers); err != ErrBadAddress {
		t.Fatalf("expected ErrBadAddress, got %v", err)
	}
}

func TestValidateRejectsTooManyOutputs(t *testing.T) {
	req := testRequest(t)
	for i := 0; i < 5; i++ {
		req.Outputs = append(req.Outputs, req.Outputs[0])
	}
	roots := NewRootCache()
	roots.Refresh([]primitives.Hash{req.Root})
	nullifiers := NewNullifierCache()

	if err := Validate(req, roots, nullifiers); err != ErrBadAddress {
		t.Fatalf("expected ErrBadAddress for output count, got %v", err)
	}
}
