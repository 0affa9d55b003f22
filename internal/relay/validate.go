package relay

import (
	"math/big"

	"github.com/duskline/withdraw/internal/circuit"
	"github.com/duskline/withdraw/pkg/primitives"
)

// EnqueueRequest is the ingress contract for enqueue_withdraw,
// SPEC_FULL.md §4.5: an output list plus the four public inputs and
// the proof bytes.
type EnqueueRequest struct {
	Proof        []byte
	PublicInputs []byte
	Root         primitives.Hash
	Nullifier    primitives.Hash
	Amount       uint64
	OutputsHash  primitives.Hash
	Outputs      []Output
}

// Validate performs the relay's synchronous pre-queue checks. It never
// touches the kernel for proof verification — that is step 3 of the
// settlement kernel itself — only the cheap, local checks SPEC_FULL.md
// §4.5 enumerates.
func Validate(req EnqueueRequest, roots *RootCache, nullifiers *NullifierCache) error {
	if len(req.Outputs) < 1 || len(req.Outputs) > 5 {
		return ErrBadAddress
	}
	for _, o := range req.Outputs {
		if o.Address.IsZero() {
			return ErrBadAddress
		}
	}

	addresses := make([]*big.Int, len(req.Outputs))
	amounts := make([]*big.Int, len(req.Outputs))
	for i, o := range req.Outputs {
		addresses[i] = circuit.FieldFromHash(primitives.Hash(o.Address))
		amounts[i] = new(big.Int).SetUint64(o.Amount)
	}
	recomputed := circuit.OutputsHashFold(addresses, amounts)
	if recomputed.Cmp(circuit.FieldFromHash(req.OutputsHash)) != 0 {
		return ErrBadOutputsHash
	}

	if !roots.Contains(req.Root) {
		return ErrRootNotAccepted
	}

	if nullifiers.Seen(req.Nullifier) {
		return ErrNullifierSeen
	}

	return nil
}
