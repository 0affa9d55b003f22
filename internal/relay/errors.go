package relay

import (
	"errors"

	"github.com/duskline/withdraw/internal/kernel"
)

// Failure class, SPEC_FULL.md §7.
type Class int

const (
	ClassValidation Class = iota
	ClassTransient
	ClassTerminal
	ClassSystem
)

var (
	ErrRootNotAccepted  = errors.New("relay: root not yet accepted, retry after next push")
	ErrNullifierSeen    = errors.New("relay: nullifier already observed by local cache")
	ErrNoClaimAvailable = errors.New("relay: no eligible PoW claim")
	ErrBadOutputsHash   = errors.New("relay: outputs_hash does not match submitted outputs")
	ErrBadAddress       = errors.New("relay: output count outside [1, 5] or zero recipient address")
)

// Classify assigns a failure class to an error surfaced either by
// ingress validation or by the kernel (via KernelClient.Simulate/
// Submit), driving the worker's retry/terminal decision and the HTTP
// status code an API layer would map it to (400/503/409/500).
func Classify(err error) Class {
	switch {
	case errors.Is(err, ErrRootNotAccepted), errors.Is(err, kernel.ErrInvalidRoot):
		return ClassTransient
	case errors.Is(err, ErrNoClaimAvailable):
		return ClassTransient
	case errors.Is(err, ErrNullifierSeen), errors.Is(err, ErrBadOutputsHash), errors.Is(err, ErrBadAddress):
		return ClassValidation
	case errors.Is(err, kernel.ErrProofInvalid),
		errors.Is(err, kernel.ErrOutputsMismatch),
		errors.Is(err, kernel.ErrConservation),
		errors.Is(err, kernel.ErrDoubleSpend),
		errors.Is(err, kernel.ErrMathOverflow),
		errors.Is(err, kernel.ErrNullifierCapacity):
		return ClassTerminal
	default:
		return ClassSystem
	}
}

// Retryable on a logically-invalid kernel error is always false: the
// worker must not retry ProofInvalid, OutputsMismatch, Conservation, or
// DoubleSpend (SPEC_FULL.md §4.5 step 4).
func Retryable(err error) bool {
	switch Classify(err) {
	case ClassTransient:
		return true
	default:
		return false
	}
}
