// Package relay implements the relay engine (C5): admission, scheduling,
// and submission of withdraw jobs against the settlement kernel.
package relay

import (
	"errors"

	"github.com/duskline/withdraw/pkg/primitives"
)

// State is a withdraw job's lifecycle state, SPEC_FULL.md §3:
// Queued -> Executing -> {Settled|Failed}, monotonic.
type State string

const (
	StateQueued    State = "Queued"
	StateExecuting State = "Executing"
	StateSettled   State = "Settled"
	StateFailed    State = "Failed"
)

// Output is one recipient entry of an enqueue_withdraw request.
type Output struct {
	Address primitives.Address
	Amount  uint64
}

// Job is the relay's internal record tracking a withdraw request
// through validation, queueing, submission, and settlement.
type Job struct {
	ID uint64

	Proof        []byte
	PublicInputs []byte
	Root         primitives.Hash
	Nullifier    primitives.Hash
	Amount       uint64
	OutputsHash  primitives.Hash
	Outputs      []Output

	State     State
	Attempts  int
	LastError string
	Signature string

	CreatedAtUnix uint64
	UpdatedAtUnix uint64
}

var (
	ErrJobNotFound   = errors.New("relay: job not found")
	ErrJobNotQueued  = errors.New("relay: job is not in a claimable state")
	ErrMaxAttempts   = errors.New("relay: job exceeded max_attempts")
)
