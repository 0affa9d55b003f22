package kernel

import (
	"errors"
	"sync"

	"github.com/duskline/withdraw/pkg/primitives"
)

var (
	ErrClaimNotFound    = errors.New("kernel: claim not found")
	ErrClaimNotRevealed = errors.New("kernel: claim is not in the Revealed state")
	ErrClaimExpired     = errors.New("kernel: claim has expired")
	ErrClaimExhausted   = errors.New("kernel: claim has reached max_consumes")
	ErrClaimMismatch    = errors.New("kernel: claim batch_hash does not match")
)

// ClaimStatus is the PoW claim lifecycle SPEC_FULL.md §3 names:
// Mined -> Revealed -> (Consumed up to max_consumes | Expired).
type ClaimStatus uint8

const (
	ClaimMined ClaimStatus = iota
	ClaimRevealed
	ClaimConsumed
	ClaimExpired
)

var wildcardBatch primitives.Hash // 0^32

// Claim is the on-chain PoW claim record of SPEC_FULL.md §3.
type Claim struct {
	MinerAuthority primitives.Address
	BatchHash      primitives.Hash // wildcardBatch matches any job
	MinedSlot      uint64
	RevealSlot     uint64
	ExpiresAt      uint64
	Consumed       uint32
	MaxConsumes    uint32
	Status         ClaimStatus
}

func (c *Claim) isWildcard() bool { return c.BatchHash == wildcardBatch }

// ClaimRegistry is the scramble registry's on-chain claim market: a
// set of PoW claims keyed by an opaque claim PDA, consumed atomically
// by the settlement kernel's Withdraw instruction when a PoW policy is
// active. Grounded on the miner-task assignment/lifecycle shape of a
// proof-of-useful-work task queue, generalized from "assign work to a
// miner" to "consume a pre-mined claim during settlement".
type ClaimRegistry struct {
	mu     sync.Mutex
	claims map[primitives.Hash]*Claim // keyed by claim PDA
}

// NewClaimRegistry returns an empty registry.
func NewClaimRegistry() *ClaimRegistry {
	return &ClaimRegistry{claims: make(map[primitives.Hash]*Claim)}
}

// Register installs a newly mined claim. Real deployments populate this
// from on-chain PoW-mine transactions; tests populate it directly.
func (r *ClaimRegistry) Register(pda primitives.Hash, claim *Claim) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.claims[pda] = claim
}

// SelectClaim implements the relay-side mirror of the tie-breaking rule
// in SPEC_FULL.md §4.5 step 2: among claims that are Revealed, not yet
// expired (expires_at > nowSlot), not fully consumed, and whose
// batch_hash is either batchHash or the wildcard, prefer an exact match
// over a wildcard, and among equally eligible claims prefer the
// earliest expiration (drain the market first). Returns ErrClaimNotFound
// (mapped by callers to NoClaimAvailable) if nothing is eligible.
func (r *ClaimRegistry) SelectClaim(batchHash primitives.Hash, nowSlot uint64) (primitives.Hash, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var (
		bestPDA   primitives.Hash
		best      *Claim
		bestExact bool
		found     bool
	)
	for pda, c := range r.claims {
		if c.Status != ClaimRevealed {
			continue
		}
		if c.ExpiresAt <= nowSlot {
			continue
		}
		if c.Consumed >= c.MaxConsumes {
			continue
		}
		exact := c.BatchHash == batchHash
		if !exact && !c.isWildcard() {
			continue
		}

		switch {
		case !found:
			bestPDA, best, bestExact, found = pda, c, exact, true
		case exact && !bestExact:
			bestPDA, best, bestExact = pda, c, exact
		case exact == bestExact && c.ExpiresAt < best.ExpiresAt:
			bestPDA, best, bestExact = pda, c, exact
		}
	}
	if !found {
		return primitives.Hash{}, ErrClaimNotFound
	}
	return bestPDA, nil
}

// ConsumeClaim is the scramble registry's consume_claim CPI target:
// atomically validates and increments the claim's consumed counter.
// The settlement kernel aborts the whole Withdraw instruction if this
// fails (SPEC_FULL.md §4.4 "PoW integration").
func (r *ClaimRegistry) ConsumeClaim(pda primitives.Hash, expectedMiner primitives.Address, batchHash primitives.Hash, nowSlot uint64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.claims[pda]
	if !ok {
		return ErrClaimNotFound
	}
	if c.Status != ClaimRevealed {
		return ErrClaimNotRevealed
	}
	if c.ExpiresAt <= nowSlot {
		c.Status = ClaimExpired
		return ErrClaimExpired
	}
	if c.Consumed >= c.MaxConsumes {
		return ErrClaimExhausted
	}
	if c.MinerAuthority != expectedMiner {
		return ErrClaimMismatch
	}
	if !c.isWildcard() && c.BatchHash != batchHash {
		return ErrClaimMismatch
	}

	c.Consumed++
	if c.Consumed >= c.MaxConsumes {
		c.Status = ClaimConsumed
	}
	return nil
}

// ExpireStale sweeps claims whose expiry has passed into the Expired
// state, mirroring CleanupExpired in a task-queue reassignment loop.
func (r *ClaimRegistry) ExpireStale(nowSlot uint64) int {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := 0
	for _, c := range r.claims {
		if c.Status == ClaimRevealed && c.ExpiresAt <= nowSlot {
			c.Status = ClaimExpired
			n++
		}
	}
	return n
}
