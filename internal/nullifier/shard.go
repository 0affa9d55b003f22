// Package nullifier implements nullifier derivation and the sharded,
// append-only, capacity-bounded set that backs the settlement kernel's
// authoritative record. The relay's best-effort cache
// (relay.NullifierCache) is a separate, unsharded set.
package nullifier

import (
	"errors"
	"sync"

	"github.com/duskline/withdraw/pkg/primitives"
)

// NumShards partitions the nullifier set deterministically; the shard
// is picked from the first byte of nf for an even, auditable split.
// Only the kernel's Set is sharded; the relay's cache keeps one flat
// set, so no shard rule has to be shared with it.
const NumShards = 16

// Derive computes nf = H(sk_spend ∥ leaf_index_le4).
func Derive(skSpend primitives.Hash, leafIndex uint32) primitives.Hash {
	return primitives.Sum(skSpend[:], primitives.Uint32ToBytesLE(leafIndex))
}

// ShardOf returns the deterministic shard id for a nullifier.
func ShardOf(nf primitives.Hash) int {
	return int(nf[0]) % NumShards
}

var (
	ErrDoubleSpend        = errors.New("nullifier: already present in its shard")
	ErrNullifierCapacity  = errors.New("nullifier: shard is at capacity")
)

// Shard is a single append-only, capacity-bounded container.
type Shard struct {
	mu       sync.RWMutex
	seen     map[primitives.Hash]struct{}
	capacity int
}

func newShard(capacity int) *Shard {
	return &Shard{seen: make(map[primitives.Hash]struct{}), capacity: capacity}
}

// Has reports whether nf is already recorded in this shard.
func (s *Shard) Has(nf primitives.Hash) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.seen[nf]
	return ok
}

// Add records nf, failing if it is already present or the shard is full.
func (s *Shard) Add(nf primitives.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[nf]; ok {
		return ErrDoubleSpend
	}
	if len(s.seen) >= s.capacity {
		return ErrNullifierCapacity
	}
	s.seen[nf] = struct{}{}
	return nil
}

// Set is the full NumShards-wide nullifier set. A nullifier may exist in
// at most one shard and is never removed, matching the invariant in
// SPEC_FULL.md §3.
type Set struct {
	shards [NumShards]*Shard
}

// NewSet builds a sharded set where every shard caps at capacity entries.
func NewSet(capacity int) *Set {
	s := &Set{}
	for i := range s.shards {
		s.shards[i] = newShard(capacity)
	}
	return s
}

// IsSpent reports whether nf has already been recorded.
func (s *Set) IsSpent(nf primitives.Hash) bool {
	return s.shards[ShardOf(nf)].Has(nf)
}

// MarkSpent records nf in its shard, enforcing single-use and capacity.
func (s *Set) MarkSpent(nf primitives.Hash) error {
	return s.shards[ShardOf(nf)].Add(nf)
}
