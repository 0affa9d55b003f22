package relay

import (
	"sync"
	"time"

	"github.com/duskline/withdraw/pkg/primitives"
)

// RootCache is the relay's single-writer/multi-reader local view of
// the settlement kernel's accepted root ring (SPEC_FULL.md §5). A
// refresher task owns Refresh; worker goroutines only read.
type RootCache struct {
	mu          sync.RWMutex
	roots       map[primitives.Hash]struct{}
	lastRefresh int64 // unix seconds; 0 until the first Refresh
}

func NewRootCache() *RootCache {
	return &RootCache{roots: make(map[primitives.Hash]struct{})}
}

// Refresh replaces the cached set wholesale, called on startup and
// whenever a worker observes a root-miss (to avoid livelock right
// after the operator rotates the ring).
func (c *RootCache) Refresh(roots []primitives.Hash) {
	next := make(map[primitives.Hash]struct{}, len(roots))
	for _, r := range roots {
		next[r] = struct{}{}
	}
	c.mu.Lock()
	c.roots = next
	c.lastRefresh = time.Now().Unix()
	c.mu.Unlock()
}

func (c *RootCache) Contains(root primitives.Hash) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.roots[root]
	return ok
}

// Snapshot returns every currently cached root.
func (c *RootCache) Snapshot() []primitives.Hash {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]primitives.Hash, 0, len(c.roots))
	for r := range c.roots {
		out = append(out, r)
	}
	return out
}

// LastRefreshUnix reports when Refresh last ran, or 0 if it never has.
func (c *RootCache) LastRefreshUnix() int64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastRefresh
}

// NullifierCache is the relay's best-effort local mirror of spent
// nullifiers, updated only after confirmed settlement. It exists to
// reject obviously-replayed withdraws at ingress before doing any
// work; the kernel's on-chain check remains the sole authority.
type NullifierCache struct {
	mu   sync.RWMutex
	seen map[primitives.Hash]struct{}
}

func NewNullifierCache() *NullifierCache {
	return &NullifierCache{seen: make(map[primitives.Hash]struct{})}
}

func (c *NullifierCache) Seen(nf primitives.Hash) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	_, ok := c.seen[nf]
	return ok
}

func (c *NullifierCache) MarkSeen(nf primitives.Hash) {
	c.mu.Lock()
	c.seen[nf] = struct{}{}
	c.mu.Unlock()
}
