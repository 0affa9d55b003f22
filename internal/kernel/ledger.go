package kernel

import (
	"sync"

	"github.com/duskline/withdraw/pkg/primitives"
)

// InMemoryLedger is a minimal Ledger: a single balance plus per-address
// credit tracking, standing in for the pool/treasury system accounts a
// real deployment would hold as native lamport balances. Transfers are
// checked (no negative balance); there is no notion of who owns the
// destination, since recipients are arbitrary withdraw addresses.
type InMemoryLedger struct {
	mu      sync.Mutex
	balance uint64
	credits map[primitives.Address]uint64
}

// NewInMemoryLedger returns a ledger funded with the given balance.
func NewInMemoryLedger(initialBalance uint64) *InMemoryLedger {
	return &InMemoryLedger{balance: initialBalance, credits: make(map[primitives.Address]uint64)}
}

func (l *InMemoryLedger) Balance() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balance
}

func (l *InMemoryLedger) Transfer(to primitives.Address, amount uint64) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.balance < amount {
		return ErrInsufficientPool
	}
	l.balance -= amount
	l.credits[to] += amount
	return nil
}

func (l *InMemoryLedger) Credit(amount uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balance += amount
}

// CreditOf reports how much a given address has received, for tests.
func (l *InMemoryLedger) CreditOf(addr primitives.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.credits[addr]
}
