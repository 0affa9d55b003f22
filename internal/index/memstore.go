package index

import (
	"context"
	"sync"

	"github.com/duskline/withdraw/pkg/primitives"
)

type nodeKey struct {
	level int
	index uint64
}

// InMemoryTreeStore is a reference TreeStore for tests.
type InMemoryTreeStore struct {
	mu          sync.RWMutex
	nodes       map[nodeKey]primitives.Hash
	commitments map[primitives.Hash]struct{}
	root        primitives.Hash
	size        uint64
}

func NewInMemoryTreeStore() *InMemoryTreeStore {
	return &InMemoryTreeStore{
		nodes:       make(map[nodeKey]primitives.Hash),
		commitments: make(map[primitives.Hash]struct{}),
		root:        EmptyRoot(),
	}
}

func (s *InMemoryTreeStore) GetNode(ctx context.Context, level int, index uint64) (primitives.Hash, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	h, ok := s.nodes[nodeKey{level, index}]
	return h, ok, nil
}

func (s *InMemoryTreeStore) SetNode(ctx context.Context, level int, index uint64, hash primitives.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes[nodeKey{level, index}] = hash
	if level == 0 {
		s.commitments[hash] = struct{}{}
	}
	return nil
}

func (s *InMemoryTreeStore) GetRoot(ctx context.Context) (primitives.Hash, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.root, nil
}

func (s *InMemoryTreeStore) SetRoot(ctx context.Context, root primitives.Hash) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.root = root
	return nil
}

func (s *InMemoryTreeStore) GetSize(ctx context.Context) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.size, nil
}

func (s *InMemoryTreeStore) SetSize(ctx context.Context, size uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.size = size
	return nil
}

func (s *InMemoryTreeStore) HasCommitment(ctx context.Context, commitment primitives.Hash) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.commitments[commitment]
	return ok, nil
}
