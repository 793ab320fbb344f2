package blockstore

import (
	"context"
	"sync"

	"github.com/ipfs/go-cid"
)

// MemStore is an in-memory Store guarded by a single mutex. It is meant
// for tests and small trees; DirStore is the one to reach for on disk.
type MemStore struct {
	mu     sync.RWMutex
	blocks map[cid.Cid][]byte
}

// NewMemStore returns an empty MemStore.
func NewMemStore() *MemStore {
	return &MemStore{blocks: make(map[cid.Cid][]byte)}
}

func (s *MemStore) Put(_ context.Context, c cid.Cid, block []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.blocks[c]; exists {
		return nil
	}
	cp := make([]byte, len(block))
	copy(cp, block)
	s.blocks[c] = cp
	return nil
}

func (s *MemStore) Get(_ context.Context, c cid.Cid) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	block, ok := s.blocks[c]
	if !ok {
		return nil, ErrNotFound
	}
	return block, nil
}

func (s *MemStore) Iter(ctx context.Context, fn func(c cid.Cid, block []byte) error) error {
	s.mu.RLock()
	snapshot := make(map[cid.Cid][]byte, len(s.blocks))
	for c, b := range s.blocks {
		snapshot[c] = b
	}
	s.mu.RUnlock()

	for c, b := range snapshot {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := fn(c, b); err != nil {
			return err
		}
	}
	return nil
}

// Len reports how many distinct blocks are stored.
func (s *MemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.blocks)
}
