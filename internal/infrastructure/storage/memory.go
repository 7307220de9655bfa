package storage

import (
	"context"
	"sync"

	"loan-ledger/internal/domain/ledger"
)

// MemoryStore keeps the last saved snapshot in process memory.
type MemoryStore struct {
	mu   sync.RWMutex
	data []byte
}

var _ ledger.SnapshotStore = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Load(ctx context.Context) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.data == nil {
		return nil, nil
	}
	return append([]byte(nil), s.data...), nil
}

func (s *MemoryStore) Save(ctx context.Context, data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.data = append([]byte(nil), data...)
	return nil
}
