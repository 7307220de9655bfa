package storage

import (
	"context"
	"fmt"

	"loan-ledger/internal/domain/ledger"
	"loan-ledger/internal/pkg/apperrors"
)

// LimitStore rejects snapshots larger than MaxBytes before they reach the backend.
type LimitStore struct {
	next     ledger.SnapshotStore
	maxBytes int
}

var _ ledger.SnapshotStore = (*LimitStore)(nil)

// WithLimit wraps next with a size quota. A non-positive maxBytes disables the check.
func WithLimit(next ledger.SnapshotStore, maxBytes int) ledger.SnapshotStore {
	if maxBytes <= 0 {
		return next
	}
	return &LimitStore{next: next, maxBytes: maxBytes}
}

func (s *LimitStore) Load(ctx context.Context) ([]byte, error) {
	return s.next.Load(ctx)
}

func (s *LimitStore) Save(ctx context.Context, data []byte) error {
	if len(data) > s.maxBytes {
		return apperrors.NewCapacityError(nil, fmt.Sprintf("snapshot of %d bytes exceeds the %d byte quota", len(data), s.maxBytes))
	}
	return s.next.Save(ctx, data)
}
