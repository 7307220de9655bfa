package ledger

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// SnapshotStore persists the whole ledger as one serialized document.
//
// Load returns (nil, nil) when nothing has been saved yet. Save overwrites the
// previous snapshot and returns an error wrapping apperrors.ErrPersistenceCapacity
// when the backend has no room for it.
type SnapshotStore interface {
	Load(ctx context.Context) ([]byte, error)
	Save(ctx context.Context, data []byte) error
}

// Recorder receives business measurements. It is implemented by the
// monitoring package.
type Recorder interface {
	LoanDisbursed(principal decimal.Decimal)
	PaymentReceived(amount decimal.Decimal)
	SnapshotSaved(size int, elapsed time.Duration, err error)
}

type nopRecorder struct{}

func (nopRecorder) LoanDisbursed(decimal.Decimal)            {}
func (nopRecorder) PaymentReceived(decimal.Decimal)          {}
func (nopRecorder) SnapshotSaved(int, time.Duration, error) {}
