package ledger

import (
	"context"
	"time"

	"loan-ledger/internal/event"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockSnapshotStore struct {
	mock.Mock
}

func (_m *MockSnapshotStore) Load(ctx context.Context) ([]byte, error) {
	ret := _m.Called(ctx)

	var r0 []byte
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]byte)
	}
	return r0, ret.Error(1)
}

func (_m *MockSnapshotStore) Save(ctx context.Context, data []byte) error {
	ret := _m.Called(ctx, data)
	return ret.Error(0)
}

// LastSaved returns the payload of the most recent Save call.
func (_m *MockSnapshotStore) LastSaved() []byte {
	var last []byte
	for _, c := range _m.Calls {
		if c.Method == "Save" {
			last = c.Arguments.Get(1).([]byte)
		}
	}
	return last
}

type MockEventPublisher struct {
	mock.Mock
}

func (_m *MockEventPublisher) PublishLoanDisbursed(ctx context.Context, e event.LoanDisbursedEvent) error {
	return _m.Called(ctx, e).Error(0)
}

func (_m *MockEventPublisher) PublishPaymentReceived(ctx context.Context, e event.PaymentReceivedEvent) error {
	return _m.Called(ctx, e).Error(0)
}

func (_m *MockEventPublisher) PublishBorrowerDeleted(ctx context.Context, e event.BorrowerDeletedEvent) error {
	return _m.Called(ctx, e).Error(0)
}

func (_m *MockEventPublisher) PublishCollectionReminder(ctx context.Context, e event.CollectionReminderEvent) error {
	return _m.Called(ctx, e).Error(0)
}

type MockRecorder struct {
	mock.Mock
}

func (_m *MockRecorder) LoanDisbursed(principal decimal.Decimal) {
	_m.Called(principal)
}

func (_m *MockRecorder) PaymentReceived(amount decimal.Decimal) {
	_m.Called(amount)
}

func (_m *MockRecorder) SnapshotSaved(size int, elapsed time.Duration, err error) {
	_m.Called(size, elapsed, err)
}
