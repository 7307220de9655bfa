// Package resilience guards remote snapshot stores with a circuit breaker.
package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"loan-ledger/internal/domain/ledger"
	"loan-ledger/internal/pkg/apperrors"

	"github.com/sony/gobreaker"
)

// NewCircuitBreaker trips after five requests with a failure ratio of 60% or more.
func NewCircuitBreaker(name string, logger *slog.Logger) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        name,
		MaxRequests: 3,
		Interval:    30 * time.Second,
		Timeout:     10 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 5 && failureRatio >= 0.6
		},
		IsSuccessful: func(err error) bool {
			// a full store is healthy; it just has no room
			return err == nil || errors.Is(err, apperrors.ErrPersistenceCapacity)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger != nil {
				logger.Warn("Circuit breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
			}
		},
	})
}

// BreakerStore routes Load and Save through a circuit breaker.
type BreakerStore struct {
	next    ledger.SnapshotStore
	breaker *gobreaker.CircuitBreaker
	timeout time.Duration
}

var _ ledger.SnapshotStore = (*BreakerStore)(nil)

func NewBreakerStore(next ledger.SnapshotStore, cb *gobreaker.CircuitBreaker, timeout time.Duration) *BreakerStore {
	return &BreakerStore{next: next, breaker: cb, timeout: timeout}
}

func (s *BreakerStore) Load(ctx context.Context) ([]byte, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	out, err := s.breaker.Execute(func() (any, error) {
		return s.next.Load(ctx)
	})
	if err != nil {
		return nil, translate(err)
	}
	data, _ := out.([]byte)
	return data, nil
}

func (s *BreakerStore) Save(ctx context.Context, data []byte) error {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	_, err := s.breaker.Execute(func() (any, error) {
		return nil, s.next.Save(ctx, data)
	})
	return translate(err)
}

func (s *BreakerStore) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func translate(err error) error {
	if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
		return fmt.Errorf("%w: snapshot store unavailable: %w", apperrors.ErrDatabase, err)
	}
	return err
}
