package batch

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"time"

	"loan-ledger/internal/domain/borrower"
	"loan-ledger/internal/domain/ledger"
	"loan-ledger/internal/event"
)

// Portfolio is the read side of the ledger the reminder job needs.
type Portfolio interface {
	Now() time.Time
	Worklist(ctx context.Context, asOf time.Time, q borrower.Query) borrower.Worklist
	Dashboard(ctx context.Context, asOf time.Time) ledger.Dashboard
}

type PortfolioObserver interface {
	ObservePortfolio(d ledger.Dashboard)
	ReminderPublished()
}

type nopObserver struct{}

func (nopObserver) ObservePortfolio(ledger.Dashboard) {}
func (nopObserver) ReminderPublished()                {}

type CollectionReminderJob struct {
	portfolio Portfolio
	publisher event.EventPublisher
	observer  PortfolioObserver
	logger    *slog.Logger
}

func NewCollectionReminderJob(
	portfolio Portfolio,
	publisher event.EventPublisher,
	observer PortfolioObserver,
	logger *slog.Logger,
) *CollectionReminderJob {
	if portfolio == nil {
		panic("Portfolio cannot be nil for CollectionReminderJob")
	}
	if publisher == nil {
		panic("EventPublisher cannot be nil for CollectionReminderJob")
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &CollectionReminderJob{
		portfolio: portfolio,
		publisher: publisher,
		observer:  observer,
		logger:    logger.With("job", "CollectionReminder"),
	}
}

// Run publishes a reminder for every borrower that is overdue or due soon and
// refreshes the portfolio gauges. A failed publish does not stop the sweep.
func (j *CollectionReminderJob) Run(ctx context.Context) error {
	j.logger.InfoContext(ctx, "Starting collection reminder job")
	startTime := time.Now()
	asOf := j.portfolio.Now()

	j.observer.ObservePortfolio(j.portfolio.Dashboard(ctx, asOf))

	worklist := j.portfolio.Worklist(ctx, asOf, borrower.Query{Status: borrower.StatusActive})

	publishedCount := 0
	skippedCount := 0
	errorCount := 0

	for _, s := range worklist.Items {
		select {
		case <-ctx.Done():
			j.logger.WarnContext(ctx, "Collection reminder job cancelled", slog.Any("error", ctx.Err()), "published", publishedCount)
			return ctx.Err()
		default:
		}

		if s.Urgency != borrower.Overdue && s.Urgency != borrower.DueSoon {
			skippedCount++
			continue
		}

		reminder := event.CollectionReminderEvent{
			BorrowerID: s.Borrower.ID,
			Name:       s.Borrower.Name,
			Mobile:     s.Borrower.Mobile,
			Urgency:    s.Urgency.String(),
			Balance:    s.Balance,
			NextDue:    s.NextDue,
			Timestamp:  asOf,
		}
		if err := j.publisher.PublishCollectionReminder(ctx, reminder); err != nil {
			errorCount++
			j.logger.ErrorContext(ctx, "Failed to publish collection reminder",
				"borrower_id", s.Borrower.ID, slog.Any("error", err))
			continue
		}
		publishedCount++
		j.observer.ReminderPublished()
	}

	duration := time.Since(startTime)
	j.logger.InfoContext(ctx, "Collection reminder job finished",
		slog.Duration("duration", duration),
		slog.Int("candidates", len(worklist.Items)),
		slog.Int("published", publishedCount),
		slog.Int("skipped", skippedCount),
		slog.Int("errors", errorCount),
	)

	if errorCount > 0 {
		return fmt.Errorf("collection reminder job completed with %d errors", errorCount)
	}
	return nil
}
