package event

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

const (
	RoutingKeyLoanDisbursed      = "loan.disbursed"
	RoutingKeyPaymentReceived    = "payment.received"
	RoutingKeyBorrowerDeleted    = "borrower.deleted"
	RoutingKeyCollectionReminder = "collection.reminder"
)

type EventPublisher interface {
	PublishLoanDisbursed(ctx context.Context, event LoanDisbursedEvent) error
	PublishPaymentReceived(ctx context.Context, event PaymentReceivedEvent) error
	PublishBorrowerDeleted(ctx context.Context, event BorrowerDeletedEvent) error
	PublishCollectionReminder(ctx context.Context, event CollectionReminderEvent) error
}

type LoanDisbursedEvent struct {
	BorrowerID   string          `json:"borrowerId"`
	BorrowerName string          `json:"borrowerName"`
	LoanID       string          `json:"loanId"`
	Principal    decimal.Decimal `json:"principal"`
	Terms        string          `json:"terms"`
	DueDate      time.Time       `json:"dueDate"`
	Timestamp    time.Time       `json:"timestamp"`
}

type PaymentReceivedEvent struct {
	BorrowerID    string          `json:"borrowerId"`
	LoanID        string          `json:"loanId"`
	PaymentID     string          `json:"paymentId"`
	Amount        decimal.Decimal `json:"amount"`
	LoanRemaining decimal.Decimal `json:"loanRemaining"`
	TotalBalance  decimal.Decimal `json:"totalBalance"`
	Timestamp     time.Time       `json:"timestamp"`
}

type BorrowerDeletedEvent struct {
	BorrowerID string    `json:"borrowerId"`
	LoanCount  int       `json:"loanCount"`
	Timestamp  time.Time `json:"timestamp"`
}

type CollectionReminderEvent struct {
	BorrowerID string          `json:"borrowerId"`
	Name       string          `json:"name"`
	Mobile     string          `json:"mobile,omitempty"`
	Urgency    string          `json:"urgency"`
	Balance    decimal.Decimal `json:"balance"`
	NextDue    *time.Time      `json:"nextDue,omitempty"`
	Timestamp  time.Time       `json:"timestamp"`
}

// NopEventPublisher discards every event. It is used when RabbitMQ is disabled.
type NopEventPublisher struct{}

var _ EventPublisher = NopEventPublisher{}

func (NopEventPublisher) PublishLoanDisbursed(context.Context, LoanDisbursedEvent) error { return nil }

func (NopEventPublisher) PublishPaymentReceived(context.Context, PaymentReceivedEvent) error {
	return nil
}

func (NopEventPublisher) PublishBorrowerDeleted(context.Context, BorrowerDeletedEvent) error {
	return nil
}

func (NopEventPublisher) PublishCollectionReminder(context.Context, CollectionReminderEvent) error {
	return nil
}
