package loan

import (
	"time"

	"loan-ledger/internal/pkg/apperrors"
	"loan-ledger/internal/pkg/caldate"

	"github.com/shopspring/decimal"
)

const (
	DefaultTerms = Monthly
)

var hundred = decimal.NewFromInt(100)

// Loan is an amount lent to a borrower. Principal, date, terms and rates are
// fixed at origination; only Payments grow afterwards.
type Loan struct {
	ID           string          `json:"id"`
	Principal    decimal.Decimal `json:"principal"`
	Date         time.Time       `json:"date"`
	Terms        Terms           `json:"terms"`
	InterestRate decimal.Decimal `json:"interestRate"`
	PenaltyRate  decimal.Decimal `json:"penaltyRate"`
	Notes        string          `json:"notes,omitempty"`
	Payments     []Payment       `json:"payments"`
	CreatedAt    time.Time       `json:"createdAt"`
}

// Payment is immutable once recorded.
type Payment struct {
	ID        string          `json:"id"`
	Date      time.Time       `json:"date"`
	Amount    decimal.Decimal `json:"amount"`
	Notes     string          `json:"notes,omitempty"`
	CreatedAt time.Time       `json:"createdAt"`
}

type Params struct {
	Principal    decimal.Decimal
	Date         time.Time
	Terms        Terms
	InterestRate decimal.Decimal
	PenaltyRate  decimal.Decimal
	Notes        string
}

func (p Params) Validate() error {
	if !p.Principal.IsPositive() {
		return apperrors.NewValidationError("principal", "must be greater than zero")
	}
	if !p.Terms.Valid() {
		return apperrors.NewValidationError("terms", "must be one of Daily, Weekly, Kinsenas or Monthly")
	}
	if p.InterestRate.IsNegative() {
		return apperrors.NewValidationError("interestRate", "must not be negative")
	}
	if p.PenaltyRate.IsNegative() {
		return apperrors.NewValidationError("penaltyRate", "must not be negative")
	}
	if p.Date.IsZero() {
		return apperrors.NewValidationError("date", "is required")
	}
	return nil
}

func NewLoan(id string, p Params, now time.Time) (*Loan, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	return &Loan{
		ID:           id,
		Principal:    p.Principal,
		Date:         caldate.Date(p.Date),
		Terms:        p.Terms,
		InterestRate: p.InterestRate,
		PenaltyRate:  p.PenaltyRate,
		Notes:        p.Notes,
		Payments:     []Payment{},
		CreatedAt:    now,
	}, nil
}

func NewPayment(id string, amount decimal.Decimal, date time.Time, notes string, now time.Time) (Payment, error) {
	if !amount.IsPositive() {
		return Payment{}, apperrors.NewValidationError("amount", "must be greater than zero")
	}
	if date.IsZero() {
		date = now
	}
	return Payment{
		ID:        id,
		Date:      date,
		Amount:    amount,
		Notes:     notes,
		CreatedAt: now,
	}, nil
}

// DueDate is the first due date implied by the loan's terms.
func (l *Loan) DueDate() time.Time {
	return l.Terms.NextDueDate(l.Date)
}

func (l *Loan) TotalPaid() decimal.Decimal {
	total := decimal.Zero
	for _, p := range l.Payments {
		total = total.Add(p.Amount)
	}
	return total
}

func (l *Loan) FindPayment(id string) (Payment, bool) {
	for _, p := range l.Payments {
		if p.ID == id {
			return p, true
		}
	}
	return Payment{}, false
}

// Clone returns a deep copy that shares no payment storage with l.
func (l *Loan) Clone() *Loan {
	c := *l
	c.Payments = append([]Payment(nil), l.Payments...)
	if c.Payments == nil {
		c.Payments = []Payment{}
	}
	return &c
}
