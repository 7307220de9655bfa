package borrower

import (
	"fmt"
	"strings"
	"time"

	"loan-ledger/internal/domain/loan"
	"loan-ledger/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

// Urgency orders borrowers for collection. Higher values are more urgent.
type Urgency uint8

const (
	Paid Urgency = iota
	Active
	DueSoon
	Overdue
)

// DueSoonWindow is how many days ahead of a due date a loan counts as due soon.
const DueSoonWindow = 5

var urgencyNames = map[Urgency]string{
	Paid:    "Paid",
	Active:  "Active",
	DueSoon: "DueSoon",
	Overdue: "Overdue",
}

func (u Urgency) String() string {
	if name, ok := urgencyNames[u]; ok {
		return name
	}
	return fmt.Sprintf("Urgency(%d)", uint8(u))
}

func (u Urgency) MarshalText() ([]byte, error) {
	return []byte(u.String()), nil
}

// LoanState pairs a loan with its accrual at the evaluation date.
type LoanState struct {
	Loan    *loan.Loan   `json:"loan"`
	Accrual loan.Accrual `json:"accrual"`
}

// Summary is everything derived about a borrower as of a date.
type Summary struct {
	Borrower *Borrower       `json:"borrower"`
	AsOf     time.Time       `json:"asOf"`
	Balance  decimal.Decimal `json:"balance"`
	Urgency  Urgency         `json:"urgency"`
	// NextDue is the soonest due date among loans that still carry a balance.
	NextDue *time.Time  `json:"nextDue,omitempty"`
	Loans   []LoanState `json:"loans"`
}

func TotalBalance(b *Borrower, asOf time.Time) decimal.Decimal {
	total := decimal.Zero
	for _, l := range b.Loans {
		total = total.Add(l.Evaluate(asOf).Remaining)
	}
	return total
}

// Summarize evaluates every loan once and classifies the borrower.
func Summarize(b *Borrower, asOf time.Time) Summary {
	s := Summary{
		Borrower: b,
		AsOf:     asOf,
		Balance:  decimal.Zero,
		Urgency:  Paid,
		Loans:    make([]LoanState, 0, len(b.Loans)),
	}

	for _, l := range b.Loans {
		a := l.Evaluate(asOf)
		s.Loans = append(s.Loans, LoanState{Loan: l, Accrual: a})
		s.Balance = s.Balance.Add(a.Remaining)

		if !a.Remaining.IsPositive() {
			continue
		}
		if s.NextDue == nil || a.DueDate.Before(*s.NextDue) {
			due := a.DueDate
			s.NextDue = &due
		}
		switch {
		case a.IsOverdue:
			s.Urgency = max(s.Urgency, Overdue)
		case a.DaysUntilDue >= 0 && a.DaysUntilDue <= DueSoonWindow:
			s.Urgency = max(s.Urgency, DueSoon)
		default:
			s.Urgency = max(s.Urgency, Active)
		}
	}
	return s
}

func Classify(b *Borrower, asOf time.Time) Urgency {
	return Summarize(b, asOf).Urgency
}

// Status is a worklist filter.
type Status string

const (
	StatusAll     Status = "all"
	StatusDue     Status = "due"
	StatusOverdue Status = "overdue"
	StatusPaid    Status = "paid"
	StatusActive  Status = "active"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(strings.ToLower(strings.TrimSpace(s))); st {
	case "":
		return StatusAll, nil
	case StatusAll, StatusDue, StatusOverdue, StatusPaid, StatusActive:
		return st, nil
	}
	return "", apperrors.NewValidationError("status", fmt.Sprintf("unknown status %q", s))
}

// Matches reports whether a summary passes the status filter. "active" means
// any outstanding balance, regardless of how urgent.
func (st Status) Matches(s Summary) bool {
	switch st {
	case StatusDue:
		return s.Urgency == DueSoon
	case StatusOverdue:
		return s.Urgency == Overdue
	case StatusPaid:
		return s.Urgency == Paid
	case StatusActive:
		return s.Urgency != Paid
	}
	return true
}
