// Package journal projects the borrower/loan/payment graph into simplified
// double-entry books: cash receipts, cash disbursements, general journal and
// general ledger. Every projection is a pure function of the transactions.
package journal

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"loan-ledger/internal/domain/borrower"
	"loan-ledger/internal/pkg/apperrors"
	"loan-ledger/internal/pkg/caldate"

	"github.com/shopspring/decimal"
)

type Kind string

const (
	Disbursement Kind = "Disbursement"
	Receipt      Kind = "Receipt"
)

type Account string

const (
	Cash               Account = "Cash"
	AccountsReceivable Account = "Accounts Receivable"
)

// Transaction is a journal-level record derived from a loan (disbursement)
// or a payment (receipt).
type Transaction struct {
	ID         string          `json:"id"`
	Kind       Kind            `json:"kind"`
	Date       time.Time       `json:"date"`
	BorrowerID string          `json:"borrowerId"`
	LoanID     string          `json:"loanId"`
	Name       string          `json:"name"`
	Reference  string          `json:"reference"`
	Amount     decimal.Decimal `json:"amount"`
}

// DebitAccount is Accounts Receivable for a disbursement and Cash for a receipt.
func (t Transaction) DebitAccount() Account {
	if t.Kind == Disbursement {
		return AccountsReceivable
	}
	return Cash
}

func (t Transaction) CreditAccount() Account {
	if t.Kind == Disbursement {
		return Cash
	}
	return AccountsReceivable
}

// Flatten derives one disbursement per loan and one receipt per payment
// across all borrowers, newest first.
func Flatten(borrowers []*borrower.Borrower) []Transaction {
	var txs []Transaction
	for _, b := range borrowers {
		for _, l := range b.Loans {
			ref := l.Notes
			if ref == "" {
				ref = fmt.Sprintf("%s loan", l.Terms)
			}
			txs = append(txs, Transaction{
				ID:         l.ID,
				Kind:       Disbursement,
				Date:       caldate.Date(l.Date),
				BorrowerID: b.ID,
				LoanID:     l.ID,
				Name:       b.Name,
				Reference:  ref,
				Amount:     l.Principal,
			})
			for _, p := range l.Payments {
				txs = append(txs, Transaction{
					ID:         p.ID,
					Kind:       Receipt,
					Date:       caldate.Date(p.Date),
					BorrowerID: b.ID,
					LoanID:     l.ID,
					Name:       b.Name,
					Reference:  p.Notes,
					Amount:     p.Amount,
				})
			}
		}
	}
	SortNewestFirst(txs)
	return txs
}

// SortNewestFirst orders by date descending. On the same day receipts come
// before disbursements, since a payment cannot precede the loan it settles.
func SortNewestFirst(txs []Transaction) {
	slices.SortStableFunc(txs, func(a, b Transaction) int {
		if c := b.Date.Compare(a.Date); c != 0 {
			return c
		}
		if a.Kind != b.Kind {
			if a.Kind == Receipt {
				return -1
			}
			return 1
		}
		return strings.Compare(a.ID, b.ID)
	})
}

// DateRange is an inclusive calendar-day range. A zero bound is open.
type DateRange struct {
	From time.Time
	To   time.Time
}

func NewDateRange(from, to string) (DateRange, error) {
	var r DateRange
	if from != "" {
		t, err := caldate.Parse(from)
		if err != nil {
			return r, apperrors.NewValidationError("from", err.Error())
		}
		r.From = t
	}
	if to != "" {
		t, err := caldate.Parse(to)
		if err != nil {
			return r, apperrors.NewValidationError("to", err.Error())
		}
		r.To = t
	}
	if !r.From.IsZero() && !r.To.IsZero() && caldate.Before(r.To, r.From) {
		return r, apperrors.NewValidationError("to", "must not be before from")
	}
	return r, nil
}

func (r DateRange) Contains(t time.Time) bool {
	if !r.From.IsZero() && caldate.Before(t, r.From) {
		return false
	}
	if !r.To.IsZero() && caldate.Before(r.To, t) {
		return false
	}
	return true
}

func (r DateRange) Filter(txs []Transaction) []Transaction {
	out := make([]Transaction, 0, len(txs))
	for _, t := range txs {
		if r.Contains(t.Date) {
			out = append(out, t)
		}
	}
	return out
}
