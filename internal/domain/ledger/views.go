package ledger

import (
	"time"

	"loan-ledger/internal/domain/borrower"
	"loan-ledger/internal/domain/journal"
	"loan-ledger/internal/domain/loan"

	"github.com/shopspring/decimal"
)

type LoanInput struct {
	Principal    decimal.Decimal
	Terms        loan.Terms
	InterestRate decimal.Decimal
	PenaltyRate  decimal.Decimal
	// Date defaults to today when zero.
	Date  time.Time
	Notes string
}

type NewBorrowerInput struct {
	Contact     borrower.Contact
	InitialLoan *LoanInput
}

type PaymentInput struct {
	Amount decimal.Decimal
	// Date defaults to now when zero. It must fall between the loan date and
	// today, inclusive.
	Date  time.Time
	Notes string
}

type LoanResult struct {
	BorrowerID   string          `json:"borrowerId"`
	Loan         *loan.Loan      `json:"loan"`
	Accrual      loan.Accrual    `json:"accrual"`
	TotalBalance decimal.Decimal `json:"totalBalance"`
}

// Receipt is what a payer is shown after a payment is recorded.
type Receipt struct {
	PaymentID     string          `json:"paymentId"`
	Date          time.Time       `json:"date"`
	BorrowerID    string          `json:"borrowerId"`
	BorrowerName  string          `json:"borrowerName"`
	LoanID        string          `json:"loanId"`
	Amount        decimal.Decimal `json:"amount"`
	LoanRemaining decimal.Decimal `json:"loanRemaining"`
	TotalBalance  decimal.Decimal `json:"totalBalance"`
}

// Detail is a borrower with derived balances and its transaction history,
// newest first.
type Detail struct {
	borrower.Summary
	History []journal.Transaction `json:"history"`
}

type Dashboard struct {
	AsOf             time.Time       `json:"asOf"`
	Borrowers        int             `json:"borrowers"`
	Loans            int             `json:"loans"`
	TotalOutstanding decimal.Decimal `json:"totalOutstanding"`
	TotalDisbursed   decimal.Decimal `json:"totalDisbursed"`
	TotalCollected   decimal.Decimal `json:"totalCollected"`
	CashOnHand       decimal.Decimal `json:"cashOnHand"`
	OverdueCount     int             `json:"overdueCount"`
	DueSoonCount     int             `json:"dueSoonCount"`
	ActiveCount      int             `json:"activeCount"`
	PaidCount        int             `json:"paidCount"`
}

type LoadResult struct {
	Borrowers int `json:"borrowers"`
	Migrated  int `json:"migrated"`
	// Discarded is set when the stored snapshot could not be parsed and the
	// ledger started empty instead.
	Discarded bool `json:"discarded"`
}

type ImportResult struct {
	Borrowers int `json:"borrowers"`
	Loans     int `json:"loans"`
	Migrated  int `json:"migrated"`
}
