package loan

import (
	"time"

	"loan-ledger/internal/pkg/caldate"

	"github.com/shopspring/decimal"
)

// Accrual is the state of a loan as of a given date. It is always derived,
// never stored.
type Accrual struct {
	AsOf         time.Time       `json:"asOf"`
	DueDate      time.Time       `json:"dueDate"`
	TermDays     int             `json:"termDays"`
	ElapsedDays  int             `json:"elapsedDays"`
	OverdueDays  int             `json:"overdueDays"`
	DaysUntilDue int             `json:"daysUntilDue"`
	IsOverdue    bool            `json:"isOverdue"`
	Interest     decimal.Decimal `json:"interest"`
	Penalty      decimal.Decimal `json:"penalty"`
	TotalDue     decimal.Decimal `json:"totalDue"`
	TotalPaid    decimal.Decimal `json:"totalPaid"`
	Remaining    decimal.Decimal `json:"remaining"`
}

// Evaluate computes interest, penalty and balances as of asOf.
//
// Interest accrues linearly with elapsed days relative to one term. Penalty is
// linear in days past the first term and is charged on principal, so payments
// never reduce it. Remaining is clamped at zero; overpayments are not carried.
func (l *Loan) Evaluate(asOf time.Time) Accrual {
	termDays := l.Terms.Days()
	dueDate := l.DueDate()

	elapsed := caldate.DaysBetween(l.Date, asOf)
	if elapsed < 0 {
		elapsed = 0
	}

	principalRate := l.Principal.Mul(l.InterestRate).Div(hundred)
	interest := principalRate.Mul(decimal.NewFromInt(int64(elapsed))).Div(decimal.NewFromInt(int64(termDays)))

	overdueDays := 0
	penalty := decimal.Zero
	if elapsed > termDays {
		overdueDays = elapsed - termDays
		penalty = l.Principal.Mul(l.PenaltyRate).Div(hundred).Mul(decimal.NewFromInt(int64(overdueDays)))
	}

	totalDue := l.Principal.Add(interest).Add(penalty)
	totalPaid := l.TotalPaid()
	remaining := totalDue.Sub(totalPaid)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}

	return Accrual{
		AsOf:         caldate.Date(asOf),
		DueDate:      dueDate,
		TermDays:     termDays,
		ElapsedDays:  elapsed,
		OverdueDays:  overdueDays,
		DaysUntilDue: caldate.DaysBetween(asOf, dueDate),
		IsOverdue:    caldate.Before(dueDate, asOf),
		Interest:     interest,
		Penalty:      penalty,
		TotalDue:     totalDue,
		TotalPaid:    totalPaid,
		Remaining:    remaining,
	}
}

// Quote is the flat total for a principal at a rate, used by the loan calculator tool.
type Quote struct {
	Principal    decimal.Decimal `json:"principal"`
	InterestRate decimal.Decimal `json:"interestRate"`
	Interest     decimal.Decimal `json:"interest"`
	Total        decimal.Decimal `json:"total"`
	DueDate      time.Time       `json:"dueDate"`
}

func NewQuote(principal, rate decimal.Decimal, terms Terms, origin time.Time) Quote {
	interest := principal.Mul(rate).Div(hundred)
	return Quote{
		Principal:    principal,
		InterestRate: rate,
		Interest:     interest,
		Total:        principal.Add(interest),
		DueDate:      terms.NextDueDate(origin),
	}
}
