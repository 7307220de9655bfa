package loan

import (
	"fmt"
	"strings"
	"time"

	"loan-ledger/internal/pkg/apperrors"
	"loan-ledger/internal/pkg/caldate"
)

// Terms is the repayment interval of a loan. The zero value is not a valid term.
type Terms uint8

const (
	Daily Terms = iota + 1
	Weekly
	Kinsenas
	Monthly
)

var termNames = map[Terms]string{
	Daily:    "Daily",
	Weekly:   "Weekly",
	Kinsenas: "Kinsenas",
	Monthly:  "Monthly",
}

// AllTerms lists every valid term in ascending period length.
func AllTerms() []Terms {
	return []Terms{Daily, Weekly, Kinsenas, Monthly}
}

func (t Terms) Valid() bool {
	_, ok := termNames[t]
	return ok
}

func (t Terms) String() string {
	if name, ok := termNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Terms(%d)", uint8(t))
}

// Days is the canonical accrual period length. Monthly counts as 30 days
// even though its due date uses calendar month addition.
func (t Terms) Days() int {
	switch t {
	case Daily:
		return 1
	case Weekly:
		return 7
	case Kinsenas:
		return 15
	case Monthly:
		return 30
	}
	panic(fmt.Sprintf("loan: invalid terms %d", uint8(t)))
}

// NextDueDate is the first due date of a loan originated on origin.
func (t Terms) NextDueDate(origin time.Time) time.Time {
	if t == Monthly {
		return caldate.AddMonths(origin, 1)
	}
	return caldate.AddDays(origin, t.Days())
}

// PreviousOrigin inverts NextDueDate for legacy records that only kept a due date.
func (t Terms) PreviousOrigin(due time.Time) time.Time {
	if t == Monthly {
		return caldate.AddMonths(due, -1)
	}
	return caldate.AddDays(due, -t.Days())
}

// ParseTerms accepts the term names case-insensitively, plus "15-day" for Kinsenas.
func ParseTerms(s string) (Terms, error) {
	normalized := strings.ToLower(strings.TrimSpace(s))
	for _, t := range AllTerms() {
		if strings.ToLower(termNames[t]) == normalized {
			return t, nil
		}
	}
	switch normalized {
	case "15-day", "15 days", "kinsena", "semi-monthly":
		return Kinsenas, nil
	}
	return 0, apperrors.NewValidationError("terms", fmt.Sprintf("unknown terms %q (use Daily, Weekly, Kinsenas or Monthly)", s))
}

func (t Terms) MarshalText() ([]byte, error) {
	if !t.Valid() {
		return nil, fmt.Errorf("loan: cannot marshal invalid terms %d", uint8(t))
	}
	return []byte(termNames[t]), nil
}

func (t *Terms) UnmarshalText(text []byte) error {
	parsed, err := ParseTerms(string(text))
	if err != nil {
		return err
	}
	*t = parsed
	return nil
}
