package ledger

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"loan-ledger/internal/domain/borrower"
	"loan-ledger/internal/domain/loan"
	"loan-ledger/internal/pkg/apperrors"
	"loan-ledger/internal/pkg/caldate"

	"github.com/shopspring/decimal"
)

// SnapshotVersion is written into every saved snapshot. Version 1 is the
// legacy bare array of borrower records.
const SnapshotVersion = 2

type snapshotDocument struct {
	Version   int                  `json:"version"`
	SavedAt   time.Time            `json:"savedAt"`
	Borrowers []*borrower.Borrower `json:"borrowers"`
}

type decodedSnapshot struct {
	Version   int
	Borrowers []*borrower.Borrower
	// Migrated counts records converted from the legacy flat shape.
	Migrated int
}

func encodeSnapshot(borrowers []*borrower.Borrower, savedAt time.Time) ([]byte, error) {
	if borrowers == nil {
		borrowers = []*borrower.Borrower{}
	}
	data, err := json.Marshal(snapshotDocument{
		Version:   SnapshotVersion,
		SavedAt:   savedAt.UTC(),
		Borrowers: borrowers,
	})
	if err != nil {
		return nil, fmt.Errorf("encode snapshot: %w", err)
	}
	return data, nil
}

// decodeSnapshot accepts the current object shape and the legacy array shape.
// Records without a loans collection are migrated; records that have one are
// taken as-is, so decoding an already migrated snapshot changes nothing.
func decodeSnapshot(data []byte, defaultTerms loan.Terms, now time.Time) (*decodedSnapshot, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, apperrors.NewParseError(nil, "snapshot is empty")
	}

	var records []json.RawMessage
	version := 1
	switch trimmed[0] {
	case '[':
		if err := json.Unmarshal(trimmed, &records); err != nil {
			return nil, apperrors.NewParseError(err, "invalid legacy backup")
		}
	case '{':
		var doc struct {
			Version   int               `json:"version"`
			Borrowers []json.RawMessage `json:"borrowers"`
		}
		var members map[string]json.RawMessage
		if err := json.Unmarshal(trimmed, &members); err != nil {
			return nil, apperrors.NewParseError(err, "invalid snapshot")
		}
		if _, ok := members["borrowers"]; !ok {
			return nil, apperrors.NewParseError(nil, "snapshot object has no borrowers member")
		}
		if err := json.Unmarshal(trimmed, &doc); err != nil {
			return nil, apperrors.NewParseError(err, "invalid snapshot")
		}
		if doc.Version > SnapshotVersion {
			return nil, apperrors.NewParseError(nil, fmt.Sprintf("unsupported snapshot version %d", doc.Version))
		}
		version = doc.Version
		records = doc.Borrowers
	default:
		return nil, apperrors.NewParseError(nil, "snapshot must be a JSON object or array")
	}

	out := &decodedSnapshot{Version: version, Borrowers: make([]*borrower.Borrower, 0, len(records))}
	seen := make(map[string]struct{}, len(records))
	for i, raw := range records {
		b, migrated, err := decodeBorrower(raw, i+1, defaultTerms, now)
		if err != nil {
			return nil, err
		}
		if _, dup := seen[b.ID]; dup {
			return nil, apperrors.NewParseError(nil, fmt.Sprintf("duplicate borrower id %q", b.ID))
		}
		seen[b.ID] = struct{}{}
		if migrated {
			out.Migrated++
		}
		out.Borrowers = append(out.Borrowers, b)
	}
	return out, nil
}

func decodeBorrower(raw json.RawMessage, n int, defaultTerms loan.Terms, now time.Time) (*borrower.Borrower, bool, error) {
	var members map[string]json.RawMessage
	if err := json.Unmarshal(raw, &members); err != nil {
		return nil, false, apperrors.NewParseError(err, fmt.Sprintf("borrower record %d is not an object", n))
	}

	if _, ok := members["loans"]; !ok {
		var legacy legacyBorrower
		if err := json.Unmarshal(raw, &legacy); err != nil {
			return nil, false, apperrors.NewParseError(err, fmt.Sprintf("legacy borrower record %d", n))
		}
		return migrateLegacy(legacy, n, defaultTerms, now), true, nil
	}

	var b borrower.Borrower
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, false, apperrors.NewParseError(err, fmt.Sprintf("borrower record %d", n))
	}
	if b.ID == "" {
		b.ID = legacyID(n)
	}
	if b.Loans == nil {
		b.Loans = []*loan.Loan{}
	}
	if err := validateStored(&b); err != nil {
		return nil, false, err
	}
	return &b, false, nil
}

// validateStored applies the same rules to a stored record that the ledger
// applies when the record is first created.
func validateStored(b *borrower.Borrower) error {
	if err := (borrower.Contact{Name: b.Name, Age: b.Age}).Validate(); err != nil {
		return apperrors.NewParseError(err, fmt.Sprintf("borrower %q", b.ID))
	}

	loanIDs := make(map[string]struct{}, len(b.Loans))
	for i, l := range b.Loans {
		if l == nil {
			return apperrors.NewParseError(nil, fmt.Sprintf("borrower %q has an empty loan at position %d", b.ID, i))
		}
		params := loan.Params{
			Principal:    l.Principal,
			Date:         l.Date,
			Terms:        l.Terms,
			InterestRate: l.InterestRate,
			PenaltyRate:  l.PenaltyRate,
		}
		if err := params.Validate(); err != nil {
			return apperrors.NewParseError(err, fmt.Sprintf("borrower %q has an invalid loan %q", b.ID, l.ID))
		}
		if _, dup := loanIDs[l.ID]; dup {
			return apperrors.NewParseError(nil, fmt.Sprintf("borrower %q has duplicate loan id %q", b.ID, l.ID))
		}
		loanIDs[l.ID] = struct{}{}

		if l.Payments == nil {
			l.Payments = []loan.Payment{}
		}
		for _, p := range l.Payments {
			if !p.Amount.IsPositive() {
				return apperrors.NewParseError(nil, fmt.Sprintf("loan %q has a payment %q with a non-positive amount", l.ID, p.ID))
			}
		}
	}
	return nil
}

// flexString accepts a JSON string or number.
type flexString string

func (f *flexString) UnmarshalJSON(data []byte) error {
	if string(data) == "null" {
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		*f = flexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return err
	}
	*f = flexString(n.String())
	return nil
}

// flexDecimal accepts a number, a numeric string, or an empty string.
type flexDecimal struct {
	decimal.Decimal
}

func (f *flexDecimal) UnmarshalJSON(data []byte) error {
	var s flexString
	if err := s.UnmarshalJSON(data); err != nil {
		return err
	}
	trimmed := strings.TrimSpace(string(s))
	if trimmed == "" {
		f.Decimal = decimal.Zero
		return nil
	}
	d, err := decimal.NewFromString(trimmed)
	if err != nil {
		return err
	}
	f.Decimal = d
	return nil
}

type legacyTransaction struct {
	Type   string      `json:"type"`
	Amount flexDecimal `json:"amount"`
	Date   string      `json:"date"`
	Notes  string      `json:"notes"`
}

type legacyBorrower struct {
	ID           flexString          `json:"id"`
	Name         string              `json:"name"`
	Phone        string              `json:"phone"`
	Mobile       string              `json:"mobile"`
	Address      string              `json:"address"`
	Age          flexString          `json:"age"`
	Photo        string              `json:"photo"`
	Balance      flexDecimal         `json:"balance"`
	Terms        string              `json:"terms"`
	LoanDate     string              `json:"loanDate"`
	DueDate      string              `json:"dueDate"`
	LastUpdated  string              `json:"lastUpdated"`
	Transactions []legacyTransaction `json:"transactions"`
}

func legacyID(n int) string {
	return "legacy-" + strconv.Itoa(n)
}

func parseOptionalDate(s string) (time.Time, bool) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, false
	}
	t, err := caldate.Parse(s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// migrateLegacy synthesizes at most one loan from a flat legacy record. Ids
// that the record does not carry are derived from its position, so the same
// input always produces the same output.
func migrateLegacy(rec legacyBorrower, n int, defaultTerms loan.Terms, now time.Time) *borrower.Borrower {
	id := strings.TrimSpace(string(rec.ID))
	if id == "" {
		id = legacyID(n)
	}

	updated, ok := parseOptionalDate(rec.LastUpdated)
	if !ok {
		updated = now
	}

	mobile := rec.Mobile
	if mobile == "" {
		mobile = rec.Phone
	}
	age, _ := strconv.Atoi(strings.TrimSpace(string(rec.Age)))
	if age < 0 {
		age = 0
	}

	b := &borrower.Borrower{
		ID:        id,
		Name:      strings.TrimSpace(rec.Name),
		Mobile:    strings.TrimSpace(mobile),
		Address:   strings.TrimSpace(rec.Address),
		Age:       age,
		Photo:     rec.Photo,
		Loans:     []*loan.Loan{},
		CreatedAt: updated,
		UpdatedAt: updated,
	}

	terms, err := loan.ParseTerms(rec.Terms)
	if err != nil {
		terms = defaultTerms
	}

	disbursed := decimal.Zero
	var earliest time.Time
	var payments []legacyTransaction
	for _, t := range rec.Transactions {
		switch strings.ToLower(strings.TrimSpace(t.Type)) {
		case "loan":
			if !t.Amount.IsPositive() {
				continue
			}
			disbursed = disbursed.Add(t.Amount.Decimal)
			if d, ok := parseOptionalDate(t.Date); ok && (earliest.IsZero() || d.Before(earliest)) {
				earliest = d
			}
		case "payment":
			if t.Amount.IsPositive() {
				payments = append(payments, t)
			}
		}
	}

	// A flat balance is already net of payments, so payments are only
	// replayed when the principal comes from legacy loan transactions.
	principal := disbursed
	if !principal.IsPositive() {
		principal = rec.Balance.Decimal
		payments = nil
	}
	if !principal.IsPositive() {
		return b
	}

	origin, ok := parseOptionalDate(rec.LoanDate)
	switch {
	case ok:
	case !earliest.IsZero():
		origin = earliest
	default:
		if due, dueOK := parseOptionalDate(rec.DueDate); dueOK {
			origin = terms.PreviousOrigin(due)
		} else {
			origin = caldate.Date(updated)
		}
	}

	l := &loan.Loan{
		ID:           id + "-loan-1",
		Principal:    principal,
		Date:         origin,
		Terms:        terms,
		InterestRate: decimal.Zero,
		PenaltyRate:  decimal.Zero,
		Notes:        "migrated from legacy record",
		Payments:     make([]loan.Payment, 0, len(payments)),
		CreatedAt:    updated,
	}
	for i, t := range payments {
		date, ok := parseOptionalDate(t.Date)
		if !ok {
			date = origin
		}
		l.Payments = append(l.Payments, loan.Payment{
			ID:        fmt.Sprintf("%s-payment-%d", l.ID, i+1),
			Date:      date,
			Amount:    t.Amount.Decimal,
			Notes:     t.Notes,
			CreatedAt: date,
		})
	}
	b.Loans = append(b.Loans, l)
	return b
}
