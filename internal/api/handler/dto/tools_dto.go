package dto

import (
	"time"

	"loan-ledger/internal/domain/loan"
	"loan-ledger/internal/pkg/apperrors"
	"loan-ledger/internal/pkg/caldate"

	"github.com/shopspring/decimal"
)

type LoanQuoteRequest struct {
	Principal    string `json:"principal" validate:"required,numeric"`
	InterestRate string `json:"interestRate" validate:"omitempty,numeric"`
	Terms        string `json:"terms"`
	Date         string `json:"date"`
}

func (r *LoanQuoteRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	if decimal.RequireFromString(r.Principal).LessThanOrEqual(decimal.Zero) {
		return apperrors.NewValidationError("principal", "must be greater than zero")
	}
	if r.InterestRate != "" && decimal.RequireFromString(r.InterestRate).IsNegative() {
		return apperrors.NewValidationError("interestRate", "must not be negative")
	}
	return nil
}

// Quote computes the flat total for the request. A missing date means today.
func (r *LoanQuoteRequest) Quote(defaultTerms loan.Terms, today time.Time) (loan.Quote, error) {
	terms := defaultTerms
	if r.Terms != "" {
		parsed, err := loan.ParseTerms(r.Terms)
		if err != nil {
			return loan.Quote{}, err
		}
		terms = parsed
	}
	origin, err := parseOptionalDate("date", r.Date)
	if err != nil {
		return loan.Quote{}, err
	}
	if origin.IsZero() {
		origin = caldate.Date(today)
	}
	rate := decimal.Zero
	if r.InterestRate != "" {
		rate = decimal.RequireFromString(r.InterestRate)
	}
	return loan.NewQuote(decimal.RequireFromString(r.Principal), rate, terms, origin), nil
}

type QuoteResponse struct {
	Principal    string `json:"principal"`
	InterestRate string `json:"interestRate"`
	Interest     string `json:"interest"`
	Total        string `json:"total"`
	DueDate      string `json:"dueDate"`
}

func NewQuoteResponse(q loan.Quote) QuoteResponse {
	return QuoteResponse{
		Principal:    q.Principal.StringFixed(2),
		InterestRate: q.InterestRate.String(),
		Interest:     q.Interest.StringFixed(2),
		Total:        q.Total.StringFixed(2),
		DueDate:      caldate.Format(q.DueDate),
	}
}

type DateAddRequest struct {
	Date string `json:"date" validate:"required"`
	Days int    `json:"days"`
}

func (r *DateAddRequest) Validate() error {
	return validateStruct(r)
}

func (r *DateAddRequest) Result() (DateAddResponse, error) {
	start, err := caldate.Parse(r.Date)
	if err != nil {
		return DateAddResponse{}, apperrors.NewValidationError("date", err.Error())
	}
	result := caldate.AddDays(start, r.Days)
	return DateAddResponse{
		Date:    caldate.Format(start),
		Days:    r.Days,
		Result:  caldate.Format(result),
		Weekday: result.Weekday().String(),
	}, nil
}

type DateAddResponse struct {
	Date    string `json:"date"`
	Days    int    `json:"days"`
	Result  string `json:"result"`
	Weekday string `json:"weekday"`
}
