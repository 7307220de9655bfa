package dto

import (
	"fmt"
	"strings"
	"time"

	"loan-ledger/internal/domain/borrower"
	"loan-ledger/internal/domain/ledger"
	"loan-ledger/internal/domain/loan"
	"loan-ledger/internal/pkg/apperrors"
	"loan-ledger/internal/pkg/caldate"

	"github.com/shopspring/decimal"
)

// LoanDefaults fill in the rates a loan request leaves out.
type LoanDefaults struct {
	InterestRate decimal.Decimal
	PenaltyRate  decimal.Decimal
}

type LoanRequest struct {
	Principal    string `json:"principal" validate:"required,numeric"`
	Terms        string `json:"terms"`
	InterestRate string `json:"interestRate" validate:"omitempty,numeric"`
	PenaltyRate  string `json:"penaltyRate" validate:"omitempty,numeric"`
	Date         string `json:"date"`
	Notes        string `json:"notes" validate:"max=500"`
}

func (r *LoanRequest) Validate() error {
	return validateStruct(r)
}

func (r *LoanRequest) ToInput(defaults LoanDefaults) (ledger.LoanInput, error) {
	in := ledger.LoanInput{
		InterestRate: defaults.InterestRate,
		PenaltyRate:  defaults.PenaltyRate,
		Notes:        strings.TrimSpace(r.Notes),
	}

	var err error
	if in.Principal, err = decimal.NewFromString(r.Principal); err != nil {
		return in, apperrors.NewValidationError("principal", "must be a number")
	}
	if r.Terms != "" {
		if in.Terms, err = loan.ParseTerms(r.Terms); err != nil {
			return in, err
		}
	}
	if r.InterestRate != "" {
		in.InterestRate = decimal.RequireFromString(r.InterestRate)
	}
	if r.PenaltyRate != "" {
		in.PenaltyRate = decimal.RequireFromString(r.PenaltyRate)
	}
	if in.Date, err = parseOptionalDate("date", r.Date); err != nil {
		return in, err
	}
	return in, nil
}

type CreateBorrowerRequest struct {
	Name    string       `json:"name" validate:"required"`
	Mobile  string       `json:"mobile" validate:"max=32"`
	Address string       `json:"address" validate:"max=500"`
	Age     int          `json:"age" validate:"gte=0"`
	Photo   string       `json:"photo"`
	Loan    *LoanRequest `json:"loan"`
}

func (r *CreateBorrowerRequest) Validate() error {
	return validateStruct(r)
}

func (r *CreateBorrowerRequest) ToInput(defaults LoanDefaults) (ledger.NewBorrowerInput, error) {
	in := ledger.NewBorrowerInput{
		Contact: borrower.Contact{
			Name:    strings.TrimSpace(r.Name),
			Mobile:  strings.TrimSpace(r.Mobile),
			Address: strings.TrimSpace(r.Address),
			Age:     r.Age,
			Photo:   r.Photo,
		},
	}
	if r.Loan != nil {
		loanIn, err := r.Loan.ToInput(defaults)
		if err != nil {
			return in, err
		}
		in.InitialLoan = &loanIn
	}
	return in, nil
}

// UpdateBorrowerRequest only touches contact fields; loans and history are immutable here.
type UpdateBorrowerRequest struct {
	Name    *string `json:"name"`
	Mobile  *string `json:"mobile" validate:"omitempty,max=32"`
	Address *string `json:"address" validate:"omitempty,max=500"`
	Age     *int    `json:"age" validate:"omitempty,gte=0"`
	Photo   *string `json:"photo"`
}

func (r *UpdateBorrowerRequest) Validate() error {
	if err := validateStruct(r); err != nil {
		return err
	}
	if r.ToUpdate().Empty() {
		return fmt.Errorf("%w: no fields to update", apperrors.ErrInvalidArgument)
	}
	return nil
}

func (r *UpdateBorrowerRequest) ToUpdate() borrower.ProfileUpdate {
	return borrower.ProfileUpdate{
		Name:    r.Name,
		Mobile:  r.Mobile,
		Address: r.Address,
		Age:     r.Age,
		Photo:   r.Photo,
	}
}

type PaymentRequest struct {
	Amount string `json:"amount" validate:"required,numeric"`
	Date   string `json:"date"`
	Notes  string `json:"notes" validate:"max=500"`
}

func (r *PaymentRequest) Validate() error {
	return validateStruct(r)
}

func (r *PaymentRequest) ToInput() (ledger.PaymentInput, error) {
	amount, err := decimal.NewFromString(r.Amount)
	if err != nil {
		return ledger.PaymentInput{}, apperrors.NewValidationError("amount", "must be a number")
	}
	date, err := parseOptionalDate("date", r.Date)
	if err != nil {
		return ledger.PaymentInput{}, err
	}
	return ledger.PaymentInput{Amount: amount, Date: date, Notes: strings.TrimSpace(r.Notes)}, nil
}

func parseOptionalDate(field, s string) (time.Time, error) {
	if strings.TrimSpace(s) == "" {
		return time.Time{}, nil
	}
	t, err := caldate.Parse(s)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError(field, err.Error())
	}
	return t, nil
}
