package borrower

import (
	"strings"
	"time"

	"loan-ledger/internal/domain/loan"
	"loan-ledger/internal/pkg/apperrors"
)

// Borrower owns its loans exclusively; deleting it deletes them.
type Borrower struct {
	ID        string       `json:"id"`
	Name      string       `json:"name"`
	Mobile    string       `json:"mobile,omitempty"`
	Address   string       `json:"address,omitempty"`
	Age       int          `json:"age,omitempty"`
	Photo     string       `json:"photo,omitempty"`
	Loans     []*loan.Loan `json:"loans"`
	CreatedAt time.Time    `json:"createdAt"`
	UpdatedAt time.Time    `json:"updatedAt"`
}

// Contact holds the display fields a borrower is created with.
type Contact struct {
	Name    string
	Mobile  string
	Address string
	Age     int
	Photo   string
}

func (c Contact) Validate() error {
	if strings.TrimSpace(c.Name) == "" {
		return apperrors.NewValidationError("name", "is required")
	}
	if c.Age < 0 {
		return apperrors.NewValidationError("age", "must not be negative")
	}
	return nil
}

// ProfileUpdate carries optional contact changes; nil fields are left untouched.
type ProfileUpdate struct {
	Name    *string
	Mobile  *string
	Address *string
	Age     *int
	Photo   *string
}

func (u ProfileUpdate) Validate() error {
	if u.Name != nil && strings.TrimSpace(*u.Name) == "" {
		return apperrors.NewValidationError("name", "must not be blank")
	}
	if u.Age != nil && *u.Age < 0 {
		return apperrors.NewValidationError("age", "must not be negative")
	}
	return nil
}

func (u ProfileUpdate) Empty() bool {
	return u.Name == nil && u.Mobile == nil && u.Address == nil && u.Age == nil && u.Photo == nil
}

func New(id string, c Contact, now time.Time) (*Borrower, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &Borrower{
		ID:        id,
		Name:      strings.TrimSpace(c.Name),
		Mobile:    strings.TrimSpace(c.Mobile),
		Address:   strings.TrimSpace(c.Address),
		Age:       c.Age,
		Photo:     c.Photo,
		Loans:     []*loan.Loan{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Apply changes contact fields only. Loans are never touched.
func (b *Borrower) Apply(u ProfileUpdate, now time.Time) error {
	if err := u.Validate(); err != nil {
		return err
	}
	if u.Name != nil {
		b.Name = strings.TrimSpace(*u.Name)
	}
	if u.Mobile != nil {
		b.Mobile = strings.TrimSpace(*u.Mobile)
	}
	if u.Address != nil {
		b.Address = strings.TrimSpace(*u.Address)
	}
	if u.Age != nil {
		b.Age = *u.Age
	}
	if u.Photo != nil {
		b.Photo = *u.Photo
	}
	b.UpdatedAt = now
	return nil
}

func (b *Borrower) FindLoan(id string) (*loan.Loan, bool) {
	for _, l := range b.Loans {
		if l.ID == id {
			return l, true
		}
	}
	return nil, false
}

func (b *Borrower) Clone() *Borrower {
	c := *b
	c.Loans = make([]*loan.Loan, 0, len(b.Loans))
	for _, l := range b.Loans {
		c.Loans = append(c.Loans, l.Clone())
	}
	return &c
}
