package journal

import (
	"fmt"
	"strings"
	"time"

	"loan-ledger/internal/domain/borrower"
	"loan-ledger/internal/pkg/apperrors"

	"github.com/shopspring/decimal"
)

type Book string

const (
	BookCashReceipts      Book = "CRJ"
	BookCashDisbursements Book = "CDJ"
	BookGeneralJournal    Book = "GJ"
	BookGeneralLedger     Book = "GL"
	BookAll               Book = "ALL"
)

func ParseBook(s string) (Book, error) {
	switch b := Book(strings.ToUpper(strings.TrimSpace(s))); b {
	case BookCashReceipts, BookCashDisbursements, BookGeneralJournal, BookGeneralLedger, BookAll:
		return b, nil
	case "":
		return BookAll, nil
	}
	return "", apperrors.NewValidationError("book", fmt.Sprintf("unknown book %q (use CRJ, CDJ, GJ, GL or ALL)", s))
}

// CashRow is a line of the cash receipts or cash disbursements journal.
// Debit and Credit are always equal.
type CashRow struct {
	Date      time.Time       `json:"date"`
	Name      string          `json:"name"`
	Reference string          `json:"reference"`
	Debit     decimal.Decimal `json:"debit"`
	Credit    decimal.Decimal `json:"credit"`
}

// JournalRow is one side of a general journal entry. Exactly one of Debit
// and Credit is non-zero.
type JournalRow struct {
	TransactionID string          `json:"transactionId"`
	Date          time.Time       `json:"date"`
	Account       Account         `json:"account"`
	Name          string          `json:"name"`
	Reference     string          `json:"reference"`
	Debit         decimal.Decimal `json:"debit"`
	Credit        decimal.Decimal `json:"credit"`
}

type LedgerAccount struct {
	Account       Account         `json:"account"`
	DebitBalance  decimal.Decimal `json:"debitBalance"`
	CreditBalance decimal.Decimal `json:"creditBalance"`
	Net           decimal.Decimal `json:"net"`
}

type Ledger struct {
	Cash               LedgerAccount `json:"cash"`
	AccountsReceivable LedgerAccount `json:"accountsReceivable"`
}

func CashReceipts(txs []Transaction) []CashRow {
	return cashRows(txs, Receipt)
}

func CashDisbursements(txs []Transaction) []CashRow {
	return cashRows(txs, Disbursement)
}

func cashRows(txs []Transaction, kind Kind) []CashRow {
	rows := []CashRow{}
	for _, t := range txs {
		if t.Kind != kind {
			continue
		}
		rows = append(rows, CashRow{
			Date:      t.Date,
			Name:      t.Name,
			Reference: t.Reference,
			Debit:     t.Amount,
			Credit:    t.Amount,
		})
	}
	return rows
}

// GeneralJournal emits a debit row followed by its credit row for every transaction.
func GeneralJournal(txs []Transaction) []JournalRow {
	rows := make([]JournalRow, 0, 2*len(txs))
	for _, t := range txs {
		rows = append(rows,
			JournalRow{
				TransactionID: t.ID,
				Date:          t.Date,
				Account:       t.DebitAccount(),
				Name:          t.Name,
				Reference:     t.Reference,
				Debit:         t.Amount,
				Credit:        decimal.Zero,
			},
			JournalRow{
				TransactionID: t.ID,
				Date:          t.Date,
				Account:       t.CreditAccount(),
				Name:          t.Name,
				Reference:     t.Reference,
				Debit:         decimal.Zero,
				Credit:        t.Amount,
			},
		)
	}
	return rows
}

// GeneralLedger totals Cash and Accounts Receivable. Every transaction moves
// the same amount between the two, so the nets always sum to zero.
func GeneralLedger(txs []Transaction) Ledger {
	cash := decimal.Zero
	for _, t := range txs {
		if t.Kind == Receipt {
			cash = cash.Add(t.Amount)
		} else {
			cash = cash.Sub(t.Amount)
		}
	}
	return Ledger{
		Cash:               ledgerAccount(Cash, cash),
		AccountsReceivable: ledgerAccount(AccountsReceivable, cash.Neg()),
	}
}

func ledgerAccount(a Account, net decimal.Decimal) LedgerAccount {
	la := LedgerAccount{Account: a, DebitBalance: decimal.Zero, CreditBalance: decimal.Zero, Net: net}
	if net.IsPositive() {
		la.DebitBalance = net
	} else if net.IsNegative() {
		la.CreditBalance = net.Abs()
	}
	return la
}

func (l Ledger) Accounts() []LedgerAccount {
	return []LedgerAccount{l.Cash, l.AccountsReceivable}
}

// Books holds every projection over one filtered transaction set.
type Books struct {
	Range             DateRange     `json:"-"`
	Transactions      []Transaction `json:"transactions"`
	CashReceipts      []CashRow     `json:"cashReceipts"`
	CashDisbursements []CashRow     `json:"cashDisbursements"`
	GeneralJournal    []JournalRow  `json:"generalJournal"`
	GeneralLedger     Ledger        `json:"generalLedger"`
}

// Project flattens the borrowers, applies the date range and builds every book.
func Project(borrowers []*borrower.Borrower, r DateRange) Books {
	txs := r.Filter(Flatten(borrowers))
	return Books{
		Range:             r,
		Transactions:      txs,
		CashReceipts:      CashReceipts(txs),
		CashDisbursements: CashDisbursements(txs),
		GeneralJournal:    GeneralJournal(txs),
		GeneralLedger:     GeneralLedger(txs),
	}
}
