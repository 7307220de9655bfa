package journal

import (
	"encoding/csv"
	"fmt"
	"io"

	"loan-ledger/internal/pkg/caldate"

	"github.com/shopspring/decimal"
)

func amount(d decimal.Decimal) string {
	return d.StringFixed(2)
}

// WriteCSV writes one book as CSV. Fields are quoted as needed, so names and
// notes containing commas survive a round trip through a spreadsheet.
func WriteCSV(w io.Writer, book Book, txs []Transaction) error {
	cw := csv.NewWriter(w)

	var records [][]string
	switch book {
	case BookCashReceipts, BookCashDisbursements:
		header := []string{"Date", "Payer", "Reference", "Debit(Cash)", "Credit(AR)"}
		rows := CashReceipts(txs)
		if book == BookCashDisbursements {
			header = []string{"Date", "Payee", "Reference", "Debit(AR)", "Credit(Cash)"}
			rows = CashDisbursements(txs)
		}
		records = append(records, header)
		for _, r := range rows {
			records = append(records, []string{caldate.Format(r.Date), r.Name, r.Reference, amount(r.Debit), amount(r.Credit)})
		}
	case BookGeneralJournal:
		records = append(records, []string{"Date", "Account", "Name", "Reference", "Debit", "Credit"})
		for _, r := range GeneralJournal(txs) {
			records = append(records, []string{
				caldate.Format(r.Date), string(r.Account), r.Name, r.Reference, amount(r.Debit), amount(r.Credit),
			})
		}
	case BookGeneralLedger:
		records = append(records, []string{"Account", "Debit Balance", "Credit Balance", "Net Balance"})
		for _, a := range GeneralLedger(txs).Accounts() {
			records = append(records, []string{string(a.Account), amount(a.DebitBalance), amount(a.CreditBalance), amount(a.Net)})
		}
	case BookAll:
		records = append(records, []string{"Date", "Name", "Reference", "Type", "Amount"})
		for _, t := range txs {
			records = append(records, []string{caldate.Format(t.Date), t.Name, t.Reference, string(t.Kind), amount(t.Amount)})
		}
	default:
		return fmt.Errorf("journal: unsupported book %q", book)
	}

	if err := cw.WriteAll(records); err != nil {
		return fmt.Errorf("journal: write %s csv: %w", book, err)
	}
	return nil
}
