package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"loan-ledger/internal/api/handler/dto"
	"loan-ledger/internal/domain/ledger"
	"loan-ledger/internal/domain/loan"
	"loan-ledger/internal/infrastructure/storage"
	"loan-ledger/internal/pkg/apperrors"

	"github.com/go-chi/chi/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var logger = slog.New(slog.NewTextHandler(io.Discard, nil))

type testEnv struct {
	router http.Handler
	svc    ledger.Service
	now    time.Time
}

func newTestEnv(t *testing.T, store ledger.SnapshotStore) *testEnv {
	t.Helper()
	env := &testEnv{now: time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)}
	n := 0
	env.svc = ledger.NewLedgerService(store, logger,
		ledger.WithClock(func() time.Time { return env.now }),
		ledger.WithIDGenerator(func() string { n++; return fmt.Sprintf("id-%d", n) }),
	)

	borrowers := NewBorrowerHandler(env.svc, dto.LoanDefaults{InterestRate: decimal.NewFromInt(5), PenaltyRate: decimal.NewFromInt(2)}, 4, logger)
	reports := NewReportHandler(env.svc, logger)
	tools := NewToolHandler(loan.Monthly, env.svc.Now, logger)
	backups := NewBackupHandler(env.svc, 0, logger)

	r := chi.NewRouter()
	r.Post("/borrowers", borrowers.CreateBorrower)
	r.Get("/borrowers", borrowers.ListBorrowers)
	r.Get("/borrowers/{borrowerID}", borrowers.GetBorrower)
	r.Patch("/borrowers/{borrowerID}", borrowers.UpdateBorrower)
	r.Delete("/borrowers/{borrowerID}", borrowers.DeleteBorrower)
	r.Post("/borrowers/{borrowerID}/loans", borrowers.AddLoan)
	r.Post("/borrowers/{borrowerID}/loans/{loanID}/payments", borrowers.RecordPayment)
	r.Get("/reports/dashboard", reports.Dashboard)
	r.Get("/reports/books/{book}", reports.Book)
	r.Get("/reports/export.csv", reports.ExportCSV)
	r.Get("/reports/collection-list", reports.CollectionList)
	r.Post("/tools/loan-quote", tools.LoanQuote)
	r.Post("/tools/date-add", tools.DateAdd)
	r.Get("/backup", backups.Backup)
	r.Post("/restore", backups.Restore)
	env.router = r
	return env
}

func (e *testEnv) do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

type summaryBody struct {
	Borrower struct {
		ID    string `json:"id"`
		Name  string `json:"name"`
		Loans []struct {
			ID        string          `json:"id"`
			Principal decimal.Decimal `json:"principal"`
			Terms     string          `json:"terms"`
		} `json:"loans"`
	} `json:"borrower"`
	Balance decimal.Decimal `json:"balance"`
	Urgency string          `json:"urgency"`
}

type envelope[T any] struct {
	Data    T      `json:"data"`
	Warning string `json:"warning"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func createAna(t *testing.T, env *testEnv) {
	t.Helper()
	rec := env.do(t, http.MethodPost, "/borrowers",
		`{"name":"Ana Cruz","mobile":"0917","loan":{"principal":"1000","terms":"Monthly","date":"2024-01-01"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
}

func TestCreateBorrower(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryStore())

	rec := env.do(t, http.MethodPost, "/borrowers",
		`{"name":"Ana Cruz","mobile":"0917","loan":{"principal":"1000","terms":"Monthly","date":"2024-01-01"}}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode[envelope[summaryBody]](t, rec)
	assert.Empty(t, body.Warning)
	assert.Equal(t, "id-1", body.Data.Borrower.ID)
	require.Len(t, body.Data.Borrower.Loans, 1)
	assert.Equal(t, "Monthly", body.Data.Borrower.Loans[0].Terms)
	assert.Equal(t, "1000.00", body.Data.Balance.StringFixed(2))
	assert.Equal(t, "Active", body.Data.Urgency)
}

func TestCreateBorrowerRejectsBadInput(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryStore())

	tests := []struct {
		name  string
		body  string
		field string
	}{
		{"missing name", `{"mobile":"0917"}`, "name"},
		{"zero principal", `{"name":"Ana","loan":{"principal":"0"}}`, "principal"},
		{"unknown terms", `{"name":"Ana","loan":{"principal":"100","terms":"Yearly"}}`, "terms"},
		{"unknown field", `{"name":"Ana","nickname":"A"}`, ""},
		{"not json", `name=Ana`, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := env.do(t, http.MethodPost, "/borrowers", tt.body)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
			errBody := decode[dto.ErrorResponse](t, rec)
			assert.Equal(t, tt.field, errBody.Error.Field)
		})
	}

	assert.Empty(t, env.svc.Borrowers(context.Background()))
}

func TestPaymentAndDetail(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryStore())
	createAna(t, env)

	env.now = time.Date(2024, 1, 31, 15, 0, 0, 0, time.UTC)
	rec := env.do(t, http.MethodPost, "/borrowers/id-1/loans/id-2/payments", `{"amount":"1050"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	receipt := decode[envelope[ledger.Receipt]](t, rec)
	assert.Equal(t, "Ana Cruz", receipt.Data.BorrowerName)
	assert.True(t, receipt.Data.LoanRemaining.IsZero())
	assert.True(t, receipt.Data.TotalBalance.IsZero())

	rec = env.do(t, http.MethodGet, "/borrowers/id-1?asOf=2024-02-10", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var detail struct {
		summaryBody
		History []struct {
			Kind string `json:"kind"`
		} `json:"history"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &detail))
	assert.Equal(t, "216.67", detail.Balance.StringFixed(2))
	assert.Equal(t, "Overdue", detail.Urgency)
	assert.Len(t, detail.History, 2)
}

func TestPaymentErrors(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryStore())
	createAna(t, env)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/borrowers/id-1/loans/id-2/payments", `{"amount":"-5"}`).Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/borrowers/id-1/loans/id-2/payments", `{"amount":"abc"}`).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/borrowers/nobody/loans/id-2/payments", `{"amount":"5"}`).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPost, "/borrowers/id-1/loans/nope/payments", `{"amount":"5"}`).Code)

	rec := env.do(t, http.MethodPost, "/borrowers/id-1/loans/id-2/payments", `{"amount":"5","date":"2024-01-02"}`)
	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "date", decode[dto.ErrorResponse](t, rec).Error.Field)
}

func TestCapacityFailureIsAWarning(t *testing.T) {
	env := newTestEnv(t, storage.WithLimit(storage.NewMemoryStore(), 16))

	rec := env.do(t, http.MethodPost, "/borrowers", `{"name":"Ana Cruz"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	body := decode[envelope[summaryBody]](t, rec)
	assert.Equal(t, warningStorageFull, body.Warning)
	assert.Equal(t, "Ana Cruz", body.Data.Borrower.Name)
	assert.Len(t, env.svc.Borrowers(context.Background()), 1)
}

func TestUpdateAndDeleteBorrower(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryStore())
	createAna(t, env)

	rec := env.do(t, http.MethodPatch, "/borrowers/id-1", `{"mobile":"0999","age":34}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	all := env.svc.Borrowers(context.Background())
	require.Len(t, all, 1)
	assert.Equal(t, "0999", all[0].Mobile)
	assert.Equal(t, 34, all[0].Age)
	assert.Equal(t, "Ana Cruz", all[0].Name)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPatch, "/borrowers/id-1", `{}`).Code)
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodPatch, "/borrowers/zzz", `{"name":"X"}`).Code)

	rec = env.do(t, http.MethodDelete, "/borrowers/id-1", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Empty(t, env.svc.Borrowers(context.Background()))
	assert.Equal(t, http.StatusNotFound, env.do(t, http.MethodDelete, "/borrowers/id-1", "").Code)
}

func TestAddLoanUsesDefaults(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryStore())
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/borrowers", `{"name":"Ben"}`).Code)

	rec := env.do(t, http.MethodPost, "/borrowers/id-1/loans", `{"principal":"500"}`)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	result := decode[envelope[ledger.LoanResult]](t, rec)
	assert.True(t, result.Data.Loan.InterestRate.Equal(decimal.NewFromInt(5)))
	assert.True(t, result.Data.Loan.PenaltyRate.Equal(decimal.NewFromInt(2)))
	assert.Equal(t, loan.Monthly, result.Data.Loan.Terms)
	assert.Equal(t, time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC), result.Data.Loan.Date)
}

func TestListBorrowers(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryStore())
	for _, name := range []string{"Ana", "Ben", "Carla", "Dan", "Eve"} {
		require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/borrowers",
			fmt.Sprintf(`{"name":%q,"loan":{"principal":"100"}}`, name)).Code)
	}

	rec := env.do(t, http.MethodGet, "/borrowers", "")
	require.Equal(t, http.StatusOK, rec.Code)
	var list struct {
		Items   []summaryBody `json:"items"`
		Total   int           `json:"total"`
		HasMore bool          `json:"hasMore"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	assert.Len(t, list.Items, 4)
	assert.Equal(t, 5, list.Total)
	assert.True(t, list.HasMore)

	rec = env.do(t, http.MethodGet, "/borrowers?q=car&limit=all", "")
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &list))
	require.Len(t, list.Items, 1)
	assert.Equal(t, "Carla", list.Items[0].Borrower.Name)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/borrowers?status=late", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/borrowers?limit=-1", "").Code)
	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/borrowers?asOf=yesterday", "").Code)
}

func TestReports(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryStore())
	createAna(t, env)
	env.now = time.Date(2024, 1, 20, 9, 0, 0, 0, time.UTC)
	require.Equal(t, http.StatusCreated, env.do(t, http.MethodPost, "/borrowers/id-1/loans/id-2/payments", `{"amount":"300","notes":"cash, partial"}`).Code)

	t.Run("dashboard", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/reports/dashboard", "")
		require.Equal(t, http.StatusOK, rec.Code)
		d := decode[ledger.Dashboard](t, rec)
		assert.Equal(t, 1, d.Borrowers)
		assert.Equal(t, "-700.00", d.CashOnHand.StringFixed(2))
	})

	t.Run("general ledger", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/reports/books/gl", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Accounts Receivable")
	})

	t.Run("cash receipts in range", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/reports/books/crj?from=2024-01-15&to=2024-01-31", "")
		require.Equal(t, http.StatusOK, rec.Code)
		var rows []map[string]any
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rows))
		assert.Len(t, rows, 1)
	})

	t.Run("bad book and range", func(t *testing.T) {
		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/reports/books/xyz", "").Code)
		assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodGet, "/reports/books/gj?from=2024-02-01&to=2024-01-01", "").Code)
	})

	t.Run("csv export escapes commas", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/reports/export.csv?book=CRJ", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "text/csv; charset=utf-8", rec.Header().Get("Content-Type"))
		assert.Contains(t, rec.Header().Get("Content-Disposition"), "ledger-crj-2024-01-20.csv")
		assert.Contains(t, rec.Body.String(), `"cash, partial"`)
	})

	t.Run("collection list", func(t *testing.T) {
		rec := env.do(t, http.MethodGet, "/reports/collection-list", "")
		require.Equal(t, http.StatusOK, rec.Code)
		assert.True(t, strings.HasPrefix(rec.Body.String(), "Collection list as of 2024-01-20"))
		assert.Contains(t, rec.Body.String(), "Ana Cruz")
	})
}

func TestTools(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryStore())

	rec := env.do(t, http.MethodPost, "/tools/loan-quote", `{"principal":"2000","interestRate":"10","terms":"Weekly"}`)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	q := decode[dto.QuoteResponse](t, rec)
	assert.Equal(t, "2200.00", q.Total)
	assert.Equal(t, "2024-01-08", q.DueDate)

	rec = env.do(t, http.MethodPost, "/tools/date-add", `{"date":"2024-01-31","days":-31}`)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "2023-12-31", decode[dto.DateAddResponse](t, rec).Result)

	assert.Equal(t, http.StatusBadRequest, env.do(t, http.MethodPost, "/tools/loan-quote", `{"principal":"-1"}`).Code)
}

func TestBackupAndRestore(t *testing.T) {
	source := newTestEnv(t, storage.NewMemoryStore())
	createAna(t, source)

	rec := source.do(t, http.MethodGet, "/backup", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "loan-ledger-backup-2024-01-01.json")
	backup := rec.Body.String()

	target := newTestEnv(t, storage.NewMemoryStore())
	rec = target.do(t, http.MethodPost, "/restore", backup)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[envelope[ledger.ImportResult]](t, rec)
	assert.Equal(t, 1, result.Data.Borrowers)
	assert.Equal(t, 1, result.Data.Loans)

	rec = target.do(t, http.MethodPost, "/restore", `{"hello":"world"}`)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Len(t, target.svc.Borrowers(context.Background()), 1)
}

func TestRestoreLegacyArray(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryStore())
	legacy := `[{"id":1,"name":"Lola","phone":"0918","terms":"Weekly","balance":500,"loanDate":"2023-12-01","transactions":[]}]`

	rec := env.do(t, http.MethodPost, "/restore", legacy)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	result := decode[envelope[ledger.ImportResult]](t, rec)
	assert.Equal(t, 1, result.Data.Migrated)

	all := env.svc.Borrowers(context.Background())
	require.Len(t, all, 1)
	assert.Equal(t, "0918", all[0].Mobile)
}

func TestRestoreRejectsNegativeAmounts(t *testing.T) {
	env := newTestEnv(t, storage.NewMemoryStore())
	createAna(t, env)

	backup := `{"version":2,"borrowers":[{"id":"b1","name":"Lola","loans":[{"id":"l1","principal":"1000","terms":"Monthly",
		"date":"2024-01-10T00:00:00Z","interestRate":"-50","penaltyRate":"-2","payments":[]}]}]}`
	rec := env.do(t, http.MethodPost, "/restore", backup)

	require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
	errBody := decode[dto.ErrorResponse](t, rec)
	assert.Contains(t, errBody.Error.Message, `"l1"`)
	assert.Empty(t, errBody.Error.Field)

	all := env.svc.Borrowers(context.Background())
	require.Len(t, all, 1)
	assert.Equal(t, "Ana Cruz", all[0].Name)
}

func TestRespondMutationWithoutData(t *testing.T) {
	rec := httptest.NewRecorder()
	respondMutation(rec, logger, http.StatusCreated, nil, fmt.Errorf("wrapped: %w", bytes.ErrTooLarge))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestRespondResult(t *testing.T) {
	full := apperrors.NewCapacityError(nil, "quota exceeded")

	t.Run("nil result is an error response", func(t *testing.T) {
		rec := httptest.NewRecorder()
		var receipt *ledger.Receipt
		respondResult(rec, logger, http.StatusCreated, receipt, full)

		assert.Equal(t, http.StatusInternalServerError, rec.Code)
		assert.Equal(t, "STORAGE_FULL", decode[dto.ErrorResponse](t, rec).Error.Code)
	})

	t.Run("applied result keeps its status and carries the warning", func(t *testing.T) {
		rec := httptest.NewRecorder()
		respondResult(rec, logger, http.StatusCreated, &ledger.Receipt{BorrowerName: "Ana"}, full)

		require.Equal(t, http.StatusCreated, rec.Code)
		body := decode[envelope[ledger.Receipt]](t, rec)
		assert.Equal(t, "Ana", body.Data.BorrowerName)
		assert.Equal(t, warningStorageFull, body.Warning)
	})

	t.Run("nil result without error is an empty envelope", func(t *testing.T) {
		rec := httptest.NewRecorder()
		respondResult[ledger.ImportResult](rec, logger, http.StatusOK, nil, nil)

		require.Equal(t, http.StatusOK, rec.Code)
		assert.JSONEq(t, `{"data":null}`, rec.Body.String())
	})
}
