package handler

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strings"

	"loan-ledger/internal/domain/journal"
	"loan-ledger/internal/domain/ledger"
	"loan-ledger/internal/pkg/caldate"

	"github.com/go-chi/chi/v5"
)

type ReportHandler struct {
	service ledger.Service
	logger  *slog.Logger
}

func NewReportHandler(s ledger.Service, l *slog.Logger) *ReportHandler {
	if s == nil {
		panic("ledger service cannot be nil")
	}
	return &ReportHandler{
		service: s,
		logger:  l.With("component", "ReportHandler"),
	}
}

// Dashboard handles GET /reports/dashboard
// @Summary Portfolio dashboard
// @Tags Reports
// @Produce json
// @Param asOf query string false "Evaluation date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} ledger.Dashboard
// @Router /reports/dashboard [get]
// @Security BearerAuth
func (h *ReportHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	asOf, err := asOfParam(r, h.service.Now())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.service.Dashboard(r.Context(), asOf))
}

// Book handles GET /reports/books/{book}
// @Summary Accounting book
// @Description One of crj, cdj, gj, gl or all, over an inclusive date range.
// @Tags Reports
// @Produce json
// @Param book path string true "crj, cdj, gj, gl or all"
// @Param from query string false "First day (YYYY-MM-DD)"
// @Param to query string false "Last day (YYYY-MM-DD)"
// @Success 200 {object} journal.Books
// @Failure 400 {object} dto.ErrorResponse "Unknown book or bad range"
// @Router /reports/books/{book} [get]
// @Security BearerAuth
func (h *ReportHandler) Book(w http.ResponseWriter, r *http.Request) {
	book, err := journal.ParseBook(chi.URLParam(r, "book"))
	if err != nil {
		respondError(w, err)
		return
	}
	rng, err := journal.NewDateRange(r.URL.Query().Get("from"), r.URL.Query().Get("to"))
	if err != nil {
		respondError(w, err)
		return
	}

	books := h.service.Books(r.Context(), rng)
	switch book {
	case journal.BookCashReceipts:
		respondJSON(w, http.StatusOK, books.CashReceipts)
	case journal.BookCashDisbursements:
		respondJSON(w, http.StatusOK, books.CashDisbursements)
	case journal.BookGeneralJournal:
		respondJSON(w, http.StatusOK, books.GeneralJournal)
	case journal.BookGeneralLedger:
		respondJSON(w, http.StatusOK, books.GeneralLedger.Accounts())
	default:
		respondJSON(w, http.StatusOK, books)
	}
}

// ExportCSV handles GET /reports/export.csv
// @Summary Export a book as CSV
// @Tags Reports
// @Produce text/csv
// @Param book query string false "CRJ, CDJ, GJ, GL or ALL (default)"
// @Param from query string false "First day (YYYY-MM-DD)"
// @Param to query string false "Last day (YYYY-MM-DD)"
// @Success 200 {string} string "CSV document"
// @Failure 400 {object} dto.ErrorResponse "Unknown book or bad range"
// @Router /reports/export.csv [get]
// @Security BearerAuth
func (h *ReportHandler) ExportCSV(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	book, err := journal.ParseBook(q.Get("book"))
	if err != nil {
		respondError(w, err)
		return
	}
	rng, err := journal.NewDateRange(q.Get("from"), q.Get("to"))
	if err != nil {
		respondError(w, err)
		return
	}

	var buf bytes.Buffer
	if err := h.service.WriteCSV(r.Context(), &buf, book, rng); err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to write CSV export", slog.Any("error", err))
		respondError(w, err)
		return
	}

	filename := fmt.Sprintf("ledger-%s-%s.csv", strings.ToLower(string(book)), caldate.Format(h.service.Now()))
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}

// CollectionList handles GET /reports/collection-list
// @Summary Plain-text collection list
// @Tags Reports
// @Produce plain
// @Param asOf query string false "Evaluation date (YYYY-MM-DD), defaults to today"
// @Success 200 {string} string "Collection list"
// @Router /reports/collection-list [get]
// @Security BearerAuth
func (h *ReportHandler) CollectionList(w http.ResponseWriter, r *http.Request) {
	asOf, err := asOfParam(r, h.service.Now())
	if err != nil {
		respondError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(h.service.CollectionList(r.Context(), asOf)))
}
