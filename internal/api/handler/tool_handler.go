package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"loan-ledger/internal/api/handler/dto"
	"loan-ledger/internal/domain/loan"
	"loan-ledger/internal/pkg/apperrors"
)

// ToolHandler serves the stateless calculators.
type ToolHandler struct {
	defaultTerms loan.Terms
	now          func() time.Time
	logger       *slog.Logger
}

func NewToolHandler(defaultTerms loan.Terms, now func() time.Time, l *slog.Logger) *ToolHandler {
	if now == nil {
		now = time.Now
	}
	return &ToolHandler{
		defaultTerms: defaultTerms,
		now:          now,
		logger:       l.With("component", "ToolHandler"),
	}
}

// LoanQuote handles POST /tools/loan-quote
// @Summary Loan calculator
// @Description Flat total of principal plus principal times rate, and the first due date.
// @Tags Tools
// @Accept json
// @Produce json
// @Param request body dto.LoanQuoteRequest true "Principal, rate and terms"
// @Success 200 {object} dto.QuoteResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Router /tools/loan-quote [post]
// @Security BearerAuth
func (h *ToolHandler) LoanQuote(w http.ResponseWriter, r *http.Request) {
	var req dto.LoanQuoteRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, err)
		return
	}
	q, err := req.Quote(h.defaultTerms, h.now())
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewQuoteResponse(q))
}

// DateAdd handles POST /tools/date-add
// @Summary Date calculator
// @Description Adds a number of days (possibly negative) to a date.
// @Tags Tools
// @Accept json
// @Produce json
// @Param request body dto.DateAddRequest true "Date and days"
// @Success 200 {object} dto.DateAddResponse
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Router /tools/date-add [post]
// @Security BearerAuth
func (h *ToolHandler) DateAdd(w http.ResponseWriter, r *http.Request) {
	var req dto.DateAddRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, err)
		return
	}
	resp, err := req.Result()
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, resp)
}
