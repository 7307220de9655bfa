package handler

import (
	"fmt"
	"log/slog"
	"net/http"

	"loan-ledger/internal/api/handler/dto"
	"loan-ledger/internal/domain/borrower"
	"loan-ledger/internal/domain/ledger"
	"loan-ledger/internal/pkg/apperrors"
)

type BorrowerHandler struct {
	service  ledger.Service
	defaults dto.LoanDefaults
	topN     int
	logger   *slog.Logger
}

func NewBorrowerHandler(s ledger.Service, defaults dto.LoanDefaults, topN int, l *slog.Logger) *BorrowerHandler {
	if s == nil {
		panic("ledger service cannot be nil")
	}
	if l == nil {
		panic("logger cannot be nil")
	}
	return &BorrowerHandler{
		service:  s,
		defaults: defaults,
		topN:     topN,
		logger:   l.With("component", "BorrowerHandler"),
	}
}

// CreateBorrower handles POST /borrowers
// @Summary Add a borrower
// @Description Registers a borrower, optionally disbursing an initial loan in the same step.
// @Tags Borrowers
// @Accept json
// @Produce json
// @Param request body dto.CreateBorrowerRequest true "Borrower and optional initial loan"
// @Success 201 {object} dto.Envelope "Borrower created; warning is set when the change could not be saved"
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /borrowers [post]
// @Security BearerAuth
func (h *BorrowerHandler) CreateBorrower(w http.ResponseWriter, r *http.Request) {
	var req dto.CreateBorrowerRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.WarnContext(r.Context(), "Failed to decode request body", slog.Any("error", err))
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, err)
		return
	}
	in, err := req.ToInput(h.defaults)
	if err != nil {
		respondError(w, err)
		return
	}

	summary, err := h.service.AddBorrower(r.Context(), in)
	respondResult(w, h.logger, http.StatusCreated, summary, err)
}

// ListBorrowers handles GET /borrowers
// @Summary Ranked worklist
// @Description Borrowers ordered by urgency, then by the soonest due date. Defaults to the configured top N.
// @Tags Borrowers
// @Produce json
// @Param q query string false "Case-insensitive name search"
// @Param status query string false "all, due, overdue, paid or active"
// @Param limit query string false "Maximum items, or 'all'"
// @Param asOf query string false "Evaluation date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} borrower.Worklist
// @Failure 400 {object} dto.ErrorResponse "Invalid query parameters"
// @Router /borrowers [get]
// @Security BearerAuth
func (h *BorrowerHandler) ListBorrowers(w http.ResponseWriter, r *http.Request) {
	asOf, err := asOfParam(r, h.service.Now())
	if err != nil {
		respondError(w, err)
		return
	}
	status, err := borrower.ParseStatus(r.URL.Query().Get("status"))
	if err != nil {
		respondError(w, err)
		return
	}
	limit, err := limitParam(r, h.topN)
	if err != nil {
		respondError(w, err)
		return
	}

	worklist := h.service.Worklist(r.Context(), asOf, borrower.Query{
		Search: r.URL.Query().Get("q"),
		Status: status,
		Limit:  limit,
	})
	respondJSON(w, http.StatusOK, worklist)
}

// GetBorrower handles GET /borrowers/{borrowerID}
// @Summary Borrower detail
// @Description Contact fields, balance, per-loan accrual and transaction history, newest first.
// @Tags Borrowers
// @Produce json
// @Param borrowerID path string true "Borrower ID"
// @Param asOf query string false "Evaluation date (YYYY-MM-DD), defaults to today"
// @Success 200 {object} ledger.Detail
// @Failure 404 {object} dto.ErrorResponse "Borrower not found"
// @Router /borrowers/{borrowerID} [get]
// @Security BearerAuth
func (h *BorrowerHandler) GetBorrower(w http.ResponseWriter, r *http.Request) {
	id, err := urlParam(r, "borrowerID")
	if err != nil {
		respondError(w, err)
		return
	}
	asOf, err := asOfParam(r, h.service.Now())
	if err != nil {
		respondError(w, err)
		return
	}

	detail, err := h.service.Borrower(r.Context(), id, asOf)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, detail)
}

// UpdateBorrower handles PATCH /borrowers/{borrowerID}
// @Summary Edit borrower profile
// @Description Changes contact fields only. Loans and payments cannot be edited.
// @Tags Borrowers
// @Accept json
// @Produce json
// @Param borrowerID path string true "Borrower ID"
// @Param request body dto.UpdateBorrowerRequest true "Fields to change"
// @Success 200 {object} dto.Envelope
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 404 {object} dto.ErrorResponse "Borrower not found"
// @Router /borrowers/{borrowerID} [patch]
// @Security BearerAuth
func (h *BorrowerHandler) UpdateBorrower(w http.ResponseWriter, r *http.Request) {
	id, err := urlParam(r, "borrowerID")
	if err != nil {
		respondError(w, err)
		return
	}
	var req dto.UpdateBorrowerRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, err)
		return
	}

	summary, err := h.service.EditBorrowerProfile(r.Context(), id, req.ToUpdate())
	respondResult(w, h.logger, http.StatusOK, summary, err)
}

// DeleteBorrower handles DELETE /borrowers/{borrowerID}
// @Summary Delete borrower
// @Description Removes the borrower together with every loan and payment.
// @Tags Borrowers
// @Produce json
// @Param borrowerID path string true "Borrower ID"
// @Success 200 {object} dto.Envelope
// @Failure 404 {object} dto.ErrorResponse "Borrower not found"
// @Router /borrowers/{borrowerID} [delete]
// @Security BearerAuth
func (h *BorrowerHandler) DeleteBorrower(w http.ResponseWriter, r *http.Request) {
	id, err := urlParam(r, "borrowerID")
	if err != nil {
		respondError(w, err)
		return
	}

	err = h.service.DeleteBorrower(r.Context(), id)
	if err != nil && !apperrors.IsPersistence(err) {
		respondError(w, err)
		return
	}
	respondMutation(w, h.logger, http.StatusOK, map[string]string{"id": id}, err)
}

// AddLoan handles POST /borrowers/{borrowerID}/loans
// @Summary Disburse a loan
// @Description Adds a new loan to an existing borrower.
// @Tags Loans
// @Accept json
// @Produce json
// @Param borrowerID path string true "Borrower ID"
// @Param request body dto.LoanRequest true "Loan terms"
// @Success 201 {object} dto.Envelope
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 404 {object} dto.ErrorResponse "Borrower not found"
// @Router /borrowers/{borrowerID}/loans [post]
// @Security BearerAuth
func (h *BorrowerHandler) AddLoan(w http.ResponseWriter, r *http.Request) {
	id, err := urlParam(r, "borrowerID")
	if err != nil {
		respondError(w, err)
		return
	}
	var req dto.LoanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, err)
		return
	}
	in, err := req.ToInput(h.defaults)
	if err != nil {
		respondError(w, err)
		return
	}

	result, err := h.service.AddLoan(r.Context(), id, in)
	respondResult(w, h.logger, http.StatusCreated, result, err)
}

// RecordPayment handles POST /borrowers/{borrowerID}/loans/{loanID}/payments
// @Summary Record a payment
// @Description Applies a payment to a loan and returns a receipt. Overpayment is accepted.
// @Tags Loans
// @Accept json
// @Produce json
// @Param borrowerID path string true "Borrower ID"
// @Param loanID path string true "Loan ID"
// @Param request body dto.PaymentRequest true "Payment"
// @Success 201 {object} dto.Envelope
// @Failure 400 {object} dto.ErrorResponse "Invalid request payload"
// @Failure 404 {object} dto.ErrorResponse "Borrower or loan not found"
// @Router /borrowers/{borrowerID}/loans/{loanID}/payments [post]
// @Security BearerAuth
func (h *BorrowerHandler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	borrowerID, err := urlParam(r, "borrowerID")
	if err != nil {
		respondError(w, err)
		return
	}
	loanID, err := urlParam(r, "loanID")
	if err != nil {
		respondError(w, err)
		return
	}
	var req dto.PaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, err)
		return
	}
	in, err := req.ToInput()
	if err != nil {
		respondError(w, err)
		return
	}

	receipt, err := h.service.RecordPayment(r.Context(), borrowerID, loanID, in)
	respondResult(w, h.logger, http.StatusCreated, receipt, err)
}
