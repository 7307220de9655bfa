package handler

import (
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"loan-ledger/internal/domain/ledger"
	"loan-ledger/internal/pkg/apperrors"
	"loan-ledger/internal/pkg/caldate"
)

type BackupHandler struct {
	service  ledger.Service
	maxBytes int64
	logger   *slog.Logger
}

// NewBackupHandler limits restore uploads to maxBytes; zero means 32 MiB.
func NewBackupHandler(s ledger.Service, maxBytes int64, l *slog.Logger) *BackupHandler {
	if s == nil {
		panic("ledger service cannot be nil")
	}
	if maxBytes <= 0 {
		maxBytes = 32 << 20
	}
	return &BackupHandler{
		service:  s,
		maxBytes: maxBytes,
		logger:   l.With("component", "BackupHandler"),
	}
}

// Backup handles GET /backup
// @Summary Download a backup
// @Description The full ledger as a versioned JSON snapshot.
// @Tags Backup
// @Produce json
// @Success 200 {object} map[string]interface{} "Snapshot document"
// @Router /backup [get]
// @Security BearerAuth
func (h *BackupHandler) Backup(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.ExportSnapshot(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}
	filename := fmt.Sprintf("loan-ledger-backup-%s.json", caldate.Format(h.service.Now()))
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

// Restore handles POST /restore
// @Summary Restore from a backup
// @Description Replaces the whole ledger. Accepts the current snapshot format and the legacy array format. Nothing changes if the document is invalid.
// @Tags Backup
// @Accept json
// @Produce json
// @Param request body object true "Snapshot document"
// @Success 200 {object} dto.Envelope
// @Failure 400 {object} dto.ErrorResponse "Malformed snapshot"
// @Router /restore [post]
// @Security BearerAuth
func (h *BackupHandler) Restore(w http.ResponseWriter, r *http.Request) {
	defer r.Body.Close()
	data, err := io.ReadAll(io.LimitReader(r.Body, h.maxBytes+1))
	if err != nil {
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if int64(len(data)) > h.maxBytes {
		respondError(w, fmt.Errorf("%w: backup larger than %d bytes", apperrors.ErrInvalidArgument, h.maxBytes))
		return
	}

	result, err := h.service.ImportSnapshot(r.Context(), data)
	if result != nil {
		h.logger.InfoContext(r.Context(), "Ledger restored from backup", slog.Int("borrowers", result.Borrowers))
	}
	respondResult(w, h.logger, http.StatusOK, result, err)
}
