package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"loan-ledger/internal/api/handler/dto"
	"loan-ledger/internal/pkg/apperrors"
	"loan-ledger/internal/pkg/caldate"

	"github.com/go-chi/chi/v5"
)

const (
	warningStorageFull = "Storage full: the change is applied but was not saved. Export a backup and free space."
	warningNotSaved    = "The change is applied but could not be saved to storage."
)

func decodeJSON(r *http.Request, v interface{}) error {
	if r.Body == nil {
		return fmt.Errorf("no request body")
	}
	defer r.Body.Close()
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(v)
}

func respondJSON(w http.ResponseWriter, status int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		slog.Default().Error("Failed to marshal JSON response", "error", err)
		http.Error(w, `{"error":{"message":"Internal server error"}}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	w.Write(response)
}

func respondError(w http.ResponseWriter, err error) {
	status, message, field, code := http.StatusInternalServerError, "An unexpected error occurred.", "", ""
	var validationError *apperrors.ValidationError
	var appErr *apperrors.AppError

	switch {
	case errors.Is(err, apperrors.ErrNotFound):
		status, message = http.StatusNotFound, err.Error()
	case errors.Is(err, apperrors.ErrParse):
		status, message = http.StatusBadRequest, err.Error()
	case errors.As(err, &validationError):
		status, message, field = http.StatusBadRequest, validationError.Message, validationError.Field
	case errors.Is(err, apperrors.ErrInvalidArgument), errors.Is(err, apperrors.ErrValidation):
		status, message = http.StatusBadRequest, err.Error()
	case errors.Is(err, apperrors.ErrUnauthorized):
		status, message = http.StatusUnauthorized, "Unauthorized"
	case errors.As(err, &appErr):
		code, message = appErr.Code, appErr.Message
		slog.Default().Error("Request failed", "error", err)
	default:
		slog.Default().Error("Unhandled internal error", "error", err)
	}

	resp := dto.ErrorResponse{
		Error: dto.ErrorDetail{
			Code:    code,
			Message: message,
			Field:   field,
		},
	}
	respondJSON(w, status, resp)
}

// respondMutation writes the result of a state change. A persistence failure
// after a successful change is reported as a warning next to the data.
func respondMutation(w http.ResponseWriter, logger *slog.Logger, status int, data any, err error) {
	if err != nil && (data == nil || !apperrors.IsPersistence(err)) {
		respondError(w, err)
		return
	}
	env := dto.Envelope{Data: data}
	if err != nil {
		logger.Warn("Change applied but not saved", slog.Any("error", err))
		env.Warning = persistenceWarning(err)
	}
	respondJSON(w, status, env)
}

// respondResult is respondMutation for a service call that returns a pointer,
// so a nil result never reaches the envelope as a typed nil.
func respondResult[T any](w http.ResponseWriter, logger *slog.Logger, status int, v *T, err error) {
	if v == nil {
		respondMutation(w, logger, status, nil, err)
		return
	}
	respondMutation(w, logger, status, v, err)
}

func persistenceWarning(err error) string {
	if errors.Is(err, apperrors.ErrPersistenceCapacity) {
		return warningStorageFull
	}
	return warningNotSaved
}

func urlParam(r *http.Request, name string) (string, error) {
	v := strings.TrimSpace(chi.URLParam(r, name))
	if v == "" {
		return "", fmt.Errorf("%w: %s not found in URL path", apperrors.ErrInvalidArgument, name)
	}
	return v, nil
}

// asOfParam reads the evaluation date from the asOf query parameter, defaulting to now.
func asOfParam(r *http.Request, now time.Time) (time.Time, error) {
	s := r.URL.Query().Get("asOf")
	if s == "" {
		return now, nil
	}
	t, err := caldate.Parse(s)
	if err != nil {
		return time.Time{}, apperrors.NewValidationError("asOf", err.Error())
	}
	return t, nil
}

func limitParam(r *http.Request, fallback int) (int, error) {
	s := r.URL.Query().Get("limit")
	switch s {
	case "":
		return fallback, nil
	case "all":
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 {
		return 0, apperrors.NewValidationError("limit", "must be a non-negative integer or \"all\"")
	}
	return n, nil
}
