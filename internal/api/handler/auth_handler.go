package handler

import (
	"crypto/subtle"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"loan-ledger/internal/api/handler/dto"
	"loan-ledger/internal/config"
	"loan-ledger/internal/pkg/apperrors"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

type AuthHandler struct {
	cfg    config.AuthConfig
	now    func() time.Time
	logger *slog.Logger
}

func NewAuthHandler(cfg config.AuthConfig, l *slog.Logger) *AuthHandler {
	return &AuthHandler{
		cfg:    cfg,
		now:    time.Now,
		logger: l.With("component", "AuthHandler"),
	}
}

// GenerateBearerToken exchanges the operator credentials for a JWT.
//
// @Summary Generate a JWT bearer token
// @Description Checks the operator username and password and returns a signed HS256 token.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body dto.TokenRequest true "Operator credentials"
// @Success 200 {object} dto.TokenResponse "Token successfully generated"
// @Failure 400 {object} dto.ErrorResponse "Invalid request parameters"
// @Failure 401 {object} dto.ErrorResponse "Invalid credentials"
// @Failure 500 {object} dto.ErrorResponse "Internal server error"
// @Router /auth/token [post]
func (h *AuthHandler) GenerateBearerToken(w http.ResponseWriter, r *http.Request) {
	var req dto.TokenRequest
	if err := decodeJSON(r, &req); err != nil {
		h.logger.Warn("failed to decode request body", "error", err)
		respondError(w, fmt.Errorf("%w: %v", apperrors.ErrInvalidArgument, err))
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, err)
		return
	}

	if !h.checkCredentials(req.Username, req.Password) {
		h.logger.Warn("Rejected token request", "username", req.Username)
		respondError(w, apperrors.ErrUnauthorized)
		return
	}

	ttl := h.cfg.TokenTTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	expiresAt := h.now().Add(ttl)
	claims := jwt.RegisteredClaims{
		Subject:   req.Username,
		IssuedAt:  jwt.NewNumericDate(h.now()),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	tokenString, err := token.SignedString([]byte(h.cfg.JWTSecret))
	if err != nil {
		h.logger.Error("Failed to sign token", "error", err)
		respondError(w, apperrors.ErrInternalServer)
		return
	}

	h.logger.Info("Issued bearer token", "username", req.Username)
	respondJSON(w, http.StatusOK, dto.TokenResponse{
		Token:     "Bearer " + tokenString,
		ExpiresAt: expiresAt.Unix(),
	})
}

func (h *AuthHandler) checkCredentials(username, password string) bool {
	if h.cfg.PasswordHash == "" || h.cfg.JWTSecret == "" {
		return false
	}
	if subtle.ConstantTimeCompare([]byte(username), []byte(h.cfg.Username)) != 1 {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(h.cfg.PasswordHash), []byte(password)) == nil
}
