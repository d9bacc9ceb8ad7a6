package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/identity"
)

type Authenticator interface {
	Loading() bool
	Current() *domain.Identity
	SignUp(ctx context.Context, email, password string) error
	SignIn(ctx context.Context, email, password string) error
	SignOut(ctx context.Context) error
}

type AuthHandler struct {
	auth    Authenticator
	logger  *slog.Logger
	timeout time.Duration
}

func NewAuthHandler(auth Authenticator, logger *slog.Logger, timeout time.Duration) *AuthHandler {
	return &AuthHandler{
		auth:    auth,
		logger:  logger,
		timeout: timeout,
	}
}

type CredentialsDTO struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type SessionResponse struct {
	Loading  bool             `json:"loading"`
	Identity *domain.Identity `json:"identity"`
}

func (h *AuthHandler) SignUp(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, h.auth.SignUp, http.StatusCreated)
}

func (h *AuthHandler) SignIn(w http.ResponseWriter, r *http.Request) {
	h.authenticate(w, r, h.auth.SignIn, http.StatusOK)
}

func (h *AuthHandler) SignOut(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	if err := h.auth.SignOut(ctx); err != nil {
		h.respondAuthError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, http.StatusOK, SessionResponse{
		Loading:  h.auth.Loading(),
		Identity: h.auth.Current(),
	})
}

func (h *AuthHandler) authenticate(w http.ResponseWriter, r *http.Request,
	fn func(ctx context.Context, email, password string) error, status int) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	var req CredentialsDTO
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondError(w, http.StatusBadRequest, "invalid_request", "invalid JSON body")
		return
	}

	if err := fn(ctx, req.Email, req.Password); err != nil {
		h.respondAuthError(w, r, err)
		return
	}
	respondJSON(w, status, SessionResponse{Identity: h.auth.Current()})
}

func (h *AuthHandler) respondAuthError(w http.ResponseWriter, r *http.Request, err error) {
	var status int
	var code string

	switch {
	case errors.Is(err, identity.ErrInvalidCredentials):
		status, code = http.StatusUnauthorized, "invalid_credentials"
	case errors.Is(err, identity.ErrEmailInUse):
		status, code = http.StatusConflict, "email_in_use"
	case errors.Is(err, identity.ErrInvalidEmail):
		status, code = http.StatusBadRequest, "invalid_email"
	case errors.Is(err, identity.ErrWeakPassword):
		status, code = http.StatusBadRequest, "weak_password"
	default:
		h.logger.Error("authentication failed",
			slog.String("request_id", getRequestID(r.Context())), slog.Any("error", err))
		status, code = http.StatusInternalServerError, "internal_error"
	}

	respondError(w, status, code, identity.Message(err))
}
