package http

import (
	"context"
	"net/http"
	"time"

	"github.com/fjod/go_cart/storefront/internal/domain"
	"github.com/fjod/go_cart/storefront/internal/session"
	"go.uber.org/zap"
)

type SessionHandler struct {
	sessions *session.Manager
	timeout  time.Duration
	logger   *zap.Logger
}

func NewSessionHandler(sessions *session.Manager, timeout time.Duration, log *zap.Logger) *SessionHandler {
	return &SessionHandler{
		sessions: sessions,
		timeout:  timeout,
		logger:   log,
	}
}

type SessionResponseDTO struct {
	SessionID string          `json:"session_id"`
	User      *domain.User    `json:"user,omitempty"`
	Cart      CartResponseDTO `json:"cart"`
}

// POST /api/v1/session/login
func (h *SessionHandler) Login(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := sessionFromContext(r.Context())
	if s == nil {
		respondError(w, http.StatusBadRequest, "invalid_session", "missing session")
		return
	}

	var user domain.User
	if !decodeAndValidate(w, r, &user) {
		return
	}

	s, err := h.sessions.Login(ctx, s.ID, &user)
	if err != nil {
		respondDomainError(w, h.logger, err)
		return
	}

	respondJSON(w, http.StatusOK, SessionResponseDTO{
		SessionID: s.ID,
		User:      s.User(),
		Cart:      newCartResponse(s.Cart.Snapshot()),
	})
}

// POST /api/v1/session/logout
func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), h.timeout)
	defer cancel()

	s := sessionFromContext(r.Context())
	if s == nil {
		respondError(w, http.StatusBadRequest, "invalid_session", "missing session")
		return
	}

	if err := h.sessions.Logout(ctx, s.ID); err != nil {
		respondDomainError(w, h.logger, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GET /api/v1/session
func (h *SessionHandler) Current(w http.ResponseWriter, r *http.Request) {
	s := sessionFromContext(r.Context())
	if s == nil {
		respondError(w, http.StatusBadRequest, "invalid_session", "missing session")
		return
	}
	respondJSON(w, http.StatusOK, SessionResponseDTO{
		SessionID: s.ID,
		User:      s.User(),
		Cart:      newCartResponse(s.Cart.Snapshot()),
	})
}
