package handler

import (
	"net/http"

	"github.com/justone-api/internal/application/session"
	"github.com/justone-api/internal/domain"
	"github.com/justone-api/internal/transport/http/middleware"
)

// SessionHandler handles session endpoints.
type SessionHandler struct {
	svc session.Service
}

func NewSessionHandler(svc session.Service) *SessionHandler {
	return &SessionHandler{svc: svc}
}

// TokensEnvelope wraps a refreshed token pair.
type TokensEnvelope struct {
	Success bool                  `json:"success"`
	Session *domain.SessionTokens `json:"session"`
}

// MeEnvelope wraps the caller's resolved account state.
type MeEnvelope struct {
	Success bool `json:"success"`
	*session.Me
}

var errUnauthenticated = domain.NewError(domain.ErrUnauthorized, domain.CodeUnauthorized, "Unauthorized")

func (h *SessionHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	var req struct {
		RefreshToken string `json:"refresh_token"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	if req.RefreshToken == "" {
		writeError(w, r, domain.NewError(domain.ErrBadRequest, domain.CodeInvalidRequest, "refresh_token required"))
		return
	}
	tokens, err := h.svc.Refresh(r.Context(), req.RefreshToken)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, TokensEnvelope{Success: true, Session: tokens})
}

func (h *SessionHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, errUnauthenticated)
		return
	}
	me, err := h.svc.Me(r.Context(), claims.UserID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MeEnvelope{Success: true, Me: me})
}

func (h *SessionHandler) Logout(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, errUnauthenticated)
		return
	}
	if err := h.svc.Logout(r.Context(), claims.SessionID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "logged out"})
}

func (h *SessionHandler) LogoutAll(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, errUnauthenticated)
		return
	}
	if err := h.svc.LogoutAll(r.Context(), claims.UserID); err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "logged out everywhere"})
}
