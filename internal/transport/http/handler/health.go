package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/justone-api/internal/domain"
)

// HealthHandler handles health-check endpoints.
type HealthHandler struct{}

func NewHealthHandler() *HealthHandler { return &HealthHandler{} }

func (h *HealthHandler) Ping(w http.ResponseWriter, r *http.Request) {
	action := chi.URLParam(r, "action")
	if action == "ping" {
		writeJSON(w, http.StatusOK, MessageEnvelope{Success: true, Message: "pong"})
		return
	}
	writeError(w, r, domain.NewError(domain.ErrBadRequest, domain.CodeInvalidRequest, "unknown action"))
}
