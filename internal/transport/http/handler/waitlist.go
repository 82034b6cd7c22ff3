package handler

import (
	"net/http"

	"github.com/justone-api/internal/application/waitlist"
)

// WaitlistHandler serves the waitlist confirmation email endpoint.
type WaitlistHandler struct {
	svc waitlist.Service
}

func NewWaitlistHandler(svc waitlist.Service) *WaitlistHandler {
	return &WaitlistHandler{svc: svc}
}

func (h *WaitlistHandler) Join(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email string `json:"email"`
	}
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Join(r.Context(), req.Email)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
