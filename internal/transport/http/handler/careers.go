package handler

import (
	"net/http"

	"github.com/justone-api/internal/application/career"
	"github.com/justone-api/internal/domain"
)

type CareerHandler struct {
	svc career.Service
}

func NewCareerHandler(svc career.Service) *CareerHandler {
	return &CareerHandler{svc: svc}
}

func (h *CareerHandler) Apply(w http.ResponseWriter, r *http.Request) {
	var req domain.CareerApplicationRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Apply(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}
