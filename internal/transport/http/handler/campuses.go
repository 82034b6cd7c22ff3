package handler

import (
	"net/http"

	"github.com/justone-api/internal/application/campus"
	"github.com/justone-api/internal/domain"
)

type CampusHandler struct {
	svc campus.Service
}

func NewCampusHandler(svc campus.Service) *CampusHandler {
	return &CampusHandler{svc: svc}
}

// CampusListEnvelope wraps the public campus list. Admin-only campuses are left out.
type CampusListEnvelope struct {
	Success bool            `json:"success"`
	Data    []domain.Campus `json:"data"`
}

func (h *CampusHandler) List(w http.ResponseWriter, r *http.Request) {
	campuses, err := h.svc.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	public := make([]domain.Campus, 0, len(campuses))
	for _, c := range campuses {
		if !c.AdminOnly {
			public = append(public, c)
		}
	}
	writeJSON(w, http.StatusOK, CampusListEnvelope{Success: true, Data: public})
}
