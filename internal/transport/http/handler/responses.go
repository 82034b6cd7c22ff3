package handler

import (
	"net/http"
	"strconv"

	"github.com/justone-api/internal/application/response"
	"github.com/justone-api/internal/domain"
	"github.com/justone-api/internal/transport/http/middleware"
)

// ResponseHandler serves questionnaire submission and the admin readout.
type ResponseHandler struct {
	svc response.Service
}

func NewResponseHandler(svc response.Service) *ResponseHandler {
	return &ResponseHandler{svc: svc}
}

func (h *ResponseHandler) Submit(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		writeError(w, r, errUnauthenticated)
		return
	}
	var req domain.SubmitResponseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	res, err := h.svc.Submit(r.Context(), claims.UserID, req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// AdminList serves both the admin-key route and the admin-role route.
func (h *ResponseHandler) AdminList(w http.ResponseWriter, r *http.Request) {
	f, err := parseResponseFilter(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	page, err := h.svc.AdminList(r.Context(), f)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, page)
}

func parseResponseFilter(r *http.Request) (domain.ResponseFilter, error) {
	q := r.URL.Query()
	f := domain.ResponseFilter{
		CampusID:     q.Get("campus_id"),
		UserID:       q.Get("user_id"),
		Cursor:       q.Get("cursor"),
		IncludePhoto: q.Get("include_photo") == "true",
	}
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			return f, domain.NewError(domain.ErrBadRequest, domain.CodeInvalidRequest, "limit must be a positive integer")
		}
		f.Limit = n
	}
	return f, nil
}
