package handler

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/justone-api/internal/domain"
	"github.com/justone-api/internal/pkg/logger"
	"go.uber.org/zap"
)

// maxBodyBytes bounds request bodies; a 5 MB resume grows by a third in base64.
const maxBodyBytes = 8 << 20

// MessageEnvelope is the generic success wrapper.
type MessageEnvelope struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
}

// ErrorEnvelope is the body of every error response.
type ErrorEnvelope struct {
	Success    bool   `json:"success"`
	Error      string `json:"error"`
	Message    string `json:"message"`
	RetryAfter int    `json:"retry_after,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps a service error to its status and client-safe body.
// Errors without a code are logged and reported as a generic 500.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	de, ok := domain.AsError(err)
	if !ok {
		status, code := statusFor(err)
		if status == http.StatusInternalServerError {
			logger.Error(r.Context(), "request failed", zap.String("path", r.URL.Path), zap.Error(err))
			writeJSON(w, status, ErrorEnvelope{Error: code, Message: "Something went wrong. Please try again."})
			return
		}
		writeJSON(w, status, ErrorEnvelope{Error: code, Message: http.StatusText(status)})
		return
	}
	status, _ := statusFor(de.Kind)
	if status == http.StatusInternalServerError {
		logger.Error(r.Context(), "request failed", zap.String("path", r.URL.Path), zap.String("code", de.Code))
	}
	if de.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(de.RetryAfter))
	}
	writeJSON(w, status, ErrorEnvelope{Error: de.Code, Message: de.Message, RetryAfter: de.RetryAfter})
}

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, domain.ErrBadRequest):
		return http.StatusBadRequest, domain.CodeInvalidRequest
	case errors.Is(err, domain.ErrUnauthorized):
		return http.StatusUnauthorized, domain.CodeUnauthorized
	case errors.Is(err, domain.ErrForbidden):
		return http.StatusForbidden, domain.CodeForbidden
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound, domain.CodeNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusConflict, domain.CodeInvalidRequest
	case errors.Is(err, domain.ErrRateLimited):
		return http.StatusTooManyRequests, domain.CodeRateLimited
	case errors.Is(err, domain.ErrUnavailable):
		return http.StatusServiceUnavailable, domain.CodeInternal
	default:
		return http.StatusInternalServerError, domain.CodeInternal
	}
}

var errInvalidBody = domain.NewError(domain.ErrBadRequest, domain.CodeInvalidRequest, "Request body must be valid JSON")

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errInvalidBody
	}
	return nil
}
