package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/justone-api/internal/domain"
	"github.com/justone-api/internal/pkg/logger"
)

// AdminKeyHeader carries the shared admin secret.
const AdminKeyHeader = "x-admin-key"

// AdminKey guards a route with the configured admin API key.
// An empty key fails closed with admin_not_configured.
func AdminKey(key string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if key == "" {
				logger.Error(r.Context(), "admin api key not configured")
				writeJSONError(w, http.StatusInternalServerError, domain.CodeAdminNotConfigured, "Admin access is not configured")
				return
			}
			got := r.Header.Get(AdminKeyHeader)
			if subtle.ConstantTimeCompare([]byte(got), []byte(key)) != 1 {
				writeJSONError(w, http.StatusUnauthorized, domain.CodeInvalidAdminKey, "Invalid admin key")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
