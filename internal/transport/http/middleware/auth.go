package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/justone-api/internal/domain"
	jwtinfra "github.com/justone-api/internal/infrastructure/jwt"
	"github.com/justone-api/internal/pkg/logger"
	"go.uber.org/zap"
)

type contextKey string

const claimsKey contextKey = "claims"

// TokenVerifier parses and validates a bearer token.
type TokenVerifier interface {
	Verify(tokenStr string) (*jwtinfra.Claims, error)
}

// SessionChecker rejects tokens whose session was logged out.
type SessionChecker interface {
	Active(ctx context.Context, sessionID string) error
}

// Auth returns middleware that validates the Bearer JWT and injects claims into context.
// When sessions is non-nil the token's session must still be enabled.
func Auth(provider TokenVerifier, sessions SessionChecker) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			authHeader := r.Header.Get("Authorization")
			if !strings.HasPrefix(authHeader, "Bearer ") {
				writeJSONError(w, http.StatusUnauthorized, domain.CodeUnauthorized, "Missing or invalid authorization header")
				return
			}
			tokenStr := strings.TrimPrefix(authHeader, "Bearer ")
			claims, err := provider.Verify(tokenStr)
			if err != nil {
				writeJSONError(w, http.StatusUnauthorized, domain.CodeUnauthorized, "Invalid or expired token")
				return
			}
			if sessions != nil {
				if err := sessions.Active(r.Context(), claims.SessionID); err != nil {
					logger.Warn(r.Context(), "token for inactive session", zap.String("session_id", claims.SessionID), zap.Error(err))
					writeJSONError(w, http.StatusUnauthorized, domain.CodeUnauthorized, "Session has ended")
					return
				}
			}
			ctx := WithClaims(r.Context(), claims)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithClaims stores claims in ctx.
func WithClaims(ctx context.Context, c *jwtinfra.Claims) context.Context {
	return context.WithValue(ctx, claimsKey, c)
}

// ClaimsFromContext extracts JWT claims from the request context.
func ClaimsFromContext(ctx context.Context) (*jwtinfra.Claims, bool) {
	c, ok := ctx.Value(claimsKey).(*jwtinfra.Claims)
	return c, ok
}
