package emailaddr

import (
	"regexp"
	"strings"

	"github.com/justone-api/internal/pkg/validate"
)

var format = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// Normalize lower-cases and trims an address.
func Normalize(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Valid reports whether a normalized address has a local part, an @ and a dotted domain.
func Valid(email string) bool {
	return format.MatchString(email) && validate.Var(email, "email") == nil
}

// Domain returns the part after the last @, or "" when there is none.
func Domain(email string) string {
	i := strings.LastIndexByte(email, '@')
	if i < 0 {
		return ""
	}
	return email[i+1:]
}

// MatchesAny reports whether domain equals one of allowed or is a subdomain of one.
func MatchesAny(domain string, allowed []string) bool {
	for _, a := range allowed {
		if domain == a || strings.HasSuffix(domain, "."+a) {
			return true
		}
	}
	return false
}
