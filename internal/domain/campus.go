package domain

import (
	"strings"
	"time"

	"github.com/justone-api/internal/pkg/emailaddr"
)

// Campus is a tenant whose accepted email domains gate signup.
type Campus struct {
	CampusID       string    `json:"id" dynamodbav:"campus_id" yaml:"id"`
	Name           string    `json:"name" dynamodbav:"name" yaml:"name"`
	Location       string    `json:"location" dynamodbav:"location" yaml:"location"`
	AllowedDomains []string  `json:"allowed_domains" dynamodbav:"allowed_domains" yaml:"allowed_domains"`
	// AdminOnly campuses are reachable through admin mode and the waitlist only.
	AdminOnly      bool      `json:"admin_only" dynamodbav:"admin_only" yaml:"admin_only"`
	CreatedAt      time.Time `json:"created" dynamodbav:"created_at" yaml:"-"`
	UpdatedAt      time.Time `json:"updated" dynamodbav:"updated_at" yaml:"-"`
}

// AcceptsDomain reports whether emailDomain equals one of the allowed domains
// or is a subdomain of one (res.christuniversity.in matches christuniversity.in).
// Allowed domains are stored lower-cased.
func (c *Campus) AcceptsDomain(emailDomain string) bool {
	return emailaddr.MatchesAny(strings.ToLower(emailDomain), c.AllowedDomains)
}
