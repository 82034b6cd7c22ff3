package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/justone-api/internal/domain"
	"gopkg.in/yaml.v3"
)

// CampusConfig is the injected campus seed and admin allowlist.
type CampusConfig struct {
	AdminCampusID   string          `yaml:"admin_campus_id"`
	AdminEmails     []string        `yaml:"admin_emails"`
	// WaitlistDomains gate the waitlist OTP flow independently of student signup.
	WaitlistDomains []string        `yaml:"waitlist_domains"`
	Campuses        []domain.Campus `yaml:"campuses"`
}

// DefaultCampusConfig is used when no campus file is present.
func DefaultCampusConfig() *CampusConfig {
	return &CampusConfig{
		AdminCampusID: "northwestern-evanston",
		WaitlistDomains: []string{
			"ashoka.edu.in",
			"northwestern.edu",
			"christuniversity.in",
			"christcollege.edu",
			"res.christuniversity.in",
			"mba.christuniversity.in",
		},
		Campuses: []domain.Campus{
			{
				CampusID: "christ-bangalore",
				Name:     "Christ University",
				Location: "Bangalore",
				AllowedDomains: []string{
					"christuniversity.in",
					"christcollege.edu",
					"res.christuniversity.in",
					"mba.christuniversity.in",
				},
			},
			{
				CampusID:       "ashoka-sonipat",
				Name:           "Ashoka University",
				Location:       "Sonipat",
				AllowedDomains: []string{"ashoka.edu.in"},
			},
			{
				CampusID:       "jindal-sonipat",
				Name:           "OP Jindal University",
				Location:       "Sonipat",
				AllowedDomains: []string{"jgu.edu.in"},
			},
			{
				CampusID:       "northwestern-evanston",
				Name:           "Northwestern University",
				Location:       "Evanston",
				AllowedDomains: []string{"northwestern.edu"},
				AdminOnly:      true,
			},
		},
	}
}

// LoadCampusConfig reads the YAML campus file at path. A missing file yields the
// defaults. adminEmails, when non-empty, replaces the file's allowlist.
func LoadCampusConfig(path string, adminEmails []string) (*CampusConfig, error) {
	cc := DefaultCampusConfig()
	raw, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("read campus config: %w", err)
	default:
		var fromFile CampusConfig
		if err := yaml.Unmarshal(raw, &fromFile); err != nil {
			return nil, fmt.Errorf("parse campus config: %w", err)
		}
		if len(fromFile.Campuses) > 0 {
			cc.Campuses = fromFile.Campuses
		}
		if fromFile.AdminCampusID != "" {
			cc.AdminCampusID = fromFile.AdminCampusID
		}
		if len(fromFile.WaitlistDomains) > 0 {
			cc.WaitlistDomains = fromFile.WaitlistDomains
		}
		cc.AdminEmails = fromFile.AdminEmails
	}
	if len(adminEmails) > 0 {
		cc.AdminEmails = adminEmails
	}
	cc.normalize()
	return cc, cc.validate()
}

// IsAdmin reports whether the normalized email is on the admin allowlist.
func (c *CampusConfig) IsAdmin(email string) bool {
	email = strings.ToLower(strings.TrimSpace(email))
	for _, a := range c.AdminEmails {
		if a == email {
			return true
		}
	}
	return false
}

func (c *CampusConfig) normalize() {
	for i, e := range c.AdminEmails {
		c.AdminEmails[i] = strings.ToLower(strings.TrimSpace(e))
	}
	for i, d := range c.WaitlistDomains {
		c.WaitlistDomains[i] = strings.ToLower(strings.TrimSpace(d))
	}
	for i := range c.Campuses {
		for j, d := range c.Campuses[i].AllowedDomains {
			c.Campuses[i].AllowedDomains[j] = strings.ToLower(strings.TrimSpace(d))
		}
	}
}

func (c *CampusConfig) validate() error {
	seen := make(map[string]bool, len(c.Campuses))
	for _, cp := range c.Campuses {
		if cp.CampusID == "" {
			return fmt.Errorf("campus %q has no id", cp.Name)
		}
		if seen[cp.CampusID] {
			return fmt.Errorf("duplicate campus id %q", cp.CampusID)
		}
		seen[cp.CampusID] = true
		if len(cp.AllowedDomains) == 0 {
			return fmt.Errorf("campus %q has no allowed domains", cp.CampusID)
		}
	}
	if c.AdminCampusID != "" && !seen[c.AdminCampusID] {
		return fmt.Errorf("admin campus %q is not a configured campus", c.AdminCampusID)
	}
	return nil
}
