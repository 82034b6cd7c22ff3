package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCampusConfig_MissingFileUsesDefaults(t *testing.T) {
	cc, err := LoadCampusConfig(filepath.Join(t.TempDir(), "nope.yaml"), nil)
	require.NoError(t, err)
	assert.Len(t, cc.Campuses, 4)
	assert.Equal(t, "northwestern-evanston", cc.AdminCampusID)
	assert.Empty(t, cc.AdminEmails)
	assert.Contains(t, cc.WaitlistDomains, "northwestern.edu")
	assert.NotContains(t, cc.WaitlistDomains, "jgu.edu.in")
	for _, c := range cc.Campuses {
		assert.Equal(t, c.CampusID == cc.AdminCampusID, c.AdminOnly, c.CampusID)
	}
}

func TestLoadCampusConfig_FromYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campuses.yaml")
	body := `
admin_campus_id: test-campus
admin_emails:
  - " Admin@Test.EDU "
waitlist_domains: [" Test.EDU "]
campuses:
  - id: test-campus
    name: Test University
    location: Nowhere
    allowed_domains: [Test.EDU]
    admin_only: true
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))

	cc, err := LoadCampusConfig(path, nil)
	require.NoError(t, err)
	require.Len(t, cc.Campuses, 1)
	assert.Equal(t, "test-campus", cc.Campuses[0].CampusID)
	assert.Equal(t, []string{"test.edu"}, cc.Campuses[0].AllowedDomains)
	assert.True(t, cc.Campuses[0].AdminOnly)
	assert.Equal(t, []string{"test.edu"}, cc.WaitlistDomains)
	assert.True(t, cc.IsAdmin("admin@test.edu"))
	assert.False(t, cc.IsAdmin("student@test.edu"))
}

func TestLoadCampusConfig_EnvOverridesAdminEmails(t *testing.T) {
	cc, err := LoadCampusConfig(filepath.Join(t.TempDir(), "nope.yaml"), []string{"boss@northwestern.edu"})
	require.NoError(t, err)
	assert.True(t, cc.IsAdmin("BOSS@northwestern.edu"))
}

func TestLoadCampusConfig_UnknownAdminCampus(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campuses.yaml")
	body := `
admin_campus_id: missing
campuses:
  - id: a
    name: A
    allowed_domains: [a.edu]
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0600))
	_, err := LoadCampusConfig(path, nil)
	assert.ErrorContains(t, err, "admin campus")
}

func TestLoadCampusConfig_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "campuses.yaml")
	require.NoError(t, os.WriteFile(path, []byte("campuses: [:::"), 0600))
	_, err := LoadCampusConfig(path, nil)
	assert.Error(t, err)
}
