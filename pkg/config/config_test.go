package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestReadConfigKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
serverAddr: ":9000"
frontendURL: "https://cobrew.app"
postgres:
  host: db
  dbname: cobrew
outbox:
  maxAttempts: 3
respond:
  requireToken: false
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	c := NewDefaultConfig()
	require.NoError(t, readConfig(path, c))

	assert.Equal(t, ":9000", c.ServerAddr)
	assert.Equal(t, "https://cobrew.app", c.FrontendURL)
	assert.Equal(t, "db", c.Postgres.Host)
	assert.Equal(t, "5432", c.Postgres.Port)
	assert.Equal(t, 3, c.Outbox.MaxAttempts)
	assert.Equal(t, 30, c.Outbox.BaseBackoffSeconds)
	assert.Equal(t, "@every 10s", c.Outbox.Schedule)
	assert.False(t, c.Respond.RequireToken)
	assert.Equal(t, 168, c.Respond.TokenTTLHour)
	assert.Equal(t, "log", c.Mail.Driver)
}

func TestReadConfigMissingFile(t *testing.T) {
	err := readConfig(filepath.Join(t.TempDir(), "absent.yaml"), NewDefaultConfig())
	assert.Error(t, err)
}
