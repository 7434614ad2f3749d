package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := Default()
	cfg.Sheets.SpreadsheetID = "sheet-123"
	cfg.Google.ClientID = "test"
	cfg.Google.ClientSecret = "test"
	cfg.Google.RefreshToken = "test"
	return cfg
}

func TestConfigValidation(t *testing.T) {
	cfg := validConfig()
	assert.NoError(t, cfg.Validate())

	invalid := &Config{Server: ServerConfig{Port: ""}}
	assert.Error(t, invalid.Validate())

	noSheet := validConfig()
	noSheet.Sheets.SpreadsheetID = ""
	assert.Error(t, noSheet.Validate())

	credsFile := validConfig()
	credsFile.Google = GoogleConfig{CredentialsFile: "/etc/sa.json"}
	assert.NoError(t, credsFile.Validate())

	badSender := validConfig()
	badSender.Email.Sender = "not an address"
	assert.Error(t, badSender.Validate())

	explicitSender := validConfig()
	explicitSender.Email.Sender = "purchasing@example.com"
	assert.NoError(t, explicitSender.Validate())

	badStrategy := validConfig()
	badStrategy.Branding.Strategy = "rainbow"
	assert.Error(t, badStrategy.Validate())

	db := validConfig()
	db.Database.Enabled = true
	assert.Error(t, db.Validate())

	mysqlLock := validConfig()
	mysqlLock.Pipeline.LockBackend = LockMySQL
	assert.Error(t, mysqlLock.Validate())

	badLock := validConfig()
	badLock.Pipeline.LockBackend = "redis"
	assert.Error(t, badLock.Validate())
}

func TestResolvedLockBackend(t *testing.T) {
	cfg := validConfig()
	assert.Equal(t, LockAuto, cfg.Pipeline.LockBackend)
	assert.Equal(t, LockFile, cfg.ResolvedLockBackend())

	cfg.Database.Enabled = true
	assert.Equal(t, LockMySQL, cfg.ResolvedLockBackend())

	cfg.Pipeline.LockBackend = LockLocal
	assert.Equal(t, LockLocal, cfg.ResolvedLockBackend())
}

func TestDefaults(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8080", cfg.Server.Port)
	assert.Equal(t, 30*time.Second, cfg.Server.ReadTimeout)
	assert.Equal(t, 10*time.Second, cfg.Pipeline.LockTimeout)
	assert.Equal(t, 50, cfg.RateLimit.PerHour)
	assert.Equal(t, 200, cfg.RateLimit.PerDay)
	assert.Equal(t, 30, cfg.Dedup.RetentionDays)
	assert.Equal(t, int64(25*1024*1024), cfg.Email.MaxAttachmentBytes)
	assert.Equal(t, "Notified", cfg.Columns.Notified)
	assert.Equal(t, "MessageKey", cfg.Columns.MessageKey)
	assert.Contains(t, cfg.Columns.PO, "order #")
	assert.Contains(t, cfg.Validation.AffirmativeValues, "ordered")
	assert.True(t, cfg.Validation.Strict)
	assert.False(t, cfg.Scheduler.Enabled)
}

func TestLoadConfigFromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notifier.yaml")
	content := []byte(`
sheets:
  spreadsheet_id: abc
rate_limit:
  per_hour: 5
branding:
  strategy: both
`)
	require.NoError(t, os.WriteFile(path, content, 0o600))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.Sheets.SpreadsheetID)
	assert.Equal(t, 5, cfg.RateLimit.PerHour)
	assert.Equal(t, 200, cfg.RateLimit.PerDay)
	assert.Equal(t, LogoBoth, cfg.Branding.Strategy)
}

func TestDatabaseDSN(t *testing.T) {
	cfg := DatabaseConfig{
		Host:     "localhost",
		Port:     3306,
		User:     "testuser",
		Password: "testpass",
		DBName:   "testdb",
	}

	expected := "testuser:testpass@tcp(localhost:3306)/testdb?charset=utf8mb4&parseTime=True&loc=Local"
	assert.Equal(t, expected, cfg.GetDSN())
}

func TestSessionOverrides(t *testing.T) {
	s := NewSession()
	base := Default().Branding

	assert.Equal(t, LogoPrimary, s.Branding(base).Strategy)

	require.NoError(t, s.SetLogoStrategy(LogoConditional))
	assert.Equal(t, LogoConditional, s.Branding(base).Strategy)
	assert.Equal(t, LogoPrimary, base.Strategy)

	assert.Error(t, s.SetLogoStrategy("nope"))
	assert.Equal(t, LogoConditional, s.LogoStrategy())

	require.NoError(t, s.SetLogoStrategy(""))
	assert.Equal(t, LogoPrimary, s.Branding(base).Strategy)

	var nilSession *Session
	assert.Equal(t, LogoPrimary, nilSession.Branding(base).Strategy)
}
