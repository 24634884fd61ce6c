package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeAndValidateDefaults(t *testing.T) {
	var cfg Config
	cfg.Mail.Backend = "gmail"
	cfg.Mail.Gmail.CredentialsFile = "credentials.json"
	cfg.Mail.Gmail.TokenFile = "token.json"
	cfg.Ledger.Backend = "sqlite"
	cfg.Ledger.SQLitePath = "jobtrack.db"
	cfg.Mail.SearchSubjectAny = []string{"applying"}

	out, v := NormalizeAndValidate(cfg)
	require.True(t, v.OK(), "errors: %v", v.Errors)

	assert.Equal(t, ".", out.App.DataDir, "empty data_dir must not leak into MkdirAll")
	assert.Equal(t, 8787, out.App.Port)
	assert.Equal(t, "Auto/Job-Tracked", out.Mail.Label)
	assert.Equal(t, 50, out.Mail.MaxPerRun)
	assert.Equal(t, 7, out.Mail.NewerThanDays)
	assert.Equal(t, "gemini-2.5-flash", out.Gemini.Model)
	assert.Equal(t, 1500, out.Gemini.MaxOutputTokens)
	assert.Equal(t, 3000, out.Gemini.MaxBodyChars)
	assert.Equal(t, float64(1), out.Gemini.RequestsPerSecond)
	assert.Equal(t, 86400, out.Polling.DailySeconds)
}

func TestNormalizeAndValidateTrimsAndDedupesLists(t *testing.T) {
	var cfg Config
	cfg.Mail.Backend = "gmail"
	cfg.Mail.Gmail.CredentialsFile = "c"
	cfg.Mail.Gmail.TokenFile = "t"
	cfg.Ledger.Backend = "sqlite"
	cfg.Ledger.SQLitePath = "db"
	cfg.Mail.SearchSubjectAny = []string{" applying ", "", "Applying", "offer"}

	out, v := NormalizeAndValidate(cfg)
	require.True(t, v.OK())
	assert.Equal(t, []string{"applying", "offer"}, out.Mail.SearchSubjectAny)
}

func TestNormalizeAndValidateBackendErrors(t *testing.T) {
	var cfg Config
	cfg.Mail.Backend = "imap"
	cfg.Ledger.Backend = "sheets"

	_, v := NormalizeAndValidate(cfg)
	require.False(t, v.OK())
	assert.Contains(t, v.Errors, "mail.imap.host is required when mail.backend=imap")
	assert.Contains(t, v.Errors, "ledger.sheets.spreadsheet_id is required when ledger.backend=sheets")
}

func TestNormalizeAndValidateUnknownBackends(t *testing.T) {
	var cfg Config
	cfg.Mail.Backend = "pop3"
	cfg.Ledger.Backend = "csv"

	_, v := NormalizeAndValidate(cfg)
	require.Len(t, v.Errors, 2)
}

func TestNormalizeAndValidateEmptySearchWarns(t *testing.T) {
	var cfg Config
	cfg.Mail.Backend = "gmail"
	cfg.Mail.Gmail.CredentialsFile = "c"
	cfg.Mail.Gmail.TokenFile = "t"
	cfg.Ledger.Backend = "sqlite"
	cfg.Ledger.SQLitePath = "db"

	_, v := NormalizeAndValidate(cfg)
	assert.True(t, v.OK())
	assert.NotEmpty(t, v.Warnings)
}
