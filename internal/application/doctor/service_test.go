package doctor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/infrastructure/config"
	"github.com/doeshing/afcover/internal/infrastructure/history"
	"github.com/doeshing/afcover/internal/infrastructure/ledgerstore"
)

type staticConfig struct {
	cfg domain.Config
	err error
}

func (s staticConfig) Load(context.Context) (domain.Config, error) { return s.cfg, s.err }

func testConfig(t *testing.T) domain.Config {
	t.Helper()
	cfg, err := config.Defaults()
	require.NoError(t, err)
	dir := t.TempDir()
	cfg.Generation.OutputDir = filepath.Join(dir, "covers")
	cfg.History.Path = filepath.Join(dir, "history.jsonl")
	return cfg
}

func statusOf(report domain.HealthReport, name string) domain.HealthStatus {
	for _, c := range report.Checks {
		if c.Name == name {
			return c.Status
		}
	}
	return ""
}

func TestService_AllHealthy(t *testing.T) {
	cfg := testConfig(t)
	svc := &Service{
		ConfigProvider: staticConfig{cfg: cfg},
		LedgerStore:    ledgerstore.NewMemoryStore(),
		History:        history.NewFileStore(cfg.History.Path),
		Getenv:         func(string) string { return "fal-1234567890abcd" },
	}

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.False(t, report.Failed())
	for _, name := range []string{"Config file", "API key", "Ledger", "Output directory", "History"} {
		assert.Equal(t, domain.HealthOK, statusOf(report, name), name)
	}
	for _, c := range report.Checks {
		assert.NotContains(t, c.Details, "567890", "key must be masked")
	}
}

func TestService_ReportsProblems(t *testing.T) {
	cfg := testConfig(t)
	ledgerPath := filepath.Join(t.TempDir(), "ledger.jsonl")
	require.NoError(t, os.WriteFile(ledgerPath, []byte("{broken\n"), 0o600))
	cfg.Budget.DailyLimit = "0"

	svc := &Service{
		ConfigProvider: staticConfig{cfg: cfg},
		LedgerStore:    ledgerstore.NewFileStore(ledgerPath),
		History:        history.NewFileStore(cfg.History.Path),
		Getenv:         func(string) string { return "" },
	}

	report, err := svc.Run(context.Background())
	require.NoError(t, err)
	assert.True(t, report.Failed())
	assert.Equal(t, domain.HealthError, statusOf(report, "Config file"))
	assert.Equal(t, domain.HealthWarn, statusOf(report, "API key"))
	assert.Equal(t, domain.HealthError, statusOf(report, "Ledger"))
}

func TestService_ConfigLoadFailureAborts(t *testing.T) {
	svc := &Service{ConfigProvider: staticConfig{err: errors.New("boom")}}

	report, err := svc.Run(context.Background())
	require.Error(t, err)
	require.Len(t, report.Checks, 1)
	assert.Equal(t, domain.HealthError, report.Checks[0].Status)
}

func TestMaskKey(t *testing.T) {
	assert.Equal(t, "****", MaskKey("short"))
	assert.Equal(t, "fal-…abcd", MaskKey("fal-1234567890abcd"))
}
