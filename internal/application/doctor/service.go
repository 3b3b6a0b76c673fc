package doctor

import (
	"context"
	"errors"
	"fmt"
	"os"

	appconfig "github.com/doeshing/afcover/internal/application/config"
	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/pkg/filesystem"
	"github.com/doeshing/afcover/internal/ports"
)

// Service runs environment diagnostics.
type Service struct {
	ConfigProvider ports.ConfigProvider
	LedgerStore    ports.LedgerStore
	History        ports.HistoryRepository
	Getenv         func(string) string
}

// Run executes checks and returns a report. Only a config that fails to load
// aborts the run; every other problem becomes a check.
func (s *Service) Run(ctx context.Context) (domain.HealthReport, error) {
	var checks []domain.HealthCheck

	cfg, err := s.ConfigProvider.Load(ctx)
	if err != nil {
		checks = append(checks, fail("Config file", fmt.Sprintf("load failed: %v", err)))
		return domain.HealthReport{Checks: checks}, err
	}
	if err := appconfig.Validate(cfg); err != nil {
		checks = append(checks, fail("Config file", err.Error()))
	} else {
		checks = append(checks, ok("Config file", fmt.Sprintf("format %s, daily limit $%s", cfg.ConfigFormatVersion, cfg.Budget.DailyLimit)))
	}

	checks = append(checks, s.apiKeyCheck(cfg.API.AuthEnvVar))
	checks = append(checks, s.ledgerCheck(ctx))
	checks = append(checks, outputDirCheck(cfg.Generation.OutputDir))
	checks = append(checks, s.historyCheck(cfg.History))

	return domain.HealthReport{Checks: checks}, nil
}

func (s *Service) apiKeyCheck(envVar string) domain.HealthCheck {
	if envVar == "" {
		envVar = domain.DefaultAuthEnvVar
	}
	getenv := s.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}
	key := getenv(envVar)
	if key == "" {
		return warn("API key", envVar+" missing (dry runs still work)")
	}
	return ok("API key", fmt.Sprintf("%s=%s", envVar, MaskKey(key)))
}

func (s *Service) ledgerCheck(ctx context.Context) domain.HealthCheck {
	if s.LedgerStore == nil {
		return warn("Ledger", "ledger store not initialized")
	}
	snap, err := s.LedgerStore.Snapshot(ctx)
	if err != nil {
		var corrupt *domain.LedgerCorruptError
		if errors.As(err, &corrupt) {
			return fail("Ledger", corrupt.Error())
		}
		return fail("Ledger", fmt.Sprintf("%s: %v", s.LedgerStore.Location(), err))
	}
	return ok("Ledger", fmt.Sprintf("%s (%d days recorded)", s.LedgerStore.Location(), len(snap.Entries)))
}

func outputDirCheck(dir string) domain.HealthCheck {
	if err := filesystem.CheckWritable(dir); err != nil {
		return fail("Output directory", fmt.Sprintf("%s not writable: %v", dir, err))
	}
	return ok("Output directory", dir)
}

func (s *Service) historyCheck(settings domain.HistorySettings) domain.HealthCheck {
	if !settings.Enabled {
		return warn("History", "disabled")
	}
	if s.History == nil {
		return warn("History", "history store not initialized")
	}
	if _, err := s.History.Records(1, ""); err != nil {
		return fail("History", fmt.Sprintf("%s: %v", s.History.Path(), err))
	}
	return ok("History", s.History.Path())
}

// MaskKey keeps the first and last four characters of a secret.
func MaskKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "…" + key[len(key)-4:]
}

func ok(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthOK, Details: details}
}

func warn(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthWarn, Details: details}
}

func fail(name, details string) domain.HealthCheck {
	return domain.HealthCheck{Name: name, Status: domain.HealthError, Details: details}
}
