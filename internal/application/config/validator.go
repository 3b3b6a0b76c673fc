package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/doeshing/afcover/internal/domain"
)

// Validate ensures config structure is consistent.
func Validate(cfg domain.Config) error {
	if err := validateAPI(cfg.API); err != nil {
		return err
	}
	if err := validateGeneration(cfg.Generation); err != nil {
		return err
	}
	if err := validatePolling(cfg.Polling); err != nil {
		return err
	}
	if cfg.Download.TimeoutSeconds < 0 {
		return fmt.Errorf("download.timeout_seconds must be >= 0")
	}
	if err := validateBudget(cfg.Budget); err != nil {
		return err
	}
	if err := validateLedger(cfg.Ledger); err != nil {
		return err
	}
	if cfg.History.Enabled && cfg.History.Path == "" {
		return errors.New("history.path must be set when history is enabled")
	}
	return nil
}

func validateAPI(api domain.APISettings) error {
	for name, raw := range map[string]string{"api.endpoint": api.Endpoint, "api.edit_endpoint": api.EditEndpoint} {
		u, err := url.Parse(raw)
		if err != nil || u.Host == "" || (u.Scheme != "https" && u.Scheme != "http") {
			return fmt.Errorf("%s must be an http(s) URL, got %q", name, raw)
		}
	}
	if strings.TrimSpace(api.AuthEnvVar) == "" {
		return errors.New("api.auth_env_var must be set")
	}
	if api.SubmitTimeoutSeconds < 0 || api.PollTimeoutSeconds < 0 {
		return errors.New("api timeouts must be >= 0")
	}
	return nil
}

func validateGeneration(gen domain.GenerationSettings) error {
	if _, err := domain.ParseResolution(gen.Resolution); err != nil {
		return fmt.Errorf("generation.resolution: %w", err)
	}
	if _, err := domain.ParseOutputFormat(gen.OutputFormat); err != nil {
		return fmt.Errorf("generation.output_format: %w", err)
	}
	if gen.NumVariations < domain.MinVariations || gen.NumVariations > domain.MaxVariations {
		return fmt.Errorf("generation.num_variations must be between %d and %d, got %d",
			domain.MinVariations, domain.MaxVariations, gen.NumVariations)
	}
	if gen.OutputDir == "" {
		return errors.New("generation.output_dir must be set")
	}
	if gen.BatchWorkers < 1 {
		return fmt.Errorf("generation.batch_workers must be > 0")
	}
	return nil
}

func validatePolling(p domain.PollingSettings) error {
	if p.IntervalSeconds < 0 || p.MaxWaitSeconds < 0 || p.TransientRetries < 0 {
		return errors.New("polling values must be >= 0")
	}
	settings := p.Settings()
	if settings.Interval > settings.MaxWait {
		return fmt.Errorf("polling.interval_seconds (%s) exceeds polling.max_wait_seconds (%s)",
			settings.Interval, settings.MaxWait)
	}
	return nil
}

func validateBudget(b domain.BudgetSettings) error {
	limit, err := domain.Dollars(b.DailyLimit)
	if err != nil {
		return fmt.Errorf("budget.daily_limit: %w", err)
	}
	if !limit.IsPositive() {
		return fmt.Errorf("budget.daily_limit must be > 0, got %s", b.DailyLimit)
	}
	if b.ReservationTTLMinutes < 0 {
		return errors.New("budget.reservation_ttl_minutes must be >= 0")
	}
	return nil
}

func validateLedger(l domain.LedgerSettings) error {
	switch strings.ToLower(l.Backend) {
	case domain.LedgerBackendFile, domain.LedgerBackendSQLite:
	default:
		return fmt.Errorf("ledger.backend must be file|sqlite, got %s", l.Backend)
	}
	if l.Path == "" {
		return errors.New("ledger.path must be set")
	}
	return nil
}
