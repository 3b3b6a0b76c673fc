package domain

import "time"

// Config mirrors ~/.afcover/config.yaml.
type Config struct {
	ConfigFormatVersion string             `yaml:"config_format_version"`
	API                 APISettings        `yaml:"api"`
	Generation          GenerationSettings `yaml:"generation"`
	Polling             PollingSettings    `yaml:"polling"`
	Download            DownloadSettings   `yaml:"download"`
	Budget              BudgetSettings     `yaml:"budget"`
	Ledger              LedgerSettings     `yaml:"ledger"`
	History             HistorySettings    `yaml:"history"`
	Library             LibrarySettings    `yaml:"library"`
	Metrics             MetricsSettings    `yaml:"metrics"`
}

// APISettings describes the fal queue endpoints.
type APISettings struct {
	Endpoint             string `yaml:"endpoint"`
	EditEndpoint         string `yaml:"edit_endpoint"`
	AuthEnvVar           string `yaml:"auth_env_var"`
	SubmitTimeoutSeconds int    `yaml:"submit_timeout_seconds"`
	PollTimeoutSeconds   int    `yaml:"poll_timeout_seconds"`
}

// GenerationSettings are request defaults used when flags are omitted.
type GenerationSettings struct {
	Resolution       string `yaml:"resolution"`
	NumVariations    int    `yaml:"num_variations"`
	OutputFormat     string `yaml:"output_format"`
	OutputDir        string `yaml:"output_dir"`
	LimitGenerations bool   `yaml:"limit_generations"`
	BatchWorkers     int    `yaml:"batch_workers"`
}

// PollingSettings bound the job poller.
type PollingSettings struct {
	IntervalSeconds  int `yaml:"interval_seconds"`
	MaxWaitSeconds   int `yaml:"max_wait_seconds"`
	TransientRetries int `yaml:"transient_retries"`
}

// DownloadSettings configure the artifact fetcher.
type DownloadSettings struct {
	TimeoutSeconds int `yaml:"timeout_seconds"`
}

// BudgetSettings configure the daily spend cap.
type BudgetSettings struct {
	DailyLimit            string `yaml:"daily_limit"`
	ReservationTTLMinutes int    `yaml:"reservation_ttl_minutes"`
}

// LedgerSettings select the ledger store.
type LedgerSettings struct {
	Backend string `yaml:"backend"`
	Path    string `yaml:"path"`
}

// HistorySettings configure the generation history store.
type HistorySettings struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LibrarySettings locate the reference image library.
type LibrarySettings struct {
	Path string `yaml:"path"`
}

// MetricsSettings configure the optional Prometheus textfile.
type MetricsSettings struct {
	Textfile string `yaml:"textfile"`
}

// SubmitTimeout returns the configured submit timeout.
func (a APISettings) SubmitTimeout() time.Duration {
	return secondsOr(a.SubmitTimeoutSeconds, DefaultSubmitTimeout)
}

// PollTimeout returns the per-request timeout of a status check.
func (a APISettings) PollTimeout() time.Duration {
	return secondsOr(a.PollTimeoutSeconds, DefaultPollTimeout)
}

// Settings converts the polling section into PollSettings.
func (p PollingSettings) Settings() PollSettings {
	return PollSettings{
		MaxWait:  secondsOr(p.MaxWaitSeconds, DefaultMaxWait),
		Interval: secondsOr(p.IntervalSeconds, DefaultPollInterval),
	}
}

// Timeout returns the per-file download timeout.
func (d DownloadSettings) Timeout() time.Duration {
	return secondsOr(d.TimeoutSeconds, DefaultDownloadTimeout)
}

// ReservationTTL returns how long a budget hold stays active.
func (b BudgetSettings) ReservationTTL() time.Duration {
	if b.ReservationTTLMinutes <= 0 {
		return DefaultReservationTTL
	}
	return time.Duration(b.ReservationTTLMinutes) * time.Minute
}

func secondsOr(seconds int, fallback time.Duration) time.Duration {
	if seconds <= 0 {
		return fallback
	}
	return time.Duration(seconds) * time.Second
}
