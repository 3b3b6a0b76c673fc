package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// SecureFilePermissions is the permission for the config, ledger and history files (rw-------)
	SecureFilePermissions = 0o600
	// ArtifactFilePermissions is the permission for downloaded images (rw-r--r--)
	ArtifactFilePermissions = 0o644
)

// Request shape constants
const (
	MinVariations      = 1
	MaxVariations      = 4
	MaxReferenceImages = 14
	// CoverAspectRatio is fixed; album covers are square.
	CoverAspectRatio = "1:1"
)

// API defaults
const (
	DefaultEndpoint      = "https://queue.fal.run/fal-ai/nano-banana-pro"
	DefaultEditEndpoint  = "https://queue.fal.run/fal-ai/nano-banana-pro/edit"
	DefaultAuthEnvVar    = "FAL_KEY"
	DefaultSubmitTimeout = 120 * time.Second
	DefaultPollTimeout   = 30 * time.Second
	// DefaultDownloadTimeout bounds each artifact download.
	DefaultDownloadTimeout = 60 * time.Second
)

// Polling defaults
const (
	DefaultPollInterval     = 3 * time.Second
	DefaultMaxWait          = 120 * time.Second
	DefaultTransientRetries = 3
)

// Budget defaults
const (
	DefaultDailyLimit     = "5.00"
	DefaultReservationTTL = 15 * time.Minute
	// ReservationSlack pads the computed lifetime of a budget hold.
	ReservationSlack = time.Minute
)

// Environment variables
const (
	EnvDailyLimit  = "NANOBOT_DAILY_LIMIT"
	EnvSkipConfirm = "NANOBOT_SKIP_CONFIRM"
	EnvDryRun      = "NANOBOT_DRY_RUN"
	EnvConfigPath  = "AFCOVER_CONFIG"
	EnvDebug       = "AFCOVER_DEBUG"
)

// Ledger backends
const (
	LedgerBackendFile   = "file"
	LedgerBackendSQLite = "sqlite"
)

// History constants
const (
	// DefaultHistoryLimit is the default number of history records to display
	DefaultHistoryLimit = 20
	// DefaultHistorySearchLimit is the default number of search results to return
	DefaultHistorySearchLimit = 50
	// DefaultReportDays is the window of the report command.
	DefaultReportDays = 7
)

// ArtifactStampFormat is embedded in artifact file names.
const ArtifactStampFormat = "20060102-150405"
