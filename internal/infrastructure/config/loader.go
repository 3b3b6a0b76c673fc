package config

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/doeshing/afcover/assets"
	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/pkg/filesystem"
	"github.com/doeshing/afcover/internal/ports"
)

// FileLoader loads YAML configuration from ~/.afcover/config.yaml (overridable via AFCOVER_CONFIG).
type FileLoader struct {
	overridePath string
}

// NewFileLoader builds a new loader.
func NewFileLoader(path string) *FileLoader {
	return &FileLoader{overridePath: path}
}

// Load implements ports.ConfigProvider. A missing file is created from the
// embedded defaults. Environment overrides are applied last.
func (l *FileLoader) Load(context.Context) (domain.Config, error) {
	path := l.Path()
	if err := ensureConfigDir(path); err != nil {
		return domain.Config{}, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return domain.Config{}, err
		}
		if err := os.WriteFile(path, assets.DefaultConfigYAML, domain.SecureFilePermissions); err != nil {
			return domain.Config{}, err
		}
		data = assets.DefaultConfigYAML
	}

	var cfg domain.Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return domain.Config{}, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg = hydrateDefaults(cfg)
	if err := applyEnv(&cfg); err != nil {
		return domain.Config{}, err
	}
	return cfg, nil
}

// Path resolves the config file location.
func (l *FileLoader) Path() string {
	if l.overridePath != "" {
		return filesystem.ExpandPath(l.overridePath)
	}
	if custom := os.Getenv(domain.EnvConfigPath); custom != "" {
		return filesystem.ExpandPath(custom)
	}
	return filesystem.AppDir("config.yaml")
}

// Init writes the default configuration. An existing file is only replaced with force.
func (l *FileLoader) Init(force bool) (string, error) {
	path := l.Path()
	if _, err := os.Stat(path); err == nil && !force {
		return path, fmt.Errorf("%s: %w (use --force to overwrite)", path, os.ErrExist)
	}
	if err := ensureConfigDir(path); err != nil {
		return path, err
	}
	return path, os.WriteFile(path, assets.DefaultConfigYAML, domain.SecureFilePermissions)
}

// Defaults returns the embedded default configuration.
func Defaults() (domain.Config, error) {
	var cfg domain.Config
	if err := yaml.Unmarshal(assets.DefaultConfigYAML, &cfg); err != nil {
		return domain.Config{}, err
	}
	return hydrateDefaults(cfg), nil
}

// LoadDotEnv loads .env from the working directory and then ~/.afcover/.env.
// Variables already present in the environment are never overwritten, so the
// first file to define a key wins. It returns the files that were read.
func LoadDotEnv() ([]string, error) {
	var loaded []string
	for _, path := range []string{".env", filesystem.AppDir(".env")} {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return loaded, fmt.Errorf("load %s: %w", path, err)
		}
		loaded = append(loaded, path)
	}
	return loaded, nil
}

// APIKey reads the fal key from the configured environment variable.
func APIKey(cfg domain.Config) string {
	name := cfg.API.AuthEnvVar
	if name == "" {
		name = domain.DefaultAuthEnvVar
	}
	return strings.TrimSpace(os.Getenv(name))
}

func ensureConfigDir(path string) error {
	return os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions)
}

func hydrateDefaults(cfg domain.Config) domain.Config {
	if cfg.ConfigFormatVersion == "" {
		cfg.ConfigFormatVersion = "1"
	}
	if cfg.API.Endpoint == "" {
		cfg.API.Endpoint = domain.DefaultEndpoint
	}
	if cfg.API.EditEndpoint == "" {
		cfg.API.EditEndpoint = domain.DefaultEditEndpoint
	}
	if cfg.API.AuthEnvVar == "" {
		cfg.API.AuthEnvVar = domain.DefaultAuthEnvVar
	}
	if cfg.Generation.Resolution == "" {
		cfg.Generation.Resolution = string(domain.Resolution1K)
	}
	if cfg.Generation.NumVariations == 0 {
		cfg.Generation.NumVariations = domain.MinVariations
	}
	if cfg.Generation.OutputFormat == "" {
		cfg.Generation.OutputFormat = string(domain.FormatPNG)
	}
	if cfg.Generation.OutputDir == "" {
		cfg.Generation.OutputDir = "./covers"
	}
	if cfg.Generation.BatchWorkers == 0 {
		cfg.Generation.BatchWorkers = 2
	}
	if cfg.Polling.TransientRetries == 0 {
		cfg.Polling.TransientRetries = domain.DefaultTransientRetries
	}
	if cfg.Budget.DailyLimit == "" {
		cfg.Budget.DailyLimit = domain.DefaultDailyLimit
	}
	if cfg.Ledger.Backend == "" {
		cfg.Ledger.Backend = domain.LedgerBackendFile
	}
	if cfg.Ledger.Path == "" {
		cfg.Ledger.Path = filesystem.AppDir("ledger.jsonl")
	}
	if cfg.History.Path == "" {
		cfg.History.Path = filesystem.AppDir("history", "history.db")
	}
	if cfg.Library.Path == "" {
		cfg.Library.Path = filesystem.AppDir("library")
	}
	cfg.Generation.OutputDir = filesystem.ExpandPath(cfg.Generation.OutputDir)
	cfg.Ledger.Path = filesystem.ExpandPath(cfg.Ledger.Path)
	cfg.History.Path = filesystem.ExpandPath(cfg.History.Path)
	cfg.Library.Path = filesystem.ExpandPath(cfg.Library.Path)
	cfg.Metrics.Textfile = filesystem.ExpandPath(cfg.Metrics.Textfile)
	return cfg
}

func applyEnv(cfg *domain.Config) error {
	raw := strings.TrimSpace(os.Getenv(domain.EnvDailyLimit))
	if raw == "" {
		return nil
	}
	if _, err := domain.Dollars(raw); err != nil {
		return domain.NewValidationError(domain.EnvDailyLimit, fmt.Sprintf("invalid amount %q", raw))
	}
	cfg.Budget.DailyLimit = raw
	return nil
}

var _ ports.ConfigProvider = (*FileLoader)(nil)
