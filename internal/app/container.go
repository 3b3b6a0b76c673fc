package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/doeshing/afcover/internal/application/batch"
	"github.com/doeshing/afcover/internal/application/doctor"
	"github.com/doeshing/afcover/internal/application/generate"
	"github.com/doeshing/afcover/internal/application/intent"
	"github.com/doeshing/afcover/internal/application/ledger"
	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/infrastructure/artifact"
	"github.com/doeshing/afcover/internal/infrastructure/config"
	"github.com/doeshing/afcover/internal/infrastructure/fal"
	"github.com/doeshing/afcover/internal/infrastructure/history"
	"github.com/doeshing/afcover/internal/infrastructure/ledgerstore"
	"github.com/doeshing/afcover/internal/infrastructure/library"
	"github.com/doeshing/afcover/internal/infrastructure/metrics"
	"github.com/doeshing/afcover/internal/infrastructure/prompt"
	"github.com/doeshing/afcover/internal/pkg/logger"
	"github.com/doeshing/afcover/internal/ports"
)

// Options select how the container is built.
type Options struct {
	Verbose    bool
	ConfigPath string
}

// Container wires up application services with infrastructure adapters.
type Container struct {
	Config         domain.Config
	ConfigProvider ports.ConfigProvider
	ConfigLoader   *config.FileLoader
	Logger         ports.Logger
	LedgerStore    ports.LedgerStore
	Ledger         *ledger.CostLedger
	Generator      *generate.Service
	Composer       *prompt.Composer
	Parser         *intent.Parser
	BatchRunner    *batch.Runner
	DoctorService  *doctor.Service
	HistoryStore   ports.HistoryRepository
	Library        ports.ReferenceLibrary
	Metrics        *metrics.Recorder
	APIKey         string

	closers []io.Closer
}

// BuildContainer constructs the dependency graph.
func BuildContainer(ctx context.Context, opts Options) (*Container, error) {
	log := logger.New(opts.Verbose)
	if files, err := config.LoadDotEnv(); err != nil {
		log.Warn("load .env", map[string]interface{}{"error": err.Error()})
	} else if len(files) > 0 {
		log.Debug("loaded .env", map[string]interface{}{"files": files})
	}

	cfgLoader := config.NewFileLoader(opts.ConfigPath)
	cfg, err := cfgLoader.Load(ctx)
	if err != nil {
		return nil, err
	}
	limit, err := domain.Dollars(cfg.Budget.DailyLimit)
	if err != nil {
		return nil, domain.NewValidationError("budget.daily_limit", err.Error())
	}

	c := &Container{
		Config:         cfg,
		ConfigProvider: cfgLoader,
		ConfigLoader:   cfgLoader,
		Logger:         log,
		Metrics:        metrics.New(),
		APIKey:         config.APIKey(cfg),
	}

	store, err := c.openLedgerStore(cfg.Ledger)
	if err != nil {
		return nil, err
	}
	c.LedgerStore = store
	c.Ledger = ledger.New(store, ledger.Options{Limit: limit, HoldTTL: cfg.Budget.ReservationTTL()})

	if cfg.History.Enabled {
		c.HistoryStore = c.openHistory(cfg.History.Path)
	}

	c.Library = library.NewFileLibrary(cfg.Library.Path)

	presets, err := prompt.DefaultPresets()
	if err != nil {
		return nil, err
	}
	c.Composer = prompt.NewComposer(presets)
	c.Parser = intent.NewParser(intent.Vocabulary{
		Genres:  presets.GenreNames(),
		Styles:  presets.StyleNames(),
		Regions: presets.RegionNames(),
	})

	client := fal.NewClient(fal.Options{
		Endpoint:      cfg.API.Endpoint,
		EditEndpoint:  cfg.API.EditEndpoint,
		SubmitTimeout: cfg.API.SubmitTimeout(),
		PollTimeout:   cfg.API.PollTimeout(),
		Logger:        log,
	})
	poller := generate.NewPoller(client, log, c.Metrics)
	poller.TransientRetries = cfg.Polling.TransientRetries

	c.Generator = &generate.Service{
		Transport: client,
		Poller:    poller,
		Fetcher:   artifact.NewFetcher(artifact.Options{Timeout: cfg.Download.Timeout(), Logger: log}),
		Ledger:    c.Ledger,
		History:   c.HistoryStore,
		Metrics:   c.Metrics,
		Logger:    log,

		SubmitTimeout:   cfg.API.SubmitTimeout(),
		DownloadTimeout: cfg.Download.Timeout(),
	}
	c.BatchRunner = &batch.Runner{
		Lifecycle: c.Generator,
		Workers:   cfg.Generation.BatchWorkers,
		Logger:    log,
	}
	c.DoctorService = &doctor.Service{
		ConfigProvider: cfgLoader,
		LedgerStore:    store,
		History:        c.HistoryStore,
	}
	return c, nil
}

func (c *Container) openLedgerStore(settings domain.LedgerSettings) (ports.LedgerStore, error) {
	switch strings.ToLower(settings.Backend) {
	case "", domain.LedgerBackendFile:
		return ledgerstore.NewFileStore(settings.Path), nil
	case domain.LedgerBackendSQLite:
		store, err := ledgerstore.OpenSQLiteStore(settings.Path)
		if err != nil {
			return nil, fmt.Errorf("open ledger: %w", err)
		}
		c.closers = append(c.closers, store)
		return store, nil
	default:
		return nil, domain.NewValidationError("ledger.backend", fmt.Sprintf("unknown backend %q", settings.Backend))
	}
}

func (c *Container) openHistory(path string) ports.HistoryRepository {
	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		return history.NewFileStore(path)
	}
	store := history.NewSQLiteStore(path)
	c.closers = append(c.closers, store)
	return store
}

// Close flushes metrics and releases database handles.
func (c *Container) Close() error {
	var errs []error
	if c.Metrics != nil {
		if err := c.Metrics.WriteTextfile(c.Config.Metrics.Textfile); err != nil {
			errs = append(errs, fmt.Errorf("write metrics: %w", err))
		}
	}
	for _, closer := range c.closers {
		if err := closer.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
