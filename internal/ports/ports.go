// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// This package establishes the contract between the application core and external
// adapters (infrastructure). The lifecycle service only ever sees these interfaces,
// which lets tests swap the fal transport, the artifact fetcher and the ledger store
// for in-memory doubles.
//
// Key architectural concepts:
//   - Ports: Interfaces defined here (e.g., Transport, LedgerStore)
//   - Adapters: Concrete implementations in the infrastructure layer
//   - Dependency inversion: Application depends on abstractions, not implementations
package ports

import (
	"context"
	"time"

	"github.com/doeshing/afcover/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.afcover/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// Transport talks to the generation queue API.
// Submit must not loop or retry; PollStatus performs exactly one status check.
// Forget drops any per-job state once the caller stops polling.
type Transport interface {
	Submit(ctx context.Context, req domain.GenerationRequest, apiKey string) (domain.JobHandle, error)
	PollStatus(ctx context.Context, handle domain.JobHandle) (domain.JobStatus, error)
	Forget(handle domain.JobHandle)
}

// JobPoller waits for a submitted job to reach a terminal state.
// It never returns an error for timeouts or cancellation; those are result statuses.
type JobPoller interface {
	Await(ctx context.Context, handle domain.JobHandle, settings domain.PollSettings) (domain.GenerationResult, error)
}

// ArtifactFetcher downloads result URLs to local files.
// On failure it returns the artifacts written so far alongside a *domain.DownloadError.
type ArtifactFetcher interface {
	Fetch(ctx context.Context, urls []string, target domain.ArtifactTarget) ([]domain.Artifact, error)
}

// LedgerStore persists the ledger event log.
//
// Transact runs fn against a snapshot taken under an exclusive cross-process lock and
// appends the events fn returns before releasing it. Returning an error from fn appends
// nothing. Snapshot is a read-only view.
type LedgerStore interface {
	Transact(ctx context.Context, fn func(*domain.LedgerSnapshot) ([]domain.LedgerEvent, error)) error
	Snapshot(ctx context.Context) (domain.LedgerSnapshot, error)
	Location() string
}

// BudgetLedger is the budget gate consulted by the lifecycle service.
// Reserve keeps the hold active for at least lifetime, the longest the caller
// may take before it commits or releases.
type BudgetLedger interface {
	Limit() domain.Money
	RemainingBudget(ctx context.Context, date domain.Date) (domain.Money, error)
	Reserve(ctx context.Context, date domain.Date, amount domain.Money, ref string, lifetime time.Duration) (domain.Hold, error)
	Commit(ctx context.Context, hold domain.Hold, cost domain.Money, images int) error
	Release(ctx context.Context, hold domain.Hold) error
}

// HistoryRepository stores generation history records.
type HistoryRepository interface {
	Save(domain.HistoryRecord) error
	Records(limit int, search string) ([]domain.HistoryRecord, error)
	Clear() error
	ExportJSON(dest string) error
	Path() string
}

// ReferenceLibrary stores reference images grouped into artist and style
// collections. An empty kind means every kind. References returns
// domain.ErrCollectionNotFound for an unknown collection.
type ReferenceLibrary interface {
	Collections(kind domain.CollectionKind) ([]domain.Collection, error)
	References(kind domain.CollectionKind, name string) ([]string, error)
	Add(kind domain.CollectionKind, name, source string, opts domain.AddReference) (string, error)
	Remove(path string) error
	Metadata(kind domain.CollectionKind, name string) (domain.CollectionMeta, error)
	Search(query string, kind domain.CollectionKind, includeMetadata bool) ([]domain.Collection, error)
	Root() string
}

// PromptComposer turns structured cover parameters into a prompt string.
type PromptComposer interface {
	Compose(domain.CoverParams) (string, error)
}

// ConfirmationPrompter asks the user to approve a chargeable generation.
type ConfirmationPrompter interface {
	Confirm(estimate domain.Estimate, remaining domain.Money) (bool, error)
	Enabled() bool
}

// MetricsRecorder receives lifecycle observations. A nil recorder is never passed;
// use a no-op implementation instead.
type MetricsRecorder interface {
	ObserveLifecycle(stage domain.Stage, elapsed time.Duration)
	AddImages(n int)
	AddSpend(amount domain.Money)
	IncPollAttempt()
	IncTransportError(kind domain.ErrorKind)
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stdout, files, external services).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}
