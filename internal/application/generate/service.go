// Package generate runs the cover generation lifecycle: estimate, gate,
// reserve budget, submit, poll, download and charge.
package generate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/ports"
)

// Service orchestrates one generation lifecycle per Run call. It holds no
// per-run state, so a single Service may serve concurrent runs.
type Service struct {
	Transport ports.Transport
	Poller    ports.JobPoller
	Fetcher   ports.ArtifactFetcher
	Ledger    ports.BudgetLedger
	History   ports.HistoryRepository
	Metrics   ports.MetricsRecorder
	Logger    ports.Logger
	Clock     func() time.Time
	NewID     func() string

	// SubmitTimeout and DownloadTimeout size the budget hold of a run.
	SubmitTimeout   time.Duration
	DownloadTimeout time.Duration
}

// RunRequest is the input of one lifecycle.
type RunRequest struct {
	Request   domain.GenerationRequest
	Gate      domain.Confirmation
	APIKey    string
	OutputDir string
	BaseName  string
	Poll      domain.PollSettings
	// Progress, when set, is told about each phase and every status check.
	Progress func(domain.Progress)
}

// Estimate prices a request. It never touches the network or the ledger.
func (s *Service) Estimate(req domain.GenerationRequest) domain.Estimate {
	return domain.EstimateCost(req)
}

// Preview returns the estimate together with today's remaining budget.
func (s *Service) Preview(ctx context.Context, req domain.GenerationRequest) (domain.Estimate, domain.Money, error) {
	est := s.Estimate(req)
	remaining, err := s.Ledger.RemainingBudget(ctx, domain.DateOf(s.now()))
	if err != nil {
		return est, domain.ZeroMoney, err
	}
	return est, remaining, nil
}

// Run executes the lifecycle. Without a Confirmed gate it only reports the
// estimate. The returned manifest is populated as far as the run got, even
// when an error is returned.
func (s *Service) Run(ctx context.Context, rr RunRequest) (manifest domain.Manifest, err error) {
	started := s.now()
	today := domain.DateOf(started)
	manifest = domain.Manifest{
		CorrelationID: s.newID(),
		Gate:          rr.Gate.String(),
		Request:       rr.Request,
		Estimate:      s.Estimate(rr.Request),
		Limit:         s.Ledger.Limit(),
	}
	fields := map[string]interface{}{
		"correlation_id": manifest.CorrelationID,
		"resolution":     string(rr.Request.Resolution),
		"images":         manifest.Estimate.Images,
		"estimate":       manifest.Estimate.Total.StringFixed(2),
	}
	defer func() {
		if manifest.Job != nil {
			// Runs after the hold is settled, so the figure reflects the final charge.
			if rem, remErr := s.Ledger.RemainingBudget(context.WithoutCancel(ctx), today); remErr == nil {
				manifest.Remaining = rem
			}
		}
		manifest.Duration = s.now().Sub(started)
		s.metrics().ObserveLifecycle(manifest.Stage, manifest.Duration)
	}()

	if rr.Gate != domain.Confirmed {
		manifest.Stage = domain.StageReportedOnly
		remaining, err := s.Ledger.RemainingBudget(ctx, today)
		if err != nil {
			return manifest, fmt.Errorf("read budget: %w", err)
		}
		manifest.Remaining = remaining
		s.log().Info("dry run, nothing submitted", fields)
		return manifest, nil
	}

	if rr.APIKey == "" {
		manifest.Stage = domain.StageRejected
		return manifest, &domain.APIError{Kind: domain.ErrAuth, Op: "submit", Detail: "missing API key (set FAL_KEY)"}
	}

	hold, err := s.Ledger.Reserve(ctx, today, manifest.Estimate.Total, manifest.CorrelationID, s.holdLifetime(rr))
	if err != nil {
		manifest.Stage = domain.StageRejected
		var budgetErr *domain.BudgetError
		if errors.As(err, &budgetErr) {
			manifest.Remaining = budgetErr.Remaining()
		}
		s.log().Warn("generation rejected", mergeFields(fields, map[string]interface{}{"error": err.Error()}))
		return manifest, fmt.Errorf("reserve budget: %w", err)
	}
	settled := false
	defer func() {
		if settled {
			return
		}
		if relErr := s.Ledger.Release(context.WithoutCancel(ctx), hold); relErr != nil {
			s.log().Error("release budget hold", relErr, fields)
		}
	}()

	rr.report(domain.Progress{Phase: domain.PhaseSubmitting})
	handle, err := s.Transport.Submit(ctx, rr.Request, rr.APIKey)
	if err != nil {
		manifest.Stage = domain.StageFailed
		s.metrics().IncTransportError(domain.Classify(err))
		s.log().Error("submit failed", err, fields)
		return manifest, fmt.Errorf("submit: %w", err)
	}
	manifest.Job = &handle
	defer s.Transport.Forget(handle)
	fields["request_id"] = handle.RequestID
	s.log().Info("job submitted", fields)

	// Everything past submission is recorded in history, whatever the outcome.
	defer func() {
		s.recordHistory(manifest, started, err)
	}()

	poll := rr.Poll
	if rr.Progress != nil && poll.OnStatus == nil {
		poll.OnStatus = rr.Progress
	}
	result, err := s.Poller.Await(ctx, handle, poll)
	manifest.Result = &result
	switch result.Status {
	case domain.ResultCancelled:
		manifest.Stage = domain.StageCancelled
		return manifest, fmt.Errorf("job %s: %w", handle.RequestID, domain.ErrCancelled)
	case domain.ResultTimedOut:
		manifest.Stage = domain.StageTimedOut
		return manifest, fmt.Errorf("job %s: %s: %w", handle.RequestID, result.Detail, domain.ErrTimedOut)
	case domain.ResultFailed:
		manifest.Stage = domain.StageFailed
		if err != nil {
			return manifest, fmt.Errorf("poll job %s: %w", handle.RequestID, err)
		}
		return manifest, fmt.Errorf("job %s: %s: %w", handle.RequestID, result.Detail, domain.ErrJobFailed)
	}
	if len(result.ArtifactURLs) == 0 {
		manifest.Stage = domain.StageFailed
		return manifest, fmt.Errorf("job %s completed without images: %w", handle.RequestID, domain.ErrJobFailed)
	}

	rr.report(domain.Progress{Phase: domain.PhaseDownloading, State: domain.JobSucceeded, Attempt: result.PollAttempts})
	// Downloads are already paid for, so they run to completion even if the caller cancels.
	artifacts, fetchErr := s.Fetcher.Fetch(context.WithoutCancel(ctx), result.ArtifactURLs, domain.ArtifactTarget{
		Dir:      rr.OutputDir,
		BaseName: rr.BaseName,
		Format:   rr.Request.OutputFormat,
	})
	delivered := len(artifacts)
	cost := domain.CostFor(rr.Request.Resolution, delivered)
	paths := make([]string, 0, delivered)
	for _, a := range artifacts {
		paths = append(paths, a.Path)
	}
	delivery := result.WithDelivery(paths, cost)
	manifest.Result = &delivery
	manifest.Artifacts = artifacts
	manifest.Missing = domain.MissingIndices(delivered, len(result.ArtifactURLs))

	if delivered == 0 {
		manifest.Stage = domain.StageFailed
		if fetchErr == nil {
			fetchErr = &domain.DownloadError{Index: 1, URL: result.ArtifactURLs[0], Err: errors.New("no artifacts written")}
		}
		return manifest, fmt.Errorf("job %s: %w", handle.RequestID, fetchErr)
	}

	if err := s.Ledger.Commit(context.WithoutCancel(ctx), hold, cost, delivered); err != nil {
		manifest.Stage = domain.StageFailed
		s.log().Error("record cost", err, fields)
		return manifest, fmt.Errorf("record cost: %w", err)
	}
	settled = true
	s.metrics().AddImages(delivered)
	s.metrics().AddSpend(cost)

	manifest.Stage = domain.StageCompleted
	if fetchErr != nil {
		manifest.Stage = domain.StagePartial
		s.log().Warn("partial delivery", mergeFields(fields, map[string]interface{}{"delivered": delivered, "missing": manifest.Missing}))
		return manifest, fmt.Errorf("job %s: delivered %d of %d: %w", handle.RequestID, delivered, len(result.ArtifactURLs), fetchErr)
	}
	s.log().Info("generation completed", mergeFields(fields, map[string]interface{}{"delivered": delivered, "cost": cost.StringFixed(2)}))
	return manifest, nil
}

func (rr RunRequest) report(p domain.Progress) {
	if rr.Progress != nil {
		rr.Progress(p)
	}
}

func (s *Service) recordHistory(m domain.Manifest, started time.Time, runErr error) {
	if s.History == nil {
		return
	}
	m.Duration = s.now().Sub(started)
	if err := s.History.Save(domain.HistoryFromManifest(m, s.now(), runErr)); err != nil {
		s.log().Warn("save history", map[string]interface{}{"error": err.Error(), "correlation_id": m.CorrelationID})
	}
}

func (s *Service) now() time.Time {
	if s.Clock != nil {
		return s.Clock()
	}
	return time.Now()
}

func (s *Service) newID() string {
	if s.NewID != nil {
		return s.NewID()
	}
	return uuid.NewString()
}

func (s *Service) log() ports.Logger {
	if s.Logger == nil {
		return nopLogger{}
	}
	return s.Logger
}

func (s *Service) metrics() ports.MetricsRecorder {
	if s.Metrics == nil {
		return nopMetrics{}
	}
	return s.Metrics
}

func mergeFields(base, extra map[string]interface{}) map[string]interface{} {
	out := make(map[string]interface{}, len(base)+len(extra))
	for k, v := range base {
		out[k] = v
	}
	for k, v := range extra {
		out[k] = v
	}
	return out
}

type nopMetrics struct{}

func (nopMetrics) ObserveLifecycle(domain.Stage, time.Duration) {}
func (nopMetrics) AddImages(int)                                {}
func (nopMetrics) AddSpend(domain.Money)                        {}
func (nopMetrics) IncPollAttempt()                              {}
func (nopMetrics) IncTransportError(domain.ErrorKind)           {}

// holdLifetime is the longest a run can take between Reserve and settling the
// hold: one submission, the full poll window and every download, plus slack.
func (s *Service) holdLifetime(rr RunRequest) time.Duration {
	images := domain.ClampVariations(rr.Request.NumVariations)
	if !rr.Request.LimitGenerations {
		images = domain.MaxVariations
	}
	submit := durationOr(s.SubmitTimeout, domain.DefaultSubmitTimeout)
	wait := durationOr(rr.Poll.MaxWait, domain.DefaultMaxWait)
	download := durationOr(s.DownloadTimeout, domain.DefaultDownloadTimeout)
	return submit + wait + time.Duration(images)*download + domain.ReservationSlack
}

func durationOr(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}
