package generate

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/ports"
)

// DefaultRetryBackoff is the pause before each transient retry of a status check.
var DefaultRetryBackoff = []time.Duration{250 * time.Millisecond, 500 * time.Millisecond, 1 * time.Second}

// Poller implements ports.JobPoller with fixed-interval polling.
type Poller struct {
	Transport        ports.Transport
	Logger           ports.Logger
	Metrics          ports.MetricsRecorder
	TransientRetries int
	RetryBackoff     []time.Duration
}

// NewPoller builds a Poller with the default retry policy.
func NewPoller(transport ports.Transport, logger ports.Logger, metrics ports.MetricsRecorder) *Poller {
	return &Poller{
		Transport:        transport,
		Logger:           logger,
		Metrics:          metrics,
		TransientRetries: domain.DefaultTransientRetries,
		RetryBackoff:     DefaultRetryBackoff,
	}
}

// Await polls until the job succeeds, fails, exceeds MaxWait or ctx is
// cancelled. Timeouts and cancellation are reported as result statuses with a
// nil error; the error is non-nil only for terminal auth or validation failures.
func (p *Poller) Await(ctx context.Context, handle domain.JobHandle, settings domain.PollSettings) (domain.GenerationResult, error) {
	maxWait := settings.MaxWait
	if maxWait <= 0 {
		maxWait = domain.DefaultMaxWait
	}
	interval := settings.Interval
	if interval <= 0 {
		interval = domain.DefaultPollInterval
	}

	started := time.Now()
	deadline := started.Add(maxWait)
	waitCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	attempts := 0
	for {
		attempts++
		status, err := p.check(waitCtx, handle)

		if ctx.Err() != nil {
			return domain.NewPollResult(domain.ResultCancelled, nil, "cancelled while polling", attempts), nil
		}
		if err != nil {
			if !domain.IsTransient(err) && !errors.Is(err, context.DeadlineExceeded) {
				p.log().Warn("poll failed", map[string]interface{}{"request_id": handle.RequestID, "attempt": attempts, "error": err.Error()})
				return domain.NewPollResult(domain.ResultFailed, nil, err.Error(), attempts), err
			}
			p.log().Warn("poll attempt failed, retries exhausted", map[string]interface{}{"request_id": handle.RequestID, "attempt": attempts, "error": err.Error()})
		} else {
			p.log().Debug("job status", map[string]interface{}{
				"request_id":     handle.RequestID,
				"attempt":        attempts,
				"state":          status.State.String(),
				"queue_position": status.QueuePosition,
			})
			if settings.OnStatus != nil {
				settings.OnStatus(domain.Progress{
					Phase:         domain.PhasePolling,
					State:         status.State,
					QueuePosition: status.QueuePosition,
					Attempt:       attempts,
					Elapsed:       time.Since(started),
				})
			}
			switch status.State {
			case domain.JobSucceeded:
				return domain.NewPollResult(domain.ResultSucceeded, status.ArtifactURLs, status.Detail, attempts), nil
			case domain.JobFailed:
				return domain.NewPollResult(domain.ResultFailed, nil, status.Detail, attempts), nil
			}
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return domain.NewPollResult(domain.ResultTimedOut, nil, fmt.Sprintf("no result after %s", maxWait), attempts), nil
		}
		if err := sleep(waitCtx, min(interval, remaining)); err != nil {
			if ctx.Err() != nil {
				return domain.NewPollResult(domain.ResultCancelled, nil, "cancelled while polling", attempts), nil
			}
			return domain.NewPollResult(domain.ResultTimedOut, nil, fmt.Sprintf("no result after %s", maxWait), attempts), nil
		}
	}
}

// check performs one logical poll: a status check plus up to TransientRetries
// retries of transport or rate-limit failures.
func (p *Poller) check(ctx context.Context, handle domain.JobHandle) (domain.JobStatus, error) {
	for retry := 0; ; retry++ {
		if p.Metrics != nil {
			p.Metrics.IncPollAttempt()
		}
		status, err := p.Transport.PollStatus(ctx, handle)
		if err == nil {
			return status, nil
		}
		if p.Metrics != nil {
			p.Metrics.IncTransportError(domain.Classify(err))
		}
		if !domain.IsTransient(err) || retry >= p.TransientRetries {
			return domain.JobStatus{}, err
		}
		p.log().Debug("transient poll error, retrying", map[string]interface{}{"request_id": handle.RequestID, "retry": retry + 1, "error": err.Error()})
		if err := sleep(ctx, p.backoff(retry)); err != nil {
			return domain.JobStatus{}, err
		}
	}
}

func (p *Poller) backoff(retry int) time.Duration {
	if len(p.RetryBackoff) == 0 {
		return 0
	}
	if retry >= len(p.RetryBackoff) {
		return p.RetryBackoff[len(p.RetryBackoff)-1]
	}
	return p.RetryBackoff[retry]
}

func (p *Poller) log() ports.Logger {
	if p.Logger == nil {
		return nopLogger{}
	}
	return p.Logger
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

type nopLogger struct{}

func (nopLogger) Debug(string, map[string]interface{})        {}
func (nopLogger) Info(string, map[string]interface{})         {}
func (nopLogger) Warn(string, map[string]interface{})         {}
func (nopLogger) Error(string, error, map[string]interface{}) {}

var _ ports.JobPoller = (*Poller)(nil)
