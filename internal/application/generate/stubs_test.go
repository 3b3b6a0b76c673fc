package generate

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/doeshing/afcover/internal/domain"
)

// scriptedTransport replays a fixed sequence of poll responses.
type scriptedTransport struct {
	mu        sync.Mutex
	submitErr error
	steps     []pollStep
	submits   atomic.Int32
	polls     atomic.Int32
	forgets   atomic.Int32
	// onPoll runs before every status check.
	onPoll func()
}

type pollStep struct {
	status domain.JobStatus
	err    error
}

func running() pollStep { return pollStep{status: domain.JobStatus{State: domain.JobRunning}} }

func succeeded(urls ...string) pollStep {
	return pollStep{status: domain.JobStatus{State: domain.JobSucceeded, ArtifactURLs: urls}}
}

func transient() pollStep {
	return pollStep{err: &domain.APIError{Kind: domain.ErrTransport, Op: "poll", Err: errors.New("connection reset")}}
}

func (s *scriptedTransport) Submit(ctx context.Context, req domain.GenerationRequest, apiKey string) (domain.JobHandle, error) {
	s.submits.Add(1)
	if s.submitErr != nil {
		return domain.JobHandle{}, s.submitErr
	}
	return domain.JobHandle{RequestID: "req-1", StatusURL: "https://queue.example/req-1/status"}, nil
}

func (s *scriptedTransport) PollStatus(ctx context.Context, handle domain.JobHandle) (domain.JobStatus, error) {
	n := int(s.polls.Add(1)) - 1
	if s.onPoll != nil {
		s.onPoll()
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.steps) == 0 {
		return domain.JobStatus{State: domain.JobQueued}, nil
	}
	if n >= len(s.steps) {
		n = len(s.steps) - 1
	}
	step := s.steps[n]
	return step.status, step.err
}

func (s *scriptedTransport) Forget(domain.JobHandle) { s.forgets.Add(1) }

// stubFetcher pretends to download the first `deliver` URLs.
type stubFetcher struct {
	deliver int
	calls   atomic.Int32
	ctxErr  error
}

func (f *stubFetcher) Fetch(ctx context.Context, urls []string, target domain.ArtifactTarget) ([]domain.Artifact, error) {
	f.calls.Add(1)
	f.ctxErr = ctx.Err()
	n := len(urls)
	if f.deliver >= 0 && f.deliver < n {
		n = f.deliver
	}
	var out []domain.Artifact
	for i := 0; i < n; i++ {
		out = append(out, domain.Artifact{Index: i + 1, URL: urls[i], Path: fmt.Sprintf("%s/%s-%d.%s", target.Dir, target.BaseName, i+1, target.Format.Extension())})
	}
	if n < len(urls) {
		return out, &domain.DownloadError{Index: n + 1, URL: urls[n], Err: errors.New("404")}
	}
	return out, nil
}

// spyLedger records calls without enforcing anything.
type spyLedger struct {
	mu         sync.Mutex
	reserves   int
	commits    int
	releases   int
	charged    domain.Money
	images     int
	lifetime   time.Duration
	reserveErr error
}

func (l *spyLedger) Limit() domain.Money { return domain.MustDollars("5.00") }

func (l *spyLedger) RemainingBudget(context.Context, domain.Date) (domain.Money, error) {
	return domain.MustDollars("5.00"), nil
}

func (l *spyLedger) Reserve(_ context.Context, date domain.Date, amount domain.Money, ref string, lifetime time.Duration) (domain.Hold, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.reserves++
	l.lifetime = lifetime
	if l.reserveErr != nil {
		return domain.Hold{}, l.reserveErr
	}
	return domain.Hold{ID: "hold-1", Date: date, Amount: amount}, nil
}

func (l *spyLedger) Commit(_ context.Context, _ domain.Hold, cost domain.Money, images int) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.commits++
	l.charged = cost
	l.images = images
	return nil
}

func (l *spyLedger) Release(context.Context, domain.Hold) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.releases++
	return nil
}

type memoryHistory struct {
	mu      sync.Mutex
	records []domain.HistoryRecord
}

func (h *memoryHistory) Save(r domain.HistoryRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.records = append(h.records, r)
	return nil
}

func (h *memoryHistory) Records(int, string) ([]domain.HistoryRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]domain.HistoryRecord(nil), h.records...), nil
}

func (h *memoryHistory) Clear() error            { return nil }
func (h *memoryHistory) ExportJSON(string) error { return nil }
func (h *memoryHistory) Path() string            { return "memory" }
