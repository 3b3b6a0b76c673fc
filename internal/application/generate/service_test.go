package generate

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/afcover/internal/application/ledger"
	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/infrastructure/ledgerstore"
	"github.com/doeshing/afcover/internal/ports"
)

type fixture struct {
	transport *scriptedTransport
	fetcher   *stubFetcher
	history   *memoryHistory
	service   *Service
}

func newFixture(t *testing.T, budget ports.BudgetLedger, steps ...pollStep) *fixture {
	t.Helper()
	tr := &scriptedTransport{steps: steps}
	f := &fixture{
		transport: tr,
		fetcher:   &stubFetcher{deliver: -1},
		history:   &memoryHistory{},
	}
	f.service = &Service{
		Transport: tr,
		Poller:    newTestPoller(tr),
		Fetcher:   f.fetcher,
		Ledger:    budget,
		History:   f.history,
		NewID:     func() string { return "corr-1" },
	}
	return f
}

func runRequest(t *testing.T, res string, n int, gate domain.Confirmation) RunRequest {
	t.Helper()
	req, err := domain.NewGenerationRequest("watan album cover", domain.RequestOptions{Resolution: res, NumVariations: n})
	require.NoError(t, err)
	return RunRequest{
		Request:   req,
		Gate:      gate,
		APIKey:    "fal-key",
		OutputDir: "/out",
		BaseName:  "watan",
		Poll:      fastPoll,
	}
}

func memoryLedger(limit string) *ledger.CostLedger {
	return ledger.New(ledgerstore.NewMemoryStore(), ledger.Options{Limit: domain.MustDollars(limit)})
}

func TestService_DryRunNeverSubmitsOrRecords(t *testing.T) {
	spy := &spyLedger{}
	f := newFixture(t, spy, succeeded("u1"))

	m, err := f.service.Run(context.Background(), runRequest(t, "4K", 2, domain.DryRun))
	require.NoError(t, err)

	assert.Equal(t, domain.StageReportedOnly, m.Stage)
	assert.Equal(t, "$0.60", domain.FormatUSD(m.Estimate.Total))
	assert.Equal(t, "$5.00", domain.FormatUSD(m.Remaining))
	assert.Nil(t, m.Job)
	assert.Zero(t, f.transport.submits.Load())
	assert.Zero(t, spy.reserves)
	assert.Zero(t, spy.commits)
	assert.Empty(t, f.history.records)
}

func TestService_EndToEndOneImage(t *testing.T) {
	l := memoryLedger("5.00")
	f := newFixture(t, l, running(), succeeded("https://cdn/a.png"))
	ctx := context.Background()

	m, err := f.service.Run(ctx, runRequest(t, "1K", 1, domain.Confirmed))
	require.NoError(t, err)

	assert.Equal(t, domain.StageCompleted, m.Stage)
	require.NotNil(t, m.Result)
	assert.Equal(t, domain.ResultSucceeded, m.Result.Status)
	assert.Equal(t, []string{"/out/watan-1.png"}, m.Result.LocalPaths)
	assert.Equal(t, "$0.15", domain.FormatUSD(m.Result.ActualCost))
	assert.Equal(t, "$4.85", domain.FormatUSD(m.Remaining))

	entry, err := l.Entry(ctx, l.Today())
	require.NoError(t, err)
	assert.Equal(t, "$0.15", domain.FormatUSD(entry.TotalSpent))
	assert.Equal(t, 1, entry.ImageCount)
	assert.Equal(t, 1, entry.GenerationCount)

	require.Len(t, f.history.records, 1)
	assert.Equal(t, "req-1", f.history.records[0].RequestID)
	assert.Equal(t, domain.StageCompleted, f.history.records[0].Stage)
}

func TestService_ChargesDeliveredNotRequested(t *testing.T) {
	spy := &spyLedger{}
	f := newFixture(t, spy, succeeded("u1", "u2"))

	m, err := f.service.Run(context.Background(), runRequest(t, "1K", 3, domain.Confirmed))
	require.NoError(t, err)

	assert.Equal(t, "$0.45", domain.FormatUSD(m.Estimate.Total))
	assert.Equal(t, "$0.30", domain.FormatUSD(spy.charged))
	assert.Equal(t, 2, spy.images)
	assert.Equal(t, 1, spy.commits)
	assert.Zero(t, spy.releases)
}

func TestService_PartialDownloadChargesDeliveredAndReportsMissing(t *testing.T) {
	spy := &spyLedger{}
	f := newFixture(t, spy, succeeded("u1", "u2", "u3"))
	f.fetcher.deliver = 2

	m, err := f.service.Run(context.Background(), runRequest(t, "4K", 3, domain.Confirmed))
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrDownload)

	assert.Equal(t, domain.StagePartial, m.Stage)
	assert.Equal(t, []int{3}, m.Missing)
	assert.Len(t, m.Result.LocalPaths, 2)
	assert.Equal(t, "$0.60", domain.FormatUSD(spy.charged))
}

func TestService_NothingDownloadedIsNotCharged(t *testing.T) {
	spy := &spyLedger{}
	f := newFixture(t, spy, succeeded("u1"))
	f.fetcher.deliver = 0

	m, err := f.service.Run(context.Background(), runRequest(t, "1K", 1, domain.Confirmed))
	assert.ErrorIs(t, err, domain.ErrDownload)
	assert.Equal(t, domain.StageFailed, m.Stage)
	assert.Zero(t, spy.commits)
	assert.Equal(t, 1, spy.releases)
}

func TestService_NonChargingOutcomes(t *testing.T) {
	tests := []struct {
		name  string
		steps []pollStep
		poll  domain.PollSettings
		stage domain.Stage
		err   error
	}{
		{
			name:  "timeout",
			steps: []pollStep{running()},
			poll:  domain.PollSettings{MaxWait: 40 * time.Millisecond, Interval: 10 * time.Millisecond},
			stage: domain.StageTimedOut,
			err:   domain.ErrTimedOut,
		},
		{
			name:  "remote failure",
			steps: []pollStep{{status: domain.JobStatus{State: domain.JobFailed, Detail: "content policy"}}},
			poll:  fastPoll,
			stage: domain.StageFailed,
			err:   domain.ErrJobFailed,
		},
		{
			name:  "completed without images",
			steps: []pollStep{succeeded()},
			poll:  fastPoll,
			stage: domain.StageFailed,
			err:   domain.ErrJobFailed,
		},
		{
			name:  "auth error while polling",
			steps: []pollStep{{err: &domain.APIError{Kind: domain.ErrAuth, StatusCode: 403}}},
			poll:  fastPoll,
			stage: domain.StageFailed,
			err:   domain.ErrAuth,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := memoryLedger("5.00")
			f := newFixture(t, l, tt.steps...)
			rr := runRequest(t, "1K", 1, domain.Confirmed)
			rr.Poll = tt.poll

			m, err := f.service.Run(context.Background(), rr)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.err)
			assert.Equal(t, tt.stage, m.Stage)
			assert.Zero(t, f.fetcher.calls.Load())

			entry, err := l.Entry(context.Background(), l.Today())
			require.NoError(t, err)
			assert.True(t, entry.TotalSpent.IsZero())
			assert.Zero(t, entry.GenerationCount)
			assert.Equal(t, "$5.00", domain.FormatUSD(m.Remaining), "hold released")

			require.Len(t, f.history.records, 1)
			assert.Equal(t, tt.stage, f.history.records[0].Stage)
			assert.Equal(t, int32(1), f.transport.forgets.Load(), "per-job transport state dropped")
		})
	}
}

func TestService_CancelledWhilePolling(t *testing.T) {
	spy := &spyLedger{}
	f := newFixture(t, spy, running())
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	m, err := f.service.Run(ctx, runRequest(t, "1K", 1, domain.Confirmed))
	assert.ErrorIs(t, err, domain.ErrCancelled)
	assert.Equal(t, domain.KindCancelled, domain.Classify(err))
	assert.Equal(t, domain.StageCancelled, m.Stage)
	assert.Zero(t, spy.commits)
	assert.Equal(t, 1, spy.releases)
	assert.Equal(t, int32(1), f.transport.forgets.Load())
}

func TestService_BudgetRejectionSkipsNetwork(t *testing.T) {
	l := memoryLedger("5.00")
	ctx := context.Background()
	require.NoError(t, l.Record(ctx, l.Today(), domain.MustDollars("4.95"), 33))
	f := newFixture(t, l, succeeded("u1"))

	m, err := f.service.Run(ctx, runRequest(t, "1K", 1, domain.Confirmed))
	require.Error(t, err)
	assert.Equal(t, domain.KindBudget, domain.Classify(err))
	assert.Equal(t, domain.StageRejected, m.Stage)
	assert.Equal(t, "$0.05", domain.FormatUSD(m.Remaining))
	assert.Zero(t, f.transport.submits.Load())
	assert.Empty(t, f.history.records)
}

func TestService_MissingKeyIsAuthError(t *testing.T) {
	spy := &spyLedger{}
	f := newFixture(t, spy, succeeded("u1"))
	rr := runRequest(t, "1K", 1, domain.Confirmed)
	rr.APIKey = ""

	_, err := f.service.Run(context.Background(), rr)
	assert.Equal(t, domain.KindAuth, domain.Classify(err))
	assert.Zero(t, spy.reserves)
	assert.Zero(t, f.transport.submits.Load())
}

func TestService_SubmitFailureReleasesHold(t *testing.T) {
	spy := &spyLedger{}
	f := newFixture(t, spy)
	f.transport.submitErr = &domain.APIError{Kind: domain.ErrRateLimited, Op: "submit", StatusCode: 429}

	m, err := f.service.Run(context.Background(), runRequest(t, "1K", 1, domain.Confirmed))
	assert.Equal(t, domain.KindRateLimit, domain.Classify(err))
	assert.Equal(t, domain.StageFailed, m.Stage)
	assert.Equal(t, 1, spy.reserves)
	assert.Equal(t, 1, spy.releases)
	assert.Zero(t, spy.commits)
	assert.Zero(t, f.transport.forgets.Load())
}

func TestService_HoldCoversWholeLifecycle(t *testing.T) {
	tests := []struct {
		name       string
		variations int
		allowExtra bool
		maxWait    time.Duration
		want       time.Duration
	}{
		{name: "two images", variations: 2, maxWait: 40 * time.Minute, want: 2*time.Minute + 40*time.Minute + 2*time.Minute + domain.ReservationSlack},
		{name: "extra images allowed", variations: 1, allowExtra: true, maxWait: 10 * time.Minute, want: 2*time.Minute + 10*time.Minute + 4*time.Minute + domain.ReservationSlack},
		{name: "default max wait", variations: 1, want: 2*time.Minute + domain.DefaultMaxWait + time.Minute + domain.ReservationSlack},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			spy := &spyLedger{}
			f := newFixture(t, spy, succeeded("u1"))
			f.service.SubmitTimeout = 2 * time.Minute
			f.service.DownloadTimeout = time.Minute

			req, err := domain.NewGenerationRequest("watan album cover", domain.RequestOptions{NumVariations: tt.variations, AllowExtraImages: tt.allowExtra})
			require.NoError(t, err)
			rr := runRequest(t, "1K", 1, domain.Confirmed)
			rr.Request = req
			rr.Poll = domain.PollSettings{MaxWait: tt.maxWait, Interval: 5 * time.Millisecond}

			_, err = f.service.Run(context.Background(), rr)
			require.NoError(t, err)
			assert.Equal(t, tt.want, spy.lifetime)
		})
	}
}

func TestService_SlowJobKeepsItsBudgetHold(t *testing.T) {
	now := time.Date(2026, 10, 18, 14, 0, 0, 0, time.Local)
	var mu sync.Mutex
	clock := func() time.Time {
		mu.Lock()
		defer mu.Unlock()
		return now
	}
	l := ledger.New(ledgerstore.NewMemoryStore(), ledger.Options{Limit: domain.MustDollars("0.30"), Clock: clock})
	f := newFixture(t, l, running(), succeeded("u1", "u2"))
	f.service.Clock = clock
	rr := runRequest(t, "1K", 2, domain.Confirmed)
	rr.Poll = domain.PollSettings{MaxWait: time.Hour, Interval: 5 * time.Millisecond}

	// While the first job is still polling, well past the default hold TTL,
	// a second lifecycle asks for the same budget.
	var competing error
	f.transport.onPoll = func() {
		if f.transport.polls.Load() != 1 {
			return
		}
		mu.Lock()
		now = now.Add(domain.DefaultReservationTTL + time.Minute)
		mu.Unlock()
		_, competing = l.Reserve(context.Background(), l.Today(), domain.MustDollars("0.30"), "competing", 0)
	}

	m, err := f.service.Run(context.Background(), rr)
	require.NoError(t, err)
	assert.Equal(t, domain.StageCompleted, m.Stage)
	require.Error(t, competing)
	assert.ErrorIs(t, competing, domain.ErrBudgetExceeded)

	entry, err := l.Entry(context.Background(), l.Today())
	require.NoError(t, err)
	assert.Equal(t, "$0.30", domain.FormatUSD(entry.TotalSpent))
	assert.True(t, entry.TotalSpent.LessThanOrEqual(l.Limit()))
}

func TestService_Preview(t *testing.T) {
	l := memoryLedger("2.00")
	f := newFixture(t, l)
	rr := runRequest(t, "4K", 4, domain.DryRun)

	est, remaining, err := f.service.Preview(context.Background(), rr.Request)
	require.NoError(t, err)
	assert.Equal(t, "$1.20", domain.FormatUSD(est.Total))
	assert.Equal(t, "$2.00", domain.FormatUSD(remaining))
	assert.Equal(t, est, f.service.Estimate(rr.Request))
}

func TestService_ReportsProgress(t *testing.T) {
	f := newFixture(t, memoryLedger("5.00"), pollStep{status: domain.JobStatus{State: domain.JobQueued, QueuePosition: 2}}, running(), succeeded("u1"))
	rr := runRequest(t, "1K", 1, domain.Confirmed)
	var seen []domain.Progress
	rr.Progress = func(p domain.Progress) { seen = append(seen, p) }

	_, err := f.service.Run(context.Background(), rr)
	require.NoError(t, err)

	require.Len(t, seen, 5)
	assert.Equal(t, domain.PhaseSubmitting, seen[0].Phase)
	assert.Equal(t, domain.Progress{Phase: domain.PhasePolling, State: domain.JobQueued, QueuePosition: 2, Attempt: 1}, withoutElapsed(seen[1]))
	assert.Equal(t, domain.JobRunning, seen[2].State)
	assert.Equal(t, domain.JobSucceeded, seen[3].State)
	assert.Equal(t, 3, seen[3].Attempt)
	assert.Equal(t, domain.PhaseDownloading, seen[4].Phase)
}

func withoutElapsed(p domain.Progress) domain.Progress {
	p.Elapsed = 0
	return p
}
