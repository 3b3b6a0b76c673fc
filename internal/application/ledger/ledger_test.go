package ledger

import (
	"context"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/infrastructure/ledgerstore"
)

var (
	fixedNow = time.Date(2026, 10, 18, 14, 30, 0, 0, time.Local)
	today    = domain.DateOf(fixedNow)
)

func newTestLedger(t *testing.T, limit string) (*CostLedger, *time.Time) {
	t.Helper()
	now := fixedNow
	l := New(ledgerstore.NewMemoryStore(), Options{
		Limit: domain.MustDollars(limit),
		Clock: func() time.Time { return now },
	})
	return l, &now
}

func TestCostLedger_DefaultsAndEmptyDay(t *testing.T) {
	l := New(ledgerstore.NewMemoryStore(), Options{})
	assert.Equal(t, "$5.00", domain.FormatUSD(l.Limit()))

	rem, err := l.RemainingBudget(context.Background(), "2026-01-01")
	require.NoError(t, err)
	assert.True(t, rem.Equal(l.Limit()))
}

func TestCostLedger_RecordIncrementsEntry(t *testing.T) {
	l, _ := newTestLedger(t, "5.00")
	ctx := context.Background()

	require.NoError(t, l.Record(ctx, today, domain.MustDollars("0.15"), 1))
	require.NoError(t, l.Record(ctx, today, domain.MustDollars("0.60"), 4))

	entry, err := l.Entry(ctx, today)
	require.NoError(t, err)
	assert.True(t, entry.TotalSpent.Equal(domain.MustDollars("0.75")))
	assert.Equal(t, 2, entry.GenerationCount)
	assert.Equal(t, 5, entry.ImageCount)

	rem, err := l.RemainingBudget(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, "$4.25", domain.FormatUSD(rem))
}

func TestCostLedger_BudgetEnforcement(t *testing.T) {
	l, _ := newTestLedger(t, "5.00")
	ctx := context.Background()
	require.NoError(t, l.Record(ctx, today, domain.MustDollars("4.95"), 33))

	ok, err := l.CanAfford(ctx, today, domain.MustDollars("0.15"))
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = l.Reserve(ctx, today, domain.MustDollars("0.15"), "a", 0)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrBudgetExceeded)
	var budgetErr *domain.BudgetError
	require.ErrorAs(t, err, &budgetErr)
	assert.Equal(t, "$0.05", domain.FormatUSD(budgetErr.Remaining()))

	ok, err = l.CanAfford(ctx, today, domain.MustDollars("0.05"))
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = l.Reserve(ctx, today, domain.MustDollars("0.05"), "b", 0)
	assert.NoError(t, err)
}

func TestCostLedger_ReserveCommitRelease(t *testing.T) {
	l, _ := newTestLedger(t, "1.00")
	ctx := context.Background()

	hold, err := l.Reserve(ctx, today, domain.MustDollars("0.60"), "corr", 0)
	require.NoError(t, err)

	rem, err := l.RemainingBudget(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, "$0.40", domain.FormatUSD(rem))

	require.NoError(t, l.Commit(ctx, hold, domain.MustDollars("0.30"), 2))
	rem, err = l.RemainingBudget(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, "$0.70", domain.FormatUSD(rem))

	other, err := l.Reserve(ctx, today, domain.MustDollars("0.70"), "corr-2", 0)
	require.NoError(t, err)
	require.NoError(t, l.Release(ctx, other))
	require.NoError(t, l.Release(ctx, other))

	entry, err := l.Entry(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, 1, entry.GenerationCount)
	assert.Equal(t, 2, entry.ImageCount)
}

func TestCostLedger_ExpiredHoldStopsCounting(t *testing.T) {
	l, now := newTestLedger(t, "1.00")
	ctx := context.Background()

	_, err := l.Reserve(ctx, today, domain.MustDollars("1.00"), "stuck", 0)
	require.NoError(t, err)
	_, err = l.Reserve(ctx, today, domain.MustDollars("0.15"), "blocked", 0)
	require.ErrorIs(t, err, domain.ErrBudgetExceeded)

	*now = now.Add(domain.DefaultReservationTTL + time.Second)
	_, err = l.Reserve(ctx, today, domain.MustDollars("0.15"), "after-expiry", 0)
	assert.NoError(t, err)
}

func TestCostLedger_HoldLastsForRequestedLifetime(t *testing.T) {
	l, now := newTestLedger(t, "0.30")
	ctx := context.Background()

	hold, err := l.Reserve(ctx, today, domain.MustDollars("0.30"), "slow-job", 30*time.Minute)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(30*time.Minute), hold.ExpiresAt)

	// Past the default TTL the first job is still polling, so its hold must still count.
	*now = now.Add(domain.DefaultReservationTTL + time.Minute)
	_, err = l.Reserve(ctx, today, domain.MustDollars("0.30"), "second-job", 0)
	require.ErrorIs(t, err, domain.ErrBudgetExceeded)

	require.NoError(t, l.Commit(ctx, hold, domain.MustDollars("0.30"), 2))
	entry, err := l.Entry(ctx, today)
	require.NoError(t, err)
	assert.True(t, entry.TotalSpent.LessThanOrEqual(l.Limit()))
}

func TestCostLedger_ShortLifetimeKeepsDefaultTTL(t *testing.T) {
	l, _ := newTestLedger(t, "1.00")

	hold, err := l.Reserve(context.Background(), today, domain.MustDollars("0.15"), "quick", time.Minute)
	require.NoError(t, err)
	assert.Equal(t, fixedNow.Add(domain.DefaultReservationTTL), hold.ExpiresAt)
}

func TestCostLedger_ConcurrentReservationsOnSharedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	ctx := context.Background()

	seed := New(ledgerstore.NewFileStore(path), Options{Limit: domain.MustDollars("5.00")})
	day := seed.Today()
	require.NoError(t, seed.Record(ctx, day, domain.MustDollars("4.70"), 1))

	// Two lifecycles, each wanting $0.30 against $0.30 remaining, on separate handles.
	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		rejected int
	)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			l := New(ledgerstore.NewFileStore(path), Options{Limit: domain.MustDollars("5.00")})
			_, err := l.Reserve(ctx, day, domain.MustDollars("0.30"), "race", 0)
			mu.Lock()
			defer mu.Unlock()
			if err == nil {
				accepted++
				return
			}
			assert.ErrorIs(t, err, domain.ErrBudgetExceeded)
			rejected++
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, accepted)
	assert.Equal(t, 1, rejected)
}

func TestCostLedger_Entries(t *testing.T) {
	l, _ := newTestLedger(t, "5.00")
	ctx := context.Background()
	require.NoError(t, l.Record(ctx, today.AddDays(-1), domain.MustDollars("0.30"), 1))
	require.NoError(t, l.Record(ctx, today, domain.MustDollars("0.15"), 1))

	entries, err := l.Entries(ctx, today.AddDays(-2), today)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	assert.True(t, entries[0].TotalSpent.IsZero())
	assert.True(t, entries[1].TotalSpent.Equal(domain.MustDollars("0.30")))
	assert.Equal(t, today, entries[2].Date)

	_, err = l.Entries(ctx, "bogus", today)
	assert.Error(t, err)
}
