package domain_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/afcover/internal/domain"
)

func TestLedgerSnapshot_Apply(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.Local)
	day := domain.DateOf(now)
	expires := now.Add(15 * time.Minute)

	snap := domain.NewLedgerSnapshot()
	require.NoError(t, snap.Apply(domain.LedgerEvent{Kind: domain.EventHold, HoldID: "h1", Date: day, Amount: domain.MustDollars("0.30"), At: now, ExpiresAt: &expires}))
	require.NoError(t, snap.Apply(domain.LedgerEvent{Kind: domain.EventHold, HoldID: "h2", Date: day, Amount: domain.MustDollars("0.15"), At: now, ExpiresAt: &expires}))

	assert.True(t, snap.Held(day, now).Equal(domain.MustDollars("0.45")))

	require.NoError(t, snap.Apply(domain.LedgerEvent{Kind: domain.EventCharge, HoldID: "h1", Date: day, Amount: domain.MustDollars("0.15"), Images: 1, At: now}))
	require.NoError(t, snap.Apply(domain.LedgerEvent{Kind: domain.EventRelease, HoldID: "h2", Date: day, At: now}))

	entry := snap.Entry(day)
	assert.True(t, entry.TotalSpent.Equal(domain.MustDollars("0.15")))
	assert.Equal(t, 1, entry.GenerationCount)
	assert.Equal(t, 1, entry.ImageCount)
	assert.True(t, snap.Held(day, now).IsZero())
	assert.Equal(t, []domain.Date{day}, snap.Dates())
}

func TestLedgerSnapshot_ExpiredHoldsDoNotCount(t *testing.T) {
	now := time.Date(2026, 10, 18, 12, 0, 0, 0, time.Local)
	expired := now.Add(-time.Second)
	snap := domain.NewLedgerSnapshot()
	require.NoError(t, snap.Apply(domain.LedgerEvent{Kind: domain.EventHold, HoldID: "old", Date: domain.DateOf(now), Amount: domain.MustDollars("1"), ExpiresAt: &expired}))

	assert.True(t, snap.Held(domain.DateOf(now), now).IsZero())
}

func TestLedgerSnapshot_ApplyRejectsMalformed(t *testing.T) {
	tests := []struct {
		name string
		ev   domain.LedgerEvent
	}{
		{name: "bad date", ev: domain.LedgerEvent{Kind: domain.EventCharge, Date: "yesterday"}},
		{name: "negative amount", ev: domain.LedgerEvent{Kind: domain.EventCharge, Date: "2026-10-18", Amount: domain.MustDollars("-1")}},
		{name: "unknown kind", ev: domain.LedgerEvent{Kind: "refund", Date: "2026-10-18"}},
		{name: "hold without id", ev: domain.LedgerEvent{Kind: domain.EventHold, Date: "2026-10-18"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			snap := domain.NewLedgerSnapshot()
			assert.Error(t, snap.Apply(tt.ev))
		})
	}
}

func TestDate_AddDays(t *testing.T) {
	assert.Equal(t, domain.Date("2026-11-01"), domain.Date("2026-10-31").AddDays(1))
	assert.Equal(t, domain.Date("2026-10-12"), domain.Date("2026-10-18").AddDays(-6))
}
