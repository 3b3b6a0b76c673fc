package ledger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/afcover/internal/domain"
)

func TestCostLedger_Usage(t *testing.T) {
	l, _ := newTestLedger(t, "5.00")
	ctx := context.Background()
	require.NoError(t, l.Record(ctx, today, domain.MustDollars("1.20"), 4))
	_, err := l.Reserve(ctx, today, domain.MustDollars("0.30"), "corr-1", 0)
	require.NoError(t, err)

	u, err := l.Usage(ctx, today)
	require.NoError(t, err)
	assert.Equal(t, "$1.20", domain.FormatUSD(u.Entry.TotalSpent))
	assert.Equal(t, "$0.30", domain.FormatUSD(u.Held))
	assert.Equal(t, "$3.50", domain.FormatUSD(u.Remaining))

	_, err = l.Usage(ctx, "18/10/2026")
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestCostLedger_Report(t *testing.T) {
	l, _ := newTestLedger(t, "5.00")
	ctx := context.Background()
	require.NoError(t, l.Record(ctx, today.AddDays(-2), domain.MustDollars("0.60"), 4))
	require.NoError(t, l.Record(ctx, today.AddDays(-9), domain.MustDollars("3.00"), 10))
	require.NoError(t, l.Record(ctx, today, domain.MustDollars("1.25"), 3))

	r, err := l.Report(ctx, 7)
	require.NoError(t, err)
	assert.Equal(t, today.AddDays(-6), r.From)
	assert.Equal(t, today, r.To)
	require.Len(t, r.Days, 7)
	assert.Equal(t, "$1.85", domain.FormatUSD(r.Total), "day -9 is outside the window")
	assert.Equal(t, "$0.26", domain.FormatUSD(r.DailyAverage))
	assert.Equal(t, 2, r.Generations)
	assert.Equal(t, 7, r.Images)
	assert.Equal(t, today, r.Today.Date)
	assert.Equal(t, "25", r.TodayPercent.String())

	_, err = l.Report(ctx, 0)
	assert.ErrorIs(t, err, domain.ErrValidation)
}
