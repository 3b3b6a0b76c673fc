package ledger

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/doeshing/afcover/internal/domain"
)

// Usage is today's spend against the cap.
type Usage struct {
	Entry     domain.LedgerEntry `json:"entry"`
	Limit     domain.Money       `json:"daily_limit"`
	Held      domain.Money       `json:"held"`
	Remaining domain.Money       `json:"remaining"`
}

// Report summarises the last N days.
type Report struct {
	From         domain.Date          `json:"from"`
	To           domain.Date          `json:"to"`
	Days         []domain.LedgerEntry `json:"days"`
	Total        domain.Money         `json:"total"`
	DailyAverage domain.Money         `json:"daily_average"`
	Generations  int                  `json:"generations"`
	Images       int                  `json:"images"`
	Limit        domain.Money         `json:"daily_limit"`
	Today        domain.LedgerEntry   `json:"today"`
	// TodayPercent is today's spend as a percentage of the limit.
	TodayPercent decimal.Decimal `json:"today_percent_of_limit"`
}

// Usage reports the spend of date together with active holds and the remaining budget.
func (l *CostLedger) Usage(ctx context.Context, date domain.Date) (Usage, error) {
	if _, err := domain.ParseDate(string(date)); err != nil {
		return Usage{}, domain.NewValidationError("date", err.Error())
	}
	snap, err := l.store.Snapshot(ctx)
	if err != nil {
		return Usage{}, err
	}
	return Usage{
		Entry:     snap.Entry(date),
		Limit:     l.limit,
		Held:      snap.Held(date, l.now()),
		Remaining: l.remaining(snap, date),
	}, nil
}

// Report covers the days ending today, oldest first.
func (l *CostLedger) Report(ctx context.Context, days int) (Report, error) {
	if days < 1 {
		return Report{}, domain.NewValidationError("days", fmt.Sprintf("must be >= 1, got %d", days))
	}
	to := l.Today()
	from := to.AddDays(-(days - 1))
	entries, err := l.Entries(ctx, from, to)
	if err != nil {
		return Report{}, err
	}
	r := Report{
		From:  from,
		To:    to,
		Days:  entries,
		Total: domain.ZeroMoney,
		Limit: l.limit,
	}
	for _, e := range entries {
		r.Total = r.Total.Add(e.TotalSpent)
		r.Generations += e.GenerationCount
		r.Images += e.ImageCount
	}
	r.DailyAverage = r.Total.Div(decimal.NewFromInt(int64(days))).Round(2)
	r.Today = entries[len(entries)-1]
	r.TodayPercent = r.Today.TotalSpent.Mul(decimal.NewFromInt(100)).Div(l.limit).Round(1)
	return r, nil
}
