// Package ledger enforces the daily spend cap on top of a LedgerStore.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/ports"
)

// Options configure a CostLedger.
type Options struct {
	Limit   domain.Money
	HoldTTL time.Duration
	Clock   func() time.Time
}

// CostLedger tracks per-day spend. Every read-modify-write goes through
// LedgerStore.Transact, which holds the store's exclusive lock.
type CostLedger struct {
	store   ports.LedgerStore
	limit   domain.Money
	holdTTL time.Duration
	now     func() time.Time
	newID   func() string
}

// New builds a CostLedger. A zero limit means the default $5.00.
func New(store ports.LedgerStore, opts Options) *CostLedger {
	limit := opts.Limit
	if limit.IsZero() {
		limit = domain.MustDollars(domain.DefaultDailyLimit)
	}
	ttl := opts.HoldTTL
	if ttl <= 0 {
		ttl = domain.DefaultReservationTTL
	}
	clock := opts.Clock
	if clock == nil {
		clock = time.Now
	}
	return &CostLedger{
		store:   store,
		limit:   limit,
		holdTTL: ttl,
		now:     clock,
		newID:   uuid.NewString,
	}
}

// Limit returns the daily cap.
func (l *CostLedger) Limit() domain.Money {
	return l.limit
}

// Location describes where the ledger lives.
func (l *CostLedger) Location() string {
	return l.store.Location()
}

// Today returns the current local calendar day.
func (l *CostLedger) Today() domain.Date {
	return domain.DateOf(l.now())
}

// Entry returns the recorded spend of date.
func (l *CostLedger) Entry(ctx context.Context, date domain.Date) (domain.LedgerEntry, error) {
	snap, err := l.store.Snapshot(ctx)
	if err != nil {
		return domain.LedgerEntry{}, err
	}
	return snap.Entry(date), nil
}

// Entries returns one entry per day in [from, to], including empty days.
func (l *CostLedger) Entries(ctx context.Context, from, to domain.Date) ([]domain.LedgerEntry, error) {
	for _, d := range []domain.Date{from, to} {
		if _, err := domain.ParseDate(string(d)); err != nil {
			return nil, err
		}
	}
	snap, err := l.store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}
	var out []domain.LedgerEntry
	for d := from; d <= to; d = d.AddDays(1) {
		out = append(out, snap.Entry(d))
	}
	return out, nil
}

// RemainingBudget is limit - spent - active holds for date, floored at zero.
func (l *CostLedger) RemainingBudget(ctx context.Context, date domain.Date) (domain.Money, error) {
	snap, err := l.store.Snapshot(ctx)
	if err != nil {
		return domain.ZeroMoney, err
	}
	return l.remaining(snap, date), nil
}

// CanAfford reports whether cost fits in the remaining budget of date.
func (l *CostLedger) CanAfford(ctx context.Context, date domain.Date, cost domain.Money) (bool, error) {
	remaining, err := l.RemainingBudget(ctx, date)
	if err != nil {
		return false, err
	}
	return cost.LessThanOrEqual(remaining), nil
}

// Record charges a completed generation directly, without a prior hold.
func (l *CostLedger) Record(ctx context.Context, date domain.Date, cost domain.Money, images int) error {
	if cost.IsNegative() || images < 0 {
		return fmt.Errorf("record: negative charge %s for %d images", cost, images)
	}
	return l.store.Transact(ctx, func(*domain.LedgerSnapshot) ([]domain.LedgerEvent, error) {
		return []domain.LedgerEvent{{
			Kind:   domain.EventCharge,
			Date:   date,
			Amount: cost,
			Images: images,
			At:     l.now(),
		}}, nil
	})
}

// Reserve atomically checks amount against the remaining budget and, if it
// fits, places a hold that later Commit or Release settles. The hold expires
// after lifetime or the ledger's hold TTL, whichever is longer.
func (l *CostLedger) Reserve(ctx context.Context, date domain.Date, amount domain.Money, ref string, lifetime time.Duration) (domain.Hold, error) {
	ttl := l.holdTTL
	if lifetime > ttl {
		ttl = lifetime
	}
	var hold domain.Hold
	err := l.store.Transact(ctx, func(snap *domain.LedgerSnapshot) ([]domain.LedgerEvent, error) {
		now := l.now()
		held := snap.Held(date, now)
		spent := snap.Entry(date).TotalSpent
		if amount.GreaterThan(l.limit.Sub(spent).Sub(held)) {
			return nil, &domain.BudgetError{
				Date:      date,
				Limit:     l.limit,
				Spent:     spent,
				Held:      held,
				Requested: amount,
			}
		}
		expires := now.Add(ttl)
		hold = domain.Hold{ID: l.newID(), Date: date, Amount: amount, ExpiresAt: expires, Reference: ref}
		return []domain.LedgerEvent{{
			Kind:      domain.EventHold,
			HoldID:    hold.ID,
			Date:      date,
			Amount:    amount,
			At:        now,
			ExpiresAt: &expires,
			Reference: ref,
		}}, nil
	})
	if err != nil {
		return domain.Hold{}, err
	}
	return hold, nil
}

// Commit converts a hold into a charge of cost for the delivered images.
// The charge lands on the hold's day even if the clock has since rolled over.
func (l *CostLedger) Commit(ctx context.Context, hold domain.Hold, cost domain.Money, images int) error {
	if cost.IsNegative() || images < 0 {
		return fmt.Errorf("commit: negative charge %s for %d images", cost, images)
	}
	return l.store.Transact(ctx, func(*domain.LedgerSnapshot) ([]domain.LedgerEvent, error) {
		return []domain.LedgerEvent{{
			Kind:      domain.EventCharge,
			HoldID:    hold.ID,
			Date:      hold.Date,
			Amount:    cost,
			Images:    images,
			At:        l.now(),
			Reference: hold.Reference,
		}}, nil
	})
}

// Release drops a hold without charging.
func (l *CostLedger) Release(ctx context.Context, hold domain.Hold) error {
	return l.store.Transact(ctx, func(snap *domain.LedgerSnapshot) ([]domain.LedgerEvent, error) {
		if _, ok := snap.Holds[hold.ID]; !ok {
			return nil, nil
		}
		return []domain.LedgerEvent{{
			Kind:      domain.EventRelease,
			HoldID:    hold.ID,
			Date:      hold.Date,
			Amount:    domain.ZeroMoney,
			At:        l.now(),
			Reference: hold.Reference,
		}}, nil
	})
}

func (l *CostLedger) remaining(snap domain.LedgerSnapshot, date domain.Date) domain.Money {
	rem := l.limit.Sub(snap.Entry(date).TotalSpent).Sub(snap.Held(date, l.now()))
	if rem.IsNegative() {
		return domain.ZeroMoney
	}
	return rem
}

var _ ports.BudgetLedger = (*CostLedger)(nil)
