package domain

import (
	"errors"
	"fmt"
	"sort"
	"time"
)

// DateLayout is the on-disk form of a ledger day.
const DateLayout = "2006-01-02"

// Date is a local calendar day, e.g. "2026-10-18".
type Date string

// DateOf returns the local calendar day of t.
func DateOf(t time.Time) Date {
	return Date(t.In(time.Local).Format(DateLayout))
}

// ParseDate validates a YYYY-MM-DD string.
func ParseDate(raw string) (Date, error) {
	if _, err := time.ParseInLocation(DateLayout, raw, time.Local); err != nil {
		return "", fmt.Errorf("parse date %q: %w", raw, err)
	}
	return Date(raw), nil
}

// AddDays shifts the date by n calendar days.
func (d Date) AddDays(n int) Date {
	t, err := time.ParseInLocation(DateLayout, string(d), time.Local)
	if err != nil {
		return d
	}
	return Date(t.AddDate(0, 0, n).Format(DateLayout))
}

func (d Date) String() string { return string(d) }

// LedgerEntry is the accumulated spend of one day.
type LedgerEntry struct {
	Date            Date  `json:"date"`
	TotalSpent      Money `json:"total_spent"`
	GenerationCount int   `json:"generation_count"`
	ImageCount      int   `json:"image_count"`
}

// LedgerEventKind discriminates ledger log lines.
type LedgerEventKind string

const (
	// EventHold reserves budget for an in-flight generation.
	EventHold LedgerEventKind = "hold"
	// EventCharge records a completed, chargeable generation.
	EventCharge LedgerEventKind = "charge"
	// EventRelease drops a hold without charging.
	EventRelease LedgerEventKind = "release"
)

// LedgerEvent is one append-only line of the ledger log.
type LedgerEvent struct {
	Kind      LedgerEventKind `json:"kind"`
	HoldID    string          `json:"hold_id,omitempty"`
	Date      Date            `json:"date"`
	Amount    Money           `json:"amount"`
	Images    int             `json:"images,omitempty"`
	At        time.Time       `json:"at"`
	ExpiresAt *time.Time      `json:"expires_at,omitempty"`
	Reference string          `json:"ref,omitempty"`
}

// Hold is budget reserved but not yet charged.
type Hold struct {
	ID        string    `json:"id"`
	Date      Date      `json:"date"`
	Amount    Money     `json:"amount"`
	ExpiresAt time.Time `json:"expires_at"`
	Reference string    `json:"ref,omitempty"`
}

// Active reports whether the hold still counts against the budget at now.
func (h Hold) Active(now time.Time) bool {
	return now.Before(h.ExpiresAt)
}

// LedgerSnapshot is the folded state of the event log.
type LedgerSnapshot struct {
	Entries map[Date]LedgerEntry
	Holds   map[string]Hold
}

// NewLedgerSnapshot returns an empty snapshot.
func NewLedgerSnapshot() LedgerSnapshot {
	return LedgerSnapshot{
		Entries: make(map[Date]LedgerEntry),
		Holds:   make(map[string]Hold),
	}
}

// Apply folds one event into the snapshot.
func (s *LedgerSnapshot) Apply(ev LedgerEvent) error {
	if _, err := ParseDate(string(ev.Date)); err != nil {
		return err
	}
	if ev.Amount.IsNegative() {
		return fmt.Errorf("negative amount %s", ev.Amount)
	}
	switch ev.Kind {
	case EventHold:
		if ev.HoldID == "" {
			return errors.New("hold without id")
		}
		if ev.ExpiresAt == nil {
			return errors.New("hold without expiry")
		}
		s.Holds[ev.HoldID] = Hold{
			ID:        ev.HoldID,
			Date:      ev.Date,
			Amount:    ev.Amount,
			ExpiresAt: *ev.ExpiresAt,
			Reference: ev.Reference,
		}
	case EventCharge:
		if ev.Images < 0 {
			return fmt.Errorf("negative image count %d", ev.Images)
		}
		if ev.HoldID != "" {
			delete(s.Holds, ev.HoldID)
		}
		entry := s.Entry(ev.Date)
		entry.TotalSpent = entry.TotalSpent.Add(ev.Amount)
		entry.GenerationCount++
		entry.ImageCount += ev.Images
		s.Entries[ev.Date] = entry
	case EventRelease:
		delete(s.Holds, ev.HoldID)
	default:
		return fmt.Errorf("unknown event kind %q", ev.Kind)
	}
	return nil
}

// Entry returns the day's entry, zero-valued when nothing was charged.
func (s LedgerSnapshot) Entry(date Date) LedgerEntry {
	if entry, ok := s.Entries[date]; ok {
		return entry
	}
	return LedgerEntry{Date: date, TotalSpent: ZeroMoney}
}

// Held sums the active holds for date.
func (s LedgerSnapshot) Held(date Date, now time.Time) Money {
	total := ZeroMoney
	for _, h := range s.Holds {
		if h.Date == date && h.Active(now) {
			total = total.Add(h.Amount)
		}
	}
	return total
}

// Dates lists every day with an entry, oldest first.
func (s LedgerSnapshot) Dates() []Date {
	dates := make([]Date, 0, len(s.Entries))
	for d := range s.Entries {
		dates = append(dates, d)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i] < dates[j] })
	return dates
}
