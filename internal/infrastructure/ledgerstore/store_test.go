package ledgerstore

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/ports"
)

var testDay = domain.Date("2026-10-18")

func charge(amount string, images int) domain.LedgerEvent {
	return domain.LedgerEvent{
		Kind:   domain.EventCharge,
		Date:   testDay,
		Amount: domain.MustDollars(amount),
		Images: images,
		At:     time.Date(2026, 10, 18, 9, 0, 0, 0, time.UTC),
	}
}

func appendEvents(events ...domain.LedgerEvent) func(*domain.LedgerSnapshot) ([]domain.LedgerEvent, error) {
	return func(*domain.LedgerSnapshot) ([]domain.LedgerEvent, error) { return events, nil }
}

func storesUnderTest(t *testing.T) map[string]ports.LedgerStore {
	t.Helper()
	dir := t.TempDir()
	sqlite, err := OpenSQLiteStore(filepath.Join(dir, "ledger.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sqlite.Close() })
	return map[string]ports.LedgerStore{
		"file":   NewFileStore(filepath.Join(dir, "ledger.jsonl")),
		"sqlite": sqlite,
		"memory": NewMemoryStore(),
	}
}

func TestStores_RoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			expires := time.Date(2026, 10, 18, 9, 15, 0, 0, time.UTC)
			hold := domain.LedgerEvent{Kind: domain.EventHold, HoldID: "h1", Date: testDay, Amount: domain.MustDollars("0.30"), ExpiresAt: &expires, Reference: "corr-1"}

			require.NoError(t, store.Transact(ctx, appendEvents(charge("0.15", 1), hold)))

			committed := charge("0.30", 2)
			committed.HoldID = "h1"
			require.NoError(t, store.Transact(ctx, func(snap *domain.LedgerSnapshot) ([]domain.LedgerEvent, error) {
				assert.Contains(t, snap.Holds, "h1")
				assert.True(t, snap.Entry(testDay).TotalSpent.Equal(domain.MustDollars("0.15")))
				return []domain.LedgerEvent{committed}, nil
			}))

			snap, err := store.Snapshot(ctx)
			require.NoError(t, err)
			entry := snap.Entry(testDay)
			assert.True(t, entry.TotalSpent.Equal(domain.MustDollars("0.45")), "spent %s", entry.TotalSpent)
			assert.Equal(t, 2, entry.GenerationCount)
			assert.Equal(t, 3, entry.ImageCount)
			assert.Empty(t, snap.Holds)
		})
	}
}

func TestStores_CallbackErrorAppendsNothing(t *testing.T) {
	ctx := context.Background()
	boom := errors.New("over budget")
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			err := store.Transact(ctx, func(*domain.LedgerSnapshot) ([]domain.LedgerEvent, error) {
				return []domain.LedgerEvent{charge("1.00", 1)}, boom
			})
			assert.ErrorIs(t, err, boom)

			snap, err := store.Snapshot(ctx)
			require.NoError(t, err)
			assert.Empty(t, snap.Entries)
		})
	}
}

func TestFileStore_MissingFileIsEmpty(t *testing.T) {
	store := NewFileStore(filepath.Join(t.TempDir(), "nested", "ledger.jsonl"))
	snap, err := store.Snapshot(context.Background())
	require.NoError(t, err)
	assert.Empty(t, snap.Entries)
}

func TestFileStore_AppendsWithoutRewriting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	store := NewFileStore(path)
	ctx := context.Background()

	require.NoError(t, store.Transact(ctx, appendEvents(charge("0.15", 1))))
	first, err := os.ReadFile(path)
	require.NoError(t, err)

	next := charge("0.30", 1)
	next.Date = "2026-10-19"
	require.NoError(t, store.Transact(ctx, appendEvents(next)))
	second, err := os.ReadFile(path)
	require.NoError(t, err)

	assert.True(t, strings.HasPrefix(string(second), string(first)))
	assert.Equal(t, 2, strings.Count(string(second), "\n"))
}

func TestFileStore_CorruptionFailsLoudly(t *testing.T) {
	tests := []struct {
		name    string
		content string
		line    int
	}{
		{name: "garbage", content: "not json\n", line: 1},
		{name: "truncated second line", content: `{"kind":"charge","date":"2026-10-18","amount":"0.15","images":1,"at":"2026-10-18T09:00:00Z"}` + "\n" + `{"kind":"cha`, line: 2},
		{name: "unknown kind", content: `{"kind":"refund","date":"2026-10-18","amount":"0.15","at":"2026-10-18T09:00:00Z"}` + "\n", line: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "ledger.jsonl")
			require.NoError(t, os.WriteFile(path, []byte(tt.content), 0o600))
			store := NewFileStore(path)

			_, err := store.Snapshot(context.Background())
			require.Error(t, err)
			assert.ErrorIs(t, err, domain.ErrLedgerCorrupt)
			var corrupt *domain.LedgerCorruptError
			require.ErrorAs(t, err, &corrupt)
			assert.Equal(t, tt.line, corrupt.Line)

			err = store.Transact(context.Background(), appendEvents(charge("0.15", 1)))
			assert.ErrorIs(t, err, domain.ErrLedgerCorrupt)

			after, readErr := os.ReadFile(path)
			require.NoError(t, readErr)
			assert.Equal(t, tt.content, string(after))
		})
	}
}

func TestFileStore_SeparateHandlesSerialise(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ledger.jsonl")
	ctx := context.Background()
	const writers = 8

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			store := NewFileStore(path)
			err := store.Transact(ctx, func(snap *domain.LedgerSnapshot) ([]domain.LedgerEvent, error) {
				ev := charge("0.15", 1)
				return []domain.LedgerEvent{ev}, nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snap, err := NewFileStore(path).Snapshot(ctx)
	require.NoError(t, err)
	entry := snap.Entry(testDay)
	assert.Equal(t, writers, entry.GenerationCount)
	assert.True(t, entry.TotalSpent.Equal(domain.MustDollars("1.20")))
}

func TestMemoryStore_Events(t *testing.T) {
	store := NewMemoryStore()
	require.NoError(t, store.Transact(context.Background(), appendEvents(charge("0.15", 1))))
	assert.Len(t, store.Events(), 1)
}
