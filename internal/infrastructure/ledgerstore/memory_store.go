package ledgerstore

import (
	"context"
	"sync"

	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/ports"
)

// MemoryStore keeps the event log in process memory.
type MemoryStore struct {
	mu     sync.Mutex
	events []domain.LedgerEvent
}

// NewMemoryStore returns an empty in-memory ledger.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Location implements ports.LedgerStore.
func (s *MemoryStore) Location() string {
	return "memory"
}

// Transact implements ports.LedgerStore.
func (s *MemoryStore) Transact(ctx context.Context, fn func(*domain.LedgerSnapshot) ([]domain.LedgerEvent, error)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	snap, err := s.fold()
	if err != nil {
		return err
	}
	events, err := fn(&snap)
	if err != nil {
		return err
	}
	s.events = append(s.events, events...)
	return nil
}

// Snapshot implements ports.LedgerStore.
func (s *MemoryStore) Snapshot(ctx context.Context) (domain.LedgerSnapshot, error) {
	if err := ctx.Err(); err != nil {
		return domain.LedgerSnapshot{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.fold()
}

// Events returns a copy of the raw log.
func (s *MemoryStore) Events() []domain.LedgerEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.LedgerEvent(nil), s.events...)
}

func (s *MemoryStore) fold() (domain.LedgerSnapshot, error) {
	snap := domain.NewLedgerSnapshot()
	if err := applyAll(&snap, s.events); err != nil {
		return domain.LedgerSnapshot{}, &domain.LedgerCorruptError{Location: s.Location(), Err: err}
	}
	return snap, nil
}

var _ ports.LedgerStore = (*MemoryStore)(nil)
