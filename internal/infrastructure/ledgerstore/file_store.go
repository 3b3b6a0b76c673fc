// Package ledgerstore persists the cost ledger event log.
package ledgerstore

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/gofrs/flock"

	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/ports"
)

const lockRetryDelay = 25 * time.Millisecond

// FileStore is an append-only JSONL ledger guarded by an advisory lock on a
// sibling ".lock" file, so several processes can share one ledger. The flock
// handle is per instance, so goroutines of one process serialise on mu first.
type FileStore struct {
	path string
	mu   sync.Mutex
	lock *flock.Flock
}

// NewFileStore opens (lazily) the ledger at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{
		path: path,
		lock: flock.New(path + ".lock"),
	}
}

// Location returns the ledger file path.
func (s *FileStore) Location() string {
	return s.path
}

// Transact implements ports.LedgerStore.
func (s *FileStore) Transact(ctx context.Context, fn func(*domain.LedgerSnapshot) ([]domain.LedgerEvent, error)) error {
	if err := os.MkdirAll(filepath.Dir(s.path), domain.DirectoryPermissions); err != nil {
		return fmt.Errorf("create ledger dir: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	locked, err := s.lock.TryLockContext(ctx, lockRetryDelay)
	if err != nil {
		return fmt.Errorf("lock ledger: %w", err)
	}
	if !locked {
		return fmt.Errorf("lock ledger: %s busy", s.path)
	}
	defer func() { _ = s.lock.Unlock() }()

	snap, err := s.read()
	if err != nil {
		return err
	}
	events, err := fn(&snap)
	if err != nil {
		return err
	}
	if len(events) == 0 {
		return nil
	}
	return s.append(events)
}

// Snapshot implements ports.LedgerStore.
func (s *FileStore) Snapshot(ctx context.Context) (domain.LedgerSnapshot, error) {
	if _, err := os.Stat(filepath.Dir(s.path)); errors.Is(err, fs.ErrNotExist) {
		return domain.NewLedgerSnapshot(), nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	locked, err := s.lock.TryRLockContext(ctx, lockRetryDelay)
	if err != nil {
		return domain.LedgerSnapshot{}, fmt.Errorf("lock ledger: %w", err)
	}
	if !locked {
		return domain.LedgerSnapshot{}, fmt.Errorf("lock ledger: %s busy", s.path)
	}
	defer func() { _ = s.lock.Unlock() }()
	return s.read()
}

func (s *FileStore) read() (domain.LedgerSnapshot, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return domain.NewLedgerSnapshot(), nil
		}
		return domain.LedgerSnapshot{}, &domain.LedgerCorruptError{Location: s.path, Err: err}
	}
	return decodeEvents(bytes.NewReader(data), s.path)
}

func (s *FileStore) append(events []domain.LedgerEvent) error {
	payload, err := encodeEvents(events)
	if err != nil {
		return err
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, domain.SecureFilePermissions)
	if err != nil {
		return fmt.Errorf("open ledger: %w", err)
	}
	if _, err := f.Write(payload); err != nil {
		_ = f.Close()
		return fmt.Errorf("append ledger: %w", err)
	}
	if err := f.Sync(); err != nil {
		_ = f.Close()
		return fmt.Errorf("sync ledger: %w", err)
	}
	return f.Close()
}

var _ ports.LedgerStore = (*FileStore)(nil)
