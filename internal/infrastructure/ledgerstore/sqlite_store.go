package ledgerstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"
	_ "modernc.org/sqlite"

	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/ports"
)

const busyTimeoutMS = 5000

// SQLiteStore keeps the ledger event log in a SQLite table. Writers take the
// database write lock up front with BEGIN IMMEDIATE.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// OpenSQLiteStore opens (or creates) the ledger database at path.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return nil, fmt.Errorf("create ledger dir: %w", err)
	}
	dsn := fmt.Sprintf("file:%s?_pragma=busy_timeout(%d)&_pragma=journal_mode(WAL)", path, busyTimeoutMS)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, &domain.LedgerCorruptError{Location: path, Err: err}
	}
	store := &SQLiteStore{db: db, path: path}
	if err := store.init(); err != nil {
		_ = db.Close()
		return nil, &domain.LedgerCorruptError{Location: path, Err: err}
	}
	return store, nil
}

func (s *SQLiteStore) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS ledger_events (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		kind TEXT NOT NULL,
		hold_id TEXT,
		day TEXT NOT NULL,
		amount TEXT NOT NULL,
		images INTEGER NOT NULL DEFAULT 0,
		at TEXT NOT NULL,
		expires_at TEXT,
		ref TEXT
	);`)
	return err
}

// Location returns the database path.
func (s *SQLiteStore) Location() string {
	return s.path
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Transact implements ports.LedgerStore.
func (s *SQLiteStore) Transact(ctx context.Context, fn func(*domain.LedgerSnapshot) ([]domain.LedgerEvent, error)) (err error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("ledger connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return fmt.Errorf("lock ledger: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.WithoutCancel(ctx), "ROLLBACK")
		}
	}()

	snap, err := s.load(ctx, conn)
	if err != nil {
		return err
	}
	events, err := fn(&snap)
	if err != nil {
		return err
	}
	for _, ev := range events {
		if err := insertEvent(ctx, conn, ev); err != nil {
			return fmt.Errorf("append ledger: %w", err)
		}
	}
	if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("commit ledger: %w", err)
	}
	committed = true
	return nil
}

// Snapshot implements ports.LedgerStore.
func (s *SQLiteStore) Snapshot(ctx context.Context) (domain.LedgerSnapshot, error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return domain.LedgerSnapshot{}, fmt.Errorf("ledger connection: %w", err)
	}
	defer conn.Close()
	return s.load(ctx, conn)
}

func (s *SQLiteStore) load(ctx context.Context, conn *sql.Conn) (domain.LedgerSnapshot, error) {
	rows, err := conn.QueryContext(ctx, `SELECT seq, kind, hold_id, day, amount, images, at, expires_at, ref
		FROM ledger_events ORDER BY seq`)
	if err != nil {
		return domain.LedgerSnapshot{}, &domain.LedgerCorruptError{Location: s.path, Err: err}
	}
	defer rows.Close()

	snap := domain.NewLedgerSnapshot()
	for rows.Next() {
		var (
			seq                  int
			kind, day, amt, at   string
			holdID, expires, ref sql.NullString
			ev                   domain.LedgerEvent
		)
		if err := rows.Scan(&seq, &kind, &holdID, &day, &amt, &ev.Images, &at, &expires, &ref); err != nil {
			return domain.LedgerSnapshot{}, &domain.LedgerCorruptError{Location: s.path, Err: err}
		}
		if err := decodeRow(&ev, kind, holdID, day, amt, at, expires, ref); err != nil {
			return domain.LedgerSnapshot{}, &domain.LedgerCorruptError{Location: s.path, Line: seq, Err: err}
		}
		if err := snap.Apply(ev); err != nil {
			return domain.LedgerSnapshot{}, &domain.LedgerCorruptError{Location: s.path, Line: seq, Err: err}
		}
	}
	if err := rows.Err(); err != nil {
		return domain.LedgerSnapshot{}, &domain.LedgerCorruptError{Location: s.path, Err: err}
	}
	return snap, nil
}

func decodeRow(ev *domain.LedgerEvent, kind string, holdID sql.NullString, day, amt, at string, expires, ref sql.NullString) error {
	amount, err := decimal.NewFromString(amt)
	if err != nil {
		return fmt.Errorf("amount: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, at)
	if err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	ev.Kind = domain.LedgerEventKind(kind)
	ev.HoldID = holdID.String
	ev.Date = domain.Date(day)
	ev.Amount = amount
	ev.At = ts
	ev.Reference = ref.String
	if expires.Valid && expires.String != "" {
		exp, err := time.Parse(time.RFC3339Nano, expires.String)
		if err != nil {
			return fmt.Errorf("expiry: %w", err)
		}
		ev.ExpiresAt = &exp
	}
	if ev.Kind == "" {
		return errors.New("empty kind")
	}
	return nil
}

func insertEvent(ctx context.Context, conn *sql.Conn, ev domain.LedgerEvent) error {
	var expires sql.NullString
	if ev.ExpiresAt != nil {
		expires = sql.NullString{String: ev.ExpiresAt.UTC().Format(time.RFC3339Nano), Valid: true}
	}
	_, err := conn.ExecContext(ctx, `INSERT INTO ledger_events
		(kind, hold_id, day, amount, images, at, expires_at, ref)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		string(ev.Kind),
		ev.HoldID,
		string(ev.Date),
		ev.Amount.String(),
		ev.Images,
		ev.At.UTC().Format(time.RFC3339Nano),
		expires,
		ev.Reference,
	)
	return err
}

var _ ports.LedgerStore = (*SQLiteStore)(nil)
