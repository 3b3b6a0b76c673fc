package history

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/ports"
)

// SQLiteStore persists generation history in a SQLite database.
type SQLiteStore struct {
	db       *sql.DB
	path     string
	fallback *FileStore
	mu       sync.Mutex
}

// NewSQLiteStore creates (or opens) the history database at path. When the
// database cannot be opened, records go to a jsonl file next to it instead.
func NewSQLiteStore(path string) *SQLiteStore {
	_ = os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions)
	fallback := NewFileStore(strings.TrimSuffix(path, filepath.Ext(path)) + ".jsonl")
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return &SQLiteStore{path: path, fallback: fallback}
	}
	store := &SQLiteStore{db: db, path: path, fallback: fallback}
	if err := store.init(); err != nil {
		_ = db.Close()
		return &SQLiteStore{path: path, fallback: fallback}
	}
	return store
}

func (s *SQLiteStore) init() error {
	if s.db == nil {
		return os.ErrInvalid
	}
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS generations (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		timestamp TEXT,
		correlation_id TEXT,
		request_id TEXT,
		prompt TEXT,
		resolution TEXT,
		requested INTEGER,
		delivered INTEGER,
		cost TEXT,
		stage TEXT,
		paths TEXT,
		duration_ms INTEGER,
		error TEXT
	);`)
	return err
}

// Save inserts a new record.
func (s *SQLiteStore) Save(record domain.HistoryRecord) error {
	if s.db == nil {
		return s.fallback.Save(record)
	}
	paths, err := json.Marshal(record.Paths)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err = s.db.Exec(`INSERT INTO generations
		(timestamp, correlation_id, request_id, prompt, resolution, requested, delivered, cost, stage, paths, duration_ms, error)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		record.Timestamp.Format(time.RFC3339Nano),
		record.CorrelationID,
		record.RequestID,
		record.Prompt,
		record.Resolution,
		record.Requested,
		record.Delivered,
		record.Cost.String(),
		string(record.Stage),
		string(paths),
		record.DurationMS,
		record.Error,
	)
	return err
}

// Records returns history entries, newest first (limit/search optional).
func (s *SQLiteStore) Records(limit int, search string) ([]domain.HistoryRecord, error) {
	if s.db == nil {
		return s.fallback.Records(limit, search)
	}
	builder := strings.Builder{}
	builder.WriteString(`SELECT timestamp, correlation_id, request_id, prompt, resolution, requested,
		delivered, cost, stage, paths, duration_ms, error FROM generations`)
	var args []interface{}
	if search != "" {
		builder.WriteString(" WHERE prompt LIKE ? OR request_id LIKE ? OR stage LIKE ?")
		pattern := "%" + search + "%"
		args = append(args, pattern, pattern, pattern)
	}
	builder.WriteString(" ORDER BY id DESC")
	if limit > 0 {
		builder.WriteString(" LIMIT ?")
		args = append(args, limit)
	}
	rows, err := s.db.Query(builder.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var records []domain.HistoryRecord
	for rows.Next() {
		var (
			rec          domain.HistoryRecord
			ts, cost     string
			stage, paths string
		)
		if err := rows.Scan(&ts, &rec.CorrelationID, &rec.RequestID, &rec.Prompt, &rec.Resolution, &rec.Requested,
			&rec.Delivered, &cost, &stage, &paths, &rec.DurationMS, &rec.Error); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.Timestamp = t
		}
		rec.Cost = domain.ZeroMoney
		if amount, err := domain.Dollars(cost); err == nil {
			rec.Cost = amount
		}
		rec.Stage = domain.Stage(stage)
		if paths != "" && paths != "null" {
			_ = json.Unmarshal([]byte(paths), &rec.Paths)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// Clear deletes all history entries.
func (s *SQLiteStore) Clear() error {
	if s.db == nil {
		return s.fallback.Clear()
	}
	_, err := s.db.Exec("DELETE FROM generations")
	return err
}

// ExportJSON writes every record to a jsonl file, newest first.
func (s *SQLiteStore) ExportJSON(dest string) error {
	records, err := s.Records(0, "")
	if err != nil {
		return err
	}
	return exportRecords(dest, records)
}

// Path returns the sqlite database path, or the fallback file when the
// database is unavailable.
func (s *SQLiteStore) Path() string {
	if s.db == nil {
		return s.fallback.Path()
	}
	return s.path
}

// Close releases the database handle.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func exportRecords(dest string, records []domain.HistoryRecord) error {
	file, err := os.Create(dest)
	if err != nil {
		return err
	}
	defer file.Close()
	enc := json.NewEncoder(file)
	for _, rec := range records {
		if rec.Timestamp.IsZero() {
			rec.Timestamp = time.Now()
		}
		if err := enc.Encode(rec); err != nil {
			return err
		}
	}
	return file.Sync()
}

var _ ports.HistoryRepository = (*SQLiteStore)(nil)
