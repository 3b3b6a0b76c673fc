package history

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/ports"
)

// FileStore appends history records to a jsonl file.
type FileStore struct {
	path string
	mu   sync.Mutex
}

// NewFileStore creates a history store backed by the jsonl file at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Save implements ports.HistoryRepository.
func (f *FileStore) Save(record domain.HistoryRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.MkdirAll(filepath.Dir(f.path), domain.DirectoryPermissions); err != nil {
		return err
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, domain.SecureFilePermissions)
	if err != nil {
		return err
	}
	defer file.Close()
	data, err := json.Marshal(record)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = file.Write(data)
	return err
}

// Path returns the backing file path.
func (f *FileStore) Path() string {
	return f.path
}

// Clear removes the history file.
func (f *FileStore) Clear() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}

// Records loads history entries newest first (best-effort: unreadable lines are skipped).
func (f *FileStore) Records(limit int, search string) ([]domain.HistoryRecord, error) {
	f.mu.Lock()
	data, err := os.ReadFile(f.path)
	f.mu.Unlock()
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	lines := bytes.Split(bytes.TrimSpace(data), []byte("\n"))
	var records []domain.HistoryRecord
	for i := len(lines) - 1; i >= 0; i-- {
		if len(lines[i]) == 0 {
			continue
		}
		var rec domain.HistoryRecord
		if err := json.Unmarshal(lines[i], &rec); err != nil {
			continue
		}
		if !matches(rec, search) {
			continue
		}
		records = append(records, rec)
		if limit > 0 && len(records) == limit {
			break
		}
	}
	return records, nil
}

// ExportJSON copies the records to dest, newest first.
func (f *FileStore) ExportJSON(dest string) error {
	records, err := f.Records(0, "")
	if err != nil {
		return err
	}
	return exportRecords(dest, records)
}

func matches(rec domain.HistoryRecord, search string) bool {
	if search == "" {
		return true
	}
	needle := strings.ToLower(search)
	for _, field := range []string{rec.Prompt, rec.RequestID, string(rec.Stage)} {
		if strings.Contains(strings.ToLower(field), needle) {
			return true
		}
	}
	return false
}

var _ ports.HistoryRepository = (*FileStore)(nil)
