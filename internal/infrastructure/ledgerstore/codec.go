package ledgerstore

import (
	"bufio"
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/doeshing/afcover/internal/domain"
)

const maxLineBytes = 1 << 20

// decodeEvents folds a JSONL event log. Blank lines are skipped; anything else
// that fails to parse or apply is reported as corruption with its line number.
func decodeEvents(r io.Reader, location string) (domain.LedgerSnapshot, error) {
	snap := domain.NewLedgerSnapshot()
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	line := 0
	for sc.Scan() {
		line++
		raw := bytes.TrimSpace(sc.Bytes())
		if len(raw) == 0 {
			continue
		}
		var ev domain.LedgerEvent
		dec := json.NewDecoder(bytes.NewReader(raw))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&ev); err != nil {
			return domain.LedgerSnapshot{}, &domain.LedgerCorruptError{Location: location, Line: line, Err: err}
		}
		if err := snap.Apply(ev); err != nil {
			return domain.LedgerSnapshot{}, &domain.LedgerCorruptError{Location: location, Line: line, Err: err}
		}
	}
	if err := sc.Err(); err != nil {
		return domain.LedgerSnapshot{}, &domain.LedgerCorruptError{Location: location, Err: err}
	}
	return snap, nil
}

func encodeEvents(events []domain.LedgerEvent) ([]byte, error) {
	var buf bytes.Buffer
	for _, ev := range events {
		b, err := json.Marshal(ev)
		if err != nil {
			return nil, fmt.Errorf("encode ledger event: %w", err)
		}
		buf.Write(b)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// applyAll folds freshly produced events so callers see them immediately.
func applyAll(snap *domain.LedgerSnapshot, events []domain.LedgerEvent) error {
	for _, ev := range events {
		if err := snap.Apply(ev); err != nil {
			return fmt.Errorf("apply ledger event: %w", err)
		}
	}
	return nil
}
