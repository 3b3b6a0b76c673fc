package domain

import "time"

// HistoryRecord captures one submitted generation.
type HistoryRecord struct {
	Timestamp     time.Time `json:"timestamp"`
	CorrelationID string    `json:"correlation_id"`
	RequestID     string    `json:"request_id"`
	Prompt        string    `json:"prompt"`
	Resolution    string    `json:"resolution"`
	Requested     int       `json:"requested"`
	Delivered     int       `json:"delivered"`
	Cost          Money     `json:"cost"`
	Stage         Stage     `json:"stage"`
	Paths         []string  `json:"paths,omitempty"`
	DurationMS    int64     `json:"duration_ms"`
	Error         string    `json:"error,omitempty"`
}

// HistoryFromManifest flattens a manifest into a history record.
func HistoryFromManifest(m Manifest, at time.Time, runErr error) HistoryRecord {
	rec := HistoryRecord{
		Timestamp:     at,
		CorrelationID: m.CorrelationID,
		Prompt:        m.Request.Prompt,
		Resolution:    string(m.Request.Resolution),
		Requested:     m.Request.NumVariations,
		Cost:          ZeroMoney,
		Stage:         m.Stage,
		DurationMS:    m.Duration.Milliseconds(),
	}
	if m.Job != nil {
		rec.RequestID = m.Job.RequestID
	}
	if m.Result != nil {
		rec.Delivered = len(m.Result.LocalPaths)
		rec.Cost = m.Result.ActualCost
		rec.Paths = append([]string(nil), m.Result.LocalPaths...)
	}
	if runErr != nil {
		rec.Error = runErr.Error()
	}
	return rec
}
