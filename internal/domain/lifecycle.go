package domain

import "time"

// Stage is where a lifecycle ended.
type Stage string

const (
	StageReportedOnly Stage = "reported_only"
	StageRejected     Stage = "rejected"
	StageCompleted    Stage = "completed"
	StagePartial      Stage = "partial"
	StageFailed       Stage = "failed"
	StageTimedOut     Stage = "timed_out"
	StageCancelled    Stage = "cancelled"
)

// Charged reports whether the ledger was debited for this stage.
func (s Stage) Charged() bool {
	return s == StageCompleted || s == StagePartial
}

// Manifest is the caller-facing report of one lifecycle run.
type Manifest struct {
	CorrelationID string            `json:"correlation_id"`
	Stage         Stage             `json:"stage"`
	Gate          string            `json:"gate"`
	Request       GenerationRequest `json:"request"`
	Estimate      Estimate          `json:"estimate"`
	Limit         Money             `json:"daily_limit"`
	Remaining     Money             `json:"remaining_budget"`
	Job           *JobHandle        `json:"job,omitempty"`
	Result        *GenerationResult `json:"result,omitempty"`
	Artifacts     []Artifact        `json:"artifacts,omitempty"`
	Missing       []int             `json:"missing_indices,omitempty"`
	Duration      time.Duration     `json:"duration_ns"`
}

// MissingIndices lists the 1-based artifact indices in [delivered+1, total].
func MissingIndices(delivered, total int) []int {
	if delivered >= total {
		return nil
	}
	out := make([]int, 0, total-delivered)
	for i := delivered + 1; i <= total; i++ {
		out = append(out, i)
	}
	return out
}
