package domain

import (
	"fmt"
	"strings"
	"time"
)

// Resolution is the output size tier accepted by Nano Banana Pro.
type Resolution string

const (
	Resolution1K Resolution = "1K"
	Resolution2K Resolution = "2K"
	Resolution4K Resolution = "4K"
)

// ParseResolution accepts 1k/2k/4k in any case. Empty input yields the default tier.
func ParseResolution(raw string) (Resolution, error) {
	switch strings.ToUpper(strings.TrimSpace(raw)) {
	case "", string(Resolution1K):
		return Resolution1K, nil
	case string(Resolution2K):
		return Resolution2K, nil
	case string(Resolution4K):
		return Resolution4K, nil
	}
	return "", NewValidationError("resolution", fmt.Sprintf("unsupported resolution %q (want 1K, 2K or 4K)", raw))
}

// OutputFormat is the encoded image format requested from the API.
type OutputFormat string

const (
	FormatPNG  OutputFormat = "png"
	FormatJPEG OutputFormat = "jpeg"
	FormatWEBP OutputFormat = "webp"
)

// ParseOutputFormat normalises format names; "jpg" is accepted as jpeg.
func ParseOutputFormat(raw string) (OutputFormat, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "", string(FormatPNG):
		return FormatPNG, nil
	case "jpg", string(FormatJPEG):
		return FormatJPEG, nil
	case string(FormatWEBP):
		return FormatWEBP, nil
	}
	return "", NewValidationError("output_format", fmt.Sprintf("unsupported output format %q (want png, jpeg or webp)", raw))
}

// Extension returns the file extension used for downloaded artifacts.
func (f OutputFormat) Extension() string {
	switch f {
	case FormatJPEG:
		return "jpg"
	case FormatWEBP:
		return "webp"
	default:
		return "png"
	}
}

// ClampVariations forces n into [MinVariations, MaxVariations].
func ClampVariations(n int) int {
	if n < MinVariations {
		return MinVariations
	}
	if n > MaxVariations {
		return MaxVariations
	}
	return n
}

// RequestOptions carries the optional knobs of a generation request.
type RequestOptions struct {
	Resolution      string
	NumVariations   int
	OutputFormat    string
	Seed            *int64
	ReferenceImages []string
	// AllowExtraImages disables limit_generations so the prompt may ask for more images.
	AllowExtraImages bool
	EnableWebSearch  bool
}

// GenerationRequest is a validated, ready-to-submit generation request.
type GenerationRequest struct {
	Prompt           string       `json:"prompt"`
	Resolution       Resolution   `json:"resolution"`
	NumVariations    int          `json:"num_variations"`
	OutputFormat     OutputFormat `json:"output_format"`
	Seed             *int64       `json:"seed,omitempty"`
	AspectRatio      string       `json:"aspect_ratio"`
	ReferenceImages  []string     `json:"reference_images,omitempty"`
	LimitGenerations bool         `json:"limit_generations"`
	EnableWebSearch  bool         `json:"enable_web_search"`
}

// NewGenerationRequest validates the prompt and options. Variation counts
// outside [1,4] are clamped rather than rejected.
func NewGenerationRequest(prompt string, opts RequestOptions) (GenerationRequest, error) {
	prompt = strings.TrimSpace(prompt)
	if prompt == "" {
		return GenerationRequest{}, NewValidationError("prompt", "prompt must not be empty")
	}
	res, err := ParseResolution(opts.Resolution)
	if err != nil {
		return GenerationRequest{}, err
	}
	format, err := ParseOutputFormat(opts.OutputFormat)
	if err != nil {
		return GenerationRequest{}, err
	}
	if len(opts.ReferenceImages) > MaxReferenceImages {
		return GenerationRequest{}, NewValidationError("reference_images",
			fmt.Sprintf("at most %d reference images are supported, got %d", MaxReferenceImages, len(opts.ReferenceImages)))
	}
	refs := make([]string, 0, len(opts.ReferenceImages))
	for _, ref := range opts.ReferenceImages {
		if ref = strings.TrimSpace(ref); ref != "" {
			refs = append(refs, ref)
		}
	}
	if len(refs) == 0 {
		refs = nil
	}
	return GenerationRequest{
		Prompt:           prompt,
		Resolution:       res,
		NumVariations:    ClampVariations(opts.NumVariations),
		OutputFormat:     format,
		Seed:             opts.Seed,
		AspectRatio:      CoverAspectRatio,
		ReferenceImages:  refs,
		LimitGenerations: !opts.AllowExtraImages,
		EnableWebSearch:  opts.EnableWebSearch,
	}, nil
}

// IsEdit reports whether the request targets the reference-image edit endpoint.
func (r GenerationRequest) IsEdit() bool {
	return len(r.ReferenceImages) > 0
}

// JobHandle identifies a submitted queue job. It is never persisted.
type JobHandle struct {
	RequestID     string    `json:"request_id"`
	StatusURL     string    `json:"status_url"`
	ResponseURL   string    `json:"response_url,omitempty"`
	CancelURL     string    `json:"cancel_url,omitempty"`
	QueuePosition int       `json:"queue_position,omitempty"`
	SubmittedAt   time.Time `json:"submitted_at"`
}

// JobState is the remote job state reported by a single status check.
type JobState int

const (
	JobQueued JobState = iota + 1
	JobRunning
	JobSucceeded
	JobFailed
)

func (s JobState) String() string {
	switch s {
	case JobQueued:
		return "queued"
	case JobRunning:
		return "running"
	case JobSucceeded:
		return "succeeded"
	case JobFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further polling is useful.
func (s JobState) Terminal() bool {
	return s == JobSucceeded || s == JobFailed
}

// JobStatus is the result of one status check.
type JobStatus struct {
	State         JobState
	ArtifactURLs  []string
	QueuePosition int
	Detail        string
}

// ResultStatus is the terminal outcome of a polled job.
type ResultStatus string

const (
	ResultSucceeded ResultStatus = "succeeded"
	ResultFailed    ResultStatus = "failed"
	ResultTimedOut  ResultStatus = "timed_out"
	ResultCancelled ResultStatus = "cancelled"
)

// PollSettings bounds a poll loop.
type PollSettings struct {
	MaxWait  time.Duration
	Interval time.Duration
	// OnStatus, when set, receives every successful status check.
	OnStatus func(Progress)
}

// Phase names the part of a lifecycle that is currently running.
type Phase string

const (
	PhaseSubmitting  Phase = "submitting"
	PhasePolling     Phase = "polling"
	PhaseDownloading Phase = "downloading"
)

// Progress is a snapshot of an in-flight lifecycle.
type Progress struct {
	Phase         Phase
	State         JobState
	QueuePosition int
	Attempt       int
	Elapsed       time.Duration
}

// GenerationResult describes what a submitted job produced.
type GenerationResult struct {
	Status       ResultStatus `json:"status"`
	ArtifactURLs []string     `json:"artifact_urls,omitempty"`
	LocalPaths   []string     `json:"local_paths,omitempty"`
	ActualCost   Money        `json:"actual_cost"`
	Detail       string       `json:"detail,omitempty"`
	PollAttempts int          `json:"poll_attempts"`
}

// NewPollResult builds the result of a poll loop. Artifact URLs are only
// kept for successful jobs.
func NewPollResult(status ResultStatus, urls []string, detail string, attempts int) GenerationResult {
	res := GenerationResult{Status: status, Detail: detail, PollAttempts: attempts, ActualCost: ZeroMoney}
	if status == ResultSucceeded && len(urls) > 0 {
		res.ArtifactURLs = append([]string(nil), urls...)
	}
	return res
}

// WithDelivery returns a copy of r carrying downloaded paths and the charged cost.
func (r GenerationResult) WithDelivery(paths []string, cost Money) GenerationResult {
	out := r
	out.ArtifactURLs = append([]string(nil), r.ArtifactURLs...)
	out.LocalPaths = append([]string(nil), paths...)
	out.ActualCost = cost
	return out
}

// Confirmation is the explicit gate on chargeable work. The zero value is DryRun.
type Confirmation int

const (
	DryRun Confirmation = iota
	Confirmed
)

func (c Confirmation) String() string {
	if c == Confirmed {
		return "confirmed"
	}
	return "dry-run"
}

// ArtifactTarget tells the fetcher where and how to name downloaded files.
type ArtifactTarget struct {
	Dir      string
	BaseName string
	Format   OutputFormat
}

// Artifact is one downloaded image.
type Artifact struct {
	Index int    `json:"index"`
	URL   string `json:"url"`
	Path  string `json:"path"`
	Bytes int64  `json:"bytes"`
}
