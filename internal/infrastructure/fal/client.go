// Package fal implements the generation transport over fal.ai's queue API.
package fal

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/doeshing/afcover/internal/domain"
	"github.com/doeshing/afcover/internal/ports"
)

const (
	maxErrorBody    = 2 << 10
	maxResponseBody = 8 << 20
)

// Options configure a Client. Zero values fall back to defaults.
type Options struct {
	Endpoint      string
	EditEndpoint  string
	HTTPClient    *http.Client
	SubmitTimeout time.Duration
	PollTimeout   time.Duration
	Logger        ports.Logger
	Clock         func() time.Time
}

// Client submits jobs and checks their status. It remembers the API key of
// every job it submitted so PollStatus can authenticate without the handle
// carrying the secret.
type Client struct {
	endpoint      string
	editEndpoint  string
	httpClient    *http.Client
	submitTimeout time.Duration
	pollTimeout   time.Duration
	logger        ports.Logger
	now           func() time.Time

	keys sync.Map // request id -> api key
}

// NewClient builds a Client.
func NewClient(opts Options) *Client {
	c := &Client{
		endpoint:      defaultString(opts.Endpoint, domain.DefaultEndpoint),
		editEndpoint:  defaultString(opts.EditEndpoint, domain.DefaultEditEndpoint),
		httpClient:    opts.HTTPClient,
		submitTimeout: opts.SubmitTimeout,
		pollTimeout:   opts.PollTimeout,
		logger:        opts.Logger,
		now:           opts.Clock,
	}
	if c.httpClient == nil {
		c.httpClient = &http.Client{}
	}
	if c.submitTimeout <= 0 || c.submitTimeout > domain.DefaultSubmitTimeout {
		c.submitTimeout = domain.DefaultSubmitTimeout
	}
	if c.pollTimeout <= 0 {
		c.pollTimeout = domain.DefaultPollTimeout
	}
	if c.now == nil {
		c.now = time.Now
	}
	return c
}

type submitPayload struct {
	Prompt           string   `json:"prompt"`
	AspectRatio      string   `json:"aspect_ratio"`
	Resolution       string   `json:"resolution"`
	NumImages        int      `json:"num_images"`
	OutputFormat     string   `json:"output_format"`
	Seed             *int64   `json:"seed,omitempty"`
	LimitGenerations bool     `json:"limit_generations"`
	EnableWebSearch  bool     `json:"enable_web_search"`
	SyncMode         bool     `json:"sync_mode"`
	ImageURLs        []string `json:"image_urls,omitempty"`
}

type submitResponse struct {
	RequestID     string `json:"request_id"`
	Status        string `json:"status"`
	StatusURL     string `json:"status_url"`
	ResponseURL   string `json:"response_url"`
	CancelURL     string `json:"cancel_url"`
	QueuePosition int    `json:"queue_position"`
}

type statusResponse struct {
	Status        string          `json:"status"`
	QueuePosition int             `json:"queue_position"`
	Error         string          `json:"error"`
	Detail        json.RawMessage `json:"detail"`
}

type resultResponse struct {
	Images []struct {
		URL         string `json:"url"`
		ContentType string `json:"content_type"`
		FileName    string `json:"file_name"`
	} `json:"images"`
	Description string          `json:"description"`
	Detail      json.RawMessage `json:"detail"`
}

// Submit implements ports.Transport.
func (c *Client) Submit(ctx context.Context, req domain.GenerationRequest, apiKey string) (domain.JobHandle, error) {
	apiKey = strings.TrimSpace(apiKey)
	if apiKey == "" {
		return domain.JobHandle{}, &domain.APIError{Kind: domain.ErrAuth, Op: "submit", Detail: "missing API key (set FAL_KEY)"}
	}
	payload, err := buildPayload(req)
	if err != nil {
		return domain.JobHandle{}, err
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return domain.JobHandle{}, fmt.Errorf("encode submit payload: %w", err)
	}

	endpoint := c.endpoint
	if req.IsEdit() {
		endpoint = c.editEndpoint
	}

	ctx, cancel := context.WithTimeout(ctx, c.submitTimeout)
	defer cancel()

	var resp submitResponse
	if err := c.do(ctx, "submit", http.MethodPost, endpoint, apiKey, body, &resp); err != nil {
		return domain.JobHandle{}, err
	}
	if resp.RequestID == "" || resp.StatusURL == "" {
		return domain.JobHandle{}, &domain.APIError{Kind: domain.ErrTransport, Op: "submit", Detail: "response missing request_id or status_url"}
	}

	c.keys.Store(resp.RequestID, apiKey)
	c.debug("job submitted", map[string]interface{}{
		"request_id":     resp.RequestID,
		"queue_position": resp.QueuePosition,
		"edit":           req.IsEdit(),
	})
	return domain.JobHandle{
		RequestID:     resp.RequestID,
		StatusURL:     resp.StatusURL,
		ResponseURL:   resp.ResponseURL,
		CancelURL:     resp.CancelURL,
		QueuePosition: resp.QueuePosition,
		SubmittedAt:   c.now(),
	}, nil
}

// Forget implements ports.Transport.
func (c *Client) Forget(handle domain.JobHandle) {
	c.keys.Delete(handle.RequestID)
}

// PollStatus implements ports.Transport. It performs one status check and, when
// the job is complete, one result fetch.
func (c *Client) PollStatus(ctx context.Context, handle domain.JobHandle) (domain.JobStatus, error) {
	apiKey, ok := c.keys.Load(handle.RequestID)
	if !ok {
		return domain.JobStatus{}, &domain.APIError{Kind: domain.ErrAuth, Op: "poll", Detail: "unknown job " + handle.RequestID}
	}
	key := apiKey.(string)

	ctx, cancel := context.WithTimeout(ctx, c.pollTimeout)
	defer cancel()

	var st statusResponse
	if err := c.do(ctx, "poll", http.MethodGet, handle.StatusURL, key, nil, &st); err != nil {
		return domain.JobStatus{}, err
	}

	status := domain.JobStatus{QueuePosition: st.QueuePosition, Detail: st.Error}
	switch strings.ToUpper(st.Status) {
	case "IN_QUEUE":
		status.State = domain.JobQueued
		return status, nil
	case "IN_PROGRESS":
		status.State = domain.JobRunning
		return status, nil
	case "FAILED", "ERROR", "CANCELED", "CANCELLED":
		c.keys.Delete(handle.RequestID)
		status.State = domain.JobFailed
		if status.Detail == "" {
			status.Detail = strings.ToLower(st.Status) + detailText(st.Detail)
		}
		return status, nil
	case "COMPLETED":
	default:
		c.debug("unrecognised job status", map[string]interface{}{"request_id": handle.RequestID, "status": st.Status})
		status.State = domain.JobRunning
		return status, nil
	}

	if st.Error != "" {
		c.keys.Delete(handle.RequestID)
		status.State = domain.JobFailed
		return status, nil
	}

	resultURL := handle.ResponseURL
	if resultURL == "" {
		resultURL = strings.TrimSuffix(handle.StatusURL, "/status")
	}
	var result resultResponse
	if err := c.do(ctx, "result", http.MethodGet, resultURL, key, nil, &result); err != nil {
		var apiErr *domain.APIError
		if errors.As(err, &apiErr) && errors.Is(apiErr.Kind, domain.ErrValidation) {
			// fal reports model-side failures of a completed job as 422 on the result.
			c.keys.Delete(handle.RequestID)
			return domain.JobStatus{State: domain.JobFailed, Detail: apiErr.Detail}, nil
		}
		return domain.JobStatus{}, err
	}

	c.keys.Delete(handle.RequestID)
	status.State = domain.JobSucceeded
	for _, img := range result.Images {
		if img.URL != "" {
			status.ArtifactURLs = append(status.ArtifactURLs, img.URL)
		}
	}
	status.Detail = result.Description
	return status, nil
}

func (c *Client) do(ctx context.Context, op, method, url, apiKey string, body []byte, out interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	httpReq, err := http.NewRequestWithContext(ctx, method, url, reader)
	if err != nil {
		return &domain.APIError{Kind: domain.ErrTransport, Op: op, Err: err}
	}
	httpReq.Header.Set("Authorization", "Key "+apiKey)
	httpReq.Header.Set("Accept", "application/json")
	if body != nil {
		httpReq.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &domain.APIError{Kind: domain.ErrTransport, Op: op, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return &domain.APIError{
			Kind:       domain.KindForStatus(resp.StatusCode),
			Op:         op,
			StatusCode: resp.StatusCode,
			Detail:     errorDetail(snippet),
		}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &domain.APIError{Kind: domain.ErrTransport, Op: op, Err: err}
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return &domain.APIError{Kind: domain.ErrTransport, Op: op, Detail: "malformed response", Err: err}
	}
	return nil
}

func (c *Client) debug(msg string, fields map[string]interface{}) {
	if c.logger != nil {
		c.logger.Debug(msg, fields)
	}
}

// errorDetail pulls a human message out of a fal error body.
func errorDetail(body []byte) string {
	var parsed struct {
		Detail json.RawMessage `json:"detail"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(body, &parsed); err == nil {
		if parsed.Error != "" {
			return parsed.Error
		}
		if d := strings.TrimPrefix(detailText(parsed.Detail), ": "); d != "" {
			return d
		}
	}
	return strings.TrimSpace(string(body))
}

// detailText renders fal's "detail" field, which is a string or a list of
// {msg, loc} objects.
func detailText(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if s == "" {
			return ""
		}
		return ": " + s
	}
	var items []struct {
		Msg string `json:"msg"`
	}
	if err := json.Unmarshal(raw, &items); err == nil {
		var msgs []string
		for _, it := range items {
			if it.Msg != "" {
				msgs = append(msgs, it.Msg)
			}
		}
		if len(msgs) > 0 {
			return ": " + strings.Join(msgs, "; ")
		}
	}
	return ""
}

func defaultString(value, fallback string) string {
	if strings.TrimSpace(value) == "" {
		return fallback
	}
	return value
}

var _ ports.Transport = (*Client)(nil)
