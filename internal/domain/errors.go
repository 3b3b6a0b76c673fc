package domain

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Sentinel error kinds. Typed errors below unwrap to exactly one of these.
var (
	ErrAuth           = errors.New("authentication failed")
	ErrValidation     = errors.New("invalid request")
	ErrRateLimited    = errors.New("rate limited")
	ErrTransport      = errors.New("transport failure")
	ErrDownload       = errors.New("download failed")
	ErrBudgetExceeded = errors.New("daily budget exceeded")
	ErrLedgerCorrupt  = errors.New("cost ledger corrupt")
	ErrCancelled      = errors.New("generation cancelled")
	ErrTimedOut       = errors.New("generation timed out")
	ErrJobFailed      = errors.New("generation failed")
)

// ErrorKind is the stable, user-facing category of an error.
type ErrorKind string

const (
	KindNone          ErrorKind = ""
	KindAuth          ErrorKind = "auth"
	KindValidation    ErrorKind = "validation"
	KindRateLimit     ErrorKind = "rate_limit"
	KindTransport     ErrorKind = "transport"
	KindDownload      ErrorKind = "download"
	KindBudget        ErrorKind = "budget_exceeded"
	KindLedgerCorrupt ErrorKind = "ledger_corrupt"
	KindCancelled     ErrorKind = "cancelled"
	KindTimedOut      ErrorKind = "timed_out"
	KindJobFailed     ErrorKind = "job_failed"
	KindUnknown       ErrorKind = "unknown"
)

var kindOrder = []struct {
	sentinel error
	kind     ErrorKind
}{
	{ErrBudgetExceeded, KindBudget},
	{ErrLedgerCorrupt, KindLedgerCorrupt},
	{ErrAuth, KindAuth},
	{ErrValidation, KindValidation},
	{ErrRateLimited, KindRateLimit},
	{ErrDownload, KindDownload},
	{ErrCancelled, KindCancelled},
	{ErrTimedOut, KindTimedOut},
	{ErrJobFailed, KindJobFailed},
	{ErrTransport, KindTransport},
}

// Classify maps any error onto an ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	for _, k := range kindOrder {
		if errors.Is(err, k.sentinel) {
			return k.kind
		}
	}
	switch {
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimedOut
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindTransport
	}
	return KindUnknown
}

// IsTransient reports whether a remote call may succeed if simply repeated.
func IsTransient(err error) bool {
	switch Classify(err) {
	case KindTransport, KindRateLimit:
		return true
	}
	return false
}

// ValidationError rejects a request locally, before any network call.
type ValidationError struct {
	Field  string
	Reason string
}

// NewValidationError builds a ValidationError.
func NewValidationError(field, reason string) *ValidationError {
	return &ValidationError{Field: field, Reason: reason}
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return "invalid request: " + e.Reason
	}
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error { return ErrValidation }

// APIError is a failure talking to the generation API.
type APIError struct {
	Kind       error
	Op         string
	StatusCode int
	Detail     string
	Err        error
}

func (e *APIError) Error() string {
	msg := e.Kind.Error()
	if e.Op != "" {
		msg = e.Op + ": " + msg
	}
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Detail != "" {
		msg += ": " + e.Detail
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *APIError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// KindForStatus maps an HTTP status code onto an error sentinel.
func KindForStatus(code int) error {
	switch {
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return ErrAuth
	case code == http.StatusTooManyRequests:
		return ErrRateLimited
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return ErrValidation
	default:
		return ErrTransport
	}
}

// BudgetError rejects a request that would push today's spend past the limit.
type BudgetError struct {
	Date      Date
	Limit     Money
	Spent     Money
	Held      Money
	Requested Money
}

// Remaining is the budget left for the day when the request was rejected.
func (e *BudgetError) Remaining() Money {
	rem := e.Limit.Sub(e.Spent).Sub(e.Held)
	if rem.IsNegative() {
		return ZeroMoney
	}
	return rem
}

func (e *BudgetError) Error() string {
	return fmt.Sprintf("daily budget exceeded: %s requested, %s remaining of %s on %s",
		FormatUSD(e.Requested), FormatUSD(e.Remaining()), FormatUSD(e.Limit), e.Date)
}

func (e *BudgetError) Unwrap() error { return ErrBudgetExceeded }

// DownloadError aborts artifact fetching at the first failed file.
type DownloadError struct {
	Index int
	URL   string
	Err   error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("download artifact %d: %v", e.Index, e.Err)
}

func (e *DownloadError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrDownload}
	}
	return []error{ErrDownload, e.Err}
}

// LedgerCorruptError reports an unreadable or malformed ledger store.
type LedgerCorruptError struct {
	Location string
	Line     int
	Err      error
}

func (e *LedgerCorruptError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("cost ledger corrupt at %s:%d: %v", e.Location, e.Line, e.Err)
	}
	return fmt.Sprintf("cost ledger corrupt at %s: %v", e.Location, e.Err)
}

func (e *LedgerCorruptError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrLedgerCorrupt}
	}
	return []error{ErrLedgerCorrupt, e.Err}
}
