package cli

import "github.com/doeshing/afcover/internal/domain"

// Exit codes per error kind.
const (
	ExitOK            = 0
	ExitGeneric       = 1
	ExitAuth          = 3
	ExitValidation    = 4
	ExitRateLimited   = 5
	ExitTransport     = 6
	ExitDownload      = 7
	ExitBudget        = 8
	ExitLedgerCorrupt = 9
	ExitCancelled     = 10
	ExitTimedOut      = 11
	ExitJobFailed     = 12
)

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	switch domain.Classify(err) {
	case domain.KindAuth:
		return ExitAuth
	case domain.KindValidation:
		return ExitValidation
	case domain.KindRateLimit:
		return ExitRateLimited
	case domain.KindTransport:
		return ExitTransport
	case domain.KindDownload:
		return ExitDownload
	case domain.KindBudget:
		return ExitBudget
	case domain.KindLedgerCorrupt:
		return ExitLedgerCorrupt
	case domain.KindCancelled:
		return ExitCancelled
	case domain.KindTimedOut:
		return ExitTimedOut
	case domain.KindJobFailed:
		return ExitJobFailed
	default:
		return ExitGeneric
	}
}
