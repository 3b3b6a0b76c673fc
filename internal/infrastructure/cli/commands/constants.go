package commands

// TimestampFormat is how history timestamps are listed.
const TimestampFormat = "2006-01-02 15:04:05"

// Error messages
const (
	ErrConfigLoaderUnavailable  = "config loader unavailable"
	ErrDoctorServiceUnavailable = "doctor service unavailable"
	ErrHistoryStoreUnavailable  = "history store unavailable (enable history in config)"
	ErrLedgerUnavailable        = "ledger unavailable"
	ErrLibraryUnavailable       = "reference library unavailable"
	ErrQueryRequired            = "--query required"
)

// Success messages
const (
	MsgConfigurationValid = "Configuration valid"
	MsgNoHistoryRecorded  = "No history recorded yet."
	MsgHistoryCleared     = "History cleared."
)
