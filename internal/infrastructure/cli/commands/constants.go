package commands

import "time"

// CLI-specific constants
const (
	// DefaultHistoryLimit is how many journal records `history list` prints
	DefaultHistoryLimit = 20
	// MaxHistoryAnalysisRecords bounds `history stats`
	MaxHistoryAnalysisRecords = 1000
	// DefaultTopTools is how many tools `history stats` ranks
	DefaultTopTools = 5
	// DefaultRecordTimeout bounds `record --server`
	DefaultRecordTimeout = 10 * time.Second
)

// Error messages
const (
	ErrDoctorServiceUnavailable = "doctor service unavailable"
	ErrJournalUnavailable       = "journal unavailable"
	ErrKeyRequired              = "--key is required"
	ErrToolRequired             = "--tool is required"
	ErrLocalWithConnection      = "--local and --connection are mutually exclusive"
)

// Success messages
const (
	MsgConfigurationValid       = "Configuration valid"
	MsgNoDifferencesFromDefault = "No differences from default configuration."
	MsgNoHistoryRecorded        = "No history recorded yet."
)

// Time formats
const (
	// TimestampFormat is the standard timestamp format
	TimestampFormat = time.RFC3339
)
