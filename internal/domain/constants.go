package domain

import "time"

// File permissions constants
const (
	// DirectoryPermissions is the default permission for directories (rwxr-xr-x)
	DirectoryPermissions = 0o755
	// FilePermissions is the permission for journal files (rw-r--r--)
	FilePermissions = 0o644
	// SecureFilePermissions is the permission for sensitive files (rw-------)
	SecureFilePermissions = 0o600
)

// History constants
const (
	// MaxEntries is the in-memory history capacity
	MaxEntries = 1000
	// DefaultMaxResults is the default page size of a history query
	DefaultMaxResults = 50
	// DefaultJournalQueueSize bounds the background journal writer queue
	DefaultJournalQueueSize = 256
)

// Journal drivers
const (
	JournalDriverJSONL  = "jsonl"
	JournalDriverSQLite = "sqlite"
)

// Fleet constants
const (
	// DefaultConnectionID is used when a caller names no connection
	DefaultConnectionID = "default"
	// LocalPeerURL addresses the current process without a network hop
	LocalPeerURL = "local"
	// DefaultFleetTimeout bounds each remote snapshot request
	DefaultFleetTimeout = 5 * time.Second
	// DefaultFleetParallelism bounds concurrent remote requests
	DefaultFleetParallelism = 8
)

// Server constants
const (
	// DefaultListenAddr is the default HTTP listen address for `serve`
	DefaultListenAddr = "127.0.0.1:7419"
	// DefaultHTTPClientTimeout is the outer timeout of the peer HTTP client
	DefaultHTTPClientTimeout = 30 * time.Second
)

// Time formats
const (
	// TimestampFormat is the standard timestamp format
	TimestampFormat = time.RFC3339
)
