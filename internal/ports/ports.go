// Package ports defines the interfaces (ports) for the hexagonal architecture.
//
// This package establishes the contract between the application core and external
// adapters (infrastructure). The history store, usage counters and fleet
// aggregator depend only on these abstractions; the JSONL and SQLite journals,
// the HTTP peer client and the Prometheus collectors are adapters behind them.
//
// Key architectural concepts:
//   - Ports: Interfaces defined here (e.g., Journal, PeerClient)
//   - Adapters: Concrete implementations in the infrastructure layer
//   - Dependency inversion: Application depends on abstractions, not implementations
package ports

import (
	"context"
	"time"

	"github.com/doeshing/calltrail/internal/domain"
)

// ConfigProvider loads the latest configuration from persistent storage.
// Implementations typically read from ~/.calltrail/config.yaml.
type ConfigProvider interface {
	Load(context.Context) (domain.Config, error)
}

// Journal is the append-only durable mirror of the history store.
// Append is called from a single background goroutine; Replay is called once
// during initialisation, before any Append.
type Journal interface {
	Append(domain.Record) error
	// Replay returns up to limit of the most recent records in insertion order.
	Replay(ctx context.Context, limit int) ([]domain.Record, error)
	Path() string
	Close() error
}

// RecordSink accepts records for asynchronous persistence. Enqueue must not
// block; it reports false when the record was not accepted.
type RecordSink interface {
	Enqueue(domain.Record) bool
}

// PeerResolver maps a connection id onto the processes reachable through it.
type PeerResolver interface {
	Resolve(ctx context.Context, connectionID string) ([]domain.Peer, error)
}

// PeerClient fetches one process's snapshots. Implementations must honour ctx
// cancellation; the aggregator applies the per-peer timeout through it.
type PeerClient interface {
	FetchUsage(ctx context.Context, peer domain.Peer) (domain.ServerUsage, error)
	FetchHistory(ctx context.Context, peer domain.Peer) (domain.ServerHistory, error)
}

// Metrics receives operational signals. All methods must be cheap and safe
// for concurrent use.
type Metrics interface {
	CallRecorded(tool string, success bool, duration time.Duration)
	HistorySize(entries int)
	JournalWrite(err error)
	JournalDropped()
	PeerFetch(kind string, available bool, duration time.Duration)
}

// Logger provides structured logging abstraction for the application layer.
// Implementations can route to different backends (stdout, files, external services).
type Logger interface {
	Debug(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
	Warn(msg string, fields map[string]interface{})
	Error(msg string, err error, fields map[string]interface{})
}

// NopMetrics discards every signal.
type NopMetrics struct{}

func (NopMetrics) CallRecorded(string, bool, time.Duration) {}
func (NopMetrics) HistorySize(int)                          {}
func (NopMetrics) JournalWrite(error)                       {}
func (NopMetrics) JournalDropped()                          {}
func (NopMetrics) PeerFetch(string, bool, time.Duration)    {}
