// Package history keeps the bounded in-memory window of recorded tool calls
// and answers filtered, paginated queries over it.
package history

import (
	"context"
	"sync"
	"time"

	"github.com/doeshing/calltrail/internal/domain"
	"github.com/doeshing/calltrail/internal/ports"
)

// State is the lifecycle stage of a Store.
type State int

const (
	StateUninitialized State = iota
	StateInitialized
	StateActive
)

func (s State) String() string {
	switch s {
	case StateInitialized:
		return "initialized"
	case StateActive:
		return "active"
	default:
		return "uninitialized"
	}
}

// Options configures a Store. Zero values are usable: capacity defaults to
// domain.MaxEntries and nil collaborators are skipped.
type Options struct {
	Capacity      int
	ReplayOnStart bool
	// Journal is read once during Init when ReplayOnStart is set.
	Journal ports.Journal
	// Sink receives every appended record for persistence.
	Sink    ports.RecordSink
	Logger  ports.Logger
	Metrics ports.Metrics
}

// Store is a fixed-capacity FIFO of records. The oldest record is evicted
// when a new one arrives at capacity.
type Store struct {
	opts Options

	once    sync.Once
	initErr error

	mu         sync.RWMutex
	state      State
	instanceID string
	buf        []domain.Record
	start      int
	size       int
	seq        uint64
}

// NewStore builds an uninitialized store.
func NewStore(opts Options) *Store {
	if opts.Capacity <= 0 {
		opts.Capacity = domain.MaxEntries
	}
	if opts.Metrics == nil {
		opts.Metrics = ports.NopMetrics{}
	}
	return &Store{
		opts: opts,
		buf:  make([]domain.Record, opts.Capacity),
	}
}

// Init moves the store to the initialized state and, when configured,
// restores the newest records from the journal. Only the first call has any
// effect; later calls return its result.
func (s *Store) Init(ctx context.Context, instanceID string) error {
	s.once.Do(func() {
		s.initErr = s.init(ctx, instanceID)
	})
	return s.initErr
}

func (s *Store) init(ctx context.Context, instanceID string) error {
	var replayed []domain.Record
	if s.opts.ReplayOnStart && s.opts.Journal != nil {
		started := time.Now()
		records, err := s.opts.Journal.Replay(ctx, s.opts.Capacity)
		if err != nil {
			// A damaged journal must not keep the process from recording.
			s.warn("history replay failed", map[string]interface{}{
				"path":  s.opts.Journal.Path(),
				"error": err.Error(),
			})
		} else {
			replayed = records
			s.debug("history replayed", map[string]interface{}{
				"path":     s.opts.Journal.Path(),
				"records":  len(records),
				"duration": time.Since(started).String(),
			})
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.instanceID = instanceID
	s.state = StateInitialized
	for _, rec := range replayed {
		s.push(rec)
		// New appends continue numbering after the replayed window.
		if rec.Seq > s.seq {
			s.seq = rec.Seq
		}
	}
	if s.size > 0 {
		s.state = StateActive
	}
	s.opts.Metrics.HistorySize(s.size)
	return nil
}

// Append stores rec, assigning its sequence number and instance id, and
// hands it to the journal sink. Persistence problems never surface here.
func (s *Store) Append(rec domain.Record) (domain.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == StateUninitialized {
		return domain.Record{}, domain.ErrNotInitialized
	}
	s.seq++
	rec = rec.Clone()
	rec.Seq = s.seq
	rec.InstanceID = s.instanceID
	s.push(rec)
	s.state = StateActive

	// Enqueue under the lock so the journal sees records in insertion order.
	if s.opts.Sink != nil {
		s.opts.Sink.Enqueue(rec)
	}
	s.opts.Metrics.HistorySize(s.size)
	return rec, nil
}

func (s *Store) push(rec domain.Record) {
	capacity := len(s.buf)
	if s.size < capacity {
		s.buf[(s.start+s.size)%capacity] = rec
		s.size++
		return
	}
	s.buf[s.start] = rec
	s.start = (s.start + 1) % capacity
}

// Snapshot returns the retained records, oldest first.
func (s *Store) Snapshot() ([]domain.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == StateUninitialized {
		return nil, domain.ErrNotInitialized
	}
	out := make([]domain.Record, s.size)
	capacity := len(s.buf)
	for i := 0; i < s.size; i++ {
		out[i] = s.buf[(s.start+i)%capacity]
	}
	return out, nil
}

// Stats reports the number of retained records.
func (s *Store) Stats() (domain.HistoryStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state == StateUninitialized {
		return domain.HistoryStats{}, domain.ErrNotInitialized
	}
	return domain.HistoryStats{TotalEntries: s.size}, nil
}

// State returns the lifecycle stage.
func (s *Store) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// InstanceID returns the id stamped on appended records.
func (s *Store) InstanceID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.instanceID
}

// Capacity returns the maximum number of retained records.
func (s *Store) Capacity() int {
	return len(s.buf)
}

func (s *Store) warn(msg string, fields map[string]interface{}) {
	if s.opts.Logger != nil {
		s.opts.Logger.Warn(msg, fields)
	}
}

func (s *Store) debug(msg string, fields map[string]interface{}) {
	if s.opts.Logger != nil {
		s.opts.Logger.Debug(msg, fields)
	}
}
