// Package journal holds the durable, append-only mirrors of the history store
// and the background writer that feeds them.
package journal

import (
	"sync"

	"github.com/doeshing/calltrail/internal/domain"
	"github.com/doeshing/calltrail/internal/ports"
)

// Writer drains a bounded queue of records into a Journal from one
// goroutine, so disk latency stays off the caller's path.
//
// Usage:
//
//	w := journal.NewWriter(journal.NewFileJournal(path), logger, metrics, 256)
//	defer w.Close()
//	w.Enqueue(rec)
type Writer struct {
	journal ports.Journal
	logger  ports.Logger
	metrics ports.Metrics
	queue   chan domain.Record
	done    chan struct{}
	wg      sync.WaitGroup
	// mu orders sends against Close: once closed is set under the write
	// lock, nothing else reaches the queue and the final flush sees it all.
	mu     sync.RWMutex
	closed bool
	once   sync.Once
}

// NewWriter starts the drain goroutine.
func NewWriter(j ports.Journal, logger ports.Logger, metrics ports.Metrics, size int) *Writer {
	if size <= 0 {
		size = domain.DefaultJournalQueueSize
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	w := &Writer{
		journal: j,
		logger:  logger,
		metrics: metrics,
		queue:   make(chan domain.Record, size),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.writeLoop()
	return w
}

// Enqueue hands rec to the writer without blocking. It reports false when
// the queue is full or the writer is closed; the record is then not persisted.
func (w *Writer) Enqueue(rec domain.Record) bool {
	w.mu.RLock()
	defer w.mu.RUnlock()
	if w.closed {
		w.drop("journal writer closed, record not persisted", rec)
		return false
	}
	select {
	case w.queue <- rec:
		return true
	default:
		w.drop("journal queue full, record not persisted", rec)
		return false
	}
}

func (w *Writer) drop(msg string, rec domain.Record) {
	w.metrics.JournalDropped()
	if w.logger != nil {
		w.logger.Warn(msg, map[string]interface{}{
			"tool_name": rec.ToolName,
			"seq":       rec.Seq,
		})
	}
}

// Journal returns the underlying journal.
func (w *Writer) Journal() ports.Journal {
	return w.journal
}

// Close drains queued records and closes the journal.
func (w *Writer) Close() error {
	var err error
	w.once.Do(func() {
		w.mu.Lock()
		w.closed = true
		w.mu.Unlock()
		close(w.done)
		w.wg.Wait()
		err = w.journal.Close()
	})
	return err
}

func (w *Writer) writeLoop() {
	defer w.wg.Done()
	for {
		select {
		case rec := <-w.queue:
			w.write(rec)
		case <-w.done:
			w.flush()
			return
		}
	}
}

// flush drains all buffered records.
func (w *Writer) flush() {
	for {
		select {
		case rec := <-w.queue:
			w.write(rec)
		default:
			return
		}
	}
}

func (w *Writer) write(rec domain.Record) {
	err := w.journal.Append(rec)
	w.metrics.JournalWrite(err)
	if err != nil && w.logger != nil {
		w.logger.Error("journal append failed", err, map[string]interface{}{
			"path":      w.journal.Path(),
			"tool_name": rec.ToolName,
			"seq":       rec.Seq,
		})
	}
}
