package journal

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/doeshing/calltrail/internal/domain"
	"github.com/doeshing/calltrail/internal/ports"
)

func record(i int) domain.Record {
	return domain.Record{
		ToolName:   "tool",
		Timestamp:  domain.TimestampFromMillis(int64(1_700_000_000_000 + i)),
		DurationMS: int64(i),
		Arguments:  json.RawMessage(`{"i":1}`),
		Success:    true,
		InstanceID: "test",
		Seq:        uint64(i),
	}
}

func TestFileJournalReplayKeepsNewest(t *testing.T) {
	j := NewFileJournal(filepath.Join(t.TempDir(), "nested", "history.jsonl"))
	for i := 1; i <= 10; i++ {
		if err := j.Append(record(i)); err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}
	if err := j.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}

	got, err := j.Replay(context.Background(), 4)
	if err != nil {
		t.Fatalf("Replay error: %v", err)
	}
	if len(got) != 4 {
		t.Fatalf("expected 4 records, got %d", len(got))
	}
	for i, rec := range got {
		if rec.Seq != uint64(7+i) {
			t.Errorf("record %d has seq %d, want %d", i, rec.Seq, 7+i)
		}
	}
}

func TestFileJournalToleratesTruncatedTail(t *testing.T) {
	path := filepath.Join(t.TempDir(), "history.jsonl")
	j := NewFileJournal(path)
	if err := j.Append(record(1)); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	j.Close()

	f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatalf("open error: %v", err)
	}
	f.WriteString(`{"tool_name":"half`)
	f.Close()

	got, err := j.Replay(context.Background(), domain.MaxEntries)
	if err != nil {
		t.Fatalf("Replay error: %v", err)
	}
	if len(got) != 1 || got[0].Seq != 1 {
		t.Fatalf("expected only the intact record, got %+v", got)
	}

	// The next append must land on its own line.
	if err := j.Append(record(2)); err != nil {
		t.Fatalf("Append error: %v", err)
	}
	j.Close()
	got, err = j.Replay(context.Background(), domain.MaxEntries)
	if err != nil {
		t.Fatalf("Replay error: %v", err)
	}
	if len(got) != 2 || got[1].Seq != 2 {
		t.Fatalf("expected records 1 and 2, got %+v", got)
	}
}

func TestFileJournalReplayMissingFile(t *testing.T) {
	j := NewFileJournal(filepath.Join(t.TempDir(), "absent.jsonl"))
	got, err := j.Replay(context.Background(), 10)
	if err != nil || got != nil {
		t.Fatalf("Replay() = %v, %v; want nil, nil", got, err)
	}
}

func TestSQLiteJournalRoundTrip(t *testing.T) {
	j, err := NewSQLiteJournal(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("NewSQLiteJournal error: %v", err)
	}
	defer j.Close()

	for i := 1; i <= 5; i++ {
		rec := record(i)
		if i == 3 {
			rec.Success = false
			rec.Arguments = nil
		}
		if err := j.Append(rec); err != nil {
			t.Fatalf("Append error: %v", err)
		}
	}

	got, err := j.Replay(context.Background(), 3)
	if err != nil {
		t.Fatalf("Replay error: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 records, got %d", len(got))
	}
	if got[0].Seq != 3 || got[2].Seq != 5 {
		t.Errorf("unexpected order: %d..%d", got[0].Seq, got[2].Seq)
	}
	if got[0].Success || got[0].Arguments != nil {
		t.Errorf("record 3 should be a failure without arguments, got %+v", got[0])
	}
	if !got[2].Timestamp.Equal(record(5).Timestamp.Time) {
		t.Errorf("timestamp = %v, want %v", got[2].Timestamp, record(5).Timestamp)
	}
}

type memJournal struct {
	mu      sync.Mutex
	records []domain.Record
	fail    bool
	block   chan struct{}
	closed  bool
}

func (m *memJournal) Append(rec domain.Record) error {
	if m.block != nil {
		<-m.block
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.fail {
		return errors.New("disk full")
	}
	m.records = append(m.records, rec)
	return nil
}

func (m *memJournal) Replay(context.Context, int) ([]domain.Record, error) { return nil, nil }
func (m *memJournal) Path() string                                         { return "mem" }
func (m *memJournal) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *memJournal) len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

func TestWriterDrainsOnClose(t *testing.T) {
	mem := &memJournal{}
	w := NewWriter(mem, nil, nil, 64)
	for i := 0; i < 50; i++ {
		if !w.Enqueue(record(i)) {
			t.Fatalf("Enqueue(%d) rejected", i)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
	if mem.len() != 50 {
		t.Fatalf("expected 50 persisted records, got %d", mem.len())
	}
	if !mem.closed {
		t.Fatal("journal was not closed")
	}
	if w.Enqueue(record(99)) {
		t.Fatal("Enqueue after Close should be rejected")
	}
}

func TestWriterDropsWhenFull(t *testing.T) {
	mem := &memJournal{block: make(chan struct{})}
	w := NewWriter(mem, nil, nil, 1)

	// The first record is taken by the loop and blocks in Append; the second
	// fills the queue; the third must be dropped without blocking.
	w.Enqueue(record(1))
	deadline := time.Now().Add(time.Second)
	for len(w.queue) != 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	if !w.Enqueue(record(2)) {
		t.Fatal("second record should fit in the queue")
	}
	if w.Enqueue(record(3)) {
		t.Fatal("third record should be dropped")
	}

	close(mem.block)
	w.Close()
	if mem.len() != 2 {
		t.Fatalf("expected 2 persisted records, got %d", mem.len())
	}
}

func TestWriterSurvivesJournalErrors(t *testing.T) {
	mem := &memJournal{fail: true}
	w := NewWriter(mem, nil, nil, 4)
	w.Enqueue(record(1))
	if err := w.Close(); err != nil {
		t.Fatalf("Close error: %v", err)
	}
}

type dropCounter struct {
	ports.NopMetrics
	dropped atomic.Int64
}

func (d *dropCounter) JournalDropped() { d.dropped.Add(1) }

func TestWriterCloseRacingEnqueueLosesNothingSilently(t *testing.T) {
	for round := 0; round < 20; round++ {
		mem := &memJournal{}
		metrics := &dropCounter{}
		w := NewWriter(mem, nil, metrics, 1024)

		var accepted atomic.Int64
		var wg sync.WaitGroup
		for g := 0; g < 4; g++ {
			wg.Add(1)
			go func(g int) {
				defer wg.Done()
				for i := 0; i < 100; i++ {
					if w.Enqueue(record(g*100 + i)) {
						accepted.Add(1)
					}
				}
			}(g)
		}
		if err := w.Close(); err != nil {
			t.Fatalf("Close error: %v", err)
		}
		wg.Wait()

		if got := int64(mem.len()); got != accepted.Load() {
			t.Fatalf("round %d: accepted %d records, persisted %d", round, accepted.Load(), got)
		}
		if accepted.Load()+metrics.dropped.Load() != 400 {
			t.Fatalf("round %d: accepted %d + dropped %d != 400", round, accepted.Load(), metrics.dropped.Load())
		}
	}
}
