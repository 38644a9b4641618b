package journal

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/doeshing/calltrail/internal/domain"
	"github.com/doeshing/calltrail/internal/ports"
)

// SQLiteJournal persists history in a SQLite database. Rows are only ever
// inserted.
type SQLiteJournal struct {
	db   *sql.DB
	path string
	mu   sync.Mutex
}

// NewSQLiteJournal creates (or opens) the database at path.
func NewSQLiteJournal(path string) (*SQLiteJournal, error) {
	if err := os.MkdirAll(filepath.Dir(path), domain.DirectoryPermissions); err != nil {
		return nil, err
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite journal: %w", err)
	}
	store := &SQLiteJournal{db: db, path: path}
	if err := store.init(); err != nil {
		db.Close()
		return nil, fmt.Errorf("init sqlite journal: %w", err)
	}
	return store, nil
}

func (s *SQLiteJournal) init() error {
	_, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS tool_calls (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		instance_id TEXT,
		seq INTEGER,
		tool_name TEXT NOT NULL,
		timestamp TEXT NOT NULL,
		duration_ms INTEGER,
		arguments TEXT,
		output TEXT,
		success INTEGER
	);`)
	return err
}

// Append inserts a new record.
func (s *SQLiteJournal) Append(record domain.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.Exec(`INSERT INTO tool_calls
		(instance_id, seq, tool_name, timestamp, duration_ms, arguments, output, success)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		record.InstanceID,
		int64(record.Seq),
		record.ToolName,
		record.Timestamp.String(),
		record.DurationMS,
		nullableJSON(record.Arguments),
		nullableJSON(record.Output),
		boolToInt(record.Success),
	)
	return err
}

// Replay returns the newest limit rows, oldest first.
func (s *SQLiteJournal) Replay(ctx context.Context, limit int) ([]domain.Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	rows, err := s.db.QueryContext(ctx, `SELECT instance_id, seq, tool_name, timestamp, duration_ms, arguments, output, success
		FROM tool_calls ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []domain.Record
	for rows.Next() {
		var rec domain.Record
		var instanceID, args, output sql.NullString
		var ts string
		var seq int64
		var success int
		if err := rows.Scan(&instanceID, &seq, &rec.ToolName, &ts, &rec.DurationMS, &args, &output, &success); err != nil {
			return nil, err
		}
		if t, err := time.Parse(time.RFC3339Nano, ts); err == nil {
			rec.Timestamp = domain.NewTimestamp(t)
		}
		rec.InstanceID = instanceID.String
		rec.Seq = uint64(seq)
		if args.Valid {
			rec.Arguments = []byte(args.String)
		}
		if output.Valid {
			rec.Output = []byte(output.String)
		}
		rec.Success = success == 1
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for i, j := 0, len(records)-1; i < j; i, j = i+1, j-1 {
		records[i], records[j] = records[j], records[i]
	}
	return records, nil
}

// Path returns the sqlite database path.
func (s *SQLiteJournal) Path() string {
	return s.path
}

// Close closes the database.
func (s *SQLiteJournal) Close() error {
	return s.db.Close()
}

func nullableJSON(raw []byte) interface{} {
	if len(raw) == 0 {
		return nil
	}
	return string(raw)
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

var _ ports.Journal = (*SQLiteJournal)(nil)
