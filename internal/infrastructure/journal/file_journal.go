package journal

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/doeshing/calltrail/internal/domain"
	"github.com/doeshing/calltrail/internal/ports"
)

// FileJournal appends history records to a jsonl file, one record per line.
// The file is never rewritten in place.
type FileJournal struct {
	path string
	mu   sync.Mutex
	file *os.File
}

// NewFileJournal creates a journal backed by path. The file is opened lazily
// on the first Append.
func NewFileJournal(path string) *FileJournal {
	return &FileJournal{path: path}
}

// Append implements ports.Journal.
func (f *FileJournal) Append(record domain.Record) error {
	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	data = append(data, '\n')

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		if err := f.open(); err != nil {
			return err
		}
	}
	_, err = f.file.Write(data)
	return err
}

// open prepares the file for appending. A crash may have left a partial last
// line; terminating it keeps the next record on a line of its own.
func (f *FileJournal) open() error {
	if err := os.MkdirAll(filepath.Dir(f.path), domain.DirectoryPermissions); err != nil {
		return err
	}
	file, err := os.OpenFile(f.path, os.O_CREATE|os.O_APPEND|os.O_RDWR, domain.FilePermissions)
	if err != nil {
		return err
	}
	partial, err := endsWithoutNewline(file)
	if err != nil {
		file.Close()
		return err
	}
	if partial {
		if _, err := file.Write([]byte{'\n'}); err != nil {
			file.Close()
			return err
		}
	}
	f.file = file
	return nil
}

func endsWithoutNewline(file *os.File) (bool, error) {
	info, err := file.Stat()
	if err != nil {
		return false, err
	}
	if info.Size() == 0 {
		return false, nil
	}
	last := make([]byte, 1)
	if _, err := file.ReadAt(last, info.Size()-1); err != nil {
		return false, err
	}
	return last[0] != '\n', nil
}

// Replay implements ports.Journal. Lines that do not decode are skipped,
// which covers a truncated final line left by a crash.
func (f *FileJournal) Replay(ctx context.Context, limit int) ([]domain.Record, error) {
	if limit <= 0 {
		return nil, nil
	}
	file, err := os.Open(f.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}
	defer file.Close()

	window := make([]domain.Record, 0, limit)
	reader := bufio.NewReader(file)
	for {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		line, readErr := reader.ReadBytes('\n')
		line = bytes.TrimSpace(line)
		if len(line) > 0 {
			var rec domain.Record
			if err := json.Unmarshal(line, &rec); err == nil {
				if len(window) == limit {
					copy(window, window[1:])
					window = window[:limit-1]
				}
				window = append(window, rec)
			}
		}
		if readErr == io.EOF {
			break
		}
		if readErr != nil {
			return nil, readErr
		}
	}
	return window, nil
}

// Path returns the backing file path.
func (f *FileJournal) Path() string {
	return f.path
}

// Close releases the file handle.
func (f *FileJournal) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.file == nil {
		return nil
	}
	err := f.file.Close()
	f.file = nil
	return err
}

var _ ports.Journal = (*FileJournal)(nil)
