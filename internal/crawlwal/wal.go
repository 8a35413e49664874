// Package crawlwal is a write-ahead log of crawl phase transitions
// (observed/diffed/persisting/persisted/failed), so a crashed crawl can be
// diagnosed and the next crawl's delta still converges — surviving partial
// writes are tolerated because the delta is recomputed every crawl.
package crawlwal

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// EntryType names a crawl-phase transition.
type EntryType string

const (
	EntryObserved   EntryType = "observed"
	EntryDiffed     EntryType = "diffed"
	EntryPersisting EntryType = "persisting"
	EntryPersisted  EntryType = "persisted"
	EntryFailed     EntryType = "failed"
	EntrySkipped    EntryType = "skipped"
)

// Entry is a single WAL entry.
type Entry struct {
	Timestamp time.Time       `json:"timestamp"`
	Sequence  int64           `json:"sequence"`
	Type      EntryType       `json:"type"`
	Phase     string          `json:"phase,omitempty"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error,omitempty"`
}

// WAL appends crawl-phase entries to an on-disk, append-only log.
type WAL struct {
	mu       sync.Mutex
	file     *os.File
	writer   *bufio.Writer
	sequence int64
	dir      string
}

// Open creates or opens a WAL in dir, rotated by crawl-start timestamp.
func Open(dir string) (*WAL, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("crawlwal: create directory: %w", err)
	}

	filename := fmt.Sprintf("crawl-%s.wal", time.Now().Format("20060102-150405"))
	path := filepath.Join(dir, filename)

	file, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("crawlwal: open file: %w", err)
	}

	w := &WAL{
		file:   file,
		writer: bufio.NewWriter(file),
		dir:    dir,
	}
	return w, nil
}

// Close flushes and closes the WAL.
func (w *WAL) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return err
	}
	return w.file.Close()
}

// Append adds a phase entry.
func (w *WAL) Append(entryType EntryType, phase string, data interface{}) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.sequence++

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("crawlwal: marshal data: %w", err)
	}

	entry := Entry{
		Timestamp: time.Now(),
		Sequence:  w.sequence,
		Type:      entryType,
		Phase:     phase,
		Data:      jsonData,
	}
	return w.writeEntry(entry)
}

// AppendError adds a failed-phase entry.
func (w *WAL) AppendError(phase string, data interface{}, errToLog error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	w.sequence++

	jsonData, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("crawlwal: marshal data: %w", err)
	}

	entry := Entry{
		Timestamp: time.Now(),
		Sequence:  w.sequence,
		Type:      EntryFailed,
		Phase:     phase,
		Data:      jsonData,
		Error:     errToLog.Error(),
	}
	return w.writeEntry(entry)
}

func (w *WAL) writeEntry(entry Entry) error {
	line, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("crawlwal: marshal entry: %w", err)
	}

	if _, err := w.writer.Write(line); err != nil {
		return fmt.Errorf("crawlwal: write entry: %w", err)
	}
	if _, err := w.writer.WriteString("\n"); err != nil {
		return fmt.Errorf("crawlwal: write newline: %w", err)
	}
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("crawlwal: flush: %w", err)
	}
	return w.file.Sync()
}

// Reader replays a single WAL file.
type Reader struct {
	scanner *bufio.Scanner
	file    *os.File
}

// NewReader opens a WAL file for replay.
func NewReader(path string) (*Reader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("crawlwal: open file: %w", err)
	}
	return &Reader{scanner: bufio.NewScanner(file), file: file}, nil
}

// Next reads the next entry, or io.EOF at end of file.
func (r *Reader) Next() (*Entry, error) {
	if !r.scanner.Scan() {
		if err := r.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, io.EOF
	}

	var entry Entry
	if err := json.Unmarshal(r.scanner.Bytes(), &entry); err != nil {
		return nil, fmt.Errorf("crawlwal: unmarshal entry: %w", err)
	}
	return &entry, nil
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.file.Close()
}

// Replay replays every entry after `since` across every WAL file in dir, in
// file-glob order.
func Replay(dir string, since time.Time, handler func(*Entry) error) error {
	files, err := filepath.Glob(filepath.Join(dir, "crawl-*.wal"))
	if err != nil {
		return fmt.Errorf("crawlwal: list files: %w", err)
	}

	for _, file := range files {
		if err := replayFile(file, since, handler); err != nil {
			return err
		}
	}
	return nil
}

func replayFile(file string, since time.Time, handler func(*Entry) error) error {
	reader, err := NewReader(file)
	if err != nil {
		return err
	}
	defer reader.Close()

	for {
		entry, err := reader.Next()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			return err
		}
		if entry.Timestamp.After(since) {
			if err := handler(entry); err != nil {
				return err
			}
		}
	}
}
