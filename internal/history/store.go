// Package history persists check records in a JSON array file (the format
// the price dashboards read) or an append-only JSON Lines file.
package history

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/jmylchreest/farewatch/pkg/fares"
)

// ErrCorrupt is returned when an existing history file cannot be parsed.
var ErrCorrupt = errors.New("history file is corrupt")

// Format selects the on-disk layout.
type Format string

const (
	// FormatJSON stores one indented JSON array, rewritten on every append.
	FormatJSON Format = "json"
	// FormatJSONL stores one record per line and only ever appends.
	FormatJSONL Format = "jsonl"
)

// FormatFor picks the format from the file extension.
func FormatFor(path string) Format {
	if strings.EqualFold(filepath.Ext(path), ".jsonl") {
		return FormatJSONL
	}
	return FormatJSON
}

// Store appends check records to a file.
type Store struct {
	path   string
	format Format
	mu     sync.Mutex
}

// Open returns a store for path. The file is created on the first append.
func Open(path string) *Store {
	return &Store{path: path, format: FormatFor(path)}
}

// Path returns the backing file.
func (s *Store) Path() string { return s.path }

// Format returns the on-disk layout.
func (s *Store) Format() Format { return s.format }

// Append adds rec to the history.
func (s *Store) Append(rec fares.CheckRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create history dir: %w", err)
		}
	}
	if s.format == FormatJSONL {
		return s.appendLine(rec)
	}
	return s.rewriteArray(rec)
}

func (s *Store) appendLine(rec fares.CheckRecord) error {
	line, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	f, err := os.OpenFile(s.path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open history: %w", err)
	}
	if _, err := f.Write(append(line, '\n')); err != nil {
		_ = f.Close()
		return fmt.Errorf("write history: %w", err)
	}
	return f.Close()
}

// rewriteArray keeps earlier records as raw JSON so fields written by other
// tools survive, then replaces the file atomically.
func (s *Store) rewriteArray(rec fares.CheckRecord) error {
	existing, err := s.readRaw()
	if err != nil {
		return err
	}

	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode record: %w", err)
	}
	all := append(existing, json.RawMessage(encoded))

	data, err := json.MarshalIndent(all, "", "  ")
	if err != nil {
		return fmt.Errorf("encode history: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), ".history-*.json")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(append(data, '\n')); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return fmt.Errorf("replace history: %w", err)
	}
	return nil
}

func (s *Store) readRaw() ([]json.RawMessage, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}

	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrCorrupt, s.path, err)
	}
	return raw, nil
}

// Load returns every record in file order. A missing file yields no records.
func (s *Store) Load() ([]fares.CheckRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == FormatJSONL {
		return s.loadLines()
	}

	raw, err := s.readRaw()
	if err != nil {
		return nil, err
	}
	records := make([]fares.CheckRecord, 0, len(raw))
	for i, r := range raw {
		var rec fares.CheckRecord
		if err := json.Unmarshal(r, &rec); err != nil {
			return nil, fmt.Errorf("%w: record %d: %v", ErrCorrupt, i, err)
		}
		records = append(records, rec)
	}
	return records, nil
}

func (s *Store) loadLines() ([]fares.CheckRecord, error) {
	f, err := os.Open(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []fares.CheckRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("open history: %w", err)
	}
	defer f.Close()

	records := []fares.CheckRecord{}
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	line := 0
	for sc.Scan() {
		line++
		b := bytes.TrimSpace(sc.Bytes())
		if len(b) == 0 {
			continue
		}
		var rec fares.CheckRecord
		if err := json.Unmarshal(b, &rec); err != nil {
			return nil, fmt.Errorf("%w: line %d: %v", ErrCorrupt, line, err)
		}
		records = append(records, rec)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read history: %w", err)
	}
	return records, nil
}

// Latest returns the most recent record, or false when the history is empty.
func (s *Store) Latest() (fares.CheckRecord, bool, error) {
	records, err := s.Load()
	if err != nil || len(records) == 0 {
		return fares.CheckRecord{}, false, err
	}
	return records[len(records)-1], true, nil
}
