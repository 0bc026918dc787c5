package trace

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/aretw0/arbor/pkg/domain"
)

// maxLine bounds a single encoded event when reading.
const maxLine = 4 << 20

// Writer appends events to a JSONL stream. Safe for concurrent use.
type Writer struct {
	mu     sync.Mutex
	file   *os.File
	writer *bufio.Writer
	enc    *json.Encoder
}

// NewWriter creates a writer encoding to w.
func NewWriter(w io.Writer) *Writer {
	bw := bufio.NewWriter(w)
	return &Writer{writer: bw, enc: json.NewEncoder(bw)}
}

// OpenFile creates a writer that appends to the file at path, creating it if needed.
func OpenFile(path string) (*Writer, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open trace file: %w", err)
	}
	w := NewWriter(f)
	w.file = f
	return w, nil
}

// Write appends e as one line and flushes it.
func (w *Writer) Write(e domain.Event) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.enc.Encode(e); err != nil {
		return fmt.Errorf("encode trace event: %w", err)
	}
	if err := w.writer.Flush(); err != nil {
		return fmt.Errorf("flush trace: %w", err)
	}
	if w.file != nil {
		if err := w.file.Sync(); err != nil {
			return fmt.Errorf("sync trace: %w", err)
		}
	}
	return nil
}

// Observe writes ev, making the writer usable as a bus listener. Encoding
// failures are dropped.
func (w *Writer) Observe(_ context.Context, ev domain.Event) {
	_ = w.Write(ev)
}

// Close flushes and, for writers returned by OpenFile, closes the file.
func (w *Writer) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := w.writer.Flush(); err != nil {
		return err
	}
	if w.file != nil {
		return w.file.Close()
	}
	return nil
}

// Read decodes every event of a JSONL stream. Blank lines are skipped.
func Read(r io.Reader) ([]domain.Event, error) {
	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 64*1024), maxLine)

	var out []domain.Event
	line := 0
	for sc.Scan() {
		line++
		raw := sc.Bytes()
		if len(raw) == 0 {
			continue
		}
		var e domain.Event
		if err := json.Unmarshal(raw, &e); err != nil {
			return nil, fmt.Errorf("line %d: %w", line, err)
		}
		out = append(out, e)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read trace: %w", err)
	}
	return out, nil
}

// ReadFile decodes the JSONL file at path.
func ReadFile(path string) ([]domain.Event, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Read(f)
}

// GroupByExecution splits events by execution ID, preserving order within each
// execution and returning the IDs in order of first appearance.
func GroupByExecution(events []domain.Event) ([]string, map[string][]domain.Event) {
	var ids []string
	groups := make(map[string][]domain.Event)
	for _, e := range events {
		if _, ok := groups[e.ExecutionID]; !ok {
			ids = append(ids, e.ExecutionID)
		}
		groups[e.ExecutionID] = append(groups[e.ExecutionID], e)
	}
	return ids, groups
}
