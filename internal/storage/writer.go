package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/openhire/openhire-agent/internal/interview"
)

// Writer appends transcript messages to a per-interview markdown file,
// a human-readable mirror of the database transcript.
type Writer struct {
	dir string
	mu  sync.Mutex
}

func NewWriter(dir string) *Writer {
	return &Writer{dir: dir}
}

func (w *Writer) Append(interviewID string, msg interview.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", w.dir, err)
	}

	path := w.Path(interviewID)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	if _, err := fmt.Fprintln(f, msg.FormatMarkdown()); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}

	return nil
}

func (w *Writer) Path(interviewID string) string {
	return filepath.Join(w.dir, interviewID+".md")
}
