// Package file writes the command audit trail as newline-delimited JSON.
package file

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/vshulcz/Migrascope/internal/services/audit"
)

// Rotation limits for the audit file.
const (
	MaxSizeMB  = 10
	MaxBackups = 5
	MaxAgeDays = 30
)

// Writer appends one JSON line per command. The file is rotated by size.
type Writer struct {
	out *lumberjack.Logger
	mu  sync.Mutex
}

// New opens path lazily on the first event.
func New(path string) *Writer {
	if path == "" {
		return nil
	}
	return &Writer{out: &lumberjack.Logger{
		Filename:   path,
		MaxSize:    MaxSizeMB,
		MaxBackups: MaxBackups,
		MaxAge:     MaxAgeDays,
	}}
}

// Notify writes evt. A nil Writer is a no-op.
func (w *Writer) Notify(_ context.Context, evt audit.Event) error {
	if w == nil {
		return nil
	}
	line, err := json.Marshal(evt)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	line = append(line, '\n')

	w.mu.Lock()
	defer w.mu.Unlock()
	if _, err := w.out.Write(line); err != nil {
		return fmt.Errorf("write audit file: %w", err)
	}
	return nil
}

// Close releases the file handle.
func (w *Writer) Close() error {
	if w == nil {
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.out.Close()
}
