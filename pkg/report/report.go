// Package report accumulates install-time errors, warnings, and missing
// files from concurrent workers and renders the final install report
// (C14, §5).
package report

import (
	"fmt"
	"io"
	"sync"
)

// Level classifies one logged entry.
type Level int

const (
	LevelInfo Level = iota
	LevelWarning
	LevelError
	LevelMissing
)

func (l Level) String() string {
	switch l {
	case LevelInfo:
		return "INFO"
	case LevelWarning:
		return "WARN"
	case LevelError:
		return "ERROR"
	case LevelMissing:
		return "MISSING"
	default:
		return "UNKNOWN"
	}
}

// Entry is one logged message.
type Entry struct {
	Level   Level
	Message string
}

// Logger is a mutex-protected, append-only log shared across worker
// goroutines (§5).
type Logger struct {
	mu      sync.Mutex
	entries []Entry
}

// New creates an empty logger.
func New() *Logger {
	return &Logger{}
}

// Info records an informational entry.
func (l *Logger) Info(format string, args ...interface{}) {
	l.add(LevelInfo, format, args...)
}

// Warning records a recoverable-problem entry.
func (l *Logger) Warning(format string, args ...interface{}) {
	l.add(LevelWarning, format, args...)
}

// Error records a failed-operation entry.
func (l *Logger) Error(format string, args ...interface{}) {
	l.add(LevelError, format, args...)
}

// Missing records a missing-source-file entry, tracked separately so the
// report can call them out by section.
func (l *Logger) Missing(path string) {
	l.add(LevelMissing, "missing file: %s", path)
}

func (l *Logger) add(level Level, format string, args ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, Entry{Level: level, Message: fmt.Sprintf(format, args...)})
}

// Entries returns a snapshot of every logged entry in order.
func (l *Logger) Entries() []Entry {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Entry, len(l.entries))
	copy(out, l.entries)
	return out
}

// Count returns how many entries were logged at level.
func (l *Logger) Count(level Level) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, e := range l.entries {
		if e.Level == level {
			n++
		}
	}
	return n
}

// HasErrors reports whether any error-level entry was logged.
func (l *Logger) HasErrors() bool {
	return l.Count(LevelError) > 0
}

// reportLevels is the fixed section order a rendered report groups by:
// every error, then every warning, then every missing-file entry.
var reportLevels = []Level{LevelError, LevelWarning, LevelMissing}

// WriteReport renders "[LEVEL] message" lines grouped by section in
// reportLevels order, followed by a summary line.
func (l *Logger) WriteReport(w io.Writer) error {
	entries := l.Entries()

	for _, level := range reportLevels {
		for _, e := range entries {
			if e.Level != level {
				continue
			}
			if _, err := fmt.Fprintf(w, "[%s] %s\n", e.Level, e.Message); err != nil {
				return fmt.Errorf("report: write entry: %w", err)
			}
		}
	}

	_, err := fmt.Fprintf(w, "\n%d error(s), %d warning(s), %d missing file(s)\n",
		l.Count(LevelError), l.Count(LevelWarning), l.Count(LevelMissing))
	if err != nil {
		return fmt.Errorf("report: write summary: %w", err)
	}
	return nil
}
