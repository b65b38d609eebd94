// Package logging provides leveled logging and step tracing for aifamily.
// It offers two complementary outputs:
//   - A leveled slog.Logger for stderr (operational output)
//   - A StepLogger for JSONL traces of every engine timestep (steps.jsonl)
package logging

import (
	"encoding/json"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"
)

// LevelTrace is a custom slog level below Debug. At this level every protocol
// frame exchanged with the engine is logged.
const LevelTrace = slog.LevelDebug - 4

// StepsFile is the name of the step trace inside the data directory.
const StepsFile = "steps.jsonl"

// ParseLevel maps a level name to a slog.Level.
// Supported values: "warn", "info", "debug", "trace" (case-insensitive).
// Unknown values default to info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "warn", "warning":
		return slog.LevelWarn
	case "debug":
		return slog.LevelDebug
	case "trace":
		return LevelTrace
	default:
		return slog.LevelInfo
	}
}

// NewLogger creates a leveled slog.Logger writing text to w.
func NewLogger(level string, w io.Writer) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelTrace {
					a.Value = slog.StringValue("TRACE")
				}
			}
			return a
		},
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Discard returns a logger that drops everything. Packages use it when the
// caller passes no logger.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

// OrDiscard returns l, or Discard when l is nil.
func OrDiscard(l *slog.Logger) *slog.Logger {
	if l == nil {
		return Discard()
	}
	return l
}

// StepEvent is one traced engine timestep.
type StepEvent struct {
	Time      string  `json:"time"`
	Run       string  `json:"run,omitempty"`
	Step      int     `json:"step"`
	Warmup    bool    `json:"warmup,omitempty"`
	Hour      float64 `json:"hour"`
	KWh       float64 `json:"kwh"`
	Price     float64 `json:"price"`
	Bill      float64 `json:"bill"`
	Power     float64 `json:"power"`
	Heuristic bool    `json:"heuristic,omitempty"`
	Writes    int     `json:"writes"`
	Skipped   string  `json:"skipped,omitempty"`
}

// StepLogger appends StepEvents to a JSONL file.
// It is safe for concurrent use. A nil StepLogger is safe to use;
// all methods are no-ops on a nil receiver.
type StepLogger struct {
	mu   sync.Mutex
	file *os.File
	run  string
}

// NewStepLogger opens dir/steps.jsonl for append when level is debug or
// trace. At info level (the default) it returns nil and creates nothing.
// It also returns nil if the file cannot be opened.
func NewStepLogger(dir, level string) *StepLogger {
	if ParseLevel(level) > slog.LevelDebug {
		return nil
	}
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil
	}
	f, err := os.OpenFile(filepath.Join(dir, StepsFile), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return nil
	}
	return &StepLogger{file: f}
}

// SetRun tags subsequent events with a run identifier.
func (sl *StepLogger) SetRun(id string) {
	if sl == nil {
		return
	}
	sl.mu.Lock()
	sl.run = id
	sl.mu.Unlock()
}

// Log writes ev as a single line, stamping Time and Run when unset.
func (sl *StepLogger) Log(ev StepEvent) {
	if sl == nil {
		return
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.file == nil {
		return
	}
	if ev.Time == "" {
		ev.Time = time.Now().UTC().Format(time.RFC3339Nano)
	}
	if ev.Run == "" {
		ev.Run = sl.run
	}

	data, err := json.Marshal(ev)
	if err != nil {
		return
	}
	data = append(data, '\n')
	_, _ = sl.file.Write(data)
}

// Close closes the underlying file. Safe to call on a nil receiver.
func (sl *StepLogger) Close() {
	if sl == nil {
		return
	}

	sl.mu.Lock()
	defer sl.mu.Unlock()

	if sl.file != nil {
		sl.file.Close()
		sl.file = nil
	}
}
