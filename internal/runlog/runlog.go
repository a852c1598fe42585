package runlog

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

const (
	KindClassify = "classify"
	KindHarden   = "harden"

	StatusOK      = "ok"
	StatusAborted = "aborted"
)

// Record is the run-status bookkeeping for one classification run or
// hardening cycle, written as one JSON object per line.
type Record struct {
	RunID       string    `json:"run_id"`
	Kind        string    `json:"kind"`
	Status      string    `json:"status"`
	Started     time.Time `json:"started"`
	Finished    time.Time `json:"finished"`
	DurationMS  int64     `json:"duration_ms"`
	Fetched     int       `json:"fetched,omitempty"`
	Classified  int       `json:"classified,omitempty"`
	Malicious   int       `json:"malicious,omitempty"`
	Skipped     int       `json:"skipped,omitempty"`
	Transitions []string  `json:"transitions,omitempty"`
	Error       string    `json:"error,omitempty"`
}

type Logger struct {
	mu sync.Mutex
	w  io.Writer
}

func NewLogger(w io.Writer) *Logger {
	return &Logger{w: w}
}

func Open(path string) (*Logger, func() error, error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, nil, err
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return nil, nil, err
	}
	return NewLogger(file), file.Close, nil
}

func (l *Logger) Write(rec Record) error {
	if rec.DurationMS == 0 && !rec.Finished.IsZero() && !rec.Started.IsZero() {
		rec.DurationMS = rec.Finished.Sub(rec.Started).Milliseconds()
	}

	data, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	_, err = l.w.Write(append(data, '\n'))
	return err
}
