// Package transcript writes per-session conversation transcripts as NDJSON.
// Logging is asynchronous: events are queued and flushed by a background
// writer so request handling never blocks on disk.
package transcript

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// Event is one logged conversation entry.
type Event struct {
	SessionID string `json:"session_id"`
	LessonID  string `json:"lesson_id,omitempty"`
	Role      string `json:"role"`
	Phase     string `json:"phase,omitempty"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

// Config controls transcript logging.
type Config struct {
	Enabled   bool
	Dir       string
	QueueSize int
}

// Logger accepts transcript events. Log never blocks: when the queue is full
// the event is dropped and counted.
type Logger interface {
	Log(ev Event)
	Close() error
}

// NewLogger creates a transcript logger. When disabled it returns a no-op.
func NewLogger(cfg Config) (Logger, error) {
	if !cfg.Enabled {
		return noopLogger{}, nil
	}
	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir %s: %w", cfg.Dir, err)
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}

	l := &fileLogger{
		dir:   cfg.Dir,
		queue: make(chan Event, cfg.QueueSize),
		done:  make(chan struct{}),
	}
	go l.run()
	return l, nil
}

type fileLogger struct {
	dir   string
	queue chan Event
	done  chan struct{}

	mu      sync.Mutex
	closed  bool
	dropped int
}

func (l *fileLogger) Log(ev Event) {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.mu.Unlock()

	if ev.Timestamp == "" {
		ev.Timestamp = time.Now().UTC().Format(time.RFC3339)
	}

	select {
	case l.queue <- ev:
	default:
		l.mu.Lock()
		l.dropped++
		dropped := l.dropped
		l.mu.Unlock()
		slog.Warn("Transcript queue full, event dropped", "session_id", ev.SessionID, "dropped_total", dropped)
	}
}

func (l *fileLogger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	l.mu.Unlock()

	close(l.queue)
	<-l.done
	return nil
}

func (l *fileLogger) run() {
	defer close(l.done)
	for ev := range l.queue {
		if err := l.write(ev); err != nil {
			slog.Warn("Failed to write transcript event", "error", err, "session_id", ev.SessionID)
		}
	}
}

func (l *fileLogger) write(ev Event) error {
	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal transcript event: %w", err)
	}

	path := filepath.Join(l.dir, ev.SessionID+".ndjson")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("open transcript file %s: %w", path, err)
	}
	defer func() {
		if closeErr := f.Close(); closeErr != nil {
			slog.Debug("Failed to close transcript file", "error", closeErr, "path", path)
		}
	}()

	if _, err := f.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("append transcript line: %w", err)
	}
	return nil
}

type noopLogger struct{}

func (noopLogger) Log(Event) {}

func (noopLogger) Close() error { return nil }
