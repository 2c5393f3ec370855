package events

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/zen-systems/taskroute/pkg/schema"
)

// LogSink writes events to a structured logger. It never fails.
type LogSink struct {
	Logger *zap.Logger
}

// NewLogSink creates a sink over the given logger.
func NewLogSink(logger *zap.Logger) *LogSink {
	return &LogSink{Logger: logger}
}

// Emit logs the event at Info level.
func (s *LogSink) Emit(ev schema.RouteEvent) error {
	s.Logger.Info("route event",
		zap.String("type", string(ev.Type)),
		zap.String("task_id", ev.TaskID),
		zap.String("plan_id", ev.PlanID),
		zap.String("from", ev.From),
		zap.String("to", ev.To),
		zap.String("reason", ev.Reason),
		zap.String("actor", ev.Actor))
	return nil
}

// AuditSink appends events as JSON lines under an audit directory, one file
// per task, so the full decision history of a task reads top to bottom.
type AuditSink struct {
	dir string
	mu  sync.Mutex
}

// NewAuditSink creates the audit directory and returns a sink over it.
func NewAuditSink(dir string) (*AuditSink, error) {
	if dir == "" {
		return nil, fmt.Errorf("audit directory is required")
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}
	return &AuditSink{dir: dir}, nil
}

// Emit appends the event to the task's audit file.
func (s *AuditSink) Emit(ev schema.RouteEvent) error {
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	path := filepath.Join(s.dir, fmt.Sprintf("%s.jsonl", ev.TaskID))
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	_, err = f.Write(append(data, '\n'))
	return err
}

// CaptureSink records events in memory for tests.
type CaptureSink struct {
	mu     sync.Mutex
	events []schema.RouteEvent
	Fail   error
}

// Emit records the event, or returns the configured failure.
func (s *CaptureSink) Emit(ev schema.RouteEvent) error {
	if s.Fail != nil {
		return s.Fail
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

// Events returns a copy of the captured events.
func (s *CaptureSink) Events() []schema.RouteEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]schema.RouteEvent, len(s.events))
	copy(out, s.events)
	return out
}

// ByType returns captured events of the given type.
func (s *CaptureSink) ByType(t schema.EventType) []schema.RouteEvent {
	var out []schema.RouteEvent
	for _, ev := range s.Events() {
		if ev.Type == t {
			out = append(out, ev)
		}
	}
	return out
}

// MultiSink fans events out to several sinks, returning the first error.
type MultiSink []Sink

// Emit sends the event to every sink.
func (m MultiSink) Emit(ev schema.RouteEvent) error {
	var firstErr error
	for _, s := range m {
		if err := s.Emit(ev); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
