package etps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/go-logr/logr"
)

// Sink is the external audit consumer of telemetry events. Delivery is
// best-effort; a failing sink degrades telemetry, never decisions.
type Sink interface {
	Deliver(ctx context.Context, ev Event) error
	Close() error
}

// LogSink writes events to a structured logger. It is the default sink for
// interactive use.
type LogSink struct {
	log logr.Logger
}

func NewLogSink(log logr.Logger) *LogSink {
	return &LogSink{log: log.WithName("etps-sink")}
}

func (s *LogSink) Deliver(_ context.Context, ev Event) error {
	s.log.Info("etps event",
		"traceID", ev.TraceID,
		"kind", ev.Kind,
		"components", ev.ComponentIDs,
		"outcome", ev.Outcome,
		"severity", ev.Severity,
		"detail", ev.Detail,
	)
	return nil
}

func (s *LogSink) Close() error { return nil }

// MemorySink records delivered events in order. Used by the CLI to collect a
// validation run for JSON export, and by tests.
type MemorySink struct {
	mu     sync.Mutex
	events []Event
}

func NewMemorySink() *MemorySink { return &MemorySink{} }

func (s *MemorySink) Deliver(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *MemorySink) Close() error { return nil }

// Events returns a copy of everything delivered so far.
func (s *MemorySink) Events() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Event, len(s.events))
	copy(out, s.events)
	return out
}

// FileSink appends events as JSON lines.
type FileSink struct {
	mu  sync.Mutex
	f   *os.File
	enc *json.Encoder
}

func NewFileSink(path string) (*FileSink, error) {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("etps: open sink file %s: %w", path, err)
	}
	return &FileSink{f: f, enc: json.NewEncoder(f)}, nil
}

func (s *FileSink) Deliver(_ context.Context, ev Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(ev)
}

func (s *FileSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.f.Close()
}

type exportDocument struct {
	ETPSVersion string  `json:"etps_version"`
	EventCount  int     `json:"event_count"`
	Events      []Event `json:"events"`
}

// ExportJSON renders events as a single audit document.
func ExportJSON(w io.Writer, events []Event) error {
	doc := exportDocument{
		ETPSVersion: "1.0.0",
		EventCount:  len(events),
		Events:      events,
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("etps: export events: %w", err)
	}
	return nil
}
