package execute

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"nodeflow/pkg/workflow"
)

// RunEventType classifies run events for filtering and routing.
type RunEventType string

const (
	EventRunStart    RunEventType = "run_start"
	EventNodeStart   RunEventType = "node_start"
	EventNodeFinish  RunEventType = "node_finish"
	EventNodeError   RunEventType = "node_error"
	EventNodeLog     RunEventType = "node_log"
	EventRunComplete RunEventType = "run_complete"
	EventRunError    RunEventType = "run_error"
)

// RunEvent is a single observation from one execution.
type RunEvent struct {
	Type     RunEventType
	RunID    string
	Workflow workflow.WorkflowID
	Node     workflow.NodeID
	NodeType string
	Message  string
	Time     time.Time
	Elapsed  time.Duration
	Error    error
}

// RunObserver receives events during an execution. Observers are called
// synchronously from the run loop.
type RunObserver interface {
	OnEvent(RunEvent)
}

// RunObserverFunc adapts a plain function to RunObserver.
type RunObserverFunc func(RunEvent)

func (f RunObserverFunc) OnEvent(e RunEvent) { f(e) }

// MultiObserver fans out events to multiple observers.
type MultiObserver []RunObserver

func (m MultiObserver) OnEvent(e RunEvent) {
	for _, obs := range m {
		obs.OnEvent(e)
	}
}

// LogObserver writes run events as structured slog lines.
type LogObserver struct {
	Logger *slog.Logger
}

func (o *LogObserver) OnEvent(e RunEvent) {
	logger := o.Logger
	if logger == nil {
		logger = slog.Default()
	}

	attrs := []slog.Attr{
		slog.String("event", string(e.Type)),
		slog.String("run", e.RunID),
	}
	if e.Node != "" {
		attrs = append(attrs, slog.String("node", string(e.Node)))
	}
	if e.NodeType != "" {
		attrs = append(attrs, slog.String("type", e.NodeType))
	}
	if e.Message != "" {
		attrs = append(attrs, slog.String("msg", e.Message))
	}
	if e.Elapsed > 0 {
		attrs = append(attrs, slog.Duration("elapsed", e.Elapsed))
	}
	if e.Error != nil {
		attrs = append(attrs, slog.String("error", e.Error.Error()))
	}

	level := slog.LevelDebug
	switch e.Type {
	case EventRunStart, EventRunComplete:
		level = slog.LevelInfo
	case EventNodeError, EventRunError:
		level = slog.LevelWarn
	}
	logger.LogAttrs(context.Background(), level, "run", attrs...)
}

// TraceCollector accumulates events in memory. Safe for concurrent use.
type TraceCollector struct {
	mu     sync.Mutex
	events []RunEvent
}

func (t *TraceCollector) OnEvent(e RunEvent) {
	t.mu.Lock()
	t.events = append(t.events, e)
	t.mu.Unlock()
}

// Events returns a copy of all collected events.
func (t *TraceCollector) Events() []RunEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make([]RunEvent, len(t.events))
	copy(out, t.events)
	return out
}

// EventsOfType returns only events matching typ.
func (t *TraceCollector) EventsOfType(typ RunEventType) []RunEvent {
	t.mu.Lock()
	defer t.mu.Unlock()
	var out []RunEvent
	for _, e := range t.events {
		if e.Type == typ {
			out = append(out, e)
		}
	}
	return out
}

// Reset clears collected events.
func (t *TraceCollector) Reset() {
	t.mu.Lock()
	t.events = nil
	t.mu.Unlock()
}
