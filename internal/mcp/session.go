package mcp

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"nodeflow/internal/logging"
	"nodeflow/internal/wiring"
	"nodeflow/pkg/workflow"
	"nodeflow/pkg/workflow/execute"
)

// SessionState tracks the lifecycle of an asynchronous run.
type SessionState string

const (
	StateRunning SessionState = "running"
	StateDone    SessionState = "done"
	StateError   SessionState = "error"
)

// Signal is one run event as exposed to MCP clients.
type Signal struct {
	Timestamp string `json:"ts"`
	Event     string `json:"event"`
	NodeID    string `json:"node_id,omitempty"`
	NodeType  string `json:"node_type,omitempty"`
	Message   string `json:"message,omitempty"`
}

// SignalBus is a thread-safe, append-only event log. It observes a run.
type SignalBus struct {
	mu      sync.Mutex
	signals []Signal
}

func (b *SignalBus) OnEvent(ev execute.RunEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.signals = append(b.signals, Signal{
		Timestamp: ev.Time.UTC().Format(time.RFC3339Nano),
		Event:     string(ev.Type),
		NodeID:    string(ev.Node),
		NodeType:  ev.NodeType,
		Message:   ev.Message,
	})
}

// Since returns the signals from index idx onward; negative idx is clamped to 0.
func (b *SignalBus) Since(idx int) []Signal {
	b.mu.Lock()
	defer b.mu.Unlock()
	if idx < 0 {
		idx = 0
	}
	if idx >= len(b.signals) {
		return nil
	}
	out := make([]Signal, len(b.signals)-idx)
	copy(out, b.signals[idx:])
	return out
}

func (b *SignalBus) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.signals)
}

// Session is one workflow execution started by start_run and polled by
// get_run_events / get_run_result.
type Session struct {
	ID         string
	WorkflowID workflow.WorkflowID
	Bus        *SignalBus

	state  SessionState
	result *execute.Result
	err    error
	doneCh chan struct{}
	cancel context.CancelFunc

	mu sync.Mutex
}

// NewSession spawns the run goroutine and returns immediately. The run
// outlives the tool call that started it; Cancel stops it.
func NewSession(ctx context.Context, eng *wiring.Engine, g *workflow.Graph, ectx workflow.ExecContext, save bool) *Session {
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	s := &Session{
		ID:         "s-" + uuid.NewString()[:8],
		WorkflowID: g.ID,
		Bus:        &SignalBus{},
		state:      StateRunning,
		doneCh:     make(chan struct{}),
		cancel:     cancel,
	}
	go s.run(runCtx, eng, g, ectx, save)
	return s
}

func (s *Session) run(ctx context.Context, eng *wiring.Engine, g *workflow.Graph, ectx workflow.ExecContext, save bool) {
	defer close(s.doneCh)
	defer s.cancel()
	logger := logging.New("mcp-session")

	res, err := eng.Run(ctx, g, ectx, save, s.Bus)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.result, s.err = res, err
	switch {
	case err != nil:
		s.state = StateError
		logger.Error("run could not be recorded", "session", s.ID, "error", err)
	case !res.Success:
		s.state = StateError
	default:
		s.state = StateDone
	}
	logger.Info("run finished", "session", s.ID, "workflow", s.WorkflowID, "state", s.state)
}

// GetState returns the current session state in a thread-safe manner.
func (s *Session) GetState() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Cancel interrupts the run before its next node.
func (s *Session) Cancel() { s.cancel() }

// Done is closed when the run goroutine exits.
func (s *Session) Done() <-chan struct{} { return s.doneCh }

// Result is the execution result once Done is closed.
func (s *Session) Result() *execute.Result {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.result
}

// Err reports a persistence failure; execution failures live in Result.
func (s *Session) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}
