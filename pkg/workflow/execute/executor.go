// Package execute runs a validated workflow graph node by node in
// topological order.
package execute

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"

	"nodeflow/internal/logging"
	"nodeflow/pkg/workflow"
	"nodeflow/pkg/workflow/infer"
)

var (
	// ErrInvalidGraph is returned when structural validation fails; no node runs.
	ErrInvalidGraph = errors.New("execute: graph is invalid")

	// ErrUnconnectedInput is returned when a required input has no value.
	ErrUnconnectedInput = errors.New("execute: required input is not connected")

	// ErrUnknownNode is returned for a category or type tag nothing can run.
	ErrUnknownNode = errors.New("execute: unknown node")

	// ErrNodeFailed wraps errors and panics raised by node logic.
	ErrNodeFailed = errors.New("execute: node failed")
)

// LogEntry is one timestamped line of the run log.
type LogEntry struct {
	Time    time.Time       `json:"time"`
	Level   string          `json:"level"`
	NodeID  workflow.NodeID `json:"nodeId,omitempty"`
	Message string          `json:"message"`
}

func (l LogEntry) String() string {
	var b strings.Builder
	b.WriteString(l.Time.UTC().Format(time.RFC3339Nano))
	b.WriteString(" [")
	b.WriteString(l.Level)
	b.WriteString("] ")
	if l.NodeID != "" {
		b.WriteString(string(l.NodeID))
		b.WriteString(": ")
	}
	b.WriteString(l.Message)
	return b.String()
}

// Result is the outcome of one execution. On failure Output is nil and Err
// carries the cause; Logs hold everything recorded up to that point.
type Result struct {
	RunID      string                                      `json:"runId"`
	WorkflowID workflow.WorkflowID                         `json:"workflowId"`
	Success    bool                                        `json:"success"`
	Output     map[workflow.NodeID]map[workflow.PortID]any `json:"output,omitempty"`
	Error      string                                      `json:"error,omitempty"`
	Err        error                                       `json:"-"`
	Logs       []LogEntry                                  `json:"logs"`
	StartedAt  time.Time                                   `json:"startedAt"`
	FinishedAt time.Time                                   `json:"finishedAt"`
}

// Executor runs graphs. It holds configuration only, so one Executor may
// serve concurrent Execute calls; each call gets its own run state.
type Executor struct {
	handlers workflow.HandlerLookup
	observer RunObserver
	log      *slog.Logger
	now      func() time.Time
	newID    func() string
}

// Option configures an Executor.
type Option func(*Executor)

// WithHandlers adds node handlers for type tags the executor does not know.
func WithHandlers(h workflow.HandlerLookup) Option {
	return func(e *Executor) { e.handlers = h }
}

// WithObserver receives every run event.
func WithObserver(o RunObserver) Option {
	return func(e *Executor) { e.observer = o }
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(e *Executor) { e.log = l }
}

// WithClock overrides the time source for log timestamps.
func WithClock(now func() time.Time) Option {
	return func(e *Executor) { e.now = now }
}

// WithIDGenerator overrides run id generation.
func WithIDGenerator(gen func() string) Option {
	return func(e *Executor) { e.newID = gen }
}

// New returns an Executor.
func New(opts ...Option) *Executor {
	e := &Executor{now: time.Now, newID: uuid.NewString}
	for _, o := range opts {
		o(e)
	}
	if e.log == nil {
		e.log = logging.New("execute")
	}
	return e
}

// run is the state of one Execute call.
type run struct {
	exec     *Executor
	id       string
	workflow workflow.WorkflowID
	ectx     workflow.ExecContext
	outputs  map[workflow.PortKey]any
	produced map[workflow.NodeID]workflow.Outputs
	executed map[workflow.NodeID]bool
	logs     []LogEntry
}

// Execute validates g, infers its types for diagnostics, then runs every
// node in topological order. Every failure, including a panic in node
// logic, is returned as an unsuccessful Result rather than an error.
func (e *Executor) Execute(ctx context.Context, g *workflow.Graph, ectx workflow.ExecContext) *Result {
	r := &run{
		exec:     e,
		id:       e.newID(),
		workflow: g.ID,
		ectx:     ectx,
		outputs:  make(map[workflow.PortKey]any),
		produced: make(map[workflow.NodeID]workflow.Outputs),
		executed: make(map[workflow.NodeID]bool, len(g.Nodes)),
	}
	if r.ectx.WorkflowID == "" {
		r.ectx.WorkflowID = g.ID
	}

	res := &Result{RunID: r.id, WorkflowID: g.ID, StartedAt: e.now()}
	r.emit(RunEvent{Type: EventRunStart, Message: fmt.Sprintf("starting workflow %s", g.ID)})

	output, err := r.execute(ctx, g)
	res.FinishedAt = e.now()
	if err != nil {
		r.emit(RunEvent{Type: EventRunError, Error: err, Message: err.Error()})
		res.Err = err
		res.Error = err.Error()
	} else {
		r.emit(RunEvent{Type: EventRunComplete, Elapsed: res.FinishedAt.Sub(res.StartedAt),
			Message: fmt.Sprintf("workflow completed, %d nodes executed", len(r.executed))})
		res.Success = true
		res.Output = output
	}
	res.Logs = r.logs
	return res
}

func (r *run) execute(ctx context.Context, g *workflow.Graph) (map[workflow.NodeID]map[workflow.PortID]any, error) {
	if v := workflow.Validate(g); !v.Valid {
		msgs := make([]string, len(v.Errors))
		for i, ve := range v.Errors {
			msgs[i] = ve.Message()
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidGraph, strings.Join(msgs, "; "))
	}

	if types, err := infer.Infer(g); err != nil {
		r.logf("warn", "", "type inference failed: %v", err)
	} else {
		rep := types.Report()
		r.logf("info", "", "inferred %d of %d port types", rep.InferredPorts, rep.TotalPorts)
	}

	order, err := workflow.TopologicalSort(g)
	if err != nil {
		return nil, err
	}

	incoming := make(map[workflow.PortKey]*workflow.Edge, len(g.Edges))
	for i := range g.Edges {
		e := &g.Edges[i]
		incoming[workflow.KeyOf(e.TargetNodeID, e.TargetPortID)] = e
	}

	for _, id := range order {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("run interrupted before %s: %w", id, err)
		}
		n, _ := g.NodeByID(id)
		inputs, err := r.gatherInputs(n, incoming)
		if err != nil {
			return nil, err
		}

		r.emit(RunEvent{Type: EventNodeStart, Node: n.ID, NodeType: n.Type, Message: "executing " + n.Type})
		start := r.exec.now()
		outs, err := r.runNode(ctx, n, inputs)
		if err != nil {
			r.emit(RunEvent{Type: EventNodeError, Node: n.ID, NodeType: n.Type, Error: err, Message: err.Error()})
			return nil, err
		}

		for port, v := range outs {
			r.outputs[workflow.KeyOf(n.ID, port)] = v
		}
		r.produced[n.ID] = outs
		r.executed[n.ID] = true
		r.emit(RunEvent{Type: EventNodeFinish, Node: n.ID, NodeType: n.Type,
			Elapsed: r.exec.now().Sub(start), Message: "completed " + n.Type})
	}

	final := make(map[workflow.NodeID]map[workflow.PortID]any)
	for _, n := range g.TerminalNodes() {
		if _, dup := final[n.ID]; dup {
			continue
		}
		vals := make(map[workflow.PortID]any, len(r.produced[n.ID]))
		for port, v := range r.produced[n.ID] {
			vals[port] = v
		}
		final[n.ID] = vals
	}
	return final, nil
}

// gatherInputs resolves each input port from the output store. When several
// edges target one port the last one in edge order wins.
func (r *run) gatherInputs(n *workflow.Node, incoming map[workflow.PortKey]*workflow.Edge) (map[workflow.PortID]any, error) {
	inputs := make(map[workflow.PortID]any, len(n.Inputs))
	for _, p := range n.Inputs {
		e, ok := incoming[workflow.KeyOf(n.ID, p.ID)]
		if ok {
			if v, ok := r.outputs[workflow.KeyOf(e.SourceNodeID, e.SourcePortID)]; ok {
				inputs[p.ID] = v
				continue
			}
		}
		if p.Required {
			return nil, fmt.Errorf("%w: %s", ErrUnconnectedInput, workflow.KeyOf(n.ID, p.ID))
		}
	}
	return inputs, nil
}

// runNode resolves the handler and calls it, turning panics into errors.
func (r *run) runNode(ctx context.Context, n *workflow.Node, inputs map[workflow.PortID]any) (outs workflow.Outputs, err error) {
	h, err := r.exec.resolve(n)
	if err != nil {
		return nil, err
	}

	defer func() {
		if p := recover(); p != nil {
			r.exec.log.Error("node panicked", "node", n.ID, "panic", p, "stack", string(debug.Stack()))
			outs, err = nil, fmt.Errorf("%w: %s (%s): panic: %v", ErrNodeFailed, n.ID, n.Type, p)
		}
	}()

	inv := workflow.Invocation{
		Node:    n,
		Inputs:  inputs,
		Context: r.ectx,
		Logf: func(format string, args ...any) {
			r.emit(RunEvent{Type: EventNodeLog, Node: n.ID, NodeType: n.Type, Message: fmt.Sprintf(format, args...)})
		},
	}
	outs, err = h(ctx, inv)
	if err != nil {
		return nil, fmt.Errorf("%w: %s (%s): %w", ErrNodeFailed, n.ID, n.Type, err)
	}
	if outs == nil {
		outs = workflow.Outputs{}
	}
	return outs, nil
}

// resolve picks the handler for n: built-ins by category and type first,
// then handlers contributed through WithHandlers.
func (e *Executor) resolve(n *workflow.Node) (workflow.NodeHandler, error) {
	var table map[string]workflow.NodeHandler
	switch n.Category {
	case workflow.CategoryTrigger:
		table = triggerHandlers
	case workflow.CategoryLogic:
		table = logicHandlers
	case workflow.CategoryTransform:
		table = transformHandlers
	case workflow.CategoryEffect:
		table = effectHandlers
	case workflow.CategoryData:
		table = dataHandlers
	default:
		return nil, fmt.Errorf("%w: category %q on node %s", ErrUnknownNode, n.Category, n.ID)
	}
	if h, ok := table[n.Type]; ok {
		return h, nil
	}
	if e.handlers != nil {
		if cat, ok := workflow.CategoryOf(n.Type); ok && cat == n.Category {
			if h, ok := e.handlers.Handler(n.Type); ok {
				return h, nil
			}
		}
	}
	return nil, fmt.Errorf("%w: type %q on node %s", ErrUnknownNode, n.Type, n.ID)
}

func (r *run) emit(ev RunEvent) {
	ev.RunID = r.id
	ev.Workflow = r.workflow
	ev.Time = r.exec.now()

	switch ev.Type {
	case EventRunStart, EventRunComplete, EventNodeStart, EventNodeFinish, EventNodeLog:
		r.append("info", ev.Node, ev.Time, ev.Message)
	case EventNodeError, EventRunError:
		r.append("error", ev.Node, ev.Time, ev.Message)
	default:
		panic(fmt.Sprintf("execute: unhandled run event %q", ev.Type))
	}

	if r.exec.observer != nil {
		r.exec.observer.OnEvent(ev)
	}
}

func (r *run) logf(level string, node workflow.NodeID, format string, args ...any) {
	r.append(level, node, r.exec.now(), fmt.Sprintf(format, args...))
}

func (r *run) append(level string, node workflow.NodeID, at time.Time, msg string) {
	r.logs = append(r.logs, LogEntry{Time: at, Level: level, NodeID: node, Message: msg})
}
