package execute_test

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	"nodeflow/pkg/workflow"
	"nodeflow/pkg/workflow/execute"
)

var catalog = workflow.BuiltinCatalog()

func mustNode(id, typeTag string, data map[string]any) workflow.Node {
	n, err := catalog.NewNode(workflow.NodeID(id), typeTag)
	if err != nil {
		panic(err)
	}
	n.Data = data
	return n
}

func link(id, src, srcPort, dst, dstPort string) workflow.Edge {
	return workflow.Edge{
		ID:           workflow.EdgeID(id),
		SourceNodeID: workflow.NodeID(src),
		SourcePortID: workflow.PortID(srcPort),
		TargetNodeID: workflow.NodeID(dst),
		TargetPortID: workflow.PortID(dstPort),
	}
}

// newExecutor returns an executor with a quiet logger, a fixed clock and sequential run ids.
func newExecutor(opts ...execute.Option) *execute.Executor {
	var seq atomic.Int64
	base := []execute.Option{
		execute.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		execute.WithClock(func() time.Time { return time.Date(2026, 1, 5, 10, 0, 0, 0, time.UTC) }),
		execute.WithIDGenerator(func() string { return fmt.Sprintf("run-%d", seq.Add(1)) }),
	}
	return execute.New(append(base, opts...)...)
}

// manualIntoIf is trigger.manual -> logic.if with a boolean edge.
func manualIntoIf() *workflow.Graph {
	trigger := mustNode("trigger", "trigger.manual", nil)
	trigger.Outputs[0].Type = workflow.TypeOf(workflow.KindBoolean)
	return &workflow.Graph{
		ID:    "manual-if",
		Nodes: []workflow.Node{trigger, mustNode("branch", "logic.if", nil)},
		Edges: []workflow.Edge{link("e1", "trigger", "data", "branch", "condition")},
	}
}

func ctxWith(vars map[string]any) workflow.ExecContext {
	return workflow.ExecContext{WorkflowID: "wf", Variables: vars, Timestamp: 1767607200000}
}

type handlerMap map[string]workflow.NodeHandler

func (h handlerMap) Handler(typeTag string) (workflow.NodeHandler, bool) {
	fn, ok := h[typeTag]
	return fn, ok
}
