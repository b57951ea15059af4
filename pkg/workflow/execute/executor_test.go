package execute_test

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"golang.org/x/sync/errgroup"

	"nodeflow/pkg/plugin"
	"nodeflow/pkg/plugin/textkit"
	"nodeflow/pkg/workflow"
	"nodeflow/pkg/workflow/execute"
)

func TestExecute_ReduceChain(t *testing.T) {
	g := &workflow.Graph{
		ID: "sum",
		Nodes: []workflow.Node{
			mustNode("numbers", "data.constant", map[string]any{"value": []any{1.0, 2.0, 3.5}}),
			mustNode("sum", "transform.reduce", nil),
		},
		Edges: []workflow.Edge{link("e1", "numbers", "value", "sum", "array")},
	}
	res := newExecutor().Execute(context.Background(), g, ctxWith(nil))
	if !res.Success {
		t.Fatalf("run failed: %v", res.Err)
	}
	want := map[workflow.NodeID]map[workflow.PortID]any{"sum": {"result": 6.5}}
	if diff := cmp.Diff(want, res.Output); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
}

func TestExecute_ReduceInitialAndConcatenation(t *testing.T) {
	g := &workflow.Graph{
		ID: "concat",
		Nodes: []workflow.Node{
			mustNode("words", "data.constant", map[string]any{"value": []any{"b", "c"}}),
			mustNode("prefix", "data.constant", map[string]any{"value": "a"}),
			mustNode("fold", "transform.reduce", nil),
		},
		Edges: []workflow.Edge{
			link("e1", "words", "value", "fold", "array"),
			link("e2", "prefix", "value", "fold", "initial"),
		},
	}
	res := newExecutor().Execute(context.Background(), g, ctxWith(nil))
	if !res.Success {
		t.Fatalf("run failed: %v", res.Err)
	}
	if got := res.Output["fold"]["result"]; got != "abc" {
		t.Errorf("result = %v, want abc", got)
	}
}

func TestExecute_BuiltinBehaviours(t *testing.T) {
	tests := []struct {
		name string
		node workflow.Node
		feed map[string]any // input port -> constant value
		want workflow.Outputs
	}{
		{
			name: "http trigger",
			node: mustNode("n", "trigger.http", map[string]any{"method": "POST", "url": "https://example.com/hook"}),
			want: workflow.Outputs{"request": map[string]any{"method": "POST", "url": "https://example.com/hook", "timestamp": int64(1767607200000)}},
		},
		{
			name: "timer trigger",
			node: mustNode("n", "trigger.timer", nil),
			want: workflow.Outputs{"timestamp": int64(1767607200000)},
		},
		{
			name: "compare numbers of different go types",
			node: mustNode("n", "logic.compare", nil),
			feed: map[string]any{"a": 2, "b": 2.0},
			want: workflow.Outputs{"result": true},
		},
		{
			name: "compare objects",
			node: mustNode("n", "logic.compare", nil),
			feed: map[string]any{"a": map[string]any{"k": "v"}, "b": map[string]any{"k": "w"}},
			want: workflow.Outputs{"result": false},
		},
		{
			name: "switch placeholder",
			node: mustNode("n", "logic.switch", nil),
			feed: map[string]any{"value": "anything"},
			want: workflow.Outputs{"case1": true, "case2": false, "default": false},
		},
		{
			name: "switch with cases",
			node: mustNode("n", "logic.switch", map[string]any{"cases": []any{"red", "green"}}),
			feed: map[string]any{"value": "green"},
			want: workflow.Outputs{"case1": false, "case2": true, "default": false},
		},
		{
			name: "switch falls to default",
			node: mustNode("n", "logic.switch", map[string]any{"cases": []any{"red", "green"}}),
			feed: map[string]any{"value": "blue"},
			want: workflow.Outputs{"case1": false, "case2": false, "default": true},
		},
		{
			name: "map is identity",
			node: mustNode("n", "transform.map", nil),
			feed: map[string]any{"array": []any{"x", "y"}},
			want: workflow.Outputs{"result": []any{"x", "y"}},
		},
		{
			name: "variable emits its name",
			node: mustNode("n", "data.variable", map[string]any{"name": "customerId"}),
			want: workflow.Outputs{"value": "customerId"},
		},
		{
			name: "db effect",
			node: mustNode("n", "effect.db", map[string]any{"table": "orders"}),
			want: workflow.Outputs{"result": map[string]any{"ok": true, "operation": "insert", "table": "orders", "rowsAffected": 1}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := &workflow.Graph{ID: "one"}
			for port, v := range tt.feed {
				src := "src-" + port
				g.Nodes = append(g.Nodes, mustNode(src, "data.constant", map[string]any{"value": v}))
				g.Edges = append(g.Edges, link("e-"+port, src, "value", "n", port))
			}
			g.Nodes = append(g.Nodes, tt.node)

			res := newExecutor().Execute(context.Background(), g, ctxWith(nil))
			if !res.Success {
				t.Fatalf("run failed: %v", res.Err)
			}
			if diff := cmp.Diff(map[workflow.PortID]any(tt.want), res.Output["n"]); diff != "" {
				t.Errorf("outputs mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestExecute_UnknownTypeAndPluginHandlers(t *testing.T) {
	g := &workflow.Graph{
		ID: "shout",
		Nodes: []workflow.Node{
			mustNode("greeting", "data.constant", map[string]any{"value": "hello"}),
			{ID: "loud", Type: "transform.uppercase", Category: workflow.CategoryTransform,
				Inputs:  []workflow.Port{{ID: "text", Type: workflow.TypeOf(workflow.KindString), Required: true, Direction: workflow.DirectionInput}},
				Outputs: []workflow.Port{{ID: "result", Type: workflow.TypeOf(workflow.KindString), Direction: workflow.DirectionOutput}}},
		},
		Edges: []workflow.Edge{link("e1", "greeting", "value", "loud", "text")},
	}

	res := newExecutor().Execute(context.Background(), g, ctxWith(nil))
	if res.Success || !errors.Is(res.Err, execute.ErrUnknownNode) {
		t.Fatalf("want ErrUnknownNode, got success=%v err=%v", res.Success, res.Err)
	}

	reg := plugin.NewRegistry()
	if err := reg.Register(context.Background(), textkit.New()); err != nil {
		t.Fatalf("Register: %v", err)
	}
	res = newExecutor(execute.WithHandlers(reg)).Execute(context.Background(), g, ctxWith(nil))
	if !res.Success {
		t.Fatalf("run failed: %v", res.Err)
	}
	if got := res.Output["loud"]["result"]; got != "HELLO" {
		t.Errorf("result = %v, want HELLO", got)
	}
}

func TestExecute_UnknownCategory(t *testing.T) {
	g := &workflow.Graph{ID: "odd", Nodes: []workflow.Node{{ID: "x", Type: "storage.put", Category: "storage"}}}
	res := newExecutor().Execute(context.Background(), g, ctxWith(nil))
	if !errors.Is(res.Err, execute.ErrUnknownNode) {
		t.Errorf("want ErrUnknownNode, got %v", res.Err)
	}
}

func TestExecute_PanicBecomesFailure(t *testing.T) {
	handlers := handlerMap{"transform.explode": func(context.Context, workflow.Invocation) (workflow.Outputs, error) {
		panic("kaboom")
	}}
	g := &workflow.Graph{ID: "boom", Nodes: []workflow.Node{{ID: "x", Type: "transform.explode", Category: workflow.CategoryTransform}}}
	res := newExecutor(execute.WithHandlers(handlers)).Execute(context.Background(), g, ctxWith(nil))
	if res.Success || !errors.Is(res.Err, execute.ErrNodeFailed) {
		t.Fatalf("want ErrNodeFailed, got %v", res.Err)
	}
	if len(res.Logs) == 0 || res.Logs[len(res.Logs)-1].Level != "error" {
		t.Errorf("expected logs ending in an error line, got %+v", res.Logs)
	}
}

func TestExecute_MissingValueForRequiredInput(t *testing.T) {
	handlers := handlerMap{"data.silent": func(context.Context, workflow.Invocation) (workflow.Outputs, error) {
		return nil, nil
	}}
	g := &workflow.Graph{
		ID: "silent",
		Nodes: []workflow.Node{
			{ID: "quiet", Type: "data.silent", Category: workflow.CategoryData,
				Outputs: []workflow.Port{{ID: "value", Type: workflow.TypeOf(workflow.KindBoolean), Direction: workflow.DirectionOutput}}},
			mustNode("branch", "logic.if", nil),
		},
		Edges: []workflow.Edge{link("e1", "quiet", "value", "branch", "condition")},
	}
	res := newExecutor(execute.WithHandlers(handlers)).Execute(context.Background(), g, ctxWith(nil))
	if !errors.Is(res.Err, execute.ErrUnconnectedInput) {
		t.Errorf("want ErrUnconnectedInput, got %v", res.Err)
	}
}

func TestExecute_CancelledDuringEffect(t *testing.T) {
	g := &workflow.Graph{ID: "slow", Nodes: []workflow.Node{
		mustNode("call", "effect.http", map[string]any{"url": "https://example.com", "delayMs": 60000.0}),
	}}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res := newExecutor().Execute(ctx, g, ctxWith(nil))
	if res.Success || !errors.Is(res.Err, context.Canceled) {
		t.Errorf("want context.Canceled, got %v", res.Err)
	}
}

func TestExecute_FanInLastEdgeWins(t *testing.T) {
	g := &workflow.Graph{
		ID: "fan-in",
		Nodes: []workflow.Node{
			mustNode("first", "data.constant", map[string]any{"value": "one"}),
			mustNode("second", "data.constant", map[string]any{"value": "two"}),
			mustNode("sink", "effect.http", nil),
		},
		Edges: []workflow.Edge{
			link("e1", "first", "value", "sink", "data"),
			link("e2", "second", "value", "sink", "data"),
		},
	}
	res := newExecutor().Execute(context.Background(), g, ctxWith(nil))
	if !res.Success {
		t.Fatalf("run failed: %v", res.Err)
	}
	body := res.Output["sink"]["response"].(map[string]any)["body"]
	if body != "two" {
		t.Errorf("body = %v, want two", body)
	}
}

func TestExecute_DeterministicOutput(t *testing.T) {
	exec := newExecutor()
	vars := map[string]any{"triggerData": true}
	first := exec.Execute(context.Background(), manualIntoIf(), ctxWith(vars))
	second := exec.Execute(context.Background(), manualIntoIf(), ctxWith(vars))
	if diff := cmp.Diff(first.Output, second.Output); diff != "" {
		t.Errorf("outputs differ (-first +second):\n%s", diff)
	}
	if first.RunID == second.RunID {
		t.Error("runs share an id")
	}
}

func TestExecute_ConcurrentCallsShareNothing(t *testing.T) {
	exec := execute.New()
	var g errgroup.Group
	results := make([]*execute.Result, 16)
	for i := range results {
		g.Go(func() error {
			results[i] = exec.Execute(context.Background(), manualIntoIf(), ctxWith(map[string]any{"triggerData": i%2 == 0}))
			return nil
		})
	}
	_ = g.Wait()
	for i, res := range results {
		if !res.Success {
			t.Fatalf("run %d failed: %v", i, res.Err)
		}
		want := i%2 == 0
		if res.Output["branch"]["true"] != want {
			t.Errorf("run %d: true = %v, want %v", i, res.Output["branch"]["true"], want)
		}
	}
}

func TestExecute_EventsAndLogs(t *testing.T) {
	trace := &execute.TraceCollector{}
	res := newExecutor(execute.WithObserver(trace)).Execute(context.Background(), manualIntoIf(), ctxWith(map[string]any{"triggerData": true}))
	if !res.Success {
		t.Fatalf("run failed: %v", res.Err)
	}
	var types []execute.RunEventType
	for _, e := range trace.Events() {
		types = append(types, e.Type)
	}
	want := []execute.RunEventType{
		execute.EventRunStart,
		execute.EventNodeStart, execute.EventNodeFinish,
		execute.EventNodeStart, execute.EventNodeFinish,
		execute.EventRunComplete,
	}
	if diff := cmp.Diff(want, types); diff != "" {
		t.Errorf("event sequence mismatch (-want +got):\n%s", diff)
	}
	for _, e := range trace.Events() {
		if e.RunID != "run-1" {
			t.Errorf("event %s has run id %q", e.Type, e.RunID)
		}
	}
	// run start, inference summary, two lines per node, completion
	if len(res.Logs) != 7 {
		t.Errorf("got %d log lines, want 7: %+v", len(res.Logs), res.Logs)
	}
	if res.Logs[2].NodeID != "trigger" || res.Logs[2].Time.IsZero() {
		t.Errorf("unexpected node log line %+v", res.Logs[2])
	}
}
