package wiring

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"

	"nodeflow/internal/store"
	"nodeflow/pkg/workflow"
	"nodeflow/pkg/workflow/execute"
)

func newEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e, err := New(context.Background(), opts...)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = e.Close(context.Background()) })
	return e
}

func TestRun_SavesWorkflowAndRun(t *testing.T) {
	st := store.NewMemStore()
	e := newEngine(t, WithStore(st))

	g, err := e.LoadFile(filepath.Join("testdata", "greeting.yaml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	var trace execute.TraceCollector
	res, err := e.Run(context.Background(), g, workflow.ExecContext{WorkflowID: g.ID}, true, &trace)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !res.Success {
		t.Fatalf("run failed: %s", res.Error)
	}
	want := map[workflow.NodeID]map[workflow.PortID]any{"upper": {"result": "HELLO"}}
	if diff := cmp.Diff(want, res.Output); diff != "" {
		t.Errorf("output mismatch (-want +got):\n%s", diff)
	}
	if n := len(trace.EventsOfType(execute.EventNodeFinish)); n != 2 {
		t.Errorf("node_finish events = %d, want 2", n)
	}

	runs, err := st.ListRuns("greeting")
	if err != nil || len(runs) != 1 || runs[0].ID != res.RunID {
		t.Fatalf("ListRuns = %+v, %v", runs, err)
	}
	wf, _ := st.GetWorkflow("greeting")
	if wf == nil || wf.Nodes != 2 {
		t.Errorf("workflow record = %+v", wf)
	}
}

func TestRun_SaveWithoutStore(t *testing.T) {
	e := newEngine(t)
	g, err := e.LoadFile(filepath.Join("testdata", "greeting.yaml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	if _, err := e.Run(context.Background(), g, workflow.ExecContext{}, true); !errors.Is(err, ErrNoStore) {
		t.Fatalf("Run(save) without store: got %v, want ErrNoStore", err)
	}
	res, err := e.Run(context.Background(), g, workflow.ExecContext{}, false)
	if err != nil || !res.Success {
		t.Fatalf("Run without save: %+v, %v", res, err)
	}
}

func TestLoad_FillsLabelsFromCatalog(t *testing.T) {
	e := newEngine(t)
	g, err := e.LoadFile(filepath.Join("testdata", "greeting.yaml"))
	if err != nil {
		t.Fatalf("LoadFile: %v", err)
	}
	upper, _ := g.NodeByID("upper")
	if upper.Label != "Uppercase" {
		t.Errorf("label = %q, want Uppercase", upper.Label)
	}
	if upper.Inputs[0].Name != "text" {
		t.Errorf("port name = %q, want text", upper.Inputs[0].Name)
	}
}

func TestLoad_RejectsUnknownType(t *testing.T) {
	e := newEngine(t)
	_, err := e.LoadFile(filepath.Join("testdata", "broken.json"))
	var de *workflow.DocumentError
	if !errors.As(err, &de) {
		t.Fatalf("LoadFile: got %v, want *DocumentError", err)
	}
}

func TestCheckFile_ReportsEveryLayer(t *testing.T) {
	e := newEngine(t)
	rep, err := e.CheckFile(filepath.Join("testdata", "broken.json"))
	if err != nil {
		t.Fatalf("CheckFile: %v", err)
	}
	if rep.Valid {
		t.Fatal("broken.json reported valid")
	}
	if rep.Source != filepath.Join("testdata", "broken.json") || rep.Workflow != "broken" {
		t.Errorf("source/workflow = %q/%q", rep.Source, rep.Workflow)
	}
	wantDoc := []workflow.Issue{{Path: "/nodes/1/type", Message: `unknown node type "transform.reverse"`}}
	if diff := cmp.Diff(wantDoc, rep.Document); diff != "" {
		t.Errorf("document issues (-want +got):\n%s", diff)
	}
	if got := rep.Result().OfKind(workflow.KindInvalidConnection); len(got) != 1 {
		t.Errorf("invalid connections = %v, want 1", got)
	}
	if len(rep.Lint) != 1 || rep.Lint[0].Path != "/nodes/0/data/value" {
		t.Errorf("lint = %+v", rep.Lint)
	}
}

func TestCheck_ShapeFailure(t *testing.T) {
	e := newEngine(t)
	rep, err := e.Check([]byte(`{"id": "x", "nodes": 3, "edges": []}`), ".json")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if rep.Valid || len(rep.Document) == 0 {
		t.Errorf("expected document issues, got %+v", rep)
	}
}

func TestCheck_LintDoesNotInvalidate(t *testing.T) {
	e := newEngine(t)
	doc := []byte(`{"id": "solo", "nodes": [{"id": "c", "type": "data.constant", "category": "data",
		"outputs": [{"id": "value", "type": {"kind": "any"}, "direction": "output"}]}], "edges": []}`)
	rep, err := e.Check(doc, "")
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	if !rep.Valid || len(rep.Lint) != 1 {
		t.Errorf("report = %+v; want valid with one lint finding", rep)
	}
}
