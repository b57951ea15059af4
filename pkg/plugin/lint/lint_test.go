package lint

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"nodeflow/pkg/workflow"
)

func TestCheck_MissingData(t *testing.T) {
	g := &workflow.Graph{Nodes: []workflow.Node{
		{ID: "c", Type: "data.constant", Category: workflow.CategoryData},
		{ID: "h", Type: "effect.http", Category: workflow.CategoryEffect, Data: map[string]any{"url": "https://example.com"}},
		{ID: "m", Type: "effect.email", Category: workflow.CategoryEffect},
	}}
	got := New(nil).Check(g)
	var paths []string
	for _, is := range got {
		paths = append(paths, is.Path)
	}
	want := []string{"/nodes/0/data/value", "/nodes/2/data/to"}
	if diff := cmp.Diff(want, paths); diff != "" {
		t.Errorf("issue paths (-want +got):\n%s", diff)
	}
}

func TestCheck_SwitchCases(t *testing.T) {
	g := &workflow.Graph{Nodes: []workflow.Node{
		{ID: "ok", Type: "logic.switch", Data: map[string]any{"cases": []any{"a", "b"}}},
		{ID: "long", Type: "logic.switch", Data: map[string]any{"cases": []any{"a", "b", "c"}}},
		{ID: "scalar", Type: "logic.switch", Data: map[string]any{"cases": "a"}},
	}}
	got := New(nil).Check(g)
	if len(got) != 2 {
		t.Fatalf("issues = %v, want 2", got)
	}
	for _, is := range got {
		if !strings.HasSuffix(is.Path, "/data/cases") {
			t.Errorf("unexpected path %s", is.Path)
		}
	}
}

func TestTransform_FillsLabelsAndPortNames(t *testing.T) {
	g := &workflow.Graph{
		ID: "wf",
		Nodes: []workflow.Node{
			{ID: "b", Type: "logic.if", Inputs: []workflow.Port{{ID: "condition"}}},
			{ID: "c", Type: "data.constant", Label: "Seed"},
		},
		Edges: []workflow.Edge{{ID: "e1"}},
	}
	out, err := New(nil).Transform(g)
	if err != nil {
		t.Fatal(err)
	}
	if out.Nodes[0].Label != "If" || out.Nodes[1].Label != "Seed" {
		t.Errorf("labels = %q, %q", out.Nodes[0].Label, out.Nodes[1].Label)
	}
	if out.Nodes[0].Inputs[0].Name != "condition" {
		t.Errorf("port name = %q", out.Nodes[0].Inputs[0].Name)
	}
	if g.Nodes[0].Label != "" || g.Nodes[0].Inputs[0].Name != "" {
		t.Error("Transform mutated its input")
	}
}
