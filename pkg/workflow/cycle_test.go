package workflow_test

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"nodeflow/pkg/workflow"
)

func TestDetectCycles(t *testing.T) {
	selfLoop := &workflow.Graph{
		ID:    "self",
		Nodes: []workflow.Node{passthrough("solo", workflow.KindAny)},
		Edges: []workflow.Edge{edge("loop", "solo", "out", "solo", "in")},
	}
	chain := &workflow.Graph{
		ID:    "chain",
		Nodes: []workflow.Node{passthrough("a", workflow.KindAny), passthrough("b", workflow.KindAny)},
		Edges: []workflow.Edge{edge("ab", "a", "out", "b", "in")},
	}
	tail := cyclicABC()
	// Enter the ring from an upstream node; the reported slice starts at the re-entered node.
	tail.Nodes = append([]workflow.Node{passthrough("entry", workflow.KindArray)}, tail.Nodes...)
	tail.Edges = append([]workflow.Edge{edge("eb", "entry", "out", "b", "in")}, tail.Edges...)

	tests := []struct {
		name string
		g    *workflow.Graph
		want workflow.CycleReport
	}{
		{"ring", cyclicABC(), workflow.CycleReport{HasCycle: true, Cycle: ids("a", "b", "c")}},
		{"self loop", selfLoop, workflow.CycleReport{HasCycle: true, Cycle: ids("solo")}},
		{"chain", chain, workflow.CycleReport{}},
		{"empty", &workflow.Graph{ID: "empty"}, workflow.CycleReport{}},
		{"entered mid ring", tail, workflow.CycleReport{HasCycle: true, Cycle: ids("b", "c", "a")}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := workflow.DetectCycles(tt.g)
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("report mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestDetectCycles_AgreesWithSort(t *testing.T) {
	graphs := []*workflow.Graph{cyclicABC(), {ID: "one", Nodes: []workflow.Node{bare("x")}}}
	for _, g := range graphs {
		report := workflow.DetectCycles(g)
		_, err := workflow.TopologicalSort(g)
		if report.HasCycle != (err != nil) {
			t.Errorf("%s: DetectCycles=%v but sort err=%v", g.ID, report.HasCycle, err)
		}
	}
}
