package workflow_test

import (
	"testing"

	"nodeflow/pkg/workflow"
)

var catalog = workflow.BuiltinCatalog()

func builtin(t *testing.T, id, typeTag string) workflow.Node {
	t.Helper()
	n, err := catalog.NewNode(workflow.NodeID(id), typeTag)
	if err != nil {
		t.Fatalf("NewNode(%s, %s): %v", id, typeTag, err)
	}
	return n
}

func edge(id, src, srcPort, dst, dstPort string) workflow.Edge {
	return workflow.Edge{
		ID:           workflow.EdgeID(id),
		SourceNodeID: workflow.NodeID(src),
		SourcePortID: workflow.PortID(srcPort),
		TargetNodeID: workflow.NodeID(dst),
		TargetPortID: workflow.PortID(dstPort),
	}
}

// passthrough builds a node with one required input and one output of the given kind.
func passthrough(id string, kind workflow.PortKind) workflow.Node {
	return workflow.Node{
		ID:       workflow.NodeID(id),
		Type:     "transform.map",
		Category: workflow.CategoryTransform,
		Inputs:   []workflow.Port{{ID: "in", Type: workflow.TypeOf(kind), Required: true, Direction: workflow.DirectionInput}},
		Outputs:  []workflow.Port{{ID: "out", Type: workflow.TypeOf(kind), Direction: workflow.DirectionOutput}},
	}
}

// bare builds a node without ports.
func bare(id string) workflow.Node {
	return workflow.Node{ID: workflow.NodeID(id), Type: "data.constant", Category: workflow.CategoryData}
}

func ids(ss ...string) []workflow.NodeID {
	out := make([]workflow.NodeID, len(ss))
	for i, s := range ss {
		out[i] = workflow.NodeID(s)
	}
	return out
}

// cyclicABC is a three-node ring a -> b -> c -> a.
func cyclicABC() *workflow.Graph {
	return &workflow.Graph{
		ID: "ring",
		Nodes: []workflow.Node{
			passthrough("a", workflow.KindArray),
			passthrough("b", workflow.KindArray),
			passthrough("c", workflow.KindArray),
		},
		Edges: []workflow.Edge{
			edge("ab", "a", "out", "b", "in"),
			edge("bc", "b", "out", "c", "in"),
			edge("ca", "c", "out", "a", "in"),
		},
	}
}
