// Package infer propagates declared output port types along edges in
// topological order and reports how much of a graph ended up typed.
package infer

import (
	"errors"
	"fmt"

	"nodeflow/pkg/workflow"
)

// ErrCyclic is returned when the graph has no topological order.
var ErrCyclic = errors.New("infer: type inference requires an acyclic graph")

// Provenance names the output port a type was copied from.
type Provenance struct {
	FromNodeID workflow.NodeID `json:"fromNodeId"`
	FromPortID workflow.PortID `json:"fromPortId"`
}

// InferredType is the type attached to one port key.
type InferredType struct {
	NodeID     workflow.NodeID   `json:"nodeId"`
	PortID     workflow.PortID   `json:"portId"`
	PortType   workflow.PortType `json:"portType"`
	Provenance *Provenance       `json:"provenance,omitempty"`
}

// Result holds the inferred-type map of one graph.
type Result struct {
	Types map[workflow.PortKey]InferredType `json:"types"`

	graph *workflow.Graph
	order []workflow.NodeID
}

// Infer processes g in topological order. Each node first records its own
// output types, then copies the type of every source port to the target
// port of each outgoing edge. Later edges into the same port overwrite
// earlier ones. A cyclic graph fails with ErrCyclic and no partial map.
func Infer(g *workflow.Graph) (*Result, error) {
	order, err := workflow.TopologicalSort(g)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCyclic, err)
	}

	outgoing := make(map[workflow.NodeID][]*workflow.Edge, len(g.Nodes))
	for i := range g.Edges {
		e := &g.Edges[i]
		outgoing[e.SourceNodeID] = append(outgoing[e.SourceNodeID], e)
	}

	types := make(map[workflow.PortKey]InferredType)
	for _, id := range order {
		n, _ := g.NodeByID(id)
		for _, p := range n.Outputs {
			types[workflow.KeyOf(n.ID, p.ID)] = InferredType{NodeID: n.ID, PortID: p.ID, PortType: p.Type}
		}
		for _, e := range outgoing[id] {
			src, ok := types[workflow.KeyOf(e.SourceNodeID, e.SourcePortID)]
			if !ok {
				continue
			}
			types[workflow.KeyOf(e.TargetNodeID, e.TargetPortID)] = InferredType{
				NodeID:     e.TargetNodeID,
				PortID:     e.TargetPortID,
				PortType:   src.PortType,
				Provenance: &Provenance{FromNodeID: e.SourceNodeID, FromPortID: e.SourcePortID},
			}
		}
	}
	return &Result{Types: types, graph: g, order: order}, nil
}

// Order is the topological order the result was computed from.
func (r *Result) Order() []workflow.NodeID { return r.order }

// Lookup returns the inferred type of node:port.
func (r *Result) Lookup(node workflow.NodeID, port workflow.PortID) (InferredType, bool) {
	t, ok := r.Types[workflow.KeyOf(node, port)]
	return t, ok
}

// Complete reports whether every required input has an inferred type.
func (r *Result) Complete() bool { return len(r.Report().Missing) == 0 }

// Report summarises port coverage.
type Report struct {
	TotalPorts    int                `json:"totalPorts"`
	InferredPorts int                `json:"inferredPorts"`
	Missing       []workflow.PortRef `json:"missing"`
}

// Report counts every input and output port of every node, how many of them
// carry an inferred type, and which required inputs do not.
func (r *Result) Report() Report {
	var rep Report
	for _, n := range r.graph.Nodes {
		for _, p := range n.Inputs {
			rep.TotalPorts++
			if _, ok := r.Lookup(n.ID, p.ID); ok {
				rep.InferredPorts++
			} else if p.Required {
				rep.Missing = append(rep.Missing, workflow.PortRef{NodeID: n.ID, PortID: p.ID})
			}
		}
		for _, p := range n.Outputs {
			rep.TotalPorts++
			if _, ok := r.Lookup(n.ID, p.ID); ok {
				rep.InferredPorts++
			}
		}
	}
	return rep
}

// WorkflowOutput returns the inferred types of every output port of every
// terminal node, in declaration order.
func (r *Result) WorkflowOutput() []InferredType {
	var out []InferredType
	for _, n := range r.graph.TerminalNodes() {
		for _, p := range n.Outputs {
			if t, ok := r.Lookup(n.ID, p.ID); ok {
				out = append(out, t)
			}
		}
	}
	return out
}

// IsComplete infers g and reports whether every required input is typed.
func IsComplete(g *workflow.Graph) (bool, error) {
	r, err := Infer(g)
	if err != nil {
		return false, err
	}
	return r.Complete(), nil
}
