package workflow

import "fmt"

// Result is the outcome of Validate. Valid is true iff Errors is empty.
type Result struct {
	Valid  bool              `json:"valid"`
	Errors []ValidationError `json:"errors"`
}

// OfKind returns the findings with the given kind, in report order.
func (r Result) OfKind(kind ErrorKind) []ValidationError {
	var out []ValidationError
	for _, e := range r.Errors {
		if e.Kind() == kind {
			out = append(out, e)
		}
	}
	return out
}

// index is built once per call from a snapshot.
type index struct {
	nodes   map[NodeID]*Node
	edges   map[EdgeID]*Edge
	order   []NodeID // unique node ids, first declaration order
	forward map[NodeID][]NodeID
	reverse map[NodeID][]NodeID
}

func buildIndex(g *Graph) *index {
	idx := &index{
		nodes:   g.nodeIndex(),
		edges:   make(map[EdgeID]*Edge, len(g.Edges)),
		forward: make(map[NodeID][]NodeID, len(g.Nodes)),
		reverse: make(map[NodeID][]NodeID, len(g.Nodes)),
	}
	seen := make(map[NodeID]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if !seen[n.ID] {
			seen[n.ID] = true
			idx.order = append(idx.order, n.ID)
		}
	}
	for i := range g.Edges {
		e := &g.Edges[i]
		idx.edges[e.ID] = e
		if _, ok := idx.nodes[e.SourceNodeID]; !ok {
			continue
		}
		if _, ok := idx.nodes[e.TargetNodeID]; !ok {
			continue
		}
		idx.forward[e.SourceNodeID] = append(idx.forward[e.SourceNodeID], e.TargetNodeID)
		idx.reverse[e.TargetNodeID] = append(idx.reverse[e.TargetNodeID], e.SourceNodeID)
	}
	return idx
}

// Validate runs every structural check against g and accumulates all
// findings. Checks run in a fixed order: duplicate ids, missing nodes,
// cycle, required inputs, connection types, orphans.
func Validate(g *Graph) Result {
	idx := buildIndex(g)
	var errs []ValidationError

	errs = append(errs, checkDuplicates(g)...)
	errs = append(errs, checkMissingNodes(g, idx)...)
	if cycle := findCycle(idx); cycle != nil {
		errs = append(errs, CycleError{Nodes: cycle})
	}
	errs = append(errs, checkRequiredInputs(g, idx)...)
	errs = append(errs, checkConnections(g, idx)...)
	errs = append(errs, checkOrphans(g)...)

	return Result{Valid: len(errs) == 0, Errors: errs}
}

func checkDuplicates(g *Graph) []ValidationError {
	var errs []ValidationError
	nodeSeen := make(map[NodeID]int, len(g.Nodes))
	for _, n := range g.Nodes {
		nodeSeen[n.ID]++
		if nodeSeen[n.ID] == 2 {
			errs = append(errs, DuplicateNodeIDError{NodeID: n.ID})
		}
	}
	edgeSeen := make(map[EdgeID]int, len(g.Edges))
	for _, e := range g.Edges {
		edgeSeen[e.ID]++
		if edgeSeen[e.ID] == 2 {
			errs = append(errs, DuplicateEdgeIDError{EdgeID: e.ID})
		}
	}
	return errs
}

func checkMissingNodes(g *Graph, idx *index) []ValidationError {
	var errs []ValidationError
	for _, e := range g.Edges {
		if _, ok := idx.nodes[e.SourceNodeID]; !ok {
			errs = append(errs, MissingNodeError{NodeID: e.SourceNodeID, ReferencedBy: e.ID})
		}
		if _, ok := idx.nodes[e.TargetNodeID]; !ok {
			errs = append(errs, MissingNodeError{NodeID: e.TargetNodeID, ReferencedBy: e.ID})
		}
	}
	return errs
}

func checkRequiredInputs(g *Graph, idx *index) []ValidationError {
	targeted := make(map[PortKey]bool, len(g.Edges))
	for _, e := range g.Edges {
		targeted[KeyOf(e.TargetNodeID, e.TargetPortID)] = true
	}
	var errs []ValidationError
	for _, id := range idx.order {
		n := idx.nodes[id]
		for _, p := range n.Inputs {
			if p.Required && !targeted[KeyOf(n.ID, p.ID)] {
				errs = append(errs, UnsatisfiedInputError{NodeID: n.ID, PortID: p.ID})
			}
		}
	}
	return errs
}

func checkConnections(g *Graph, idx *index) []ValidationError {
	var errs []ValidationError
	for _, e := range g.Edges {
		src, okSrc := idx.nodes[e.SourceNodeID]
		dst, okDst := idx.nodes[e.TargetNodeID]
		if !okSrc || !okDst {
			continue
		}
		out, ok := src.Output(e.SourcePortID)
		if !ok {
			errs = append(errs, InvalidConnectionError{
				EdgeID: e.ID,
				Reason: fmt.Sprintf("source port %s not found among outputs of %s", e.SourcePortID, src.ID),
			})
			continue
		}
		in, ok := dst.Input(e.TargetPortID)
		if !ok {
			errs = append(errs, InvalidConnectionError{
				EdgeID: e.ID,
				Reason: fmt.Sprintf("target port %s not found among inputs of %s", e.TargetPortID, dst.ID),
			})
			continue
		}
		if c := CheckPortCompatibility(out.Type, in.Type); !c.Valid {
			errs = append(errs, InvalidConnectionError{EdgeID: e.ID, Reason: c.Reason})
		}
	}
	return errs
}

func checkOrphans(g *Graph) []ValidationError {
	if len(g.Nodes) <= 1 {
		return nil
	}
	touched := make(map[NodeID]bool, len(g.Nodes))
	for _, e := range g.Edges {
		touched[e.SourceNodeID] = true
		touched[e.TargetNodeID] = true
	}
	var errs []ValidationError
	reported := make(map[NodeID]bool)
	for _, n := range g.Nodes {
		if !touched[n.ID] && !reported[n.ID] {
			reported[n.ID] = true
			errs = append(errs, OrphanNodeError{NodeID: n.ID})
		}
	}
	return errs
}
