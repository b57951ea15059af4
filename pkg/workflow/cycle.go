package workflow

// CycleReport is the result of DetectCycles.
type CycleReport struct {
	HasCycle bool     `json:"hasCycle"`
	Cycle    []NodeID `json:"cycle,omitempty"`
}

// DetectCycles runs the same depth-first search Validate uses and reports
// the first cycle found.
func DetectCycles(g *Graph) CycleReport {
	cycle := findCycle(buildIndex(g))
	return CycleReport{HasCycle: cycle != nil, Cycle: cycle}
}

// findCycle walks from every unvisited node in declaration order, keeping a
// recursion stack. The returned slice runs from the re-entered node to the
// node whose edge closed the loop. Nil means acyclic.
func findCycle(idx *index) []NodeID {
	visited := make(map[NodeID]bool, len(idx.order))
	onStack := make(map[NodeID]int, len(idx.order))
	var path []NodeID
	var found []NodeID

	var visit func(id NodeID) bool
	visit = func(id NodeID) bool {
		visited[id] = true
		onStack[id] = len(path)
		path = append(path, id)
		for _, next := range idx.forward[id] {
			if at, ok := onStack[next]; ok {
				found = append([]NodeID(nil), path[at:]...)
				return true
			}
			if !visited[next] && visit(next) {
				return true
			}
		}
		path = path[:len(path)-1]
		delete(onStack, id)
		return false
	}

	for _, id := range idx.order {
		if !visited[id] && visit(id) {
			return found
		}
	}
	return nil
}
