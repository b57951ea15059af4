package workflow

import "fmt"

// TopologicalSort orders the nodes of g with Kahn's algorithm. The queue is
// seeded in node declaration order and drained first-in-first-out, and
// neighbors are released in edge order, so the result is reproducible.
// A cyclic graph yields a *SortError wrapping ErrCycle that lists every node
// missing from the partial order.
func TopologicalSort(g *Graph) ([]NodeID, error) {
	idx := buildIndex(g)

	inDegree := make(map[NodeID]int, len(idx.order))
	for _, id := range idx.order {
		inDegree[id] = 0
	}
	for _, id := range idx.order {
		for _, next := range idx.forward[id] {
			inDegree[next]++
		}
	}

	queue := make([]NodeID, 0, len(idx.order))
	for _, id := range idx.order {
		if inDegree[id] == 0 {
			queue = append(queue, id)
		}
	}

	order := make([]NodeID, 0, len(idx.order))
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		order = append(order, id)
		for _, next := range idx.forward[id] {
			inDegree[next]--
			if inDegree[next] == 0 {
				queue = append(queue, next)
			}
		}
	}

	if len(order) < len(idx.order) {
		placed := make(map[NodeID]bool, len(order))
		for _, id := range order {
			placed[id] = true
		}
		var problematic []NodeID
		for _, id := range idx.order {
			if !placed[id] {
				problematic = append(problematic, id)
			}
		}
		return nil, &SortError{
			Reason:           fmt.Sprintf("%d of %d nodes could not be ordered", len(problematic), len(idx.order)),
			ProblematicNodes: problematic,
		}
	}
	return order, nil
}
