package infer

import "nodeflow/pkg/workflow"

// Unify joins two types. If either is any the other wins; if the kinds match
// a is returned. Otherwise there is no unifier and ok is false.
func Unify(a, b workflow.PortType) (workflow.PortType, bool) {
	switch {
	case a.Kind == workflow.KindAny:
		return b, true
	case b.Kind == workflow.KindAny:
		return a, true
	case a.Kind == b.Kind:
		return a, true
	}
	return workflow.PortType{}, false
}

// LeastUpperBound collapses candidate types to one. It is lossy: any mix of
// kinds becomes any.
func LeastUpperBound(types []workflow.PortType) workflow.PortType {
	if len(types) == 0 {
		return workflow.TypeOf(workflow.KindAny)
	}
	first := types[0]
	for _, t := range types[1:] {
		if t.Kind != first.Kind {
			return workflow.TypeOf(workflow.KindAny)
		}
	}
	return first
}
