package workflow

import "context"

// Outputs maps output port ids to the values a node produced.
type Outputs map[PortID]any

// Invocation is everything a node handler sees for one node execution.
type Invocation struct {
	Node    *Node
	Inputs  map[PortID]any
	Context ExecContext
	// Logf appends a line to the run log.
	Logf func(format string, args ...any)
}

// Input returns the resolved value of an input port.
func (inv Invocation) Input(id PortID) (any, bool) {
	v, ok := inv.Inputs[id]
	return v, ok
}

// DataString returns a string from the node's data bag, or def.
func (inv Invocation) DataString(key, def string) string {
	if s, ok := inv.Node.Data[key].(string); ok && s != "" {
		return s
	}
	return def
}

// NodeHandler executes one node type.
type NodeHandler func(ctx context.Context, inv Invocation) (Outputs, error)

// HandlerLookup resolves node handlers contributed from outside the executor.
type HandlerLookup interface {
	Handler(typeTag string) (NodeHandler, bool)
}
