package workflow

import (
	"fmt"
	"sort"
	"sync"
)

// NodeType describes the port shape of one node type tag. Providers
// contribute these; the validator and executor treat them as opaque.
type NodeType struct {
	Type        string   `json:"type"`
	Category    Category `json:"category"`
	Label       string   `json:"label"`
	Description string   `json:"description,omitempty"`
	Inputs      []Port   `json:"inputs"`
	Outputs     []Port   `json:"outputs"`
}

// Catalog maps type tags to their descriptors. Safe for concurrent use.
type Catalog struct {
	mu    sync.RWMutex
	types map[string]NodeType
}

// NewCatalog returns a catalog holding defs. Later duplicates replace earlier ones.
func NewCatalog(defs ...NodeType) *Catalog {
	c := &Catalog{types: make(map[string]NodeType, len(defs))}
	for _, d := range defs {
		c.types[d.Type] = d
	}
	return c
}

// Add registers def, rejecting a type tag that is already present or whose
// prefix disagrees with its category.
func (c *Catalog) Add(def NodeType) error {
	if cat, ok := CategoryOf(def.Type); !ok || cat != def.Category {
		return fmt.Errorf("node type %q: category %q does not match type prefix", def.Type, def.Category)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, dup := c.types[def.Type]; dup {
		return fmt.Errorf("node type %q already defined", def.Type)
	}
	c.types[def.Type] = def
	return nil
}

// Remove drops a type tag. Absent tags are ignored.
func (c *Catalog) Remove(typeTag string) {
	c.mu.Lock()
	delete(c.types, typeTag)
	c.mu.Unlock()
}

// Lookup returns the descriptor for typeTag.
func (c *Catalog) Lookup(typeTag string) (NodeType, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	d, ok := c.types[typeTag]
	return d, ok
}

// List returns all descriptors sorted by category order, then type tag.
func (c *Catalog) List() []NodeType {
	c.mu.RLock()
	out := make([]NodeType, 0, len(c.types))
	for _, d := range c.types {
		out = append(out, d)
	}
	c.mu.RUnlock()

	rank := make(map[Category]int, len(Categories))
	for i, cat := range Categories {
		rank[cat] = i
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Category != out[j].Category {
			return rank[out[i].Category] < rank[out[j].Category]
		}
		return out[i].Type < out[j].Type
	})
	return out
}

// NewNode instantiates a node of typeTag with fresh copies of the declared ports.
func (c *Catalog) NewNode(id NodeID, typeTag string) (Node, error) {
	d, ok := c.Lookup(typeTag)
	if !ok {
		return Node{}, fmt.Errorf("unknown node type %q", typeTag)
	}
	return Node{
		ID:       id,
		Type:     d.Type,
		Category: d.Category,
		Label:    d.Label,
		Inputs:   append([]Port(nil), d.Inputs...),
		Outputs:  append([]Port(nil), d.Outputs...),
	}, nil
}

func inPort(id PortID, t PortType, required bool) Port {
	return Port{ID: id, Name: string(id), Type: t, Required: required, Direction: DirectionInput}
}

func outPort(id PortID, t PortType) Port {
	return Port{ID: id, Name: string(id), Type: t, Direction: DirectionOutput}
}

// BuiltinTypes returns the descriptors of every built-in node type.
func BuiltinTypes() []NodeType {
	anyT, boolT, arrT, objT := TypeOf(KindAny), TypeOf(KindBoolean), TypeOf(KindArray), TypeOf(KindObject)
	return []NodeType{
		{Type: "trigger.http", Category: CategoryTrigger, Label: "HTTP Trigger",
			Description: "Starts a run from an incoming request",
			Outputs:     []Port{outPort("request", objT)}},
		{Type: "trigger.timer", Category: CategoryTrigger, Label: "Timer",
			Description: "Emits the run timestamp",
			Outputs:     []Port{outPort("timestamp", TypeOf(KindNumber))}},
		{Type: "trigger.manual", Category: CategoryTrigger, Label: "Manual Trigger",
			Description: "Emits the triggerData variable",
			Outputs:     []Port{outPort("data", anyT)}},

		{Type: "logic.if", Category: CategoryLogic, Label: "If",
			Inputs:  []Port{inPort("condition", boolT, true)},
			Outputs: []Port{outPort("true", boolT), outPort("false", boolT)}},
		{Type: "logic.compare", Category: CategoryLogic, Label: "Compare",
			Inputs:  []Port{inPort("a", anyT, true), inPort("b", anyT, true)},
			Outputs: []Port{outPort("result", boolT)}},
		{Type: "logic.switch", Category: CategoryLogic, Label: "Switch",
			Inputs:  []Port{inPort("value", anyT, true)},
			Outputs: []Port{outPort("case1", boolT), outPort("case2", boolT), outPort("default", boolT)}},

		{Type: "transform.map", Category: CategoryTransform, Label: "Map",
			Inputs:  []Port{inPort("array", arrT, true)},
			Outputs: []Port{outPort("result", arrT)}},
		{Type: "transform.filter", Category: CategoryTransform, Label: "Filter",
			Inputs:  []Port{inPort("array", arrT, true)},
			Outputs: []Port{outPort("result", arrT)}},
		{Type: "transform.reduce", Category: CategoryTransform, Label: "Reduce",
			Inputs:  []Port{inPort("array", arrT, true), inPort("initial", anyT, false)},
			Outputs: []Port{outPort("result", anyT)}},

		{Type: "effect.http", Category: CategoryEffect, Label: "HTTP Request",
			Inputs:  []Port{inPort("data", anyT, false)},
			Outputs: []Port{outPort("response", objT)}},
		{Type: "effect.email", Category: CategoryEffect, Label: "Send Email",
			Inputs:  []Port{inPort("data", anyT, false)},
			Outputs: []Port{outPort("result", objT)}},
		{Type: "effect.db", Category: CategoryEffect, Label: "Database Write",
			Inputs:  []Port{inPort("data", anyT, false)},
			Outputs: []Port{outPort("result", objT)}},

		{Type: "data.constant", Category: CategoryData, Label: "Constant",
			Outputs: []Port{outPort("value", anyT)}},
		{Type: "data.variable", Category: CategoryData, Label: "Variable",
			Outputs: []Port{outPort("value", TypeOf(KindString))}},
	}
}

// BuiltinCatalog returns a new catalog seeded with BuiltinTypes.
func BuiltinCatalog() *Catalog { return NewCatalog(BuiltinTypes()...) }
