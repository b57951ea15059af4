// Package workflow holds the graph model shared by the validator, the type
// inference engine and the executor, plus the checks that run directly on a
// graph snapshot: port compatibility, structural validation, topological
// ordering and cycle detection.
package workflow

import (
	"fmt"
	"strings"
)

// NodeID identifies a node within one graph.
type NodeID string

// EdgeID identifies an edge within one graph.
type EdgeID string

// WorkflowID identifies a workflow graph.
type WorkflowID string

// PortID identifies a port within its owning node's input or output list.
type PortID string

// Category is the closed set of node families.
type Category string

const (
	CategoryTrigger   Category = "trigger"
	CategoryLogic     Category = "logic"
	CategoryTransform Category = "transform"
	CategoryEffect    Category = "effect"
	CategoryData      Category = "data"
)

// Categories lists every category in declaration order.
var Categories = []Category{CategoryTrigger, CategoryLogic, CategoryTransform, CategoryEffect, CategoryData}

// Valid reports whether c is one of the known categories.
func (c Category) Valid() bool {
	switch c {
	case CategoryTrigger, CategoryLogic, CategoryTransform, CategoryEffect, CategoryData:
		return true
	}
	return false
}

// CategoryOf derives the category from a type tag's prefix ("transform.map" -> transform).
// The second return is false when the prefix is not a known category.
func CategoryOf(typeTag string) (Category, bool) {
	prefix, _, _ := strings.Cut(typeTag, ".")
	c := Category(prefix)
	return c, c.Valid()
}

// PortKind is the closed set of semantic port types.
type PortKind string

const (
	KindAny     PortKind = "any"
	KindString  PortKind = "string"
	KindNumber  PortKind = "number"
	KindBoolean PortKind = "boolean"
	KindObject  PortKind = "object"
	KindArray   PortKind = "array"
	KindVoid    PortKind = "void"
	KindCustom  PortKind = "custom"
)

// PortKinds lists every kind.
var PortKinds = []PortKind{KindAny, KindString, KindNumber, KindBoolean, KindObject, KindArray, KindVoid, KindCustom}

// Valid reports whether k is a known kind.
func (k PortKind) Valid() bool {
	for _, known := range PortKinds {
		if k == known {
			return true
		}
	}
	return false
}

// PortType is the semantic type tag of a port. TypeName is only
// meaningful for KindCustom, where it is matched nominally.
type PortType struct {
	Kind     PortKind `json:"kind" yaml:"kind"`
	TypeName string   `json:"typeName,omitempty" yaml:"typeName,omitempty"`
}

// TypeOf returns the non-custom PortType of kind k.
func TypeOf(k PortKind) PortType { return PortType{Kind: k} }

// Custom returns a nominal custom type.
func Custom(name string) PortType { return PortType{Kind: KindCustom, TypeName: name} }

func (t PortType) String() string {
	if t.Kind == KindCustom {
		return fmt.Sprintf("custom<%s>", t.TypeName)
	}
	return string(t.Kind)
}

// Direction is fixed when a port is created.
type Direction string

const (
	DirectionInput  Direction = "input"
	DirectionOutput Direction = "output"
)

// Port is a typed slot on a node.
type Port struct {
	ID        PortID    `json:"id" yaml:"id"`
	Name      string    `json:"name" yaml:"name"`
	Type      PortType  `json:"type" yaml:"type"`
	Required  bool      `json:"required,omitempty" yaml:"required,omitempty"`
	Direction Direction `json:"direction" yaml:"direction"`
}

// Position is presentation-only.
type Position struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
}

// Node is a typed processing unit.
type Node struct {
	ID       NodeID         `json:"id" yaml:"id"`
	Type     string         `json:"type" yaml:"type"`
	Category Category       `json:"category" yaml:"category"`
	Label    string         `json:"label" yaml:"label"`
	Inputs   []Port         `json:"inputs" yaml:"inputs"`
	Outputs  []Port         `json:"outputs" yaml:"outputs"`
	Position Position       `json:"position" yaml:"position"`
	Data     map[string]any `json:"data,omitempty" yaml:"data,omitempty"`
}

// Input returns the input port with the given id.
func (n *Node) Input(id PortID) (Port, bool) { return findPort(n.Inputs, id) }

// Output returns the output port with the given id.
func (n *Node) Output(id PortID) (Port, bool) { return findPort(n.Outputs, id) }

func findPort(ports []Port, id PortID) (Port, bool) {
	for _, p := range ports {
		if p.ID == id {
			return p, true
		}
	}
	return Port{}, false
}

// Edge connects an output port to an input port. Valid and Error cache the
// last compatibility result for presentation and are never read here.
type Edge struct {
	ID           EdgeID `json:"id" yaml:"id"`
	SourceNodeID NodeID `json:"sourceNodeId" yaml:"sourceNodeId"`
	SourcePortID PortID `json:"sourcePortId" yaml:"sourcePortId"`
	TargetNodeID NodeID `json:"targetNodeId" yaml:"targetNodeId"`
	TargetPortID PortID `json:"targetPortId" yaml:"targetPortId"`
	Valid        *bool  `json:"valid,omitempty" yaml:"valid,omitempty"`
	Error        string `json:"error,omitempty" yaml:"error,omitempty"`
}

// Metadata carries timestamps and the document schema version.
type Metadata struct {
	CreatedAt string `json:"createdAt,omitempty" yaml:"createdAt,omitempty"`
	UpdatedAt string `json:"updatedAt,omitempty" yaml:"updatedAt,omitempty"`
	Version   string `json:"version,omitempty" yaml:"version,omitempty"`
}

// Graph is an immutable snapshot for the duration of one pass.
type Graph struct {
	ID       WorkflowID `json:"id" yaml:"id"`
	Name     string     `json:"name" yaml:"name"`
	Nodes    []Node     `json:"nodes" yaml:"nodes"`
	Edges    []Edge     `json:"edges" yaml:"edges"`
	Metadata Metadata   `json:"metadata" yaml:"metadata"`
}

// PortKey is the "nodeId:portId" key used by the inferred-type map and the
// executor's output store.
type PortKey string

// KeyOf builds the key for a node/port pair.
func KeyOf(node NodeID, port PortID) PortKey {
	return PortKey(string(node) + ":" + string(port))
}

// Split returns the node and port halves of k. Node ids may not contain ':'.
func (k PortKey) Split() (NodeID, PortID) {
	node, port, _ := strings.Cut(string(k), ":")
	return NodeID(node), PortID(port)
}

// PortRef names one port of one node.
type PortRef struct {
	NodeID NodeID `json:"nodeId"`
	PortID PortID `json:"portId"`
}

func (r PortRef) String() string { return string(KeyOf(r.NodeID, r.PortID)) }

// ExecContext is supplied by the caller for one execution.
type ExecContext struct {
	WorkflowID WorkflowID     `json:"workflowId" yaml:"workflowId"`
	Variables  map[string]any `json:"variables" yaml:"variables"`
	Timestamp  int64          `json:"timestamp" yaml:"timestamp"`
}

// TerminalNodes returns the nodes with no outgoing edges, in declaration order.
func (g *Graph) TerminalNodes() []*Node {
	hasOut := make(map[NodeID]bool, len(g.Edges))
	for _, e := range g.Edges {
		hasOut[e.SourceNodeID] = true
	}
	var out []*Node
	for i := range g.Nodes {
		if !hasOut[g.Nodes[i].ID] {
			out = append(out, &g.Nodes[i])
		}
	}
	return out
}

// nodeIndex maps ids to nodes; later duplicates win.
func (g *Graph) nodeIndex() map[NodeID]*Node {
	idx := make(map[NodeID]*Node, len(g.Nodes))
	for i := range g.Nodes {
		idx[g.Nodes[i].ID] = &g.Nodes[i]
	}
	return idx
}

// NodeByID returns the last node declared with id.
func (g *Graph) NodeByID(id NodeID) (*Node, bool) {
	for i := len(g.Nodes) - 1; i >= 0; i-- {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}
