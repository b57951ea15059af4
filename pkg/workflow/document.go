package workflow

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"gopkg.in/yaml.v3"
)

// Format of an exchanged workflow document.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// DetectFormat picks a format from a file extension, falling back to the
// first non-whitespace byte of data when the extension is not recognised.
func DetectFormat(ext string, data []byte) Format {
	switch strings.ToLower(ext) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "{") {
		return FormatJSON
	}
	return FormatYAML
}

type docOptions struct {
	catalog   *Catalog
	shapeOnly bool
}

// DocOption tunes ParseDocument.
type DocOption func(*docOptions)

// WithCatalog rejects nodes whose type tag is not in c, and nodes whose
// category disagrees with the catalog entry.
func WithCatalog(c *Catalog) DocOption {
	return func(o *docOptions) { o.catalog = c }
}

// ShapeOnly limits the boundary check to schema conformance so that
// referential problems reach Validate and are reported as findings.
func ShapeOnly() DocOption {
	return func(o *docOptions) { o.shapeOnly = true }
}

// LoadDocument reads a workflow document (JSON or YAML) from path.
func LoadDocument(path string, opts ...DocOption) (*Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}
	return ParseDocument(data, filepath.Ext(path), opts...)
}

// ParseDocument decodes a workflow document and runs the boundary checks:
// schema conformance, then duplicate ids, port lists, categories and edge
// references. Any problem yields a *DocumentError and no graph.
func ParseDocument(data []byte, ext string, opts ...DocOption) (*Graph, error) {
	var o docOptions
	for _, opt := range opts {
		opt(&o)
	}

	instance, err := decodeGeneric(data, DetectFormat(ext, data))
	if err != nil {
		return nil, &DocumentError{Issues: []Issue{{Path: "/", Message: err.Error()}}}
	}

	resolved, err := documentSchema()
	if err != nil {
		return nil, fmt.Errorf("resolve document schema: %w", err)
	}
	if err := resolved.Validate(instance); err != nil {
		return nil, &DocumentError{Issues: []Issue{{Path: "/", Message: err.Error()}}}
	}

	raw, err := json.Marshal(instance)
	if err != nil {
		return nil, fmt.Errorf("re-encode document: %w", err)
	}
	var g Graph
	if err := json.Unmarshal(raw, &g); err != nil {
		return nil, &DocumentError{Issues: []Issue{{Path: "/", Message: err.Error()}}}
	}

	if !o.shapeOnly {
		if issues := checkDocument(&g, o.catalog); len(issues) > 0 {
			return nil, &DocumentError{Issues: issues}
		}
	}
	return &g, nil
}

// MarshalDocument encodes g in the requested format.
func MarshalDocument(g *Graph, f Format) ([]byte, error) {
	switch f {
	case FormatYAML:
		return yaml.Marshal(g)
	case FormatJSON:
		return json.MarshalIndent(g, "", "  ")
	default:
		return nil, fmt.Errorf("unknown document format %q", f)
	}
}

// decodeGeneric returns data as plain JSON values (map[string]any, []any,
// float64, ...) regardless of the source format.
func decodeGeneric(data []byte, f Format) (any, error) {
	var v any
	if f == FormatJSON {
		if err := json.Unmarshal(data, &v); err != nil {
			return nil, fmt.Errorf("parse workflow json: %w", err)
		}
		return v, nil
	}
	if err := yaml.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("parse workflow yaml: %w", err)
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("parse workflow yaml: %w", err)
	}
	var out any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("parse workflow yaml: %w", err)
	}
	return out, nil
}

func checkDocument(g *Graph, catalog *Catalog) []Issue {
	var issues []Issue
	add := func(path, format string, args ...any) {
		issues = append(issues, Issue{Path: path, Message: fmt.Sprintf(format, args...)})
	}

	if g.ID == "" {
		add("/id", "workflow id is empty")
	}

	nodes := make(map[NodeID]*Node, len(g.Nodes))
	for i := range g.Nodes {
		n := &g.Nodes[i]
		base := fmt.Sprintf("/nodes/%d", i)
		if n.ID == "" {
			add(base+"/id", "node id is empty")
		} else if strings.Contains(string(n.ID), ":") {
			add(base+"/id", "node id %q must not contain ':'", n.ID)
		}
		if _, dup := nodes[n.ID]; dup {
			add(base+"/id", "duplicate node id %q", n.ID)
		}
		nodes[n.ID] = n

		if cat, ok := CategoryOf(n.Type); !ok {
			add(base+"/type", "type %q has no known category prefix", n.Type)
		} else if cat != n.Category {
			add(base+"/category", "category %q does not match type %q", n.Category, n.Type)
		}
		if catalog != nil {
			if def, ok := catalog.Lookup(n.Type); !ok {
				add(base+"/type", "unknown node type %q", n.Type)
			} else if def.Category != n.Category {
				add(base+"/category", "type %q belongs to category %q", n.Type, def.Category)
			}
		}
		issues = append(issues, checkPorts(base+"/inputs", n.Inputs, DirectionInput)...)
		issues = append(issues, checkPorts(base+"/outputs", n.Outputs, DirectionOutput)...)
	}

	edges := make(map[EdgeID]bool, len(g.Edges))
	for i, e := range g.Edges {
		base := fmt.Sprintf("/edges/%d", i)
		if e.ID == "" {
			add(base+"/id", "edge id is empty")
		}
		if edges[e.ID] {
			add(base+"/id", "duplicate edge id %q", e.ID)
		}
		edges[e.ID] = true

		if src, ok := nodes[e.SourceNodeID]; !ok {
			add(base+"/sourceNodeId", "node %q does not exist", e.SourceNodeID)
		} else if _, ok := src.Output(e.SourcePortID); !ok {
			add(base+"/sourcePortId", "node %q has no output port %q", e.SourceNodeID, e.SourcePortID)
		}
		if dst, ok := nodes[e.TargetNodeID]; !ok {
			add(base+"/targetNodeId", "node %q does not exist", e.TargetNodeID)
		} else if _, ok := dst.Input(e.TargetPortID); !ok {
			add(base+"/targetPortId", "node %q has no input port %q", e.TargetNodeID, e.TargetPortID)
		}
	}
	return issues
}

func checkPorts(base string, ports []Port, dir Direction) []Issue {
	var issues []Issue
	seen := make(map[PortID]bool, len(ports))
	for i, p := range ports {
		path := fmt.Sprintf("%s/%d", base, i)
		if p.ID == "" {
			issues = append(issues, Issue{Path: path + "/id", Message: "port id is empty"})
		}
		if seen[p.ID] {
			issues = append(issues, Issue{Path: path + "/id", Message: fmt.Sprintf("duplicate port id %q", p.ID)})
		}
		seen[p.ID] = true
		if p.Direction != "" && p.Direction != dir {
			issues = append(issues, Issue{Path: path + "/direction", Message: fmt.Sprintf("port listed as %s has direction %q", dir, p.Direction)})
		}
		if p.Type.Kind == KindCustom && p.Type.TypeName == "" {
			issues = append(issues, Issue{Path: path + "/type/typeName", Message: "custom type requires a typeName"})
		}
		if dir == DirectionOutput && p.Required {
			issues = append(issues, Issue{Path: path + "/required", Message: "output ports cannot be required"})
		}
	}
	return issues
}

var documentSchema = sync.OnceValues(func() (*jsonschema.Resolved, error) {
	str := func() *jsonschema.Schema { return &jsonschema.Schema{Type: "string"} }
	num := func() *jsonschema.Schema { return &jsonschema.Schema{Type: "number"} }

	kinds := make([]any, len(PortKinds))
	for i, k := range PortKinds {
		kinds[i] = string(k)
	}
	categories := make([]any, len(Categories))
	for i, c := range Categories {
		categories[i] = string(c)
	}

	// Resolve wants a tree, so shared shapes are built fresh per use.
	portType := func() *jsonschema.Schema {
		return &jsonschema.Schema{
			Type:     "object",
			Required: []string{"kind"},
			Properties: map[string]*jsonschema.Schema{
				"kind":     {Type: "string", Enum: kinds},
				"typeName": str(),
			},
		}
	}
	port := func() *jsonschema.Schema {
		return &jsonschema.Schema{
			Type:     "object",
			Required: []string{"id", "type"},
			Properties: map[string]*jsonschema.Schema{
				"id":        str(),
				"name":      str(),
				"type":      portType(),
				"required":  {Type: "boolean"},
				"direction": {Type: "string", Enum: []any{string(DirectionInput), string(DirectionOutput)}},
			},
		}
	}
	node := &jsonschema.Schema{
		Type:     "object",
		Required: []string{"id", "type", "category"},
		Properties: map[string]*jsonschema.Schema{
			"id":       str(),
			"type":     str(),
			"category": {Type: "string", Enum: categories},
			"label":    str(),
			"inputs":   {Type: "array", Items: port()},
			"outputs":  {Type: "array", Items: port()},
			"position": {Type: "object", Properties: map[string]*jsonschema.Schema{"x": num(), "y": num()}},
			"data":     {Types: []string{"object", "null"}},
		},
	}
	edge := &jsonschema.Schema{
		Type:     "object",
		Required: []string{"id", "sourceNodeId", "sourcePortId", "targetNodeId", "targetPortId"},
		Properties: map[string]*jsonschema.Schema{
			"id":           str(),
			"sourceNodeId": str(),
			"sourcePortId": str(),
			"targetNodeId": str(),
			"targetPortId": str(),
			"valid":        {Type: "boolean"},
			"error":        str(),
		},
	}
	root := &jsonschema.Schema{
		Type:     "object",
		Required: []string{"id", "nodes", "edges"},
		Properties: map[string]*jsonschema.Schema{
			"id":    str(),
			"name":  str(),
			"nodes": {Type: "array", Items: node},
			"edges": {Type: "array", Items: edge},
			"metadata": {
				Types: []string{"object", "null"},
				Properties: map[string]*jsonschema.Schema{
					"createdAt": str(),
					"updatedAt": str(),
					"version":   str(),
				},
			},
		},
	}
	return root.Resolve(nil)
})
