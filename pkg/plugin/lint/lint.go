// Package lint is a validator and transformer plugin. It checks node
// configuration the structural validator does not look at, and fills in
// labels and port names left empty by the editor.
package lint

import (
	"fmt"

	"nodeflow/pkg/plugin"
	"nodeflow/pkg/workflow"
)

// ID is the plugin id.
const ID = "lint"

// Plugin checks data bags of built-in node types.
type Plugin struct {
	plugin.Base
	catalog *workflow.Catalog
}

// New returns the lint plugin. catalog supplies default labels; nil uses the built-ins.
func New(catalog *workflow.Catalog) *Plugin {
	if catalog == nil {
		catalog = workflow.BuiltinCatalog()
	}
	return &Plugin{
		Base: plugin.Base{
			Meta: plugin.Metadata{
				ID:          ID,
				Name:        "Lint",
				Version:     "1.0.0",
				Description: "Configuration checks and label defaults",
			},
			Caps: []plugin.Capability{plugin.CapValidator, plugin.CapTransformer},
		},
		catalog: catalog,
	}
}

// requiredData lists the data keys each built-in type reads.
var requiredData = map[string][]string{
	"data.constant": {"value"},
	"data.variable": {"name"},
	"effect.http":   {"url"},
	"effect.email":  {"to"},
}

func (p *Plugin) Check(g *workflow.Graph) []workflow.Issue {
	var issues []workflow.Issue
	for i, n := range g.Nodes {
		for _, key := range requiredData[n.Type] {
			if _, ok := n.Data[key]; !ok {
				issues = append(issues, workflow.Issue{
					Path:    fmt.Sprintf("/nodes/%d/data/%s", i, key),
					Message: fmt.Sprintf("%s node %s has no %q configured", n.Type, n.ID, key),
				})
			}
		}
		if n.Type == "logic.switch" {
			if cases, ok := n.Data["cases"]; ok {
				if list, ok := cases.([]any); !ok || len(list) > 2 {
					issues = append(issues, workflow.Issue{
						Path:    fmt.Sprintf("/nodes/%d/data/cases", i),
						Message: "switch cases must be a list of at most two values",
					})
				}
			}
		}
	}
	return issues
}

// Transform returns a copy of g with empty labels taken from the catalog and
// empty port names taken from port ids.
func (p *Plugin) Transform(g *workflow.Graph) (*workflow.Graph, error) {
	out := *g
	out.Nodes = make([]workflow.Node, len(g.Nodes))
	for i, n := range g.Nodes {
		if n.Label == "" {
			if def, ok := p.catalog.Lookup(n.Type); ok {
				n.Label = def.Label
			}
		}
		n.Inputs = namePorts(n.Inputs)
		n.Outputs = namePorts(n.Outputs)
		out.Nodes[i] = n
	}
	out.Edges = append([]workflow.Edge(nil), g.Edges...)
	return &out, nil
}

func namePorts(ports []workflow.Port) []workflow.Port {
	if ports == nil {
		return nil
	}
	out := make([]workflow.Port, len(ports))
	for i, p := range ports {
		if p.Name == "" {
			p.Name = string(p.ID)
		}
		out[i] = p
	}
	return out
}
