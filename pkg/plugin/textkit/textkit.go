// Package textkit is a node-provider plugin with string transforms.
package textkit

import (
	"context"
	"fmt"
	"reflect"
	"strings"

	"nodeflow/pkg/plugin"
	"nodeflow/pkg/workflow"
)

// ID is the plugin id.
const ID = "textkit"

// Plugin contributes transform.uppercase and transform.join.
type Plugin struct {
	plugin.Base
}

// New returns the textkit plugin.
func New() *Plugin {
	return &Plugin{Base: plugin.Base{
		Meta: plugin.Metadata{
			ID:          ID,
			Name:        "Text kit",
			Version:     "1.0.0",
			Description: "String transforms",
			Tags:        []string{"text", "transform"},
		},
		Caps: []plugin.Capability{plugin.CapNodeProvider, plugin.CapExecutor},
	}}
}

func (p *Plugin) NodeTypes() []workflow.NodeType {
	str := workflow.TypeOf(workflow.KindString)
	return []workflow.NodeType{
		{
			Type: "transform.uppercase", Category: workflow.CategoryTransform, Label: "Uppercase",
			Inputs:  []workflow.Port{{ID: "text", Name: "text", Type: str, Required: true, Direction: workflow.DirectionInput}},
			Outputs: []workflow.Port{{ID: "result", Name: "result", Type: str, Direction: workflow.DirectionOutput}},
		},
		{
			Type: "transform.join", Category: workflow.CategoryTransform, Label: "Join",
			Description: "Joins array items with data.separator (default \",\")",
			Inputs: []workflow.Port{{ID: "array", Name: "array", Type: workflow.TypeOf(workflow.KindArray),
				Required: true, Direction: workflow.DirectionInput}},
			Outputs: []workflow.Port{{ID: "result", Name: "result", Type: str, Direction: workflow.DirectionOutput}},
		},
	}
}

func (p *Plugin) Handlers() map[string]workflow.NodeHandler {
	return map[string]workflow.NodeHandler{
		"transform.uppercase": uppercase,
		"transform.join":      join,
	}
}

func uppercase(_ context.Context, inv workflow.Invocation) (workflow.Outputs, error) {
	v, _ := inv.Input("text")
	s, ok := v.(string)
	if !ok {
		return nil, fmt.Errorf("uppercase: text is %T, not a string", v)
	}
	return workflow.Outputs{"result": strings.ToUpper(s)}, nil
}

func join(_ context.Context, inv workflow.Invocation) (workflow.Outputs, error) {
	v, _ := inv.Input("array")
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil, fmt.Errorf("join: array is %T", v)
	}
	parts := make([]string, rv.Len())
	for i := range parts {
		parts[i] = fmt.Sprint(rv.Index(i).Interface())
	}
	return workflow.Outputs{"result": strings.Join(parts, inv.DataString("separator", ","))}, nil
}
