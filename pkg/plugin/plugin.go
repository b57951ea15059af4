// Package plugin is the registration surface for extensions: node type
// providers, executors for those types, extra graph checks and graph
// transformers. A Registry is constructed explicitly and passed to whatever
// needs it.
package plugin

import (
	"context"

	"nodeflow/pkg/workflow"
)

// Capability is what a plugin contributes.
type Capability string

const (
	CapNodeProvider Capability = "node-provider"
	CapValidator    Capability = "validator"
	CapExecutor     Capability = "executor"
	CapTransformer  Capability = "transformer"
	CapUIExtension  Capability = "ui-extension"
)

// Capabilities lists every capability.
var Capabilities = []Capability{CapNodeProvider, CapValidator, CapExecutor, CapTransformer, CapUIExtension}

// Metadata describes a plugin. ID must be unique within a registry.
type Metadata struct {
	ID          string   `json:"id" yaml:"id"`
	Name        string   `json:"name" yaml:"name"`
	Version     string   `json:"version" yaml:"version"`
	Author      string   `json:"author,omitempty" yaml:"author,omitempty"`
	Description string   `json:"description,omitempty" yaml:"description,omitempty"`
	Tags        []string `json:"tags,omitempty" yaml:"tags,omitempty"`
}

// Plugin is the minimal contract every extension satisfies.
type Plugin interface {
	Metadata() Metadata
	Capabilities() []Capability
	Initialize(ctx context.Context) error
	Cleanup(ctx context.Context) error
}

// NodeProvider is implemented by plugins with CapNodeProvider.
type NodeProvider interface {
	NodeTypes() []workflow.NodeType
}

// ExecutorProvider is implemented by plugins with CapExecutor. Keys are type tags.
type ExecutorProvider interface {
	Handlers() map[string]workflow.NodeHandler
}

// Validator is implemented by plugins with CapValidator. It returns extra
// findings beyond the structural checks.
type Validator interface {
	Check(g *workflow.Graph) []workflow.Issue
}

// Transformer is implemented by plugins with CapTransformer. It must return a
// new graph and leave g untouched.
type Transformer interface {
	Transform(g *workflow.Graph) (*workflow.Graph, error)
}

// Base supplies metadata, capabilities and no-op lifecycle hooks for embedding.
type Base struct {
	Meta Metadata
	Caps []Capability
}

func (b Base) Metadata() Metadata               { return b.Meta }
func (b Base) Capabilities() []Capability       { return b.Caps }
func (b Base) Initialize(context.Context) error { return nil }
func (b Base) Cleanup(context.Context) error    { return nil }

func hasCapability(p Plugin, c Capability) bool {
	for _, have := range p.Capabilities() {
		if have == c {
			return true
		}
	}
	return false
}
