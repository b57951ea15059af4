// Package wiring assembles the plugin registry, executor and store behind
// the operations the CLI and MCP server expose: check, load, run.
package wiring

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"nodeflow/internal/logging"
	"nodeflow/internal/store"
	"nodeflow/pkg/plugin"
	"nodeflow/pkg/plugin/lint"
	"nodeflow/pkg/plugin/textkit"
	"nodeflow/pkg/workflow"
	"nodeflow/pkg/workflow/execute"
)

// ErrNoStore is returned when a run is asked to be saved without a store.
var ErrNoStore = errors.New("wiring: no store configured")

// Engine is the assembled runtime. Registry is always set; Store may be nil.
type Engine struct {
	Registry *plugin.Registry
	Store    store.Store

	plugins  []plugin.Plugin
	execOpts []execute.Option
	log      *slog.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore attaches run history persistence.
func WithStore(s store.Store) Option {
	return func(e *Engine) { e.Store = s }
}

// WithPlugins replaces the default plugin set (textkit and lint).
func WithPlugins(ps ...plugin.Plugin) Option {
	return func(e *Engine) { e.plugins = ps }
}

// WithExecutorOptions is applied to every executor the engine builds.
func WithExecutorOptions(opts ...execute.Option) Option {
	return func(e *Engine) { e.execOpts = append(e.execOpts, opts...) }
}

// New builds the registry and registers the plugins.
func New(ctx context.Context, opts ...Option) (*Engine, error) {
	e := &Engine{log: logging.New("wiring")}
	e.Registry = plugin.NewRegistry()
	e.plugins = []plugin.Plugin{textkit.New(), lint.New(e.Registry.Catalog())}
	for _, o := range opts {
		o(e)
	}
	for _, p := range e.plugins {
		if err := e.Registry.Register(ctx, p); err != nil {
			_ = e.Registry.Shutdown(ctx)
			return nil, fmt.Errorf("register plugin %s: %w", p.Metadata().ID, err)
		}
	}
	e.log.Debug("engine ready", "plugins", len(e.plugins), "node_types", len(e.Registry.Catalog().List()))
	return e, nil
}

// Close shuts the plugins down and closes the store.
func (e *Engine) Close(ctx context.Context) error {
	err := e.Registry.Shutdown(ctx)
	if e.Store != nil {
		err = errors.Join(err, e.Store.Close())
	}
	return err
}

// Report is the outcome of Check. Document issues (shape, unknown types)
// and structural errors make a workflow invalid; lint findings do not.
type Report struct {
	Source   string                     `json:"source,omitempty"`
	Workflow workflow.WorkflowID        `json:"workflowId,omitempty"`
	Valid    bool                       `json:"valid"`
	Document []workflow.Issue           `json:"documentIssues,omitempty"`
	Errors   []workflow.ValidationError `json:"errors"`
	Lint     []workflow.Issue           `json:"lint,omitempty"`
}

// Result returns the structural part of the report.
func (r *Report) Result() workflow.Result {
	return workflow.Result{Valid: len(r.Errors) == 0, Errors: r.Errors}
}

// Check parses a document leniently and reports every problem found:
// document shape, node types the catalog does not know, structural
// validation errors and lint findings.
func (e *Engine) Check(data []byte, ext string) (*Report, error) {
	rep := &Report{Errors: []workflow.ValidationError{}}
	g, err := workflow.ParseDocument(data, ext, workflow.ShapeOnly())
	if err != nil {
		var de *workflow.DocumentError
		if errors.As(err, &de) {
			rep.Document = de.Issues
			return rep, nil
		}
		return nil, err
	}
	rep.Workflow = g.ID

	catalog := e.Registry.Catalog()
	for i, n := range g.Nodes {
		if _, ok := catalog.Lookup(n.Type); !ok {
			rep.Document = append(rep.Document, workflow.Issue{
				Path:    fmt.Sprintf("/nodes/%d/type", i),
				Message: fmt.Sprintf("unknown node type %q", n.Type),
			})
		}
	}

	res := workflow.Validate(g)
	rep.Errors = append(rep.Errors, res.Errors...)
	rep.Lint = e.Registry.Check(g)
	rep.Valid = res.Valid && len(rep.Document) == 0
	return rep, nil
}

// CheckFile is Check on a file; the report carries the path as Source.
func (e *Engine) CheckFile(path string) (*Report, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}
	rep, err := e.Check(data, filepath.Ext(path))
	if err != nil {
		return nil, err
	}
	rep.Source = path
	return rep, nil
}

// Load parses a document strictly against the registry catalog and passes
// the graph through the transformer plugins.
func (e *Engine) Load(data []byte, ext string) (*workflow.Graph, error) {
	g, err := workflow.ParseDocument(data, ext, workflow.WithCatalog(e.Registry.Catalog()))
	if err != nil {
		return nil, err
	}
	return e.Registry.Transform(g)
}

// LoadFile is Load on a file.
func (e *Engine) LoadFile(path string) (*workflow.Graph, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read workflow: %w", err)
	}
	return e.Load(data, filepath.Ext(path))
}

// Executor returns an executor that resolves plugin node types and reports
// to the given observers.
func (e *Engine) Executor(obs ...execute.RunObserver) *execute.Executor {
	opts := append([]execute.Option{execute.WithHandlers(e.Registry)}, e.execOpts...)
	if len(obs) > 0 {
		opts = append(opts, execute.WithObserver(execute.MultiObserver(obs)))
	}
	return execute.New(opts...)
}

// Run executes g. With save set, the workflow and the run record are
// written to the store; a failed run is still recorded. The returned error
// only reports persistence problems; execution failures live in the Result.
func (e *Engine) Run(ctx context.Context, g *workflow.Graph, ectx workflow.ExecContext, save bool, obs ...execute.RunObserver) (*execute.Result, error) {
	if save && e.Store == nil {
		return nil, ErrNoStore
	}
	res := e.Executor(obs...).Execute(ctx, g, ectx)
	if !save {
		return res, nil
	}
	if err := e.Store.SaveWorkflow(g); err != nil {
		return res, err
	}
	if err := e.Store.SaveRun(res); err != nil {
		return res, err
	}
	e.log.Info("run recorded", "run_id", res.RunID, "workflow", g.ID, "success", res.Success)
	return res, nil
}
