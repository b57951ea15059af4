package plugin

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"sync"

	"golang.org/x/sync/errgroup"

	"nodeflow/internal/logging"
	"nodeflow/pkg/workflow"
)

var (
	// ErrAlreadyRegistered is returned when a plugin id is registered twice.
	ErrAlreadyRegistered = errors.New("plugin already registered")

	// ErrNotFound is returned by Get for an unknown id.
	ErrNotFound = errors.New("plugin not found")

	// ErrDuplicateHandler is returned when two plugins handle one node type.
	ErrDuplicateHandler = errors.New("node handler already registered")
)

// shutdownLimit bounds concurrent Cleanup calls during Shutdown.
const shutdownLimit = 4

// entry is one registered plugin and what it contributed.
type entry struct {
	plugin    Plugin
	nodeTypes []string
	handlers  []string
}

// Registry indexes plugins by id and capability and owns the node type
// catalog they extend. Safe for concurrent use.
type Registry struct {
	mu       sync.RWMutex
	entries  map[string]*entry
	pending  map[string]bool
	order    []string
	catalog  *workflow.Catalog
	handlers map[string]workflow.NodeHandler
	log      *slog.Logger
}

// RegistryOption configures a Registry.
type RegistryOption func(*Registry)

// WithCatalog sets the catalog plugins extend. The default is the built-in catalog.
func WithCatalog(c *workflow.Catalog) RegistryOption {
	return func(r *Registry) { r.catalog = c }
}

// WithLogger overrides the component logger.
func WithLogger(l *slog.Logger) RegistryOption {
	return func(r *Registry) { r.log = l }
}

// NewRegistry returns an empty registry.
func NewRegistry(opts ...RegistryOption) *Registry {
	r := &Registry{
		entries:  make(map[string]*entry),
		pending:  make(map[string]bool),
		handlers: make(map[string]workflow.NodeHandler),
	}
	for _, o := range opts {
		o(r)
	}
	if r.catalog == nil {
		r.catalog = workflow.BuiltinCatalog()
	}
	if r.log == nil {
		r.log = logging.New("plugin")
	}
	return r
}

// Register initializes p and indexes it. A duplicate id fails with
// ErrAlreadyRegistered and leaves the existing plugin in place. If
// Initialize fails or a contributed node type collides, nothing is kept.
func (r *Registry) Register(ctx context.Context, p Plugin) error {
	meta := p.Metadata()
	if meta.ID == "" {
		return errors.New("plugin id is empty")
	}

	r.mu.Lock()
	if _, ok := r.entries[meta.ID]; ok || r.pending[meta.ID] {
		r.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrAlreadyRegistered, meta.ID)
	}
	r.pending[meta.ID] = true
	r.mu.Unlock()

	release := func() {
		r.mu.Lock()
		delete(r.pending, meta.ID)
		r.mu.Unlock()
	}

	if err := p.Initialize(ctx); err != nil {
		release()
		return fmt.Errorf("initialize plugin %s: %w", meta.ID, err)
	}

	r.mu.Lock()
	delete(r.pending, meta.ID)
	e, err := r.attach(p)
	if err != nil {
		r.mu.Unlock()
		r.log.Warn("plugin rejected", "plugin", meta.ID, "error", err)
		if cerr := p.Cleanup(ctx); cerr != nil {
			err = errors.Join(err, cerr)
		}
		return fmt.Errorf("register plugin %s: %w", meta.ID, err)
	}
	r.entries[meta.ID] = e
	r.order = append(r.order, meta.ID)
	r.mu.Unlock()

	r.log.Info("plugin registered", "plugin", meta.ID, "version", meta.Version,
		"node_types", len(e.nodeTypes), "handlers", len(e.handlers))
	return nil
}

// attach indexes the node types and handlers p contributes. On a collision
// everything added so far is removed again. Caller holds r.mu.
func (r *Registry) attach(p Plugin) (*entry, error) {
	e := &entry{plugin: p}
	rollback := func() {
		for _, t := range e.nodeTypes {
			r.catalog.Remove(t)
		}
		for _, t := range e.handlers {
			delete(r.handlers, t)
		}
	}
	if np, ok := p.(NodeProvider); ok && hasCapability(p, CapNodeProvider) {
		for _, def := range np.NodeTypes() {
			if err := r.catalog.Add(def); err != nil {
				rollback()
				return nil, err
			}
			e.nodeTypes = append(e.nodeTypes, def.Type)
		}
	}
	if ep, ok := p.(ExecutorProvider); ok && hasCapability(p, CapExecutor) {
		handlers := ep.Handlers()
		for _, typeTag := range slices.Sorted(maps.Keys(handlers)) {
			if _, taken := r.handlers[typeTag]; taken {
				rollback()
				return nil, fmt.Errorf("%w: %s", ErrDuplicateHandler, typeTag)
			}
			r.handlers[typeTag] = handlers[typeTag]
			e.handlers = append(e.handlers, typeTag)
		}
	}
	return e, nil
}

// Unregister removes the plugin and runs its Cleanup. Unknown ids are a no-op.
func (r *Registry) Unregister(ctx context.Context, id string) error {
	r.mu.Lock()
	e, ok := r.entries[id]
	if !ok {
		r.mu.Unlock()
		return nil
	}
	r.detach(id, e)
	r.mu.Unlock()

	r.log.Info("plugin unregistered", "plugin", id)
	if err := e.plugin.Cleanup(ctx); err != nil {
		return fmt.Errorf("cleanup plugin %s: %w", id, err)
	}
	return nil
}

// detach drops everything e contributed. Caller holds r.mu.
func (r *Registry) detach(id string, e *entry) {
	for _, t := range e.nodeTypes {
		r.catalog.Remove(t)
	}
	for _, t := range e.handlers {
		delete(r.handlers, t)
	}
	delete(r.entries, id)
	for i, have := range r.order {
		if have == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// Get returns the plugin registered under id.
func (r *Registry) Get(id string) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.entries[id]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return e.plugin, nil
}

// List returns the metadata of every plugin in registration order.
func (r *Registry) List() []Metadata {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Metadata, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.entries[id].plugin.Metadata())
	}
	return out
}

// ByCapability returns the plugins declaring c, in registration order.
func (r *Registry) ByCapability(c Capability) []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []Plugin
	for _, id := range r.order {
		if p := r.entries[id].plugin; hasCapability(p, c) {
			out = append(out, p)
		}
	}
	return out
}

// Catalog returns the node type catalog, built-ins plus plugin types.
func (r *Registry) Catalog() *workflow.Catalog { return r.catalog }

// Handler returns the executor a plugin contributed for typeTag.
func (r *Registry) Handler(typeTag string) (workflow.NodeHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[typeTag]
	return h, ok
}

// Check runs every validator plugin against g and concatenates their findings.
func (r *Registry) Check(g *workflow.Graph) []workflow.Issue {
	var issues []workflow.Issue
	for _, p := range r.ByCapability(CapValidator) {
		if v, ok := p.(Validator); ok {
			issues = append(issues, v.Check(g)...)
		}
	}
	return issues
}

// Transform passes g through every transformer plugin in registration order.
func (r *Registry) Transform(g *workflow.Graph) (*workflow.Graph, error) {
	out := g
	for _, p := range r.ByCapability(CapTransformer) {
		tr, ok := p.(Transformer)
		if !ok {
			continue
		}
		next, err := tr.Transform(out)
		if err != nil {
			return nil, fmt.Errorf("transform with %s: %w", p.Metadata().ID, err)
		}
		out = next
	}
	return out, nil
}

// Shutdown unregisters every plugin, running their Cleanup hooks concurrently.
// It returns the first cleanup error.
func (r *Registry) Shutdown(ctx context.Context) error {
	r.mu.Lock()
	var plugins []Plugin
	for _, id := range append([]string(nil), r.order...) {
		e := r.entries[id]
		plugins = append(plugins, e.plugin)
		r.detach(id, e)
	}
	r.mu.Unlock()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(shutdownLimit)
	for _, p := range plugins {
		g.Go(func() error {
			if err := p.Cleanup(gctx); err != nil {
				return fmt.Errorf("cleanup plugin %s: %w", p.Metadata().ID, err)
			}
			return nil
		})
	}
	err := g.Wait()
	r.log.Info("registry shut down", "plugins", len(plugins))
	return err
}
