// Package registry maps collection names to their schema chains and the
// artifacts derived from them, and drives registration with a storage engine
// at startup.
package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"docchain/internal/assemble"
	"docchain/internal/migrate"
	"docchain/internal/platform/logger"
	"docchain/internal/staged"
	"docchain/pkg/chain"
	"docchain/pkg/domain"
)

// Mode selects how a collection's lagging documents are upgraded.
type Mode string

const (
	// ModeLazy runs the generated strategies during the engine's upgrade pass.
	ModeLazy Mode = "lazy"
	// ModeStaged only advances the recorded version on upgrade; the
	// after-load hook stages the candidate payload and the caller applies it.
	ModeStaged Mode = "staged"
)

// Definition declares a collection.
type Definition struct {
	Name  string
	Chain chain.Chain
	Mode  Mode
}

// Collection is a definition plus everything derived from its chain. Values
// are built once by Add and must be treated as read-only.
type Collection struct {
	Name       string
	Mode       Mode
	Chain      chain.Chain
	Schema     *domain.Schema
	Latest     *domain.Schema
	Fields     assemble.FieldSets
	Strategies migrate.Strategies
	Union      *staged.Union
	Hash       string
}

// LatestVersion returns the version documents are registered at.
func (c *Collection) LatestVersion() int { return c.Chain.Latest() }

// Config returns the registration payload handed to the storage engine.
func (c *Collection) Config() domain.CollectionConfig {
	strategies := make(map[int]domain.MigrationStrategy, len(c.Strategies))
	for v, s := range c.Strategies {
		strategies[v] = s
	}
	return domain.CollectionConfig{
		Schema:     c.Schema.Clone(),
		Latest:     c.Latest.Clone(),
		Strategies: strategies,
	}
}

// Registry is process-scoped collection state. Build one at startup and pass
// it to whatever needs it.
type Registry struct {
	mu          sync.RWMutex
	collections map[string]*Collection
	log         *logger.Logger
	observer    staged.Observer
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry logger.
func WithLogger(l *logger.Logger) Option {
	return func(r *Registry) {
		if l != nil {
			r.log = l
		}
	}
}

// WithObserver sets the observer attached to every installed hook.
func WithObserver(o staged.Observer) Option {
	return func(r *Registry) { r.observer = o }
}

// New constructs an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		collections: make(map[string]*Collection),
		log:         logger.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Add assembles schemas, strategies and the migration union for def. A
// malformed chain is rejected and nothing is added.
func (r *Registry) Add(def Definition) (*Collection, error) {
	if def.Name == "" {
		return nil, fmt.Errorf("collection name cannot be empty")
	}
	mode := def.Mode
	if mode == "" {
		mode = ModeLazy
	}
	if mode != ModeLazy && mode != ModeStaged {
		return nil, fmt.Errorf("collection %s: unknown mode %q", def.Name, mode)
	}
	coll, err := build(def.Name, mode, def.Chain)
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", def.Name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.collections[def.Name]; exists {
		return nil, fmt.Errorf("collection %s: %w", def.Name, domain.ErrDuplicateCollection)
	}
	r.collections[def.Name] = coll
	r.log.Info("collection defined", "collection", def.Name, "mode", string(mode),
		"version", coll.LatestVersion(), "required", coll.Fields.Required, "optional", coll.Fields.Optional, "hash", coll.Hash)
	return coll, nil
}

func build(name string, mode Mode, c chain.Chain) (*Collection, error) {
	full, err := assemble.Full(c)
	if err != nil {
		return nil, err
	}
	full.Title = name
	latest, err := assemble.Latest(c)
	if err != nil {
		return nil, err
	}
	latest.Title = name
	fields, err := assemble.Fields(c)
	if err != nil {
		return nil, err
	}
	var strategies migrate.Strategies
	switch mode {
	case ModeStaged:
		strategies, err = migrate.Identity(c)
	default:
		strategies, err = migrate.Generate(c)
	}
	if err != nil {
		return nil, err
	}
	union, err := staged.UnionFromChain(c)
	if err != nil {
		return nil, err
	}
	hash, err := assemble.Fingerprint(full)
	if err != nil {
		return nil, err
	}
	return &Collection{
		Name:       name,
		Mode:       mode,
		Chain:      c,
		Schema:     full,
		Latest:     latest,
		Fields:     fields,
		Strategies: strategies,
		Union:      union,
		Hash:       hash,
	}, nil
}

// Lookup returns the named collection.
func (r *Registry) Lookup(name string) (*Collection, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.collections[name]
	return c, ok
}

// Collections returns every collection sorted by name.
func (r *Registry) Collections() []*Collection {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Collection, 0, len(r.collections))
	for _, c := range r.collections {
		out = append(out, c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// RegisterAll registers every collection with engine and installs its
// lifecycle hooks, in name order. The first failure aborts startup.
func (r *Registry) RegisterAll(ctx context.Context, engine domain.StorageEngine) error {
	for _, c := range r.Collections() {
		if err := engine.RegisterCollection(ctx, c.Name, c.Config()); err != nil {
			return fmt.Errorf("register collection %s: %w", c.Name, err)
		}
		var opts []staged.Option
		if r.observer != nil {
			opts = append(opts, staged.WithObserver(r.observer))
		}
		hook, err := staged.NewHook(c.Name, c.Latest, c.Union, opts...)
		if err != nil {
			return fmt.Errorf("collection %s: %w", c.Name, err)
		}
		if err := staged.Install(engine, hook); err != nil {
			return err
		}
		r.log.Info("collection registered", "collection", c.Name, "version", c.LatestVersion())
	}
	return nil
}
