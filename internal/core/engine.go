// Package core provides the reference document storage engine docchain
// registers collections with. It hosts versioned collections on a pluggable
// backend, runs migration strategies lazily on load and fires lifecycle hooks
// around every load and write.
package core

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"docchain/internal/observability"
	"docchain/internal/platform/logger"
	"docchain/pkg/domain"
)

var _ domain.StorageEngine = (*Engine)(nil)

// Engine hosts registered collections on top of a Backend.
type Engine struct {
	backend  domain.Backend
	log      *logger.Logger
	recorder observability.Recorder
	tracer   observability.Tracer
	nowFn    func() time.Time
	idFn     func() string

	mu          sync.RWMutex
	collections map[string]*collection
}

type collection struct {
	mu           sync.Mutex
	name         string
	cfg          domain.CollectionConfig
	latest       int
	afterLoad    []domain.AfterLoadFunc
	beforeInsert []domain.BeforeWriteFunc
	beforeUpdate []domain.BeforeWriteFunc
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine logger.
func WithLogger(l *logger.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithRecorder sets the metrics recorder.
func WithRecorder(r observability.Recorder) Option {
	return func(e *Engine) {
		if r != nil {
			e.recorder = r
		}
	}
}

// WithTracer sets the operation tracer.
func WithTracer(t observability.Tracer) Option {
	return func(e *Engine) {
		if t != nil {
			e.tracer = t
		}
	}
}

// WithClock overrides the timestamp source.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.nowFn = now
		}
	}
}

// WithIDGenerator overrides document identifier generation.
func WithIDGenerator(id func() string) Option {
	return func(e *Engine) {
		if id != nil {
			e.idFn = id
		}
	}
}

// NewEngine constructs an engine over backend.
func NewEngine(backend domain.Backend, opts ...Option) *Engine {
	e := &Engine{
		backend:     backend,
		log:         logger.Nop(),
		recorder:    observability.NopRecorder{},
		tracer:      observability.NopTracer{},
		nowFn:       func() time.Time { return time.Now().UTC() },
		idFn:        uuid.NewString,
		collections: make(map[string]*collection),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Backend returns the underlying document backend.
func (e *Engine) Backend() domain.Backend { return e.backend }

// Close releases the backend.
func (e *Engine) Close() error { return e.backend.Close() }

// RegisterCollection implements domain.CollectionRegistrar.
func (e *Engine) RegisterCollection(_ context.Context, name string, cfg domain.CollectionConfig) error {
	if name == "" {
		return fmt.Errorf("collection name cannot be empty")
	}
	if cfg.Schema == nil || cfg.Latest == nil {
		return fmt.Errorf("collection %s: schema is required", name)
	}
	latest := cfg.LatestVersion()
	for v := 1; v <= latest; v++ {
		if cfg.Strategies[v] == nil {
			return fmt.Errorf("collection %s: missing migration strategy for v%d", name, v)
		}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if _, exists := e.collections[name]; exists {
		return fmt.Errorf("collection %s: %w", name, domain.ErrDuplicateCollection)
	}
	e.collections[name] = &collection{name: name, cfg: cfg, latest: latest}
	e.log.Debug("collection attached", "collection", name, "version", latest)
	return nil
}

// OnAfterLoad implements domain.LifecycleHooks.
func (e *Engine) OnAfterLoad(name string, fn domain.AfterLoadFunc) error {
	c, err := e.collection(name)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.afterLoad = append(c.afterLoad, fn)
	c.mu.Unlock()
	return nil
}

// OnBeforeInsert implements domain.LifecycleHooks.
func (e *Engine) OnBeforeInsert(name string, fn domain.BeforeWriteFunc) error {
	c, err := e.collection(name)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.beforeInsert = append(c.beforeInsert, fn)
	c.mu.Unlock()
	return nil
}

// OnBeforeUpdate implements domain.LifecycleHooks.
func (e *Engine) OnBeforeUpdate(name string, fn domain.BeforeWriteFunc) error {
	c, err := e.collection(name)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.beforeUpdate = append(c.beforeUpdate, fn)
	c.mu.Unlock()
	return nil
}

// Collections returns the registered collection names, sorted.
func (e *Engine) Collections() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	out := make([]string, 0, len(e.collections))
	for name := range e.collections {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// LatestVersion returns the registered version of a collection.
func (e *Engine) LatestVersion(name string) (int, error) {
	c, err := e.collection(name)
	if err != nil {
		return 0, err
	}
	return c.latest, nil
}

func (e *Engine) collection(name string) (*collection, error) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	c, ok := e.collections[name]
	if !ok {
		return nil, fmt.Errorf("%s: %w", name, domain.ErrUnknownCollection)
	}
	return c, nil
}

// trace wraps an operation with tracing and timing.
func (e *Engine) trace(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	started := e.nowFn()
	ctx, span := e.tracer.Start(ctx, op)
	err := fn(ctx)
	span.End(err)
	e.recorder.Observe(ctx, op, err == nil, e.nowFn().Sub(started))
	return err
}
