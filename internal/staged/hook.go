package staged

import (
	"context"
	"fmt"

	"docchain/pkg/domain"
)

// Classification is the outcome of checking one record.
type Classification struct {
	State  domain.MigrationState
	Staged *domain.StagedMigration
	Reason string
}

// Observer receives classification outcomes and write rejections.
type Observer interface {
	Classified(collection string, c Classification)
	Rejected(collection, op string, err error)
}

type noopObserver struct{}

func (noopObserver) Classified(string, Classification) {}
func (noopObserver) Rejected(string, string, error)    {}

// Hook holds the lifecycle callbacks for one collection. It keeps no state
// between calls; every classification is recomputed from the record given.
type Hook struct {
	collection string
	latest     *domain.Schema
	union      *Union
	observer   Observer
}

// Option configures a Hook.
type Option func(*Hook)

// WithObserver attaches an observer. A nil observer disables reporting.
func WithObserver(o Observer) Option {
	return func(h *Hook) {
		if o == nil {
			h.observer = noopObserver{}
			return
		}
		h.observer = o
	}
}

// NewHook builds the hook for collection from its latest-only schema and its
// migration union.
func NewHook(collection string, latest *domain.Schema, union *Union, opts ...Option) (*Hook, error) {
	if latest == nil {
		return nil, fmt.Errorf("%w: latest schema is nil", domain.ErrInvalidChain)
	}
	if union == nil {
		return nil, fmt.Errorf("%w: migration union is nil", domain.ErrInvalidChain)
	}
	h := &Hook{collection: collection, latest: latest, union: union, observer: noopObserver{}}
	for _, opt := range opts {
		opt(h)
	}
	return h, nil
}

// Classify checks rec against the latest-only schema and then the union.
func (h *Hook) Classify(rec domain.Record) Classification {
	latestErr := domain.Validate(rec, h.latest)
	if latestErr == nil {
		return Classification{State: domain.StateCurrent}
	}
	variant, ok := h.union.find(rec)
	if !ok {
		return Classification{State: domain.StateUnrecognized, Reason: latestErr.Error()}
	}
	payload, _ := domain.Payload(rec)
	next, err := variant.Transform(payload[domain.VersionKey(variant.Version)].(map[string]any))
	if err != nil {
		return Classification{State: domain.StateUnrecognized, Reason: fmt.Sprintf("transform from %s: %v", domain.VersionKey(variant.Version), err)}
	}
	if err := domain.Validate(next, h.union.target); err != nil {
		return Classification{State: domain.StateUnrecognized, Reason: fmt.Sprintf("transform from %s: %v", domain.VersionKey(variant.Version), err)}
	}
	return Classification{
		State: domain.StatePending,
		Staged: &domain.StagedMigration{
			FromVersion: variant.Version,
			ToVersion:   h.union.latest,
			Payload:     next,
		},
	}
}

// AfterLoad attaches the classification to doc. The record itself is never
// modified.
func (h *Hook) AfterLoad(_ context.Context, doc *domain.Document) error {
	if doc == nil {
		return nil
	}
	c := h.Classify(doc.Record)
	doc.State = c.State
	doc.Staged = c.Staged
	doc.Reason = c.Reason
	h.observer.Classified(h.collection, c)
	return nil
}

// BeforeInsert rejects records that do not satisfy the latest-only schema.
func (h *Hook) BeforeInsert(_ context.Context, rec domain.Record) error {
	return h.beforeWrite("insert", rec)
}

// BeforeUpdate rejects records that do not satisfy the latest-only schema.
func (h *Hook) BeforeUpdate(_ context.Context, rec domain.Record) error {
	return h.beforeWrite("update", rec)
}

func (h *Hook) beforeWrite(op string, rec domain.Record) error {
	if err := domain.Validate(rec, h.latest); err != nil {
		wrapped := fmt.Errorf("%s %s: %w: %w", op, h.collection, domain.ErrLatestSchemaMismatch, err)
		h.observer.Rejected(h.collection, op, wrapped)
		return wrapped
	}
	return nil
}

// Install registers the hook's callbacks on an engine.
func Install(hooks domain.LifecycleHooks, h *Hook) error {
	if err := hooks.OnAfterLoad(h.collection, h.AfterLoad); err != nil {
		return fmt.Errorf("install after-load hook for %s: %w", h.collection, err)
	}
	if err := hooks.OnBeforeInsert(h.collection, h.BeforeInsert); err != nil {
		return fmt.Errorf("install before-insert hook for %s: %w", h.collection, err)
	}
	if err := hooks.OnBeforeUpdate(h.collection, h.BeforeUpdate); err != nil {
		return fmt.Errorf("install before-update hook for %s: %w", h.collection, err)
	}
	return nil
}
