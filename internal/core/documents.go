package core

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"time"

	"docchain/internal/migrate"
	"docchain/pkg/domain"
)

// ErrNothingStaged is returned by ApplyStaged for documents without a staged
// migration.
var ErrNothingStaged = errors.New("no staged migration")

// Insert wraps payload in a fresh envelope stored under the latest version
// key and writes it.
func (e *Engine) Insert(ctx context.Context, coll string, payload map[string]any) (*domain.Document, error) {
	c, err := e.collection(coll)
	if err != nil {
		return nil, err
	}
	rec := domain.Record{
		domain.FieldPayload: map[string]any{domain.VersionKey(c.latest): domain.CloneValue(payload)},
	}
	return e.InsertRecord(ctx, coll, rec)
}

// InsertRecord writes a full record. Missing id and timestamps are filled in;
// an existing id is rejected.
func (e *Engine) InsertRecord(ctx context.Context, coll string, rec domain.Record) (*domain.Document, error) {
	c, err := e.collection(coll)
	if err != nil {
		return nil, err
	}
	var doc *domain.Document
	err = e.trace(ctx, "insert", func(ctx context.Context) error {
		out := domain.CloneRecord(rec)
		if out == nil {
			out = domain.Record{}
		}
		now := e.timestamp()
		if id, _ := out[domain.FieldID].(string); id == "" {
			out[domain.FieldID] = e.idFn()
		}
		if _, ok := out[domain.FieldCreatedAt]; !ok {
			out[domain.FieldCreatedAt] = now
		}
		if _, ok := out[domain.FieldModifiedAt]; !ok {
			out[domain.FieldModifiedAt] = now
		}
		id, _ := out[domain.FieldID].(string)

		c.mu.Lock()
		defer c.mu.Unlock()
		if _, err := e.backend.Get(ctx, c.name, id); err == nil {
			return fmt.Errorf("insert %s/%s: document already exists", c.name, id)
		} else if !errors.Is(err, domain.ErrNotFound) {
			return err
		}
		for _, fn := range c.beforeInsert {
			if err := fn(ctx, out); err != nil {
				return err
			}
		}
		if err := e.write(ctx, c, id, out); err != nil {
			return err
		}
		doc, err = e.afterLoad(ctx, c, out, c.latest)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Get loads a document, upgrading it first when it lags the registered version.
func (e *Engine) Get(ctx context.Context, coll, id string) (*domain.Document, error) {
	c, err := e.collection(coll)
	if err != nil {
		return nil, err
	}
	var doc *domain.Document
	err = e.trace(ctx, "get", func(ctx context.Context) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		doc, err = e.load(ctx, c, id)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// Find loads every document matching filter. Documents that fail to upgrade
// are left out of the result and reported through the joined error.
func (e *Engine) Find(ctx context.Context, coll string, filter Filter) ([]*domain.Document, error) {
	c, err := e.collection(coll)
	if err != nil {
		return nil, err
	}
	var docs []*domain.Document
	err = e.trace(ctx, "find", func(ctx context.Context) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		var listErr error
		docs, listErr = e.loadAll(ctx, c, filter)
		return listErr
	})
	return docs, err
}

// Patch shallow-merges patch into the latest payload of a document.
func (e *Engine) Patch(ctx context.Context, coll, id string, patch map[string]any) (*domain.Document, error) {
	return e.update(ctx, "patch", coll, id, func(_ *domain.Document, rec domain.Record, latestKey string) error {
		payload := ensurePayload(rec)
		current, _ := payload[latestKey].(map[string]any)
		merged := make(map[string]any, len(current)+len(patch))
		maps.Copy(merged, current)
		for k, v := range patch {
			merged[k] = domain.CloneValue(v)
		}
		payload[latestKey] = merged
		return nil
	})
}

// Replace overwrites the latest payload of a document. Historical payload
// keys are kept.
func (e *Engine) Replace(ctx context.Context, coll, id string, payload map[string]any) (*domain.Document, error) {
	return e.update(ctx, "replace", coll, id, func(_ *domain.Document, rec domain.Record, latestKey string) error {
		ensurePayload(rec)[latestKey] = domain.CloneValue(payload)
		return nil
	})
}

// ApplyStaged writes the staged payload computed on load back to storage.
func (e *Engine) ApplyStaged(ctx context.Context, coll, id string) (*domain.Document, error) {
	return e.update(ctx, "apply_staged", coll, id, func(doc *domain.Document, rec domain.Record, latestKey string) error {
		if doc.Staged == nil {
			return fmt.Errorf("apply %s/%s: %w (state %s)", coll, id, ErrNothingStaged, doc.State)
		}
		ensurePayload(rec)[latestKey] = domain.CloneValue(doc.Staged.Payload)
		return nil
	})
}

// Remove deletes a document and reports whether it existed.
func (e *Engine) Remove(ctx context.Context, coll, id string) (bool, error) {
	c, err := e.collection(coll)
	if err != nil {
		return false, err
	}
	var removed bool
	err = e.trace(ctx, "remove", func(ctx context.Context) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		removed, err = e.backend.Delete(ctx, c.name, id)
		return err
	})
	return removed, err
}

// RemoveWhere deletes every document matching filter and returns the count.
func (e *Engine) RemoveWhere(ctx context.Context, coll string, filter Filter) (int, error) {
	c, err := e.collection(coll)
	if err != nil {
		return 0, err
	}
	var removed int
	err = e.trace(ctx, "remove_where", func(ctx context.Context) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		docs, loadErr := e.loadAll(ctx, c, filter)
		for _, doc := range docs {
			ok, err := e.backend.Delete(ctx, c.name, doc.ID())
			if err != nil {
				return err
			}
			if ok {
				removed++
			}
		}
		return loadErr
	})
	return removed, err
}

type mutation func(doc *domain.Document, rec domain.Record, latestKey string) error

func (e *Engine) update(ctx context.Context, op, coll, id string, mutate mutation) (*domain.Document, error) {
	c, err := e.collection(coll)
	if err != nil {
		return nil, err
	}
	var doc *domain.Document
	err = e.trace(ctx, op, func(ctx context.Context) error {
		c.mu.Lock()
		defer c.mu.Unlock()
		current, err := e.load(ctx, c, id)
		if err != nil {
			return err
		}
		rec := domain.CloneRecord(current.Record)
		if err := mutate(current, rec, domain.VersionKey(c.latest)); err != nil {
			return err
		}
		rec[domain.FieldID] = id
		rec[domain.FieldModifiedAt] = e.timestamp()
		for _, fn := range c.beforeUpdate {
			if err := fn(ctx, rec); err != nil {
				return err
			}
		}
		if err := e.write(ctx, c, id, rec); err != nil {
			return err
		}
		doc, err = e.afterLoad(ctx, c, rec, c.latest)
		return err
	})
	if err != nil {
		return nil, err
	}
	return doc, nil
}

func (e *Engine) load(ctx context.Context, c *collection, id string) (*domain.Document, error) {
	stored, err := e.backend.Get(ctx, c.name, id)
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("%s/%s: %w", c.name, id, domain.ErrNotFound)
		}
		return nil, err
	}
	return e.materialize(ctx, c, stored)
}

func (e *Engine) loadAll(ctx context.Context, c *collection, filter Filter) ([]*domain.Document, error) {
	stored, err := e.backend.List(ctx, c.name)
	if err != nil {
		return nil, err
	}
	var (
		docs []*domain.Document
		errs []error
	)
	for _, s := range stored {
		doc, err := e.materialize(ctx, c, s)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if filter == nil || filter(doc) {
			docs = append(docs, doc)
		}
	}
	return docs, errors.Join(errs...)
}

// materialize decodes a stored document, runs the upgrade pass when it lags
// and fires the after-load hooks.
func (e *Engine) materialize(ctx context.Context, c *collection, stored domain.StoredDocument) (*domain.Document, error) {
	var rec domain.Record
	if err := json.Unmarshal(stored.Body, &rec); err != nil {
		return nil, fmt.Errorf("decode %s/%s: %w", c.name, stored.ID, err)
	}
	version := stored.SchemaVersion
	if version < c.latest {
		upgraded, err := migrate.Run(migrate.Strategies(c.cfg.Strategies), rec, version, c.latest)
		if err != nil {
			var merr *domain.MigrationError
			if errors.As(err, &merr) {
				merr.Collection = c.name
				merr.DocumentID = stored.ID
				e.recorder.Migration(c.name, merr.Version, err)
			} else {
				e.recorder.Migration(c.name, c.latest, err)
			}
			e.log.Warn("document upgrade failed", "collection", c.name, "id", stored.ID,
				"from", version, "to", c.latest, "error", err)
			return nil, err
		}
		if err := e.write(ctx, c, stored.ID, upgraded); err != nil {
			return nil, err
		}
		e.recorder.Migration(c.name, c.latest, nil)
		e.log.Debug("document upgraded", "collection", c.name, "id", stored.ID, "from", version, "to", c.latest)
		rec, version = upgraded, c.latest
	}
	return e.afterLoad(ctx, c, rec, version)
}

func (e *Engine) afterLoad(ctx context.Context, c *collection, rec domain.Record, version int) (*domain.Document, error) {
	doc := &domain.Document{Record: rec, SchemaVersion: version, State: domain.StateCurrent}
	for _, fn := range c.afterLoad {
		if err := fn(ctx, doc); err != nil {
			return nil, err
		}
	}
	return doc, nil
}

func (e *Engine) write(ctx context.Context, c *collection, id string, rec domain.Record) error {
	body, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode %s/%s: %w", c.name, id, err)
	}
	return e.backend.Put(ctx, c.name, domain.StoredDocument{ID: id, SchemaVersion: c.latest, Body: body})
}

func (e *Engine) timestamp() string {
	return e.nowFn().UTC().Format(time.RFC3339Nano)
}

func ensurePayload(rec domain.Record) map[string]any {
	payload, ok := domain.Payload(rec)
	if !ok {
		payload = map[string]any{}
		rec[domain.FieldPayload] = payload
	}
	return payload
}
