package testutil

import (
	"context"
	"errors"
	"testing"

	"docchain/pkg/domain"
)

// RunBackendContract exercises the behaviour every domain.Backend must share.
// The backend must start empty.
func RunBackendContract(t *testing.T, backend domain.Backend) {
	t.Helper()
	ctx := context.Background()

	if _, err := backend.Get(ctx, "notes", DocID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get missing: expected ErrNotFound, got %v", err)
	}

	first := domain.StoredDocument{ID: OtherID, SchemaVersion: 0, Body: []byte(`{"id":"b"}`)}
	second := domain.StoredDocument{ID: DocID, SchemaVersion: 1, Body: []byte(`{"id":"a"}`)}
	for _, doc := range []domain.StoredDocument{first, second} {
		if err := backend.Put(ctx, "notes", doc); err != nil {
			t.Fatalf("put %s: %v", doc.ID, err)
		}
	}
	if err := backend.Put(ctx, "other", domain.StoredDocument{ID: DocID, SchemaVersion: 3, Body: []byte(`{}`)}); err != nil {
		t.Fatalf("put other: %v", err)
	}

	got, err := backend.Get(ctx, "notes", DocID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != DocID || got.SchemaVersion != 1 || string(got.Body) != `{"id":"a"}` {
		t.Fatalf("unexpected document %+v", got)
	}

	updated := domain.StoredDocument{ID: DocID, SchemaVersion: 2, Body: []byte(`{"id":"a","v":2}`)}
	if err := backend.Put(ctx, "notes", updated); err != nil {
		t.Fatalf("overwrite: %v", err)
	}
	got, err = backend.Get(ctx, "notes", DocID)
	if err != nil {
		t.Fatalf("get after overwrite: %v", err)
	}
	if got.SchemaVersion != 2 || string(got.Body) != `{"id":"a","v":2}` {
		t.Fatalf("overwrite not visible: %+v", got)
	}

	list, err := backend.List(ctx, "notes")
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || list[0].ID != DocID || list[1].ID != OtherID {
		t.Fatalf("expected two documents ordered by id, got %+v", list)
	}
	other, err := backend.List(ctx, "other")
	if err != nil || len(other) != 1 || other[0].SchemaVersion != 3 {
		t.Fatalf("collections must be isolated: %+v %v", other, err)
	}
	empty, err := backend.List(ctx, "empty")
	if err != nil || len(empty) != 0 {
		t.Fatalf("list empty collection: %+v %v", empty, err)
	}

	removed, err := backend.Delete(ctx, "notes", DocID)
	if err != nil || !removed {
		t.Fatalf("delete: removed=%v err=%v", removed, err)
	}
	removed, err = backend.Delete(ctx, "notes", DocID)
	if err != nil || removed {
		t.Fatalf("delete twice: removed=%v err=%v", removed, err)
	}
	if _, err := backend.Get(ctx, "notes", DocID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("get deleted: expected ErrNotFound, got %v", err)
	}
	if _, err := backend.Get(ctx, "other", DocID); err != nil {
		t.Fatalf("delete leaked across collections: %v", err)
	}

	if err := backend.Put(ctx, "notes", domain.StoredDocument{Body: []byte(`{}`)}); err == nil {
		t.Fatalf("expected error for empty id")
	}
}
