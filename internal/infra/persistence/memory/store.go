// Package memory provides an in-memory document backend used for tests and
// ephemeral environments.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"docchain/pkg/domain"
)

var _ domain.Backend = (*Store)(nil)

// Store keeps documents per collection in process memory. Bodies are copied on
// the way in and out so callers never share backing arrays with the store.
type Store struct {
	mu          sync.RWMutex
	collections map[string]map[string]domain.StoredDocument
}

// NewStore constructs an empty in-memory backend.
func NewStore() *Store {
	return &Store{collections: make(map[string]map[string]domain.StoredDocument)}
}

// Get implements domain.Backend.
func (s *Store) Get(_ context.Context, collection, id string) (domain.StoredDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	doc, ok := s.collections[collection][id]
	if !ok {
		return domain.StoredDocument{}, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	return cloneDoc(doc), nil
}

// Put implements domain.Backend.
func (s *Store) Put(_ context.Context, collection string, doc domain.StoredDocument) error {
	if doc.ID == "" {
		return fmt.Errorf("put %s: document id required", collection)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.collections[collection]
	if !ok {
		bucket = make(map[string]domain.StoredDocument)
		s.collections[collection] = bucket
	}
	bucket[doc.ID] = cloneDoc(doc)
	return nil
}

// Delete implements domain.Backend.
func (s *Store) Delete(_ context.Context, collection, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket := s.collections[collection]
	if _, ok := bucket[id]; !ok {
		return false, nil
	}
	delete(bucket, id)
	return true, nil
}

// List implements domain.Backend. Documents are ordered by id.
func (s *Store) List(_ context.Context, collection string) ([]domain.StoredDocument, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket := s.collections[collection]
	out := make([]domain.StoredDocument, 0, len(bucket))
	for _, doc := range bucket {
		out = append(out, cloneDoc(doc))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Close implements domain.Backend.
func (s *Store) Close() error { return nil }

func cloneDoc(doc domain.StoredDocument) domain.StoredDocument {
	body := make([]byte, len(doc.Body))
	copy(body, doc.Body)
	doc.Body = body
	return doc
}
