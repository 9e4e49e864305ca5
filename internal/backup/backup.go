// Package backup exports a collection's stored documents to a blob store as
// JSON lines and restores them. Documents are copied as stored: no hooks or
// strategies run, so restored documents are upgraded on their next load.
package backup

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"docchain/internal/blob"
	"docchain/internal/platform/logger"
	"docchain/internal/registry"
	"docchain/pkg/domain"
)

// ContentType is the media type of backup blobs.
const ContentType = "application/x-ndjson"

// Blob metadata keys written on every backup.
const (
	MetaCollection    = "collection"
	MetaSchemaVersion = "schema-version"
	MetaSchemaHash    = "schema-hash"
	MetaDocuments     = "documents"
)

const keyTimeLayout = "20060102T150405.000000000Z"

// ErrNewerSchema rejects restoring a backup taken at a schema version the
// registered chain does not reach.
var ErrNewerSchema = errors.New("backup schema version is newer than registered")

// Header is the first line of a backup blob.
type Header struct {
	Collection    string    `json:"collection"`
	SchemaVersion int       `json:"schema_version"`
	SchemaHash    string    `json:"schema_hash"`
	ExportedAt    time.Time `json:"exported_at"`
	Documents     int       `json:"documents"`
}

type entry struct {
	ID            string          `json:"id"`
	SchemaVersion int             `json:"schema_version"`
	Body          json.RawMessage `json:"body"`
}

// Service copies documents between a backend and a blob store.
type Service struct {
	backend domain.Backend
	store   blob.Store
	log     *logger.Logger
	nowFn   func() time.Time
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets the service logger.
func WithLogger(l *logger.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock overrides the export timestamp source.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.nowFn = now
		}
	}
}

// New constructs a backup service.
func New(backend domain.Backend, store blob.Store, opts ...Option) *Service {
	s := &Service{
		backend: backend,
		store:   store,
		log:     logger.Nop(),
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Prefix returns the key prefix holding a collection's backups.
func Prefix(collection string) string {
	return "backups/" + collection + "/"
}

// Key returns the blob key for a backup of collection taken at at.
func Key(collection string, at time.Time) string {
	return Prefix(collection) + at.UTC().Format(keyTimeLayout) + ".jsonl"
}

// Export writes every stored document of coll to a new blob.
func (s *Service) Export(ctx context.Context, coll *registry.Collection) (blob.Info, error) {
	docs, err := s.backend.List(ctx, coll.Name)
	if err != nil {
		return blob.Info{}, fmt.Errorf("list %s: %w", coll.Name, err)
	}
	now := s.nowFn()
	header := Header{
		Collection:    coll.Name,
		SchemaVersion: coll.LatestVersion(),
		SchemaHash:    coll.Hash,
		ExportedAt:    now,
		Documents:     len(docs),
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	if err := enc.Encode(header); err != nil {
		return blob.Info{}, err
	}
	for _, doc := range docs {
		if err := enc.Encode(entry{ID: doc.ID, SchemaVersion: doc.SchemaVersion, Body: doc.Body}); err != nil {
			return blob.Info{}, fmt.Errorf("encode %s/%s: %w", coll.Name, doc.ID, err)
		}
	}
	info, err := s.store.Put(ctx, Key(coll.Name, now), &buf, blob.PutOptions{
		ContentType: ContentType,
		Metadata: map[string]string{
			MetaCollection:    coll.Name,
			MetaSchemaVersion: strconv.Itoa(header.SchemaVersion),
			MetaSchemaHash:    coll.Hash,
			MetaDocuments:     strconv.Itoa(len(docs)),
		},
	})
	if err != nil {
		return blob.Info{}, fmt.Errorf("write backup %s: %w", coll.Name, err)
	}
	s.log.Info("collection exported", "collection", coll.Name, "key", info.Key, "documents", len(docs))
	return info, nil
}

// Import restores the backup at key into coll and returns its header. The
// whole backup is decoded and checked before the first write; stored
// documents with the same id are overwritten.
func (s *Service) Import(ctx context.Context, key string, coll *registry.Collection) (Header, error) {
	_, rc, err := s.store.Get(ctx, key)
	if err != nil {
		return Header{}, fmt.Errorf("read backup %s: %w", key, err)
	}
	defer func() { _ = rc.Close() }()

	scanner := bufio.NewScanner(rc)
	scanner.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return Header{}, fmt.Errorf("read backup %s: %w", key, err)
		}
		return Header{}, fmt.Errorf("backup %s: missing header", key)
	}
	var header Header
	if err := json.Unmarshal(scanner.Bytes(), &header); err != nil {
		return Header{}, fmt.Errorf("backup %s: decode header: %w", key, err)
	}
	if header.Collection != coll.Name {
		return Header{}, fmt.Errorf("backup %s holds collection %q, not %q", key, header.Collection, coll.Name)
	}
	if header.SchemaVersion > coll.LatestVersion() {
		return Header{}, fmt.Errorf("backup %s at v%d, registered v%d: %w", key, header.SchemaVersion, coll.LatestVersion(), ErrNewerSchema)
	}
	if header.SchemaHash != coll.Hash {
		s.log.Warn("backup schema hash differs from registered schema",
			"collection", coll.Name, "key", key, "backup_hash", header.SchemaHash, "registered_hash", coll.Hash)
	}

	var entries []entry
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var e entry
		if err := json.Unmarshal(line, &e); err != nil {
			return header, fmt.Errorf("backup %s: line %d: %w", key, len(entries)+2, err)
		}
		if strings.TrimSpace(e.ID) == "" {
			return header, fmt.Errorf("backup %s: line %d: missing id", key, len(entries)+2)
		}
		if e.SchemaVersion < 0 || e.SchemaVersion > coll.LatestVersion() {
			return header, fmt.Errorf("backup %s: line %d: document at v%d: %w", key, len(entries)+2, e.SchemaVersion, ErrNewerSchema)
		}
		entries = append(entries, e)
	}
	if err := scanner.Err(); err != nil {
		return header, fmt.Errorf("read backup %s: %w", key, err)
	}
	if len(entries) != header.Documents {
		return header, fmt.Errorf("backup %s: header lists %d documents, found %d", key, header.Documents, len(entries))
	}

	restored := 0
	for _, e := range entries {
		if err := s.backend.Put(ctx, coll.Name, domain.StoredDocument{
			ID:            e.ID,
			SchemaVersion: e.SchemaVersion,
			Body:          []byte(e.Body),
		}); err != nil {
			return header, fmt.Errorf("restore %s/%s after %d documents: %w", coll.Name, e.ID, restored, err)
		}
		restored++
	}
	s.log.Info("collection imported", "collection", coll.Name, "key", key, "documents", restored)
	return header, nil
}

// List returns the backups of a collection, oldest first.
func (s *Service) List(ctx context.Context, collection string) ([]blob.Info, error) {
	return s.store.List(ctx, Prefix(collection))
}

// Latest returns the key of the newest backup of a collection.
func (s *Service) Latest(ctx context.Context, collection string) (string, error) {
	infos, err := s.List(ctx, collection)
	if err != nil {
		return "", err
	}
	if len(infos) == 0 {
		return "", fmt.Errorf("no backups for %s: %w", collection, blob.ErrNotFound)
	}
	return infos[len(infos)-1].Key, nil
}
