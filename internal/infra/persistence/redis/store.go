// Package redis provides a document backend on Redis. Every document is a hash
// at docchain:{namespace}:{collection}:{id}; a set per collection indexes the
// ids for listing.
package redis

import (
	"context"
	"fmt"
	"sort"
	"strconv"

	goredis "github.com/redis/go-redis/v9"

	"docchain/pkg/domain"
)

var _ domain.Backend = (*Store)(nil)

const (
	fieldVersion = "schema_version"
	fieldBody    = "body"
)

// Store is a namespaced Redis document backend. It is safe for concurrent use.
type Store struct {
	rdb       *goredis.Client
	namespace string
}

// NewStore connects to Redis with opts and verifies connectivity.
func NewStore(ctx context.Context, opts *goredis.Options, namespace string) (*Store, error) {
	if namespace == "" {
		return nil, fmt.Errorf("namespace cannot be empty")
	}
	rdb := goredis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return &Store{rdb: rdb, namespace: namespace}, nil
}

// DocumentKey returns the hash key holding a document.
func DocumentKey(namespace, collection, id string) string {
	return fmt.Sprintf("docchain:%s:%s:%s", namespace, collection, id)
}

// IndexKey returns the set key listing a collection's document ids.
func IndexKey(namespace, collection string) string {
	return fmt.Sprintf("docchain:%s:%s:index", namespace, collection)
}

// Get implements domain.Backend.
func (s *Store) Get(ctx context.Context, collection, id string) (domain.StoredDocument, error) {
	fields, err := s.rdb.HGetAll(ctx, DocumentKey(s.namespace, collection, id)).Result()
	if err != nil {
		return domain.StoredDocument{}, fmt.Errorf("failed to read %s/%s from Redis: %w", collection, id, err)
	}
	if len(fields) == 0 {
		return domain.StoredDocument{}, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	return decode(id, fields)
}

// Put implements domain.Backend.
func (s *Store) Put(ctx context.Context, collection string, doc domain.StoredDocument) error {
	if doc.ID == "" {
		return fmt.Errorf("put %s: document id required", collection)
	}
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.HSet(ctx, DocumentKey(s.namespace, collection, doc.ID),
			fieldVersion, strconv.Itoa(doc.SchemaVersion),
			fieldBody, string(doc.Body))
		pipe.SAdd(ctx, IndexKey(s.namespace, collection), doc.ID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write %s/%s to Redis: %w", collection, doc.ID, err)
	}
	return nil
}

// Delete implements domain.Backend.
func (s *Store) Delete(ctx context.Context, collection, id string) (bool, error) {
	var del *goredis.IntCmd
	_, err := s.rdb.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		del = pipe.Del(ctx, DocumentKey(s.namespace, collection, id))
		pipe.SRem(ctx, IndexKey(s.namespace, collection), id)
		return nil
	})
	if err != nil {
		return false, fmt.Errorf("failed to delete %s/%s from Redis: %w", collection, id, err)
	}
	return del.Val() > 0, nil
}

// List implements domain.Backend. Documents are ordered by id; index entries
// whose hash has vanished are skipped.
func (s *Store) List(ctx context.Context, collection string) ([]domain.StoredDocument, error) {
	ids, err := s.rdb.SMembers(ctx, IndexKey(s.namespace, collection)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read %s index from Redis: %w", collection, err)
	}
	sort.Strings(ids)
	cmds := make([]*goredis.MapStringStringCmd, len(ids))
	_, err = s.rdb.Pipelined(ctx, func(pipe goredis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, DocumentKey(s.namespace, collection, id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read %s documents from Redis: %w", collection, err)
	}
	out := make([]domain.StoredDocument, 0, len(ids))
	for i, cmd := range cmds {
		fields := cmd.Val()
		if len(fields) == 0 {
			continue
		}
		doc, err := decode(ids[i], fields)
		if err != nil {
			return nil, err
		}
		out = append(out, doc)
	}
	return out, nil
}

// Ping verifies Redis connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Close implements domain.Backend.
func (s *Store) Close() error { return s.rdb.Close() }

func decode(id string, fields map[string]string) (domain.StoredDocument, error) {
	version, err := strconv.Atoi(fields[fieldVersion])
	if err != nil {
		return domain.StoredDocument{}, fmt.Errorf("decode %s: schema version %q: %w", id, fields[fieldVersion], err)
	}
	return domain.StoredDocument{ID: id, SchemaVersion: version, Body: []byte(fields[fieldBody])}, nil
}
