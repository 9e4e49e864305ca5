// Package postgres provides a Postgres-backed document backend storing bodies
// as JSONB.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib" // register pgx as a database/sql driver

	"docchain/pkg/domain"
)

// Compile-time contract assertion ensuring the store satisfies the backend interface.
var _ domain.Backend = (*Store)(nil)

const (
	defaultDriver = "pgx"
	defaultDSN    = "postgres://localhost/docchain?sslmode=disable"
)

var (
	sqlOpen = sql.Open
	openMu  sync.Mutex
)

// Store persists documents to a single Postgres table.
type Store struct {
	db *sql.DB
}

// NewStore opens a store using dsn (falls back to defaultDSN) and ensures the
// documents table exists.
func NewStore(ctx context.Context, dsn string) (*Store, error) {
	if dsn == "" {
		dsn = defaultDSN
	}
	openMu.Lock()
	db, err := sqlOpen(defaultDriver, dsn)
	openMu.Unlock()
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := ensureDocumentsTable(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

func ensureDocumentsTable(ctx context.Context, db *sql.DB) error {
	ddl := `CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		schema_version INTEGER NOT NULL,
		body JSONB NOT NULL,
		PRIMARY KEY (collection, id)
	)`
	if _, err := db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensure documents table: %w", err)
	}
	return nil
}

// Get implements domain.Backend.
func (s *Store) Get(ctx context.Context, collection, id string) (domain.StoredDocument, error) {
	doc := domain.StoredDocument{ID: id}
	err := s.db.QueryRowContext(ctx,
		`SELECT schema_version, body FROM documents WHERE collection = $1 AND id = $2`,
		collection, id).Scan(&doc.SchemaVersion, &doc.Body)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StoredDocument{}, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.StoredDocument{}, fmt.Errorf("select %s/%s: %w", collection, id, err)
	}
	return doc, nil
}

// Put implements domain.Backend.
func (s *Store) Put(ctx context.Context, collection string, doc domain.StoredDocument) error {
	if doc.ID == "" {
		return fmt.Errorf("put %s: document id required", collection)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (collection, id, schema_version, body) VALUES ($1,$2,$3,$4) ON CONFLICT (collection, id) DO UPDATE SET schema_version=EXCLUDED.schema_version, body=EXCLUDED.body`,
		collection, doc.ID, doc.SchemaVersion, doc.Body); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, doc.ID, err)
	}
	return nil
}

// Delete implements domain.Backend.
func (s *Store) Delete(ctx context.Context, collection, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = $1 AND id = $2`, collection, id)
	if err != nil {
		return false, fmt.Errorf("delete %s/%s: %w", collection, id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List implements domain.Backend. Documents are ordered by id.
func (s *Store) List(ctx context.Context, collection string) (docs []domain.StoredDocument, retErr error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, schema_version, body FROM documents WHERE collection = $1 ORDER BY id`, collection)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", collection, err)
	}
	defer func() {
		if err := rows.Close(); err != nil && retErr == nil {
			retErr = err
		}
	}()
	for rows.Next() {
		var doc domain.StoredDocument
		if err := rows.Scan(&doc.ID, &doc.SchemaVersion, &doc.Body); err != nil {
			return nil, fmt.Errorf("scan %s: %w", collection, err)
		}
		docs = append(docs, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate %s: %w", collection, err)
	}
	return docs, nil
}

// Close implements domain.Backend.
func (s *Store) Close() error { return s.db.Close() }

// DB exposes the underlying sql.DB for integration testing hooks.
func (s *Store) DB() *sql.DB { return s.db }

// OverrideSQLOpen swaps the sqlOpen function for tests and returns a restore function.
func OverrideSQLOpen(fn func(driverName, dataSourceName string) (*sql.DB, error)) func() {
	openMu.Lock()
	defer openMu.Unlock()
	prev := sqlOpen
	sqlOpen = fn
	return func() {
		openMu.Lock()
		defer openMu.Unlock()
		sqlOpen = prev
	}
}
