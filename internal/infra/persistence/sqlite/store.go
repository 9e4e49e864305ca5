// Package sqlite provides a document backend stored in a single SQLite table.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // pure go sqlite driver

	"docchain/pkg/domain"
)

var _ domain.Backend = (*Store)(nil)

const defaultPath = "docchain.db"

// Store persists documents as JSON text rows keyed by collection and id.
type Store struct {
	db   *sql.DB
	path string
}

// NewStore opens (creating when needed) the database at path.
func NewStore(path string) (*Store, error) {
	if path == "" {
		path = defaultPath
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil && !errors.Is(err, os.ErrExist) {
		return nil, fmt.Errorf("create dirs: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	if _, err := db.Exec(`CREATE TABLE IF NOT EXISTS documents (
		collection TEXT NOT NULL,
		id TEXT NOT NULL,
		schema_version INTEGER NOT NULL,
		body TEXT NOT NULL,
		PRIMARY KEY (collection, id)
	)`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create documents table: %w", err)
	}
	return &Store{db: db, path: path}, nil
}

// Get implements domain.Backend.
func (s *Store) Get(ctx context.Context, collection, id string) (domain.StoredDocument, error) {
	var (
		version int
		body    string
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT schema_version, body FROM documents WHERE collection = ? AND id = ?`,
		collection, id).Scan(&version, &body)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.StoredDocument{}, fmt.Errorf("%s/%s: %w", collection, id, domain.ErrNotFound)
	}
	if err != nil {
		return domain.StoredDocument{}, fmt.Errorf("select %s/%s: %w", collection, id, err)
	}
	return domain.StoredDocument{ID: id, SchemaVersion: version, Body: []byte(body)}, nil
}

// Put implements domain.Backend.
func (s *Store) Put(ctx context.Context, collection string, doc domain.StoredDocument) error {
	if doc.ID == "" {
		return fmt.Errorf("put %s: document id required", collection)
	}
	if _, err := s.db.ExecContext(ctx,
		`INSERT INTO documents(collection, id, schema_version, body) VALUES(?,?,?,?)
		ON CONFLICT(collection, id) DO UPDATE SET schema_version=excluded.schema_version, body=excluded.body`,
		collection, doc.ID, doc.SchemaVersion, string(doc.Body)); err != nil {
		return fmt.Errorf("upsert %s/%s: %w", collection, doc.ID, err)
	}
	return nil
}

// Delete implements domain.Backend.
func (s *Store) Delete(ctx context.Context, collection, id string) (bool, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM documents WHERE collection = ? AND id = ?`, collection, id)
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
		`SELECT id, schema_version, body FROM documents WHERE collection = ? ORDER BY id`, collection)
	if err != nil {
		return nil, fmt.Errorf("select %s: %w", collection, err)
	}
	defer func() {
		if err := rows.Close(); err != nil && retErr == nil {
			retErr = err
		}
	}()
	for rows.Next() {
		var (
			doc  domain.StoredDocument
			body string
		)
		if err := rows.Scan(&doc.ID, &doc.SchemaVersion, &body); err != nil {
			return nil, fmt.Errorf("scan: %w", err)
		}
		doc.Body = []byte(body)
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

// Path returns the configured database path.
func (s *Store) Path() string { return s.path }
