package postgres

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"

	"docchain/internal/infra/persistence/postgres/testutil"
	"docchain/pkg/domain"
	shared "docchain/testutil"
)

func stubStore(t *testing.T) (*Store, *testutil.StubConn) {
	t.Helper()
	db, conn := testutil.NewStubDB()
	restore := OverrideSQLOpen(func(driverName, dsn string) (*sql.DB, error) {
		if driverName != defaultDriver {
			t.Fatalf("driver = %q", driverName)
		}
		if dsn != defaultDSN {
			t.Fatalf("dsn = %q", dsn)
		}
		return db, nil
	})
	t.Cleanup(restore)
	s, err := NewStore(context.Background(), "")
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s, conn
}

func TestStoreContract(t *testing.T) {
	s, conn := stubStore(t)
	shared.RunBackendContract(t, s)
	if len(conn.Execs) == 0 || !strings.Contains(conn.Execs[0], "CREATE TABLE IF NOT EXISTS documents") {
		t.Fatalf("expected documents DDL first, got %v", conn.Execs)
	}
	if !strings.Contains(conn.Execs[0], "JSONB") {
		t.Fatalf("expected JSONB body column")
	}
	if s.DB() == nil {
		t.Fatalf("expected DB handle")
	}
}

func TestNewStoreFailures(t *testing.T) {
	ctx := context.Background()

	restore := OverrideSQLOpen(func(string, string) (*sql.DB, error) { return nil, errors.New("dial") })
	_, err := NewStore(ctx, "postgres://x")
	restore()
	if err == nil || !strings.Contains(err.Error(), "open postgres") {
		t.Fatalf("expected open error, got %v", err)
	}

	db, conn := testutil.NewStubDB()
	conn.FailPing = true
	restore = OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	_, err = NewStore(ctx, "postgres://x")
	restore()
	if err == nil || !strings.Contains(err.Error(), "ping postgres") {
		t.Fatalf("expected ping error, got %v", err)
	}

	db, conn = testutil.NewStubDB()
	conn.FailExec = true
	restore = OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	_, err = NewStore(ctx, "postgres://x")
	restore()
	if err == nil || !strings.Contains(err.Error(), "ensure documents table") {
		t.Fatalf("expected ddl error, got %v", err)
	}
}

func TestQueryFailuresAreWrapped(t *testing.T) {
	s, conn := stubStore(t)
	ctx := context.Background()
	conn.FailTables = map[string]bool{"documents": true}

	if _, err := s.Get(ctx, "notes", "a"); err == nil || errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected query error, got %v", err)
	}
	if _, err := s.List(ctx, "notes"); err == nil {
		t.Fatalf("expected list error")
	}
	if err := s.Put(ctx, "notes", domain.StoredDocument{ID: "a", Body: []byte(`{}`)}); err == nil {
		t.Fatalf("expected put error")
	}
	if _, err := s.Delete(ctx, "notes", "a"); err == nil {
		t.Fatalf("expected delete error")
	}
}
