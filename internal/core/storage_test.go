package core_test

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchain/internal/config"
	"docchain/internal/core"
	"docchain/internal/infra/persistence/memory"
	"docchain/internal/infra/persistence/postgres"
	pgstub "docchain/internal/infra/persistence/postgres/testutil"
	"docchain/internal/infra/persistence/redis"
	"docchain/internal/infra/persistence/sqlite"
)

func TestOpenBackendSelectsDriver(t *testing.T) {
	ctx := context.Background()

	b, err := core.OpenBackend(ctx, config.Storage{Driver: config.DriverMemory})
	require.NoError(t, err)
	assert.IsType(t, &memory.Store{}, b)

	path := filepath.Join(t.TempDir(), "docs.db")
	b, err = core.OpenBackend(ctx, config.Storage{SQLitePath: path})
	if err != nil {
		t.Skipf("sqlite unavailable: %v", err)
	}
	require.IsType(t, &sqlite.Store{}, b)
	assert.Equal(t, path, b.(*sqlite.Store).Path())
	require.NoError(t, b.Close())

	mr := miniredis.RunT(t)
	b, err = core.OpenBackend(ctx, config.Storage{
		Driver: config.DriverRedis,
		Redis:  config.Redis{Addr: mr.Addr(), Namespace: "test"},
	})
	require.NoError(t, err)
	assert.IsType(t, &redis.Store{}, b)
	require.NoError(t, b.Close())

	db, _ := pgstub.NewStubDB()
	restore := postgres.OverrideSQLOpen(func(string, string) (*sql.DB, error) { return db, nil })
	defer restore()
	b, err = core.OpenBackend(ctx, config.Storage{Driver: config.DriverPostgres, PostgresDSN: "postgres://stub"})
	require.NoError(t, err)
	assert.IsType(t, &postgres.Store{}, b)
	require.NoError(t, b.Close())
}

func TestOpenBackendErrors(t *testing.T) {
	ctx := context.Background()
	_, err := core.OpenBackend(ctx, config.Storage{Driver: "cassandra"})
	assert.ErrorContains(t, err, "unknown storage driver")

	b, err := core.OpenBackend(ctx, config.Storage{Driver: config.DriverRedis, Redis: config.Redis{Addr: "127.0.0.1:1"}})
	assert.Error(t, err)
	assert.Nil(t, b, "failed opens return a nil interface")
}

func TestEngineRunsOnEveryBackend(t *testing.T) {
	mr := miniredis.RunT(t)
	backends := map[string]config.Storage{
		"memory": {Driver: config.DriverMemory},
		"redis":  {Driver: config.DriverRedis, Redis: config.Redis{Addr: mr.Addr(), Namespace: "engine"}},
		"sqlite": {Driver: config.DriverSQLite, SQLitePath: filepath.Join(t.TempDir(), "engine.db")},
	}
	for name, cfg := range backends {
		t.Run(name, func(t *testing.T) {
			backend, err := core.OpenBackend(context.Background(), cfg)
			if err != nil {
				t.Skipf("%s unavailable: %v", name, err)
			}
			f := fixtureOn(t, backend)
			defer func() { _ = f.engine.Close() }()
			ctx := context.Background()
			doc, err := f.engine.Insert(ctx, "notes", map[string]any{"text": "x", "status": "active"})
			require.NoError(t, err)
			got, err := f.engine.Get(ctx, "notes", doc.ID())
			require.NoError(t, err)
			assert.Equal(t, doc.Record, got.Record)
		})
	}
}
