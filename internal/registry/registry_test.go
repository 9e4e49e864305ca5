package registry_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchain/internal/core"
	"docchain/internal/infra/persistence/memory"
	"docchain/internal/registry"
	"docchain/pkg/chain"
	"docchain/pkg/domain"
	"docchain/testutil"
)

func TestAddDerivesArtifacts(t *testing.T) {
	r := registry.New()
	coll, err := r.Add(registry.Definition{Name: "notes", Chain: testutil.NoteChain(t)})
	require.NoError(t, err)

	assert.Equal(t, registry.ModeLazy, coll.Mode)
	assert.Equal(t, 2, coll.LatestVersion())
	assert.Equal(t, "notes", coll.Schema.Title)
	assert.Equal(t, []string{"v2"}, coll.Fields.Required)
	assert.Equal(t, []string{"v0", "v1"}, coll.Fields.Optional)
	assert.Len(t, coll.Strategies, 2)
	assert.Len(t, coll.Union.Variants(), 2)
	assert.Len(t, coll.Hash, 64)

	cfg := coll.Config()
	assert.Equal(t, 2, cfg.LatestVersion())
	assert.True(t, cfg.Schema.Equal(coll.Schema))
	cfg.Schema.Title = "mutated"
	assert.Equal(t, "notes", coll.Schema.Title, "config hands out copies")

	got, ok := r.Lookup("notes")
	require.True(t, ok)
	assert.Same(t, coll, got)
	_, ok = r.Lookup("missing")
	assert.False(t, ok)
}

func TestAddRejectsInvalidDefinitions(t *testing.T) {
	r := registry.New()
	_, err := r.Add(registry.Definition{Chain: testutil.NoteChain(t)})
	assert.Error(t, err)
	_, err = r.Add(registry.Definition{Name: "x", Chain: testutil.NoteChain(t), Mode: "eager"})
	assert.Error(t, err)
	_, err = r.Add(registry.Definition{Name: "x", Chain: chain.Chain{}})
	assert.ErrorIs(t, err, domain.ErrInvalidChain)

	_, err = r.Add(registry.Definition{Name: "notes", Chain: testutil.NoteChain(t)})
	require.NoError(t, err)
	_, err = r.Add(registry.Definition{Name: "notes", Chain: testutil.NoteChain(t)})
	assert.ErrorIs(t, err, domain.ErrDuplicateCollection)
	assert.Len(t, r.Collections(), 1)
}

func TestStagedModeUsesIdentityStrategies(t *testing.T) {
	r := registry.New()
	coll, err := r.Add(registry.Definition{Name: "notes", Chain: testutil.NoteChain(t), Mode: registry.ModeStaged})
	require.NoError(t, err)
	rec := testutil.Record(testutil.DocID, map[int]map[string]any{0: {"value": "x"}})
	out, err := coll.Strategies[1](rec)
	require.NoError(t, err)
	assert.Equal(t, rec, out)
}

func TestCollectionsSortedByName(t *testing.T) {
	r := registry.New()
	for _, name := range []string{"zeta", "alpha", "mid"} {
		_, err := r.Add(registry.Definition{Name: name, Chain: testutil.NoteChain(t)})
		require.NoError(t, err)
	}
	var names []string
	for _, c := range r.Collections() {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"alpha", "mid", "zeta"}, names)
}

func TestRegisterAllWiresEngine(t *testing.T) {
	r := registry.New()
	_, err := r.Add(registry.Definition{Name: "notes", Chain: testutil.NoteChain(t), Mode: registry.ModeStaged})
	require.NoError(t, err)

	engine := core.NewEngine(memory.NewStore())
	require.NoError(t, r.RegisterAll(context.Background(), engine))
	assert.Equal(t, []string{"notes"}, engine.Collections())

	_, err = engine.Insert(context.Background(), "notes", map[string]any{"value": "lagging"})
	assert.ErrorIs(t, err, domain.ErrLatestSchemaMismatch, "before-insert hook is installed")

	err = r.RegisterAll(context.Background(), engine)
	assert.ErrorIs(t, err, domain.ErrDuplicateCollection)
}

type failingEngine struct{ domain.StorageEngine }

func (failingEngine) RegisterCollection(context.Context, string, domain.CollectionConfig) error {
	return errors.New("engine down")
}

func TestRegisterAllStopsAtFirstFailure(t *testing.T) {
	r := registry.New()
	_, err := r.Add(registry.Definition{Name: "notes", Chain: testutil.NoteChain(t)})
	require.NoError(t, err)
	err = r.RegisterAll(context.Background(), failingEngine{})
	assert.ErrorContains(t, err, "engine down")
}
