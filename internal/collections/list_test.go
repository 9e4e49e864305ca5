package collections_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchain/internal/collections"
	"docchain/internal/registry"
	"docchain/internal/staged"
	"docchain/pkg/domain"
	"docchain/testutil"
)

func TestListIsRegisteredStaged(t *testing.T) {
	c, err := collections.ListChain()
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	r := registry.New()
	require.NoError(t, collections.Register(r))
	list, ok := r.Lookup(collections.ListName)
	require.True(t, ok)
	assert.Equal(t, registry.ModeStaged, list.Mode)
	assert.Equal(t, 1, list.LatestVersion())
	assert.Equal(t, []string{"v1"}, list.Fields.Required)
	assert.Equal(t, []string{"v0"}, list.Fields.Optional)
}

func TestListStagesValueAsContent(t *testing.T) {
	r := registry.New()
	require.NoError(t, collections.Register(r))
	list, _ := r.Lookup(collections.ListName)
	hook, err := staged.NewHook(list.Name, list.Latest, list.Union)
	require.NoError(t, err)

	rec := testutil.Record(testutil.DocID, map[int]map[string]any{0: {"value": "eggs"}})
	got := hook.Classify(rec)
	assert.Equal(t, domain.StatePending, got.State)
	require.NotNil(t, got.Staged)
	assert.Equal(t, 0, got.Staged.FromVersion)
	assert.Equal(t, 1, got.Staged.ToVersion)
	assert.Equal(t, map[string]any{"content": "eggs"}, got.Staged.Payload)
}

func TestRegisterTwiceFails(t *testing.T) {
	r := registry.New()
	require.NoError(t, collections.Register(r))
	assert.ErrorIs(t, collections.Register(r), domain.ErrDuplicateCollection)
}
