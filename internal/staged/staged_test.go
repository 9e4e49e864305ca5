package staged_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchain/internal/assemble"
	"docchain/internal/staged"
	"docchain/pkg/domain"
	"docchain/testutil"
)

type recordingObserver struct {
	mu         sync.Mutex
	classified []staged.Classification
	rejected   []string
}

func (o *recordingObserver) Classified(_ string, c staged.Classification) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.classified = append(o.classified, c)
}

func (o *recordingObserver) Rejected(_ string, op string, _ error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.rejected = append(o.rejected, op)
}

func newHook(t *testing.T, obs staged.Observer) *staged.Hook {
	t.Helper()
	c := testutil.NoteChain(t)
	latest, err := assemble.Latest(c)
	require.NoError(t, err)
	union, err := staged.UnionFromChain(c)
	require.NoError(t, err)
	hook, err := staged.NewHook("notes", latest, union, staged.WithObserver(obs))
	require.NoError(t, err)
	return hook
}

func TestCurrentDocumentHasNoStagedMigration(t *testing.T) {
	obs := &recordingObserver{}
	hook := newHook(t, obs)
	doc := &domain.Document{Record: testutil.Record(testutil.DocID, map[int]map[string]any{
		2: {"text": "x", "status": "unknown"},
	})}
	require.NoError(t, hook.AfterLoad(context.Background(), doc))
	assert.Equal(t, domain.StateCurrent, doc.State)
	assert.Nil(t, doc.Staged)
	assert.Empty(t, doc.Reason)
	require.Len(t, obs.classified, 1)
}

func TestOldestVariantIsStagedDeterministically(t *testing.T) {
	hook := newHook(t, nil)
	rec := testutil.Record(testutil.DocID, map[int]map[string]any{0: {"value": "buy milk"}})
	before := domain.CloneRecord(rec)

	first := &domain.Document{Record: rec}
	require.NoError(t, hook.AfterLoad(context.Background(), first))
	assert.Equal(t, domain.StatePending, first.State)
	require.NotNil(t, first.Staged)
	assert.Equal(t, 0, first.Staged.FromVersion)
	assert.Equal(t, 2, first.Staged.ToVersion)
	assert.Equal(t, map[string]any{"text": "buy milk", "status": "active"}, first.Staged.Payload)
	assert.Equal(t, before, rec, "classification must not modify the record")

	second := &domain.Document{Record: rec}
	require.NoError(t, hook.AfterLoad(context.Background(), second))
	assert.Equal(t, first.State, second.State)
	assert.Equal(t, first.Staged, second.Staged)
}

func TestMiddleVariantIsStaged(t *testing.T) {
	hook := newHook(t, nil)
	c := hook.Classify(testutil.Record(testutil.DocID, map[int]map[string]any{
		0: {"value": "old"},
		1: {"content": "newer", "is_active": false},
	}))
	assert.Equal(t, domain.StatePending, c.State)
	require.NotNil(t, c.Staged)
	assert.Equal(t, 1, c.Staged.FromVersion)
	assert.Equal(t, map[string]any{"text": "newer", "status": "inactive"}, c.Staged.Payload)
}

func TestUnrecognizedDocuments(t *testing.T) {
	hook := newHook(t, nil)
	cases := map[string]domain.Record{
		"no payload":        {domain.FieldID: testutil.DocID},
		"malformed v0":      testutil.Record(testutil.DocID, map[int]map[string]any{0: {"value": 1}}),
		"bad envelope id":   testutil.Record("not-a-uuid", map[int]map[string]any{0: {"value": "x"}}),
		"future version":    testutil.Record(testutil.DocID, map[int]map[string]any{5: {"x": 1}}),
		"malformed latest":  testutil.Record(testutil.DocID, map[int]map[string]any{2: {"text": "x", "status": "gone"}}),
		"v1 missing fields": testutil.Record(testutil.DocID, map[int]map[string]any{1: {"content": "x"}}),
	}
	for name, rec := range cases {
		t.Run(name, func(t *testing.T) {
			c := hook.Classify(rec)
			assert.Equal(t, domain.StateUnrecognized, c.State)
			assert.Nil(t, c.Staged)
			assert.NotEmpty(t, c.Reason)
		})
	}
}

func TestBeforeWriteRejectsLaggingRecords(t *testing.T) {
	obs := &recordingObserver{}
	hook := newHook(t, obs)
	lagging := testutil.Record(testutil.DocID, map[int]map[string]any{0: {"value": "x"}})

	err := hook.BeforeInsert(context.Background(), lagging)
	assert.ErrorIs(t, err, domain.ErrLatestSchemaMismatch)
	var verr *domain.ValidationError
	assert.True(t, errors.As(err, &verr))

	err = hook.BeforeUpdate(context.Background(), lagging)
	assert.ErrorIs(t, err, domain.ErrLatestSchemaMismatch)
	assert.Equal(t, []string{"insert", "update"}, obs.rejected)

	current := testutil.Record(testutil.DocID, map[int]map[string]any{2: {"text": "x", "status": "active"}})
	assert.NoError(t, hook.BeforeInsert(context.Background(), current))
	assert.NoError(t, hook.BeforeUpdate(context.Background(), current))
}

func TestUnionTransformFailureIsUnrecognized(t *testing.T) {
	target := domain.Object(domain.Req("content", domain.String()))
	v0 := domain.Object(domain.Req("value", domain.String()))
	union, err := staged.NewUnion(1, target, staged.Variant{
		Version: 0,
		Match:   assemble.Envelope(domain.Object(domain.Req("v0", v0))),
		Transform: func(map[string]any) (map[string]any, error) {
			return nil, errors.New("boom")
		},
	})
	require.NoError(t, err)
	latest := assemble.Envelope(domain.Object(domain.Req("v1", target)))
	hook, err := staged.NewHook("list", latest, union)
	require.NoError(t, err)

	c := hook.Classify(testutil.Record(testutil.DocID, map[int]map[string]any{0: {"value": "x"}}))
	assert.Equal(t, domain.StateUnrecognized, c.State)
	assert.Contains(t, c.Reason, "boom")
}

func TestNewUnionValidation(t *testing.T) {
	target := domain.Object(domain.Req("content", domain.String()))
	ok := staged.Variant{Version: 0, Match: target, Transform: func(m map[string]any) (map[string]any, error) { return m, nil }}

	_, err := staged.NewUnion(1, nil, ok)
	assert.ErrorIs(t, err, domain.ErrInvalidChain)
	_, err = staged.NewUnion(1, target, ok, ok)
	assert.ErrorIs(t, err, domain.ErrInvalidChain)
	_, err = staged.NewUnion(0, target, ok)
	assert.ErrorIs(t, err, domain.ErrInvalidChain)
	_, err = staged.NewUnion(1, target, staged.Variant{Version: 0, Match: target})
	assert.ErrorIs(t, err, domain.ErrInvalidChain)

	second := ok
	second.Version = 1
	union, err := staged.NewUnion(2, target, second, ok)
	require.NoError(t, err)
	assert.Equal(t, 2, union.Latest())
	vs := union.Variants()
	require.Len(t, vs, 2)
	assert.Equal(t, 0, vs[0].Version)
	assert.Equal(t, 1, vs[1].Version)
}

func TestNewHookRequiresSchemaAndUnion(t *testing.T) {
	_, err := staged.NewHook("x", nil, &staged.Union{})
	assert.ErrorIs(t, err, domain.ErrInvalidChain)
	_, err = staged.NewHook("x", domain.Object(), nil)
	assert.ErrorIs(t, err, domain.ErrInvalidChain)
}

type fakeHooks struct {
	afterLoad    []domain.AfterLoadFunc
	beforeInsert []domain.BeforeWriteFunc
	beforeUpdate []domain.BeforeWriteFunc
	failOn       string
}

func (f *fakeHooks) OnAfterLoad(_ string, fn domain.AfterLoadFunc) error {
	if f.failOn == "after" {
		return errors.New("nope")
	}
	f.afterLoad = append(f.afterLoad, fn)
	return nil
}

func (f *fakeHooks) OnBeforeInsert(_ string, fn domain.BeforeWriteFunc) error {
	if f.failOn == "insert" {
		return errors.New("nope")
	}
	f.beforeInsert = append(f.beforeInsert, fn)
	return nil
}

func (f *fakeHooks) OnBeforeUpdate(_ string, fn domain.BeforeWriteFunc) error {
	if f.failOn == "update" {
		return errors.New("nope")
	}
	f.beforeUpdate = append(f.beforeUpdate, fn)
	return nil
}

func TestInstallRegistersEachCallbackOnce(t *testing.T) {
	hook := newHook(t, nil)
	hooks := &fakeHooks{}
	require.NoError(t, staged.Install(hooks, hook))
	assert.Len(t, hooks.afterLoad, 1)
	assert.Len(t, hooks.beforeInsert, 1)
	assert.Len(t, hooks.beforeUpdate, 1)

	for _, stage := range []string{"after", "insert", "update"} {
		assert.Error(t, staged.Install(&fakeHooks{failOn: stage}, hook), stage)
	}
}

func TestAfterLoadIgnoresNilDocument(t *testing.T) {
	assert.NoError(t, newHook(t, nil).AfterLoad(context.Background(), nil))
}
