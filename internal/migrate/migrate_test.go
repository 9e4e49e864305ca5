package migrate_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docchain/internal/migrate"
	"docchain/pkg/chain"
	"docchain/pkg/domain"
	"docchain/testutil"
)

func listChain(t *testing.T) chain.Chain {
	t.Helper()
	v0 := domain.Object(domain.Req("value", domain.String()))
	v1 := domain.Object(domain.Req("content", domain.String()))
	c := chain.Must(chain.Initial(v0))
	return chain.Must(c.AddStep(v1, chain.MapFunc(v0, v1, func(prev map[string]any) (map[string]any, error) {
		return map[string]any{"content": prev["value"]}, nil
	})))
}

func TestStrategyAddsNextVersion(t *testing.T) {
	strategies, err := migrate.Generate(listChain(t))
	require.NoError(t, err)
	require.Len(t, strategies, 1)

	in := domain.Record{"id": "a", "payload": map[string]any{"v0": map[string]any{"value": "Hello World"}}}
	out, err := strategies[1](in)
	require.NoError(t, err)
	assert.Equal(t, domain.Record{"id": "a", "payload": map[string]any{
		"v0": map[string]any{"value": "Hello World"},
		"v1": map[string]any{"content": "Hello World"},
	}}, out)

	_, mutated := in["payload"].(map[string]any)["v1"]
	assert.False(t, mutated, "input record must not be modified")
}

func TestStrategiesComposeAcrossChain(t *testing.T) {
	strategies, err := migrate.Generate(testutil.NoteChain(t))
	require.NoError(t, err)
	require.Len(t, strategies, 2)

	rec := testutil.Record(testutil.DocID, map[int]map[string]any{0: {"value": "buy milk"}})
	out, err := migrate.Run(strategies, rec, 0, 2)
	require.NoError(t, err)
	payload, _ := domain.Payload(out)
	assert.Equal(t, map[string]any{"value": "buy milk"}, payload["v0"])
	assert.Equal(t, map[string]any{"content": "buy milk", "is_active": true}, payload["v1"])
	assert.Equal(t, map[string]any{"text": "buy milk", "status": "active"}, payload["v2"])
	assert.Equal(t, 2, domain.RecordedVersion(out))
}

func TestStrategyFailures(t *testing.T) {
	strategies, err := migrate.Generate(testutil.NoteChain(t))
	require.NoError(t, err)

	cases := []struct {
		name string
		rec  domain.Record
		want error
	}{
		{"no payload", domain.Record{"id": "a"}, domain.ErrMissingPriorVersion},
		{"prior absent", testutil.Record("a", map[int]map[string]any{1: {"content": "x", "is_active": true}}), domain.ErrMissingPriorVersion},
		{"prior malformed", testutil.Record("a", map[int]map[string]any{0: {"value": 7}}), domain.ErrPriorVersionMalformed},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			out, err := strategies[1](tc.rec)
			assert.Nil(t, out)
			assert.ErrorIs(t, err, tc.want)
			var merr *domain.MigrationError
			require.ErrorAs(t, err, &merr)
			assert.Equal(t, 1, merr.Version)
		})
	}
}

func TestStrategyRejectsInvalidUpgradeOutput(t *testing.T) {
	v0 := domain.Object(domain.Req("value", domain.String()))
	v1 := domain.Object(domain.Req("status", domain.Enum("active", "inactive")))
	c := chain.Must(chain.Initial(v0))
	c = chain.Must(c.AddStep(v1, chain.MapFunc(v0, v1, func(map[string]any) (map[string]any, error) {
		return map[string]any{"status": "unknown"}, nil
	})))
	strategies, err := migrate.Generate(c)
	require.NoError(t, err)
	_, err = strategies[1](testutil.Record("a", map[int]map[string]any{0: {"value": "x"}}))
	assert.ErrorIs(t, err, domain.ErrUpgradeOutputInvalid)
}

func TestStrategyWrapsUpgraderError(t *testing.T) {
	boom := errors.New("boom")
	v0 := domain.Object(domain.Req("value", domain.String()))
	c := chain.Must(chain.Initial(v0))
	c = chain.Must(c.AddStep(v0, chain.MapFunc(v0, v0, func(map[string]any) (map[string]any, error) {
		return nil, boom
	})))
	strategies, err := migrate.Generate(c)
	require.NoError(t, err)
	_, err = strategies[1](testutil.Record("a", map[int]map[string]any{0: {"value": "x"}}))
	assert.ErrorIs(t, err, boom)
}

func TestRunStopsAtFirstFailureAndMissingStrategy(t *testing.T) {
	strategies, err := migrate.Generate(testutil.NoteChain(t))
	require.NoError(t, err)
	bad := testutil.Record("a", map[int]map[string]any{0: {"value": false}})
	out, err := migrate.Run(strategies, bad, 0, 2)
	assert.Nil(t, out)
	var merr *domain.MigrationError
	require.ErrorAs(t, err, &merr)
	assert.Equal(t, 1, merr.Version)

	delete(strategies, 2)
	_, err = migrate.Run(strategies, testutil.Record("a", map[int]map[string]any{0: {"value": "x"}}), 0, 2)
	assert.ErrorIs(t, err, domain.ErrInvalidChain)

	same := testutil.Record("a", nil)
	out, err = migrate.Run(nil, same, 3, 3)
	require.NoError(t, err)
	assert.Equal(t, same, out)
}

func TestIdentityOnlyCopies(t *testing.T) {
	strategies, err := migrate.Identity(testutil.NoteChain(t))
	require.NoError(t, err)
	require.Len(t, strategies, 2)
	rec := testutil.Record("a", map[int]map[string]any{0: {"value": "x"}})
	out, err := migrate.Run(strategies, rec, 0, 2)
	require.NoError(t, err)
	assert.Equal(t, rec, out)
	out["id"] = "changed"
	assert.Equal(t, "a", rec["id"])
}

func TestGenerateRejectsEmptyChain(t *testing.T) {
	_, err := migrate.Generate(chain.Chain{})
	assert.ErrorIs(t, err, domain.ErrInvalidChain)
	_, err = migrate.Identity(chain.Chain{})
	assert.ErrorIs(t, err, domain.ErrInvalidChain)
}

func TestGenerateIsRepeatable(t *testing.T) {
	c := testutil.NoteChain(t)
	first, err := migrate.Generate(c)
	require.NoError(t, err)
	second, err := migrate.Generate(c)
	require.NoError(t, err)
	require.Len(t, second, len(first))

	inputs := []domain.Record{
		testutil.Record(testutil.DocID, map[int]map[string]any{0: {"value": "a"}}),
		testutil.Record(testutil.OtherID, map[int]map[string]any{0: {"value": ""}}),
	}
	for _, rec := range inputs {
		a, errA := migrate.Run(first, rec, 0, 2)
		b, errB := migrate.Run(second, rec, 0, 2)
		require.NoError(t, errA)
		require.NoError(t, errB)
		assert.Equal(t, a, b)
	}
	for v := 1; v <= 2; v++ {
		_, errA := first[v](domain.Record{})
		_, errB := second[v](domain.Record{})
		assert.Equal(t, errA.Error(), errB.Error())
	}
}
