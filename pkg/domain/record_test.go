package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestVersionKeys(t *testing.T) {
	assert.Equal(t, "v0", VersionKey(0))
	assert.Equal(t, "v12", VersionKey(12))

	for key, want := range map[string]int{"v0": 0, "v7": 7, "v10": 10} {
		got, ok := ParseVersionKey(key)
		assert.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}
	for _, key := range []string{"", "v", "x1", "v01", "v-1", "v1a"} {
		_, ok := ParseVersionKey(key)
		assert.False(t, ok, key)
	}
}

func TestRecordedVersion(t *testing.T) {
	assert.Equal(t, -1, RecordedVersion(Record{}))
	assert.Equal(t, -1, RecordedVersion(Record{FieldPayload: map[string]any{"other": 1}}))
	assert.Equal(t, 2, RecordedVersion(Record{FieldPayload: map[string]any{
		"v0": map[string]any{}, "v2": map[string]any{}, "note": "x",
	}}))
}

func TestStagedMigrationApplyKeepsHistory(t *testing.T) {
	rec := Record{FieldID: "a", FieldPayload: map[string]any{"v0": map[string]any{"value": "x"}}}
	staged := &StagedMigration{FromVersion: 0, ToVersion: 1, Payload: map[string]any{"content": "x"}}
	out := staged.Apply(rec)

	payload, _ := Payload(out)
	assert.Equal(t, map[string]any{"value": "x"}, payload["v0"])
	assert.Equal(t, map[string]any{"content": "x"}, payload["v1"])
	_, touched := rec[FieldPayload].(map[string]any)["v1"]
	assert.False(t, touched)

	staged.Payload["content"] = "mutated"
	assert.Equal(t, "x", payload["v1"].(map[string]any)["content"])

	bare := staged.Apply(Record{FieldID: "b"})
	assert.Equal(t, 1, RecordedVersion(bare))
}

func TestCloneRecordIsDeep(t *testing.T) {
	rec := Record{"list": []any{map[string]any{"k": "v"}}, "n": 1.0}
	cp := CloneRecord(rec)
	cp["list"].([]any)[0].(map[string]any)["k"] = "changed"
	assert.Equal(t, "v", rec["list"].([]any)[0].(map[string]any)["k"])
	assert.Nil(t, CloneRecord(nil))
}

func TestDocumentID(t *testing.T) {
	assert.Equal(t, "abc", (&Document{Record: Record{FieldID: "abc"}}).ID())
	assert.Equal(t, "", (&Document{Record: Record{}}).ID())
}
