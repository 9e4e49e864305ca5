package domain

import (
	"strconv"
	"strings"
)

// Envelope field names present on every document regardless of payload version.
const (
	FieldID         = "id"
	FieldCreatedAt  = "created_at"
	FieldModifiedAt = "modified_at"
	FieldPayload    = "payload"
)

// Record is a decoded JSON document as handed across the engine boundary.
type Record = map[string]any

// MigrationState classifies a loaded document against the latest schema.
type MigrationState string

// Classification outcomes produced by the after-load hook.
const (
	StateCurrent      MigrationState = "current"
	StatePending      MigrationState = "pending"
	StateUnrecognized MigrationState = "unrecognized"
)

// Document is a loaded record plus engine bookkeeping. State and Staged are
// derived on every load and never persisted.
type Document struct {
	Record        Record
	SchemaVersion int
	State         MigrationState
	Staged        *StagedMigration
	Reason        string
}

// ID returns the document identifier, if any.
func (d *Document) ID() string {
	id, _ := d.Record[FieldID].(string)
	return id
}

// StagedMigration is a candidate latest-shape payload computed for a lagging
// document. It is only written back by an explicit caller action.
type StagedMigration struct {
	FromVersion int
	ToVersion   int
	Payload     map[string]any
}

// Apply returns a copy of rec with the staged payload written under the
// target version key. Historical payload keys are kept.
func (m *StagedMigration) Apply(rec Record) Record {
	out := CloneRecord(rec)
	payload, ok := out[FieldPayload].(map[string]any)
	if !ok {
		payload = map[string]any{}
		out[FieldPayload] = payload
	}
	payload[VersionKey(m.ToVersion)] = CloneValue(m.Payload)
	return out
}

// VersionKey renders the payload sub-field name for a version index.
func VersionKey(version int) string {
	return "v" + strconv.Itoa(version)
}

// ParseVersionKey parses a payload sub-field name such as "v3".
func ParseVersionKey(key string) (int, bool) {
	if !strings.HasPrefix(key, "v") || len(key) < 2 {
		return 0, false
	}
	digits := key[1:]
	if len(digits) > 1 && digits[0] == '0' {
		return 0, false
	}
	n, err := strconv.Atoi(digits)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// Payload returns the payload container of rec.
func Payload(rec Record) (map[string]any, bool) {
	p, ok := rec[FieldPayload].(map[string]any)
	return p, ok
}

// RecordedVersion returns the highest payload version present in rec, or -1
// when the payload is missing or holds no version keys.
func RecordedVersion(rec Record) int {
	payload, ok := Payload(rec)
	if !ok {
		return -1
	}
	highest := -1
	for key := range payload {
		if v, ok := ParseVersionKey(key); ok && v > highest {
			highest = v
		}
	}
	return highest
}

// CloneRecord deep-copies a record.
func CloneRecord(rec Record) Record {
	if rec == nil {
		return nil
	}
	return CloneValue(rec).(map[string]any)
}

// CloneValue deep-copies decoded JSON values. Scalars are returned as is.
func CloneValue(v any) any {
	switch typed := v.(type) {
	case map[string]any:
		out := make(map[string]any, len(typed))
		for k, val := range typed {
			out[k] = CloneValue(val)
		}
		return out
	case []any:
		out := make([]any, len(typed))
		for i, val := range typed {
			out[i] = CloneValue(val)
		}
		return out
	default:
		return v
	}
}
