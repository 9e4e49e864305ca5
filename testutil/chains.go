package testutil

import (
	"testing"

	"docchain/pkg/chain"
	"docchain/pkg/domain"
)

// Fixed envelope values for hand-built records.
const (
	DocID     = "0f8fad5b-d9cb-469f-a165-70867728950e"
	OtherID   = "7c9e6679-7425-40de-944b-e07fc1f90ae7"
	Timestamp = "2024-05-01T12:00:00Z"
)

// NoteV0 is the first note payload.
type NoteV0 struct {
	Value string `json:"value"`
}

// NoteV1 renames value and adds an activity flag.
type NoteV1 struct {
	Content  string `json:"content"`
	IsActive bool   `json:"is_active"`
}

// NoteV2 replaces the flag with a status enum.
type NoteV2 struct {
	Text   string `json:"text"`
	Status string `json:"status" enum:"active,inactive,unknown"`
}

// NoteChain returns the three-version note chain:
// value -> content,is_active -> text,status.
func NoteChain(tb testing.TB) chain.Chain {
	tb.Helper()
	c, err := chain.Initial(chain.MustShapeOf[NoteV0]())
	if err != nil {
		tb.Fatalf("initial: %v", err)
	}
	c, err = c.AddStep(chain.MustShapeOf[NoteV1](), chain.Func(func(prev NoteV0) (NoteV1, error) {
		return NoteV1{Content: prev.Value, IsActive: true}, nil
	}))
	if err != nil {
		tb.Fatalf("add v1: %v", err)
	}
	c, err = c.AddStep(chain.MustShapeOf[NoteV2](), chain.Func(func(prev NoteV1) (NoteV2, error) {
		status := "inactive"
		if prev.IsActive {
			status = "active"
		}
		return NoteV2{Text: prev.Content, Status: status}, nil
	}))
	if err != nil {
		tb.Fatalf("add v2: %v", err)
	}
	return c
}

// Record builds an envelope around payloads keyed by version.
func Record(id string, payloads map[int]map[string]any) domain.Record {
	payload := make(map[string]any, len(payloads))
	for v, p := range payloads {
		payload[domain.VersionKey(v)] = p
	}
	return domain.Record{
		domain.FieldID:         id,
		domain.FieldCreatedAt:  Timestamp,
		domain.FieldModifiedAt: Timestamp,
		domain.FieldPayload:    payload,
	}
}
