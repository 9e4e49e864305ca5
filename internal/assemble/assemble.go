// Package assemble derives the structural schemas a storage engine validates
// against from a schema version chain.
package assemble

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"

	"docchain/pkg/chain"
	"docchain/pkg/domain"
)

// PrimaryKey is the envelope field storage engines key documents by.
const PrimaryKey = domain.FieldID

// FieldSets lists payload sub-fields by requiredness, in ascending version order.
type FieldSets struct {
	Required []string
	Optional []string
}

// Envelope wraps a payload schema with the fixed document fields.
func Envelope(payload *domain.Schema) *domain.Schema {
	return domain.Object(
		domain.Req(domain.FieldID, domain.Formatted(domain.FormatUUID)),
		domain.Req(domain.FieldCreatedAt, domain.Formatted(domain.FormatDateTime)),
		domain.Req(domain.FieldModifiedAt, domain.Formatted(domain.FormatDateTime)),
		domain.Req(domain.FieldPayload, payload),
	)
}

// Full builds the schema covering every historical payload version: one
// optional sub-field per version except the latest, which is required.
func Full(c chain.Chain) (*domain.Schema, error) {
	if err := requireVersions(c); err != nil {
		return nil, err
	}
	latest := c.Latest()
	payload := &domain.Schema{Type: domain.TypeObject}
	for i := 0; i <= latest; i++ {
		shape, _ := c.Shape(i)
		key := domain.VersionKey(i)
		payload.Properties = append(payload.Properties, domain.Property{Name: key, Schema: shape})
		if i == latest {
			payload.Required = []string{key}
		}
	}
	return collection(payload, latest), nil
}

// Latest builds the schema application code is written against: the envelope
// plus only the latest payload version, required.
func Latest(c chain.Chain) (*domain.Schema, error) {
	if err := requireVersions(c); err != nil {
		return nil, err
	}
	latest := c.Latest()
	shape, _ := c.Shape(latest)
	payload := domain.Object(domain.Req(domain.VersionKey(latest), shape))
	return collection(payload, latest), nil
}

// Fields reports which payload sub-fields the full schema requires.
func Fields(c chain.Chain) (FieldSets, error) {
	full, err := Full(c)
	if err != nil {
		return FieldSets{}, err
	}
	payload, _ := full.Properties.Get(domain.FieldPayload)
	var sets FieldSets
	for _, name := range payload.Properties.Names() {
		if payload.IsRequired(name) {
			sets.Required = append(sets.Required, name)
			continue
		}
		sets.Optional = append(sets.Optional, name)
	}
	return sets, nil
}

// Fingerprint returns a stable hex sha256 digest of the schema's encoding.
func Fingerprint(s *domain.Schema) (string, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return "", fmt.Errorf("encode schema: %w", err)
	}
	sum := sha256.Sum256(raw)
	return hex.EncodeToString(sum[:]), nil
}

func collection(payload *domain.Schema, latest int) *domain.Schema {
	s := Envelope(payload)
	v := latest
	s.Version = &v
	s.PrimaryKey = PrimaryKey
	return s
}

func requireVersions(c chain.Chain) error {
	if c.Len() == 0 {
		return fmt.Errorf("%w: chain has no versions", domain.ErrInvalidChain)
	}
	return nil
}
