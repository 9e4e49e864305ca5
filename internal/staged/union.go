// Package staged classifies loaded documents against the latest schema and
// computes, without persisting anything, the latest-shape payload a lagging
// document would migrate to.
package staged

import (
	"fmt"
	"sort"

	"docchain/internal/assemble"
	"docchain/pkg/chain"
	"docchain/pkg/domain"
)

// Variant recognises documents recorded at one historical version and
// transforms their payload directly to the latest shape.
type Variant struct {
	Version   int
	Match     *domain.Schema
	Transform func(map[string]any) (map[string]any, error)
}

// Union is the set of variants for every version older than the latest.
type Union struct {
	latest   int
	target   *domain.Schema
	variants []Variant
}

// NewUnion builds a union targeting the payload shape of version latest.
// Variants must be older than latest and unique per version.
func NewUnion(latest int, target *domain.Schema, variants ...Variant) (*Union, error) {
	if target == nil {
		return nil, fmt.Errorf("%w: union target shape is nil", domain.ErrInvalidChain)
	}
	seen := make(map[int]bool, len(variants))
	out := make([]Variant, 0, len(variants))
	for _, v := range variants {
		if v.Version < 0 || v.Version >= latest {
			return nil, fmt.Errorf("%w: variant v%d is not older than v%d", domain.ErrInvalidChain, v.Version, latest)
		}
		if seen[v.Version] {
			return nil, fmt.Errorf("%w: duplicate variant v%d", domain.ErrInvalidChain, v.Version)
		}
		if v.Match == nil || v.Transform == nil {
			return nil, fmt.Errorf("%w: variant v%d is incomplete", domain.ErrInvalidChain, v.Version)
		}
		seen[v.Version] = true
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Version < out[j].Version })
	return &Union{latest: latest, target: target.Clone(), variants: out}, nil
}

// UnionFromChain derives one variant per historical version of c. Each
// variant's transform is the composition of the chain's upgraders from that
// version to the latest.
func UnionFromChain(c chain.Chain) (*Union, error) {
	if c.Len() == 0 {
		return nil, fmt.Errorf("%w: chain has no versions", domain.ErrInvalidChain)
	}
	latest := c.Latest()
	target, _ := c.Shape(latest)
	variants := make([]Variant, 0, latest)
	for k := 0; k < latest; k++ {
		shape, _ := c.Shape(k)
		variants = append(variants, Variant{
			Version:   k,
			Match:     assemble.Envelope(domain.Object(domain.Req(domain.VersionKey(k), shape))),
			Transform: compose(c, k),
		})
	}
	return NewUnion(latest, target, variants...)
}

func compose(c chain.Chain, from int) func(map[string]any) (map[string]any, error) {
	return func(payload map[string]any) (map[string]any, error) {
		cur := domain.CloneValue(payload).(map[string]any)
		for v := from + 1; v <= c.Latest(); v++ {
			up, _ := c.Upgrader(v)
			next, err := up.Upgrade(cur)
			if err != nil {
				return nil, fmt.Errorf("upgrade to %s: %w", domain.VersionKey(v), err)
			}
			cur = next
		}
		return cur, nil
	}
}

// Latest returns the version the union migrates to.
func (u *Union) Latest() int { return u.latest }

// Variants returns the variants in ascending version order.
func (u *Union) Variants() []Variant {
	return append([]Variant(nil), u.variants...)
}

// find returns the variant rec satisfies. A variant matches when its version
// is the record's recorded version and the record validates against it; since
// variants are unique per version at most one can match.
func (u *Union) find(rec domain.Record) (Variant, bool) {
	recorded := domain.RecordedVersion(rec)
	for _, v := range u.variants {
		if v.Version == recorded && domain.Validate(rec, v.Match) == nil {
			return v, true
		}
	}
	return Variant{}, false
}
