// Package migrate turns a schema version chain into the per-version upgrade
// strategies a storage engine runs while lazily upgrading documents.
package migrate

import (
	"fmt"

	"docchain/pkg/chain"
	"docchain/pkg/domain"
)

// Strategies maps a target version to the strategy producing it.
type Strategies map[int]domain.MigrationStrategy

// Generate builds one strategy per version gap of c, keyed 1..Latest.
//
// Each strategy reads payload v{n-1}, validates it against S{n-1}, applies
// f_n, validates the result against S{n} and writes it to payload v{n}.
// Earlier payload keys are left in place. The input record is never mutated;
// the strategy works on a deep copy and returns it.
func Generate(c chain.Chain) (Strategies, error) {
	if c.Len() == 0 {
		return nil, fmt.Errorf("%w: chain has no versions", domain.ErrInvalidChain)
	}
	out := make(Strategies, c.Latest())
	for v := 1; v <= c.Latest(); v++ {
		prev, _ := c.Shape(v - 1)
		next, _ := c.Shape(v)
		up, _ := c.Upgrader(v)
		out[v] = step(v, prev, next, up)
	}
	return out, nil
}

// Identity builds strategies that only advance the recorded version, leaving
// the payload for the staged-migration hook and an explicit caller action.
func Identity(c chain.Chain) (Strategies, error) {
	if c.Len() == 0 {
		return nil, fmt.Errorf("%w: chain has no versions", domain.ErrInvalidChain)
	}
	out := make(Strategies, c.Latest())
	for v := 1; v <= c.Latest(); v++ {
		out[v] = func(rec domain.Record) (domain.Record, error) {
			return domain.CloneRecord(rec), nil
		}
	}
	return out, nil
}

func step(version int, prev, next *domain.Schema, up chain.Upgrader) domain.MigrationStrategy {
	prevKey := domain.VersionKey(version - 1)
	nextKey := domain.VersionKey(version)
	return func(rec domain.Record) (domain.Record, error) {
		payload, ok := domain.Payload(rec)
		if !ok {
			return nil, &domain.MigrationError{Version: version, Err: fmt.Errorf("%w: record has no payload", domain.ErrMissingPriorVersion)}
		}
		raw, ok := payload[prevKey]
		if !ok {
			return nil, &domain.MigrationError{Version: version, Err: fmt.Errorf("%w: payload.%s absent", domain.ErrMissingPriorVersion, prevKey)}
		}
		if err := domain.Validate(raw, prev); err != nil {
			return nil, &domain.MigrationError{Version: version, Err: fmt.Errorf("%w: payload.%s: %w", domain.ErrPriorVersionMalformed, prevKey, err)}
		}
		upgraded, err := up.Upgrade(domain.CloneValue(raw).(map[string]any))
		if err != nil {
			return nil, &domain.MigrationError{Version: version, Err: fmt.Errorf("upgrade %s: %w", prevKey, err)}
		}
		if err := domain.Validate(upgraded, next); err != nil {
			return nil, &domain.MigrationError{Version: version, Err: fmt.Errorf("%w: payload.%s: %w", domain.ErrUpgradeOutputInvalid, nextKey, err)}
		}
		out := domain.CloneRecord(rec)
		outPayload, _ := domain.Payload(out)
		outPayload[nextKey] = upgraded
		return out, nil
	}
}

// Run applies strategies in ascending order to carry rec from version from to
// version to. It stops at the first failure and returns no record.
func Run(strategies Strategies, rec domain.Record, from, to int) (domain.Record, error) {
	cur := rec
	for v := from + 1; v <= to; v++ {
		strategy, ok := strategies[v]
		if !ok {
			return nil, &domain.MigrationError{Version: v, Err: fmt.Errorf("%w: no strategy for v%d", domain.ErrInvalidChain, v)}
		}
		next, err := strategy(cur)
		if err != nil {
			return nil, err
		}
		cur = next
	}
	return cur, nil
}
