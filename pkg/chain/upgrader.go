package chain

import (
	"encoding/json"
	"fmt"

	"docchain/pkg/domain"
)

// Upgrader carries a payload from one shape to the next. From and To declare
// the shapes it was written against so chains can be checked when built.
type Upgrader interface {
	From() *domain.Schema
	To() *domain.Schema
	Upgrade(prev map[string]any) (map[string]any, error)
}

// MapFunc wraps an untyped upgrade function with its declared shapes.
func MapFunc(from, to *domain.Schema, fn func(map[string]any) (map[string]any, error)) Upgrader {
	return mapUpgrader{from: from.Clone(), to: to.Clone(), fn: fn}
}

type mapUpgrader struct {
	from, to *domain.Schema
	fn       func(map[string]any) (map[string]any, error)
}

func (u mapUpgrader) From() *domain.Schema { return u.from.Clone() }
func (u mapUpgrader) To() *domain.Schema   { return u.to.Clone() }

func (u mapUpgrader) Upgrade(prev map[string]any) (map[string]any, error) {
	if u.fn == nil {
		return nil, fmt.Errorf("upgrade function is nil")
	}
	return u.fn(prev)
}

// Func wraps a typed upgrade function. Both shapes are derived from the Go
// types with ShapeOf, and payloads are converted through their JSON encoding.
func Func[From, To any](fn func(From) (To, error)) Upgrader {
	u := typedUpgrader[From, To]{fn: fn}
	u.from, u.err = ShapeOf[From]()
	if u.err == nil {
		u.to, u.err = ShapeOf[To]()
	}
	if u.err == nil && fn == nil {
		u.err = fmt.Errorf("upgrade function is nil")
	}
	return u
}

type typedUpgrader[From, To any] struct {
	from, to *domain.Schema
	fn       func(From) (To, error)
	err      error
}

func (u typedUpgrader[From, To]) From() *domain.Schema { return u.from.Clone() }
func (u typedUpgrader[From, To]) To() *domain.Schema   { return u.to.Clone() }
func (u typedUpgrader[From, To]) buildErr() error      { return u.err }

func (u typedUpgrader[From, To]) Upgrade(prev map[string]any) (map[string]any, error) {
	if u.err != nil {
		return nil, u.err
	}
	var in From
	if err := convert(prev, &in); err != nil {
		return nil, fmt.Errorf("%w: decode %T: %w", domain.ErrPriorVersionMalformed, in, err)
	}
	out, err := u.fn(in)
	if err != nil {
		return nil, err
	}
	var next map[string]any
	if err := convert(out, &next); err != nil {
		return nil, fmt.Errorf("encode %T: %w", out, err)
	}
	dropNullOptionals(next, u.to)
	return next, nil
}

// dropNullOptionals removes the nulls encoding/json writes for nil pointer
// fields, so an unset optional property is absent rather than null.
func dropNullOptionals(obj map[string]any, s *domain.Schema) {
	if s == nil {
		return
	}
	for _, p := range s.Properties {
		v, ok := obj[p.Name]
		if !ok {
			continue
		}
		if v == nil {
			if !s.IsRequired(p.Name) {
				delete(obj, p.Name)
			}
			continue
		}
		if child, ok := v.(map[string]any); ok {
			dropNullOptionals(child, p.Schema)
		}
	}
}

func convert(src, dst any) error {
	raw, err := json.Marshal(src)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, dst)
}
