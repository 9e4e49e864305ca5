// Package chain describes how a document type's payload evolves across
// releases: an ordered, append-only list of payload shapes and the upgrade
// function carrying data from each shape to the next.
//
// Chains are values. Every builder call returns a new chain and leaves the
// receiver untouched, so a chain can be shared freely once constructed.
// Shipped versions are permanent: there is no way to remove or reorder one.
package chain

import (
	"fmt"

	"docchain/pkg/domain"
)

// Chain is an immutable sequence of payload shapes [S0..SN] and upgrade
// functions [f1..fN] where f_i maps S_{i-1} to S_i.
type Chain struct {
	shapes    []*domain.Schema
	upgraders []Upgrader
}

// Initial starts a chain whose only version is shape.
func Initial(shape *domain.Schema) (Chain, error) {
	if err := checkShape(shape); err != nil {
		return Chain{}, &domain.ChainError{Version: 0, Err: err}
	}
	return Chain{shapes: []*domain.Schema{shape.Clone()}}, nil
}

// AddStep appends a version with the given shape, reached from the current
// last version through up. The upgrader's declared input and output shapes
// must equal the current last shape and the new shape respectively.
func (c Chain) AddStep(shape *domain.Schema, up Upgrader) (Chain, error) {
	next := len(c.shapes)
	if next == 0 {
		return Chain{}, &domain.ChainError{Version: 0, Err: fmt.Errorf("%w: add step to empty chain", domain.ErrInvalidChain)}
	}
	if err := checkShape(shape); err != nil {
		return Chain{}, &domain.ChainError{Version: next, Err: err}
	}
	if up == nil {
		return Chain{}, &domain.ChainError{Version: next, Err: fmt.Errorf("%w: upgrader is nil", domain.ErrInvalidChain)}
	}
	if f, ok := up.(interface{ buildErr() error }); ok {
		if err := f.buildErr(); err != nil {
			return Chain{}, &domain.ChainError{Version: next, Err: fmt.Errorf("%w: %v", domain.ErrShapeMismatch, err)}
		}
	}
	if !up.From().Equal(c.shapes[next-1]) {
		return Chain{}, &domain.ChainError{Version: next, Err: fmt.Errorf("%w: upgrader input does not match %s", domain.ErrShapeMismatch, domain.VersionKey(next-1))}
	}
	if !up.To().Equal(shape) {
		return Chain{}, &domain.ChainError{Version: next, Err: fmt.Errorf("%w: upgrader output does not match %s", domain.ErrShapeMismatch, domain.VersionKey(next))}
	}
	shapes := make([]*domain.Schema, 0, next+1)
	shapes = append(shapes, c.shapes...)
	shapes = append(shapes, shape.Clone())
	upgraders := make([]Upgrader, 0, next)
	upgraders = append(upgraders, c.upgraders...)
	upgraders = append(upgraders, up)
	return Chain{shapes: shapes, upgraders: upgraders}, nil
}

// Must panics when err is non-nil. It is intended for package-level chain
// definitions that are fixed at compile time.
func Must(c Chain, err error) Chain {
	if err != nil {
		panic(err)
	}
	return c
}

// Len returns the number of versions in the chain.
func (c Chain) Len() int { return len(c.shapes) }

// Latest returns the latest version index, or -1 for an empty chain.
func (c Chain) Latest() int { return len(c.shapes) - 1 }

// Shape returns a copy of the shape of version i.
func (c Chain) Shape(i int) (*domain.Schema, bool) {
	if i < 0 || i >= len(c.shapes) {
		return nil, false
	}
	return c.shapes[i].Clone(), true
}

// Upgrader returns the upgrader producing version i, for i in 1..Latest.
func (c Chain) Upgrader(i int) (Upgrader, bool) {
	if i < 1 || i >= len(c.shapes) {
		return nil, false
	}
	return c.upgraders[i-1], true
}

func checkShape(shape *domain.Schema) error {
	if shape == nil {
		return fmt.Errorf("%w: shape is nil", domain.ErrInvalidChain)
	}
	if shape.Type != domain.TypeObject {
		return fmt.Errorf("%w: payload shape must be an object, got %q", domain.ErrInvalidChain, shape.Type)
	}
	return checkNode(shape, "$")
}

func checkNode(s *domain.Schema, path string) error {
	if s == nil {
		return fmt.Errorf("%w: %s: nil schema", domain.ErrInvalidChain, path)
	}
	switch s.Type {
	case domain.TypeObject:
		seen := make(map[string]bool, len(s.Properties))
		for _, prop := range s.Properties {
			if seen[prop.Name] {
				return fmt.Errorf("%w: %s: duplicate property %q", domain.ErrInvalidChain, path, prop.Name)
			}
			seen[prop.Name] = true
			if err := checkNode(prop.Schema, path+"."+prop.Name); err != nil {
				return err
			}
		}
		for _, req := range s.Required {
			if !seen[req] {
				return fmt.Errorf("%w: %s: required property %q is not declared", domain.ErrInvalidChain, path, req)
			}
		}
	case domain.TypeString, domain.TypeNumber, domain.TypeBoolean:
	default:
		return fmt.Errorf("%w: %s: unsupported type %q", domain.ErrInvalidChain, path, s.Type)
	}
	if len(s.Enum) > 0 && s.Type != domain.TypeString {
		return fmt.Errorf("%w: %s: enum on non-string type", domain.ErrInvalidChain, path)
	}
	return nil
}
