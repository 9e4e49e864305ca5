// Package collections declares the collections docchain ships with.
package collections

import (
	"fmt"

	"docchain/internal/registry"
	"docchain/pkg/chain"
)

// ListName is the name of the built-in list collection.
const ListName = "list"

// ListV0 is the first list item payload.
type ListV0 struct {
	Value string `json:"value"`
}

// ListV1 renames value to content.
type ListV1 struct {
	Content string `json:"content"`
}

// ListChain returns the list collection's version chain.
func ListChain() (chain.Chain, error) {
	v0, err := chain.ShapeOf[ListV0]()
	if err != nil {
		return chain.Chain{}, err
	}
	v1, err := chain.ShapeOf[ListV1]()
	if err != nil {
		return chain.Chain{}, err
	}
	c, err := chain.Initial(v0)
	if err != nil {
		return chain.Chain{}, err
	}
	return c.AddStep(v1, chain.Func(func(prev ListV0) (ListV1, error) {
		return ListV1{Content: prev.Value}, nil
	}))
}

// Definitions returns every built-in collection definition.
func Definitions() ([]registry.Definition, error) {
	list, err := ListChain()
	if err != nil {
		return nil, fmt.Errorf("collection %s: %w", ListName, err)
	}
	return []registry.Definition{
		{Name: ListName, Chain: list, Mode: registry.ModeStaged},
	}, nil
}

// Register adds every built-in collection to r.
func Register(r *registry.Registry) error {
	defs, err := Definitions()
	if err != nil {
		return err
	}
	for _, def := range defs {
		if _, err := r.Add(def); err != nil {
			return err
		}
	}
	return nil
}
