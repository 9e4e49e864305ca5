package core

import (
	"reflect"
	"strings"

	"docchain/pkg/domain"
)

// Filter selects loaded documents. A nil Filter matches everything.
type Filter func(doc *domain.Document) bool

// All matches every document.
func All() Filter { return nil }

// FieldEquals matches documents whose value at the dotted path equals want.
// Numbers compare by value regardless of their Go type.
func FieldEquals(path string, want any) Filter {
	segments := strings.Split(path, ".")
	return func(doc *domain.Document) bool {
		got, ok := lookup(doc.Record, segments)
		if !ok {
			return false
		}
		return valuesEqual(got, want)
	}
}

// HasState matches documents classified into state.
func HasState(state domain.MigrationState) Filter {
	return func(doc *domain.Document) bool { return doc.State == state }
}

func lookup(rec map[string]any, segments []string) (any, bool) {
	var cur any = rec
	for _, seg := range segments {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[seg]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

func valuesEqual(a, b any) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	default:
		return 0, false
	}
}
