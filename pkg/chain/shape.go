package chain

import (
	"fmt"
	"reflect"
	"strings"

	"docchain/pkg/domain"
)

// ShapeOf derives an object shape from the struct type T.
//
// Property names follow the json tag; fields tagged omitempty or declared as
// pointers are optional. String fields accept an `enum:"a,b,c"` tag and a
// `format:"uuid|date-time"` tag. Supported field kinds are strings, booleans,
// integers, floats and nested structs.
func ShapeOf[T any]() (*domain.Schema, error) {
	t := reflect.TypeOf((*T)(nil)).Elem()
	if t.Kind() != reflect.Struct {
		return nil, fmt.Errorf("shape of %s: expected struct", t)
	}
	return structShape(t, t.String())
}

// MustShapeOf is ShapeOf for package-level declarations; it panics on error.
func MustShapeOf[T any]() *domain.Schema {
	s, err := ShapeOf[T]()
	if err != nil {
		panic(err)
	}
	return s
}

func structShape(t reflect.Type, path string) (*domain.Schema, error) {
	s := &domain.Schema{Type: domain.TypeObject}
	if err := appendFields(s, t, path); err != nil {
		return nil, err
	}
	return s, nil
}

func appendFields(s *domain.Schema, t reflect.Type, path string) error {
	for i := 0; i < t.NumField(); i++ {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name, omitempty, skip := jsonName(f)
		if skip {
			continue
		}
		if f.Anonymous && f.Tag.Get("json") == "" && f.Type.Kind() == reflect.Struct {
			if err := appendFields(s, f.Type, path); err != nil {
				return err
			}
			continue
		}
		ft := f.Type
		optional := omitempty
		if ft.Kind() == reflect.Pointer {
			ft = ft.Elem()
			optional = true
		}
		child, err := fieldShape(ft, f.Tag, path+"."+name)
		if err != nil {
			return err
		}
		s.Properties = append(s.Properties, domain.Property{Name: name, Schema: child})
		if !optional {
			s.Required = append(s.Required, name)
		}
	}
	return nil
}

func fieldShape(t reflect.Type, tag reflect.StructTag, path string) (*domain.Schema, error) {
	switch t.Kind() {
	case reflect.String:
		s := domain.String()
		if enum := tag.Get("enum"); enum != "" {
			for _, member := range strings.Split(enum, ",") {
				s.Enum = append(s.Enum, strings.TrimSpace(member))
			}
		}
		s.Format = tag.Get("format")
		return s, nil
	case reflect.Bool:
		return domain.Boolean(), nil
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return domain.Number(), nil
	case reflect.Struct:
		return structShape(t, path)
	default:
		return nil, fmt.Errorf("shape %s: unsupported kind %s", path, t.Kind())
	}
}

func jsonName(f reflect.StructField) (name string, omitempty, skip bool) {
	tag := f.Tag.Get("json")
	if tag == "-" {
		return "", false, true
	}
	parts := strings.Split(tag, ",")
	name = parts[0]
	if name == "" {
		name = f.Name
	}
	for _, opt := range parts[1:] {
		if opt == "omitempty" || opt == "omitzero" {
			omitempty = true
		}
	}
	return name, omitempty, false
}
