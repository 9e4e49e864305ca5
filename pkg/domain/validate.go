package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Validate checks a decoded JSON value against schema. Object properties not
// declared by the schema are accepted so that historical payload versions
// survive validation against newer shapes.
func Validate(value any, schema *Schema) error {
	return validateValue(value, schema, "$")
}

func validateValue(value any, schema *Schema, path string) error {
	if schema == nil {
		return &ValidationError{Path: path, Msg: "schema is nil"}
	}
	switch schema.Type {
	case TypeObject:
		m, ok := value.(map[string]any)
		if !ok {
			return &ValidationError{Path: path, Msg: fmt.Sprintf("expected object, got %s", describe(value))}
		}
		for _, req := range schema.Required {
			if _, ok := m[req]; !ok {
				return &ValidationError{Path: path, Msg: fmt.Sprintf("missing required property %q", req)}
			}
		}
		for _, prop := range schema.Properties {
			val, ok := m[prop.Name]
			if !ok {
				continue
			}
			if err := validateValue(val, prop.Schema, path+"."+prop.Name); err != nil {
				return err
			}
		}
	case TypeString:
		str, ok := value.(string)
		if !ok {
			return &ValidationError{Path: path, Msg: fmt.Sprintf("expected string, got %s", describe(value))}
		}
		if len(schema.Enum) > 0 && !stringInSlice(str, schema.Enum) {
			return &ValidationError{Path: path, Msg: fmt.Sprintf("value %q not in enum", str)}
		}
		if err := validateFormat(str, schema.Format); err != nil {
			return &ValidationError{Path: path, Msg: err.Error()}
		}
	case TypeNumber:
		if !isNumber(value) {
			return &ValidationError{Path: path, Msg: fmt.Sprintf("expected number, got %s", describe(value))}
		}
	case TypeBoolean:
		if _, ok := value.(bool); !ok {
			return &ValidationError{Path: path, Msg: fmt.Sprintf("expected boolean, got %s", describe(value))}
		}
	default:
		return &ValidationError{Path: path, Msg: fmt.Sprintf("unsupported schema type %q", schema.Type)}
	}
	return nil
}

func validateFormat(value, format string) error {
	switch format {
	case "":
		return nil
	case FormatUUID:
		if len(value) != 36 {
			return fmt.Errorf("value %q is not a canonical uuid", value)
		}
		if _, err := uuid.Parse(value); err != nil {
			return fmt.Errorf("value %q is not a uuid: %w", value, err)
		}
	case FormatDateTime:
		if _, err := time.Parse(time.RFC3339Nano, value); err != nil {
			return fmt.Errorf("value %q is not an RFC3339 timestamp", value)
		}
	default:
		return fmt.Errorf("unsupported format %q", format)
	}
	return nil
}

func isNumber(value any) bool {
	switch value.(type) {
	case float64, float32, int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, json.Number:
		return true
	}
	return false
}

func describe(value any) string {
	switch value.(type) {
	case nil:
		return "null"
	case map[string]any:
		return "object"
	case []any:
		return "array"
	case string:
		return "string"
	case bool:
		return "boolean"
	}
	if isNumber(value) {
		return "number"
	}
	return fmt.Sprintf("%T", value)
}

func stringInSlice(value string, values []string) bool {
	for _, v := range values {
		if v == value {
			return true
		}
	}
	return false
}
