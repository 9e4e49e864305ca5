// Package domain defines the stable contracts shared by the docchain core and
// the storage engines it plugs into: structural schemas and their validation,
// the document envelope, the error taxonomy and the narrow engine capability
// interfaces.
package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"sort"
)

// Type identifies the primitive kind of a structural schema node.
type Type string

// Supported structural schema node types.
const (
	TypeObject  Type = "object"
	TypeString  Type = "string"
	TypeNumber  Type = "number"
	TypeBoolean Type = "boolean"
)

// Supported string formats.
const (
	FormatUUID     = "uuid"
	FormatDateTime = "date-time"
)

// Schema is a language-neutral description of a value: its primitive type,
// and for objects the named properties and which of them are required.
//
// Title, Version and PrimaryKey are only populated on assembled collection
// schemas.
type Schema struct {
	Title      string     `json:"title,omitempty"`
	Version    *int       `json:"version,omitempty"`
	PrimaryKey string     `json:"primaryKey,omitempty"`
	Type       Type       `json:"type"`
	Format     string     `json:"format,omitempty"`
	Enum       []string   `json:"enum,omitempty"`
	Properties Properties `json:"properties,omitempty"`
	Required   []string   `json:"required,omitempty"`
}

// Property is a named child of an object schema.
type Property struct {
	Name   string
	Schema *Schema
}

// Properties keeps object children in declaration order so encodings are
// stable across runs.
type Properties []Property

// Get returns the child schema registered under name.
func (p Properties) Get(name string) (*Schema, bool) {
	for _, prop := range p {
		if prop.Name == name {
			return prop.Schema, true
		}
	}
	return nil, false
}

// Names returns the property names in declaration order.
func (p Properties) Names() []string {
	out := make([]string, len(p))
	for i, prop := range p {
		out[i] = prop.Name
	}
	return out
}

// MarshalJSON encodes the properties as a JSON object preserving order.
func (p Properties) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, prop := range p {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(prop.Name)
		if err != nil {
			return nil, err
		}
		val, err := json.Marshal(prop.Schema)
		if err != nil {
			return nil, fmt.Errorf("property %s: %w", prop.Name, err)
		}
		buf.Write(key)
		buf.WriteByte(':')
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object keeping the document order of keys.
func (p *Properties) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("properties: expected object")
	}
	var out Properties
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return err
		}
		name, ok := tok.(string)
		if !ok {
			return fmt.Errorf("properties: expected key, got %v", tok)
		}
		var child Schema
		if err := dec.Decode(&child); err != nil {
			return fmt.Errorf("property %s: %w", name, err)
		}
		out = append(out, Property{Name: name, Schema: &child})
	}
	*p = out
	return nil
}

// String returns a string schema.
func String() *Schema { return &Schema{Type: TypeString} }

// Number returns a number schema.
func Number() *Schema { return &Schema{Type: TypeNumber} }

// Boolean returns a boolean schema.
func Boolean() *Schema { return &Schema{Type: TypeBoolean} }

// Enum returns a string schema restricted to the given members.
func Enum(members ...string) *Schema {
	return &Schema{Type: TypeString, Enum: append([]string(nil), members...)}
}

// Formatted returns a string schema carrying a format constraint.
func Formatted(format string) *Schema {
	return &Schema{Type: TypeString, Format: format}
}

// Field declares an object property for Object.
type Field struct {
	Name     string
	Schema   *Schema
	Optional bool
}

// Req declares a required object property.
func Req(name string, s *Schema) Field { return Field{Name: name, Schema: s} }

// Opt declares an optional object property.
func Opt(name string, s *Schema) Field { return Field{Name: name, Schema: s, Optional: true} }

// Object builds an object schema from fields in declaration order.
func Object(fields ...Field) *Schema {
	s := &Schema{Type: TypeObject}
	for _, f := range fields {
		s.Properties = append(s.Properties, Property{Name: f.Name, Schema: f.Schema})
		if !f.Optional {
			s.Required = append(s.Required, f.Name)
		}
	}
	return s
}

// Clone returns a deep copy of the schema.
func (s *Schema) Clone() *Schema {
	if s == nil {
		return nil
	}
	cp := *s
	if s.Version != nil {
		v := *s.Version
		cp.Version = &v
	}
	cp.Enum = append([]string(nil), s.Enum...)
	cp.Required = append([]string(nil), s.Required...)
	if s.Properties != nil {
		cp.Properties = make(Properties, len(s.Properties))
		for i, prop := range s.Properties {
			cp.Properties[i] = Property{Name: prop.Name, Schema: prop.Schema.Clone()}
		}
	}
	return &cp
}

// IsRequired reports whether the named property is required.
func (s *Schema) IsRequired(name string) bool {
	for _, req := range s.Required {
		if req == name {
			return true
		}
	}
	return false
}

// Equal compares two schemas structurally. Property order, required order and
// enum order are not significant; enum membership is.
func (s *Schema) Equal(other *Schema) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.Title != other.Title || s.PrimaryKey != other.PrimaryKey || s.Type != other.Type || s.Format != other.Format {
		return false
	}
	if (s.Version == nil) != (other.Version == nil) {
		return false
	}
	if s.Version != nil && *s.Version != *other.Version {
		return false
	}
	if !sameSet(s.Enum, other.Enum) || !sameSet(s.Required, other.Required) {
		return false
	}
	if len(s.Properties) != len(other.Properties) {
		return false
	}
	for _, prop := range s.Properties {
		child, ok := other.Properties.Get(prop.Name)
		if !ok || !prop.Schema.Equal(child) {
			return false
		}
	}
	return true
}

func sameSet(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	x := append([]string(nil), a...)
	y := append([]string(nil), b...)
	sort.Strings(x)
	sort.Strings(y)
	for i := range x {
		if x[i] != y[i] {
			return false
		}
	}
	return true
}
