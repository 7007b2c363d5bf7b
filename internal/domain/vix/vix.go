// Package vix holds the provider and virtual index configuration decoded from a request.
package vix

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/kailas-cloud/vixbridge/internal/domain/expr"
)

// Properties maps family-stripped configuration keys to raw JSON values.
type Properties map[string]json.RawMessage

// String returns the value for key as text. JSON strings are unquoted, other
// values are returned as their JSON text. Missing keys and null report false.
func (p Properties) String(key string) (string, bool) {
	raw, ok := p[key]
	if !ok {
		return "", false
	}
	return Text(raw)
}

// StringOr returns the value for key or def when missing or blank.
func (p Properties) StringOr(key, def string) string {
	if s, ok := p.String(key); ok && s != "" {
		return s
	}
	return def
}

// Int parses the value for key as an integer. Fractional values are truncated.
func (p Properties) Int(key string) (int, bool, error) {
	s, ok := p.String(key)
	if !ok || s == "" {
		return 0, false, nil
	}
	if whole, _, found := strings.Cut(s, "."); found {
		s = whole
	}
	n, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil {
		return 0, true, fmt.Errorf("property %s: %w", key, err)
	}
	return n, true, nil
}

// Bool parses the value for key as a boolean ("1", "true", ...).
func (p Properties) Bool(key string) (bool, bool, error) {
	s, ok := p.String(key)
	if !ok || s == "" {
		return false, false, nil
	}
	b, err := strconv.ParseBool(strings.TrimSpace(s))
	if err != nil {
		return false, true, fmt.Errorf("property %s: %w", key, err)
	}
	return b, true, nil
}

// Strings returns a list value: either a JSON array of strings or a comma separated string.
func (p Properties) Strings(key string) []string {
	raw, ok := p[key]
	if !ok {
		return nil
	}
	var arr []string
	if err := json.Unmarshal(raw, &arr); err == nil {
		return arr
	}
	s, ok := Text(raw)
	if !ok || s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Keys returns the property names in sorted order.
func (p Properties) Keys() []string {
	keys := make([]string, 0, len(p))
	for k := range p {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (p Properties) clone() Properties {
	out := make(Properties, len(p))
	for k, v := range p {
		out[k] = append(json.RawMessage(nil), v...)
	}
	return out
}

// Text renders a raw JSON value as text: strings are unquoted, other values keep
// their JSON form. Empty input and null report false.
func Text(raw json.RawMessage) (string, bool) {
	trimmed := strings.TrimSpace(string(raw))
	if trimmed == "" || trimmed == "null" {
		return "", false
	}
	if trimmed[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err == nil {
			return s, true
		}
	}
	return trimmed, true
}

// ProviderConfig is the provider section of a request with its family prefix removed.
type ProviderConfig struct {
	familyName string
	properties Properties
}

// NewProviderConfig creates a ProviderConfig. The properties map is copied.
func NewProviderConfig(familyName string, properties Properties) ProviderConfig {
	return ProviderConfig{familyName: familyName, properties: properties.clone()}
}

// FamilyName returns the provider family the properties were namespaced under.
func (c ProviderConfig) FamilyName() string { return c.familyName }

// Properties returns a copy of the provider properties.
func (c ProviderConfig) Properties() Properties { return c.properties.clone() }

// Property is a shortcut for Properties().String without copying.
func (c ProviderConfig) Property(key string) (string, bool) { return c.properties.String(key) }

// VixConfig is one virtual index of a request.
type VixConfig struct {
	indexName  string
	properties Properties
	expression expr.Element
}

// NewVixConfig validates and creates a VixConfig. A nil expression becomes an empty group.
func NewVixConfig(indexName string, properties Properties, expression expr.Element) (VixConfig, error) {
	if indexName == "" {
		return VixConfig{}, fmt.Errorf("index name is required")
	}
	if expression == nil {
		expression = expr.Empty()
	}
	return VixConfig{indexName: indexName, properties: properties.clone(), expression: expression}, nil
}

// IndexName returns the virtual index name.
func (v VixConfig) IndexName() string { return v.indexName }

// Properties returns a copy of the index properties.
func (v VixConfig) Properties() Properties { return v.properties.clone() }

// Property is a shortcut for Properties().String without copying.
func (v VixConfig) Property(key string) (string, bool) { return v.properties.String(key) }

// SearchExpression returns the predicate tree; never nil.
func (v VixConfig) SearchExpression() expr.Element { return v.expression }
