// Package searchinfo exposes the host's search metadata (time range, auth token, ...).
package searchinfo

import (
	"sort"
	"strconv"
	"strings"
)

// Well-known info keys.
const (
	KeyTimestamp = "_timestamp"
	KeyEarliest  = "_search_et"
	KeyLatest    = "_search_lt"
	KeyAuthToken = "_auth_token"
	// KeyTimezone is dropped while decoding.
	KeyTimezone = "_tz"
)

// SearchInfo is the flattened info block of a request. A nil *SearchInfo is valid
// and behaves as an info block without fields.
type SearchInfo struct {
	fields map[string]string
}

// New creates a SearchInfo; the map is copied.
func New(fields map[string]string) *SearchInfo {
	cp := make(map[string]string, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	return &SearchInfo{fields: cp}
}

// Field returns the raw value of name.
func (s *SearchInfo) Field(name string) (string, bool) {
	if s == nil {
		return "", false
	}
	v, ok := s.fields[name]
	return v, ok
}

// Has reports whether name is present.
func (s *SearchInfo) Has(name string) bool {
	_, ok := s.Field(name)
	return ok
}

// Keys returns the field names in sorted order.
func (s *SearchInfo) Keys() []string {
	if s == nil {
		return nil
	}
	keys := make([]string, 0, len(s.fields))
	for k := range s.fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Len returns the number of fields.
func (s *SearchInfo) Len() int {
	if s == nil {
		return 0
	}
	return len(s.fields)
}

// Epoch interprets name as integer epoch seconds. Fractional strings are truncated
// at the decimal point; missing or unparsable values report false.
func (s *SearchInfo) Epoch(name string) (int64, bool) {
	v, ok := s.Field(name)
	if !ok {
		return 0, false
	}
	v = strings.TrimSpace(v)
	if whole, _, found := strings.Cut(v, "."); found {
		v = whole
	}
	if v == "" || v == "-" {
		return 0, false
	}
	n, err := strconv.ParseInt(v, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// Timestamp returns _timestamp.
func (s *SearchInfo) Timestamp() (int64, bool) { return s.Epoch(KeyTimestamp) }

// EarliestTime returns _search_et.
func (s *SearchInfo) EarliestTime() (int64, bool) { return s.Epoch(KeyEarliest) }

// LatestTime returns _search_lt.
func (s *SearchInfo) LatestTime() (int64, bool) { return s.Epoch(KeyLatest) }

// IsTimeRange reports whether the search is bounded by _search_et or _search_lt.
func (s *SearchInfo) IsTimeRange() bool {
	return s.Has(KeyEarliest) || s.Has(KeyLatest)
}

// TimeBounds returns the earliest and latest bounds as pointers, nil when absent.
func (s *SearchInfo) TimeBounds() (earliest, latest *int64) {
	if et, ok := s.EarliestTime(); ok {
		earliest = &et
	}
	if lt, ok := s.LatestTime(); ok {
		latest = &lt
	}
	return earliest, latest
}

// AuthToken returns the user session token, empty when absent.
func (s *SearchInfo) AuthToken() string {
	v, _ := s.Field(KeyAuthToken)
	return v
}
