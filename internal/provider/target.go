package provider

import (
	"fmt"

	"github.com/kailas-cloud/vixbridge/internal/domain"
	"github.com/kailas-cloud/vixbridge/internal/domain/expr"
	"github.com/kailas-cloud/vixbridge/internal/domain/searchinfo"
	"github.com/kailas-cloud/vixbridge/internal/domain/vix"
)

// Index property keys shared by every builtin provider.
const (
	PropSource          = "source"
	PropSourcetype      = "sourcetype"
	PropTimestampField  = "timestamp_field"
	PropTimestampFormat = "timestamp_format"
	PropBatchSize       = "batch_size"
)

// DefaultBatchSize is the number of records a provider reads per backend round trip.
const DefaultBatchSize = 500

// Target is the output context of one virtual index.
type Target struct {
	Index           string
	Source          string
	Sourcetype      string
	TimestampField  string
	TimestampFormat string
}

// ResolveTarget reads the output properties of v. defaultSource is usually the
// backend object name (collection, table, file).
func ResolveTarget(family string, v vix.VixConfig, defaultSource string) Target {
	props := v.Properties()
	return Target{
		Index:           v.IndexName(),
		Source:          props.StringOr(PropSource, defaultSource),
		Sourcetype:      props.StringOr(PropSourcetype, family+":json"),
		TimestampField:  props.StringOr(PropTimestampField, ""),
		TimestampFormat: props.StringOr(PropTimestampFormat, ""),
	}
}

// Begin announces t on w.
func (t Target) Begin(w ResultWriter) {
	w.InitializeWriter(t.Index, t.Source, t.Sourcetype, nil)
	if t.TimestampField != "" {
		w.SetTimestampFieldPrefix(fmt.Sprintf(`"%s":`, t.TimestampField))
	}
	if t.TimestampFormat != "" {
		w.SetTimestampFormat(t.TimestampFormat)
	}
}

// Restrict returns the search expression of v narrowed to the search time range
// when the index declares a timestamp field.
func (t Target) Restrict(v vix.VixConfig, info *searchinfo.SearchInfo) expr.Element {
	earliest, latest := info.TimeBounds()
	return expr.WithTimeRange(v.SearchExpression(), t.TimestampField, earliest, latest)
}

// BatchSize reads batch_size from props.
func BatchSize(props vix.Properties) (int, error) {
	n, ok, err := props.Int(PropBatchSize)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	if !ok {
		return DefaultBatchSize, nil
	}
	if n <= 0 {
		return 0, fmt.Errorf("%w: batch_size must be positive, got %d", domain.ErrInvalidConfig, n)
	}
	return n, nil
}

// Require returns the text value of key or an ErrInvalidConfig error.
func Require(props vix.Properties, key string) (string, error) {
	s, ok := props.String(key)
	if !ok || s == "" {
		return "", fmt.Errorf("%w: %s is required", domain.ErrInvalidConfig, key)
	}
	return s, nil
}
