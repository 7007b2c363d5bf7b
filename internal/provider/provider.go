// Package provider defines the contract between the bridge and backend
// implementations, plus helpers shared by the builtin providers.
package provider

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vixbridge/internal/domain"
	"github.com/kailas-cloud/vixbridge/internal/domain/expr"
	"github.com/kailas-cloud/vixbridge/internal/domain/fieldlist"
	"github.com/kailas-cloud/vixbridge/internal/domain/searchinfo"
	"github.com/kailas-cloud/vixbridge/internal/domain/vix"
)

// Provider turns virtual index configurations into records.
//
// The bridge calls Init at most once, then Run at most once, then Close exactly once.
// Close is called even when Init failed after partial setup.
type Provider interface {
	Init(ctx context.Context, cfg vix.ProviderConfig, indexes []vix.VixConfig,
		info *searchinfo.SearchInfo, fields *fieldlist.List) error
	Run(ctx context.Context, w ResultWriter) error
	Close() error
}

// ResultWriter is the write-only surface a provider uses to produce output.
// It is not safe for concurrent use.
type ResultWriter interface {
	// InitializeWriter switches the index/source/sourcetype context. It must be
	// called before records of a virtual index are appended.
	InitializeWriter(index, source, sourcetype string, extra map[string]string)
	Append(record string) error
	AppendBatch(records []any) error

	SetTimestampFieldPrefix(prefix string)
	SetTimestampFormat(format string)

	SetMetricPrefix(prefix string)
	AddMetric(name string, elapsedMs, calls int64)
	AddCountMetric(name string, input, output int64)
	AddMessage(level, text string)
	AddErrorMessage(level string, err error)
	AddLink(name, url string)
}

// Deps are the process-wide collaborators handed to provider factories.
type Deps struct {
	Logger *zap.Logger
	// Defaults come from the bridge config file; request properties override them.
	Defaults vix.Properties
}

// Factory builds a provider.
type Factory func(deps Deps) (Provider, error)

// Merge overlays request properties on configured defaults.
func Merge(defaults, props vix.Properties) vix.Properties {
	out := make(vix.Properties, len(defaults)+len(props))
	for k, v := range defaults {
		out[k] = v
	}
	for k, v := range props {
		out[k] = v
	}
	return out
}

// Unsupported reports an expression the backend cannot translate.
func Unsupported(e expr.Element, reason string) error {
	return fmt.Errorf("%w: %s: %s", domain.ErrUnsupportedExpression, e, reason)
}

// Log returns d.Logger or a no-op logger.
func (d Deps) Log() *zap.Logger {
	if d.Logger == nil {
		return zap.NewNop()
	}
	return d.Logger
}
