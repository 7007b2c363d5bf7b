package metrics

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vixbridge/internal/domain"
	"github.com/kailas-cloud/vixbridge/internal/domain/fieldlist"
	"github.com/kailas-cloud/vixbridge/internal/domain/searchinfo"
	"github.com/kailas-cloud/vixbridge/internal/domain/vix"
	"github.com/kailas-cloud/vixbridge/internal/provider"
)

// InstrumentedProvider wraps a provider.Provider with phase timing, error
// counting and logging.
type InstrumentedProvider struct {
	inner  provider.Provider
	name   string
	m      *Metrics
	logger *zap.Logger
}

// NewInstrumentedProvider wraps inner, registered as name.
func NewInstrumentedProvider(inner provider.Provider, name string, m *Metrics, logger *zap.Logger) *InstrumentedProvider {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InstrumentedProvider{inner: inner, name: name, m: m, logger: logger}
}

// Init delegates and records the init phase.
func (p *InstrumentedProvider) Init(
	ctx context.Context, cfg vix.ProviderConfig, indexes []vix.VixConfig,
	info *searchinfo.SearchInfo, fields *fieldlist.List,
) error {
	start := time.Now()
	err := p.inner.Init(ctx, cfg, indexes, info, fields)
	p.observe(domain.PhaseInit, start, err)
	return err //nolint:wrapcheck // decorator
}

// Run delegates and records the run phase.
func (p *InstrumentedProvider) Run(ctx context.Context, w provider.ResultWriter) error {
	start := time.Now()
	err := p.inner.Run(ctx, w)
	p.observe(domain.PhaseRun, start, err)
	return err //nolint:wrapcheck // decorator
}

// Close delegates and records the close phase.
func (p *InstrumentedProvider) Close() error {
	start := time.Now()
	err := p.inner.Close()
	p.observe(domain.PhaseClose, start, err)
	return err //nolint:wrapcheck // decorator
}

func (p *InstrumentedProvider) observe(phase domain.Phase, start time.Time, err error) {
	duration := time.Since(start)
	p.m.ProviderPhaseSeconds.WithLabelValues(p.name, string(phase)).Observe(duration.Seconds())
	if err != nil {
		p.m.ProviderErrorsTotal.WithLabelValues(p.name, string(phase)).Inc()
		p.logger.Debug("Provider phase failed",
			zap.String("provider", p.name),
			zap.String("phase", string(phase)),
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}
	p.logger.Debug("Provider phase completed",
		zap.String("provider", p.name),
		zap.String("phase", string(phase)),
		zap.Duration("duration", duration),
	)
}
