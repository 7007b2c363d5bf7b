// Package bridge runs one search: it decodes the request, builds the named
// provider, drives its lifecycle and streams the results.
package bridge

import (
	"context"
	"io"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vixbridge/internal/protocol"
	"github.com/kailas-cloud/vixbridge/internal/provider"
	"github.com/kailas-cloud/vixbridge/internal/stream"
	"github.com/kailas-cloud/vixbridge/internal/transport/chunked"
)

// Option configures a Service.
type Option func(*Service)

// WithHost overrides field.host of emitted headers.
func WithHost(host string) Option {
	return func(s *Service) { s.host = host }
}

// WithSinkWrapper decorates the chunk sink of every run.
func WithSinkWrapper(w SinkWrapper) Option {
	return func(s *Service) { s.wrapSink = w }
}

// WithProviderWrapper decorates the provider of every run.
func WithProviderWrapper(w ProviderWrapper) Option {
	return func(s *Service) { s.wrapProvider = w }
}

// Service executes bridge runs.
type Service struct {
	registry     *Registry
	log          *zap.Logger
	host         string
	wrapSink     SinkWrapper
	wrapProvider ProviderWrapper
}

// New creates a Service.
func New(registry *Registry, log *zap.Logger, opts ...Option) *Service {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Service{registry: registry, log: log}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Execute reads one request from in, runs the provider registered as name and
// writes the chunked result stream to out. The stream is closed on every path,
// so a failed run still leaves a correctly framed, flushed output.
func (s *Service) Execute(ctx context.Context, in io.Reader, out io.Writer, name string, deps provider.Deps) (err error) {
	w := s.NewStream(out)
	defer func() {
		cerr := w.Close()
		switch {
		case cerr == nil:
		case err == nil:
			err = cerr
		default:
			s.log.Warn("stream close failed after earlier error", zap.Error(cerr))
		}
	}()

	req, err := protocol.Decode(in)
	if err != nil {
		return err
	}
	s.log.Debug("request decoded",
		zap.String("family", req.Provider.FamilyName()),
		zap.Int("indexes", len(req.Indexes)),
	)

	if deps.Logger == nil {
		deps.Logger = s.log
	}
	p, err := s.registry.Build(name, deps)
	if err != nil {
		return err
	}
	if s.wrapProvider != nil {
		p = s.wrapProvider(name, p)
	}
	return NewDriver(s.log).Run(ctx, p, req, w)
}

// NewStream creates the result writer on out.
func (s *Service) NewStream(out io.Writer) StreamWriter {
	cw := chunked.NewWriter(out)
	cw.SetStreamType(chunked.StreamTypeRaw)
	var sink stream.ChunkSink = cw
	if s.wrapSink != nil {
		sink = s.wrapSink(sink)
	}
	return stream.New(sink, stream.WithHost(s.host), stream.WithLogger(s.log))
}
