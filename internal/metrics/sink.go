package metrics

import (
	"time"

	"github.com/kailas-cloud/vixbridge/internal/stream"
)

// InstrumentedSink counts chunks and bytes written through a stream.ChunkSink
// and times flushes.
type InstrumentedSink struct {
	inner stream.ChunkSink
	m     *Metrics
}

// NewInstrumentedSink wraps inner.
func NewInstrumentedSink(inner stream.ChunkSink, m *Metrics) *InstrumentedSink {
	return &InstrumentedSink{inner: inner, m: m}
}

// WriteHeader delegates and records a header chunk. Bytes are the sum of key
// and value lengths, before framing.
func (s *InstrumentedSink) WriteHeader(fields map[string]string) error {
	if err := s.inner.WriteHeader(fields); err != nil {
		return err //nolint:wrapcheck // the stream wraps sink errors
	}
	n := 0
	for k, v := range fields {
		n += len(k) + len(v)
	}
	s.m.ChunksTotal.WithLabelValues(KindHeader).Inc()
	s.m.ChunkBytesTotal.WithLabelValues(KindHeader).Add(float64(n))
	return nil
}

// WriteBody delegates and records a body chunk.
func (s *InstrumentedSink) WriteBody(body []byte) error {
	if err := s.inner.WriteBody(body); err != nil {
		return err //nolint:wrapcheck // the stream wraps sink errors
	}
	s.m.ChunksTotal.WithLabelValues(KindBody).Inc()
	s.m.ChunkBytesTotal.WithLabelValues(KindBody).Add(float64(len(body)))
	return nil
}

// Flush delegates and observes its duration.
func (s *InstrumentedSink) Flush() error {
	start := time.Now()
	err := s.inner.Flush()
	s.m.FlushDuration.Observe(time.Since(start).Seconds())
	return err //nolint:wrapcheck // the stream wraps sink errors
}
