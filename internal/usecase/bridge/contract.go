package bridge

import (
	"github.com/kailas-cloud/vixbridge/internal/provider"
	"github.com/kailas-cloud/vixbridge/internal/stream"
)

// StreamWriter is the result writer owned by the bridge: the provider facing
// surface plus the final flush.
type StreamWriter interface {
	provider.ResultWriter
	Close() error
}

// SinkWrapper decorates the chunk sink, e.g. with instrumentation.
type SinkWrapper func(stream.ChunkSink) stream.ChunkSink

// ProviderWrapper decorates the provider built for a run.
type ProviderWrapper func(name string, p provider.Provider) provider.Provider
