package bridge

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kailas-cloud/vixbridge/internal/domain"
	"github.com/kailas-cloud/vixbridge/internal/protocol"
	"github.com/kailas-cloud/vixbridge/internal/provider"
	"github.com/kailas-cloud/vixbridge/internal/stream"
	"github.com/kailas-cloud/vixbridge/internal/transport/chunked"
)

const request = `{"conf":{"provider":{"family":"fake","fake.k":"v"},"indexes":[{"name":"a"},{"name":"b"}]}}` + "\n"

func newService(p *mockProvider, opts ...Option) *Service {
	r := NewRegistry()
	r.Register("fake", "test provider", func(provider.Deps) (provider.Provider, error) { return p, nil })
	return New(r, nil, append([]Option{WithHost("h1")}, opts...)...)
}

func readChunks(t *testing.T, out *bytes.Buffer) []chunked.Chunk {
	t.Helper()
	chunks, err := chunked.ReadAll(out)
	if err != nil {
		t.Fatalf("ReadAll: %v", err)
	}
	return chunks
}

func headerFields(t *testing.T, c chunked.Chunk) map[string]string {
	t.Helper()
	if !c.IsHeader() {
		t.Fatalf("expected a header chunk, got body %q", c.Body)
	}
	return c.Header
}

func TestExecute_Success(t *testing.T) {
	p := &mockProvider{records: []string{`{"n":1}`, `{"n":2}`}}
	var out bytes.Buffer

	err := newService(p).Execute(context.Background(), strings.NewReader(request), &out, "fake", provider.Deps{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got := strings.Join(p.calls, ","); got != "init,run,close" {
		t.Errorf("calls = %q", got)
	}

	chunks := readChunks(t, &out)
	if len(chunks) != 2 {
		t.Fatalf("expected header and body chunk, got %d", len(chunks))
	}
	h := headerFields(t, chunks[0])
	if h["field.index"] != "b" || h["field.host"] != "h1" || h[chunked.StreamTypeKey] != chunked.StreamTypeRaw {
		t.Errorf("unexpected header %v", h)
	}
	if want := "{\"n\":1}\n{\"n\":2}\n{\"n\":1}\n{\"n\":2}\n"; string(chunks[1].Body) != want {
		t.Errorf("body = %q, want %q", chunks[1].Body, want)
	}
}

func TestExecute_DecodeErrorStillClosesStream(t *testing.T) {
	p := &mockProvider{}
	var out bytes.Buffer

	err := newService(p).Execute(context.Background(), strings.NewReader("null\n"), &out, "fake", provider.Deps{})
	if !errors.Is(err, protocol.ErrNullProtocol) {
		t.Fatalf("expected ErrNullProtocol, got %v", err)
	}
	if len(p.calls) != 0 {
		t.Errorf("provider must not be touched, got %v", p.calls)
	}
	chunks := readChunks(t, &out)
	if len(chunks) != 1 || !chunks[0].IsHeader() {
		t.Fatalf("expected a single header chunk, got %+v", chunks)
	}
}

func TestExecute_UnknownProvider(t *testing.T) {
	var out bytes.Buffer
	err := newService(&mockProvider{}).Execute(context.Background(), strings.NewReader(request), &out, "nope", provider.Deps{})
	if !errors.Is(err, domain.ErrUnknownProvider) {
		t.Fatalf("expected ErrUnknownProvider, got %v", err)
	}
}

func TestExecute_RunErrorKeepsFlushedRecords(t *testing.T) {
	boom := errors.New("boom")
	p := &mockProvider{records: []string{`{"n":1}`}, runErr: boom}
	var out bytes.Buffer

	err := newService(p).Execute(context.Background(), strings.NewReader(request), &out, "fake", provider.Deps{})
	if !errors.Is(err, boom) {
		t.Fatalf("expected boom, got %v", err)
	}
	chunks := readChunks(t, &out)
	if len(chunks) != 2 || string(chunks[1].Body) != "{\"n\":1}\n{\"n\":1}\n" {
		t.Errorf("unexpected chunks %+v", chunks)
	}
}

type failingWriter struct{}

func (failingWriter) Write([]byte) (int, error) { return 0, errors.New("broken pipe") }

func TestExecute_StreamingError(t *testing.T) {
	p := &mockProvider{records: []string{`{"n":1}`}}
	err := newService(p).Execute(context.Background(), strings.NewReader(request), failingWriter{}, "fake", provider.Deps{})
	if !errors.Is(err, stream.ErrStreaming) {
		t.Fatalf("expected ErrStreaming, got %v", err)
	}
}

type countingSink struct {
	stream.ChunkSink
	headers, bodies int
}

func (s *countingSink) WriteHeader(f map[string]string) error {
	s.headers++
	return s.ChunkSink.WriteHeader(f)
}

func (s *countingSink) WriteBody(b []byte) error {
	s.bodies++
	return s.ChunkSink.WriteBody(b)
}

func TestExecute_Wrappers(t *testing.T) {
	p := &mockProvider{records: []string{`{"n":1}`}}
	sink := &countingSink{}
	var wrapped string

	svc := newService(p,
		WithSinkWrapper(func(inner stream.ChunkSink) stream.ChunkSink {
			sink.ChunkSink = inner
			return sink
		}),
		WithProviderWrapper(func(name string, inner provider.Provider) provider.Provider {
			wrapped = name
			return inner
		}),
	)
	var out bytes.Buffer
	if err := svc.Execute(context.Background(), strings.NewReader(request), &out, "fake", provider.Deps{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if wrapped != "fake" {
		t.Errorf("provider wrapper not applied")
	}
	if sink.headers != 1 || sink.bodies != 1 {
		t.Errorf("expected 1 header and 1 body, got %d/%d", sink.headers, sink.bodies)
	}
}

func TestRegistry(t *testing.T) {
	r := NewRegistry()
	factory := func(provider.Deps) (provider.Provider, error) { return &mockProvider{}, nil }
	r.Register("b", "second", factory)
	r.Register("a", "first", factory)
	r.Register("bad", "fails", func(provider.Deps) (provider.Provider, error) { return nil, errors.New("no") })

	if got := strings.Join(r.Names(), ","); got != "a,b,bad" {
		t.Errorf("Names() = %q", got)
	}
	if types := r.Types(); types[0].Description != "first" {
		t.Errorf("unexpected types %+v", types)
	}
	if _, err := r.Build("a", provider.Deps{}); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if _, err := r.Build("bad", provider.Deps{}); err == nil {
		t.Error("expected factory error")
	}
	if _, err := r.Build("zzz", provider.Deps{}); !errors.Is(err, domain.ErrUnknownProvider) {
		t.Errorf("expected ErrUnknownProvider, got %v", err)
	}

	defer func() {
		if recover() == nil {
			t.Error("expected panic on duplicate registration")
		}
	}()
	r.Register("a", "again", factory)
}
