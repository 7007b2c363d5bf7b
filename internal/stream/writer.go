// Package stream buffers provider records and frames them for the host.
//
// Records are collected in memory and written as body chunks once the buffer
// crosses an adaptive flush threshold. Header fields travel in separate header
// chunks, re-sent only after they change.
package stream

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/kailas-cloud/vixbridge/internal/domain"
)

// ErrStreaming is returned when the sink fails. The writer stays failed afterwards.
var ErrStreaming = domain.ErrStreaming

// Header field names.
const (
	FieldHost       = "field.host"
	FieldIndex      = "field.index"
	FieldSource     = "field.source"
	FieldSourcetype = "field.sourcetype"
	PropKVMode      = "props.KV_MODE"
	PropTruncate    = "props.TRUNCATE"
	PropTimePrefix  = "props.TIME_PREFIX"
	PropTimeFormat  = "props.TIME_FORMAT"
	MetricPrefixKey = "metric.prefix"
)

// ChunkSink receives framed output. chunked.Writer implements it.
type ChunkSink interface {
	WriteHeader(fields map[string]string) error
	WriteBody(body []byte) error
	Flush() error
}

// HeaderState tracks whether header fields changed since the last header chunk.
type HeaderState int

// Header states.
const (
	Clean HeaderState = iota
	Dirty
)

func (s HeaderState) String() string {
	switch s {
	case Clean:
		return "clean"
	case Dirty:
		return "dirty"
	default:
		return "unknown"
	}
}

// Option configures a Writer.
type Option func(*Writer)

// WithHost sets field.host. Defaults to the machine host name.
func WithHost(host string) Option {
	return func(w *Writer) {
		if host != "" {
			w.host = host
		}
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(l *zap.Logger) Option {
	return func(w *Writer) {
		if l != nil {
			w.log = l
		}
	}
}

// Writer is the result streaming engine. It implements provider.ResultWriter and
// is not safe for concurrent use.
type Writer struct {
	sink ChunkSink
	log  *zap.Logger
	host string

	header map[string]string
	// meta holds metrics, messages and links not yet sent; they ride on the next
	// header chunk and survive InitializeWriter.
	meta  map[string]string
	state HeaderState

	buf            bytes.Buffer
	flushThreshold int
	batchThreshold int
	count          int

	metricPrefix string
	messageSeq   int
	err          error
}

// New creates a Writer on sink.
func New(sink ChunkSink, opts ...Option) *Writer {
	w := &Writer{
		sink:           sink,
		log:            zap.NewNop(),
		host:           hostname(),
		meta:           make(map[string]string),
		state:          Dirty,
		flushThreshold: InitialFlushThreshold,
		batchThreshold: InitialBatchThreshold,
	}
	for _, opt := range opts {
		opt(w)
	}
	w.header = w.defaults()
	w.buf.Grow(OutputBufferLimit)
	return w
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "localhost"
	}
	return h
}

func (w *Writer) defaults() map[string]string {
	return map[string]string{
		FieldHost:    w.host,
		PropKVMode:   "json",
		PropTruncate: "1000000",
	}
}

// InitializeWriter replaces the header fields with the defaults plus the given
// index context. extra wins over every other field.
func (w *Writer) InitializeWriter(index, source, sourcetype string, extra map[string]string) {
	header := w.defaults()
	header[FieldIndex] = index
	header[FieldSource] = source
	header[FieldSourcetype] = sourcetype
	for k, v := range extra {
		header[k] = v
	}
	w.header = header
	w.state = Dirty
	w.log.Info("result writer initialized",
		zap.String("index", index),
		zap.String("source", source),
		zap.String("sourcetype", sourcetype),
	)
}

// Append buffers one serialized record. It flushes when the buffer outgrows the
// flush threshold, then grows the threshold.
func (w *Writer) Append(record string) error {
	if w.err != nil {
		return w.err
	}
	w.buf.WriteString(record)
	w.buf.WriteByte('\n')

	if w.buf.Len() > w.flushThreshold {
		if err := w.flush(); err != nil {
			return err
		}
		w.flushThreshold = NextThreshold(w.flushThreshold, MaxFlushThreshold)
	}

	w.count++
	if w.count >= w.batchThreshold {
		w.batchThreshold = NextThreshold(w.batchThreshold, MaxBatchThreshold)
		w.count = 0
		w.log.Debug("batch threshold updated", zap.Int("batch_threshold", w.batchThreshold))
	}
	return nil
}

// AppendBatch serializes each record as JSON and appends it. The first failure
// aborts the call; records appended before it stay buffered.
func (w *Writer) AppendBatch(records []any) error {
	for i, rec := range records {
		b, err := json.Marshal(rec)
		if err != nil {
			w.log.Error("record serialization failed", zap.Int("position", i), zap.Error(err))
			return fmt.Errorf("serialize record %d: %w", i, err)
		}
		if err := w.Append(string(b)); err != nil {
			return err
		}
	}
	return nil
}

// Close flushes buffered records once and flushes the sink. A pending header is
// sent even when no records are buffered.
func (w *Writer) Close() error {
	if w.err != nil {
		return w.err
	}
	if w.buf.Len() > 0 {
		return w.flush()
	}
	if w.state == Dirty {
		if err := w.writeHeader(); err != nil {
			return err
		}
	}
	if err := w.sink.Flush(); err != nil {
		return w.fail(err)
	}
	return nil
}

// flush emits the pending header and the buffered records, then flushes the
// sink so the host sees them immediately.
func (w *Writer) flush() error {
	if w.state == Dirty {
		if err := w.writeHeader(); err != nil {
			return err
		}
	}
	if err := w.sink.WriteBody(w.buf.Bytes()); err != nil {
		return w.fail(err)
	}
	w.buf.Reset()
	if err := w.sink.Flush(); err != nil {
		return w.fail(err)
	}
	return nil
}

func (w *Writer) writeHeader() error {
	fields := make(map[string]string, len(w.header)+len(w.meta))
	for k, v := range w.header {
		fields[k] = v
	}
	for k, v := range w.meta {
		fields[k] = v
	}
	w.log.Debug("sending stream header", zap.Int("fields", len(fields)))
	if err := w.sink.WriteHeader(fields); err != nil {
		return w.fail(err)
	}
	w.meta = make(map[string]string)
	w.state = Clean
	return nil
}

func (w *Writer) fail(err error) error {
	w.err = fmt.Errorf("%w: %v", ErrStreaming, err)
	w.log.Error("streaming failed", zap.Error(err))
	return w.err
}

func (w *Writer) setHeader(key, value string) {
	w.header[key] = value
	w.state = Dirty
}

func (w *Writer) setMeta(key, value string) {
	w.meta[key] = value
	w.state = Dirty
}

// SetTimestampFieldPrefix sets props.TIME_PREFIX.
func (w *Writer) SetTimestampFieldPrefix(prefix string) {
	w.log.Info("timestamp prefix set", zap.String("prefix", prefix))
	w.setHeader(PropTimePrefix, prefix)
}

// SetTimestampFormat sets props.TIME_FORMAT.
func (w *Writer) SetTimestampFormat(format string) {
	w.log.Info("timestamp format set", zap.String("format", format))
	w.setHeader(PropTimeFormat, format)
}

// SetMetricPrefix prefixes the names of subsequent metrics.
func (w *Writer) SetMetricPrefix(prefix string) {
	w.metricPrefix = prefix
	w.setMeta(MetricPrefixKey, prefix)
}

func (w *Writer) metricKey(name string) string {
	if w.metricPrefix == "" {
		return "metric." + name
	}
	return "metric." + w.metricPrefix + "." + name
}

// AddMetric records an elapsed time metric.
func (w *Writer) AddMetric(name string, elapsedMs, calls int64) {
	key := w.metricKey(name)
	w.setMeta(key+".elapsed_ms", strconv.FormatInt(elapsedMs, 10))
	w.setMeta(key+".calls", strconv.FormatInt(calls, 10))
}

// AddCountMetric records input and output counts.
func (w *Writer) AddCountMetric(name string, input, output int64) {
	key := w.metricKey(name)
	w.setMeta(key+".input_count", strconv.FormatInt(input, 10))
	w.setMeta(key+".output_count", strconv.FormatInt(output, 10))
}

// AddMessage queues a message for the search UI.
func (w *Writer) AddMessage(level, text string) {
	w.messageSeq++
	level = strings.ToLower(strings.TrimSpace(level))
	if level == "" {
		level = "info"
	}
	w.setMeta(fmt.Sprintf("message.%s.%d", level, w.messageSeq), text)
}

// AddErrorMessage queues err as a message.
func (w *Writer) AddErrorMessage(level string, err error) {
	if err == nil {
		return
	}
	w.AddMessage(level, err.Error())
}

// AddLink queues a link for the search UI.
func (w *Writer) AddLink(name, url string) {
	w.setMeta("link."+name, url)
}

// FlushThreshold returns the buffer size that triggers the next flush.
func (w *Writer) FlushThreshold() int { return w.flushThreshold }

// BatchThreshold returns the current record count checkpoint.
func (w *Writer) BatchThreshold() int { return w.batchThreshold }

// PendingRecords returns the records appended since the last checkpoint.
func (w *Writer) PendingRecords() int { return w.count }

// Buffered returns the number of buffered bytes.
func (w *Writer) Buffered() int { return w.buf.Len() }

// HeaderState reports whether a header chunk is due.
func (w *Writer) HeaderState() HeaderState { return w.state }

// Header returns a copy of the current header fields.
func (w *Writer) Header() map[string]string {
	out := make(map[string]string, len(w.header))
	for k, v := range w.header {
		out[k] = v
	}
	return out
}
