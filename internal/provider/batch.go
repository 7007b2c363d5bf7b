package provider

import (
	"time"

	"github.com/kailas-cloud/vixbridge/internal/domain/fieldlist"
)

// Batcher projects records on the required field list and hands them to a
// ResultWriter in batches.
type Batcher struct {
	w       ResultWriter
	fields  *fieldlist.List
	size    int
	pending []any
	scanned int64
	emitted int64
}

// NewBatcher creates a Batcher. size < 1 means DefaultBatchSize.
func NewBatcher(w ResultWriter, fields *fieldlist.List, size int) *Batcher {
	if size < 1 {
		size = DefaultBatchSize
	}
	return &Batcher{w: w, fields: fields, size: size, pending: make([]any, 0, size)}
}

// Add queues record and flushes when the batch is full.
func (b *Batcher) Add(record map[string]any) error {
	b.scanned++
	b.pending = append(b.pending, b.fields.Project(record))
	if len(b.pending) >= b.size {
		return b.Flush()
	}
	return nil
}

// Flush appends queued records.
func (b *Batcher) Flush() error {
	if len(b.pending) == 0 {
		return nil
	}
	n := len(b.pending)
	err := b.w.AppendBatch(b.pending)
	b.pending = b.pending[:0]
	if err != nil {
		return err
	}
	b.emitted += int64(n)
	return nil
}

// Skip counts a record read from the backend but filtered out.
func (b *Batcher) Skip() { b.scanned++ }

// Scanned returns the number of records passed to Add or Skip.
func (b *Batcher) Scanned() int64 { return b.scanned }

// Emitted returns the number of records handed to the writer.
func (b *Batcher) Emitted() int64 { return b.emitted }

// Report publishes per-index search metrics on w.
func Report(w ResultWriter, index string, scanned, emitted int64, elapsed time.Duration, calls int64) {
	w.AddCountMetric(index, scanned, emitted)
	w.AddMetric("query."+index, elapsed.Milliseconds(), calls)
}
