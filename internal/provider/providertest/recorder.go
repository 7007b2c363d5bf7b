// Package providertest offers an in-memory provider.ResultWriter for tests.
package providertest

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/vixbridge/internal/domain/vix"
)

// Header is one InitializeWriter call.
type Header struct {
	Index, Source, Sourcetype string
	Extra                     map[string]string
}

// Recorder captures everything a provider writes.
type Recorder struct {
	Headers    []Header
	Records    []string
	Props      map[string]string
	Metrics    map[string][2]int64
	Counts     map[string][2]int64
	Messages   []string
	Links      map[string]string
	Prefix     string
	AppendErr  error
	BatchCalls int
}

// NewRecorder creates an empty Recorder.
func NewRecorder() *Recorder {
	return &Recorder{
		Props:   map[string]string{},
		Metrics: map[string][2]int64{},
		Counts:  map[string][2]int64{},
		Links:   map[string]string{},
	}
}

func (r *Recorder) InitializeWriter(index, source, sourcetype string, extra map[string]string) {
	r.Headers = append(r.Headers, Header{Index: index, Source: source, Sourcetype: sourcetype, Extra: extra})
}

func (r *Recorder) Append(record string) error {
	if r.AppendErr != nil {
		return r.AppendErr
	}
	r.Records = append(r.Records, record)
	return nil
}

func (r *Recorder) AppendBatch(records []any) error {
	r.BatchCalls++
	for _, rec := range records {
		b, err := json.Marshal(rec)
		if err != nil {
			return err
		}
		if err := r.Append(string(b)); err != nil {
			return err
		}
	}
	return nil
}

func (r *Recorder) SetTimestampFieldPrefix(prefix string) { r.Props["TIME_PREFIX"] = prefix }
func (r *Recorder) SetTimestampFormat(format string)      { r.Props["TIME_FORMAT"] = format }
func (r *Recorder) SetMetricPrefix(prefix string)         { r.Prefix = prefix }

func (r *Recorder) AddMetric(name string, elapsedMs, calls int64) {
	r.Metrics[name] = [2]int64{elapsedMs, calls}
}

func (r *Recorder) AddCountMetric(name string, input, output int64) {
	r.Counts[name] = [2]int64{input, output}
}

func (r *Recorder) AddMessage(level, text string) {
	r.Messages = append(r.Messages, level+": "+text)
}

func (r *Recorder) AddErrorMessage(level string, err error) {
	r.AddMessage(level, fmt.Sprint(err))
}

func (r *Recorder) AddLink(name, url string) { r.Links[name] = url }

// Decoded returns the records parsed as JSON objects.
func (r *Recorder) Decoded() ([]map[string]any, error) {
	out := make([]map[string]any, 0, len(r.Records))
	for _, rec := range r.Records {
		var m map[string]any
		if err := json.Unmarshal([]byte(rec), &m); err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	return out, nil
}

// Props builds properties from alternating keys and values, JSON encoding each value.
func Props(kv ...any) vix.Properties {
	p := vix.Properties{}
	for i := 0; i+1 < len(kv); i += 2 {
		b, err := json.Marshal(kv[i+1])
		if err != nil {
			panic(err)
		}
		p[kv[i].(string)] = b
	}
	return p
}
