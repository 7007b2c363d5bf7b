package bridge

import "github.com/kailas-cloud/vixbridge/internal/provider"

// resultProxy hands a provider only the provider.ResultWriter methods of the
// stream, so buffer state and Close stay out of reach.
type resultProxy struct {
	w provider.ResultWriter
}

func (p resultProxy) InitializeWriter(index, source, sourcetype string, extra map[string]string) {
	p.w.InitializeWriter(index, source, sourcetype, extra)
}

func (p resultProxy) Append(record string) error       { return p.w.Append(record) }
func (p resultProxy) AppendBatch(records []any) error  { return p.w.AppendBatch(records) }
func (p resultProxy) SetTimestampFieldPrefix(s string) { p.w.SetTimestampFieldPrefix(s) }
func (p resultProxy) SetTimestampFormat(f string)      { p.w.SetTimestampFormat(f) }
func (p resultProxy) SetMetricPrefix(prefix string)    { p.w.SetMetricPrefix(prefix) }

func (p resultProxy) AddMetric(name string, elapsedMs, calls int64) {
	p.w.AddMetric(name, elapsedMs, calls)
}

func (p resultProxy) AddCountMetric(name string, input, output int64) {
	p.w.AddCountMetric(name, input, output)
}

func (p resultProxy) AddMessage(level, text string)          { p.w.AddMessage(level, text) }
func (p resultProxy) AddErrorMessage(level string, err error) { p.w.AddErrorMessage(level, err) }
func (p resultProxy) AddLink(name, url string)               { p.w.AddLink(name, url) }
