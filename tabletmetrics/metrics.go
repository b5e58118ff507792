// Package tabletmetrics defines the instrumentation surface a tablet
// reports through (spec.md treats metric emission as an external
// collaborator, out of scope for the core's behavior but still part of
// the ambient stack every component wires into). Exposition (an HTTP
// handler, a push gateway) is left to the embedding process; this
// package only defines what gets recorded.
package tabletmetrics

import "github.com/prometheus/client_golang/prometheus"

// Recorder receives counts and durations for tablet operations. A
// no-op implementation is provided for tests and callers that don't
// need metrics.
type Recorder interface {
	InsertOK()
	InsertAlreadyPresent()
	UpdateOK()
	UpdateNotFound()
	FlushStarted()
	FlushCompleted(rows int, seconds float64)
	FlushFailed()
	CompactionStarted(inputLayers int)
	CompactionCompleted(rows int, seconds float64)
	CompactionFailed()
	LayerCount(n int)
	MemstoreRows(n int)
}

// NoopRecorder discards every observation.
type NoopRecorder struct{}

func (NoopRecorder) InsertOK()                               {}
func (NoopRecorder) InsertAlreadyPresent()                   {}
func (NoopRecorder) UpdateOK()                                {}
func (NoopRecorder) UpdateNotFound()                          {}
func (NoopRecorder) FlushStarted()                            {}
func (NoopRecorder) FlushCompleted(rows int, seconds float64) {}
func (NoopRecorder) FlushFailed()                             {}
func (NoopRecorder) CompactionStarted(inputLayers int)        {}
func (NoopRecorder) CompactionCompleted(rows int, seconds float64) {}
func (NoopRecorder) CompactionFailed()                        {}
func (NoopRecorder) LayerCount(n int)                         {}
func (NoopRecorder) MemstoreRows(n int)                       {}

// PrometheusRecorder records every observation into
// client_golang collectors, registered under the given namespace.
type PrometheusRecorder struct {
	inserts       *prometheus.CounterVec
	updates       *prometheus.CounterVec
	flushes       *prometheus.CounterVec
	flushRows     prometheus.Histogram
	flushSeconds  prometheus.Histogram
	compactions   *prometheus.CounterVec
	compactRows   prometheus.Histogram
	compactSecs   prometheus.Histogram
	layerCount    prometheus.Gauge
	memstoreRows  prometheus.Gauge
}

// NewPrometheusRecorder registers and returns a PrometheusRecorder
// under namespace, using reg (pass prometheus.DefaultRegisterer to use
// the global registry).
func NewPrometheusRecorder(reg prometheus.Registerer, namespace string) *PrometheusRecorder {
	r := &PrometheusRecorder{
		inserts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "inserts_total", Help: "Insert attempts by outcome.",
		}, []string{"outcome"}),
		updates: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "updates_total", Help: "UpdateRow attempts by outcome.",
		}, []string{"outcome"}),
		flushes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "flushes_total", Help: "Flush attempts by outcome.",
		}, []string{"outcome"}),
		flushRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "flush_rows", Help: "Rows written per successful flush.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		flushSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "flush_seconds", Help: "Flush duration in seconds.",
		}),
		compactions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "compactions_total", Help: "Compaction attempts by outcome.",
		}, []string{"outcome"}),
		compactRows: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "compaction_rows", Help: "Rows written per successful compaction.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		}),
		compactSecs: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "compaction_seconds", Help: "Compaction duration in seconds.",
		}),
		layerCount: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "layer_count", Help: "Current number of on-disk layers.",
		}),
		memstoreRows: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "memstore_rows", Help: "Current number of rows buffered in the memstore.",
		}),
	}
	reg.MustRegister(r.inserts, r.updates, r.flushes, r.flushRows, r.flushSeconds,
		r.compactions, r.compactRows, r.compactSecs, r.layerCount, r.memstoreRows)
	return r
}

func (r *PrometheusRecorder) InsertOK()             { r.inserts.WithLabelValues("ok").Inc() }
func (r *PrometheusRecorder) InsertAlreadyPresent()  { r.inserts.WithLabelValues("already_present").Inc() }
func (r *PrometheusRecorder) UpdateOK()              { r.updates.WithLabelValues("ok").Inc() }
func (r *PrometheusRecorder) UpdateNotFound()        { r.updates.WithLabelValues("not_found").Inc() }
func (r *PrometheusRecorder) FlushStarted()          { r.flushes.WithLabelValues("started").Inc() }
func (r *PrometheusRecorder) FlushFailed()           { r.flushes.WithLabelValues("failed").Inc() }
func (r *PrometheusRecorder) CompactionFailed()      { r.compactions.WithLabelValues("failed").Inc() }

func (r *PrometheusRecorder) FlushCompleted(rows int, seconds float64) {
	r.flushes.WithLabelValues("completed").Inc()
	r.flushRows.Observe(float64(rows))
	r.flushSeconds.Observe(seconds)
}

func (r *PrometheusRecorder) CompactionStarted(inputLayers int) {
	r.compactions.WithLabelValues("started").Inc()
}

func (r *PrometheusRecorder) CompactionCompleted(rows int, seconds float64) {
	r.compactions.WithLabelValues("completed").Inc()
	r.compactRows.Observe(float64(rows))
	r.compactSecs.Observe(seconds)
}

func (r *PrometheusRecorder) LayerCount(n int)   { r.layerCount.Set(float64(n)) }
func (r *PrometheusRecorder) MemstoreRows(n int) { r.memstoreRows.Set(float64(n)) }
