package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges of the live session.
type Metrics struct {
	registry          *prometheus.Registry
	segmentsAppended  prometheus.Counter
	segmentsRejected  *prometheus.CounterVec
	segmentsEvicted   prometheus.Counter
	manifestUpdates   prometheus.Counter
	timelineRuns      prometheus.Gauge
	timelineSegments  prometheus.Gauge
	filesCleanedTotal prometheus.Counter
	noticesDropped    prometheus.Counter
}

func New() *Metrics {
	registry := prometheus.NewRegistry()

	segmentsAppended := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "livempd_segments_appended_total",
		Help: "Total number of segments appended to the timeline",
	})
	segmentsRejected := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "livempd_segments_rejected_total",
		Help: "Total number of rejected segments",
	}, []string{"reason"})
	segmentsEvicted := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "livempd_segments_evicted_total",
		Help: "Total number of segments removed from the live window",
	})
	manifestUpdates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "livempd_manifest_updates_total",
		Help: "Total number of manifest rebuilds",
	})
	timelineRuns := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "livempd_timeline_runs",
		Help: "Number of compacted timeline entries",
	})
	timelineSegments := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "livempd_timeline_segments",
		Help: "Number of segments retained in the timeline",
	})
	filesCleanedTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "livempd_files_cleaned_total",
		Help: "Total number of deleted segment files",
	})
	noticesDropped := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "livempd_eviction_notices_dropped_total",
		Help: "Total number of eviction notices dropped because the cleaner lagged",
	})

	registry.MustRegister(
		segmentsAppended,
		segmentsRejected,
		segmentsEvicted,
		manifestUpdates,
		timelineRuns,
		timelineSegments,
		filesCleanedTotal,
		noticesDropped,
	)

	return &Metrics{
		registry:          registry,
		segmentsAppended:  segmentsAppended,
		segmentsRejected:  segmentsRejected,
		segmentsEvicted:   segmentsEvicted,
		manifestUpdates:   manifestUpdates,
		timelineRuns:      timelineRuns,
		timelineSegments:  timelineSegments,
		filesCleanedTotal: filesCleanedTotal,
		noticesDropped:    noticesDropped,
	}
}

func (m *Metrics) IncSegmentsAppended() {
	m.segmentsAppended.Inc()
}

// IncSegmentsRejected increments rejected counter
// labeled by reason.
func (m *Metrics) IncSegmentsRejected(reason string) {
	m.segmentsRejected.WithLabelValues(reason).Inc()
}

func (m *Metrics) AddSegmentsEvicted(n int64) {
	m.segmentsEvicted.Add(float64(n))
}

func (m *Metrics) IncManifestUpdates() {
	m.manifestUpdates.Inc()
}

// SetTimeline sets timeline gauges.
func (m *Metrics) SetTimeline(runs int, segments int64) {
	m.timelineRuns.Set(float64(runs))
	m.timelineSegments.Set(float64(segments))
}

func (m *Metrics) IncFilesCleaned() {
	m.filesCleanedTotal.Inc()
}

func (m *Metrics) IncNoticesDropped() {
	m.noticesDropped.Inc()
}

// Handler returns an http.Handler that serves Prometheus metrics.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
