package dedup

import (
	"time"

	"github.com/jcalabro/linebloom"
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics records scan statistics in Prometheus collectors. A nil *Metrics
// records nothing.
type Metrics struct {
	scansTotal          *prometheus.CounterVec
	linesScanned        prometheus.Counter
	linesDeleted        prometheus.Counter
	filterCandidates    prometheus.Counter
	filterFalsePositive prometheus.Counter
	scanDuration        prometheus.Histogram
	filterBits          prometheus.Gauge
}

// NewMetrics creates the scan collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		scansTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lineuniq_scans_total",
			Help: "Total number of deduplication scans",
		}, []string{"mode"}),
		linesScanned: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lineuniq_lines_scanned_total",
			Help: "Total number of lines examined",
		}),
		linesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lineuniq_lines_deleted_total",
			Help: "Total number of duplicate lines deleted",
		}),
		filterCandidates: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lineuniq_filter_candidates_total",
			Help: "Total number of lines whose filter bits were all set",
		}),
		filterFalsePositive: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "lineuniq_filter_false_positives_total",
			Help: "Total number of filter candidates rejected by verification",
		}),
		scanDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lineuniq_scan_duration_seconds",
			Help:    "Duration of deduplication scans in seconds",
			Buckets: prometheus.ExponentialBuckets(0.0001, 4, 10), // 0.1ms to ~26s
		}),
		filterBits: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "lineuniq_filter_bits",
			Help: "Size in bits of the most recently built filter",
		}),
	}
	reg.MustRegister(
		m.scansTotal,
		m.linesScanned,
		m.linesDeleted,
		m.filterCandidates,
		m.filterFalsePositive,
		m.scanDuration,
		m.filterBits,
	)
	return m
}

func (m *Metrics) observe(mode Mode, res Result, took time.Duration) {
	if m == nil {
		return
	}
	m.scansTotal.WithLabelValues(mode.String()).Inc()
	m.linesScanned.Add(float64(res.Scanned))
	m.linesDeleted.Add(float64(res.Deleted))
	m.filterCandidates.Add(float64(res.Candidates))
	m.filterFalsePositive.Add(float64(res.FalsePositives))
	m.scanDuration.Observe(took.Seconds())
}

func (m *Metrics) filterBuilt(f *linebloom.Filter) {
	if m == nil {
		return
	}
	m.filterBits.Set(float64(f.Cap()))
}
