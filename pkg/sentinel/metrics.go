package sentinel

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for scan-sentinel, grouped by stage
// NOTE: No client IP labels are used to avoid high cardinality issues
type Metrics struct {
	Parser    ParserMetrics
	Detection DetectionMetrics
	Export    ExportMetrics
}

// ParserMetrics tracks line parsing
type ParserMetrics struct {
	// LinesRead tracks every input line, matching or not
	LinesRead prometheus.Counter

	// LinesMatched tracks structural "script not found" matches
	LinesMatched prometheus.Counter

	// MalformedTimestamps tracks matches dropped from detection because of their timestamp
	MalformedTimestamps prometheus.Counter
}

// DetectionMetrics tracks scanner detection
type DetectionMetrics struct {
	// ClientsAnalyzed tracks distinct client identities summarized
	ClientsAnalyzed prometheus.Counter

	// ScannersDetected tracks clients classified as scanners
	ScannersDetected *prometheus.CounterVec // labels: rule (burst/cumulative)

	// LastRunScanners is the number of scanners found by the latest run
	LastRunScanners prometheus.Gauge

	// Duration tracks time spent grouping and scanning
	Duration prometheus.Histogram
}

// ExportMetrics tracks delivery of run results
type ExportMetrics struct {
	// SinkWrites tracks sink writes with status
	SinkWrites *prometheus.CounterVec // labels: sink, status (success/failed)

	// ReportSizeBytes is the size of the latest summary report
	ReportSizeBytes prometheus.Gauge
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics() *Metrics {
	return NewMetricsWithRegistry(prometheus.DefaultRegisterer)
}

// NewMetricsWithRegistry creates metrics with a custom registry
// This is useful for testing to avoid conflicts with the default registry
func NewMetricsWithRegistry(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		Parser: ParserMetrics{
			LinesRead: factory.NewCounter(
				prometheus.CounterOpts{
					Name: "scan_sentinel_parser_lines_read_total",
					Help: "Total number of error log lines read",
				},
			),
			LinesMatched: factory.NewCounter(
				prometheus.CounterOpts{
					Name: "scan_sentinel_parser_lines_matched_total",
					Help: "Total number of lines matching the script not found pattern",
				},
			),
			MalformedTimestamps: factory.NewCounter(
				prometheus.CounterOpts{
					Name: "scan_sentinel_parser_malformed_timestamps_total",
					Help: "Total number of matching lines excluded from detection because of an unparseable timestamp",
				},
			),
		},

		Detection: DetectionMetrics{
			ClientsAnalyzed: factory.NewCounter(
				prometheus.CounterOpts{
					Name: "scan_sentinel_detection_clients_analyzed_total",
					Help: "Total number of client identities summarized",
				},
			),
			ScannersDetected: factory.NewCounterVec(
				prometheus.CounterOpts{
					Name: "scan_sentinel_detection_scanners_detected_total",
					Help: "Total number of client identities classified as scanners",
				},
				[]string{"rule"}, // rule: burst, cumulative
			),
			LastRunScanners: factory.NewGauge(
				prometheus.GaugeOpts{
					Name: "scan_sentinel_detection_last_run_scanners",
					Help: "Number of scanners found by the latest detection run",
				},
			),
			Duration: factory.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "scan_sentinel_detection_duration_seconds",
					Help:    "Time spent grouping records and scanning client windows",
					Buckets: []float64{0.001, 0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30}, // 1ms to 30s
				},
			),
		},

		Export: ExportMetrics{
			SinkWrites: factory.NewCounterVec(
				prometheus.CounterOpts{
					Name: "scan_sentinel_export_sink_writes_total",
					Help: "Total number of run result writes per sink",
				},
				[]string{"sink", "status"}, // status: success, failed
			),
			ReportSizeBytes: factory.NewGauge(
				prometheus.GaugeOpts{
					Name: "scan_sentinel_export_report_size_bytes",
					Help: "Size of the latest summary report",
				},
			),
		},
	}
}
