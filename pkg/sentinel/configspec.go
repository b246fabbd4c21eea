package sentinel

import (
	"fmt"

	"github.com/scality/scan-sentinel/pkg/util"
)

// ConfigSpec defines all configuration items for scan-sentinel
//
//nolint:gochecknoglobals // global config spec is intentional
var ConfigSpec = util.ConfigSpec{
	// Detection
	"detector.window-seconds": util.ConfigVarSpec{
		Help:         "Width of the sliding time window in seconds",
		DefaultValue: 10,
		EnvVar:       "SCAN_SENTINEL_DETECTOR_WINDOW_SECONDS",
	},
	"detector.distinct-threshold": util.ConfigVarSpec{
		Help:         "Distinct missing scripts inside one window that classify a client as a scanner",
		DefaultValue: DefaultDistinctThreshold,
		EnvVar:       "SCAN_SENTINEL_DETECTOR_DISTINCT_THRESHOLD",
	},
	"detector.min-requests": util.ConfigVarSpec{
		Help:         "Minimum requests for the cumulative scanner rule",
		DefaultValue: DefaultMinRequests,
		EnvVar:       "SCAN_SENTINEL_DETECTOR_MIN_REQUESTS",
	},
	"detector.stop-on-detection": util.ConfigVarSpec{
		Help:         "Stop scanning a client's windows once it is classified",
		DefaultValue: false,
		EnvVar:       "SCAN_SENTINEL_DETECTOR_STOP_ON_DETECTION",
	},
	"detector.num-workers": util.ConfigVarSpec{
		Help:         "Number of client groups scanned concurrently",
		DefaultValue: DefaultDetectorWorkers,
		EnvVar:       "SCAN_SENTINEL_DETECTOR_NUM_WORKERS",
	},

	// Parsing
	"parser.num-workers": util.ConfigVarSpec{
		Help:         "Number of parallel line parsers",
		DefaultValue: DefaultParserWorkers,
		EnvVar:       "SCAN_SENTINEL_PARSER_NUM_WORKERS",
	},

	// Input and output
	"input.path": util.ConfigVarSpec{
		Help:         "Error log file to analyze (stdin when empty)",
		DefaultValue: "",
		EnvVar:       "SCAN_SENTINEL_INPUT_PATH",
	},
	"output.directory": util.ConfigVarSpec{
		Help:         "Directory receiving the summary and parsed records CSV files (disabled when empty)",
		DefaultValue: "",
		EnvVar:       "SCAN_SENTINEL_OUTPUT_DIRECTORY",
	},
	"report.top-n": util.ConfigVarSpec{
		Help:         "Number of most suspicious clients logged after a run",
		DefaultValue: 10,
		EnvVar:       "SCAN_SENTINEL_REPORT_TOP_N",
	},

	// S3 report upload
	"s3.enabled": util.ConfigVarSpec{
		Help:         "Upload the summary report to S3",
		DefaultValue: false,
		EnvVar:       "SCAN_SENTINEL_S3_ENABLED",
	},
	"s3.endpoint": util.ConfigVarSpec{
		Help:         "S3 endpoint URL",
		DefaultValue: "",
		EnvVar:       "SCAN_SENTINEL_S3_ENDPOINT",
	},
	"s3.access-key-id": util.ConfigVarSpec{
		Help:         "S3 access key ID",
		DefaultValue: "",
		EnvVar:       "SCAN_SENTINEL_S3_ACCESS_KEY_ID",
	},
	"s3.secret-access-key": util.ConfigVarSpec{
		Help:         "S3 secret access key",
		DefaultValue: "",
		EnvVar:       "SCAN_SENTINEL_S3_SECRET_ACCESS_KEY",
	},
	"s3.bucket": util.ConfigVarSpec{
		Help:         "Bucket receiving the summary reports",
		DefaultValue: "",
		EnvVar:       "SCAN_SENTINEL_S3_BUCKET",
	},
	"s3.prefix": util.ConfigVarSpec{
		Help:         "Key prefix of the summary reports",
		DefaultValue: "scan-reports/",
		EnvVar:       "SCAN_SENTINEL_S3_PREFIX",
	},
	"s3.max-retry-attempts": util.ConfigVarSpec{
		Help:         "Maximum number of S3 SDK retry attempts",
		DefaultValue: 3,
		EnvVar:       "SCAN_SENTINEL_S3_MAX_RETRY_ATTEMPTS",
	},
	"s3.max-backoff-delay-seconds": util.ConfigVarSpec{
		Help:         "Maximum S3 SDK backoff delay in seconds",
		DefaultValue: 20,
		EnvVar:       "SCAN_SENTINEL_S3_MAX_BACKOFF_DELAY_SECONDS",
	},

	// ClickHouse storage
	"clickhouse.enabled": util.ConfigVarSpec{
		Help:         "Store events and summaries in ClickHouse",
		DefaultValue: false,
		EnvVar:       "SCAN_SENTINEL_CLICKHOUSE_ENABLED",
	},
	"clickhouse.url": util.ConfigVarSpec{
		Help:         "Comma-separated ClickHouse hosts",
		DefaultValue: "localhost:9000",
		EnvVar:       "SCAN_SENTINEL_CLICKHOUSE_URL",
		ParseFunc:    parseHosts,
	},
	"clickhouse.username": util.ConfigVarSpec{
		Help:         "ClickHouse username",
		DefaultValue: "default",
		EnvVar:       "SCAN_SENTINEL_CLICKHOUSE_USERNAME",
	},
	"clickhouse.password": util.ConfigVarSpec{
		Help:         "ClickHouse password",
		DefaultValue: "",
		EnvVar:       "SCAN_SENTINEL_CLICKHOUSE_PASSWORD",
	},
	"clickhouse.timeout-seconds": util.ConfigVarSpec{
		Help:         "ClickHouse query timeout in seconds",
		DefaultValue: 30,
		EnvVar:       "SCAN_SENTINEL_CLICKHOUSE_TIMEOUT_SECONDS",
	},

	// Local archive
	"archive.path": util.ConfigVarSpec{
		Help:         "bbolt file archiving run reports and client history (disabled when empty)",
		DefaultValue: "",
		EnvVar:       "SCAN_SENTINEL_ARCHIVE_PATH",
	},

	// Retry
	"retry.max-retries": util.ConfigVarSpec{
		Help:         "Maximum retry attempts for sink operations",
		DefaultValue: 3,
		EnvVar:       "SCAN_SENTINEL_RETRY_MAX_RETRIES",
	},
	"retry.initial-backoff-seconds": util.ConfigVarSpec{
		Help:         "Initial backoff in seconds",
		DefaultValue: 1,
		EnvVar:       "SCAN_SENTINEL_RETRY_INITIAL_BACKOFF_SECONDS",
	},
	"retry.max-backoff-seconds": util.ConfigVarSpec{
		Help:         "Maximum backoff in seconds",
		DefaultValue: 30,
		EnvVar:       "SCAN_SENTINEL_RETRY_MAX_BACKOFF_SECONDS",
	},
	"retry.backoff-jitter-factor": util.ConfigVarSpec{
		Help:         "Jitter factor for retry backoff (0.0 to 1.0)",
		DefaultValue: 0.2,
		EnvVar:       "SCAN_SENTINEL_RETRY_BACKOFF_JITTER_FACTOR",
	},

	// Timeouts
	"timeout.run-seconds": util.ConfigVarSpec{
		Help:         "Maximum duration of one detection run in seconds",
		DefaultValue: 600,
		EnvVar:       "SCAN_SENTINEL_TIMEOUT_RUN_SECONDS",
	},

	// Metrics server
	"metrics-server.enabled": util.ConfigVarSpec{
		Help:         "Enable the Prometheus metrics server",
		DefaultValue: false,
		EnvVar:       "SCAN_SENTINEL_METRICS_SERVER_ENABLED",
	},
	"metrics-server.listen-address": util.ConfigVarSpec{
		Help:         "Metrics server listen address",
		DefaultValue: "0.0.0.0",
		EnvVar:       "SCAN_SENTINEL_METRICS_SERVER_LISTEN_ADDRESS",
	},
	"metrics-server.listen-port": util.ConfigVarSpec{
		Help:         "Metrics server listen port",
		DefaultValue: 9090,
		EnvVar:       "SCAN_SENTINEL_METRICS_SERVER_LISTEN_PORT",
	},

	// General
	"shutdown-timeout-seconds": util.ConfigVarSpec{
		Help:         "Maximum time to wait for a run to stop after a signal",
		DefaultValue: 30,
		EnvVar:       "SCAN_SENTINEL_SHUTDOWN_TIMEOUT_SECONDS",
	},
	"log-level": util.ConfigVarSpec{
		Help:         "Log level (error|warn|info|debug)",
		DefaultValue: "info",
		EnvVar:       "SCAN_SENTINEL_LOG_LEVEL",
	},
}

func parseHosts(value any) (any, error) {
	switch v := value.(type) {
	case string:
		return util.ParseCommaSeparatedHosts(v), nil
	case []string:
		return v, nil
	case []any:
		hosts := make([]string, 0, len(v))
		for _, h := range v {
			hosts = append(hosts, fmt.Sprint(h))
		}
		return hosts, nil
	default:
		return nil, fmt.Errorf("unexpected hosts value of type %T", value)
	}
}
