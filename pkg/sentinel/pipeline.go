package sentinel

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/scality/scan-sentinel/pkg/clickhouse"
	"github.com/scality/scan-sentinel/pkg/s3"
)

// Pipeline runs one detection batch and hands the result to its sinks
type Pipeline struct {
	detector         *Detector
	clickhouseClient *clickhouse.Client
	archive          *Archive
	metrics          *Metrics
	logger           *slog.Logger
	now              func() time.Time
	sinks            []RunSink
	parserWorkers    int
	topN             int
}

// Config holds pipeline configuration
//
//nolint:govet // Field alignment is less important than readability for config structs
type Config struct {
	Logger  *slog.Logger
	Metrics *Metrics

	Detector DetectorConfig

	// ParserWorkers is the number of parallel line parsers
	ParserWorkers int
	// TopN is the number of most suspicious clients logged after a run
	TopN int

	// OutputDirectory receives the CSV files when not empty
	OutputDirectory string
	// ArchivePath is the bbolt archive file, disabled when empty
	ArchivePath string

	S3Enabled          bool
	S3Endpoint         string
	S3AccessKeyID      string
	S3SecretAccessKey  string
	S3Bucket           string
	S3Prefix           string
	S3MaxRetryAttempts int
	S3MaxBackoffDelay  time.Duration

	ClickHouseEnabled  bool
	ClickHouseHosts    []string
	ClickHouseUsername string
	ClickHousePassword string
	ClickHouseDatabase string
	ClickHouseTimeout  time.Duration

	// Retry applies to sink operations
	Retry RetryPolicy

	// S3Uploader is an optional S3 uploader for testing (if nil, one will be created)
	S3Uploader s3.UploaderInterface
	// Sinks are additional sinks run after the configured ones
	Sinks []RunSink
	// Now is an optional clock for testing
	Now func() time.Time
}

// NewPipeline creates a pipeline and the sinks enabled by cfg
func NewPipeline(ctx context.Context, cfg Config) (*Pipeline, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	detectorCfg := cfg.Detector
	detectorCfg.Logger = logger
	detectorCfg.Metrics = cfg.Metrics
	detector, err := NewDetector(detectorCfg)
	if err != nil {
		return nil, err
	}

	now := cfg.Now
	if now == nil {
		now = time.Now
	}
	parserWorkers := cfg.ParserWorkers
	if parserWorkers <= 0 {
		parserWorkers = DefaultParserWorkers
	}

	p := &Pipeline{
		detector:      detector,
		metrics:       cfg.Metrics,
		logger:        logger,
		now:           now,
		parserWorkers: parserWorkers,
		topN:          cfg.TopN,
	}

	if cfg.OutputDirectory != "" {
		p.sinks = append(p.sinks, NewLocalOutput(cfg.OutputDirectory))
	}

	if cfg.S3Enabled || cfg.S3Uploader != nil {
		uploader := cfg.S3Uploader
		if uploader == nil {
			s3Client, err := s3.NewClient(ctx, s3.Config{
				Endpoint:         cfg.S3Endpoint,
				AccessKeyID:      cfg.S3AccessKeyID,
				SecretAccessKey:  cfg.S3SecretAccessKey,
				MaxRetryAttempts: cfg.S3MaxRetryAttempts,
				MaxBackoffDelay:  cfg.S3MaxBackoffDelay,
			})
			if err != nil {
				return nil, fmt.Errorf("failed to create S3 client: %w", err)
			}
			uploader = s3.NewUploader(s3Client)
		}

		publisher, err := NewReportPublisher(ReportPublisherConfig{
			Uploader: uploader,
			Metrics:  cfg.Metrics,
			Logger:   logger,
			Bucket:   cfg.S3Bucket,
			Prefix:   cfg.S3Prefix,
			Retry:    cfg.Retry,
		})
		if err != nil {
			return nil, err
		}
		p.sinks = append(p.sinks, publisher)
	}

	if cfg.ClickHouseEnabled {
		chClient, err := clickhouse.NewClient(ctx, clickhouse.Config{
			Hosts:          cfg.ClickHouseHosts,
			Database:       cfg.ClickHouseDatabase,
			Username:       cfg.ClickHouseUsername,
			Password:       cfg.ClickHousePassword,
			Timeout:        cfg.ClickHouseTimeout,
			MaxRetries:     cfg.Retry.MaxRetries,
			InitialBackoff: cfg.Retry.InitialBackoff,
			MaxBackoff:     cfg.Retry.MaxBackoff,
			Logger:         logger,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create ClickHouse client: %w", err)
		}
		p.clickhouseClient = chClient

		store := NewClickHouseStore(chClient, logger)
		if err := store.EnsureSchema(ctx); err != nil {
			_ = p.Close()
			return nil, fmt.Errorf("failed to prepare ClickHouse schema: %w", err)
		}
		p.sinks = append(p.sinks, store)
	}

	if cfg.ArchivePath != "" {
		archive, err := OpenArchive(cfg.ArchivePath)
		if err != nil {
			_ = p.Close()
			return nil, err
		}
		p.archive = archive
		p.sinks = append(p.sinks, archive)
	}

	p.sinks = append(p.sinks, cfg.Sinks...)

	return p, nil
}

// Close releases the pipeline's connections and files
func (p *Pipeline) Close() error {
	var errs []error
	if p.archive != nil {
		errs = append(errs, p.archive.Close())
	}
	if p.clickhouseClient != nil {
		errs = append(errs, p.clickhouseClient.Close())
	}
	return errors.Join(errs...)
}

// Run reads an error log, detects scanners and stores the result in every sink.
//
// Sink failures do not discard the result: the report is returned together with
// the joined sink errors.
func (p *Pipeline) Run(ctx context.Context, r io.Reader) (*RunReport, error) {
	generatedAt := p.now().UTC()
	runID, err := newRunID(generatedAt)
	if err != nil {
		return nil, err
	}
	logger := p.logger.With("runID", runID)

	// 1. Read and parse
	lines, err := ReadLines(r)
	if err != nil {
		return nil, err
	}

	parsed, stats, err := ParseLines(ctx, lines, p.parserWorkers)
	if err != nil {
		return nil, fmt.Errorf("failed to parse lines: %w", err)
	}
	if p.metrics != nil {
		p.metrics.Parser.LinesRead.Add(float64(stats.LinesRead))
		p.metrics.Parser.LinesMatched.Add(float64(stats.LinesMatched))
		p.metrics.Parser.MalformedTimestamps.Add(float64(stats.MalformedTimestamps))
	}

	logger.Debug("parsed error log",
		"linesRead", stats.LinesRead,
		"linesMatched", stats.LinesMatched,
		"malformedTimestamps", stats.MalformedTimestamps)

	// 2. Detect
	records := Records(parsed)
	summaries, err := p.detector.Detect(ctx, records)
	if err != nil {
		return nil, fmt.Errorf("detection failed: %w", err)
	}

	report := &RunReport{
		RunID:       runID,
		GeneratedAt: generatedAt,
		Window:      p.detector.Window(),
		Stats:       stats,
		Lines:       parsed,
		Records:     records,
		Summaries:   RankSummaries(summaries),
	}

	if p.metrics != nil {
		p.metrics.Detection.LastRunScanners.Set(float64(CountScanners(summaries)))
	}
	p.logTopSuspicious(logger, report)

	// 3. Store
	return report, p.storeReport(ctx, logger, report)
}

// storeReport runs every sink, even after a failure
func (p *Pipeline) storeReport(ctx context.Context, logger *slog.Logger, report *RunReport) error {
	var errs []error
	for _, sink := range p.sinks {
		status := "success"
		if err := sink.Store(ctx, report); err != nil {
			status = "failed"
			logger.Error("failed to store run", "sink", sink.Name(), "error", err)
			errs = append(errs, fmt.Errorf("%s sink: %w", sink.Name(), err))
		}
		if p.metrics != nil {
			p.metrics.Export.SinkWrites.WithLabelValues(sink.Name(), status).Inc()
		}
	}
	return errors.Join(errs...)
}

func (p *Pipeline) logTopSuspicious(logger *slog.Logger, report *RunReport) {
	n := max(0, min(p.topN, len(report.Summaries)))
	for _, s := range report.Summaries[:n] {
		logger.Info("client summary",
			"clientIP", s.ClientIP,
			"isScanner", s.IsScanner,
			"rule", s.Rule,
			"totalRequests", s.TotalRequests,
			"distinctPaths", s.DistinctPaths,
			"maxDistinctInWindow", s.MaxDistinctInWindow)
	}

	logger.Info("run completed",
		"nClients", len(report.Summaries),
		"nScanners", CountScanners(report.Summaries),
		"nRecords", len(report.Records))
}

// newRunID returns an identifier that sorts by generation time
func newRunID(generatedAt time.Time) (string, error) {
	unique, err := uniqueString()
	if err != nil {
		return "", fmt.Errorf("failed to generate run ID: %w", err)
	}
	return generatedAt.Format("20060102T150405.000000Z") + "-" + unique, nil
}
