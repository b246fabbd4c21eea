package sentinel

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/scality/scan-sentinel/pkg/s3"
)

// DefaultUploadTimeout bounds one report upload including retries
const DefaultUploadTimeout = 5 * time.Minute

// ReportPublisher uploads the summary report to an S3 bucket
type ReportPublisher struct {
	uploader s3.UploaderInterface
	metrics  *Metrics
	logger   *slog.Logger
	bucket   string
	prefix   string
	retry    RetryPolicy
	timeout  time.Duration
}

// ReportPublisherConfig holds report publisher configuration
//
//nolint:govet // Field alignment is less important than readability for config structs
type ReportPublisherConfig struct {
	Uploader s3.UploaderInterface
	Metrics  *Metrics
	Logger   *slog.Logger
	Bucket   string
	Prefix   string
	Retry    RetryPolicy
	// Timeout is the maximum time for the upload including retries
	Timeout time.Duration
}

// NewReportPublisher creates a report publisher
func NewReportPublisher(cfg ReportPublisherConfig) (*ReportPublisher, error) {
	if cfg.Uploader == nil {
		return nil, errors.New("report publisher requires an uploader")
	}
	if cfg.Bucket == "" {
		return nil, errors.New("report publisher requires a bucket")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultUploadTimeout
	}

	return &ReportPublisher{
		uploader: cfg.Uploader,
		metrics:  cfg.Metrics,
		logger:   logger.With("component", "publisher", "bucket", cfg.Bucket),
		bucket:   cfg.Bucket,
		prefix:   cfg.Prefix,
		retry:    cfg.Retry,
		timeout:  timeout,
	}, nil
}

// Name implements RunSink
func (p *ReportPublisher) Name() string {
	return "s3"
}

// Store builds the summary report and uploads it with retries.
// Permanent S3 errors are not retried.
func (p *ReportPublisher) Store(ctx context.Context, report *RunReport) error {
	obj, err := NewReportBuilder(report.Window).Build(p.prefix, report.GeneratedAt, report.Summaries)
	if err != nil {
		return err
	}

	uploadCtx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	logger := p.logger.With("s3Key", obj.Key)

	err = p.retry.Do(uploadCtx, func() error {
		return p.uploader.Upload(uploadCtx, p.bucket, obj.Key, obj.Content)
	}, func(err error) bool {
		return !IsPermanentError(err)
	}, "upload", logger)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			logger.Error("upload operation exceeded timeout", "timeout", p.timeout, "error", err)
		}
		return err
	}

	if p.metrics != nil {
		p.metrics.Export.ReportSizeBytes.Set(float64(len(obj.Content)))
	}

	logger.Info("uploaded summary report", "sizeBytes", len(obj.Content), "runID", report.RunID)
	return nil
}
