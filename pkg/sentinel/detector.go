package sentinel

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// ErrInvalidConfig is returned when the detector parameters make the
// classification undefined
var ErrInvalidConfig = errors.New("invalid detector configuration")

const (
	// DefaultWindow is the default width of the sliding time window
	DefaultWindow = 10 * time.Second
	// DefaultDistinctThreshold is the default number of distinct paths in one window that marks a scanner
	DefaultDistinctThreshold = 10
	// DefaultMinRequests is the default request count from which the cumulative rule applies
	DefaultMinRequests = 20
	// DefaultDetectorWorkers is the default number of client groups scanned concurrently
	DefaultDetectorWorkers = 8
)

// DetectorConfig holds detection parameters
//
//nolint:govet // Field alignment is less important than readability for config structs
type DetectorConfig struct {
	Logger  *slog.Logger
	Metrics *Metrics

	// Window is the width of the sliding time window
	Window time.Duration
	// DistinctThreshold is the distinct path count inside one window that classifies a client (burst rule)
	DistinctThreshold int
	// MinRequests is the minimum request count for the cumulative rule, which also
	// requires DistinctThreshold/2 distinct paths over the whole record set
	MinRequests int
	// NumWorkers bounds how many client groups are scanned concurrently
	NumWorkers int
	// StopOnDetection ends a client's window scan as soon as the burst rule fires.
	// MaxDistinctInWindow then reports the count at that point instead of the overall maximum.
	StopOnDetection bool
}

// DefaultDetectorConfig returns the default detection parameters
func DefaultDetectorConfig() DetectorConfig {
	return DetectorConfig{
		Window:            DefaultWindow,
		DistinctThreshold: DefaultDistinctThreshold,
		MinRequests:       DefaultMinRequests,
		NumWorkers:        DefaultDetectorWorkers,
	}
}

// Validate checks that the parameters define a meaningful classification
func (c DetectorConfig) Validate() error {
	if c.Window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %s", ErrInvalidConfig, c.Window)
	}
	if c.DistinctThreshold < 1 {
		return fmt.Errorf("%w: distinct threshold must be at least 1, got %d", ErrInvalidConfig, c.DistinctThreshold)
	}
	if c.MinRequests <= 0 {
		return fmt.Errorf("%w: min requests must be positive, got %d", ErrInvalidConfig, c.MinRequests)
	}
	if c.NumWorkers < 0 {
		return fmt.Errorf("%w: num workers cannot be negative, got %d", ErrInvalidConfig, c.NumWorkers)
	}
	return nil
}

// Detector classifies client identities as scanners
type Detector struct {
	logger  *slog.Logger
	metrics *Metrics

	window            time.Duration
	distinctThreshold int
	minRequests       int
	numWorkers        int
	stopOnDetection   bool
}

// NewDetector creates a detector, failing fast on invalid parameters
func NewDetector(cfg DetectorConfig) (*Detector, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	numWorkers := cfg.NumWorkers
	if numWorkers == 0 {
		numWorkers = DefaultDetectorWorkers
	}

	return &Detector{
		logger:            logger,
		metrics:           cfg.Metrics,
		window:            cfg.Window,
		distinctThreshold: cfg.DistinctThreshold,
		minRequests:       cfg.MinRequests,
		numWorkers:        numWorkers,
		stopOnDetection:   cfg.StopOnDetection,
	}, nil
}

// Window returns the sliding window width
func (d *Detector) Window() time.Duration {
	return d.window
}

// Detect produces exactly one summary per distinct client IP in records,
// ordered by client IP. Records must all carry a valid timestamp; their order
// only matters to break timestamp ties.
//
// Client groups are independent and scanned concurrently.
func (d *Detector) Detect(ctx context.Context, records []LogRecord) ([]ScannerSummary, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	start := time.Now()
	windows := groupByClient(records)
	summaries := make([]ScannerSummary, len(windows))

	var wg sync.WaitGroup
	sem := make(chan struct{}, d.numWorkers)

	for i := range windows {
		wg.Add(1)

		go func() {
			defer wg.Done()

			select {
			case sem <- struct{}{}:
				defer func() { <-sem }()
			case <-ctx.Done():
				return
			}
			if ctx.Err() != nil {
				return
			}

			summaries[i] = d.summarize(&windows[i])
		}()
	}

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	scanners := CountScanners(summaries)
	if d.metrics != nil {
		d.metrics.Detection.ClientsAnalyzed.Add(float64(len(summaries)))
		d.metrics.Detection.Duration.Observe(time.Since(start).Seconds())
		for _, s := range summaries {
			if s.IsScanner {
				d.metrics.Detection.ScannersDetected.WithLabelValues(string(s.Rule)).Inc()
			}
		}
	}

	d.logger.Info("detection completed",
		"nRecords", len(records),
		"nClients", len(summaries),
		"nScanners", scanners,
		"durationSeconds", time.Since(start).Seconds())

	return summaries, nil
}

// summarize classifies one client
func (d *Detector) summarize(cw *ClientWindow) ScannerSummary {
	cw.sortByTime()

	scan := scanWindows(cw.Records, d.window, d.distinctThreshold, d.stopOnDetection)
	summary := ScannerSummary{
		ClientIP:            cw.ClientIP,
		TotalRequests:       len(cw.Records),
		DistinctPaths:       countDistinctPaths(cw.Records),
		MaxDistinctInWindow: scan.maxDistinct,
		Rule:                RuleNone,
	}

	switch {
	case scan.triggered:
		summary.IsScanner = true
		summary.Rule = RuleBurst
	case summary.TotalRequests >= d.minRequests && summary.DistinctPaths >= d.distinctThreshold/2:
		summary.IsScanner = true
		summary.Rule = RuleCumulative
	}

	if summary.IsScanner {
		d.logger.Debug("scanner detected",
			"clientIP", summary.ClientIP,
			"rule", summary.Rule,
			"totalRequests", summary.TotalRequests,
			"distinctPaths", summary.DistinctPaths,
			"maxDistinctInWindow", summary.MaxDistinctInWindow)
	}

	return summary
}
