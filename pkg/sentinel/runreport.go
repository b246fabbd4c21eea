package sentinel

import (
	"context"
	"time"
)

// RunReport is the complete outcome of one detection run
type RunReport struct {
	GeneratedAt time.Time        `json:"generated_at"`
	RunID       string           `json:"run_id"`
	Lines       []ParsedLine     `json:"-"`
	Records     []LogRecord      `json:"-"`
	Summaries   []ScannerSummary `json:"summaries"` // ranked, most suspicious first
	Stats       ParseStats       `json:"stats"`
	Window      time.Duration    `json:"window"`
}

// Scanners returns the summaries classified as scanners, most suspicious first
func (r *RunReport) Scanners() []ScannerSummary {
	scanners := make([]ScannerSummary, 0, CountScanners(r.Summaries))
	for _, s := range r.Summaries {
		if s.IsScanner {
			scanners = append(scanners, s)
		}
	}
	return scanners
}

// RunSink persists run reports
type RunSink interface {
	Name() string
	Store(ctx context.Context, report *RunReport) error
}
