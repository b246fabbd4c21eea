package sentinel

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
)

const (
	// SummaryFileName is the summary report written to the output directory
	SummaryFileName = "scan_summary.csv"
	// ParsedLinesFileName is the parsed records export written to the output directory
	ParsedLinesFileName = "error_parsed.csv"
)

// LocalOutput writes run reports as CSV files into a directory
type LocalOutput struct {
	dir string
}

// NewLocalOutput creates a local output sink. The directory is created on first store.
func NewLocalOutput(dir string) *LocalOutput {
	return &LocalOutput{dir: dir}
}

// Name implements RunSink
func (o *LocalOutput) Name() string {
	return "local"
}

// Store writes the summary and parsed records files, replacing previous ones
func (o *LocalOutput) Store(_ context.Context, report *RunReport) error {
	if err := os.MkdirAll(o.dir, 0o750); err != nil {
		return fmt.Errorf("failed to create output directory %s: %w", o.dir, err)
	}

	builder := NewReportBuilder(report.Window)

	summary, err := builder.SummaryCSV(report.Summaries)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(o.dir, SummaryFileName), summary, 0o600); err != nil {
		return fmt.Errorf("failed to write summary report: %w", err)
	}

	parsed, err := builder.ParsedLinesCSV(report.Lines)
	if err != nil {
		return err
	}
	if err := os.WriteFile(filepath.Join(o.dir, ParsedLinesFileName), parsed, 0o600); err != nil {
		return fmt.Errorf("failed to write parsed records: %w", err)
	}

	return nil
}
