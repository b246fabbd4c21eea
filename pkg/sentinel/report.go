package sentinel

import (
	"bytes"
	"crypto/rand"
	"encoding/csv"
	"encoding/hex"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// parsedTimeLayout formats valid timestamps in the parsed-records export
const parsedTimeLayout = "2006-01-02 15:04:05.000000"

// ReportObject is a summary report ready to be stored
type ReportObject struct {
	Key     string
	Content []byte
}

// ReportBuilder renders run results as CSV
type ReportBuilder struct {
	window time.Duration
}

// NewReportBuilder creates a report builder for a given detection window
func NewReportBuilder(window time.Duration) *ReportBuilder {
	return &ReportBuilder{window: window}
}

// Build renders the summaries as a report object.
// The key uses the generation time in the format:
// <prefix>YYYY-mm-DD-HH-MM-SS-UniqueString.csv
func (b *ReportBuilder) Build(prefix string, generatedAt time.Time, summaries []ScannerSummary) (ReportObject, error) {
	unique, err := uniqueString()
	if err != nil {
		return ReportObject{}, fmt.Errorf("failed to generate key: %w", err)
	}

	content, err := b.SummaryCSV(summaries)
	if err != nil {
		return ReportObject{}, err
	}

	return ReportObject{
		Key:     fmt.Sprintf("%s%s-%s.csv", prefix, generatedAt.UTC().Format("2006-01-02-15-04-05"), unique),
		Content: content,
	}, nil
}

// SummaryHeader returns the summary CSV header.
// The window column is named after the window width, e.g. max_distinct_in_10s.
func (b *ReportBuilder) SummaryHeader() []string {
	return []string{
		"client_ip",
		"total_requests",
		"distinct_missing_files",
		fmt.Sprintf("max_distinct_in_%ss", strconv.FormatFloat(b.window.Seconds(), 'f', -1, 64)),
		"is_scanner",
	}
}

// SummaryCSV renders one row per client, most suspicious first
func (b *ReportBuilder) SummaryCSV(summaries []ScannerSummary) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(b.SummaryHeader()); err != nil {
		return nil, fmt.Errorf("failed to write summary header: %w", err)
	}

	for _, s := range RankSummaries(summaries) {
		row := []string{
			s.ClientIP,
			strconv.Itoa(s.TotalRequests),
			strconv.Itoa(s.DistinctPaths),
			strconv.Itoa(s.MaxDistinctInWindow),
			strconv.FormatBool(s.IsScanner),
		}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write summary row for %s: %w", s.ClientIP, err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush summary report: %w", err)
	}
	return buf.Bytes(), nil
}

// ParsedLinesCSV renders every structural match in input order.
// time_dt is empty when the raw timestamp could not be parsed.
func (b *ReportBuilder) ParsedLinesCSV(lines []ParsedLine) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"time_raw", "time_dt", "client_ip", "client_port", "script"}); err != nil {
		return nil, fmt.Errorf("failed to write parsed records header: %w", err)
	}

	for _, line := range lines {
		timeDT := ""
		if line.TimestampValid {
			timeDT = line.Timestamp.Format(parsedTimeLayout)
		}
		row := []string{line.TimeRaw, timeDT, line.ClientIP, strconv.Itoa(line.ClientPort), line.Path}
		if err := w.Write(row); err != nil {
			return nil, fmt.Errorf("failed to write parsed record: %w", err)
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("failed to flush parsed records: %w", err)
	}
	return buf.Bytes(), nil
}

// uniqueString returns 16 random uppercase hex characters
func uniqueString() (string, error) {
	randomBytes := make([]byte, 8)
	if _, err := rand.Read(randomBytes); err != nil {
		return "", fmt.Errorf("failed to generate random suffix: %w", err)
	}
	return strings.ToUpper(hex.EncodeToString(randomBytes)), nil
}
