package sentinel

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"regexp"
	"strconv"
	"sync"
	"time"
)

// TimestampLayout is the Apache error log time format, e.g. "Mon Sep 29 14:38:42.192842 2025"
const TimestampLayout = "Mon Jan _2 15:04:05.000000 2006"

const (
	// DefaultParserWorkers is the default number of parallel line parsers
	DefaultParserWorkers = 4

	// maxLineBytes bounds a single input line
	maxLineBytes = 1024 * 1024

	// cancellationCheckInterval is how many lines a parse worker handles between context checks
	cancellationCheckInterval = 1024
)

// scriptNotFoundRe matches, in order: [time] [:error] [pid N:tid N] [client IP:PORT] script 'PATH'.
// Anything after the quoted path ("not found" or nothing) is ignored.
var scriptNotFoundRe = regexp.MustCompile(
	`\[([^\]]+)\]\s*\[:error\]\s*\[pid\s+(\d+):tid\s+(\d+)\]\s*\[client\s+([\d.]+):(\d+)\]\s*script\s+'([^']+)'`,
)

// ParseStats counts what happened to the input lines of a run
type ParseStats struct {
	LinesRead           int `json:"lines_read"`
	LinesMatched        int `json:"lines_matched"`
	MalformedTimestamps int `json:"malformed_timestamps"`
	Records             int `json:"records"`
}

// ParseLine extracts a "script not found" event from one error log line.
// It returns false for lines that do not carry every bracketed group and the
// quoted script path; this is the normal outcome for most lines of a log.
func ParseLine(line string) (ParsedLine, bool) {
	m := scriptNotFoundRe.FindStringSubmatch(line)
	if m == nil {
		return ParsedLine{}, false
	}

	pid, err := strconv.Atoi(m[2])
	if err != nil {
		return ParsedLine{}, false
	}
	tid, err := strconv.Atoi(m[3])
	if err != nil {
		return ParsedLine{}, false
	}
	port, err := strconv.ParseUint(m[5], 10, 16)
	if err != nil {
		return ParsedLine{}, false
	}

	parsed := ParsedLine{
		TimeRaw:    m[1],
		ClientIP:   m[4],
		Path:       m[6],
		PID:        pid,
		TID:        tid,
		ClientPort: int(port),
	}

	if ts, err := time.Parse(TimestampLayout, m[1]); err == nil {
		parsed.Timestamp = ts
		parsed.TimestampValid = true
	}

	return parsed, true
}

// ReadLines reads every line of r
func ReadLines(r io.Reader) ([]string, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var lines []string
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read log lines: %w", err)
	}
	return lines, nil
}

// ParseLines parses lines on up to workers goroutines.
// The structural matches are returned in input order, which the detector relies
// on to break timestamp ties.
func ParseLines(ctx context.Context, lines []string, workers int) ([]ParsedLine, ParseStats, error) {
	if workers < 1 {
		workers = 1
	}
	if workers > len(lines) {
		workers = len(lines)
	}

	results := make([]ParsedLine, len(lines))
	matched := make([]bool, len(lines))

	// Contiguous chunks, one per worker
	chunkSize := 0
	if workers > 0 {
		chunkSize = (len(lines) + workers - 1) / workers
	}

	var wg sync.WaitGroup
	for start := 0; start < len(lines); start += chunkSize {
		end := min(start+chunkSize, len(lines))
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := start; i < end; i++ {
				if (i-start)%cancellationCheckInterval == 0 && ctx.Err() != nil {
					return
				}
				results[i], matched[i] = ParseLine(lines[i])
			}
		}()
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, ParseStats{}, err
	}

	stats := ParseStats{LinesRead: len(lines)}
	parsed := make([]ParsedLine, 0, len(lines))
	for i, ok := range matched {
		if !ok {
			continue
		}
		parsed = append(parsed, results[i])
		stats.LinesMatched++
		if results[i].TimestampValid {
			stats.Records++
		} else {
			stats.MalformedTimestamps++
		}
	}

	return parsed, stats, nil
}
