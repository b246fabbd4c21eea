package sentinel

import "time"

// LogRecord is one "script not found" event that can be placed in time order.
// It only exists when timestamp, client address and script path were all present.
type LogRecord struct {
	Timestamp  time.Time `ch:"timestamp"`
	ClientIP   string    `ch:"clientIP"`   // grouping key
	Path       string    `ch:"script"`     // distinctness dimension
	ClientPort int       `ch:"clientPort"` // informational only
}

// ParsedLine is a structural match of an error log line.
// TimestampValid is false when the bracketed time did not follow TimestampLayout;
// such lines are kept for export but never reach the detector.
type ParsedLine struct {
	Timestamp      time.Time
	TimeRaw        string
	ClientIP       string
	Path           string
	PID            int
	TID            int
	ClientPort     int
	TimestampValid bool
}

// Record returns the detector input for the line, if its timestamp parsed.
func (pl ParsedLine) Record() (LogRecord, bool) {
	if !pl.TimestampValid {
		return LogRecord{}, false
	}
	return LogRecord{
		Timestamp:  pl.Timestamp,
		ClientIP:   pl.ClientIP,
		Path:       pl.Path,
		ClientPort: pl.ClientPort,
	}, true
}

// Records extracts the detector input from parsed lines, keeping their order.
func Records(lines []ParsedLine) []LogRecord {
	records := make([]LogRecord, 0, len(lines))
	for _, line := range lines {
		if rec, ok := line.Record(); ok {
			records = append(records, rec)
		}
	}
	return records
}
