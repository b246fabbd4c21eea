package sentinel

import "sort"

// DetectionRule names the rule that classified a client as a scanner
type DetectionRule string

const (
	// RuleNone means the client was not classified as a scanner
	RuleNone DetectionRule = "none"
	// RuleBurst is the primary rule: too many distinct paths inside one window
	RuleBurst DetectionRule = "burst"
	// RuleCumulative is the secondary rule: many requests over a broad set of paths
	RuleCumulative DetectionRule = "cumulative"
)

// ScannerSummary is the detection outcome for one client identity
type ScannerSummary struct {
	ClientIP            string        `json:"client_ip"`
	Rule                DetectionRule `json:"rule"`
	TotalRequests       int           `json:"total_requests"`
	DistinctPaths       int           `json:"distinct_paths"`
	MaxDistinctInWindow int           `json:"max_distinct_in_window"`
	IsScanner           bool          `json:"is_scanner"`
}

// RankSummaries returns the summaries most suspicious first:
// scanners before others, then by distinct paths and total requests, descending.
// Remaining ties are ordered by client IP.
func RankSummaries(summaries []ScannerSummary) []ScannerSummary {
	ranked := make([]ScannerSummary, len(summaries))
	copy(ranked, summaries)

	sort.SliceStable(ranked, func(i, j int) bool {
		a, b := ranked[i], ranked[j]
		if a.IsScanner != b.IsScanner {
			return a.IsScanner
		}
		if a.DistinctPaths != b.DistinctPaths {
			return a.DistinctPaths > b.DistinctPaths
		}
		if a.TotalRequests != b.TotalRequests {
			return a.TotalRequests > b.TotalRequests
		}
		return a.ClientIP < b.ClientIP
	})

	return ranked
}

// CountScanners returns how many summaries are classified as scanners
func CountScanners(summaries []ScannerSummary) int {
	n := 0
	for _, s := range summaries {
		if s.IsScanner {
			n++
		}
	}
	return n
}
