package sentinel

import (
	"sort"
	"time"
)

// ClientWindow is the time-ordered sequence of one client's records
type ClientWindow struct {
	ClientIP string
	Records  []LogRecord
}

// groupByClient partitions records by client IP, keeping input order inside
// each group. Groups are returned ordered by client IP.
func groupByClient(records []LogRecord) []ClientWindow {
	index := make(map[string]int)
	var windows []ClientWindow

	for _, rec := range records {
		i, ok := index[rec.ClientIP]
		if !ok {
			i = len(windows)
			index[rec.ClientIP] = i
			windows = append(windows, ClientWindow{ClientIP: rec.ClientIP})
		}
		windows[i].Records = append(windows[i].Records, rec)
	}

	sort.Slice(windows, func(i, j int) bool {
		return windows[i].ClientIP < windows[j].ClientIP
	})

	return windows
}

// sortByTime orders the records by timestamp. Equal timestamps keep input order.
func (cw *ClientWindow) sortByTime() {
	sort.SliceStable(cw.Records, func(i, j int) bool {
		return cw.Records[i].Timestamp.Before(cw.Records[j].Timestamp)
	})
}

// pathCounter is a multiset of paths
type pathCounter map[string]int

func (pc pathCounter) add(path string) {
	pc[path]++
}

func (pc pathCounter) remove(path string) {
	if pc[path] <= 1 {
		delete(pc, path)
		return
	}
	pc[path]--
}

func (pc pathCounter) distinct() int {
	return len(pc)
}

// windowScan is the result of a sliding window pass over one client
type windowScan struct {
	maxDistinct int
	triggered   bool
}

// scanWindows slides a window of the given width over time-ordered records.
// The window ending at record r holds every record no older than width before r.
// The distinct path count is maintained incrementally, so the pass is linear.
// triggered latches once a window holds threshold distinct paths; with
// stopOnTrigger the pass ends there.
func scanWindows(records []LogRecord, width time.Duration, threshold int, stopOnTrigger bool) windowScan {
	var result windowScan
	counter := make(pathCounter)
	left := 0

	for right := range records {
		counter.add(records[right].Path)

		for left < right && records[right].Timestamp.Sub(records[left].Timestamp) > width {
			counter.remove(records[left].Path)
			left++
		}

		distinct := counter.distinct()
		if distinct > result.maxDistinct {
			result.maxDistinct = distinct
		}

		if distinct >= threshold {
			result.triggered = true
			if stopOnTrigger {
				break
			}
		}
	}

	return result
}

// countDistinctPaths counts unique paths over all records
func countDistinctPaths(records []LogRecord) int {
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		seen[rec.Path] = struct{}{}
	}
	return len(seen)
}
