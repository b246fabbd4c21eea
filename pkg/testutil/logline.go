package testutil

import (
	"fmt"
	"time"
)

// errorLogTimeLayout is the Apache error log timestamp format
const errorLogTimeLayout = "Mon Jan _2 15:04:05.000000 2006"

// ScriptNotFoundLine builds an Apache error log line for a missing script
func ScriptNotFoundLine(ts time.Time, clientIP string, clientPort int, path string) string {
	return fmt.Sprintf("[%s] [:error] [pid 1234:tid 139876543210] [client %s:%d] script '%s' not found or unable to stat",
		ts.UTC().Format(errorLogTimeLayout), clientIP, clientPort, path)
}

// ScanBurst builds n lines for one client requesting n distinct scripts, step apart
func ScanBurst(start time.Time, step time.Duration, clientIP string, n int) []string {
	lines := make([]string, 0, n)
	for i := range n {
		lines = append(lines, ScriptNotFoundLine(start.Add(time.Duration(i)*step), clientIP, 40000+i,
			fmt.Sprintf("/var/www/html/probe%02d.php", i)))
	}
	return lines
}
