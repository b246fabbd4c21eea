package clickhouse

// DatabaseName is the default ClickHouse database holding detection data
const DatabaseName = "scan_sentinel"

// Table names
const (
	// TableScriptNotFoundEvents stores every parsed "script not found" record (MergeTree)
	TableScriptNotFoundEvents = "script_not_found_events"

	// TableScannerSummaries stores one row per client and detection run (MergeTree)
	TableScannerSummaries = "scanner_summaries"
)
