package sentinel

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/scality/scan-sentinel/pkg/clickhouse"
)

// ClickHouseStore persists run events and summaries into ClickHouse
type ClickHouseStore struct {
	client *clickhouse.Client
	logger *slog.Logger
}

// NewClickHouseStore creates a ClickHouse sink
func NewClickHouseStore(client *clickhouse.Client, logger *slog.Logger) *ClickHouseStore {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClickHouseStore{
		client: client,
		logger: logger.With("component", "clickhouse", "database", client.Database()),
	}
}

// Name implements RunSink
func (s *ClickHouseStore) Name() string {
	return "clickhouse"
}

// EnsureSchema creates the database and tables if they do not exist
func (s *ClickHouseStore) EnsureSchema(ctx context.Context) error {
	db := s.client.Database()

	if err := s.client.Exec(ctx, fmt.Sprintf("CREATE DATABASE IF NOT EXISTS %s", db)); err != nil {
		return fmt.Errorf("failed to create database: %w", err)
	}

	eventsTableSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s
		(
			runID       String,
			timestamp   DateTime64(6, 'UTC'),
			clientIP    String,
			clientPort  UInt16,
			script      String
		)
		ENGINE = MergeTree()
		PARTITION BY toStartOfDay(timestamp)
		ORDER BY (clientIP, timestamp)
	`, db, clickhouse.TableScriptNotFoundEvents)
	if err := s.client.Exec(ctx, eventsTableSQL); err != nil {
		return fmt.Errorf("failed to create events table: %w", err)
	}

	summariesTableSQL := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s.%s
		(
			runID                String,
			generatedAt          DateTime64(3, 'UTC'),
			clientIP             String,
			totalRequests        UInt32,
			distinctPaths        UInt32,
			maxDistinctInWindow  UInt32,
			windowSeconds        Float64,
			isScanner            Bool,
			rule                 LowCardinality(String)
		)
		ENGINE = MergeTree()
		ORDER BY (generatedAt, clientIP)
	`, db, clickhouse.TableScannerSummaries)
	if err := s.client.Exec(ctx, summariesTableSQL); err != nil {
		return fmt.Errorf("failed to create summaries table: %w", err)
	}

	return nil
}

// Store inserts the run's records and summaries in two batches
func (s *ClickHouseStore) Store(ctx context.Context, report *RunReport) error {
	db := s.client.Database()

	if len(report.Records) > 0 {
		batch, err := s.client.PrepareBatch(ctx, fmt.Sprintf(
			"INSERT INTO %s.%s (runID, timestamp, clientIP, clientPort, script)",
			db, clickhouse.TableScriptNotFoundEvents))
		if err != nil {
			return fmt.Errorf("failed to prepare events batch: %w", err)
		}
		for _, rec := range report.Records {
			//nolint:gosec // Ports are validated to 16 bits by the parser
			if err := batch.Append(report.RunID, rec.Timestamp, rec.ClientIP, uint16(rec.ClientPort), rec.Path); err != nil {
				_ = batch.Abort()
				return fmt.Errorf("failed to append event: %w", err)
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("failed to send events batch: %w", err)
		}
	}

	if len(report.Summaries) > 0 {
		batch, err := s.client.PrepareBatch(ctx, fmt.Sprintf(
			"INSERT INTO %s.%s (runID, generatedAt, clientIP, totalRequests, distinctPaths, maxDistinctInWindow, windowSeconds, isScanner, rule)",
			db, clickhouse.TableScannerSummaries))
		if err != nil {
			return fmt.Errorf("failed to prepare summaries batch: %w", err)
		}
		for _, sum := range report.Summaries {
			//nolint:gosec // Counts are bounded by the number of input lines
			err := batch.Append(
				report.RunID,
				report.GeneratedAt,
				sum.ClientIP,
				uint32(sum.TotalRequests),
				uint32(sum.DistinctPaths),
				uint32(sum.MaxDistinctInWindow),
				report.Window.Seconds(),
				sum.IsScanner,
				string(sum.Rule),
			)
			if err != nil {
				_ = batch.Abort()
				return fmt.Errorf("failed to append summary for %s: %w", sum.ClientIP, err)
			}
		}
		if err := batch.Send(); err != nil {
			return fmt.Errorf("failed to send summaries batch: %w", err)
		}
	}

	s.logger.Debug("stored run in clickhouse",
		"runID", report.RunID,
		"nRecords", len(report.Records),
		"nSummaries", len(report.Summaries))
	return nil
}
