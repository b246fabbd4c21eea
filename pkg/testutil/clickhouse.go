package testutil

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/scality/scan-sentinel/pkg/clickhouse"
	"github.com/scality/scan-sentinel/pkg/util"
)

// ClickHouseURLEnvVar enables the ClickHouse specs when set
const ClickHouseURLEnvVar = "SCAN_SENTINEL_CLICKHOUSE_URL"

// ClickHouseTestHelper provides utilities for testing with ClickHouse
type ClickHouseTestHelper struct {
	Client *clickhouse.Client
}

// ClickHouseHosts returns the test ClickHouse hosts, or nil when none is configured
func ClickHouseHosts() []string {
	return util.ParseCommaSeparatedHosts(os.Getenv(ClickHouseURLEnvVar))
}

// NewClickHouseTestHelper connects to the test ClickHouse with a dedicated database
func NewClickHouseTestHelper(ctx context.Context, database string) (*ClickHouseTestHelper, error) {
	hosts := ClickHouseHosts()
	if len(hosts) == 0 {
		return nil, fmt.Errorf("%s is not set", ClickHouseURLEnvVar)
	}

	client, err := clickhouse.NewClient(ctx, clickhouse.Config{
		Hosts:    hosts,
		Database: database,
		Username: "default",
		Timeout:  10 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to test ClickHouse: %w", err)
	}

	return &ClickHouseTestHelper{Client: client}, nil
}

// CountRows returns the number of rows of a table in the helper's database
func (h *ClickHouseTestHelper) CountRows(ctx context.Context, table string) (uint64, error) {
	var count uint64
	query := fmt.Sprintf("SELECT count() FROM %s.%s", h.Client.Database(), table)
	if err := h.Client.QueryRow(ctx, query).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count rows of %s: %w", table, err)
	}
	return count, nil
}

// DropDatabase removes the helper's database and all its tables
func (h *ClickHouseTestHelper) DropDatabase(ctx context.Context) error {
	return h.Client.Exec(ctx, fmt.Sprintf("DROP DATABASE IF EXISTS %s", h.Client.Database()))
}

// Close closes the ClickHouse connection
func (h *ClickHouseTestHelper) Close() error {
	return h.Client.Close()
}
