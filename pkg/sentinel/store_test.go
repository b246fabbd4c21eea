package sentinel_test

import (
	"context"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/scality/scan-sentinel/pkg/clickhouse"
	"github.com/scality/scan-sentinel/pkg/sentinel"
	"github.com/scality/scan-sentinel/pkg/testutil"
)

var _ = Describe("ClickHouseStore", func() {
	var (
		ctx    context.Context
		helper *testutil.ClickHouseTestHelper
		store  *sentinel.ClickHouseStore
	)

	BeforeEach(func() {
		if len(testutil.ClickHouseHosts()) == 0 {
			Skip(testutil.ClickHouseURLEnvVar + " not set")
		}
		ctx = context.Background()

		var err error
		helper, err = testutil.NewClickHouseTestHelper(ctx, "scan_sentinel_store_test")
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(func() {
			_ = helper.DropDatabase(ctx)
			_ = helper.Close()
		})

		store = sentinel.NewClickHouseStore(helper.Client, newTestLogger())
		Expect(store.EnsureSchema(ctx)).To(Succeed())
	})

	It("should create the schema idempotently", func() {
		Expect(store.EnsureSchema(ctx)).To(Succeed())
	})

	It("should insert events and summaries", func() {
		report := sampleReport()
		Expect(store.Store(ctx, report)).To(Succeed())

		events, err := helper.CountRows(ctx, clickhouse.TableScriptNotFoundEvents)
		Expect(err).NotTo(HaveOccurred())
		Expect(events).To(Equal(uint64(len(report.Records))))

		summaries, err := helper.CountRows(ctx, clickhouse.TableScannerSummaries)
		Expect(err).NotTo(HaveOccurred())
		Expect(summaries).To(Equal(uint64(len(report.Summaries))))
	})

	It("should skip empty runs", func() {
		Expect(store.Store(ctx, &sentinel.RunReport{RunID: "empty"})).To(Succeed())

		summaries, err := helper.CountRows(ctx, clickhouse.TableScannerSummaries)
		Expect(err).NotTo(HaveOccurred())
		Expect(summaries).To(BeZero())
	})
})
