package sentinel_test

import (
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/scality/scan-sentinel/pkg/sentinel"
)

var _ = Describe("ScannerSummary", func() {
	Describe("RankSummaries", func() {
		It("should put scanners first, then by distinct paths and total requests", func() {
			summaries := []sentinel.ScannerSummary{
				{ClientIP: "10.0.0.5", DistinctPaths: 40, TotalRequests: 40},
				{ClientIP: "10.0.0.4", DistinctPaths: 6, TotalRequests: 25, IsScanner: true},
				{ClientIP: "10.0.0.3", DistinctPaths: 12, TotalRequests: 12, IsScanner: true},
				{ClientIP: "10.0.0.2", DistinctPaths: 12, TotalRequests: 30, IsScanner: true},
				{ClientIP: "10.0.0.1", DistinctPaths: 1, TotalRequests: 1},
			}

			ranked := sentinel.RankSummaries(summaries)

			ips := make([]string, 0, len(ranked))
			for _, s := range ranked {
				ips = append(ips, s.ClientIP)
			}
			Expect(ips).To(Equal([]string{"10.0.0.2", "10.0.0.3", "10.0.0.4", "10.0.0.5", "10.0.0.1"}))
		})

		It("should break full ties by client IP", func() {
			ranked := sentinel.RankSummaries([]sentinel.ScannerSummary{
				{ClientIP: "10.0.0.9", DistinctPaths: 2, TotalRequests: 2},
				{ClientIP: "10.0.0.10", DistinctPaths: 2, TotalRequests: 2},
			})
			Expect(ranked[0].ClientIP).To(Equal("10.0.0.10"))
			Expect(ranked[1].ClientIP).To(Equal("10.0.0.9"))
		})

		It("should not modify its input", func() {
			summaries := []sentinel.ScannerSummary{
				{ClientIP: "10.0.0.1"},
				{ClientIP: "10.0.0.2", IsScanner: true},
			}
			_ = sentinel.RankSummaries(summaries)
			Expect(summaries[0].ClientIP).To(Equal("10.0.0.1"))
		})
	})

	Describe("CountScanners", func() {
		It("should count flagged clients", func() {
			Expect(sentinel.CountScanners(nil)).To(Equal(0))
			Expect(sentinel.CountScanners([]sentinel.ScannerSummary{
				{IsScanner: true}, {}, {IsScanner: true},
			})).To(Equal(2))
		})
	})
})
