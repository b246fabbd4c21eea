package sentinel_test

import (
	"context"
	"fmt"
	"math/rand/v2"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/scality/scan-sentinel/pkg/sentinel"
)

var baseTime = time.Date(2025, 9, 29, 14, 0, 0, 0, time.UTC)

func record(offset time.Duration, ip, path string) sentinel.LogRecord {
	return sentinel.LogRecord{
		Timestamp:  baseTime.Add(offset),
		ClientIP:   ip,
		Path:       path,
		ClientPort: 50000,
	}
}

// scenarioRecords mixes a burst scanner, a slow scanner and a benign client
func scenarioRecords() []sentinel.LogRecord {
	var records []sentinel.LogRecord

	// 12 distinct paths within 5 seconds
	for i := range 12 {
		records = append(records, record(time.Duration(i)*400*time.Millisecond, "10.0.0.1", fmt.Sprintf("/probe%d.php", i)))
	}

	// 25 requests over 6 paths spread across 2 minutes
	for i := range 25 {
		records = append(records, record(time.Duration(i)*5*time.Second, "10.0.0.2", fmt.Sprintf("/admin%d.php", i%6)))
	}

	// 3 requests, 3 paths
	for i := range 3 {
		records = append(records, record(time.Duration(i)*time.Second, "10.0.0.3", fmt.Sprintf("/favicon%d.php", i)))
	}

	return records
}

func summariesByIP(summaries []sentinel.ScannerSummary) map[string]sentinel.ScannerSummary {
	byIP := make(map[string]sentinel.ScannerSummary, len(summaries))
	for _, s := range summaries {
		byIP[s.ClientIP] = s
	}
	return byIP
}

func randomRecords(rng *rand.Rand, n int) []sentinel.LogRecord {
	records := make([]sentinel.LogRecord, 0, n)
	for range n {
		records = append(records, record(
			time.Duration(rng.IntN(120_000))*time.Millisecond,
			fmt.Sprintf("172.16.0.%d", rng.IntN(5)),
			fmt.Sprintf("/p%d.php", rng.IntN(30)),
		))
	}
	return records
}

var _ = Describe("Detector", func() {
	var (
		ctx context.Context
		cfg sentinel.DetectorConfig
	)

	BeforeEach(func() {
		ctx = context.Background()
		cfg = sentinel.DefaultDetectorConfig()
		cfg.Logger = newTestLogger()
	})

	detect := func(records []sentinel.LogRecord) []sentinel.ScannerSummary {
		detector, err := sentinel.NewDetector(cfg)
		Expect(err).NotTo(HaveOccurred())

		summaries, err := detector.Detect(ctx, records)
		Expect(err).NotTo(HaveOccurred())
		return summaries
	}

	Describe("NewDetector", func() {
		DescribeTable("should reject invalid parameters",
			func(mutate func(*sentinel.DetectorConfig)) {
				mutate(&cfg)
				_, err := sentinel.NewDetector(cfg)
				Expect(err).To(MatchError(sentinel.ErrInvalidConfig))
			},
			Entry("zero window", func(c *sentinel.DetectorConfig) { c.Window = 0 }),
			Entry("negative window", func(c *sentinel.DetectorConfig) { c.Window = -time.Second }),
			Entry("zero threshold", func(c *sentinel.DetectorConfig) { c.DistinctThreshold = 0 }),
			Entry("zero min requests", func(c *sentinel.DetectorConfig) { c.MinRequests = 0 }),
			Entry("negative workers", func(c *sentinel.DetectorConfig) { c.NumWorkers = -1 }),
		)

		It("should accept the defaults", func() {
			detector, err := sentinel.NewDetector(sentinel.DefaultDetectorConfig())
			Expect(err).NotTo(HaveOccurred())
			Expect(detector.Window()).To(Equal(10 * time.Second))
		})
	})

	Describe("Detect", func() {
		It("should classify the reference scenario", func() {
			summaries := detect(scenarioRecords())
			Expect(summaries).To(HaveLen(3))

			byIP := summariesByIP(summaries)

			Expect(byIP["10.0.0.1"]).To(Equal(sentinel.ScannerSummary{
				ClientIP:            "10.0.0.1",
				Rule:                sentinel.RuleBurst,
				TotalRequests:       12,
				DistinctPaths:       12,
				MaxDistinctInWindow: 12,
				IsScanner:           true,
			}))

			Expect(byIP["10.0.0.2"].IsScanner).To(BeTrue())
			Expect(byIP["10.0.0.2"].Rule).To(Equal(sentinel.RuleCumulative))
			Expect(byIP["10.0.0.2"].TotalRequests).To(Equal(25))
			Expect(byIP["10.0.0.2"].DistinctPaths).To(Equal(6))
			Expect(byIP["10.0.0.2"].MaxDistinctInWindow).To(BeNumerically("<", 10))

			Expect(byIP["10.0.0.3"]).To(Equal(sentinel.ScannerSummary{
				ClientIP:            "10.0.0.3",
				Rule:                sentinel.RuleNone,
				TotalRequests:       3,
				DistinctPaths:       3,
				MaxDistinctInWindow: 3,
				IsScanner:           false,
			}))
		})

		It("should order summaries by client IP", func() {
			summaries := detect(scenarioRecords())
			Expect(summaries[0].ClientIP).To(Equal("10.0.0.1"))
			Expect(summaries[1].ClientIP).To(Equal("10.0.0.2"))
			Expect(summaries[2].ClientIP).To(Equal("10.0.0.3"))
		})

		It("should return no summaries for empty input", func() {
			summaries := detect(nil)
			Expect(summaries).To(BeEmpty())
		})

		It("should fail on a canceled context", func() {
			detector, err := sentinel.NewDetector(cfg)
			Expect(err).NotTo(HaveOccurred())

			canceled, cancel := context.WithCancel(ctx)
			cancel()

			_, err = detector.Detect(canceled, scenarioRecords())
			Expect(err).To(MatchError(context.Canceled))
		})

		Context("at the threshold boundary", func() {
			burst := func(n int) []sentinel.LogRecord {
				var records []sentinel.LogRecord
				for i := range n {
					records = append(records, record(time.Duration(i)*time.Second/2, "10.9.9.9", fmt.Sprintf("/x%d.php", i)))
				}
				return records
			}

			It("should flag a client reaching the threshold", func() {
				summaries := detect(burst(10))
				Expect(summaries[0].MaxDistinctInWindow).To(Equal(10))
				Expect(summaries[0].IsScanner).To(BeTrue())
				Expect(summaries[0].Rule).To(Equal(sentinel.RuleBurst))
			})

			It("should not flag a client one below the threshold", func() {
				summaries := detect(burst(9))
				Expect(summaries[0].MaxDistinctInWindow).To(Equal(9))
				Expect(summaries[0].IsScanner).To(BeFalse())
				Expect(summaries[0].Rule).To(Equal(sentinel.RuleNone))
			})
		})

		Context("at the window boundary", func() {
			edge := func(lastOffset time.Duration) []sentinel.LogRecord {
				var records []sentinel.LogRecord
				for i := range 9 {
					records = append(records, record(time.Duration(i)*time.Second, "10.8.8.8", fmt.Sprintf("/y%d.php", i)))
				}
				return append(records, record(lastOffset, "10.8.8.8", "/last.php"))
			}

			It("should include a record exactly one window after the first", func() {
				summaries := detect(edge(10 * time.Second))
				Expect(summaries[0].MaxDistinctInWindow).To(Equal(10))
				Expect(summaries[0].IsScanner).To(BeTrue())
			})

			It("should exclude a record just over one window after the first", func() {
				summaries := detect(edge(10*time.Second + time.Microsecond))
				Expect(summaries[0].MaxDistinctInWindow).To(Equal(9))
				Expect(summaries[0].IsScanner).To(BeFalse())
			})
		})

		It("should count repeated paths once per window", func() {
			var records []sentinel.LogRecord
			for i := range 30 {
				records = append(records, record(time.Duration(i)*100*time.Millisecond, "10.7.7.7", "/same.php"))
			}
			summaries := detect(records)
			Expect(summaries[0].TotalRequests).To(Equal(30))
			Expect(summaries[0].DistinctPaths).To(Equal(1))
			Expect(summaries[0].MaxDistinctInWindow).To(Equal(1))
			// 30 requests but fewer than threshold/2 distinct paths
			Expect(summaries[0].IsScanner).To(BeFalse())
		})

		It("should apply the cumulative rule at min requests and half the threshold", func() {
			var records []sentinel.LogRecord
			for i := range 20 {
				records = append(records, record(time.Duration(i)*time.Minute, "10.6.6.6", fmt.Sprintf("/z%d.php", i%5)))
			}
			summaries := detect(records)
			Expect(summaries[0].IsScanner).To(BeTrue())
			Expect(summaries[0].Rule).To(Equal(sentinel.RuleCumulative))

			summaries = detect(records[:19])
			Expect(summaries[0].IsScanner).To(BeFalse())
		})

		It("should stop scanning once flagged when configured", func() {
			cfg.StopOnDetection = true
			summaries := detect(scenarioRecords())

			byIP := summariesByIP(summaries)
			Expect(byIP["10.0.0.1"].IsScanner).To(BeTrue())
			Expect(byIP["10.0.0.1"].MaxDistinctInWindow).To(Equal(10))
			Expect(byIP["10.0.0.2"].IsScanner).To(BeTrue())
			Expect(byIP["10.0.0.3"].IsScanner).To(BeFalse())
		})

		It("should not depend on the number of workers", func() {
			cfg.NumWorkers = 1
			sequential := detect(scenarioRecords())

			cfg.NumWorkers = 16
			Expect(detect(scenarioRecords())).To(Equal(sequential))
		})
	})

	Describe("Properties", func() {
		var rng *rand.Rand

		BeforeEach(func() {
			rng = rand.New(rand.NewPCG(42, 7)) //nolint:gosec // Deterministic test data
		})

		It("should keep distinct paths above the in-window maximum", func() {
			records := randomRecords(rng, 500)
			expectedTotals := make(map[string]int)
			for _, r := range records {
				expectedTotals[r.ClientIP]++
			}

			summaries := detect(records)
			Expect(summaries).To(HaveLen(len(expectedTotals)))
			for _, s := range summaries {
				Expect(s.DistinctPaths).To(BeNumerically(">=", s.MaxDistinctInWindow))
				Expect(s.TotalRequests).To(Equal(expectedTotals[s.ClientIP]))
			}
		})

		It("should not depend on input order", func() {
			records := randomRecords(rng, 500)
			expected := detect(records)

			for range 5 {
				shuffled := append([]sentinel.LogRecord(nil), records...)
				rng.Shuffle(len(shuffled), func(i, j int) {
					shuffled[i], shuffled[j] = shuffled[j], shuffled[i]
				})
				Expect(detect(shuffled)).To(Equal(expected))
			}
		})

		It("should not decrease the in-window maximum as the window widens", func() {
			records := randomRecords(rng, 300)

			previous := map[string]int{}
			for _, window := range []time.Duration{time.Second, 5 * time.Second, 10 * time.Second, time.Minute, time.Hour} {
				cfg.Window = window
				for _, s := range detect(records) {
					Expect(s.MaxDistinctInWindow).To(BeNumerically(">=", previous[s.ClientIP]),
						"client %s window %s", s.ClientIP, window)
					previous[s.ClientIP] = s.MaxDistinctInWindow
				}
			}
		})
	})
})
