package sentinel_test

import (
	"context"
	"errors"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/scality/scan-sentinel/pkg/sentinel"
)

var _ = Describe("RetryPolicy", func() {
	var (
		ctx    context.Context
		policy sentinel.RetryPolicy
	)

	BeforeEach(func() {
		ctx = context.Background()
		policy = sentinel.RetryPolicy{
			MaxRetries:          3,
			InitialBackoff:      time.Millisecond,
			MaxBackoff:          4 * time.Millisecond,
			BackoffJitterFactor: 0.2,
		}
	})

	It("should succeed after transient failures", func() {
		attempts := 0
		err := policy.Do(ctx, func() error {
			attempts++
			if attempts < 3 {
				return errors.New("connection reset")
			}
			return nil
		}, nil, "upload", newTestLogger())

		Expect(err).NotTo(HaveOccurred())
		Expect(attempts).To(Equal(3))
	})

	It("should give up after max retries", func() {
		attempts := 0
		err := policy.Do(ctx, func() error {
			attempts++
			return errors.New("connection reset")
		}, nil, "upload", newTestLogger())

		Expect(err).To(HaveOccurred())
		Expect(err.Error()).To(ContainSubstring("max retries (3) exceeded for upload"))
		Expect(attempts).To(Equal(4))
	})

	It("should not retry permanent errors", func() {
		attempts := 0
		permanent := errors.New("api error AccessDenied: Access Denied")
		err := policy.Do(ctx, func() error {
			attempts++
			return permanent
		}, func(err error) bool {
			return !sentinel.IsPermanentError(err)
		}, "upload", newTestLogger())

		Expect(err).To(MatchError(permanent))
		Expect(err.Error()).To(ContainSubstring("permanent error in upload"))
		Expect(attempts).To(Equal(1))
	})

	It("should stop waiting when the context ends", func() {
		policy.InitialBackoff = time.Hour
		policy.MaxBackoff = time.Hour

		timeoutCtx, cancel := context.WithTimeout(ctx, 20*time.Millisecond)
		defer cancel()

		err := policy.Do(timeoutCtx, func() error {
			return errors.New("connection reset")
		}, nil, "upload", newTestLogger())
		Expect(err).To(MatchError(context.DeadlineExceeded))
	})

	Describe("IsPermanentError", func() {
		DescribeTable("should classify errors",
			func(err error, permanent bool) {
				Expect(sentinel.IsPermanentError(err)).To(Equal(permanent))
			},
			Entry("nil", nil, false),
			Entry("missing bucket", errors.New("operation error S3: PutObject, api error NoSuchBucket"), true),
			Entry("bad credentials", errors.New("api error InvalidAccessKeyId"), true),
			Entry("denied", errors.New("api error AccessDenied"), true),
			Entry("timeout", errors.New("i/o timeout"), false),
			Entry("server error", errors.New("api error InternalError: 500"), false),
		)
	})
})
