package upstream_test

import (
	"net/http"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mvn-raffle/photoproxy/pkg/upstream"
)

var _ = Describe("Limiter", func() {
	var (
		now time.Time
		lim *upstream.Limiter
	)

	BeforeEach(func() {
		now = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
		lim = upstream.NewLimiter(60, 2)
		upstream.SetLimiterClock(lim, func() time.Time { return now })
	})

	It("should allow the burst and then refuse with a wait hint", func() {
		ok, _ := lim.Allow()
		Expect(ok).To(BeTrue())
		ok, _ = lim.Allow()
		Expect(ok).To(BeTrue())

		ok, wait := lim.Allow()
		Expect(ok).To(BeFalse())
		Expect(wait).To(BeNumerically("~", time.Second, 10*time.Millisecond))

		now = now.Add(time.Second)
		ok, _ = lim.Allow()
		Expect(ok).To(BeTrue())
	})

	It("should refuse everything while blocked", func() {
		lim.Block(30 * time.Second)

		ok, wait := lim.Allow()
		Expect(ok).To(BeFalse())
		Expect(wait).To(Equal(30 * time.Second))
		Expect(lim.Status().Blocked).To(BeTrue())

		now = now.Add(31 * time.Second)
		ok, _ = lim.Allow()
		Expect(ok).To(BeTrue())
		Expect(lim.Status().Blocked).To(BeFalse())
	})

	It("should not shorten an existing block", func() {
		lim.Block(time.Minute)
		lim.Block(time.Second)
		Expect(lim.Status().BlockedUntil).To(Equal(now.Add(time.Minute)))
	})

	It("should clear blocks and refill on Reset", func() {
		lim.Allow()
		lim.Allow()
		lim.Block(time.Hour)

		lim.Reset()

		status := lim.Status()
		Expect(status.Blocked).To(BeFalse())
		Expect(status.Tokens).To(BeNumerically("==", 2))
		ok, _ := lim.Allow()
		Expect(ok).To(BeTrue())
	})

	It("should not limit when per-minute is zero", func() {
		unlimited := upstream.NewLimiter(0, 1)
		for i := 0; i < 100; i++ {
			ok, _ := unlimited.Allow()
			Expect(ok).To(BeTrue())
		}
		Expect(unlimited.Status().Tokens).To(BeNumerically("==", 1))
	})
})

var _ = Describe("ParseRetryAfter", func() {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	DescribeTable("values",
		func(header string, expected time.Duration) {
			Expect(upstream.ParseRetryAfter(header, now, time.Minute)).To(Equal(expected))
		},
		Entry("seconds", "120", 2*time.Minute),
		Entry("empty uses default", "", time.Minute),
		Entry("zero uses default", "0", time.Minute),
		Entry("garbage uses default", "soon", time.Minute),
		Entry("http date", now.Add(90*time.Second).Format(http.TimeFormat), 90*time.Second),
		Entry("past http date uses default", now.Add(-time.Hour).Format(http.TimeFormat), time.Minute),
	)
})
