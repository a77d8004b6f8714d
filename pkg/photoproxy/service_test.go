package photoproxy_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/stretchr/testify/mock"

	"github.com/mvn-raffle/photoproxy/pkg/cache"
	"github.com/mvn-raffle/photoproxy/pkg/metrics"
	"github.com/mvn-raffle/photoproxy/pkg/photokey"
	"github.com/mvn-raffle/photoproxy/pkg/photoproxy"
	"github.com/mvn-raffle/photoproxy/pkg/upstream"
	"github.com/mvn-raffle/photoproxy/pkg/vendorauth"
)

var (
	jpeg      = []byte{0xFF, 0xD8, 0xFF, 0xE0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}
	loginPage = []byte("\xEF\xBB\xBF\n  <!DOCTYPE html><html><body>Sign in</body></html>")
)

const vendorURL = "https://mvncorp.kpaehs.com/get-upload?key=abc%2Fdef.jpg"

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, key string, headers http.Header) upstream.Result {
	args := m.Called(ctx, key, headers)
	return args.Get(0).(upstream.Result)
}

type brokenCache struct {
	cache.PhotoCache
	getErr error
	putErr error
}

func (b *brokenCache) Get(ctx context.Context, key string) (cache.Entry, bool, error) {
	if b.getErr != nil {
		return cache.Entry{}, false, b.getErr
	}
	return b.PhotoCache.Get(ctx, key)
}

func (b *brokenCache) Put(ctx context.Context, key string, body []byte, mime string) error {
	if b.putErr != nil {
		return b.putErr
	}
	return b.PhotoCache.Put(ctx, key, body, mime)
}

var _ = Describe("Service", func() {
	var (
		ctx     context.Context
		now     time.Time
		clock   func() time.Time
		auth    *vendorauth.Context
		fetcher *mockFetcher
		photos  *cache.MemoryCache
		svc     *photoproxy.Service
	)

	configured := vendorauth.Credential{SessionCookie: "sess", TenantCookie: "mvncorp", CSRFToken: "csrf"}

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
		clock = func() time.Time { return now }
		auth = vendorauth.NewContext(vendorauth.DefaultSettings(), configured)
		fetcher = &mockFetcher{}
		photos = cache.NewMemoryCache(cache.Options{TTL: time.Hour, Now: clock})
		svc = photoproxy.NewService(photokey.NewExtractor(""), auth, fetcher, photos, metrics.New())
		photoproxy.SetClock(svc, clock)
	})

	expectKind := func(err error, kind error) *photoproxy.Error {
		GinkgoHelper()
		Expect(err).To(MatchError(kind))
		var perr *photoproxy.Error
		Expect(errors.As(err, &perr)).To(BeTrue())
		return perr
	}

	It("should fetch, cache and then serve from cache", func() {
		fetcher.On("Fetch", mock.Anything, "abc/def.jpg", mock.Anything).
			Return(upstream.Result{StatusCode: 200, Body: jpeg, MIMEType: upstream.MIMEJPEG, Outcome: upstream.Success}).
			Once()

		photo, err := svc.Serve(ctx, vendorURL)
		Expect(err).ToNot(HaveOccurred())
		Expect(photo.Key).To(Equal("abc/def.jpg"))
		Expect(photo.Body).To(Equal(jpeg))
		Expect(photo.MIMEType).To(Equal(upstream.MIMEJPEG))
		Expect(photo.CacheStatus).To(Equal(photoproxy.CacheMiss))

		entry, ok, err := photos.Get(ctx, "abc/def.jpg")
		Expect(err).ToNot(HaveOccurred())
		Expect(ok).To(BeTrue())
		Expect(entry.ExpiresAt).To(Equal(now.Add(time.Hour)))

		photo, err = svc.Serve(ctx, "abc/def.jpg")
		Expect(err).ToNot(HaveOccurred())
		Expect(photo.CacheStatus).To(Equal(photoproxy.CacheHit))
		Expect(photo.Body).To(Equal(jpeg))
		fetcher.AssertNumberOfCalls(GinkgoT(), "Fetch", 1)
	})

	It("should send the session headers to the vendor", func() {
		fetcher.On("Fetch", mock.Anything, "abc/def.jpg", mock.MatchedBy(func(h http.Header) bool {
			return h.Get("Cookie") == "6Pphk3dbK4Y-mvncorp=sess; last-subdomain=mvncorp" &&
				h.Get("isc-csrf-token") == "csrf"
		})).Return(upstream.Result{StatusCode: 200, Body: jpeg, Outcome: upstream.Success})

		_, err := svc.Serve(ctx, vendorURL)
		Expect(err).ToNot(HaveOccurred())
		fetcher.AssertExpectations(GinkgoT())
	})

	It("should reject a reference without a key before any other work", func() {
		_, err := svc.Serve(ctx, "https://mvncorp.kpaehs.com/profile?id=7")
		expectKind(err, photoproxy.ErrNoKeyFound)
		fetcher.AssertNotCalled(GinkgoT(), "Fetch", mock.Anything, mock.Anything, mock.Anything)
		Expect(photos.Len()).To(Equal(0))
	})

	It("should reject an unconfigured session without contacting the vendor", func() {
		auth = vendorauth.NewContext(vendorauth.DefaultSettings(), vendorauth.Credential{})
		svc = photoproxy.NewService(photokey.NewExtractor(""), auth, fetcher, photos, nil)

		_, err := svc.Serve(ctx, vendorURL)
		perr := expectKind(err, photoproxy.ErrAuthNotConfigured)
		Expect(perr.Key).To(Equal("abc/def.jpg"))
		Expect(err).To(MatchError(vendorauth.ErrAuthNotConfigured))
		fetcher.AssertNotCalled(GinkgoT(), "Fetch", mock.Anything, mock.Anything, mock.Anything)
	})

	It("should serve a cached photo even without credentials", func() {
		Expect(photos.Put(ctx, "abc/def.jpg", jpeg, upstream.MIMEJPEG)).To(Succeed())
		auth = vendorauth.NewContext(vendorauth.DefaultSettings(), vendorauth.Credential{})
		svc = photoproxy.NewService(photokey.NewExtractor(""), auth, fetcher, photos, nil)

		photo, err := svc.Serve(ctx, vendorURL)
		Expect(err).ToNot(HaveOccurred())
		Expect(photo.CacheStatus).To(Equal(photoproxy.CacheHit))
	})

	It("should not cache the vendor login page", func() {
		fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).
			Return(upstream.Result{StatusCode: 200, Outcome: upstream.AuthExpired})

		_, err := svc.Serve(ctx, vendorURL)
		expectKind(err, photoproxy.ErrAuthExpired)
		Expect(photos.Len()).To(Equal(0))
	})

	It("should never cache or return a success without an image signature", func() {
		fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).
			Return(upstream.Result{StatusCode: 200, Body: loginPage, MIMEType: "image/jpeg", Outcome: upstream.Success})

		_, err := svc.Serve(ctx, vendorURL)
		expectKind(err, photoproxy.ErrUpstreamUnavailable)
		Expect(photos.Len()).To(Equal(0))
	})

	DescribeTable("upstream outcomes",
		func(res upstream.Result, kind error, retriable bool) {
			fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).Return(res)

			_, err := svc.Serve(ctx, vendorURL)
			perr := expectKind(err, kind)
			Expect(perr.Retriable()).To(Equal(retriable))
			Expect(photos.Len()).To(Equal(0))
		},
		Entry("not found", upstream.Result{StatusCode: 404, Outcome: upstream.NotFound}, photoproxy.ErrNotFound, false),
		Entry("auth expired", upstream.Result{StatusCode: 403, Outcome: upstream.AuthExpired}, photoproxy.ErrAuthExpired, false),
		Entry("rate limited", upstream.Result{StatusCode: 429, Outcome: upstream.RateLimited, RetryAfter: time.Minute}, photoproxy.ErrRateLimited, true),
		Entry("transient", upstream.Result{StatusCode: 502, Outcome: upstream.Transient}, photoproxy.ErrUpstreamUnavailable, true),
		Entry("network failure", upstream.Result{Outcome: upstream.Transient, Err: errors.New("dial tcp: refused")}, photoproxy.ErrUpstreamUnavailable, true),
	)

	It("should carry the retry hint when rate limited", func() {
		fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).
			Return(upstream.Result{Outcome: upstream.RateLimited, RetryAfter: 42 * time.Second, Err: upstream.ErrQuotaExhausted})

		_, err := svc.Serve(ctx, vendorURL)
		perr := expectKind(err, photoproxy.ErrRateLimited)
		Expect(perr.RetryAfter).To(Equal(42 * time.Second))
		Expect(err).To(MatchError(upstream.ErrQuotaExhausted))
	})

	It("should refetch once the cached photo has expired", func() {
		fetcher.On("Fetch", mock.Anything, "abc/def.jpg", mock.Anything).
			Return(upstream.Result{StatusCode: 200, Body: jpeg, Outcome: upstream.Success})

		_, err := svc.Serve(ctx, vendorURL)
		Expect(err).ToNot(HaveOccurred())

		now = now.Add(time.Hour + time.Second)
		photo, err := svc.Serve(ctx, vendorURL)
		Expect(err).ToNot(HaveOccurred())
		Expect(photo.CacheStatus).To(Equal(photoproxy.CacheMiss))
		fetcher.AssertNumberOfCalls(GinkgoT(), "Fetch", 2)
	})

	It("should use rotated credentials on the next request", func() {
		fetcher.On("Fetch", mock.Anything, "a.jpg", mock.Anything).
			Return(upstream.Result{Outcome: upstream.AuthExpired})
		fetcher.On("Fetch", mock.Anything, "b.jpg", mock.MatchedBy(func(h http.Header) bool {
			return h.Get("Cookie") == "6Pphk3dbK4Y-mvncorp=fresh; last-subdomain=mvncorp"
		})).Return(upstream.Result{StatusCode: 200, Body: jpeg, Outcome: upstream.Success})

		_, err := svc.Serve(ctx, "a.jpg")
		expectKind(err, photoproxy.ErrAuthExpired)

		Expect(auth.Replace(vendorauth.Credential{SessionCookie: "fresh", TenantCookie: "mvncorp"})).To(Succeed())
		_, err = svc.Serve(ctx, "b.jpg")
		Expect(err).ToNot(HaveOccurred())
	})

	Describe("cache failures", func() {
		It("should treat a read failure as a miss", func() {
			broken := &brokenCache{PhotoCache: photos, getErr: errors.New("redis down")}
			svc = photoproxy.NewService(photokey.NewExtractor(""), auth, fetcher, broken, nil)
			fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).
				Return(upstream.Result{StatusCode: 200, Body: jpeg, Outcome: upstream.Success})

			photo, err := svc.Serve(ctx, vendorURL)
			Expect(err).ToNot(HaveOccurred())
			Expect(photo.CacheStatus).To(Equal(photoproxy.CacheMiss))
		})

		It("should still return the photo when the write fails", func() {
			broken := &brokenCache{PhotoCache: photos, putErr: errors.New("disk full")}
			svc = photoproxy.NewService(photokey.NewExtractor(""), auth, fetcher, broken, nil)
			fetcher.On("Fetch", mock.Anything, mock.Anything, mock.Anything).
				Return(upstream.Result{StatusCode: 200, Body: jpeg, Outcome: upstream.Success})

			photo, err := svc.Serve(ctx, vendorURL)
			Expect(err).ToNot(HaveOccurred())
			Expect(photo.Body).To(Equal(jpeg))
			Expect(photos.Len()).To(Equal(0))
		})
	})

	It("should collapse concurrent misses for one key into one vendor request", func() {
		release := make(chan time.Time)
		fetcher.On("Fetch", mock.Anything, "abc/def.jpg", mock.Anything).
			WaitUntil(release).
			Return(upstream.Result{StatusCode: 200, Body: jpeg, Outcome: upstream.Success})

		var wg sync.WaitGroup
		for i := 0; i < 8; i++ {
			wg.Add(1)
			go func() {
				defer GinkgoRecover()
				defer wg.Done()
				photo, err := svc.Serve(ctx, vendorURL)
				Expect(err).ToNot(HaveOccurred())
				Expect(photo.Body).To(Equal(jpeg))
			}()
		}

		time.Sleep(100 * time.Millisecond)
		close(release)
		wg.Wait()

		fetcher.AssertNumberOfCalls(GinkgoT(), "Fetch", 1)
	})

	It("should finish a shared vendor request when the first caller goes away", func() {
		var hits atomic.Int32
		started := make(chan struct{}, 1)
		vendor := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			hits.Add(1)
			select {
			case started <- struct{}{}:
			default:
			}
			time.Sleep(300 * time.Millisecond)
			w.Header().Set("Content-Type", "image/jpeg")
			_, _ = w.Write(jpeg)
		}))
		defer vendor.Close()

		vendorFetcher, err := upstream.NewFetcher(upstream.Config{
			URLTemplate: vendor.URL + "/get-upload?key={key}",
			Timeout:     5 * time.Second,
		}, nil)
		Expect(err).ToNot(HaveOccurred())
		svc = photoproxy.NewService(photokey.NewExtractor(""), auth, vendorFetcher, photos, nil)

		firstCtx, cancelFirst := context.WithCancel(context.Background())
		defer cancelFirst()

		var (
			wg        sync.WaitGroup
			firstErr  error
			second    photoproxy.Photo
			secondErr error
		)
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, firstErr = svc.Serve(firstCtx, "abc.jpg")
		}()
		Eventually(started).Should(Receive())

		wg.Add(1)
		go func() {
			defer wg.Done()
			second, secondErr = svc.Serve(context.Background(), "abc.jpg")
		}()
		time.Sleep(50 * time.Millisecond)
		cancelFirst()
		wg.Wait()

		Expect(secondErr).ToNot(HaveOccurred())
		Expect(second.Body).To(Equal(jpeg))
		Expect(second.CacheStatus).To(Equal(photoproxy.CacheMiss))
		Expect(firstErr).ToNot(HaveOccurred())
		Expect(hits.Load()).To(BeNumerically("==", 1))

		_, ok, _ := photos.Get(context.Background(), "abc.jpg")
		Expect(ok).To(BeTrue())
	})
})

var _ = Describe("Error", func() {
	It("should describe the kind, key and cause", func() {
		err := &photoproxy.Error{Kind: photoproxy.ErrNotFound, Key: "a.jpg", Err: errors.New("404")}
		Expect(err.Error()).To(Equal(`photo not found: key "a.jpg": 404`))
	})

	It("should match its kind without a cause", func() {
		var err error = &photoproxy.Error{Kind: photoproxy.ErrNoKeyFound}
		Expect(errors.Is(err, photoproxy.ErrNoKeyFound)).To(BeTrue())
		Expect(errors.Is(err, photoproxy.ErrNotFound)).To(BeFalse())
	})
})
