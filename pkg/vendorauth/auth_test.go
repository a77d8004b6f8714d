package vendorauth_test

import (
	"net/http"
	"sync"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/mvn-raffle/photoproxy/pkg/vendorauth"
)

var _ = Describe("Context", func() {
	var settings vendorauth.Settings

	BeforeEach(func() {
		settings = vendorauth.DefaultSettings()
	})

	Describe("Headers", func() {
		It("should combine both session crumbs into one Cookie header", func() {
			auth := vendorauth.NewContext(settings, vendorauth.Credential{
				SessionCookie: "s%3Asess",
				TenantCookie:  "mvncorp",
			})

			h, err := auth.Headers()
			Expect(err).ToNot(HaveOccurred())
			Expect(h.Get("Cookie")).To(Equal("6Pphk3dbK4Y-mvncorp=s%3Asess; last-subdomain=mvncorp"))
			Expect(h.Get("User-Agent")).To(Equal(settings.UserAgent))
			Expect(h.Get("Referer")).To(Equal(settings.Referer))
			Expect(h.Get("isc-csrf-token")).To(BeEmpty())
			Expect(h.Get("Authorization")).To(BeEmpty())
		})

		It("should add the CSRF and bearer headers when present", func() {
			auth := vendorauth.NewContext(settings, vendorauth.Credential{
				SessionCookie: "sess",
				TenantCookie:  "tenant",
				CSRFToken:     "csrf-123",
				BearerToken:   "tok",
			})

			h, err := auth.Headers()
			Expect(err).ToNot(HaveOccurred())
			Expect(h.Get("isc-csrf-token")).To(Equal("csrf-123"))
			Expect(h.Get("Authorization")).To(Equal("Bearer tok"))
		})

		DescribeTable("missing cookies",
			func(cred vendorauth.Credential) {
				auth := vendorauth.NewContext(settings, cred)
				h, err := auth.Headers()
				Expect(err).To(MatchError(vendorauth.ErrAuthNotConfigured))
				Expect(h).To(BeNil())
			},
			Entry("nothing configured", vendorauth.Credential{}),
			Entry("session only", vendorauth.Credential{SessionCookie: "s"}),
			Entry("tenant only", vendorauth.Credential{TenantCookie: "t"}),
			Entry("csrf without cookies", vendorauth.Credential{CSRFToken: "c"}),
		)

		It("should apply strategies in order", func() {
			override := func(h http.Header, _ vendorauth.Settings, _ vendorauth.Credential) {
				h.Set("User-Agent", "custom")
			}
			auth := vendorauth.NewContextWithStrategies(settings,
				vendorauth.Credential{SessionCookie: "s", TenantCookie: "t"},
				vendorauth.BrowserIdentity, override, vendorauth.SessionCookies)

			h, err := auth.Headers()
			Expect(err).ToNot(HaveOccurred())
			Expect(h.Get("User-Agent")).To(Equal("custom"))
			Expect(h.Get("Cookie")).To(ContainSubstring("last-subdomain=t"))
		})
	})

	Describe("Replace", func() {
		It("should reject an incomplete credential and keep the old one", func() {
			auth := vendorauth.NewContext(settings, vendorauth.Credential{SessionCookie: "old", TenantCookie: "t"})

			err := auth.Replace(vendorauth.Credential{SessionCookie: "new"})
			Expect(err).To(MatchError(vendorauth.ErrAuthNotConfigured))
			Expect(auth.Credential().SessionCookie).To(Equal("old"))
		})

		It("should affect headers built afterwards but not ones already built", func() {
			auth := vendorauth.NewContext(settings, vendorauth.Credential{SessionCookie: "old", TenantCookie: "t"})
			before, err := auth.Headers()
			Expect(err).ToNot(HaveOccurred())

			Expect(auth.Replace(vendorauth.Credential{SessionCookie: "new", TenantCookie: "t"})).To(Succeed())

			after, err := auth.Headers()
			Expect(err).ToNot(HaveOccurred())
			Expect(before.Get("Cookie")).To(ContainSubstring("=old;"))
			Expect(after.Get("Cookie")).To(ContainSubstring("=new;"))
		})

		It("should configure a context that started empty", func() {
			auth := vendorauth.NewContext(settings, vendorauth.Credential{})
			Expect(auth.Status().Configured).To(BeFalse())
			Expect(auth.Status().UpdatedAt.IsZero()).To(BeTrue())

			Expect(auth.Replace(vendorauth.Credential{SessionCookie: "s", TenantCookie: "t", CSRFToken: "c"})).To(Succeed())

			status := auth.Status()
			Expect(status.Configured).To(BeTrue())
			Expect(status.HasCSRFToken).To(BeTrue())
			Expect(status.HasBearerToken).To(BeFalse())
			Expect(status.UpdatedAt.IsZero()).To(BeFalse())
		})

		It("should be safe under concurrent readers and writers", func() {
			auth := vendorauth.NewContext(settings, vendorauth.Credential{SessionCookie: "a", TenantCookie: "t"})
			var wg sync.WaitGroup
			for i := 0; i < 20; i++ {
				wg.Add(2)
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					_, err := auth.Headers()
					Expect(err).ToNot(HaveOccurred())
				}()
				go func() {
					defer wg.Done()
					defer GinkgoRecover()
					Expect(auth.Replace(vendorauth.Credential{SessionCookie: "b", TenantCookie: "t"})).To(Succeed())
				}()
			}
			wg.Wait()
			Expect(auth.Credential().SessionCookie).To(Equal("b"))
		})
	})
})
