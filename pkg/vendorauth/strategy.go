package vendorauth

import (
	"net/http"
	"strings"
)

// HeaderStrategy contributes headers for one authentication mechanism.
// Strategies run in order; a later one may overwrite an earlier header.
type HeaderStrategy func(h http.Header, s Settings, c Credential)

// DefaultStrategies returns the vendor's header order: browser identity,
// session cookies, CSRF token, then an optional bearer token.
func DefaultStrategies() []HeaderStrategy {
	return []HeaderStrategy{
		BrowserIdentity,
		SessionCookies,
		CSRFToken,
		BearerToken,
	}
}

// BrowserIdentity sets the User-Agent, Referer and Accept headers the vendor's
// bot checks look for.
func BrowserIdentity(h http.Header, s Settings, _ Credential) {
	if s.UserAgent != "" {
		h.Set("User-Agent", s.UserAgent)
	}
	if s.Referer != "" {
		h.Set("Referer", s.Referer)
	}
	h.Set("Accept", "image/webp,image/apng,image/*,*/*;q=0.8")
}

// SessionCookies sets the two-crumb session cookie.
func SessionCookies(h http.Header, s Settings, c Credential) {
	crumbs := make([]string, 0, 2)
	if c.SessionCookie != "" {
		crumbs = append(crumbs, s.SessionCookieName+"="+c.SessionCookie)
	}
	if c.TenantCookie != "" {
		crumbs = append(crumbs, s.TenantCookieName+"="+c.TenantCookie)
	}
	if len(crumbs) > 0 {
		h.Set("Cookie", strings.Join(crumbs, "; "))
	}
}

// CSRFToken sets the CSRF header when a token is known.
func CSRFToken(h http.Header, s Settings, c Credential) {
	if c.CSRFToken == "" || s.CSRFHeader == "" {
		return
	}
	h.Set(s.CSRFHeader, c.CSRFToken)
}

// BearerToken sets Authorization when an API token is configured.
func BearerToken(h http.Header, _ Settings, c Credential) {
	if c.BearerToken == "" {
		return
	}
	h.Set("Authorization", "Bearer "+c.BearerToken)
}
