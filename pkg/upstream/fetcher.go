// Package upstream performs authenticated photo fetches against the HR
// vendor and classifies what came back.
//
// The vendor answers an expired session with HTTP 200 and its HTML login
// page, so a status code alone never marks a fetch successful: the body must
// start with a known image signature.
package upstream

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/mvn-raffle/photoproxy/pkg/logging"
)

// KeyPlaceholder is substituted with the escaped storage key in URL templates.
const KeyPlaceholder = "{key}"

const (
	defaultTimeout      = 20 * time.Second
	defaultMaxBodyBytes = 10 << 20
	defaultRetryAfter   = 60 * time.Second
	defaultMaxRedirects = 5
)

var (
	// ErrQuotaExhausted means the local limiter refused the request; the
	// vendor was not contacted.
	ErrQuotaExhausted = errors.New("outbound request quota exhausted")
	// ErrBodyTooLarge means the response exceeded the configured body cap.
	ErrBodyTooLarge = errors.New("upstream response body too large")
	// ErrLoginRedirect means the vendor redirected to its sign-in page.
	ErrLoginRedirect = errors.New("upstream redirected to sign-in")
	// ErrNotImage means a 200 response did not carry a recognised image.
	ErrNotImage = errors.New("upstream response is not a recognised image")
)

// Outcome classifies a fetch.
type Outcome int

const (
	Transient Outcome = iota
	Success
	NotFound
	AuthExpired
	RateLimited
)

func (o Outcome) String() string {
	switch o {
	case Success:
		return "success"
	case NotFound:
		return "not_found"
	case AuthExpired:
		return "auth_expired"
	case RateLimited:
		return "rate_limited"
	default:
		return "transient"
	}
}

// Result is the classified outcome of a single fetch.
type Result struct {
	StatusCode int
	Body       []byte
	MIMEType   string
	Outcome    Outcome
	// RetryAfter is set for RateLimited.
	RetryAfter time.Duration
	// Err describes why a non-Success outcome was chosen, when known.
	Err error
}

// Config controls the outbound request.
type Config struct {
	URLTemplate       string
	Timeout           time.Duration
	MaxBodyBytes      int64
	DefaultRetryAfter time.Duration
	MaxRedirects      int
}

// Fetcher is safe for concurrent use.
type Fetcher struct {
	cfg     Config
	client  *http.Client
	limiter *Limiter
	now     func() time.Time
}

// NewFetcher validates cfg and creates a fetcher. limiter may be nil.
func NewFetcher(cfg Config, limiter *Limiter) (*Fetcher, error) {
	if !strings.Contains(cfg.URLTemplate, KeyPlaceholder) {
		return nil, fmt.Errorf("url template %q must contain %s", cfg.URLTemplate, KeyPlaceholder)
	}
	if _, err := url.Parse(strings.Replace(cfg.URLTemplate, KeyPlaceholder, "k", 1)); err != nil {
		return nil, fmt.Errorf("invalid url template: %w", err)
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = defaultMaxBodyBytes
	}
	if cfg.DefaultRetryAfter <= 0 {
		cfg.DefaultRetryAfter = defaultRetryAfter
	}
	if cfg.MaxRedirects <= 0 {
		cfg.MaxRedirects = defaultMaxRedirects
	}

	f := &Fetcher{cfg: cfg, limiter: limiter, now: time.Now}
	f.client = &http.Client{
		Timeout:       cfg.Timeout,
		CheckRedirect: f.checkRedirect,
	}
	return f, nil
}

// URLFor returns the vendor URL for key.
func (f *Fetcher) URLFor(key string) string {
	return strings.Replace(f.cfg.URLTemplate, KeyPlaceholder, url.QueryEscape(key), 1)
}

// checkRedirect follows the vendor's hop to time-limited storage URLs. The
// client already drops Cookie and Authorization for foreign hosts; the CSRF
// header is custom and has to be dropped here.
func (f *Fetcher) checkRedirect(req *http.Request, via []*http.Request) error {
	if len(via) >= f.cfg.MaxRedirects {
		return fmt.Errorf("stopped after %d redirects", len(via))
	}
	if req.URL.Host != via[0].URL.Host {
		for name := range req.Header {
			if strings.Contains(strings.ToLower(name), "csrf") {
				req.Header.Del(name)
			}
		}
	}
	return nil
}

// Fetch makes exactly one attempt to download key. It never retries.
func (f *Fetcher) Fetch(ctx context.Context, key string, headers http.Header) Result {
	if f.limiter != nil {
		if ok, wait := f.limiter.Allow(); !ok {
			return Result{Outcome: RateLimited, RetryAfter: wait, Err: ErrQuotaExhausted}
		}
	}

	start := f.now()
	res := f.do(ctx, key, headers)

	logging.Logger.Debug("Upstream fetch finished",
		zap.String("key", key),
		zap.Int("status", res.StatusCode),
		zap.String("outcome", res.Outcome.String()),
		zap.Int("bytes", len(res.Body)),
		zap.Duration("duration", f.now().Sub(start)),
		zap.Error(res.Err))

	if res.Outcome == RateLimited && f.limiter != nil {
		f.limiter.Block(res.RetryAfter)
	}
	return res
}

func (f *Fetcher) do(ctx context.Context, key string, headers http.Header) Result {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.URLFor(key), nil)
	if err != nil {
		return Result{Outcome: Transient, Err: err}
	}
	if headers != nil {
		req.Header = headers.Clone()
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return Result{Outcome: Transient, Err: fmt.Errorf("upstream request: %w", err)}
	}
	defer resp.Body.Close()

	res := Result{StatusCode: resp.StatusCode}
	switch resp.StatusCode {
	case http.StatusNotFound:
		res.Outcome = NotFound
		return res
	case http.StatusUnauthorized, http.StatusForbidden:
		res.Outcome = AuthExpired
		return res
	case http.StatusTooManyRequests:
		res.Outcome = RateLimited
		res.RetryAfter = parseRetryAfter(resp.Header.Get("Retry-After"), f.now(), f.cfg.DefaultRetryAfter)
		return res
	case http.StatusOK:
	default:
		res.Outcome = Transient
		res.Err = fmt.Errorf("unexpected upstream status %d", resp.StatusCode)
		return res
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.cfg.MaxBodyBytes+1))
	if err != nil {
		res.Outcome = Transient
		res.Err = fmt.Errorf("read upstream body: %w", err)
		return res
	}
	// a login page is recognised by its first bytes, whatever its size
	if LooksLikeHTML(body) {
		res.Outcome = AuthExpired
		return res
	}
	if int64(len(body)) > f.cfg.MaxBodyBytes {
		res.Outcome = Transient
		res.Err = ErrBodyTooLarge
		return res
	}
	mime, ok := DetectImage(body)
	if !ok {
		if isSignInURL(resp.Request.URL) {
			res.Outcome = AuthExpired
			res.Err = ErrLoginRedirect
			return res
		}
		res.Outcome = Transient
		res.Err = ErrNotImage
		return res
	}

	res.Outcome = Success
	res.Body = body
	res.MIMEType = mime
	return res
}

func isSignInURL(u *url.URL) bool {
	if u == nil {
		return false
	}
	p := strings.ToLower(u.Path)
	return strings.Contains(p, "signin") || strings.Contains(p, "login")
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string, now time.Time, def time.Duration) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return def
	}
	if secs, err := strconv.Atoi(v); err == nil {
		if secs <= 0 {
			return def
		}
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := t.Sub(now); d > 0 {
			return d
		}
	}
	return def
}
