package upstream

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LimiterStatus is a point-in-time view of the outbound limiter.
type LimiterStatus struct {
	PerMinute    int       `json:"limit_per_minute"`
	Burst        int       `json:"burst"`
	Tokens       float64   `json:"tokens_available"`
	Blocked      bool      `json:"blocked"`
	BlockedUntil time.Time `json:"blocked_until,omitempty"`
}

// Limiter keeps outbound traffic under the vendor's per-minute quota. After
// the vendor answers 429 it refuses everything until the advertised wait
// has passed.
type Limiter struct {
	perMinute int
	burst     int
	now       func() time.Time

	mu           sync.Mutex
	lim          *rate.Limiter
	blockedUntil time.Time
}

// NewLimiter creates a limiter allowing perMinute requests with the given
// burst. perMinute <= 0 disables the token bucket; 429 blocking still applies.
func NewLimiter(perMinute, burst int) *Limiter {
	if burst < 1 {
		burst = 1
	}
	l := &Limiter{perMinute: perMinute, burst: burst, now: time.Now}
	l.lim = l.newBucket()
	return l
}

func (l *Limiter) newBucket() *rate.Limiter {
	if l.perMinute <= 0 {
		return rate.NewLimiter(rate.Inf, l.burst)
	}
	return rate.NewLimiter(rate.Limit(float64(l.perMinute)/60.0), l.burst)
}

// Allow takes one token. When it refuses, it returns how long the caller
// should wait before trying again.
func (l *Limiter) Allow() (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Before(l.blockedUntil) {
		return false, l.blockedUntil.Sub(now)
	}

	r := l.lim.ReserveN(now, 1)
	if !r.OK() {
		return false, time.Minute
	}
	if d := r.DelayFrom(now); d > 0 {
		r.CancelAt(now)
		return false, d
	}
	return true, 0
}

// Block refuses all requests for d, extending any current block.
func (l *Limiter) Block(d time.Duration) {
	if d <= 0 {
		return
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	until := l.now().Add(d)
	if until.After(l.blockedUntil) {
		l.blockedUntil = until
	}
}

// Reset clears any block and refills the bucket.
func (l *Limiter) Reset() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.blockedUntil = time.Time{}
	l.lim = l.newBucket()
}

// Status reports the current limiter state.
func (l *Limiter) Status() LimiterStatus {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	s := LimiterStatus{
		PerMinute: l.perMinute,
		Burst:     l.burst,
		Tokens:    float64(l.burst),
	}
	// an unlimited bucket reports NaN tokens
	if l.perMinute > 0 {
		s.Tokens = l.lim.TokensAt(now)
	}
	if now.Before(l.blockedUntil) {
		s.Blocked = true
		s.BlockedUntil = l.blockedUntil
	}
	return s
}
