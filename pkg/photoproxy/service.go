// Package photoproxy serves employee photos for winner cards: it resolves a
// photo reference to a storage key, answers from cache when it can and
// otherwise makes one authenticated vendor fetch.
package photoproxy

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/mvn-raffle/photoproxy/pkg/cache"
	"github.com/mvn-raffle/photoproxy/pkg/logging"
	"github.com/mvn-raffle/photoproxy/pkg/metrics"
	"github.com/mvn-raffle/photoproxy/pkg/photokey"
	"github.com/mvn-raffle/photoproxy/pkg/upstream"
)

// Cache status values reported on Photo.
const (
	CacheHit  = "HIT"
	CacheMiss = "MISS"
)

// HeaderSource supplies outbound auth headers. *vendorauth.Context implements it.
type HeaderSource interface {
	Headers() (http.Header, error)
}

// Fetcher downloads one key. *upstream.Fetcher implements it.
type Fetcher interface {
	Fetch(ctx context.Context, key string, headers http.Header) upstream.Result
}

// Photo is a served image.
type Photo struct {
	Key         string
	Body        []byte
	MIMEType    string
	CacheStatus string
	StoredAt    time.Time
}

// Service is safe for concurrent use.
type Service struct {
	extractor photokey.Extractor
	auth      HeaderSource
	fetcher   Fetcher
	cache     cache.PhotoCache
	metrics   *metrics.Metrics
	now       func() time.Time

	inflight singleflight.Group
}

// NewService wires the proxy. m may be nil.
func NewService(extractor photokey.Extractor, auth HeaderSource, fetcher Fetcher, c cache.PhotoCache, m *metrics.Metrics) *Service {
	return &Service{
		extractor: extractor,
		auth:      auth,
		fetcher:   fetcher,
		cache:     c,
		metrics:   m,
		now:       time.Now,
	}
}

// Serve returns the photo for reference. Errors are *Error.
//
// A key is resolved before anything else; a cached photo is returned without
// consulting credentials; a miss reads credentials once and makes at most one
// vendor request. Only verified images are cached.
func (s *Service) Serve(ctx context.Context, reference string) (Photo, error) {
	photo, err := s.serve(ctx, reference)
	if err != nil {
		var perr *Error
		if errors.As(err, &perr) {
			s.metrics.PhotoResult(KindName(perr.Kind))
		}
		return Photo{}, err
	}
	s.metrics.PhotoResult(strings.ToLower(photo.CacheStatus))
	return photo, nil
}

func (s *Service) serve(ctx context.Context, reference string) (Photo, error) {
	key, ok := s.extractor.Extract(reference)
	if !ok {
		return Photo{}, &Error{Kind: ErrNoKeyFound}
	}

	if photo, ok := s.lookup(ctx, key); ok {
		return photo, nil
	}

	// concurrent misses for one key share a single vendor request. The first
	// caller going away must not fail the others; the fetcher timeout bounds it.
	fetchCtx := context.WithoutCancel(ctx)
	v, err, shared := s.inflight.Do(key, func() (interface{}, error) {
		return s.fetch(fetchCtx, key)
	})
	if shared {
		logging.Logger.Debug("Shared in-flight photo fetch", zap.String("key", key))
	}
	if err != nil {
		return Photo{}, err
	}
	return v.(Photo), nil
}

func (s *Service) lookup(ctx context.Context, key string) (Photo, bool) {
	entry, ok, err := s.cache.Get(ctx, key)
	if err != nil {
		logging.Logger.Warn("Photo cache read failed, treating as miss",
			zap.String("key", key),
			zap.String("backend", s.cache.Backend()),
			zap.Error(err))
		ok = false
	}
	s.metrics.CacheLookup(ok)
	if !ok {
		return Photo{}, false
	}
	return Photo{
		Key:         key,
		Body:        entry.Body,
		MIMEType:    entry.MIMEType,
		CacheStatus: CacheHit,
		StoredAt:    entry.StoredAt,
	}, true
}

func (s *Service) fetch(ctx context.Context, key string) (Photo, error) {
	headers, err := s.auth.Headers()
	if err != nil {
		return Photo{}, &Error{Kind: ErrAuthNotConfigured, Key: key, Err: err}
	}

	start := s.now()
	res := s.fetcher.Fetch(ctx, key, headers)
	s.metrics.UpstreamFetch(res.Outcome.String(), s.now().Sub(start))

	switch res.Outcome {
	case upstream.Success:
		mime, ok := upstream.DetectImage(res.Body)
		if !ok {
			return Photo{}, &Error{Kind: ErrUpstreamUnavailable, Key: key, Err: upstream.ErrNotImage}
		}
		storedAt := s.now()
		if err := s.cache.Put(ctx, key, res.Body, mime); err != nil {
			logging.Logger.Warn("Photo cache write failed",
				zap.String("key", key),
				zap.String("backend", s.cache.Backend()),
				zap.Error(err))
		}
		return Photo{
			Key:         key,
			Body:        res.Body,
			MIMEType:    mime,
			CacheStatus: CacheMiss,
			StoredAt:    storedAt,
		}, nil

	case upstream.NotFound:
		return Photo{}, &Error{Kind: ErrNotFound, Key: key, Err: res.Err}

	case upstream.AuthExpired:
		logging.Logger.Warn("Vendor rejected session credentials, rotate credentials",
			zap.String("key", key),
			zap.Int("status", res.StatusCode),
			zap.Error(res.Err))
		return Photo{}, &Error{Kind: ErrAuthExpired, Key: key, Err: res.Err}

	case upstream.RateLimited:
		logging.Logger.Warn("Vendor rate limit reached",
			zap.String("key", key),
			zap.Duration("retry_after", res.RetryAfter),
			zap.Error(res.Err))
		return Photo{}, &Error{Kind: ErrRateLimited, Key: key, RetryAfter: res.RetryAfter, Err: res.Err}
	}

	logging.Logger.Warn("Vendor photo fetch failed",
		zap.String("key", key),
		zap.Int("status", res.StatusCode),
		zap.Error(res.Err))
	return Photo{}, &Error{Kind: ErrUpstreamUnavailable, Key: key, Err: res.Err}
}
