package photo

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"math"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"github.com/mvn-raffle/photoproxy/pkg/logging"
	"github.com/mvn-raffle/photoproxy/pkg/photoproxy"
	"github.com/mvn-raffle/photoproxy/pkg/response"
)

// Server resolves photo references. *photoproxy.Service implements it.
type Server interface {
	Serve(ctx context.Context, reference string) (photoproxy.Photo, error)
}

// Handler serves photo bytes to the winner card
type Handler struct {
	server Server
	maxAge time.Duration
}

// NewHandler creates a new photo handler. maxAge is advertised in Cache-Control.
func NewHandler(server Server, maxAge time.Duration) *Handler {
	return &Handler{server: server, maxAge: maxAge}
}

// GetPhoto handles GET /photo?key=<reference>
func (h *Handler) GetPhoto(c echo.Context) error {
	reference := c.QueryParam("key")

	photo, err := h.server.Serve(c.Request().Context(), reference)
	if err != nil {
		return h.writeError(c, err)
	}

	etag := ETag(photo.Body)
	header := c.Response().Header()
	header.Set("Cache-Control", "public, max-age="+strconv.Itoa(int(h.maxAge.Seconds())))
	header.Set("ETag", etag)
	header.Set("X-Cache", photo.CacheStatus)
	if !photo.StoredAt.IsZero() {
		header.Set(echo.HeaderLastModified, photo.StoredAt.UTC().Format(http.TimeFormat))
	}

	if etagMatches(c.Request().Header.Get("If-None-Match"), etag) {
		return c.NoContent(http.StatusNotModified)
	}
	return c.Blob(http.StatusOK, photo.MIMEType, photo.Body)
}

func (h *Handler) writeError(c echo.Context, err error) error {
	var perr *photoproxy.Error
	if !errors.As(err, &perr) {
		logging.Logger.Error("Unexpected photo error", zap.Error(err))
		return response.InternalServerError(c, "Internal error")
	}

	switch perr.Kind {
	case photoproxy.ErrNoKeyFound:
		return response.BadRequest(c, "No photo key found in reference")
	case photoproxy.ErrAuthNotConfigured:
		return response.Unauthorized(c, "Vendor credentials are not configured")
	case photoproxy.ErrAuthExpired:
		return response.Forbidden(c, "Vendor session expired; rotate credentials")
	case photoproxy.ErrNotFound:
		return response.NotFound(c, "Photo not found")
	case photoproxy.ErrRateLimited:
		c.Response().Header().Set(echo.HeaderRetryAfter, retryAfterSeconds(perr.RetryAfter))
		return response.TooManyRequests(c, "Vendor rate limit reached")
	default:
		return response.BadGateway(c, "Vendor photo fetch failed")
	}
}

// ETag is a strong validator over the photo bytes.
func ETag(body []byte) string {
	sum := sha256.Sum256(body)
	return `"` + hex.EncodeToString(sum[:16]) + `"`
}

func etagMatches(ifNoneMatch, etag string) bool {
	if ifNoneMatch == "" {
		return false
	}
	for _, candidate := range strings.Split(ifNoneMatch, ",") {
		candidate = strings.TrimSpace(candidate)
		if candidate == "*" || strings.TrimPrefix(candidate, "W/") == etag {
			return true
		}
	}
	return false
}

// retryAfterSeconds rounds up so a client never retries early.
func retryAfterSeconds(d time.Duration) string {
	secs := int(math.Ceil(d.Seconds()))
	if secs < 1 {
		secs = 1
	}
	return strconv.Itoa(secs)
}
