// Package photokey turns the photo references found in raffle sheets into the
// vendor's opaque storage key.
//
// A reference is either a signed vendor URL such as
//
//	https://tenant.example.com/get-upload?key=abc%2Fdef.jpg
//
// or an already bare key such as "abc/def.jpg".
package photokey

import (
	"net/url"
	"strings"
)

// DefaultUploadMarker is the path fragment identifying vendor upload URLs.
const DefaultUploadMarker = "get-upload"

const keyParam = "key="

// Extractor extracts storage keys from photo references.
type Extractor struct {
	// UploadMarker must appear in a URL for its key= parameter to be used.
	UploadMarker string
}

// NewExtractor creates an extractor for the given upload marker.
// An empty marker selects DefaultUploadMarker.
func NewExtractor(marker string) Extractor {
	if marker == "" {
		marker = DefaultUploadMarker
	}
	return Extractor{UploadMarker: marker}
}

// Extract uses the default upload marker.
func Extract(reference string) (string, bool) {
	return NewExtractor("").Extract(reference)
}

// Extract returns the canonical key for reference, or false when none can be
// derived. It never panics on malformed input.
//
// Examples:
//   - "https://t.example.com/get-upload?key=a%2Fb.jpg" -> "a/b.jpg"
//   - "a/b.jpg" -> "a/b.jpg"
//   - " a/b.jpg" -> " a/b.jpg"
//   - "https://t.example.com/other?id=1" -> not found
func (e Extractor) Extract(reference string) (string, bool) {
	ref := strings.TrimSpace(reference)
	if ref == "" {
		return "", false
	}

	marker := e.UploadMarker
	if marker == "" {
		marker = DefaultUploadMarker
	}

	if strings.Contains(ref, marker) {
		if raw, ok := firstKeyParam(ref); ok {
			// PathUnescape leaves '+' alone; keys may legitimately contain it.
			key, err := url.PathUnescape(raw)
			if err != nil || key == "" {
				return "", false
			}
			return key, true
		}
	}

	if looksLikeURL(ref) {
		return "", false
	}
	// bare keys are opaque; surrounding whitespace is part of the key
	return reference, true
}

// firstKeyParam returns the still-encoded value of the first key= parameter
// in the query part of ref.
func firstKeyParam(ref string) (string, bool) {
	q := strings.IndexByte(ref, '?')
	if q == -1 {
		return "", false
	}
	query := ref[q+1:]
	if i := strings.IndexByte(query, '#'); i != -1 {
		query = query[:i]
	}

	for _, pair := range strings.Split(query, "&") {
		if strings.HasPrefix(pair, keyParam) {
			v := pair[len(keyParam):]
			if v == "" {
				return "", false
			}
			return v, true
		}
	}
	return "", false
}

func looksLikeURL(ref string) bool {
	lower := strings.ToLower(ref)
	switch {
	case strings.Contains(lower, "://"):
		return true
	case strings.HasPrefix(lower, "www."):
		return true
	case strings.HasPrefix(ref, "/"):
		return true
	case strings.ContainsAny(ref, "?#"):
		return true
	}
	return false
}
