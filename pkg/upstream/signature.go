package upstream

import (
	"bytes"
)

// MIME types recognised by DetectImage.
const (
	MIMEJPEG = "image/jpeg"
	MIMEPNG  = "image/png"
	MIMEGIF  = "image/gif"
	MIMEWebP = "image/webp"
)

var (
	sigJPEG  = []byte{0xFF, 0xD8, 0xFF}
	sigPNG   = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
	sigGIF87 = []byte("GIF87a")
	sigGIF89 = []byte("GIF89a")
	sigRIFF  = []byte("RIFF")
	sigWEBP  = []byte("WEBP")

	utf8BOM = []byte{0xEF, 0xBB, 0xBF}
)

// htmlMarkers are matched case-insensitively against the start of a body.
var htmlMarkers = [][]byte{
	[]byte("<!doctype html"),
	[]byte("<html"),
	[]byte("<head"),
	[]byte("<body"),
	[]byte("<!--"),
	[]byte("<?xml"),
}

// DetectImage identifies body by its leading bytes, ignoring any declared
// content type.
func DetectImage(body []byte) (string, bool) {
	switch {
	case bytes.HasPrefix(body, sigJPEG):
		return MIMEJPEG, true
	case bytes.HasPrefix(body, sigPNG):
		return MIMEPNG, true
	case bytes.HasPrefix(body, sigGIF87), bytes.HasPrefix(body, sigGIF89):
		return MIMEGIF, true
	case len(body) >= 12 && bytes.Equal(body[:4], sigRIFF) && bytes.Equal(body[8:12], sigWEBP):
		return MIMEWebP, true
	}
	return "", false
}

// LooksLikeHTML reports whether body starts with an HTML document marker,
// the shape of the vendor's login page.
func LooksLikeHTML(body []byte) bool {
	b := bytes.TrimPrefix(body, utf8BOM)
	b = bytes.TrimLeft(b, " \t\r\n")
	if len(b) > 32 {
		b = b[:32]
	}
	b = bytes.ToLower(b)
	for _, m := range htmlMarkers {
		if bytes.HasPrefix(b, m) {
			return true
		}
	}
	return false
}
