package storage

import (
	"net/http"
	"strings"
)

// SniffLen is the number of leading bytes inspected by DetectImage.
const SniffLen = 512

var imageExtensions = map[string]string{
	"image/png":    ".png",
	"image/jpeg":   ".jpg",
	"image/gif":    ".gif",
	"image/webp":   ".webp",
	"image/bmp":    ".bmp",
	"image/x-icon": ".ico",
	"image/avif":   ".avif",
}

// DetectImage sniffs head and reports the image content type and a file
// extension for it. ok is false for anything that is not an image.
func DetectImage(head []byte) (contentType, ext string, ok bool) {
	contentType = http.DetectContentType(head)
	if i := strings.IndexByte(contentType, ';'); i >= 0 {
		contentType = strings.TrimSpace(contentType[:i])
	}
	if !strings.HasPrefix(contentType, "image/") {
		return contentType, "", false
	}
	return contentType, imageExtensions[contentType], true
}
