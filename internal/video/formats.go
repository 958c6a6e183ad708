package video

import (
	"errors"
	"path/filepath"
	"sort"
	"strings"
)

var ErrUnsupportedExtension = errors.New("unsupported video extension")

var supportedExtensions = map[string]bool{
	".mp4":  true,
	".avi":  true,
	".mov":  true,
	".mkv":  true,
	".webm": true,
	".wmv":  true,
	".flv":  true,
}

var mimeTypes = map[string]string{
	".mp4":  "video/mp4",
	".avi":  "video/x-msvideo",
	".mov":  "video/quicktime",
	".mkv":  "video/x-matroska",
	".webm": "video/webm",
	".wmv":  "video/x-ms-wmv",
	".flv":  "video/x-flv",
}

// SupportedExtension reports whether the file's extension is on the
// ingest allow-list. The check is case-insensitive.
func SupportedExtension(path string) bool {
	return supportedExtensions[strings.ToLower(filepath.Ext(path))]
}

// SupportedExtensions lists the allow-list, sorted, for error messages.
func SupportedExtensions() []string {
	exts := make([]string, 0, len(supportedExtensions))
	for ext := range supportedExtensions {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}

// MIMEType maps a supported video file to its MIME type. Unknown
// extensions fall back to video/mp4.
func MIMEType(path string) string {
	if mt, ok := mimeTypes[strings.ToLower(filepath.Ext(path))]; ok {
		return mt
	}
	return "video/mp4"
}
