package solver

import (
	"net/url"
	"regexp"
)

var (
	filenameStarRe = regexp.MustCompile(`filename\*=UTF-8''([^;]+)`)
	filenameRe     = regexp.MustCompile(`filename="([^"]+)"`)
)

// FilenameFromContentDisposition resolves a download filename from a
// Content-Disposition header. The RFC 5987 encoded form is preferred over the
// quoted legacy form when both are present, and is percent-decoded before
// use. The fallback is returned for absent or unparseable headers.
func FilenameFromContentDisposition(header, fallback string) string {
	if header == "" {
		return fallback
	}
	if m := filenameStarRe.FindStringSubmatch(header); m != nil {
		if decoded, err := url.PathUnescape(m[1]); err == nil && decoded != "" {
			return decoded
		}
	}
	if m := filenameRe.FindStringSubmatch(header); m != nil && m[1] != "" {
		return m[1]
	}
	return fallback
}
