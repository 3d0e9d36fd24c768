// Package catalogutil holds small shared helpers with no better home.
package catalogutil

import (
	"strings"
)

// NormalizeBasePath ensures a configured HTTP context path has a leading
// slash and no trailing slash, matching the endpoint wiring.
func NormalizeBasePath(p string) string {
	if p == "" || p == "/" {
		return "/"
	}
	if !strings.HasPrefix(p, "/") {
		p = "/" + p
	}
	return strings.TrimRight(p, "/")
}
