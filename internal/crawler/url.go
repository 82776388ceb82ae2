package crawler

import (
	"net/url"
	"strings"
)

// StripQuery drops the volatile tail of a URL (everything from the first '&')
// so log lines stay readable for filter-heavy listing URLs. The leading
// parameter usually names the section and is kept.
func StripQuery(rawURL string) string {
	if i := strings.IndexByte(rawURL, '&'); i >= 0 {
		return rawURL[:i]
	}
	return rawURL
}

// Host returns the lowercase hostname of rawURL or "unknown".
func Host(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
