// Package detector decides when a storefront page needs a headless render.
package detector

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/sale-shoe-crawler/internal/crawler"
)

const defaultThreshold = 2048

// Heuristic promotes HTML responses that look like an unrendered script
// shell or a bot challenge. API payloads are never promoted.
type Heuristic struct {
	BodyLengthThreshold int
}

var _ crawler.HeadlessDetector = (*Heuristic)(nil)

// NewHeuristic creates a detector. Bodies shorter than threshold bytes are
// checked for script density; threshold <= 0 selects 2048.
func NewHeuristic(threshold int) *Heuristic {
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	return &Heuristic{BodyLengthThreshold: threshold}
}

// Mount points of client-rendered storefronts.
var mountMarkers = [][]byte{
	[]byte(`id="__next"`),
	[]byte(`id="__nuxt"`),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte("data-reactroot"),
}

// Server-side state a profile can decode without rendering.
var stateMarkers = [][]byte{
	[]byte("__NUXT__="),
	[]byte("__NEXT_DATA__"),
	[]byte("productIntroData"),
	[]byte(`{"version"`),
	[]byte("JS_OBJ"),
}

var challengeMarkers = [][]byte{
	[]byte("challenge-platform"),
	[]byte("cf-browser-verification"),
	[]byte("Just a moment..."),
}

// ShouldPromote reports whether resp should be fetched again headlessly.
func (h *Heuristic) ShouldPromote(resp crawler.FetchResponse) bool {
	if resp.StatusCode != http.StatusOK || isJSON(resp) {
		return false
	}
	body := resp.Body
	switch {
	case len(bytes.TrimSpace(body)) == 0:
		return true
	case containsAny(body, challengeMarkers):
		return true
	case containsAny(body, stateMarkers):
		return false
	case containsAny(body, mountMarkers):
		return true
	}
	threshold := h.BodyLengthThreshold
	if threshold <= 0 {
		threshold = defaultThreshold
	}
	return len(body) < threshold && scriptShare(body) >= 25
}

func isJSON(resp crawler.FetchResponse) bool {
	if strings.Contains(strings.ToLower(resp.ContentType()), "json") {
		return true
	}
	trimmed := bytes.TrimSpace(resp.Body)
	return len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[')
}

func containsAny(body []byte, markers [][]byte) bool {
	for _, m := range markers {
		if bytes.Contains(body, m) {
			return true
		}
	}
	return false
}

// scriptShare returns the percentage of body bytes inside <script> elements.
// Unparseable bodies count as 0.
func scriptShare(body []byte) int {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil || len(body) == 0 {
		return 0
	}
	inScripts := 0
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		html, err := goquery.OuterHtml(s)
		if err == nil {
			inScripts += len(html)
		}
	})
	return min(inScripts*100/len(body), 100)
}
