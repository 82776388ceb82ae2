package crawler

import (
	"fmt"
	"math"
	"net/http"
	"strings"
	"time"
)

// DefaultImage is stored when a product payload carries no image.
const DefaultImage = "https://yugcleaning.ru/wp-content/themes/consultix/images/no-image-found-360x250.png"

// Gender is the normalized audience of a product.
type Gender string

// Supported genders.
const (
	GenderMen    Gender = "Men"
	GenderWomen  Gender = "Women"
	GenderUnisex Gender = "Unisex"
	GenderChild  Gender = "Child"
)

var genderAliases = map[string]Gender{
	"men":         GenderMen,
	"m":           GenderMen,
	"мужчины":     GenderMen,
	"мужской":     GenderMen,
	"muzhchiny":   GenderMen,
	"women":       GenderWomen,
	"w":           GenderWomen,
	"женщины":     GenderWomen,
	"женский":     GenderWomen,
	"zhenshchiny": GenderWomen,
	"unisex":      GenderUnisex,
	"u":           GenderUnisex,
	"унисекс":     GenderUnisex,
	"child":       GenderChild,
	"kids":        GenderChild,
	"дети":        GenderChild,
	"deti":        GenderChild,
}

// ParseGender maps the various retailer spellings onto a Gender.
func ParseGender(raw string) (Gender, bool) {
	g, ok := genderAliases[strings.ToLower(strings.TrimSpace(raw))]
	return g, ok
}

// URLKind tells the expander how a profile treats a URL.
type URLKind string

// URL kinds.
const (
	KindUnknown URLKind = "unknown"
	KindSection URLKind = "section"
	KindGood    URLKind = "good"
)

// Record is one persisted product row keyed by URL.
type Record struct {
	URL            string    `json:"url"`
	Brand          string    `json:"brand"`
	VendorCode     *string   `json:"vendor_code,omitempty"`
	Name           string    `json:"name"`
	Image          string    `json:"image"`
	Gender         Gender    `json:"gender"`
	Category       string    `json:"category"`
	Subcategory    string    `json:"subcategory"`
	Color          *string   `json:"color,omitempty"`
	StandardPrice  float64   `json:"standard_price"`
	SalePrice      float64   `json:"sale_price"`
	Discount       *int      `json:"discount,omitempty"`
	AvailableSizes *string   `json:"available_sizes,omitempty"`
	SizeLabel      string    `json:"size_label"`
	Created        time.Time `json:"created"`
	LastUpdate     time.Time `json:"last_update"`
}

// Validate checks the fields every stored record must carry.
func (r Record) Validate() error {
	if r.URL == "" {
		return fmt.Errorf("%w: url is required", ErrRecordMapping)
	}
	if r.Name == "" {
		return fmt.Errorf("%w: name is required for %s", ErrRecordMapping, r.URL)
	}
	if !finite(r.StandardPrice) || !finite(r.SalePrice) {
		return fmt.Errorf("%w: prices must be finite for %s", ErrRecordMapping, r.URL)
	}
	if r.StandardPrice <= 0 {
		return fmt.Errorf("%w: standard price must be > 0 for %s", ErrRecordMapping, r.URL)
	}
	if r.SalePrice < 0 {
		return fmt.Errorf("%w: sale price must be >= 0 for %s", ErrRecordMapping, r.URL)
	}
	return nil
}

func finite(f float64) bool {
	return !math.IsNaN(f) && !math.IsInf(f, 0)
}

// Discount returns the whole percentage saved, or nil when nothing is saved or
// the prices cannot produce a percentage.
func Discount(standard, sale float64) *int {
	if !finite(standard) || !finite(sale) || standard <= 0 || sale <= 0 {
		return nil
	}
	pct := int(math.Trunc((1 - sale/standard) * 100))
	if pct == 0 {
		return nil
	}
	return &pct
}

// JoinValues joins non-empty values with the ";" separator used for
// multi-valued columns. It returns nil when nothing remains.
func JoinValues(values []string) *string {
	kept := make([]string, 0, len(values))
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			kept = append(kept, v)
		}
	}
	if len(kept) == 0 {
		return nil
	}
	joined := strings.Join(kept, ";")
	return &joined
}

// OptionalString returns nil for blank strings.
func OptionalString(s string) *string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	return &s
}

// Expansion is what one fetched URL contributes to the crawl.
type Expansion struct {
	// Pages holds the remaining pages of a section. Only the first page of a
	// section fills it.
	Pages []string
	// Goods holds product URLs discovered on the page.
	Goods []string
	// Records holds products mapped from the page.
	Records []Record
}

// Discovered returns the number of URLs the expansion proposes.
func (e Expansion) Discovered() int {
	return len(e.Pages) + len(e.Goods)
}

// FetchRequest captures everything needed to fetch a URL.
type FetchRequest struct {
	URL         string
	Profile     string
	UseHeadless bool
	Headers     http.Header
}

// FetchResponse is the payload returned by fetchers.
type FetchResponse struct {
	URL          string
	StatusCode   int
	Headers      http.Header
	Body         []byte
	Duration     time.Duration
	UsedHeadless bool
}

// ContentType returns the response content type, if any.
func (r FetchResponse) ContentType() string {
	if r.Headers == nil {
		return ""
	}
	return r.Headers.Get("Content-Type")
}
