// Package profile holds the per-retailer knowledge of the crawler: which URLs
// are sections or goods, how their payloads decode, how pagination works and
// how a product maps onto a crawler.Record.
package profile

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/JakeFAU/sale-shoe-crawler/internal/crawler"
)

// ErrUnknownProfile is returned by New for names outside the registry.
var ErrUnknownProfile = errors.New("unknown profile")

// AllSections selects a profile's default sections.
const AllSections = "all"

// Listing is what a section page offers: product URLs to crawl and products
// that can be mapped without another request.
type Listing struct {
	Goods []string
	Items []Document
}

// Profile is the strategy the expander runs for one retailer.
type Profile interface {
	Name() string
	Brand() string
	DefaultSections() []string
	// Seeds builds section URLs; no sections or "all" selects the defaults.
	Seeds(sections []string) []string
	SelectType(url string) crawler.URLKind
	// Decode parses a fetched body. An error fails the URL.
	Decode(url string, body []byte) (Document, error)
	IsFirstPage(url string) bool
	PagesCount(doc Document) (int, error)
	// PageURLs returns the URLs of pages 2..pages of the section at url.
	PageURLs(url string, pages int) []string
	Listing(doc Document) (Listing, error)
	// Companion names an extra payload to fetch for a good, or "".
	Companion(url string) string
	// ParseRecord maps one product. Failures wrap crawler.ErrRecordMapping.
	ParseRecord(item Document) (crawler.Record, error)
}

// Options customizes a profile instance.
type Options struct {
	// ReferralPrefix is prepended to every record URL.
	ReferralPrefix string
}

type constructor func(Options) Profile

var registry = map[string]constructor{
	"adidas":     newAdidas,
	"reebok":     newReebok,
	"lacoste":    newLacoste,
	"nb":         newNewBalance,
	"timberland": newTimberland,
	"shein":      newShein,
}

// New returns the named profile.
func New(name string, opts Options) (Profile, error) {
	ctor, ok := registry[strings.ToLower(strings.TrimSpace(name))]
	if !ok {
		return nil, fmt.Errorf("%w %q (known: %s)", ErrUnknownProfile, name, strings.Join(Names(), ", "))
	}
	return ctor(opts), nil
}

// Names lists registered profiles in alphabetical order.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

const sectionPlaceholder = "{section}"

// base carries what every profile shares.
type base struct {
	name       string
	brand      string
	sections   []string
	sectionURL string
	referral   string
}

func (b *base) Name() string  { return b.name }
func (b *base) Brand() string { return b.brand }

func (b *base) DefaultSections() []string {
	return append([]string(nil), b.sections...)
}

func (b *base) Seeds(sections []string) []string {
	selected := sections
	if len(selected) == 0 {
		selected = b.sections
	}
	for _, s := range selected {
		if strings.EqualFold(s, AllSections) {
			selected = b.sections
			break
		}
	}
	seeds := make([]string, 0, len(selected))
	for _, s := range selected {
		if s = strings.TrimSpace(s); s != "" {
			seeds = append(seeds, b.sectionFor(s))
		}
	}
	return seeds
}

func (b *base) Companion(string) string { return "" }

func (b *base) sectionFor(section string) string {
	return strings.Replace(b.sectionURL, sectionPlaceholder, section, 1)
}

// templatePages numbers pages through the section template, as Bitrix shops
// do with PAGEN_1.
func (b *base) templatePages(pages int) []string {
	if pages < 2 {
		return nil
	}
	urls := make([]string, 0, pages-1)
	for n := 2; n <= pages; n++ {
		urls = append(urls, b.sectionFor(fmt.Sprint(n)))
	}
	return urls
}

func (b *base) recordURL(productURL string) string {
	return b.referral + productURL
}

// finish fills defaults shared by every profile and validates the record.
func (b *base) finish(rec crawler.Record) (crawler.Record, error) {
	rec.Brand = b.brand
	if rec.Image == "" || rec.Image == "https:" {
		rec.Image = crawler.DefaultImage
	}
	if rec.Gender == "" {
		rec.Gender = crawler.GenderUnisex
	}
	rec.Discount = crawler.Discount(rec.StandardPrice, rec.SalePrice)
	if err := rec.Validate(); err != nil {
		return crawler.Record{}, err
	}
	return rec, nil
}

func genderOf(raw string) crawler.Gender {
	if g, ok := crawler.ParseGender(raw); ok {
		return g
	}
	return crawler.GenderUnisex
}

func mappingError(url string, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", crawler.ErrRecordMapping, crawler.StripQuery(url), fmt.Sprintf(format, args...))
}
