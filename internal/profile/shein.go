package profile

import (
	"bytes"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/sale-shoe-crawler/internal/crawler"
)

const sheinPageSize = 120

var (
	sheinIntroRe = regexp.MustCompile(`productIntroData: ({.+})`)
	// Product links are site-relative paths ending in .html.
	sheinLinkRe = regexp.MustCompile(`^/[\w./-]+\.html$`)
)

type sheinProfile struct {
	base
	site string
}

func newShein(opts Options) Profile {
	return &sheinProfile{
		base: base{
			name:  "shein",
			brand: "Shein",
			sections: []string{
				"RU-Shoes-On-Sale-sc-00509628",
				"Shoes-On-Sale-sc-00505720",
				"Men-Shoes-Bags-On-Sale-sc-00511774",
			},
			sectionURL: "https://ru.shein.com/sale/" + sectionPlaceholder + ".html",
			referral:   opts.ReferralPrefix,
		},
		site: "https://ru.shein.com",
	}
}

func (p *sheinProfile) SelectType(url string) crawler.URLKind {
	if strings.Contains(url, "/sale/") {
		return crawler.KindSection
	}
	return crawler.KindGood
}

// Decode parses the page DOM. Product pages also carry productIntroData; a
// page without it still decodes and fails later at record mapping.
func (p *sheinProfile) Decode(url string, body []byte) (Document, error) {
	html, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return Document{}, fmt.Errorf("parse html: %w", err)
	}
	doc := Document{URL: url, Raw: body, HTML: html}
	if p.SelectType(url) == crawler.KindGood {
		if intro, err := EmbeddedJSON(body, sheinIntroRe); err == nil {
			doc.Data = intro
		}
	}
	return doc, nil
}

func (p *sheinProfile) IsFirstPage(url string) bool {
	return !strings.Contains(url, "page")
}

func (p *sheinProfile) PagesCount(doc Document) (int, error) {
	if doc.HTML == nil {
		return 0, mappingError(doc.URL, "no html document")
	}
	total, ok := Digits(doc.HTML.Find(".top-info__title-sum").First().Text())
	if !ok {
		return 0, mappingError(doc.URL, "goods counter missing")
	}
	return int(total)/sheinPageSize + 1, nil
}

func (p *sheinProfile) PageURLs(url string, pages int) []string {
	if pages < 2 {
		return nil
	}
	urls := make([]string, 0, pages-1)
	for n := 2; n <= pages; n++ {
		urls = append(urls, fmt.Sprintf("%s?page=%d", url, n))
	}
	return urls
}

func (p *sheinProfile) Listing(doc Document) (Listing, error) {
	if doc.HTML == nil {
		return Listing{}, mappingError(doc.URL, "no html document")
	}
	var listing Listing
	seen := make(map[string]struct{})
	doc.HTML.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if !sheinLinkRe.MatchString(href) || strings.Contains(href, "/sale/") {
			return
		}
		if _, dup := seen[href]; dup {
			return
		}
		seen[href] = struct{}{}
		listing.Goods = append(listing.Goods, p.site+href)
	})
	return listing, nil
}

func (p *sheinProfile) ParseRecord(item Document) (crawler.Record, error) {
	data := item.Data
	if data == nil {
		return crawler.Record{}, mappingError(item.URL, "productIntroData missing")
	}
	standard, ok := Number(data, "detail", "retailPrice", "amount")
	if !ok {
		return crawler.Record{}, mappingError(item.URL, "detail.retailPrice.amount missing")
	}
	sale, ok := Number(data, "detail", "salePrice", "amount")
	if !ok {
		return crawler.Record{}, mappingError(item.URL, "detail.salePrice.amount missing")
	}

	image := ""
	if img := String(data, "detail", "goods_img"); img != "" {
		image = "https:" + img
	}
	var color string
	for _, d := range List(data, "detail", "productDetails") {
		if String(d, "attr_name_en") == "Color" {
			if color = String(d, "attr_value"); color != "" {
				break
			}
		}
	}

	var categories, subcategories []string
	children := List(data, "parentCats", "children")
	for _, c := range children {
		categories = append(categories, sheinCategoryName(c))
		for _, sc := range List(c, "children") {
			subcategories = append(subcategories, sheinCategoryName(sc))
		}
	}

	var sizes []string
	for _, s := range List(data, "attrSizeList") {
		value := String(s, "attr_value")
		stock, _ := Number(s, "stock")
		if value != "" && stock > 0 {
			sizes = append(sizes, strings.TrimPrefix(value, "EUR"))
		}
	}

	rec := crawler.Record{
		URL:            p.recordURL(item.URL),
		Name:           String(data, "detail", "goods_name"),
		Image:          image,
		Gender:         genderOf(String(data, "parentCats", "cat_url_name")),
		Category:       joined(categories),
		Subcategory:    joined(subcategories),
		Color:          crawler.OptionalString(color),
		StandardPrice:  standard,
		SalePrice:      sale,
		AvailableSizes: crawler.JoinValues(sizes),
		SizeLabel:      "EUR",
	}
	return p.finish(rec)
}

// sheinCategoryName prefers the Russian name when the category carries one.
func sheinCategoryName(c any) string {
	if String(c, "multi", "language_flag") == "ru" {
		if name := String(c, "multi", "cat_name"); name != "" {
			return name
		}
	}
	return String(c, "cat_url_name")
}

func joined(values []string) string {
	if j := crawler.JoinValues(values); j != nil {
		return *j
	}
	return ""
}
