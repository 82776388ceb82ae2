package profile

import (
	"regexp"
	"strings"

	"github.com/JakeFAU/sale-shoe-crawler/internal/crawler"
)

const lacosteSectionURL = "https://lacoste.ru/catalog/sales/?set_filter=Y" +
	"&arrFilter_123_2371150305=Y&arrFilter_123_3839122159=Y&arrFilter_123_1358442632=Y" +
	"&arrFilter_123_3861158667=Y&arrFilter_123_1536390870=Y&arrFilter_123_2083355641=Y" +
	"&arrFilter_123_3349330188=Y&arrFilter_123_1401442843=Y&arrFilter_187_3563192455=Y" +
	"&arrFilter_187_1298878781=Y&PAGEN_1=" + sectionPlaceholder

var nuxtRe = regexp.MustCompile(`__NUXT__=({.+})`)

// lacosteProfile reads the catalog state Nuxt embeds in every listing page.
// Listing pages carry complete products, so no good URLs are crawled.
type lacosteProfile struct {
	base
	goodURL string
}

func newLacoste(opts Options) Profile {
	return &lacosteProfile{
		base: base{
			name:       "lacoste",
			brand:      "Lacoste",
			sections:   []string{"1"},
			sectionURL: lacosteSectionURL,
			referral:   opts.ReferralPrefix,
		},
		goodURL: "https://lacoste.ru/catalog/",
	}
}

func (p *lacosteProfile) SelectType(url string) crawler.URLKind {
	if strings.Contains(url, "/sales/") {
		return crawler.KindSection
	}
	return crawler.KindGood
}

func (p *lacosteProfile) Decode(url string, body []byte) (Document, error) {
	state, err := EmbeddedJSON(body, nuxtRe)
	if err != nil {
		return Document{}, err
	}
	catalog, ok := Lookup(state, "data", 0, "catalogData")
	if !ok {
		return Document{}, mappingError(url, "data[0].catalogData missing")
	}
	return Document{URL: url, Data: catalog}, nil
}

func (p *lacosteProfile) IsFirstPage(url string) bool {
	return strings.HasSuffix(url, "PAGEN_1=1")
}

func (p *lacosteProfile) PagesCount(doc Document) (int, error) {
	count, okCount := Number(doc.Data, "info", "count")
	perPage, okPer := Number(doc.Data, "info", "perPage")
	if !okCount || !okPer || perPage <= 0 {
		return 0, mappingError(doc.URL, "info.count or info.perPage missing")
	}
	return int(count)/int(perPage) + 1, nil
}

func (p *lacosteProfile) PageURLs(_ string, pages int) []string {
	return p.templatePages(pages)
}

func (p *lacosteProfile) Listing(doc Document) (Listing, error) {
	if _, ok := Lookup(doc.Data, "list"); !ok {
		return Listing{}, mappingError(doc.URL, "list missing")
	}
	var listing Listing
	for _, item := range List(doc.Data, "list") {
		listing.Items = append(listing.Items, Document{URL: doc.URL, Data: item})
	}
	return listing, nil
}

func (p *lacosteProfile) ParseRecord(item Document) (crawler.Record, error) {
	data := item.Data
	code := String(data, "code")
	if code == "" {
		return crawler.Record{}, mappingError(item.URL, "product code missing")
	}
	secCode := String(data, "sec_code")
	if secCode == "" {
		secCode = "deti"
	}
	standard, ok := Digits(String(data, "prices", "old"))
	if !ok {
		return crawler.Record{}, mappingError(item.URL, "prices.old missing for %s", code)
	}
	sale, ok := Digits(String(data, "prices", "current"))
	if !ok {
		return crawler.Record{}, mappingError(item.URL, "prices.current missing for %s", code)
	}

	segments := strings.Split(secCode, "-")
	var sizes []string
	for _, offer := range List(data, "offer") {
		sizes = append(sizes, strings.ReplaceAll(String(offer, "SIZE"), ",", "."))
	}
	image := ""
	if img := String(data, "images", 0); img != "" {
		image = "https:" + img
	}

	rec := crawler.Record{
		URL:            p.recordURL(p.goodURL + secCode + "/" + code + "/"),
		Name:           String(data, "name"),
		Image:          image,
		Gender:         genderOf(segments[len(segments)-1]),
		Category:       "Обувь",
		Subcategory:    segments[0],
		StandardPrice:  standard,
		SalePrice:      sale,
		AvailableSizes: crawler.JoinValues(sizes),
		SizeLabel:      "RU",
	}
	return p.finish(rec)
}
