package profile

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/antchfx/htmlquery"

	"github.com/JakeFAU/sale-shoe-crawler/internal/crawler"
)

var (
	bitrixStateRe = regexp.MustCompile(`{"version".+}`)
	jsObjRe       = regexp.MustCompile(`JS_OBJ = ({.+})`)
)

// bitrix holds what the two Bitrix storefronts share: the page state lives in
// a {"version": ...} object, listings expose listing.pagesCount and
// listing.items[].url, product pages expose product.*.
type bitrix struct {
	base
	site string
}

func (b *bitrix) decodeState(url string, body []byte) (Document, error) {
	state, err := EmbeddedJSON(body, bitrixStateRe)
	if err != nil {
		return Document{}, err
	}
	return Document{URL: url, Raw: body, Data: state}, nil
}

func (b *bitrix) PagesCount(doc Document) (int, error) {
	pages, ok := Number(doc.Data, "listing", "pagesCount")
	if !ok {
		return 0, mappingError(doc.URL, "listing.pagesCount missing")
	}
	return int(pages), nil
}

func (b *bitrix) PageURLs(_ string, pages int) []string {
	return b.templatePages(pages)
}

func (b *bitrix) Listing(doc Document) (Listing, error) {
	if _, ok := Lookup(doc.Data, "listing", "items"); !ok {
		return Listing{}, mappingError(doc.URL, "listing.items missing")
	}
	var listing Listing
	for _, item := range List(doc.Data, "listing", "items") {
		if path := String(item, "url"); path != "" {
			listing.Goods = append(listing.Goods, b.site+path)
		}
	}
	return listing, nil
}

// product returns the product object and its site-relative URL.
func (b *bitrix) product(item Document) (any, string, error) {
	product, ok := Lookup(item.Data, "product")
	if !ok {
		return nil, "", mappingError(item.URL, "product missing")
	}
	path := String(product, "url")
	if path == "" {
		return nil, "", mappingError(item.URL, "product.url missing")
	}
	return product, path, nil
}

func prices(item Document, product any) (float64, float64, error) {
	standard, ok := Number(product, "unitPrice")
	if !ok {
		return 0, 0, mappingError(item.URL, "product.unitPrice missing")
	}
	sale, ok := Number(product, "unitSalePrice")
	if !ok {
		return 0, 0, mappingError(item.URL, "product.unitSalePrice missing")
	}
	return standard, sale, nil
}

type newBalanceProfile struct {
	bitrix
}

func newNewBalance(opts Options) Profile {
	return &newBalanceProfile{bitrix{
		base: base{
			name:     "nb",
			brand:    "New Balance",
			sections: []string{"1"},
			sectionURL: "https://newbalance.ru/sale/?sort=default" +
				"&arrCatalogFilter_220_435051366=Y&arrCatalogFilter_220_2162625244=Y" +
				"&arrCatalogFilter_221_1734289371=Y" +
				"&set_filter=%D0%9F%D0%BE%D0%BA%D0%B0%D0%B7%D0%B0%D1%82%D1%8C&PAGEN_1=" + sectionPlaceholder,
			referral: opts.ReferralPrefix,
		},
		site: "https://newbalance.ru",
	}}
}

func (p *newBalanceProfile) SelectType(url string) crawler.URLKind {
	if strings.Contains(url, "/catalog/") {
		return crawler.KindGood
	}
	return crawler.KindSection
}

func (p *newBalanceProfile) Decode(url string, body []byte) (Document, error) {
	return p.decodeState(url, body)
}

func (p *newBalanceProfile) IsFirstPage(url string) bool {
	return strings.HasSuffix(url, "PAGEN_1=1") && p.SelectType(url) == crawler.KindSection
}

func (p *newBalanceProfile) ParseRecord(item Document) (crawler.Record, error) {
	product, path, err := p.product(item)
	if err != nil {
		return crawler.Record{}, err
	}
	standard, sale, err := prices(item, product)
	if err != nil {
		return crawler.Record{}, err
	}

	// product.category is [gender, category, subcategory]; older pages only
	// encode them in the URL: /catalog/<gender>/<n>_<category>/<n>_<subcategory>/...
	var gender, category, subcategory string
	if meta := List(product, "category"); len(meta) >= 3 {
		gender, category, subcategory = String(meta, 0), String(meta, 1), String(meta, 2)
	} else if segs := strings.Split(path, "/"); len(segs) >= 7 {
		gender = segs[2]
		category = capitalize(lastUnderscorePart(segs[3]))
		subcategory = lastUnderscorePart(segs[4])
	}
	// The sale filter only lets sneakers through.
	subcategory = "Кроссовки;" + subcategory

	var sizes []string
	for _, v := range List(product, "variations") {
		sizes = append(sizes, String(v, "size"))
	}
	image := ""
	if img := String(product, "imageUrl"); img != "" {
		image = p.site + img
	}
	segs := strings.Split(path, "/")
	vendor := ""
	if len(segs) >= 2 {
		vendor = segs[len(segs)-2]
	}

	rec := crawler.Record{
		URL:            p.recordURL(p.site + path),
		VendorCode:     crawler.OptionalString(vendor),
		Name:           String(product, "name"),
		Image:          image,
		Gender:         genderOf(gender),
		Category:       category,
		Subcategory:    subcategory,
		Color:          crawler.OptionalString(String(product, "color")),
		StandardPrice:  standard,
		SalePrice:      sale,
		AvailableSizes: crawler.JoinValues(sizes),
		SizeLabel:      "RU",
	}
	return p.finish(rec)
}

type timberlandProfile struct {
	bitrix
}

func newTimberland(opts Options) Profile {
	return &timberlandProfile{bitrix{
		base: base{
			name:       "timberland",
			brand:      "Timberland",
			sections:   []string{"1"},
			sectionURL: "https://timberland.ru/sale/filter/product_type-is-obuv/apply/?PAGEN_1=" + sectionPlaceholder,
			referral:   opts.ReferralPrefix,
		},
		site: "https://timberland.ru",
	}}
}

func (p *timberlandProfile) SelectType(url string) crawler.URLKind {
	if strings.Contains(url, "PAGEN_1") {
		return crawler.KindSection
	}
	return crawler.KindGood
}

// Decode also picks up the size table product pages keep in JS_OBJ.
func (p *timberlandProfile) Decode(url string, body []byte) (Document, error) {
	doc, err := p.decodeState(url, body)
	if err != nil {
		return Document{}, err
	}
	if p.SelectType(url) == crawler.KindGood {
		if sizes, err := EmbeddedJSON(body, jsObjRe); err == nil {
			doc.Aux = sizes
		}
	}
	return doc, nil
}

func (p *timberlandProfile) IsFirstPage(url string) bool {
	return strings.HasSuffix(url, "PAGEN_1=1")
}

func (p *timberlandProfile) ParseRecord(item Document) (crawler.Record, error) {
	product, path, err := p.product(item)
	if err != nil {
		return crawler.Record{}, err
	}
	standard, sale, err := prices(item, product)
	if err != nil {
		return crawler.Record{}, err
	}

	name := String(product, "name")
	var gender, category string
	if segs := strings.Split(path, "/"); len(segs) >= 7 {
		gender = segs[2]
		category = capitalize(lastUnderscorePart(segs[3]))
		if strings.EqualFold(category, "obuv") {
			category = "Обувь"
		}
	}
	subcategory := ""
	if fields := strings.Fields(name); len(fields) > 0 {
		subcategory = fields[0]
	}

	var sizes []string
	for _, s := range List(item.Aux, "sizes") {
		if rus := String(s, "rus"); rus != "" && String(s, "can_buy") == "Y" {
			sizes = append(sizes, rus)
		}
	}

	rec := crawler.Record{
		URL:            p.recordURL(p.site + path),
		Name:           name,
		Image:          p.image(item, product),
		Gender:         genderOf(gender),
		Category:       category,
		Subcategory:    subcategory,
		Color:          crawler.OptionalString(String(product, "color")),
		StandardPrice:  standard,
		SalePrice:      sale,
		AvailableSizes: crawler.JoinValues(sizes),
		SizeLabel:      "RU",
	}
	return p.finish(rec)
}

// image falls back to the gallery's data-background attribute when the state
// carries no image.
func (p *timberlandProfile) image(item Document, product any) string {
	if img := String(product, "imageUrl"); img != "" {
		return p.site + img
	}
	if len(item.Raw) == 0 {
		return ""
	}
	root, err := htmlquery.Parse(bytes.NewReader(item.Raw))
	if err != nil {
		return ""
	}
	node := htmlquery.FindOne(root, `//*[@data-background]`)
	if node == nil {
		return ""
	}
	if bg := htmlquery.SelectAttr(node, "data-background"); bg != "" {
		return p.site + bg
	}
	return ""
}

func lastUnderscorePart(s string) string {
	parts := strings.Split(s, "_")
	return parts[len(parts)-1]
}

func capitalize(s string) string {
	r, size := utf8.DecodeRuneInString(s)
	if r == utf8.RuneError {
		return s
	}
	return string(unicode.ToUpper(r)) + strings.ToLower(s[size:])
}
