package profile

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/JakeFAU/sale-shoe-crawler/internal/crawler"
)

// apiPageSize is the number of products the content engine returns per page.
const apiPageSize = 48

var apiDefaultSections = []string{
	"muzhchiny-obuv-outlet",
	"zhenshchiny-obuv-outlet",
	"muzhchiny-obuv",
	"zhenshchiny-obuv",
}

// apiProfile crawls the JSON storefront API shared by adidas and reebok.
type apiProfile struct {
	base
	goodURL string
}

func newAPIProfile(name, brand, host string, opts Options) *apiProfile {
	return &apiProfile{
		base: base{
			name:       name,
			brand:      brand,
			sections:   apiDefaultSections,
			sectionURL: "https://" + host + "/api/plp/content-engine?query=" + sectionPlaceholder,
			referral:   opts.ReferralPrefix,
		},
		goodURL: "https://" + host + "/api/products/",
	}
}

func newAdidas(opts Options) Profile {
	return newAPIProfile("adidas", "Adidas", "www.adidas.ru", opts)
}

func newReebok(opts Options) Profile {
	return newAPIProfile("reebok", "Reebok", "www.reebok.ru", opts)
}

func (p *apiProfile) SelectType(url string) crawler.URLKind {
	switch {
	case strings.Contains(url, "/api/plp/content-engine"):
		return crawler.KindSection
	case strings.Contains(url, "/api/products"):
		return crawler.KindGood
	default:
		return crawler.KindUnknown
	}
}

func (p *apiProfile) Decode(url string, body []byte) (Document, error) {
	data, err := DecodeJSON(body)
	if err != nil {
		return Document{}, err
	}
	return Document{URL: url, Data: data}, nil
}

func (p *apiProfile) IsFirstPage(url string) bool {
	return !strings.Contains(url, "&start")
}

func (p *apiProfile) PagesCount(doc Document) (int, error) {
	count, ok := Number(doc.Data, "raw", "itemList", "count")
	if !ok {
		return 0, mappingError(doc.URL, "raw.itemList.count missing")
	}
	return int(count)/apiPageSize + 1, nil
}

func (p *apiProfile) PageURLs(url string, pages int) []string {
	if pages < 2 {
		return nil
	}
	urls := make([]string, 0, pages-1)
	for k := 1; k < pages; k++ {
		urls = append(urls, url+"&start="+strconv.Itoa(k*apiPageSize))
	}
	return urls
}

func (p *apiProfile) Listing(doc Document) (Listing, error) {
	if _, ok := Lookup(doc.Data, "raw", "itemList", "items"); !ok {
		return Listing{}, mappingError(doc.URL, "raw.itemList.items missing")
	}
	var listing Listing
	for _, item := range List(doc.Data, "raw", "itemList", "items") {
		if id := String(item, "productId"); id != "" {
			listing.Goods = append(listing.Goods, p.goodURL+id)
		}
	}
	return listing, nil
}

func (p *apiProfile) Companion(url string) string {
	if p.SelectType(url) != crawler.KindGood {
		return ""
	}
	return url + "/availability"
}

func (p *apiProfile) ParseRecord(item Document) (crawler.Record, error) {
	data := item.Data
	parts := strings.Split(String(data, "meta_data", "canonical"), "/")
	if len(parts) < 3 {
		return crawler.Record{}, mappingError(item.URL, "meta_data.canonical missing")
	}
	standard, ok := Number(data, "pricing_information", "standard_price")
	if !ok {
		return crawler.Record{}, mappingError(item.URL, "pricing_information.standard_price missing")
	}
	sale, ok := Number(data, "pricing_information", "sale_price")
	if !ok {
		sale = standard
	}
	// Full-price products show up in the non-outlet sections and are not kept.
	if crawler.Discount(standard, sale) == nil {
		return crawler.Record{}, mappingError(item.URL, "no discount")
	}

	var productTypes []string
	for _, t := range List(data, "attribute_list", "productType") {
		if s, ok := t.(string); ok {
			productTypes = append(productTypes, s)
		}
	}

	sizes, label := apiSizes(item.Companion)
	rec := crawler.Record{
		URL:            p.recordURL("https://" + parts[len(parts)-3] + "/" + parts[len(parts)-1]),
		VendorCode:     crawler.OptionalString(String(data, "id")),
		Name:           String(data, "name"),
		Image:          apiImage(data),
		Gender:         genderOf(String(data, "attribute_list", "gender")),
		Category:       String(data, "attribute_list", "category"),
		Subcategory:    joined(productTypes),
		Color:          crawler.OptionalString(String(data, "attribute_list", "search_color_raw")),
		StandardPrice:  standard,
		SalePrice:      sale,
		AvailableSizes: sizes,
		SizeLabel:      label,
	}
	return p.finish(rec)
}

func apiImage(data any) string {
	if img := String(data, "product_description", "description_assets", "image_url"); img != "" {
		return img
	}
	return String(data, "view_list", 0, "image_url")
}

var apiSizeRe = regexp.MustCompile(`^(.+) (\w+)$`)

// apiSizes groups in-stock variation sizes ("44 RU") by label and keeps the
// first label seen.
func apiSizes(availability any) (*string, string) {
	if String(availability, "availability_status") != "IN_STOCK" {
		return nil, ""
	}
	var (
		firstLabel string
		sizes      []string
	)
	for _, v := range List(availability, "variation_list") {
		if String(v, "availability_status") != "IN_STOCK" {
			continue
		}
		m := apiSizeRe.FindStringSubmatch(String(v, "size"))
		if m == nil {
			continue
		}
		label := strings.ToUpper(m[2])
		if firstLabel == "" {
			firstLabel = label
		}
		if label == firstLabel {
			sizes = append(sizes, m[1])
		}
	}
	if firstLabel == "" {
		return nil, ""
	}
	return crawler.JoinValues(sizes), firstLabel
}
