package profile

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sale-shoe-crawler/internal/crawler"
)

const adidasSection = "https://www.adidas.ru/api/plp/content-engine?query=muzhchiny-obuv-outlet"

const adidasSectionBody = `{
	"raw": {
		"itemList": {
			"count": 100,
			"items": [
				{"productId": "GX1234"},
				{"productId": "FZ5678"},
				{"name": "no id"}
			]
		}
	}
}`

const adidasProductBody = `{
	"id": "GX1234",
	"name": "Кроссовки Forum Low",
	"meta_data": {"canonical": "//www.adidas.ru/krossovki-forum-low/GX1234.html"},
	"attribute_list": {
		"gender": "M",
		"category": "Обувь",
		"productType": ["Кроссовки", "Lifestyle"],
		"search_color_raw": "белый"
	},
	"pricing_information": {"standard_price": 9999, "sale_price": 5999},
	"product_description": {"description_assets": {}},
	"view_list": [{"image_url": "https://assets.adidas.com/images/GX1234_01.jpg"}]
}`

const adidasAvailabilityBody = `{
	"availability_status": "IN_STOCK",
	"variation_list": [
		{"size": "41 RU", "availability_status": "IN_STOCK"},
		{"size": "42 RU", "availability_status": "NOT_AVAILABLE"},
		{"size": "43 1/3 RU", "availability_status": "IN_STOCK"},
		{"size": "9 UK", "availability_status": "IN_STOCK"}
	]
}`

func mustProfile(t *testing.T, name string, opts Options) Profile {
	t.Helper()
	p, err := New(name, opts)
	require.NoError(t, err)
	return p
}

func TestAdidasSelectType(t *testing.T) {
	t.Parallel()

	p := mustProfile(t, "adidas", Options{})
	require.Equal(t, crawler.KindSection, p.SelectType(adidasSection))
	require.Equal(t, crawler.KindGood, p.SelectType("https://www.adidas.ru/api/products/GX1234"))
	require.Equal(t, crawler.KindUnknown, p.SelectType("https://www.adidas.ru/krossovki"))
}

func TestAdidasSectionPagination(t *testing.T) {
	t.Parallel()

	p := mustProfile(t, "adidas", Options{})
	require.True(t, p.IsFirstPage(adidasSection))
	require.False(t, p.IsFirstPage(adidasSection+"&start=48"))

	doc, err := p.Decode(adidasSection, []byte(adidasSectionBody))
	require.NoError(t, err)
	pages, err := p.PagesCount(doc)
	require.NoError(t, err)
	require.Equal(t, 3, pages)
	require.Equal(t, []string{adidasSection + "&start=48", adidasSection + "&start=96"}, p.PageURLs(adidasSection, pages))
	require.Nil(t, p.PageURLs(adidasSection, 1))

	listing, err := p.Listing(doc)
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://www.adidas.ru/api/products/GX1234",
		"https://www.adidas.ru/api/products/FZ5678",
	}, listing.Goods)
	require.Empty(t, listing.Items)
}

func TestAdidasListingRequiresItems(t *testing.T) {
	t.Parallel()

	p := mustProfile(t, "reebok", Options{})
	doc, err := p.Decode(adidasSection, []byte(`{"raw":{}}`))
	require.NoError(t, err)
	_, err = p.Listing(doc)
	require.ErrorIs(t, err, crawler.ErrRecordMapping)
	_, err = p.PagesCount(doc)
	require.Error(t, err)
}

func TestAdidasDecodeRejectsHTML(t *testing.T) {
	t.Parallel()

	p := mustProfile(t, "adidas", Options{})
	_, err := p.Decode(adidasSection, []byte("<html>blocked</html>"))
	require.Error(t, err)
}

func TestAdidasParseRecord(t *testing.T) {
	t.Parallel()

	p := mustProfile(t, "adidas", Options{ReferralPrefix: "https://ref.example/?ulp="})
	goodURL := "https://www.adidas.ru/api/products/GX1234"
	require.Equal(t, goodURL+"/availability", p.Companion(goodURL))
	require.Empty(t, p.Companion(adidasSection))

	doc, err := p.Decode(goodURL, []byte(adidasProductBody))
	require.NoError(t, err)
	availability, err := p.Decode(p.Companion(goodURL), []byte(adidasAvailabilityBody))
	require.NoError(t, err)
	doc.Companion = availability.Data

	rec, err := p.ParseRecord(doc)
	require.NoError(t, err)
	require.Equal(t, "https://ref.example/?ulp=https://www.adidas.ru/GX1234.html", rec.URL)
	require.Equal(t, "Adidas", rec.Brand)
	require.Equal(t, "GX1234", *rec.VendorCode)
	require.Equal(t, "Кроссовки Forum Low", rec.Name)
	require.Equal(t, "https://assets.adidas.com/images/GX1234_01.jpg", rec.Image)
	require.Equal(t, crawler.GenderMen, rec.Gender)
	require.Equal(t, "Обувь", rec.Category)
	require.Equal(t, "Кроссовки;Lifestyle", rec.Subcategory)
	require.Equal(t, "белый", *rec.Color)
	require.Equal(t, 9999.0, rec.StandardPrice)
	require.Equal(t, 5999.0, rec.SalePrice)
	require.Equal(t, 40, *rec.Discount)
	require.Equal(t, "41;43 1/3", *rec.AvailableSizes)
	require.Equal(t, "RU", rec.SizeLabel)
}

func TestAdidasParseRecordOutOfStock(t *testing.T) {
	t.Parallel()

	p := mustProfile(t, "adidas", Options{})
	doc, err := p.Decode("https://www.adidas.ru/api/products/GX1234", []byte(adidasProductBody))
	require.NoError(t, err)
	availability, err := DecodeJSON([]byte(`{"availability_status":"NOT_AVAILABLE"}`))
	require.NoError(t, err)
	doc.Companion = availability

	rec, err := p.ParseRecord(doc)
	require.NoError(t, err)
	require.Nil(t, rec.AvailableSizes)
	require.Empty(t, rec.SizeLabel)
}

func TestAdidasParseRecordSkipsFullPrice(t *testing.T) {
	t.Parallel()

	for _, pricing := range []string{
		`{"standard_price": 9999, "sale_price": 9999}`,
		`{"standard_price": 9999}`,
	} {
		p := mustProfile(t, "reebok", Options{})
		body := strings.Replace(adidasProductBody,
			`{"standard_price": 9999, "sale_price": 5999}`, pricing, 1)
		doc, err := p.Decode("https://www.reebok.ru/api/products/GX1234", []byte(body))
		require.NoError(t, err)
		_, err = p.ParseRecord(doc)
		require.ErrorIs(t, err, crawler.ErrRecordMapping, pricing)
	}
}

func TestAdidasParseRecordMissingPrice(t *testing.T) {
	t.Parallel()

	p := mustProfile(t, "adidas", Options{})
	doc, err := p.Decode("https://www.adidas.ru/api/products/X", []byte(`{
		"name": "x",
		"meta_data": {"canonical": "https://www.adidas.ru/x/X.html"}
	}`))
	require.NoError(t, err)
	_, err = p.ParseRecord(doc)
	require.ErrorIs(t, err, crawler.ErrRecordMapping)
}
