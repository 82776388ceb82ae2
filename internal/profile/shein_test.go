package profile

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sale-shoe-crawler/internal/crawler"
)

const sheinSection = "https://ru.shein.com/sale/Shoes-On-Sale-sc-00505720.html"

const sheinSectionPage = `<html><body>
<h1 class="top-info__title">Обувь <span class="top-info__title-sum">250</span></h1>
<a href="/Lace-up-Front-Sneakers-p-1234.html">Sneakers</a>
<a href="/Lace-up-Front-Sneakers-p-1234.html">Sneakers again</a>
<a href="/Slip-On-Loafers-p-5678.html"><img src="x.jpg"></a>
<a href="/sale/Other-On-Sale-sc-1.html">Other sale</a>
<a href="https://ru.shein.com/External-p-1.html">Absolute</a>
<a href="/cart">Cart</a>
</body></html>`

const sheinProductPage = `<html><body><script>
var gbProductData = {
productIntroData: {"detail":{"goods_name":"Кроссовки на шнуровке","goods_img":"//img.ltwebstatic.com/1.jpg","retailPrice":{"amount":"2390.00"},"salePrice":{"amount":"1195.00"},"productDetails":[{"attr_name_en":"Style","attr_value":"Sporty"},{"attr_name_en":"Color","attr_value":"Белый"}]},"parentCats":{"cat_url_name":"Women","children":[{"cat_url_name":"Shoes","multi":{"language_flag":"ru","cat_name":"Обувь"},"children":[{"cat_url_name":"Sneakers"}]}]},"attrSizeList":[{"attr_value":"EUR37","stock":"3"},{"attr_value":"EUR38","stock":"0"},{"attr_value":"EUR39","stock":1}]},
}
</script></body></html>`

func TestSheinSectionPagination(t *testing.T) {
	t.Parallel()

	p := mustProfile(t, "shein", Options{})
	require.Equal(t, crawler.KindSection, p.SelectType(sheinSection))
	require.True(t, p.IsFirstPage(sheinSection))
	require.False(t, p.IsFirstPage(sheinSection+"?page=2"))

	doc, err := p.Decode(sheinSection, []byte(sheinSectionPage))
	require.NoError(t, err)
	pages, err := p.PagesCount(doc)
	require.NoError(t, err)
	require.Equal(t, 3, pages)
	require.Equal(t, []string{sheinSection + "?page=2", sheinSection + "?page=3"}, p.PageURLs(sheinSection, pages))
}

func TestSheinListingKeepsRelativeProductLinks(t *testing.T) {
	t.Parallel()

	p := mustProfile(t, "shein", Options{})
	doc, err := p.Decode(sheinSection, []byte(sheinSectionPage))
	require.NoError(t, err)
	listing, err := p.Listing(doc)
	require.NoError(t, err)
	require.Equal(t, []string{
		"https://ru.shein.com/Lace-up-Front-Sneakers-p-1234.html",
		"https://ru.shein.com/Slip-On-Loafers-p-5678.html",
	}, listing.Goods)
	for _, good := range listing.Goods {
		require.Equal(t, crawler.KindGood, p.SelectType(good))
	}
}

func TestSheinPagesCountMissingCounter(t *testing.T) {
	t.Parallel()

	p := mustProfile(t, "shein", Options{})
	doc, err := p.Decode(sheinSection, []byte("<html><body></body></html>"))
	require.NoError(t, err)
	_, err = p.PagesCount(doc)
	require.ErrorIs(t, err, crawler.ErrRecordMapping)
}

func TestSheinParseRecord(t *testing.T) {
	t.Parallel()

	p := mustProfile(t, "shein", Options{})
	url := "https://ru.shein.com/Lace-up-Front-Sneakers-p-1234.html"
	doc, err := p.Decode(url, []byte(sheinProductPage))
	require.NoError(t, err)

	rec, err := p.ParseRecord(doc)
	require.NoError(t, err)
	require.Equal(t, url, rec.URL)
	require.Equal(t, "Shein", rec.Brand)
	require.Equal(t, "Кроссовки на шнуровке", rec.Name)
	require.Equal(t, "https://img.ltwebstatic.com/1.jpg", rec.Image)
	require.Equal(t, crawler.GenderWomen, rec.Gender)
	require.Equal(t, "Обувь", rec.Category)
	require.Equal(t, "Sneakers", rec.Subcategory)
	require.Equal(t, "Белый", *rec.Color)
	require.Equal(t, 2390.0, rec.StandardPrice)
	require.Equal(t, 1195.0, rec.SalePrice)
	require.Equal(t, 50, *rec.Discount)
	require.Equal(t, "37;39", *rec.AvailableSizes)
	require.Equal(t, "EUR", rec.SizeLabel)
}

func TestSheinParseRecordWithoutIntroData(t *testing.T) {
	t.Parallel()

	p := mustProfile(t, "shein", Options{})
	doc, err := p.Decode("https://ru.shein.com/Gone-p-1.html", []byte("<html><body>sold out</body></html>"))
	require.NoError(t, err)
	_, err = p.ParseRecord(doc)
	require.ErrorIs(t, err, crawler.ErrRecordMapping)
}
