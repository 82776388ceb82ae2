package memory

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sale-shoe-crawler/internal/crawler"
)

func TestItemStoreUpsertRoundTrip(t *testing.T) {
	t.Parallel()

	store := NewItemStore()
	ctx := context.Background()
	created := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	record := crawler.Record{
		URL:            "https://newbalance.ru/catalog/men/shoes/ml574evg/",
		Brand:          "New Balance",
		VendorCode:     crawler.OptionalString("ml574evg"),
		Name:           "574",
		Image:          crawler.DefaultImage,
		Gender:         crawler.GenderMen,
		Category:       "Обувь",
		Subcategory:    "Кроссовки",
		StandardPrice:  9990,
		SalePrice:      6990,
		Discount:       crawler.Discount(9990, 6990),
		AvailableSizes: crawler.JoinValues([]string{"41", "42.5"}),
		SizeLabel:      "RU",
		Created:        created,
		LastUpdate:     created,
	}
	require.NoError(t, store.Upsert(ctx, record))

	got, err := store.Get(ctx, record.URL)
	require.NoError(t, err)
	require.Equal(t, record, got)

	updated := record
	updated.SalePrice = 4990
	updated.Discount = crawler.Discount(9990, 4990)
	updated.Created = created.Add(24 * time.Hour)
	updated.LastUpdate = created.Add(24 * time.Hour)
	require.NoError(t, store.Upsert(ctx, updated))

	got, err = store.Get(ctx, record.URL)
	require.NoError(t, err)
	require.Equal(t, 4990.0, got.SalePrice)
	require.Equal(t, 50, *got.Discount)
	require.Equal(t, created, got.Created, "created is preserved on conflict")
	require.Equal(t, created.Add(24*time.Hour), got.LastUpdate)
	require.Equal(t, 1, store.Len())
	require.Equal(t, 2, store.Upserts())
}

func TestItemStoreGetMissing(t *testing.T) {
	t.Parallel()

	_, err := NewItemStore().Get(context.Background(), "https://lacoste.ru/catalog/x/")
	require.ErrorIs(t, err, crawler.ErrNotFound)
}

func TestItemStoreRejectsEmptyURL(t *testing.T) {
	t.Parallel()

	require.Error(t, NewItemStore().Upsert(context.Background(), crawler.Record{Name: "x"}))
}

func TestItemStoreReturnsCopies(t *testing.T) {
	t.Parallel()

	store := NewItemStore()
	ctx := context.Background()
	color := "black"
	require.NoError(t, store.Upsert(ctx, crawler.Record{URL: "https://timberland.ru/p/1/", Color: &color}))
	color = "white"

	got, err := store.Get(ctx, "https://timberland.ru/p/1/")
	require.NoError(t, err)
	require.Equal(t, "black", *got.Color)
}
