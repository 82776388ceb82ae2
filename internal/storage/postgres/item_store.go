package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/JakeFAU/sale-shoe-crawler/internal/crawler"
)

const itemColumns = `url, brand, vendor_code, name, image, gender, category, subcategory, color,
	standard_price, sale_price, discount, available_sizes, size_label, created, last_update`

// ItemStore upserts product records keyed by url.
type ItemStore struct {
	pool  querier
	table string
}

var _ crawler.ItemStore = (*ItemStore)(nil)

// NewItemStore wraps a pool (a *pgxpool.Pool in production, pgxmock in
// tests). The store owns the pool and closes it.
func NewItemStore(pool querier, table string) (*ItemStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	table, err := checkTable(table, "items")
	if err != nil {
		return nil, err
	}
	return &ItemStore{pool: pool, table: table}, nil
}

// Close releases the underlying pool resources.
func (s *ItemStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// EnsureSchema creates the items table when it does not exist.
func (s *ItemStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	url             TEXT PRIMARY KEY,
	brand           TEXT NOT NULL,
	vendor_code     TEXT,
	name            TEXT NOT NULL,
	image           TEXT NOT NULL,
	gender          TEXT NOT NULL,
	category        TEXT NOT NULL,
	subcategory     TEXT NOT NULL,
	color           TEXT,
	standard_price  DOUBLE PRECISION NOT NULL,
	sale_price      DOUBLE PRECISION NOT NULL,
	discount        INTEGER,
	available_sizes TEXT,
	size_label      TEXT NOT NULL,
	created         TIMESTAMPTZ NOT NULL,
	last_update     TIMESTAMPTZ NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create table %s: %w", s.table, err)
	}
	return nil
}

// Upsert inserts the record or overwrites every column of the existing row
// except created.
func (s *ItemStore) Upsert(ctx context.Context, record crawler.Record) error {
	if record.URL == "" {
		return fmt.Errorf("upsert item: url is required")
	}
	query := fmt.Sprintf(`
INSERT INTO %s (%s)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
ON CONFLICT (url) DO UPDATE SET
	brand = EXCLUDED.brand,
	vendor_code = EXCLUDED.vendor_code,
	name = EXCLUDED.name,
	image = EXCLUDED.image,
	gender = EXCLUDED.gender,
	category = EXCLUDED.category,
	subcategory = EXCLUDED.subcategory,
	color = EXCLUDED.color,
	standard_price = EXCLUDED.standard_price,
	sale_price = EXCLUDED.sale_price,
	discount = EXCLUDED.discount,
	available_sizes = EXCLUDED.available_sizes,
	size_label = EXCLUDED.size_label,
	last_update = EXCLUDED.last_update`, s.table, itemColumns)

	args := []any{
		record.URL,
		record.Brand,
		record.VendorCode,
		record.Name,
		record.Image,
		string(record.Gender),
		record.Category,
		record.Subcategory,
		record.Color,
		record.StandardPrice,
		record.SalePrice,
		record.Discount,
		record.AvailableSizes,
		record.SizeLabel,
		record.Created,
		record.LastUpdate,
	}
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("upsert item %s: %w", crawler.StripQuery(record.URL), err)
	}
	return nil
}

// Get loads the record stored for url or returns crawler.ErrNotFound.
func (s *ItemStore) Get(ctx context.Context, url string) (crawler.Record, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE url = $1`, itemColumns, s.table)
	var (
		rec    crawler.Record
		gender string
	)
	err := s.pool.QueryRow(ctx, query, url).Scan(
		&rec.URL,
		&rec.Brand,
		&rec.VendorCode,
		&rec.Name,
		&rec.Image,
		&gender,
		&rec.Category,
		&rec.Subcategory,
		&rec.Color,
		&rec.StandardPrice,
		&rec.SalePrice,
		&rec.Discount,
		&rec.AvailableSizes,
		&rec.SizeLabel,
		&rec.Created,
		&rec.LastUpdate,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return crawler.Record{}, fmt.Errorf("get item %s: %w", crawler.StripQuery(url), crawler.ErrNotFound)
		}
		return crawler.Record{}, fmt.Errorf("get item %s: %w", crawler.StripQuery(url), err)
	}
	rec.Gender = crawler.Gender(gender)
	return rec, nil
}
