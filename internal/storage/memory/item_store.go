package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/JakeFAU/sale-shoe-crawler/internal/crawler"
)

// ItemStore keeps records in a map keyed by URL. It mirrors the Postgres
// upsert: every column is overwritten except created.
type ItemStore struct {
	mu      sync.RWMutex
	items   map[string]crawler.Record
	upserts int
}

var _ crawler.ItemStore = (*ItemStore)(nil)

// NewItemStore constructs an empty ItemStore.
func NewItemStore() *ItemStore {
	return &ItemStore{items: make(map[string]crawler.Record)}
}

// Upsert inserts or replaces the record stored under record.URL.
func (s *ItemStore) Upsert(_ context.Context, record crawler.Record) error {
	if record.URL == "" {
		return fmt.Errorf("upsert item: url is required")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if existing, ok := s.items[record.URL]; ok && !existing.Created.IsZero() {
		record.Created = existing.Created
	}
	s.items[record.URL] = cloneRecord(record)
	s.upserts++
	return nil
}

// Get returns the record stored for url or crawler.ErrNotFound.
func (s *ItemStore) Get(_ context.Context, url string) (crawler.Record, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	record, ok := s.items[url]
	if !ok {
		return crawler.Record{}, fmt.Errorf("get item %s: %w", crawler.StripQuery(url), crawler.ErrNotFound)
	}
	return cloneRecord(record), nil
}

// Len returns the number of distinct records.
func (s *ItemStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.items)
}

// Upserts returns how many upserts were accepted, including overwrites.
func (s *ItemStore) Upserts() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.upserts
}

// Close is a no-op.
func (s *ItemStore) Close() {}

func cloneRecord(r crawler.Record) crawler.Record {
	r.VendorCode = cloneString(r.VendorCode)
	r.Color = cloneString(r.Color)
	r.AvailableSizes = cloneString(r.AvailableSizes)
	if r.Discount != nil {
		d := *r.Discount
		r.Discount = &d
	}
	return r
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}
