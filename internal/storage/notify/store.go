// Package notify decorates an ItemStore so every persisted record is announced
// on a topic.
package notify

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/sale-shoe-crawler/internal/crawler"
)

// EventItemUpserted names the message published after a successful upsert.
const EventItemUpserted = "item.upserted"

// Message is the notification payload.
type Message struct {
	Event      string    `json:"event"`
	RunID      string    `json:"run_id,omitempty"`
	URL        string    `json:"url"`
	Brand      string    `json:"brand"`
	Name       string    `json:"name"`
	SalePrice  float64   `json:"sale_price"`
	Discount   *int      `json:"discount,omitempty"`
	LastUpdate time.Time `json:"last_update"`
}

// Store wraps an ItemStore. Publish failures are logged; they never turn a
// successful upsert into an error.
type Store struct {
	inner     crawler.ItemStore
	publisher crawler.Publisher
	topic     string
	runID     string
	logger    *zap.Logger
}

var _ crawler.ItemStore = (*Store)(nil)

// New returns inner unchanged when there is nothing to publish to.
func New(inner crawler.ItemStore, publisher crawler.Publisher, topic, runID string, logger *zap.Logger) crawler.ItemStore {
	if publisher == nil || topic == "" {
		return inner
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		inner:     inner,
		publisher: publisher,
		topic:     topic,
		runID:     runID,
		logger:    logger.Named("notify"),
	}
}

// Upsert persists the record, then publishes it.
func (s *Store) Upsert(ctx context.Context, record crawler.Record) error {
	if err := s.inner.Upsert(ctx, record); err != nil {
		return err
	}
	msg := Message{
		Event:      EventItemUpserted,
		RunID:      s.runID,
		URL:        record.URL,
		Brand:      record.Brand,
		Name:       record.Name,
		SalePrice:  record.SalePrice,
		Discount:   record.Discount,
		LastUpdate: record.LastUpdate,
	}
	if _, err := s.publisher.Publish(ctx, s.topic, msg); err != nil {
		s.logger.Warn("publish upsert failed",
			zap.String("url", crawler.StripQuery(record.URL)),
			zap.String("topic", s.topic),
			zap.Error(err),
		)
	}
	return nil
}

// Get reads through to the wrapped store.
func (s *Store) Get(ctx context.Context, url string) (crawler.Record, error) {
	return s.inner.Get(ctx, url)
}

// Close closes the wrapped store.
func (s *Store) Close() {
	s.inner.Close()
}
