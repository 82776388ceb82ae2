package crawler

import (
	"context"
	"io"
	"time"

	"github.com/google/uuid"
)

// Expander fetches a URL and turns it into follow-up URLs and records. It
// applies its own bounded retry before reporting an error.
type Expander interface {
	Expand(ctx context.Context, url string) (Expansion, error)
}

// ItemStore upserts product records keyed by URL.
type ItemStore interface {
	Upsert(ctx context.Context, record Record) error
	Get(ctx context.Context, url string) (Record, error)
	Close()
}

// BlobStore writes raw artifacts and returns a URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, data io.Reader) (string, error)
}

// Publisher pushes notifications to Pub/Sub (or similar).
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Fetcher fetches a URL and returns the body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, request FetchRequest) (FetchResponse, error)
}

// HeadlessDetector decides whether a headless fetch is warranted.
type HeadlessDetector interface {
	ShouldPromote(probe FetchResponse) bool
}

// RetryPolicy bounds fetch attempts.
type RetryPolicy interface {
	ShouldRetry(err error, attempt int) bool
	Backoff(attempt int) time.Duration
}

// Pacer delays requests to respect per-host rates.
type Pacer interface {
	Wait(ctx context.Context, url string) error
}

// Hasher computes digests for archive object names.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewRunID() (uuid.UUID, error)
}
