package crawler

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrRecordMapping marks a product whose payload could not be mapped onto a
// Record. It never fails the page that carried the product.
var ErrRecordMapping = errors.New("record mapping failed")

// ErrNotFound is returned by ItemStore.Get for unknown URLs.
var ErrNotFound = errors.New("record not found")

// StatusError reports a non-2xx HTTP response.
type StatusError struct {
	URL  string
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d (%s) for %s", e.Code, http.StatusText(e.Code), StripQuery(e.URL))
}

// Retryable reports whether the status is worth another attempt.
func (e *StatusError) Retryable() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= http.StatusInternalServerError
}
