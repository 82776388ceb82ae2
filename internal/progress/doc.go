// Package progress provides the event primitives, the non-blocking hub and the
// emitter interface the scheduler uses to report crawl progress. The hub batches
// events on a background goroutine and fans them out to sinks such as
// structured logs and Prometheus collectors.
package progress
