// Package frontier tracks every URL a crawl run has seen and the state it is
// in. A URL moves Pending → InFlight → Completed exactly once and is never
// admitted again after its first discovery.
package frontier

import (
	"errors"
	"fmt"
	"sync"
)

// State is the position of a URL in the frontier.
type State int

// Frontier states.
const (
	StateUnknown State = iota
	StatePending
	StateInFlight
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StatePending:
		return "pending"
	case StateInFlight:
		return "in_flight"
	case StateCompleted:
		return "completed"
	default:
		return "unknown"
	}
}

var (
	// ErrNotPending is returned by Begin for URLs that are not pending.
	ErrNotPending = errors.New("url is not pending")
	// ErrNotInFlight is returned by Finish for URLs that are not in flight.
	ErrNotInFlight = errors.New("url is not in flight")
)

// Counts is a point-in-time view of the set sizes.
type Counts struct {
	Pending   int `json:"pending"`
	InFlight  int `json:"in_flight"`
	Completed int `json:"completed"`
	Succeeded int `json:"succeeded"`
	Failed    int `json:"failed"`
}

// Frontier partitions known URLs into three disjoint sets. It is safe for
// concurrent use.
type Frontier struct {
	mu        sync.Mutex
	pending   map[string]struct{}
	inFlight  map[string]struct{}
	completed map[string]bool
	succeeded int
}

// New returns an empty Frontier.
func New() *Frontier {
	return &Frontier{
		pending:   make(map[string]struct{}),
		inFlight:  make(map[string]struct{}),
		completed: make(map[string]bool),
	}
}

// Discover admits url into Pending unless it has been seen before. It reports
// whether the URL was newly admitted.
func (f *Frontier) Discover(url string) bool {
	if url == "" {
		return false
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.stateLocked(url) != StateUnknown {
		return false
	}
	f.pending[url] = struct{}{}
	return true
}

// Begin moves url from Pending to InFlight.
func (f *Frontier) Begin(url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.pending[url]; !ok {
		return fmt.Errorf("begin %s (%s): %w", url, f.stateLocked(url), ErrNotPending)
	}
	delete(f.pending, url)
	f.inFlight[url] = struct{}{}
	return nil
}

// Finish moves url from InFlight to Completed and records the outcome. A
// completion record is never overwritten.
func (f *Frontier) Finish(url string, success bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.inFlight[url]; !ok {
		return fmt.Errorf("finish %s (%s): %w", url, f.stateLocked(url), ErrNotInFlight)
	}
	delete(f.inFlight, url)
	f.completed[url] = success
	if success {
		f.succeeded++
	}
	return nil
}

// IsQuiescent reports whether nothing is in flight. Pending may still hold
// URLs that are waiting for a slot.
func (f *Frontier) IsQuiescent() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.inFlight) == 0
}

// State returns the current state of url.
func (f *Frontier) State(url string) State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stateLocked(url)
}

// Result returns the recorded outcome of a completed url.
func (f *Frontier) Result(url string) (success bool, ok bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	success, ok = f.completed[url]
	return success, ok
}

// Counts returns the current set sizes.
func (f *Frontier) Counts() Counts {
	f.mu.Lock()
	defer f.mu.Unlock()
	return Counts{
		Pending:   len(f.pending),
		InFlight:  len(f.inFlight),
		Completed: len(f.completed),
		Succeeded: f.succeeded,
		Failed:    len(f.completed) - f.succeeded,
	}
}

func (f *Frontier) stateLocked(url string) State {
	if _, ok := f.pending[url]; ok {
		return StatePending
	}
	if _, ok := f.inFlight[url]; ok {
		return StateInFlight
	}
	if _, ok := f.completed[url]; ok {
		return StateCompleted
	}
	return StateUnknown
}
