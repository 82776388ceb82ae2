// Package limiter bounds the number of fetch/expand operations running at the
// same time.
package limiter

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// Limiter is a counting semaphore that hands out release-once slots.
type Limiter struct {
	sem      *semaphore.Weighted
	capacity int64
	inUse    atomic.Int64
	acquired atomic.Int64
	released atomic.Int64
}

// New creates a Limiter with the given number of slots.
func New(capacity int) (*Limiter, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("limiter capacity must be > 0, got %d", capacity)
	}
	return &Limiter{
		sem:      semaphore.NewWeighted(int64(capacity)),
		capacity: int64(capacity),
	}, nil
}

// Acquire blocks until a slot is free or ctx is done. Waiters are woken in
// arrival order.
func (l *Limiter) Acquire(ctx context.Context) (*Slot, error) {
	if err := l.sem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire slot: %w", err)
	}
	l.inUse.Add(1)
	l.acquired.Add(1)
	return &Slot{limiter: l}, nil
}

// Capacity returns the configured number of slots.
func (l *Limiter) Capacity() int {
	return int(l.capacity)
}

// InUse returns the number of occupied slots.
func (l *Limiter) InUse() int {
	return int(l.inUse.Load())
}

// Available returns the number of free slots.
func (l *Limiter) Available() int {
	return int(l.capacity - l.inUse.Load())
}

// Stats returns how many slots were handed out and given back.
func (l *Limiter) Stats() (acquired, released int64) {
	return l.acquired.Load(), l.released.Load()
}

// Slot is one occupied unit of capacity.
type Slot struct {
	limiter *Limiter
	once    sync.Once
}

// Release frees the slot. Only the first call has an effect, so it can be
// deferred on every exit path.
func (s *Slot) Release() {
	if s == nil || s.limiter == nil {
		return
	}
	s.once.Do(func() {
		s.limiter.inUse.Add(-1)
		s.limiter.released.Add(1)
		s.limiter.sem.Release(1)
	})
}
