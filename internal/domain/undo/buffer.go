// Package undo implements a single-slot, time-boxed reversal buffer.
//
// A Buffer holds at most one pending Entry. Set always replaces the pending
// entry and restarts its countdown; the entry is cleared automatically when the
// countdown expires. Undo applies the payload through the restore function
// given at construction and clears the slot regardless of remaining time.
package undo

import (
	"context"
	"math"
	"sync"
	"time"

	"github.com/center-hub/center-hub/internal/domain/shared"
)

// DefaultExpiry is used when an entry is set without a positive expiry.
const DefaultExpiry = 5

// Entry is one reversible action.
type Entry[T any] struct {
	Payload          T      `json:"payload"`
	ExpiresInSeconds int    `json:"expiresInSeconds"`
	Label            string `json:"label"`
}

// RestoreFunc applies a captured payload.
type RestoreFunc[T any] func(ctx context.Context, payload T) error

// Buffer is a single-slot undo buffer. It is safe for concurrent use: the
// expiry timer fires on its own goroutine.
type Buffer[T any] struct {
	mu       sync.Mutex
	clock    shared.Clock
	restore  RestoreFunc[T]
	entry    *Entry[T]
	deadline time.Time
	timer    shared.Timer
	gen      uint64
	closed   bool

	onExpire func(Entry[T])
}

// Option configures a Buffer.
type Option[T any] func(*Buffer[T])

// WithExpireHook registers a callback invoked (outside the lock) when an entry expires.
func WithExpireHook[T any](fn func(Entry[T])) Option[T] {
	return func(b *Buffer[T]) { b.onExpire = fn }
}

// NewBuffer creates an empty buffer.
func NewBuffer[T any](clock shared.Clock, restore RestoreFunc[T], opts ...Option[T]) *Buffer[T] {
	b := &Buffer[T]{clock: clock, restore: restore}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Set replaces any pending entry and restarts the countdown.
func (b *Buffer[T]) Set(e Entry[T]) {
	if e.ExpiresInSeconds <= 0 {
		e.ExpiresInSeconds = DefaultExpiry
	}
	ttl := time.Duration(e.ExpiresInSeconds) * time.Second

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return
	}

	b.stopTimerLocked()
	b.gen++
	gen := b.gen
	b.entry = &e
	b.deadline = b.clock.Now().Add(ttl)
	b.timer = b.clock.AfterFunc(ttl, func() { b.expire(gen) })
}

// Undo takes the pending entry, applies its payload and returns it. Returns
// false with a nil error when nothing is pending. The slot is cleared even if
// restore fails; the taken entry is returned in both cases.
func (b *Buffer[T]) Undo(ctx context.Context) (Entry[T], bool, error) {
	b.mu.Lock()
	e, ok := b.takeLocked()
	b.mu.Unlock()
	if !ok {
		return Entry[T]{}, false, nil
	}
	if err := b.restore(ctx, e.Payload); err != nil {
		return e, false, err
	}
	return e, true, nil
}

// Pending returns the pending entry with ExpiresInSeconds set to the remaining time.
func (b *Buffer[T]) Pending() (Entry[T], bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.liveLocked() {
		return Entry[T]{}, false
	}
	e := *b.entry
	e.ExpiresInSeconds = b.remainingLocked()
	return e, true
}

// Remaining returns whole seconds left (rounded up), 0 when nothing is pending.
func (b *Buffer[T]) Remaining() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.liveLocked() {
		return 0
	}
	return b.remainingLocked()
}

// Clear drops the pending entry without applying it.
func (b *Buffer[T]) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.takeLocked()
}

// Close cancels the countdown and rejects further entries.
func (b *Buffer[T]) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.takeLocked()
	b.closed = true
}

func (b *Buffer[T]) expire(gen uint64) {
	b.mu.Lock()
	if gen != b.gen || b.entry == nil {
		b.mu.Unlock()
		return
	}
	e := *b.entry
	b.entry = nil
	b.timer = nil
	hook := b.onExpire
	b.mu.Unlock()

	if hook != nil {
		hook(e)
	}
}

// liveLocked also handles a timer that has not fired yet past the deadline.
func (b *Buffer[T]) liveLocked() bool {
	if b.entry == nil {
		return false
	}
	if !b.clock.Now().Before(b.deadline) {
		b.entry = nil
		b.stopTimerLocked()
		return false
	}
	return true
}

func (b *Buffer[T]) takeLocked() (Entry[T], bool) {
	if !b.liveLocked() {
		return Entry[T]{}, false
	}
	e := *b.entry
	b.entry = nil
	b.gen++
	b.stopTimerLocked()
	return e, true
}

func (b *Buffer[T]) remainingLocked() int {
	left := b.deadline.Sub(b.clock.Now())
	if left <= 0 {
		return 0
	}
	return int(math.Ceil(left.Seconds()))
}

func (b *Buffer[T]) stopTimerLocked() {
	if b.timer != nil {
		b.timer.Stop()
		b.timer = nil
	}
}
