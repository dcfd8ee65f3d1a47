// Package observe provides a current-value stream: subscribers receive the
// latest value and then every later value they manage to keep up with.
package observe

import (
	"context"
	"sync"
)

// Value holds the latest published value of T. A slow subscriber never blocks
// Publish; it only misses intermediate values.
type Value[T any] struct {
	mu   sync.Mutex
	cur  T
	set  bool
	subs map[int]chan T
	next int
}

// NewValue returns a Value with no current value.
func NewValue[T any]() *Value[T] {
	return &Value[T]{subs: make(map[int]chan T)}
}

// NewValueOf returns a Value whose current value is v.
func NewValueOf[T any](v T) *Value[T] {
	o := NewValue[T]()
	o.cur, o.set = v, true
	return o
}

// Publish replaces the current value and offers it to every subscriber.
func (o *Value[T]) Publish(v T) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.cur, o.set = v, true
	for _, ch := range o.subs {
		offer(ch, v)
	}
}

// Load returns the current value and whether one was ever published.
func (o *Value[T]) Load() (T, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.cur, o.set
}

// Subscribe returns a channel carrying the current value (if any) followed by
// later values. The channel is closed once ctx is done.
func (o *Value[T]) Subscribe(ctx context.Context) <-chan T {
	ch := make(chan T, 1)
	o.mu.Lock()
	id := o.next
	o.next++
	o.subs[id] = ch
	if o.set {
		ch <- o.cur
	}
	o.mu.Unlock()

	go func() {
		<-ctx.Done()
		o.mu.Lock()
		delete(o.subs, id)
		close(ch)
		o.mu.Unlock()
	}()
	return ch
}

// Subscribers returns the number of live subscriptions.
func (o *Value[T]) Subscribers() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return len(o.subs)
}

// offer replaces whatever is buffered in ch with v. Callers hold the lock, so
// no other goroutine can fill the slot between the drain and the send.
func offer[T any](ch chan T, v T) {
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- v:
	default:
	}
}
