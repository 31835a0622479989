package buffer

import (
	"iter"
	"sync"
)

// RingBuffer is a thread-safe, fixed-capacity window over the most recent
// elements added to it. When full, each new element evicts the oldest one.
//
// The buffer keeps monotonically increasing head and tail counters; the
// element at position i lives in buf[i % cap].
type RingBuffer[T any] struct {
	mu         sync.Mutex
	buf        []T
	head, tail int64
	evicted    int64
}

// RingN creates a new RingBuffer holding at most size elements.
// It panics if size is not positive.
func RingN[T any](size int) *RingBuffer[T] {
	if size <= 0 {
		panic("buffer: ring size must be positive")
	}
	return &RingBuffer[T]{
		buf: make([]T, size),
	}
}

// Add appends one element, evicting the oldest one when the buffer is full.
// It reports whether an element was evicted.
func (rb *RingBuffer[T]) Add(t T) (evicted bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.addLocked(t)
}

func (rb *RingBuffer[T]) addLocked(t T) bool {
	tail := rb.tail % int64(len(rb.buf))
	rb.buf[tail] = t
	rb.tail++
	if rb.tail-rb.head > int64(len(rb.buf)) {
		rb.head++
		rb.evicted++
		return true
	}
	return false
}

// Write appends all elements of p in order. It never fails; the error is
// there so that RingBuffer[byte] satisfies io.Writer.
func (rb *RingBuffer[T]) Write(p []T) (int, error) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	for _, t := range p {
		rb.addLocked(t)
	}
	return len(p), nil
}

// Reset discards all elements. The eviction counter is kept.
func (rb *RingBuffer[T]) Reset() {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	clear(rb.buf)
	rb.head = 0
	rb.tail = 0
}

// Len returns the number of elements currently in the buffer.
func (rb *RingBuffer[T]) Len() int {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return int(rb.tail - rb.head)
}

// Cap returns the capacity of the buffer.
func (rb *RingBuffer[T]) Cap() int {
	return len(rb.buf)
}

// Evicted returns how many elements have been evicted since creation.
func (rb *RingBuffer[T]) Evicted() int64 {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	return rb.evicted
}

// Bytes returns a copy of the buffered elements, oldest first.
func (rb *RingBuffer[T]) Bytes() []T {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	out := make([]T, 0, rb.tail-rb.head)
	for i := rb.head; i < rb.tail; i++ {
		out = append(out, rb.buf[i%int64(len(rb.buf))])
	}
	return out
}

// Backward returns a copy of the buffered elements, newest first.
func (rb *RingBuffer[T]) Backward() []T {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	out := make([]T, 0, rb.tail-rb.head)
	for i := rb.tail - 1; i >= rb.head; i-- {
		out = append(out, rb.buf[i%int64(len(rb.buf))])
	}
	return out
}

// All iterates over a snapshot of the buffered elements, oldest first.
func (rb *RingBuffer[T]) All() iter.Seq[T] {
	items := rb.Bytes()
	return func(yield func(T) bool) {
		for _, t := range items {
			if !yield(t) {
				return
			}
		}
	}
}
