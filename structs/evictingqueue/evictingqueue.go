package evictingqueue

import "sync"

//
// EvictingQueue is a thread-safe queue structure that automatically maintains the desired maximum
// size by evicting its oldest element if a new element is being added when at capacity. It is
// modeled after the EvictingQueue class from the Google Guava library for Java.
//
// A single consumer can wait on Ready for elements to arrive and then drain them with Poll.
//
type EvictingQueue[T any] struct {
	mu      sync.Mutex
	size    int
	queue   []T
	chReady chan struct{}
}

//
// New instantiates a new evicting queue with the specified maximum size (which is never less than
// one).
//
func New[T any](maxSize int) *EvictingQueue[T] {
	if maxSize < 1 {
		maxSize = 1
	}

	return &EvictingQueue[T]{
		size:    maxSize,
		queue:   make([]T, 0, maxSize),
		chReady: make(chan struct{}, 1),
	}
}

//
// Add appends the provided element to the evicting queue and evicts the oldest element if necessary
// to maintain its maximum size. The evicted element (if any) is returned along with a true
// sentinel.
//
func (o *EvictingQueue[T]) Add(e T) (T, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var evicted T
	var ok bool

	//
	// Remove the oldest element from the tail of the queue if we are currently at capacity.
	//
	if len(o.queue) == o.size {
		evicted, ok = o.queue[0], true

		var zero T

		o.queue[0] = zero
		o.queue = o.queue[1:]
	}

	//
	// Append the new element to head of the queue and wake up anybody waiting on it.
	//
	o.queue = append(o.queue, e)

	select {
	case o.chReady <- struct{}{}:
	default:
	}

	return evicted, ok
}

//
// Poll removes and returns the oldest element of the queue and a true sentinel, or the zero value
// and a false sentinel if the queue is empty.
//
func (o *EvictingQueue[T]) Poll() (T, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	var zero T

	if len(o.queue) == 0 {
		return zero, false
	}

	e := o.queue[0]

	o.queue[0] = zero
	o.queue = o.queue[1:]

	return e, true
}

//
// Ready returns a channel that receives whenever an element has been added since the last receive.
// It never closes.
//
func (o *EvictingQueue[T]) Ready() <-chan struct{} {
	return o.chReady
}

//
// Get returns the element that exists at the specified index of the queue and a true sentinel, or
// the zero value and a false sentinel if the index is out-of-range.
//
func (o *EvictingQueue[T]) Get(index int) (T, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if index < 0 || index >= len(o.queue) {
		var zero T

		return zero, false
	}

	return o.queue[index], true
}

//
// Clear removes every element from the queue and returns how many there were.
//
func (o *EvictingQueue[T]) Clear() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	n := len(o.queue)
	o.queue = make([]T, 0, o.size)

	return n
}

//
// Len returns the current length of the queue.
//
func (o *EvictingQueue[T]) Len() int {
	o.mu.Lock()
	defer o.mu.Unlock()

	return len(o.queue)
}

func (o *EvictingQueue[T]) Cap() int {
	return o.size
}
