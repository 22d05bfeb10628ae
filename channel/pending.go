package channel

import "sync"

// Outcome is the terminal result of a pending request: exactly one of Value
// or Err is set.
type Outcome[T any] struct {
	Value T
	Err   error
}

// Table correlates in-flight requests on one persistent connection with their
// responses. Keys are unique per connection at any instant; an id may be
// reused only after its prior entry is resolved or discarded.
//
// Contract:
// - Concurrency: safe for concurrent use.
// - Resolution: each entry resolves exactly once: Resolve, Fail, FailAll, or
//   Discard, whichever happens first. A Resolve for an unknown id reports
//   false and the payload is dropped, never delivered to another waiter.
type Table[T any] struct {
	mu      sync.Mutex
	waiters map[uint64]chan Outcome[T]
}

// NewTable creates an empty correlation table.
func NewTable[T any]() *Table[T] {
	return &Table[T]{waiters: make(map[uint64]chan Outcome[T])}
}

// Register creates a waiter for the given correlation id. The returned
// channel receives exactly one Outcome.
func (t *Table[T]) Register(id uint64) <-chan Outcome[T] {
	ch := make(chan Outcome[T], 1)
	t.mu.Lock()
	t.waiters[id] = ch
	t.mu.Unlock()
	return ch
}

// Resolve delivers a response to the waiter for id. It reports whether a
// waiter existed; a late response for a discarded id returns false.
func (t *Table[T]) Resolve(id uint64, value T) bool {
	return t.settle(id, Outcome[T]{Value: value})
}

// Fail delivers an error to the waiter for id.
func (t *Table[T]) Fail(id uint64, err error) bool {
	return t.settle(id, Outcome[T]{Err: err})
}

// Discard removes the waiter for id without delivering anything. Used when
// the caller abandons the request (timeout, cancellation); a subsequent
// response for the id is then dropped by Resolve.
func (t *Table[T]) Discard(id uint64) {
	t.mu.Lock()
	delete(t.waiters, id)
	t.mu.Unlock()
}

// FailAll fails every pending request with err. Used when the connection
// degrades; callers must retry explicitly, nothing is replayed.
func (t *Table[T]) FailAll(err error) {
	t.mu.Lock()
	waiters := t.waiters
	t.waiters = make(map[uint64]chan Outcome[T])
	t.mu.Unlock()

	for _, ch := range waiters {
		ch <- Outcome[T]{Err: err}
	}
}

// Len returns the number of in-flight requests.
func (t *Table[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.waiters)
}

func (t *Table[T]) settle(id uint64, out Outcome[T]) bool {
	t.mu.Lock()
	ch, ok := t.waiters[id]
	if ok {
		delete(t.waiters, id)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	ch <- out
	return true
}
