package ledger

import "sync/atomic"

// Counter is the in-memory sequence allocator for task ids.
//
// Lifecycle: Uninitialized until the first Next, which implicitly
// initializes count to 0 and allocates it. Each Next returns the prior count
// and increments it by exactly one.
//
// Thread-safety: Next is a single atomic add, so it is linearizable. For N
// calls the returned set is exactly {0, ..., N-1}. The zero value is ready
// to use.
type Counter struct {
	count       atomic.Uint64
	initialized atomic.Bool
}

// NewCounter creates an uninitialized counter.
func NewCounter() *Counter {
	return &Counter{}
}

// NewCounterAt creates a counter whose next allocation is start.
// Used to resume from a persisted position.
func NewCounterAt(start uint64) *Counter {
	c := &Counter{}
	c.count.Store(start)
	c.initialized.Store(true)
	return c
}

// Next allocates the next id.
// Wraps after 2^64 allocations; callers never get there in practice.
func (c *Counter) Next() uint64 {
	c.initialized.Store(true)
	return c.count.Add(1) - 1
}

// Current returns the value the next call to Next will return.
func (c *Counter) Current() uint64 {
	return c.count.Load()
}

// Initialized reports whether the counter has left the Uninitialized state.
func (c *Counter) Initialized() bool {
	return c.initialized.Load()
}
