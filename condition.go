package qtng

import (
	"errors"
	"sync/atomic"

	"github.com/gammazero/deque"
)

// Condition parks coroutines until another coroutine notifies them. Each
// waiter parks on a private Lock that it acquires twice: the first
// acquisition succeeds immediately and makes the lock "held", the second one
// parks until a notify releases it. Notify wakes the oldest waiters first.
//
// The zero value is ready to use. Like Semaphore, a Condition belongs to one
// event loop.
type Condition struct {
	waiters deque.Deque[*Lock]
	closed  bool

	// waiting mirrors waiters.Len. ThreadEvent reads it from foreign
	// threads, so it is kept atomically.
	waiting atomic.Int32
}

// NewCondition creates an empty Condition.
func NewCondition() *Condition {
	return &Condition{}
}

// Wait parks the calling coroutine until a notify reaches it. It returns
// nil when notified, ErrConditionClosed if the condition was closed, or the
// cancellation/shutdown error if the coroutine was killed while parked; in
// every case the waiter record is gone when Wait returns.
func (c *Condition) Wait() error {
	if c.closed {
		return ErrConditionClosed
	}
	mustCurrentCoroutine()
	waiter := NewLock()
	if err := waiter.Acquire(); err != nil {
		return err
	}
	c.waiters.PushBack(waiter)
	c.waiting.Add(1)

	err := waiter.Acquire()
	switch {
	case err == nil:
		waiter.Release(1)
		c.remove(waiter)
		return nil
	case errors.Is(err, ErrSemaphoreClosed):
		c.remove(waiter)
		return ErrConditionClosed
	default:
		waiter.Release(1)
		c.remove(waiter)
		return err
	}
}

func (c *Condition) remove(waiter *Lock) {
	i := c.waiters.Index(func(l *Lock) bool { return l == waiter })
	if i >= 0 {
		c.waiters.Remove(i)
		c.waiting.Add(-1)
	}
}

// Notify releases up to n waiters, oldest first.
func (c *Condition) Notify(n int) {
	for i := 0; i < n && c.waiters.Len() > 0; i++ {
		waiter := c.waiters.PopFront()
		c.waiting.Add(-1)
		waiter.Release(1)
	}
}

// NotifyAll releases every current waiter.
func (c *Condition) NotifyAll() {
	c.Notify(c.waiters.Len())
}

// Getting returns the number of parked waiters. It is safe to call from any
// thread; ThreadEvent aggregates it across loops.
func (c *Condition) Getting() int {
	return int(c.waiting.Load())
}

// Close tears the condition down. Parked waiters are resumed and observe
// ErrConditionClosed; future Wait calls fail immediately.
func (c *Condition) Close() {
	if c.closed {
		return
	}
	c.closed = true
	for c.waiters.Len() > 0 {
		waiter := c.waiters.PopFront()
		c.waiting.Add(-1)
		waiter.Close()
	}
}
