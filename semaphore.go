package qtng

import (
	"log"
	"math"

	"github.com/gammazero/deque"
)

// semaphoreShared is the state shared between the public Semaphore handle
// and every in-flight wake callback. The drain scheduled by Close keeps it
// reachable until the last parked coroutine has been resumed, so closing the
// handle never strands a waiter.
type semaphoreShared struct {
	initValue int
	counter   int

	// notified holds the id of the scheduled wake callback (0 when none is
	// outstanding). It stays nonzero for the whole drain, which is how a
	// resumed waiter tells a granted token apart from a teardown resume.
	notified uint64

	// waiters are weak references to parked coroutines, oldest first.
	waiters deque.Deque[*coroRef]

	// boundLoop is the loop the waiters parked on; wake callbacks must run
	// there.
	boundLoop *EventLoop
}

func newSemaphoreShared(value int) *semaphoreShared {
	if value < 0 {
		value = 0
	}
	return &semaphoreShared{initValue: value, counter: value}
}

func (d *semaphoreShared) bind(l *EventLoop) {
	if d.boundLoop == nil {
		d.boundLoop = l
	}
}

func (d *semaphoreShared) wakeLoop() *EventLoop {
	if d.boundLoop != nil {
		return d.boundLoop
	}
	return CurrentLoop()
}

func (d *semaphoreShared) tryAcquire() bool {
	if d.counter > 0 {
		d.counter--
		return true
	}
	return false
}

func (d *semaphoreShared) acquire() error {
	if d.counter > 0 {
		d.counter--
		return nil
	}
	cur := mustCurrentCoroutine()
	d.bind(cur.loop)
	ref := cur.ref()
	d.waiters.PushBack(ref)
	switch cur.yield() {
	case resumeNormal:
		// The wake callback removed us from the queue before resuming.
		if d.removeWaiter(ref) {
			panic("qtng: semaphore waiter resumed outside the wake callback")
		}
		if d.notified != 0 {
			return nil
		}
		return ErrSemaphoreClosed
	case resumeCanceled:
		// The wake callback must not see us anymore; no token was consumed.
		d.removeWaiter(ref)
		return ErrCoroutineCanceled
	default:
		d.removeWaiter(ref)
		return ErrLoopShutdown
	}
}

func (d *semaphoreShared) removeWaiter(ref *coroRef) bool {
	i := d.waiters.Index(func(r *coroRef) bool { return r == ref })
	if i < 0 {
		return false
	}
	d.waiters.Remove(i)
	return true
}

func (d *semaphoreShared) release(n int) {
	if n <= 0 {
		return
	}
	if d.counter > math.MaxInt-n {
		d.counter = math.MaxInt
	} else {
		d.counter += n
	}
	if d.counter > d.initValue {
		d.counter = d.initValue
	}
	if d.notified == 0 && d.waiters.Len() > 0 {
		if loop := d.wakeLoop(); loop != nil {
			d.notified = loop.CallLater(0, func() { d.notifyWaiters(false) })
		}
	}
}

// notifyWaiters drains the queue on the loop goroutine. Waiters are resumed
// directly, oldest first, one token each; resuming directly instead of
// scheduling one callback per waiter is what preserves FIFO order and avoids
// a thundering herd. With doDelete the queue is drained without consuming
// tokens, and the resumed waiters observe notified == 0, i.e. teardown.
func (d *semaphoreShared) notifyWaiters(doDelete bool) {
	for (d.notified != 0 || doDelete) && (d.counter > 0 || doDelete) && d.waiters.Len() > 0 {
		ref := d.waiters.PopFront()
		waiter := ref.get()
		if waiter == nil {
			log.Printf("qtng: skipping dead semaphore waiter")
			continue
		}
		if !doDelete {
			d.counter--
		}
		d.boundLoop.switchTo(waiter, resumeNormal)
	}
	// Cleared only after the drain: acquire reads notified on resumption.
	d.notified = 0
}

func (d *semaphoreShared) scheduleDelete() {
	loop := d.wakeLoop()
	if loop != nil && d.notified != 0 {
		loop.CancelCall(d.notified)
		d.notified = 0
	}
	d.counter += d.waiters.Len()
	if loop != nil && d.waiters.Len() > 0 {
		loop.CallLater(0, func() { d.notifyWaiters(true) })
	}
}

// Semaphore is a counting gate for coroutines of one event loop. A semaphore
// created with value n allows n concurrent holders; further acquirers park
// in FIFO order and are woken by a single deferred callback when tokens are
// released.
//
// All methods must be called from the semaphore's home loop (a coroutine or
// a loop callback); the loop's run-to-completion discipline replaces a
// mutex. Acquire must only be called from a coroutine.
type Semaphore struct {
	d *semaphoreShared
}

// NewSemaphore creates a semaphore holding value tokens. Negative values are
// treated as 0; a zero-token semaphore can only be passed by Close.
func NewSemaphore(value int) *Semaphore {
	return &Semaphore{d: newSemaphoreShared(value)}
}

// Acquire takes one token, parking the calling coroutine until one is
// available. It returns nil on success, ErrSemaphoreClosed if the semaphore
// was closed, ErrCoroutineCanceled if the coroutine was killed while parked,
// or ErrLoopShutdown if the loop stopped. On any error no token is held.
func (s *Semaphore) Acquire() error {
	if s.d == nil {
		return ErrSemaphoreClosed
	}
	return s.d.acquire()
}

// TryAcquire takes one token without parking. It reports whether a token was
// taken.
func (s *Semaphore) TryAcquire() bool {
	if s.d == nil {
		return false
	}
	return s.d.tryAcquire()
}

// AcquireN takes n tokens, one at a time. It returns ErrTooManyTokens if n
// exceeds the semaphore's capacity. If an acquisition fails midway the
// already-taken tokens are NOT returned; callers that need atomicity must
// release on error themselves.
func (s *Semaphore) AcquireN(n int) error {
	if s.d == nil {
		return ErrSemaphoreClosed
	}
	if n > s.d.initValue {
		return ErrTooManyTokens
	}
	for i := 0; i < n; i++ {
		if err := s.d.acquire(); err != nil {
			return err
		}
	}
	return nil
}

// Release returns n tokens. n <= 0 is a no-op; the counter saturates at the
// semaphore's capacity. If coroutines are parked and no wake is outstanding,
// one deferred wake callback is scheduled.
func (s *Semaphore) Release(n int) {
	if s.d == nil {
		return
	}
	s.d.release(n)
}

// IsLocked reports whether no tokens are available.
func (s *Semaphore) IsLocked() bool {
	if s.d == nil {
		return false
	}
	return s.d.counter <= 0
}

// IsUsed reports whether at least one token is held.
func (s *Semaphore) IsUsed() bool {
	if s.d == nil {
		return false
	}
	return s.d.counter < s.d.initValue
}

// Getting returns the number of parked coroutines.
func (s *Semaphore) Getting() int {
	if s.d == nil {
		return 0
	}
	return s.d.waiters.Len()
}

// Close tears the semaphore down. Any outstanding wake is canceled and every
// parked coroutine is resumed, observing ErrSemaphoreClosed. The shared
// state stays alive until the drain completes. Close is idempotent.
func (s *Semaphore) Close() {
	if s.d == nil {
		return
	}
	s.d.scheduleDelete()
	s.d = nil
}

// Lock is a binary Semaphore. Release by a non-holder is not rejected at
// this level; callers that need ownership tracking use RLock.
type Lock struct {
	Semaphore
}

// NewLock creates an unlocked Lock.
func NewLock() *Lock {
	return &Lock{Semaphore{d: newSemaphoreShared(1)}}
}

// AcquireAny waits until any of the given semaphores can supply n tokens and
// returns the one that did. Closed semaphores in the list are skipped. If
// every semaphore is contended the calling coroutine parks on all of them
// and is granted by exactly one; the remaining n-1 tokens are then taken
// from that semaphore, with AcquireN's no-rollback contract on failure.
func AcquireAny(semaphores []*Semaphore, n int) (*Semaphore, error) {
	if s := TryAcquireAny(semaphores, n); s != nil {
		return s, nil
	}
	cur := mustCurrentCoroutine()
	ref := cur.ref()
	// Park on every open semaphore, remembering the shared states: a handle
	// may be closed while we are parked, and the waiter record must still be
	// removed from its (drained) shared queue afterwards.
	parked := make([]*Semaphore, 0, len(semaphores))
	shared := make([]*semaphoreShared, 0, len(semaphores))
	for _, s := range semaphores {
		if s.d == nil {
			continue
		}
		s.d.bind(cur.loop)
		s.d.waiters.PushBack(ref)
		parked = append(parked, s)
		shared = append(shared, s.d)
	}
	if len(parked) == 0 {
		return nil, ErrSemaphoreClosed
	}

	kind := cur.yield()

	// Exactly one wake path removed us from its queue; leave the others.
	var granted *Semaphore
	for i, d := range shared {
		if !d.removeWaiter(ref) && d.notified != 0 {
			granted = parked[i]
		}
	}
	switch kind {
	case resumeCanceled:
		if granted != nil {
			granted.Release(1)
		}
		return nil, ErrCoroutineCanceled
	case resumeShutdown:
		if granted != nil {
			granted.Release(1)
		}
		return nil, ErrLoopShutdown
	}
	if granted == nil {
		// Resumed by a teardown drain, not by a grant.
		return nil, ErrSemaphoreClosed
	}
	for i := 1; i < n; i++ {
		if err := granted.Acquire(); err != nil {
			return nil, err
		}
	}
	return granted, nil
}

// TryAcquireAny scans the semaphores for one with n available tokens, takes
// them, and returns it. It returns nil when none has capacity.
func TryAcquireAny(semaphores []*Semaphore, n int) *Semaphore {
	for _, s := range semaphores {
		if s.d != nil && s.d.counter >= n {
			s.d.counter -= n
			return s
		}
	}
	return nil
}
