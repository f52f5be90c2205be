package qtng

import "sync/atomic"

// behold is one subscribing event loop: coroutines of that loop park on the
// dedicated Condition, and cross-thread notifications fan out to it.
type behold struct {
	loop      *EventLoop
	condition *Condition
}

// threadEventShared is the state behind a ThreadEvent handle. It is shared
// by the handle, every in-flight notify, and every parked waiter; each
// participant holds a reference, and the waiters use "refcount drops to 1"
// as the teardown signal. Unlike the single-loop primitives this state is
// touched from arbitrary threads, so holds and link lists live under a
// mutex and flag/count/ref are atomics.
type threadEventShared struct {
	notifier *osNotifier
	mu       teMutex
	holds    []behold
	linkTo   []*ThreadEvent
	linkFrom []*ThreadEvent
	flag     atomic.Bool

	// count tracks waiters parked on the OS notifier.
	count atomic.Int32
	ref   atomic.Int32
}

func (d *threadEventShared) incref() {
	d.ref.Add(1)
}

func (d *threadEventShared) decref() bool {
	return d.ref.Add(-1) > 0
}

// notify fans a wake-up out to every subscriber: dead loops are dropped,
// the current thread's loop is notified synchronously, foreign loops get a
// thread-safe deferred callback, and OS-notifier waiters are woken last.
// notify drops its own reference before any waiter it wakes can run, so a
// woken waiter never counts it.
func (d *threadEventShared) notify() {
	d.incref()
	d.mu.Lock()
	current := CurrentLoop()
	kept := d.holds[:0]
	var foreign []behold
	for _, hold := range d.holds {
		if hold.loop.isClosed() {
			continue
		}
		kept = append(kept, hold)
		if d.ref.Load() <= 1 {
			continue
		}
		if hold.loop == current {
			hold.condition.NotifyAll()
		} else {
			foreign = append(foreign, hold)
		}
	}
	d.holds = kept
	d.mu.Unlock()
	d.decref()
	for _, hold := range foreign {
		condition := hold.condition
		hold.loop.CallLaterThreadSafe(0, func() { condition.NotifyAll() })
	}
	if d.count.Load() > 0 {
		d.notifier.wakeAll()
	}
}

func (d *threadEventShared) wait() (bool, error) {
	if d.flag.Load() {
		return true, nil
	}
	d.incref()
	defer d.decref()

	cur := CurrentCoroutine()
	if cur == nil {
		if CurrentLoop() != nil {
			panic("qtng: ThreadEvent.Wait called from the event loop")
		}
		return d.waitOS(), nil
	}
	return d.waitLoop(cur.loop)
}

// waitOS parks the calling OS thread on the notifier until the flag is set
// or teardown begins.
func (d *threadEventShared) waitOS() bool {
	d.mu.Lock()
	d.count.Add(1)
	f := d.flag.Load()
	for !f && d.ref.Load() > 1 {
		seq := d.notifier.load()
		d.mu.Unlock()
		// Re-check outside the mutex: a notify may have slipped in between
		// the predicate check and the sequence read.
		if !d.flag.Load() && d.ref.Load() > 1 {
			d.notifier.wait(seq)
		}
		d.mu.Lock()
		f = d.flag.Load()
	}
	d.count.Add(-1)
	d.mu.Unlock()
	return f
}

// waitLoop parks the calling coroutine on its loop's hold, creating the
// hold on first use.
func (d *threadEventShared) waitLoop(loop *EventLoop) (bool, error) {
	d.mu.Lock()
	var condition *Condition
	for _, hold := range d.holds {
		if hold.loop == loop {
			condition = hold.condition
			break
		}
	}
	if condition == nil {
		condition = NewCondition()
		d.holds = append(d.holds, behold{loop: loop, condition: condition})
	}
	d.mu.Unlock()

	for {
		f := d.flag.Load()
		if f || d.ref.Load() <= 1 {
			return f, nil
		}
		if err := condition.Wait(); err != nil {
			return false, err
		}
	}
}

func (d *threadEventShared) getting() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := int(d.count.Load())
	for _, hold := range d.holds {
		n += hold.condition.Getting()
	}
	return n
}

// ThreadEvent is the cross-thread Event: a sticky flag that any OS thread
// may set, clear, or wait on. Waiters running as coroutines park on a
// per-loop Condition and are woken through their own loop; waiters on
// threads without a loop block on an OS-level notifier. The shared state is
// reference counted, so an event may be closed while notifications and
// waiters are still in flight.
type ThreadEvent struct {
	d *threadEventShared
}

// NewThreadEvent creates an unset ThreadEvent.
func NewThreadEvent() *ThreadEvent {
	d := &threadEventShared{notifier: newOSNotifier()}
	d.ref.Store(1)
	return &ThreadEvent{d: d}
}

// Set raises the flag and wakes every waiter on every thread. Setting a set
// event is a no-op.
func (e *ThreadEvent) Set() {
	if e.d == nil {
		return
	}
	if e.d.flag.Swap(true) {
		return
	}
	e.d.notify()
}

// Clear lowers the flag without waking anyone.
func (e *ThreadEvent) Clear() {
	if e.d == nil {
		return
	}
	e.d.flag.Store(false)
}

// IsSet reports the flag.
func (e *ThreadEvent) IsSet() bool {
	return e.d != nil && e.d.flag.Load()
}

// Wait blocks the caller until the flag is set and returns the observed
// flag. Coroutines park cooperatively; plain goroutines block on the OS
// notifier. Closing the event unblocks a single parked waiter, which then
// observes false; while several waiters are parked each holds a reference,
// so the count stays above 1 and they keep waiting until Set.
func (e *ThreadEvent) Wait() (bool, error) {
	if e.d == nil {
		return false, nil
	}
	return e.d.wait()
}

// TryWait returns the flag without blocking.
func (e *ThreadEvent) TryWait() bool {
	return e.IsSet()
}

// Getting returns the number of blocked waiters across all threads.
func (e *ThreadEvent) Getting() int {
	if e.d == nil {
		return 0
	}
	return e.d.getting()
}

// Link records other in this event's link list and the back-reference in
// other's, each under its own mutex. Links are bookkeeping only; Set does
// not propagate across ThreadEvents.
func (e *ThreadEvent) Link(other *ThreadEvent) {
	if e.d == nil || other.d == nil {
		return
	}
	e.d.mu.Lock()
	e.d.linkTo = append(e.d.linkTo, other)
	e.d.mu.Unlock()
	other.d.mu.Lock()
	other.d.linkFrom = append(other.d.linkFrom, e)
	other.d.mu.Unlock()
}

// Unlink removes a link created by Link.
func (e *ThreadEvent) Unlink(other *ThreadEvent) {
	if e.d == nil || other.d == nil {
		return
	}
	e.d.mu.Lock()
	removeThreadEvent(&e.d.linkTo, other)
	e.d.mu.Unlock()
	other.d.mu.Lock()
	removeThreadEvent(&other.d.linkFrom, e)
	other.d.mu.Unlock()
}

// Close drops the handle's reference. If waiters or notifications are still
// in flight they finish the teardown; a final notify is issued so that a
// parked waiter observes the reference count fall to 1 and exits. Every
// parked waiter holds a reference of its own, so when more than one is
// parked the count stays above 1 and they keep waiting until Set.
func (e *ThreadEvent) Close() {
	if e.d == nil {
		return
	}
	d := e.d
	e.d = nil
	if d.decref() {
		d.notify()
	}
}

func removeThreadEvent(events *[]*ThreadEvent, target *ThreadEvent) {
	for i, ev := range *events {
		if ev == target {
			*events = append((*events)[:i], (*events)[i+1:]...)
			return
		}
	}
}
