package qtng

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/gammazero/deque"
	"github.com/petermattis/goid"
)

// scheduledCall is one deferred callback. It stays in the pending map until
// it runs or is canceled; delayed calls additionally own a timer until they
// become ready.
type scheduledCall struct {
	id       uint64
	f        func()
	timer    *time.Timer
	canceled bool
}

// EventLoop is a single-goroutine scheduler for coroutines and deferred
// callbacks. Callbacks run strictly in schedule order for equal readiness,
// and a callback may switch into coroutines; control returns to the loop
// when the coroutine parks or finishes.
//
// CallLater and CallLaterThreadSafe are both safe from any goroutine; the
// two entry points exist because callers on the loop's own thread and
// callers on foreign threads are different contracts at the API level, even
// though one guarded queue serves both here.
type EventLoop struct {
	mu      sync.Mutex
	ready   deque.Deque[*scheduledCall]
	pending map[uint64]*scheduledCall
	lastID  uint64
	live    map[uint64]*Coroutine
	closed  bool

	// sched receives the baton whenever a coroutine hands control back.
	sched chan struct{}
	wake  chan struct{}
	done  chan struct{}

	// stopping is set by the shutdown callback; the run loop exits when it
	// observes it with an empty ready queue.
	stopping bool

	stopRequested atomic.Bool
	calls         *callPool
}

// callPool recycles scheduledCall records through a channel, a lock-free
// fixed-size free list: get falls back to allocation when the pool is empty,
// put discards when it is full. Only calls popped from the ready queue are
// recycled; a call canceled while still queued stays out of the pool, since
// the queue keeps pointing at it.
type callPool struct {
	pool chan *scheduledCall
}

func newCallPool(count int) *callPool {
	return &callPool{pool: make(chan *scheduledCall, count)}
}

func (p *callPool) get() *scheduledCall {
	select {
	case c := <-p.pool:
		*c = scheduledCall{}
		return c
	default:
		return &scheduledCall{}
	}
}

func (p *callPool) put(c *scheduledCall) {
	select {
	case p.pool <- c:
	default:
	}
}

// NewEventLoop creates a loop and starts its scheduler goroutine.
func NewEventLoop() *EventLoop {
	l := &EventLoop{
		pending: make(map[uint64]*scheduledCall),
		live:    make(map[uint64]*Coroutine),
		sched:   make(chan struct{}),
		wake:    make(chan struct{}, 1),
		done:    make(chan struct{}),
		calls:   newCallPool(64),
	}
	go l.run()
	return l
}

func (l *EventLoop) run() {
	gid := goid.Get()
	contextMu.Lock()
	loopOf[gid] = l
	contextMu.Unlock()
	defer func() {
		contextMu.Lock()
		delete(loopOf, gid)
		contextMu.Unlock()
		close(l.done)
	}()

	for {
		l.mu.Lock()
		var call *scheduledCall
		for l.ready.Len() > 0 {
			c := l.ready.PopFront()
			if c.canceled {
				l.calls.put(c)
				continue
			}
			delete(l.pending, c.id)
			call = c
			break
		}
		stopping := l.stopping
		l.mu.Unlock()

		if call == nil {
			if stopping {
				return
			}
			<-l.wake
			continue
		}
		f := call.f
		l.calls.put(call)
		f()
	}
}

// Spawn schedules a new coroutine running f. It returns nil if the loop has
// been stopped.
func (l *EventLoop) Spawn(f func()) *Coroutine {
	c := newCoroutine(l, f)
	start := func() {
		if c.parked && !c.IsFinished() {
			l.switchTo(c, resumeNormal)
		}
	}
	// Registration and the start callback go in under one critical section:
	// a coroutine visible in live is either started by its callback or, if
	// the callback is canceled by shutdown, drained with the rest.
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.live[c.ID()] = c
	l.lastID++
	call := l.calls.get()
	call.id = l.lastID
	call.f = start
	l.pending[call.id] = call
	l.ready.PushBack(call)
	l.mu.Unlock()

	go c.spawnMain()
	l.wakeup()
	return c
}

// switchTo transfers control from the loop goroutine to c and blocks until c
// parks again or finishes. Must run on the loop goroutine.
func (l *EventLoop) switchTo(c *Coroutine, kind resumeKind) {
	c.resume <- kind
	<-l.sched
}

func (l *EventLoop) forget(c *Coroutine) {
	l.mu.Lock()
	delete(l.live, c.ID())
	l.mu.Unlock()
}

// CallLater schedules f to run on the loop after delay (0 means "as soon as
// the loop is idle") and returns a nonzero cancellation id, or 0 if the loop
// has been stopped.
func (l *EventLoop) CallLater(delay time.Duration, f func()) uint64 {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return 0
	}
	l.lastID++
	id := l.lastID
	call := l.calls.get()
	call.id = id
	call.f = f
	l.pending[id] = call
	if delay <= 0 {
		l.ready.PushBack(call)
	} else {
		call.timer = time.AfterFunc(delay, func() { l.enqueue(call) })
	}
	l.mu.Unlock()
	l.wakeup()
	return id
}

// CallLaterThreadSafe is the form of CallLater that foreign OS threads are
// allowed to call; ThreadEvent uses it to post wake-ups into loops it does
// not run on.
func (l *EventLoop) CallLaterThreadSafe(delay time.Duration, f func()) uint64 {
	return l.CallLater(delay, f)
}

// CancelCall cancels a scheduled callback. It is idempotent and safe to call
// after the callback has already fired.
func (l *EventLoop) CancelCall(id uint64) {
	if id == 0 {
		return
	}
	l.mu.Lock()
	if call, ok := l.pending[id]; ok {
		call.canceled = true
		if call.timer != nil {
			call.timer.Stop()
		}
		delete(l.pending, id)
	}
	l.mu.Unlock()
}

func (l *EventLoop) enqueue(call *scheduledCall) {
	l.mu.Lock()
	if !call.canceled && !l.closed {
		call.timer = nil
		l.ready.PushBack(call)
	}
	l.mu.Unlock()
	l.wakeup()
}

// isClosed reports whether the loop has begun shutting down. ThreadEvent
// uses it to drop subscriptions of dead loops.
func (l *EventLoop) isClosed() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.closed
}

func (l *EventLoop) wakeup() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// Stop shuts the loop down: pending callbacks are canceled and every parked
// coroutine is resumed with the shutdown signal so its suspended operation
// can clean up and return ErrLoopShutdown. Stop blocks until the loop
// goroutine has exited and must not be called from the loop's own context.
func (l *EventLoop) Stop() {
	if CurrentLoop() == l {
		panic("qtng: EventLoop.Stop called from the loop itself")
	}
	if l.stopRequested.Swap(true) {
		<-l.done
		return
	}
	l.CallLaterThreadSafe(0, l.shutdown)
	<-l.done
}

// shutdown runs as the last callback on the loop goroutine.
func (l *EventLoop) shutdown() {
	l.mu.Lock()
	l.closed = true
	for id, call := range l.pending {
		call.canceled = true
		if call.timer != nil {
			call.timer.Stop()
		}
		delete(l.pending, id)
	}
	l.mu.Unlock()

	for {
		var co *Coroutine
		l.mu.Lock()
		for _, c := range l.live {
			if c.parked {
				co = c
				break
			}
		}
		l.mu.Unlock()
		if co == nil {
			break
		}
		l.switchTo(co, resumeShutdown)
	}

	l.mu.Lock()
	l.stopping = true
	l.mu.Unlock()
}
