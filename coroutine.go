package qtng

import (
	"log"
	"sync"
	"sync/atomic"

	"github.com/petermattis/goid"
)

// resumeKind tells a parked coroutine why it is being resumed.
type resumeKind int

const (
	// resumeNormal means the coroutine was woken by the primitive it parked
	// on (or by its start callback).
	resumeNormal resumeKind = iota

	// resumeCanceled means the coroutine was killed while parked. The
	// suspended operation must clean up and return ErrCoroutineCanceled.
	resumeCanceled

	// resumeShutdown means the event loop is stopping. The suspended
	// operation must clean up and return ErrLoopShutdown.
	resumeShutdown
)

type coroStatus int32

const (
	statusCreated coroStatus = iota
	statusRunning
	statusFinished
)

var coroutineSerial atomic.Uint64

// Coroutine is a cooperatively scheduled execution context owned by exactly
// one EventLoop. It is backed by a goroutine, but at most one coroutine of a
// loop (or the loop itself) runs at any moment: control is handed back and
// forth over channels, so the loop's run-to-completion discipline is the
// mutual-exclusion guarantee for everything the coroutine touches.
//
// A coroutine is created with EventLoop.Spawn and runs its task until the
// task returns or the coroutine is killed. Blocking primitives (Semaphore,
// Condition, Event, Gate) may only be used from inside a coroutine.
type Coroutine struct {
	// id is a stable nonzero identity.
	id   atomic.Uint64
	name string
	loop *EventLoop
	task func()

	// resume delivers the baton to the parked goroutine.
	resume chan resumeKind

	status atomic.Int32

	// killed marks a cancellation request; a coroutine killed before its
	// first resume never runs its task.
	killed atomic.Bool

	// parked reports that the goroutine is blocked on resume. The coroutine
	// writes it immediately before handing the baton over; the loop reads it
	// afterwards, so the channel transfer orders the accesses.
	parked bool

	// onFinish callbacks run on the loop context after the task returns.
	onFinish []func(*Coroutine)

	// done is created lazily by the first Join.
	done *Event
}

// ID returns the coroutine's stable identity. It is nonzero for every live
// coroutine.
func (c *Coroutine) ID() uint64 {
	return c.id.Load()
}

// Name returns the name assigned with SetName, or "".
func (c *Coroutine) Name() string {
	return c.name
}

// SetName labels the coroutine; CoroutineGroup uses names as lookup keys.
func (c *Coroutine) SetName(name string) {
	c.name = name
}

// IsFinished reports whether the coroutine's task has returned or the
// coroutine was killed before it could run.
func (c *Coroutine) IsFinished() bool {
	return coroStatus(c.status.Load()) == statusFinished
}

func newCoroutine(l *EventLoop, task func()) *Coroutine {
	c := &Coroutine{
		loop:   l,
		task:   task,
		parked: true,
		resume: make(chan resumeKind),
	}
	c.id.Store(coroutineSerial.Add(1))
	return c
}

// spawnMain is the goroutine body of a coroutine. It parks until the start
// callback (or a kill) delivers the first baton, runs the task, then hands
// control back to the loop for good.
func (c *Coroutine) spawnMain() {
	gid := goid.Get()
	contextMu.Lock()
	coroutineOf[gid] = c
	contextMu.Unlock()

	// The baton must go back to the loop even if the task goroutine unwinds
	// via runtime.Goexit.
	defer func() {
		contextMu.Lock()
		delete(coroutineOf, gid)
		contextMu.Unlock()
		c.finish()
		c.loop.sched <- struct{}{}
	}()

	kind := <-c.resume
	c.parked = false
	if kind == resumeNormal && !c.killed.Load() {
		c.status.Store(int32(statusRunning))
		c.runTask()
	}
}

func (c *Coroutine) runTask() {
	defer func() {
		if r := recover(); r != nil {
			log.Printf("qtng: coroutine %d panicked: %v", c.ID(), r)
		}
	}()
	c.task()
}

func (c *Coroutine) finish() {
	c.status.Store(int32(statusFinished))
	c.loop.forget(c)
	callbacks := c.onFinish
	c.onFinish = nil
	for _, f := range callbacks {
		f(c)
	}
	if c.done != nil {
		c.done.Set()
	}
}

// yield parks the calling coroutine and returns control to its loop. The
// returned kind tells the caller why it was resumed.
func (c *Coroutine) yield() resumeKind {
	c.parked = true
	c.loop.sched <- struct{}{}
	kind := <-c.resume
	c.parked = false
	return kind
}

// addFinishCallback registers f to run on the loop context when the
// coroutine finishes. Callbacks fire at most once.
func (c *Coroutine) addFinishCallback(f func(*Coroutine)) {
	c.onFinish = append(c.onFinish, f)
}

// Kill requests cancellation. A coroutine parked in a blocking primitive is
// resumed with the cancellation signal: the suspended operation cleans up
// and returns ErrCoroutineCanceled. A coroutine that has not started yet
// never runs its task. Killing a finished coroutine is a no-op.
func (c *Coroutine) Kill() {
	if c.IsFinished() {
		return
	}
	c.killed.Store(true)
	loop := c.loop
	if loop == nil {
		return
	}
	loop.CallLaterThreadSafe(0, func() {
		if !c.IsFinished() && c.parked {
			loop.switchTo(c, resumeCanceled)
		}
	})
}

// Join parks the calling coroutine until c finishes. Both coroutines must
// belong to the same event loop.
func (c *Coroutine) Join() error {
	cur := mustCurrentCoroutine()
	if cur == c {
		log.Printf("qtng: coroutine %d joining itself", c.ID())
		return nil
	}
	if c.IsFinished() {
		return nil
	}
	if c.done == nil {
		c.done = NewEvent()
	}
	_, err := c.done.Wait()
	return err
}

// coroRef is a weak reference observing a coroutine's liveness: get reports
// nil once the coroutine has finished. Semaphore waiter queues hold these so
// that a coroutine destroyed while parked is skipped instead of resumed.
type coroRef struct {
	c *Coroutine
}

func (c *Coroutine) ref() *coroRef {
	return &coroRef{c: c}
}

func (r *coroRef) get() *Coroutine {
	if r.c.IsFinished() {
		return nil
	}
	return r.c
}

// Per-goroutine context registry. Coroutine goroutines and loop goroutines
// register themselves so that CurrentCoroutine and CurrentLoop can answer
// for the calling context without threading handles through every call.
var (
	contextMu   sync.RWMutex
	coroutineOf = make(map[int64]*Coroutine)
	loopOf      = make(map[int64]*EventLoop)
)

// CurrentCoroutine returns the coroutine executing on the calling goroutine,
// or nil when called from the loop goroutine or from a goroutine that is not
// part of any loop.
func CurrentCoroutine() *Coroutine {
	gid := goid.Get()
	contextMu.RLock()
	defer contextMu.RUnlock()
	return coroutineOf[gid]
}

// CurrentLoop returns the event loop the calling goroutine belongs to: the
// loop of the current coroutine, or the loop itself when called from the
// loop goroutine. It returns nil for unrelated goroutines.
func CurrentLoop() *EventLoop {
	gid := goid.Get()
	contextMu.RLock()
	defer contextMu.RUnlock()
	if c := coroutineOf[gid]; c != nil {
		return c.loop
	}
	return loopOf[gid]
}

// mustCurrentCoroutine asserts that the caller is a coroutine. Blocking
// primitives must never run on the loop goroutine (the loop could never
// schedule the wake-up that unparks them) nor on a plain goroutine.
func mustCurrentCoroutine() *Coroutine {
	c := CurrentCoroutine()
	if c == nil {
		panic("qtng: blocking primitive used outside a coroutine")
	}
	return c
}

