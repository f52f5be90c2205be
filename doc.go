// Package qtng provides synchronization primitives for cooperative
// coroutines scheduled by a single-threaded event loop, plus one primitive
// (ThreadEvent) that bridges coroutines across OS threads.
//
// # Architecture Overview
//
// An EventLoop owns one scheduler goroutine. Coroutines are goroutines whose
// execution is serialized by the loop: control moves between the loop and
// exactly one coroutine at a time, handed over on channels. Because only one
// context of a loop ever runs, the single-loop primitives need no mutex —
// the loop's run-to-completion discipline is the mutual-exclusion guarantee.
//
// When a coroutine blocks on a contended primitive it is recorded on the
// primitive's waiter queue and yields to the loop. A later release or notify
// schedules one deferred callback on the loop that drains the queue in FIFO
// order, resuming each waiter directly. Destroying a primitive while
// coroutines are parked drains them with a "closed" result instead.
//
// # Primitives
//
// Semaphore is a counting gate; Lock is its binary form. RLock adds
// owner-tracked re-entrancy over a Lock. Condition parks waiters on private
// Locks and releases the oldest on Notify. Event is a sticky flag over a
// Condition, with directed links that propagate Set across a graph of
// events. Gate is open/closed sugar over a Lock. AcquireAny waits for the
// first of several semaphores with capacity.
//
// ThreadEvent is the cross-thread Event: its shared state is mutex-guarded
// and reference counted, coroutine waiters park on a per-loop Condition that
// notifications reach through their own loop's thread-safe callback queue,
// and waiters on threads without a loop block on an OS-level notifier
// (a futex on Linux).
//
// # Blocking and Cancellation
//
// Blocking operations may only be called from a coroutine; calling one from
// the loop goroutine (which could then never schedule the wake-up) or from a
// plain goroutine panics. ThreadEvent.Wait is the exception and accepts
// plain goroutines.
//
// Killing a parked coroutine resumes it with a cancellation signal: the
// suspended operation removes its waiter record, restores any state it took,
// and returns ErrCoroutineCanceled, leaving the primitive as if the call had
// never been made. Stopping a loop drains parked coroutines the same way
// with ErrLoopShutdown.
//
// # Example
//
//	loop := qtng.NewEventLoop()
//	sem := qtng.NewSemaphore(2)
//	loop.Spawn(func() {
//		if err := sem.Acquire(); err != nil {
//			return
//		}
//		defer sem.Release(1)
//		// at most two coroutines run this section at once
//	})
package qtng
