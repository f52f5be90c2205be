package qtng

import "errors"

// Sentinel errors reported by the synchronization primitives. Blocking
// operations return nil when the caller was granted what it waited for;
// everything else is one of the errors below.
var (
	// ErrSemaphoreClosed is returned by Semaphore.Acquire when the semaphore
	// was closed while the caller was parked, or when acquiring a semaphore
	// that is already closed.
	ErrSemaphoreClosed = errors.New("qtng: semaphore closed")

	// ErrConditionClosed is returned by Condition.Wait when the condition was
	// closed while the caller was parked.
	ErrConditionClosed = errors.New("qtng: condition closed")

	// ErrEventClosed is returned by Event.Wait when the event was closed
	// while the caller was parked.
	ErrEventClosed = errors.New("qtng: event closed")

	// ErrCoroutineCanceled is returned by a blocking operation when the
	// parked coroutine was killed. The primitive's state is restored before
	// the error is returned, as if the call had never been made.
	ErrCoroutineCanceled = errors.New("qtng: coroutine canceled")

	// ErrLoopShutdown is returned by a blocking operation when the event loop
	// was stopped while the caller was parked.
	ErrLoopShutdown = errors.New("qtng: event loop shut down")

	// ErrTooManyTokens is returned by Semaphore.AcquireN when more tokens are
	// requested than the semaphore can ever hold.
	ErrTooManyTokens = errors.New("qtng: acquire count exceeds semaphore capacity")
)
