package qtng

import "errors"

// Event is a sticky flag for coroutines of one event loop. Waiters park
// until the flag is set; setting an already-set event is a no-op. Events can
// be linked so that setting one sets its peers, following the links
// depth-first in registration order. Cycles are permitted: the sticky flag
// makes propagation idempotent, so it terminates.
type Event struct {
	condition Condition
	flag      bool
	linkTo    []*Event
	linkFrom  []*Event
	closed    bool
}

// NewEvent creates an unset Event.
func NewEvent() *Event {
	return &Event{}
}

// Set raises the flag, wakes every waiter, and propagates to linked events.
func (e *Event) Set() {
	if e.closed || e.flag {
		return
	}
	e.flag = true
	e.condition.NotifyAll()
	for _, other := range e.linkTo {
		other.Set()
	}
}

// Clear lowers the flag. Nobody is woken; coroutines already parked keep
// waiting for the next Set.
func (e *Event) Clear() {
	e.flag = false
}

// IsSet reports the flag.
func (e *Event) IsSet() bool {
	return e.flag
}

// Wait parks the calling coroutine until the flag is set and returns the
// observed flag. It returns false with ErrEventClosed if the event is closed
// while waiting, or false with the cancellation error if the coroutine is
// killed.
func (e *Event) Wait() (bool, error) {
	for !e.flag {
		if e.closed {
			return false, ErrEventClosed
		}
		if err := e.condition.Wait(); err != nil {
			if errors.Is(err, ErrConditionClosed) {
				return false, ErrEventClosed
			}
			return false, err
		}
	}
	return true, nil
}

// TryWait returns the flag without parking.
func (e *Event) TryWait() bool {
	return e.flag
}

// Getting returns the number of parked waiters.
func (e *Event) Getting() int {
	return e.condition.Getting()
}

// Link makes Set on e also set other. Links are directed; link both ways for
// a symmetric pair.
func (e *Event) Link(other *Event) {
	e.linkTo = append(e.linkTo, other)
	other.linkFrom = append(other.linkFrom, e)
}

// Unlink removes a link created by Link.
func (e *Event) Unlink(other *Event) {
	removeEvent(&e.linkTo, other)
	removeEvent(&other.linkFrom, e)
}

// Close tears the event down: parked waiters are woken and observe
// ErrEventClosed, and the event is removed from its peers' link lists so no
// dangling back-references remain.
func (e *Event) Close() {
	if e.closed {
		return
	}
	e.closed = true
	e.condition.Close()
	for _, other := range e.linkFrom {
		removeEvent(&other.linkTo, e)
	}
	for _, other := range e.linkTo {
		removeEvent(&other.linkFrom, e)
	}
	e.linkTo = nil
	e.linkFrom = nil
}

func removeEvent(events *[]*Event, target *Event) {
	for i, ev := range *events {
		if ev == target {
			*events = append((*events)[:i], (*events)[i+1:]...)
			return
		}
	}
}

// ValueEvent is an Event that carries a value: Send stores the value and
// sets the event, Wait parks until it is delivered. Later Sends do not
// overwrite the first delivery unless the event is cleared in between.
type ValueEvent[T any] struct {
	event Event
	value T
}

// NewValueEvent creates an empty ValueEvent.
func NewValueEvent[T any]() *ValueEvent[T] {
	return &ValueEvent[T]{}
}

// Send stores value and sets the event.
func (e *ValueEvent[T]) Send(value T) {
	if !e.event.IsSet() {
		e.value = value
	}
	e.event.Set()
}

// Wait parks until a value is delivered and returns it.
func (e *ValueEvent[T]) Wait() (T, error) {
	if _, err := e.event.Wait(); err != nil {
		var zero T
		return zero, err
	}
	return e.value, nil
}

// IsSet reports whether a value has been delivered.
func (e *ValueEvent[T]) IsSet() bool {
	return e.event.IsSet()
}

// Clear forgets the delivered value so the event can be reused.
func (e *ValueEvent[T]) Clear() {
	var zero T
	e.value = zero
	e.event.Clear()
}

// Close tears the event down; parked waiters observe ErrEventClosed.
func (e *ValueEvent[T]) Close() {
	e.event.Close()
}
