package qtng

import "log"

// RLockState is a captured ownership snapshot, produced by Reset and
// consumed by Set. It lets a coroutine drop its RLock around a blocking
// operation without losing the recursion depth.
type RLockState struct {
	holder  uint64
	counter int
}

// RLock is a re-entrant lock: the holding coroutine may acquire it again
// without parking, and must release once per acquisition. Like the other
// single-loop primitives it is confined to its home event loop.
type RLock struct {
	lock    *Lock
	holder  uint64
	counter int
}

// NewRLock creates an unowned RLock.
func NewRLock() *RLock {
	return &RLock{lock: NewLock()}
}

// Acquire takes the lock, parking the caller while another coroutine holds
// it. Re-acquisition by the holder only increments the recursion depth.
func (r *RLock) Acquire() error {
	cur := mustCurrentCoroutine()
	if r.holder == cur.ID() {
		r.counter++
		return nil
	}
	if err := r.lock.Acquire(); err != nil {
		return err
	}
	r.counter = 1
	r.holder = cur.ID()
	return nil
}

// TryAcquire takes the lock without parking and reports whether it is now
// held by the caller.
func (r *RLock) TryAcquire() bool {
	cur := mustCurrentCoroutine()
	if r.holder == cur.ID() {
		r.counter++
		return true
	}
	if r.lock.TryAcquire() {
		r.counter = 1
		r.holder = cur.ID()
		return true
	}
	return false
}

// Release undoes one acquisition. The lock is handed to the next waiter only
// when the depth reaches zero. Releasing another coroutine's lock is logged
// and ignored.
func (r *RLock) Release() {
	cur := mustCurrentCoroutine()
	if r.holder != cur.ID() {
		log.Printf("qtng: do not release another coroutine's rlock")
		return
	}
	r.counter--
	if r.counter == 0 {
		r.holder = 0
		r.lock.Release(1)
	}
}

// IsLocked reports whether any coroutine holds the lock.
func (r *RLock) IsLocked() bool {
	return r.lock.IsLocked()
}

// IsOwned reports whether the calling coroutine holds the lock.
func (r *RLock) IsOwned() bool {
	cur := mustCurrentCoroutine()
	return r.holder == cur.ID()
}

// Reset captures and clears the ownership state, releasing the underlying
// lock if it was held. The returned state restores ownership via Set.
func (r *RLock) Reset() RLockState {
	state := RLockState{holder: r.holder, counter: r.counter}
	r.holder = 0
	r.counter = 0
	if state.counter > 0 {
		r.lock.Release(1)
	}
	return state
}

// Set restores a state captured by Reset, re-acquiring the underlying lock
// (parking if necessary) when the saved depth is nonzero.
func (r *RLock) Set(state RLockState) error {
	if state.counter > 0 {
		if err := r.lock.Acquire(); err != nil {
			return err
		}
	}
	r.holder = state.holder
	r.counter = state.counter
	return nil
}
