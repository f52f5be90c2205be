package qtng

import "errors"

// Gate is an open/closed barrier over a Lock: "open" is "unlocked". Closing
// never blocks the closer; coroutines that try to go through a closed gate
// park until it opens, and once open everybody passes freely.
type Gate struct {
	lock *Lock
}

// NewGate creates an open Gate.
func NewGate() *Gate {
	return &Gate{lock: NewLock()}
}

// GoThrough passes the gate, parking while it is closed. A destroyed gate is
// a dissolved barrier: parked callers pass with true.
func (g *Gate) GoThrough() (bool, error) {
	if !g.lock.IsLocked() {
		return true, nil
	}
	if err := g.lock.Acquire(); err != nil {
		if errors.Is(err, ErrSemaphoreClosed) {
			return true, nil
		}
		return false, err
	}
	g.lock.Release(1)
	return true, nil
}

// TryGoThrough reports whether the gate is currently passable, without
// parking.
func (g *Gate) TryGoThrough() bool {
	return !g.lock.IsLocked()
}

// Open opens the gate, waking every parked GoThrough. Opening an open gate
// is a no-op.
func (g *Gate) Open() {
	if g.lock.IsLocked() {
		g.lock.Release(1)
	}
}

// Close closes the gate. The caller never parks; it simply becomes the
// holder of the underlying lock. Closing a closed gate is a no-op.
func (g *Gate) Close() {
	if !g.lock.IsLocked() {
		g.lock.TryAcquire()
	}
}

// IsOpen reports whether the gate is open.
func (g *Gate) IsOpen() bool {
	return !g.lock.IsLocked()
}

// IsClosed reports whether the gate is closed.
func (g *Gate) IsClosed() bool {
	return g.lock.IsLocked()
}

// Destroy dissolves the barrier. Parked GoThrough callers observe the
// dissolved gate and pass.
func (g *Gate) Destroy() {
	g.lock.Close()
}
