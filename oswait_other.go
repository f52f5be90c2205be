//go:build !linux

package qtng

import "sync"

// osNotifier wakes ThreadEvent waiters that have no event loop on their
// thread. The portable implementation is a condition variable over a
// sequence number.
type osNotifier struct {
	mu   sync.Mutex
	cond *sync.Cond
	seq  uint32
}

func newOSNotifier() *osNotifier {
	n := &osNotifier{}
	n.cond = sync.NewCond(&n.mu)
	return n
}

func (n *osNotifier) load() uint32 {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.seq
}

// wait blocks until the sequence number differs from seq.
func (n *osNotifier) wait(seq uint32) {
	n.mu.Lock()
	for n.seq == seq {
		n.cond.Wait()
	}
	n.mu.Unlock()
}

// wakeAll bumps the sequence number and wakes every waiter.
func (n *osNotifier) wakeAll() {
	n.mu.Lock()
	n.seq++
	n.mu.Unlock()
	n.cond.Broadcast()
}
