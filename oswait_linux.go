//go:build linux

package qtng

import (
	"sync/atomic"
	"unsafe"

	"golang.org/x/sys/unix"
)

const (
	futexWaitOp = 0 // FUTEX_WAIT
	futexWakeOp = 1 // FUTEX_WAKE
)

// osNotifier wakes ThreadEvent waiters that have no event loop on their
// thread. On Linux it is a bare futex word holding a sequence number:
// waiters sleep until the number moves, wakers bump it and wake everyone.
type osNotifier struct {
	seq uint32
}

func newOSNotifier() *osNotifier {
	return &osNotifier{}
}

func (n *osNotifier) load() uint32 {
	return atomic.LoadUint32(&n.seq)
}

// wait blocks until the sequence number differs from seq.
func (n *osNotifier) wait(seq uint32) {
	for atomic.LoadUint32(&n.seq) == seq {
		// EINTR and EAGAIN both fall through to the re-check.
		unix.Syscall6(unix.SYS_FUTEX,
			uintptr(unsafe.Pointer(&n.seq)),
			futexWaitOp,
			uintptr(seq),
			0, 0, 0)
	}
}

// wakeAll bumps the sequence number and wakes every waiter.
func (n *osNotifier) wakeAll() {
	atomic.AddUint32(&n.seq, 1)
	unix.Syscall6(unix.SYS_FUTEX,
		uintptr(unsafe.Pointer(&n.seq)),
		futexWakeOp,
		uintptr(int32(^uint32(0)>>1)),
		0, 0, 0)
}
