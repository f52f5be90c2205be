package qtng

import (
	"runtime"
	"sync"
)

// poolWork is one function to run on a worker, with the Event to set (via
// the submitting loop) when it is done.
type poolWork struct {
	f    func()
	done *Event
	loop *EventLoop
}

type poolWorker struct {
	mu      sync.Mutex
	cond    *sync.Cond
	queue   []poolWork
	exiting bool
}

func newPoolWorker() *poolWorker {
	w := &poolWorker{}
	w.cond = sync.NewCond(&w.mu)
	go w.run()
	return w
}

func (w *poolWorker) run() {
	for {
		w.mu.Lock()
		for len(w.queue) == 0 && !w.exiting {
			w.cond.Wait()
		}
		if len(w.queue) == 0 {
			w.mu.Unlock()
			return
		}
		work := w.queue[0]
		w.queue = w.queue[1:]
		w.mu.Unlock()

		work.f()
		work.loop.CallLaterThreadSafe(0, func() { work.done.Set() })
	}
}

func (w *poolWorker) submit(work poolWork) {
	w.mu.Lock()
	w.queue = append(w.queue, work)
	w.mu.Unlock()
	w.cond.Signal()
}

func (w *poolWorker) kill() {
	w.mu.Lock()
	w.exiting = true
	w.mu.Unlock()
	w.cond.Broadcast()
}

// ThreadPool runs blocking functions off the event loop. Call parks the
// calling coroutine, hands the function to an idle worker goroutine (one is
// started when none is idle), and resumes when the worker reports completion
// back through the loop's thread-safe callback queue. Admission is bounded
// by a semaphore, so at most the configured number of calls run at once.
type ThreadPool struct {
	semaphore *Semaphore
	workers   []*poolWorker
}

// NewThreadPool creates a pool admitting up to threads concurrent calls.
// A non-positive value sizes the pool from the machine's CPU count.
func NewThreadPool(threads int) *ThreadPool {
	if threads <= 0 {
		threads = runtime.NumCPU()*2 + 1
	}
	return &ThreadPool{semaphore: NewSemaphore(threads)}
}

// Call runs f on a worker and parks the calling coroutine until it is done.
func (p *ThreadPool) Call(f func()) error {
	if err := p.semaphore.Acquire(); err != nil {
		return err
	}
	defer p.semaphore.Release(1)

	var worker *poolWorker
	if len(p.workers) == 0 {
		worker = newPoolWorker()
	} else {
		worker = p.workers[0]
		p.workers = p.workers[1:]
	}

	done := NewEvent()
	worker.submit(poolWork{f: f, done: done, loop: CurrentLoop()})
	_, err := done.Wait()
	if p.semaphore.d == nil {
		// The pool was closed while this call ran.
		worker.kill()
	} else {
		p.workers = append(p.workers, worker)
	}
	return err
}

// Close stops the idle workers. Workers busy in a Call exit after their
// current function.
func (p *ThreadPool) Close() {
	for _, w := range p.workers {
		w.kill()
	}
	p.workers = nil
	p.semaphore.Close()
}
