package qtng

import (
	"errors"
	"testing"
)

func TestSemaphoreThirdAcquirerParks(t *testing.T) {
	runCoroutine(t, func() {
		loop := CurrentLoop()
		sem := NewSemaphore(2)
		var order []string
		spawn := func(name string) *Coroutine {
			return loop.Spawn(func() {
				if err := sem.Acquire(); err != nil {
					t.Errorf("%s: acquire failed: %v", name, err)
					return
				}
				order = append(order, name)
			})
		}
		a := spawn("a")
		b := spawn("b")
		c := spawn("c")
		a.Join()
		b.Join()
		if sem.Getting() != 1 {
			t.Errorf("expected one parked waiter, got %d", sem.Getting())
		}
		if !sem.IsLocked() {
			t.Error("semaphore with two holders and value 2 is not locked")
		}

		sem.Release(1)
		c.Join()
		if len(order) != 3 || order[2] != "c" {
			t.Errorf("unexpected completion order: %v", order)
		}
		if sem.d.counter != 0 {
			t.Errorf("counter = %d after handoff, want 0", sem.d.counter)
		}
		if sem.Getting() != 0 {
			t.Errorf("waiters = %d after handoff, want 0", sem.Getting())
		}
	})
}

func TestSemaphoreFIFOWakeOrder(t *testing.T) {
	runCoroutine(t, func() {
		loop := CurrentLoop()
		sem := NewSemaphore(1)
		if err := sem.Acquire(); err != nil {
			t.Fatalf("initial acquire failed: %v", err)
		}
		var order []int
		for i := 0; i < 5; i++ {
			loop.Spawn(func() {
				if err := sem.Acquire(); err != nil {
					t.Errorf("waiter %d: %v", i, err)
					return
				}
				order = append(order, i)
			})
		}
		yieldLoop()
		if sem.Getting() != 5 {
			t.Fatalf("parked waiters = %d, want 5", sem.Getting())
		}
		for i := 0; i < 5; i++ {
			sem.Release(1)
			yieldLoop()
		}
		for i, got := range order {
			if got != i {
				t.Fatalf("wake order %v is not FIFO", order)
			}
		}
	})
}

func TestSemaphoreAcquireNOverCapacity(t *testing.T) {
	runCoroutine(t, func() {
		sem := NewSemaphore(2)
		if err := sem.AcquireN(3); !errors.Is(err, ErrTooManyTokens) {
			t.Errorf("AcquireN(3) on value 2 returned %v", err)
		}
		if sem.d.counter != 2 {
			t.Errorf("counter changed to %d", sem.d.counter)
		}
		if sem.Getting() != 0 {
			t.Errorf("waiters appeared: %d", sem.Getting())
		}
	})
}

func TestSemaphoreAcquireNKeepsPartialTokens(t *testing.T) {
	runCoroutine(t, func() {
		loop := CurrentLoop()
		sem := NewSemaphore(2)
		if err := sem.Acquire(); err != nil {
			t.Fatalf("acquire failed: %v", err)
		}
		errs := make(chan error, 1)
		b := loop.Spawn(func() {
			errs <- sem.AcquireN(2)
		})
		yieldLoop()
		// b took the remaining token and is parked for the second one.
		b.Kill()
		b.Join()
		if err := <-errs; !errors.Is(err, ErrCoroutineCanceled) {
			t.Fatalf("expected cancellation, got %v", err)
		}
		// The partially-acquired token was not rolled back.
		sem.Release(1)
		if sem.d.counter != 1 {
			t.Errorf("counter = %d, want 1 (one token still lost to b)", sem.d.counter)
		}
		if !sem.IsUsed() {
			t.Error("semaphore reports unused despite b's kept token")
		}
	})
}

func TestSemaphoreCloseWakesWaitersInOrder(t *testing.T) {
	runCoroutine(t, func() {
		loop := CurrentLoop()
		lock := NewLock()
		if err := lock.Acquire(); err != nil {
			t.Fatalf("acquire failed: %v", err)
		}
		var order []string
		var failures []error
		for _, name := range []string{"b", "c", "d"} {
			loop.Spawn(func() {
				err := lock.Acquire()
				order = append(order, name)
				failures = append(failures, err)
			})
		}
		yieldLoop()
		lock.Close()
		yieldLoop()
		if len(order) != 3 || order[0] != "b" || order[1] != "c" || order[2] != "d" {
			t.Errorf("teardown wake order = %v, want [b c d]", order)
		}
		for i, err := range failures {
			if !errors.Is(err, ErrSemaphoreClosed) {
				t.Errorf("waiter %d got %v, want ErrSemaphoreClosed", i, err)
			}
		}
	})
}

func TestSemaphoreCancelRestoresState(t *testing.T) {
	runCoroutine(t, func() {
		loop := CurrentLoop()
		sem := NewSemaphore(1)
		if err := sem.Acquire(); err != nil {
			t.Fatalf("acquire failed: %v", err)
		}
		b := loop.Spawn(func() {
			if err := sem.Acquire(); !errors.Is(err, ErrCoroutineCanceled) {
				t.Errorf("expected cancellation, got %v", err)
			}
		})
		yieldLoop()
		if sem.Getting() != 1 {
			t.Fatalf("waiters = %d, want 1", sem.Getting())
		}
		b.Kill()
		b.Join()
		if sem.d.counter != 0 || sem.Getting() != 0 {
			t.Errorf("counter = %d waiters = %d after cancel, want 0/0",
				sem.d.counter, sem.Getting())
		}
		// The semaphore still works normally.
		sem.Release(1)
		if !sem.TryAcquire() {
			t.Error("token lost after cancellation")
		}
	})
}

func TestSemaphoreTryAcquire(t *testing.T) {
	runCoroutine(t, func() {
		sem := NewSemaphore(1)
		if !sem.TryAcquire() {
			t.Error("first TryAcquire failed")
		}
		if sem.TryAcquire() {
			t.Error("second TryAcquire succeeded on an empty semaphore")
		}
		if !sem.IsLocked() || !sem.IsUsed() {
			t.Error("state getters disagree with a held semaphore")
		}
		sem.Release(1)
		if sem.IsLocked() || sem.IsUsed() {
			t.Error("state getters disagree with a released semaphore")
		}
	})
}

func TestSemaphoreReleaseSaturates(t *testing.T) {
	runCoroutine(t, func() {
		sem := NewSemaphore(2)
		sem.Release(100)
		if sem.d.counter != 2 {
			t.Errorf("counter = %d after over-release, want 2", sem.d.counter)
		}
		sem.Release(0)
		sem.Release(-5)
		if sem.d.counter != 2 {
			t.Errorf("counter = %d after no-op releases, want 2", sem.d.counter)
		}
	})
}

func TestSemaphoreCounterStaysInRange(t *testing.T) {
	runCoroutine(t, func() {
		sem := NewSemaphore(3)
		check := func() {
			if sem.d.counter < 0 || sem.d.counter > sem.d.initValue {
				t.Fatalf("counter %d out of [0, %d]", sem.d.counter, sem.d.initValue)
			}
		}
		for i := 0; i < 20; i++ {
			if i%3 == 0 {
				sem.TryAcquire()
			} else if i%3 == 1 {
				sem.Release(1)
			} else {
				sem.Acquire()
				sem.Release(2)
			}
			check()
		}
	})
}

func TestAcquireAnyFastPath(t *testing.T) {
	runCoroutine(t, func() {
		s1 := NewSemaphore(0)
		s2 := NewSemaphore(0)
		s3 := NewSemaphore(1)
		got, err := AcquireAny([]*Semaphore{s1, s2, s3}, 1)
		if err != nil {
			t.Fatalf("AcquireAny failed: %v", err)
		}
		if got != s3 {
			t.Errorf("AcquireAny picked the wrong semaphore")
		}
		if s3.d.counter != 0 {
			t.Errorf("granting semaphore counter = %d, want 0", s3.d.counter)
		}
	})
}

func TestAcquireAnyParksAndCleansUp(t *testing.T) {
	runCoroutine(t, func() {
		loop := CurrentLoop()
		s1 := NewSemaphore(1)
		s2 := NewSemaphore(1)
		if err := s1.Acquire(); err != nil {
			t.Fatal(err)
		}
		if err := s2.Acquire(); err != nil {
			t.Fatal(err)
		}
		results := make(chan *Semaphore, 1)
		w := loop.Spawn(func() {
			got, err := AcquireAny([]*Semaphore{s1, s2}, 1)
			if err != nil {
				t.Errorf("AcquireAny failed: %v", err)
			}
			results <- got
		})
		yieldLoop()
		if s1.Getting() != 1 || s2.Getting() != 1 {
			t.Fatalf("waiter not parked on both: %d/%d", s1.Getting(), s2.Getting())
		}
		s2.Release(1)
		w.Join()
		if got := <-results; got != s2 {
			t.Errorf("granted semaphore is not s2")
		}
		if s1.Getting() != 0 {
			t.Errorf("waiter record left on s1")
		}
		if s2.d.counter != 0 {
			t.Errorf("s2 counter = %d, want 0", s2.d.counter)
		}
	})
}
