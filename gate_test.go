package qtng

import "testing"

func TestGateOpenClose(t *testing.T) {
	runCoroutine(t, func() {
		gate := NewGate()
		if !gate.IsOpen() || gate.IsClosed() {
			t.Error("new gate is not open")
		}
		if ok, err := gate.GoThrough(); !ok || err != nil {
			t.Errorf("open gate blocked: %v %v", ok, err)
		}

		gate.Close()
		gate.Close() // idempotent
		if gate.IsOpen() {
			t.Error("gate still open after close")
		}
		if gate.TryGoThrough() {
			t.Error("TryGoThrough passed a closed gate")
		}

		gate.Open()
		gate.Open() // idempotent
		if !gate.IsOpen() {
			t.Error("gate still closed after open")
		}
	})
}

func TestGateParksUntilOpened(t *testing.T) {
	runCoroutine(t, func() {
		loop := CurrentLoop()
		gate := NewGate()
		gate.Close()

		passed := make(chan bool, 2)
		for i := 0; i < 2; i++ {
			loop.Spawn(func() {
				ok, err := gate.GoThrough()
				if err != nil {
					t.Errorf("goThrough failed: %v", err)
				}
				passed <- ok
			})
		}
		yieldLoop()
		if len(passed) != 0 {
			t.Fatal("coroutines passed a closed gate")
		}

		gate.Open()
		yieldLoop()
		yieldLoop()
		for i := 0; i < 2; i++ {
			if !<-passed {
				t.Error("waiter did not pass the opened gate")
			}
		}
		if !gate.IsOpen() {
			t.Error("gate closed itself after the waiters passed")
		}
	})
}

func TestGateDestroyDissolvesBarrier(t *testing.T) {
	runCoroutine(t, func() {
		loop := CurrentLoop()
		gate := NewGate()
		gate.Close()

		passed := make(chan bool, 1)
		loop.Spawn(func() {
			ok, err := gate.GoThrough()
			if err != nil {
				t.Errorf("goThrough failed: %v", err)
			}
			passed <- ok
		})
		yieldLoop()
		gate.Destroy()
		yieldLoop()
		if !<-passed {
			t.Error("waiter did not pass the destroyed gate")
		}
	})
}
