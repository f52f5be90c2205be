package qtng

import "testing"

func TestGroupSpawnAndLookup(t *testing.T) {
	runCoroutine(t, func() {
		loop := CurrentLoop()
		group := NewCoroutineGroup(loop)

		blocker := NewEvent()
		c := group.Spawn("worker", func() { blocker.Wait() })
		if c == nil {
			t.Fatal("spawn failed")
		}
		if !group.Has("worker") || group.Get("worker") != c {
			t.Error("named lookup failed")
		}
		if dup := group.Spawn("worker", func() {}); dup != nil {
			t.Error("duplicate name was accepted")
		}

		blocker.Set()
		c.Join()
		if group.Has("worker") {
			t.Error("finished coroutine still in the group")
		}
	})
}

func TestGroupIsCurrent(t *testing.T) {
	runCoroutine(t, func() {
		loop := CurrentLoop()
		group := NewCoroutineGroup(loop)
		checked := make(chan bool, 1)
		group.Spawn("me", func() {
			checked <- group.IsCurrent("me")
		})
		yieldLoop()
		if !<-checked {
			t.Error("IsCurrent false inside the named coroutine")
		}
		if group.IsCurrent("me") {
			t.Error("IsCurrent true outside the named coroutine")
		}
	})
}

func TestGroupKillAll(t *testing.T) {
	runCoroutine(t, func() {
		loop := CurrentLoop()
		group := NewCoroutineGroup(loop)
		sem := NewSemaphore(0)
		for i := 0; i < 3; i++ {
			group.Spawn("", func() { sem.Acquire() })
		}
		yieldLoop()
		if group.Len() != 3 {
			t.Fatalf("group has %d members, want 3", group.Len())
		}
		if !group.KillAll(true) {
			t.Error("KillAll reported nothing to kill")
		}
		if group.Len() != 0 {
			t.Errorf("group still has %d members after KillAll", group.Len())
		}
		if sem.Getting() != 0 {
			t.Errorf("killed waiters left on the semaphore: %d", sem.Getting())
		}
	})
}

func TestGroupJoinAll(t *testing.T) {
	runCoroutine(t, func() {
		loop := CurrentLoop()
		group := NewCoroutineGroup(loop)
		finished := 0
		for i := 0; i < 3; i++ {
			group.Spawn("", func() {
				yieldLoop()
				finished++
			})
		}
		if !group.JoinAll() {
			t.Error("JoinAll reported an empty group")
		}
		if finished != 3 {
			t.Errorf("joined with %d of 3 finished", finished)
		}
	})
}

func TestGroupAnyReturnsFirstFinisher(t *testing.T) {
	runCoroutine(t, func() {
		loop := CurrentLoop()
		group := NewCoroutineGroup(loop)
		slowGate := NewEvent()
		group.Spawn("slow", func() { slowGate.Wait() })
		fast := group.Spawn("fast", func() {})

		got, err := group.Any()
		if err != nil {
			t.Fatalf("Any failed: %v", err)
		}
		if got != fast {
			t.Errorf("Any returned %q, want the fast coroutine", got.Name())
		}
		slowGate.Set()
	})
}
