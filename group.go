package qtng

import "log"

// CoroutineGroup tracks a set of coroutines of one event loop by name.
// Finished coroutines remove themselves; KillAll tears the rest down, which
// makes a group a convenient scope for "everything this component spawned".
type CoroutineGroup struct {
	loop       *EventLoop
	coroutines []*Coroutine
}

// NewCoroutineGroup creates an empty group on the given loop.
func NewCoroutineGroup(loop *EventLoop) *CoroutineGroup {
	return &CoroutineGroup{loop: loop}
}

// Spawn starts f as a named coroutine in the group. An empty name is
// allowed; a duplicate name returns nil without spawning.
func (g *CoroutineGroup) Spawn(name string, f func()) *Coroutine {
	if name != "" && g.Get(name) != nil {
		return nil
	}
	c := g.loop.Spawn(f)
	if c == nil {
		return nil
	}
	c.SetName(name)
	g.add(c)
	return c
}

// Add places an already-spawned coroutine under the group's management.
// It reports false if the coroutine's name is already taken.
func (g *CoroutineGroup) Add(c *Coroutine) bool {
	if c.Name() != "" && g.Get(c.Name()) != nil {
		return false
	}
	g.add(c)
	return true
}

func (g *CoroutineGroup) add(c *Coroutine) {
	c.addFinishCallback(func(fc *Coroutine) { g.remove(fc) })
	g.coroutines = append(g.coroutines, c)
}

func (g *CoroutineGroup) remove(c *Coroutine) {
	for i, member := range g.coroutines {
		if member == c {
			g.coroutines = append(g.coroutines[:i], g.coroutines[i+1:]...)
			return
		}
	}
}

// Get returns the group member with the given name, or nil.
func (g *CoroutineGroup) Get(name string) *Coroutine {
	for _, c := range g.coroutines {
		if c.Name() == name {
			return c
		}
	}
	return nil
}

// Has reports whether a member with the given name exists.
func (g *CoroutineGroup) Has(name string) bool {
	return g.Get(name) != nil
}

// IsCurrent reports whether the calling coroutine is the member with the
// given name.
func (g *CoroutineGroup) IsCurrent(name string) bool {
	c := g.Get(name)
	return c != nil && c == CurrentCoroutine()
}

// Kill cancels the named member. With join it also waits for the member to
// finish. It reports whether a member was killed.
func (g *CoroutineGroup) Kill(name string, join bool) bool {
	c := g.Get(name)
	if c == nil {
		return false
	}
	if c == CurrentCoroutine() {
		log.Printf("qtng: killing current coroutine %q", name)
		return false
	}
	c.Kill()
	if join {
		c.Join()
	}
	return true
}

// KillAll cancels every member except the caller. With join it waits for
// each one. It reports whether anything was killed.
func (g *CoroutineGroup) KillAll(join bool) bool {
	done := false
	members := append([]*Coroutine(nil), g.coroutines...)
	for _, c := range members {
		if c == CurrentCoroutine() {
			continue
		}
		c.Kill()
		if join {
			c.Join()
		}
		done = true
	}
	return done
}

// Join waits for the named member to finish. It reports whether a member
// was joined.
func (g *CoroutineGroup) Join(name string) bool {
	c := g.Get(name)
	if c == nil {
		return false
	}
	if c == CurrentCoroutine() {
		log.Printf("qtng: joining current coroutine %q", name)
		return false
	}
	c.Join()
	return true
}

// JoinAll waits for every member except the caller. It reports whether the
// group had members.
func (g *CoroutineGroup) JoinAll() bool {
	members := append([]*Coroutine(nil), g.coroutines...)
	had := len(members) > 0
	for _, c := range members {
		if c == CurrentCoroutine() {
			continue
		}
		c.Join()
	}
	return had
}

// Any parks the caller until any member finishes and returns that member.
// With no members it returns nil immediately.
func (g *CoroutineGroup) Any() (*Coroutine, error) {
	if len(g.coroutines) == 0 {
		return nil, nil
	}
	first := NewValueEvent[*Coroutine]()
	for _, c := range g.coroutines {
		c.addFinishCallback(func(fc *Coroutine) { first.Send(fc) })
	}
	return first.Wait()
}

// Len returns the number of live members.
func (g *CoroutineGroup) Len() int {
	return len(g.coroutines)
}
