//go:build deadlock

package qtng

import "github.com/sasha-s/go-deadlock"

// teMutex guards ThreadEvent shared state. Under the deadlock tag it detects
// lock-order inversions and waits that exceed the configured timeout.
type teMutex = deadlock.Mutex
