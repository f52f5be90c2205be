//go:build !deadlock

package qtng

import "sync"

// teMutex guards ThreadEvent shared state. Build with -tags deadlock to swap
// in a deadlock-detecting mutex during debugging.
type teMutex = sync.Mutex
