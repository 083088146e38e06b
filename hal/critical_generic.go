//go:build !rp2040 && !rp2350

package hal

import "sync"

// criticalMu stands in for "interrupts masked" on hosted builds: unit
// tests and hal.Simulator run their "interrupt handlers" on goroutines,
// so a mutex is the correct equivalent of spec.md §5's discipline here.
var criticalMu sync.Mutex

func atomically(f func()) {
	criticalMu.Lock()
	defer criticalMu.Unlock()
	f()
}
