//go:build rp2040 || rp2350

package hal

import "runtime/interrupt"

// atomically masks interrupts globally for the duration of f, matching
// the "interrupts masked ⇒ exclusive access" discipline of spec.md §5.
// Grounded on jangala-dev-tinygo-uartx's use of runtime/interrupt for
// IRQ-vs-mainline synchronization.
func atomically(f func()) {
	mask := interrupt.Disable()
	defer interrupt.Restore(mask)
	f()
}
