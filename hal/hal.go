// Package hal defines the boundary between picoatxt's protocol core
// (packages line, scancode, report) and the microcontroller SDK, USB HID
// stack, flash, and PWM peripherals it runs on top of. spec.md §1 names
// these as external collaborators "whose interfaces we merely name"; this
// package is where that naming happens, so the core can be driven by a
// simulator in tests and by real RP2040 peripherals in cmd/picoatxt.
package hal

import "time"

// EdgeMode selects which edges an EdgeInput reports through SetInterrupt.
type EdgeMode uint8

const (
	EdgeNone EdgeMode = iota
	EdgeRising
	EdgeFalling
	EdgeBoth
)

// EdgeInput is a GPIO input pin capable of edge-triggered interrupts.
// Implementations must call the handler installed by SetInterrupt from
// interrupt context (or an equivalent exclusive context in the
// simulator); the handler must not block.
type EdgeInput interface {
	// Get returns the pin's current logical state, already corrected for
	// the level-shifter's inversion: true means the bus line reads low.
	Get() bool
	// SetInterrupt installs handler to run on the selected edges. Passing
	// a nil handler disables the interrupt without changing EdgeMode.
	SetInterrupt(mode EdgeMode, handler func())
}

// OutputPin is a GPIO output pin. Driving it High forces the bus line
// low (the level-shifter inverts polarity); Low releases the line.
type OutputPin interface {
	High()
	Low()
}

// Timer is a one-shot hardware timer with a callback, used for the frame
// timeout, the write-handshake delays, and the 1 ms HID tick (spec.md §5
// names these default_timer, command_timer and usb_timer).
type Timer interface {
	// Start arms the timer to fire once after d. Starting an already
	// armed timer rearms it.
	Start(d time.Duration, callback func())
	// Cancel disarms the timer. It is a no-op if not armed.
	Cancel()
}

// Clock is a free-running microsecond counter plus a busy-wait helper.
type Clock interface {
	// Micros returns a free-running microsecond counter. It may wrap;
	// callers compare differences, never absolute values.
	Micros() uint32
	// BusyWait spins for approximately d without yielding. Used for the
	// 10µs settle delays in the AT write sub-protocol, the 12.5ms CLK-low
	// reset holds, and the 20µs legacy-XT glitch check.
	BusyWait(d time.Duration)
}

// Line bundles the four pins and three timers the line engine (package
// line) needs, per spec.md §6's physical pin list and §5's timer roster.
type Line struct {
	ClkIn  EdgeInput
	DataIn EdgeInput

	ClkOut  OutputPin
	DataOut OutputPin

	// DefaultTimer backs the frame timeout and the BAT safety timer.
	DefaultTimer Timer
	// CommandTimer backs the 60us CLK-low hold at the start of the AT
	// write sub-protocol.
	CommandTimer Timer
	// USBTimer is the one-shot set aside for the 1ms HID tick. Nothing
	// arms it: cmd/picoatxt drives report.Assembler.Tick from its own
	// 1ms sleep loop.
	USBTimer Timer

	Clock Clock
}

// HIDHost is the USB HID transport boundary used by package report.
type HIDHost interface {
	// SendReport transmits payload under the given report ID. It returns
	// false if the host isn't ready to accept a report right now (the
	// caller should try again on the next tick).
	SendReport(id uint8, payload []byte) bool
	// BootProtocol reports whether the host has selected the legacy
	// 8-byte boot protocol (Set_Protocol=Boot) rather than full report
	// mode.
	BootProtocol() bool
	// IdleRate returns the host's Set_Idle rate; 0 means duplicate
	// reports must be suppressed.
	IdleRate() uint8
	// LEDs returns the most recent LED output report from the host:
	// bit0 NumLock, bit1 CapsLock, bit2 ScrollLock (standard USB HID
	// keyboard LED usage-page ordering).
	LEDs() uint8
	// RequestBootReset asks the SDK to disconnect USB and enter the
	// mass-storage bootloader. It does not return.
	RequestBootReset()
}

// Atomically runs f with the equivalent of spec.md §5's "CPU interrupts
// globally masked": every field shared with an interrupt handler must
// only be read or written from inside f, or from the handler itself.
// The RP2040 build masks real interrupts; the generic build (used by
// tests and the simulator) takes a mutex.
func Atomically(f func()) {
	atomically(f)
}
