package picoatxt

import "errors"

// Error kinds shared across the line engine and the main loop, per
// spec.md §7. They are returned as-is, without wrapping, rather than
// through a parallel error-code type; callers compare against them.
var (
	// ErrClocking is returned when a write is attempted while more than
	// 8 bits of an incoming frame have already been clocked in.
	ErrClocking = errors.New("picoatxt: write attempted mid-frame")

	// ErrRingBufferNotEmpty is returned when a write is attempted while
	// the receive ring still holds undelivered frames.
	ErrRingBufferNotEmpty = errors.New("picoatxt: ring buffer not empty")

	// ErrAtXt is returned when an AT-only command is sent to an XT
	// keyboard.
	ErrAtXt = errors.New("picoatxt: command not supported on XT")

	// ErrContention is returned when a command is already outstanding,
	// a write is already in progress, or a write's final ACK check
	// failed (the redesigned, non-panicking replacement for the
	// source's panic-on-missing-ACK; see SPEC_FULL.md §4.1.2).
	ErrContention = errors.New("picoatxt: bus contention")

	// ErrFailedToReadBAT is returned when the first BAT detection round
	// sees a clock edge but does not end in a valid XT or AT BAT frame
	// (a bad frame or a frame timeout). A first round that sees no edge
	// before its safety timer expires leads to the legacy-XT retry.
	ErrFailedToReadBAT = errors.New("picoatxt: BAT detection timed out")

	// ErrFailedToGetXtBAT is returned when the legacy-XT retry (forced
	// reset, then a second detection attempt) also times out.
	ErrFailedToGetXtBAT = errors.New("picoatxt: legacy XT BAT retry failed")
)
