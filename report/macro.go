package report

import "github.com/drew-gpf/picoatxt"

// remapPair is one macro layer entry: physical is the usage the scan-code
// translator actually emits for that key; logical is what gets reported
// instead when the pair's governing lock is active. spec.md §4.3
// requires that toggling one member of a pair always forces the other
// released, so a lock toggled mid-hold can never leave a ghost key down.
type remapPair struct {
	physical picoatxt.Usage
	logical  picoatxt.Usage
}

// scrollLockPairs are active (report the logical usage) when Scroll Lock
// is on.
var scrollLockPairs = []remapPair{
	{physical: 0x42, logical: 0x44}, // F9 -> F11
	{physical: 0x43, logical: 0x45}, // F10 -> F12
}

// numLockPairs are active (report the logical usage) when Num Lock is
// off — the keypad's default behavior is the navigation cluster; Num
// Lock on selects the digit/period usages instead.
var numLockPairs = []remapPair{
	{physical: 0x5F, logical: 0x4A}, // Keypad 7 -> Home
	{physical: 0x60, logical: 0x52}, // Keypad 8 -> Up
	{physical: 0x61, logical: 0x4B}, // Keypad 9 -> PageUp
	{physical: 0x5C, logical: 0x50}, // Keypad 4 -> Left
	{physical: 0x5E, logical: 0x4F}, // Keypad 6 -> Right
	{physical: 0x59, logical: 0x4D}, // Keypad 1 -> End
	{physical: 0x5A, logical: 0x51}, // Keypad 2 -> Down
	{physical: 0x5B, logical: 0x4E}, // Keypad 3 -> PageDown
	{physical: 0x62, logical: 0x49}, // Keypad 0 -> Insert
	{physical: 0x63, logical: 0x4C}, // Keypad . -> Delete
}

// resolveMacro looks wireUsage up in the scroll-lock and num-lock pair
// tables. When found it returns which usage should actually be reported
// (report) given the current lock state, and the other usage in the pair
// that must be forced released.
func resolveMacro(wireUsage picoatxt.Usage, scrollLockOn, numLockOn bool) (report, forceRelease picoatxt.Usage, isRemapped bool) {
	for _, p := range scrollLockPairs {
		if wireUsage == p.physical {
			if scrollLockOn {
				return p.logical, p.physical, true
			}
			return p.physical, p.logical, true
		}
	}
	for _, p := range numLockPairs {
		if wireUsage == p.physical {
			if !numLockOn {
				return p.logical, p.physical, true
			}
			return p.physical, p.logical, true
		}
	}
	return wireUsage, 0, false
}
