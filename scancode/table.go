// Package scancode translates raw XT/AT scan-code bytes into USB HID
// usage codes plus a make/break flag, driven by a four-way switchable
// per-protocol table exactly as spec.md §4.2 describes. The per-cell
// table contents reproduce the IBM scan-code sets; they are reference
// data, not policy, and are built once by init() before any interrupt
// that could feed bytes into a Translator is enabled.
package scancode

import "github.com/drew-gpf/picoatxt"

type entryKind uint8

const (
	entryNone entryKind = iota
	entryUsage
	entryOverrun
	entryExtended
	entryBreakNext
	entryBreakCode
)

// shiftState mirrors spec.md §3's ShiftState: the translator's internal
// table selector, distinct from the Shift key itself.
type shiftState uint8

const (
	shiftNormal shiftState = iota
	shiftExtended
	shiftPause
	shiftPauseNext
	numShiftStates
)

type tableEntry struct {
	kind  entryKind
	usage picoatxt.Usage
	next  shiftState // only meaningful when kind == entryExtended
}

// scanTable is the 4x256 table described in spec.md §3's ScanTable.
type scanTable [numShiftStates][256]tableEntry

var xtTable scanTable
var atTable scanTable

func init() {
	buildXTTable()
	buildATTable()
}

// codePair is one (wire byte, USB usage) mapping used to seed a table.
type codePair struct {
	code  byte
	usage picoatxt.Usage
}

func fillUsages(t *scanTable, state shiftState, pairs []codePair) {
	for _, p := range pairs {
		t[state][p.code] = tableEntry{kind: entryUsage, usage: p.usage}
	}
}

// fillXTBreaks populates the bit-7-set break-code slots for every make
// code already present in state: spec.md §4.2's break_code entry, which
// resolves by masking bit 7 and looking the base code up again.
func fillXTBreaks(t *scanTable, state shiftState) {
	for code := 0; code < 128; code++ {
		if t[state][code].kind == entryUsage {
			t[state][0x80|code] = tableEntry{kind: entryBreakCode}
		}
	}
}

func buildXTTable() {
	fillUsages(&xtTable, shiftNormal, xtNormalCodes)
	fillUsages(&xtTable, shiftExtended, xtExtendedCodes)

	for s := range xtTable {
		xtTable[s][0x00] = tableEntry{kind: entryOverrun}
		xtTable[s][0xFF] = tableEntry{kind: entryOverrun}
	}
	xtTable[shiftNormal][0xE0] = tableEntry{kind: entryExtended, next: shiftExtended}
	xtTable[shiftNormal][0xE1] = tableEntry{kind: entryExtended, next: shiftPause}

	xtTable[shiftPause][0x1D] = tableEntry{kind: entryExtended, next: shiftPauseNext}
	xtTable[shiftPauseNext][0x45] = tableEntry{kind: entryUsage, usage: picoatxt.UsagePause}

	fillXTBreaks(&xtTable, shiftNormal)
	fillXTBreaks(&xtTable, shiftExtended)
}

func buildATTable() {
	fillUsages(&atTable, shiftNormal, atNormalCodes)
	fillUsages(&atTable, shiftExtended, atExtendedCodes)

	for s := range atTable {
		atTable[s][0x00] = tableEntry{kind: entryOverrun}
		atTable[s][0xFF] = tableEntry{kind: entryOverrun}
	}
	atTable[shiftNormal][0xE0] = tableEntry{kind: entryExtended, next: shiftExtended}
	atTable[shiftNormal][0xE1] = tableEntry{kind: entryExtended, next: shiftPause}
	atTable[shiftExtended][0xF0] = tableEntry{kind: entryBreakNext}
	atTable[shiftNormal][0xF0] = tableEntry{kind: entryBreakNext}

	atTable[shiftPause][0x14] = tableEntry{kind: entryExtended, next: shiftPauseNext}
	atTable[shiftPauseNext][0x77] = tableEntry{kind: entryUsage, usage: picoatxt.UsagePause}
}

// xtNormalCodes is IBM PC/XT scan-code set 1, unshifted, for a 104-key
// US layout.
var xtNormalCodes = []codePair{
	{0x01, 0x29}, {0x02, 0x1E}, {0x03, 0x1F}, {0x04, 0x20}, {0x05, 0x21},
	{0x06, 0x22}, {0x07, 0x23}, {0x08, 0x24}, {0x09, 0x25}, {0x0A, 0x26},
	{0x0B, 0x27}, {0x0C, 0x2D}, {0x0D, 0x2E}, {0x0E, 0x2A}, {0x0F, 0x2B},
	{0x10, 0x14}, {0x11, 0x1A}, {0x12, 0x08}, {0x13, 0x15}, {0x14, 0x17},
	{0x15, 0x1C}, {0x16, 0x18}, {0x17, 0x0C}, {0x18, 0x12}, {0x19, 0x13},
	{0x1A, 0x2F}, {0x1B, 0x30}, {0x1C, 0x28}, {0x1D, 0xE0}, {0x1E, 0x04},
	{0x1F, 0x16}, {0x20, 0x07}, {0x21, 0x09}, {0x22, 0x0A}, {0x23, 0x0B},
	{0x24, 0x0D}, {0x25, 0x0E}, {0x26, 0x0F}, {0x27, 0x33}, {0x28, 0x34},
	{0x29, 0x35}, {0x2A, 0xE1}, {0x2B, 0x31}, {0x2C, 0x1D}, {0x2D, 0x1B},
	{0x2E, 0x06}, {0x2F, 0x19}, {0x30, 0x05}, {0x31, 0x11}, {0x32, 0x10},
	{0x33, 0x36}, {0x34, 0x37}, {0x35, 0x38}, {0x36, 0xE5}, {0x37, 0x55},
	{0x38, 0xE2}, {0x39, 0x2C}, {0x3A, 0x39}, {0x3B, 0x3A}, {0x3C, 0x3B},
	{0x3D, 0x3C}, {0x3E, 0x3D}, {0x3F, 0x3E}, {0x40, 0x3F}, {0x41, 0x40},
	{0x42, 0x41}, {0x43, 0x42}, {0x44, 0x43}, {0x45, 0x53}, {0x46, 0x47},
	{0x47, 0x5F}, {0x48, 0x60}, {0x49, 0x61}, {0x4A, 0x56}, {0x4B, 0x5C},
	{0x4C, 0x5D}, {0x4D, 0x5E}, {0x4E, 0x57}, {0x4F, 0x59}, {0x50, 0x5A},
	{0x51, 0x5B}, {0x52, 0x62}, {0x53, 0x63}, {0x57, 0x44}, {0x58, 0x45},
}

// xtExtendedCodes is IBM PC/AT set-1 extended codes, reached via the
// 0xE0 prefix.
var xtExtendedCodes = []codePair{
	{0x1C, 0x58}, {0x1D, 0xE4}, {0x35, 0x54}, {0x38, 0xE6},
	{0x47, 0x4A}, {0x48, 0x52}, {0x49, 0x4B}, {0x4B, 0x50},
	{0x4D, 0x4F}, {0x4F, 0x4D}, {0x50, 0x51}, {0x51, 0x4E},
	{0x52, 0x49}, {0x53, 0x4C}, {0x5B, 0xE3}, {0x5C, 0xE7}, {0x5D, 0x65},
}

// atNormalCodes is the IBM PS/2 AT scan-code set 2, unshifted.
var atNormalCodes = []codePair{
	{0x76, 0x29}, {0x16, 0x1E}, {0x1E, 0x1F}, {0x26, 0x20}, {0x25, 0x21},
	{0x2E, 0x22}, {0x36, 0x23}, {0x3D, 0x24}, {0x3E, 0x25}, {0x46, 0x26},
	{0x45, 0x27}, {0x4E, 0x2D}, {0x55, 0x2E}, {0x66, 0x2A}, {0x0D, 0x2B},
	{0x15, 0x14}, {0x1D, 0x1A}, {0x24, 0x08}, {0x2D, 0x15}, {0x2C, 0x17},
	{0x35, 0x1C}, {0x3C, 0x18}, {0x43, 0x0C}, {0x44, 0x12}, {0x4D, 0x13},
	{0x54, 0x2F}, {0x5B, 0x30}, {0x5A, 0x28}, {0x14, 0xE0}, {0x1C, 0x04},
	{0x1B, 0x16}, {0x23, 0x07}, {0x2B, 0x09}, {0x34, 0x0A}, {0x33, 0x0B},
	{0x3B, 0x0D}, {0x42, 0x0E}, {0x4B, 0x0F}, {0x4C, 0x33}, {0x52, 0x34},
	{0x0E, 0x35}, {0x12, 0xE1}, {0x5D, 0x31}, {0x1A, 0x1D}, {0x22, 0x1B},
	{0x21, 0x06}, {0x2A, 0x19}, {0x32, 0x05}, {0x31, 0x11}, {0x3A, 0x10},
	{0x41, 0x36}, {0x49, 0x37}, {0x4A, 0x38}, {0x59, 0xE5}, {0x7C, 0x55},
	{0x11, 0xE2}, {0x29, 0x2C}, {0x58, 0x39}, {0x05, 0x3A}, {0x06, 0x3B},
	{0x04, 0x3C}, {0x0C, 0x3D}, {0x03, 0x3E}, {0x0B, 0x3F}, {0x83, 0x40},
	{0x0A, 0x41}, {0x01, 0x42}, {0x09, 0x43}, {0x77, 0x53}, {0x7E, 0x47},
	{0x6C, 0x5F}, {0x75, 0x60}, {0x7D, 0x61}, {0x7B, 0x56}, {0x6B, 0x5C},
	{0x73, 0x5D}, {0x74, 0x5E}, {0x79, 0x57}, {0x69, 0x59}, {0x72, 0x5A},
	{0x7A, 0x5B}, {0x70, 0x62}, {0x71, 0x63}, {0x78, 0x44}, {0x07, 0x45},
}

// atExtendedCodes is AT set 2's extended codes, reached via the 0xE0
// prefix.
var atExtendedCodes = []codePair{
	{0x14, 0xE4}, {0x11, 0xE6}, {0x1F, 0xE3}, {0x27, 0xE7}, {0x2F, 0x65},
	{0x70, 0x49}, {0x71, 0x4C}, {0x6C, 0x4A}, {0x69, 0x4D},
	{0x7D, 0x4B}, {0x7A, 0x4E}, {0x75, 0x52}, {0x72, 0x51},
	{0x6B, 0x50}, {0x74, 0x4F}, {0x4A, 0x54}, {0x5A, 0x58},
}
