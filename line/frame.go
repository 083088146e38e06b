package line

import "github.com/drew-gpf/picoatxt"

func bitAt(reg uint16, pos uint8) bool { return reg&(1<<pos) != 0 }

func setBit(reg *uint16, pos uint8, v bool) {
	if v {
		*reg |= 1 << pos
	} else {
		*reg &^= 1 << pos
	}
}

// numCycles is the total bit count of one frame on the wire for the
// given protocol: 9 for XT (1 start + 8 data), 11 for AT (1 start + 8
// data + parity + 1 stop).
func numCycles(p picoatxt.Protocol) uint8 {
	if p == picoatxt.ProtocolXT {
		return 9
	}
	return 11
}

// validateXT checks a completed 9-bit XT shift register and extracts the
// LSB-first data byte. A good frame requires the start bit (position 0)
// to be 1.
func validateXT(reg uint16) (data byte, ok bool) {
	if !bitAt(reg, 0) {
		return 0, false
	}
	for i := uint8(0); i < 8; i++ {
		if bitAt(reg, 1+i) {
			data |= 1 << i
		}
	}
	return data, true
}

// validateAT checks a completed 11-bit AT shift register: start bit
// (position 0) must be 0, stop bit (position 10) must be 1, and the
// popcount of the 8 data bits plus the parity bit (position 9) must be
// odd.
func validateAT(reg uint16) (data byte, ok bool) {
	if bitAt(reg, 0) {
		return 0, false
	}
	if !bitAt(reg, 10) {
		return 0, false
	}
	ones := 0
	for i := uint8(0); i < 8; i++ {
		if bitAt(reg, 1+i) {
			data |= 1 << i
			ones++
		}
	}
	if bitAt(reg, 9) {
		ones++
	}
	if ones%2 == 0 {
		return 0, false
	}
	return data, true
}
