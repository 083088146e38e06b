package line

import (
	"testing"
	"time"

	"github.com/drew-gpf/picoatxt"
	"github.com/drew-gpf/picoatxt/hal"
)

// xtBAT is 9 bits: start=1, then 0xAA LSB-first (spec.md §8, "XT BAT").
var xtBAT = []bool{true, false, true, false, true, false, true, false, true}

// atBAT is 11 bits: start=0, 0xAA LSB-first, parity=1, stop=1.
var atBAT = []bool{false, false, true, false, true, false, true, false, true, true, true}

func TestInitDetectsXT(t *testing.T) {
	sim := hal.NewSimulator()
	e := NewEngine(sim.Line())

	go sim.ClockOutBits(xtBAT)

	proto, err := e.Init()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if proto != picoatxt.ProtocolXT {
		t.Fatalf("got %v, want XT", proto)
	}
	if e.Legacy() {
		t.Fatalf("should not be legacy")
	}
}

func TestInitDetectsAT(t *testing.T) {
	sim := hal.NewSimulator()
	e := NewEngine(sim.Line())

	go sim.ClockOutBits(atBAT)

	proto, err := e.Init()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if proto != picoatxt.ProtocolAT {
		t.Fatalf("got %v, want AT", proto)
	}
}

func TestInitLegacyXT(t *testing.T) {
	sim := hal.NewSimulator()
	e := NewEngine(sim.Line())

	// No edges for 2.5s: Init's polling advances the simulator's virtual
	// clock until runBATRound's safety timer fires on its own. Init then
	// drives a 12.5ms CLK-low pulse and retries; the keyboard answers the
	// retry with a plain XT frame at 2.6s of virtual time.
	scheduleBits(sim, 2600*time.Millisecond, xtBAT)

	proto, err := e.Init()
	if err != nil {
		t.Fatalf("Init: %v", err)
	}
	if proto != picoatxt.ProtocolXT {
		t.Fatalf("got %v, want XT", proto)
	}
	if !e.Legacy() {
		t.Fatalf("want legacy = true")
	}
}

func TestRingOrderingAndFail(t *testing.T) {
	sim := hal.NewSimulator()
	e := NewEngine(sim.Line())
	go sim.ClockOutBits(xtBAT)
	if _, err := e.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	// First good frame: 0x1E (XT make of 'A') with valid start bit.
	frame := xtFrameBits(0x1E)
	sim.ClockOutBits(frame)

	pkt, ok := e.GetPacket()
	if !ok || !pkt.DataOK || pkt.Data != 0x1E {
		t.Fatalf("got %+v, ok=%v, want 0x1E", pkt, ok)
	}

	// A timeout mid-frame must latch exactly one fail packet. Virtual time
	// first moves past the XT 60µs end-of-frame debounce, which would
	// otherwise discard the rising edge.
	sim.Advance(100 * time.Microsecond)
	sim.Pulse(0, true) // rising edge, start framing
	sim.FireTimer(0)   // frame timeout

	pkt, ok = e.GetPacket()
	if !ok || pkt.DataOK {
		t.Fatalf("expected a single fail packet, got %+v ok=%v", pkt, ok)
	}
	if _, ok = e.GetPacket(); ok {
		t.Fatalf("fail packet delivered twice")
	}
}

func TestATLockLightHandshake(t *testing.T) {
	sim := hal.NewSimulator()
	e := NewEngine(sim.Line())
	go sim.ClockOutBits(atBAT)
	if _, err := e.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}

	scriptATWriteACK(sim, byte(picoatxt.CmdSetLockLights))
	if err := e.SendCommand(picoatxt.CmdSetLockLights); err != nil {
		t.Fatalf("SendCommand: %v", err)
	}
	sim.Advance(2 * time.Millisecond) // let the keyboard's ACK frame arrive
	pkt, ok := e.GetPacket()
	if !ok || !pkt.DataOK || pkt.Data != picoatxt.RespAck {
		t.Fatalf("expected ACK, got %+v ok=%v", pkt, ok)
	}
	if !pkt.HasLastCommand || pkt.LastCommand != byte(picoatxt.CmdSetLockLights) {
		t.Fatalf("missing last-command tag: %+v", pkt)
	}
}

// xtFrameBits returns the 9-bit transmission-order bit sequence for an
// XT data byte (start=1, then data LSB-first).
func xtFrameBits(data byte) []bool {
	bits := make([]bool, 9)
	bits[0] = true
	for i := 0; i < 8; i++ {
		bits[1+i] = data&(1<<uint(i)) != 0
	}
	return bits
}

// scriptATWriteACK schedules the keyboard side of one AT write handshake,
// counted from the current virtual time: ten clock pulses to clock out
// the converter's data, parity and stop bits, an eleventh on which
// DATA_IN reads as the bus pulled low (the keyboard's ACK), then an ACK
// frame carrying 0xFA. writeAT polls its way through the pulses; the
// frame arrives once the test advances virtual time after the write.
func scriptATWriteACK(sim *hal.Simulator, expect byte) {
	for i := 0; i < 11; i++ {
		at := time.Duration(100+100*i) * time.Microsecond
		sim.Schedule(at, 0, true)
		sim.Schedule(at+50*time.Microsecond, 0, false)
	}
	sim.Schedule(1120*time.Microsecond, 1, true) // DATA_IN reads bus low = ACK
	scheduleBits(sim, 1300*time.Microsecond, atFrameBits(picoatxt.RespAck))
}

// scheduleBits schedules one frame on the simulated bus, starting start
// after the current virtual time: for each bit DATA_IN is set first,
// CLK_IN rises 10µs later and falls 50µs later, and bits are 100µs apart.
func scheduleBits(sim *hal.Simulator, start time.Duration, bits []bool) {
	for i, bit := range bits {
		at := start + time.Duration(100*i)*time.Microsecond
		sim.Schedule(at, 1, !bit)
		sim.Schedule(at+10*time.Microsecond, 0, true)
		sim.Schedule(at+50*time.Microsecond, 0, false)
	}
}

func atFrameBits(data byte) []bool {
	bits := make([]bool, 11)
	bits[0] = false
	ones := 0
	for i := 0; i < 8; i++ {
		v := data&(1<<uint(i)) != 0
		bits[1+i] = v
		if v {
			ones++
		}
	}
	bits[9] = ones%2 == 0
	bits[10] = true
	return bits
}
