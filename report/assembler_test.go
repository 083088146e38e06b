package report

import (
	"testing"
	"time"

	"github.com/drew-gpf/picoatxt"
	"github.com/drew-gpf/picoatxt/hal"
	"github.com/drew-gpf/picoatxt/line"
)

// atBAT is the 11-bit AT BAT frame (spec.md §8).
var atBAT = []bool{false, false, true, false, true, false, true, false, true, true, true}

func newATAssembler(t *testing.T) (*Assembler, *hal.Simulator, *line.Engine) {
	t.Helper()
	sim := hal.NewSimulator()
	e := line.NewEngine(sim.Line())
	go sim.ClockOutBits(atBAT)
	if _, err := e.Init(); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return NewAssembler(e, sim.HIDHost()), sim, e
}

// F9 AT set-2 make/break codes.
const atF9 = 0x01

// ScrollLock, KeypadMinus, RightShift AT set-2 make codes.
const (
	atScrollLock  = 0x7E
	atKeypadMinus = 0x7B
	atRightShift  = 0x59
)

func TestScrollLockMacroForcesOppositeRelease(t *testing.T) {
	a, sim, _ := newATAssembler(t)

	a.ProcessPacket(line.Packet{Data: atF9, DataOK: true})
	if !a.bitmap.get(picoatxt.UsageF9) {
		t.Fatalf("F9 should read as physical F9 while Scroll Lock is off")
	}
	if a.bitmap.get(picoatxt.UsageF11) {
		t.Fatalf("F11 should not be set yet")
	}

	// Scroll Lock toggles on (host LED state changes) without releasing F9.
	sim.SetLEDs(0x04)
	a.ProcessPacket(line.Packet{Data: atF9, DataOK: true})
	if a.bitmap.get(picoatxt.UsageF9) {
		t.Fatalf("F9 must be forced released once Scroll Lock governs the pair")
	}
	if !a.bitmap.get(picoatxt.UsageF11) {
		t.Fatalf("F11 should now read held")
	}
}

func TestPauseOneShot(t *testing.T) {
	a, _, _ := newATAssembler(t)

	a.ProcessPacket(line.Packet{Data: 0xE1, DataOK: true})
	a.ProcessPacket(line.Packet{Data: 0x14, DataOK: true})
	a.ProcessPacket(line.Packet{Data: 0x77, DataOK: true})

	if !a.bitmap.get(picoatxt.UsagePause) {
		t.Fatalf("Pause should be held immediately after its 3-byte sequence")
	}
	if a.pauseTick != pauseTickInitial {
		t.Fatalf("pauseTick = %d, want %d", a.pauseTick, pauseTickInitial)
	}

	for i := 0; i < int(pauseTickInitial); i++ {
		a.Tick()
	}
	if a.bitmap.get(picoatxt.UsagePause) {
		t.Fatalf("Pause should self-release after its one-shot window")
	}
}

func TestDuplicateReportSuppression(t *testing.T) {
	a, sim, _ := newATAssembler(t)
	sim.SetIdleRate(0)

	a.Tick()
	if got := len(sim.Reports()); got != 1 {
		t.Fatalf("after first tick: %d reports, want 1", got)
	}

	a.Tick()
	if got := len(sim.Reports()); got != 1 {
		t.Fatalf("unchanged report resent with idle rate 0: %d reports, want 1", got)
	}

	sim.SetIdleRate(1)
	a.Tick()
	if got := len(sim.Reports()); got != 2 {
		t.Fatalf("nonzero idle rate should force a resend: %d reports, want 2", got)
	}
}

func TestKeyChangeClearsDuplicate(t *testing.T) {
	a, sim, _ := newATAssembler(t)
	sim.SetIdleRate(0)

	a.Tick()
	a.ProcessPacket(line.Packet{Data: atF9, DataOK: true})
	a.Tick()
	if got := len(sim.Reports()); got != 2 {
		t.Fatalf("a bitmap change must force a fresh report: %d reports, want 2", got)
	}
}

func TestBootloaderEscape(t *testing.T) {
	a, sim, _ := newATAssembler(t)

	a.ProcessPacket(line.Packet{Data: atScrollLock, DataOK: true})
	a.ProcessPacket(line.Packet{Data: atKeypadMinus, DataOK: true})
	a.ProcessPacket(line.Packet{Data: atRightShift, DataOK: true})

	a.Tick() // escape detected: bitmap cleared, one empty report queued
	if sim.BootResetRequested() {
		t.Fatalf("boot reset must not fire before the empty report is sent")
	}
	got := sim.Reports()
	if len(got) == 0 {
		t.Fatalf("expected a report on the escape tick")
	}
	last := got[len(got)-1]
	for i, b := range last[1:] {
		if b != 0 {
			t.Fatalf("escape tick must emit an all-zero report, byte %d = %#x", i, b)
		}
	}

	a.Tick() // now disconnect
	if !sim.BootResetRequested() {
		t.Fatalf("boot reset should fire on the tick after the empty report")
	}
}

func TestLockLightOrchestration(t *testing.T) {
	a, sim, e := newATAssembler(t)
	sim.SetLEDs(0x01) // NumLock on -> wire bit1

	// checkLEDChange's SendCommand(CmdSetLockLights) blocks inside the
	// write sub-protocol until the keyboard side clocks it out and ACKs;
	// that side is scheduled on the simulator beforehand, exactly as the
	// line package's own write-handshake test does.
	scriptATAck(sim)
	a.checkLEDChange()
	if !a.changeLEDs {
		t.Fatalf("changeLEDs should latch once the host LED state diverges")
	}

	sim.Advance(2 * time.Millisecond) // let the keyboard's ACK frame arrive
	pkt, ok := e.GetPacket()
	if !ok || !pkt.HasLastCommand || pkt.LastCommand != byte(picoatxt.CmdSetLockLights) {
		t.Fatalf("expected the set_locklights ACK tagged as the last command, got %+v ok=%v", pkt, ok)
	}
	a.ProcessPacket(pkt)
	if !a.pendingLockLights {
		t.Fatalf("ACK of set_locklights should queue the data byte")
	}

	scriptATAck(sim)
	a.checkLEDChange()
	sim.Advance(2 * time.Millisecond)
	pkt, ok = e.GetPacket()
	if !ok || !pkt.HasLastCommand {
		t.Fatalf("expected an ACK tagged with the lock-light data byte, got %+v ok=%v", pkt, ok)
	}
	a.ProcessPacket(pkt)
	if a.changeLEDs {
		t.Fatalf("change_leds should clear once the data byte is ACKed")
	}
	if a.lastWireLEDs != 0x02 {
		t.Fatalf("lastWireLEDs = %#x, want 0x02", a.lastWireLEDs)
	}
}

func TestFramingFailureTriggersResend(t *testing.T) {
	a, sim, e := newATAssembler(t)
	before := len(sim.OutputLog())

	scriptATAck(sim)
	a.ProcessPacket(line.Packet{DataOK: false})

	if len(sim.OutputLog()) <= before {
		t.Fatalf("a bare framing failure with no outstanding command should provoke a resend write")
	}
	sim.Advance(2 * time.Millisecond)
	e.GetPacket() // drain the resulting ACK so it doesn't leak into other assertions
}

// scriptATAck schedules the keyboard side of one AT write handshake,
// counted from the current virtual time: ten clock pulses to clock the
// converter's data, parity and stop bits out, an eleventh on which
// DATA_IN reads as the bus pulled low (the keyboard's ACK), then an ACK
// frame. The frame arrives once the test advances virtual time after
// the write.
func scriptATAck(sim *hal.Simulator) {
	for i := 0; i < 11; i++ {
		at := time.Duration(100+100*i) * time.Microsecond
		sim.Schedule(at, 0, true)
		sim.Schedule(at+50*time.Microsecond, 0, false)
	}
	sim.Schedule(1120*time.Microsecond, 1, true) // DATA_IN reads bus low = ACK
	for i, bit := range ackFrameBits() {
		at := time.Duration(1300+100*i) * time.Microsecond
		sim.Schedule(at, 1, !bit)
		sim.Schedule(at+10*time.Microsecond, 0, true)
		sim.Schedule(at+50*time.Microsecond, 0, false)
	}
}

func ackFrameBits() []bool {
	bits := make([]bool, 11)
	bits[0] = false
	ones := 0
	for i := 0; i < 8; i++ {
		v := picoatxt.RespAck&(1<<uint(i)) != 0
		bits[1+i] = v
		if v {
			ones++
		}
	}
	bits[9] = ones%2 == 0
	bits[10] = true
	return bits
}
