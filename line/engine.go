package line

import (
	"math/bits"
	"time"

	"github.com/drew-gpf/picoatxt"
	"github.com/drew-gpf/picoatxt/diag"
	"github.com/drew-gpf/picoatxt/hal"
)

type lineState uint8

const (
	stateIdle lineState = iota
	stateFraming
	stateFail
	stateWritingRequestDelay
	stateWriting
)

// batResult is the outcome of one BAT detection round (spec.md §4.1,
// "BAT detection").
type batResult struct {
	protocol picoatxt.Protocol
	garbled  bool
	timedOut bool
}

const (
	batSafetyDur    = 2500 * time.Millisecond
	batFrameDur     = 4 * 11 * 100 * time.Microsecond
	xtConfirmDur    = 200 * time.Microsecond
	legacyResetDur  = 12500 * time.Microsecond
	xtWriteHoldDur  = 12500 * time.Microsecond
	atCommandHold   = 60 * time.Microsecond
	atStartSettle   = 10 * time.Microsecond
	atBitSettle     = 10 * time.Microsecond
	legacyGlitchGap = 20 * time.Microsecond
	xtIdleDebounce  = 60 // microseconds, compared against a raw counter delta
)

// Engine is the bit-serial clocking, framing and BAT-handshake state
// machine described in spec.md §4.1. It is driven from two edge
// interrupts (CLK_IN) and a one-shot timer; every field it mutates from
// an interrupt is only ever touched elsewhere under hal.Atomically.
type Engine struct {
	line *hal.Line

	protocol picoatxt.Protocol
	legacy   bool

	state         lineState
	shiftReg      uint16
	clockedBits   uint8
	finalEdgeTime uint32

	ring frameRing

	lastCommand    byte
	hasLastCommand bool
	needsReinit    bool

	// BAT-detection scratch state.
	batBits          uint8
	batShiftReg      uint16
	batClocking      bool
	xtConfirmPending bool
	batDone          bool
	batResult        batResult
}

// NewEngine builds an Engine driving the given hardware line. Call Init
// before anything else.
func NewEngine(l *hal.Line) *Engine {
	return &Engine{line: l}
}

// Protocol returns the protocol detected by Init. It is meaningless
// before Init returns successfully.
func (e *Engine) Protocol() picoatxt.Protocol { return e.protocol }

// Legacy reports whether the attached keyboard required the legacy-XT
// reset kick during detection.
func (e *Engine) Legacy() bool { return e.legacy }

// NeedsReinit reports whether a prior write failed its end-of-frame ACK
// check (spec.md §9's redesign of the source's panic-on-missing-ACK into
// a recoverable signal). The caller should call Init again.
func (e *Engine) NeedsReinit() bool { return e.needsReinit }

// Init performs the BAT handshake and returns the detected protocol. It
// blocks in a busy idle loop, polling the clock through the hal.Clock so
// that a host-side simulator can drive virtual time forward as it waits;
// on real hardware this spins the CPU between edges, exactly as the
// write sub-protocol already does for its own handshake delays.
func (e *Engine) Init() (picoatxt.Protocol, error) {
	e.needsReinit = false
	e.legacy = false

	result := e.runBATRound()
	if result.timedOut {
		e.legacy = true
		e.line.ClkOut.High()
		e.line.Clock.BusyWait(legacyResetDur)
		e.line.ClkOut.Low()

		result = e.runBATRound()
		if result.timedOut || result.garbled || result.protocol == picoatxt.ProtocolUnknown {
			return picoatxt.ProtocolUnknown, picoatxt.ErrFailedToGetXtBAT
		}
	} else if result.garbled || result.protocol == picoatxt.ProtocolUnknown {
		return picoatxt.ProtocolUnknown, picoatxt.ErrFailedToReadBAT
	}

	e.protocol = result.protocol
	e.armIdle()
	return e.protocol, nil
}

func (e *Engine) runBATRound() batResult {
	e.batBits = 0
	e.batShiftReg = 0
	e.batClocking = false
	e.xtConfirmPending = false
	e.batDone = false
	e.batResult = batResult{}

	e.line.DefaultTimer.Start(batSafetyDur, e.onBATSafety)
	e.line.ClkIn.SetInterrupt(hal.EdgeRising, e.onBATRising)

	for !e.batDone {
		e.line.Clock.BusyWait(time.Microsecond)
	}
	return e.batResult
}

func (e *Engine) finishBAT(protocol picoatxt.Protocol, garbled, timedOut bool) {
	e.line.DefaultTimer.Cancel()
	e.line.ClkIn.SetInterrupt(hal.EdgeNone, nil)
	e.batResult = batResult{protocol: protocol, garbled: garbled, timedOut: timedOut}
	e.batDone = true
}

func (e *Engine) onBATSafety() {
	if e.batClocking {
		return
	}
	e.finishBAT(picoatxt.ProtocolUnknown, false, true)
}

func (e *Engine) onBATRising() {
	if e.batClocking {
		return
	}
	e.batClocking = true
	e.line.DefaultTimer.Start(batFrameDur, e.onBATFrameTimeout)
	e.line.ClkIn.SetInterrupt(hal.EdgeFalling, e.onBATFalling)
}

func (e *Engine) onBATFrameTimeout() {
	e.finishBAT(picoatxt.ProtocolUnknown, true, false)
}

func (e *Engine) onBATFalling() {
	if e.legacy {
		bit := !e.line.DataIn.Get()
		e.line.Clock.BusyWait(legacyGlitchGap)
		if e.line.ClkIn.Get() {
			return
		}
		setBit(&e.batShiftReg, e.batBits, bit)
	} else {
		setBit(&e.batShiftReg, e.batBits, !e.line.DataIn.Get())
	}
	e.batBits++

	switch e.batBits {
	case 9:
		if bitAt(e.batShiftReg, 0) {
			e.xtConfirmPending = true
			e.line.DefaultTimer.Cancel()
			e.line.DefaultTimer.Start(xtConfirmDur, e.onBATConfirmXT)
		}
	case 10:
		if e.xtConfirmPending {
			e.xtConfirmPending = false
			e.line.DefaultTimer.Cancel()
		}
	case 11:
		if e.xtConfirmPending {
			e.xtConfirmPending = false
			e.line.DefaultTimer.Cancel()
		}
		if _, ok := validateAT(e.batShiftReg); ok {
			e.finishBAT(picoatxt.ProtocolAT, false, false)
		} else {
			e.finishBAT(picoatxt.ProtocolUnknown, true, false)
		}
	}
}

func (e *Engine) onBATConfirmXT() {
	e.finishBAT(picoatxt.ProtocolXT, false, false)
}

// armIdle releases both lines and arms rising-edge detection for the
// next frame. Used both after successful detection and after every
// completed write.
func (e *Engine) armIdle() {
	e.line.ClkOut.Low()
	e.line.DataOut.Low()
	e.state = stateIdle
	e.line.ClkIn.SetInterrupt(hal.EdgeRising, e.onRisingEdge)
}

func (e *Engine) onRisingEdge() {
	if e.protocol == picoatxt.ProtocolXT {
		now := e.line.Clock.Micros()
		if now-e.finalEdgeTime < xtIdleDebounce {
			return
		}
	}
	e.clockedBits = 0
	e.shiftReg = 0
	e.line.DefaultTimer.Start(4*time.Duration(numCycles(e.protocol))*100*time.Microsecond, e.onFrameTimeout)
	e.line.ClkIn.SetInterrupt(hal.EdgeFalling, e.onFallingEdge)
	e.state = stateFraming
}

func (e *Engine) onFallingEdge() {
	bit := !e.line.DataIn.Get()
	if e.legacy {
		e.line.Clock.BusyWait(legacyGlitchGap)
		if e.line.ClkIn.Get() {
			return
		}
	}
	setBit(&e.shiftReg, e.clockedBits, bit)
	e.clockedBits++
	if e.clockedBits == numCycles(e.protocol) {
		e.completeFrame()
	}
}

func (e *Engine) onFrameTimeout() {
	e.latchFail()
}

func (e *Engine) completeFrame() {
	e.line.DefaultTimer.Cancel()
	e.line.ClkIn.SetInterrupt(hal.EdgeRising, e.onRisingEdge)
	e.state = stateIdle
	e.finalEdgeTime = e.line.Clock.Micros()

	var data byte
	var ok bool
	if e.protocol == picoatxt.ProtocolXT {
		data, ok = validateXT(e.shiftReg)
	} else {
		data, ok = validateAT(e.shiftReg)
	}
	if !ok {
		diag.RecordFrameFailed()
		e.latchFail()
		return
	}
	if !e.ring.push(data) {
		diag.RecordFrameFailed()
		e.latchFail()
		return
	}
	diag.RecordFrameOK()
}

func (e *Engine) latchFail() {
	e.line.ClkIn.SetInterrupt(hal.EdgeNone, nil)
	e.ring.fail = true
	e.state = stateFail
	e.line.ClkOut.High()
	e.line.DataOut.High()
}

// GetPacket dequeues the next delivered frame, if any. It masks
// interrupts for the duration of the ring access, satisfying spec.md
// §5's "unsafe to call otherwise" rule without requiring callers to
// manage the critical section themselves.
func (e *Engine) GetPacket() (Packet, bool) {
	var pkt Packet
	delivered := false

	hal.Atomically(func() {
		if e.ring.fail {
			e.ring.fail = false
			pkt.DataOK = false
			e.attachLastCommand(&pkt)
			delivered = true
			return
		}
		if e.ring.empty() {
			return
		}
		pkt.Data = e.ring.pop()
		pkt.DataOK = true
		e.attachLastCommand(&pkt)
		delivered = true
	})
	return pkt, delivered
}

func (e *Engine) attachLastCommand(pkt *Packet) {
	if !e.hasLastCommand {
		return
	}
	pkt.LastCommand = e.lastCommand
	pkt.HasLastCommand = true
	e.hasLastCommand = false
}

// Ready reports whether the ring has nothing queued and no command is
// currently outstanding — the condition spec.md §4.3's command
// orchestration checks before opportunistically sending a pending
// lock-light update.
func (e *Engine) Ready() bool {
	ready := false
	hal.Atomically(func() {
		ready = e.ring.empty() && !e.hasLastCommand
	})
	return ready
}

func (e *Engine) checkWritePreconditions() error {
	var err error
	hal.Atomically(func() {
		if !e.ring.empty() {
			err = picoatxt.ErrRingBufferNotEmpty
			return
		}
		if e.hasLastCommand {
			err = picoatxt.ErrContention
			return
		}
		if e.state == stateFraming && e.clockedBits > 8 {
			err = picoatxt.ErrClocking
			return
		}
		if e.state != stateIdle && e.state != stateFail {
			err = picoatxt.ErrContention
		}
	})
	return err
}

// SendCommand queues one of the fixed taxonomy commands. Only reset is
// legal on XT; every other command returns ErrAtXt.
func (e *Engine) SendCommand(cmd picoatxt.Command) error {
	if err := e.checkWritePreconditions(); err != nil {
		return err
	}
	if e.protocol == picoatxt.ProtocolXT {
		if cmd != picoatxt.CmdReset {
			return picoatxt.ErrAtXt
		}
		return e.writeXTReset()
	}
	return e.writeAT(byte(cmd))
}

// SendATCommand writes an arbitrary raw byte through the AT write
// sub-protocol — used for command payload bytes that aren't themselves
// part of the fixed Command taxonomy (the lock-light bitmask, most
// notably).
func (e *Engine) SendATCommand(b byte) error {
	if err := e.checkWritePreconditions(); err != nil {
		return err
	}
	if e.protocol != picoatxt.ProtocolAT {
		return picoatxt.ErrAtXt
	}
	return e.writeAT(b)
}

func (e *Engine) writeXTReset() error {
	e.line.ClkIn.SetInterrupt(hal.EdgeNone, nil)
	e.state = stateWriting

	e.line.ClkOut.High()
	e.line.Clock.BusyWait(xtWriteHoldDur)
	e.line.ClkOut.Low()

	e.armIdle()
	e.lastCommand = byte(picoatxt.CmdReset)
	e.hasLastCommand = true
	return nil
}

func (e *Engine) setDataBit(bit bool) {
	if bit {
		e.line.DataOut.Low()
	} else {
		e.line.DataOut.High()
	}
}

// waitFallingEdge busy-polls CLK_IN for a rising edge followed by a
// falling edge, used while the receive interrupt is disabled during a
// write. Every poll advances the simulator's virtual clock by the read
// granularity, so scripted keyboard responses still arrive on schedule.
func (e *Engine) waitFallingEdge() {
	for !e.line.ClkIn.Get() {
	}
	for e.line.ClkIn.Get() {
	}
}

// holdCommandTimer arms CommandTimer for d and busy-waits for its
// callback, giving the 60µs CLK-low hold in writeAT a real one-shot
// timer as spec.md §4.1 names ("via the command timer") while keeping
// SendCommand/SendATCommand synchronous.
func (e *Engine) holdCommandTimer(d time.Duration) {
	fired := false
	e.line.CommandTimer.Start(d, func() { fired = true })
	for !fired {
		e.line.Clock.BusyWait(time.Microsecond)
	}
}

func (e *Engine) writeAT(b byte) error {
	e.line.ClkIn.SetInterrupt(hal.EdgeNone, nil)
	e.state = stateWritingRequestDelay

	e.line.ClkOut.High()
	e.holdCommandTimer(atCommandHold)

	e.line.DataOut.High() // start bit (logical 0)
	e.line.Clock.BusyWait(atStartSettle)
	e.line.ClkOut.Low()
	e.state = stateWriting

	ones := bits.OnesCount8(b)
	parityBit := ones%2 == 0

	for i := 0; i < 8; i++ {
		e.waitFallingEdge()
		e.line.Clock.BusyWait(atBitSettle)
		e.setDataBit(b&(1<<uint(i)) != 0)
	}

	e.waitFallingEdge()
	e.line.Clock.BusyWait(atBitSettle)
	e.setDataBit(parityBit)

	e.waitFallingEdge()
	e.line.Clock.BusyWait(atBitSettle)
	e.line.DataOut.Low() // stop bit (logical 1), release

	e.waitFallingEdge()
	if !e.line.DataIn.Get() {
		e.needsReinit = true
		diag.RecordReinit()
		diag.LogError(diag.ComponentLine, "write ACK missing, reinit required", "byte", b)
		return picoatxt.ErrContention
	}

	e.armIdle()
	e.lastCommand = b
	e.hasLastCommand = true
	return nil
}
