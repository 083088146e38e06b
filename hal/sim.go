package hal

import (
	"sort"
	"time"
)

// Simulator is an in-memory stand-in for the keyboard bus and the USB
// host, used by the tests in line and report (spec.md §8:
// "a test harness (with a simulated keyboard side)"). It is a small
// discrete-event model: scheduled pin transitions and armed timers are
// applied as virtual time advances, so a test can pre-script "the
// keyboard pulls CLK low after 10µs" and then drive the engine
// synchronously, exactly as a real ISR/timer pairing would.
//
// Polling reads (EdgeInput.Get) also advance virtual time by a single
// microsecond before returning, so code that busy-polls a pin instead
// of waiting on its interrupt still observes scheduled transitions
// without needing a second goroutine.
type Simulator struct {
	micros uint32

	inLevel   [2]bool // 0 = ClkIn, 1 = DataIn; true = bus held low
	inHandler [2]func()
	inMode    [2]EdgeMode

	outLevel [2]bool // 0 = ClkOut, 1 = DataOut
	outLog   [][2]bool

	schedule []simEvent
	timers   [3]*simTimer

	// HIDHost recording.
	reports      [][]byte
	bootProtocol bool
	idleRate     uint8
	leds         uint8
	bootReset    bool
}

type simEvent struct {
	at    uint32
	pin   int
	level bool
}

// NewSimulator returns a Simulator with both bus lines idle (released,
// i.e. reading logical low per the inverted level-shifter convention).
func NewSimulator() *Simulator {
	s := &Simulator{}
	for i := range s.timers {
		s.timers[i] = &simTimer{sim: s}
	}
	return s
}

// Line returns a hal.Line backed by this simulator.
func (s *Simulator) Line() *Line {
	return &Line{
		ClkIn:        simEdge{s, 0},
		DataIn:       simEdge{s, 1},
		ClkOut:       simOut{s, 0},
		DataOut:      simOut{s, 1},
		DefaultTimer: s.timers[0],
		CommandTimer: s.timers[1],
		USBTimer:     s.timers[2],
		Clock:        simClock{s},
	}
}

// HIDHost returns a hal.HIDHost backed by this simulator.
func (s *Simulator) HIDHost() HIDHost { return simHID{s} }

// --- scripting helpers used by tests ---

// Schedule arranges for pin (0 = ClkIn, 1 = DataIn) to read level after d
// of virtual time has elapsed from now.
func (s *Simulator) Schedule(d time.Duration, pinIdx int, level bool) {
	ev := simEvent{at: s.micros + uint32(d/time.Microsecond), pin: pinIdx, level: level}
	i := sort.Search(len(s.schedule), func(i int) bool { return s.schedule[i].at > ev.at })
	s.schedule = append(s.schedule, simEvent{})
	copy(s.schedule[i+1:], s.schedule[i:])
	s.schedule[i] = ev
}

// Pulse immediately sets pin to level and dispatches any matching edge
// interrupt, without advancing virtual time. Used to drive receive-side
// tests that don't depend on precise timing.
func (s *Simulator) Pulse(pinIdx int, level bool) {
	s.applyLevel(pinIdx, level)
}

// ClockOutBits drives ClkIn/DataIn through one rising+falling pair per
// logical bit (the GPIO-domain equivalent of the keyboard pulling CLK
// low once per bit cycle), with DATA_IN set to match bit's protocol-level
// value before the pulse — a logical 1 is carried as the bus released
// high (pin reads low), a logical 0 as the bus pulled low (pin reads
// high). bits[0] is sent first (the start bit, for a full frame).
func (s *Simulator) ClockOutBits(bits []bool) {
	const ClkIn, DataIn = 0, 1
	for _, bit := range bits {
		s.Pulse(DataIn, !bit)
		s.Pulse(ClkIn, true)
		s.Pulse(ClkIn, false)
	}
}

// FireTimer immediately invokes the given timer's callback as if it had
// expired, simulating a frame timeout or the BAT safety timer without
// waiting out real virtual time. idx is 0 (DefaultTimer), 1
// (CommandTimer) or 2 (USBTimer).
func (s *Simulator) FireTimer(idx int) {
	s.timers[idx].fire()
}

// Advance moves virtual time forward by d, applying any scheduled pin
// transitions and firing any timers that come due along the way, in
// chronological order.
func (s *Simulator) Advance(d time.Duration) {
	s.tick(uint32(d / time.Microsecond))
}

// OutputLog returns the recorded sequence of (ClkOut, DataOut) levels
// observed after every write, oldest first, for assertions in write
// sub-protocol tests.
func (s *Simulator) OutputLog() [][2]bool { return s.outLog }

// Reports returns every report sent to SendReport, in order.
func (s *Simulator) Reports() [][]byte { return s.reports }

// SetBootProtocol / SetIdleRate / BootResetRequested let tests drive and
// observe the USB host side.
func (s *Simulator) SetBootProtocol(b bool)   { s.bootProtocol = b }
func (s *Simulator) SetIdleRate(r uint8)      { s.idleRate = r }
func (s *Simulator) SetLEDs(l uint8)          { s.leds = l }
func (s *Simulator) BootResetRequested() bool { return s.bootReset }

// --- internals ---

func (s *Simulator) tick(micros uint32) {
	target := s.micros + micros
	for len(s.schedule) > 0 && s.schedule[0].at <= target {
		ev := s.schedule[0]
		s.schedule = s.schedule[1:]
		s.micros = ev.at
		s.applyLevel(ev.pin, ev.level)
		s.fireDueTimers()
	}
	if target > s.micros {
		s.micros = target
	}
	s.fireDueTimers()
}

func (s *Simulator) applyLevel(pinIdx int, level bool) {
	if s.inLevel[pinIdx] == level {
		return
	}
	s.inLevel[pinIdx] = level
	mode := s.inMode[pinIdx]
	handler := s.inHandler[pinIdx]
	if handler == nil || mode == EdgeNone {
		return
	}
	matches := mode == EdgeBoth ||
		(mode == EdgeRising && level) ||
		(mode == EdgeFalling && !level)
	if matches {
		handler()
	}
}

func (s *Simulator) fireDueTimers() {
	for _, t := range s.timers {
		if t.armed && t.deadline <= s.micros {
			t.fire()
		}
	}
}

type simEdge struct {
	sim *Simulator
	idx int
}

func (e simEdge) Get() bool {
	e.sim.tick(1)
	return e.sim.inLevel[e.idx]
}

func (e simEdge) SetInterrupt(mode EdgeMode, handler func()) {
	e.sim.inHandler[e.idx] = handler
	e.sim.inMode[e.idx] = mode
}

type simOut struct {
	sim *Simulator
	idx int
}

func (o simOut) High() { o.set(true) }
func (o simOut) Low()  { o.set(false) }

func (o simOut) set(level bool) {
	o.sim.outLevel[o.idx] = level
	o.sim.outLog = append(o.sim.outLog, o.sim.outLevel)
}

type simClock struct{ sim *Simulator }

func (c simClock) Micros() uint32 { return c.sim.micros }

func (c simClock) BusyWait(d time.Duration) { c.sim.tick(uint32(d / time.Microsecond)) }

type simTimer struct {
	sim      *Simulator
	armed    bool
	deadline uint32
	callback func()
}

func (t *simTimer) Start(d time.Duration, callback func()) {
	t.armed = true
	t.callback = callback
	t.deadline = t.sim.micros + uint32(d/time.Microsecond)
}

func (t *simTimer) Cancel() {
	t.armed = false
	t.callback = nil
}

func (t *simTimer) fire() {
	if !t.armed {
		return
	}
	t.armed = false
	cb := t.callback
	t.callback = nil
	if cb != nil {
		cb()
	}
}

type simHID struct{ sim *Simulator }

func (h simHID) SendReport(id uint8, payload []byte) bool {
	rep := make([]byte, 0, len(payload)+1)
	rep = append(rep, id)
	rep = append(rep, payload...)
	h.sim.reports = append(h.sim.reports, rep)
	return true
}

func (h simHID) BootProtocol() bool { return h.sim.bootProtocol }
func (h simHID) IdleRate() uint8    { return h.sim.idleRate }
func (h simHID) LEDs() uint8        { return h.sim.leds }
func (h simHID) RequestBootReset()  { h.sim.bootReset = true }
