//go:build rp2040 || rp2350

package hal

import (
	"device/rp"
	"machine"
	"machine/usb/hid/keyboard"
	"runtime/interrupt"
	"time"

	"tinygo.org/x/drivers/flash"
	"tinygo.org/x/tinyfs"
)

// pin wraps machine.Pin to satisfy EdgeInput/OutputPin. The level shifter
// between the 5V keyboard bus and the 3.3V MCU inverts polarity: Get
// returns true when the pin reads electrically high, which corresponds
// to the bus line being held low.
type pin machine.Pin

func (p pin) Get() bool { return machine.Pin(p).Get() }

func (p pin) High() { machine.Pin(p).High() }
func (p pin) Low()  { machine.Pin(p).Low() }

func (p pin) SetInterrupt(mode EdgeMode, handler func()) {
	if handler == nil {
		machine.Pin(p).SetInterrupt(machine.PinRising|machine.PinFalling, nil)
		return
	}
	var change machine.PinChange
	switch mode {
	case EdgeRising:
		change = machine.PinRising
	case EdgeFalling:
		change = machine.PinFalling
	case EdgeBoth:
		change = machine.PinRising | machine.PinFalling
	default:
		return
	}
	machine.Pin(p).SetInterrupt(change, func(machine.Pin) { handler() })
}

// Pin assignments per spec.md §6. The core never sees these numbers;
// only this file does.
const (
	pinClkIn  = machine.GPIO21
	pinDataIn = machine.GPIO20

	pinClkOut  = machine.GPIO11
	pinDataOut = machine.GPIO10
)

// rp2Clock implements Clock on top of the RP2040's always-on 1MHz
// timer peripheral.
type rp2Clock struct{}

func (rp2Clock) Micros() uint32 {
	return uint32(rp.TIMER.TIMERAWL.Get())
}

func (rp2Clock) BusyWait(d time.Duration) {
	deadline := rp2Clock{}.Micros() + uint32(d/time.Microsecond)
	for rp2Clock{}.Micros() < deadline {
	}
}

// rp2Timer backs one of the RP2040's four hardware ALARM comparators as
// a one-shot timer with a software callback, dispatched from the
// TIMER_IRQ handler registered in newRP2Timer.
type rp2Timer struct {
	alarm    int
	callback func()
	armed    bool
}

func newRP2Timer(alarm int) *rp2Timer {
	t := &rp2Timer{alarm: alarm}
	irq := map[int]int{
		0: rp.IRQ_TIMER_IRQ_0,
		1: rp.IRQ_TIMER_IRQ_1,
		2: rp.IRQ_TIMER_IRQ_2,
	}[alarm]
	h := interrupt.New(irq, t.handleInterrupt)
	h.SetPriority(0x80)
	h.Enable()
	return t
}

func (t *rp2Timer) Start(d time.Duration, callback func()) {
	atomically(func() {
		t.callback = callback
		t.armed = true
		target := uint32(rp2Clock{}.Micros() + uint32(d/time.Microsecond))
		switch t.alarm {
		case 0:
			rp.TIMER.ALARM0.Set(target)
		case 1:
			rp.TIMER.ALARM1.Set(target)
		case 2:
			rp.TIMER.ALARM2.Set(target)
		}
		rp.TIMER.INTE.SetBits(1 << uint(t.alarm))
	})
}

func (t *rp2Timer) Cancel() {
	atomically(func() {
		t.armed = false
		t.callback = nil
		rp.TIMER.ARMED.Set(1 << uint(t.alarm))
		rp.TIMER.INTE.ClearBits(1 << uint(t.alarm))
	})
}

func (t *rp2Timer) handleInterrupt(interrupt.Interrupt) {
	rp.TIMER.INTR.Set(1 << uint(t.alarm))
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

// NewLine builds the real RP2040 hal.Line described in spec.md §6: CLK_IN
// on GPIO21, DATA_IN on GPIO20, CLK_OUT on GPIO11, DATA_OUT on GPIO10,
// and the three named timers backed by hardware alarms 0-2 (alarm 3 is
// left free for other firmware needs). The pins are configured as plain
// inputs and outputs; slew rate and drive strength are not set here.
func NewLine() *Line {
	pinClkIn.Configure(machine.PinConfig{Mode: machine.PinInput})
	pinDataIn.Configure(machine.PinConfig{Mode: machine.PinInput})
	pinClkOut.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pinDataOut.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pinClkOut.Low()
	pinDataOut.Low()

	return &Line{
		ClkIn:        pin(pinClkIn),
		DataIn:       pin(pinDataIn),
		ClkOut:       pin(pinClkOut),
		DataOut:      pin(pinDataOut),
		DefaultTimer: newRP2Timer(0),
		CommandTimer: newRP2Timer(1),
		USBTimer:     newRP2Timer(2),
		Clock:        rp2Clock{},
	}
}

// rp2HIDHost implements HIDHost on the TinyGo machine/usb/hid/keyboard
// package, grounded on the report-ID-tagged send pattern used in
// tuffrabit-tinygo-narwhal-rp2040's pkg/gamepad and pkg/keyboard.
type rp2HIDHost struct{}

// NewHIDHost returns the real RP2040 HIDHost.
func NewHIDHost() HIDHost { return rp2HIDHost{} }

func (rp2HIDHost) SendReport(id uint8, payload []byte) bool {
	if !machine.USBDev.InitEndpointComplete {
		return false
	}
	buf := make([]byte, 0, len(payload)+1)
	buf = append(buf, id)
	buf = append(buf, payload...)
	return keyboard.SendReport(buf) == nil
}

func (rp2HIDHost) BootProtocol() bool {
	return keyboard.Protocol() == keyboard.ProtocolBoot
}

func (rp2HIDHost) IdleRate() uint8 {
	return keyboard.IdleRate()
}

func (rp2HIDHost) LEDs() uint8 {
	return keyboard.LEDs()
}

func (rp2HIDHost) RequestBootReset() {
	machine.EnterBootloader()
}

// NewFlashDevice returns the on-board QSPI flash as a tinyfs.BlockDevice,
// reserved for nvconfig's littlefs-formatted settings partition. Pulled
// in from tinygo.org/x/drivers, already an indirect dependency of the
// teacher's storage layer.
func NewFlashDevice() tinyfs.BlockDevice {
	return flash.NewQSPIFlash()
}
