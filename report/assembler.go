// Package report maintains the key bitmap, the numeric-keypad/F-key
// macro layers, the Pause one-shot, lock-light orchestration and HID
// report emission described in spec.md §4.3.
package report

import (
	"github.com/drew-gpf/picoatxt"
	"github.com/drew-gpf/picoatxt/diag"
	"github.com/drew-gpf/picoatxt/hal"
	"github.com/drew-gpf/picoatxt/line"
	"github.com/drew-gpf/picoatxt/scancode"
)

const pauseTickInitial = 33

// Assembler is C3: it consumes dequeued frames from a line.Engine,
// decodes them through a scancode.Translator, keeps the 22-byte bitmap
// current, and drives HID report emission and command orchestration.
type Assembler struct {
	engine     *line.Engine
	host       hal.HIDHost
	translator *scancode.Translator
	protocol   picoatxt.Protocol

	bitmap keyBitmap

	lastWireLEDs      byte
	pendingWireLEDs   byte
	changeLEDs        bool
	pendingLockLights bool

	waitingForBAT bool

	pauseTick uint8

	duplicateReport bool
	lastReport      []byte

	rebootToBootsel bool
	rebootArmed     bool
}

// NewAssembler builds an Assembler bound to engine and host. engine.Init
// must already have run.
func NewAssembler(engine *line.Engine, host hal.HIDHost) *Assembler {
	return &Assembler{
		engine:     engine,
		host:       host,
		translator: scancode.NewTranslator(engine.Protocol()),
		protocol:   engine.Protocol(),
	}
}

// DequeueAll drains every frame currently ready on engine's ring.
func (a *Assembler) DequeueAll() {
	for {
		pkt, ok := a.engine.GetPacket()
		if !ok {
			return
		}
		a.ProcessPacket(pkt)
	}
}

// ProcessPacket handles one dequeued frame: command-ack orchestration,
// framing-failure recovery, BAT-after-reset confirmation, or an ordinary
// scan-code byte.
func (a *Assembler) ProcessPacket(pkt line.Packet) {
	if pkt.HasLastCommand {
		a.handleCommandAck(pkt)
		return
	}
	if !pkt.DataOK {
		a.handleFrameFailure(pkt)
		return
	}
	if a.waitingForBAT {
		a.waitingForBAT = false
		if pkt.Data == picoatxt.RespBATPass {
			a.handleResetComplete()
		} else {
			a.resend(byte(picoatxt.CmdReset))
		}
		return
	}
	a.handleDataByte(pkt.Data)
}

func (a *Assembler) handleCommandAck(pkt line.Packet) {
	cmd := pkt.LastCommand
	if pkt.DataOK && pkt.Data == picoatxt.RespResend {
		a.resend(cmd)
		return
	}
	switch {
	case cmd == byte(picoatxt.CmdReset):
		if a.protocol == picoatxt.ProtocolAT {
			a.waitingForBAT = true
			return
		}
		if pkt.DataOK && pkt.Data == picoatxt.RespBATPass {
			a.handleResetComplete()
		} else {
			a.resend(cmd)
		}
	case cmd == byte(picoatxt.CmdSetLockLights):
		a.pendingLockLights = true
	case cmd < 0x80:
		if pkt.DataOK && pkt.Data == picoatxt.RespAck {
			a.changeLEDs = false
		}
	}
}

func (a *Assembler) handleFrameFailure(pkt line.Packet) {
	if pkt.HasLastCommand {
		a.resend(pkt.LastCommand)
		return
	}
	if a.protocol == picoatxt.ProtocolAT {
		a.engine.SendCommand(picoatxt.CmdResend)
	} else {
		a.engine.SendCommand(picoatxt.CmdReset)
	}
}

// resend re-issues cmd, distinguishing a named Command (high bit set, per
// spec.md §4.1's fixed taxonomy) from a raw AT data byte such as the
// lock-light bitmask.
func (a *Assembler) resend(cmd byte) {
	diag.RecordResend()
	if cmd < 0x80 {
		a.engine.SendATCommand(cmd)
	} else {
		a.engine.SendCommand(picoatxt.Command(cmd))
	}
}

func (a *Assembler) handleResetComplete() {
	a.bitmap.clear()
	a.pauseTick = 0
	a.duplicateReport = false
	if a.lastWireLEDs != 0 {
		a.changeLEDs = true
	}
	a.lastWireLEDs = 0
	a.translator = scancode.NewTranslator(a.protocol)
	diag.LogInfo(diag.ComponentReport, "keyboard reset complete", "protocol", a.protocol.String())
}

func (a *Assembler) handleDataByte(b byte) {
	ev := a.translator.Feed(b)
	switch ev.Kind {
	case scancode.EventOverrun:
		a.bitmap.clear()
		a.duplicateReport = false
	case scancode.EventKey:
		a.applyKeyEvent(ev.Usage, ev.Make)
	}
}

func (a *Assembler) applyKeyEvent(usage picoatxt.Usage, held bool) {
	if usage == picoatxt.UsagePause {
		if held {
			a.pauseTick = pauseTickInitial
			if a.bitmap.set(picoatxt.UsagePause, true) {
				a.duplicateReport = false
			}
		}
		return
	}

	leds := a.host.LEDs()
	scrollOn := leds&0x04 != 0
	numOn := leds&0x01 != 0

	report, other, remapped := resolveMacro(usage, scrollOn, numOn)
	changed := false
	if remapped && a.bitmap.set(other, false) {
		changed = true
	}
	if a.bitmap.set(report, held) {
		changed = true
	}
	if changed {
		a.duplicateReport = false
	}
}

// RebootPending reports whether the bootloader escape combo has been
// detected and the disconnect-to-bootloader request is in flight, so a
// caller driving a status LED can show a distinct effect for it.
func (a *Assembler) RebootPending() bool {
	return a.rebootToBootsel
}

func (a *Assembler) checkBootloaderEscape() {
	if a.bitmap.get(picoatxt.UsageScrollLock) &&
		a.bitmap.get(picoatxt.UsageKeypadMinus) &&
		a.bitmap.get(picoatxt.UsageRightShift) {
		a.rebootToBootsel = true
		a.bitmap.clear()
		a.duplicateReport = false
		diag.LogInfo(diag.ComponentReport, "bootloader escape combo held")
	}
}

func (a *Assembler) checkLEDChange() {
	wire := convertLEDsToWire(a.host.LEDs())
	if wire != a.lastWireLEDs {
		a.changeLEDs = true
		a.pendingWireLEDs = wire
	}
	if !a.engine.Ready() {
		return
	}
	switch {
	case a.pendingLockLights:
		if a.engine.SendATCommand(a.pendingWireLEDs) == nil {
			a.pendingLockLights = false
			a.lastWireLEDs = a.pendingWireLEDs
		}
	case a.changeLEDs:
		a.engine.SendCommand(picoatxt.CmdSetLockLights)
	}
}

func convertLEDsToWire(usbLEDs byte) byte {
	var wire byte
	if usbLEDs&0x01 != 0 {
		wire |= 0x02 // NumLock
	}
	if usbLEDs&0x02 != 0 {
		wire |= 0x04 // CapsLock
	}
	if usbLEDs&0x04 != 0 {
		wire |= 0x01 // ScrollLock
	}
	return wire
}

// Tick runs the once-per-millisecond work: the Pause one-shot, the
// bootloader escape check, lock-light orchestration and HID report
// emission, in the order spec.md §4.3 lays them out.
func (a *Assembler) Tick() {
	if a.rebootArmed {
		a.host.RequestBootReset()
		return
	}

	if a.pauseTick > 0 {
		a.pauseTick--
		if a.pauseTick == 0 {
			if a.bitmap.set(picoatxt.UsagePause, false) {
				a.duplicateReport = false
			}
		}
	}

	if !a.rebootToBootsel {
		a.checkBootloaderEscape()
	}
	a.checkLEDChange()
	a.emitReport()

	if a.rebootToBootsel {
		a.rebootArmed = true
	}
}

func (a *Assembler) emitReport() {
	var payload []byte
	if a.host.BootProtocol() {
		payload = a.bootReportBytes()
	} else {
		payload = a.bitmap[:]
	}

	if a.duplicateReport && a.host.IdleRate() == 0 {
		return
	}
	if !a.host.SendReport(0, payload) {
		return
	}
	diag.RecordReport()
	a.duplicateReport = true
}

func (a *Assembler) bootReportBytes() []byte {
	var out [8]byte
	out[0] = a.bitmap[21]

	usages := make([]byte, 0, 6)
	for byteIdx := 0; byteIdx < 21; byteIdx++ {
		b := a.bitmap[byteIdx]
		if b == 0 {
			continue
		}
		for bit := 0; bit < 8; bit++ {
			if b&(1<<uint(bit)) != 0 {
				usages = append(usages, byte(picoatxt.MinKey)+byte(byteIdx*8+bit))
			}
		}
	}

	if len(usages) > 6 {
		for i := 2; i < 8; i++ {
			out[i] = byte(picoatxt.UsageOverrun)
		}
	} else {
		for i, u := range usages {
			out[2+i] = u
		}
	}
	return out[:]
}
