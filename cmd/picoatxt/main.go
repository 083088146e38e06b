// Command picoatxt is the firmware entry point: it wires the real
// RP2040 hal.Line and hal.HIDHost into a line.Engine and report.Assembler,
// restores the last detected protocol as a boot-time hint from nvconfig,
// and drives the 1ms tick loop that keeps HID reports flowing.
package main

import (
	"log/slog"
	"time"

	"machine"

	"github.com/drew-gpf/picoatxt"
	"github.com/drew-gpf/picoatxt/diag"
	"github.com/drew-gpf/picoatxt/hal"
	"github.com/drew-gpf/picoatxt/indicator"
	"github.com/drew-gpf/picoatxt/line"
	"github.com/drew-gpf/picoatxt/nvconfig"
	"github.com/drew-gpf/picoatxt/report"
)

const tick = time.Millisecond

func main() {
	machine.UART0.Configure(machine.UARTConfig{BaudRate: 115200})
	diag.SetOutput(diag.NewUARTWriter(machine.UART0), slog.LevelInfo)

	led, err := indicator.NewRP2Driver(machine.LED)
	if err != nil {
		diag.LogError(diag.ComponentMain, "status LED init failed", "error", err)
		led = nil
	}

	store, err := nvconfig.Open(hal.NewFlashDevice())
	if err != nil {
		diag.LogError(diag.ComponentMain, "nvconfig open failed", "error", err)
		store = nil
	}
	if store != nil {
		if hint, ok := store.Load(); ok {
			diag.LogInfo(diag.ComponentMain, "loaded protocol hint", "protocol", picoatxt.Protocol(hint.Protocol).String(), "legacy", hint.Legacy)
		}
	}

	engine := line.NewEngine(hal.NewLine())
	host := hal.NewHIDHost()

	setLED(led, indicator.Off)
	proto, err := engine.Init()
	for err != nil {
		diag.LogError(diag.ComponentMain, "BAT detection failed, retrying", "error", err)
		setLED(led, indicator.Blink1Hz)
		time.Sleep(time.Second)
		proto, err = engine.Init()
	}
	diag.LogInfo(diag.ComponentMain, "protocol detected", "protocol", proto.String(), "legacy", engine.Legacy())
	setLED(led, indicator.Solid)

	if store != nil {
		if err := store.Save(nvconfig.Settings{Protocol: uint8(proto), Legacy: engine.Legacy()}); err != nil {
			diag.LogError(diag.ComponentMain, "nvconfig save failed", "error", err)
		}
	}

	asm := report.NewAssembler(engine, host)

	for {
		asm.DequeueAll()

		if engine.NeedsReinit() {
			diag.LogError(diag.ComponentMain, "reinit requested after failed write ACK")
			setLED(led, indicator.Blink1Hz)
			if proto, err = engine.Init(); err == nil {
				diag.LogInfo(diag.ComponentMain, "reinit complete", "protocol", proto.String())
				setLED(led, indicator.Solid)
			}
		}

		asm.Tick()
		if led != nil {
			if asm.RebootPending() {
				led.SetState(indicator.Breathe)
			}
			led.Tick(tick)
		}
		time.Sleep(tick)
	}
}

func setLED(led *indicator.Driver, s indicator.State) {
	if led != nil {
		led.SetState(s)
	}
}
