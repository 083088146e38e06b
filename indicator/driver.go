// Package indicator drives the status LED. cmd/picoatxt keeps it off
// during BAT detection, solid once a protocol is locked in, blinking at
// 1Hz after a failed detection or a write that needs re-detection, and
// breathing once the bootloader-escape combo has been detected
// (SPEC_FULL.md §9.1).
package indicator

import "time"

// Channel is the PWM duty-cycle boundary the teacher's tx.go exercises
// via pwm.Group.Set/Top; kept as its own interface so State transitions
// can be tested without a real PWM peripheral.
type Channel interface {
	Set(duty uint32)
	Top() uint32
}

// State selects the LED's current effect.
type State uint8

const (
	Off State = iota
	Solid
	Blink1Hz
	Breathe
)

const (
	blinkPeriod   = time.Second
	breathePeriod = 2 * time.Second
)

// Driver holds the PWM channel and the running phase accumulator for
// whichever effect is active.
type Driver struct {
	channel Channel
	top     uint32
	state   State
	elapsed uint32 // microseconds into the current state's phase
}

// NewDriver builds a Driver over an already-configured PWM channel.
func NewDriver(channel Channel) *Driver {
	return &Driver{channel: channel, top: channel.Top()}
}

// SetState switches effects, resetting the phase so every transition
// starts from the beginning of its waveform.
func (d *Driver) SetState(s State) {
	if d.state == s {
		return
	}
	d.state = s
	d.elapsed = 0
}

// State returns the currently selected effect.
func (d *Driver) State() State { return d.state }

// Tick advances the phase accumulator by dt and updates the PWM duty
// cycle. Call this from the same periodic tick that drives
// report.Assembler.Tick.
func (d *Driver) Tick(dt time.Duration) {
	d.elapsed += uint32(dt / time.Microsecond)

	switch d.state {
	case Off:
		d.channel.Set(0)
	case Solid:
		d.channel.Set(d.top)
	case Blink1Hz:
		d.channel.Set(d.squareWave(blinkPeriod))
	case Breathe:
		d.channel.Set(d.triangleWave(breathePeriod))
	}
}

func (d *Driver) squareWave(period time.Duration) uint32 {
	periodMicros := uint32(period / time.Microsecond)
	if d.elapsed%periodMicros < periodMicros/2 {
		return d.top
	}
	return 0
}

// triangleWave ramps duty 0 -> top -> 0 linearly over period, using only
// integer arithmetic (no float, no math.Sin) to match the teacher's
// integer-only PWM driving in tx.go.
func (d *Driver) triangleWave(period time.Duration) uint32 {
	periodMicros := uint32(period / time.Microsecond)
	half := periodMicros / 2
	phase := d.elapsed % periodMicros
	if phase < half {
		return phase * d.top / half
	}
	return (periodMicros - phase) * d.top / half
}
