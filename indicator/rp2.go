//go:build rp2040 || rp2350

package indicator

import (
	"machine"

	"github.com/sparques/pwm"
)

// statusLEDFreq is well below the PWM's audible/flicker range; the irtrx
// teacher instead picks Freq38Khz for an IR carrier, so this is the one
// constant that genuinely changes between the two domains.
const statusLEDFreq = 1000

type pwmChannel struct {
	group pwm.Group
	ch    uint8
}

func (p pwmChannel) Set(duty uint32) { p.group.Set(p.ch, duty) }
func (p pwmChannel) Top() uint32     { return p.group.Top() }

// NewRP2Driver configures pin as a PWM output and returns a Driver bound
// to it, grounded on sparques-irtrx's tx.go NewTxDevice (pin.Configure ->
// pwm.Get -> pgroup.Configure -> pgroup.Channel).
func NewRP2Driver(pin machine.Pin) (*Driver, error) {
	pin.Configure(machine.PinConfig{Mode: machine.PinPWM})

	pgroup := pwm.Get(pin)
	if err := pgroup.Configure(machine.PWMConfig{Period: uint64(1e9) / uint64(statusLEDFreq)}); err != nil {
		return nil, err
	}
	ch, err := pgroup.Channel(pin)
	if err != nil {
		return nil, err
	}
	pgroup.Set(ch, 0)

	return NewDriver(pwmChannel{group: pgroup, ch: ch}), nil
}
