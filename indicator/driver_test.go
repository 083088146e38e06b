package indicator

import (
	"testing"
	"time"
)

type fakeChannel struct {
	top    uint32
	duty   uint32
	setLog []uint32
}

func (f *fakeChannel) Set(duty uint32) {
	f.duty = duty
	f.setLog = append(f.setLog, duty)
}
func (f *fakeChannel) Top() uint32 { return f.top }

func TestOffIsAlwaysZero(t *testing.T) {
	ch := &fakeChannel{top: 1000}
	d := NewDriver(ch)
	d.Tick(100 * time.Millisecond)
	if ch.duty != 0 {
		t.Fatalf("Off state should hold duty at 0, got %d", ch.duty)
	}
}

func TestSolidHoldsTop(t *testing.T) {
	ch := &fakeChannel{top: 1000}
	d := NewDriver(ch)
	d.SetState(Solid)
	d.Tick(time.Millisecond)
	if ch.duty != 1000 {
		t.Fatalf("Solid should drive duty to top, got %d", ch.duty)
	}
}

func TestBlinkTogglesAtHalfPeriod(t *testing.T) {
	ch := &fakeChannel{top: 1000}
	d := NewDriver(ch)
	d.SetState(Blink1Hz)

	d.Tick(100 * time.Millisecond)
	if ch.duty != 1000 {
		t.Fatalf("first half of the blink period should be on, got duty %d", ch.duty)
	}

	d.Tick(400 * time.Millisecond) // elapsed now 500ms, right at the boundary
	d.Tick(100 * time.Millisecond) // elapsed now 600ms, into the off half
	if ch.duty != 0 {
		t.Fatalf("second half of the blink period should be off, got duty %d", ch.duty)
	}
}

func TestBreatheRampsUpThenDown(t *testing.T) {
	ch := &fakeChannel{top: 1000}
	d := NewDriver(ch)
	d.SetState(Breathe)

	d.Tick(500 * time.Millisecond) // quarter of the way into a 2s period
	quarter := ch.duty
	d.Tick(500 * time.Millisecond) // halfway: peak
	peak := ch.duty
	d.Tick(500 * time.Millisecond) // three-quarters: ramping back down
	threeQuarter := ch.duty

	if !(quarter > 0 && quarter < peak) {
		t.Fatalf("expected a rising ramp before the peak, got quarter=%d peak=%d", quarter, peak)
	}
	if peak != 1000 {
		t.Fatalf("peak duty should reach top, got %d", peak)
	}
	if !(threeQuarter < peak) {
		t.Fatalf("expected duty to fall again after the peak, got %d", threeQuarter)
	}
}

func TestSetStateResetsPhase(t *testing.T) {
	ch := &fakeChannel{top: 1000}
	d := NewDriver(ch)
	d.SetState(Breathe)
	d.Tick(time.Second) // at the peak

	d.SetState(Blink1Hz) // switching state must restart the waveform
	d.Tick(10 * time.Millisecond)
	if ch.duty != 1000 {
		t.Fatalf("a fresh Blink1Hz phase should start in the on half, got duty %d", ch.duty)
	}
}
