//go:build tinygo

// Package xiao drives neopixel strips from TinyGo microcontrollers such as
// the Seeed XIAO RP2040.
package xiao

import (
	"device"
	"machine"
	"runtime/interrupt"
	"time"

	"libdb.so/neopixel/waveform"
	"periph.io/x/conn/v3/physic"
)

// Line is a pin driving the data input of a strip.
type Line machine.Pin

var _ waveform.Line = Line(0)

// Output implements waveform.Line.
func (l Line) Output() error {
	pin := machine.Pin(l)
	pin.Configure(machine.PinConfig{Mode: machine.PinOutput})
	pin.Low()
	return nil
}

// High implements waveform.Line.
func (l Line) High() { machine.Pin(l).High() }

// Low implements waveform.Line.
func (l Line) Low() { machine.Pin(l).Low() }

// Clock counts CPU cycles.
type Clock struct {
	start      time.Time
	loopCycles uint32
}

var _ waveform.Clock = (*Clock)(nil)

// NewClock creates a clock whose Spin loop takes loopCycles CPU cycles per
// iteration. Measure it once per chip and compiler version.
func NewClock(loopCycles uint32) *Clock {
	if loopCycles == 0 {
		loopCycles = 1
	}
	return &Clock{start: time.Now(), loopCycles: loopCycles}
}

// Frequency implements waveform.Clock.
func (c *Clock) Frequency() physic.Frequency {
	return physic.Frequency(machine.CPUFrequency()) * physic.Hertz
}

// Spin implements waveform.Clock.
func (c *Clock) Spin(ticks uint32) {
	for n := ticks / c.loopCycles; n > 0; n-- {
		device.Asm("nop")
	}
}

// Now implements waveform.Clock.
func (c *Clock) Now() time.Duration {
	return time.Since(c.start)
}

// Exclusive disables interrupts for the duration of a transmission.
var Exclusive waveform.Exclusive = waveform.ExclusiveFunc(critical)

func critical() (restore func()) {
	state := interrupt.Disable()
	return func() { interrupt.Restore(state) }
}
