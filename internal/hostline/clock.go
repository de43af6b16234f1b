// Package hostline provides waveform lines and clocks for Linux hosts.
package hostline

import (
	"time"

	"libdb.so/neopixel/waveform"
	"periph.io/x/conn/v3/physic"
)

// Clock is a waveform.Clock counting nanoseconds on the monotonic clock.
// Spin busy-waits, so the goroutine calling it should hold an exclusive
// region.
type Clock struct {
	start time.Time
}

var _ waveform.Clock = (*Clock)(nil)

// NewClock creates a clock starting at zero.
func NewClock() *Clock {
	return &Clock{start: time.Now()}
}

// Frequency implements waveform.Clock. One tick is one nanosecond.
func (c *Clock) Frequency() physic.Frequency {
	return physic.GigaHertz
}

// Spin implements waveform.Clock.
func (c *Clock) Spin(ticks uint32) {
	deadline := time.Since(c.start) + time.Duration(ticks)
	for time.Since(c.start) < deadline {
	}
}

// Now implements waveform.Clock.
func (c *Clock) Now() time.Duration {
	return time.Since(c.start)
}

// Discard is a line wired to nothing.
type Discard struct{}

var _ waveform.Line = Discard{}

func (Discard) Output() error { return nil }
func (Discard) High()         {}
func (Discard) Low()          {}
