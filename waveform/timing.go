package waveform

import (
	"errors"
	"fmt"
	"time"

	"periph.io/x/conn/v3/physic"
)

// Tolerance is how far any pulse phase may stray from its nominal duration.
const Tolerance = 150 * time.Nanosecond

// Latch is the minimum continuous low time the LEDs need before they latch
// the data they received and accept a new frame.
const Latch = 50 * time.Microsecond

var (
	// ErrUnsupportedRate is returned for a Rate other than KHz800 or KHz400.
	ErrUnsupportedRate = errors.New("waveform: unsupported bit rate")
	// ErrUnsupportedClock is returned when the clock cannot realize the
	// pulse widths of a rate within Tolerance.
	ErrUnsupportedClock = errors.New("waveform: unsupported clock frequency")
)

// Rate is the bit rate regime of a strip.
type Rate uint8

const (
	// KHz800 is the high-rate regime used by WS2812 and later parts.
	KHz800 Rate = iota
	// KHz400 is the low-rate regime used by older WS2811 drivers. It keeps
	// the high times of KHz800 and stretches the bit to 2µs.
	KHz400
)

// String returns the name of the rate.
func (r Rate) String() string {
	switch r {
	case KHz800:
		return "800KHz"
	case KHz400:
		return "400KHz"
	default:
		return fmt.Sprintf("Rate(%d)", uint8(r))
	}
}

// Timing holds the nominal pulse widths of a rate. Every bit is a high
// phase followed by a low phase, and both bit values share the same period.
type Timing struct {
	OneHigh  time.Duration
	OneLow   time.Duration
	ZeroHigh time.Duration
	ZeroLow  time.Duration
	Latch    time.Duration
}

// Period returns the duration of a single bit.
func (t Timing) Period() time.Duration {
	return t.OneHigh + t.OneLow
}

var timings = [...]Timing{
	KHz800: {
		OneHigh:  800 * time.Nanosecond,
		OneLow:   450 * time.Nanosecond,
		ZeroHigh: 400 * time.Nanosecond,
		ZeroLow:  850 * time.Nanosecond,
		Latch:    Latch,
	},
	KHz400: {
		OneHigh:  800 * time.Nanosecond,
		OneLow:   1200 * time.Nanosecond,
		ZeroHigh: 400 * time.Nanosecond,
		ZeroLow:  1600 * time.Nanosecond,
		Latch:    Latch,
	},
}

// Timing returns the nominal pulse widths of r.
func (r Rate) Timing() (Timing, error) {
	if int(r) >= len(timings) {
		return Timing{}, ErrUnsupportedRate
	}
	return timings[r], nil
}

// Schedule is a Timing quantized to the ticks of a particular clock. It is
// computed once when an Emitter is built so the transmit loop only moves
// precomputed counts around.
type Schedule struct {
	OneHigh  uint32
	OneLow   uint32
	ZeroHigh uint32
	ZeroLow  uint32
	// Latch stays a duration: it is waited for between frames, outside the
	// timing-critical region.
	Latch time.Duration

	hz int64
}

// NewSchedule quantizes the timing of rate r to a clock running at freq.
// overhead is the number of ticks an edge costs on the target (the store to
// the port register plus loop bookkeeping); it is taken out of the phase
// that follows the edge.
func NewSchedule(r Rate, freq physic.Frequency, overhead uint32) (Schedule, error) {
	t, err := r.Timing()
	if err != nil {
		return Schedule{}, err
	}

	hz := int64(freq / physic.Hertz)
	if hz <= 0 {
		return Schedule{}, fmt.Errorf("%w: %s", ErrUnsupportedClock, freq)
	}

	// The period is quantized once and each low phase gets the remainder of
	// it, so both bit values always take the same number of ticks.
	period := quantize(t.Period(), hz)
	oneHigh := quantize(t.OneHigh, hz)
	zeroHigh := quantize(t.ZeroHigh, hz)

	s := Schedule{Latch: t.Latch, hz: hz}
	phases := []struct {
		dst   *uint32
		d     time.Duration
		ticks int64
	}{
		{&s.OneHigh, t.OneHigh, oneHigh},
		{&s.OneLow, t.OneLow, period - oneHigh},
		{&s.ZeroHigh, t.ZeroHigh, zeroHigh},
		{&s.ZeroLow, t.ZeroLow, period - zeroHigh},
	}
	for _, p := range phases {
		realized := time.Duration(p.ticks * int64(time.Second) / hz)
		if diff := realized - p.d; diff > Tolerance || diff < -Tolerance {
			return Schedule{}, fmt.Errorf(
				"%w: %s cannot realize %s within %s (got %s)",
				ErrUnsupportedClock, freq, p.d, Tolerance, realized)
		}
		if p.ticks <= int64(overhead) || p.ticks-int64(overhead) > 1<<32-1 {
			return Schedule{}, fmt.Errorf(
				"%w: %s leaves no room for %s after %d ticks of edge overhead",
				ErrUnsupportedClock, freq, p.d, overhead)
		}
		*p.dst = uint32(p.ticks - int64(overhead))
	}

	if s.OneHigh == s.ZeroHigh {
		return Schedule{}, fmt.Errorf(
			"%w: %s cannot tell a 1 bit from a 0 bit", ErrUnsupportedClock, freq)
	}

	return s, nil
}

// quantize rounds d to the nearest whole number of ticks of a clock at hz.
func quantize(d time.Duration, hz int64) int64 {
	return (int64(d)*hz + int64(time.Second)/2) / int64(time.Second)
}

// Frequency returns the clock frequency the schedule was computed for.
func (s Schedule) Frequency() physic.Frequency {
	return physic.Frequency(s.hz) * physic.Hertz
}

// Ticks converts d to clock ticks, rounding up.
func (s Schedule) Ticks(d time.Duration) uint32 {
	if d <= 0 || s.hz <= 0 {
		return 0
	}
	ticks := (int64(d)*s.hz + int64(time.Second) - 1) / int64(time.Second)
	if ticks > 1<<32-1 {
		return 1<<32 - 1
	}
	return uint32(ticks)
}
