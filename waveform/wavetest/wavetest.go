// Package wavetest provides a simulated line and clock for testing code
// built on package waveform.
package wavetest

import (
	"fmt"
	"time"

	"libdb.so/neopixel/waveform"
	"periph.io/x/conn/v3/gpio"
	"periph.io/x/conn/v3/physic"
)

// Edge is a level change of the simulated line.
type Edge struct {
	At    time.Duration
	Level gpio.Level
}

// Pulse is a high phase followed by a low phase.
type Pulse struct {
	Start time.Duration
	High  time.Duration
	Low   time.Duration
}

// Recorder is a waveform.Line and waveform.Clock running in virtual time.
// Spinning advances the clock instantly, and every level change of the line
// is recorded with its timestamp.
type Recorder struct {
	hz     int64
	ps     int64
	level  gpio.Level
	output bool
	edges  []Edge
}

var (
	_ waveform.Line  = (*Recorder)(nil)
	_ waveform.Clock = (*Recorder)(nil)
)

// NewRecorder creates a recorder whose clock ticks at freq.
func NewRecorder(freq physic.Frequency) *Recorder {
	hz := int64(freq / physic.Hertz)
	if hz <= 0 {
		panic("wavetest: frequency must be at least 1Hz")
	}
	return &Recorder{hz: hz}
}

// Output implements waveform.Line.
func (r *Recorder) Output() error {
	r.output = true
	r.set(gpio.Low)
	return nil
}

// High implements waveform.Line.
func (r *Recorder) High() { r.set(gpio.High) }

// Low implements waveform.Line.
func (r *Recorder) Low() { r.set(gpio.Low) }

func (r *Recorder) set(l gpio.Level) {
	if l == r.level {
		return
	}
	r.level = l
	r.edges = append(r.edges, Edge{At: r.Now(), Level: l})
}

// Frequency implements waveform.Clock.
func (r *Recorder) Frequency() physic.Frequency {
	return physic.Frequency(r.hz) * physic.Hertz
}

// Spin implements waveform.Clock by advancing virtual time.
func (r *Recorder) Spin(ticks uint32) {
	r.ps += int64(ticks) * 1e12 / r.hz
}

// Now implements waveform.Clock.
func (r *Recorder) Now() time.Duration {
	return time.Duration(r.ps / 1000)
}

// Advance moves virtual time forward by d, as if the caller did other work.
func (r *Recorder) Advance(d time.Duration) {
	r.ps += int64(d) * 1000
}

// IsOutput reports whether Output was called.
func (r *Recorder) IsOutput() bool { return r.output }

// Level returns the current line level.
func (r *Recorder) Level() gpio.Level { return r.level }

// Edges returns every recorded level change.
func (r *Recorder) Edges() []Edge { return r.edges }

// Reset forgets the recorded edges. The clock keeps running.
func (r *Recorder) Reset() { r.edges = nil }

// Pulses returns the recorded edges as pulses. The low phase of the last
// pulse lasts until now.
func (r *Recorder) Pulses() []Pulse {
	var pulses []Pulse
	for i := 0; i < len(r.edges); i++ {
		if r.edges[i].Level != gpio.High {
			continue
		}
		p := Pulse{Start: r.edges[i].At}
		fall := r.Now()
		if i+1 < len(r.edges) {
			fall = r.edges[i+1].At
		}
		p.High = fall - p.Start
		next := r.Now()
		if i+2 < len(r.edges) {
			next = r.edges[i+2].At
		}
		p.Low = next - fall
		pulses = append(pulses, p)
	}
	return pulses
}

// Frame is a run of pulses not interrupted by a latch gap.
type Frame struct {
	Pulses []Pulse
}

// Start returns the time of the first rising edge of the frame.
func (f Frame) Start() time.Duration {
	if len(f.Pulses) == 0 {
		return 0
	}
	return f.Pulses[0].Start
}

// End returns the time of the last falling edge of the frame.
func (f Frame) End() time.Duration {
	if len(f.Pulses) == 0 {
		return 0
	}
	last := f.Pulses[len(f.Pulses)-1]
	return last.Start + last.High
}

// Frames splits the recorded pulses at every low phase of at least gap.
func (r *Recorder) Frames(gap time.Duration) []Frame {
	var frames []Frame
	var cur Frame
	for _, p := range r.Pulses() {
		cur.Pulses = append(cur.Pulses, p)
		if p.Low >= gap {
			frames = append(frames, cur)
			cur = Frame{}
		}
	}
	if len(cur.Pulses) > 0 {
		frames = append(frames, cur)
	}
	return frames
}

// Decode turns the pulses of a frame back into bytes, checking every phase
// against t within waveform.Tolerance. The low phase of the final bit runs
// into the latch gap and is not checked.
func (f Frame) Decode(t waveform.Timing) ([]byte, error) {
	if len(f.Pulses)%8 != 0 {
		return nil, fmt.Errorf("frame has %d bits, not a whole number of bytes", len(f.Pulses))
	}

	threshold := (t.OneHigh + t.ZeroHigh) / 2
	out := make([]byte, len(f.Pulses)/8)

	for i, p := range f.Pulses {
		wantHigh, wantLow := t.ZeroHigh, t.ZeroLow
		one := p.High > threshold
		if one {
			wantHigh, wantLow = t.OneHigh, t.OneLow
			out[i/8] |= 0x80 >> uint(i%8)
		}

		if !within(p.High, wantHigh) {
			return nil, fmt.Errorf("bit %d: high for %s, want %s", i, p.High, wantHigh)
		}
		if i < len(f.Pulses)-1 && !within(p.Low, wantLow) {
			return nil, fmt.Errorf("bit %d: low for %s, want %s", i, p.Low, wantLow)
		}
	}

	return out, nil
}

func within(got, want time.Duration) bool {
	d := got - want
	return d <= waveform.Tolerance && d >= -waveform.Tolerance
}
