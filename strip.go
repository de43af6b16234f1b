// Package neopixel drives strips of WS281x LEDs by bit-banging a GPIO line.
//
// A Strip pairs a pixel.Buffer with a waveform.Emitter. Colors are set on
// the buffer, then Show sends the whole buffer down the line. Device builds
// on Strip to apply ledserial packets, and package daemon renders configured
// colors and animations onto a Strip or a remote Device.
package neopixel

import (
	"github.com/pkg/errors"
	"libdb.so/neopixel/pixel"
	"libdb.so/neopixel/waveform"
)

// Opts configures a Strip.
type Opts struct {
	// NumPixels is the number of LEDs on the strip.
	NumPixels int
	// Profile is the bit rate and channel order of the strip.
	Profile Profile
	// Clock times the pulses. It is required.
	Clock waveform.Clock
	// Exclusive guards transmissions. Nil runs them unguarded, which is
	// only correct for simulated lines.
	Exclusive waveform.Exclusive
	// EdgeOverhead is the cost of a line transition in clock ticks.
	EdgeOverhead uint32
}

// Strip is a chain of LEDs on one line.
//
// The embedded buffer holds the colors. A Strip is not safe for concurrent
// use, and the buffer must not be changed while Show runs.
type Strip struct {
	*pixel.Buffer
	emitter *waveform.Emitter
	profile Profile
}

// NewStrip creates a strip on line. It only fails when the profile is
// unknown or the clock cannot produce its timing. If the pixel buffer cannot
// be allocated, the strip is created with zero pixels instead.
func NewStrip(line waveform.Line, opts *Opts) (*Strip, error) {
	if opts == nil {
		opts = &Opts{}
	}
	if !opts.Profile.Valid() {
		return nil, errors.Wrapf(ErrUnknownProfile, "%d", uint8(opts.Profile))
	}
	if opts.Clock == nil {
		return nil, errors.New("no clock given")
	}

	e, err := waveform.New(line, opts.Clock, &waveform.Opts{
		Rate:         opts.Profile.Rate(),
		Exclusive:    opts.Exclusive,
		EdgeOverhead: opts.EdgeOverhead,
	})
	if err != nil {
		return nil, errors.Wrapf(err, "cannot drive %s strip", opts.Profile)
	}

	return &Strip{
		Buffer:  pixel.New(opts.NumPixels, opts.Profile.Order()),
		emitter: e,
		profile: opts.Profile,
	}, nil
}

// Begin configures the line as an output and drives it low. Call it once
// before the first Show.
func (s *Strip) Begin() error {
	return s.emitter.Begin()
}

// Show sends the buffer to the LEDs. It waits for the latch gap of the
// previous Show first, and does nothing on a strip with zero pixels. The
// buffer is only read.
func (s *Strip) Show() {
	if s.Len() == 0 {
		return
	}
	s.emitter.Show(s.Bytes())
}

// NumPixels returns the number of LEDs, 0 if the buffer could not be
// allocated.
func (s *Strip) NumPixels() int {
	return s.Len()
}

// Profile returns the profile the strip was created with.
func (s *Strip) Profile() Profile {
	return s.profile
}

// Emitter returns the emitter driving the line.
func (s *Strip) Emitter() *waveform.Emitter {
	return s.emitter
}
