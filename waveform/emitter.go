package waveform

import (
	"time"

	"periph.io/x/conn/v3/physic"
)

// Line is the output pin the strip's data input is wired to.
type Line interface {
	// Output configures the line as a driven output at the idle (low) level.
	Output() error
	// High drives the line high.
	High()
	// Low drives the line low.
	Low()
}

// Clock is the timing backend of a platform.
type Clock interface {
	// Frequency returns the rate at which Spin counts ticks. On a
	// microcontroller this is usually the CPU frequency.
	Frequency() physic.Frequency
	// Spin busy-waits for the given number of ticks. It must not yield.
	Spin(ticks uint32)
	// Now returns a monotonic timestamp.
	Now() time.Duration
}

// Exclusive acquires an execution context in which nothing else runs on the
// core driving the line: interrupts masked, preemption disabled, or whatever
// the platform offers.
type Exclusive interface {
	// Enter acquires the context and returns a function restoring the prior
	// state. The returned function is always called exactly once.
	Enter() (restore func())
}

// NoExclusive is an Exclusive that does nothing. It is only suitable for
// simulated lines.
var NoExclusive Exclusive = noExclusive{}

type noExclusive struct{}

func (noExclusive) Enter() func() { return func() {} }

// ExclusiveFunc adapts a function to the Exclusive interface.
type ExclusiveFunc func() (restore func())

// Enter implements Exclusive.
func (f ExclusiveFunc) Enter() func() { return f() }

// Opts configures an Emitter.
type Opts struct {
	// Rate is the bit rate regime of the strip.
	Rate Rate
	// Exclusive guards the transmission. Nil means NoExclusive.
	Exclusive Exclusive
	// EdgeOverhead is the number of clock ticks a line transition costs.
	EdgeOverhead uint32
}

// Emitter turns bytes into the pulse train of a WS281x strip.
//
// An Emitter is owned by the single goroutine driving its line. Show must
// not run concurrently with itself or with writers of the bytes it reads.
type Emitter struct {
	line  Line
	clock Clock
	excl  Exclusive
	rate  Rate
	sched Schedule

	lastEnd time.Duration
	sent    bool
}

// New creates an Emitter. It fails if the clock cannot produce the pulse
// widths of opts.Rate.
func New(line Line, clock Clock, opts *Opts) (*Emitter, error) {
	if opts == nil {
		opts = &Opts{}
	}

	sched, err := NewSchedule(opts.Rate, clock.Frequency(), opts.EdgeOverhead)
	if err != nil {
		return nil, err
	}

	excl := opts.Exclusive
	if excl == nil {
		excl = NoExclusive
	}

	return &Emitter{
		line:  line,
		clock: clock,
		excl:  excl,
		rate:  opts.Rate,
		sched: sched,
	}, nil
}

// Begin configures the line as an output and drives it low. It must be
// called once before the first Show.
func (e *Emitter) Begin() error {
	return e.line.Output()
}

// Rate returns the bit rate the emitter was built for.
func (e *Emitter) Rate() Rate {
	return e.rate
}

// Schedule returns the tick counts used for each pulse phase.
func (e *Emitter) Schedule() Schedule {
	return e.sched
}

// LastEnd returns the time the previous transmission ended, as reported by
// the clock. ok is false if nothing was sent yet.
func (e *Emitter) LastEnd() (t time.Duration, ok bool) {
	return e.lastEnd, e.sent
}

// Show transmits data, most significant bit of each byte first, and returns
// once the last bit is out. It blocks beforehand until the latch gap since
// the previous transmission has elapsed, so callers may prepare the next
// frame right after Show returns. An empty data slice sends nothing.
//
// A transmission cannot be canceled and reports no errors: a disturbed pulse
// train simply shows wrong colors until the next frame.
func (e *Emitter) Show(data []byte) {
	if len(data) == 0 {
		return
	}

	e.waitLatch()
	e.transmit(data)

	e.lastEnd = e.clock.Now()
	e.sent = true
}

func (e *Emitter) waitLatch() {
	if !e.sent {
		return
	}
	if elapsed := e.clock.Now() - e.lastEnd; elapsed < e.sched.Latch {
		e.clock.Spin(e.sched.Ticks(e.sched.Latch - elapsed))
	}
}

func (e *Emitter) transmit(data []byte) {
	defer e.excl.Enter()()

	line, clock := e.line, e.clock
	oneHigh, oneLow := e.sched.OneHigh, e.sched.OneLow
	zeroHigh, zeroLow := e.sched.ZeroHigh, e.sched.ZeroLow

	for _, b := range data {
		for mask := byte(0x80); mask != 0; mask >>= 1 {
			high, low := zeroHigh, zeroLow
			if b&mask != 0 {
				high, low = oneHigh, oneLow
			}
			line.High()
			clock.Spin(high)
			line.Low()
			clock.Spin(low)
		}
	}
}
