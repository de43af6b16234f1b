// Package waveform generates the single-wire pulse train of WS281x LEDs by
// toggling a GPIO line.
//
// Each data bit is one pulse: the line goes high for the bit's high time,
// then low for the rest of a constant bit period. Bytes go out most
// significant bit first. A continuous low of at least Latch makes the LEDs
// latch the frame.
//
// The package is written against three platform capabilities: a Line that
// can be driven high and low, a Clock that spins for a number of ticks, and
// an Exclusive region that keeps everything else off the core while bits are
// being sent. Pulse widths are converted to ticks once, from the clock
// frequency, when the Emitter is built.
//
// # Failure model
//
// The protocol has no framing per LED and no acknowledgment. Any delay
// longer than Tolerance inside a transmission corrupts the bit being sent
// and shifts every following bit onto the wrong LED. The emitter cannot
// detect this. A corrupted frame is replaced by the next good one; in the
// worst case the chain has to be power-cycled to resynchronize. Running the
// transmission inside an Exclusive region that truly excludes interrupts is
// therefore a precondition of correct output, not something this package
// can check.
package waveform
