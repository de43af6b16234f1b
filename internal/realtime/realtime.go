// Package realtime gets the calling goroutine as close to uninterrupted
// execution as a user space process can: pinned to its thread, without
// garbage collection, and at the highest scheduling priority it may take.
//
// It cannot mask interrupts. Pulses may still be stretched by the kernel,
// which corrupts colors until the next frame.
package realtime

import "libdb.so/neopixel/waveform"

// Exclusive enters the realtime region for every transmission.
var Exclusive waveform.Exclusive = waveform.ExclusiveFunc(Enter)
