//go:build !linux

package realtime

import (
	"runtime"
	"runtime/debug"
)

// Enter locks the goroutine to its thread and pauses the garbage collector.
// The returned function undoes both and must be called on the same
// goroutine.
func Enter() (restore func()) {
	runtime.LockOSThread()
	gcPercent := debug.SetGCPercent(-1)

	return func() {
		debug.SetGCPercent(gcPercent)
		runtime.UnlockOSThread()
	}
}
