package realtime

import (
	"runtime"
	"runtime/debug"

	"golang.org/x/sys/unix"
)

const highestNice = -20

// Enter locks the goroutine to its thread, pauses the garbage collector and
// raises the thread's priority when permitted. The returned function undoes
// all of it and must be called on the same goroutine.
func Enter() (restore func()) {
	runtime.LockOSThread()
	gcPercent := debug.SetGCPercent(-1)

	tid := unix.Gettid()
	raised := false
	// The raw syscall returns 20-nice.
	prio, err := unix.Getpriority(unix.PRIO_PROCESS, tid)
	if err == nil {
		raised = unix.Setpriority(unix.PRIO_PROCESS, tid, highestNice) == nil
	}

	return func() {
		if raised {
			unix.Setpriority(unix.PRIO_PROCESS, tid, 20-prio)
		}
		debug.SetGCPercent(gcPercent)
		runtime.UnlockOSThread()
	}
}
