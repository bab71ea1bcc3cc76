// Package priority sets the host I/O scheduling priority class for the
// scrubber's controller and worker threads. Go has no portable wrapper
// for per-thread ioprio, so this issues the raw ioprio_set(2) syscall
// directly and treats failure as non-fatal, mirroring the teacher's
// "best-effort, log on failure" treatment of CPU affinity.
package priority

import (
	"golang.org/x/sys/unix"

	"github.com/gamvros/goscrub/internal/logging"
)

// Class is the scheduling priority class a worker or controller thread
// runs at for the duration of a round.
type Class string

const (
	// Realtime leaves the thread's I/O priority untouched.
	Realtime Class = "realtime"
	// IdleCheck sets IOPRIO_CLASS_IDLE, so scrubbing yields to all
	// foreground I/O.
	IdleCheck Class = "idlechk"
)

const (
	sysIoprioSet = 251 // ioprio_set syscall number on linux/amd64

	ioprioWhoProcess = 1

	ioprioClassShift = 13
	ioprioClassIdle  = 3
)

// Set applies class to the calling OS thread. Callers running on a
// worker goroutine must have called runtime.LockOSThread first so the
// priority attaches to the correct kernel thread. Errors are logged and
// swallowed: a kernel without ioprio_set support (ENOSYS) or without
// permission (EPERM) must not abort the scrub.
func Set(class Class, log *logging.Logger) {
	if class != IdleCheck {
		return
	}

	ioprio := uintptr(ioprioClassIdle<<ioprioClassShift) | 0
	_, _, errno := unix.Syscall(sysIoprioSet, ioprioWhoProcess, 0, ioprio)
	if errno != 0 && log != nil {
		log.Warn("ioprio_set failed, continuing at default priority", "errno", errno.Error())
	}
}
