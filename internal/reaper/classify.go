package reaper

import (
	"golang.org/x/sys/unix"

	"github.com/Paintersrp/sigreap/internal/events"
)

// Classify turns a wait status into a process record. Status carries the
// exit code for normal exits and the signal number otherwise; unrecognised
// statuses keep the raw value.
func Classify(pid int, ws unix.WaitStatus) events.ChildTerminated {
	ev := events.ChildTerminated{PID: pid}
	switch {
	case ws.Exited():
		ev.Reason = events.ReasonExited
		ev.Status = ws.ExitStatus()
	case ws.Signaled() && ws.CoreDump():
		ev.Reason = events.ReasonDumped
		ev.Status = int(ws.Signal())
	case ws.Signaled():
		ev.Reason = events.ReasonKilled
		ev.Status = int(ws.Signal())
	case ws.Stopped() && ws.StopSignal() == unix.SIGTRAP:
		ev.Reason = events.ReasonTrapped
		ev.Status = int(ws.StopSignal())
	case ws.Stopped():
		ev.Reason = events.ReasonStopped
		ev.Status = int(ws.StopSignal())
	case ws.Continued():
		ev.Reason = events.ReasonContinued
		ev.Status = int(unix.SIGCONT)
	default:
		ev.Reason = events.ReasonUnknown
		ev.Status = int(ws)
	}
	return ev
}
