package events

import (
	"fmt"
	"time"
)

// Event type constants for kelindar/event.
const (
	TypeChildSpawned uint32 = iota + 1
	TypeChildTerminated
)

// Event interface required by kelindar/event.
type Event interface {
	Type() uint32
}

// Reason classifies a child state change. The numeric values match the
// si_code values the kernel attaches to SIGCHLD.
type Reason int

const (
	ReasonUnknown   Reason = 0
	ReasonExited    Reason = 1
	ReasonKilled    Reason = 2
	ReasonDumped    Reason = 3
	ReasonTrapped   Reason = 4
	ReasonStopped   Reason = 5
	ReasonContinued Reason = 6
)

// Code returns the raw classification code.
func (r Reason) Code() int { return int(r) }

// Terminal reports whether the child no longer exists after this change.
func (r Reason) Terminal() bool {
	switch r {
	case ReasonExited, ReasonKilled, ReasonDumped:
		return true
	default:
		return false
	}
}

func (r Reason) String() string {
	switch r {
	case ReasonExited:
		return "exited"
	case ReasonKilled:
		return "killed"
	case ReasonDumped:
		return "dumped"
	case ReasonTrapped:
		return "trapped"
	case ReasonStopped:
		return "stopped"
	case ReasonContinued:
		return "continued"
	default:
		return fmt.Sprintf("code_%d", int(r))
	}
}

// ChildSpawned is published once a child has been started.
type ChildSpawned struct {
	Index     int           `json:"index"`
	PID       int           `json:"pid"`
	Sleep     time.Duration `json:"sleep"`
	ExitCode  int           `json:"exit_code"`
	Timestamp time.Time     `json:"timestamp"`
}

// Type returns the event type identifier for ChildSpawned.
func (e ChildSpawned) Type() uint32 { return TypeChildSpawned }

// ChildTerminated is a snapshot of one child state change as collected by
// the reaper. Status holds the exit code for ReasonExited and the signal
// number otherwise.
type ChildTerminated struct {
	PID       int       `json:"pid"`
	Reason    Reason    `json:"reason"`
	Status    int       `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

// Type returns the event type identifier for ChildTerminated.
func (e ChildTerminated) Type() uint32 { return TypeChildTerminated }
