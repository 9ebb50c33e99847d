package reaper

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"syscall"

	"golang.org/x/sys/unix"
)

var (
	// ErrUnknownSignal is returned for names that do not map to a signal.
	ErrUnknownSignal = errors.New("unknown signal")
	// ErrUncatchable is returned for signals that cannot have a handler.
	ErrUncatchable = errors.New("signal cannot be caught")
	// ErrNotChildSignal is returned for catchable signals the kernel never
	// raises on a child state change.
	ErrNotChildSignal = errors.New("signal does not report child state changes")
)

// ParseSignal resolves a signal by name ("SIGCHLD", "chld") or number.
// Only the child-state-change notification is accepted.
func ParseSignal(name string) (syscall.Signal, error) {
	value := strings.ToUpper(strings.TrimSpace(name))
	if value == "" {
		return 0, fmt.Errorf("%w: empty name", ErrUnknownSignal)
	}

	var sig syscall.Signal
	if n, err := strconv.Atoi(value); err == nil {
		sig = syscall.Signal(n)
		if n <= 0 || unix.SignalName(sig) == "" {
			return 0, fmt.Errorf("%w: %s", ErrUnknownSignal, name)
		}
	} else {
		if !strings.HasPrefix(value, "SIG") {
			value = "SIG" + value
		}
		sig = unix.SignalNum(value)
		if sig == 0 {
			return 0, fmt.Errorf("%w: %s", ErrUnknownSignal, name)
		}
	}

	if sig == unix.SIGKILL || sig == unix.SIGSTOP {
		return 0, fmt.Errorf("%w: %s", ErrUncatchable, unix.SignalName(sig))
	}
	if sig != unix.SIGCHLD {
		return 0, fmt.Errorf("%w: %s", ErrNotChildSignal, unix.SignalName(sig))
	}
	return sig, nil
}
