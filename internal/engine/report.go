package engine

import (
	"fmt"

	"github.com/Paintersrp/sigreap/internal/events"
)

// FormatReport renders the human-readable line for one child state change.
func FormatReport(e events.ChildTerminated) string {
	switch e.Reason {
	case events.ReasonExited:
		return fmt.Sprintf("Child with PID %d exited normally with status: %d", e.PID, e.Status)
	case events.ReasonKilled:
		return fmt.Sprintf("Child with PID %d was killed by signal: %d", e.PID, e.Status)
	case events.ReasonDumped:
		return fmt.Sprintf("Child with PID %d was terminated and dumped core (signal: %d)", e.PID, e.Status)
	default:
		return fmt.Sprintf("Child with PID %d terminated unexpectedly (code: %d)", e.PID, e.Reason.Code())
	}
}
