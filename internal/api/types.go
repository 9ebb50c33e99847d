package api

import (
	"time"

	"github.com/Paintersrp/sigreap/internal/engine"
)

// ChildSource exposes the tracked children to status servers.
type ChildSource interface {
	Snapshot() []engine.ChildStatus
	Counts() (running, terminated int)
}

// ChildrenReport aggregates the state of every spawned child.
type ChildrenReport struct {
	ParentPID   int                  `json:"parent_pid"`
	GeneratedAt time.Time            `json:"generated_at"`
	Running     int                  `json:"running"`
	Terminated  int                  `json:"terminated"`
	Children    []engine.ChildStatus `json:"children"`
}
