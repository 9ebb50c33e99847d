package runtime

import (
	"context"
	"time"
)

// Task describes the simulated work of one child.
type Task struct {
	Index    int
	Sleep    time.Duration
	ExitCode int
}

// Child is a started task.
type Child struct {
	Task
	PID int
}

// Spawner describes a backend capable of starting children.
type Spawner interface {
	// Spawn starts the task and returns without waiting for it. The child
	// is collected by whoever owns the child-state-change notification.
	Spawn(ctx context.Context, task Task) (Child, error)
}
