package engine

import (
	"sort"
	"sync"
	"time"

	"github.com/Paintersrp/sigreap/internal/events"
	"github.com/Paintersrp/sigreap/internal/metrics"
)

// StateRunning is reported for children without a collected state change.
const StateRunning = "running"

// ChildStatus captures a snapshot of one child for presentation.
type ChildStatus struct {
	Index     int           `json:"index"`
	PID       int           `json:"pid"`
	State     string        `json:"state"`
	Status    int           `json:"status"`
	Sleep     time.Duration `json:"sleep"`
	ExitCode  int           `json:"exit_code"`
	StartedAt time.Time     `json:"started_at,omitempty"`
	ChangedAt time.Time     `json:"changed_at,omitempty"`
	Changes   int           `json:"changes"`
	Terminal  bool          `json:"terminal"`
}

type childStatus struct {
	ChildStatus
	spawned  bool
	observed bool
}

// Tracker maintains in-memory status for children based on bus events.
// Spawn and termination events arrive on separate subscriber goroutines,
// so either may be applied first for a given PID.
type Tracker struct {
	mu       sync.RWMutex
	children map[int]*childStatus
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{children: make(map[int]*childStatus)}
}

// Attach subscribes the tracker to bus and returns the unsubscribe function.
func (t *Tracker) Attach(bus *events.Bus) func() {
	unsubSpawned := bus.Subscribe(t.ApplySpawned)
	unsubTerminated := bus.Subscribe(t.ApplyTerminated)
	return func() {
		unsubSpawned()
		unsubTerminated()
	}
}

func (t *Tracker) entry(pid int) *childStatus {
	state := t.children[pid]
	if state == nil {
		state = &childStatus{ChildStatus: ChildStatus{Index: -1, PID: pid, State: StateRunning}}
		t.children[pid] = state
	}
	return state
}

// ApplySpawned records a started child.
func (t *Tracker) ApplySpawned(e events.ChildSpawned) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.entry(e.PID)
	state.spawned = true
	state.Index = e.Index
	state.Sleep = e.Sleep
	state.ExitCode = e.ExitCode
	state.StartedAt = e.Timestamp
	t.observeLifetime(state)
}

// ApplyTerminated records a collected state change.
func (t *Tracker) ApplyTerminated(e events.ChildTerminated) {
	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	state := t.entry(e.PID)
	state.Changes++
	if e.Timestamp.After(state.ChangedAt) {
		state.ChangedAt = e.Timestamp
		state.State = e.Reason.String()
		state.Status = e.Status
		state.Terminal = e.Reason.Terminal()
	}
	t.observeLifetime(state)
}

func (t *Tracker) observeLifetime(state *childStatus) {
	if state.observed || !state.spawned || !state.Terminal {
		return
	}
	state.observed = true
	metrics.ObserveChildLifetime(state.ChangedAt.Sub(state.StartedAt))
}

// Lookup returns the status of a single child.
func (t *Tracker) Lookup(pid int) (ChildStatus, bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	state, ok := t.children[pid]
	if !ok {
		return ChildStatus{}, false
	}
	return state.ChildStatus, true
}

// Snapshot returns every known child ordered by index. Children only seen
// through a state change (index -1) sort last, by PID.
func (t *Tracker) Snapshot() []ChildStatus {
	t.mu.RLock()
	out := make([]ChildStatus, 0, len(t.children))
	for _, state := range t.children {
		out = append(out, state.ChildStatus)
	}
	t.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if (a.Index < 0) != (b.Index < 0) {
			return a.Index >= 0
		}
		if a.Index != b.Index {
			return a.Index < b.Index
		}
		return a.PID < b.PID
	})
	return out
}

// Counts returns how many known children are still alive and how many
// have terminated.
func (t *Tracker) Counts() (running, terminated int) {
	t.mu.RLock()
	defer t.mu.RUnlock()
	for _, state := range t.children {
		if state.Terminal {
			terminated++
		} else {
			running++
		}
	}
	return running, terminated
}
