package engine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	stdruntime "runtime"
	"strings"
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/Paintersrp/sigreap/internal/config"
	"github.com/Paintersrp/sigreap/internal/reaper"
	"github.com/Paintersrp/sigreap/internal/runtime"
	"github.com/Paintersrp/sigreap/internal/runtime/process"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

type fakeSpawner struct {
	mu     sync.Mutex
	tasks  []runtime.Task
	failAt int
	nextID int
}

func (f *fakeSpawner) Spawn(_ context.Context, task runtime.Task) (runtime.Child, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.tasks = append(f.tasks, task)
	if f.failAt >= 0 && task.Index == f.failAt {
		return runtime.Child{}, errors.New("resource temporarily unavailable")
	}
	f.nextID++
	return runtime.Child{Task: task, PID: 1_000_000 + f.nextID}, nil
}

// slowReportWriter delays every report line, leaving status lines alone.
type slowReportWriter struct {
	*syncBuffer
	delay time.Duration
}

func (w *slowReportWriter) Write(p []byte) (int, error) {
	if bytes.HasPrefix(p, []byte("Child with PID")) {
		time.Sleep(w.delay)
	}
	return w.syncBuffer.Write(p)
}

// killingSpawner sends SIGKILL to the child at index victim right after
// starting it.
type killingSpawner struct {
	runtime.Spawner
	victim int
	t      *testing.T
}

func (k *killingSpawner) Spawn(ctx context.Context, task runtime.Task) (runtime.Child, error) {
	child, err := k.Spawner.Spawn(ctx, task)
	if err == nil && task.Index == k.victim {
		if err := syscall.Kill(child.PID, syscall.SIGKILL); err != nil {
			k.t.Errorf("kill child %d: %v", child.PID, err)
		}
	}
	return child, err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func scaledConfig(duration time.Duration) *config.Config {
	cfg := config.Default()
	cfg.Scenario.SleepBase = config.NewDuration(100 * time.Millisecond)
	cfg.Scenario.SleepStep = config.NewDuration(150 * time.Millisecond)
	cfg.Scenario.Tick = config.NewDuration(50 * time.Millisecond)
	cfg.Scenario.Duration = config.NewDuration(duration)
	return cfg
}

func helperSpawner(t *testing.T) runtime.Spawner {
	t.Helper()
	childOut, err := os.Create(filepath.Join(t.TempDir(), "children.out"))
	if err != nil {
		t.Fatalf("create child output: %v", err)
	}
	t.Cleanup(func() { childOut.Close() })

	s, err := process.New(
		process.WithCommand(os.Args[0]),
		process.WithEnv("SIGREAP_ENGINE_HELPER=child"),
		process.WithOutput(childOut, childOut),
		process.WithLogger(quietLogger()),
	)
	if err != nil {
		t.Fatalf("new spawner: %v", err)
	}
	return s
}

func skipUnsupported(t *testing.T) {
	t.Helper()
	if stdruntime.GOOS == "windows" {
		t.Skip("runner tests require POSIX signals")
	}
}

func TestRunReportsEveryChildWithItsExitStatus(t *testing.T) {
	skipUnsupported(t)

	out := &syncBuffer{}
	runner := NewRunner(scaledConfig(1200*time.Millisecond),
		WithSpawner(helperSpawner(t)),
		WithOutput(out),
		WithLogger(quietLogger()),
	)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := runner.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}

	snapshot := runner.Tracker().Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("expected 3 children, got %+v", snapshot)
	}

	output := out.String()
	lastPos := -1
	for i, child := range snapshot {
		if child.Index != i {
			t.Fatalf("expected index %d, got %d", i, child.Index)
		}
		if child.State != "exited" || child.Status != 10+i || child.Changes != 1 {
			t.Fatalf("child %d: unexpected status %+v", i, child)
		}

		line := fmt.Sprintf("Child with PID %d exited normally with status: %d\n", child.PID, 10+i)
		if n := strings.Count(output, line); n != 1 {
			t.Fatalf("expected report %q exactly once, found %d in:\n%s", line, n, output)
		}
		pos := strings.Index(output, line)
		if pos < lastPos {
			t.Fatalf("child %d reported out of order:\n%s", i, output)
		}
		lastPos = pos
	}

	waiting := fmt.Sprintf("Parent process (PID: %d) is waiting for children to terminate...\n", os.Getpid())
	if !strings.HasPrefix(output, waiting) {
		t.Fatalf("expected output to start with %q, got:\n%s", waiting, output)
	}
	if n := strings.Count(output, "Parent is doing some work...\n"); n < 5 {
		t.Fatalf("expected the work loop to keep running, saw %d status lines:\n%s", n, output)
	}
}

func TestRunClassifiesExternallyKilledChild(t *testing.T) {
	skipUnsupported(t)

	out := &syncBuffer{}
	runner := NewRunner(scaledConfig(800*time.Millisecond),
		WithSpawner(&killingSpawner{Spawner: helperSpawner(t), victim: 1, t: t}),
		WithOutput(out),
		WithLogger(quietLogger()),
	)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	snapshot := runner.Tracker().Snapshot()
	if len(snapshot) != 3 {
		t.Fatalf("expected 3 children, got %+v", snapshot)
	}
	victim := snapshot[1]
	if victim.State != "killed" || victim.Status != int(syscall.SIGKILL) {
		t.Fatalf("expected child 1 killed by SIGKILL, got %+v", victim)
	}

	output := out.String()
	killed := fmt.Sprintf("Child with PID %d was killed by signal: %d\n", victim.PID, syscall.SIGKILL)
	if !strings.Contains(output, killed) {
		t.Fatalf("expected %q in output:\n%s", killed, output)
	}
	if strings.Contains(output, fmt.Sprintf("Child with PID %d exited normally", victim.PID)) {
		t.Fatalf("killed child must not be reported as a normal exit:\n%s", output)
	}
	for _, i := range []int{0, 2} {
		if snapshot[i].State != "exited" || snapshot[i].Status != 10+i {
			t.Fatalf("child %d: unexpected status %+v", i, snapshot[i])
		}
	}
}

func TestRunFailsBeforeSpawningWhenInstallIsRejected(t *testing.T) {
	cfg := config.Default()
	cfg.Reaper.Signal = "SIGKILL"

	spawner := &fakeSpawner{failAt: -1}
	out := &syncBuffer{}
	runner := NewRunner(cfg, WithSpawner(spawner), WithOutput(out), WithLogger(quietLogger()))

	err := runner.Run(context.Background())
	if !errors.Is(err, reaper.ErrUncatchable) {
		t.Fatalf("expected ErrUncatchable, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "sigaction:") {
		t.Fatalf("expected sigaction error, got %v", err)
	}
	if len(spawner.tasks) != 0 {
		t.Fatalf("expected no children, spawned %d", len(spawner.tasks))
	}
	if out.String() != "" {
		t.Fatalf("expected no output, got %q", out.String())
	}
}

func TestRunRejectsSignalsOtherThanChildStateChange(t *testing.T) {
	cfg := config.Default()
	cfg.Reaper.Signal = "SIGUSR1"
	if err := cfg.Validate(); err != nil {
		t.Fatalf("config should load, install decides: %v", err)
	}

	spawner := &fakeSpawner{failAt: -1}
	out := &syncBuffer{}
	runner := NewRunner(cfg, WithSpawner(spawner), WithOutput(out), WithLogger(quietLogger()))

	err := runner.Run(context.Background())
	if !errors.Is(err, reaper.ErrNotChildSignal) {
		t.Fatalf("expected ErrNotChildSignal, got %v", err)
	}
	if !strings.HasPrefix(err.Error(), "sigaction:") {
		t.Fatalf("expected sigaction error, got %v", err)
	}
	if len(spawner.tasks) != 0 {
		t.Fatalf("expected no children, spawned %d", len(spawner.tasks))
	}
}

func TestRunWaitsForQueuedReportsBeforeReturning(t *testing.T) {
	skipUnsupported(t)

	cfg := scaledConfig(500 * time.Millisecond)
	count := 1
	cfg.Scenario.ChildCount = &count
	cfg.Scenario.SleepBase = config.NewDuration(0)
	cfg.Scenario.SleepStep = config.NewDuration(0)
	cfg.Scenario.Tick = config.NewDuration(10 * time.Second)

	out := &slowReportWriter{syncBuffer: &syncBuffer{}, delay: 900 * time.Millisecond}
	runner := NewRunner(cfg,
		WithSpawner(helperSpawner(t)),
		WithOutput(out),
		WithLogger(quietLogger()),
	)

	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	snapshot := runner.Tracker().Snapshot()
	if len(snapshot) != 1 {
		t.Fatalf("expected 1 child, got %+v", snapshot)
	}
	line := fmt.Sprintf("Child with PID %d exited normally with status: 10\n", snapshot[0].PID)
	if !strings.Contains(out.String(), line) {
		t.Fatalf("expected %q before Run returned, got:\n%s", line, out.String())
	}
}

func TestRunAbortsOnSpawnFailure(t *testing.T) {
	skipUnsupported(t)

	spawner := &fakeSpawner{failAt: 1}
	out := &syncBuffer{}
	runner := NewRunner(scaledConfig(time.Second), WithSpawner(spawner), WithOutput(out), WithLogger(quietLogger()))

	err := runner.Run(context.Background())
	if err == nil || !strings.HasPrefix(err.Error(), "fork: ") {
		t.Fatalf("expected fork error, got %v", err)
	}
	if len(spawner.tasks) != 2 {
		t.Fatalf("expected spawning to stop at the failing child, attempted %d", len(spawner.tasks))
	}
	if strings.Contains(out.String(), "Parent is doing some work") {
		t.Fatalf("work loop must not start after a spawn failure:\n%s", out.String())
	}
}

func TestRunSpawnsConfiguredTasks(t *testing.T) {
	skipUnsupported(t)

	cfg := scaledConfig(60 * time.Millisecond)
	count := 5
	base := 40
	cfg.Scenario.ChildCount = &count
	cfg.Scenario.ExitBase = &base

	spawner := &fakeSpawner{failAt: -1}
	runner := NewRunner(cfg, WithSpawner(spawner), WithOutput(io.Discard), WithLogger(quietLogger()))
	if err := runner.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}

	if len(spawner.tasks) != count {
		t.Fatalf("expected %d tasks, got %d", count, len(spawner.tasks))
	}
	for i, task := range spawner.tasks {
		want := runtime.Task{
			Index:    i,
			Sleep:    100*time.Millisecond + time.Duration(i)*150*time.Millisecond,
			ExitCode: base + i,
		}
		if task != want {
			t.Fatalf("task %d: got %+v want %+v", i, task, want)
		}
	}
}

func TestRunStopsWhenContextIsCancelled(t *testing.T) {
	skipUnsupported(t)

	cfg := scaledConfig(0)
	spawner := &fakeSpawner{failAt: -1}
	runner := NewRunner(cfg, WithSpawner(spawner), WithOutput(io.Discard), WithLogger(quietLogger()))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- runner.Run(ctx) }()

	time.Sleep(150 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("run: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("runner did not stop after cancellation")
	}
}

func TestRunRequiresSpawner(t *testing.T) {
	if err := NewRunner(nil).Run(context.Background()); err == nil {
		t.Fatal("expected error without spawner")
	}
}
