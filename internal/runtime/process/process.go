package process

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"

	"github.com/Paintersrp/sigreap/internal/logging"
	"github.com/Paintersrp/sigreap/internal/runtime"
)

// ChildCommand is the subcommand a re-executed binary runs as a child.
const ChildCommand = "child"

// Option customises a Spawner.
type Option func(*Spawner)

// WithCommand replaces the re-executed binary and its leading arguments.
func WithCommand(path string, args ...string) Option {
	return func(s *Spawner) {
		s.path = path
		s.args = append([]string(nil), args...)
	}
}

// WithEnv appends environment entries for every child.
func WithEnv(env ...string) Option {
	return func(s *Spawner) {
		s.env = append(s.env, env...)
	}
}

// WithOutput sets the streams children write to. Passing *os.File values
// hands the descriptors to the child directly; other writers are fed
// through pipes by the exec package.
func WithOutput(stdout, stderr io.Writer) Option {
	return func(s *Spawner) {
		s.stdout = stdout
		s.stderr = stderr
	}
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Spawner) {
		s.logger = logger
	}
}

// Spawner starts children as local processes.
type Spawner struct {
	path   string
	args   []string
	env    []string
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger
}

// New constructs a spawner that re-executes the running binary unless
// WithCommand says otherwise.
func New(opts ...Option) (*Spawner, error) {
	s := &Spawner{
		args:   []string{ChildCommand},
		stdout: os.Stdout,
		stderr: os.Stderr,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.path == "" {
		exe, err := os.Executable()
		if err != nil {
			return nil, fmt.Errorf("resolve executable: %w", err)
		}
		s.path = exe
	}
	if s.logger == nil {
		s.logger = logging.GetLogger("spawner")
	}
	return s, nil
}

// Spawn starts the child and returns its identifier without waiting.
func (s *Spawner) Spawn(ctx context.Context, task runtime.Task) (runtime.Child, error) {
	if err := ctx.Err(); err != nil {
		return runtime.Child{}, err
	}

	args := append(append([]string(nil), s.args...), TaskArgs(task)...)
	cmd := exec.Command(s.path, args...)
	cmd.Env = append(os.Environ(), s.env...)
	cmd.Stdout = s.stdout
	cmd.Stderr = s.stderr
	configureCmdSysProcAttr(cmd)

	if err := cmd.Start(); err != nil {
		return runtime.Child{}, fmt.Errorf("start child %d: %w", task.Index, err)
	}

	pid := cmd.Process.Pid
	if err := cmd.Process.Release(); err != nil {
		s.logger.Warn("release process handle", "pid", pid, "error", err)
	}
	s.logger.Debug("child started", "index", task.Index, "pid", pid, "sleep", task.Sleep, "exit_code", task.ExitCode)

	return runtime.Child{Task: task, PID: pid}, nil
}
