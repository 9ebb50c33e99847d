package process

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/spf13/pflag"

	"github.com/Paintersrp/sigreap/internal/runtime"
)

// TaskArgs renders the flags understood by BindTaskFlags.
func TaskArgs(task runtime.Task) []string {
	return []string{
		"--index", strconv.Itoa(task.Index),
		"--sleep", task.Sleep.String(),
		"--exit", strconv.Itoa(task.ExitCode),
	}
}

// BindTaskFlags registers the child flags on fs.
func BindTaskFlags(fs *pflag.FlagSet, task *runtime.Task) {
	fs.IntVar(&task.Index, "index", 0, "Index of this child")
	fs.DurationVar(&task.Sleep, "sleep", 0, "Simulated work duration")
	fs.IntVar(&task.ExitCode, "exit", 0, "Exit status to terminate with")
}

// ParseTaskArgs parses child flags outside of a cobra command.
func ParseTaskArgs(args []string) (runtime.Task, error) {
	var task runtime.Task
	fs := pflag.NewFlagSet(ChildCommand, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	BindTaskFlags(fs, &task)
	if err := fs.Parse(args); err != nil {
		return runtime.Task{}, fmt.Errorf("parse child flags: %w", err)
	}
	return task, nil
}

// RunChild announces the child, performs the simulated work and returns
// the status the process should exit with.
func RunChild(w io.Writer, task runtime.Task) int {
	fmt.Fprintf(w, "Child process (PID: %d) is running...\n", os.Getpid())
	time.Sleep(task.Sleep)
	return task.ExitCode
}
