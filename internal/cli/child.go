package cli

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/Paintersrp/sigreap/internal/runtime"
	"github.com/Paintersrp/sigreap/internal/runtime/process"
)

func newChildCmd() *cobra.Command {
	var task runtime.Task
	cmd := &cobra.Command{
		Use:    process.ChildCommand,
		Short:  "Run a single child task",
		Hidden: true,
		Args:   cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			// Children keep the default dispositions so that an external
			// SIGINT or SIGTERM is reported to the parent as a signal death.
			signal.Reset(os.Interrupt, syscall.SIGTERM)
			return &ExitError{Code: process.RunChild(cmd.OutOrStdout(), task)}
		},
	}
	process.BindTaskFlags(cmd.Flags(), &task)
	return cmd
}
