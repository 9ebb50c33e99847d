package cli

import (
	stdcontext "context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/Paintersrp/sigreap/internal/config"
	"github.com/Paintersrp/sigreap/internal/engine"
	"github.com/Paintersrp/sigreap/internal/events"
	"github.com/Paintersrp/sigreap/internal/logging"
	"github.com/Paintersrp/sigreap/internal/metrics"
	"github.com/Paintersrp/sigreap/internal/runtime/process"

	httpapi "github.com/Paintersrp/sigreap/internal/api/http"
)

func NewRootCmd() *cobra.Command {
	root, _ := newRootCommand()
	return root
}

// options holds the values of the persistent flags.
type options struct {
	configFile  string
	children    int
	sleepBase   time.Duration
	sleepStep   time.Duration
	exitBase    int
	tick        time.Duration
	duration    time.Duration
	signal      string
	metricsAddr string
	logLevel    string
	logFormat   string
}

func newRootCommand() (*cobra.Command, *options) {
	opts := &options{configFile: os.Getenv(config.EnvConfigPath)}

	root := &cobra.Command{
		Use:   "sigreap",
		Short: "Spawn children and report their termination asynchronously",
		Long: `sigreap starts a fixed set of child processes and keeps the parent busy
while SIGCHLD notifications report how each child terminated.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd, opts)
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&opts.configFile, "config", "c", opts.configFile, "Path to a sigreap.yaml configuration file (env "+config.EnvConfigPath+")")
	flags.IntVar(&opts.children, "children", config.DefaultChildCount, "Number of children to spawn")
	flags.DurationVar(&opts.sleepBase, "sleep-base", config.DefaultSleepBase, "Work duration of the first child")
	flags.DurationVar(&opts.sleepStep, "sleep-step", config.DefaultSleepStep, "Additional work duration per child index")
	flags.IntVar(&opts.exitBase, "exit-base", config.DefaultExitBase, "Exit status of the first child")
	flags.DurationVar(&opts.tick, "tick", config.DefaultTick, "Interval between parent status lines")
	flags.DurationVar(&opts.duration, "duration", 0, "Stop the parent after this long (0 runs until interrupted)")
	flags.StringVar(&opts.signal, "signal", config.DefaultSignal, "Child-state-change notification to subscribe to")
	flags.StringVar(&opts.metricsAddr, "metrics-addr", "", "Serve /metrics and /api/v1/children on this address")
	flags.StringVar(&opts.logLevel, "log-level", config.DefaultLogLevel, "Diagnostic log level (debug, info, warn, error)")
	flags.StringVar(&opts.logFormat, "log-format", config.DefaultLogFormat, "Diagnostic log format (auto, text, json, journal)")

	root.AddCommand(newChildCmd())
	root.AddCommand(newConfigCmd(opts))

	root.SilenceUsage = true
	root.SilenceErrors = true

	return root, opts
}

// Execute runs the CLI entrypoint.
func Execute() {
	ctx, stop := signal.NotifyContext(stdcontext.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := NewRootCmd()
	root.SetContext(ctx)

	if err := root.ExecuteContext(ctx); err != nil {
		var exitErr *ExitError
		if errors.As(err, &exitErr) {
			stop()
			os.Exit(exitErr.Code)
		}
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// ExitError carries a process exit status out of a command without being
// printed.
type ExitError struct {
	Code int
}

func (e *ExitError) Error() string {
	return fmt.Sprintf("exit status %d", e.Code)
}

// loadConfig reads the configuration file, if any, and applies every flag
// the user set explicitly on top of it.
func loadConfig(cmd *cobra.Command, opts *options) (*config.Config, error) {
	var cfg *config.Config
	if opts.configFile != "" {
		loaded, err := config.Load(opts.configFile)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		cfg = config.Default()
	}

	flags := cmd.Flags()
	if flags.Changed("children") {
		n := opts.children
		cfg.Scenario.ChildCount = &n
	}
	if flags.Changed("sleep-base") {
		cfg.Scenario.SleepBase = config.NewDuration(opts.sleepBase)
	}
	if flags.Changed("sleep-step") {
		cfg.Scenario.SleepStep = config.NewDuration(opts.sleepStep)
	}
	if flags.Changed("exit-base") {
		base := opts.exitBase
		cfg.Scenario.ExitBase = &base
	}
	if flags.Changed("tick") {
		cfg.Scenario.Tick = config.NewDuration(opts.tick)
	}
	if flags.Changed("duration") {
		cfg.Scenario.Duration = config.NewDuration(opts.duration)
	}
	if flags.Changed("signal") {
		cfg.Reaper.Signal = opts.signal
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr = opts.metricsAddr
	}
	if flags.Changed("log-level") {
		cfg.Logging.Level = opts.logLevel
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = opts.logFormat
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runScenario(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	logging.Initialize(logging.Config{Level: cfg.Logging.Level, Format: cfg.Logging.Format})
	logger := logging.GetLogger("cli")
	ctx := cmd.Context()

	bus := events.New()
	tracker := engine.NewTracker()

	spawner, err := process.New(process.WithLogger(logging.GetLogger("spawner")))
	if err != nil {
		return fmt.Errorf("fork: %w", err)
	}
	runner := engine.NewRunner(cfg,
		engine.WithSpawner(spawner),
		engine.WithBus(bus),
		engine.WithTracker(tracker),
		engine.WithOutput(cmd.OutOrStdout()),
		engine.WithLogger(logging.GetLogger("engine")),
	)

	if cfg.Metrics.Addr == "" {
		return runner.Run(ctx)
	}

	srv, err := httpapi.NewServer(httpapi.Config{
		Addr:     cfg.Metrics.Addr,
		Children: tracker,
		Gatherer: metrics.Registry(),
	})
	if err != nil {
		return fmt.Errorf("status server: %w", err)
	}
	if err := srv.Listen(); err != nil {
		return fmt.Errorf("status server: %w", err)
	}
	logger.Info("status server listening", "addr", srv.Addr())

	// The server lives exactly as long as the scenario.
	runCtx, cancel := stdcontext.WithCancel(ctx)
	defer cancel()
	group, groupCtx := errgroup.WithContext(runCtx)
	group.Go(func() error {
		defer cancel()
		return runner.Run(groupCtx)
	})
	group.Go(func() error {
		if err := srv.Run(groupCtx); err != nil {
			return fmt.Errorf("status server: %w", err)
		}
		return nil
	})
	return group.Wait()
}
