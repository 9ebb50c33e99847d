package engine

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"sync/atomic"
	"time"

	"github.com/Paintersrp/sigreap/internal/config"
	"github.com/Paintersrp/sigreap/internal/events"
	"github.com/Paintersrp/sigreap/internal/logging"
	"github.com/Paintersrp/sigreap/internal/metrics"
	"github.com/Paintersrp/sigreap/internal/reaper"
	"github.com/Paintersrp/sigreap/internal/runtime"
)

// reportFlushTimeout bounds how long Run waits for queued reports after the
// collector has stopped.
const reportFlushTimeout = 2 * time.Second

// Runner drives one scenario: install the notification handler, start the
// children, then keep the parent busy while reports arrive.
type Runner struct {
	scenario config.Scenario
	signal   string
	spawner  runtime.Spawner
	bus      *events.Bus
	tracker  *Tracker
	out      *lineWriter
	logger   *slog.Logger

	reported atomic.Int64
	reportCh chan struct{}
}

// Option customises a Runner.
type Option func(*Runner)

// WithSpawner sets the backend used to start children.
func WithSpawner(s runtime.Spawner) Option {
	return func(r *Runner) { r.spawner = s }
}

// WithBus shares an existing event bus.
func WithBus(bus *events.Bus) Option {
	return func(r *Runner) { r.bus = bus }
}

// WithTracker shares an existing tracker.
func WithTracker(t *Tracker) Option {
	return func(r *Runner) { r.tracker = t }
}

// WithOutput sets the stream for status and report lines.
func WithOutput(w io.Writer) Option {
	return func(r *Runner) { r.out = newLineWriter(w) }
}

// WithLogger sets the diagnostic logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runner) { r.logger = logger }
}

// NewRunner constructs a runner for cfg.
func NewRunner(cfg *config.Config, opts ...Option) *Runner {
	if cfg == nil {
		cfg = config.Default()
	}
	r := &Runner{
		scenario: cfg.Scenario,
		signal:   cfg.Reaper.Signal,
		reportCh: make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.bus == nil {
		r.bus = events.New()
	}
	if r.tracker == nil {
		r.tracker = NewTracker()
	}
	if r.out == nil {
		r.out = newLineWriter(os.Stdout)
	}
	if r.logger == nil {
		r.logger = logging.GetLogger("engine")
	}
	if r.scenario.Tick.Duration <= 0 {
		r.scenario.Tick = config.NewDuration(config.DefaultTick)
	}
	return r
}

// Tracker returns the tracker fed by this runner's bus.
func (r *Runner) Tracker() *Tracker {
	return r.tracker
}

// Run executes the scenario. It returns nil once ctx is cancelled or the
// configured duration elapses, and an error if the handler cannot be
// installed or a child cannot be started. Nothing is rolled back on error.
func (r *Runner) Run(ctx context.Context) error {
	if r.spawner == nil {
		return errors.New("runner requires a spawner")
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	r.reported.Store(0)
	defer r.bus.Subscribe(r.report)()
	defer r.tracker.Attach(r.bus)()

	rp, err := reaper.Install(ctx, r.bus, reaper.Options{
		Signal: r.signal,
		Logger: r.logger.With("component", "reaper"),
	})
	if err != nil {
		return err
	}
	defer func() {
		cancel()
		<-rp.Done()
		r.flushReports(rp.Published())
	}()

	for i := 0; i < r.scenario.Children(); i++ {
		task := runtime.Task{
			Index:    i,
			Sleep:    r.scenario.Sleep(i),
			ExitCode: r.scenario.ExitCode(i),
		}
		child, err := r.spawner.Spawn(ctx, task)
		if err != nil {
			return fmt.Errorf("fork: %w", err)
		}
		metrics.IncChildrenSpawned()
		r.bus.Publish(events.ChildSpawned{
			Index:     child.Index,
			PID:       child.PID,
			Sleep:     child.Sleep,
			ExitCode:  child.ExitCode,
			Timestamp: time.Now(),
		})
	}

	fmt.Fprintf(r.out, "Parent process (PID: %d) is waiting for children to terminate...\n", os.Getpid())

	workCtx := ctx
	if d := r.scenario.Duration.Duration; d > 0 {
		var stop context.CancelFunc
		workCtx, stop = context.WithTimeout(ctx, d)
		defer stop()
	}
	return r.work(workCtx)
}

// work prints a status line every tick until ctx is done.
func (r *Runner) work(ctx context.Context) error {
	ticker := time.NewTicker(r.scenario.Tick.Duration)
	defer ticker.Stop()

	for {
		fmt.Fprintln(r.out, "Parent is doing some work...")
		select {
		case <-ctx.Done():
			r.logger.Debug("work loop stopped", "cause", context.Cause(ctx))
			return nil
		case <-ticker.C:
		}
	}
}

func (r *Runner) report(e events.ChildTerminated) {
	fmt.Fprintln(r.out, FormatReport(e))
	r.logger.Debug("child state reported", "pid", e.PID, "reason", e.Reason.String(), "status", e.Status)
	r.reported.Add(1)
	select {
	case r.reportCh <- struct{}{}:
	default:
	}
}

// flushReports waits until the reporter has written every state change the
// collector published, so a bounded run does not exit with reports queued.
func (r *Runner) flushReports(published int64) {
	timer := time.NewTimer(reportFlushTimeout)
	defer timer.Stop()
	for r.reported.Load() < published {
		select {
		case <-r.reportCh:
		case <-timer.C:
			r.logger.Warn("reports still queued at shutdown", "published", published, "reported", r.reported.Load())
			return
		}
	}
}
