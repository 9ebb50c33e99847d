package reaper

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"golang.org/x/sys/unix"

	"github.com/Paintersrp/sigreap/internal/events"
	"github.com/Paintersrp/sigreap/internal/logging"
	"github.com/Paintersrp/sigreap/internal/metrics"
)

const (
	defaultSignal = "SIGCHLD"
	waitOptions   = unix.WNOHANG | unix.WUNTRACED | unix.WCONTINUED
)

type wait4Func func(pid int, ws *unix.WaitStatus, options int, rusage *unix.Rusage) (int, error)

// Options configures Install.
type Options struct {
	// Signal names the notification to subscribe to. Defaults to SIGCHLD.
	Signal string
	Logger *slog.Logger
}

// Reaper owns the child-state-change subscription for the process.
type Reaper struct {
	sig    syscall.Signal
	sigs   chan os.Signal
	bus    *events.Bus
	logger *slog.Logger
	wait4  wait4Func
	done   chan struct{}

	published atomic.Int64
}

// Install subscribes to the child-state-change notification and starts the
// collector. It must be called before any child is started. The collector
// runs until ctx is cancelled.
func Install(ctx context.Context, bus *events.Bus, opts Options) (*Reaper, error) {
	if bus == nil {
		return nil, errors.New("sigaction: event bus is required")
	}
	name := opts.Signal
	if name == "" {
		name = defaultSignal
	}
	sig, err := ParseSignal(name)
	if err != nil {
		return nil, fmt.Errorf("sigaction: %w", err)
	}

	logger := opts.Logger
	if logger == nil {
		logger = logging.GetLogger("reaper")
	}

	r := &Reaper{
		sig:    sig,
		sigs:   make(chan os.Signal, 8),
		bus:    bus,
		logger: logger,
		wait4:  unix.Wait4,
		done:   make(chan struct{}),
	}
	signal.Notify(r.sigs, sig)
	logger.Debug("notification handler installed", "signal", unix.SignalName(sig))

	go r.run(ctx)
	return r, nil
}

// Signal returns the subscribed signal.
func (r *Reaper) Signal() syscall.Signal {
	return r.sig
}

// Published returns how many state changes have been put on the bus.
func (r *Reaper) Published() int64 {
	return r.published.Load()
}

// Done is closed once the collector has stopped.
func (r *Reaper) Done() <-chan struct{} {
	return r.done
}

func (r *Reaper) run(ctx context.Context) {
	defer close(r.done)
	defer signal.Stop(r.sigs)

	for {
		select {
		case <-ctx.Done():
			return
		case <-r.sigs:
			metrics.IncNotifications()
			r.drain()
		}
	}
}

// drain collects every child with a pending state change and returns how
// many were published.
func (r *Reaper) drain() int {
	collected := 0
	for {
		var ws unix.WaitStatus
		pid, err := r.wait4(-1, &ws, waitOptions, nil)
		switch {
		case errors.Is(err, unix.EINTR):
			continue
		case errors.Is(err, unix.ECHILD):
			return collected
		case err != nil:
			r.logger.Warn("wait4 failed", "error", err)
			return collected
		case pid <= 0:
			return collected
		}

		ev := Classify(pid, ws)
		ev.Timestamp = time.Now()
		metrics.ObserveStateChange(ev.Reason.String(), ev.Reason.Terminal())
		r.logger.Debug("child state changed", "pid", ev.PID, "reason", ev.Reason.String(), "status", ev.Status)
		r.published.Add(1)
		r.bus.Publish(ev)
		collected++
	}
}
