package metrics

import (
	"runtime"
	"runtime/debug"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registry = prometheus.NewRegistry()

	childrenSpawned = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sigreap",
		Name:      "children_spawned_total",
		Help:      "Total number of child processes started.",
	})

	childrenRunning = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "sigreap",
		Name:      "children_running",
		Help:      "Child processes started and not yet reported as terminated.",
	})

	notifications = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "sigreap",
		Name:      "notifications_total",
		Help:      "Child-state-change notifications received. Pending signals may be coalesced.",
	})

	stateChanges = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "sigreap",
		Name:      "child_state_changes_total",
		Help:      "Child state changes collected by the reaper, by reason.",
	}, []string{"reason"})

	childLifetime = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "sigreap",
		Name:      "child_lifetime_seconds",
		Help:      "Time between starting a child and collecting its termination.",
		Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
	})

	buildInfo = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "sigreap",
		Name:      "build_info",
		Help:      "Build metadata for the running sigreap binary.",
	}, []string{"go_version", "vcs", "vcs_revision", "vcs_time", "vcs_modified"})

	buildInfoOnce sync.Once
)

func init() {
	registry.MustRegister(childrenSpawned, childrenRunning, notifications, stateChanges, childLifetime, buildInfo)
}

// Registry returns the Prometheus registry containing all sigreap metrics.
func Registry() *prometheus.Registry {
	return registry
}

// IncChildrenSpawned records a started child.
func IncChildrenSpawned() {
	childrenSpawned.Inc()
	childrenRunning.Inc()
}

// IncNotifications records one received child-state-change signal.
func IncNotifications() {
	notifications.Inc()
}

// ObserveStateChange records a collected state change. Terminal changes
// also decrement the running gauge.
func ObserveStateChange(reason string, terminal bool) {
	if reason == "" {
		reason = "unknown"
	}
	stateChanges.WithLabelValues(reason).Inc()
	if terminal {
		childrenRunning.Dec()
	}
}

// ObserveChildLifetime records how long a child lived.
func ObserveChildLifetime(d time.Duration) {
	if d < 0 {
		return
	}
	childLifetime.Observe(d.Seconds())
}

// EmitBuildInfo publishes build metadata about the running binary.
func EmitBuildInfo() {
	buildInfoOnce.Do(func() {
		labels := prometheus.Labels{
			"go_version":   runtime.Version(),
			"vcs":          "",
			"vcs_revision": "",
			"vcs_time":     "",
			"vcs_modified": "",
		}
		if info, ok := debug.ReadBuildInfo(); ok {
			if info.GoVersion != "" {
				labels["go_version"] = info.GoVersion
			}
			for _, setting := range info.Settings {
				switch setting.Key {
				case "vcs":
					labels["vcs"] = setting.Value
				case "vcs.revision":
					labels["vcs_revision"] = setting.Value
				case "vcs.time":
					labels["vcs_time"] = setting.Value
				case "vcs.modified":
					labels["vcs_modified"] = setting.Value
				}
			}
		}
		buildInfo.With(labels).Set(1)
	})
}
