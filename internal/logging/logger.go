package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/coreos/go-systemd/v22/journal"
	"golang.org/x/term"
)

// Config represents logging configuration.
type Config struct {
	Level  string
	Format string
}

var (
	mutex sync.RWMutex
	base  = slog.New(slog.NewTextHandler(os.Stderr, nil))
)

// Initialize sets up the default logger writing to stderr.
func Initialize(config Config) {
	logger := New(os.Stderr, config)

	mutex.Lock()
	defer mutex.Unlock()
	base = logger
	slog.SetDefault(logger)
}

// New builds a logger for w without touching global state.
func New(w io.Writer, config Config) *slog.Logger {
	levelVar := &slog.LevelVar{}
	if level := parseLevel(config.Level); level != nil {
		levelVar.Set(*level)
	}
	return slog.New(createHandler(w, config.Format, levelVar))
}

// GetLogger returns a logger tagged with the provided module name.
func GetLogger(module string) *slog.Logger {
	mutex.RLock()
	defer mutex.RUnlock()
	return base.With("module", module)
}

func createHandler(w io.Writer, format string, level slog.Leveler) slog.Handler {
	opts := &slog.HandlerOptions{Level: level}
	switch resolveFormat(w, format) {
	case "journal":
		return newJournalHandler(level)
	case "json":
		return slog.NewJSONHandler(w, opts)
	default:
		return slog.NewTextHandler(w, opts)
	}
}

// resolveFormat maps "auto" to text on terminals and json elsewhere.
// "journal" degrades to json when no journal socket is reachable.
func resolveFormat(w io.Writer, format string) string {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "journal":
		if journal.Enabled() {
			return "journal"
		}
		return "json"
	case "json":
		return "json"
	case "text":
		return "text"
	}
	if f, ok := w.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		return "text"
	}
	return "json"
}

func parseLevel(level string) *slog.Level {
	var l slog.Level
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		l = slog.LevelDebug
	case "info", "":
		l = slog.LevelInfo
	case "warn", "warning":
		l = slog.LevelWarn
	case "error":
		l = slog.LevelError
	default:
		return nil
	}
	return &l
}
