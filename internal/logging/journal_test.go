package logging

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/coreos/go-systemd/v22/journal"
	"github.com/google/go-cmp/cmp"
)

type journalCapture struct {
	message  string
	priority journal.Priority
	fields   map[string]string
}

func newCapturingJournal(level slog.Level) (*journalHandler, *[]journalCapture) {
	var captured []journalCapture
	h := newJournalHandler(level)
	h.send = func(message string, priority journal.Priority, vars map[string]string) error {
		captured = append(captured, journalCapture{message: message, priority: priority, fields: vars})
		return nil
	}
	return h, &captured
}

func TestJournalHandlerFields(t *testing.T) {
	h, captured := newCapturingJournal(slog.LevelInfo)
	logger := slog.New(h).With("module", "reaper").WithGroup("child")
	logger.Warn("state change", "pid", 42, slog.Group("status", "code", 11))

	if len(*captured) != 1 {
		t.Fatalf("expected one journal entry, got %d", len(*captured))
	}
	got := (*captured)[0]
	if got.message != "state change" || got.priority != journal.PriWarning {
		t.Fatalf("unexpected entry: %+v", got)
	}
	want := map[string]string{
		"PRIORITY":          "4",
		"SYSLOG_IDENTIFIER": "sigreap",
		"MODULE":            "reaper",
		"CHILD_PID":         "42",
		"CHILD_STATUS_CODE": "11",
	}
	if diff := cmp.Diff(want, got.fields); diff != "" {
		t.Fatalf("fields mismatch (-want +got):\n%s", diff)
	}
}

func TestJournalHandlerLevel(t *testing.T) {
	h, captured := newCapturingJournal(slog.LevelWarn)
	logger := slog.New(h)
	logger.Info("dropped")
	logger.Error("kept", "at", time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))

	if len(*captured) != 1 {
		t.Fatalf("expected one journal entry, got %d", len(*captured))
	}
	entry := (*captured)[0]
	if entry.priority != journal.PriErr {
		t.Fatalf("expected error priority, got %v", entry.priority)
	}
	if entry.fields["AT"] != "2024-01-02T03:04:05Z" {
		t.Fatalf("unexpected time field %q", entry.fields["AT"])
	}
	if h.Enabled(context.Background(), slog.LevelDebug) {
		t.Fatal("debug should be disabled at warn level")
	}
}
