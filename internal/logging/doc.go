// Package logging configures the process-wide slog logger used for
// diagnostics. Diagnostics always go to stderr so that the report lines on
// stdout stay free of log records. The journal format writes to the systemd
// journal instead and falls back to JSON when no journal is reachable.
package logging
