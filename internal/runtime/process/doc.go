// Package process starts children by re-executing the running binary with
// the hidden child subcommand, which is the Go equivalent of duplicating
// the calling process.
//
// Spawned children are never waited on here. The os.Process handle is
// released right after start so that the reaper remains the only collector
// of their status.
//
// On Linux each child is asked to receive SIGKILL when the parent dies, so
// an interrupted parent does not leave orphans behind. Elsewhere children
// simply finish their work.
package process
