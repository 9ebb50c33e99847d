// Package reaper observes child termination asynchronously.
//
// The runtime's signal handler only records that SIGCHLD arrived. A
// collector goroutine then drains every changed child with a non-blocking
// wait4 and publishes one events.ChildTerminated per change. Several
// pending notifications may be coalesced into one signal; draining until
// wait4 reports nothing left keeps every change observable regardless.
//
// Collecting the status reaps the child, so no zombie entries remain.
// Stopped and continued children are reported but stay alive.
package reaper
