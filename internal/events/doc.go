// Package events carries what the refresh loop observes (rendered frames,
// second boundaries, state changes, timezone fallbacks) to pluggable sinks.
// A Hub batches events on a background goroutine so the loop never waits on
// logging, metrics or stream subscribers.
package events
