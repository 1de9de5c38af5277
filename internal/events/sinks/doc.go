// Package sinks implements the event consumers: structured logging,
// Prometheus collectors, and the broadcaster that feeds stream subscribers.
package sinks
