// Package main hosts the worldclock service entrypoint.
//
// Architecture overview:
//   - HTTP API: internal/api.Server exposes health, metrics, the clock state, one-shot frames and
//     conversions, and a Server-Sent Events stream of frames.
//   - State: internal/state.Controller owns the selected city and language. Every real change is saved
//     to the configured store (memory or Postgres) and announced on Pub/Sub when a topic is configured.
//   - Refresh: internal/refresh.Loop renders a frame per tick (every 50ms in frame mode, every second in
//     second mode) and re-renders at once when the state changes.
//   - Events: frames, second boundaries, state changes and timezone fallbacks flow through the
//     internal/events Hub to a zap log sink, Prometheus collectors, and the stream broadcaster.
//   - Configuration & plumbing: Viper populates config from env (WORLDCLOCK_*) and an optional file; zap
//     provides structured logging; Prometheus metrics are exported at /metrics.
//
// Operational notes:
//   - A timezone that cannot be resolved never stops the display. The frame shows UTC, carries
//     "fallback": true, and the fallback is logged and counted.
//   - The process reacts to SIGINT/SIGTERM: the refresh loop stops, open streams end, in-flight requests
//     drain, and the publisher and store are closed.
//
// Quick checklist:
//   - Configure env vars: WORLDCLOCK_SERVER_PORT, WORLDCLOCK_REFRESH_MODE (frame|second),
//     WORLDCLOCK_DISPLAY_DEFAULT_CITY, WORLDCLOCK_DISPLAY_DEFAULT_LANGUAGE, WORLDCLOCK_STORE_DRIVER and
//     WORLDCLOCK_STORE_DSN for Postgres, WORLDCLOCK_PUBSUB_PROJECT_ID and WORLDCLOCK_PUBSUB_TOPIC_NAME.
//   - Run locally: go run ./cmd/worldclock -config config.yaml (or rely solely on env overrides).
package main
