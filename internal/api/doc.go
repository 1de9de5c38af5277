// Package api hosts the HTTP server, middleware, and handlers of the world
// clock. Notable routes:
//   - GET /healthz / readyz for Kubernetes probes.
//   - GET /metrics for Prometheus scraping.
//   - GET/POST/PUT /v1/state... to read and change the selected city and language.
//   - GET /v1/frame and /v1/convert for one-shot renders and conversions.
//   - GET /v1/stream for a Server-Sent Events feed of frames.
package api
