// Package server provides the HTTP surface of the exporter.
//
// Available endpoints:
//   - /           : JSON status summary (readiness, last poll, window)
//   - /metrics    : Prometheus metrics endpoint
//   - /health     : Liveness probe (always returns 200)
//   - /ready      : Readiness probe (200 only after one successful poll)
//
// The server is configured with sensible timeout defaults and supports
// graceful shutdown via Shutdown.
package server
