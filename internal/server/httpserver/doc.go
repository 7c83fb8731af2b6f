// Package httpserver provides the daemon's admin HTTP endpoint.
//
// It serves the operational surface next to the store protocol:
//
//   - GET /health: liveness, always 200 while the process runs
//   - GET /ready: readiness, 503 when the ready check fails
//   - GET /metrics: Prometheus exposition
//
// Every route runs behind Recover, RequestID and AccessLog. The store
// itself is never reachable over HTTP.
package httpserver
