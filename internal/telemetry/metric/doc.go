// Package metric holds the Prometheus metrics of the store daemon.
//
// Components receive a *ServerMetrics (or nil) instead of touching the
// global registry, so tests can use a private registry:
//
//	reg := metric.NewRegistry()
//	m := metric.MustServerMetrics(reg)
//	http.Handle("/metrics", metric.Handler(reg))
package metric
