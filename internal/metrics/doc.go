// Package metrics exposes Prometheus metrics for the broadcaster: lines read
// and delivered, subscriber churn, rejected and failed upgrades, and HTTP
// request latency. All metrics are registered on a private registry built by
// NewRegistry and served by Handler at /metrics.
package metrics
