// Package metrics exposes workflow and status check counters on a dedicated
// Prometheus listener.
package metrics
