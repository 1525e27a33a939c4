// Package metrics counts measurement outcomes and renders them in the
// Prometheus text exposition format. It also reads that format back, which
// vitalsctl uses to summarise a running monitor.
package metrics
