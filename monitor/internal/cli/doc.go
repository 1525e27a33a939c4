// Package cli implements the vitalsctl command tree. measure runs a
// session in-process against the configured collector; stats reads a
// running monitor's /metrics endpoint.
package cli
