// Package types defines the shared Go types passed between the sensor
// collectors, the inference engine, the measurement session and its drivers.
// These are the canonical in-memory representations of sensor buffers and
// vital-sign estimates, separate from the JSON shapes served by the API.
package types
