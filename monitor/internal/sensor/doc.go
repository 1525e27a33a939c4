// Package sensor provides the collectors that hand the measurement session a
// buffer of raw samples.
//
// Real device bindings (camera frames, microphone analyser, motion events)
// live outside this module. Every collector implements Collector:
//
//	RequestPermission(ctx, kind) bool   // false on denial, never an error
//	Collect(ctx, kind, window) (*types.SampleBuffer, error)
//
// Collect blocks for the whole window. Expiry of the window is the success
// signal. Cancelling ctx ends collection early with ctx.Err() and drops the
// partial buffer. Device failures are returned as *TransportError.
//
// Implemented collectors: Synthetic (synthetic.go) generates plausible
// waveforms for each sensor at its native cadence; Replay (replay.go) serves
// recorded buffers from a YAML file. Factory: New(config.SensorConfig).
package sensor
