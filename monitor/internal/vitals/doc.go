// Package vitals turns a raw sensor buffer into a bounded vital-sign
// estimate.
//
// engine.go holds Engine, built with NewEngine(Conditioner, Rand, ...Option).
// The signal-conditioning capability and the randomness source are both
// injected so tests can pin a seed and assert clamp bounds.
//
// Estimators (one file each):
//   - spo2.go: camera, ≥100 samples. Heart rate from peak spacing at an
//     assumed 30 fps, clamped 40–180, falling back to 65–85 when fewer than
//     two peaks are found. SpO2 is a single-channel heuristic around 97%
//     whose spread narrows as signal quality improves, clamped 90–100.
//   - respiratory.go: microphone, ≥50 samples. Rising crossings of the
//     smoothed mean divided by the configured collection duration; values
//     outside 8–30 are replaced by a 12–20 estimate.
//   - bloodpressure.go: accelerometer, ≥30 values as x,y,z triples. Axis
//     stability picks a ±15/±10 or ±8/±5 band around 120/80, clamped to
//     90–180 / 50–110.
//
// The only error an estimator returns is *InsufficientDataError. Too few
// peaks and implausible rates are absorbed into fallback estimates.
//
// classify.go maps an estimate to the normal/low/high/hypertension
// categories shown next to a reading.
package vitals
