// Package signal provides the stateless conditioning primitives shared by
// every vital-sign estimator.
//
// signal.go holds the pure functions:
//   - Smooth(values, radius): centred moving average, same length as input
//   - Stability(values): 1 - cv/0.5 clamped to 0–1 (cv = std/(mean+1e-4))
//   - Quality(values): trend-to-noise ratio over a 10-sample window, /20, 0–1
//   - AdaptiveThreshold(values): mean + 0.5·std, the peak-detection cutoff
//   - CountRisingCrossings(values, level): upward crossings of level
//
// Standard deviations are population (divide by N), computed with gonum/stat.
//
// toolkit.go wraps the functions in a Toolkit value so estimators receive
// conditioning as an injected capability instead of calling package state.
package signal
