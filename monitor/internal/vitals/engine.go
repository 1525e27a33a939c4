package vitals

import (
	"fmt"
	"math"
	"time"

	"github.com/vitalscan/vitalscan/pkg/types"
)

// Minimum buffer sizes per estimator.
const (
	MinCameraSamples        = 100
	MinMicrophoneSamples    = 50
	MinAccelerometerSamples = 30
)

// DefaultFrameRate is the camera frame rate assumed when converting peak
// spacing (in frames) to beats per minute.
const DefaultFrameRate = 30.0

// defaultRespiratoryWindow is used when a caller passes a non-positive
// collection duration.
const defaultRespiratoryWindow = 30 * time.Second

// Conditioner is the signal-conditioning capability the estimators depend on.
// signal.Toolkit is the production implementation.
type Conditioner interface {
	Smooth(values []float64, radius int) []float64
	Stability(values []float64) float64
	Quality(values []float64) float64
	AdaptiveThreshold(values []float64) float64
	CountRisingCrossings(values []float64, level float64) int
	Mean(values []float64) float64
	Deinterleave(values []float64, width int) [][]float64
}

// Rand is the randomness source used for fallback estimates and perturbation.
// *math/rand.Rand satisfies it.
type Rand interface {
	Float64() float64
}

// Engine runs the per-vital estimators. Its methods never mutate the engine,
// but Rand implementations are usually not safe for concurrent use, so an
// Engine should be driven by one goroutine at a time (the session guarantees
// this).
type Engine struct {
	cond      Conditioner
	rng       Rand
	frameRate float64
}

// Option configures an Engine.
type Option func(*Engine)

// WithFrameRate overrides the assumed camera frame rate.
func WithFrameRate(fps float64) Option {
	return func(e *Engine) {
		if fps > 0 {
			e.frameRate = fps
		}
	}
}

// NewEngine returns an Engine using cond for signal conditioning and rng for
// the randomized parts of each estimate.
func NewEngine(cond Conditioner, rng Rand, opts ...Option) *Engine {
	e := &Engine{cond: cond, rng: rng, frameRate: DefaultFrameRate}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Estimate dispatches buf to the estimator for kind. window is the configured
// collection duration; only the respiratory estimator uses it.
func (e *Engine) Estimate(kind types.Kind, buf *types.SampleBuffer, window time.Duration) (types.Estimate, error) {
	if buf != nil && buf.Sensor != kind.Sensor() {
		return types.Estimate{}, fmt.Errorf("vitals: %s from %s: %w", kind, buf.Sensor, ErrSensorMismatch)
	}
	switch kind {
	case types.KindSpO2HeartRate:
		return e.SpO2HeartRate(buf)
	case types.KindRespiratory:
		return e.RespiratoryRate(buf, window)
	case types.KindBloodPressure:
		return e.BloodPressure(buf)
	}
	return types.Estimate{}, fmt.Errorf("vitals: unknown measurement kind %q", kind)
}

// spread returns a uniform value in [-variation, +variation].
func (e *Engine) spread(variation float64) float64 {
	return (e.rng.Float64()*2 - 1) * variation
}

// pick returns base + floor(r·width), an integer in [base, base+width).
func (e *Engine) pick(base, width int) int {
	return base + int(math.Floor(e.rng.Float64()*float64(width)))
}

// clampInt restricts v to [lo, hi].
func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// round rounds half away from zero and converts to int.
func round(v float64) int {
	return int(math.Round(v))
}
