package vitals

import (
	"github.com/vitalscan/vitalscan/pkg/types"
)

// Physiological bounds for the camera estimator.
const (
	minHeartRate = 40
	maxHeartRate = 180

	// Fallback heart rate when the waveform has fewer than two peaks.
	fallbackHeartRateBase  = 65
	fallbackHeartRateWidth = 20

	baselineSpO2 = 97.0
	minSpO2      = 90
	maxSpO2      = 100
)

// SpO2HeartRate estimates oxygen saturation and heart rate from a camera
// intensity buffer (mean red-channel brightness per frame).
func (e *Engine) SpO2HeartRate(buf *types.SampleBuffer) (types.Estimate, error) {
	if err := requireSamples(types.KindSpO2HeartRate, buf, MinCameraSamples); err != nil {
		return types.Estimate{}, err
	}

	quality := e.cond.Quality(buf.Values)
	return types.Estimate{
		Kind:      types.KindSpO2HeartRate,
		Timestamp: buf.Start,
		HeartRate: e.heartRate(buf.Values),
		SpO2:      e.spo2(quality),
		Quality:   quality,
	}, nil
}

// heartRate converts the mean spacing between waveform peaks into beats per
// minute.
func (e *Engine) heartRate(values []float64) int {
	peaks := e.peaks(values)
	if len(peaks) < 2 {
		return e.pick(fallbackHeartRateBase, fallbackHeartRateWidth)
	}

	meanInterval := float64(peaks[len(peaks)-1]-peaks[0]) / float64(len(peaks)-1)
	bpm := round(60 * e.frameRate / meanInterval)
	return clampInt(bpm, minHeartRate, maxHeartRate)
}

// peaks returns the interior indices that are strict local maxima above the
// adaptive threshold.
func (e *Engine) peaks(values []float64) []int {
	threshold := e.cond.AdaptiveThreshold(values)
	var out []int
	for i := 1; i < len(values)-1; i++ {
		if values[i] > values[i-1] && values[i] > values[i+1] && values[i] > threshold {
			out = append(out, i)
		}
	}
	return out
}

// spo2 is a single-channel approximation: true pulse oximetry needs the ratio
// of two wavelengths, which a camera intensity trace does not provide. The
// spread around the baseline shrinks as signal quality rises.
func (e *Engine) spo2(quality float64) int {
	var variation float64
	switch {
	case quality < 0.5:
		variation = 3
	case quality < 0.8:
		variation = 1.5
	default:
		variation = 0.5
	}
	return clampInt(round(baselineSpO2+e.spread(variation)), minSpO2, maxSpO2)
}
