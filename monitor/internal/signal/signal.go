package signal

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

const (
	// stabilityEpsilon keeps the coefficient of variation finite for
	// zero-mean signals.
	stabilityEpsilon = 1e-4

	// stabilityCVScale is the cv at which stability reaches 0.
	stabilityCVScale = 0.5

	// qualityWindow is the trend window used by Quality.
	qualityWindow = 10

	// qualitySNRScale maps a trend/noise ratio of 20 to full quality.
	qualitySNRScale = 20.0

	// thresholdStdDevs is how many standard deviations above the mean the
	// adaptive peak threshold sits.
	thresholdStdDevs = 0.5
)

// Mean returns the arithmetic mean of values, or 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	return stat.Mean(values, nil)
}

// meanStdDev returns the mean and population standard deviation of values.
func meanStdDev(values []float64) (mean, std float64) {
	if len(values) == 0 {
		return 0, 0
	}
	return stat.PopMeanStdDev(values, nil)
}

// Smooth returns the centred moving average of values. Output index i is the
// mean of values[max(0,i-radius) .. min(len-1,i+radius)], inclusive. A radius
// larger than the buffer simply averages everything in reach; a negative
// radius is treated as 0.
func Smooth(values []float64, radius int) []float64 {
	if radius < 0 {
		radius = 0
	}
	out := make([]float64, len(values))
	for i := range values {
		lo := max(0, i-radius)
		hi := min(len(values)-1, i+radius)
		out[i] = floats.Sum(values[lo:hi+1]) / float64(hi-lo+1)
	}
	return out
}

// Stability scores how steady a signal is from its coefficient of variation.
// 1 means perfectly flat, 0 means cv ≥ 0.5. Fewer than 2 samples scores 0.
func Stability(values []float64) float64 {
	if len(values) < 2 {
		return 0
	}
	mean, std := meanStdDev(values)
	cv := math.Abs(std / (mean + stabilityEpsilon))
	return clamp01(1 - cv/stabilityCVScale)
}

// Quality estimates signal-to-noise as the ratio of trend magnitude to the
// per-sample deviation from that trend, normalised to 0–1.
//
// The trend at i averages the half-open window [i-5, i+5), truncated at the
// buffer edges.
func Quality(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	half := qualityWindow / 2

	var signalSum, noiseSum float64
	for i, v := range values {
		lo := max(0, i-half)
		hi := min(len(values), i+half)
		trend := floats.Sum(values[lo:hi]) / float64(hi-lo)

		noiseSum += math.Abs(v - trend)
		signalSum += math.Abs(trend)
	}
	snr := signalSum / (noiseSum + 1)
	return clamp01(snr / qualitySNRScale)
}

// AdaptiveThreshold returns mean + 0.5·std over values. It is never below the
// mean. An empty slice returns 0.
func AdaptiveThreshold(values []float64) float64 {
	mean, std := meanStdDev(values)
	return mean + thresholdStdDevs*std
}

// CountRisingCrossings counts indices where values[i-1] < level and
// values[i] >= level. The scan is sequential: each decision depends on the
// previous sample.
func CountRisingCrossings(values []float64, level float64) int {
	n := 0
	for i := 1; i < len(values); i++ {
		if values[i-1] < level && values[i] >= level {
			n++
		}
	}
	return n
}

// Deinterleave splits values recorded as repeating groups of width channels
// (x,y,z,x,y,z,…) into one slice per channel. A trailing partial group is
// dropped so every channel has the same length.
func Deinterleave(values []float64, width int) [][]float64 {
	if width <= 0 {
		return nil
	}
	n := len(values) / width
	out := make([][]float64, width)
	for c := range out {
		out[c] = make([]float64, n)
	}
	for i := 0; i < n; i++ {
		for c := 0; c < width; c++ {
			out[c][i] = values[i*width+c]
		}
	}
	return out
}

// clamp01 restricts v to the range [0, 1].
func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
