package vitals

import (
	"github.com/vitalscan/vitalscan/pkg/types"
)

const (
	baselineSystolic  = 120.0
	baselineDiastolic = 80.0

	minSystolic  = 90
	maxSystolic  = 180
	minDiastolic = 50
	maxDiastolic = 110

	// Below this axis stability the wider variation band is used.
	bpQualityCutoff = 0.5
)

// BloodPressure estimates systolic and diastolic pressure from interleaved
// accelerometer samples. Steadier motion narrows the band around 120/80.
func (e *Engine) BloodPressure(buf *types.SampleBuffer) (types.Estimate, error) {
	if err := requireSamples(types.KindBloodPressure, buf, MinAccelerometerSamples); err != nil {
		return types.Estimate{}, err
	}

	quality := e.motionQuality(buf.Values)

	sysVar, diaVar := 8.0, 5.0
	if quality < bpQualityCutoff {
		sysVar, diaVar = 15.0, 10.0
	}

	return types.Estimate{
		Kind:      types.KindBloodPressure,
		Timestamp: buf.Start,
		Systolic:  clampInt(round(baselineSystolic+e.spread(sysVar)), minSystolic, maxSystolic),
		Diastolic: clampInt(round(baselineDiastolic+e.spread(diaVar)), minDiastolic, maxDiastolic),
		Quality:   quality,
	}, nil
}

// motionQuality is the mean stability of the x, y and z axes.
func (e *Engine) motionQuality(values []float64) float64 {
	axes := e.cond.Deinterleave(values, 3)
	var sum float64
	for _, axis := range axes {
		sum += e.cond.Stability(axis)
	}
	return sum / float64(len(axes))
}
