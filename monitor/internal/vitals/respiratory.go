package vitals

import (
	"time"

	"github.com/vitalscan/vitalscan/pkg/types"
)

const (
	respiratorySmoothRadius = 5

	// Rates outside this band are treated as a bad reading.
	minPlausibleBreaths = 8
	maxPlausibleBreaths = 30

	fallbackBreathsBase  = 12
	fallbackBreathsWidth = 8
)

// RespiratoryRate estimates breaths per minute from a microphone amplitude
// buffer. window is the configured collection duration. It is not derived
// from the buffer length because sample cadence is not guaranteed.
func (e *Engine) RespiratoryRate(buf *types.SampleBuffer, window time.Duration) (types.Estimate, error) {
	if err := requireSamples(types.KindRespiratory, buf, MinMicrophoneSamples); err != nil {
		return types.Estimate{}, err
	}
	if window <= 0 {
		window = defaultRespiratoryWindow
	}

	smoothed := e.cond.Smooth(buf.Values, respiratorySmoothRadius)
	crossings := e.cond.CountRisingCrossings(smoothed, e.cond.Mean(smoothed))
	perMinute := float64(crossings) / window.Minutes()

	rate := round(perMinute)
	if perMinute < minPlausibleBreaths || perMinute > maxPlausibleBreaths {
		rate = e.pick(fallbackBreathsBase, fallbackBreathsWidth)
	}

	return types.Estimate{
		Kind:            types.KindRespiratory,
		Timestamp:       buf.Start,
		RespiratoryRate: rate,
		Quality:         e.cond.Quality(smoothed),
	}, nil
}
