package signal

// Toolkit exposes the package functions as methods so they can be injected
// into estimators through an interface. The zero value is ready to use.
type Toolkit struct{}

func (Toolkit) Smooth(values []float64, radius int) []float64 { return Smooth(values, radius) }
func (Toolkit) Stability(values []float64) float64            { return Stability(values) }
func (Toolkit) Quality(values []float64) float64              { return Quality(values) }
func (Toolkit) AdaptiveThreshold(values []float64) float64    { return AdaptiveThreshold(values) }
func (Toolkit) Mean(values []float64) float64                 { return Mean(values) }

func (Toolkit) CountRisingCrossings(values []float64, level float64) int {
	return CountRisingCrossings(values, level)
}

func (Toolkit) Deinterleave(values []float64, width int) [][]float64 {
	return Deinterleave(values, width)
}
