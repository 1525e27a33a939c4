package vitals

import (
	"errors"
	"fmt"

	"github.com/vitalscan/vitalscan/pkg/types"
)

// ErrInsufficientData is matched by every *InsufficientDataError.
var ErrInsufficientData = errors.New("insufficient data collected for analysis")

// ErrSensorMismatch is returned by Estimate when a buffer's sensor tag does not
// feed the requested measurement kind.
var ErrSensorMismatch = errors.New("buffer sensor does not match measurement kind")

// InsufficientDataError reports a buffer shorter than an estimator's floor.
type InsufficientDataError struct {
	Kind types.Kind
	Got  int
	Min  int
}

func (e *InsufficientDataError) Error() string {
	return fmt.Sprintf("%s: %v: got %d samples, need at least %d",
		e.Kind, ErrInsufficientData, e.Got, e.Min)
}

// Is lets errors.Is(err, ErrInsufficientData) match.
func (e *InsufficientDataError) Is(target error) bool {
	return target == ErrInsufficientData
}

func requireSamples(kind types.Kind, buf *types.SampleBuffer, minimum int) error {
	if n := buf.Len(); n < minimum {
		return &InsufficientDataError{Kind: kind, Got: n, Min: minimum}
	}
	return nil
}
