package sensor

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/vitalscan/vitalscan/monitor/internal/config"
	"github.com/vitalscan/vitalscan/pkg/types"
)

// Native sample cadences, matching what the device bindings deliver.
const (
	CameraRate        = 30.0 // frames per second
	MicrophoneRate    = 10.0 // analyser reads per second
	AccelerometerRate = 60.0 // motion events per second, 3 values each
)

// ErrTransport is matched by every *TransportError.
var ErrTransport = errors.New("sensor transport failure")

// ErrHardwareBusy is a common TransportError cause: another process holds
// the device.
var ErrHardwareBusy = errors.New("sensor hardware busy")

// TransportError wraps a collector failure with the sensor it came from.
type TransportError struct {
	Sensor types.SensorKind
	Err    error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s: %v: %v", e.Sensor, ErrTransport, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// Is lets errors.Is(err, ErrTransport) match.
func (e *TransportError) Is(target error) bool { return target == ErrTransport }

// Collector is the contract the measurement session consumes.
type Collector interface {
	// RequestPermission asks for access to the sensor. Denial returns false.
	RequestPermission(ctx context.Context, kind types.SensorKind) bool

	// Collect gathers samples for window and returns them as one buffer.
	// It must release the sensor on every exit path and return promptly
	// once ctx is cancelled.
	Collect(ctx context.Context, kind types.SensorKind, window time.Duration) (*types.SampleBuffer, error)
}

// New returns the Collector selected by cfg.Mode.
func New(cfg config.SensorConfig) (Collector, error) {
	switch cfg.Mode {
	case "synthetic", "":
		return NewSynthetic(cfg.Synthetic), nil
	case "replay":
		r, err := LoadReplay(cfg.ReplayFile)
		if err != nil {
			return nil, fmt.Errorf("sensor: %w", err)
		}
		return r, nil
	default:
		return nil, fmt.Errorf("sensor: unsupported mode %q", cfg.Mode)
	}
}

// wait blocks for window or until ctx is done, whichever comes first.
func wait(ctx context.Context, window time.Duration) error {
	t := time.NewTimer(window)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
