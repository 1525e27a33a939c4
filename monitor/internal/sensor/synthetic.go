package sensor

import (
	"context"
	"log/slog"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/vitalscan/vitalscan/monitor/internal/config"
	"github.com/vitalscan/vitalscan/pkg/types"
)

// Synthetic generates sensor buffers from simple physiological models: a
// narrow pulse train for the camera, a slow sinusoid for breath sounds and a
// faint ballistocardiogram on top of gravity for the accelerometer.
//
// It behaves like a real device for the session's purposes. Collect holds
// the sensor open for the whole window and a second concurrent Collect on
// the same sensor fails with ErrHardwareBusy.
type Synthetic struct {
	cfg  config.SyntheticConfig
	deny map[types.SensorKind]bool
	now  func() time.Time // injectable for deterministic tests

	mu   sync.Mutex
	rng  *rand.Rand
	open map[types.SensorKind]bool
}

// NewSynthetic returns a Synthetic collector configured by cfg.
// A zero Seed seeds from the clock.
func NewSynthetic(cfg config.SyntheticConfig) *Synthetic {
	seed := cfg.Seed
	if seed == 0 {
		seed = time.Now().UnixNano()
	}
	deny := make(map[types.SensorKind]bool, len(cfg.Deny))
	for _, d := range cfg.Deny {
		deny[types.SensorKind(d)] = true
	}
	return &Synthetic{
		cfg:  cfg,
		deny: deny,
		now:  time.Now,
		rng:  rand.New(rand.NewSource(seed)), //nolint:gosec // waveform noise
		open: make(map[types.SensorKind]bool),
	}
}

// RequestPermission grants every sensor not listed in the deny list.
func (s *Synthetic) RequestPermission(_ context.Context, kind types.SensorKind) bool {
	return kind.Valid() && !s.deny[kind]
}

// Active returns how many sensors are currently held open.
func (s *Synthetic) Active() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.open)
}

// Collect holds the sensor for window, then returns the generated samples.
func (s *Synthetic) Collect(ctx context.Context, kind types.SensorKind, window time.Duration) (*types.SampleBuffer, error) {
	if !kind.Valid() {
		return nil, &TransportError{Sensor: kind, Err: errUnknownSensor}
	}
	release, err := s.acquire(kind)
	if err != nil {
		return nil, err
	}
	defer release()

	started := s.now()
	slog.Debug("sensor: synthetic collection started", "sensor", kind, "window", window)

	if err := wait(ctx, window); err != nil {
		slog.Debug("sensor: synthetic collection cancelled", "sensor", kind, "err", err)
		return nil, err
	}

	return &types.SampleBuffer{
		Sensor: kind,
		Start:  started,
		Values: s.generate(kind, window),
	}, nil
}

// acquire marks kind as open and returns the matching release.
func (s *Synthetic) acquire(kind types.SensorKind) (func(), error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.open[kind] {
		return nil, &TransportError{Sensor: kind, Err: ErrHardwareBusy}
	}
	s.open[kind] = true
	return func() {
		s.mu.Lock()
		delete(s.open, kind)
		s.mu.Unlock()
	}, nil
}

func (s *Synthetic) generate(kind types.SensorKind, window time.Duration) []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()

	secs := window.Seconds()
	switch kind {
	case types.SensorCamera:
		return cameraWave(s.rng, int(secs*CameraRate), s.cfg.HeartRate, s.cfg.Noise)
	case types.SensorMicrophone:
		return breathWave(s.rng, int(secs*MicrophoneRate), s.cfg.BreathRate, s.cfg.Noise)
	default:
		return motionWave(s.rng, int(secs*AccelerometerRate), s.cfg.HeartRate, s.cfg.Noise)
	}
}

// cameraWave returns n frames of mean red intensity with a Gaussian pulse per
// heartbeat. The pulse is narrow so noise does not create spurious maxima
// near its top.
func cameraWave(rng *rand.Rand, n int, bpm, noise float64) []float64 {
	const (
		baseline  = 120.0
		amplitude = 25.0
		width     = 1.5 // frames
	)
	period := CameraRate * 60 / bpm
	out := make([]float64, n)
	for i := range out {
		phase := math.Mod(float64(i), period)
		d := math.Min(phase, period-phase)
		pulse := math.Exp(-(d * d) / (2 * width * width))
		out[i] = baseline + amplitude*pulse + rng.NormFloat64()*noise*amplitude
	}
	return out
}

// breathWave returns n low-band amplitude readings rising and falling once per
// breath.
func breathWave(rng *rand.Rand, n int, perMinute, noise float64) []float64 {
	const (
		baseline  = 40.0
		amplitude = 15.0
	)
	out := make([]float64, n)
	for i := range out {
		t := float64(i) / MicrophoneRate
		out[i] = baseline + amplitude*math.Sin(2*math.Pi*perMinute/60*t) + rng.NormFloat64()*noise*amplitude
	}
	return out
}

// motionWave returns n interleaved x,y,z events: a resting phone with a faint
// recoil on the z axis at each heartbeat.
func motionWave(rng *rand.Rand, n int, bpm, noise float64) []float64 {
	const gravity = 9.81
	out := make([]float64, 0, n*3)
	for i := 0; i < n; i++ {
		t := float64(i) / AccelerometerRate
		beat := 0.02 * math.Sin(2*math.Pi*bpm/60*t)
		out = append(out,
			0.05+rng.NormFloat64()*noise*0.1,
			0.12+rng.NormFloat64()*noise*0.1,
			gravity+beat+rng.NormFloat64()*noise*0.1,
		)
	}
	return out
}
