package sensor

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vitalscan/vitalscan/pkg/types"
)

var (
	errUnknownSensor = errors.New("unknown sensor")
	errNoRecording   = errors.New("no recording for sensor")
)

// Recording is one captured buffer in a replay file.
type Recording struct {
	Sensor string    `yaml:"sensor"`
	Values []float64 `yaml:"values"`
}

// replayFile is the on-disk layout:
//
//	realtime: true
//	recordings:
//	  - sensor: camera
//	    values: [121.4, 121.9, ...]
type replayFile struct {
	// Realtime makes Collect hold for the full window like a live sensor.
	// When false the recording is returned immediately.
	Realtime   bool        `yaml:"realtime"`
	Recordings []Recording `yaml:"recordings"`
}

// Replay serves previously captured buffers. Each sensor's most recent
// recording in the file wins.
type Replay struct {
	realtime bool
	byKind   map[types.SensorKind][]float64
	now      func() time.Time
}

// NewReplay builds a Replay from in-memory recordings.
func NewReplay(realtime bool, recs ...Recording) (*Replay, error) {
	r := &Replay{
		realtime: realtime,
		byKind:   make(map[types.SensorKind][]float64, len(recs)),
		now:      time.Now,
	}
	for i, rec := range recs {
		kind := types.SensorKind(rec.Sensor)
		if !kind.Valid() {
			return nil, fmt.Errorf("recordings[%d]: unknown sensor %q", i, rec.Sensor)
		}
		r.byKind[kind] = rec.Values
	}
	return r, nil
}

// LoadReplay reads and parses the YAML replay file at path.
func LoadReplay(path string) (*Replay, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("replay: read file: %w", err)
	}
	var f replayFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("replay: parse yaml: %w", err)
	}
	r, err := NewReplay(f.Realtime, f.Recordings...)
	if err != nil {
		return nil, fmt.Errorf("replay: %w", err)
	}
	return r, nil
}

// RequestPermission grants every known sensor. A sensor without a recording
// fails later in Collect with a TransportError.
func (r *Replay) RequestPermission(_ context.Context, kind types.SensorKind) bool {
	return kind.Valid()
}

// Collect returns a copy of the recording for kind.
func (r *Replay) Collect(ctx context.Context, kind types.SensorKind, window time.Duration) (*types.SampleBuffer, error) {
	values, ok := r.byKind[kind]
	if !ok {
		return nil, &TransportError{Sensor: kind, Err: errNoRecording}
	}
	started := r.now()
	if r.realtime {
		if err := wait(ctx, window); err != nil {
			return nil, err
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &types.SampleBuffer{
		Sensor: kind,
		Start:  started,
		Values: append([]float64(nil), values...),
	}, nil
}
