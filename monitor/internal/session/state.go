package session

import (
	"errors"
	"time"

	"github.com/vitalscan/vitalscan/pkg/types"
)

var (
	// ErrSessionBusy is returned by Start while a measurement is collecting
	// or inferring.
	ErrSessionBusy = errors.New("a measurement is already in progress")

	// ErrPermissionDenied is returned when the collector refuses the sensor.
	ErrPermissionDenied = errors.New("sensor permission denied")

	// ErrCancelled is returned by Start when the measurement was cancelled.
	ErrCancelled = errors.New("measurement cancelled")

	// ErrUnknownKind is returned by Start for a kind no estimator handles.
	ErrUnknownKind = errors.New("unknown measurement kind")
)

// Phase is the position of the session in its state machine.
type Phase string

const (
	PhaseIdle       Phase = "idle"
	PhaseCollecting Phase = "collecting"
	PhaseInferring  Phase = "inferring"
	PhaseComplete   Phase = "complete"
	PhaseFailed     Phase = "failed"
	PhaseCancelled  Phase = "cancelled"
)

// Active reports whether a measurement is running in this phase.
func (p Phase) Active() bool {
	return p == PhaseCollecting || p == PhaseInferring
}

// State is an observable snapshot of the session.
type State struct {
	Phase    Phase         `json:"phase"`
	Progress int           `json:"progress"`
	Kind     types.Kind    `json:"kind,omitempty"`
	Current  *types.Record `json:"current,omitempty"`
	Error    string        `json:"error,omitempty"`

	// Err is the error behind Error, for errors.Is checks by drivers.
	Err error `json:"-"`
}

// clone returns a State that shares nothing with s.
func (s State) clone() State {
	if s.Current != nil {
		rec := *s.Current
		s.Current = &rec
	}
	return s
}

// Outcome is how a measurement ended.
type Outcome string

const (
	OutcomeComplete  Outcome = "complete"
	OutcomeFailed    Outcome = "failed"
	OutcomeCancelled Outcome = "cancelled"
)

// Event is delivered to every hook once per finished measurement.
type Event struct {
	Kind    types.Kind
	Outcome Outcome
	// Record is set only for OutcomeComplete.
	Record *types.Record
	// Err is the error Start returned, nil on success.
	Err     error
	Elapsed time.Duration
}
