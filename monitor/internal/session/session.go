package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/vitalscan/vitalscan/monitor/internal/config"
	"github.com/vitalscan/vitalscan/monitor/internal/sensor"
	"github.com/vitalscan/vitalscan/monitor/internal/store"
	"github.com/vitalscan/vitalscan/pkg/types"
)

// Estimator turns a collected buffer into an estimate. *vitals.Engine
// satisfies it.
type Estimator interface {
	Estimate(kind types.Kind, buf *types.SampleBuffer, window time.Duration) (types.Estimate, error)
}

// Option configures a Session.
type Option func(*Session)

// WithHook registers fn to receive an Event after every measurement.
// Hooks run on the measurement goroutine after the state has settled, before
// the session accepts the next Start, so a hook must not call Start itself.
func WithHook(fn func(Event)) Option {
	return func(s *Session) { s.hooks = append(s.hooks, fn) }
}

// Session is the single-measurement state machine.
type Session struct {
	collector sensor.Collector
	engine    Estimator
	history   *store.History
	hooks     []func(Event)
	now       func() time.Time // injectable for deterministic tests

	mu     sync.Mutex
	cfg    config.MeasurementConfig
	state  State
	gen    uint64 // bumped by every accepted Start
	cancel context.CancelFunc
	done   chan struct{} // closed when the latest run has fully unwound
}

// New returns an idle Session.
func New(collector sensor.Collector, engine Estimator, history *store.History, cfg config.MeasurementConfig, opts ...Option) *Session {
	s := &Session{
		collector: collector,
		engine:    engine,
		history:   history,
		now:       time.Now,
		cfg:       cfg,
		state:     State{Phase: PhaseIdle},
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetConfig replaces the measurement settings. A measurement already
// running keeps the settings it started with.
func (s *Session) SetConfig(cfg config.MeasurementConfig) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cfg = cfg
}

// run carries everything one measurement needs after Start accepted it.
type run struct {
	ctx     context.Context
	cancel  context.CancelFunc
	gen     uint64
	kind    types.Kind
	window  time.Duration
	step    int
	ceiling int
	tick    time.Duration
	started time.Time
	done    chan struct{}
}

// Start runs a measurement of kind and blocks until it completes, fails or
// is cancelled. It returns ErrSessionBusy immediately, without touching the
// running measurement, if one is already collecting or inferring.
func (s *Session) Start(ctx context.Context, kind types.Kind) (types.Record, error) {
	r, err := s.begin(ctx, kind)
	if err != nil {
		return types.Record{}, err
	}
	return s.execute(r)
}

// Launch is Start without waiting. Errors that Start would return before
// collection begins (busy, unknown kind) are returned directly; the outcome
// of the measurement itself is observable through State and hooks.
func (s *Session) Launch(ctx context.Context, kind types.Kind) error {
	r, err := s.begin(ctx, kind)
	if err != nil {
		return err
	}
	go s.execute(r) //nolint:errcheck // outcome reaches callers via State and hooks
	return nil
}

func (s *Session) begin(parent context.Context, kind types.Kind) (*run, error) {
	if _, err := types.ParseKind(string(kind)); err != nil {
		return nil, fmt.Errorf("session: %w %q", ErrUnknownKind, kind)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for {
		if s.state.Phase.Active() {
			return nil, ErrSessionBusy
		}
		prev := s.done
		if prev == nil || isClosed(prev) {
			break
		}
		// A cancelled run still holds the sensor until its collector returns.
		s.mu.Unlock()
		select {
		case <-prev:
			s.mu.Lock()
		case <-parent.Done():
			s.mu.Lock()
			return nil, fmt.Errorf("session: %s: %w", kind, ErrCancelled)
		}
	}

	ctx, cancel := context.WithCancel(parent)
	s.gen++
	s.cancel = cancel
	s.done = make(chan struct{})
	s.state = State{Phase: PhaseCollecting, Kind: kind}

	return &run{
		ctx:     ctx,
		cancel:  cancel,
		gen:     s.gen,
		kind:    kind,
		window:  s.cfg.Duration(kind),
		step:    s.cfg.ProgressStep,
		ceiling: s.cfg.ProgressCap,
		tick:    s.cfg.ProgressInterval,
		started: s.now(),
		done:    s.done,
	}, nil
}

func isClosed(ch <-chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

func (s *Session) execute(r *run) (types.Record, error) {
	defer close(r.done)
	defer r.cancel()

	sensorKind := r.kind.Sensor()
	slog.Info("session: measurement started", "kind", r.kind, "sensor", sensorKind, "window", r.window)

	if !s.collector.RequestPermission(r.ctx, sensorKind) {
		if r.ctx.Err() != nil {
			return s.cancelled(r)
		}
		return s.failed(r, fmt.Errorf("session: %s: %w", sensorKind, ErrPermissionDenied))
	}

	stop := s.startProgress(r)
	buf, err := s.collector.Collect(r.ctx, sensorKind, r.window)
	stop()

	if r.ctx.Err() != nil {
		// Anything the collector produced after cancellation is discarded.
		return s.cancelled(r)
	}
	if err != nil {
		var te *sensor.TransportError
		if !errors.As(err, &te) {
			err = &sensor.TransportError{Sensor: sensorKind, Err: err}
		}
		return s.failed(r, fmt.Errorf("session: collect: %w", err))
	}

	if !s.transition(r, PhaseCollecting, PhaseInferring) {
		return s.cancelled(r)
	}

	est, err := s.engine.Estimate(r.kind, buf, r.window)
	if err != nil {
		return s.failed(r, fmt.Errorf("session: infer: %w", err))
	}
	return s.complete(r, est)
}

// transition moves from one phase to the next if r still owns the session
// and the session is in from.
func (s *Session) transition(r *run, from, to Phase) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != r.gen || s.state.Phase != from {
		return false
	}
	s.state.Phase = to
	return true
}

// startProgress runs the advisory progress ticker until the returned stop
// func is called. stop blocks until the ticker goroutine has exited.
func (s *Session) startProgress(r *run) (stop func()) {
	if r.tick <= 0 || r.step <= 0 {
		return func() {}
	}
	done := make(chan struct{})
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		t := time.NewTicker(r.tick)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-t.C:
				s.advance(r)
			}
		}
	}()
	return func() {
		close(done)
		wg.Wait()
	}
}

func (s *Session) advance(r *run) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != r.gen || s.state.Phase != PhaseCollecting {
		return
	}
	s.state.Progress = min(s.state.Progress+r.step, r.ceiling)
}

func (s *Session) complete(r *run, est types.Estimate) (types.Record, error) {
	s.mu.Lock()
	if s.gen != r.gen || s.state.Phase != PhaseInferring {
		s.mu.Unlock()
		return s.cancelled(r)
	}
	rec := s.history.Add(est)
	s.state.Phase = PhaseComplete
	s.state.Progress = 100
	s.state.Current = &rec
	s.state.Error = ""
	s.state.Err = nil
	s.cancel = nil
	s.mu.Unlock()

	slog.Info("session: measurement complete", "kind", r.kind, "id", rec.ID, "result", est.String(), "quality", est.Quality)
	s.notify(Event{Kind: r.kind, Outcome: OutcomeComplete, Record: &rec, Elapsed: s.now().Sub(r.started)})
	return rec, nil
}

func (s *Session) failed(r *run, err error) (types.Record, error) {
	s.mu.Lock()
	if s.gen != r.gen || !s.state.Phase.Active() {
		s.mu.Unlock()
		return s.cancelled(r)
	}
	s.state.Phase = PhaseFailed
	s.state.Progress = 0
	s.state.Current = nil
	s.state.Error = err.Error()
	s.state.Err = err
	s.cancel = nil
	s.mu.Unlock()

	slog.Warn("session: measurement failed", "kind", r.kind, "err", err)
	s.notify(Event{Kind: r.kind, Outcome: OutcomeFailed, Err: err, Elapsed: s.now().Sub(r.started)})
	return types.Record{}, err
}

// cancelled settles a run that lost its context or its claim on the session.
// If the session still belongs to r (the parent context was cancelled rather
// than Cancel being called) the phase moves to cancelled here.
func (s *Session) cancelled(r *run) (types.Record, error) {
	s.mu.Lock()
	if s.gen == r.gen && s.state.Phase.Active() {
		s.state = State{Phase: PhaseCancelled, Kind: r.kind}
		s.cancel = nil
	}
	s.mu.Unlock()

	slog.Info("session: measurement cancelled", "kind", r.kind)
	err := fmt.Errorf("session: %s: %w", r.kind, ErrCancelled)
	s.notify(Event{Kind: r.kind, Outcome: OutcomeCancelled, Err: err, Elapsed: s.now().Sub(r.started)})
	return types.Record{}, err
}

func (s *Session) notify(ev Event) {
	for _, fn := range s.hooks {
		fn(ev)
	}
}

// Cancel stops the running measurement. The collector is signalled through
// the measurement's context so it releases the sensor; the blocked Start
// returns ErrCancelled. Cancel does not wait for that; the next Start does.
// Cancel reports whether there was anything to cancel.
func (s *Session) Cancel() bool {
	s.mu.Lock()
	if !s.state.Phase.Active() {
		s.mu.Unlock()
		return false
	}
	s.state = State{Phase: PhaseCancelled, Kind: s.state.Kind}
	cancel := s.cancel
	s.cancel = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	return true
}

// ResetCurrent clears the visible result and returns to idle. It is ignored
// while a measurement is running and reports whether it did anything.
func (s *Session) ResetCurrent() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state.Phase.Active() {
		return false
	}
	s.state = State{Phase: PhaseIdle}
	return true
}

// ClearHistory empties the measurement history and returns how many
// records were removed.
func (s *Session) ClearHistory() int {
	n := s.history.Clear()
	slog.Info("session: history cleared", "count", n)
	return n
}

// State returns a snapshot of the observable state.
func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state.clone()
}

// History returns every recorded measurement, newest first.
func (s *Session) History() []types.Record {
	return s.history.List()
}
