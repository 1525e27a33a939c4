package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/vitalscan/vitalscan/monitor/internal/alerts"
	"github.com/vitalscan/vitalscan/monitor/internal/api"
	"github.com/vitalscan/vitalscan/monitor/internal/config"
	"github.com/vitalscan/vitalscan/monitor/internal/sensor"
	"github.com/vitalscan/vitalscan/monitor/internal/session"
	"github.com/vitalscan/vitalscan/monitor/internal/signal"
	"github.com/vitalscan/vitalscan/monitor/internal/store"
	"github.com/vitalscan/vitalscan/monitor/internal/vitals"
	"github.com/vitalscan/vitalscan/pkg/types"
)

// --- test helpers -----------------------------------------------------------

// pulses is a camera recording with five clear peaks 24 frames apart (75 bpm).
func pulses() []float64 {
	v := make([]float64, 120)
	for i := range v {
		v[i] = 100
	}
	for _, at := range []int{10, 34, 58, 82, 106} {
		v[at] = 150
	}
	return v
}

type fixture struct {
	sess    *session.Session
	history *store.History
	alerts  *alerts.Engine
	h       http.Handler
}

func newFixture(t *testing.T, c sensor.Collector) *fixture {
	t.Helper()
	hist := store.New(0, 0)
	al := alerts.New(config.AlertsConfig{
		Rules: []config.AlertRule{{Name: "tachycardia", Condition: "heart_rate > 70", Severity: "warning"}},
	})
	engine := vitals.NewEngine(signal.Toolkit{}, rand.New(rand.NewSource(1)))
	sess := session.New(c, engine, hist, config.Defaults().Measurement,
		session.WithHook(func(ev session.Event) {
			if ev.Record != nil {
				al.Evaluate(*ev.Record)
			}
		}))
	return &fixture{sess: sess, history: hist, alerts: al, h: api.New(sess, hist, al)}
}

func replay(t *testing.T, realtime bool, recs ...sensor.Recording) sensor.Collector {
	t.Helper()
	r, err := sensor.NewReplay(realtime, recs...)
	if err != nil {
		t.Fatalf("NewReplay: %v", err)
	}
	return r
}

func do(t *testing.T, h http.Handler, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if s, ok := body.(string); ok {
			buf.WriteString(s)
		} else if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(method, path, &buf))
	return rr
}

func decode(t *testing.T, rr *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(rr.Body).Decode(v); err != nil {
		t.Fatalf("decode JSON: %v (body: %s)", err, rr.Body.String())
	}
}

func hasHint(hints []api.DiagnosticHint, key string) bool {
	for _, h := range hints {
		if h.Key == key {
			return true
		}
	}
	return false
}

// --- /api/v1/health ---------------------------------------------------------

func TestHealth(t *testing.T) {
	f := newFixture(t, replay(t, false))
	rr := do(t, f.h, http.MethodGet, "/api/v1/health", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", rr.Code)
	}
	var resp api.HealthResponse
	decode(t, rr, &resp)
	if resp.Status != "ok" || resp.Phase != session.PhaseIdle || resp.Records != 0 {
		t.Errorf("health: got %+v", resp)
	}
}

// --- /api/v1/measurements ---------------------------------------------------

func TestStart_Async(t *testing.T) {
	f := newFixture(t, replay(t, false, sensor.Recording{Sensor: "camera", Values: pulses()}))

	rr := do(t, f.h, http.MethodPost, "/api/v1/measurements", api.StartRequest{Kind: types.KindSpO2HeartRate})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("status: got %d, want 202 (body %s)", rr.Code, rr.Body.String())
	}

	deadline := time.Now().Add(2 * time.Second)
	var st api.StateResponse
	for {
		rr = do(t, f.h, http.MethodGet, "/api/v1/state", nil)
		st = api.StateResponse{}
		decode(t, rr, &st)
		if st.Phase == session.PhaseComplete {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("measurement did not complete, last state %+v", st)
		}
		time.Sleep(5 * time.Millisecond)
	}

	if st.Progress != 100 || st.Current == nil {
		t.Fatalf("state: got %+v", st)
	}
	if st.Current.HeartRate != 75 {
		t.Errorf("heart_rate: got %d, want 75", st.Current.HeartRate)
	}
	if st.Current.Status.HeartRate != vitals.CategoryNormal {
		t.Errorf("status.heart_rate: got %q", st.Current.Status.HeartRate)
	}
	if st.Current.Summary == "" {
		t.Error("summary is empty")
	}
}

func TestStart_Wait(t *testing.T) {
	f := newFixture(t, replay(t, false, sensor.Recording{Sensor: "camera", Values: pulses()}))

	rr := do(t, f.h, http.MethodPost, "/api/v1/measurements?wait=true", api.StartRequest{Kind: types.KindSpO2HeartRate})
	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201 (body %s)", rr.Code, rr.Body.String())
	}
	var rec api.RecordResponse
	decode(t, rr, &rec)
	if rec.ID == "" || rec.HeartRate != 75 || rec.Kind != types.KindSpO2HeartRate {
		t.Errorf("record: got %+v", rec)
	}
	if f.history.Len() != 1 {
		t.Errorf("history: got %d records, want 1", f.history.Len())
	}
}

func TestStart_Errors(t *testing.T) {
	tests := []struct {
		name   string
		rec    []sensor.Recording
		deny   []string
		path   string
		body   interface{}
		method string
		want   int
		hint   string
	}{
		{"unknown kind", nil, nil, "/api/v1/measurements", api.StartRequest{Kind: "temperature"}, http.MethodPost, http.StatusBadRequest, ""},
		{"bad json", nil, nil, "/api/v1/measurements", "{", http.MethodPost, http.StatusBadRequest, ""},
		{"wrong method", nil, nil, "/api/v1/measurements", nil, http.MethodGet, http.StatusMethodNotAllowed, ""},
		{
			"permission denied", nil, []string{"microphone"}, "/api/v1/measurements?wait=1",
			api.StartRequest{Kind: types.KindRespiratory}, http.MethodPost, http.StatusForbidden, "permission_denied",
		},
		{
			"no recording", nil, nil, "/api/v1/measurements?wait=true",
			api.StartRequest{Kind: types.KindRespiratory}, http.MethodPost, http.StatusBadGateway, "sensor_unavailable",
		},
		{
			"insufficient data", []sensor.Recording{{Sensor: "accelerometer", Values: make([]float64, 12)}}, nil,
			"/api/v1/measurements?wait=true",
			api.StartRequest{Kind: types.KindBloodPressure}, http.MethodPost, http.StatusUnprocessableEntity, "insufficient_data",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			var c sensor.Collector = replay(t, false, tc.rec...)
			if tc.deny != nil {
				c = sensor.NewSynthetic(config.SyntheticConfig{Deny: tc.deny})
			}
			f := newFixture(t, c)
			rr := do(t, f.h, tc.method, tc.path, tc.body)
			if rr.Code != tc.want {
				t.Fatalf("status: got %d, want %d (body %s)", rr.Code, tc.want, rr.Body.String())
			}
			if tc.hint == "" {
				return
			}
			var st api.StateResponse
			decode(t, do(t, f.h, http.MethodGet, "/api/v1/state", nil), &st)
			if st.Phase != session.PhaseFailed || !hasHint(st.Hints, tc.hint) {
				t.Errorf("state: got phase %s hints %+v, want failed with %s", st.Phase, st.Hints, tc.hint)
			}
		})
	}
}

func TestBusy_CancelAndReset(t *testing.T) {
	// A realtime replay holds the sensor for the full 30 s window.
	f := newFixture(t, replay(t, true, sensor.Recording{Sensor: "camera", Values: pulses()}))

	rr := do(t, f.h, http.MethodPost, "/api/v1/measurements", api.StartRequest{Kind: types.KindSpO2HeartRate})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("start: got %d", rr.Code)
	}

	rr = do(t, f.h, http.MethodPost, "/api/v1/measurements", api.StartRequest{Kind: types.KindSpO2HeartRate})
	if rr.Code != http.StatusConflict {
		t.Errorf("second start: got %d, want 409", rr.Code)
	}
	rr = do(t, f.h, http.MethodPost, "/api/v1/measurements/reset", nil)
	if rr.Code != http.StatusConflict {
		t.Errorf("reset while collecting: got %d, want 409", rr.Code)
	}

	rr = do(t, f.h, http.MethodPost, "/api/v1/measurements/cancel", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("cancel: got %d", rr.Code)
	}
	var st api.StateResponse
	decode(t, rr, &st)
	if st.Phase != session.PhaseCancelled || st.Progress != 0 || st.Current != nil {
		t.Errorf("after cancel: got %+v", st)
	}
	if !hasHint(st.Hints, "cancelled") {
		t.Errorf("hints: got %+v", st.Hints)
	}

	rr = do(t, f.h, http.MethodPost, "/api/v1/measurements/reset", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("reset: got %d", rr.Code)
	}
	st = api.StateResponse{}
	decode(t, rr, &st)
	if st.Phase != session.PhaseIdle {
		t.Errorf("after reset: phase %s, want idle", st.Phase)
	}
	if f.history.Len() != 0 {
		t.Errorf("history: got %d records, want 0", f.history.Len())
	}
}

func TestCancel_ThenStartAgain(t *testing.T) {
	syn := sensor.NewSynthetic(config.SyntheticConfig{HeartRate: 72, BreathRate: 15, Seed: 5})
	f := newFixture(t, syn)
	defer f.sess.Cancel()

	for i := 0; i < 5; i++ {
		rr := do(t, f.h, http.MethodPost, "/api/v1/measurements", api.StartRequest{Kind: types.KindBloodPressure})
		if rr.Code != http.StatusAccepted {
			t.Fatalf("start %d: got %d (body %s)", i, rr.Code, rr.Body.String())
		}
		deadline := time.Now().Add(2 * time.Second)
		for syn.Active() != 1 {
			if time.Now().After(deadline) {
				t.Fatalf("start %d: sensor never opened (state %+v)", i, f.sess.State())
			}
			time.Sleep(time.Millisecond)
		}
		if rr := do(t, f.h, http.MethodPost, "/api/v1/measurements/cancel", nil); rr.Code != http.StatusOK {
			t.Fatalf("cancel %d: got %d", i, rr.Code)
		}
	}

	rr := do(t, f.h, http.MethodPost, "/api/v1/measurements", api.StartRequest{Kind: types.KindBloodPressure})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("final start: got %d", rr.Code)
	}
	time.Sleep(50 * time.Millisecond)
	if st := f.sess.State(); st.Phase != session.PhaseCollecting {
		t.Errorf("after restart: phase %s err %q, want collecting", st.Phase, st.Error)
	}
}

// --- /api/v1/history --------------------------------------------------------

func TestHistory(t *testing.T) {
	f := newFixture(t, replay(t, false, sensor.Recording{Sensor: "camera", Values: pulses()}))
	for i := 0; i < 3; i++ {
		if _, err := f.sess.Start(context.Background(), types.KindSpO2HeartRate); err != nil {
			t.Fatalf("Start: %v", err)
		}
	}

	tests := []struct {
		query string
		code  int
		count int
	}{
		{"", http.StatusOK, 3},
		{"?since=today", http.StatusOK, 3},
		{"?since=week&limit=2", http.StatusOK, 2},
		{"?limit=0", http.StatusOK, 3},
		{"?since=decade", http.StatusBadRequest, 0},
		{"?limit=-1", http.StatusBadRequest, 0},
		{"?limit=abc", http.StatusBadRequest, 0},
	}
	for _, tc := range tests {
		t.Run(tc.query, func(t *testing.T) {
			rr := do(t, f.h, http.MethodGet, "/api/v1/history"+tc.query, nil)
			if rr.Code != tc.code {
				t.Fatalf("status: got %d, want %d", rr.Code, tc.code)
			}
			if tc.code != http.StatusOK {
				return
			}
			var resp api.HistoryResponse
			decode(t, rr, &resp)
			if resp.Count != tc.count || len(resp.Records) != tc.count {
				t.Errorf("count: got %d/%d, want %d", resp.Count, len(resp.Records), tc.count)
			}
		})
	}

	rr := do(t, f.h, http.MethodDelete, "/api/v1/history", nil)
	var cleared api.ClearResponse
	decode(t, rr, &cleared)
	if cleared.Removed != 3 || f.history.Len() != 0 {
		t.Errorf("delete: removed %d, left %d", cleared.Removed, f.history.Len())
	}

	rr = do(t, f.h, http.MethodPut, "/api/v1/history", nil)
	if rr.Code != http.StatusMethodNotAllowed {
		t.Errorf("PUT: got %d, want 405", rr.Code)
	}
}

// --- /api/v1/alerts ---------------------------------------------------------

func TestAlerts(t *testing.T) {
	f := newFixture(t, replay(t, false, sensor.Recording{Sensor: "camera", Values: pulses()}))
	if _, err := f.sess.Start(context.Background(), types.KindSpO2HeartRate); err != nil {
		t.Fatalf("Start: %v", err)
	}

	rr := do(t, f.h, http.MethodGet, "/api/v1/alerts", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d", rr.Code)
	}
	var list []alerts.Alert
	decode(t, rr, &list)
	if len(list) != 1 || list[0].RuleName != "tachycardia" || list[0].Value != 75 {
		t.Errorf("alerts: got %+v", list)
	}
}

func TestAlerts_NilSource(t *testing.T) {
	f := newFixture(t, replay(t, false))
	h := api.New(f.sess, f.history, nil)
	rr := do(t, h, http.MethodGet, "/api/v1/alerts", nil)
	if rr.Code != http.StatusOK || rr.Body.String() != "[]\n" {
		t.Errorf("got %d %q", rr.Code, rr.Body.String())
	}
}

// --- StatusCode -------------------------------------------------------------

func TestStatusCode(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{nil, http.StatusOK},
		{fmt.Errorf("x: %w", session.ErrUnknownKind), http.StatusBadRequest},
		{fmt.Errorf("x: %w", session.ErrPermissionDenied), http.StatusForbidden},
		{session.ErrSessionBusy, http.StatusConflict},
		{fmt.Errorf("x: %w", session.ErrCancelled), http.StatusConflict},
		{&vitals.InsufficientDataError{Kind: types.KindRespiratory, Got: 3, Min: 50}, http.StatusUnprocessableEntity},
		{&sensor.TransportError{Sensor: types.SensorCamera, Err: sensor.ErrHardwareBusy}, http.StatusBadGateway},
		{errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tc := range tests {
		if got := api.StatusCode(tc.err); got != tc.want {
			t.Errorf("StatusCode(%v) = %d, want %d", tc.err, got, tc.want)
		}
	}
}
