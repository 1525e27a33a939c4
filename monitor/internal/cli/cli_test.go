package cli_test

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vitalscan/vitalscan/monitor/internal/api"
	"github.com/vitalscan/vitalscan/monitor/internal/cli"
	"github.com/vitalscan/vitalscan/monitor/internal/config"
	"github.com/vitalscan/vitalscan/monitor/internal/metrics"
	"github.com/vitalscan/vitalscan/monitor/internal/sensor"
	"github.com/vitalscan/vitalscan/monitor/internal/session"
	"github.com/vitalscan/vitalscan/monitor/internal/vitals"
	"github.com/vitalscan/vitalscan/pkg/types"
)

// pulses is a camera recording with five clear peaks 24 frames apart.
func pulses(n int) []float64 {
	v := make([]float64, n)
	for i := range v {
		v[i] = 100
		if i%24 == 10 {
			v[i] = 150
		}
	}
	return v
}

func replayDeps(t *testing.T, recs ...sensor.Recording) *cli.Dependencies {
	t.Helper()
	r, err := sensor.NewReplay(false, recs...)
	if err != nil {
		t.Fatalf("NewReplay: %v", err)
	}
	cfg := config.Defaults()
	cfg.Measurement.ProgressInterval = 10 * time.Millisecond
	cfg.Measurement.Seed = 1
	return &cli.Dependencies{Config: cfg, Collector: r}
}

func execute(t *testing.T, deps *cli.Dependencies, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := cli.NewRootCmd(deps)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func TestMeasure_PrintsReading(t *testing.T) {
	deps := replayDeps(t, sensor.Recording{Sensor: "camera", Values: pulses(120)})

	out, err := execute(t, deps, "measure", "spo2-hr")
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	for _, want := range []string{"Measuring spo2-hr from the camera", "SpO2", "heart rate:"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestMeasure_JSON(t *testing.T) {
	deps := replayDeps(t, sensor.Recording{Sensor: "camera", Values: pulses(120)})

	out, err := execute(t, deps, "measure", "spo2-hr", "--json")
	if err != nil {
		t.Fatalf("measure: %v", err)
	}

	var rec api.RecordResponse
	if err := json.Unmarshal([]byte(out), &rec); err != nil {
		t.Fatalf("decode: %v\n%s", err, out)
	}
	if rec.Kind != types.KindSpO2HeartRate {
		t.Errorf("kind: got %q", rec.Kind)
	}
	if rec.ID == "" {
		t.Error("expected a record ID")
	}
	if rec.SpO2 < 90 || rec.SpO2 > 100 {
		t.Errorf("spo2 out of range: %d", rec.SpO2)
	}
	if rec.Status.HeartRate == "" {
		t.Error("expected a heart rate category")
	}
}

func TestMeasure_Errors(t *testing.T) {
	t.Run("unknown kind", func(t *testing.T) {
		_, err := execute(t, replayDeps(t), "measure", "glucose")
		if err == nil || !strings.Contains(err.Error(), "glucose") {
			t.Errorf("got %v", err)
		}
	})

	t.Run("missing kind", func(t *testing.T) {
		if _, err := execute(t, replayDeps(t), "measure"); err == nil {
			t.Error("expected an argument error")
		}
	})

	t.Run("insufficient data", func(t *testing.T) {
		deps := replayDeps(t, sensor.Recording{Sensor: "camera", Values: pulses(40)})
		_, err := execute(t, deps, "measure", "spo2-hr")
		if !errors.Is(err, vitals.ErrInsufficientData) {
			t.Errorf("got %v, want ErrInsufficientData", err)
		}
	})

	t.Run("no recording", func(t *testing.T) {
		_, err := execute(t, replayDeps(t), "measure", "respiratory")
		if !errors.Is(err, sensor.ErrTransport) {
			t.Errorf("got %v, want ErrTransport", err)
		}
	})
}

func TestMeasure_ConfigFileDeniesSensor(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
sensor:
  mode: synthetic
  synthetic:
    deny: [accelerometer]
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	_, err := execute(t, &cli.Dependencies{}, "--config", path, "measure", "blood-pressure")
	if !errors.Is(err, session.ErrPermissionDenied) {
		t.Errorf("got %v, want ErrPermissionDenied", err)
	}
}

func TestMeasure_SyntheticWithDurationFlag(t *testing.T) {
	cfg := config.Defaults()
	cfg.Sensor.Synthetic.Seed = 3
	cfg.Measurement.Seed = 2

	out, err := execute(t, &cli.Dependencies{Config: cfg}, "measure", "blood-pressure", "-d", "600ms")
	if err != nil {
		t.Fatalf("measure: %v", err)
	}
	if !strings.Contains(out, "for 600ms") || !strings.Contains(out, "blood pressure") {
		t.Errorf("unexpected output:\n%s", out)
	}
}

func TestKinds_UsesConfiguredDurations(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
measurement:
  durations:
    respiratory: 60s
`
	if err := os.WriteFile(path, []byte(yaml), 0o600); err != nil {
		t.Fatal(err)
	}

	out, err := execute(t, &cli.Dependencies{}, "-c", path, "kinds")
	if err != nil {
		t.Fatalf("kinds: %v", err)
	}
	for _, want := range []string{"spo2-hr", "camera", "respiratory", "1m0s", "blood-pressure", "15s"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStats_SummarizesServerMetrics(t *testing.T) {
	reg := metrics.NewRegistry(
		func() session.State { return session.State{Phase: session.PhaseCollecting, Progress: 40} },
		func() int { return 3 },
	)
	rec := &types.Record{Estimate: types.Estimate{Kind: types.KindSpO2HeartRate, SpO2: 97, HeartRate: 72}}
	reg.Observe(session.Event{Kind: types.KindSpO2HeartRate, Outcome: session.OutcomeComplete, Record: rec})
	reg.Observe(session.Event{Kind: types.KindSpO2HeartRate, Outcome: session.OutcomeComplete, Record: rec})
	reg.Observe(session.Event{Kind: types.KindRespiratory, Outcome: session.OutcomeCancelled})

	ts := httptest.NewServer(reg)
	defer ts.Close()

	out, err := execute(t, &cli.Dependencies{}, "stats", "--server", ts.URL+"/")
	if err != nil {
		t.Fatalf("stats: %v", err)
	}

	lines := strings.Split(out, "\n")
	if got := strings.Fields(lines[1]); strings.Join(got, " ") != "spo2-hr 2 0 0" {
		t.Errorf("spo2-hr row: got %q", lines[1])
	}
	if got := strings.Fields(lines[2]); strings.Join(got, " ") != "respiratory 0 0 1" {
		t.Errorf("respiratory row: got %q", lines[2])
	}
	for _, want := range []string{"history records: 3", "measurement running: 40%"} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}
}

func TestStats_ServerDown(t *testing.T) {
	ts := httptest.NewServer(nil)
	url := ts.URL
	ts.Close()

	if _, err := execute(t, &cli.Dependencies{}, "stats", "-s", url); err == nil {
		t.Error("expected a fetch error")
	}
}
