package alerts

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/vitalscan/vitalscan/monitor/internal/config"
	"github.com/vitalscan/vitalscan/pkg/types"
)

func spo2Record(spo2, hr int) types.Record {
	return types.Record{
		ID: "rec-1",
		Estimate: types.Estimate{
			Kind:      types.KindSpO2HeartRate,
			SpO2:      spo2,
			HeartRate: hr,
			Quality:   0.9,
		},
	}
}

func bpRecord(sys, dia int) types.Record {
	return types.Record{
		ID:       "rec-bp",
		Estimate: types.Estimate{Kind: types.KindBloodPressure, Systolic: sys, Diastolic: dia},
	}
}

func TestEvalCondition(t *testing.T) {
	tests := []struct {
		name    string
		cond    string
		est     types.Estimate
		fires   bool
		value   float64
		applies bool
	}{
		{"spo2 low fires", "spo2 < 92", spo2Record(91, 70).Estimate, true, 91, true},
		{"spo2 ok", "spo2 < 92", spo2Record(97, 70).Estimate, false, 97, true},
		{"heart rate high", "heart_rate > 120", spo2Record(97, 130).Estimate, true, 130, true},
		{"respiratory field on spo2 record", "respiratory_rate > 20", spo2Record(97, 70).Estimate, false, 0, false},
		{"systolic", "systolic_bp >= 140", bpRecord(150, 85).Estimate, true, 150, true},
		{"diastolic", "diastolic_bp >= 90", bpRecord(150, 85).Estimate, false, 85, true},
		{"quality", "quality < 0.95", spo2Record(97, 70).Estimate, true, 0.9, true},
		{"status abnormal", "status == abnormal", spo2Record(97, 130).Estimate, true, 0, true},
		{"status normal", "status == abnormal", spo2Record(97, 70).Estimate, false, 0, true},
		{"bp category", "bp_category == hypertension-2", bpRecord(150, 85).Estimate, true, 0, true},
		{"bp category on spo2 record", "bp_category == hypertension-2", spo2Record(97, 70).Estimate, false, 0, false},
		{"unknown field", "temperature > 38", spo2Record(97, 70).Estimate, false, 0, false},
		{"malformed", "spo2<92", spo2Record(91, 70).Estimate, false, 0, false},
		{"bad threshold", "spo2 < low", spo2Record(91, 70).Estimate, false, 0, false},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fires, value, applies := evalCondition(tc.cond, tc.est)
			if fires != tc.fires || applies != tc.applies {
				t.Errorf("evalCondition(%q) = fires %v applies %v, want %v %v", tc.cond, fires, applies, tc.fires, tc.applies)
			}
			if tc.applies && value != tc.value {
				t.Errorf("value: got %v, want %v", value, tc.value)
			}
		})
	}
}

func newEngine(rules ...config.AlertRule) *Engine {
	return New(config.AlertsConfig{Rules: rules})
}

func TestEvaluate_FireAndResolve(t *testing.T) {
	e := newEngine(config.AlertRule{Name: "low-spo2", Condition: "spo2 < 92", Severity: "critical"})

	e.Evaluate(spo2Record(90, 70))
	active := e.Active()
	if len(active) != 1 {
		t.Fatalf("Active: got %d alerts, want 1", len(active))
	}
	a := active[0]
	if a.State != StateFiring || a.Severity != "critical" || a.Value != 90 || a.RecordID != "rec-1" {
		t.Errorf("fired alert: %+v", a)
	}

	e.Evaluate(spo2Record(97, 70))
	active = e.Active()
	if len(active) != 1 || active[0].State != StateResolved || active[0].ResolvedAt == nil {
		t.Fatalf("after recovery: got %+v, want one resolved alert", active)
	}
}

func TestEvaluate_Cooldown(t *testing.T) {
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	e := newEngine(config.AlertRule{Name: "tachy", Condition: "heart_rate > 120", Cooldown: time.Minute})
	e.now = func() time.Time { return base }

	e.Evaluate(spo2Record(97, 130))
	first := e.Active()[0].ID

	e.now = func() time.Time { return base.Add(30 * time.Second) }
	e.Evaluate(spo2Record(97, 140))
	if got := e.Active()[0]; got.ID != first || got.Value != 130 {
		t.Errorf("within cooldown the alert should not re-fire: %+v", got)
	}

	e.now = func() time.Time { return base.Add(2 * time.Minute) }
	e.Evaluate(spo2Record(97, 140))
	if got := e.Active()[0]; got.ID == first || got.Value != 140 {
		t.Errorf("after cooldown the alert should re-fire: %+v", got)
	}
}

func TestEvaluate_OtherKindDoesNotResolve(t *testing.T) {
	e := newEngine(config.AlertRule{Name: "hyper", Condition: "systolic_bp >= 140"})
	e.Evaluate(bpRecord(150, 95))
	e.Evaluate(spo2Record(97, 70))

	active := e.Active()
	if len(active) != 1 || active[0].State != StateFiring {
		t.Errorf("reading of another kind must not resolve: %+v", active)
	}
}

func TestEvaluate_NoRules(t *testing.T) {
	e := New(config.AlertsConfig{})
	e.Evaluate(spo2Record(80, 200))
	if n := len(e.Active()); n != 0 {
		t.Errorf("Active: got %d, want 0", n)
	}
}

func TestActive_DropsOldResolved(t *testing.T) {
	base := time.Date(2026, 1, 1, 8, 0, 0, 0, time.UTC)
	e := newEngine(config.AlertRule{Name: "low-spo2", Condition: "spo2 < 92"})
	e.now = func() time.Time { return base }
	e.Evaluate(spo2Record(90, 70))
	e.Evaluate(spo2Record(97, 70))

	e.now = func() time.Time { return base.Add(2 * time.Hour) }
	if n := len(e.Active()); n != 0 {
		t.Errorf("Active: got %d, want resolved alert aged out", n)
	}
}

func TestSetConfig_DropsRemovedRules(t *testing.T) {
	e := newEngine(config.AlertRule{Name: "low-spo2", Condition: "spo2 < 92"})
	e.Evaluate(spo2Record(90, 70))

	e.SetConfig(config.AlertsConfig{Rules: []config.AlertRule{{Name: "tachy", Condition: "heart_rate > 120"}}})
	if n := len(e.Active()); n != 0 {
		t.Errorf("Active after rule removal: got %d, want 0", n)
	}
	e.Evaluate(spo2Record(97, 130))
	if a := e.Active(); len(a) != 1 || a[0].RuleName != "tachy" {
		t.Errorf("new rule did not fire: %+v", a)
	}
}

func TestWebhookDelivery(t *testing.T) {
	var (
		mu     sync.Mutex
		bodies []map[string]interface{}
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type: got %q", ct)
		}
		raw, _ := io.ReadAll(r.Body)
		var body map[string]interface{}
		if err := json.Unmarshal(raw, &body); err != nil {
			t.Errorf("webhook body: %v", err)
		}
		mu.Lock()
		bodies = append(bodies, body)
		mu.Unlock()
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	t.Setenv("TEST_SLACK_URL", srv.URL)
	t.Setenv("TEST_HTTP_URL", srv.URL)
	e := New(config.AlertsConfig{
		Rules: []config.AlertRule{{Name: "low-spo2", Condition: "spo2 < 92", Severity: "critical"}},
		Webhooks: []config.WebhookConfig{
			{Type: "slack", URLEnv: "TEST_SLACK_URL"},
			{Type: "http", URLEnv: "TEST_HTTP_URL"},
			{Type: "teams"}, // no URL, skipped
		},
	})

	e.Evaluate(spo2Record(88, 70))
	e.Wait()

	mu.Lock()
	defer mu.Unlock()
	if len(bodies) != 2 {
		t.Fatalf("deliveries: got %d, want 2", len(bodies))
	}
	if _, ok := bodies[0]["text"]; !ok {
		t.Errorf("slack payload missing text: %v", bodies[0])
	}
	alert, ok := bodies[1]["alert"].(map[string]interface{})
	if !ok || alert["rule_name"] != "low-spo2" || alert["state"] != StateFiring {
		t.Errorf("http payload: %v", bodies[1])
	}
}

func TestSeverityColor(t *testing.T) {
	if got := severityColor("critical", StateResolved); got != "2EB67D" {
		t.Errorf("resolved color: got %q", got)
	}
	if got := severityColor("critical", StateFiring); got != "FF4F6A" {
		t.Errorf("critical color: got %q", got)
	}
}

func TestPayload(t *testing.T) {
	firing := &Alert{RuleName: "low-spo2", Kind: types.KindSpO2HeartRate, Severity: "critical", Message: "spo2 88 < 92", State: StateFiring}
	resolved := *firing
	resolved.State = StateResolved

	tests := []struct {
		name  string
		typ   string
		alert *Alert
		key   string
		want  string
	}{
		{"slack firing", "slack", firing, "text", "*[CRITICAL]* spo2 88 < 92"},
		{"slack resolved", "slack", &resolved, "text", "*[RESOLVED]* low-spo2: spo2-hr reading back in range"},
		{"teams firing", "teams", firing, "title", "[CRITICAL] spo2 88 < 92"},
		{"teams resolved color", "teams", &resolved, "themeColor", "2EB67D"},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			raw, err := payload(tc.typ, tc.alert)
			if err != nil {
				t.Fatalf("payload: %v", err)
			}
			var body map[string]interface{}
			if err := json.Unmarshal(raw, &body); err != nil {
				t.Fatal(err)
			}
			if body[tc.key] != tc.want {
				t.Errorf("%s: got %v, want %q", tc.key, body[tc.key], tc.want)
			}
		})
	}

	if _, err := payload("pagerduty", firing); err == nil {
		t.Error("unknown webhook type should be rejected")
	}
}
