package metrics

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sort"
	"sync"

	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/vitalscan/vitalscan/monitor/internal/session"
	"github.com/vitalscan/vitalscan/pkg/types"
)

// Exported metric names.
const (
	MeasurementsTotal   = "vitals_measurements_total"
	MeasurementDuration = "vitals_measurement_duration_seconds"
	LastReading         = "vitals_last_reading"
	SessionProgress     = "vitals_session_progress_percent"
	SessionActive       = "vitals_session_active"
	HistoryRecords      = "vitals_history_records"
)

type outcomeKey struct {
	kind    types.Kind
	outcome session.Outcome
}

type durationStat struct {
	count uint64
	sum   float64
}

// Registry accumulates session events. It is safe for concurrent use.
type Registry struct {
	mu        sync.Mutex
	outcomes  map[outcomeKey]float64
	durations map[types.Kind]*durationStat
	last      map[string]float64 // reading field -> value

	state   func() session.State
	history func() int
}

// NewRegistry returns an empty Registry. state and history are sampled on
// every Gather; either may be nil.
func NewRegistry(state func() session.State, history func() int) *Registry {
	return &Registry{
		outcomes:  make(map[outcomeKey]float64),
		durations: make(map[types.Kind]*durationStat),
		last:      make(map[string]float64),
		state:     state,
		history:   history,
	}
}

// Observe records one finished measurement. It has the session hook
// signature.
func (r *Registry) Observe(ev session.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.outcomes[outcomeKey{ev.Kind, ev.Outcome}]++

	d, ok := r.durations[ev.Kind]
	if !ok {
		d = &durationStat{}
		r.durations[ev.Kind] = d
	}
	d.count++
	d.sum += ev.Elapsed.Seconds()

	if ev.Record == nil {
		return
	}
	for field, v := range readingFields(ev.Record.Estimate) {
		r.last[field] = v
	}
}

func readingFields(est types.Estimate) map[string]float64 {
	switch est.Kind {
	case types.KindSpO2HeartRate:
		return map[string]float64{"spo2": float64(est.SpO2), "heart_rate": float64(est.HeartRate)}
	case types.KindRespiratory:
		return map[string]float64{"respiratory_rate": float64(est.RespiratoryRate)}
	case types.KindBloodPressure:
		return map[string]float64{"systolic_bp": float64(est.Systolic), "diastolic_bp": float64(est.Diastolic)}
	}
	return nil
}

// Gather returns the current metric families, sorted by name.
func (r *Registry) Gather() []*dto.MetricFamily {
	r.mu.Lock()
	defer r.mu.Unlock()

	var fams []*dto.MetricFamily

	total := family(MeasurementsTotal, "Finished measurements by kind and outcome.", dto.MetricType_COUNTER)
	keys := make([]outcomeKey, 0, len(r.outcomes))
	for k := range r.outcomes {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].kind != keys[j].kind {
			return keys[i].kind < keys[j].kind
		}
		return keys[i].outcome < keys[j].outcome
	})
	for _, k := range keys {
		total.Metric = append(total.Metric, &dto.Metric{
			Label:   labels("kind", string(k.kind), "outcome", string(k.outcome)),
			Counter: &dto.Counter{Value: ptr(r.outcomes[k])},
		})
	}
	fams = append(fams, total)

	dur := family(MeasurementDuration, "Wall time from start to settled outcome.", dto.MetricType_SUMMARY)
	for _, kind := range types.Kinds {
		d, ok := r.durations[kind]
		if !ok {
			continue
		}
		dur.Metric = append(dur.Metric, &dto.Metric{
			Label:   labels("kind", string(kind)),
			Summary: &dto.Summary{SampleCount: ptr(d.count), SampleSum: ptr(d.sum)},
		})
	}
	fams = append(fams, dur)

	last := family(LastReading, "Most recent completed reading per field.", dto.MetricType_GAUGE)
	fields := make([]string, 0, len(r.last))
	for f := range r.last {
		fields = append(fields, f)
	}
	sort.Strings(fields)
	for _, f := range fields {
		last.Metric = append(last.Metric, gauge(r.last[f], "field", f))
	}
	fams = append(fams, last)

	if r.state != nil {
		st := r.state()
		active := 0.0
		if st.Phase.Active() {
			active = 1
		}
		p := family(SessionProgress, "Advisory progress of the current measurement.", dto.MetricType_GAUGE)
		p.Metric = append(p.Metric, gauge(float64(st.Progress)))
		a := family(SessionActive, "1 while a measurement is collecting or inferring.", dto.MetricType_GAUGE)
		a.Metric = append(a.Metric, gauge(active))
		fams = append(fams, p, a)
	}
	if r.history != nil {
		h := family(HistoryRecords, "Records currently held in history.", dto.MetricType_GAUGE)
		h.Metric = append(h.Metric, gauge(float64(r.history())))
		fams = append(fams, h)
	}

	sort.Slice(fams, func(i, j int) bool { return fams[i].GetName() < fams[j].GetName() })
	return fams
}

// WriteText encodes every family in the Prometheus text format.
func (r *Registry) WriteText(w io.Writer) error {
	enc := expfmt.NewEncoder(w, expfmt.NewFormat(expfmt.TypeTextPlain))
	for _, mf := range r.Gather() {
		if len(mf.Metric) == 0 {
			continue
		}
		if err := enc.Encode(mf); err != nil {
			return fmt.Errorf("encode %s: %w", mf.GetName(), err)
		}
	}
	return nil
}

// ServeHTTP serves GET /metrics.
func (r *Registry) ServeHTTP(w http.ResponseWriter, req *http.Request) {
	if req.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", string(expfmt.NewFormat(expfmt.TypeTextPlain)))
	if err := r.WriteText(w); err != nil {
		slog.Error("metrics: write failed", "err", err)
	}
}

// Fetch performs an HTTP GET to url and returns parsed metric families.
func Fetch(ctx context.Context, client *http.Client, url string) (map[string]*dto.MetricFamily, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", string(expfmt.NewFormat(expfmt.TypeTextPlain)))

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http get: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return Parse(resp.Body)
}

// Parse decodes a Prometheus text exposition from r into metric families.
// A partial result with a non-fatal parse warning is still returned.
func Parse(r io.Reader) (map[string]*dto.MetricFamily, error) {
	var parser expfmt.TextParser
	mfs, err := parser.TextToMetricFamilies(r)
	if err != nil && len(mfs) == 0 {
		return nil, fmt.Errorf("parse prometheus text: %w", err)
	}
	return mfs, nil
}

// Sum adds up counter, gauge and untyped values in mf whose labels include
// every name/value pair in match. Returns 0 if mf is nil.
func Sum(mf *dto.MetricFamily, match ...string) float64 {
	if mf == nil {
		return 0
	}
	var total float64
	for _, m := range mf.GetMetric() {
		if !hasLabels(m, match) {
			continue
		}
		switch {
		case m.Counter != nil:
			total += m.Counter.GetValue()
		case m.Gauge != nil:
			total += m.Gauge.GetValue()
		case m.Untyped != nil:
			total += m.Untyped.GetValue()
		}
	}
	return total
}

func hasLabels(m *dto.Metric, match []string) bool {
	for i := 0; i+1 < len(match); i += 2 {
		found := false
		for _, lp := range m.GetLabel() {
			if lp.GetName() == match[i] && lp.GetValue() == match[i+1] {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func family(name, help string, typ dto.MetricType) *dto.MetricFamily {
	return &dto.MetricFamily{Name: ptr(name), Help: ptr(help), Type: typ.Enum()}
}

func gauge(v float64, kv ...string) *dto.Metric {
	return &dto.Metric{Label: labels(kv...), Gauge: &dto.Gauge{Value: ptr(v)}}
}

func labels(kv ...string) []*dto.LabelPair {
	out := make([]*dto.LabelPair, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		out = append(out, &dto.LabelPair{Name: ptr(kv[i]), Value: ptr(kv[i+1])})
	}
	return out
}

func ptr[T any](v T) *T { return &v }
