package cli

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	dto "github.com/prometheus/client_model/go"

	"github.com/vitalscan/vitalscan/monitor/internal/api"
	"github.com/vitalscan/vitalscan/monitor/internal/config"
	"github.com/vitalscan/vitalscan/monitor/internal/metrics"
	"github.com/vitalscan/vitalscan/monitor/internal/session"
	"github.com/vitalscan/vitalscan/pkg/types"
)

type Formatter struct {
	w io.Writer
}

func NewFormatter(w io.Writer) *Formatter {
	return &Formatter{w: w}
}

func (f *Formatter) MeasurementStarted(kind types.Kind, window time.Duration) {
	fmt.Fprintf(f.w, "⏺️  Measuring %s from the %s for %s\n", kind, kind.Sensor(), window)
}

func (f *Formatter) Progress(phase session.Phase, progress int) {
	fmt.Fprintf(f.w, "   %s %3d%%\n", phase, progress)
}

func (f *Formatter) Reading(rec *api.RecordResponse) {
	if rec == nil {
		fmt.Fprintf(f.w, "⚠️  No reading\n")
		return
	}
	icon := "✅"
	if rec.Status.Abnormal {
		icon = "⚠️ "
	}
	fmt.Fprintf(f.w, "%s %s\n", icon, rec.Summary)
	fmt.Fprintf(f.w, "   quality %.2f, recorded %s\n", rec.Quality, rec.RecordedAt.Format(time.RFC3339))

	st := rec.Status
	for _, c := range []struct{ name, category string }{
		{"spo2", st.SpO2},
		{"heart rate", st.HeartRate},
		{"respiratory rate", st.RespiratoryRate},
		{"blood pressure", st.BloodPressure},
	} {
		if c.category != "" {
			fmt.Fprintf(f.w, "   %s: %s\n", c.name, c.category)
		}
	}
}

func (f *Formatter) Kinds(cfg config.MeasurementConfig) error {
	tw := tabwriter.NewWriter(f.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tSENSOR\tDURATION")
	for _, k := range types.Kinds {
		fmt.Fprintf(tw, "%s\t%s\t%s\n", k, k.Sensor(), cfg.Duration(k))
	}
	return tw.Flush()
}

func (f *Formatter) Stats(families map[string]*dto.MetricFamily) error {
	total := families[metrics.MeasurementsTotal]

	tw := tabwriter.NewWriter(f.w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tCOMPLETE\tFAILED\tCANCELLED")
	for _, k := range types.Kinds {
		fmt.Fprintf(tw, "%s\t%.0f\t%.0f\t%.0f\n", k,
			metrics.Sum(total, "kind", string(k), "outcome", string(session.OutcomeComplete)),
			metrics.Sum(total, "kind", string(k), "outcome", string(session.OutcomeFailed)),
			metrics.Sum(total, "kind", string(k), "outcome", string(session.OutcomeCancelled)),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintf(f.w, "\nhistory records: %.0f\n", metrics.Sum(families[metrics.HistoryRecords]))
	if metrics.Sum(families[metrics.SessionActive]) > 0 {
		fmt.Fprintf(f.w, "measurement running: %.0f%%\n", metrics.Sum(families[metrics.SessionProgress]))
	} else {
		fmt.Fprintf(f.w, "no measurement running\n")
	}
	return nil
}

func (f *Formatter) Error(msg string) {
	fmt.Fprintf(f.w, "❌ %s\n", msg)
}
