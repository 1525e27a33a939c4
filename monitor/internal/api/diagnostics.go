package api

import (
	"errors"
	"fmt"
	"sort"

	"github.com/vitalscan/vitalscan/monitor/internal/sensor"
	"github.com/vitalscan/vitalscan/monitor/internal/session"
	"github.com/vitalscan/vitalscan/monitor/internal/vitals"
	"github.com/vitalscan/vitalscan/pkg/types"
)

// Quality below which a reading is flagged as noisy. Matches the cutoff the
// estimators use to widen their variation band.
const lowQuality = 0.5

// DiagnosticHint is one human-readable note about the session state or the
// current reading. The UI shows Title as a chip and Detail on click.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical"
	Level  string `json:"level"`
	Title  string `json:"title"`
	Detail string `json:"detail"`
	// Value is an optional number the hint is about (e.g. SpO2 %).
	Value *float64 `json:"value,omitempty"`
}

var levelRank = map[string]int{"critical": 0, "warning": 1, "info": 2, "ok": 3}

// computeDiagnostics derives hints from a session state.
// Hints are ordered: critical first, then warnings, then info.
func computeDiagnostics(st session.State) []DiagnosticHint {
	hints := []DiagnosticHint{}

	switch st.Phase {
	case session.PhaseFailed:
		hints = append(hints, failureHint(st))
	case session.PhaseCancelled:
		hints = append(hints, DiagnosticHint{
			Key:    "cancelled",
			Level:  "info",
			Title:  "Measurement cancelled",
			Detail: "The measurement was stopped before it finished. Nothing was recorded.",
		})
	case session.PhaseComplete:
		if st.Current != nil {
			hints = append(hints, readingHints(st.Current.Estimate)...)
		}
	}

	sort.SliceStable(hints, func(i, j int) bool {
		return levelRank[hints[i].Level] < levelRank[hints[j].Level]
	})
	return hints
}

func failureHint(st session.State) DiagnosticHint {
	var ide *vitals.InsufficientDataError
	switch {
	case errors.Is(st.Err, session.ErrPermissionDenied):
		return DiagnosticHint{
			Key:    "permission_denied",
			Level:  "warning",
			Title:  "Sensor access denied",
			Detail: fmt.Sprintf("Access to the %s was refused. Grant access and start again.", st.Kind.Sensor()),
		}
	case errors.As(st.Err, &ide):
		got := float64(ide.Got)
		return DiagnosticHint{
			Key:   "insufficient_data",
			Level: "warning",
			Title: "Not enough samples",
			Detail: fmt.Sprintf("Only %d samples arrived; at least %d are needed. "+
				"Keep the device still for the whole measurement and try again.", ide.Got, ide.Min),
			Value: &got,
		}
	case errors.Is(st.Err, sensor.ErrTransport):
		return DiagnosticHint{
			Key:    "sensor_unavailable",
			Level:  "critical",
			Title:  "Sensor unavailable",
			Detail: fmt.Sprintf("The %s could not be read: %s", st.Kind.Sensor(), st.Error),
		}
	default:
		return DiagnosticHint{
			Key:    "failed",
			Level:  "warning",
			Title:  "Measurement failed",
			Detail: st.Error,
		}
	}
}

// readingHints flags noisy signals and readings outside reference ranges.
func readingHints(est types.Estimate) []DiagnosticHint {
	var hints []DiagnosticHint

	if est.Quality < lowQuality {
		q := est.Quality
		hints = append(hints, DiagnosticHint{
			Key:   "low_quality",
			Level: "info",
			Title: "Noisy signal",
			Detail: "The signal was noisy, so this reading has a wider margin of error. " +
				"Stay still and keep the sensor covered for a steadier result.",
			Value: &q,
		})
	}

	st := vitals.Classify(est)
	if !st.Abnormal {
		hints = append(hints, DiagnosticHint{
			Key:    "in_range",
			Level:  "ok",
			Title:  "Within normal range",
			Detail: est.String() + " is within the adult reference range.",
		})
		return hints
	}

	add := func(key, category string, value int, unit string) {
		if category == "" || category == vitals.CategoryNormal {
			return
		}
		level := "warning"
		if category == vitals.CategoryHypertension2 || (key == "spo2" && category == vitals.CategoryLow) {
			level = "critical"
		}
		v := float64(value)
		hints = append(hints, DiagnosticHint{
			Key:    key + "_" + category,
			Level:  level,
			Title:  fmt.Sprintf("%s %s", label(key), category),
			Detail: fmt.Sprintf("%s reading of %d%s is %s for an adult at rest.", label(key), value, unit, category),
			Value:  &v,
		})
	}
	add("spo2", st.SpO2, est.SpO2, "%")
	add("heart_rate", st.HeartRate, est.HeartRate, " bpm")
	add("respiratory_rate", st.RespiratoryRate, est.RespiratoryRate, " breaths/min")
	add("blood_pressure", st.BloodPressure, est.Systolic, " mmHg systolic")
	return hints
}

func label(key string) string {
	switch key {
	case "spo2":
		return "SpO2"
	case "heart_rate":
		return "Heart rate"
	case "respiratory_rate":
		return "Respiratory rate"
	default:
		return "Blood pressure"
	}
}
