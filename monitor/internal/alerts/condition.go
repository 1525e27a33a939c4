package alerts

import (
	"strconv"
	"strings"

	"github.com/vitalscan/vitalscan/monitor/internal/vitals"
	"github.com/vitalscan/vitalscan/pkg/types"
)

// evalCondition evaluates a rule condition string against an estimate.
//
// Supported expressions (field operator value):
//
//	spo2 < 92
//	heart_rate > 120
//	respiratory_rate >= 25
//	systolic_bp >= 140
//	diastolic_bp >= 90
//	quality < 0.3
//	status == abnormal
//	bp_category == hypertension-2
//
// Returns (fires, triggering value, applies). applies is false when the
// expression cannot be parsed or the field does not belong to est's kind, so
// such rules neither fire nor resolve.
func evalCondition(cond string, est types.Estimate) (bool, float64, bool) {
	parts := strings.Fields(cond)
	if len(parts) != 3 {
		return false, 0, false
	}
	field, op, rhs := parts[0], parts[1], parts[2]

	if field == "status" || strings.HasSuffix(field, "_category") {
		got, ok := categoryField(field, est)
		if !ok {
			return false, 0, false
		}
		switch op {
		case "==":
			return got == rhs, 0, true
		case "!=":
			return got != rhs, 0, true
		}
		return false, 0, false
	}

	v, ok := numericField(field, est)
	if !ok {
		return false, 0, false
	}
	threshold, err := strconv.ParseFloat(rhs, 64)
	if err != nil {
		return false, 0, false
	}
	return compareFloat(v, op, threshold), v, true
}

// numericField maps a field name to its value in the estimate.
func numericField(field string, est types.Estimate) (float64, bool) {
	switch {
	case field == "quality":
		return est.Quality, true
	case est.Kind == types.KindSpO2HeartRate && field == "spo2":
		return float64(est.SpO2), true
	case est.Kind == types.KindSpO2HeartRate && field == "heart_rate":
		return float64(est.HeartRate), true
	case est.Kind == types.KindRespiratory && field == "respiratory_rate":
		return float64(est.RespiratoryRate), true
	case est.Kind == types.KindBloodPressure && field == "systolic_bp":
		return float64(est.Systolic), true
	case est.Kind == types.KindBloodPressure && field == "diastolic_bp":
		return float64(est.Diastolic), true
	}
	return 0, false
}

// categoryField maps status and *_category fields to the classification of
// est. status is "abnormal" or "normal".
func categoryField(field string, est types.Estimate) (string, bool) {
	st := vitals.Classify(est)
	var got string
	switch field {
	case "status":
		if st.Abnormal {
			return "abnormal", true
		}
		return "normal", true
	case "spo2_category":
		got = st.SpO2
	case "hr_category":
		got = st.HeartRate
	case "rr_category":
		got = st.RespiratoryRate
	case "bp_category":
		got = st.BloodPressure
	}
	return got, got != ""
}

// compareFloat applies a comparison operator to two float64 values.
func compareFloat(v float64, op string, threshold float64) bool {
	switch op {
	case ">":
		return v > threshold
	case ">=":
		return v >= threshold
	case "<":
		return v < threshold
	case "<=":
		return v <= threshold
	case "==":
		return v == threshold
	case "!=":
		return v != threshold
	default:
		return false
	}
}
