package vitals

import "github.com/vitalscan/vitalscan/pkg/types"

// Category labels attached to individual readings.
const (
	CategoryNormal        = "normal"
	CategoryLow           = "low"
	CategoryHigh          = "high"
	CategoryElevated      = "elevated"
	CategoryHypertension1 = "hypertension-1"
	CategoryHypertension2 = "hypertension-2"
)

// Status is the reference-range reading of one estimate. Fields for vitals
// the estimate does not carry are empty.
type Status struct {
	SpO2            string `json:"spo2,omitempty"`
	HeartRate       string `json:"heart_rate,omitempty"`
	RespiratoryRate string `json:"respiratory_rate,omitempty"`
	BloodPressure   string `json:"blood_pressure,omitempty"`

	// Abnormal is true when any category is something other than normal.
	Abnormal bool `json:"abnormal"`
}

// Classify compares an estimate against adult reference ranges.
func Classify(est types.Estimate) Status {
	var st Status
	switch est.Kind {
	case types.KindSpO2HeartRate:
		st.SpO2 = classifySpO2(est.SpO2)
		st.HeartRate = classifyRange(est.HeartRate, 60, 100)
		st.Abnormal = st.SpO2 != CategoryNormal || st.HeartRate != CategoryNormal
	case types.KindRespiratory:
		st.RespiratoryRate = classifyRange(est.RespiratoryRate, 12, 20)
		st.Abnormal = st.RespiratoryRate != CategoryNormal
	case types.KindBloodPressure:
		st.BloodPressure = classifyBloodPressure(est.Systolic, est.Diastolic)
		st.Abnormal = st.BloodPressure != CategoryNormal
	}
	return st
}

func classifySpO2(v int) string {
	if v >= 95 {
		return CategoryNormal
	}
	return CategoryLow
}

// classifyRange labels v against the inclusive normal band [lo, hi].
func classifyRange(v, lo, hi int) string {
	switch {
	case v < lo:
		return CategoryLow
	case v > hi:
		return CategoryHigh
	default:
		return CategoryNormal
	}
}

// classifyBloodPressure follows the ACC/AHA adult categories. When systolic
// and diastolic fall in different categories the higher one wins.
func classifyBloodPressure(sys, dia int) string {
	switch {
	case sys >= 140 || dia >= 90:
		return CategoryHypertension2
	case sys >= 130 || dia >= 80:
		return CategoryHypertension1
	case sys >= 120:
		return CategoryElevated
	default:
		return CategoryNormal
	}
}
