package types

import (
	"fmt"
	"time"
)

// SensorKind identifies the physical sensor a SampleBuffer came from.
type SensorKind string

// Sensor kinds understood by the collectors.
const (
	SensorCamera        SensorKind = "camera"
	SensorMicrophone    SensorKind = "microphone"
	SensorAccelerometer SensorKind = "accelerometer"
)

// Valid reports whether s is one of the known sensor kinds.
func (s SensorKind) Valid() bool {
	switch s {
	case SensorCamera, SensorMicrophone, SensorAccelerometer:
		return true
	}
	return false
}

// Kind is the vital-sign measurement a caller asks for.
type Kind string

// Measurement kinds accepted by the session.
const (
	KindSpO2HeartRate Kind = "spo2-hr"
	KindRespiratory   Kind = "respiratory"
	KindBloodPressure Kind = "blood-pressure"
)

// Kinds lists every measurement kind in display order.
var Kinds = []Kind{KindSpO2HeartRate, KindRespiratory, KindBloodPressure}

// ParseKind converts a string such as "spo2-hr" into a Kind.
func ParseKind(s string) (Kind, error) {
	k := Kind(s)
	if _, ok := k.sensor(); !ok {
		return "", fmt.Errorf("unknown measurement kind %q", s)
	}
	return k, nil
}

// Sensor returns the sensor that feeds this measurement kind.
// Unknown kinds return the empty SensorKind.
func (k Kind) Sensor() SensorKind {
	s, _ := k.sensor()
	return s
}

func (k Kind) sensor() (SensorKind, bool) {
	switch k {
	case KindSpO2HeartRate:
		return SensorCamera, true
	case KindRespiratory:
		return SensorMicrophone, true
	case KindBloodPressure:
		return SensorAccelerometer, true
	}
	return "", false
}

// SampleBuffer is the raw output of one collection window.
//
// A buffer is never mutated after the collector returns it. Ownership moves
// to the inference engine, and the buffer is dropped once an Estimate exists.
type SampleBuffer struct {
	Sensor SensorKind
	// Start is when collection began. Estimates copy it as their timestamp.
	Start  time.Time
	Values []float64
}

// Len returns the number of raw values in the buffer.
func (b *SampleBuffer) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Values)
}

// StartMillis returns Start as epoch milliseconds.
func (b *SampleBuffer) StartMillis() int64 {
	return b.Start.UnixMilli()
}

// Estimate is the output of one inference run. Only the fields belonging to
// Kind are set; each is already clamped to its physiological range.
type Estimate struct {
	Kind      Kind      `json:"kind"`
	Timestamp time.Time `json:"timestamp"`

	SpO2      int `json:"spo2,omitempty"`
	HeartRate int `json:"heart_rate,omitempty"`

	RespiratoryRate int `json:"respiratory_rate,omitempty"`

	Systolic  int `json:"systolic_bp,omitempty"`
	Diastolic int `json:"diastolic_bp,omitempty"`

	// Quality is the 0–1 signal score the estimator based its variation band on.
	Quality float64 `json:"quality"`
}

// String renders the estimate in the units a person would read it in.
func (e Estimate) String() string {
	switch e.Kind {
	case KindSpO2HeartRate:
		return fmt.Sprintf("SpO2 %d%%, heart rate %d bpm", e.SpO2, e.HeartRate)
	case KindRespiratory:
		return fmt.Sprintf("respiratory rate %d breaths/min", e.RespiratoryRate)
	case KindBloodPressure:
		return fmt.Sprintf("blood pressure %d/%d mmHg", e.Systolic, e.Diastolic)
	}
	return string(e.Kind)
}

// Record is an Estimate that has been accepted into history.
// Records are immutable once appended.
type Record struct {
	ID         string    `json:"id"`
	RecordedAt time.Time `json:"recorded_at"`
	Estimate
}
