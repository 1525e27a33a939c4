package api

import (
	"github.com/vitalscan/vitalscan/monitor/internal/session"
	"github.com/vitalscan/vitalscan/monitor/internal/vitals"
	"github.com/vitalscan/vitalscan/pkg/types"
)

// HealthResponse is the JSON shape for GET /api/v1/health.
type HealthResponse struct {
	Status  string        `json:"status"`
	Phase   session.Phase `json:"phase"`
	Records int           `json:"records"`
}

// StartRequest is the JSON body for POST /api/v1/measurements.
type StartRequest struct {
	Kind types.Kind `json:"kind"`
}

// RecordResponse is one measurement record with its classification.
type RecordResponse struct {
	types.Record
	Status vitals.Status `json:"status"`
	// Summary is the reading in human units, e.g. "blood pressure 118/76 mmHg".
	Summary string `json:"summary"`
}

// StateResponse is the JSON shape for GET /api/v1/state and the bodies of
// the measurement control endpoints.
type StateResponse struct {
	Phase    session.Phase    `json:"phase"`
	Progress int              `json:"progress"`
	Kind     types.Kind       `json:"kind,omitempty"`
	Current  *RecordResponse  `json:"current,omitempty"`
	Error    string           `json:"error,omitempty"`
	Hints    []DiagnosticHint `json:"hints"`
}

// HistoryResponse is the JSON shape for GET /api/v1/history.
type HistoryResponse struct {
	Since   string           `json:"since"`
	Count   int              `json:"count"`
	Records []RecordResponse `json:"records"`
}

// ClearResponse is the JSON shape for DELETE /api/v1/history.
type ClearResponse struct {
	Removed int `json:"removed"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func toRecordResponse(rec types.Record) RecordResponse {
	return RecordResponse{
		Record:  rec,
		Status:  vitals.Classify(rec.Estimate),
		Summary: rec.Estimate.String(),
	}
}

// BuildState converts a session snapshot into its JSON representation.
func BuildState(st session.State) StateResponse {
	resp := StateResponse{
		Phase:    st.Phase,
		Progress: st.Progress,
		Kind:     st.Kind,
		Error:    st.Error,
		Hints:    computeDiagnostics(st),
	}
	if st.Current != nil {
		rr := toRecordResponse(*st.Current)
		resp.Current = &rr
	}
	return resp
}
