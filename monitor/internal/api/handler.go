package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/vitalscan/vitalscan/monitor/internal/alerts"
	"github.com/vitalscan/vitalscan/monitor/internal/sensor"
	"github.com/vitalscan/vitalscan/monitor/internal/session"
	"github.com/vitalscan/vitalscan/monitor/internal/store"
	"github.com/vitalscan/vitalscan/monitor/internal/vitals"
	"github.com/vitalscan/vitalscan/pkg/types"
)

// Session is the part of *session.Session the API drives.
type Session interface {
	Start(ctx context.Context, kind types.Kind) (types.Record, error)
	Launch(ctx context.Context, kind types.Kind) error
	Cancel() bool
	ResetCurrent() bool
	ClearHistory() int
	State() session.State
}

// AlertSource lists firing and recently resolved alerts.
type AlertSource interface {
	Active() []*alerts.Alert
}

// Option configures a Handler.
type Option func(*Handler)

// WithContext sets the parent context of measurements started with
// POST /api/v1/measurements. Cancelling it cancels them. The default is
// context.Background().
func WithContext(ctx context.Context) Option {
	return func(h *Handler) { h.base = ctx }
}

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	sess    Session
	history *store.History
	alerts  AlertSource
	base    context.Context
	now     func() time.Time
	mux     *http.ServeMux
}

// New creates a Handler wired to the session, its history and the alert
// engine, and registers all routes. al may be nil.
func New(sess Session, hist *store.History, al AlertSource, opts ...Option) http.Handler {
	h := &Handler{
		sess:    sess,
		history: hist,
		alerts:  al,
		base:    context.Background(),
		now:     time.Now,
		mux:     http.NewServeMux(),
	}
	for _, opt := range opts {
		opt(h)
	}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/measurements", h.start)
	h.mux.HandleFunc("/api/v1/measurements/cancel", h.cancel)
	h.mux.HandleFunc("/api/v1/measurements/reset", h.reset)
	h.mux.HandleFunc("/api/v1/state", h.state)
	h.mux.HandleFunc("/api/v1/history", h.historyRoute)
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

// health returns GET /api/v1/health.
func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, HealthResponse{
		Status:  "ok",
		Phase:   h.sess.State().Phase,
		Records: h.history.Len(),
	})
}

// start handles POST /api/v1/measurements.
//
// By default the measurement runs in the background and the response is 202
// with the collecting state. With ?wait=true the request blocks until the
// measurement settles and returns 201 with the record, or the mapped error.
func (h *Handler) start(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		jsonErr(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if wait, _ := strconv.ParseBool(r.URL.Query().Get("wait")); wait {
		rec, err := h.sess.Start(r.Context(), req.Kind)
		if err != nil {
			jsonErr(w, StatusCode(err), err.Error())
			return
		}
		jsonResp(w, http.StatusCreated, toRecordResponse(rec))
		return
	}

	if err := h.sess.Launch(h.base, req.Kind); err != nil {
		jsonErr(w, StatusCode(err), err.Error())
		return
	}
	jsonResp(w, http.StatusAccepted, BuildState(h.sess.State()))
}

// cancel handles POST /api/v1/measurements/cancel. Cancelling with nothing
// running is not an error; the response is the current state either way.
func (h *Handler) cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	h.sess.Cancel()
	jsonResp(w, http.StatusOK, BuildState(h.sess.State()))
}

// reset handles POST /api/v1/measurements/reset. It returns 409 while a
// measurement is running, since the session ignores the reset.
func (h *Handler) reset(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if !h.sess.ResetCurrent() {
		jsonErr(w, http.StatusConflict, session.ErrSessionBusy.Error())
		return
	}
	jsonResp(w, http.StatusOK, BuildState(h.sess.State()))
}

// state returns GET /api/v1/state.
func (h *Handler) state(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildState(h.sess.State()))
}

func (h *Handler) historyRoute(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		h.listHistory(w, r)
	case http.MethodDelete:
		jsonResp(w, http.StatusOK, ClearResponse{Removed: h.sess.ClearHistory()})
	default:
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

// listHistory returns GET /api/v1/history?since=&limit=.
func (h *Handler) listHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	since := q.Get("since")
	if since == "" {
		since = "all"
	}
	cutoff, err := store.PeriodStart(since, h.now())
	if err != nil {
		jsonErr(w, http.StatusBadRequest, err.Error())
		return
	}

	limit := 0
	if v := q.Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			jsonErr(w, http.StatusBadRequest, "limit must be a non-negative integer")
			return
		}
		limit = n
	}

	recs := h.history.Since(cutoff)
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	out := make([]RecordResponse, 0, len(recs))
	for _, rec := range recs {
		out = append(out, toRecordResponse(rec))
	}
	jsonResp(w, http.StatusOK, HistoryResponse{Since: since, Count: len(out), Records: out})
}

// listAlerts returns GET /api/v1/alerts.
func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.alerts == nil {
		jsonResp(w, http.StatusOK, []*alerts.Alert{})
		return
	}
	jsonResp(w, http.StatusOK, h.alerts.Active())
}

// --- helpers ----------------------------------------------------------------

// StatusCode maps a session error to the HTTP status the API reports.
func StatusCode(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, session.ErrUnknownKind):
		return http.StatusBadRequest
	case errors.Is(err, session.ErrPermissionDenied):
		return http.StatusForbidden
	case errors.Is(err, session.ErrSessionBusy), errors.Is(err, session.ErrCancelled):
		return http.StatusConflict
	case errors.Is(err, vitals.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case errors.Is(err, sensor.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(v) //nolint:errcheck
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
