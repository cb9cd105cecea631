package rld

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi"
)

// HTTPWrapper exposes a sequencer and its session history over HTTP,
// so bench clients can drive measurements without custom socket logic.
//
// One measurement runs at a time; concurrent measure requests are turned
// away with 409 rather than queued, matching the single sequential worker
// model of the instrument.
type HTTPWrapper struct {
	// Seq drives the hardware
	Seq *Sequencer

	// Session archives completed (and partial) records
	Session *Session

	// WriteLifetime serializes a record's lifetime map for the export
	// route.  Injected by the composing server to avoid binding this
	// package to an on-disk format.
	WriteLifetime func(io.Writer, *Record) error

	// OnComplete, when non-nil, is invoked with every archived record.
	// The composing server uses it for automatic saving.
	OnComplete func(*Record)

	// run serializes measurements; mu guards the staged parameters
	run    sync.Mutex
	mu     sync.Mutex
	params Parameters
}

// SubMuxSanitize normalizes a route prefix for mounting a submux:
// a leading slash is ensured and a trailing one removed
func SubMuxSanitize(s string) string {
	if !strings.HasPrefix(s, "/") {
		s = "/" + s
	}
	if len(s) > 1 {
		s = strings.TrimSuffix(s, "/")
	}
	return s
}

// NewHTTPWrapper returns a wrapper with default parameters loaded
func NewHTTPWrapper(seq *Sequencer) *HTTPWrapper {
	return &HTTPWrapper{
		Seq:     seq,
		Session: &Session{},
		params:  DefaultParameters(),
	}
}

// Params returns the currently staged parameter set
func (h *HTTPWrapper) Params() Parameters {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.params
}

// SetParams replaces the staged parameter set
func (h *HTTPWrapper) SetParams(p Parameters) {
	h.mu.Lock()
	h.params = p
	h.mu.Unlock()
}

// Bind attaches the routes to a chi router
func (h *HTTPWrapper) Bind(r chi.Router) {
	r.Get("/params", h.GetParams)
	r.Post("/params", h.PostParams)
	r.Post("/measure", h.Measure)
	r.Post("/abort", h.Abort)
	r.Get("/status", h.Status)
	r.Get("/lifetime.fits", h.LifetimeFITS)
	r.Delete("/records", h.ClearRecords)
	r.Delete("/records/{index}", h.RemoveRecord)
}

// GetParams sends the staged parameters as JSON
func (h *HTTPWrapper) GetParams(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(h.Params())
}

// PostParams stages a new parameter set after validating and snapping it
func (h *HTTPWrapper) PostParams(w http.ResponseWriter, r *http.Request) {
	p := h.Params()
	err := json.NewDecoder(r.Body).Decode(&p)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := p.Validate(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.SetParams(p.Snapped())
	w.WriteHeader(http.StatusOK)
}

type measureResponse struct {
	Index   int    `json:"index"`
	Sets    [3]int `json:"sets"`
	Partial bool   `json:"partial"`
	Error   string `json:"error,omitempty"`
}

// Measure runs one acquisition with the staged parameters, archives the
// record, and reports what was captured.  Partial acquisitions are
// archived too and reported as such, not discarded.
func (h *HTTPWrapper) Measure(w http.ResponseWriter, r *http.Request) {
	if !h.run.TryLock() {
		http.Error(w, "a measurement is already running", http.StatusConflict)
		return
	}
	defer h.run.Unlock()
	p := h.Params()

	if err := h.Seq.Arm(); err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	rec, err := h.Seq.Capture(p)
	var perr *PartialError
	switch {
	case err == nil:
	case errors.As(err, &perr):
		// keep the partial record
	default:
		if rec == nil || rec.Stack.Empty() {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
	}
	if cerr := rec.ComputeLifetime(); cerr != nil {
		// a partial stack can still be reduced; an empty one cannot
		if err == nil {
			err = cerr
		}
	}
	idx := h.Session.Add(rec)
	if h.OnComplete != nil {
		h.OnComplete(rec)
	}
	resp := measureResponse{Index: idx, Sets: rec.Stack.Lengths(), Partial: rec.Partial}
	if err != nil {
		resp.Error = err.Error()
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// Abort halts camera triggering best-effort
func (h *HTTPWrapper) Abort(w http.ResponseWriter, r *http.Request) {
	h.Seq.Abort()
	w.WriteHeader(http.StatusOK)
}

type statusResponse struct {
	State   string `json:"state"`
	Records int    `json:"records"`
}

// Status reports the sequencer state and session size
func (h *HTTPWrapper) Status(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statusResponse{
		State:   h.Seq.State().String(),
		Records: h.Session.Len(),
	})
}

// ClearRecords drops the whole session history
func (h *HTTPWrapper) ClearRecords(w http.ResponseWriter, r *http.Request) {
	h.Session.Clear()
	w.WriteHeader(http.StatusOK)
}

// RemoveRecord drops one record from the session history
func (h *HTTPWrapper) RemoveRecord(w http.ResponseWriter, r *http.Request) {
	idx, err := strconv.Atoi(chi.URLParam(r, "index"))
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if h.Session.Get(idx) == nil {
		http.Error(w, "no record at that index", http.StatusNotFound)
		return
	}
	h.Session.Remove(idx)
	w.WriteHeader(http.StatusOK)
}

// LifetimeFITS streams the most recent record's lifetime map
func (h *HTTPWrapper) LifetimeFITS(w http.ResponseWriter, r *http.Request) {
	rec := h.Session.Last()
	if rec == nil || rec.Lifetime == nil {
		http.Error(w, "no lifetime map available", http.StatusNotFound)
		return
	}
	if h.WriteLifetime == nil {
		http.Error(w, "no lifetime serializer configured", http.StatusNotImplemented)
		return
	}
	w.Header().Set("Content-Type", "image/fits")
	if err := h.WriteLifetime(w, rec); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
	}
}
