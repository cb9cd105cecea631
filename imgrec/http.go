package imgrec

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/go-chi/chi"
)

// HTTPWrapper exposes a recorder's folder, prefix and auto-save switch
// over HTTP so they can be changed on the fly between measurements.
type HTTPWrapper struct {
	*Recorder
}

// NewHTTPWrapper returns an HTTP wrapper around a recorder
func NewHTTPWrapper(r *Recorder) HTTPWrapper {
	return HTTPWrapper{r}
}

type strT struct {
	Str string `json:"str"`
}

type boolT struct {
	Bool bool `json:"bool"`
}

// SetRoot updates the root folder of the recorder
func (h HTTPWrapper) SetRoot(w http.ResponseWriter, r *http.Request) {
	str := strT{}
	err := json.NewDecoder(r.Body).Decode(&str)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := os.MkdirAll(str.Str, 0777); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.Recorder.Root = str.Str
	w.WriteHeader(http.StatusOK)
}

// GetRoot sends the recorder's root folder back as JSON
func (h HTTPWrapper) GetRoot(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(strT{Str: h.Recorder.Root})
}

// SetPrefix updates the run folder prefix of the recorder
func (h HTTPWrapper) SetPrefix(w http.ResponseWriter, r *http.Request) {
	str := strT{}
	err := json.NewDecoder(r.Body).Decode(&str)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.Recorder.Prefix = str.Str
	w.WriteHeader(http.StatusOK)
}

// GetPrefix sends the recorder's prefix back as JSON
func (h HTTPWrapper) GetPrefix(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(strT{Str: h.Recorder.Prefix})
}

// SetEnabled flips the auto-save switch
func (h HTTPWrapper) SetEnabled(w http.ResponseWriter, r *http.Request) {
	bT := boolT{}
	err := json.NewDecoder(r.Body).Decode(&bT)
	defer r.Body.Close()
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	h.Recorder.Enabled = bT.Bool
	w.WriteHeader(http.StatusOK)
}

// GetEnabled sends the auto-save switch state back as JSON
func (h HTTPWrapper) GetEnabled(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(boolT{Bool: h.Recorder.Enabled})
}

// Bind attaches the autowrite routes to a chi router
func (h HTTPWrapper) Bind(r chi.Router) {
	r.Post("/autowrite/root", h.SetRoot)
	r.Get("/autowrite/root", h.GetRoot)
	r.Post("/autowrite/prefix", h.SetPrefix)
	r.Get("/autowrite/prefix", h.GetPrefix)
	r.Post("/autowrite/enabled", h.SetEnabled)
	r.Get("/autowrite/enabled", h.GetEnabled)
}
