package rld_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi"

	"github.com/flimlab/gorld/imgrec"
	"github.com/flimlab/gorld/rld"
)

func newServer(t *testing.T) (*rld.HTTPWrapper, *httptest.Server) {
	t.Helper()
	seq, _, _ := newBench()
	w := rld.NewHTTPWrapper(seq)
	w.WriteLifetime = imgrec.WriteLifetimeFITS
	mux := chi.NewRouter()
	w.Bind(mux)
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return w, srv
}

func TestHTTPParamsRoundTrip(t *testing.T) {
	_, srv := newServer(t)
	p := rld.DefaultParameters()
	p.SetsToAcquire = 5
	body, _ := json.Marshal(p)
	resp, err := http.Post(srv.URL+"/params", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("post params: status %d", resp.StatusCode)
	}
	resp, err = http.Get(srv.URL + "/params")
	if err != nil {
		t.Fatal(err)
	}
	var got rld.Parameters
	err = json.NewDecoder(resp.Body).Decode(&got)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if got.SetsToAcquire != 5 {
		t.Errorf("staged parameters not returned, got %+v", got)
	}
}

func TestHTTPParamsRejectsInvalid(t *testing.T) {
	_, srv := newServer(t)
	p := rld.DefaultParameters()
	p.SetsToAcquire = 0
	body, _ := json.Marshal(p)
	resp, err := http.Post(srv.URL+"/params", "application/json", bytes.NewReader(body))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid parameters accepted: status %d", resp.StatusCode)
	}
}

func TestHTTPMeasureArchivesAndExports(t *testing.T) {
	w, srv := newServer(t)
	resp, err := http.Post(srv.URL+"/measure", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	var mr struct {
		Index   int    `json:"index"`
		Sets    [3]int `json:"sets"`
		Partial bool   `json:"partial"`
		Error   string `json:"error"`
	}
	err = json.NewDecoder(resp.Body).Decode(&mr)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if mr.Error != "" {
		t.Fatalf("measurement reported error: %s", mr.Error)
	}
	if mr.Sets != [3]int{3, 3, 3} || mr.Partial {
		t.Errorf("unexpected measure response: %+v", mr)
	}
	if w.Session.Len() != 1 {
		t.Fatalf("record not archived, session has %d", w.Session.Len())
	}

	resp, err = http.Get(srv.URL + "/lifetime.fits")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("lifetime export: status %d", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "image/fits" {
		t.Errorf("wrong content type %q", ct)
	}
}

func TestHTTPLifetimeBeforeAnyMeasure(t *testing.T) {
	_, srv := newServer(t)
	resp, err := http.Get(srv.URL + "/lifetime.fits")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404 with no records, got %d", resp.StatusCode)
	}
}

func TestHTTPStatusAndRecordRemoval(t *testing.T) {
	w, srv := newServer(t)
	resp, err := http.Post(srv.URL+"/measure", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	resp, err = http.Get(srv.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	var st struct {
		State   string `json:"state"`
		Records int    `json:"records"`
	}
	err = json.NewDecoder(resp.Body).Decode(&st)
	resp.Body.Close()
	if err != nil {
		t.Fatal(err)
	}
	if st.State != "stopped" || st.Records != 1 {
		t.Errorf("unexpected status %+v", st)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL+"/records/0", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("record delete: status %d", resp.StatusCode)
	}
	if w.Session.Len() != 0 {
		t.Error("record not removed from session")
	}

	req, _ = http.NewRequest(http.MethodDelete, srv.URL+"/records/7", nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("deleting a missing record: status %d", resp.StatusCode)
	}
}

func TestHTTPMeasureNotReady(t *testing.T) {
	w := rld.NewHTTPWrapper(rld.NewSequencer(nil, nil))
	mux := chi.NewRouter()
	w.Bind(mux)
	srv := httptest.NewServer(mux)
	defer srv.Close()
	resp, err := http.Post(srv.URL+"/measure", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("expected 503 without hardware, got %d", resp.StatusCode)
	}
}
