// Package api serves the state of the running streamers over HTTP
package api

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/martin2250/perfstream/streamer"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Config of the status server
type Config struct {
	// Address to listen on, empty disables the server
	Address string
	Timeout time.Duration
}

// Register adds the status and metrics handlers to the router
func Register(m *streamer.Manager, r *mux.Router) {
	r.Handle("/status", handleStatus{m: m}).Methods(http.MethodGet)
	r.Handle("/status/{source}", handleSource{m: m}).Methods(http.MethodGet)

	reg := prometheus.NewRegistry()
	reg.MustRegister(NewCollector(m))
	r.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{})).Methods(http.MethodGet)
}

type handleStatus struct {
	m *streamer.Manager
}

func (h handleStatus) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	list := h.m.Streamers()

	data := make([]streamer.Stats, len(list))
	for i, s := range list {
		data[i] = s.Stats()
	}

	writeJSON(w, http.StatusOK, data)
}

type handleSource struct {
	m *streamer.Manager
}

// ServeHTTP answers 200 while the source is idle and 202 while a batch is in flight
func (h handleSource) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["source"]

	s, ok := h.m.Get(name)
	if !ok {
		http.Error(w, "source not streaming", http.StatusNotFound)
		return
	}

	code := http.StatusOK
	if !s.IsIdle() {
		code = http.StatusAccepted
	}

	writeJSON(w, code, s.Stats())
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	enc.Encode(v)
}
