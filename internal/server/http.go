package server

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/SuperID/nanoservices/pkg/tracelog"
)

const httpLogPrefix = "server:http"

const healthCheckTimeout = 5 * time.Second

// healthStatus is the /health response body.
type healthStatus struct {
	Status         string          `json:"status"`
	Services       int             `json:"services"`
	BufferedEvents int             `json:"bufferedEvents"`
	DroppedEvents  int64           `json:"droppedEvents"`
	Checks         map[string]bool `json:"checks"`
	Timestamp      string          `json:"timestamp"`
}

// Handler returns the HTTP routes: /health, /ready and /trace.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.handleHealth)
	mux.HandleFunc("/ready", s.handleReady)
	mux.HandleFunc("/trace", s.handleTrace)
	return mux
}

func (s *Server) health(ctx context.Context) *healthStatus {
	h := &healthStatus{
		Status:    "healthy",
		Checks:    map[string]bool{},
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
	if s.manager != nil {
		h.Services = len(s.manager.Services())
	}
	if s.buffer != nil {
		h.BufferedEvents = s.buffer.Len()
		h.DroppedEvents += int64(s.buffer.Dropped())
	}
	if s.store != nil {
		h.DroppedEvents += s.store.Dropped() + s.store.Failed()
	}
	if s.pool != nil {
		h.Checks["database"] = s.pool.Ping(ctx) == nil
	}
	if s.nc != nil {
		h.Checks["comms"] = s.nc.IsConnected()
	}
	for _, ok := range h.Checks {
		if !ok {
			h.Status = "unhealthy"
		}
	}
	return h
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
	defer cancel()
	h := s.health(ctx)
	w.Header().Set("Content-Type", "application/json")
	if h.Status != "healthy" {
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(h)
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	status := "ready"
	if !s.ready.Load() {
		status = "starting"
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	json.NewEncoder(w).Encode(map[string]string{"status": status})
}

// handleTrace lists buffered request IDs, or renders the call trees under ?prefix=.
func (s *Server) handleTrace(w http.ResponseWriter, r *http.Request) {
	if s.buffer == nil {
		http.Error(w, "trace buffer disabled; add buffer to TRACE_RECORDERS", http.StatusNotFound)
		return
	}
	prefix := r.URL.Query().Get("prefix")
	forest := tracelog.Build(tracelog.FromEvents(s.buffer.WithPrefix(prefix)))

	if prefix == "" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		for _, id := range forest.IDs() {
			fmt.Fprintln(w, id)
		}
		return
	}

	nodes := forest.Select(prefix)
	if len(nodes) == 0 {
		http.Error(w, fmt.Sprintf("no trace events under %q", prefix), http.StatusNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if err := tracelog.Render(w, nodes); err != nil {
		slog.Error(fmt.Sprintf("%s - render trace %s: %v", httpLogPrefix, prefix, err))
	}
}
