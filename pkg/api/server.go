package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/fetch"
	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/refresh"
	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/render"
	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/types"
	"github.com/antoine-zurcher/dashboard-ruche-connectee-mollens/pkg/window"
)

// Server exposes the trigger surface and render sink over HTTP.
type Server struct {
	controller *refresh.Controller
	hub        *Hub
	addr       string
	server     *http.Server
}

// NewServer creates the API server. The websocket hub is attached to the
// controller as a render sink so every refreshed view is pushed out.
func NewServer(addr string, controller *refresh.Controller) *Server {
	hub := NewHub()
	controller.AttachSink(hub)

	return &Server{
		controller: controller,
		hub:        hub,
		addr:       addr,
	}
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	r := mux.NewRouter()

	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/api/v1/view", s.handleView).Methods("GET")
	r.HandleFunc("/api/v1/refresh", s.handleManualRefresh).Methods("POST")
	r.HandleFunc("/api/v1/selection", s.handleSelection).Methods("PUT")
	r.HandleFunc("/api/v1/timeframe", s.handleTimeframe).Methods("PUT")
	r.HandleFunc("/api/v1/range", s.handleRange).Methods("PUT")
	r.HandleFunc("/api/v1/chart.png", s.handleChart).Methods("GET")
	r.HandleFunc("/ws", s.hub.HandleWS).Methods("GET")

	return r
}

// Start starts the HTTP server with the given handler (usually the
// router wrapped in logging middleware).
func (s *Server) Start(handler http.Handler) error {
	s.server = &http.Server{
		Addr:         s.addr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	return s.server.ListenAndServe()
}

// Stop stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.hub.Close()
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

// handleHealth reports liveness and the series size.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status":  "ok",
		"samples": s.controller.SeriesLen(),
	})
}

// handleView returns the last rendered output, projecting one if no
// action has run yet.
func (s *Server) handleView(w http.ResponseWriter, r *http.Request) {
	out := s.controller.Last()
	if out == nil {
		// Force an initial read-only projection via an empty-range no-op
		var err error
		out, err = s.controller.Handle(r.Context(), refresh.Trigger{Kind: refresh.TriggerRange})
		if err != nil {
			http.Error(w, fmt.Sprintf("projection failed: %v", err), http.StatusInternalServerError)
			return
		}
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(out)
}

// handleManualRefresh runs the session-only fetch path.
func (s *Server) handleManualRefresh(w http.ResponseWriter, r *http.Request) {
	out, err := s.controller.Handle(r.Context(), refresh.Trigger{Kind: refresh.TriggerManualRefresh})
	s.respond(w, out, err)
}

// selectionRequest is the PUT /api/v1/selection body.
type selectionRequest struct {
	Metrics []types.Metric `json:"metrics"`
}

// handleSelection re-projects with a changed metric selection.
func (s *Server) handleSelection(w http.ResponseWriter, r *http.Request) {
	var req selectionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	out, err := s.controller.Handle(r.Context(), refresh.Trigger{
		Kind:      refresh.TriggerSelection,
		Selection: req.Metrics,
	})
	s.respond(w, out, err)
}

// timeframeRequest is the PUT /api/v1/timeframe body.
type timeframeRequest struct {
	Timeframe window.Timeframe `json:"timeframe"`
}

// handleTimeframe re-projects with a named timeframe window.
func (s *Server) handleTimeframe(w http.ResponseWriter, r *http.Request) {
	var req timeframeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	out, err := s.controller.Handle(r.Context(), refresh.Trigger{
		Kind:      refresh.TriggerTimeframe,
		Timeframe: req.Timeframe,
	})
	s.respond(w, out, err)
}

// rangeRequest is the PUT /api/v1/range body.
type rangeRequest struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// handleRange re-projects with an explicit date range. A half-open range
// is accepted and leaves the view unchanged.
func (s *Server) handleRange(w http.ResponseWriter, r *http.Request) {
	var req rangeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, fmt.Sprintf("invalid request: %v", err), http.StatusBadRequest)
		return
	}

	out, err := s.controller.Handle(r.Context(), refresh.Trigger{
		Kind:       refresh.TriggerRange,
		RangeStart: req.Start,
		RangeEnd:   req.End,
	})
	s.respond(w, out, err)
}

// handleChart renders the current projection as a PNG.
func (s *Server) handleChart(w http.ResponseWriter, r *http.Request) {
	out := s.controller.Last()
	if out == nil {
		var err error
		out, err = s.controller.Handle(r.Context(), refresh.Trigger{Kind: refresh.TriggerRange})
		if err != nil {
			http.Error(w, fmt.Sprintf("projection failed: %v", err), http.StatusInternalServerError)
			return
		}
	}

	png, err := render.Chart(out.Projection)
	if errors.Is(err, render.ErrNoData) {
		http.Error(w, "no chart data", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, fmt.Sprintf("chart render failed: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Write(png)
}

// respond writes a trigger outcome. Malformed dates come back as 400, a
// dead sensor as 502; both keep the last good view in the body when one
// exists, so clients can stay on a stale-but-valid render.
func (s *Server) respond(w http.ResponseWriter, out *refresh.Output, err error) {
	w.Header().Set("Content-Type", "application/json")

	status := http.StatusOK
	switch {
	case err == nil:
	case errors.Is(err, window.ErrBadDate), errors.Is(err, window.ErrUnknownTimeframe),
		errors.Is(err, refresh.ErrUnknownMetric):
		status = http.StatusBadRequest
	case errors.Is(err, fetch.ErrSensorUnavailable):
		status = http.StatusBadGateway
	default:
		status = http.StatusInternalServerError
	}

	w.WriteHeader(status)
	body := map[string]interface{}{"output": out}
	if err != nil {
		body["error"] = err.Error()
	}
	json.NewEncoder(w).Encode(body)
}
