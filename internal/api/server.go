// Package api serves the consumer facade over HTTP: zone readings, setpoint
// control, billing, pause/resume, and Prometheus metrics.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/adubusi/AI-Family/internal/channel"
	"github.com/adubusi/AI-Family/internal/house"
	"github.com/adubusi/AI-Family/internal/logging"
	"github.com/adubusi/AI-Family/internal/supervisor"
	"github.com/adubusi/AI-Family/internal/tariff"
)

// Simulation is the facade the API serves. *supervisor.Supervisor
// satisfies it.
type Simulation interface {
	Zones() []supervisor.ZoneReading
	ZoneReading(name string) (supervisor.ZoneReading, error)
	SetSetpoint(name string, v float64) error
	Snapshot() channel.Snapshot
	Pause()
	Resume()
	Paused() bool
	Alive() bool
	RunID() string
}

// Server routes HTTP requests to a Simulation.
type Server struct {
	sim     Simulation
	metrics *Metrics
	log     *slog.Logger
	router  *mux.Router
}

// NewServer builds the router. metrics may be nil to drop /metrics.
func NewServer(sim Simulation, metrics *Metrics, log *slog.Logger) *Server {
	s := &Server{sim: sim, metrics: metrics, log: logging.OrDiscard(log)}
	s.router = s.newRouter()
	return s
}

func (s *Server) newRouter() *mux.Router {
	r := mux.NewRouter()
	handle := func(path, route string, h http.HandlerFunc, methods ...string) {
		r.Handle(path, s.metrics.WrapHandler(route, h)).Methods(methods...)
	}

	handle("/healthz", "healthz", s.health, http.MethodGet)
	handle("/zones", "zones", s.listZones, http.MethodGet)
	handle("/zones/{name}", "zone", s.getZone, http.MethodGet)
	handle("/zones/{name}/setpoint", "setpoint", s.putSetpoint, http.MethodPut)
	handle("/energy", "energy", s.energy, http.MethodGet)
	handle("/pause", "pause", s.pause, http.MethodPost)
	handle("/resume", "resume", s.resume, http.MethodPost)
	if s.metrics != nil {
		r.Handle("/metrics", http.HandlerFunc(s.serveMetrics)).Methods(http.MethodGet)
	}
	return r
}

// Handler returns the root handler.
func (s *Server) Handler() http.Handler { return s.router }

// ListenAndServe serves on addr until ctx is done, then shuts down.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	s.log.Info("http api listening", "addr", addr)

	select {
	case err := <-errc:
		return fmt.Errorf("http api: %w", err)
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("http api shutdown: %w", err)
	}
	return nil
}

type errorBody struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, errorBody{Error: err.Error()})
}

// statusFor maps facade errors onto HTTP statuses.
func statusFor(err error) int {
	switch {
	case errors.Is(err, house.ErrUnknownZone):
		return http.StatusNotFound
	case errors.Is(err, supervisor.ErrInvalidSetpoint):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

type healthBody struct {
	Status string `json:"status"`
	Alive  bool   `json:"alive"`
	Paused bool   `json:"paused"`
	RunID  string `json:"run_id,omitempty"`
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthBody{
		Status: "ok",
		Alive:  s.sim.Alive(),
		Paused: s.sim.Paused(),
		RunID:  s.sim.RunID(),
	})
}

func (s *Server) listZones(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.sim.Zones())
}

func (s *Server) getZone(w http.ResponseWriter, r *http.Request) {
	zr, err := s.sim.ZoneReading(mux.Vars(r)["name"])
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, zr)
}

type setpointBody struct {
	Setpoint *float64 `json:"setpoint"`
}

func (s *Server) putSetpoint(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]
	var body setpointBody
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<10)).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decoding body: %w", err))
		return
	}
	if body.Setpoint == nil {
		writeError(w, http.StatusBadRequest, errors.New("setpoint is required"))
		return
	}
	if err := s.sim.SetSetpoint(name, *body.Setpoint); err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	s.log.Info("setpoint changed", "zone", name, "setpoint", *body.Setpoint, "via", "http")

	zr, err := s.sim.ZoneReading(name)
	if err != nil {
		writeError(w, statusFor(err), err)
		return
	}
	writeJSON(w, http.StatusOK, zr)
}

type energyBody struct {
	supervisor.EnergySummary
	Hour   float64 `json:"hour"`
	Tier   string  `json:"tier,omitempty"`
	Warmup bool    `json:"warmup,omitempty"`
}

func (s *Server) energy(w http.ResponseWriter, _ *http.Request) {
	snap := s.sim.Snapshot()
	body := energyBody{
		EnergySummary: supervisor.EnergySummary{Price: snap.Price, Power: snap.Power, Bill: snap.Bill, Outdoor: snap.Outdoor},
		Hour:          snap.Hour,
		Warmup:        snap.WarmingUp(),
	}
	if !body.Warmup {
		body.Tier = tariff.TierForHour(int(math.Floor(snap.Hour))).String()
	}
	writeJSON(w, http.StatusOK, body)
}

type pauseBody struct {
	Paused bool `json:"paused"`
}

func (s *Server) pause(w http.ResponseWriter, _ *http.Request) {
	s.sim.Pause()
	s.log.Info("simulation paused", "via", "http")
	writeJSON(w, http.StatusOK, pauseBody{Paused: s.sim.Paused()})
}

func (s *Server) resume(w http.ResponseWriter, _ *http.Request) {
	s.sim.Resume()
	s.log.Info("simulation resumed", "via", "http")
	writeJSON(w, http.StatusOK, pauseBody{Paused: s.sim.Paused()})
}

func (s *Server) serveMetrics(w http.ResponseWriter, r *http.Request) {
	s.metrics.ObserveSnapshot(s.sim.Snapshot())
	s.metrics.Handler().ServeHTTP(w, r)
}
