// Package server exposes the trade-management operations over HTTP:
// watcher lifecycle, risk and volume calculations, the execution guard,
// and the event journal.
package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rustyeddy/tradewatch/broker"
	"github.com/rustyeddy/tradewatch/guard"
	"github.com/rustyeddy/tradewatch/journal"
	"github.com/rustyeddy/tradewatch/risk"
	"github.com/rustyeddy/tradewatch/watcher"
)

// MaxRequestBodySize caps request bodies (1 MB)
const MaxRequestBodySize = 1 << 20

// Defaults are the fallback broker limits applied when a request omits
// the venue's volume constraints.
type Defaults struct {
	MinVolume  float64
	VolumeStep float64
}

// Server holds the handler dependencies.
type Server struct {
	watcher  *watcher.Manager
	guard    *guard.Guard
	resolver *broker.Resolver
	journal  journal.Reader // optional; nil disables the events endpoints
	defaults Defaults
}

// New wires a Server. jnl may be nil.
func New(w *watcher.Manager, g *guard.Guard, res *broker.Resolver, jnl journal.Reader, d Defaults) *Server {
	return &Server{watcher: w, guard: g, resolver: res, journal: jnl, defaults: d}
}

// Router builds the HTTP route table.
func (s *Server) Router() *mux.Router {
	router := mux.NewRouter()

	api := router.PathPrefix("/api").Subrouter()

	api.HandleFunc("/watcher/start", s.handleWatcherStart).Methods("POST")
	api.HandleFunc("/watcher/stop", s.handleWatcherStop).Methods("POST")
	api.HandleFunc("/watcher/status", s.handleWatcherStatus).Methods("GET")

	api.HandleFunc("/risk/calc", s.handleRiskCalc).Methods("POST")
	api.HandleFunc("/volume/normalize", s.handleVolumeNormalize).Methods("POST")

	api.HandleFunc("/position/{ticket}", s.handlePosition).Methods("GET")

	api.HandleFunc("/execution", s.handleExecutionStatus).Methods("GET")
	api.HandleFunc("/execution/armed", s.handleSetArmed).Methods("POST")
	api.HandleFunc("/execution/enabled", s.handleSetEnabled).Methods("POST")

	api.HandleFunc("/events/tp1", s.handleEventsTP1).Methods("GET")
	api.HandleFunc("/events/stoploss", s.handleEventsStopLoss).Methods("GET")

	router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	router.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	}).Methods("GET")

	return router
}

// StartRequest is the body of POST /api/watcher/start
type StartRequest struct {
	Armed bool `json:"armed"`
}

func (s *Server) handleWatcherStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if !s.decode(w, r, &req) {
		return
	}
	res := s.watcher.Start(req.Armed)
	s.respondWithJSON(w, http.StatusOK, res)
}

func (s *Server) handleWatcherStop(w http.ResponseWriter, r *http.Request) {
	s.watcher.Stop()
	s.respondWithJSON(w, http.StatusOK, map[string]bool{"running": s.watcher.Running()})
}

func (s *Server) handleWatcherStatus(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, s.watcher.Status())
}

func (s *Server) handleRiskCalc(w http.ResponseWriter, r *http.Request) {
	var in risk.Input
	if !s.decode(w, r, &in) {
		return
	}
	if in.MinVolume <= 0 {
		in.MinVolume = s.defaults.MinVolume
	}
	if in.VolumeStep <= 0 {
		in.VolumeStep = s.defaults.VolumeStep
	}
	if err := in.Validate(); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid input", err.Error())
		return
	}
	s.respondWithJSON(w, http.StatusOK, risk.Calculate(in))
}

// NormalizeRequest is the body of POST /api/volume/normalize
type NormalizeRequest struct {
	PositionVolume   float64 `json:"position_volume"`
	RequestedPercent float64 `json:"requested_percent"`
	VolumeMin        float64 `json:"volume_min"`
	VolumeStep       float64 `json:"volume_step"`
}

func (s *Server) handleVolumeNormalize(w http.ResponseWriter, r *http.Request) {
	var req NormalizeRequest
	if !s.decode(w, r, &req) {
		return
	}
	if req.VolumeMin <= 0 {
		req.VolumeMin = s.defaults.MinVolume
	}
	if req.VolumeStep <= 0 {
		req.VolumeStep = s.defaults.VolumeStep
	}
	res := risk.Normalize(req.PositionVolume, req.RequestedPercent, req.VolumeMin, req.VolumeStep)
	s.respondWithJSON(w, http.StatusOK, res)
}

// PositionResponse is the live position snapshot served for a resolved
// ticket.
type PositionResponse struct {
	Ticket     int64     `json:"ticket"`
	Symbol     string    `json:"symbol"`
	Side       string    `json:"side"`
	Volume     float64   `json:"volume"`
	Entry      float64   `json:"entry"`
	StopLoss   float64   `json:"sl"`
	TakeProfit float64   `json:"tp"`
	Magic      int64     `json:"magic"`
	Comment    string    `json:"comment"`
	OpenTime   time.Time `json:"open_time"`
}

// handlePosition resolves a position or order ticket to the live
// position. Order tickets are followed through recent deal history.
func (s *Server) handlePosition(w http.ResponseWriter, r *http.Request) {
	ticket, err := strconv.ParseInt(mux.Vars(r)["ticket"], 10, 64)
	if err != nil || ticket <= 0 {
		s.respondWithError(w, http.StatusBadRequest, "invalid ticket", mux.Vars(r)["ticket"])
		return
	}

	p, err := s.resolver.Resolve(r.Context(), ticket)
	if errors.Is(err, broker.ErrPositionNotFound) {
		s.respondWithError(w, http.StatusNotFound, "position not found", "")
		return
	}
	if err != nil {
		s.respondWithError(w, http.StatusBadGateway, "venue lookup failed", err.Error())
		return
	}

	s.respondWithJSON(w, http.StatusOK, PositionResponse{
		Ticket:     p.Ticket,
		Symbol:     p.Symbol,
		Side:       p.Side.String(),
		Volume:     p.Volume,
		Entry:      p.EntryPrice,
		StopLoss:   p.StopLoss,
		TakeProfit: p.TakeProfit,
		Magic:      p.Magic,
		Comment:    p.Comment,
		OpenTime:   p.OpenTime,
	})
}

// ExecutionStatus reports both halves of the execution guard
type ExecutionStatus struct {
	Enabled bool `json:"enabled"`
	Armed   bool `json:"armed"`
}

func (s *Server) handleExecutionStatus(w http.ResponseWriter, r *http.Request) {
	s.respondWithJSON(w, http.StatusOK, ExecutionStatus{
		Enabled: s.guard.BackendEnabled(),
		Armed:   s.guard.Armed(),
	})
}

func (s *Server) handleSetArmed(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Armed bool `json:"armed"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	s.guard.SetArmed(req.Armed)
	s.respondWithJSON(w, http.StatusOK, ExecutionStatus{
		Enabled: s.guard.BackendEnabled(),
		Armed:   s.guard.Armed(),
	})
}

func (s *Server) handleSetEnabled(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enabled bool `json:"enabled"`
	}
	if !s.decode(w, r, &req) {
		return
	}
	s.guard.SetBackendEnabled(req.Enabled)
	s.respondWithJSON(w, http.StatusOK, ExecutionStatus{
		Enabled: s.guard.BackendEnabled(),
		Armed:   s.guard.Armed(),
	})
}

func (s *Server) handleEventsTP1(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.respondWithError(w, http.StatusNotFound, "journal disabled", "")
		return
	}
	records, err := s.journal.RecentTP1(s.limit(r))
	if err != nil {
		s.respondWithError(w, http.StatusInternalServerError, "journal query failed", err.Error())
		return
	}
	if records == nil {
		records = []journal.TP1Record{}
	}
	s.respondWithJSON(w, http.StatusOK, records)
}

func (s *Server) handleEventsStopLoss(w http.ResponseWriter, r *http.Request) {
	if s.journal == nil {
		s.respondWithError(w, http.StatusNotFound, "journal disabled", "")
		return
	}
	records, err := s.journal.RecentStopLosses(s.limit(r))
	if err != nil {
		s.respondWithError(w, http.StatusInternalServerError, "journal query failed", err.Error())
		return
	}
	if records == nil {
		records = []journal.StopLossRecord{}
	}
	s.respondWithJSON(w, http.StatusOK, records)
}

func (s *Server) limit(r *http.Request) int {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 && n <= 1000 {
			limit = n
		}
	}
	return limit
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, MaxRequestBodySize)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		s.respondWithError(w, http.StatusBadRequest, "invalid request body", err.Error())
		return false
	}
	return true
}

// ErrorResponse is the error format shared by all endpoints
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func (s *Server) respondWithJSON(w http.ResponseWriter, code int, payload interface{}) {
	response, err := json.Marshal(payload)
	if err != nil {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"failed to marshal response"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_, _ = w.Write(response)
}

func (s *Server) respondWithError(w http.ResponseWriter, code int, message, details string) {
	s.respondWithJSON(w, code, ErrorResponse{Error: message, Details: details})
}
