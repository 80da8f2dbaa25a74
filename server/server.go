// Package server exposes bearing runs over HTTP: a bearing list, start and
// stop endpoints, and the live event stream over Server-Sent Events and
// WebSocket. One run is active at a time.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"

	"github.com/OrlandoFon/Backend-TCCRolamentos/config"
	"github.com/OrlandoFon/Backend-TCCRolamentos/simulation"
)

var (
	// ErrRunning is returned when a run is started while another is active.
	ErrRunning = errors.New("a simulation is already running")
	// ErrBadRequest is wrapped by start requests that cannot be served.
	ErrBadRequest = errors.New("invalid start request")
)

// Exit codes reported in the simulation_end record.
const (
	CodeCompleted = 0
	CodeFailed    = 1
	CodeStopped   = 130
)

// StartRequest is the body of POST /api/start-simulation.
type StartRequest struct {
	BearingName       string   `json:"bearingName"`
	BasePath          string   `json:"basePath"`
	UseCustomFdt      *bool    `json:"useCustomFdt"`
	FdtWarmup         *int     `json:"fdtWarmup"`
	FdtPersistenceLen *int     `json:"fdtPersistenceLen"`
	FdtAmpOffset      *float64 `json:"fdtAmpOffset"`
}

// DriverFactory builds the driver for a start request.
type DriverFactory func(req StartRequest) (*simulation.Driver, error)

type endRecord struct {
	Type    string `json:"type"`
	Bearing string `json:"bearing"`
	RunID   string `json:"run_id"`
	Code    int    `json:"code"`
}

type bearingOption struct {
	Value string `json:"value"`
	Label string `json:"label"`
}

type run struct {
	id      string
	bearing string
	cancel  context.CancelFunc
}

// Option configures a Server.
type Option func(*Server)

// WithLogger sets the logger.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Server) { s.log = log }
}

// WithBacklog sets how many records late subscribers receive.
func WithBacklog(n int) Option {
	return func(s *Server) { s.hub = NewHub(n) }
}

// WithBaseContext sets the parent context of every run.
func WithBaseContext(ctx context.Context) Option {
	return func(s *Server) { s.ctx = ctx }
}

// Server runs bearing simulations on request and streams their events.
type Server struct {
	cfg      config.Config
	factory  DriverFactory
	hub      *Hub
	log      logrus.FieldLogger
	ctx      context.Context
	upgrader websocket.Upgrader

	mu     sync.Mutex
	active *run
	wg     sync.WaitGroup
}

// New returns a Server.
func New(cfg config.Config, factory DriverFactory, opts ...Option) *Server {
	s := &Server{
		cfg:     cfg,
		factory: factory,
		hub:     NewHub(4096),
		log:     logrus.StandardLogger(),
		ctx:     context.Background(),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		s.log = logrus.StandardLogger()
	}
	return s
}

// Hub returns the event hub.
func (s *Server) Hub() *Hub { return s.hub }

// Handler returns the HTTP routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/bearings", s.handleBearings)
	mux.HandleFunc("POST /api/start-simulation", s.handleStart)
	mux.HandleFunc("GET /api/stop-simulation", s.handleStop)
	mux.HandleFunc("GET /api/events", s.handleEvents)
	mux.HandleFunc("GET /api/ws", s.handleWS)
	return cors(mux)
}

// Start launches a run in the background and returns its id.
func (s *Server) Start(req StartRequest) (string, error) {
	if req.BearingName == "" {
		return "", fmt.Errorf("%w: bearingName is required", ErrBadRequest)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active != nil {
		return "", fmt.Errorf("%w: %s", ErrRunning, s.active.bearing)
	}
	drv, err := s.factory(req)
	if err != nil {
		return "", err
	}

	ctx, cancel := context.WithCancel(s.ctx)
	r := &run{id: uuid.NewString(), bearing: req.BearingName, cancel: cancel}
	s.active = r
	s.hub.Reset()
	s.wg.Add(1)
	go s.execute(ctx, r, drv)

	s.log.WithFields(logrus.Fields{"run_id": r.id, "bearing": r.bearing}).Info("simulation started")
	return r.id, nil
}

// Stop cancels the active run. It reports whether a run was active.
func (s *Server) Stop() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return false
	}
	s.log.WithField("run_id", s.active.id).Info("stop requested")
	s.active.cancel()
	return true
}

// Running returns the bearing of the active run.
func (s *Server) Running() (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active == nil {
		return "", false
	}
	return s.active.bearing, true
}

// Wait blocks until every started run has finished.
func (s *Server) Wait() { s.wg.Wait() }

func (s *Server) execute(ctx context.Context, r *run, drv *simulation.Driver) {
	defer s.wg.Done()
	defer r.cancel()
	log := s.log.WithFields(logrus.Fields{"run_id": r.id, "bearing": r.bearing})

	code := CodeStopped
	for ev := range drv.Events(ctx) {
		if err := s.hub.BroadcastJSON(ev); err != nil {
			log.WithError(err).Warn("event not encodable")
		}
		switch ev.Kind {
		case simulation.KindCompletion:
			code = CodeCompleted
		case simulation.KindError:
			code = CodeFailed
			log.WithError(ev.Err).Error("simulation failed")
		}
	}

	if err := s.hub.BroadcastJSON(endRecord{Type: "simulation_end", Bearing: r.bearing, RunID: r.id, Code: code}); err != nil {
		log.WithError(err).Warn("end record not encodable")
	}
	log.WithField("code", code).Info("simulation finished")

	s.mu.Lock()
	if s.active == r {
		s.active = nil
	}
	s.mu.Unlock()
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleBearings(w http.ResponseWriter, _ *http.Request) {
	var out []bearingOption
	for _, b := range s.cfg.ArticleBearings() {
		out = append(out, bearingOption{Value: b.Name, Label: fmt.Sprintf("%s (%s)", b.Label, b.Name)})
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	var req StartRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	id, err := s.Start(req)
	switch {
	case errors.Is(err, ErrBadRequest):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, ErrRunning):
		writeError(w, http.StatusConflict, err)
	case err != nil:
		writeError(w, http.StatusInternalServerError, err)
	default:
		writeJSON(w, http.StatusOK, map[string]string{
			"message": fmt.Sprintf("Simulation for %s started.", req.BearingName),
			"run_id":  id,
		})
	}
}

func (s *Server) handleStop(w http.ResponseWriter, _ *http.Request) {
	msg := "No simulation running."
	if s.Stop() {
		msg = "Stop requested."
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": msg})
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming unsupported", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	ch, replay, cancel := s.hub.Subscribe(256)
	defer cancel()
	for _, msg := range replay {
		fmt.Fprintf(w, "data: %s\n\n", msg)
	}
	flusher.Flush()

	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				s.log.Warn("event stream subscriber fell behind, closing")
				return
			}
			fmt.Fprintf(w, "data: %s\n\n", msg)
			flusher.Flush()
		case <-r.Context().Done():
			return
		case <-s.ctx.Done():
			return
		}
	}
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.WithError(err).Debug("websocket upgrade failed")
		return
	}
	defer conn.Close()

	ch, replay, cancel := s.hub.Subscribe(256)
	defer cancel()

	closed := make(chan struct{})
	go func() {
		defer close(closed)
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	for _, msg := range replay {
		if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
			return
		}
	}
	for {
		select {
		case msg, ok := <-ch:
			if !ok {
				s.log.Warn("websocket subscriber fell behind, closing")
				conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "subscriber fell behind"),
					time.Now().Add(time.Second))
				return
			}
			if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-closed:
			return
		case <-s.ctx.Done():
			return
		}
	}
}

func cors(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}
