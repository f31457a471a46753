// Package api provides the HTTP and WebSocket server around the backtester.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/quantfold/backtester/internal/backtester"
	"github.com/quantfold/backtester/internal/data"
	"github.com/quantfold/backtester/pkg/types"
)

// Server is the HTTP/WebSocket API server
type Server struct {
	mu         sync.RWMutex
	logger     *zap.Logger
	config     *types.ServerConfig
	router     *mux.Router
	httpServer *http.Server
	upgrader   websocket.Upgrader
	clients    map[string]*Client
	loader     *data.Loader
	runs       map[string]*RunState
}

// RunState tracks a submitted backtest
type RunState struct {
	ID      string
	Config  *types.RunConfig
	Engine  *backtester.Engine
	Status  string
	Started time.Time
	Result  *types.RunResult
	Err     string
}

// Message represents a WebSocket event envelope
type Message struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"` // request, response, event
	Method    string      `json:"method"`
	Payload   interface{} `json:"payload,omitempty"`
	Error     string      `json:"error,omitempty"`
	Timestamp int64       `json:"timestamp"`
}

// NewServer creates a new API server
func NewServer(logger *zap.Logger, config *types.ServerConfig) *Server {
	server := &Server{
		logger:  logger,
		config:  config,
		router:  mux.NewRouter(),
		clients: make(map[string]*Client),
		loader:  data.NewLoader(logger),
		runs:    make(map[string]*RunState),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins for development
			},
		},
	}

	server.setupRoutes()
	return server
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/api/v1/health", s.handleHealth).Methods("GET")

	s.router.HandleFunc("/api/v1/backtest/run", s.handleRunBacktest).Methods("POST")
	s.router.HandleFunc("/api/v1/backtest/{id}", s.handleGetBacktest).Methods("GET")
	s.router.HandleFunc("/api/v1/backtest/{id}/trades", s.handleGetBacktestTrades).Methods("GET")
	s.router.HandleFunc("/api/v1/backtest/{id}/report", s.handleGetBacktestReport).Methods("GET")
	s.router.HandleFunc("/api/v1/backtest/{id}/cancel", s.handleCancelBacktest).Methods("POST")

	if s.config.EnableMetrics {
		s.router.Handle("/metrics", promhttp.Handler())
	}

	s.router.HandleFunc(s.config.WebSocketPath, s.handleWebSocket)
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)

	handler := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}).Handler(s.router)

	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      handler,
		ReadTimeout:  s.config.ReadTimeout,
		WriteTimeout: s.config.WriteTimeout,
	}

	s.logger.Info("starting API server", zap.String("addr", addr))
	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the server
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	for _, client := range s.clients {
		client.Conn.Close()
	}
	s.mu.Unlock()

	return s.httpServer.Shutdown(ctx)
}

// Handler exposes the routed handler for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	json.NewEncoder(w).Encode(map[string]interface{}{
		"status": "healthy",
		"time":   time.Now().Unix(),
	})
}

// handleRunBacktest starts a new backtest. The body is a RunConfig; bars for
// the configured symbol are loaded from <data_dir>/<symbol>.csv. Setup
// failures (bad config, unknown policy, unreadable data) are reported
// synchronously; the replay itself runs in the background.
func (s *Server) handleRunBacktest(w http.ResponseWriter, r *http.Request) {
	cfg := types.DefaultRunConfig()
	if err := json.NewDecoder(r.Body).Decode(&cfg); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}

	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	if cfg.Symbol == "" {
		http.Error(w, "symbol is required", http.StatusBadRequest)
		return
	}

	engine, err := backtester.NewEngine(s.logger, &cfg)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	barFile := filepath.Join(s.config.DataDir, cfg.Symbol+".csv")
	bars, err := s.loader.LoadCSV(barFile)
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	state := &RunState{
		ID:      cfg.ID,
		Config:  &cfg,
		Engine:  engine,
		Status:  "running",
		Started: time.Now(),
	}

	s.mu.Lock()
	s.runs[cfg.ID] = state
	s.mu.Unlock()

	backtestsStarted.Inc()

	go s.streamProgress(engine)

	go func() {
		result, err := engine.Run(context.Background(), bars)

		s.mu.Lock()
		if err != nil {
			state.Status = "failed"
			state.Err = err.Error()
			s.logger.Error("backtest failed", zap.String("id", cfg.ID), zap.Error(err))
			backtestsFailed.Inc()
		} else {
			state.Status = "completed"
			state.Result = result
			backtestsCompleted.Inc()
			tradesRecorded.Add(float64(len(result.Trades)))
			runDuration.Observe(result.Duration.Seconds())
		}
		status := state.Status
		s.mu.Unlock()

		s.broadcast(&Message{
			ID:        uuid.New().String(),
			Type:      "event",
			Method:    "backtest:complete",
			Payload:   map[string]interface{}{"id": cfg.ID, "status": status},
			Timestamp: time.Now().UnixMilli(),
		})
	}()

	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":      cfg.ID,
		"status":  "running",
		"started": state.Started.Unix(),
	})
}

func (s *Server) streamProgress(engine *backtester.Engine) {
	for progress := range engine.ProgressChan() {
		s.broadcast(&Message{
			ID:        uuid.New().String(),
			Type:      "event",
			Method:    "backtest:progress",
			Payload:   progress,
			Timestamp: time.Now().UnixMilli(),
		})
	}
}

func (s *Server) handleGetBacktest(w http.ResponseWriter, r *http.Request) {
	state, ok := s.findRun(r)
	if !ok {
		http.Error(w, "backtest not found", http.StatusNotFound)
		return
	}

	s.mu.RLock()
	response := map[string]interface{}{
		"id":      state.ID,
		"status":  state.Status,
		"started": state.Started.Unix(),
	}
	if state.Result != nil {
		response["result"] = state.Result
	}
	if state.Err != "" {
		response["error"] = state.Err
	}
	if state.Status == "running" {
		response["progress"] = state.Engine.GetProgress()
	}
	s.mu.RUnlock()

	json.NewEncoder(w).Encode(response)
}

func (s *Server) handleGetBacktestTrades(w http.ResponseWriter, r *http.Request) {
	state, ok := s.findRun(r)
	if !ok {
		http.Error(w, "backtest not found", http.StatusNotFound)
		return
	}

	s.mu.RLock()
	result := state.Result
	s.mu.RUnlock()

	if result == nil {
		http.Error(w, "backtest not complete", http.StatusBadRequest)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":     state.ID,
		"trades": result.Trades,
		"count":  len(result.Trades),
	})
}

func (s *Server) handleGetBacktestReport(w http.ResponseWriter, r *http.Request) {
	state, ok := s.findRun(r)
	if !ok {
		http.Error(w, "backtest not found", http.StatusNotFound)
		return
	}

	s.mu.RLock()
	result := state.Result
	s.mu.RUnlock()

	if result == nil {
		http.Error(w, "backtest not complete", http.StatusBadRequest)
		return
	}

	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":     state.ID,
		"report": result.Report,
	})
}

func (s *Server) handleCancelBacktest(w http.ResponseWriter, r *http.Request) {
	state, ok := s.findRun(r)
	if !ok {
		http.Error(w, "backtest not found", http.StatusNotFound)
		return
	}

	s.mu.Lock()
	if state.Status != "running" {
		s.mu.Unlock()
		http.Error(w, "backtest not running", http.StatusBadRequest)
		return
	}
	state.Engine.Cancel()
	state.Status = "cancelled"
	s.mu.Unlock()

	json.NewEncoder(w).Encode(map[string]interface{}{
		"id":     state.ID,
		"status": "cancelled",
	})
}

func (s *Server) findRun(r *http.Request) (*RunState, bool) {
	id := mux.Vars(r)["id"]

	s.mu.RLock()
	state, ok := s.runs[id]
	s.mu.RUnlock()
	return state, ok
}
