package web

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"sync"
	"time"

	"img-compactor-go/internal/config"
	"img-compactor-go/internal/processor"
	"img-compactor-go/internal/resolver"
	"img-compactor-go/internal/runner"
	"img-compactor-go/internal/statistics"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Server exposes the shrink pipeline over HTTP: batches are submitted
// with a POST and progress streams to websocket clients as items
// complete.
type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]bool
	wsMutex    sync.RWMutex

	// Current batch state; one batch runs at a time.
	operationMutex sync.RWMutex
	isRunning      bool
	currentStats   *statistics.Statistics
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type ShrinkRequest struct {
	Sources   []string `json:"sources"`
	OutputDir string   `json:"output_dir,omitempty"`
	Quality   *int     `json:"quality,omitempty"`
}

type itemView struct {
	Source       string `json:"source"`
	OutputPath   string `json:"output_path,omitempty"`
	OriginalSize int64  `json:"original_size,omitempty"`
	ShrunkSize   int64  `json:"shrunk_size,omitempty"`
	Skipped      bool   `json:"skipped,omitempty"`
	Error        string `json:"error,omitempty"`
}

type wsMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// NewServer returns a Server bound to the given configuration.
func NewServer(cfg *config.Config, log *logrus.Logger) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log,
		router:    mux.NewRouter(),
		wsClients: make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Allow all origins in development
			},
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/shrink", s.handleShrink).Methods("POST")
	api.HandleFunc("/statistics", s.handleGetStatistics).Methods("GET")

	s.router.HandleFunc("/ws", s.handleWebSocket)
}

// Start blocks serving HTTP on the given port.
func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	s.log.Infof("Starting web server on http://localhost%s", addr)
	return s.httpServer.ListenAndServe()
}

// Stop shuts the server down gracefully.
func (s *Server) Stop(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.RLock()
	running := s.isRunning
	stats := s.currentStats
	s.operationMutex.RUnlock()

	var statsData interface{}
	if stats != nil {
		statsData = statsView(stats)
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"running":    running,
			"statistics": statsData,
		},
	})
}

func (s *Server) handleShrink(w http.ResponseWriter, r *http.Request) {
	var req ShrinkRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if len(req.Sources) == 0 {
		s.writeError(w, "At least one source is required", http.StatusBadRequest)
		return
	}

	rawQuality := s.cfg.Quality
	if req.Quality != nil {
		rawQuality = *req.Quality
	}
	quality, err := processor.NewQuality(rawQuality)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}

	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = s.cfg.OutputDir
	}

	s.operationMutex.Lock()
	if s.isRunning {
		s.operationMutex.Unlock()
		s.writeError(w, "A batch is already in progress", http.StatusConflict)
		return
	}
	s.isRunning = true
	s.currentStats = statistics.NewStatistics()
	s.operationMutex.Unlock()

	go s.runShrinkAsync(req.Sources, outputDir, quality)

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Batch started",
	})
}

func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.RLock()
	stats := s.currentStats
	s.operationMutex.RUnlock()

	if stats == nil {
		s.writeJSON(w, APIResponse{
			Success: true,
			Data:    nil,
		})
		return
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    statsView(stats),
	})
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.wsUpgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	s.wsMutex.Lock()
	s.wsClients[conn] = true
	s.wsMutex.Unlock()

	s.log.Debug("WebSocket client connected")

	defer func() {
		s.wsMutex.Lock()
		delete(s.wsClients, conn)
		s.wsMutex.Unlock()
		s.log.Debug("WebSocket client disconnected")
	}()

	// Keep connection alive
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) runShrinkAsync(sources []string, outputDir string, quality processor.Quality) {
	s.operationMutex.RLock()
	stats := s.currentStats
	s.operationMutex.RUnlock()

	s.broadcastWSMessage("batch_started", map[string]interface{}{
		"sources":    len(sources),
		"output_dir": outputDir,
		"quality":    quality.Int(),
	})

	res := resolver.New(resolver.Options{
		Timeout:         time.Duration(s.cfg.Fetch.TimeoutSeconds) * time.Second,
		UserAgent:       s.cfg.Fetch.UserAgent,
		RetainTempFiles: s.cfg.Processing.RetainTempFiles,
	}, s.log)

	run := runner.New(processor.NewDefaultFactory(), res, stats, s.log, runner.Options{
		Workers:           s.cfg.Performance.WorkerThreads,
		SkipAlreadyShrunk: s.cfg.Processing.SkipAlreadyShrunk,
		KeepMetadata:      s.cfg.Processing.KeepMetadata,
		ItemHook:          s.broadcastItem,
	})

	run.Run(context.Background(), sources, outputDir, quality)
	stats.Finalize()

	s.operationMutex.Lock()
	s.isRunning = false
	s.operationMutex.Unlock()

	s.broadcastWSMessage("batch_completed", map[string]interface{}{
		"statistics": stats.GetSummary(),
		"failed":     stats.GetSourcesFailed(),
	})
}

func (s *Server) broadcastItem(res runner.Result) {
	view := itemView{
		Source:       res.Source,
		OutputPath:   res.OutputPath,
		OriginalSize: res.OriginalSize,
		ShrunkSize:   res.ShrunkSize,
		Skipped:      res.Skipped,
	}
	kind := "item_completed"
	if res.Err != nil {
		kind = "item_failed"
		view.Error = res.Err.Error()
	}
	s.broadcastWSMessage(kind, view)
}

func (s *Server) broadcastWSMessage(messageType string, data interface{}) {
	message := wsMessage{
		Type: messageType,
		Data: data,
	}

	msgBytes, err := json.Marshal(message)
	if err != nil {
		s.log.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	// Item hooks fire from concurrent runner workers and a websocket
	// connection allows only one writer at a time, so broadcasts take
	// the write lock.
	s.wsMutex.Lock()
	defer s.wsMutex.Unlock()

	for conn := range s.wsClients {
		if err := conn.WriteMessage(websocket.TextMessage, msgBytes); err != nil {
			s.log.Errorf("Failed to write WebSocket message: %v", err)
			delete(s.wsClients, conn)
			conn.Close()
		}
	}
}

func statsView(stats *statistics.Statistics) map[string]interface{} {
	return map[string]interface{}{
		"summary":           stats.GetSummary(),
		"sources_processed": stats.GetSourcesProcessed(),
		"sources_failed":    stats.GetSourcesFailed(),
		"percent_saved":     stats.PercentSaved(),
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(data)
}

func (s *Server) writeError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(APIResponse{
		Success: false,
		Error:   message,
	})
}
