package web

import (
	"context"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"ico-maker-go/internal/config"
	"ico-maker-go/internal/converter"
	"ico-maker-go/internal/icon"
	"ico-maker-go/internal/logger"
	"ico-maker-go/internal/probe"
	"ico-maker-go/internal/report"
	"ico-maker-go/internal/statistics"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

//go:embed index.html
var indexHTML []byte

type Server struct {
	cfg        *config.Config
	log        *logrus.Logger
	prober     probe.Prober
	encoder    converter.Encoder
	router     *mux.Router
	httpServer *http.Server
	wsUpgrader websocket.Upgrader
	wsClients  map[*websocket.Conn]bool
	wsMutex    sync.RWMutex

	// Current batch state
	operationMutex sync.RWMutex
	isRunning      bool
	cancel         context.CancelFunc
	currentStats   *statistics.Statistics
	lastResults    []ResultView
	batches        sync.WaitGroup
}

type APIResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

type ConvertRequest struct {
	Images          []string `json:"images"`
	OutputDirectory string   `json:"output_directory"`
	BaseName        string   `json:"base_name,omitempty"`
	Sizes           []string `json:"sizes"`
	FilterBySource  *bool    `json:"filter_by_source,omitempty"`
}

type InspectRequest struct {
	Path string `json:"path"`
}

type DirectoryInfo struct {
	Path         string `json:"path"`
	Name         string `json:"name"`
	IsDirectory  bool   `json:"is_directory"`
	IsImage      bool   `json:"is_image"`
	Size         int64  `json:"size"`
	ModifiedTime string `json:"modified_time"`
}

// ResultView is the JSON form of a conversion result.
type ResultView struct {
	Input   string   `json:"input"`
	Output  string   `json:"output,omitempty"`
	Sizes   []string `json:"sizes,omitempty"`
	Success bool     `json:"success"`
	Failure string   `json:"failure,omitempty"`
	Message string   `json:"message"`
}

type PlanView struct {
	Input  string   `json:"input"`
	Output string   `json:"output"`
	Width  int      `json:"width,omitempty"`
	Height int      `json:"height,omitempty"`
	Sizes  []string `json:"sizes,omitempty"`
	Error  string   `json:"error,omitempty"`
}

type WSMessage struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

func NewServer(cfg *config.Config, log *logrus.Logger, prober probe.Prober, encoder converter.Encoder) *Server {
	s := &Server{
		cfg:       cfg,
		log:       log,
		prober:    prober,
		encoder:   encoder,
		router:    mux.NewRouter(),
		wsClients: make(map[*websocket.Conn]bool),
		wsUpgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true // Local tool, the UI may be opened from any origin
			},
		},
	}

	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	api := s.router.PathPrefix("/api").Subrouter()
	api.HandleFunc("/status", s.handleStatus).Methods("GET")
	api.HandleFunc("/sizes", s.handleSizes).Methods("GET")
	api.HandleFunc("/directories", s.handleListDirectories).Methods("GET")
	api.HandleFunc("/statistics", s.handleGetStatistics).Methods("GET")
	api.HandleFunc("/inspect", s.handleInspect).Methods("POST")
	api.HandleFunc("/plan", s.handlePlan).Methods("POST")
	api.HandleFunc("/convert", s.handleConvert).Methods("POST")
	api.HandleFunc("/stop", s.handleStop).Methods("POST")

	s.router.HandleFunc("/ws", s.handleWebSocket)
	s.router.HandleFunc("/", s.handleIndex).Methods("GET")
}

// Handler returns the HTTP handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) Start(port int) error {
	addr := fmt.Sprintf(":%d", port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	logger.WithOperation(s.log, "serve").Infof("Starting web server on http://localhost%s", addr)
	return s.httpServer.ListenAndServe()
}

func (s *Server) Stop(ctx context.Context) error {
	s.operationMutex.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.operationMutex.Unlock()

	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Write(indexHTML)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.RLock()
	running := s.isRunning
	stats := s.currentStats
	results := s.lastResults
	s.operationMutex.RUnlock()

	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"running":    running,
			"statistics": statsView(stats),
			"results":    results,
		},
	})
}

func (s *Server) handleSizes(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, APIResponse{
		Success: true,
		Data: map[string]interface{}{
			"catalog":          icon.NewSelection(icon.Catalog()...).Strings(),
			"default":          s.cfg.SizeSelection().Strings(),
			"filter_by_source": s.cfg.Conversion.FilterBySource,
		},
	})
}

func (s *Server) handleListDirectories(w http.ResponseWriter, r *http.Request) {
	path := r.URL.Query().Get("path")
	if path == "" {
		path = "."
	}

	// Prevent directory traversal
	path = filepath.Clean(path)
	if strings.Contains(path, "..") {
		s.writeError(w, "Invalid path", http.StatusBadRequest)
		return
	}

	entries, err := os.ReadDir(path)
	if err != nil {
		s.writeError(w, fmt.Sprintf("Failed to read directory: %v", err), http.StatusInternalServerError)
		return
	}

	var directories []DirectoryInfo
	for _, entry := range entries {
		info, err := entry.Info()
		if err != nil {
			continue
		}

		fullPath := filepath.Join(path, entry.Name())
		directories = append(directories, DirectoryInfo{
			Path:         fullPath,
			Name:         entry.Name(),
			IsDirectory:  entry.IsDir(),
			IsImage:      !entry.IsDir() && s.cfg.IsImageExtension(filepath.Ext(entry.Name())),
			Size:         info.Size(),
			ModifiedTime: info.ModTime().Format(time.RFC3339),
		})
	}

	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    directories,
	})
}

func (s *Server) handleGetStatistics(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.RLock()
	stats := s.currentStats
	s.operationMutex.RUnlock()

	s.writeJSON(w, APIResponse{
		Success: true,
		Data:    statsView(stats),
	})
}

func (s *Server) handleInspect(w http.ResponseWriter, r *http.Request) {
	var req InspectRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(req.Path) == "" {
		s.writeError(w, "Path is required", http.StatusBadRequest)
		return
	}

	md, err := s.prober.Probe(req.Path)
	if err != nil {
		s.writeError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}
	s.writeJSON(w, APIResponse{Success: true, Data: md})
}

func (s *Server) handlePlan(w http.ResponseWriter, r *http.Request) {
	req, engineReq, ok := s.decodeConvertRequest(w, r)
	if !ok {
		return
	}

	engine := converter.NewEngine(s.options(req), s.log, statistics.NewStatistics(), s.encoder, s.prober)
	entries, err := engine.Plan(engineReq)
	if err != nil {
		status := http.StatusInternalServerError
		if isPreflight(err) {
			status = http.StatusBadRequest
		}
		s.writeError(w, err.Error(), status)
		return
	}

	views := make([]PlanView, 0, len(entries))
	for _, e := range entries {
		v := PlanView{Input: e.InputPath, Output: e.OutputPath, Width: e.Width, Height: e.Height, Sizes: e.Sizes.Strings()}
		if e.Err != nil {
			v.Error = e.Err.Error()
		}
		views = append(views, v)
	}
	s.writeJSON(w, APIResponse{Success: true, Data: views})
}

func (s *Server) handleConvert(w http.ResponseWriter, r *http.Request) {
	req, engineReq, ok := s.decodeConvertRequest(w, r)
	if !ok {
		return
	}

	if err := converter.ValidateInputs(engineReq.Images, engineReq.Target.Directory, engineReq.Sizes); err != nil {
		s.writeError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if info, err := os.Stat(engineReq.Target.Directory); err != nil || !info.IsDir() {
		s.writeError(w, "Output directory does not exist", http.StatusBadRequest)
		return
	}

	s.operationMutex.Lock()
	if s.isRunning {
		s.operationMutex.Unlock()
		s.writeError(w, "Conversion already in progress", http.StatusConflict)
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	stats := statistics.NewStatistics()
	s.isRunning = true
	s.cancel = cancel
	s.currentStats = stats
	s.lastResults = nil
	s.batches.Add(1)
	s.operationMutex.Unlock()

	go s.runConvertAsync(ctx, cancel, stats, s.options(req), engineReq)

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Conversion started",
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.operationMutex.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.operationMutex.Unlock()

	s.broadcastWSMessage("convert_stopped", map[string]interface{}{
		"message": "Conversion stopped by user",
	})

	s.writeJSON(w, APIResponse{
		Success: true,
		Message: "Conversion stopped",
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

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			break
		}
	}
}

func (s *Server) runConvertAsync(
	ctx context.Context,
	cancel context.CancelFunc,
	stats *statistics.Statistics,
	opts converter.Options,
	req converter.Request,
) {
	defer s.batches.Done()
	defer cancel()

	s.broadcastWSMessage("convert_started", map[string]interface{}{
		"images":           len(req.Images),
		"output_directory": req.Target.Directory,
		"sizes":            req.Sizes.Strings(),
	})

	engine := converter.NewEngineWithHook(opts, s.log, stats, s.encoder, s.prober, func(r converter.Result) {
		msgType := "file_converted"
		if !r.Success() {
			msgType = "file_failed"
		}
		s.broadcastWSMessage(msgType, resultView(r))
	})

	results, err := engine.ConvertBatch(ctx, req)

	views := make([]ResultView, 0, len(results))
	for _, r := range results {
		views = append(views, resultView(r))
	}

	s.operationMutex.Lock()
	s.isRunning = false
	s.cancel = nil
	s.lastResults = views
	s.operationMutex.Unlock()

	if err != nil {
		s.broadcastWSMessage("convert_error", map[string]interface{}{
			"error": err.Error(),
		})
		return
	}
	s.broadcastWSMessage("convert_completed", map[string]interface{}{
		"summary":    report.Summary(results),
		"statistics": stats.GetSummary(),
	})
}

// wait blocks until every started batch has finished.
func (s *Server) wait() {
	s.batches.Wait()
}

func (s *Server) decodeConvertRequest(w http.ResponseWriter, r *http.Request) (ConvertRequest, converter.Request, bool) {
	var req ConvertRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, "Invalid request body", http.StatusBadRequest)
		return req, converter.Request{}, false
	}

	sizes := s.cfg.SizeSelection()
	if req.Sizes != nil {
		parsed, err := icon.ParseSizes(req.Sizes)
		if err != nil {
			s.writeError(w, err.Error(), http.StatusBadRequest)
			return req, converter.Request{}, false
		}
		sizes = parsed
	}

	return req, converter.Request{
		Images: req.Images,
		Target: converter.Target{
			Directory: config.ExpandPath(req.OutputDirectory),
			BaseName:  req.BaseName,
		},
		Sizes: sizes,
	}, true
}

func (s *Server) options(req ConvertRequest) converter.Options {
	opts := s.cfg.ConverterOptions()
	if req.FilterBySource != nil {
		opts.FilterBySource = *req.FilterBySource
	}
	return opts
}

func resultView(r converter.Result) ResultView {
	v := ResultView{
		Input:   r.InputPath,
		Success: r.Success(),
		Message: report.FileMessage(r).Text,
	}
	if r.Success() {
		v.Output = r.OutputPath
		v.Sizes = r.Sizes.Strings()
	} else {
		v.Failure = converter.FailureKind(r.Err)
	}
	return v
}

func statsView(stats *statistics.Statistics) interface{} {
	if stats == nil {
		return nil
	}
	return map[string]interface{}{
		"summary": stats.GetSummary(),
		"images": map[string]interface{}{
			"found":      atomic.LoadInt64(&stats.ImagesFound),
			"processed":  atomic.LoadInt64(&stats.ImagesProcessed),
			"converted":  atomic.LoadInt64(&stats.ImagesConverted),
			"failed":     atomic.LoadInt64(&stats.ImagesFailed),
			"unreadable": atomic.LoadInt64(&stats.UnreadableImages),
			"encode":     atomic.LoadInt64(&stats.EncodeFailures),
		},
		"frames": stats.GetSizeBreakdown(),
	}
}

func (s *Server) broadcastWSMessage(messageType string, data interface{}) {
	message := WSMessage{
		Type: messageType,
		Data: data,
	}

	msgBytes, err := json.Marshal(message)
	if err != nil {
		s.log.Errorf("Failed to marshal WebSocket message: %v", err)
		return
	}

	// Write under the exclusive lock; gorilla connections allow one writer at a time.
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

// isPreflight reports whether err is one of the validation failures.
func isPreflight(err error) bool {
	return errors.Is(err, converter.ErrMissingInput) ||
		errors.Is(err, converter.ErrMissingOutputDir) ||
		errors.Is(err, converter.ErrNoSizesSelected)
}
