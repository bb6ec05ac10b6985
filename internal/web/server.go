package web

import (
	"context"
	"crypto/rand"
	"embed"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"time"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"

	"github.com/codefionn/promptloop/internal/history"
	"github.com/codefionn/promptloop/internal/logger"
	"github.com/codefionn/promptloop/internal/prd"
)

//go:embed static/*
var StaticFiles embed.FS

const (
	authTokenLength = 32
	maxBodySize     = 1 << 20
)

// Server serves the promptloop dashboard: PRD editing, run status and a
// WebSocket stream of loop progress.
type Server struct {
	addr       string
	authToken  string
	httpServer *http.Server
	hub        *Hub
	watcher    *PRDWatcher
	prdPath    string
	converter  prd.Converter
	hist       *history.Store
	status     func() *StatusInfo
}

// NewServer creates a new dashboard server. hist may be nil when no run
// ledger is configured; status may be nil when no run is active.
func NewServer(port int, prdPath string, converter prd.Converter, hist *history.Store, status func() *StatusInfo) (*Server, error) {
	if err := mime.AddExtensionType(".js", "application/javascript"); err != nil {
		logger.Warn("Failed to register .js MIME type: %v", err)
	}

	token, err := generateAuthToken()
	if err != nil {
		return nil, fmt.Errorf("failed to generate auth token: %w", err)
	}

	srv := &Server{
		addr:      fmt.Sprintf("localhost:%d", port),
		authToken: token,
		hub:       NewHub(),
		prdPath:   prdPath,
		converter: converter,
		hist:      hist,
		status:    status,
	}
	if srv.status == nil {
		srv.status = srv.prdOnlyStatus
	}
	return srv, nil
}

// routes builds the HTTP router. Everything except static assets requires
// the session auth token.
func (s *Server) routes() http.Handler {
	router := httprouter.New()

	router.GET("/", s.requireToken(s.handleIndex))
	router.GET("/ws", s.requireToken(s.handleWebSocket))
	router.GET("/api/status", s.requireToken(s.handleStatus))
	router.GET("/api/runs", s.requireToken(s.handleRuns))
	router.GET("/api/prd", s.requireToken(s.handleGetPRD))
	router.PUT("/api/prd", s.requireToken(s.handlePutPRD))
	router.POST("/api/prd/convert", s.requireToken(s.handleConvertPRD))
	router.GET("/api/prd/preview", s.requireToken(s.handlePreviewPRD))

	fileServer := http.FileServer(http.FS(StaticFiles))
	router.Handler(http.MethodGet, "/static/*filepath", http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, ".js") {
			w.Header().Set("Content-Type", "application/javascript")
		}
		fileServer.ServeHTTP(w, r)
	}))

	return router
}

// Start starts the web server
func (s *Server) Start() error {
	s.httpServer = &http.Server{
		Addr:         s.addr,
		Handler:      s.routes(),
		ReadTimeout:  60 * time.Second,
		WriteTimeout: 60 * time.Second,
	}

	go s.hub.Run()

	watcher, err := NewPRDWatcher(s.prdPath, s.hub)
	if err != nil {
		logger.Warn("PRD watcher disabled: %v", err)
	} else {
		s.watcher = watcher
	}

	go func() {
		logger.Info("Web server listening on %s", s.addr)
		if err := s.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("HTTP server error: %v", err)
		}
	}()

	return nil
}

// Stop stops the web server
func (s *Server) Stop() error {
	logger.Info("Stopping web server...")

	if s.watcher != nil {
		_ = s.watcher.Close()
	}
	s.hub.Stop()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown HTTP server: %w", err)
	}
	return nil
}

// GetURL returns the server URL with auth token
func (s *Server) GetURL() string {
	return fmt.Sprintf("http://%s/?token=%s", s.addr, s.authToken)
}

// OpenBrowser opens the default browser to the server URL
func (s *Server) OpenBrowser() error {
	url := s.GetURL()
	var cmd *exec.Cmd

	switch runtime.GOOS {
	case "windows":
		cmd = exec.Command("rundll32", "url.dll,FileProtocolHandler", url)
	case "darwin":
		cmd = exec.Command("open", url)
	case "linux":
		cmd = exec.Command("xdg-open", url)
	default:
		return fmt.Errorf("unsupported platform: %s", runtime.GOOS)
	}

	return cmd.Start()
}

// PublishProgress pushes a loop progress line to all connected dashboards.
func (s *Server) PublishProgress(content string) {
	s.hub.Broadcast(&WebMessage{
		Type:      MessageTypeRunProgress,
		Content:   content,
		Timestamp: time.Now(),
	})
}

// PublishRunFinished announces the final outcome of a run.
func (s *Server) PublishRunFinished(status string, iterations int) {
	s.hub.Broadcast(&WebMessage{
		Type:    MessageTypeRunFinished,
		Content: status,
		Data: map[string]interface{}{
			"status":     status,
			"iterations": iterations,
		},
		Timestamp: time.Now(),
	})
}

// requireToken rejects requests without the session auth token. The token is
// accepted from the query string or the X-Auth-Token header.
func (s *Server) requireToken(next httprouter.Handle) httprouter.Handle {
	return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
		token := r.URL.Query().Get("token")
		if token == "" {
			token = r.Header.Get("X-Auth-Token")
		}
		if token != s.authToken {
			logger.Warn("Request rejected: invalid auth token for %s", r.URL.Path)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r, ps)
	}
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	data, err := StaticFiles.ReadFile("static/index.html")
	if err != nil {
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(data)
}

// handleWebSocket handles WebSocket connections
func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	upgrader := websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			return true // Token already checked; server binds to localhost only
		},
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		logger.Error("Failed to upgrade WebSocket: %v", err)
		return
	}

	client := NewClient(s.hub, conn, s.status)
	s.hub.Register(client)

	go client.WritePump()
	go client.ReadPump()
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleRuns(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	if s.hist == nil {
		writeJSON(w, http.StatusOK, []history.Run{})
		return
	}
	runs, err := s.hist.RecentRuns(20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if runs == nil {
		runs = []history.Run{}
	}
	writeJSON(w, http.StatusOK, runs)
}

func (s *Server) handleGetPRD(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	doc, err := prd.Load(s.prdPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, fmt.Errorf("no PRD at %s", s.prdPath))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handlePutPRD(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	var doc prd.Document
	if err := json.Unmarshal(body, &doc); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid PRD JSON: %w", err))
		return
	}
	if err := doc.Validate(); err != nil {
		writeError(w, http.StatusUnprocessableEntity, err)
		return
	}
	if err := doc.Save(s.prdPath); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, &doc)
}

func (s *Server) handleConvertPRD(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBodySize))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if strings.TrimSpace(string(body)) == "" {
		writeError(w, http.StatusBadRequest, fmt.Errorf("empty markdown body"))
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Minute)
	defer cancel()

	doc := prd.ConvertMarkdown(ctx, s.converter, string(body))
	writeJSON(w, http.StatusOK, doc)
}

func (s *Server) handlePreviewPRD(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	doc, err := prd.Load(s.prdPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, http.StatusNotFound, fmt.Errorf("no PRD at %s", s.prdPath))
			return
		}
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
	_, _ = w.Write([]byte(doc.ToMarkdown()))
}

// prdOnlyStatus is the fallback status source when no loop is running.
func (s *Server) prdOnlyStatus() *StatusInfo {
	info := &StatusInfo{Remaining: []string{}}
	status, err := prd.ReadStatus(s.prdPath)
	if err != nil {
		return info
	}
	info.Total = status.Total
	info.Passed = status.Passed
	info.Remaining = status.Remaining
	return info
}

func writeJSON(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("Failed to encode response: %v", err)
	}
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

// generateAuthToken generates a random auth token
func generateAuthToken() (string, error) {
	bytes := make([]byte, authTokenLength)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}
	return hex.EncodeToString(bytes), nil
}
