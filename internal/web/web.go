package web

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"attendfill/internal/config"
	appLog "attendfill/internal/log"
	"attendfill/internal/walker"
)

// ErrRunInProgress is returned by a Trigger when a run is already executing.
var ErrRunInProgress = errors.New("run already in progress")

// Trigger starts a run in the background.
type Trigger func() error

// Status records the daemon's run history for the status server. It is
// written by the scheduler and read by HTTP handlers.
type Status struct {
	mu      sync.RWMutex
	running bool
	runs    int
	last    *walker.Report
	nextRun time.Time
}

func NewStatus() *Status {
	return &Status{}
}

// Begin marks a run as started. It returns false when one is already running.
func (s *Status) Begin() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running {
		return false
	}
	s.running = true
	return true
}

// Finish stores rep as the last run and clears the running flag.
func (s *Status) Finish(rep walker.Report) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = false
	s.runs++
	s.last = &rep
}

func (s *Status) SetNextRun(t time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextRun = t
}

// LastRun returns a copy of the last report, if any.
func (s *Status) LastRun() (walker.Report, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.last == nil {
		return walker.Report{}, false
	}
	return *s.last, true
}

type statusResponse struct {
	Running   bool       `json:"running"`
	Runs      int        `json:"runs"`
	NextRun   *time.Time `json:"next_run,omitempty"`
	LastRunID string     `json:"last_run_id,omitempty"`
	LastError string     `json:"last_error,omitempty"`
}

func (s *Status) snapshot() statusResponse {
	s.mu.RLock()
	defer s.mu.RUnlock()
	resp := statusResponse{Running: s.running, Runs: s.runs}
	if !s.nextRun.IsZero() {
		next := s.nextRun
		resp.NextRun = &next
	}
	if s.last != nil {
		resp.LastRunID = s.last.RunID
		resp.LastError = s.last.Error
	}
	return resp
}

// Server exposes the daemon status over HTTP.
//
//	GET  /health        liveness, never authenticated
//	GET  /api/status    running flag, run count, next scheduled run
//	GET  /api/last-run  the last run report
//	POST /api/run       start a run now
type Server struct {
	cfg     *config.Config
	status  *Status
	trigger Trigger
	router  chi.Router
}

// NewServer constructs a new Server. trigger may be nil, in which case
// POST /api/run answers 501.
func NewServer(cfg *config.Config, status *Status, trigger Trigger) *Server {
	s := &Server{
		cfg:     cfg,
		status:  status,
		trigger: trigger,
		router:  chi.NewRouter(),
	}
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(s.router)
	}
	return s.router
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
	// An empty username or password disables auth.
	if s.cfg.BasicAuth.Username == "" || s.cfg.BasicAuth.Password == "" {
		return false
	}
	return true
}

// basicAuthMiddleware wraps all handlers except /health with HTTP Basic Auth.
func (s *Server) basicAuthMiddleware(next http.Handler) http.Handler {
	username := s.cfg.BasicAuth.Username
	password := s.cfg.BasicAuth.Password

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="attendfill", charset="UTF-8"`)
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// secureCompare compares two strings in constant time.
func secureCompare(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(a), []byte(b)) == 1
}

// Serve listens on cfg.Listen until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		appLog.Info("starting HTTP server", "listen", "http://"+s.cfg.Listen)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	appLog.Info("HTTP server stopped")
	return nil
}

func (s *Server) registerRoutes() {
	s.router.Use(chiMiddleware.CleanPath)
	s.router.Use(chiMiddleware.Recoverer)

	s.router.Get("/health", s.handleHealth)
	s.router.Route("/api", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/last-run", s.handleLastRun)
		r.Post("/run", s.handleRun)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, s.status.snapshot())
}

func (s *Server) handleLastRun(w http.ResponseWriter, _ *http.Request) {
	rep, ok := s.status.LastRun()
	if !ok {
		writeError(w, http.StatusNotFound, "no run yet")
		return
	}
	writeJSON(w, http.StatusOK, rep)
}

func (s *Server) handleRun(w http.ResponseWriter, _ *http.Request) {
	if s.trigger == nil {
		writeError(w, http.StatusNotImplemented, "manual runs disabled")
		return
	}
	if err := s.trigger(); err != nil {
		if errors.Is(err, ErrRunInProgress) {
			writeError(w, http.StatusConflict, err.Error())
			return
		}
		appLog.Error("manual run trigger failed", err)
		writeError(w, http.StatusInternalServerError, "failed to start run")
		return
	}
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "started"})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("failed to write JSON response", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	type errResp struct {
		Error string `json:"error"`
	}
	writeJSON(w, status, errResp{Error: msg})
}
