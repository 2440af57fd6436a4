// Package web serves the daemon's status API: health, the latest run report,
// and the latest categorized events.
package web

import (
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"sync"

	"afisz/internal/config"
	appLog "afisz/internal/log"
	"afisz/internal/pipeline"
)

// Server exposes the most recent pipeline report over HTTP.
type Server struct {
	cfg *config.Config
	mux *http.ServeMux

	mu     sync.RWMutex
	latest *pipeline.Report
}

// NewServer constructs a new Server.
func NewServer(cfg *config.Config) *Server {
	s := &Server{
		cfg: cfg,
		mux: http.NewServeMux(),
	}
	s.registerRoutes()
	return s
}

// SetReport publishes the outcome of the most recent run.
func (s *Server) SetReport(rep *pipeline.Report) {
	s.mu.Lock()
	s.latest = rep
	s.mu.Unlock()
}

// Handler returns the underlying http.Handler for this server.
func (s *Server) Handler() http.Handler {
	h := http.Handler(s.mux)
	if s.basicAuthEnabled() {
		appLog.Info("HTTP basic auth enabled", "listen", "http://"+s.cfg.Listen)
		return s.basicAuthMiddleware(h)
	}
	return h
}

func (s *Server) registerRoutes() {
	s.mux.HandleFunc("/health", s.handleHealth)
	s.mux.HandleFunc("/api/report", s.handleReport)
	s.mux.HandleFunc("/api/events", s.handleEvents)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReport returns the latest run report without the full partition.
func (s *Server) handleReport(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	rep := s.latest
	s.mu.RUnlock()
	if rep == nil {
		writeError(w, http.StatusServiceUnavailable, "no run completed yet")
		return
	}

	trimmed := *rep
	trimmed.Partition = nil
	writeJSON(w, http.StatusOK, &trimmed)
}

// handleEvents returns the latest categorized partition.
func (s *Server) handleEvents(w http.ResponseWriter, _ *http.Request) {
	s.mu.RLock()
	rep := s.latest
	s.mu.RUnlock()
	if rep == nil || rep.Partition == nil {
		writeError(w, http.StatusServiceUnavailable, "no run completed yet")
		return
	}
	writeJSON(w, http.StatusOK, rep.Partition)
}

// basicAuthEnabled reports whether HTTP Basic Auth is configured.
func (s *Server) basicAuthEnabled() bool {
	if s.cfg == nil || s.cfg.BasicAuth == nil {
		return false
	}
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
		// /health stays unauthenticated for probes.
		if r.URL.Path == "/health" {
			next.ServeHTTP(w, r)
			return
		}

		u, p, ok := r.BasicAuth()
		if !ok || !secureCompare(u, username) || !secureCompare(p, password) {
			w.Header().Set("WWW-Authenticate", `Basic realm="afisz", charset="UTF-8"`)
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

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		appLog.Error("write json response failed", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
