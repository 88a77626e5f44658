package server

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/lazypower/rollcall/internal/engine"
	"github.com/lazypower/rollcall/internal/store"
)

// Store is the read side of the member store the server reports on.
type Store interface {
	Ping(ctx context.Context) error
	ListConversations(ctx context.Context) ([]int64, error)
	ListMembers(ctx context.Context, chatID int64) ([]store.ActivityRecord, error)
}

// Server is the rollcall liveness and inspection server.
type Server struct {
	store      Store
	driver     string
	thresholds engine.Thresholds
	router     chi.Router
	version    string
	apiToken   string
	started    time.Time
	now        func() time.Time
}

// New creates a new Server over the given store. driver names the store
// backend in health output. The member inspection routes are mounted only
// when apiToken is set, and require it as a bearer token.
func New(st Store, driver string, th engine.Thresholds, version, apiToken string) *Server {
	s := &Server{
		store:      st,
		driver:     driver,
		thresholds: th,
		version:    version,
		apiToken:   apiToken,
		started:    time.Now(),
		now:        time.Now,
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	// Hosting platforms poll the bound port; any 200 will do.
	r.Get("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("ok\n"))
	})
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		if s.apiToken == "" {
			return
		}
		r.Group(func(r chi.Router) {
			r.Use(s.requireToken)
			r.Get("/conversations", s.handleConversations)
			r.Get("/conversations/{chatID}/members", s.handleMembers)
		})
	})

	s.router = r
}

// requireToken rejects requests without "Authorization: Bearer <api token>".
func (s *Server) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(got), []byte(s.apiToken)) != 1 {
			w.Header().Set("WWW-Authenticate", `Bearer realm="rollcall"`)
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	storeOK := s.store.Ping(ctx) == nil
	status := http.StatusOK
	if !storeOK {
		status = http.StatusServiceUnavailable
	}

	writeJSON(w, status, map[string]any{
		"status":  map[bool]string{true: "ok", false: "degraded"}[storeOK],
		"version": s.version,
		"uptime":  time.Since(s.started).Seconds(),
		"store":   storeOK,
		"driver":  s.driver,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
