// Package api is the HTTP boundary: the client-facing REST surface and
// the network-facing webhook endpoints, routed via gorilla/mux.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"github.com/dhiway/jobstack-bap/internal/apply"
	"github.com/dhiway/jobstack-bap/internal/config"
	"github.com/dhiway/jobstack-bap/internal/events"
	"github.com/dhiway/jobstack-bap/internal/metrics"
	"github.com/dhiway/jobstack-bap/internal/models"
	"github.com/dhiway/jobstack-bap/internal/profilesync"
	"github.com/dhiway/jobstack-bap/internal/search"
	"github.com/dhiway/jobstack-bap/internal/store"
)

// Storage is the slice of the persistence layer the handlers touch.
// *store.Store satisfies it.
type Storage interface {
	SearchMatches(ctx context.Context, profileID, query, primaryFilters, exclude string, limit, offset int) ([]store.ScoredJob, int, error)
	ListApplications(ctx context.Context, userID string) ([]store.Application, error)
	GetDraft(ctx context.Context, userID, jobID string) (*store.Draft, error)
	UpsertDraft(ctx context.Context, d store.Draft) (*store.Draft, error)
	ListDrafts(ctx context.Context, userID string) ([]store.Draft, error)
	UpdateDraft(ctx context.Context, id int64, metadata json.RawMessage) (*store.Draft, error)
	DeleteDraft(ctx context.Context, id int64) error
}

type Server struct {
	cfg       *config.Config
	search    *search.Coordinator
	apply     *apply.Coordinator
	mirror    *profilesync.Mirror
	store     Storage
	publisher *events.Publisher
	metrics   *metrics.Metrics

	httpServer *http.Server
}

func NewServer(cfg *config.Config, searchCoord *search.Coordinator, applyCoord *apply.Coordinator, mirror *profilesync.Mirror, st Storage, publisher *events.Publisher, m *metrics.Metrics) *Server {
	return &Server{
		cfg:       cfg,
		search:    searchCoord,
		apply:     applyCoord,
		mirror:    mirror,
		store:     st,
		publisher: publisher,
		metrics:   m,
	}
}

// Router assembles the full route table.
func (s *Server) Router() http.Handler {
	r := mux.NewRouter()

	// CORS Middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Access-Control-Allow-Origin", "*")
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PATCH, DELETE, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, x-api-key")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	})

	r.HandleFunc("/", s.handleHealth).Methods("GET")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.Handle("/metrics", metrics.Handler()).Methods("GET")

	// webhooks are unauthenticated; the network has no shared key
	r.HandleFunc("/webhook/{action}", s.handleWebhook).Methods("POST")
	r.HandleFunc("/webhook/profiles/{action}", s.handleProfilesWebhook).Methods("POST")

	api := r.PathPrefix("/api").Subrouter()
	api.Use(apiKeyMiddleware(s.cfg.Auth.XAPIKey))

	api.HandleFunc("/v1/search", s.handleSearchV1).Methods("POST")
	api.HandleFunc("/v2/search", s.handleSearchV2).Methods("POST")
	api.HandleFunc("/v3/search", s.handleSearchV3).Methods("POST")

	api.HandleFunc("/v1/select", s.handleSelect).Methods("POST")
	api.HandleFunc("/v1/status", s.handleStatus).Methods("POST")
	api.HandleFunc("/v1/apply", s.handleApply).Methods("POST")

	api.HandleFunc("/v1/job-applications", s.handleListApplications).Methods("GET")
	api.HandleFunc("/v1/job-applications/drafts", s.handleCreateDraft).Methods("POST")
	api.HandleFunc("/v1/job-applications/drafts", s.handleListDrafts).Methods("GET")
	api.HandleFunc("/v1/job-applications/drafts/{id}", s.handleUpdateDraft).Methods("PATCH")
	api.HandleFunc("/v1/job-applications/drafts/{id}", s.handleDeleteDraft).Methods("DELETE")

	api.HandleFunc("/v1/event", s.handleEvent).Methods("POST")

	return r
}

// Start binds and serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%s", s.cfg.HTTP.Address, s.cfg.HTTP.Port)
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.Router(),
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 60 * time.Second,
	}
	slog.Info("http server listening", "addr", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown drains in-flight requests within ctx's deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.HealthResponse{
		Status:    "OK",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("response encode failed", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, models.ErrorResponse{Error: http.StatusText(status), Message: message})
}
