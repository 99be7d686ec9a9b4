package server

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/claude/healthbridge/internal/ingest"
	"github.com/claude/healthbridge/internal/models"
	"github.com/claude/healthbridge/internal/timeseries"
)

// Store is the relational surface the handlers need.
type Store interface {
	CreateUser(ctx context.Context, email string) (*models.User, error)
	Connect(ctx context.Context, userID uuid.UUID, device models.ProviderKind, details json.RawMessage) (*models.DeviceConnection, error)
	Disconnect(ctx context.Context, userID uuid.UUID, device models.ProviderKind) error
	ActiveConnections(ctx context.Context, userID uuid.UUID) ([]models.DeviceConnection, error)
	HasActiveConnection(ctx context.Context, userID uuid.UUID, device models.ProviderKind) (bool, error)
	TouchLastSync(ctx context.Context, userID uuid.UUID, device models.ProviderKind, at time.Time) error
}

// Pipeline processes one health data request end to end.
type Pipeline interface {
	Process(ctx context.Context, req *models.HealthDataRequest) (*ingest.Result, error)
}

// HealthReader serves ranked reads from the time-series store.
type HealthReader interface {
	Records(ctx context.Context, f timeseries.QueryFilter) ([]models.HealthDataRecord, error)
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	store    Store
	pipeline Pipeline
	reader   HealthReader
	log      *slog.Logger
	apiKey   string
	version  string
	router   chi.Router
}

// New creates a new Server with all routes configured.
func New(store Store, pipeline Pipeline, reader HealthReader, apiKey, version string, log *slog.Logger) *Server {
	s := &Server{
		store:    store,
		pipeline: pipeline,
		reader:   reader,
		log:      log,
		apiKey:   apiKey,
		version:  version,
		router:   chi.NewRouter(),
	}
	s.routes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// MountMCP attaches the MCP transport under /mcp, behind the same API key
// as the REST surface.
func (s *Server) MountMCP(h http.Handler) {
	s.router.Route("/mcp", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))
		r.Handle("/*", h)
		r.Handle("/", h)
	})
}

func (s *Server) routes() {
	s.router.Use(RequestLogging(s.log))
	s.router.Use(CORS)

	// Liveness probe stays public and does not touch dependencies.
	s.router.Get("/api/v1/health/check", s.handleHealthCheck)

	s.router.Route("/api/v1", func(r chi.Router) {
		r.Use(APIKeyAuth(s.apiKey))

		r.Post("/users", s.handleCreateUser)

		r.Route("/health", func(r chi.Router) {
			r.Post("/connect", s.handleConnect)
			r.Post("/disconnect", s.handleDisconnect)
			r.Get("/connection-status", s.handleConnectionStatus)

			r.Post("/health-data", s.handleHealthData)
			r.Post("/health-data/batch", s.handleHealthDataBatch)
			r.Get("/health-data/{userID}", s.handleGetHealthData)
			r.Get("/health-data/{userID}/latest", s.handleGetLatestHealthData)
		})
	})
}
