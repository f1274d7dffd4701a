package http

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	sharedobs "github.com/couchcryptid/storm-data-shared/observability"

	"github.com/couchcryptid/quake-sync/internal/auth"
	"github.com/couchcryptid/quake-sync/internal/dashboard"
	"github.com/couchcryptid/quake-sync/internal/pipeline"
)

// Syncer runs one ingestion pass on demand.
type Syncer interface {
	RunOnce(ctx context.Context) (pipeline.PassResult, error)
}

// Deps are the collaborators the HTTP surface serves.
type Deps struct {
	Ready       sharedobs.ReadinessChecker
	State       *dashboard.State
	Auth        *auth.Manager
	Sync        Syncer
	Hub         *Hub
	CORSOrigins []string
	Logger      *slog.Logger
}

// Server exposes the dashboard API, the event stream and the health,
// readiness and metrics endpoints.
type Server struct {
	httpServer *http.Server
	logger     *slog.Logger
}

// NewServer builds the router and the underlying http.Server.
func NewServer(addr string, deps Deps) *Server {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}
	h := &handlers{
		state:  deps.State,
		auth:   deps.Auth,
		sync:   deps.Sync,
		hub:    deps.Hub,
		logger: logger,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(logger))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   deps.CORSOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", sharedobs.LivenessHandler())
	r.Get("/readyz", sharedobs.ReadinessHandler(deps.Ready))
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/register", h.register)
			r.Post("/login", h.login)
			r.Post("/logout", h.logout)
			r.Get("/session", h.session)
		})

		r.Group(func(r chi.Router) {
			r.Use(h.requireSession)

			r.Route("/quakes", func(r chi.Router) {
				r.Get("/", h.listQuakes)
				r.Get("/{id}", h.getQuake)
				r.Post("/{id}/select", h.selectQuake)
			})
			r.Get("/view", h.view)
			r.Put("/filter", h.setFilter)
			r.Post("/filter/reset", h.resetFilter)
			r.Get("/legend", h.legend)
			r.Get("/basemaps", h.basemaps)
			r.Post("/sync", h.runSync)
		})
	})

	r.With(h.requireSession).Get("/ws", h.stream)

	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      r,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 30 * time.Second,
			IdleTimeout:  60 * time.Second,
		},
		logger: logger,
	}
}

// Start begins listening. Returns http.ErrServerClosed on graceful shutdown.
func (s *Server) Start() error {
	s.logger.Info("http server starting", "addr", s.httpServer.Addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully drains connections within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

// ServeHTTP delegates to the underlying handler, useful for testing.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.httpServer.Handler.ServeHTTP(w, r)
}

// requestLogger logs one line per request through slog.
func requestLogger(logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			logger.Debug("http request",
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", time.Since(start),
				"request_id", middleware.GetReqID(r.Context()),
			)
		})
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	sharedobs.WriteJSON(w, status, map[string]string{"error": msg})
}
