package app

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/markdave123-py/flowdesk/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/flowdesk/internal/api/middlewares"
	"github.com/markdave123-py/flowdesk/internal/config"
	"github.com/markdave123-py/flowdesk/internal/models"
)

const apiTimeout = 60 * time.Second

// Pinger reports whether a dependency is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Routes groups the handlers the router mounts.
type Routes struct {
	Auth      *handlers.AuthHandler
	Documents *handlers.DocumentHandler
	Workflows *handlers.WorkflowHandler
	Admin     *handlers.AdminHandler
	Logs      *handlers.TriggerLogHandler
	Internal  *handlers.InternalHandler
	JWT       *appMiddleware.Authenticator
	Health    Pinger
}

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewRouter builds and wires all routes.
func NewRouter(cfg *config.Config, rt Routes) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appMiddleware.RequestLogger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins(),
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", middleware.RequestIDHeader},
		ExposedHeaders:   []string{middleware.RequestIDHeader},
		AllowCredentials: true,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, req *http.Request) {
		ctx, cancel := context.WithTimeout(req.Context(), 2*time.Second)
		defer cancel()
		if err := rt.Health.Ping(ctx); err != nil {
			slog.WarnContext(ctx, "health check failed", "error", err)
			http.Error(w, "unavailable", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	r.Route("/api", func(api chi.Router) {
		api.Use(middleware.Timeout(apiTimeout))

		// public endpoints
		api.Post("/signup", rt.Auth.Signup)
		api.Post("/login", rt.Auth.Login)

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(rt.JWT.JWTMiddleware)

			protected.Get("/me/workflows", rt.Workflows.Mine)
			protected.Get("/trigger-logs", rt.Logs.List)
			protected.Get("/trigger-logs/{logID}", rt.Logs.Get)

			protected.Route("/workflows/{workflowID}", func(wf chi.Router) {
				wf.Get("/", rt.Workflows.Get)
				wf.Get("/documents", rt.Documents.List)
				wf.Post("/documents", rt.Documents.InitiateUpload)
				wf.Post("/documents/upload", rt.Documents.Upload)
				wf.Post("/knowledge/search", rt.Workflows.Search)
				wf.Post("/trigger", rt.Workflows.Trigger)
			})

			protected.Route("/documents/{documentID}", func(doc chi.Router) {
				doc.Post("/process", rt.Documents.Process)
				doc.Get("/status", rt.Documents.Status)
				doc.Delete("/", rt.Documents.Delete)
			})

			protected.Route("/admin", func(admin chi.Router) {
				admin.Use(appMiddleware.RequireRole(models.RoleAdmin))

				admin.Get("/workflows", rt.Admin.ListWorkflows)
				admin.Post("/workflows", rt.Admin.CreateWorkflow)
				admin.Route("/workflows/{workflowID}", func(wf chi.Router) {
					wf.Get("/", rt.Admin.GetWorkflow)
					wf.Put("/", rt.Admin.UpdateWorkflow)
					wf.Delete("/", rt.Admin.DeleteWorkflow)
					wf.Get("/assignments", rt.Admin.ListAssignments)
					wf.Post("/assignments", rt.Admin.AssignUser)
					wf.Delete("/assignments/{userID}", rt.Admin.UnassignUser)
				})

				admin.Get("/users", rt.Admin.ListUsers)
				admin.Post("/users", rt.Admin.CreateUser)
				admin.Route("/users/{userID}", func(u chi.Router) {
					u.Get("/", rt.Admin.GetUser)
					u.Patch("/role", rt.Admin.UpdateUserRole)
					u.Delete("/", rt.Admin.DeleteUser)
				})
			})
		})
	})

	// Inline processing is bounded by the pipeline's own timeout.
	r.Route("/internal", func(in chi.Router) {
		in.Use(appMiddleware.InternalToken(cfg.InternalToken))
		in.Post("/documents/process", rt.Internal.ProcessDocument)
	})

	return r
}

func NewServer(cfg *config.Config, handler http.Handler) *Server {
	return &Server{httpServer: &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	slog.Info("HTTP server listening", "addr", s.httpServer.Addr)
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	slog.Info("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
