// Package rest wires the chi router: middleware chain, public auth routes,
// the authenticated API surface and the operational endpoints.
package rest

import (
	"context"
	"net/http"

	"fleetgrid-backend/application/services"
	"fleetgrid-backend/infrastructure/session"
	"fleetgrid-backend/interfaces/http/rest/handlers"
	"fleetgrid-backend/interfaces/http/rest/middleware"
	ws "fleetgrid-backend/interfaces/websocket"
	"fleetgrid-backend/pkg/auth"
	"fleetgrid-backend/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
)

// Deps carries everything the router needs.
type Deps struct {
	Auth      *services.AuthService
	Users     *services.UserService
	Devices   *services.DeviceService
	Analytics *services.AnalyticsService
	Exports   *services.ExportService

	Validator   *auth.TokenValidator
	Revocations *session.RevocationRegistry
	WSServer    *ws.Server
	Metrics     *observability.Metrics

	// ReadyCheck reports whether downstream dependencies are reachable.
	ReadyCheck func(ctx context.Context) error

	EnableCORS bool
	Logger     *zap.Logger
}

// Router creates and configures the HTTP router
type Router struct {
	deps Deps
}

// NewRouter creates a new router instance
func NewRouter(deps Deps) *Router {
	return &Router{deps: deps}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(middleware.Logger(rt.deps.Logger))
	if rt.deps.Metrics != nil {
		router.Use(middleware.Metrics(rt.deps.Metrics))
	}

	if rt.deps.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"*"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.deps.Metrics != nil {
		router.Method(http.MethodGet, "/metrics", rt.deps.Metrics.Handler())
	}

	authHandler := handlers.NewAuthHandler(rt.deps.Auth, rt.deps.Logger)
	router.Route("/auth", func(r chi.Router) {
		r.Post("/signup", authHandler.Signup)
		r.Post("/login", authHandler.Login)
		r.Post("/refresh", authHandler.Refresh)
		// Logout stays outside the auth middleware: an expired token must
		// still reach the revocation path to produce TokenExpired.
		r.Post("/logout", authHandler.Logout)
	})

	if rt.deps.WSServer != nil {
		router.Get("/ws", rt.deps.WSServer.HandleUpgrade)
	}

	router.Group(func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.deps.Validator, rt.deps.Revocations, rt.deps.Logger))

		userHandler := handlers.NewUserHandler(rt.deps.Users, rt.deps.Logger)
		r.Route("/users", func(r chi.Router) {
			r.Get("/profile", userHandler.GetProfile)
			r.Put("/profile", userHandler.UpdateProfile)
		})

		deviceHandler := handlers.NewDeviceHandler(rt.deps.Devices, rt.deps.Analytics, rt.deps.Logger)
		r.Route("/devices", func(r chi.Router) {
			r.Post("/", deviceHandler.Register)
			r.Get("/", deviceHandler.List)
			r.Get("/{deviceID}", deviceHandler.Get)
			r.Patch("/{deviceID}", deviceHandler.Update)
			r.Delete("/{deviceID}", deviceHandler.Delete)
			r.Post("/{deviceID}/heartbeat", deviceHandler.Heartbeat)
			r.Post("/{deviceID}/logs", deviceHandler.RecordLog)
			r.Get("/{deviceID}/logs", deviceHandler.ListLogs)
			r.Get("/{deviceID}/usage", deviceHandler.Usage)
		})

		exportHandler := handlers.NewExportHandler(rt.deps.Exports, rt.deps.Logger)
		r.Route("/export", func(r chi.Router) {
			r.Post("/", exportHandler.Create)
			r.Get("/{jobID}", exportHandler.Get)
		})
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}

func (rt *Router) readinessCheck(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	if rt.deps.ReadyCheck != nil {
		if err := rt.deps.ReadyCheck(r.Context()); err != nil {
			rt.deps.Logger.Warn("Readiness check failed", zap.Error(err))
			w.WriteHeader(http.StatusServiceUnavailable)
			w.Write([]byte(`{"status":"not ready"}`))
			return
		}
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"ready"}`))
}
