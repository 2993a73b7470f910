// Package api provides the HTTP API for StressSense.
package api

import (
	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"github.com/stresssense/stresssense/internal/api/handler"
	"github.com/stresssense/stresssense/internal/api/middleware"
	"github.com/stresssense/stresssense/internal/command"
	"github.com/stresssense/stresssense/internal/device"
	"github.com/stresssense/stresssense/internal/operator"
	"github.com/stresssense/stresssense/internal/remotecheck"
	"github.com/stresssense/stresssense/internal/stress"
)

// RouterConfig holds configuration for the router.
type RouterConfig struct {
	Version            string
	BuildTime          string
	Logger             zerolog.Logger
	ServiceName        string
	Metrics            *middleware.Metrics
	DeviceService      *device.Service
	CommandService     *command.Service
	StressService      *stress.Service
	RemoteCheckService *remotecheck.Service
	OperatorVerifier   *operator.Verifier

	// IngestMetrics is optional; when set, reading ingest outcomes are counted.
	IngestMetrics *middleware.IngestMetrics

	// DB is optional; when set the readiness probe pings it.
	DB handler.Pinger
}

// NewRouter creates a new chi router with all API routes configured.
func NewRouter(cfg RouterConfig) *chi.Mux {
	r := chi.NewRouter()

	serviceName := cfg.ServiceName
	if serviceName == "" {
		serviceName = "stresssense-api"
	}

	// Global middleware - order matters
	r.Use(middleware.RequestID)            // Generate/propagate request ID first
	r.Use(middleware.Tracing(serviceName)) // Distributed tracing
	if cfg.Metrics != nil {
		r.Use(cfg.Metrics.Middleware()) // HTTP metrics
	}
	r.Use(middleware.Logger(cfg.Logger))   // Structured logging
	r.Use(middleware.Recovery(cfg.Logger)) // Panic recovery
	r.Use(chimiddleware.RealIP)            // Real IP extraction
	r.Use(middleware.SecurityHeaders)      // Security headers (HSTS, CSP, etc.)
	r.Use(middleware.RequireTLS)           // TLS enforcement (enabled via REQUIRE_TLS=true)
	r.Use(middleware.ContentTypeJSON)      // JSON content type

	// Initialize handlers
	opsHandler := handler.NewOpsHandler(cfg.Version, cfg.BuildTime, cfg.DB)
	deviceHandler := handler.NewDeviceHandler(cfg.DeviceService)
	commandHandler := handler.NewCommandHandler(cfg.CommandService)
	stressHandler := handler.NewStressHandler(cfg.StressService, cfg.RemoteCheckService, cfg.IngestMetrics)

	// Auth middleware
	deviceAuth := middleware.DeviceAuth(cfg.DeviceService)
	operatorAuth := middleware.OperatorAuth(cfg.OperatorVerifier)

	// Rate limit middleware per endpoint category
	registrationRateLimit := middleware.RateLimitByIP(middleware.RegistrationRateLimit)          // 10 req/min per IP
	commandPollRateLimit := middleware.RateLimitByDevice(middleware.CommandPollRateLimit)        // 30 req/min per device
	telemetryRateLimit := middleware.RateLimitByDevice(middleware.TelemetryWriteRateLimit)       // 10 req/min per device
	remoteCheckPollRateLimit := middleware.RateLimitByDevice(middleware.RemoteCheckPollRateLimit) // 60 req/min per device
	standardRateLimit := middleware.RateLimitByIP(middleware.StandardRateLimit)                  // 100 req/min per IP

	// API v1 routes
	r.Route("/v1", func(r chi.Router) {
		// Ops endpoints (public)
		r.Route("/ops", func(r chi.Router) {
			r.Get("/health", opsHandler.HealthCheck)
			r.Get("/ready", opsHandler.ReadinessCheck)
		})

		r.Route("/devices", func(r chi.Router) {
			// Registration is the only unauthenticated write.
			r.With(registrationRateLimit).Post("/register", deviceHandler.Register)

			// Agent command queue. The limiter keys on the raw credential, so
			// it runs before auth; an over-budget caller never reaches the
			// credential lookup.
			r.With(commandPollRateLimit, deviceAuth).
				Get("/{deviceId}/commands", commandHandler.ListPending)
			r.With(standardRateLimit, deviceAuth).
				Post("/commands/ack/{commandId}", commandHandler.Acknowledge)

			// Operator device administration.
			r.Group(func(r chi.Router) {
				r.Use(operatorAuth, standardRateLimit)
				r.Get("/", deviceHandler.ListByEmployee)
				r.Post("/{deviceId}/rotate-key", deviceHandler.RotateKey)
				r.Post("/{deviceId}/deactivate", deviceHandler.Deactivate)
				r.Post("/commands/cancel/{commandId}", commandHandler.Cancel)
			})
		})

		r.Route("/stress", func(r chi.Router) {
			// Agent telemetry. Limiter first, as above.
			r.With(telemetryRateLimit, deviceAuth).Post("/record", stressHandler.Record)
			r.With(telemetryRateLimit, deviceAuth).Post("/remote-submit", stressHandler.RemoteSubmit)
			r.With(remoteCheckPollRateLimit, deviceAuth).
				Get("/remote-check/{employeeId}", stressHandler.PollRemoteCheck)

			// Operator surface.
			r.Group(func(r chi.Router) {
				r.Use(operatorAuth, standardRateLimit)
				r.Post("/remote-check/{employeeId}", stressHandler.TriggerRemoteCheck)
				r.Get("/employees/{employeeId}/readings", stressHandler.ListReadings)
				r.Get("/employees/{employeeId}/readings/latest", stressHandler.LatestReading)
			})
		})
	})

	return r
}
