// Package main provides the entrypoint for the StressSense API server.
package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"github.com/stresssense/stresssense/internal/api"
	"github.com/stresssense/stresssense/internal/api/middleware"
	"github.com/stresssense/stresssense/internal/command"
	"github.com/stresssense/stresssense/internal/database"
	"github.com/stresssense/stresssense/internal/device"
	"github.com/stresssense/stresssense/internal/events"
	"github.com/stresssense/stresssense/internal/operator"
	"github.com/stresssense/stresssense/internal/remotecheck"
	"github.com/stresssense/stresssense/internal/secrets"
	"github.com/stresssense/stresssense/internal/stress"
	"github.com/stresssense/stresssense/internal/telemetry"
)

// Version and BuildTime are set at compile time via ldflags.
var (
	Version   = "dev"
	BuildTime = "unknown"
)

func main() {
	const serviceName = "stresssense-api"

	// Setup structured logging
	log := zerolog.New(os.Stdout).
		With().
		Timestamp().
		Str("service", serviceName).
		Str("version", Version).
		Logger()

	log.Info().
		Str("build_time", BuildTime).
		Msg("starting StressSense API")

	// Get configuration from environment
	port := os.Getenv("APP_PORT")
	if port == "" {
		port = "8080"
	}

	otlpEndpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT")
	if otlpEndpoint == "" {
		otlpEndpoint = "localhost:4317"
	}

	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "development"
	}

	// Initialize OpenTelemetry
	ctx := context.Background()
	telemetryEnabled := os.Getenv("OTEL_ENABLED") == "true"

	tp, err := telemetry.Init(ctx, telemetry.Config{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		Environment:    env,
		OTLPEndpoint:   otlpEndpoint,
		Enabled:        telemetryEnabled,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize telemetry")
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if shutdownErr := tp.Shutdown(shutdownCtx); shutdownErr != nil {
			log.Error().Err(shutdownErr).Msg("failed to shutdown telemetry")
		}
	}()

	if telemetryEnabled {
		log.Info().
			Str("otlp_endpoint", otlpEndpoint).
			Msg("OpenTelemetry initialized")
	}

	// Initialize metrics
	metrics, err := middleware.NewMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize metrics")
		os.Exit(1) //nolint:gocritic // intentional exit, telemetry cleanup is best-effort
	}

	ingestMetrics, err := middleware.NewIngestMetrics()
	if err != nil {
		log.Error().Err(err).Msg("failed to initialize ingest metrics")
		os.Exit(1)
	}

	// Connect to database
	dbConfig := database.ConfigFromEnv()
	pool, err := database.Connect(ctx, dbConfig)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to database")
	}
	defer pool.Close()
	log.Info().
		Str("host", dbConfig.Host).
		Int("port", dbConfig.Port).
		Str("database", dbConfig.Database).
		Msg("database connected")

	// Initialize the device key secret manager. The pepper is part of every
	// stored key hash, so there is no safe fallback value.
	secretManager, err := secrets.NewManager(os.Getenv("DEVICE_KEY_PEPPER"))
	if err != nil {
		log.Fatal().Err(err).Msg("DEVICE_KEY_PEPPER must be set")
	}

	// Initialize device registry with the async last-seen writer
	deviceRepo := device.NewPostgresRepository(pool)

	lastSeenCtx, stopLastSeen := context.WithCancel(ctx)
	lastSeen := device.NewLastSeenWriter(deviceRepo, log)
	lastSeen.Start(lastSeenCtx)
	defer func() {
		stopLastSeen()
		lastSeen.Wait()
	}()

	deviceService := device.NewService(device.ServiceConfig{
		Repo:            deviceRepo,
		Secrets:         secretManager,
		PlaintextMirror: os.Getenv("DEVICE_KEY_PLAINTEXT_MIRROR") == "true",
		LastSeen:        lastSeen,
		Logger:          log,
	})
	log.Info().Msg("device service initialized")

	// Initialize command dispatcher
	commandRepo := command.NewPostgresRepository(pool)
	commandService := command.NewService(commandRepo, deviceService, log)
	log.Info().Msg("command service initialized")

	// Initialize remote-check correlator
	remoteCheckService := remotecheck.NewService(remotecheck.ServiceConfig{
		Devices:  deviceService,
		Commands: commandService,
		Logger:   log,
	})

	// Initialize reading event publisher (optional, Pub/Sub backed)
	var publisher events.Publisher = events.NopPublisher{}
	pubsubProject := os.Getenv("PUBSUB_PROJECT_ID")
	pubsubTopic := os.Getenv("PUBSUB_TOPIC_ID")
	if pubsubProject != "" && pubsubTopic != "" {
		ps, psErr := events.NewPubSubPublisher(ctx, events.PubSubConfig{
			ProjectID: pubsubProject,
			TopicID:   pubsubTopic,
			Logger:    log,
		})
		if psErr != nil {
			log.Fatal().Err(psErr).Msg("failed to initialize pubsub publisher")
		}
		defer ps.Close()
		publisher = ps
		log.Info().
			Str("project", pubsubProject).
			Str("topic", pubsubTopic).
			Msg("pubsub publisher initialized")
	} else {
		log.Warn().Msg("pubsub not configured - reading events will be discarded")
	}

	// Initialize stress telemetry service
	stressRepo := stress.NewPostgresRepository(pool)
	stressService := stress.NewService(stress.ServiceConfig{
		Repo:       stressRepo,
		Correlator: remoteCheckService,
		Publisher:  publisher,
		Logger:     log,
	})
	log.Info().Msg("stress service initialized")

	// Initialize operator token verifier (tokens are issued by the corporate
	// IdP, this service only validates them)
	operatorSigningKey := os.Getenv("OPERATOR_JWT_SIGNING_KEY")
	if operatorSigningKey == "" {
		operatorSigningKey = "local-dev-signing-key-change-in-production"
		log.Warn().Msg("using default operator signing key - not secure for production")
	}
	operatorVerifier := operator.NewVerifier(operator.VerifierConfig{
		SigningKey: operatorSigningKey,
		Issuer:     os.Getenv("OPERATOR_JWT_ISSUER"),
		Audience:   os.Getenv("OPERATOR_JWT_AUDIENCE"),
	})

	// Create router with configuration
	router := api.NewRouter(api.RouterConfig{
		Version:            Version,
		BuildTime:          BuildTime,
		Logger:             log,
		ServiceName:        serviceName,
		Metrics:            metrics,
		DeviceService:      deviceService,
		CommandService:     commandService,
		StressService:      stressService,
		RemoteCheckService: remoteCheckService,
		OperatorVerifier:   operatorVerifier,
		IngestMetrics:      ingestMetrics,
		DB:                 pool,
	})

	// Create HTTP server
	server := &http.Server{
		Addr:         ":" + port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info().
			Str("addr", server.Addr).
			Msg("server listening")

		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("server error")
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("shutting down server")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
		os.Exit(1)
	}

	log.Info().Msg("server stopped")
}
