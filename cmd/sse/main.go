package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/carecompanion/internal/adapters/events"
	"github.com/zatekoja/carecompanion/internal/api/handlers"
	"github.com/zatekoja/carecompanion/internal/api/middleware"
	"github.com/zatekoja/carecompanion/internal/infrastructure/clients/redis"
	"github.com/zatekoja/carecompanion/internal/infrastructure/observability"
	"github.com/zatekoja/carecompanion/pkg/config"
)

// Standalone locator stream server. The API publishes locator events to Redis;
// this process fans them out to SSE clients so long-lived streams do not hold
// API connections.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.App.Name+"-sse", cfg.App.Env)
	if err := observability.SetLogLevel(cfg.App.LogLevel); err != nil {
		log.Warn().Err(err).Str("level", cfg.App.LogLevel).Msg("Unknown log level, keeping default")
	}
	log.Info().Msg("Starting SSE server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Redis is required: it is the only way to see the API's sessions
	redisClient, err := redis.NewClient(ctx, &cfg.Redis)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize Redis client")
	}
	defer redisClient.Close()

	eventBus := events.NewRedisEventBus(redisClient)

	// Session ids live in the API process, so every id is accepted here
	sseHandler := handlers.NewSSEHandler(eventBus, nil)
	sseHandler.SetHeartbeat(cfg.Server.StreamHeartbeat)

	mux := http.NewServeMux()
	health := handlers.NewHealthHandler(handlers.HealthCheck{Name: "redis", Critical: true, Probe: redisClient.Ping})
	mux.HandleFunc("GET /health", health.Live)
	mux.HandleFunc("GET /health/ready", health.Ready)
	mux.HandleFunc("GET /api/locator/sessions/{id}/stream", sseHandler.StreamLocatorEvents)
	mux.HandleFunc("GET /api/stream/stats", sseHandler.StreamStats)

	handler := middleware.Routed(mux)
	handler = middleware.LoggingMiddleware(handler)
	handler = middleware.CORS(cfg.Server.AllowedOrigins)(handler)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.StreamPort)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      handler,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 0, // streams stay open
		IdleTimeout:  120 * time.Second,
	}

	// Closing the bus ends open streams so Shutdown does not wait them out
	server.RegisterOnShutdown(func() {
		if err := eventBus.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing event bus")
		}
	})

	go func() {
		log.Info().Str("addr", serverAddr).Msg("SSE server listening")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("SSE server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("SSE server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during SSE server shutdown")
	}

	log.Info().Msg("SSE server stopped")
}
