package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/zatekoja/carecompanion/internal/adapters/cache"
	"github.com/zatekoja/carecompanion/internal/adapters/database"
	"github.com/zatekoja/carecompanion/internal/adapters/events"
	"github.com/zatekoja/carecompanion/internal/adapters/providers/facilities"
	"github.com/zatekoja/carecompanion/internal/adapters/providers/geolocation"
	"github.com/zatekoja/carecompanion/internal/adapters/providers/terminology"
	"github.com/zatekoja/carecompanion/internal/adapters/seed"
	"github.com/zatekoja/carecompanion/internal/api/handlers"
	"github.com/zatekoja/carecompanion/internal/api/routes"
	"github.com/zatekoja/carecompanion/internal/application/services"
	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/internal/domain/providers"
	"github.com/zatekoja/carecompanion/internal/domain/repositories"
	"github.com/zatekoja/carecompanion/internal/infrastructure/clients/postgres"
	"github.com/zatekoja/carecompanion/internal/infrastructure/clients/redis"
	"github.com/zatekoja/carecompanion/internal/infrastructure/observability"
	"github.com/zatekoja/carecompanion/pkg/config"
	"github.com/zatekoja/carecompanion/pkg/retry"
)

const (
	memoryCacheSize = 4096
	sweepInterval   = time.Minute
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	observability.InitLogger(cfg.App.Name, cfg.App.Env)
	if err := observability.SetLogLevel(cfg.App.LogLevel); err != nil {
		log.Warn().Err(err).Str("level", cfg.App.LogLevel).Msg("Unknown log level, keeping default")
	}

	// Set up context for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if cfg.OTEL.Enabled && cfg.OTEL.Endpoint != "" {
		shutdown, err := observability.Setup(ctx, cfg.OTEL)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to set up OpenTelemetry")
		} else {
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := shutdown(ctx); err != nil {
					log.Error().Err(err).Msg("Error shutting down OpenTelemetry")
				}
			}()
			log.Info().Msg("OpenTelemetry initialized")
		}
	}

	metrics, err := observability.InitMetrics()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize metrics")
	}

	// Redis backs the cache and the event bus; both fall back to in-process
	// implementations when it is unavailable
	var cacheProvider providers.CacheProvider
	var eventBus providers.LocatorEventBus
	var healthChecks []handlers.HealthCheck
	if cfg.Redis.Enabled {
		redisClient, err := redis.NewClient(ctx, &cfg.Redis)
		if err != nil {
			log.Warn().Err(err).Msg("Redis unavailable, using in-memory cache and event bus")
		} else {
			defer redisClient.Close()
			cacheProvider = cache.NewRedisAdapter(redisClient, cache.DefaultNamespace)
			eventBus = events.NewRedisEventBus(redisClient)
			healthChecks = append(healthChecks, handlers.HealthCheck{Name: "redis", Probe: redisClient.Ping})
			log.Info().Msg("Redis cache and event bus initialized")
		}
	}
	if cacheProvider == nil {
		cacheProvider = cache.NewMemoryAdapter(memoryCacheSize)
	}
	if eventBus == nil {
		eventBus = events.NewMemoryEventBus()
	}

	// Search analytics are optional
	var analyticsRepo repositories.SearchAnalyticsRepository
	if cfg.Database.Enabled {
		pgClient, err := postgres.NewClient(ctx, &cfg.Database, retry.DefaultConfig())
		if err != nil {
			log.Warn().Err(err).Msg("PostgreSQL unavailable, search analytics disabled")
		} else {
			defer pgClient.Close()
			adapter := database.NewSearchAnalyticsAdapter(pgClient)
			if err := adapter.EnsureSchema(ctx); err != nil {
				log.Warn().Err(err).Msg("Failed to ensure search analytics schema")
			}
			analyticsRepo = adapter
			healthChecks = append(healthChecks, handlers.HealthCheck{Name: "analytics", Probe: pgClient.Ping})
		}
	}
	analytics := services.NewSearchAnalyticsService(analyticsRepo)

	catalog, err := seed.Load(cfg.Seed.Dir)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load seed catalogs")
	}
	if cfg.Seed.Watch {
		watcher := seed.NewWatcher(catalog, func(err error) {
			if err != nil {
				log.Warn().Err(err).Msg("Seed catalog reload failed, keeping previous data")
			}
		})
		if err := watcher.Start(ctx); err != nil {
			log.Warn().Err(err).Str("dir", cfg.Seed.Dir).Msg("Failed to watch seed catalogs")
		} else {
			defer watcher.Stop()
		}
	}

	httpClient := &http.Client{Timeout: cfg.Geolocation.HTTPTimeout}

	geocoder := geolocation.NewNominatimGeocoder(geolocation.NominatimOptions{
		BaseURL:    cfg.Geolocation.NominatimURL,
		UserAgent:  cfg.Geolocation.UserAgent,
		HTTPClient: httpClient,
		Cache:      cacheProvider,
		Metrics:    metrics,
	})
	ipLocator := geolocation.NewIPAPILocator(cfg.Geolocation.IPLookupURL, cfg.Geolocation.UserAgent, httpClient, metrics)
	facilityProvider := facilities.NewOverpassProvider(facilities.OverpassOptions{
		URL:       cfg.Facilities.OverpassURL,
		UserAgent: cfg.Geolocation.UserAgent,
		Metrics:   metrics,
	})
	terminologyProvider := terminology.NewRxTermsProvider(terminology.Options{
		URL:        cfg.Medication.TerminologyURL,
		MaxResults: cfg.Medication.MaxAPIResults,
		Cache:      cacheProvider,
		Metrics:    metrics,
	})

	defaultLocation := entities.Coordinate{Lat: cfg.Locator.DefaultLat, Lng: cfg.Locator.DefaultLng}
	resolver := services.NewLocationResolver(ipLocator, geocoder, defaultLocation, cfg.Locator.OneShotTimeout, metrics)
	medicationService := services.NewMedicationService(catalog, terminologyProvider, analytics, metrics, cfg.Medication.MaxAPIResults)

	locatorSessions := services.NewSessionRegistry[*handlers.LocatorSession](cfg.Locator.SessionTTL)
	medicationSessions := services.NewSessionRegistry[*services.MedicationSession](cfg.Locator.SessionTTL)
	go locatorSessions.Run(ctx, sweepInterval)
	go medicationSessions.Run(ctx, sweepInterval)

	locatorHandler := handlers.NewLocatorHandler(services.LocatorDeps{
		Resolver:  resolver,
		Source:    services.NewFacilitySource(facilityProvider, facilities.Synthesize, cfg.Facilities.RadiusMeters, metrics),
		Ranker:    services.NewFacilityRanker(),
		Catalog:   catalog,
		Bus:       eventBus,
		Analytics: analytics,
	}, locatorSessions)

	sseHandler := handlers.NewSSEHandler(eventBus, locatorHandler.Exists)
	sseHandler.SetHeartbeat(cfg.Server.StreamHeartbeat)

	router := routes.NewRouter(
		handlers.NewGeolocationHandler(resolver),
		locatorHandler,
		handlers.NewMedicationHandler(medicationService, medicationSessions, cfg.Medication.Debounce),
		sseHandler,
		handlers.NewAnalyticsHandler(analytics),
		metrics,
	).WithAllowedOrigins(cfg.Server.AllowedOrigins).
		WithHealth(handlers.NewHealthHandler(append(healthChecks, handlers.HealthCheck{
			Name:     "catalog",
			Critical: true,
			Probe: func(context.Context) error {
				if len(catalog.Medications()) == 0 {
					return errors.New("medication catalog is empty")
				}
				return nil
			},
		})...))

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:        serverAddr,
		Handler:     router.SetupRoutes(),
		ReadTimeout: 15 * time.Second,
		// A one-shot location may wait for the device timeout; streams have no
		// write deadline of their own.
		WriteTimeout: 0,
		IdleTimeout:  60 * time.Second,
	}

	// Closing the bus ends open streams so Shutdown does not wait them out
	server.RegisterOnShutdown(func() {
		if err := eventBus.Close(); err != nil {
			log.Error().Err(err).Msg("Error closing event bus")
		}
	})

	go func() {
		log.Info().Str("addr", serverAddr).Msg("Server starting")
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("Server failed to start")
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info().Msg("Server shutting down")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("Error during server shutdown")
	}

	// Stops the sweepers, which close every session and release live watches
	cancel()
	locatorSessions.CloseAll()
	medicationSessions.CloseAll()
	analytics.Wait()

	log.Info().Msg("Server stopped")
}
