package cli

import (
	"context"
	"fmt"
	"net/http"
	"os"

	"github.com/rs/zerolog"
	"github.com/zatekoja/carecompanion/internal/adapters/cache"
	"github.com/zatekoja/carecompanion/internal/adapters/providers/facilities"
	"github.com/zatekoja/carecompanion/internal/adapters/providers/geolocation"
	"github.com/zatekoja/carecompanion/internal/adapters/providers/terminology"
	"github.com/zatekoja/carecompanion/internal/adapters/seed"
	"github.com/zatekoja/carecompanion/internal/application/services"
	"github.com/zatekoja/carecompanion/internal/domain/entities"
	"github.com/zatekoja/carecompanion/internal/domain/providers"
	"github.com/zatekoja/carecompanion/internal/domain/repositories"
	"github.com/zatekoja/carecompanion/internal/infrastructure/observability"
	"github.com/zatekoja/carecompanion/pkg/config"
)

const cliCacheSize = 256

// App holds the services one CLI invocation runs against
type App struct {
	Medications *services.MedicationService
	Locator     services.LocatorDeps
}

// DefaultBuilder loads configuration and seed catalogs from the environment.
// Logs go to stderr at warn level so stdout stays parseable.
func DefaultBuilder(ctx context.Context, offline bool) (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("load configuration: %w", err)
	}
	observability.InitLoggerTo(os.Stderr, cfg.App.Name, cfg.App.Env)
	zerolog.SetGlobalLevel(zerolog.WarnLevel)

	catalog, err := seed.Load(cfg.Seed.Dir)
	if err != nil {
		return nil, fmt.Errorf("load seed catalogs: %w", err)
	}
	return NewApp(cfg, catalog, offline), nil
}

// NewApp wires the services. Offline mode swaps the geocoder for the fixed city
// table and drops the IP, map-data and terminology lookups, so facilities are
// synthesized and medications come from the local catalog.
func NewApp(cfg *config.Config, catalog repositories.CatalogRepository, offline bool) *App {
	var (
		geocoder         providers.Geocoder      = geolocation.MockGeocoder{}
		ipLocator        providers.IPLocator     = geolocation.OfflineIPLocator{}
		facilityProvider providers.FacilityProvider
		terminologyAPI   providers.MedicationTerminologyProvider
	)

	if !offline {
		httpClient := &http.Client{Timeout: cfg.Geolocation.HTTPTimeout}
		memCache := cache.NewMemoryAdapter(cliCacheSize)
		geocoder = geolocation.NewNominatimGeocoder(geolocation.NominatimOptions{
			BaseURL:    cfg.Geolocation.NominatimURL,
			UserAgent:  cfg.Geolocation.UserAgent,
			HTTPClient: httpClient,
			Cache:      memCache,
		})
		ipLocator = geolocation.NewIPAPILocator(cfg.Geolocation.IPLookupURL, cfg.Geolocation.UserAgent, httpClient, nil)
		facilityProvider = facilities.NewOverpassProvider(facilities.OverpassOptions{
			URL:       cfg.Facilities.OverpassURL,
			UserAgent: cfg.Geolocation.UserAgent,
		})
		terminologyAPI = terminology.NewRxTermsProvider(terminology.Options{
			URL:        cfg.Medication.TerminologyURL,
			MaxResults: cfg.Medication.MaxAPIResults,
			Cache:      memCache,
		})
	}

	defaultLocation := entities.Coordinate{Lat: cfg.Locator.DefaultLat, Lng: cfg.Locator.DefaultLng}
	return &App{
		Medications: services.NewMedicationService(catalog, terminologyAPI, nil, nil, cfg.Medication.MaxAPIResults),
		Locator: services.LocatorDeps{
			Resolver: services.NewLocationResolver(ipLocator, geocoder, defaultLocation, cfg.Locator.OneShotTimeout, nil),
			Source:   services.NewFacilitySource(facilityProvider, facilities.Synthesize, cfg.Facilities.RadiusMeters, nil),
			Ranker:   services.NewFacilityRanker(),
			Catalog:  catalog,
		},
	}
}
