package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all application configuration
type Config struct {
	App         AppConfig
	Server      ServerConfig
	Database    DatabaseConfig
	Redis       RedisConfig
	Geolocation GeolocationConfig
	Facilities  FacilitiesConfig
	Medication  MedicationConfig
	Locator     LocatorConfig
	Seed        SeedConfig
	OTEL        OTELConfig
}

// AppConfig holds process-wide settings
type AppConfig struct {
	Name     string
	Env      string
	LogLevel string
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host            string
	Port            int
	StreamPort      int // standalone stream server
	AllowedOrigins  []string
	StreamHeartbeat time.Duration // SSE keep-alive interval
}

// DatabaseConfig holds database configuration for the analytics store
type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	Database string
	SSLMode  string

	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// RedisConfig holds Redis configuration
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int

	PoolSize    int
	DialTimeout time.Duration
}

// GeolocationConfig holds geocoding and IP lookup settings
type GeolocationConfig struct {
	NominatimURL string
	IPLookupURL  string
	UserAgent    string
	HTTPTimeout  time.Duration
}

// FacilitiesConfig holds map-data query settings
type FacilitiesConfig struct {
	OverpassURL  string
	RadiusMeters int
}

// MedicationConfig holds terminology lookup and search settings
type MedicationConfig struct {
	TerminologyURL string
	Debounce       time.Duration
	MaxAPIResults  int
}

// LocatorConfig holds hospital locator defaults
type LocatorConfig struct {
	DefaultLat     float64
	DefaultLng     float64
	OneShotTimeout time.Duration
	SessionTTL     time.Duration
}

// SeedConfig points at an optional directory overriding the embedded seed catalogs
type SeedConfig struct {
	Dir   string
	Watch bool
}

// OTELConfig holds OpenTelemetry configuration
type OTELConfig struct {
	ServiceName    string
	ServiceVersion string
	Endpoint       string
	Enabled        bool
}

// Load loads configuration from environment variables. A .env file in the
// working directory is read first when present; real env vars win.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{
		App: AppConfig{
			Name:     getEnv("APP_NAME", "care-companion"),
			Env:      getEnv("APP_ENV", "development"),
			LogLevel: getEnv("LOG_LEVEL", "info"),
		},
		Server: ServerConfig{
			Host:            getEnv("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvAsInt("SERVER_PORT", 8080),
			StreamPort:      getEnvAsInt("SSE_PORT", 8081),
			AllowedOrigins:  getEnvAsList("ALLOWED_ORIGINS", []string{"*"}),
			StreamHeartbeat: getEnvAsDuration("SSE_HEARTBEAT", 30*time.Second),
		},
		Database: DatabaseConfig{
			Enabled:  getEnvAsBool("DB_ENABLED", false),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnvAsInt("DB_PORT", 5432),
			User:     getEnv("DB_USER", "postgres"),
			Password: getEnv("DB_PASSWORD", ""),
			Database: getEnv("DB_NAME", "care_companion"),
			SSLMode:  getEnv("DB_SSLMODE", "disable"),

			MaxOpenConns:    getEnvAsInt("DB_MAX_OPEN_CONNS", 10),
			MaxIdleConns:    getEnvAsInt("DB_MAX_IDLE_CONNS", 2),
			ConnMaxLifetime: getEnvAsDuration("DB_CONN_MAX_LIFETIME", 5*time.Minute),
		},
		Redis: RedisConfig{
			Enabled:  getEnvAsBool("REDIS_ENABLED", false),
			Host:     getEnv("REDIS_HOST", "localhost"),
			Port:     getEnvAsInt("REDIS_PORT", 6379),
			Password: getEnv("REDIS_PASSWORD", ""),
			DB:       getEnvAsInt("REDIS_DB", 0),

			PoolSize:    getEnvAsInt("REDIS_POOL_SIZE", 10),
			DialTimeout: getEnvAsDuration("REDIS_DIAL_TIMEOUT", 3*time.Second),
		},
		Geolocation: GeolocationConfig{
			NominatimURL: getEnv("NOMINATIM_URL", "https://nominatim.openstreetmap.org"),
			IPLookupURL:  getEnv("IP_LOOKUP_URL", "https://ipapi.co"),
			UserAgent:    getEnv("GEO_USER_AGENT", "care-companion/1.0"),
			HTTPTimeout:  getEnvAsDuration("GEO_HTTP_TIMEOUT", 8*time.Second),
		},
		Facilities: FacilitiesConfig{
			OverpassURL:  getEnv("OVERPASS_URL", "https://overpass-api.de/api/interpreter"),
			RadiusMeters: getEnvAsInt("FACILITY_RADIUS_METERS", 5000),
		},
		Medication: MedicationConfig{
			TerminologyURL: getEnv("RXTERMS_URL", "https://clinicaltables.nlm.nih.gov/api/rxterms/v3/search"),
			Debounce:       getEnvAsDuration("MEDICATION_DEBOUNCE", 400*time.Millisecond),
			MaxAPIResults:  getEnvAsInt("MEDICATION_MAX_API_RESULTS", 8),
		},
		Locator: LocatorConfig{
			DefaultLat:     getEnvAsFloat("LOCATOR_DEFAULT_LAT", 37.77986),
			DefaultLng:     getEnvAsFloat("LOCATOR_DEFAULT_LNG", -122.42905),
			OneShotTimeout: getEnvAsDuration("LOCATOR_ONE_SHOT_TIMEOUT", 20*time.Second),
			SessionTTL:     getEnvAsDuration("SESSION_TTL", 30*time.Minute),
		},
		Seed: SeedConfig{
			Dir:   getEnv("SEED_DIR", ""),
			Watch: getEnvAsBool("SEED_WATCH", false),
		},
		OTEL: OTELConfig{
			ServiceName:    getEnv("OTEL_SERVICE_NAME", "care-companion"),
			ServiceVersion: getEnv("OTEL_SERVICE_VERSION", "1.0.0"),
			Endpoint:       getEnv("OTEL_ENDPOINT", ""),
			Enabled:        getEnvAsBool("OTEL_ENABLED", false),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects configuration values the services cannot run with
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("SERVER_PORT out of range: %d", c.Server.Port))
	}
	if c.Facilities.RadiusMeters <= 0 {
		errs = append(errs, fmt.Errorf("FACILITY_RADIUS_METERS must be positive: %d", c.Facilities.RadiusMeters))
	}
	if c.Medication.Debounce < 0 {
		errs = append(errs, fmt.Errorf("MEDICATION_DEBOUNCE must not be negative: %s", c.Medication.Debounce))
	}
	if c.Locator.OneShotTimeout <= 0 {
		errs = append(errs, fmt.Errorf("LOCATOR_ONE_SHOT_TIMEOUT must be positive: %s", c.Locator.OneShotTimeout))
	}
	if c.Seed.Watch && c.Seed.Dir == "" {
		errs = append(errs, errors.New("SEED_WATCH requires SEED_DIR"))
	}
	return errors.Join(errs...)
}

// DatabaseDSN returns the PostgreSQL connection string
func (c *DatabaseConfig) DatabaseDSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.Database, c.SSLMode,
	)
}

// RedisAddr returns the Redis address
func (c *RedisConfig) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	if len(out) == 0 {
		return defaultValue
	}
	return out
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

func getEnvAsFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

func getEnvAsBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolVal, err := strconv.ParseBool(value); err == nil {
			return boolVal
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}
