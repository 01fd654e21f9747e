package config

import (
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Store drivers accepted by STORE_DRIVER.
const (
	DriverMemory   = "memory"
	DriverPostgres = "postgres"
	DriverMongo    = "mongo"
)

type Config struct {
	Port                  string        `mapstructure:"PORT"`
	Env                   string        `mapstructure:"ENV"`
	StoreDriver           string        `mapstructure:"STORE_DRIVER"`
	DatabaseURL           string        `mapstructure:"DATABASE_URL"`
	DBMaxConns            int32         `mapstructure:"DB_MAX_CONNS"`
	DBMinConns            int32         `mapstructure:"DB_MIN_CONNS"`
	MigrationsDir         string        `mapstructure:"MIGRATIONS_DIR"`
	MongoURI              string        `mapstructure:"MONGODB_URI"`
	MongoDatabase         string        `mapstructure:"MONGODB_DATABASE"`
	MongoTransactions     bool          `mapstructure:"MONGODB_TRANSACTIONS"`
	RedisURL              string        `mapstructure:"REDIS_URL"`
	DoctorCacheTTL        time.Duration `mapstructure:"DOCTOR_CACHE_TTL"`
	AuthIssuer            string        `mapstructure:"AUTH_ISSUER"`
	AuthAudience          string        `mapstructure:"AUTH_AUDIENCE"`
	AuthSigningKey        string        `mapstructure:"AUTH_SIGNING_KEY"`
	CORSOrigins           []string      `mapstructure:"CORS_ORIGINS"`
	RateLimitRPS          float64       `mapstructure:"RATE_LIMIT_RPS"`
	RateLimitBurst        int           `mapstructure:"RATE_LIMIT_BURST"`
	BulkDeleteConcurrency int           `mapstructure:"BULK_DELETE_CONCURRENCY"`
	UnbilledSerialPrefix  string        `mapstructure:"UNBILLED_SERIAL_PREFIX"`
	OrderSerialPrefix     string        `mapstructure:"ORDER_SERIAL_PREFIX"`
	ReconcileSchedule     string        `mapstructure:"RECONCILE_SCHEDULE"`
	ReportLabName         string        `mapstructure:"REPORT_LAB_NAME"`
	RequestTimeout        time.Duration `mapstructure:"REQUEST_TIMEOUT"`
	BodyLimit             string        `mapstructure:"BODY_LIMIT"`
	BulkBodyLimit         string        `mapstructure:"BULK_BODY_LIMIT"`
}

var envKeys = []string{
	"PORT", "ENV", "STORE_DRIVER",
	"DATABASE_URL", "DB_MAX_CONNS", "DB_MIN_CONNS", "MIGRATIONS_DIR",
	"MONGODB_URI", "MONGODB_DATABASE", "MONGODB_TRANSACTIONS",
	"REDIS_URL", "DOCTOR_CACHE_TTL",
	"AUTH_ISSUER", "AUTH_AUDIENCE", "AUTH_SIGNING_KEY",
	"CORS_ORIGINS", "RATE_LIMIT_RPS", "RATE_LIMIT_BURST",
	"BULK_DELETE_CONCURRENCY", "UNBILLED_SERIAL_PREFIX", "ORDER_SERIAL_PREFIX",
	"RECONCILE_SCHEDULE", "REPORT_LAB_NAME",
	"REQUEST_TIMEOUT", "BODY_LIMIT", "BULK_BODY_LIMIT",
}

// Load reads configuration from the environment. A .env file in the working
// directory is loaded first when present; variables already set in the
// process environment win over the file.
func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("PORT", "8000")
	v.SetDefault("ENV", "development")
	v.SetDefault("STORE_DRIVER", DriverMemory)
	v.SetDefault("DB_MAX_CONNS", 20)
	v.SetDefault("DB_MIN_CONNS", 5)
	v.SetDefault("MIGRATIONS_DIR", "./migrations")
	v.SetDefault("MONGODB_DATABASE", "labdesk")
	v.SetDefault("MONGODB_TRANSACTIONS", false)
	v.SetDefault("DOCTOR_CACHE_TTL", "10m")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000")
	v.SetDefault("RATE_LIMIT_RPS", 100)
	v.SetDefault("RATE_LIMIT_BURST", 200)
	v.SetDefault("BULK_DELETE_CONCURRENCY", 16)
	v.SetDefault("UNBILLED_SERIAL_PREFIX", "UB")
	v.SetDefault("ORDER_SERIAL_PREFIX", "LAB")
	v.SetDefault("RECONCILE_SCHEDULE", "@every 5m")
	v.SetDefault("REPORT_LAB_NAME", "Diagnostic Laboratory")
	v.SetDefault("REQUEST_TIMEOUT", "30s")
	v.SetDefault("BODY_LIMIT", "1M")
	v.SetDefault("BULK_BODY_LIMIT", "4M")

	// Bind env vars explicitly so Unmarshal picks them up
	for _, k := range envKeys {
		_ = v.BindEnv(k)
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if len(cfg.CORSOrigins) <= 1 {
		origins := v.GetString("CORS_ORIGINS")
		if origins != "" {
			cfg.CORSOrigins = strings.Split(origins, ",")
		}
	}
	cfg.StoreDriver = strings.ToLower(strings.TrimSpace(cfg.StoreDriver))

	if cfg.IsDev() {
		log.Println("WARNING: Server is running in DEVELOPMENT mode (ENV=development).")
		log.Println("WARNING: DevAuthMiddleware is active, all requests get admin access.")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the server is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// Validate checks the settings required by the selected store driver and,
// outside development, that a token signing key is configured.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case DriverMemory:
		if c.IsProduction() {
			return fmt.Errorf("STORE_DRIVER=memory is not allowed in production")
		}
	case DriverPostgres:
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORE_DRIVER is %q", DriverPostgres)
		}
	case DriverMongo:
		if c.MongoURI == "" {
			return fmt.Errorf("MONGODB_URI is required when STORE_DRIVER is %q", DriverMongo)
		}
		if c.MongoDatabase == "" {
			return fmt.Errorf("MONGODB_DATABASE is required when STORE_DRIVER is %q", DriverMongo)
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be %q, %q or %q, got %q",
			DriverMemory, DriverPostgres, DriverMongo, c.StoreDriver)
	}

	if !c.IsDev() && c.AuthSigningKey == "" {
		return fmt.Errorf("AUTH_SIGNING_KEY must be set when ENV=%q", c.Env)
	}
	if c.BulkDeleteConcurrency <= 0 {
		return fmt.Errorf("BULK_DELETE_CONCURRENCY must be positive, got %d", c.BulkDeleteConcurrency)
	}
	if c.UnbilledSerialPrefix == c.OrderSerialPrefix {
		return fmt.Errorf("UNBILLED_SERIAL_PREFIX and ORDER_SERIAL_PREFIX must differ")
	}
	return nil
}
