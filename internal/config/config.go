package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Storage driver names accepted in configuration.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverRedis    = "redis"
)

// Config holds runtime configuration for the progress core. Only
// infrastructure concerns live here: which backing store holds the ledger
// document, where the roadmap definition sits, cache tuning. Core
// semantics never depend on configuration.
type Config struct {
	AppName          string
	AppEnv           string
	StorageDriver    string
	DatabaseURL      string
	SQLitePath       string
	RedisURL         string
	CatalogPath      string
	RoadmapID        string
	OverviewCacheTTL time.Duration
}

// Load reads configuration from environment variables and an optional
// .env file.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("OPSTRAIL")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("app.name", "OpsTrail Core")
	v.SetDefault("app.env", "development")
	v.SetDefault("storage.driver", DriverSQLite)
	v.SetDefault("sqlite.path", "opstrail.db")
	v.SetDefault("catalog.path", "roadmap.json")
	v.SetDefault("roadmap.id", "devops-roadmap")
	v.SetDefault("overview.cache_ttl", "5m")

	ttlString := v.GetString("overview.cache_ttl")
	if ttlString == "" {
		ttlString = "5m"
	}

	ttl, err := time.ParseDuration(ttlString)
	if err != nil {
		return Config{}, fmt.Errorf("invalid overview cache ttl: %w", err)
	}

	cfg := Config{
		AppName:          v.GetString("app.name"),
		AppEnv:           v.GetString("app.env"),
		StorageDriver:    strings.ToLower(v.GetString("storage.driver")),
		DatabaseURL:      v.GetString("database.url"),
		SQLitePath:       v.GetString("sqlite.path"),
		RedisURL:         v.GetString("redis.url"),
		CatalogPath:      v.GetString("catalog.path"),
		RoadmapID:        v.GetString("roadmap.id"),
		OverviewCacheTTL: ttl,
	}

	switch cfg.StorageDriver {
	case DriverSQLite:
		if cfg.SQLitePath == "" {
			return Config{}, fmt.Errorf("sqlite path must be provided")
		}
	case DriverPostgres:
		if cfg.DatabaseURL == "" {
			return Config{}, fmt.Errorf("database url must be provided for the postgres driver")
		}
	case DriverRedis:
		if cfg.RedisURL == "" {
			return Config{}, fmt.Errorf("redis url must be provided for the redis driver")
		}
	default:
		return Config{}, fmt.Errorf("unknown storage driver %q", cfg.StorageDriver)
	}

	return cfg, nil
}
