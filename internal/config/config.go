// Package config loads process configuration from the environment.
//
// ENVIRONMENT VARIABLES:
//
//	PORT               listen port (default 8080)
//	STORE_DRIVER       "sqlite" (default) or "mongo"
//	DB_PATH            SQLite file (default data/inkwell.db)
//	MONGO_URI          MongoDB connection string
//	MONGO_DATABASE     MongoDB database name (default inkwell)
//	REDIS_ADDR         enables the novel cache when set
//	REDIS_PASSWORD     Redis AUTH password
//	REDIS_DB           Redis logical database (default 0)
//	CACHE_TTL          novel cache entry lifetime (default 30s)
//	SUPABASE_URL       identity provider base URL
//	SUPABASE_ANON_KEY  identity provider public API key
//	SESSION_SECRET     HS256 key for the session cookie; unset disables it
//	SESSION_TTL        session cookie lifetime (default 24h)
//	LOG_LEVEL          debug, info, warn or error
//	LOG_FORMAT         text or json
//
// A .env file in the working directory is read first. Variables already set
// in the process environment win over the file.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers accepted in STORE_DRIVER.
const (
	DriverSQLite = "sqlite"
	DriverMongo  = "mongo"
)

// Config holds application level configuration loaded from environment variables.
type Config struct {
	Port string

	StoreDriver   string
	DBPath        string
	MongoURI      string
	MongoDatabase string

	RedisAddr string
	RedisPass string
	RedisDB   int
	CacheTTL  time.Duration

	SupabaseURL     string
	SupabaseAnonKey string

	SessionSecret string
	SessionTTL    time.Duration

	LogLevel  string
	LogFormat string
}

// Load reads .env if present, then builds Config from the environment with
// defaults. Malformed numbers and durations are errors.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("config: reading .env: %w", err)
	}
	return FromEnv()
}

// FromEnv builds Config from the current environment only.
func FromEnv() (*Config, error) {
	cfg := &Config{
		Port:            getEnv("PORT", "8080"),
		StoreDriver:     getEnv("STORE_DRIVER", DriverSQLite),
		DBPath:          getEnv("DB_PATH", "data/inkwell.db"),
		MongoURI:        getEnv("MONGO_URI", "mongodb://localhost:27017"),
		MongoDatabase:   getEnv("MONGO_DATABASE", "inkwell"),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
		RedisPass:       os.Getenv("REDIS_PASSWORD"),
		SupabaseURL:     os.Getenv("SUPABASE_URL"),
		SupabaseAnonKey: os.Getenv("SUPABASE_ANON_KEY"),
		SessionSecret:   os.Getenv("SESSION_SECRET"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		LogFormat:       getEnv("LOG_FORMAT", "text"),
	}

	var err error
	if cfg.RedisDB, err = getEnvInt("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.CacheTTL, err = getEnvDuration("CACHE_TTL", 30*time.Second); err != nil {
		return nil, err
	}
	if cfg.SessionTTL, err = getEnvDuration("SESSION_TTL", 24*time.Hour); err != nil {
		return nil, err
	}

	switch cfg.StoreDriver {
	case DriverSQLite, DriverMongo:
	default:
		return nil, fmt.Errorf("config: STORE_DRIVER must be %q or %q, got %q", DriverSQLite, DriverMongo, cfg.StoreDriver)
	}
	return cfg, nil
}

// getEnv returns the variable or def when it is unset or empty.
func getEnv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

// getEnvInt and getEnvDuration fail loudly on garbage instead of falling
// back to the default, so a typo in CACHE_TTL is caught at boot.
func getEnvInt(key string, def int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	parsed, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be an integer: %w", key, err)
	}
	return parsed, nil
}

func getEnvDuration(key string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return def, nil
	}
	parsed, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("config: %s must be a duration: %w", key, err)
	}
	return parsed, nil
}
