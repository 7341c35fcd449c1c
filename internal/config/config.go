package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Store backends selectable via KV_BACKEND.
const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

// Config holds the agent configuration
type Config struct {
	Port string

	// Tenant is the white-label build this agent runs as. All tenant
	// differences flow through configuration; there is one code path.
	Tenant string

	KVBackend   string
	DatabaseURL string
	RedisAddr   string
	RedisPrefix string

	NATSURL string

	AuthURL     string
	AuthAnonKey string

	APIBaseURL       string
	CompanyAPIURL    string
	CompanyAPIBearer string

	DeviceIDTimeout time.Duration

	// Review credentials are only consulted in builds made with the
	// review tag; production builds never read them.
	ReviewEmail string
	ReviewCode  string
}

// Load reads configuration from environment variables
func Load() (*Config, error) {
	cfg := &Config{
		Port:            "8787", // default port
		Tenant:          "default",
		KVBackend:       BackendMemory,
		RedisPrefix:     "agent",
		DeviceIDTimeout: 10 * time.Second,
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}
	if tenant := os.Getenv("TENANT"); tenant != "" {
		cfg.Tenant = tenant
	}

	if backend := os.Getenv("KV_BACKEND"); backend != "" {
		cfg.KVBackend = backend
	}
	switch cfg.KVBackend {
	case BackendMemory:
	case BackendRedis:
		cfg.RedisAddr = os.Getenv("REDIS_ADDR")
		if cfg.RedisAddr == "" {
			return nil, fmt.Errorf("REDIS_ADDR is required when KV_BACKEND=redis")
		}
		if prefix := os.Getenv("REDIS_PREFIX"); prefix != "" {
			cfg.RedisPrefix = prefix
		}
	case BackendPostgres:
		cfg.DatabaseURL = os.Getenv("DATABASE_URL")
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required when KV_BACKEND=postgres")
		}
	default:
		return nil, fmt.Errorf("unknown KV_BACKEND %q", cfg.KVBackend)
	}

	cfg.NATSURL = os.Getenv("NATS_URL")

	cfg.AuthURL = os.Getenv("AUTH_URL")
	if cfg.AuthURL == "" {
		return nil, fmt.Errorf("AUTH_URL environment variable is required")
	}
	cfg.AuthAnonKey = os.Getenv("AUTH_ANON_KEY")
	if cfg.AuthAnonKey == "" {
		return nil, fmt.Errorf("AUTH_ANON_KEY environment variable is required")
	}

	cfg.APIBaseURL = os.Getenv("API_BASE_URL")
	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("API_BASE_URL environment variable is required")
	}
	cfg.CompanyAPIURL = os.Getenv("COMPANY_API_URL")
	cfg.CompanyAPIBearer = os.Getenv("COMPANY_API_BEARER")

	if raw := os.Getenv("DEVICE_ID_TIMEOUT_SECONDS"); raw != "" {
		seconds, err := strconv.Atoi(raw)
		if err != nil || seconds <= 0 {
			return nil, fmt.Errorf("DEVICE_ID_TIMEOUT_SECONDS must be a positive integer")
		}
		cfg.DeviceIDTimeout = time.Duration(seconds) * time.Second
	}

	cfg.ReviewEmail = os.Getenv("REVIEW_USER_EMAIL")
	cfg.ReviewCode = os.Getenv("REVIEW_USER_STATIC_CODE")

	return cfg, nil
}
