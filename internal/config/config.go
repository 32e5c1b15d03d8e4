package config

import (
	"errors"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Session store backends.
const (
	StoreMemory   = "memory"
	StoreRedis    = "redis"
	StorePostgres = "postgres"
)

// Config holds application runtime configuration.
type Config struct {
	Env             string
	HTTPPort        string
	LogLevel        string
	PublicBaseURL   string
	APIBaseURL      string
	APITimeout      time.Duration
	APIVerifyPath   string
	SessionSecret   string
	SessionTTL      time.Duration
	SessionStore    string
	CookieSecure    bool
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	DatabaseURL     string
	AllowedOrigins  []string
	RateLimit       int
	LoginRateLimit  int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Load reads environment variables and .env (if present).
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Env:             getEnv("APP_ENV", "development"),
		HTTPPort:        getEnv("HTTP_PORT", "8080"),
		LogLevel:        getEnv("LOG_LEVEL", "info"),
		PublicBaseURL:   strings.TrimRight(getEnv("PUBLIC_BASE_URL", ""), "/"),
		APITimeout:      getDuration("API_TIMEOUT", 15*time.Second),
		APIVerifyPath:   getEnvAllowEmpty("API_VERIFY_PATH", "/api/auth/verify"),
		SessionSecret:   os.Getenv("SESSION_SECRET"),
		SessionTTL:      getDuration("SESSION_TTL", 7*24*time.Hour),
		SessionStore:    strings.ToLower(getEnv("SESSION_STORE", StoreMemory)),
		RedisAddr:       getEnv("REDIS_ADDR", "localhost:6379"),
		RedisPassword:   os.Getenv("REDIS_PASSWORD"),
		RedisDB:         getInt("REDIS_DB", 0),
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		AllowedOrigins:  getList("CORS_ALLOWED_ORIGINS"),
		RateLimit:       getInt("RATE_LIMIT_PER_MINUTE", 300),
		LoginRateLimit:  getInt("LOGIN_RATE_LIMIT_PER_MINUTE", 10),
		ReadTimeout:     getDuration("HTTP_READ_TIMEOUT", 15*time.Second),
		WriteTimeout:    getDuration("HTTP_WRITE_TIMEOUT", 30*time.Second),
		IdleTimeout:     getDuration("HTTP_IDLE_TIMEOUT", 60*time.Second),
		ShutdownTimeout: getDuration("HTTP_SHUTDOWN_TIMEOUT", 10*time.Second),
	}
	cfg.CookieSecure = getBool("COOKIE_SECURE", cfg.IsProduction())
	cfg.APIBaseURL = strings.TrimRight(getEnv("API_BASE_URL", cfg.defaultAPIBaseURL()), "/")

	if cfg.SessionSecret == "" {
		if cfg.IsProduction() {
			return cfg, errors.New("SESSION_SECRET is required")
		}
		cfg.SessionSecret = "dev-only-session-secret"
	}
	if cfg.APIBaseURL == "" {
		return cfg, errors.New("API_BASE_URL or PUBLIC_BASE_URL is required in production")
	}
	switch cfg.SessionStore {
	case StoreMemory, StoreRedis:
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return cfg, errors.New("DATABASE_URL is required for the postgres session store")
		}
	default:
		return cfg, errors.New("SESSION_STORE must be one of memory, redis, postgres")
	}
	return cfg, nil
}

// IsProduction reports whether the console runs with production defaults.
func (c Config) IsProduction() bool {
	return c.Env == "production"
}

// The backend is reached on the console's own origin in production and on a
// fixed local port during development.
func (c Config) defaultAPIBaseURL() string {
	if c.IsProduction() {
		return c.PublicBaseURL
	}
	return "http://localhost:3000"
}

func getEnv(key, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}

func getEnvAllowEmpty(key, fallback string) string {
	val, ok := os.LookupEnv(key)
	if !ok {
		return fallback
	}
	return val
}

func getInt(key string, fallback int) int {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return fallback
	}
	return n
}

func getBool(key string, fallback bool) bool {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	b, err := strconv.ParseBool(val)
	if err != nil {
		return fallback
	}
	return b
}

func getList(key string) []string {
	val := os.Getenv(key)
	if val == "" {
		return nil
	}
	var out []string
	for _, part := range strings.Split(val, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getDuration(key string, fallback time.Duration) time.Duration {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	d, err := time.ParseDuration(val)
	if err != nil {
		// Support seconds as integer without suffix.
		if secs, convErr := strconv.Atoi(val); convErr == nil {
			return time.Duration(secs) * time.Second
		}
		return fallback
	}
	return d
}
