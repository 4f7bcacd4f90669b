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

// Config 应用配置
type Config struct {
	Port    string
	GinMode string
	LogMode string

	DBDriver    string // sqlite | postgres
	DBPath      string
	DatabaseURL string

	JWTSecret string
	Location  *time.Location

	NATSURL           string
	NATSSubjectPrefix string

	RedisAddr   string
	LockTimeout time.Duration
	LockTTL     time.Duration

	ReferenceCacheTTL time.Duration

	// Per-caller HTTP burst guard
	HTTPRateLimit  int
	HTTPRateWindow time.Duration
}

// Load 加载配置
func Load() (*Config, error) {
	// .env is optional
	_ = godotenv.Load()

	cfg := &Config{
		Port:              getenvDefault("PORT", ":8080"),
		GinMode:           os.Getenv("GIN_MODE"),
		LogMode:           getenvDefault("LOG_MODE", "development"),
		DBDriver:          strings.ToLower(getenvDefault("DB_DRIVER", "sqlite")),
		DBPath:            getenvDefault("DB_PATH", "./data/trains.db"),
		DatabaseURL:       firstNonEmpty(os.Getenv("DATABASE_URL"), os.Getenv("PG_DSN")),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		NATSURL:           os.Getenv("NATS_URL"),
		NATSSubjectPrefix: getenvDefault("NATS_SUBJECT_PREFIX", "trains"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
	}
	if !strings.HasPrefix(cfg.Port, ":") && !strings.Contains(cfg.Port, ":") {
		cfg.Port = ":" + cfg.Port
	}

	switch cfg.DBDriver {
	case "sqlite":
	case "postgres", "pgx":
		cfg.DBDriver = "postgres"
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL must be set when DB_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("invalid DB_DRIVER: %q", cfg.DBDriver)
	}

	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET must be set")
	}

	var err error
	if cfg.LockTimeout, err = durationEnv("LOCK_TIMEOUT", 5*time.Second); err != nil {
		return nil, err
	}
	if cfg.LockTTL, err = durationEnv("LOCK_TTL", 15*time.Second); err != nil {
		return nil, err
	}
	if cfg.ReferenceCacheTTL, err = durationEnv("REFERENCE_CACHE_TTL", 10*time.Minute); err != nil {
		return nil, err
	}

	if cfg.HTTPRateWindow, err = durationEnv("HTTP_RATE_WINDOW", time.Minute); err != nil {
		return nil, err
	}
	cfg.HTTPRateLimit = 120
	if v := os.Getenv("HTTP_RATE_LIMIT"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return nil, fmt.Errorf("invalid HTTP_RATE_LIMIT: %q", v)
		}
		cfg.HTTPRateLimit = n
	}

	// Operational days start at midnight in this zone
	loc, err := time.LoadLocation(getenvDefault("TIMEZONE", "UTC"))
	if err != nil {
		return nil, fmt.Errorf("invalid TIMEZONE: %v", err)
	}
	cfg.Location = loc

	return cfg, nil
}

func durationEnv(k string, def time.Duration) (time.Duration, error) {
	v := os.Getenv(k)
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: %q", k, v)
	}
	return d, nil
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
