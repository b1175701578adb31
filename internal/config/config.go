package config

import (
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"

	applog "xandcastle/internal/log"
)

type Config struct {
	Port     string
	DBDriver string // sqlite | postgres
	DBDSN    string
	LogFile  string

	PrintifyToken   string
	PrintifyShopID  string
	PrintifyBaseURL string
	CatalogTimeout  time.Duration

	ResendAPIKey string
	EmailFrom    string
	StoreURL     string

	// bcrypt hash of the token admin callers send in X-Admin-Token
	AdminTokenHash string

	SyncConcurrency int
	StaleAfter      time.Duration

	// sign-ups per client IP per 10 minutes
	RestockRateLimit int

	ExchangeRateURL string
	ExchangeRateTTL time.Duration
	RedisAddr       string
}

func Load() Config {
	// .env is optional; real environment variables win.
	if err := godotenv.Load(); err == nil {
		applog.Info(nil, "config.dotenv.loaded", nil)
	}

	dsn := os.Getenv("DB_DSN")
	if dsn == "" {
		dsn = "xandcastle.db"
	} // sqlite file in project root

	cfg := Config{
		Port:     env("PORT", "8080"),
		DBDriver: env("DB_DRIVER", "sqlite"),
		DBDSN:    dsn,
		LogFile:  os.Getenv("LOG_FILE"),

		PrintifyToken:   os.Getenv("PRINTIFY_API_TOKEN"),
		PrintifyShopID:  os.Getenv("PRINTIFY_SHOP_ID"),
		PrintifyBaseURL: env("PRINTIFY_BASE_URL", "https://api.printify.com/v1"),
		CatalogTimeout:  duration("CATALOG_TIMEOUT", 15*time.Second),

		ResendAPIKey: os.Getenv("RESEND_API_KEY"),
		EmailFrom:    env("EMAIL_FROM", "X and Castle <hello@xandcastle.com>"),
		StoreURL:     env("STORE_URL", "http://localhost:8080"),

		AdminTokenHash: os.Getenv("ADMIN_TOKEN_HASH"),

		SyncConcurrency: integer("SYNC_CONCURRENCY", 4),
		StaleAfter:      duration("INVENTORY_STALE_AFTER", time.Hour),

		RestockRateLimit: integer("RESTOCK_RATE_LIMIT", 5),

		ExchangeRateURL: env("EXCHANGE_RATE_URL", "https://open.er-api.com/v6/latest/USD"),
		ExchangeRateTTL: duration("EXCHANGE_RATE_TTL", 12*time.Hour),
		RedisAddr:       os.Getenv("REDIS_ADDR"),
	}

	applog.Info(nil, "config.loaded", map[string]any{
		"port":             cfg.Port,
		"db_driver":        cfg.DBDriver,
		"log_file":         cfg.LogFile,
		"printify_shop":    cfg.PrintifyShopID,
		"catalog_timeout":  cfg.CatalogTimeout.String(),
		"email_enabled":    cfg.ResendAPIKey != "",
		"admin_enabled":    cfg.AdminTokenHash != "",
		"sync_concurrency": cfg.SyncConcurrency,
		"stale_after":      cfg.StaleAfter.String(),
		"rate_ttl":         cfg.ExchangeRateTTL.String(),
		"redis":            cfg.RedisAddr != "",
	})
	return cfg
}

func env(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func duration(key string, def time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		applog.Warn(nil, "config.invalid", err, map[string]any{"key": key, "value": v})
		return def
	}
	return d
}

func integer(key string, def int) int {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 1 {
		applog.Warn(nil, "config.invalid", err, map[string]any{"key": key, "value": v})
		return def
	}
	return n
}
