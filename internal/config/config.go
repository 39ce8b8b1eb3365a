package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

var defaultTaxRate = decimal.RequireFromString("0.16")

type Config struct {
	Port                   string
	AllowedOrigin          string
	DatabaseURL            string
	RedisAddr              string
	RedisPassword          string
	RedisDB                int
	CatalogCacheTTLSeconds int
	AuthSecret             string
	AccessTokenTTLMinutes  int
	ManagerPIN             string
	TaxRate                decimal.Decimal
	LogLevel               string
	AppEnv                 string
}

// ClientConfig configures the posctl terminal client.
type ClientConfig struct {
	APIURL  string
	Token   string
	Timeout time.Duration
}

// LoadDotEnv reads KEY=VALUE pairs from path into the process environment
// without overriding variables that are already set. A missing file is not an
// error. Production deployments (APP_ENV=production) skip the file entirely.
func LoadDotEnv(path string) error {
	if strings.EqualFold(os.Getenv("APP_ENV"), "production") {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func Load() Config {
	redisDB, _ := strconv.Atoi(getEnv("REDIS_DB", "0"))
	ttl, err := strconv.Atoi(getEnv("CATALOG_CACHE_TTL_SECONDS", "30"))
	if err != nil || ttl < 1 {
		ttl = 30
	}
	tokenTTL, err := strconv.Atoi(getEnv("ACCESS_TOKEN_TTL_MINUTES", "480"))
	if err != nil || tokenTTL < 1 {
		tokenTTL = 480
	}

	cfg := Config{
		Port:                   getEnv("PORT", "8080"),
		AllowedOrigin:          getEnv("ALLOWED_ORIGIN", "http://127.0.0.1:3000"),
		DatabaseURL:            os.Getenv("DATABASE_URL"),
		RedisAddr:              os.Getenv("REDIS_ADDR"),
		RedisPassword:          os.Getenv("REDIS_PASSWORD"),
		RedisDB:                redisDB,
		CatalogCacheTTLSeconds: ttl,
		AuthSecret:             strings.TrimSpace(os.Getenv("AUTH_SECRET")),
		AccessTokenTTLMinutes:  tokenTTL,
		ManagerPIN:             strings.TrimSpace(os.Getenv("MANAGER_PIN")),
		TaxRate:                parseTaxRate(os.Getenv("TAX_RATE")),
		LogLevel:               getEnv("LOG_LEVEL", "info"),
		AppEnv:                 getEnv("APP_ENV", "production"),
	}

	return cfg
}

func LoadClient() ClientConfig {
	timeout, err := time.ParseDuration(getEnv("POS_HTTP_TIMEOUT", "10s"))
	if err != nil || timeout <= 0 {
		timeout = 10 * time.Second
	}
	return ClientConfig{
		APIURL:  strings.TrimRight(getEnv("POS_API_URL", "http://127.0.0.1:8080"), "/"),
		Token:   strings.TrimSpace(os.Getenv("POS_API_TOKEN")),
		Timeout: timeout,
	}
}

func (c Config) Address() string {
	return fmt.Sprintf(":%s", c.Port)
}

func (c Config) CatalogCacheTTL() time.Duration {
	return time.Duration(c.CatalogCacheTTLSeconds) * time.Second
}

// parseTaxRate accepts a fraction in [0, 1); anything else yields the default.
func parseTaxRate(raw string) decimal.Decimal {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return defaultTaxRate
	}
	rate, err := decimal.NewFromString(raw)
	if err != nil || rate.IsNegative() || rate.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return defaultTaxRate
	}
	return rate
}

func getEnv(key string, fallback string) string {
	val := os.Getenv(key)
	if val == "" {
		return fallback
	}
	return val
}
