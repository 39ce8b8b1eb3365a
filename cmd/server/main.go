package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"puntoventa/internal/cache"
	"puntoventa/internal/config"
	"puntoventa/internal/httpapi"
	"puntoventa/internal/logging"
	"puntoventa/internal/metrics"
	"puntoventa/internal/service"
	"puntoventa/internal/store"
	"puntoventa/internal/store/memory"
	pgstore "puntoventa/internal/store/postgres"
)

func main() {
	if err := config.LoadDotEnv(".env"); err != nil {
		log.Fatalf("load .env: %v", err)
	}
	cfg := config.Load()

	logger, err := logging.New(cfg.LogLevel, cfg.AppEnv)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()
	zap.ReplaceGlobals(logger)

	if err := validateSecurityConfig(cfg); err != nil {
		logger.Fatal("invalid security configuration", zap.Error(err))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	var repo store.Repository
	closers := make([]func() error, 0, 2)

	if cfg.DatabaseURL != "" {
		pg, err := pgstore.New(ctx, cfg.DatabaseURL)
		if err != nil {
			logger.Fatal("postgres unavailable and DATABASE_URL is set; refusing to start with in-memory fallback", zap.Error(err))
		}
		if err := pg.Migrate(ctx); err != nil {
			logger.Fatal("postgres migration failed", zap.Error(err))
		}
		repo = pg
		closers = append(closers, pg.Close)
		logger.Info("repository selected", zap.String("repository", "postgres"))
	} else {
		repo = memory.NewSeeded()
		logger.Info("repository selected", zap.String("repository", "memory"))
	}

	catalogCache := cache.CatalogCache(cache.NewMemoryCatalogCache())
	cacheKind := "memory"
	if cfg.RedisAddr != "" {
		redisCache := cache.NewRedisCatalogCache(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err := redisCache.Ping(ctx); err != nil {
			logger.Warn("redis unavailable, using in-process catalog cache", zap.Error(err))
			_ = redisCache.Close()
		} else {
			catalogCache = redisCache
			cacheKind = "redis"
			closers = append(closers, redisCache.Close)
		}
	}
	logger.Info("catalog cache selected", zap.String("cache", cacheKind))

	m := metrics.New()
	svc := service.New(repo, service.Options{
		Cache:    catalogCache,
		CacheTTL: cfg.CatalogCacheTTL(),
		TaxRate:  cfg.TaxRate,
		Logger:   logger,
		Metrics:  m,
	})
	auth := httpapi.NewAuthManager(ctx, cfg.AuthSecret, time.Duration(cfg.AccessTokenTTLMinutes)*time.Minute, cfg.ManagerPIN, repo)
	api := httpapi.New(svc, auth, httpapi.Options{
		AllowedOrigin: cfg.AllowedOrigin,
		Logger:        logger,
		Metrics:       m,
	})

	server := &http.Server{
		Addr:              cfg.Address(),
		Handler:           api.Handler(),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		logger.Info("sales backend listening",
			zap.String("addr", cfg.Address()),
			zap.String("tax_rate", cfg.TaxRate.String()),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("server error", zap.Error(err))
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 8*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Warn("shutdown error", zap.Error(err))
	}

	for _, closeFn := range closers {
		if err := closeFn(); err != nil {
			logger.Warn("close error", zap.Error(err))
		}
	}

	logger.Info("server stopped")
}

func validateSecurityConfig(cfg config.Config) error {
	if len(cfg.AuthSecret) < 32 {
		return fmt.Errorf("AUTH_SECRET must be set and at least 32 characters")
	}
	if len(cfg.ManagerPIN) < 6 {
		return fmt.Errorf("MANAGER_PIN must be set and at least 6 digits")
	}
	if err := validatePINStrength(cfg.ManagerPIN); err != nil {
		return fmt.Errorf("MANAGER_PIN is too weak: %w", err)
	}
	return nil
}

var commonPINs = map[string]struct{}{
	"123456": {}, "654321": {}, "121212": {}, "112233": {}, "123123": {},
	"102030": {}, "696969": {}, "159753": {},
}

// validatePINStrength rejects common PINs and PINs that are a single repeated
// digit or a run of consecutive digits in either direction.
func validatePINStrength(pin string) error {
	switch {
	case pin == "":
		return fmt.Errorf("empty PIN not allowed")
	case isCommonPIN(pin):
		return fmt.Errorf("common PIN not allowed")
	case strings.Count(pin, pin[:1]) == len(pin):
		return fmt.Errorf("repeated-digit PIN not allowed")
	case digitRun(pin, 1) || digitRun(pin, -1):
		return fmt.Errorf("sequential PIN not allowed")
	}
	return nil
}

func isCommonPIN(pin string) bool {
	_, ok := commonPINs[pin]
	return ok
}

// digitRun reports whether every digit differs from the previous one by step.
func digitRun(pin string, step int) bool {
	for i := 1; i < len(pin); i++ {
		if int(pin[i])-int(pin[i-1]) != step {
			return false
		}
	}
	return true
}
