// Command gourdianauth-server exposes the token operations over HTTP.
//
// Token settings come from the GOURDIAN_AUTH_* variables read by
// gourdianauth.OptionsFromEnv. The server itself reads:
//
//	ADDR                  listen address (default :8080)
//	REDIS_ADDR            Redis address; the in-memory store is used when empty
//	REDIS_PASSWORD        Redis password
//	LOG_LEVEL             debug, info, warn or error
//	LOG_FORMAT            json or text
//	ENV                   deployment name; "dev" adds source locations to logs
//	DEMO_LOGIN            account created at startup
//	DEMO_PASSWORD         its password
//	DEMO_ROLES            comma separated roles
//	SHUTDOWN_GRACE        graceful shutdown deadline
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/gourdian25/gourdianauth"
	"github.com/gourdian25/gourdianauth/internal/accounts"
	"github.com/gourdian25/gourdianauth/internal/logging"
)

const buildVersion = "v0.1.0"

type serverConfig struct {
	Addr          string
	RedisAddr     string
	RedisPassword string
	LogLevel      string
	LogFormat     string
	Env           string
	DemoLogin     string
	DemoPassword  string
	DemoRoles     []string
	ShutdownGrace time.Duration
}

func loadServerConfig() serverConfig {
	grace, err := time.ParseDuration(getEnvOrDefault("SHUTDOWN_GRACE", "10s"))
	if err != nil {
		grace = 10 * time.Second
	}

	var roles []string
	for _, r := range strings.Split(os.Getenv("DEMO_ROLES"), ",") {
		if r = strings.TrimSpace(r); r != "" {
			roles = append(roles, r)
		}
	}

	return serverConfig{
		Addr:          getEnvOrDefault("ADDR", ":8080"),
		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		LogLevel:      getEnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:     getEnvOrDefault("LOG_FORMAT", "json"),
		Env:           getEnvOrDefault("ENV", "prod"),
		DemoLogin:     os.Getenv("DEMO_LOGIN"),
		DemoPassword:  os.Getenv("DEMO_PASSWORD"),
		DemoRoles:     roles,
		ShutdownGrace: grace,
	}
}

func main() {
	cfg := loadServerConfig()
	logger := logging.New(logging.Config{
		Service: "gourdianauth",
		Version: buildVersion,
		Env:     cfg.Env,
		Level:   cfg.LogLevel,
		Format:  cfg.LogFormat,
	})

	if err := run(cfg, logger); err != nil {
		log.Fatalf("application error: %v", err)
	}
}

func run(cfg serverConfig, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	jwtCfg, err := gourdianauth.NewJwtConfig(gourdianauth.OptionsFromEnv())
	if err != nil {
		return fmt.Errorf("failed to load token configuration: %w", err)
	}

	store, closeStore, err := newRevocationStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	book, err := accounts.NewBook(store, logger)
	if err != nil {
		return err
	}
	if cfg.DemoLogin != "" {
		if _, err := book.Add(cfg.DemoLogin, cfg.DemoPassword, cfg.DemoRoles...); err != nil {
			return fmt.Errorf("failed to create demo account: %w", err)
		}
		logger.Info("demo account created", "login", cfg.DemoLogin)
	}

	codec := gourdianauth.NewTokenCodec(jwtCfg)
	lifecycle := gourdianauth.NewTokenLifecycleService(codec)
	gate := gourdianauth.NewRequestAuthGate(codec, lifecycle, book, gourdianauth.WithGateLogger(logger))
	auth := gourdianauth.NewAuthenticator(codec, lifecycle, book, gourdianauth.WithAuthenticatorLogger(logger))

	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           gourdianauth.NewHandler(auth, gate, logger),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("auth server starting",
			"addr", cfg.Addr,
			"algorithm", jwtCfg.Algorithm(),
			"issuer", jwtCfg.Issuer())
		serverErrors <- server.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownGrace)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful server shutdown failed", "error", err)
		if err := server.Close(); err != nil {
			logger.Error("error closing server", "error", err)
		}
		return err
	}

	logger.Info("auth server stopped")
	return nil
}

func newRevocationStore(ctx context.Context, cfg serverConfig, logger *slog.Logger) (gourdianauth.RevocationStore, func(), error) {
	if cfg.RedisAddr == "" {
		logger.Warn("REDIS_ADDR not set, revocations are kept in memory")
		store := gourdianauth.NewMemoryRevocationStore(5 * time.Minute)
		return store, store.Close, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	store, err := gourdianauth.NewRedisRevocationStore(ctx, client)
	if err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("failed to initialize redis revocation store: %w", err)
	}

	logger.Info("using redis revocation store", "addr", cfg.RedisAddr)
	return store, func() {
		if err := client.Close(); err != nil {
			logger.Error("error closing redis client", "error", err)
		}
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
