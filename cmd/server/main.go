package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/apiclient"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/config"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/handler"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/server"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/service"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/session"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/store"
	"github.com/Hexthebaldy/tc-beauty-crm-web/internal/view"
	"github.com/go-redis/redis/v8"
)

const (
	sweepInterval = time.Minute
	sessionIdle   = 30 * time.Minute
	purgeInterval = time.Hour
)

func main() {
	cfg, err := config.Load()
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: parseLevel(cfg.LogLevel)}))
	if err != nil {
		logger.Error("failed to load config", "err", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sessions, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		logger.Error("failed to open session store", "store", cfg.SessionStore, "err", err)
		os.Exit(1)
	}
	defer closeStore()

	pages, err := view.New()
	if err != nil {
		logger.Error("failed to parse templates", "err", err)
		os.Exit(1)
	}

	registry := service.NewRegistry(sessions, apiclient.Options{
		BaseURL:    cfg.APIBaseURL,
		Timeout:    cfg.APITimeout,
		VerifyPath: cfg.APIVerifyPath,
	}, logger)
	go registry.RunSweeper(ctx, sweepInterval, sessionIdle)

	authSvc := service.AuthService{Sessions: registry, Logger: logger}
	cookies := service.CookieCodec{
		Secret: []byte(cfg.SessionSecret),
		TTL:    cfg.SessionTTL,
		Secure: cfg.CookieSecure,
	}
	base := handler.Pages{View: pages, Logger: logger}

	router := server.NewRouter(cfg, logger, &authSvc, cookies, server.Handlers{
		Health:       handler.HealthHandler{Store: sessions, Sessions: registry},
		Home:         handler.HomeHandler{},
		Auth:         handler.AuthHandler{Pages: base, Service: &authSvc, Cookies: cookies},
		Accounts:     handler.AccountHandler{Pages: base, Service: &authSvc},
		Customers:    handler.CustomerHandler{Pages: base},
		Fulfillments: handler.FulfillmentHandler{Pages: base},
		Stores:       handler.StoreHandler{Pages: base},
		Dashboard:    handler.DashboardHandler{Pages: base},
	})

	logger.Info("console configured",
		"env", cfg.Env,
		"api", cfg.APIBaseURL,
		"session_store", cfg.SessionStore,
	)
	if err := server.Start(ctx, cfg, router, logger); err != nil {
		logger.Error("server error", "err", err)
		os.Exit(1)
	}
}

// openStore builds the configured session store and returns its cleanup.
func openStore(ctx context.Context, cfg config.Config, logger *slog.Logger) (session.Store, func(), error) {
	switch cfg.SessionStore {
	case config.StoreRedis:
		client := redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		s := store.NewRedisStore(client, cfg.SessionTTL)
		if err := s.Health(ctx); err != nil {
			_ = client.Close()
			return nil, nil, err
		}
		return s, func() { _ = client.Close() }, nil
	case config.StorePostgres:
		s, err := store.OpenPostgres(ctx, cfg.DatabaseURL, cfg.SessionTTL)
		if err != nil {
			return nil, nil, err
		}
		go purgeExpired(ctx, s, logger)
		return s, s.Close, nil
	default:
		return store.NewMemoryStore(cfg.SessionTTL), func() {}, nil
	}
}

func purgeExpired(ctx context.Context, s *store.PostgresStore, logger *slog.Logger) {
	ticker := time.NewTicker(purgeInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.PurgeExpired(ctx)
			if err != nil {
				logger.Warn("purge expired sessions failed", "err", err)
				continue
			}
			if n > 0 {
				logger.Info("purged expired sessions", "count", n)
			}
		}
	}
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(raw) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
