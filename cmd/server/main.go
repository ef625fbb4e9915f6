// Package main is the entry point for the inkwell API server.
//
// main only reads configuration, builds the dependency graph and starts the
// server; all logic lives under internal/.
//
// STARTUP SEQUENCE:
//
//  1. config.Load reads .env (if any) and the environment.
//  2. storage.Open picks SQLite or MongoDB from STORE_DRIVER.
//  3. Optional collaborators are built: the Redis cache, the identity
//     provider client and the session TokenService. Each one may be absent;
//     the server logs what is missing and keeps running with less.
//  4. Services get repositories, handlers get services (inside server.New).
//  5. Start blocks until SIGINT or SIGTERM, then drains in-flight requests.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/sakif/inkwell/internal/auth"
	"github.com/sakif/inkwell/internal/cache"
	"github.com/sakif/inkwell/internal/config"
	"github.com/sakif/inkwell/internal/identity"
	"github.com/sakif/inkwell/internal/server"
	"github.com/sakif/inkwell/internal/service"
	"github.com/sakif/inkwell/internal/storage"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("invalid configuration", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)

	if err := run(cfg, logger); err != nil {
		logger.Error("server error", slog.String("error", err.Error()))
		os.Exit(1)
	}
}

// run owns every resource that needs closing. Returning from run (on a
// signal or a listener error) closes them in reverse order via defer.
func run(cfg *config.Config, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := storage.Open(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Warn("closing store", slog.String("error", err.Error()))
		}
	}()

	// A nil cache is valid everywhere; see cache.Client.
	novelCache := cache.New(cfg.RedisAddr, cfg.RedisPass, cfg.RedisDB, cfg.CacheTTL)
	if novelCache == nil {
		logger.Info("REDIS_ADDR not set, novel cache disabled")
	}
	defer novelCache.Close()

	idp := identity.New(cfg.SupabaseURL, cfg.SupabaseAnonKey, nil)
	if !idp.Configured() {
		logger.Warn("SUPABASE_URL not set, sign-in and bearer lookups will fail")
	}

	// A nil TokenService disables the session cookie; bearer tokens still work.
	var tokens *auth.TokenService
	if cfg.SessionSecret != "" {
		tokens, err = auth.NewTokenService(cfg.SessionSecret, cfg.SessionTTL)
		if err != nil {
			return err
		}
	} else {
		logger.Warn("SESSION_SECRET not set, session cookies are disabled")
	}

	// SERVICE WIRING:
	// Services see repository interfaces only. Swapping STORE_DRIVER changes
	// what store.Users points at and nothing below this line.
	users := service.NewUserService(store.Users, store.Novels, logger)
	deps := server.Deps{
		Users:    users,
		Novels:   service.NewNovelService(store.Novels, store.Users, novelCache, logger),
		Prompts:  service.NewPromptService(store.Prompts, store.Users, logger),
		Auth:     service.NewAuthService(idp, store.Users, tokens, logger),
		Resolver: auth.NewResolver(tokens, idp, logger),
	}

	logger.Info("store ready", slog.String("driver", cfg.StoreDriver))
	return server.New(server.Config{Port: cfg.Port}, deps, logger).Start(ctx)
}

// newLogger builds the process-wide slog logger. LOG_FORMAT=json suits log
// collectors; the text handler is easier to read in a terminal.
func newLogger(level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{Level: parseLevel(level)}
	if strings.EqualFold(format, "json") {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// parseLevel maps LOG_LEVEL to a slog level. Unknown values mean info.
func parseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
