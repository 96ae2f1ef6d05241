// querynotes-api stores, tags and shares short text snippets over HTTP.
//
//	@title						querynotes API
//	@version					1.0
//	@description				Store, tag and share short text snippets.
//	@BasePath					/
//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	goredis "github.com/redis/go-redis/v9"

	"github.com/querynotes/querynotes-api/internal/api"
	"github.com/querynotes/querynotes-api/internal/api/handler"
	"github.com/querynotes/querynotes-api/internal/core/service"
	"github.com/querynotes/querynotes-api/internal/infrastructure/db/redis"
	"github.com/querynotes/querynotes-api/internal/infrastructure/lazy"
	"github.com/querynotes/querynotes-api/internal/pkg/config"
	"github.com/querynotes/querynotes-api/pkg/logger"
)

func main() {
	cfg := config.Load()
	log := logger.Init(logger.Options{
		Level:   cfg.LogLevel,
		Pretty:  cfg.IsDevelopment(),
		Service: "querynotes-api",
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// ── Store ────────────────────────────────────────────────
	st, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("open store")
	}
	log.Info().Str("driver", cfg.StoreDriver).Msg("store ready")

	// ── Share cache (dialled on first use) ───────────────────
	rdb := lazy.New(redis.Opener(redis.Config{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	}))
	shareCache := redis.NewShareCache(rdb)

	// ── Services ─────────────────────────────────────────────
	tokens := service.NewTokenService(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer, cfg.Auth.TokenTTL)
	authService := service.NewAuthService(st.users, tokens, cfg.Auth.BcryptCost)
	queryService := service.NewQueryService(st.queries, shareCache, cfg.Redis.ShareCacheTTL, log)

	readiness := []handler.Dependency{{
		Name:     "redis",
		Optional: true,
		Check: func(ctx context.Context) error {
			client, err := rdb.Get(ctx)
			if err != nil {
				return err
			}
			return client.Ping(ctx).Err()
		},
	}}
	if st.probe != nil {
		readiness = append(readiness, *st.probe)
	}

	e := api.NewRouter(api.Deps{
		Auth:      authService,
		Queries:   queryService,
		Tokens:    tokens,
		Logger:    log,
		Readiness: readiness,
	})

	// ── Server ───────────────────────────────────────────────
	go func() {
		log.Info().Str("port", cfg.Port).Msg("listening")
		if err := e.Start(":" + cfg.Port); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error().Err(err).Msg("server stopped")
			stop()
		}
	}()

	<-ctx.Done()
	log.Info().Msg("shutting down")

	shutCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	exitCode := 0
	if err := e.Shutdown(shutCtx); err != nil {
		log.Error().Err(err).Msg("http shutdown")
		exitCode = 1
	}
	if err := rdb.Close(func(c *goredis.Client) error { return c.Close() }); err != nil {
		log.Warn().Err(err).Msg("redis close")
	}
	if err := st.close(shutCtx); err != nil {
		log.Error().Err(err).Msg("store close")
		exitCode = 1
	}
	os.Exit(exitCode)
}
