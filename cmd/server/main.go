package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/iliyamo/vendor-vault/internal/config"
	"github.com/iliyamo/vendor-vault/internal/database"
	"github.com/iliyamo/vendor-vault/internal/handler"
	"github.com/iliyamo/vendor-vault/internal/logging"
	"github.com/iliyamo/vendor-vault/internal/queue"
	"github.com/iliyamo/vendor-vault/internal/repository"
	"github.com/iliyamo/vendor-vault/internal/router"
	"github.com/iliyamo/vendor-vault/internal/service"
	"github.com/iliyamo/vendor-vault/internal/utils"
)

func main() {
	if err := run(); err != nil {
		log := logging.New(os.Getenv("APP_ENV"))
		log.Fatal().Err(err).Msg("server exited")
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log := logging.New(cfg.Env)
	if cfg.IsDevelopment() && cfg.JWTSecret == config.DevJWTSecret {
		log.Warn().Msg("JWT_SECRET not set; using the development-only secret")
	}

	rlCfg, err := config.LoadRateLimitConfig()
	if err != nil {
		return err
	}
	cacheCfg, err := config.LoadCacheConfig()
	if err != nil {
		return err
	}
	redisCfg, err := config.LoadRedisConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DBUser, cfg.DBPass, cfg.DBHost, cfg.DBPort, cfg.DBName)
	if err != nil {
		return err
	}
	defer db.Close()
	if cfg.DBMigrate {
		if err := database.Migrate(ctx, db); err != nil {
			return err
		}
		log.Info().Msg("database migrations applied")
	}

	rdb, err := config.NewRedisClient(redisCfg)
	if err != nil {
		// Rate limiting and caching degrade to pass-through without redis.
		log.Warn().Err(err).Str("addr", redisCfg.Address()).Msg("redis unavailable")
		rdb = nil
	}
	if rdb != nil {
		defer rdb.Close()
	}

	var events handler.EventPublisher
	if cfg.EventsEnabled {
		pub := service.NewPublisher(cfg.RabbitMQURL, 256, log)
		go pub.Run(ctx)
		go func() {
			if err := queue.StartAuditConsumer(ctx, cfg.RabbitMQURL, cfg.AuditLogPath, log); err != nil && !errors.Is(err, context.Canceled) {
				log.Error().Err(err).Msg("audit consumer stopped")
			}
		}()
		events = pub
	}

	tokens := utils.NewTokenManager(cfg.JWTSecret)
	users := repository.NewUserRepo(db)
	vendors := repository.NewVendorRepo(db)

	e := router.NewServer(log, cfg.IsDevelopment())
	router.RegisterRoutes(e, db)
	router.RegisterAuth(e, handler.NewAuthHandler(cfg, users, tokens, events), tokens, rlCfg, rdb)
	router.RegisterVendors(e, handler.NewVendorHandler(cfg, vendors, events), tokens, cacheCfg, rdb)
	router.RegisterUsers(e, handler.NewUserHandler(cfg, users), tokens)

	addr := ":" + cfg.Port
	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", addr).Str("env", cfg.Env).Msg("listening")
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info().Msg("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}

