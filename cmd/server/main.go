package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"

	"github.com/iliyamo/dorm-occupancy/internal/config"
	"github.com/iliyamo/dorm-occupancy/internal/database"
	"github.com/iliyamo/dorm-occupancy/internal/handler"
	"github.com/iliyamo/dorm-occupancy/internal/logger"
	"github.com/iliyamo/dorm-occupancy/internal/middleware"
	"github.com/iliyamo/dorm-occupancy/internal/queue"
	"github.com/iliyamo/dorm-occupancy/internal/repository"
	"github.com/iliyamo/dorm-occupancy/internal/router"
	"github.com/iliyamo/dorm-occupancy/internal/service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	log, err := logger.New(cfg.LogLevel, cfg.LogFormat, "dorm-occupancy")
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = log.Sync() }()

	if err := run(cfg, log); err != nil {
		log.Fatal("server stopped", zap.Error(err))
	}
}

func run(cfg config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(cfg.DSN())
	if err != nil {
		return err
	}
	defer db.Close()
	if err := database.Migrate(ctx, db); err != nil {
		return err
	}

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		log.Warn("redis unavailable, response cache and rate limiting disabled", zap.String("addr", cfg.Redis.Addr))
	} else {
		defer rdb.Close()
	}
	invalidator := middleware.NewCacheInvalidator(cfg.Cache, rdb, log)

	opts := []service.Option{service.WithCache(invalidator)}
	if cfg.EventsEnabled {
		opts = append(opts, service.WithPublisher(queue.NewPublisher(cfg.AMQPURL, log)))

		// Other instances announce their mutations on the same exchange; each
		// one drops this instance's cached reads.
		consumer := queue.NewConsumer(cfg.AMQPURL, func(ctx context.Context, ev queue.OccupancyChangedEvent) error {
			return invalidator.Invalidate(ctx)
		}, log)
		go func() {
			if err := consumer.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				log.Error("event consumer stopped", zap.Error(err))
			}
		}()
	}

	svc := service.New(
		repository.NewStudentRepo(db, log),
		repository.NewRoomRepo(db, log),
		log,
		opts...,
	)

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger(log))

	router.RegisterRoutes(e, router.Deps{
		Students:  handler.NewStudentHandler(svc, log),
		Rooms:     handler.NewRoomHandler(svc, log),
		Auth:      handler.NewAuthHandler(cfg, log),
		DB:        db,
		Cache:     middleware.NewRedisCache(cfg.Cache, rdb),
		RateLimit: middleware.NewTokenBucket(cfg.RateLimit, rdb, log),
		JWTSecret: cfg.JWTSecret,
	})

	errc := make(chan error, 1)
	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", zap.String("addr", addr), zap.String("env", cfg.Env),
			zap.Bool("auth", cfg.AuthEnabled()), zap.Bool("events", cfg.EventsEnabled))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
		close(errc)
	}()

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return e.Shutdown(shutdownCtx)
}
