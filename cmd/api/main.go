package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agrologix/agrologix-backend/internal/config"
	"github.com/agrologix/agrologix-backend/internal/database"
	"github.com/agrologix/agrologix-backend/internal/handlers"
	"github.com/agrologix/agrologix-backend/internal/lifecycle"
	"github.com/agrologix/agrologix-backend/internal/logger"
	"github.com/agrologix/agrologix-backend/internal/services"
	"github.com/agrologix/agrologix-backend/internal/store"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		// No logger yet; config decides its format.
		logger.New("development").Fatal("invalid configuration", zap.Error(err))
	}

	log := logger.New(cfg.Environment)
	defer func() { _ = log.Sync() }()

	if cfg.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server exited", zap.Error(err))
	}
	log.Info("server stopped")
}

func run(ctx context.Context, cfg *config.Config, log *zap.Logger) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET must be set")
	}

	db, err := database.InitDB(cfg.DB)
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}

	g, ctx := errgroup.WithContext(ctx)

	hub := services.NewHub(log)
	g.Go(func() error {
		hub.Run(ctx)
		return nil
	})

	events, closeEvents, err := newPublisher(ctx, g, cfg, hub, log)
	if err != nil {
		return err
	}
	defer closeEvents()

	lc := lifecycle.New(store.NewGormStore(db), events, log,
		lifecycle.WithSiblingPolicy(lifecycle.SiblingPolicy(cfg.SiblingPolicy)))

	srv := &http.Server{
		Addr: ":" + cfg.Port,
		Handler: handlers.NewRouter(handlers.RouterDeps{
			DB:          db,
			Lifecycle:   lc,
			Hub:         hub,
			JWTSecret:   cfg.JWTSecret,
			CORSOrigins: cfg.CORSOrigins,
			Log:         log,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g.Go(func() error {
		log.Info("listening",
			zap.String("addr", srv.Addr),
			zap.String("events_backend", cfg.EventsBackend),
			zap.String("sibling_policy", cfg.SiblingPolicy))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// newPublisher wires the change-event backend. With redis, every instance
// subscribes to the channel and forwards events to its own websocket hub, so
// hints reach users connected to any instance.
func newPublisher(ctx context.Context, g *errgroup.Group, cfg *config.Config, hub *services.Hub, log *zap.Logger) (services.Publisher, func(), error) {
	local := services.HubPublisher{Hub: hub}

	switch cfg.EventsBackend {
	case config.EventsBackendRedis:
		client, err := services.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			return nil, nil, err
		}
		g.Go(func() error {
			return services.SubscribeChanges(ctx, client, services.BookingUpdatesChannel, log, hub.NotifyChange)
		})
		closeFn := func() {
			if err := client.Close(); err != nil {
				log.Warn("closing redis client", zap.Error(err))
			}
		}
		return services.NewRedisPublisher(client, services.BookingUpdatesChannel), closeFn, nil

	case config.EventsBackendKafka:
		pub := services.Fanout{
			services.NewKafkaPublisher(cfg.KafkaBroker, cfg.KafkaTopic),
			local,
		}
		closeFn := func() {
			if err := pub.Close(); err != nil {
				log.Warn("closing kafka writer", zap.Error(err))
			}
		}
		return pub, closeFn, nil

	default:
		return local, func() {}, nil
	}
}
