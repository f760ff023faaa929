// Command agroview logs in as a farmer or provider and keeps their dashboard
// view in sync with the API, printing each new view as it lands.
package main

import (
	"context"
	"errors"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/agrologix/agrologix-backend/internal/config"
	"github.com/agrologix/agrologix-backend/internal/logger"
	"github.com/agrologix/agrologix-backend/internal/models"
	"github.com/agrologix/agrologix-backend/internal/poller"
	"github.com/agrologix/agrologix-backend/pkg/client"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("development").Fatal("invalid configuration", zap.Error(err))
	}

	email := flag.String("email", os.Getenv("AGROVIEW_EMAIL"), "account email")
	password := flag.String("password", os.Getenv("AGROVIEW_PASSWORD"), "account password")
	apiURL := flag.String("api", cfg.APIBaseURL, "API base URL")
	interval := flag.Duration("interval", cfg.PollInterval, "poll interval")
	hints := flag.Bool("hints", true, "listen for websocket hints and poll early")
	flag.Parse()

	log := logger.New(cfg.Environment)
	defer func() { _ = log.Sync() }()

	if *email == "" || *password == "" {
		log.Fatal("email and password are required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	api := client.New(*apiURL)
	auth, err := api.Login(ctx, *email, *password)
	if err != nil {
		log.Fatal("login failed", zap.Error(err))
	}
	session := poller.Session{UserID: auth.User.ID, Role: auth.User.UserType, Token: auth.Token}
	log.Info("logged in",
		zap.String("user_id", session.UserID),
		zap.String("name", auth.User.Name),
		zap.String("role", string(session.Role)))

	syncer, err := poller.New(api, session, poller.WithInterval(*interval), poller.WithLogger(log))
	if err != nil {
		log.Fatal("create synchronizer", zap.Error(err))
	}
	syncer.OnChange(func(v poller.View) { printView(log, session, v) })

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error { return syncer.Run(ctx) })
	if *hints {
		wsURL, err := api.WebSocketURL()
		if err != nil {
			log.Fatal("websocket url", zap.Error(err))
		}
		g.Go(func() error { return poller.ListenHints(ctx, wsURL, syncer, log) })
	}

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		log.Fatal("agroview stopped", zap.Error(err))
	}
}

func printView(log *zap.Logger, session poller.Session, v poller.View) {
	counts := map[models.BookingStatus]int{}
	for _, b := range v.Bookings {
		counts[b.Status]++
	}
	log.Info("view updated",
		zap.Uint64("seq", v.Seq),
		zap.Int("pending", counts[models.BookingStatusPending]),
		zap.Int("accepted", counts[models.BookingStatusAccepted]),
		zap.Int("delivered", counts[models.BookingStatusDelivered]),
		zap.Int("rejected", counts[models.BookingStatusRejected]),
		zap.Int("cancelled", counts[models.BookingStatusCancelled]),
		zap.Int("vehicles", len(v.Vehicles)))

	for _, b := range v.Bookings {
		if b.Status != models.BookingStatusPending && b.Status != models.BookingStatusAccepted {
			continue
		}
		counterpart := b.Provider
		if session.Role == models.UserTypeProvider {
			counterpart = b.Farmer
		}
		fields := []zap.Field{
			zap.String("booking_id", b.ID),
			zap.String("status", string(b.Status)),
			zap.String("product", b.ProductName),
			zap.Float64("quantity_t", b.Quantity),
			zap.String("route", b.Source+" -> "+b.Destination),
			zap.String("vehicle", b.VehicleModel),
			zap.String("delivery", b.DeliveryDate.Format("2006-01-02")),
		}
		if counterpart != nil {
			fields = append(fields, zap.String("with", counterpart.Name), zap.String("phone", counterpart.Phone))
		}
		log.Info("booking", fields...)
	}
}
