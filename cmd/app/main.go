package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/vkurasov/ridepool/config"
	"github.com/vkurasov/ridepool/internal/bootstrap"
	"github.com/vkurasov/ridepool/internal/cache"
	"github.com/vkurasov/ridepool/internal/logger"
	"github.com/vkurasov/ridepool/internal/repository"
	"github.com/vkurasov/ridepool/internal/service/reservation"
	"github.com/vkurasov/ridepool/internal/service/rides"
)

func main() {
	cfgPath := os.Getenv("CONFIG_PATH")
	if cfgPath == "" {
		cfgPath = "config.yaml"
	}

	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		logger.New("info").Fatalf("load config: %v", err)
	}
	log := logger.New(cfg.Log.Level)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := pgxpool.New(ctx, cfg.Database.DSN())
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	redisCache := cache.NewRedisCache(cfg.Redis, time.Duration(cfg.Rides.CacheTTLSeconds)*time.Second)

	rideRepo := repository.NewRideRepository(pool)
	reservationRepo := repository.NewReservationRepository(pool)

	rideService := rides.NewRideService(rideRepo, redisCache, rides.WithLogger(log))
	reservationService := reservation.NewReservationService(
		reservationRepo,
		rideRepo,
		redisCache,
		reservation.RefundPolicyFromConfig(cfg.Booking.Refund),
		reservation.WithLogger(log),
		reservation.WithLockBounds(
			time.Duration(cfg.Booking.LockLeaseSeconds)*time.Second,
			time.Duration(cfg.Booking.LockWaitSeconds)*time.Second,
		),
		reservation.WithMinDepartureLead(time.Duration(cfg.Booking.MinDepartureLeadMinutes)*time.Minute),
		reservation.WithPendingTTL(time.Duration(cfg.Booking.PendingTTLMinutes)*time.Minute),
	)

	if err := bootstrap.Run(ctx, cfg, log, rideService, reservationService); err != nil {
		log.Fatalf("server error: %v", err)
	}
}
