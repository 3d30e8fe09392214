package main

import (
	"context"
	"encoding/json"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	kafkaGo "github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"
	"github.com/vkurasov/ridepool/config"
	"github.com/vkurasov/ridepool/internal/domain"
	"github.com/vkurasov/ridepool/internal/kafka"
	"github.com/vkurasov/ridepool/internal/logger"
	"github.com/vkurasov/ridepool/internal/notify"
	"github.com/vkurasov/ridepool/internal/payment"
	"github.com/vkurasov/ridepool/internal/repository"
	"github.com/vkurasov/ridepool/internal/service/reservation"
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

	producer := kafka.NewProducer(cfg.Kafka.Brokers)
	defer producer.Close()

	reservationRepo := repository.NewReservationRepository(pool)
	rideRepo := repository.NewRideRepository(pool)
	outboxRepo := repository.NewOutboxRepository(pool)

	reservationService := reservation.NewReservationService(
		reservationRepo,
		rideRepo,
		nil, // sweeps run single-flight, the row lock is enough
		reservation.RefundPolicyFromConfig(cfg.Booking.Refund),
		reservation.WithLogger(log),
		reservation.WithPendingTTL(time.Duration(cfg.Booking.PendingTTLMinutes)*time.Minute),
	)

	gateway := payment.NewHTTPGateway(cfg.Worker.PaymentGatewayURL)
	notifier := notify.NewNotifier(cfg.Worker.NotifierURL, log)

	consumer := kafka.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.GroupID, cfg.Kafka.ReservationsTopic)
	defer consumer.Close()

	go func() {
		err := consumer.Consume(ctx, func(ctx context.Context, msg kafkaGo.Message) error {
			var event domain.Event
			if err := json.Unmarshal(msg.Value, &event); err != nil {
				log.WithError(err).Warn("skipping undecodable event")
				return nil
			}
			return dispatch(ctx, log, gateway, notifier, event)
		})
		if err != nil && ctx.Err() == nil {
			log.WithError(err).Error("consumer stopped")
		}
	}()

	relayInterval := time.Duration(cfg.Worker.RelayIntervalSeconds) * time.Second
	if relayInterval <= 0 {
		relayInterval = time.Second
	}
	relayTicker := time.NewTicker(relayInterval)
	defer relayTicker.Stop()

	sweepInterval := time.Duration(cfg.Worker.ExpirationSweepMinutes) * time.Minute
	if sweepInterval <= 0 {
		sweepInterval = time.Minute
	}
	sweepTicker := time.NewTicker(sweepInterval)
	defer sweepTicker.Stop()

	for {
		select {
		case <-relayTicker.C:
			relayOutbox(ctx, log, outboxRepo, producer, cfg.Kafka.ReservationsTopic, cfg.Worker.RelayBatchSize)
		case <-sweepTicker.C:
			expired, err := reservationService.ExpirePendingReservations(ctx)
			if err != nil {
				log.WithError(err).Error("expire pending reservations")
				continue
			}
			if len(expired) > 0 {
				log.WithField("count", len(expired)).Info("expired pending reservations")
			}
		case <-ctx.Done():
			log.Info("shutting down worker")
			return
		}
	}
}

// relayOutbox moves committed events from the ledger's outbox to the broker.
// A failed publish leaves the row unsent so the next tick retries it.
func relayOutbox(ctx context.Context, log *logrus.Logger, outbox repository.OutboxRepository, producer *kafka.Producer, topic string, batchSize int) {
	if batchSize <= 0 {
		batchSize = 100
	}
	rows, err := outbox.FetchUnsent(ctx, batchSize)
	if err != nil {
		log.WithError(err).Error("fetch outbox rows")
		return
	}
	for _, row := range rows {
		if err := producer.Publish(ctx, topic, row.ReservationID, json.RawMessage(row.Payload)); err != nil {
			log.WithError(err).WithField("outbox_id", row.ID).Error("publish outbox row")
			return
		}
		if err := outbox.MarkSent(ctx, row.ID); err != nil {
			log.WithError(err).WithField("outbox_id", row.ID).Error("mark outbox row sent")
			return
		}
	}
}

// dispatch fans a committed event out to the payment gateway and the
// notification dispatcher. Errors bubble up so the consumer redelivers.
func dispatch(ctx context.Context, log *logrus.Logger, gateway payment.Gateway, notifier *notify.Notifier, event domain.Event) error {
	res := event.Reservation

	switch event.Type {
	case domain.EventReservationApproved:
		if err := gateway.Authorize(ctx, res.ID, res.AmountCents); err != nil {
			log.WithError(err).WithField("reservation_id", res.ID).Error("authorize payment")
			return err
		}
	case domain.EventReservationCompleted:
		if err := gateway.Capture(ctx, res.ID); err != nil {
			log.WithError(err).WithField("reservation_id", res.ID).Error("capture payment")
			return err
		}
	case domain.EventReservationCancelled:
		if res.RefundPct != nil && *res.RefundPct > 0 {
			if err := gateway.Refund(ctx, res.ID, *res.RefundPct); err != nil {
				log.WithError(err).WithField("reservation_id", res.ID).Error("refund payment")
				return err
			}
		}
	}

	if err := notifier.Notify(ctx, event); err != nil {
		log.WithError(err).WithField("reservation_id", res.ID).Warn("notification delivery failed")
	}
	return nil
}
