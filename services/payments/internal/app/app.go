package app

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/stripe/stripe-go/v76/client"

	"github.com/diagnosis/expertbook/pkg/config"
	"github.com/diagnosis/expertbook/pkg/database"
	"github.com/diagnosis/expertbook/pkg/events"
	"github.com/diagnosis/expertbook/pkg/logger"
	"github.com/diagnosis/expertbook/pkg/mailer"
	"github.com/diagnosis/expertbook/services/payments/internal/calendar"
	"github.com/diagnosis/expertbook/services/payments/internal/notify"
	"github.com/diagnosis/expertbook/services/payments/internal/provider"
	"github.com/diagnosis/expertbook/services/payments/internal/repository"
	"github.com/diagnosis/expertbook/services/payments/internal/service"
)

// App holds the wired reconciliation engine and the connections it owns.
type App struct {
	Reconciler service.Reconciler
	Janitor    *service.ReservationJanitor
	Dedupe     repository.EventDedupe
	Verifier   *provider.StripeWebhookVerifier

	pool  *pgxpool.Pool
	redis *redis.Client
	bus   *events.NATSEventBus
}

// Build connects to postgres, NATS and redis and wires the reconciler.
// Redis is optional; postgres and NATS are not.
func Build(ctx context.Context, cfg *config.Config, name string) (*App, error) {
	pool, err := database.Connect(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("connect database: %w", err)
	}

	bus, err := events.NewNATSEventBus(cfg.NATS.URL, name)
	if err != nil {
		pool.Close()
		return nil, err
	}

	a := &App{pool: pool, bus: bus}
	a.Dedupe = a.connectRedis(ctx, cfg)

	meetings := repository.NewMeetingRepository(pool)
	reservations := repository.NewReservationRepository(pool)
	availability := repository.NewAvailabilityRepository(pool)

	stripeAPI := client.New(cfg.Stripe.SecretKey, nil)

	a.Reconciler = service.NewReconciler(service.ReconcilerDeps{
		Tx:           database.NewTxManager(pool, cfg.Reconcile.TxRetryAttempts, cfg.Reconcile.TxRetryBaseDelay),
		Meetings:     meetings,
		Reservations: reservations,
		Disputes:     repository.NewDisputeRepository(pool),
		Experts:      availability,
		Detector: service.NewConflictDetector(
			availability,
			cfg.Reconcile.DefaultMinimumNotice,
			nil,
		),
		Claims: service.NewCalendarClaimManager(meetings),
		Refunds: service.NewRefundOrchestrator(
			provider.NewStripeRefunder(stripeAPI),
			repository.NewRefundRecordRepository(pool),
		),
		Transfers:       service.NewTransferStateMachine(repository.NewTransferRepository(pool)),
		Calendar:        calendar.NewClient(cfg.Calendar.BaseURL, cfg.Calendar.Timeout),
		Notifier:        notify.NewEventNotifier(bus),
		Emailer:         notify.NewMailerEmailer(mailer.New(cfg.Email)),
		Events:          bus,
		TransferHourUTC: cfg.Reconcile.TransferHourUTC,
	})
	a.Janitor = service.NewReservationJanitor(reservations, cfg.Reconcile.ReservationSweepEvery)
	a.Verifier = provider.NewStripeWebhookVerifier(cfg.Stripe.WebhookSecret)

	return a, nil
}

func (a *App) connectRedis(ctx context.Context, cfg *config.Config) repository.EventDedupe {
	opts, err := redis.ParseURL(cfg.Redis.URL)
	if err != nil {
		logger.Warn("Invalid redis URL, webhook dedupe disabled", "error", err)
		return repository.NoopEventDedupe{}
	}
	if cfg.Redis.Password != "" {
		opts.Password = cfg.Redis.Password
	}
	opts.DB = cfg.Redis.DB

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unavailable, webhook dedupe disabled", "error", err)
		rdb.Close()
		return repository.NoopEventDedupe{}
	}

	a.redis = rdb
	return repository.NewRedisEventDedupe(rdb, cfg.Reconcile.EventDedupeTTL)
}

// Close drains NATS before closing the stores so in-flight publishes land.
func (a *App) Close() {
	if err := a.bus.Close(); err != nil {
		logger.Error("Failed to drain NATS connection", "error", err)
	}
	if a.redis != nil {
		a.redis.Close()
	}
	a.pool.Close()
}
