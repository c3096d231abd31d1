package app

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/officio/Async-billing-service/internal/config"
	"github.com/officio/Async-billing-service/internal/db"
	"github.com/officio/Async-billing-service/internal/integration/stripe"
	"github.com/officio/Async-billing-service/internal/kafka"
	"github.com/officio/Async-billing-service/internal/metrics"
	"github.com/officio/Async-billing-service/internal/notify"
	"github.com/officio/Async-billing-service/internal/realtime"
	"github.com/officio/Async-billing-service/internal/repository"
	"github.com/officio/Async-billing-service/internal/service"
	"github.com/officio/Async-billing-service/pkg/logger"
)

// App представляет собой контейнер для всех компонентов приложения
type App struct {
	Config         *config.Config
	Registry       *prometheus.Registry
	JobService     service.JobService
	BillingService service.BillingService
	WebhookService service.WebhookService
	WebhookParser  *stripe.WebhookParser
	Logger         *logger.Logger

	closers []func() error
}

// NewApp создает и инициализирует новый экземпляр приложения
func NewApp(ctx context.Context, cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{
		Config:   cfg,
		Registry: prometheus.NewRegistry(),
		Logger:   log,
	}

	jobMetrics := metrics.NewJobMetrics(a.Registry, log)
	billingMetrics := metrics.NewBillingMetrics(a.Registry, log)

	// Хранилище задач на pgx-пуле
	jobRepo, err := repository.NewPostgresJobRepository(ctx, cfg.Database.DSN, log)
	if err != nil {
		return nil, err
	}
	a.onClose(func() error { jobRepo.Close(); return nil })

	// Хранилище состояний биллинга на sqlx
	sqlxDB, err := db.Connect(cfg.Database.DSN, log)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.onClose(sqlxDB.Close)

	if err := repository.EnsureSchema(ctx, sqlxDB); err != nil {
		a.Close()
		return nil, err
	}

	subscriptionRepo := repository.NewPostgresSubscriptionRepository(sqlxDB, log)

	// Redis: кеш состояний биллинга и realtime-уведомления о задачах.
	// Отсутствие Redis не фатально, сервис деградирует до чистого опроса.
	var rt *realtime.RedisNotifier
	if cfg.Redis.Addr != "" {
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := redisClient.Ping(ctx).Err(); err != nil {
			log.Warn("Redis unavailable, falling back to poll-only mode: %v", err)
			redisClient.Close()
		} else {
			a.onClose(redisClient.Close)
			cache := repository.NewRedisCacheRepositoryWithClient(redisClient, log)
			subscriptionRepo = repository.NewCachedSubscriptionRepository(subscriptionRepo, cache, log)
			rt = realtime.NewRedisNotifier(redisClient, log)
		}
	}

	// Kafka для событий жизненного цикла
	var producer kafka.Producer = kafka.NopProducer{}
	if cfg.Kafka.Enabled && len(cfg.Kafka.Brokers) > 0 {
		kafkaProducer, err := kafka.NewKafkaProducer(cfg.Kafka.Brokers, log)
		if err != nil {
			log.Warn("Kafka unavailable, lifecycle events disabled: %v", err)
		} else {
			producer = kafkaProducer
			a.onClose(kafkaProducer.Close)
		}
	}

	workerClient := notify.NewHTTPWorkerClient(notify.Config{
		BaseURL: cfg.Worker.BaseURL,
		Timeout: cfg.WorkerTimeout(),
	}, log)

	poller := service.NewPoller(jobRepo, cfg.PollInterval(), cfg.PollAttempts(), log)
	a.JobService = service.NewJobService(jobRepo, workerClient, rt, producer, jobMetrics, poller, log)

	stripeClient := stripe.NewStripeClient(cfg.Stripe.APIKey, log)
	a.WebhookParser = stripe.NewWebhookParser(cfg.Stripe.WebhookSecret, log)
	a.BillingService = service.NewBillingService(subscriptionRepo, stripeClient, producer, billingMetrics, log)
	a.WebhookService = service.NewWebhookService(a.BillingService, subscriptionRepo, billingMetrics, log)

	return a, nil
}

func (a *App) onClose(fn func() error) {
	a.closers = append(a.closers, fn)
}

// Close освобождает ресурсы приложения в обратном порядке создания.
func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Logger.Warn("Failed to close resource: %v", err)
		}
	}
}
