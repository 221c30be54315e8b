package app

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/foodmarket/internal/domain"
	healthcheck "github.com/vladislavdragonenkov/foodmarket/internal/health"
	"github.com/vladislavdragonenkov/foodmarket/internal/messaging/kafka"
	"github.com/vladislavdragonenkov/foodmarket/internal/service/order"
	"github.com/vladislavdragonenkov/foodmarket/internal/service/outbox"
	"github.com/vladislavdragonenkov/foodmarket/internal/service/review"
	"github.com/vladislavdragonenkov/foodmarket/internal/storage/memory"
	"github.com/vladislavdragonenkov/foodmarket/internal/storage/postgres"
	transport "github.com/vladislavdragonenkov/foodmarket/internal/transport/http"
	"github.com/vladislavdragonenkov/foodmarket/internal/version"
)

// repositories — собранный storage-слой приложения.
type repositories struct {
	orders  domain.OrderRepository
	reviews domain.ReviewRepository
	catalog domain.CatalogStore
	outbox  domain.OutboxRepository
	store   *postgres.Store
}

// Run поднимает приложение и блокируется до отмены ctx.
// Без POSTGRES_DSN работает in-memory storage, без KAFKA_BROKERS события
// остаются в outbox и публикация отключена.
func Run(ctx context.Context, cfg Config) error {
	logger := log.WithField("component", "app")

	repos, err := buildRepositories(ctx, cfg, logger)
	if err != nil {
		return err
	}
	if repos.store != nil {
		defer func() {
			if err := repos.store.Close(); err != nil {
				logger.WithError(err).Warn("failed to close postgres store")
			}
		}()
	}

	orderSvc := order.NewService(repos.orders, repos.catalog, repos.outbox, logger.WithField("component", "order-service"))
	reviewSvc := review.NewService(repos.reviews, repos.orders, repos.catalog, repos.outbox, logger.WithField("component", "review-service"))

	// Kafka и outbox worker (опционально).
	var kafkaProducer *kafka.Producer
	var worker *outbox.Worker
	if len(cfg.KafkaBrokers) > 0 {
		producer, err := kafka.NewProducer(cfg.KafkaBrokers)
		if err != nil {
			logger.WithError(err).Warn("failed to create kafka producer, continuing without kafka")
		} else {
			kafkaProducer = producer
			logger.WithField("brokers", cfg.KafkaBrokers).Info("kafka producer initialized")

			worker = outbox.NewWorker(
				repos.outbox,
				kafka.NewOutboxPublisher(producer, ""),
				outbox.WithLogger(logger.WithField("component", "outbox-worker")),
				outbox.WithDLQPublisher(kafka.NewOutboxPublisher(producer, kafka.TopicDeadLetterQueue)),
				outbox.WithPollInterval(cfg.Outbox.PollInterval),
				outbox.WithBatchSize(cfg.Outbox.BatchSize),
				outbox.WithMaxAttempts(cfg.Outbox.MaxAttempts),
				outbox.WithRetryBaseDelay(cfg.Outbox.RetryBaseDelay),
			)
		}
	}
	if worker != nil {
		go worker.Run(ctx)
	}

	// Health checks.
	healthHandler := healthcheck.NewHandler(version.String())
	if repos.store != nil {
		healthHandler.RegisterChecker("storage", healthcheck.NewSimpleChecker("storage", func() error {
			pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
			defer cancel()
			return repos.store.Ping(pingCtx)
		}))
	}
	if repos.outbox != nil {
		healthHandler.RegisterChecker("outbox", healthcheck.NewSimpleChecker("outbox", func() error {
			_, err := repos.outbox.Stats()
			return err
		}))
	}

	metricsSrv := startMetricsServer(ctx, cfg.MetricsAddr, logger, healthHandler)

	apiSrv := transport.NewServer(cfg.HTTPAddr, orderSvc, reviewSvc, repos.catalog, logger.WithField("component", "http-server"))

	errCh := make(chan error, 1)
	go func() {
		errCh <- apiSrv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("получен сигнал остановки, останавливаем HTTP сервер")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := apiSrv.Shutdown(shutdownCtx); err != nil {
			logger.WithError(err).Warn("api shutdown with error")
		}
		shutdownHTTP(metricsSrv, logger)
		closeProducer(kafkaProducer, logger)
		return ctx.Err()
	case err := <-errCh:
		shutdownHTTP(metricsSrv, logger)
		closeProducer(kafkaProducer, logger)
		return err
	}
}

// buildRepositories выбирает storage: Postgres при заданном DSN, иначе in-memory.
func buildRepositories(ctx context.Context, cfg Config, logger *log.Entry) (repositories, error) {
	if cfg.PostgresDSN == "" {
		logger.Info("postgres dsn is empty, using in-memory storage")
		catalog := memory.NewCatalogStore()
		return repositories{
			orders:  memory.NewOrderRepository(catalog),
			reviews: memory.NewReviewRepository(catalog),
			catalog: catalog,
			outbox:  memory.NewOutboxRepository(),
		}, nil
	}

	store, err := postgres.Open(ctx, cfg.PostgresDSN)
	if err != nil {
		return repositories{}, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		_ = store.Close()
		return repositories{}, err
	}
	logger.Info("postgres storage initialized")

	return repositories{
		orders:  postgres.NewOrderRepository(store),
		reviews: postgres.NewReviewRepository(store),
		catalog: postgres.NewCatalogStore(store),
		outbox:  postgres.NewOutboxRepository(store),
		store:   store,
	}, nil
}

// startMetricsServer запускает HTTP-обработчик /metrics для Prometheus.
func startMetricsServer(ctx context.Context, addr string, logger *log.Entry, healthHandler *healthcheck.Handler) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/healthz", healthHandler)
	mux.HandleFunc("/livez", healthcheck.LivenessHandler)
	mux.HandleFunc("/readyz", healthHandler.ReadinessHandler)

	srv := &http.Server{Addr: addr, Handler: mux}
	go func() {
		logger.Infof("метрики доступны по адресу %s/metrics", addr)
		logger.Infof("health checks: %s/healthz, %s/livez, %s/readyz", addr, addr, addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics server failed")
		}
	}()

	go func() {
		<-ctx.Done()
		shutdownHTTP(srv, logger)
	}()

	return srv
}

// shutdownHTTP аккуратно останавливает HTTP-сервер.
func shutdownHTTP(srv *http.Server, logger *log.Entry) {
	if srv == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.WithError(err).Warn("metrics shutdown with error")
	}
}

func closeProducer(producer *kafka.Producer, logger *log.Entry) {
	if producer == nil {
		return
	}
	if err := producer.Close(); err != nil {
		logger.WithError(err).Warn("failed to close kafka producer")
	} else {
		logger.Info("kafka producer closed")
	}
}
