package application

import (
	"context"
	"fmt"

	"teamchat/internal/application/common"
	"teamchat/internal/application/repo"
	"teamchat/internal/application/service"
	use_cases "teamchat/internal/application/use-cases"
	"teamchat/internal/controllers/cron"
	"teamchat/internal/controllers/handler"
	"teamchat/internal/controllers/listener"
	"teamchat/internal/transport/producer"
	"teamchat/internal/transport/webhook"
	"teamchat/pkg/broker"
	"teamchat/pkg/cache"
	"teamchat/pkg/config"
	"teamchat/pkg/db"
	"teamchat/pkg/httpclient"
	"teamchat/pkg/metrics"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

type App struct {
	ctx            context.Context
	conf           *config.Config
	logger         *zap.SugaredLogger
	postgres       *db.Postgres
	httpServer     *fiber.App
	kafka          *broker.KafkaBroker
	cache          cache.Cache
	cronController *cron.Controller
}

func NewApp(
	ctx context.Context,
	conf *config.Config,
	logger *zap.SugaredLogger,
	postgres *db.Postgres,
	httpServer *fiber.App,
	kafkaBroker *broker.KafkaBroker,
	redisCache cache.Cache,
	m *metrics.Metrics) *App {
	logger.Infof("starting teamchat delivery core, version: %s", common.Version)

	go func() {
		<-ctx.Done()
		logger.Info("closing consumer group")
		_ = kafkaBroker.ConsumerGroup.Close()
		logger.Info("closing consumer group: done")
	}()

	store := repo.NewRepo(postgres, logger)
	tx := repo.NewTransactions(store, logger)
	kafkaProducer := producer.NewProducer(kafkaBroker, logger, conf.Broker.Kafka.MaxAttempts, m)

	plainClient := httpclient.NewClient(conf.HTTPClient)
	retryClient := httpclient.NewRetryClient(plainClient, conf.HTTPClient.MaxRetries, logger)
	webhookClient := webhook.NewClient(plainClient, retryClient, conf.Relay.DeliveryTimeout, logger)

	policy, err := service.NewRetryPolicy(conf.Relay)
	if err != nil {
		logger.Fatalf("invalid backoff schedule: %v", err)
	}
	dispatcher := service.NewDispatcher(store, tx, webhookClient, logger, policy, m)
	relay := service.NewRelay(tx, dispatcher, logger, &conf.Relay)
	notifier := service.NewNotifier(store, kafkaProducer, logger, &conf.Notify, m)
	presence := service.NewPresence(redisCache, kafkaProducer, logger, &conf.Presence)
	audit := service.NewAudit(store, logger)

	srv := service.NewService(dispatcher, relay, notifier, presence, audit, store, kafkaProducer, redisCache, logger)
	uc := use_cases.NewUseCase(srv, store, webhookClient, logger, conf)
	h := handler.NewHandler(uc, logger)
	r := handler.NewRouter(h, httpServer, conf, logger)

	cronController := cron.NewController(ctx, logger)
	if err := cronController.RegisterOutboxStatsJob(uc, conf.Cron); err != nil {
		logger.Fatalf("failed to register cron job: %v", err)
	}
	cronController.Start()

	go uc.RunRelay(ctx)

	r.RegisterRouter()

	app := &App{
		ctx:            ctx,
		conf:           conf,
		logger:         logger,
		postgres:       postgres,
		httpServer:     httpServer,
		kafka:          kafkaBroker,
		cache:          redisCache,
		cronController: cronController,
	}

	go app.runConsumer(ctx, logger, uc, kafkaBroker, m)

	return app
}

func (a *App) Run() error {
	return a.httpServer.Listen(fmt.Sprintf(":%s", a.conf.Server.Port))
}

func (a *App) Shutdown() error {
	if a.cronController != nil {
		a.cronController.Stop()
	}
	return a.httpServer.Shutdown()
}

func (a *App) runConsumer(ctx context.Context, logger *zap.SugaredLogger, usecase use_cases.UseCaser, kafkaBroker *broker.KafkaBroker, m *metrics.Metrics) {
	logger.Infof("starting consumer for topic: %s", kafkaBroker.MessageTopic)

	kafkaBrokerConsumer := listener.NewKafkaBrokerConsumer(usecase, logger, m)

	for {
		err := kafkaBroker.ConsumerGroup.Consume(ctx, []string{kafkaBroker.MessageTopic}, kafkaBrokerConsumer)
		if err != nil {
			logger.Errorf("consumer error: %v", err)
		}
		if ctx.Err() != nil {
			logger.Info("consumer stopped by context")
			return
		}
	}
}
