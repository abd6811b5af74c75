package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/action"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/config"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/engine"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/eventbus"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/provider"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/queue"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/store/postgres"
	redisclient "github.com/LeviathanIsI/barkbase-sub001/pkg/store/redis"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, _ := zap.NewProduction()
	defer logger.Sync()

	db, err := postgres.NewStore(&cfg.Database)
	if err != nil {
		logger.Fatal("failed to connect to database", zap.Error(err))
	}
	defer db.Close()

	redis, err := redisclient.NewClient(&cfg.Redis)
	if err != nil {
		logger.Fatal("failed to connect to redis", zap.Error(err))
	}
	defer redis.Close()

	workflowRepo := postgres.NewWorkflowRepository(db.DB())
	executionRepo := postgres.NewExecutionRepository(db.DB())
	logRepo := postgres.NewExecutionLogRepository(db.DB())
	tenantRepo := postgres.NewTenantRepository(db.DB())
	segmentRepo := postgres.NewSegmentRepository(db.DB())
	sideEffects := postgres.NewSideEffectRepository(db.DB())
	records := postgres.NewRecordRegistry(db.DB())

	stepProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ClientID, cfg.Kafka.StepTopic)
	defer stepProducer.Close()

	manager := engine.NewManager(workflowRepo, executionRepo, logRepo, stepProducer, logger)
	bus := eventbus.NewBus(redis.Client(), logger)
	httpProvider := provider.NewHTTPProvider(15 * time.Second)

	deps := action.Deps{
		Records:        records,
		Segments:       segmentRepo,
		Tasks:          sideEffects,
		Notifications:  sideEffects,
		Comms:          sideEffects,
		Audits:         sideEffects,
		WebhookLogs:    sideEffects,
		Templates:      sideEffects,
		Enroller:       manager,
		SMS:            httpProvider,
		Email:          httpProvider,
		Realtime:       bus,
		WebhookTimeout: time.Duration(cfg.Webhook.TimeoutMs) * time.Millisecond,
		Logger:         logger,
	}
	processor := engine.NewStepProcessor(workflowRepo, executionRepo, logRepo, tenantRepo,
		stepProducer, action.NewDispatcher(logger), deps, logger)

	steps := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ClientID, cfg.Kafka.StepGroup,
		cfg.Kafka.StepTopic, cfg.Kafka.StepRetryTopic, cfg.Kafka.DLQTopic, cfg.Kafka.MaxReceive)
	defer steps.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Info("step consumer starting", zap.String("topic", cfg.Kafka.StepTopic))
		if err := steps.Consume(ctx, processor.HandleStep); err != nil && err != context.Canceled {
			logger.Fatal("step consumer stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("engine shutting down")
}
