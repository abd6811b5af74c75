package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/config"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/engine"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/queue"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/store/postgres"
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

	workflowRepo := postgres.NewWorkflowRepository(db.DB())
	executionRepo := postgres.NewExecutionRepository(db.DB())
	logRepo := postgres.NewExecutionLogRepository(db.DB())

	stepProducer := queue.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.ClientID, cfg.Kafka.StepTopic)
	defer stepProducer.Close()

	manager := engine.NewManager(workflowRepo, executionRepo, logRepo, stepProducer, logger)
	consumer := engine.NewTriggerConsumer(workflowRepo, manager, logger)

	events := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ClientID, cfg.Kafka.EventGroup,
		cfg.Kafka.EventTopic, cfg.Kafka.EventRetryTopic, cfg.Kafka.DLQTopic, cfg.Kafka.MaxReceive)
	defer events.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Info("trigger consumer starting", zap.String("topic", cfg.Kafka.EventTopic))
		if err := events.Consume(ctx, consumer.HandleEvent); err != nil && err != context.Canceled {
			logger.Fatal("trigger consumer stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("trigger consumer shutting down")
}
