package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/config"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/dlq"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/eventbus"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/notify"
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

	bus := eventbus.NewBus(redis.Client(), logger)
	alerter := notify.NewAlerter(provider.NewHTTPProvider(15*time.Second),
		cfg.Alerts.FromAddress, cfg.Server.BaseURL, logger)
	processor := dlq.NewProcessor(workflowRepo, executionRepo, logRepo, tenantRepo, alerter, bus, logger)

	deadLetters := queue.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.ClientID, cfg.Kafka.DLQGroup,
		cfg.Kafka.DLQTopic, "", "", cfg.Kafka.MaxReceive)
	defer deadLetters.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go func() {
		logger.Info("dead-letter processor starting", zap.String("topic", cfg.Kafka.DLQTopic))
		if err := deadLetters.Consume(ctx, processor.HandleDeadLetter); err != nil && err != context.Canceled {
			logger.Fatal("dead-letter processor stopped", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("dead-letter processor shutting down")
}
