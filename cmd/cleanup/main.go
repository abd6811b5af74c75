package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/LeviathanIsI/barkbase-sub001/pkg/config"
	"github.com/LeviathanIsI/barkbase-sub001/pkg/retention"
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

	job := retention.NewJob(
		postgres.NewTenantRepository(db.DB()),
		postgres.NewExecutionLogRepository(db.DB()),
		postgres.NewExecutionRepository(db.DB()),
		cfg.Retention,
		logger,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go job.Run(ctx)
	logger.Info("retention job started",
		zap.Duration("interval", cfg.Retention.SweepInterval),
		zap.Int("default_log_days", cfg.Retention.LogDays),
		zap.Int("default_execution_days", cfg.Retention.ExecutionDays))

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("retention job shutting down")
}
