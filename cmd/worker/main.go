package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"hrledger/internal/config"
	"hrledger/internal/logging"
	"hrledger/internal/payroll"
	"hrledger/internal/queue"
	"hrledger/internal/store"
)

// Worker consumes payroll processing jobs from Redis and runs them against Postgres.
func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Env, cfg.LogLevel, "hrledger-worker")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.QueueBackend == "memory" {
		logger.Fatal("worker needs QUEUE_BACKEND=redis; the memory queue is drained inside the api process")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	connectCtx, cancelConnect := context.WithTimeout(ctx, 30*time.Second)
	db, err := store.NewDB(connectCtx, cfg.DatabaseURL)
	cancelConnect()
	if err != nil {
		logger.Fatal("db connect failed", zap.Error(err))
	}
	defer func() { _ = db.Close() }()

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer func() { _ = redisClient.Close() }()
	if !redisClient.Healthy(ctx) {
		logger.Warn("redis not reachable yet, consumer will keep retrying", zap.String("addr", cfg.RedisAddr))
	}

	q := queue.NewRedisQueue(redisClient.Client, cfg.QueueKey).OnDrop(func(raw string, err error) {
		logger.Warn("dropping undecodable queue entry", zap.Error(err), zap.Int("bytes", len(raw)))
	})

	svc := payroll.NewService(store.NewLedger(db.Client), nil, nil, logger)

	logger.Info("worker started", zap.String("queue", cfg.QueueKey), zap.Int("concurrency", cfg.WorkerConcurrency))
	if err := svc.Run(ctx, q, cfg.WorkerConcurrency); err != nil {
		logger.Error("worker stopped with error", zap.Error(err))
		return
	}
	logger.Info("worker stopped")
}
