package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"hrledger/internal/attendance"
	"hrledger/internal/config"
	"hrledger/internal/employee"
	"hrledger/internal/handler"
	"hrledger/internal/idempotency"
	"hrledger/internal/leave"
	"hrledger/internal/logging"
	"hrledger/internal/payroll"
	"hrledger/internal/queue"
	"hrledger/internal/store"
)

func main() {
	cfg := config.Load()

	logger, err := logging.New(cfg.Env, cfg.LogLevel, "hrledger-api")
	if err != nil {
		log.Fatalf("init logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	if err := runHTTP(cfg, logger); err != nil {
		logger.Fatal("http server failed", zap.Error(err))
	}
}

func runHTTP(cfg config.App, logger *zap.Logger) error {
	loc, err := cfg.Location()
	if err != nil {
		return err
	}

	connectCtx, cancelConnect := context.WithTimeout(context.Background(), 30*time.Second)
	db, err := store.NewDB(connectCtx, cfg.DatabaseURL)
	cancelConnect()
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if cfg.MigrateOnStart {
		if err := db.Migrate(); err != nil {
			return err
		}
		logger.Info("migrations applied")
	}

	redisClient := store.NewRedis(cfg.RedisAddr)
	defer func() { _ = redisClient.Close() }()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ledgerStore := store.NewLedger(db.Client)

	var keys idempotency.Store
	if cfg.QueueBackend == "memory" {
		keys = idempotency.NewMemoryStore(cfg.IdempotencyTTL)
	} else {
		keys = idempotency.NewRedisStore(redisClient.Client, "", cfg.IdempotencyTTL)
	}

	var q queue.Queue
	if cfg.QueueBackend == "memory" {
		q = queue.NewInMemory(256)
	} else {
		q = queue.NewRedisQueue(redisClient.Client, cfg.QueueKey).OnDrop(func(raw string, err error) {
			logger.Warn("dropping undecodable queue entry", zap.Error(err), zap.Int("bytes", len(raw)))
		})
	}

	payrollSvc := payroll.NewService(ledgerStore, keys, q, logger)

	// an in-memory queue has no separate worker process to drain it
	if cfg.QueueBackend == "memory" {
		go func() {
			if err := payrollSvc.Run(ctx, q, cfg.WorkerConcurrency); err != nil {
				logger.Error("in-process payroll worker stopped", zap.Error(err))
			}
		}()
	}

	h := handler.New(
		attendance.NewService(ledgerStore, loc, logger),
		leave.NewService(ledgerStore, logger),
		payrollSvc,
		employee.NewService(ledgerStore, logger),
		logger,
	)

	health := map[string]func(*gin.Context) bool{
		"db": func(c *gin.Context) bool { return db.Healthy(c.Request.Context()) },
	}
	if cfg.QueueBackend != "memory" {
		health["redis"] = func(c *gin.Context) bool { return redisClient.Healthy(c.Request.Context()) }
	}

	r := handler.NewRouter(h, handler.RouterConfig{
		Logger:          logger,
		SigningKey:      cfg.JWTSigningKey,
		Issuer:          cfg.JWTIssuer,
		RateLimitPerMin: cfg.RateLimitPerMin,
		Health:          health,
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", srv.Addr), zap.String("env", cfg.Env))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
	case err := <-errCh:
		return err
	}
	logger.Info("shutting down server")

	// Give outstanding requests 10 seconds to complete
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("server forced shutdown", zap.Error(err))
	}

	logger.Info("server exited")
	return nil
}
