package main

import (
	"context"
	"crypto/tls"
	"errors"
	"os"
	"os/signal"
	"syscall"
	"time"

	"admissions_backend/platform/events"
	"admissions_backend/internal/leads"
	"admissions_backend/internal/scanner"
	"admissions_backend/platform/config"
	"admissions_backend/platform/db"
	"admissions_backend/platform/logger"
	"admissions_backend/platform/validator"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("failed to load config: " + err.Error())
	}

	log := logger.New(cfg.Env)
	log.Info("starting automation scanner", "env", cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var pool *pgxpool.Pool
	if err := withRetry(ctx, log, "database connection", 5, 2*time.Second, func() error {
		p, err := db.NewPool(ctx, cfg)
		if err != nil {
			return err
		}
		pool = p
		return nil
	}); err != nil {
		log.Error("failed to connect to database", "error", err)
		panic("failed to connect to database: " + err.Error())
	}
	defer pool.Close()

	if err := db.RunMigrations(ctx, cfg, os.Getenv("MIGRATIONS_DIR")); err != nil {
		log.Error("failed to run migrations", "error", err)
		panic("failed to run migrations: " + err.Error())
	}

	redisClient, err := newRedisClient(cfg)
	if err != nil {
		log.Error("failed to initialize redis client", "error", err)
		panic("failed to initialize redis client: " + err.Error())
	}
	if redisClient != nil {
		defer func() { _ = redisClient.Close() }()
	}

	eventBus := events.NewInMemoryBus(log)
	val := validator.New()

	leadsModule := leads.NewModule(pool, redisClient, eventBus, val, cfg, log)

	scan := scanner.NewScanner(
		leadsModule.Repository(),
		leadsModule.Repository(),
		leadsModule.RuleCache(),
		leadsModule.Authority(),
		cfg.GetScanRatePerSecond(),
		cfg.GetScanEvalConcurrency(),
		log,
	)

	dispatcher, err := scanner.NewDispatcher(cfg, leadsModule.Repository(), log)
	if err != nil {
		log.Error("failed to initialize scan dispatcher", "error", err)
		panic("failed to initialize scan dispatcher: " + err.Error())
	}
	defer func() { _ = dispatcher.Close() }()
	go dispatcher.Run(ctx)

	worker, err := scanner.NewWorker(cfg, scan, log)
	if err != nil {
		log.Error("failed to initialize scan worker", "error", err)
		panic("failed to initialize scan worker: " + err.Error())
	}

	worker.Run(ctx)
}

func newRedisClient(cfg *config.Config) (*redis.Client, error) {
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required for the automation scanner")
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, err
	}

	if cfg.RedisTLSInsecure {
		if opt.TLSConfig == nil {
			opt.TLSConfig = &tls.Config{InsecureSkipVerify: true}
		} else {
			opt.TLSConfig.InsecureSkipVerify = true
		}
	}

	return redis.NewClient(opt), nil
}

func withRetry(ctx context.Context, log *logger.Logger, name string, attempts int, baseDelay time.Duration, fn func() error) error {
	if attempts < 1 {
		return errors.New(name + ": invalid retry attempts")
	}

	var lastErr error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if err := fn(); err == nil {
			return nil
		} else {
			lastErr = err
			log.Warn("retryable operation failed", "operation", name, "attempt", attempt, "error", err)
		}

		if attempt < attempts {
			delay := time.Duration(attempt*attempt) * baseDelay
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
		}
	}

	return errors.New(name + ": " + lastErr.Error())
}
