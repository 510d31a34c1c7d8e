package main

import (
	"context"
	"os"
	"strings"
	"time"

	"github.com/nimasrn/statement-ledger/internal/config"
	"github.com/nimasrn/statement-ledger/internal/handlers"
	"github.com/nimasrn/statement-ledger/internal/idempotency"
	"github.com/nimasrn/statement-ledger/internal/matcher"
	"github.com/nimasrn/statement-ledger/internal/repository"
	"github.com/nimasrn/statement-ledger/internal/services"
	xhttp "github.com/nimasrn/statement-ledger/pkg/http"
	"github.com/nimasrn/statement-ledger/pkg/logger"
	"github.com/nimasrn/statement-ledger/pkg/pg"
	"github.com/nimasrn/statement-ledger/pkg/prom"
	"github.com/nimasrn/statement-ledger/pkg/redis"
	"github.com/nimasrn/statement-ledger/pkg/worker"
)

var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	defer logger.Sync()

	err := config.Load(argContainsEnvPath())
	if err != nil {
		logger.Error("failed to load config", "error", err)
		return
	}
	cfg := config.Get()
	logger.Info("starting ledger api", "version", version, "commit", commit, "date", date)

	if cfg.AppDebugMetricsAddr != "" {
		host, _ := os.Hostname()
		if err = prom.Create(host, cfg.AppEnv, cfg.PromNamespace); err != nil {
			logger.Error("failed creating metrics", "error", err)
			return
		}
		go prom.ListenAndServer(cfg.AppDebugMetricsAddr, cfg.AppDebugMetricsURI)
	}

	// transport
	s := xhttp.NewServer(xhttp.DefaultServerOption)
	s.Use(xhttp.RecoverMiddleware)
	s.Use(xhttp.RequestLoggerMiddleware)
	s.Use(prom.HTTPMiddleware)
	s.Use(xhttp.TimeoutMiddleware(cfg.HttpRequestTimeout))
	s.Use(xhttp.CompressMiddleware(6))

	db, err := pg.CreateReadWrite(cfg.PostgresRead(), cfg.PostgresWrite(), cfg.AppEnv == "dev")
	if err != nil {
		logger.Error("failed connecting to pg", "error", err)
		return
	}

	transactionRepo := repository.NewTransactionRepository(db)
	categoryRepo := repository.NewCategoryRepository(db)
	batchRepo := repository.NewImportBatchRepository(db)

	// services
	importService := services.NewImportService(transactionRepo, categoryRepo, batchRepo,
		matcher.New(transactionRepo, cfg.DuplicateCheckWorkers), cfg.ImportRetention)
	transactionService := services.NewTransactionService(transactionRepo, categoryRepo)
	healthService := services.NewHealthService().With("postgres", db)

	if cfg.RedisAddr != "" {
		redisAdap, err := redis.NewRedisAdapter("default", cfg.RedisUniversalKeyPrefix, &redis.Options{
			Addrs:      []string{cfg.RedisAddr},
			ClientName: "default",
			DB:         cfg.RedisDatabase,
			Username:   cfg.RedisUsername,
			Password:   cfg.RedisPassword,
		})
		if err != nil {
			logger.Error("failed connecting to redis", "error", err)
			return
		}
		defer redisAdap.Close()

		importService.WithIdempotency(idempotency.NewStore(redisAdap, idempotency.Config{
			LockTTL:      cfg.IdempotencyLockTTL,
			ProcessedTTL: cfg.IdempotencyTTL,
			KeyPrefix:    idempotency.DefaultConfig().KeyPrefix,
		}))
		healthService.With("redis", redisAdap)
	} else {
		logger.Warn("REDIS_ADDR is empty, commit idempotency is disabled")
	}

	// v1 handlers
	g := s.Router.Group("/api/v1")
	handlers.RegisterImportRoutes(g, handlers.NewImportHandler(importService))
	handlers.RegisterTransactionRoutes(g, handlers.NewTransactionHandler(transactionService))
	handlers.RegisterHealthRoutes(g, handlers.NewHealthHandler(healthService))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.BatchSweepInterval > 0 {
		go worker.NewPeriodic("sweep-import-batches", cfg.BatchSweepInterval, func(ctx context.Context) error {
			n, err := batchRepo.DeleteExpired(ctx, time.Now())
			if err != nil {
				return err
			}
			if n > 0 {
				logger.Info("expired import batches removed", "count", n)
			}
			return nil
		}).Run(ctx)
	}

	done := s.CloseOnSignal()
	go func() {
		if err := s.ListenAndServe(cfg.HttpListenAddr); err != nil {
			logger.Error("error in running http-server", "error", err)
		}
	}()
	<-done
}

func argContainsEnvPath() string {
	for _, v := range os.Args {
		if strings.Contains(v, "--env=") {
			s := strings.Split(v, "=")
			if _, err := os.Stat(s[1]); err != nil {
				logger.Error("failed to open the passed env file, got error" + err.Error())
				return ""
			}
			return s[1]
		}
	}
	return ""
}
