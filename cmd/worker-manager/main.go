// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"cqa-workers/internal/common/aws"
	"cqa-workers/internal/common/camunda"
	"cqa-workers/internal/common/config"
	"cqa-workers/internal/common/database"
	"cqa-workers/internal/common/logger"
	"cqa-workers/internal/common/observability"
	"cqa-workers/internal/cqa"
	"cqa-workers/internal/kbsync"

	cq "cqa-workers/internal/workers/knowledge-base/cqa-query"
	kbe "cqa-workers/internal/workers/knowledge-base/kb-export"
	kbi "cqa-workers/internal/workers/knowledge-base/kb-import"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.New("info", "console").Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()

	log := logger.NewZapAdapter(zapLog)
	zapLog.Info("Starting worker manager...",
		zap.String("environment", cfg.App.Environment),
		zap.String("version", cfg.App.Version),
	)

	obs := observability.New("worker-manager", zapLog)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Zeebe ---
	zeebe, err := camunda.Connect(ctx, &camunda.ClientConfig{
		GatewayAddress:         cfg.Camunda.BrokerAddress,
		UsePlaintextConnection: true,
		ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
	}, zapLog)
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Redis (sync locks and query sessions) ---
	var redis *database.RedisClient
	err = camunda.RetryWithBackoff(ctx, camunda.DefaultRetryConfig, zapLog, "Redis connection", func() error {
		var err error
		redis, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redis.Ping(ctx)
	})
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer redis.Close()
	zapLog.Info("Redis connected successfully")

	syncOpts := []kbsync.Option{
		kbsync.WithLock(kbsync.NewRedisLock(redis.GetClient(), config.GetDuration(cfg.CQA.LockTTL))),
	}

	// --- PostgreSQL (sync history, optional) ---
	if cfg.Database.Postgres.Enabled() {
		var pg *database.PostgresClient
		err = camunda.RetryWithBackoff(ctx, camunda.DefaultRetryConfig, zapLog, "PostgreSQL connection", func() error {
			var err error
			pg, err = database.NewPostgres(cfg.Database.Postgres)
			if err != nil {
				return err
			}
			return pg.Ping(ctx)
		})
		if err != nil {
			zapLog.Fatal("postgres failed after retries", zap.Error(err))
		}
		defer pg.Close()

		history := kbsync.NewPostgresHistory(pg.GetDB())
		if err := history.EnsureSchema(ctx); err != nil {
			zapLog.Fatal("failed to create sync history table", zap.Error(err))
		}
		syncOpts = append(syncOpts, kbsync.WithHistory(history))
		zapLog.Info("PostgreSQL connected successfully")
	}

	// --- SNS (sync status notifications, optional) ---
	if cfg.Notifications.SNS.Enabled {
		snsClient, err := aws.NewSNSClient(ctx, cfg.Notifications.SNS.Region, cfg.Notifications.SNS.TopicARN)
		if err != nil {
			zapLog.Fatal("failed to create SNS client", zap.Error(err))
		}
		syncOpts = append(syncOpts, kbsync.WithNotifier(kbsync.NewSNSNotifier(snsClient)))
		zapLog.Info("SNS notifications enabled", zap.String("topicArn", cfg.Notifications.SNS.TopicARN))
	}

	// --- SES (run reports, optional) ---
	if email := cfg.Notifications.Email; email.Enabled {
		sesClient, err := aws.NewSESClient(ctx, email.Region, email.From)
		if err != nil {
			zapLog.Fatal("failed to create SES client", zap.Error(err))
		}
		syncOpts = append(syncOpts, kbsync.WithRunListener(kbsync.NewEmailReport(sesClient, email.To, email.OnlyFailed)))
		zapLog.Info("Email run reports enabled", zap.Strings("to", email.To))
	}

	clientOpts := append(cqa.OptionsFromConfig(cfg.CQA),
		cqa.WithPollObserver(func(ctx context.Context, kind cqa.JobKind, attempt int) {
			obs.RecordPoll(ctx, string(kind), attempt)
		}),
	)
	syncOpts = append(syncOpts, kbsync.WithClientOptions(clientOpts...))

	defaults := cqa.FromConfig(cfg.CQA)
	service := kbsync.NewService(defaults, log, syncOpts...)

	// --- Workers ---
	var workers []*camunda.CamundaWorker

	{
		handler, err := kbi.NewHandler(kbi.HandlerOptions{
			AppConfig:     cfg,
			Importer:      service,
			Logger:        log,
			Observability: obs,
		})
		if err != nil {
			zapLog.Fatal("failed to create kb-import handler", zap.Error(err))
		}
		workers = append(workers, camunda.StartWorker(zeebe.GetClient(), kbi.TaskType,
			config.GetWorkerConfig(cfg, kbi.TaskType), handler, zapLog))
	}

	{
		handler, err := kbe.NewHandler(kbe.HandlerOptions{
			AppConfig:     cfg,
			Exporter:      service,
			Logger:        log,
			Observability: obs,
		})
		if err != nil {
			zapLog.Fatal("failed to create kb-export handler", zap.Error(err))
		}
		workers = append(workers, camunda.StartWorker(zeebe.GetClient(), kbe.TaskType,
			config.GetWorkerConfig(cfg, kbe.TaskType), handler, zapLog))
	}

	{
		handler, err := cq.NewHandler(cq.HandlerOptions{
			AppConfig:     cfg,
			Defaults:      defaults,
			ClientOptions: clientOpts,
			Sessions:      cq.NewRedisSessionStore(redis.GetClient(), config.GetDuration(cfg.CQA.SessionTTL)),
			Logger:        log,
			Observability: obs,
		})
		if err != nil {
			zapLog.Fatal("failed to create cqa-query handler", zap.Error(err))
		}
		workers = append(workers, camunda.StartWorker(zeebe.GetClient(), cq.TaskType,
			config.GetWorkerConfig(cfg, cq.TaskType), handler, zapLog))
	}
	zapLog.Info("All workers registered")

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy")
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		if err := zeebe.HealthCheck(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		if err := redis.Ping(r.Context()); err != nil {
			writeStatus(w, http.StatusServiceUnavailable, "unavailable")
			return
		}
		writeStatus(w, http.StatusOK, "ready")
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("address", cfg.Metrics.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Error("Health/Metrics server failed", zap.Error(err))
		}
	}()

	// --- Graceful Shutdown ---
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	zapLog.Info("Shutdown signal received, stopping workers...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	for _, w := range workers {
		w.Stop()
	}

	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping Health/Metrics server", zap.Error(err))
	}

	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func writeStatus(w http.ResponseWriter, code int, status string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	})
}
