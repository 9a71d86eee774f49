// cmd/worker-manager/main.go
package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/camunda/zeebe/clients/go/v8/pkg/worker"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"travel-planner-workers/internal/common/camunda"
	"travel-planner-workers/internal/common/config"
	"travel-planner-workers/internal/common/database"
	httpclient "travel-planner-workers/internal/common/http"
	"travel-planner-workers/internal/common/llm"
	"travel-planner-workers/internal/common/logger"
	"travel-planner-workers/internal/common/objectstore"
	"travel-planner-workers/internal/common/observability"
	"travel-planner-workers/internal/generation"
	"travel-planner-workers/internal/idempotency"
	"travel-planner-workers/internal/models"
	"travel-planner-workers/internal/prompts"
	"travel-planner-workers/internal/reconcile"
	"travel-planner-workers/internal/search"
	"travel-planner-workers/internal/store"
	"travel-planner-workers/pkg/registry"

	gq "travel-planner-workers/internal/workers/quiz/generate-quiz"
	etp "travel-planner-workers/internal/workers/travel/export-travel-plans"
	ftp "travel-planner-workers/internal/workers/travel/fetch-travel-plan"
	gtp "travel-planner-workers/internal/workers/travel/generate-travel-plan"
)

// retryWithBackoff attempts to execute a function with exponential backoff
func retryWithBackoff(operation func() error, maxRetries int, initialDelay time.Duration, log *zap.Logger, operationName string) error {
	var err error
	delay := initialDelay

	for i := 0; i < maxRetries; i++ {
		err = operation()
		if err == nil {
			return nil
		}

		if i < maxRetries-1 {
			log.Warn(fmt.Sprintf("%s failed, retrying...", operationName),
				zap.Error(err),
				zap.Int("attempt", i+1),
				zap.Int("maxRetries", maxRetries),
				zap.Duration("nextRetryIn", delay),
			)
			time.Sleep(delay)
			delay *= 2
		}
	}

	return fmt.Errorf("%s failed after %d attempts: %w", operationName, maxRetries, err)
}

func workerTimeout(cfg *config.Config, taskType string) time.Duration {
	return config.GetDuration(config.GetWorkerConfig(cfg, taskType).Timeout)
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		bootLog := logger.New("info", "console")
		bootLog.Fatal("config load failed", zap.Error(err))
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.Output)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting worker manager...",
		zap.String("version", cfg.App.Version),
		zap.String("environment", cfg.App.Environment),
	)

	// --- Task registry ---
	if cfg.Registry.Path != "" {
		reg, err := registry.LoadRegistry(cfg.Registry.Path)
		if err != nil {
			zapLog.Fatal("task registry load failed", zap.Error(err))
		}
		if err := reg.Validate(); err != nil {
			zapLog.Fatal("task registry invalid", zap.Error(err))
		}
		if err := reg.CheckEnabled(config.EnabledWorkers(cfg)); err != nil {
			zapLog.Fatal("enabled worker missing from task registry", zap.Error(err))
		}
	}

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Zeebe Client with retry ---
	var zeebe *camunda.Client
	err = retryWithBackoff(func() error {
		var err error
		zeebe, err = camunda.NewClientWithConfig(&camunda.ClientConfig{
			GatewayAddress:         cfg.Camunda.BrokerAddress,
			UsePlaintextConnection: true,
			ConnectionTimeout:      config.GetDuration(cfg.Camunda.RequestTimeout),
		})
		return err
	}, 10, 2*time.Second, zapLog, "Zeebe client initialization")
	if err != nil {
		zapLog.Fatal("zeebe client failed after retries", zap.Error(err))
	}
	zapLog.Info("Zeebe client connected successfully")

	// --- Init PostgreSQL with retry ---
	var pg *database.PostgresClient
	err = retryWithBackoff(func() error {
		var err error
		pg, err = database.NewPostgres(cfg.Database.Postgres)
		if err != nil {
			return err
		}
		return pg.Ping(ctx)
	}, 15, 2*time.Second, zapLog, "PostgreSQL connection")
	if err != nil {
		zapLog.Fatal("postgres failed after retries", zap.Error(err))
	}
	defer pg.Close()
	zapLog.Info("PostgreSQL connected successfully")

	results := store.NewPostgresStore(pg.GetDB())
	if err := results.Migrate(ctx); err != nil {
		zapLog.Fatal("schema migration failed", zap.Error(err))
	}

	// --- Init Redis with retry ---
	var rdb *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		rdb, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return rdb.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")
	if err != nil {
		zapLog.Fatal("redis failed after retries", zap.Error(err))
	}
	defer rdb.Close()
	zapLog.Info("Redis connected successfully")

	// --- Init Elasticsearch with retry (optional) ---
	var indexer *search.Indexer
	if cfg.Database.Elasticsearch.GetURL() != "" && cfg.Database.Elasticsearch.Index != "" {
		var esClient *database.ElasticsearchClient
		err = retryWithBackoff(func() error {
			var err error
			esClient, err = database.NewElasticsearch(cfg.Database.Elasticsearch)
			if err != nil {
				return err
			}
			return esClient.Ping()
		}, 15, 2*time.Second, zapLog, "Elasticsearch connection")
		if err != nil {
			zapLog.Fatal("elasticsearch failed after retries", zap.Error(err))
		}
		indexer = search.NewIndexer(esClient.Client, cfg.Database.Elasticsearch.Index, log)
		zapLog.Info("Elasticsearch connected successfully")
	} else {
		zapLog.Info("Elasticsearch not configured, travel plans will not be indexed")
	}

	// --- Generation stack ---
	completer, err := llm.New(ctx, cfg.APIs.LLM, httpclient.NewClient(config.GetDuration(cfg.APIs.LLM.Timeout), log), log)
	if err != nil {
		zapLog.Fatal("llm client init failed", zap.Error(err))
	}

	renderer, err := prompts.New(cfg.Prompts)
	if err != nil {
		zapLog.Fatal("prompt templates failed to load", zap.Error(err))
	}

	pipelineOpts := reconcile.Options{
		RepairWindow:  cfg.Generation.RepairWindow,
		ContextWindow: cfg.Generation.ContextWindow,
		Logger:        log,
	}
	travelPipeline, err := reconcile.NewTravelPlanPipeline(pipelineOpts)
	if err != nil {
		zapLog.Fatal("travel plan schema failed to compile", zap.Error(err))
	}
	quizPipeline, err := reconcile.NewQuizPipeline(pipelineOpts)
	if err != nil {
		zapLog.Fatal("quiz schema failed to compile", zap.Error(err))
	}

	guard := idempotency.NewGuard(results, rdb.GetClient(), idempotency.Config{
		TTL:       config.GetDuration(cfg.Generation.GuardTTL),
		CacheSize: cfg.Generation.GuardCacheSize,
	}, log)

	travelDeps := generation.Dependencies[*models.TravelRequest, models.TravelResponse]{
		Guard:     guard,
		Completer: completer,
		Prompt:    renderer.TravelPlan,
		Parser:    travelPipeline,
		Store:     results,
		Metrics:   obs,
		Logger:    log,
	}
	if indexer != nil {
		travelDeps.Indexer = indexer
	}
	travelService := generation.NewService(travelDeps)

	quizService := generation.NewService(generation.Dependencies[*models.QuizRequest, models.QuizBatch]{
		Guard:     guard,
		Completer: completer,
		Prompt:    renderer.Quiz,
		Parser:    quizPipeline,
		Store:     results,
		Metrics:   obs,
		Logger:    log,
	})

	// --- Export storage (optional) ---
	var uploader etp.Uploader
	if cfg.Storage.Exports.Endpoint != "" {
		s3, err := objectstore.NewS3Store(cfg.Storage.Exports)
		if err != nil {
			zapLog.Fatal("export storage init failed", zap.Error(err))
		}
		uploader = s3
		zapLog.Info("Export storage configured", zap.String("bucket", cfg.Storage.Exports.Bucket))
	}

	// --- Register workers ---
	zeebeClient := zeebe.GetClient()
	var workers []worker.JobWorker
	start := func(taskType string, handler worker.JobHandler) {
		if w := camunda.StartWorker(zeebeClient, taskType, config.GetWorkerConfig(cfg, taskType), handler, log); w != nil {
			workers = append(workers, w)
		}
	}

	if config.IsWorkerEnabled(cfg, gtp.TaskType) {
		handler := gtp.NewHandler(
			&gtp.Config{Timeout: workerTimeout(cfg, gtp.TaskType)},
			travelService, log,
		)
		start(gtp.TaskType, handler.Handle)
	}

	if config.IsWorkerEnabled(cfg, gq.TaskType) {
		handler := gq.NewHandler(
			&gq.Config{Timeout: workerTimeout(cfg, gq.TaskType)},
			quizService, log,
		)
		start(gq.TaskType, handler.Handle)
	}

	if config.IsWorkerEnabled(cfg, ftp.TaskType) {
		handler := ftp.NewHandler(
			&ftp.Config{Timeout: workerTimeout(cfg, ftp.TaskType)},
			results, log,
		)
		start(ftp.TaskType, handler.Handle)
	}

	if config.IsWorkerEnabled(cfg, etp.TaskType) {
		exportCfg := etp.LoadConfig()
		exportCfg.Timeout = workerTimeout(cfg, etp.TaskType)
		handler := etp.NewHandler(exportCfg, results, uploader, log)
		start(etp.TaskType, handler.Handle)
	}
	zapLog.Info("Workers registered", zap.Int("count", len(workers)))

	// --- Health & Metrics Server ---
	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
		writeStatus(w, http.StatusOK, "healthy", nil)
	})
	mux.HandleFunc("/ready", func(w http.ResponseWriter, r *http.Request) {
		checkCtx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
		defer cancel()

		failures := map[string]string{}
		if err := pg.Ping(checkCtx); err != nil {
			failures["postgres"] = err.Error()
		}
		if err := rdb.Ping(checkCtx); err != nil {
			failures["redis"] = err.Error()
		}
		if err := zeebe.HealthCheck(checkCtx); err != nil {
			failures["zeebe"] = err.Error()
		}
		if len(failures) > 0 {
			writeStatus(w, http.StatusServiceUnavailable, "not ready", failures)
			return
		}
		writeStatus(w, http.StatusOK, "ready", nil)
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.App.HealthPort),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		zapLog.Info("Health/Metrics server listening", zap.String("addr", server.Addr))
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
		w.Close()
		w.AwaitClose()
	}
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Error("Error stopping health server", zap.Error(err))
	}
	if err := zeebe.Close(); err != nil {
		zapLog.Error("Error closing Zeebe client", zap.Error(err))
	}

	zapLog.Info("Worker manager stopped gracefully")
}

func writeStatus(w http.ResponseWriter, code int, status string, failures map[string]string) {
	body := map[string]interface{}{
		"status": status,
		"time":   time.Now().Format(time.RFC3339),
	}
	if len(failures) > 0 {
		body["failures"] = failures
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(body)
}
