// cmd/pipeline-server/main.go
package main

import (
	"context"
	"fmt"
	"net/http"
	_ "net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"pagegen-pipeline/internal/adapters/extract"
	"pagegen-pipeline/internal/adapters/layoutstore"
	"pagegen-pipeline/internal/adapters/transcribe"
	"pagegen-pipeline/internal/adapters/visualmap"
	"pagegen-pipeline/internal/catalog"
	"pagegen-pipeline/internal/common/config"
	"pagegen-pipeline/internal/common/database"
	"pagegen-pipeline/internal/common/invoker"
	"pagegen-pipeline/internal/common/logger"
	"pagegen-pipeline/internal/common/observability"
	"pagegen-pipeline/internal/pipeline"
	"pagegen-pipeline/internal/session"
	"pagegen-pipeline/pkg/registry"
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

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "config load failed: %v\n", err)
		os.Exit(1)
	}

	zapLog := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	defer zapLog.Sync()
	log := logger.NewZapAdapter(zapLog)

	zapLog.Info("Starting pipeline server...",
		zap.String("app", cfg.App.Name),
		zap.String("environment", cfg.App.Environment),
	)

	obs := observability.New(cfg.App.Name)
	defer obs.Shutdown()

	ctx := context.Background()

	// --- Init Redis (session store) with retry ---
	var redisClient *database.RedisClient
	err = retryWithBackoff(func() error {
		var err error
		redisClient, err = database.NewRedis(cfg.Database.Redis)
		if err != nil {
			return err
		}
		return redisClient.Ping(ctx)
	}, 10, 2*time.Second, zapLog, "Redis connection")

	var sessionStore session.Store
	if err != nil {
		// Sessions degrade to process-local memory; generation still works.
		zapLog.Warn("redis unavailable, using in-memory session store", zap.Error(err))
		sessionStore = session.NewMemoryStore()
	} else {
		zapLog.Info("Redis connected successfully")
		sessionStore = session.NewRedisStore(redisClient)
		defer redisClient.Close()
	}

	sessions := session.NewContext(sessionStore, log)
	inv := invoker.New(invoker.Config{ClientID: cfg.App.ClientID}, sessions, log)

	catalogCache := catalog.New(
		time.Duration(cfg.Catalog.TTL)*time.Second,
		time.Duration(cfg.Catalog.CleanupInterval)*time.Second,
	)

	// Warm the catalog so the first generation never waits on a live fetch.
	componentReg, err := registry.LoadRegistry("configs/component-registry.json")
	if err != nil {
		zapLog.Info("no component registry file, using built-in defaults", zap.Error(err))
		componentReg = registry.Default()
	}
	catalogCache.Set(componentReg.CatalogEntries())

	transcriber := transcribe.NewAdapter(transcribe.ConfigFrom(cfg.Services.Transcription, cfg.Pipeline), inv, log)
	extractor := extract.NewAdapter(extract.ConfigFrom(cfg.Services.EntityExtraction), inv, log)
	mapper := visualmap.NewAdapter(visualmap.ConfigFrom(cfg.Services.VisualMapping), inv, catalogCache, log)
	store := layoutstore.NewAdapter(layoutstore.ConfigFrom(cfg.Services.LayoutStore), inv, log)

	// --- Progress event bus ---
	bus := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 64}, watermill.NopLogger{})
	defer bus.Close()
	busReporter := pipeline.NewBusReporter(bus, log)

	busCtx, busCancel := context.WithCancel(ctx)
	defer busCancel()
	startProgressLogger(busCtx, busReporter, log)

	orch := pipeline.NewOrchestrator(pipeline.Deps{
		Sessions:        sessions,
		Transcriber:     transcriber,
		Extractor:       extractor,
		Mapper:          mapper,
		Store:           store,
		Reporter:        busReporter,
		Obs:             obs,
		Logger:          log,
		DefaultTemplate: cfg.Pipeline.DefaultTemplate,
	})

	api := &apiServer{
		orch:   orch,
		store:  store,
		cfg:    cfg,
		logger: log,
		healthChecks: map[string]func(context.Context) bool{
			transcribe.ServiceName:  transcriber.HealthCheck,
			extract.ServiceName:     extractor.HealthCheck,
			visualmap.ServiceName:   mapper.HealthCheck,
			layoutstore.ServiceName: store.HealthCheck,
		},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/api/v1/generate", api.handleGenerate)
	mux.HandleFunc("/api/v1/layouts/", api.handleGetLayout)
	mux.HandleFunc("/healthz", api.handleHealth)
	mux.Handle("/metrics", promhttp.Handler())
	mux.Handle("/debug/pprof/", http.DefaultServeMux)

	server := &http.Server{
		Addr:         cfg.Server.Address,
		Handler:      mux,
		ReadTimeout:  config.GetDuration(cfg.Server.ReadTimeout),
		WriteTimeout: config.GetDuration(cfg.Server.WriteTimeout),
	}

	go func() {
		zapLog.Info("HTTP server listening", zap.String("address", cfg.Server.Address))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLog.Fatal("http server failed", zap.Error(err))
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh
	zapLog.Info("Shutdown signal received, draining...")

	shutdownCtx, cancel := context.WithTimeout(ctx, config.GetDuration(cfg.Server.ShutdownTimeout))
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zapLog.Warn("shutdown incomplete", zap.Error(err))
	}

	zapLog.Info("Pipeline server stopped gracefully")
}

// startProgressLogger consumes the progress topic and mirrors every stage
// transition into the structured log.
func startProgressLogger(ctx context.Context, reporter *pipeline.BusReporter, log logger.Logger) {
	messages, err := reporter.Subscribe(ctx)
	if err != nil {
		log.Warn("progress subscription failed", map[string]interface{}{"error": err.Error()})
		return
	}
	go func() {
		for msg := range messages {
			log.Debug("progress event", map[string]interface{}{
				"sessionId": msg.Metadata.Get("sessionId"),
				"payload":   string(msg.Payload),
			})
			msg.Ack()
		}
	}()
}
