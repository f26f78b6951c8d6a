package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	apihttp "visionstream/internal/api/http"
	"visionstream/internal/app"
	"visionstream/internal/gpu"
	"visionstream/internal/inference"
	"visionstream/internal/ingest"
	"visionstream/internal/metrics"
	"visionstream/internal/orchestrator"
	"visionstream/internal/queue/redisq"
	mongorepo "visionstream/internal/repository/mongo"
	"visionstream/internal/telemetry"
	"visionstream/internal/worker"

	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
	"go.opentelemetry.io/contrib/instrumentation/go.mongodb.org/mongo-driver/mongo/otelmongo"
)

func main() {
	cfg := app.LoadConfig()
	logger := newLogger(cfg.LogLevel, cfg.LogFormat)
	slog.SetDefault(logger)
	metrics.Register(prometheus.DefaultRegisterer)

	shutdownTracer, err := telemetry.Init(context.Background(), "visionstream")
	if err != nil {
		logger.Warn("otel init failed", slog.String("error", err.Error()))
	}
	defer func() {
		if shutdownTracer != nil {
			_ = shutdownTracer(context.Background())
		}
	}()

	logger.Info("configuration loaded",
		slog.String("service", "visionstream"),
		slog.String("httpAddr", cfg.HTTPAddr),
		slog.String("logLevel", cfg.LogLevel),
		slog.String("logFormat", cfg.LogFormat),
		slog.String("detectorUrl", cfg.DetectorURL),
		slog.String("uploadDir", cfg.UploadDir),
		slog.String("chunkDir", cfg.ChunkDir),
		slog.String("clipDir", cfg.ClipDir),
	)

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ctx, cancel := context.WithTimeout(rootCtx, 10*time.Second)
	defer cancel()

	mongoMonitor := otelmongo.NewMonitor()
	mongoClient, err := mongorepo.Connect(ctx, cfg.MongoURI, options.Client().SetMonitor(mongoMonitor))
	if err != nil {
		logger.Error("mongo connect failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := mongoClient.Ping(ctx, readpref.Primary()); err != nil {
		logger.Error("mongo ping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	db := mongoClient.Database(cfg.MongoDatabase)

	cameras := mongorepo.NewCameraRepository(db)
	rules := mongorepo.NewRuleRepository(db)
	events := mongorepo.NewEventRepository(db)
	alerts := mongorepo.NewAlertRepository(db)
	for name, ensure := range map[string]func(context.Context) error{
		"cameras": cameras.EnsureIndexes,
		"rules":   rules.EnsureIndexes,
		"events":  events.EnsureIndexes,
		"alerts":  alerts.EnsureIndexes,
	} {
		if err := ensure(ctx); err != nil {
			logger.Warn("mongo ensure indexes failed", slog.String("collection", name), slog.String("error", err.Error()))
		}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		logger.Error("redis ping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	jobQueue := redisq.New(rdb)

	gpuRegistry, err := gpu.NewRegistry(ctx, gpu.NewSMIProber(cfg.NvidiaSMIPath))
	if err != nil {
		logger.Error("gpu registry init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}

	opener := ingest.NewOpener(cfg.FFMPEGPath, cfg.FFProbePath)
	prober := ingest.NewProber(cfg.FFProbePath)
	chunker := ingest.NewChunker(cfg.FFMPEGPath, cfg.FFProbePath, cfg.ChunkDir, cfg.ChunkDurationSec)

	detector := inference.NewHTTPDetector(cfg.DetectorURL, cfg.ConfidenceThreshold, cfg.DetectorTimeout)
	if err := detector.Ready(ctx); err != nil {
		logger.Warn("detector not ready at startup", slog.String("url", cfg.DetectorURL), slog.String("error", err.Error()))
	}

	orch := orchestrator.New(jobQueue, gpuRegistry, cfg.QueueHighWatermark, cfg.CancelGrace, logger)

	handler := apihttp.NewServer(orch,
		apihttp.WithLogger(logger),
		apihttp.WithCameras(cameras),
		apihttp.WithRules(rules),
		apihttp.WithEvents(events),
		apihttp.WithAlerts(alerts),
		apihttp.WithChunker(chunker),
		apihttp.WithMediaProbe(prober),
		apihttp.WithUploadDir(cfg.UploadDir),
		apihttp.WithMaxUploadBytes(cfg.MaxUploadBytes),
		apihttp.WithAuthSecret(cfg.JWTSecret),
		apihttp.WithRateLimit(cfg.RateLimitRPS, cfg.RateLimitBurst),
		apihttp.WithAllowedOrigins(cfg.CORSAllowedOrigins),
	)

	ruleEngine := worker.NewRuleEngine(cfg.DebounceInterval)
	clipExtractor := worker.NewClipExtractor(cfg.FFMPEGPath, cfg.ClipDir, cfg.ClipPaddingSec)
	emitter := worker.NewEmitter(events, alerts, clipExtractor, handler.BroadcastEvent, logger)
	processor := worker.NewProcessor(opener, detector, cameras, rules, ruleEngine, emitter, cfg.DefaultFPS, cfg.BurstFPS, logger)

	dispatcher := orchestrator.NewDispatcher(orch, jobQueue, gpuRegistry, processor, cfg.DequeueTimeout, cfg.DispatchBackoff, logger)
	go dispatcher.Run(rootCtx)

	go updateQueueMetrics(rootCtx, jobQueue.Length, gpuRegistry, handler, cfg.GPUPollInterval, logger)

	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       0,
		WriteTimeout:      0,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	logger.Info("server started", slog.String("addr", cfg.HTTPAddr))

	select {
	case <-rootCtx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server error", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	handler.Close()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown error", slog.String("error", err.Error()))
	}
	if err := mongoClient.Disconnect(context.Background()); err != nil {
		logger.Warn("mongo disconnect error", slog.String("error", err.Error()))
	}

	logger.Info("server stopped")
}

// updateQueueMetrics keeps the queue and GPU gauges current and pushes stats
// to WebSocket clients.
func updateQueueMetrics(
	ctx context.Context,
	queueLength func(context.Context) (int64, error),
	registry *gpu.Registry,
	handler *apihttp.Server,
	pollInterval time.Duration,
	logger *slog.Logger,
) {
	if pollInterval <= 0 {
		pollInterval = 10 * time.Second
	}
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if length, err := queueLength(ctx); err == nil {
				metrics.QueueLength.Set(float64(length))
			}
			if err := registry.Refresh(ctx); err != nil {
				logger.Debug("gpu refresh failed", slog.String("error", err.Error()))
			}
			slots := registry.Snapshot(ctx)
			available := 0
			for _, slot := range slots {
				if slot.Allocatable() {
					available++
				}
				metrics.GPUUtilization.WithLabelValues(strconv.Itoa(slot.ID)).Set(slot.Utilization)
			}
			metrics.GPUsAvailable.Set(float64(available))
			handler.BroadcastStats(ctx)
		}
	}
}

func newLogger(levelRaw, formatRaw string) *slog.Logger {
	level := parseLogLevel(levelRaw)
	options := &slog.HandlerOptions{Level: level}
	format := strings.ToLower(strings.TrimSpace(formatRaw))
	if format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, options))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, options))
}

func parseLogLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
