package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"funnelboard/internal/cache"
	"funnelboard/internal/chatwoot"
	"funnelboard/internal/config"
	"funnelboard/internal/handlers"
	"funnelboard/internal/metrics"
	"funnelboard/internal/realtime"
	"funnelboard/internal/refresher"
	"funnelboard/internal/server"
	"funnelboard/internal/store"
)

// Version information
var (
	Version   = "1.0.0"
	GitCommit = "unknown"
	BuildTime = "unknown"
)

func main() {
	var configPath string
	var showVersion bool

	flag.StringVar(&configPath, "config", "config/config.yaml", "Path to configuration file")
	flag.BoolVar(&showVersion, "version", false, "Show version information")
	flag.Parse()

	logger := initLogger()
	defer logger.Sync()

	if showVersion {
		logger.Info("Funnelboard Dashboard Service",
			zap.String("version", Version),
			zap.String("git_commit", GitCommit),
			zap.String("build_time", BuildTime))
		return
	}

	logger.Info("Starting Funnelboard Dashboard Service",
		zap.String("config_path", configPath),
		zap.String("version", Version))

	cfg, err := config.Load(configPath)
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	logger.Info("Configuration loaded successfully",
		zap.String("environment", cfg.Environment),
		zap.String("log_level", cfg.Logging.Level))

	loc := time.Local
	if cfg.Dashboard.Timezone != "" {
		loc, err = time.LoadLocation(cfg.Dashboard.Timezone)
		if err != nil {
			logger.Fatal("Invalid dashboard timezone",
				zap.String("timezone", cfg.Dashboard.Timezone),
				zap.Error(err))
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := chatwoot.NewClient(cfg.Chatwoot, logger)

	var snapshotCache *cache.SnapshotCache
	if cfg.Redis.Enabled {
		snapshotCache = cache.NewSnapshotCache(cfg.Redis)
		defer snapshotCache.Close()
	}

	var archive *store.Archive
	if cfg.Archive.Enabled {
		archive, err = store.NewArchive(cfg.Database.DSN())
		if err != nil {
			logger.Fatal("Failed to open snapshot archive", zap.Error(err))
		}
	}

	var collector *metrics.Collector
	if cfg.Metrics.Enabled {
		collector = metrics.NewCollector(prometheus.DefaultRegisterer)
	}

	hub := realtime.NewHub(logger)
	go hub.Run(ctx)

	interval := time.Duration(cfg.Dashboard.RefreshIntervalSeconds) * time.Second
	r := refresher.New(client, interval, loc, cfg.Dashboard.DefaultWeek, logger, refresher.Options{
		Cache:     snapshotCache,
		Archive:   archive,
		Hub:       hub,
		Collector: collector,
	})
	if err := r.Start(ctx); err != nil {
		logger.Fatal("Failed to start refresher", zap.Error(err))
	}

	handler := handlers.NewHandler(cfg, logger, r, client, archive, hub)
	srv := server.NewServer(cfg, logger, handler)

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.Start()
	}()

	select {
	case <-ctx.Done():
		logger.Info("Shutdown signal received")
	case err := <-errCh:
		if err != nil {
			logger.Error("Server stopped unexpectedly", zap.Error(err))
		}
	}

	r.Stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("Graceful shutdown failed", zap.Error(err))
	}

	logger.Info("Funnelboard Dashboard Service stopped")
}

// initLogger initializes the application logger
func initLogger() *zap.Logger {
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}

	var logger *zap.Logger
	var err error

	if env == "production" {
		config := zap.NewProductionConfig()
		config.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
		logger, err = config.Build()
	} else {
		config := zap.NewDevelopmentConfig()
		config.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		logger, err = config.Build()
	}

	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	return logger
}
