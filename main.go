package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"cardioserve/config"
	"cardioserve/db"
	chttp "cardioserve/http"
	"cardioserve/logging"
	"cardioserve/ml"
	"cardioserve/monitoring"
	"cardioserve/serving"
	"go.uber.org/zap"
)

func main() {
	configPath := flag.String("config", "config.yaml", "path to the YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// 1. Load config
	cfg, err := loadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.New(logging.Options{
		Level:      cfg.Log.Level,
		File:       cfg.Log.File,
		MaxSizeMB:  cfg.Log.MaxSizeMB,
		MaxBackups: cfg.Log.MaxBackups,
		MaxAgeDays: cfg.Log.MaxAgeDays,
	})
	if err != nil {
		return err
	}
	defer logger.Sync()

	// 2. Open the prediction store
	store, err := db.Open(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()
	logger.Info("database initialized", zap.String("path", cfg.Database.Path))

	// 3. Load artifacts according to the startup policy
	loader := ml.NewArtifactStore(ml.StoreConfig{
		ModelPath:    cfg.ML.ModelPath,
		ModelType:    cfg.ML.ModelType,
		DatasetPath:  cfg.ML.DatasetPath,
		TargetColumn: cfg.ML.TargetColumn,
	})
	service, err := serving.NewService(loader, store, logger, serving.Options{
		Lazy:      cfg.ML.LazyLoad,
		CacheSize: cfg.Cache.TransformCacheSize,
	})
	if err != nil {
		return err
	}
	if !cfg.ML.LazyLoad {
		if err := service.Init(); err != nil {
			if cfg.ML.RequireArtifacts {
				return fmt.Errorf("failed to load artifacts: %w", err)
			}
			logger.Warn("starting without artifacts, predictions will be unavailable", zap.Error(err))
		}
	}

	if cfg.ML.WatchArtifacts {
		watcher, err := monitoring.NewArtifactWatcher(logger, nil, cfg.ML.ModelPath, cfg.ML.DatasetPath)
		if err != nil {
			logger.Warn("artifact watcher disabled", zap.Error(err))
		} else {
			watcher.Start()
			defer watcher.Close()
		}
	}

	handlers := &chttp.Handlers{
		Service:      service,
		History:      store,
		Metrics:      monitoring.NewMetricsCollector(),
		Logger:       logger,
		RequireWrite: cfg.RequireWrite(),
	}
	if cfg.Feed.Enabled {
		feed := monitoring.NewPredictionFeed(logger, cfg.Http.AllowedOrigins)
		go feed.Run()
		defer feed.Stop()
		handlers.Feed = feed
	}

	// 4. Start HTTP server
	server := chttp.NewServer(chttp.ServerConfig{
		Port:           cfg.Http.Port,
		Timeout:        cfg.Http.Timeout,
		AllowedOrigins: cfg.Http.AllowedOrigins,
		MaxBodyBytes:   cfg.Http.MaxBodyBytes,
	}, handlers, logger)

	serverErr := make(chan error, 1)
	go func() {
		serverErr <- server.Start()
	}()

	// 5. Handle graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	select {
	case err := <-serverErr:
		return err
	case sig := <-quit:
		logger.Info("shutting down", zap.String("signal", sig.String()))
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := server.Stop(ctx); err != nil {
		logger.Error("server forced to shutdown", zap.Error(err))
	}

	logger.Info("exiting")
	return nil
}

// loadConfig reads path, falling back to defaults when the file does not
// exist.
func loadConfig(path string) (*config.Config, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return config.Default(), nil
	}
	return config.Load(path)
}
