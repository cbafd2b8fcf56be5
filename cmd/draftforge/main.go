package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/draftforge/draftforge"
	"github.com/draftforge/draftforge/internal/artifact"
	"github.com/draftforge/draftforge/internal/client"
	"github.com/draftforge/draftforge/internal/config"
	"github.com/draftforge/draftforge/internal/server"
	"github.com/draftforge/draftforge/internal/wizard"
	"github.com/draftforge/draftforge/pkg/log"
)

type cockpit struct {
	cfg         *config.Config
	artifacts   *artifact.BlobStore
	engine      client.Client
	store       *wizard.Store
	catalog     wizard.Catalog
	notifier    *wizard.Notifier
	coordinator *wizard.Coordinator
	srv         *server.Server
	httpServer  *http.Server
}

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func main() {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Failed to load configuration",
			log.Error(err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration",
			log.Error(err))
		os.Exit(1)
	}

	c := &cockpit{cfg: cfg}
	if err := c.run(); err != nil {
		slog.Error("Failed to start application",
			log.Error(err))
		os.Exit(1)
	}
}

func (c *cockpit) run() error {
	c.setupLogging()

	ctx := context.Background()
	if err := c.initializeStores(ctx); err != nil {
		return err
	}

	c.initializeCoordinator(ctx)
	c.startServer()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	c.shutdown()
	return nil
}

func (c *cockpit) setupLogging() {
	level, ok := logLevels[c.cfg.LogLevel]
	if !ok {
		level = slog.LevelInfo
	}
	env := os.Getenv("ENVIRONMENT")
	if env == "" {
		env = "development"
	}
	slog.SetDefault(log.NewWithLevel(
		draftforge.Name, env, draftforge.Version, level,
	))

	slog.Info("Drafting coordinator starting")

	slog.Info("Configuration loaded",
		slog.String("engine_url", c.cfg.EngineURL),
		slog.String("bucket_url", c.cfg.BucketURL),
		slog.String("project_id", c.cfg.ProjectID),
		slog.String("api_host", c.cfg.APIHost),
		slog.Int("api_port", c.cfg.APIPort))
}

func (c *cockpit) initializeStores(ctx context.Context) error {
	artifacts, err := artifact.NewBlobStore(
		ctx, c.cfg.BucketURL, c.cfg.ProjectID,
	)
	if err != nil {
		return fmt.Errorf("failed to open artifact bucket: %w", err)
	}
	c.artifacts = artifacts

	catalog, err := wizard.LoadCatalog(ctx, artifacts)
	if err != nil {
		_ = artifacts.Close()
		return fmt.Errorf("failed to load chapter catalog: %w", err)
	}
	c.catalog = catalog

	c.store = wizard.NewStore(
		artifacts, c.cfg.PrimaryRoot, c.cfg.LegacyRoot, nil,
	)
	return nil
}

func (c *cockpit) initializeCoordinator(ctx context.Context) {
	c.engine = client.NewHTTPClient(c.cfg.EngineURL, c.cfg.ClientTimeout)
	c.notifier = wizard.NewNotifier()

	c.coordinator = wizard.NewCoordinator(
		c.store, c.engine, c.catalog, c.notifier,
		wizard.WithPollInterval(c.cfg.PollInterval),
		wizard.WithContentCacheSize(c.cfg.ContentCacheSize),
	)

	if first, ok := c.catalog.First(); ok {
		if err := c.coordinator.Open(ctx, first); err != nil {
			slog.Warn("Failed to open first chapter",
				log.Chapter(first),
				log.Error(err))
		}
	}
}

func (c *cockpit) startServer() {
	c.srv = server.NewServer(
		c.coordinator, c.store, c.catalog, c.notifier,
		draftforge.Name, draftforge.Version,
	)
	router := c.srv.SetupRoutes()

	c.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", c.cfg.APIHost, c.cfg.APIPort),
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", c.httpServer.Addr))
		if err := c.httpServer.ListenAndServe(); err != nil &&
			!errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error",
				log.Error(err))
		}
	}()
}

func (c *cockpit) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), c.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := c.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed",
			log.Error(err))
	}

	c.srv.CloseWebSockets()
	c.coordinator.Close()
	c.notifier.Close()

	if err := c.artifacts.Close(); err != nil {
		slog.Error("Artifact bucket close failed",
			log.Error(err))
	}

	slog.Info("Server exited")
}
