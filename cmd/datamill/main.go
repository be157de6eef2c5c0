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
	"time"

	"gocloud.dev/blob"
	_ "gocloud.dev/blob/azureblob"
	_ "gocloud.dev/blob/fileblob"
	_ "gocloud.dev/blob/gcsblob"
	_ "gocloud.dev/blob/s3blob"

	app "github.com/datamill-io/datamill"
	"github.com/datamill-io/datamill/internal/agent"
	"github.com/datamill-io/datamill/internal/config"
	"github.com/datamill-io/datamill/internal/engine"
	"github.com/datamill-io/datamill/internal/mcp"
	"github.com/datamill-io/datamill/internal/server"
	"github.com/datamill-io/datamill/internal/steps"
	"github.com/datamill-io/datamill/internal/store"
	"github.com/datamill-io/datamill/pkg/api"
	"github.com/datamill-io/datamill/pkg/log"
)

type datamill struct {
	cfg        *config.Config
	stores     *store.Stores
	bucket     *blob.Bucket
	engine     *engine.Engine
	apiServer  *server.Server
	httpServer *http.Server
	mcpServer  *mcp.Server
	quit       chan os.Signal
}

var (
	ErrConnectRedis = errors.New("failed to connect to redis")
	ErrOpenBucket   = errors.New("failed to open packet bucket")
)

var logLevels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

func main() {
	cfg := config.NewDefaultConfig()
	if err := cfg.LoadFromEnv(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}
	if err := cfg.Validate(); err != nil {
		slog.Error("Invalid configuration", log.Error(err))
		os.Exit(1)
	}

	s := &datamill{
		cfg:  cfg,
		quit: make(chan os.Signal, 1),
	}
	s.setupLogging()

	if err := s.run(); err != nil {
		slog.Error("Failed to start application", log.Error(err))
		os.Exit(1)
	}
}

func (s *datamill) run() error {
	if err := s.initializeStores(); err != nil {
		return err
	}

	if err := s.initializeEngine(); err != nil {
		return err
	}
	s.startServers()

	signal.Notify(s.quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(s.quit)
	<-s.quit

	s.shutdown()
	return nil
}

func (s *datamill) setupLogging() {
	level, ok := logLevels[s.cfg.LogLevel]
	if !ok {
		level = slog.LevelInfo
	}

	env := os.Getenv("ENV")
	logger := log.NewWithLevel(app.Name, env, app.Version, level)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(level)

	slog.Info("Datamill starting",
		slog.String("log_level", s.cfg.LogLevel))

	slog.Info("Configuration loaded",
		slog.String("redis_addr", s.cfg.Redis.Addr),
		slog.Int("redis_db", s.cfg.Redis.DB),
		slog.String("redis_prefix", s.cfg.Redis.Prefix),
		slog.String("api_host", s.cfg.APIHost),
		slog.Int("api_port", s.cfg.APIPort),
		slog.Int("mcp_port", s.cfg.MCPPort),
		slog.Int("workers", s.cfg.Workers))
}

func (s *datamill) initializeStores() error {
	client := store.NewClient(s.cfg.Redis)

	ctx, cancel := context.WithTimeout(
		context.Background(), 5*time.Second,
	)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("%w: %w", ErrConnectRedis, err)
	}

	if s.cfg.PacketBucketURL != "" {
		bucket, err := blob.OpenBucket(ctx, s.cfg.PacketBucketURL)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrOpenBucket, err)
		}
		s.bucket = bucket
	}

	s.stores = store.NewStores(client, s.bucket, s.cfg)
	return nil
}

func (s *datamill) initializeEngine() error {
	// Deployments register concrete source readers, model providers,
	// and delivery targets here; the engine itself ships with none
	readers := map[api.SourceType]steps.SourceReader{}
	providers := map[string]agent.Provider{}
	catalog := map[string]*api.ToolMetadata{}
	targets := map[string]steps.Target{}

	reg := engine.NewRegistry()
	if err := steps.RegisterAll(reg,
		steps.NewFetchStep(s.stores.Dedup, readers),
		steps.NewAIStep(s.cfg, providers, catalog),
		steps.NewPublishStep(targets),
		steps.NewUpdateStep(targets),
	); err != nil {
		return err
	}

	s.engine = engine.New(s.cfg, s.stores, reg)
	s.engine.Start()
	return nil
}

func (s *datamill) startServers() {
	s.apiServer = server.NewServer(s.engine)
	router := s.apiServer.SetupRoutes()

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.APIPort),
		Handler: router,
	}

	go func() {
		slog.Info("HTTP server starting",
			slog.String("addr", s.httpServer.Addr))
		err := s.httpServer.ListenAndServe()
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("HTTP server error", log.Error(err))
		}
	}()

	if s.cfg.MCPPort > 0 {
		s.mcpServer = mcp.NewServer(s.engine)
		addr := fmt.Sprintf("%s:%d", s.cfg.APIHost, s.cfg.MCPPort)
		go func() {
			slog.Info("MCP server starting", slog.String("addr", addr))
			if err := s.mcpServer.Start(addr); err != nil &&
				!errors.Is(err, http.ErrServerClosed) {
				slog.Error("MCP server error", log.Error(err))
			}
		}()
	}
}

func (s *datamill) shutdown() {
	slog.Info("Shutting down")

	ctx, cancel := context.WithTimeout(
		context.Background(), s.cfg.ShutdownTimeout,
	)
	defer cancel()

	if err := s.httpServer.Shutdown(ctx); err != nil {
		slog.Error("Shutdown failed", log.Error(err))
	}
	s.apiServer.CloseWebSockets()

	if s.mcpServer != nil {
		if err := s.mcpServer.Shutdown(ctx); err != nil {
			slog.Error("MCP shutdown failed", log.Error(err))
		}
	}

	if err := s.engine.Stop(); err != nil {
		slog.Error("Engine shutdown failed", log.Error(err))
	}

	if s.bucket != nil {
		_ = s.bucket.Close()
	}

	slog.Info("Server exited")
}
