package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/ader1990/adpreplic/internal/clock"
	"github.com/ader1990/adpreplic/internal/cluster"
	"github.com/ader1990/adpreplic/internal/config"
	"github.com/ader1990/adpreplic/internal/logging"
	"github.com/ader1990/adpreplic/internal/metrics"
	"github.com/ader1990/adpreplic/internal/registry"
	"github.com/ader1990/adpreplic/internal/replica"
	"github.com/ader1990/adpreplic/internal/server"
	"github.com/ader1990/adpreplic/internal/storage"
	"github.com/ader1990/adpreplic/internal/store"
	"github.com/ader1990/adpreplic/internal/strategy"
	"github.com/ader1990/adpreplic/internal/transport"
	"github.com/ader1990/adpreplic/internal/util/workerpool"
)

func runServe(configPath string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	logger, err := logging.NewLogger(cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Sync()

	logger.Info("Configuration loaded",
		zap.String("dc_id", cfg.Server.DCID),
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port))

	promRegistry := prometheus.NewRegistry()
	m := metrics.NewMetrics(cfg.Server.DCID, promRegistry)

	// Storage backend
	var backend storage.Backend
	switch cfg.Storage.Backend {
	case "disk":
		backend, err = storage.NewDiskBackend(cfg.Storage.DataDir, logger)
		if err != nil {
			logger.Fatal("Failed to initialize disk backend", zap.Error(err))
		}
	default:
		backend = storage.NewMemoryBackend()
	}
	defer backend.Close()

	// Value store and replica registry
	values := store.NewValueStore(backend, logger)
	if err := values.Recover(); err != nil {
		logger.Error("Value store recovery failed", zap.Error(err))
	}
	reg := registry.NewRegistry(backend, logger)
	if err := reg.Recover(); err != nil {
		logger.Error("Registry recovery failed", zap.Error(err))
	}

	// Membership: static DC list, optionally extended by gossip discovery
	var staticPeers []config.Peer
	if cfg.Peers.DCListFile != "" {
		staticPeers, err = config.LoadDCList(cfg.Peers.DCListFile)
		if err != nil {
			logger.Fatal("Failed to load dc list", zap.Error(err))
		}
	}
	self := cluster.Peer{
		ID:   cfg.Server.DCID,
		Addr: fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
	}
	membership := cluster.NewMembership(self, staticPeers, m, logger)
	if cfg.Gossip.Enabled {
		if err := membership.StartGossip(cfg.Gossip); err != nil {
			logger.Error("Failed to start gossip discovery", zap.Error(err))
		} else {
			defer membership.Shutdown()
			logger.Info("Gossip discovery started", zap.Int("bind_port", cfg.Gossip.BindPort))
		}
	}

	// Inter-DC manager with its fan-out worker pool
	pool := workerpool.NewWorkerPool(&workerpool.Config{
		Name:   "interdc-fanout",
		Logger: logger,
	})
	defer pool.Stop()

	interDC := transport.NewManager(
		membership,
		pool,
		cfg.Peers.QueryTimeout,
		cfg.Peers.MutationTimeout,
		m,
		logger,
	)

	// Strategy engine and replica manager
	engine := strategy.NewEngine(100*time.Millisecond, m, logger)
	clk := clock.New(cfg.Server.DCID)
	manager := replica.NewManager(
		cfg.Server.DCID,
		cfg.Strategy.Params(),
		values,
		reg,
		engine,
		interDC,
		clk,
		m,
		logger,
	)
	engine.Start()
	defer engine.Stop()

	// Servers
	apiServer := server.NewAPIServer(self.Addr, manager, m, logger)

	var metricsServer *server.MetricsServer
	if cfg.Metrics.Enabled {
		metricsServer = server.NewMetricsServer(cfg.Metrics.Port, cfg.Metrics.Path, promRegistry, m, logger)
		metricsServer.Start()
		defer metricsServer.Stop()
	}

	errChan := make(chan error, 1)
	go func() {
		errChan <- apiServer.Start()
	}()

	logger.Info("Replication controller started",
		zap.String("dc_id", cfg.Server.DCID),
		zap.Int("static_peers", len(staticPeers)))

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	select {
	case sig := <-sigChan:
		logger.Info("Shutting down", zap.String("signal", sig.String()))
	case err := <-errChan:
		if err != nil {
			logger.Error("API server exited", zap.Error(err))
		}
	}

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := apiServer.Stop(ctx); err != nil {
		logger.Error("API server shutdown failed", zap.Error(err))
	}

	return nil
}
