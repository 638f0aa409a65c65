// Package main provides the Temporal worker for epoch lifecycle workflows.
//
// The worker hosts the lifecycle, slice, and review workflows together with
// their activities, and binds the process-wide audit trail before polling
// begins.
//
// Usage:
//
//	EPOCHD_TEMPORAL_HOST_PORT=localhost:7233 \
//	EPOCHD_AUDIT_BACKEND=sqlite EPOCHD_AUDIT_PATH=audit.db \
//	./epochd --config epochd.yaml
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/worker"
	"go.uber.org/zap"

	"github.com/fyrsmithlabs/epochd/internal/audit"
	"github.com/fyrsmithlabs/epochd/internal/config"
	"github.com/fyrsmithlabs/epochd/internal/constraint"
	"github.com/fyrsmithlabs/epochd/internal/logging"
	"github.com/fyrsmithlabs/epochd/internal/workflows/lifecycle"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config file")
	flag.Parse()

	if err := run(*configPath); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(configPath string) error {
	// Root context with signal handling
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	logger, err := logging.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		return fmt.Errorf("initializing logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("epoch lifecycle worker starting",
		zap.String("temporal_host", cfg.Temporal.HostPort),
		zap.String("namespace", cfg.Temporal.Namespace),
		zap.String("task_queue", cfg.Temporal.TaskQueue),
		zap.String("audit_backend", cfg.Audit.Backend),
	)

	// The audit trail must be bound before any activity can touch it.
	trail, closeTrail, err := openTrail(cfg)
	if err != nil {
		return fmt.Errorf("opening audit trail: %w", err)
	}
	defer closeTrail()

	if err := audit.Bind(trail); err != nil {
		return fmt.Errorf("binding audit trail: %w", err)
	}

	c, err := client.Dial(client.Options{
		HostPort:  cfg.Temporal.HostPort,
		Namespace: cfg.Temporal.Namespace,
		Logger:    logging.NewTemporalAdapter(logger),
	})
	if err != nil {
		return fmt.Errorf("unable to create Temporal client: %w", err)
	}
	defer c.Close()

	logger.Info("temporal client connected", zap.String("host", cfg.Temporal.HostPort))

	w := worker.New(c, cfg.Temporal.TaskQueue, worker.Options{})

	w.RegisterWorkflow(lifecycle.EpochLifecycleWorkflow)
	w.RegisterWorkflow(lifecycle.SliceWorkflow)
	w.RegisterWorkflow(lifecycle.ReviewWorkflow)

	acts := lifecycle.NewActivities(constraint.NewDefaultChecker(), audit.NewTransitionLog(trail))
	w.RegisterActivity(acts)

	logger.Info("worker configured", zap.String("task_queue", cfg.Temporal.TaskQueue))

	// Start worker in background
	workerErrors := make(chan error, 1)
	go func() {
		workerErrors <- w.Run(worker.InterruptCh())
	}()

	select {
	case err := <-workerErrors:
		if err != nil {
			return fmt.Errorf("worker error: %w", err)
		}
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	}

	logger.Info("worker stopped gracefully")
	return nil
}

// openTrail builds the configured audit backend. The returned close func is
// a no-op for the in-memory backend.
func openTrail(cfg *config.Config) (audit.Trail, func(), error) {
	switch cfg.Audit.Backend {
	case "sqlite":
		trail, err := audit.OpenSQLiteTrail(cfg.Audit.Path)
		if err != nil {
			return nil, nil, err
		}
		return trail, func() { _ = trail.Close() }, nil
	default:
		return audit.NewMemoryTrail(), func() {}, nil
	}
}
