package app

import (
	"context"

	"github.com/flowrun/flowrun/internal/config"
	"github.com/flowrun/flowrun/internal/logging"
	"github.com/flowrun/flowrun/internal/worker"
)

// newWorkers builds the worker registry from configuration. When nothing
// provides the default worker, an echoing static worker stands in so flows
// without explicit workers still run.
func newWorkers(ctx context.Context, cfg *config.Config) *worker.Registry {
	workers := worker.NewFromConfig(ctx, cfg)

	name := cfg.Engine.DefaultWorker
	if name == "" {
		name = config.DefaultWorkerName
	}
	if !workers.Has(name) {
		logging.Warn("No provider configured for the default worker, falling back to echo", "worker", name)
		workers.Register(worker.NewStatic(name, nil))
	}
	logging.Debug("Workers registered", "workers", workers.Names())
	return workers
}
