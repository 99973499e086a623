// Package janitor periodically reclaims stale artifacts and job records.
// Sweeps are best effort: individual failures are logged and skipped, never
// surfaced to request traffic.
package janitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/filealchemy/converter-service/internal/artifact"
	"github.com/filealchemy/converter-service/internal/job"
)

// Config holds janitor configuration
type Config struct {
	Logger    *slog.Logger
	Registry  *job.Registry
	Store     *artifact.Store
	Interval  time.Duration
	Retention time.Duration
}

// Janitor evicts anything older than the retention window on a fixed interval
type Janitor struct {
	logger    *slog.Logger
	registry  *job.Registry
	store     *artifact.Store
	interval  time.Duration
	retention time.Duration
	stopChan  chan struct{}
	wg        sync.WaitGroup
}

// New creates a janitor; call Start to begin sweeping
func New(cfg *Config) *Janitor {
	return &Janitor{
		logger:    cfg.Logger,
		registry:  cfg.Registry,
		store:     cfg.Store,
		interval:  cfg.Interval,
		retention: cfg.Retention,
		stopChan:  make(chan struct{}),
	}
}

// Start runs the sweep loop on a background goroutine
func (j *Janitor) Start(ctx context.Context) {
	j.logger.Info("Starting janitor",
		slog.Duration("interval", j.interval),
		slog.Duration("retention", j.retention),
	)

	j.wg.Add(1)
	go func() {
		defer j.wg.Done()

		ticker := time.NewTicker(j.interval)
		defer ticker.Stop()

		for {
			select {
			case <-j.stopChan:
				return
			case <-ctx.Done():
				return
			case <-ticker.C:
				j.Sweep()
			}
		}
	}()
}

// Stop halts the sweep loop
func (j *Janitor) Stop() {
	close(j.stopChan)
	j.wg.Wait()
}

// Sweep evicts expired artifacts in both staging areas and expired job
// records in one pass
func (j *Janitor) Sweep() {
	uploads := j.store.EvictOlderThan(artifact.CategoryUpload, j.retention)
	converted := j.store.EvictOlderThan(artifact.CategoryConverted, j.retention)
	jobs := j.registry.EvictOlderThan(j.retention)

	if uploads+converted+jobs > 0 {
		j.logger.Info("Janitor sweep finished",
			slog.Int("uploads_removed", uploads),
			slog.Int("converted_removed", converted),
			slog.Int("jobs_removed", jobs),
		)
	}
}
