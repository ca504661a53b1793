package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/CosmoTheDev/pipeline-guardian/internal/dedup"
)

// cleanupTimeout bounds one retention pass.
const cleanupTimeout = 2 * time.Minute

// Scheduler runs periodic maintenance with robfig/cron: sweeping expired
// dedup entries and deleting history older than the retention window.
type Scheduler struct {
	cron      *cron.Cron
	cache     *dedup.Cache
	store     Store
	retention time.Duration
	broadcast func(SSEEvent)
	logger    *slog.Logger
	now       func() time.Time
}

func newScheduler(cache *dedup.Cache, store Store, retention time.Duration, broadcast func(SSEEvent), logger *slog.Logger) *Scheduler {
	return &Scheduler{
		cron:      cron.New(),
		cache:     cache,
		store:     store,
		retention: retention,
		broadcast: broadcast,
		logger:    logger,
		now:       time.Now,
	}
}

// Start registers the sweep and cleanup jobs and starts the cron runner.
// An empty expression disables that job.
func (s *Scheduler) Start(sweepExpr, cleanupExpr string) error {
	if sweepExpr != "" && s.cache != nil {
		if err := s.register("sweep", sweepExpr, func() { s.sweep() }); err != nil {
			return err
		}
	}
	if cleanupExpr != "" && s.store != nil && s.retention > 0 {
		if err := s.register("cleanup", cleanupExpr, func() {
			ctx, cancel := context.WithTimeout(context.Background(), cleanupTimeout)
			defer cancel()
			_ = s.cleanup(ctx)
		}); err != nil {
			return err
		}
	}
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.cron.Entries()))
	return nil
}

// Stop halts the cron runner and waits for running jobs.
func (s *Scheduler) Stop() { <-s.cron.Stop().Done() }

func (s *Scheduler) register(name, expr string, fn func()) error {
	if err := validate(expr); err != nil {
		return fmt.Errorf("invalid %s schedule %q: %w", name, expr, err)
	}
	if _, err := s.cron.AddFunc(expr, fn); err != nil {
		return fmt.Errorf("registering %s schedule: %w", name, err)
	}
	return nil
}

// validate checks that expr is parseable by robfig/cron without adding it
// permanently to any runner.
func validate(expr string) error {
	tmp := cron.New()
	id, err := tmp.AddFunc(expr, func() {})
	if err != nil {
		return err
	}
	tmp.Remove(id)
	return nil
}

// sweep evicts expired dedup entries.
func (s *Scheduler) sweep() int {
	removed := s.cache.Sweep()
	if removed > 0 {
		s.logger.Debug("dedup cache swept", "removed", removed)
	}
	s.broadcast(SSEEvent{Type: EventCacheSwept, Payload: map[string]any{
		"removed": removed,
		"cache":   s.cache.Stats(),
	}})
	return removed
}

// cleanup deletes history older than the retention window.
func (s *Scheduler) cleanup(ctx context.Context) error {
	cutoff := s.now().Add(-s.retention)
	if err := s.store.Cleanup(ctx, cutoff); err != nil {
		s.logger.Error("history cleanup failed", "cutoff", cutoff, "error", err)
		s.broadcast(SSEEvent{Type: EventMaintenanceError, Payload: map[string]string{
			"job":   "cleanup",
			"error": err.Error(),
		}})
		return err
	}
	s.logger.Info("history cleaned", "cutoff", cutoff.UTC().Format(time.RFC3339))
	s.broadcast(SSEEvent{Type: EventHistoryCleaned, Payload: map[string]string{
		"cutoff": cutoff.UTC().Format(time.RFC3339),
	}})
	return nil
}
