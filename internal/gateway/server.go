// Package gateway is the long-running webhook receiver. It accepts pipeline
// events from GitLab and GitHub, exposes a small JSON API over the analyzer
// and risk predictor, streams results over SSE and runs cron maintenance.
package gateway

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/CosmoTheDev/pipeline-guardian/internal/analyzer"
	"github.com/CosmoTheDev/pipeline-guardian/internal/config"
	"github.com/CosmoTheDev/pipeline-guardian/internal/dedup"
	"github.com/CosmoTheDev/pipeline-guardian/internal/guardian"
	"github.com/CosmoTheDev/pipeline-guardian/internal/logging"
	"github.com/CosmoTheDev/pipeline-guardian/internal/remediation"
	"github.com/CosmoTheDev/pipeline-guardian/models"
)

const (
	defaultPort           = 8080
	defaultProcessTimeout = 5 * time.Minute
)

// Pipelines is the processing surface the gateway drives.
// *guardian.Processor implements it.
type Pipelines interface {
	HandlePipelineEvent(ctx context.Context, ev guardian.PipelineEvent) guardian.Summary
	AssessRisk(ctx context.Context, projectID, ref, sha string, at time.Time) (models.RiskAssessment, error)
	Patterns(ctx context.Context, projectID string) (models.FailurePatterns, error)
}

// Store is the history surface used for stats and retention.
// *history.Store implements it.
type Store interface {
	Stats(ctx context.Context, projectID string) (*models.DashboardStats, error)
	Cleanup(ctx context.Context, cutoff time.Time) error
}

// Deps are the collaborators a Gateway serves. Store may be nil.
type Deps struct {
	Processor  Pipelines
	Classifier *analyzer.Classifier
	Cache      *dedup.Cache
	Store      Store
	// Provider is the source-control host events must come from.
	Provider string
	// OracleConfigured is reported by GET /health.
	OracleConfigured bool
}

// Gateway combines:
//   - the webhook endpoints feeding the pipeline processor
//   - a cron Scheduler for cache sweeps and history retention
//   - a REST + SSE HTTP server
type Gateway struct {
	cfg         *config.Config
	deps        Deps
	planner     *remediation.Planner
	scheduler   *Scheduler
	broadcaster *Broadcaster
	logger      *slog.Logger
	startedAt   time.Time
	now         func() time.Time
}

// New creates a Gateway. Call Start() to begin serving.
func New(cfg *config.Config, deps Deps) *Gateway {
	logger := logging.New("gateway")
	gw := &Gateway{
		cfg:         cfg,
		deps:        deps,
		planner:     remediation.NewPlanner(deps.Cache, remediation.WithMinConfidence(cfg.Guardian.MinFixConfidence)),
		broadcaster: newBroadcaster(logger),
		logger:      logger,
		startedAt:   time.Now(),
		now:         time.Now,
	}
	retention := time.Duration(cfg.Guardian.RetentionDays) * 24 * time.Hour
	gw.scheduler = newScheduler(deps.Cache, deps.Store, retention, gw.broadcaster.send, logger)
	return gw
}

// PublishSummary streams a processed pipeline summary to SSE subscribers.
// Wire it with guardian.WithSummaryHook.
func (gw *Gateway) PublishSummary(s guardian.Summary) {
	gw.broadcaster.send(SSEEvent{Type: EventPipelineHandled, Payload: s})
}

// Addr is the listen address derived from config.
func (gw *Gateway) Addr() string {
	port := gw.cfg.Server.Port
	if port == 0 {
		port = defaultPort
	}
	return net.JoinHostPort(gw.cfg.Server.Host, strconv.Itoa(port))
}

// Start runs the gateway until ctx is cancelled. It:
//  1. Registers and starts the maintenance scheduler
//  2. Binds the HTTP server (blocks until shutdown)
func (gw *Gateway) Start(ctx context.Context) error {
	addr := gw.Addr()

	if err := gw.scheduler.Start(gw.cfg.Guardian.SweepSchedule, gw.cfg.Guardian.CleanupSchedule); err != nil {
		return fmt.Errorf("starting scheduler: %w", err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           buildHandler(gw),
		ReadHeaderTimeout: 10 * time.Second,
	}

	// Shut down HTTP server when ctx is cancelled.
	go func() {
		<-ctx.Done()
		gw.scheduler.Stop()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	gw.logger.Info("listening", "addr", "http://"+addr, "provider", gw.deps.Provider)
	gw.broadcaster.send(SSEEvent{
		Type:    EventGatewayStarted,
		Payload: map[string]string{"addr": "http://" + addr},
	})

	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("http server: %w", err)
	}
	return nil
}

func (gw *Gateway) processTimeout() time.Duration {
	if gw.cfg.Server.ProcessTimeout > 0 {
		return gw.cfg.Server.ProcessTimeout
	}
	return defaultProcessTimeout
}

func (gw *Gateway) health() Health {
	return Health{
		Status:        "healthy",
		Provider:      gw.deps.Provider,
		Oracle:        gw.deps.OracleConfigured,
		History:       gw.deps.Store != nil,
		UptimeSeconds: int64(time.Since(gw.startedAt).Seconds()),
		Timestamp:     gw.now().UTC().Format(time.RFC3339),
	}
}
