package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/pipeline-guardian/internal/ai"
	"github.com/CosmoTheDev/pipeline-guardian/internal/gateway"
	"github.com/CosmoTheDev/pipeline-guardian/internal/guardian"
)

var (
	servePort     int
	serveHost     string
	serveProvider string
	serveNoDB     bool
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the webhook receiver",
	Long: `Starts the guardian gateway: a long-running HTTP server that receives
pipeline webhooks and acts on failures.

Point your CI host at it:
  GitLab  Settings > Webhooks > Pipeline events   POST /webhook/gitlab
  GitHub  Settings > Webhooks > Workflow runs     POST /webhook/github

Quick API reference:
  GET  /health                 liveness check
  GET  /api/stats              analysis and cache counters (?project=)
  POST /api/analyze            classify a log (body: {"log":"...","job_name":"..."})
  GET  /api/predict            risk score (?project=&ref=&sha=&at=)
  GET  /api/patterns           failure patterns (?project=)
  GET  /events                 SSE stream of processed pipelines

Cache sweeps and history cleanup run on guardian.sweep_schedule and
guardian.cleanup_schedule (cron syntax, e.g. "*/15 * * * *" or "@daily").`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "HTTP port to listen on (overrides server.port)")
	serveCmd.Flags().StringVar(&serveHost, "host", "", "interface to bind (overrides server.host)")
	serveCmd.Flags().StringVar(&serveProvider, "provider", "", "gitlab or github (overrides guardian.provider)")
	serveCmd.Flags().BoolVar(&serveNoDB, "no-history", false, "run without the analysis history database")
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newServeApp(ctx)
	if err != nil {
		return err
	}
	defer a.close()

	var gw *gateway.Gateway
	proc := a.processor(guardian.WithSummaryHook(func(s guardian.Summary) {
		gw.PublishSummary(s)
	}))
	if a.store != nil {
		restored, err := proc.RestoreFixes(ctx)
		if err != nil {
			a.logger.Warn("could not restore recent fixes", "error", err)
		} else if restored > 0 {
			a.logger.Info("restored recent fixes into dedup cache", "count", restored)
		}
	}

	deps := gateway.Deps{
		Processor:        proc,
		Classifier:       a.classifier,
		Cache:            a.cache,
		Provider:         a.scm.Name(),
		OracleConfigured: ai.IsConfigured(a.oracle),
	}
	if a.store != nil {
		deps.Store = a.store
	}
	gw = gateway.New(a.cfg, deps)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, headerStyle.Render("guardian gateway"))
	field(out, "Provider", a.scm.Name())
	field(out, "AI oracle", a.oracle.Name())
	field(out, "Workers", a.cfg.Guardian.Workers)
	field(out, "History", historyLabel(a))
	field(out, "Webhooks", "http://"+gw.Addr()+"/webhook/"+a.scm.Name())
	field(out, "Events", "http://"+gw.Addr()+"/events")
	fmt.Fprintln(out, dimStyle.Render("\nPress Ctrl+C to stop gracefully."))

	return gw.Start(ctx)
}

func newServeApp(ctx context.Context) (*app, error) {
	a, err := newApp(ctx, !serveNoDB)
	if err != nil {
		return nil, err
	}
	if servePort > 0 {
		a.cfg.Server.Port = servePort
	}
	if serveHost != "" {
		a.cfg.Server.Host = serveHost
	}
	if serveProvider != "" {
		a.cfg.Guardian.Provider = serveProvider
	}
	if err := a.cfg.Validate(); err != nil {
		a.close()
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	if err := a.connect(); err != nil {
		a.close()
		return nil, err
	}
	return a, nil
}

func historyLabel(a *app) string {
	if a.store == nil {
		return "disabled"
	}
	return a.db.Driver()
}
