package cmd

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CosmoTheDev/pipeline-guardian/internal/ai"
	"github.com/CosmoTheDev/pipeline-guardian/internal/analyzer"
	"github.com/CosmoTheDev/pipeline-guardian/internal/config"
	"github.com/CosmoTheDev/pipeline-guardian/internal/database"
	"github.com/CosmoTheDev/pipeline-guardian/internal/dedup"
	"github.com/CosmoTheDev/pipeline-guardian/internal/guardian"
	"github.com/CosmoTheDev/pipeline-guardian/internal/history"
	"github.com/CosmoTheDev/pipeline-guardian/internal/logging"
	"github.com/CosmoTheDev/pipeline-guardian/internal/notify"
	"github.com/CosmoTheDev/pipeline-guardian/internal/repository"
)

// app holds the wired components shared by the commands.
type app struct {
	cfg        *config.Config
	logger     *slog.Logger
	db         database.DB
	store      *history.Store
	oracle     ai.Oracle
	classifier *analyzer.Classifier
	cache      *dedup.Cache
	scm        repository.SourceControl
	notifier   *notify.Dispatcher
	proc       *guardian.Processor

	closers []func() error
}

// loadConfig reads config and installs logging.
func loadConfig() (*config.Config, *slog.Logger, func() error, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("loading config: %w", err)
	}
	logger, closeLog, err := logging.Setup(logging.Options{
		Level:   cfg.Logging.Level,
		Dir:     cfg.Logging.Dir,
		Verbose: verbose,
	})
	if err != nil {
		return nil, nil, nil, fmt.Errorf("initialising logger: %w", err)
	}
	return cfg, logger, closeLog, nil
}

// newApp wires config, logging, the classifier and the dedup cache, plus the
// history store when withHistory is set. Call connect for source control.
func newApp(ctx context.Context, withHistory bool) (*app, error) {
	cfg, logger, closeLog, err := loadConfig()
	if err != nil {
		return nil, err
	}
	a := &app{cfg: cfg, logger: logger, closers: []func() error{closeLog}}

	oracle, err := ai.New(cfg.AI)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("initialising AI provider: %w", err)
	}
	a.oracle = oracle
	var classifierOracle analyzer.Oracle
	if ai.IsConfigured(oracle) {
		classifierOracle = oracle
	}
	a.classifier = analyzer.NewClassifier(classifierOracle,
		analyzer.WithOracleTimeout(cfg.Guardian.OracleTimeout),
		analyzer.WithLogger(logging.New("classifier")))

	a.cache = dedup.New(
		dedup.WithPipelineCooldown(cfg.Guardian.PipelineCooldown),
		dedup.WithFixCooldown(cfg.Guardian.FixCooldown),
	)

	if withHistory {
		db, err := database.Open(ctx, cfg.Database)
		if err != nil {
			a.close()
			return nil, err
		}
		a.closers = append(a.closers, db.Close)
		a.db = db
		a.store = history.New(db)
	}
	return a, nil
}

// connect builds the source-control client for guardian.provider and the
// notification dispatcher.
func (a *app) connect() error {
	scm, err := repository.New(a.cfg.Guardian.Provider, a.cfg)
	if err != nil {
		return fmt.Errorf("connecting to %s: %w", a.cfg.Guardian.Provider, err)
	}
	a.scm = scm
	a.notifier = notify.NewDispatcher(a.cfg.Notify)
	return nil
}

// processor builds the pipeline processor; extra options are appended after
// the config-derived ones.
func (a *app) processor(extra ...guardian.Option) *guardian.Processor {
	g := a.cfg.Guardian
	opts := []guardian.Option{
		guardian.WithOptions(guardian.Options{
			Workers:         g.Workers,
			AutoRetry:       g.AutoRetry,
			AutoFix:         g.AutoFix,
			CreateIssues:    g.CreateIssues,
			CommentOnCommit: g.CommentOnCommit,
			RiskCheck:       g.RiskCheck,
			HistoryLimit:    g.HistoryLimit,
			Location:        g.Location(),
		}),
		guardian.WithMinFixConfidence(g.MinFixConfidence),
	}
	if a.store != nil {
		opts = append(opts, guardian.WithHistory(a.store))
	}
	if a.notifier != nil && a.notifier.IsAnyConfigured() {
		opts = append(opts, guardian.WithNotifier(a.notifier))
	}
	opts = append(opts, extra...)
	a.proc = guardian.NewProcessor(a.scm, a.classifier, a.cache, opts...)
	return a.proc
}

func (a *app) close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}
