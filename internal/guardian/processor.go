// Package guardian turns pipeline webhooks into analyses and remediation:
// it lists failed jobs, classifies each log, plans a fix and carries it out
// against the source-control host.
package guardian

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/CosmoTheDev/pipeline-guardian/internal/analyzer"
	"github.com/CosmoTheDev/pipeline-guardian/internal/dedup"
	"github.com/CosmoTheDev/pipeline-guardian/internal/logging"
	"github.com/CosmoTheDev/pipeline-guardian/internal/notify"
	"github.com/CosmoTheDev/pipeline-guardian/internal/remediation"
	"github.com/CosmoTheDev/pipeline-guardian/internal/repository"
	"github.com/CosmoTheDev/pipeline-guardian/models"
)

// History is the persistence sink and historical feed. *history.Store
// implements it.
type History interface {
	SaveAnalysis(ctx context.Context, rec *models.AnalysisRecord) (string, error)
	IncrementErrorPattern(ctx context.Context, projectID string, category models.Category, fingerprint, summary string) error
	RecordPipeline(ctx context.Context, rec models.PipelineRunRecord) error
	RecordFix(ctx context.Context, rec models.FixRecord) error
	RecentFixes(ctx context.Context, since time.Time) ([]models.FixRecord, error)
	RecentPipelines(ctx context.Context, projectID string, n int) ([]models.PipelineRecord, error)
}

// Options toggles what the processor is allowed to do.
type Options struct {
	Workers         int
	AutoRetry       bool
	AutoFix         bool
	CreateIssues    bool
	CommentOnCommit bool
	RiskCheck       bool
	HistoryLimit    int
	Location        *time.Location
}

// DefaultOptions enables every action with four workers.
func DefaultOptions() Options {
	return Options{
		Workers:         4,
		AutoRetry:       true,
		AutoFix:         true,
		CommentOnCommit: true,
		RiskCheck:       true,
		HistoryLimit:    100,
		Location:        time.Local,
	}
}

// Processor handles pipeline events. It is safe for concurrent use; the
// dedup cache is the only shared mutable state.
type Processor struct {
	scm        repository.SourceControl
	classifier *analyzer.Classifier
	planner    *remediation.Planner
	cache      *dedup.Cache
	history    History
	notifier   notify.Notifier
	opts       Options
	now        func() time.Time
	logger     *slog.Logger
	onSummary  func(Summary)

	minConfidence float64
}

// Option configures a Processor.
type Option func(*Processor)

// WithHistory persists analyses and feeds risk prediction from h.
func WithHistory(h History) Option { return func(p *Processor) { p.history = h } }

// WithNotifier sends events through n.
func WithNotifier(n notify.Notifier) Option { return func(p *Processor) { p.notifier = n } }

// WithOptions replaces DefaultOptions.
func WithOptions(o Options) Option { return func(p *Processor) { p.opts = o } }

// WithNow overrides the clock.
func WithNow(now func() time.Time) Option { return func(p *Processor) { p.now = now } }

// WithSummaryHook is called with every summary HandlePipelineEvent returns.
func WithSummaryHook(fn func(Summary)) Option { return func(p *Processor) { p.onSummary = fn } }

// NewProcessor wires a processor. The planner consults cache for existing fixes.
func NewProcessor(scm repository.SourceControl, classifier *analyzer.Classifier, cache *dedup.Cache, opts ...Option) *Processor {
	p := &Processor{
		scm:        scm,
		classifier: classifier,
		cache:      cache,
		opts:       DefaultOptions(),
		now:        time.Now,
		logger:     logging.New("guardian"),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.opts.Workers <= 0 {
		p.opts.Workers = 1
	}
	if p.opts.Location == nil {
		p.opts.Location = time.Local
	}
	p.planner = remediation.NewPlanner(cache, remediation.WithMinConfidence(p.minConfidence))
	return p
}

// WithMinFixConfidence makes the planner skip automatic remediation below v.
func WithMinFixConfidence(v float64) Option {
	return func(p *Processor) { p.minConfidence = v }
}

// Cache exposes the dedup cache for maintenance jobs.
func (p *Processor) Cache() *dedup.Cache { return p.cache }

// SourceControl exposes the configured host.
func (p *Processor) SourceControl() repository.SourceControl { return p.scm }

// Classifier exposes the classifier for ad-hoc analysis.
func (p *Processor) Classifier() *analyzer.Classifier { return p.classifier }

// RestoreFixes seeds the dedup cache with fixes persisted within the
// cooldown, so a restart does not reopen the same MRs.
func (p *Processor) RestoreFixes(ctx context.Context) (int, error) {
	if p.history == nil {
		return 0, nil
	}
	fixes, err := p.history.RecentFixes(ctx, p.now().Add(-p.cache.FixCooldown()))
	if err != nil {
		return 0, err
	}
	for _, f := range fixes {
		p.cache.RestoreFix(f.DedupKey, f.URL, f.CreatedAt)
	}
	return len(fixes), nil
}

// HandlePipelineEvent processes one pipeline webhook. It never returns an
// error: failures are reported in the Summary.
func (p *Processor) HandlePipelineEvent(ctx context.Context, ev PipelineEvent) Summary {
	sum := p.handle(ctx, ev)
	if p.onSummary != nil {
		p.onSummary(sum)
	}
	return sum
}

func (p *Processor) handle(ctx context.Context, ev PipelineEvent) Summary {
	sum := Summary{ProjectID: ev.ProjectID, PipelineID: ev.PipelineID}
	log := p.logger.With("project", ev.ProjectID, "pipeline_id", ev.PipelineID)

	switch ev.Status {
	case StatusRunning, StatusPending:
		if !p.opts.RiskCheck {
			sum.Status, sum.Reason = SummarySkipped, SkipNotFailed
			return sum
		}
		at := ev.CreatedAt
		if at.IsZero() {
			at = p.now()
		}
		risk, err := p.AssessRisk(ctx, ev.ProjectID, ev.Ref, ev.CommitSHA, at)
		if err != nil {
			sum.Status, sum.Error = SummaryError, err.Error()
			return sum
		}
		sum.Status, sum.Risk = SummaryAssessed, &risk
		return sum
	case StatusFailed:
	default:
		p.recordPipeline(ctx, ev, "")
		sum.Status, sum.Reason = SummarySkipped, SkipNotFailed
		return sum
	}

	if !p.cache.TryMarkProcessed(dedup.PipelineKey(ev.ProjectID, ev.PipelineID)) {
		log.Info("guardian: pipeline recently processed, skipping")
		sum.Status, sum.Reason = SummarySkipped, SkipRecentlyProcessed
		return sum
	}

	jobs, err := p.scm.ListPipelineJobs(ctx, ev.ProjectID, ev.PipelineID)
	if err != nil {
		log.Error("guardian: listing jobs failed", "error", err)
		sum.Status, sum.Error = SummaryError, fmt.Sprintf("listing pipeline jobs: %v", err)
		p.notify(ctx, notify.Event{
			Type:    notify.EventProcessingFailed,
			Title:   fmt.Sprintf("Pipeline #%d could not be processed", ev.PipelineID),
			Body:    sum.Error,
			URL:     ev.WebURL,
			Project: ev.ProjectID,
		})
		return sum
	}

	var failed []models.Job
	for _, j := range jobs {
		if j.Failed() {
			failed = append(failed, j)
		}
	}
	if len(failed) == 0 {
		p.recordPipeline(ctx, ev, "")
		sum.Status, sum.Reason = SummarySkipped, SkipNoFailedJobs
		return sum
	}
	log.Info("guardian: analysing failed jobs", "failed_jobs", len(failed))

	outcomes := make([]JobOutcome, len(failed))
	var g errgroup.Group
	g.SetLimit(p.opts.Workers)
	for i, job := range failed {
		g.Go(func() error {
			outcomes[i] = p.processJob(ctx, ev, job)
			return nil
		})
	}
	_ = g.Wait()

	sum.Status = SummaryProcessed
	reason := ""
	for _, o := range outcomes {
		sum.add(o)
		if reason == "" && o.Category != "" {
			reason = string(o.Category)
		}
	}
	p.recordPipeline(ctx, ev, reason)
	log.Info("guardian: pipeline processed",
		"analyzed", sum.Analyzed, "retried", sum.Retried, "mrs_created", sum.MRsCreated,
		"existing_fixes", sum.ExistingFixes, "commented", sum.Commented, "failed", sum.Failed)
	return sum
}

func (p *Processor) processJob(ctx context.Context, ev PipelineEvent, job models.Job) JobOutcome {
	out := JobOutcome{JobID: job.ID, JobName: job.Name}
	log := p.logger.With("project", ev.ProjectID, "pipeline_id", ev.PipelineID, "job_id", job.ID, "job", job.Name)

	trace, err := p.scm.JobTrace(ctx, ev.ProjectID, job.ID)
	if err != nil {
		log.Warn("guardian: fetching trace failed", "error", err)
		out.Outcome, out.Reason = OutcomeFailed, stepErr(StepTrace, err).Error()
		return out
	}

	jf := models.JobFailure{
		ProjectID:  ev.ProjectID,
		PipelineID: ev.PipelineID,
		JobID:      job.ID,
		JobName:    job.Name,
		Stage:      job.Stage,
		Ref:        ev.Ref,
		CommitSHA:  ev.CommitSHA,
		RawLog:     trace,
	}
	a := p.classifier.Classify(ctx, trace, job.Name)
	plan := p.planner.Plan(a, remediation.PlanContext{ProjectID: ev.ProjectID})
	out.analyzed = true
	out.Language, out.Category, out.Source, out.Plan = a.Language, a.Category, string(a.Source), plan.Action
	log.Info("guardian: job analyzed", "category", a.Category, "language", a.Language,
		"source", a.Source, "confidence", a.Confidence, "plan", plan.Action)

	switch {
	case plan.Action == models.PlanRetryJob && p.opts.AutoRetry:
		p.retry(ctx, ev, jf, &out)
	case plan.Action == models.PlanCreateFixMR && p.opts.AutoFix:
		p.createFix(ctx, ev, jf, a, plan, &out)
	case plan.HasExistingFix():
		out.Outcome, out.URL, out.Reason = OutcomeExistingFix, plan.ExistingFix, plan.Reason
		p.comment(ctx, jf, a, plan, &out)
	default:
		if plan.Reason == "" {
			plan.Reason = "automatic remediation disabled"
			plan.Action = models.PlanNoAction
			out.Plan = plan.Action
		}
		p.manualReview(ctx, ev, jf, a, plan, &out)
	}

	p.persist(ctx, jf, a, plan, &out)
	return out
}

func (p *Processor) retry(ctx context.Context, ev PipelineEvent, jf models.JobFailure, out *JobOutcome) {
	if err := p.scm.RetryJob(ctx, jf.ProjectID, jf.JobID); err != nil {
		out.Outcome, out.Reason = OutcomeFailed, stepErr(StepRetry, err).Error()
		return
	}
	out.Outcome = OutcomeRetried
	p.notify(ctx, notify.Event{
		Type:    notify.EventJobRetried,
		Title:   fmt.Sprintf("Retried job %s", jf.JobName),
		Body:    fmt.Sprintf("Job #%d in pipeline #%d failed with a %s error and was retried.", jf.JobID, jf.PipelineID, out.Category),
		URL:     ev.WebURL,
		Project: jf.ProjectID,
	})
}

// createFix opens a fix MR unless one exists or is in flight for the same key.
func (p *Processor) createFix(ctx context.Context, ev PipelineEvent, jf models.JobFailure, a models.ErrorAnalysis, plan models.FixPlan, out *JobOutcome) {
	existing, ok := p.cache.TryReserveFix(plan.DedupKey)
	if !ok {
		if existing != "" {
			out.Outcome, out.URL, out.Reason = OutcomeExistingFix, existing, remediation.ReasonExistingFix
		} else {
			out.Outcome, out.Reason = OutcomeNoAction, remediation.ReasonDuplicatePending
		}
		return
	}

	mr, err := p.openMergeRequest(ctx, ev, jf, a, plan.Patch)
	if err != nil {
		p.cache.ReleaseFix(plan.DedupKey)
		if errors.Is(err, remediation.ErrNoChange) {
			out.Outcome, out.Reason = OutcomeNoAction, "fix already present on "+ev.targetBranch()
			return
		}
		p.logger.Warn("guardian: fix MR failed", "project", jf.ProjectID, "job_id", jf.JobID, "error", err)
		out.Outcome, out.Reason = OutcomeFailed, err.Error()
		return
	}

	p.cache.RecordFix(plan.DedupKey, mr.URL)
	out.Outcome, out.URL = OutcomeMRCreated, mr.URL
	if p.history != nil {
		rec := models.FixRecord{
			ProjectID: jf.ProjectID,
			DedupKey:  plan.DedupKey,
			Category:  string(a.Category),
			Branch:    mr.SourceBranch,
			URL:       mr.URL,
		}
		if err := p.history.RecordFix(ctx, rec); err != nil {
			p.logger.Warn("guardian: recording fix failed", "error", err)
		}
	}
	p.notify(ctx, notify.Event{
		Type:    notify.EventFixMRCreated,
		Title:   mr.Title,
		Body:    fmt.Sprintf("%s in job %s: %s", a.Category.Title(), jf.JobName, plan.Patch.Description),
		URL:     mr.URL,
		Project: jf.ProjectID,
	})
}

func (p *Processor) openMergeRequest(ctx context.Context, ev PipelineEvent, jf models.JobFailure, a models.ErrorAnalysis, patch *models.Patch) (*models.MergeRequest, error) {
	target := ev.targetBranch()
	current, exists, err := p.scm.GetFile(ctx, jf.ProjectID, patch.FilePath, target)
	if err != nil {
		return nil, stepErr(StepRead, err)
	}
	content, action, err := remediation.ApplyPatch(current, exists, patch)
	if err != nil {
		if errors.Is(err, remediation.ErrNoChange) {
			return nil, err
		}
		return nil, stepErr(StepApply, err)
	}

	branch := remediation.BranchName(a.Category, p.now())
	if err := p.scm.CreateBranch(ctx, jf.ProjectID, branch, target); err != nil {
		return nil, stepErr(StepBranch, err)
	}
	err = p.scm.CommitFile(ctx, jf.ProjectID, repository.FileCommit{
		Branch:  branch,
		Path:    patch.FilePath,
		Content: content,
		Message: patch.CommitMessage,
		Create:  action == remediation.FileCreate,
	})
	if err != nil {
		return nil, stepErr(StepCommit, err)
	}
	mr, err := p.scm.CreateMergeRequest(ctx, jf.ProjectID, repository.MergeRequestOptions{
		Title:              remediation.Title(a.Category),
		Description:        remediation.MergeRequestDescription(jf, a, patch),
		SourceBranch:       branch,
		TargetBranch:       target,
		Labels:             remediation.Labels,
		RemoveSourceBranch: true,
	})
	if err != nil {
		return nil, stepErr(StepMergeRequest, err)
	}
	return mr, nil
}

func (p *Processor) manualReview(ctx context.Context, ev PipelineEvent, jf models.JobFailure, a models.ErrorAnalysis, plan models.FixPlan, out *JobOutcome) {
	out.Outcome, out.Reason = OutcomeManual, plan.Reason
	p.comment(ctx, jf, a, plan, out)

	if p.opts.CreateIssues {
		issue, err := p.scm.CreateIssue(ctx, jf.ProjectID, repository.IssueOptions{
			Title:       remediation.IssueTitle(jf, a),
			Description: remediation.IssueBody(jf, a, plan),
			Labels:      []string{"ai-analysis", "pipeline-failure"},
		})
		if err != nil {
			p.logger.Warn("guardian: creating issue failed", "project", jf.ProjectID, "error", err)
		} else {
			out.URL = issue.URL
		}
	}
	p.notify(ctx, notify.Event{
		Type:    notify.EventManualReview,
		Title:   fmt.Sprintf("Manual review: %s failed (%s)", jf.JobName, a.Category.Title()),
		Body:    a.Explanation + "\n\n" + a.SuggestedSolution,
		URL:     firstNonEmpty(out.URL, ev.WebURL),
		Project: jf.ProjectID,
	})
}

func (p *Processor) comment(ctx context.Context, jf models.JobFailure, a models.ErrorAnalysis, plan models.FixPlan, out *JobOutcome) {
	if !p.opts.CommentOnCommit || jf.CommitSHA == "" {
		return
	}
	if err := p.scm.CommentOnCommit(ctx, jf.ProjectID, jf.CommitSHA, remediation.AnalysisComment(jf, a, plan)); err != nil {
		p.logger.Warn("guardian: commit comment failed", "project", jf.ProjectID, "sha", jf.CommitSHA, "error", err)
		return
	}
	out.Commented = true
}

func (p *Processor) persist(ctx context.Context, jf models.JobFailure, a models.ErrorAnalysis, plan models.FixPlan, out *JobOutcome) {
	if p.history == nil {
		return
	}
	details, _ := json.Marshal(a.Details)
	rec := &models.AnalysisRecord{
		ProjectID:     jf.ProjectID,
		PipelineID:    jf.PipelineID,
		JobID:         jf.JobID,
		JobName:       jf.JobName,
		Ref:           jf.Ref,
		Language:      string(a.Language),
		Category:      string(a.Category),
		Action:        string(a.RecommendedAction),
		Confidence:    a.Confidence,
		Explanation:   a.Explanation,
		Solution:      a.SuggestedSolution,
		DetailsJSON:   string(details),
		Source:        string(a.Source),
		Plan:          string(plan.Action),
		Outcome:       out.Outcome,
		FailureReason: out.Reason,
		FixURL:        out.URL,
		LogSnippet:    analyzer.CleanLog(jf.RawLog),
	}
	id, err := p.history.SaveAnalysis(ctx, rec)
	if err != nil {
		p.logger.Warn("guardian: saving analysis failed", "job_id", jf.JobID, "error", err)
	} else {
		out.AnalysisID = id
	}
	summary := firstNonEmpty(a.Explanation, a.Category.Title())
	if err := p.history.IncrementErrorPattern(ctx, jf.ProjectID, a.Category, a.Details.Fingerprint(), summary); err != nil {
		p.logger.Warn("guardian: updating error pattern failed", "error", err)
	}
}

func (p *Processor) recordPipeline(ctx context.Context, ev PipelineEvent, reason string) {
	if p.history == nil {
		return
	}
	status := ev.Status
	if status == "failure" {
		status = StatusFailed
	}
	err := p.history.RecordPipeline(ctx, models.PipelineRunRecord{
		ProjectID:       ev.ProjectID,
		PipelineID:      ev.PipelineID,
		Ref:             ev.Ref,
		Status:          status,
		DurationSeconds: ev.Duration.Seconds(),
		FailureReason:   reason,
		CreatedAt:       ev.CreatedAt,
	})
	if err != nil {
		p.logger.Warn("guardian: recording pipeline failed", "pipeline_id", ev.PipelineID, "error", err)
	}
}

func (p *Processor) notify(ctx context.Context, evt notify.Event) {
	if p.notifier != nil {
		p.notifier.Notify(ctx, evt)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
