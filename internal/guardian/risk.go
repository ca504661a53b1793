package guardian

import (
	"context"
	"fmt"
	"time"

	"github.com/CosmoTheDev/pipeline-guardian/internal/notify"
	"github.com/CosmoTheDev/pipeline-guardian/internal/predictor"
	"github.com/CosmoTheDev/pipeline-guardian/models"
)

// recentCommitWindow is how far back commits count towards rapid_commits.
const recentCommitWindow = time.Hour

// AssessRisk predicts how likely a pipeline starting at at is to fail.
// High and critical assessments are posted on the commit when sha is set.
func (p *Processor) AssessRisk(ctx context.Context, projectID, ref, sha string, at time.Time) (models.RiskAssessment, error) {
	history, err := p.History(ctx, projectID, ref)
	if err != nil {
		return models.RiskAssessment{}, err
	}

	commits, err := p.scm.CountRecentCommits(ctx, projectID, ref, at.Add(-recentCommitWindow))
	if err != nil {
		p.logger.Warn("guardian: counting recent commits failed", "project", projectID, "error", err)
		commits = 0
	}

	rc := models.RiskContext{
		ProjectID:     projectID,
		At:            at.In(p.opts.Location),
		Ref:           ref,
		CommitSHA:     sha,
		RecentCommits: commits,
	}
	a := predictor.Assess(rc, history)
	p.logger.Info("guardian: risk assessed", "project", projectID, "ref", ref,
		"score", a.Score, "level", a.Level, "factors", len(a.Factors))

	if a.Level.Weight() >= models.RiskHigh.Weight() {
		if sha != "" && p.opts.CommentOnCommit {
			if err := p.scm.CommentOnCommit(ctx, projectID, sha, predictor.RenderComment(projectID, a)); err != nil {
				p.logger.Warn("guardian: risk comment failed", "project", projectID, "error", err)
			}
		}
		p.notify(ctx, notify.Event{
			Type:     notify.EventHighRiskPipeline,
			Title:    fmt.Sprintf("%s risk pipeline on %s", titleLevel(a.Level), ref),
			Body:     a.Recommendation + "\n\n" + a.Prevention,
			Severity: string(a.Level),
			Project:  projectID,
		})
	}
	return a, nil
}

// Patterns summarises a project's pipeline history.
func (p *Processor) Patterns(ctx context.Context, projectID string) (models.FailurePatterns, error) {
	history, err := p.History(ctx, projectID, "")
	if err != nil {
		return models.FailurePatterns{}, err
	}
	return predictor.AnalyzePatterns(history, p.opts.Location), nil
}

// History returns recent pipelines for a project. The local store is
// preferred since it carries failure categories; the host's pipeline list
// is the fallback when the store knows nothing about the project.
func (p *Processor) History(ctx context.Context, projectID, ref string) ([]models.PipelineRecord, error) {
	limit := p.opts.HistoryLimit
	if limit <= 0 {
		limit = 100
	}
	if p.history != nil {
		recs, err := p.history.RecentPipelines(ctx, projectID, limit)
		if err != nil {
			p.logger.Warn("guardian: reading pipeline history failed", "project", projectID, "error", err)
		} else if len(recs) > 0 {
			return recs, nil
		}
	}
	recs, err := p.scm.ListPipelines(ctx, projectID, ref, limit)
	if err != nil {
		return nil, fmt.Errorf("listing pipeline history: %w", err)
	}
	return recs, nil
}

func titleLevel(l models.RiskLevel) string {
	switch l {
	case models.RiskCritical:
		return "Critical"
	case models.RiskHigh:
		return "High"
	case models.RiskMedium:
		return "Medium"
	default:
		return "Low"
	}
}
