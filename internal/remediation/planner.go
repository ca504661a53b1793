package remediation

import (
	"fmt"

	"github.com/CosmoTheDev/pipeline-guardian/models"
)

// Plan reasons surfaced when the planner declines to act.
const (
	ReasonExistingFix      = "existing fix available"
	ReasonInsufficient     = "insufficient details for an automatic fix"
	ReasonRetryNotAllowed  = "retry is only allowed for transient and timeout failures"
	ReasonNotFixable       = "category has no automatic fix"
	ReasonManualReview     = "manual review recommended"
	ReasonLowConfidence    = "confidence below auto-remediation threshold"
	ReasonDuplicatePending = "fix already in progress"
)

var retryable = map[models.Category]bool{
	models.CategoryTransient: true,
	models.CategoryTimeout:   true,
}

var autoFixable = map[models.Category]bool{
	models.CategoryDependency:    true,
	models.CategorySyntaxError:   true,
	models.CategoryTimeout:       true,
	models.CategorySecurity:      true,
	models.CategoryConfiguration: true,
}

// Retryable reports whether a retry recommendation may be honoured for c.
func Retryable(c models.Category) bool { return retryable[c] }

// AutoFixable reports whether c has an automatic fix.
func AutoFixable(c models.Category) bool { return autoFixable[c] }

// FixLookup reports an unexpired fix recorded under a dedup key.
// *dedup.Cache satisfies it.
type FixLookup interface {
	ExistingFix(key string) (string, bool)
}

// PlanContext carries what the planner needs beyond the analysis.
type PlanContext struct {
	ProjectID string
}

// Planner maps an analysis onto a remediation decision.
type Planner struct {
	fixes         FixLookup
	minConfidence float64
}

// PlannerOption configures a Planner.
type PlannerOption func(*Planner)

// WithMinConfidence suppresses automatic remediation below the threshold.
func WithMinConfidence(v float64) PlannerOption {
	return func(p *Planner) { p.minConfidence = v }
}

// NewPlanner returns a planner consulting fixes for existing merge requests.
// fixes may be nil, in which case every fixable failure gets a new MR plan.
func NewPlanner(fixes FixLookup, opts ...PlannerOption) *Planner {
	p := &Planner{fixes: fixes}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// DedupKey identifies a fix by project, category and detail fingerprint.
func DedupKey(projectID string, category models.Category, d models.Details) string {
	return fmt.Sprintf("%s:%s:%s", projectID, category, d.Fingerprint())
}

// Plan decides what to do about one analysed failure. The decision is
// evaluated in order: retry, fix merge request, then no action.
func (p *Planner) Plan(a models.ErrorAnalysis, pc PlanContext) models.FixPlan {
	category := models.ParseCategory(string(a.Category))
	key := DedupKey(pc.ProjectID, category, a.Details)

	if p.minConfidence > 0 && a.Confidence < p.minConfidence &&
		a.RecommendedAction != models.ActionManualFix {
		return models.FixPlan{Action: models.PlanNoAction, DedupKey: key, Reason: ReasonLowConfidence}
	}

	switch a.RecommendedAction {
	case models.ActionRetry:
		if Retryable(category) {
			return models.FixPlan{Action: models.PlanRetryJob, DedupKey: key}
		}
		return models.FixPlan{Action: models.PlanNoAction, DedupKey: key, Reason: ReasonRetryNotAllowed}

	case models.ActionAutomaticFix:
		if !AutoFixable(category) {
			return models.FixPlan{Action: models.PlanNoAction, DedupKey: key, Reason: ReasonNotFixable}
		}
		if p.fixes != nil {
			if ref, ok := p.fixes.ExistingFix(key); ok {
				return models.FixPlan{
					Action:      models.PlanNoAction,
					DedupKey:    key,
					ExistingFix: ref,
					Reason:      ReasonExistingFix,
				}
			}
		}
		patch, ok := GeneratePatch(a.Language, category, a.Details)
		if !ok {
			return models.FixPlan{Action: models.PlanNoAction, DedupKey: key, Reason: ReasonInsufficient}
		}
		return models.FixPlan{Action: models.PlanCreateFixMR, Patch: patch, DedupKey: key}
	}

	return models.FixPlan{Action: models.PlanNoAction, DedupKey: key, Reason: ReasonManualReview}
}
