package guardian

import (
	"time"

	"github.com/CosmoTheDev/pipeline-guardian/models"
)

// Pipeline statuses that drive processing.
const (
	StatusFailed  = "failed"
	StatusSuccess = "success"
	StatusRunning = "running"
	StatusPending = "pending"
)

// Summary statuses.
const (
	SummaryProcessed = "processed"
	SummarySkipped   = "skipped"
	SummaryAssessed  = "assessed"
	SummaryError     = "error"
)

// Skip reasons.
const (
	SkipNotFailed         = "pipeline_not_failed"
	SkipRecentlyProcessed = "recently_processed"
	SkipNoFailedJobs      = "no_failed_jobs"
)

// Job outcomes.
const (
	OutcomeRetried     = "retried"
	OutcomeMRCreated   = "mr_created"
	OutcomeExistingFix = "existing_fix"
	OutcomeManual      = "manual_review"
	OutcomeNoAction    = "no_action"
	OutcomeFailed      = "failed"
)

// PipelineEvent is a normalised pipeline status webhook from either host.
type PipelineEvent struct {
	Provider   string `json:"provider"`
	ProjectID  string `json:"project_id"`
	PipelineID int64  `json:"pipeline_id"`
	Status     string `json:"status"`
	Ref        string `json:"ref"`
	CommitSHA  string `json:"commit_sha"`
	// DefaultBranch is the fix MR target; Ref is used when empty.
	DefaultBranch string        `json:"default_branch,omitempty"`
	Duration      time.Duration `json:"duration"`
	CreatedAt     time.Time     `json:"created_at"`
	WebURL        string        `json:"web_url,omitempty"`
}

func (e PipelineEvent) targetBranch() string {
	if e.DefaultBranch != "" {
		return e.DefaultBranch
	}
	return e.Ref
}

// JobOutcome is what happened to one failed job.
type JobOutcome struct {
	JobID      int64             `json:"job_id"`
	JobName    string            `json:"job_name"`
	Language   models.Language   `json:"language,omitempty"`
	Category   models.Category   `json:"category,omitempty"`
	Source     string            `json:"source,omitempty"`
	Plan       models.PlanAction `json:"plan,omitempty"`
	Outcome    string            `json:"outcome"`
	URL        string            `json:"url,omitempty"`
	Reason     string            `json:"reason,omitempty"`
	Commented  bool              `json:"commented,omitempty"`
	AnalysisID string            `json:"analysis_id,omitempty"`

	analyzed bool
}

// Summary is the response to one webhook delivery.
type Summary struct {
	Status        string                 `json:"status"`
	Reason        string                 `json:"reason,omitempty"`
	Error         string                 `json:"error,omitempty"`
	ProjectID     string                 `json:"project_id"`
	PipelineID    int64                  `json:"pipeline_id"`
	Analyzed      int                    `json:"analyzed"`
	Retried       int                    `json:"retried"`
	Commented     int                    `json:"commented"`
	MRsCreated    int                    `json:"mrs_created"`
	ExistingFixes int                    `json:"existing_fixes"`
	Failed        int                    `json:"failed"`
	Jobs          []JobOutcome           `json:"jobs,omitempty"`
	Risk          *models.RiskAssessment `json:"risk,omitempty"`
}

func (s *Summary) add(o JobOutcome) {
	s.Jobs = append(s.Jobs, o)
	if o.analyzed {
		s.Analyzed++
	}
	if o.Commented {
		s.Commented++
	}
	switch o.Outcome {
	case OutcomeRetried:
		s.Retried++
	case OutcomeMRCreated:
		s.MRsCreated++
	case OutcomeExistingFix:
		s.ExistingFixes++
	case OutcomeFailed:
		s.Failed++
	}
}
