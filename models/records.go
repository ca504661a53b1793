package models

import "time"

// AnalysisRecord is a persisted ErrorAnalysis together with what was done about it.
type AnalysisRecord struct {
	ID            string    `json:"id"             db:"id"`
	ProjectID     string    `json:"project_id"     db:"project_id"`
	PipelineID    int64     `json:"pipeline_id"    db:"pipeline_id"`
	JobID         int64     `json:"job_id"         db:"job_id"`
	JobName       string    `json:"job_name"       db:"job_name"`
	Ref           string    `json:"ref"            db:"ref"`
	Language      string    `json:"language"       db:"language"`
	Category      string    `json:"category"       db:"category"`
	Action        string    `json:"action"         db:"recommended_action"`
	Confidence    float64   `json:"confidence"     db:"confidence"`
	Explanation   string    `json:"explanation"    db:"explanation"`
	Solution      string    `json:"solution"       db:"solution"`
	DetailsJSON   string    `json:"details"        db:"details_json"`
	Source        string    `json:"source"         db:"source"`
	Plan          string    `json:"plan"           db:"plan_action"`
	Outcome       string    `json:"outcome"        db:"outcome"`
	FailureReason string    `json:"failure_reason" db:"failure_reason"`
	FixURL        string    `json:"fix_url"        db:"fix_url"`
	LogSnippet    string    `json:"-"              db:"log_snippet"`
	CreatedAt     time.Time `json:"created_at"     db:"created_at"`
}

// ErrorPatternRecord counts recurring failures per project and fingerprint.
type ErrorPatternRecord struct {
	ID          int64     `json:"id"          db:"id"`
	ProjectID   string    `json:"project_id"  db:"project_id"`
	Category    string    `json:"category"    db:"category"`
	Fingerprint string    `json:"fingerprint" db:"fingerprint"`
	Summary     string    `json:"summary"     db:"summary"`
	Occurrences int       `json:"occurrences" db:"occurrences"`
	FirstSeen   time.Time `json:"first_seen"  db:"first_seen"`
	LastSeen    time.Time `json:"last_seen"   db:"last_seen"`
}

// PipelineRunRecord is one observed pipeline status event.
type PipelineRunRecord struct {
	ID              int64     `json:"id"               db:"id"`
	ProjectID       string    `json:"project_id"       db:"project_id"`
	PipelineID      int64     `json:"pipeline_id"      db:"pipeline_id"`
	Ref             string    `json:"ref"              db:"ref"`
	Status          string    `json:"status"           db:"status"`
	DurationSeconds float64   `json:"duration_seconds" db:"duration_seconds"`
	FailureReason   string    `json:"failure_reason"   db:"failure_reason"`
	CreatedAt       time.Time `json:"created_at"       db:"created_at"`
}

// FixRecord is a fix merge request opened by the service.
type FixRecord struct {
	ID        int64     `json:"id"         db:"id"`
	ProjectID string    `json:"project_id" db:"project_id"`
	DedupKey  string    `json:"dedup_key"  db:"dedup_key"`
	Category  string    `json:"category"   db:"category"`
	Branch    string    `json:"branch"     db:"branch"`
	URL       string    `json:"url"        db:"url"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}

// DashboardStats is the aggregate view served by the stats endpoint.
type DashboardStats struct {
	TotalAnalyses   int                  `json:"total_analyses"`
	ByCategory      map[string]int       `json:"by_category"`
	ByLanguage      map[string]int       `json:"by_language"`
	ByOutcome       map[string]int       `json:"by_outcome"`
	FixesCreated    int                  `json:"fixes_created"`
	TopPatterns     []ErrorPatternRecord `json:"top_patterns"`
	PipelinesSeen   int                  `json:"pipelines_seen"`
	PipelinesFailed int                  `json:"pipelines_failed"`
}
