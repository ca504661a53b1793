package models

import "time"

// RiskLevel buckets a risk score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Weight orders levels from low (1) to critical (4).
func (l RiskLevel) Weight() int {
	switch l {
	case RiskCritical:
		return 4
	case RiskHigh:
		return 3
	case RiskMedium:
		return 2
	case RiskLow:
		return 1
	default:
		return 0
	}
}

// RiskFactor is one additive contribution to a risk score.
type RiskFactor struct {
	Name         string  `json:"factor"       yaml:"factor"`
	Contribution float64 `json:"contribution" yaml:"contribution"`
	Reason       string  `json:"reason"       yaml:"reason"`
	Mitigation   string  `json:"mitigation"   yaml:"mitigation"`
}

// RiskAssessment is the predictor's output for one pipeline.
type RiskAssessment struct {
	Score          float64      `json:"risk_score"     yaml:"risk_score"`
	Level          RiskLevel    `json:"risk_level"     yaml:"risk_level"`
	Factors        []RiskFactor `json:"risk_factors"   yaml:"risk_factors"`
	LikelyFailure  string       `json:"likely_failure" yaml:"likely_failure"`
	Prevention     string       `json:"prevention"     yaml:"prevention"`
	Confidence     float64      `json:"confidence"     yaml:"confidence"`
	Recommendation string       `json:"recommendation" yaml:"recommendation"`
}

// RiskContext describes the pipeline about to run.
type RiskContext struct {
	ProjectID string `json:"project_id"`
	// At is when the pipeline runs; its location decides hour and weekday.
	At            time.Time `json:"at"`
	Ref           string    `json:"ref,omitempty"`
	CommitSHA     string    `json:"commit_sha,omitempty"`
	RecentCommits int       `json:"recent_commits"`
}

// ReasonCount pairs a failure reason with its frequency.
type ReasonCount struct {
	Reason string `json:"reason" yaml:"reason"`
	Count  int    `json:"count"  yaml:"count"`
}

// DurationStats summarises pipeline durations in seconds.
type DurationStats struct {
	AvgSeconds    float64 `json:"avg_duration_seconds"    yaml:"avg_duration_seconds"`
	MedianSeconds float64 `json:"median_duration_seconds" yaml:"median_duration_seconds"`
	MaxSeconds    float64 `json:"max_duration_seconds"    yaml:"max_duration_seconds"`
	LongPipelines int     `json:"long_pipelines"          yaml:"long_pipelines"`
	TimeoutRisk   float64 `json:"timeout_risk"            yaml:"timeout_risk"`
}

// FailurePatterns aggregates historical pipeline outcomes.
type FailurePatterns struct {
	TotalAnalyzed    int            `json:"total_analyzed"      yaml:"total_analyzed"`
	FailedCount      int            `json:"failed_count"        yaml:"failed_count"`
	SuccessCount     int            `json:"success_count"       yaml:"success_count"`
	FailureRate      float64        `json:"failure_rate"        yaml:"failure_rate"`
	FailureReasons   []ReasonCount  `json:"failure_reasons"     yaml:"failure_reasons"`
	FailureByHour    map[int]int    `json:"failure_by_hour"     yaml:"failure_by_hour"`
	FailureByWeekday map[string]int `json:"failure_by_weekday"  yaml:"failure_by_weekday"`
	Duration         *DurationStats `json:"duration,omitempty"  yaml:"duration,omitempty"`
	Insights         []string       `json:"insights"            yaml:"insights"`
}
