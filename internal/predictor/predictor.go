// Package predictor scores the risk that a pipeline fails before it runs.
package predictor

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/CosmoTheDev/pipeline-guardian/models"
)

const (
	thresholdMedium   = 0.3
	thresholdHigh     = 0.7
	thresholdCritical = 0.85

	rapidCommitThreshold   = 10
	historicalRateTrigger  = 0.3
	hourFailureRateTrigger = 0.2
)

var lateNightHours = map[int]bool{0: true, 1: true, 2: true, 3: true, 4: true, 5: true}

// Level maps a capped score onto a risk level.
func Level(score float64) models.RiskLevel {
	switch {
	case score >= thresholdCritical:
		return models.RiskCritical
	case score >= thresholdHigh:
		return models.RiskHigh
	case score >= thresholdMedium:
		return models.RiskMedium
	default:
		return models.RiskLow
	}
}

// Recommendation is the headline advice for a risk level.
func Recommendation(level models.RiskLevel) string {
	switch level {
	case models.RiskCritical:
		return "🚨 CRITICAL: Postpone deployment. Multiple high-risk factors detected."
	case models.RiskHigh:
		return "⚠️ HIGH RISK: Consider delaying or implementing suggested mitigations."
	case models.RiskMedium:
		return "⚡ MEDIUM RISK: Proceed with caution. Monitor pipeline closely."
	default:
		return "✅ LOW RISK: Safe to proceed with deployment."
	}
}

// Assess scores rc against the pipeline history. It is pure: the same
// context and history always give the same assessment. A zero rc.At is
// replaced with the current time.
func Assess(rc models.RiskContext, history []models.PipelineRecord) models.RiskAssessment {
	if rc.At.IsZero() {
		rc.At = time.Now()
	}
	var patterns *models.FailurePatterns
	if len(history) > 0 {
		fp := AnalyzePatterns(history, rc.At.Location())
		patterns = &fp
	}
	return AssessPatterns(rc, patterns)
}

// AssessPatterns scores rc against pre-aggregated patterns, which may be nil
// when no history is available.
func AssessPatterns(rc models.RiskContext, patterns *models.FailurePatterns) models.RiskAssessment {
	if rc.At.IsZero() {
		rc.At = time.Now()
	}
	factors := factorsFor(rc, patterns)

	var total float64
	for _, f := range factors {
		total += f.Contribution
	}
	score := round3(math.Min(total, 1.0))
	level := Level(score)

	likely, prevention := narrative(factors)
	return models.RiskAssessment{
		Score:          score,
		Level:          level,
		Factors:        factors,
		LikelyFailure:  likely,
		Prevention:     prevention,
		Confidence:     confidence(patterns),
		Recommendation: Recommendation(level),
	}
}

func factorsFor(rc models.RiskContext, patterns *models.FailurePatterns) []models.RiskFactor {
	hour, weekday := rc.At.Hour(), rc.At.Weekday()
	factors := []models.RiskFactor{}

	if lateNightHours[hour] {
		factors = append(factors, models.RiskFactor{
			Name:         "late_night_deployment",
			Contribution: 0.3 * 1.8,
			Reason:       "Late night deployments have 80% higher failure rate",
			Mitigation:   "Consider postponing to business hours",
		})
	}
	if weekday == time.Friday && hour >= 15 {
		factors = append(factors, models.RiskFactor{
			Name:         "friday_deployment",
			Contribution: 0.25 * 1.5,
			Reason:       "Friday afternoon deployments are risky",
			Mitigation:   "Deploy on Monday morning instead",
		})
	}
	if weekday == time.Monday && hour >= 7 && hour <= 9 {
		factors = append(factors, models.RiskFactor{
			Name:         "monday_morning_surge",
			Contribution: 0.2 * 1.4,
			Reason:       "Monday morning surge often causes resource issues",
			Mitigation:   "Wait 1-2 hours for load to stabilize",
		})
	}
	if rc.RecentCommits > rapidCommitThreshold {
		factors = append(factors, models.RiskFactor{
			Name:         "rapid_commits",
			Contribution: 0.3 * 1.6,
			Reason:       fmt.Sprintf("%d commits in last hour - Rapid commits often introduce errors", rc.RecentCommits),
			Mitigation:   "Review changes carefully, consider staged deployment",
		})
	}
	if patterns == nil {
		return factors
	}

	if patterns.FailureRate > historicalRateTrigger {
		factors = append(factors, models.RiskFactor{
			Name:         "high_historical_failure_rate",
			Contribution: patterns.FailureRate * 0.5,
			Reason:       fmt.Sprintf("Project has %.1f%% historical failure rate", patterns.FailureRate*100),
			Mitigation:   "Implement additional testing stages",
		})
	}
	if n, ok := patterns.FailureByHour[hour]; ok && patterns.TotalAnalyzed > 0 {
		rate := float64(n) / float64(patterns.TotalAnalyzed)
		if rate > hourFailureRateTrigger {
			factors = append(factors, models.RiskFactor{
				Name:         "high_failure_hour",
				Contribution: rate * 0.3,
				Reason:       fmt.Sprintf("Pipelines at %d:00 fail %.1f%% of the time", hour, rate*100),
				Mitigation:   "Schedule pipeline for different time",
			})
		}
	}
	return factors
}

// narrative derives the likely failure from the single largest factor.
func narrative(factors []models.RiskFactor) (likely, prevention string) {
	if len(factors) == 0 {
		return "unknown", "Monitor pipeline closely"
	}
	primary := factors[0]
	for _, f := range factors[1:] {
		if f.Contribution > primary.Contribution {
			primary = f
		}
	}
	switch {
	case strings.Contains(primary.Name, "timeout"):
		return "timeout", "Increase job timeout to 2 hours"
	case strings.Contains(primary.Name, "rapid_commits"):
		return "syntax_error", "Run local tests before pushing"
	case strings.Contains(primary.Name, "monday_morning"):
		return "resource_exhaustion", "Increase runner resources or wait"
	default:
		return "general_failure", primary.Mitigation
	}
}

func confidence(patterns *models.FailurePatterns) float64 {
	if patterns == nil {
		return 0.5
	}
	switch n := patterns.TotalAnalyzed; {
	case n >= 100:
		return 0.9
	case n >= 50:
		return 0.8
	case n >= 20:
		return 0.7
	default:
		return 0.6
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}

// RenderComment formats an assessment as a commit comment.
func RenderComment(project string, a models.RiskAssessment) string {
	var b strings.Builder
	b.WriteString("🔮 **AI Pipeline Prediction Alert**\n\n")
	fmt.Fprintf(&b, "**Project:** %s\n", project)
	fmt.Fprintf(&b, "**Risk Level:** %s (%.1f%%)\n", strings.ToUpper(string(a.Level)), a.Score*100)
	fmt.Fprintf(&b, "**Prediction:** %s likely\n\n", titleWords(a.LikelyFailure))
	fmt.Fprintf(&b, "**🎯 Recommendation:**\n%s\n\n", a.Recommendation)
	b.WriteString("**📊 Risk Factors:**")
	for _, f := range a.Factors {
		fmt.Fprintf(&b, "\n- **%s**: %s", titleWords(f.Name), f.Reason)
		fmt.Fprintf(&b, "\n  → *Mitigation*: %s", f.Mitigation)
	}
	fmt.Fprintf(&b, "\n\n**💡 Suggested Action:**\n%s\n\n", a.Prevention)
	fmt.Fprintf(&b, "**🤖 Confidence:** %.0f%%\n\n", a.Confidence*100)
	b.WriteString("---\n*This prediction is based on analysis of historical pipeline data. Taking preventive action now can save debugging time later.*\n")
	return b.String()
}

func titleWords(s string) string {
	return models.Category(s).Title()
}
