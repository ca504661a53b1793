package predictor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CosmoTheDev/pipeline-guardian/models"
)

// 2024-03-08 was a Friday, 2024-03-11 a Monday.
func at(day, hour int) time.Time {
	return time.Date(2024, 3, day, hour, 0, 0, 0, time.UTC)
}

func TestAssessFridayAfternoon(t *testing.T) {
	a := Assess(models.RiskContext{At: at(8, 16)}, nil)

	assert.Equal(t, 0.375, a.Score)
	assert.Equal(t, models.RiskMedium, a.Level)
	require.Len(t, a.Factors, 1)
	assert.Equal(t, "friday_deployment", a.Factors[0].Name)
	assert.Equal(t, "general_failure", a.LikelyFailure)
	assert.Equal(t, "Deploy on Monday morning instead", a.Prevention)
	assert.Equal(t, 0.5, a.Confidence)
	assert.Equal(t, Recommendation(models.RiskMedium), a.Recommendation)
}

func TestAssessNoFactors(t *testing.T) {
	a := Assess(models.RiskContext{At: at(12, 11)}, nil)
	assert.Zero(t, a.Score)
	assert.Equal(t, models.RiskLow, a.Level)
	assert.Empty(t, a.Factors)
	assert.Equal(t, "unknown", a.LikelyFailure)
	assert.Equal(t, "Monitor pipeline closely", a.Prevention)
}

func TestAssessArgmaxDrivesNarrative(t *testing.T) {
	a := Assess(models.RiskContext{At: at(11, 8), RecentCommits: 12}, nil)

	require.Len(t, a.Factors, 2)
	assert.Equal(t, round3(0.2*1.4+0.3*1.6), a.Score)
	assert.Equal(t, models.RiskHigh, a.Level)
	assert.Equal(t, "syntax_error", a.LikelyFailure)
	assert.Equal(t, "Run local tests before pushing", a.Prevention)

	a = Assess(models.RiskContext{At: at(11, 8)}, nil)
	assert.Equal(t, "resource_exhaustion", a.LikelyFailure)
}

func TestAssessScoreIsCapped(t *testing.T) {
	var history []models.PipelineRecord
	for i := 0; i < 10; i++ {
		history = append(history, models.PipelineRecord{Status: "failed", CreatedAt: at(1, 2), Duration: time.Hour})
	}
	// Friday 02:00 is late night; every historical failure happened at 02:00.
	a := Assess(models.RiskContext{At: at(8, 2), RecentCommits: 20}, history)

	assert.Equal(t, 1.0, a.Score)
	assert.Equal(t, models.RiskCritical, a.Level)
	assert.Equal(t, 0.6, a.Confidence)

	names := make([]string, 0, len(a.Factors))
	for _, f := range a.Factors {
		names = append(names, f.Name)
	}
	assert.Equal(t, []string{"late_night_deployment", "rapid_commits", "high_historical_failure_rate", "high_failure_hour"}, names)
}

func TestAssessLongPipelinesDoNotAddScore(t *testing.T) {
	var history []models.PipelineRecord
	for i := 0; i < 10; i++ {
		history = append(history, models.PipelineRecord{Status: "success", CreatedAt: at(1, 10), Duration: 40 * time.Minute})
	}
	// Friday 16:00.
	a := Assess(models.RiskContext{At: at(8, 16)}, history)

	require.Len(t, a.Factors, 1)
	assert.Equal(t, "friday_deployment", a.Factors[0].Name)
	assert.Equal(t, 0.375, a.Score)
	assert.Equal(t, models.RiskMedium, a.Level)

	fp := AnalyzePatterns(history, time.UTC)
	assert.Contains(t, fp.Insights, "🐢 Pipelines average 40 minutes; split long jobs or cache build artifacts")
}

func TestLevelBands(t *testing.T) {
	assert.Equal(t, models.RiskLow, Level(0.29))
	assert.Equal(t, models.RiskMedium, Level(0.3))
	assert.Equal(t, models.RiskMedium, Level(0.69))
	assert.Equal(t, models.RiskHigh, Level(0.7))
	assert.Equal(t, models.RiskCritical, Level(0.85))
}

func TestConfidenceBands(t *testing.T) {
	for n, want := range map[int]float64{5: 0.6, 20: 0.7, 50: 0.8, 100: 0.9} {
		fp := &models.FailurePatterns{TotalAnalyzed: n}
		assert.Equal(t, want, confidence(fp), "n=%d", n)
	}
}

func TestAnalyzePatterns(t *testing.T) {
	history := []models.PipelineRecord{
		{Status: "failed", CreatedAt: at(8, 14), Duration: 40 * time.Minute, FailureReason: "script_failure"},
		{Status: "failed", CreatedAt: at(8, 14), Duration: 55 * time.Minute, FailureReason: "script_failure"},
		{Status: "failed", CreatedAt: at(11, 9), Duration: 10 * time.Minute},
		{Status: "success", CreatedAt: at(12, 10), Duration: 5 * time.Minute},
		{Status: "canceled", CreatedAt: at(12, 11)},
	}
	fp := AnalyzePatterns(history, time.UTC)

	assert.Equal(t, 5, fp.TotalAnalyzed)
	assert.Equal(t, 3, fp.FailedCount)
	assert.Equal(t, 1, fp.SuccessCount)
	assert.InDelta(t, 0.6, fp.FailureRate, 1e-9)
	assert.Equal(t, map[int]int{14: 2, 9: 1}, fp.FailureByHour)
	assert.Equal(t, map[string]int{"Friday": 2, "Monday": 1}, fp.FailureByWeekday)
	assert.Equal(t, []models.ReasonCount{{Reason: "script_failure", Count: 2}, {Reason: "unknown", Count: 1}}, fp.FailureReasons)

	require.NotNil(t, fp.Duration)
	assert.Equal(t, 2, fp.Duration.LongPipelines)
	assert.InDelta(t, 0.25, fp.Duration.TimeoutRisk, 1e-9)
	assert.InDelta(t, 1500, fp.Duration.MedianSeconds, 1e-9)
	assert.InDelta(t, 3300, fp.Duration.MaxSeconds, 1e-9)

	assert.Equal(t, []string{
		"⚠️ High failure rate: 60.0% of pipelines fail",
		"🕐 Most failures occur at 14:00 (2 failures)",
		"⏱️ 25.0% of pipelines risk timeout",
		"🔍 Most common failure: script_failure (2 times)",
	}, fp.Insights)
}

func TestAnalyzePatternsEmpty(t *testing.T) {
	fp := AnalyzePatterns(nil, nil)
	assert.Zero(t, fp.TotalAnalyzed)
	assert.Nil(t, fp.Duration)
	assert.Empty(t, fp.Insights)
}

func TestRenderComment(t *testing.T) {
	a := Assess(models.RiskContext{At: at(8, 16)}, nil)
	body := RenderComment("group/app", a)

	assert.Contains(t, body, "**Project:** group/app")
	assert.Contains(t, body, "**Risk Level:** MEDIUM (37.5%)")
	assert.Contains(t, body, "**Prediction:** General Failure likely")
	assert.Contains(t, body, "- **Friday Deployment**: Friday afternoon deployments are risky")
	assert.Contains(t, body, "→ *Mitigation*: Deploy on Monday morning instead")
	assert.Contains(t, body, "**🤖 Confidence:** 50%")
}
