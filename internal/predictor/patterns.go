package predictor

import (
	"fmt"
	"sort"
	"time"

	"github.com/CosmoTheDev/pipeline-guardian/models"
)

const (
	longPipelineSeconds    = 1800
	timeoutRiskSeconds     = 3000
	insightFailureRate     = 0.3
	insightTimeoutFraction = 0.1
)

// AnalyzePatterns aggregates historical pipelines into failure statistics.
// Hours and weekdays are taken in loc; a nil loc means UTC.
func AnalyzePatterns(history []models.PipelineRecord, loc *time.Location) models.FailurePatterns {
	if loc == nil {
		loc = time.UTC
	}
	fp := models.FailurePatterns{
		TotalAnalyzed:    len(history),
		FailureByHour:    map[int]int{},
		FailureByWeekday: map[string]int{},
	}
	if len(history) == 0 {
		return fp
	}

	reasons := map[string]int{}
	var durations []float64
	for _, p := range history {
		if p.Duration > 0 {
			durations = append(durations, p.Duration.Seconds())
		}
		switch {
		case p.Failed():
			fp.FailedCount++
		case p.Status == "success":
			fp.SuccessCount++
			continue
		default:
			continue
		}
		reason := p.FailureReason
		if reason == "" {
			reason = "unknown"
		}
		reasons[reason]++
		if !p.CreatedAt.IsZero() {
			at := p.CreatedAt.In(loc)
			fp.FailureByHour[at.Hour()]++
			fp.FailureByWeekday[at.Weekday().String()]++
		}
	}
	fp.FailureRate = float64(fp.FailedCount) / float64(len(history))

	for r, n := range reasons {
		fp.FailureReasons = append(fp.FailureReasons, models.ReasonCount{Reason: r, Count: n})
	}
	sort.Slice(fp.FailureReasons, func(i, j int) bool {
		a, b := fp.FailureReasons[i], fp.FailureReasons[j]
		if a.Count != b.Count {
			return a.Count > b.Count
		}
		return a.Reason < b.Reason
	})

	fp.Duration = durationStats(durations)
	fp.Insights = insights(fp)
	return fp
}

func durationStats(d []float64) *models.DurationStats {
	if len(d) == 0 {
		return nil
	}
	sorted := append([]float64(nil), d...)
	sort.Float64s(sorted)

	var sum float64
	st := &models.DurationStats{MaxSeconds: sorted[len(sorted)-1]}
	risky := 0
	for _, v := range sorted {
		sum += v
		if v > longPipelineSeconds {
			st.LongPipelines++
		}
		if v > timeoutRiskSeconds {
			risky++
		}
	}
	st.AvgSeconds = sum / float64(len(sorted))
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		st.MedianSeconds = (sorted[mid-1] + sorted[mid]) / 2
	} else {
		st.MedianSeconds = sorted[mid]
	}
	st.TimeoutRisk = float64(risky) / float64(len(sorted))
	return st
}

func insights(fp models.FailurePatterns) []string {
	var out []string
	if fp.FailureRate > insightFailureRate {
		out = append(out, fmt.Sprintf("⚠️ High failure rate: %.1f%% of pipelines fail", fp.FailureRate*100))
	}
	if hour, n, ok := worstHour(fp.FailureByHour); ok {
		out = append(out, fmt.Sprintf("🕐 Most failures occur at %d:00 (%d failures)", hour, n))
	}
	if fp.Duration != nil && fp.Duration.TimeoutRisk > insightTimeoutFraction {
		out = append(out, fmt.Sprintf("⏱️ %.1f%% of pipelines risk timeout", fp.Duration.TimeoutRisk*100))
	}
	if fp.Duration != nil && fp.Duration.AvgSeconds > longPipelineSeconds {
		out = append(out, fmt.Sprintf("🐢 Pipelines average %.0f minutes; split long jobs or cache build artifacts", fp.Duration.AvgSeconds/60))
	}
	if len(fp.FailureReasons) > 0 {
		top := fp.FailureReasons[0]
		out = append(out, fmt.Sprintf("🔍 Most common failure: %s (%d times)", top.Reason, top.Count))
	}
	return out
}

// worstHour picks the hour with most failures, earliest hour on ties.
func worstHour(byHour map[int]int) (hour, count int, ok bool) {
	for h, n := range byHour {
		if !ok || n > count || (n == count && h < hour) {
			hour, count, ok = h, n, true
		}
	}
	return hour, count, ok
}
