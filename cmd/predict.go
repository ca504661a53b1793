package cmd

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/pipeline-guardian/internal/predictor"
)

var (
	predictProject string
	predictRef     string
	predictSHA     string
	predictAt      string
)

var predictCmd = &cobra.Command{
	Use:   "predict",
	Short: "Score the failure risk of a pipeline before it runs",
	Long: `Combines the project's recent pipeline history with timing and change
velocity into a 0..1 risk score. With --sha and guardian.comment_on_commit,
high and critical scores are also posted as a commit comment.`,
	RunE: runPredict,
}

var patternsCmd = &cobra.Command{
	Use:   "patterns",
	Short: "Summarise historical failure patterns for a project",
	RunE:  runPatterns,
}

func init() {
	for _, c := range []*cobra.Command{predictCmd, patternsCmd} {
		c.Flags().StringVar(&predictProject, "project", "", "project ID or owner/repo (required)")
		_ = c.MarkFlagRequired("project")
	}
	predictCmd.Flags().StringVar(&predictRef, "ref", "", "branch the pipeline will run on")
	predictCmd.Flags().StringVar(&predictSHA, "sha", "", "commit to comment on when risk is high")
	predictCmd.Flags().StringVar(&predictAt, "at", "", "start time to score (RFC 3339, default now)")
}

func runPredict(cmd *cobra.Command, _ []string) error {
	at := time.Now()
	if predictAt != "" {
		t, err := time.Parse(time.RFC3339, predictAt)
		if err != nil {
			return fmt.Errorf("invalid --at %q: %w", predictAt, err)
		}
		at = t
	}

	a, err := newApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.connect(); err != nil {
		return err
	}

	assessment, err := a.processor().AssessRisk(cmd.Context(), predictProject, predictRef, predictSHA, at)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if ok, err := structured(out, assessment); ok {
		return err
	}
	fmt.Fprintln(out, headerStyle.Render("Risk for "+predictProject))
	field(out, "Score", fmt.Sprintf("%.3f", assessment.Score))
	field(out, "Level", levelStyle(assessment.Level).Render(string(assessment.Level)))
	field(out, "Confidence", fmt.Sprintf("%.0f%%", assessment.Confidence*100))
	for _, f := range assessment.Factors {
		fmt.Fprintf(out, "  %s %s\n", warnStyle.Render(fmt.Sprintf("+%.2f", f.Contribution)), f.Reason)
	}
	if assessment.LikelyFailure != "" {
		field(out, "Likely failure", assessment.LikelyFailure)
	}
	if assessment.Prevention != "" {
		field(out, "Prevention", assessment.Prevention)
	}
	fmt.Fprintln(out, dimStyle.Render("\n"+predictor.Recommendation(assessment.Level)))
	return nil
}

func runPatterns(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.connect(); err != nil {
		return err
	}

	patterns, err := a.processor().Patterns(cmd.Context(), predictProject)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if ok, err := structured(out, patterns); ok {
		return err
	}
	fmt.Fprintln(out, headerStyle.Render("Failure patterns for "+predictProject))
	field(out, "Pipelines", patterns.TotalAnalyzed)
	field(out, "Failed", patterns.FailedCount)
	field(out, "Failure rate", fmt.Sprintf("%.1f%%", patterns.FailureRate*100))
	if d := patterns.Duration; d != nil {
		field(out, "Avg duration", fmt.Sprintf("%.0fs", d.AvgSeconds))
	}
	if len(patterns.FailureByWeekday) > 0 {
		days := make([]string, 0, len(patterns.FailureByWeekday))
		for d := range patterns.FailureByWeekday {
			days = append(days, d)
		}
		sort.Strings(days)
		for _, d := range days {
			fmt.Fprintf(out, "  %-10s %d\n", d, patterns.FailureByWeekday[d])
		}
	}
	for _, in := range patterns.Insights {
		fmt.Fprintln(out, "  • "+in)
	}
	return nil
}
