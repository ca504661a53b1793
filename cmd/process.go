package cmd

import (
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/pipeline-guardian/internal/guardian"
)

var (
	processProject  string
	processPipeline int64
	processRef      string
	processSHA      string
	processBranch   string
	processStatus   string
)

var processCmd = &cobra.Command{
	Use:   "process",
	Short: "Handle one pipeline as if its webhook had arrived",
	Long: `Runs the full failure workflow for a single pipeline on the configured
host: failed jobs are classified, then retried, fixed through a merge
request or commented on, exactly as the webhook receiver would.

Useful for replaying a missed webhook:
  guardian process --project 42 --pipeline 1234 --ref main --sha abc123`,
	RunE: runProcess,
}

func init() {
	processCmd.Flags().StringVar(&processProject, "project", "", "project ID or owner/repo (required)")
	processCmd.Flags().Int64Var(&processPipeline, "pipeline", 0, "pipeline or workflow run ID (required)")
	processCmd.Flags().StringVar(&processRef, "ref", "", "branch the pipeline ran on")
	processCmd.Flags().StringVar(&processSHA, "sha", "", "commit the pipeline ran on")
	processCmd.Flags().StringVar(&processBranch, "target-branch", "", "branch fix merge requests target (default: --ref)")
	processCmd.Flags().StringVar(&processStatus, "status", guardian.StatusFailed, "pipeline status to process as")
	_ = processCmd.MarkFlagRequired("project")
	_ = processCmd.MarkFlagRequired("pipeline")
}

func runProcess(cmd *cobra.Command, _ []string) error {
	if processPipeline <= 0 {
		return errors.New("--pipeline must be a positive ID")
	}
	a, err := newApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.close()
	if err := a.cfg.Validate(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := a.connect(); err != nil {
		return err
	}

	proc := a.processor()
	if _, err := proc.RestoreFixes(cmd.Context()); err != nil {
		a.logger.Warn("could not restore recent fixes", "error", err)
	}
	summary := proc.HandlePipelineEvent(cmd.Context(), guardian.PipelineEvent{
		Provider:      a.scm.Name(),
		ProjectID:     processProject,
		PipelineID:    processPipeline,
		Status:        processStatus,
		Ref:           processRef,
		CommitSHA:     processSHA,
		DefaultBranch: processBranch,
	})

	out := cmd.OutOrStdout()
	if ok, err := structured(out, summary); ok {
		return err
	}
	printSummary(out, summary)
	if summary.Status == guardian.SummaryError {
		return errors.New(summary.Error)
	}
	return nil
}

func printSummary(out io.Writer, s guardian.Summary) {
	fmt.Fprintln(out, headerStyle.Render(fmt.Sprintf("Pipeline %d (%s)", s.PipelineID, s.ProjectID)))
	field(out, "Status", s.Status)
	if s.Reason != "" {
		field(out, "Reason", s.Reason)
	}
	if s.Status == guardian.SummaryProcessed {
		field(out, "Analyzed", s.Analyzed)
		field(out, "Retried", s.Retried)
		field(out, "MRs created", s.MRsCreated)
		field(out, "Existing fixes", s.ExistingFixes)
		field(out, "Commented", s.Commented)
	}
	for _, j := range s.Jobs {
		line := fmt.Sprintf("%-24s %-14s %s", j.JobName, j.Category, j.Outcome)
		switch j.Outcome {
		case guardian.OutcomeFailed:
			line = errorStyle.Render(line) + " " + j.Reason
		case guardian.OutcomeMRCreated, guardian.OutcomeRetried:
			line = successStyle.Render(line) + " " + j.URL
		default:
			line += " " + dimStyle.Render(firstNonEmptyArg(j.URL, j.Reason))
		}
		fmt.Fprintln(out, "  "+line)
	}
	if s.Risk != nil {
		field(out, "Risk", levelStyle(s.Risk.Level).Render(fmt.Sprintf("%s (%.2f)", s.Risk.Level, s.Risk.Score)))
	}
}
