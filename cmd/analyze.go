package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/pipeline-guardian/internal/remediation"
	"github.com/CosmoTheDev/pipeline-guardian/internal/repository"
	"github.com/CosmoTheDev/pipeline-guardian/models"
)

var (
	analyzeJobName string
	analyzeProject string
	analyzeRepoDir string
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze [log-file]",
	Short: "Classify a job log locally and show the remediation plan",
	Long: `Reads a CI job log (from a file, or stdin when the argument is "-" or
omitted), classifies it and prints the plan guardian would follow. Nothing
is sent to the source-control host.

With --repo-dir, a planned patch is applied to a copy of the target file
from that checkout and the patched content is printed.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	analyzeCmd.Flags().StringVar(&analyzeJobName, "job-name", "", "job name used as a language hint")
	analyzeCmd.Flags().StringVar(&analyzeProject, "project", "local", "project ID used in the dedup key")
	analyzeCmd.Flags().StringVar(&analyzeRepoDir, "repo-dir", "", "checkout to preview the patch against")
}

// analyzeResult is the structured output of analyze.
type analyzeResult struct {
	Analysis models.ErrorAnalysis `json:"analysis"          yaml:"analysis"`
	Plan     models.FixPlan       `json:"plan"              yaml:"plan"`
	Preview  string               `json:"preview,omitempty" yaml:"preview,omitempty"`
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	logText, err := readLog(cmd.InOrStdin(), args)
	if err != nil {
		return err
	}
	if strings.TrimSpace(logText) == "" {
		return errors.New("log is empty")
	}

	a, err := newApp(cmd.Context(), false)
	if err != nil {
		return err
	}
	defer a.close()

	analysis := a.classifier.Classify(cmd.Context(), logText, analyzeJobName)
	planner := remediation.NewPlanner(a.cache, remediation.WithMinConfidence(a.cfg.Guardian.MinFixConfidence))
	res := analyzeResult{
		Analysis: analysis,
		Plan:     planner.Plan(analysis, remediation.PlanContext{ProjectID: analyzeProject}),
	}
	if analyzeRepoDir != "" && res.Plan.Patch != nil {
		preview, err := previewPatch(analyzeRepoDir, res.Plan.Patch)
		if err != nil {
			return err
		}
		res.Preview = preview
	}

	out := cmd.OutOrStdout()
	if ok, err := structured(out, res); ok {
		return err
	}

	job := models.JobFailure{ProjectID: analyzeProject, JobName: firstNonEmptyArg(analyzeJobName, "local")}
	fmt.Fprintln(out, remediation.AnalysisComment(job, analysis, res.Plan))
	field(out, "Plan", res.Plan.Action)
	if analysis.OracleErr != nil {
		field(out, "Oracle", dimStyle.Render("keyword fallback: "+analysis.OracleErr.Error()))
	}
	if p := res.Plan.Patch; p != nil {
		field(out, "Patch file", p.FilePath)
		field(out, "Operation", p.Operation)
		field(out, "Commit", p.CommitMessage)
		if res.Preview != "" {
			fmt.Fprintln(out, headerStyle.Render("\nPatched "+p.FilePath))
			fmt.Fprintln(out, res.Preview)
		} else {
			fmt.Fprintln(out, dimStyle.Render("\n"+p.Content))
		}
	}
	return nil
}

// readLog reads the log from the named file or stdin, keeping the tail.
func readLog(stdin io.Reader, args []string) (string, error) {
	var r io.Reader = stdin
	if len(args) == 1 && args[0] != "-" {
		f, err := os.Open(args[0]) // #nosec G304 -- user-supplied log path
		if err != nil {
			return "", fmt.Errorf("opening log: %w", err)
		}
		defer f.Close()
		r = f
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("reading log: %w", err)
	}
	if len(data) > repository.MaxTraceBytes {
		data = data[len(data)-repository.MaxTraceBytes:]
	}
	return string(data), nil
}

// previewPatch applies p to the file in dir without writing it back.
func previewPatch(dir string, p *models.Patch) (string, error) {
	path := filepath.Join(dir, filepath.FromSlash(p.FilePath))
	current, err := os.ReadFile(path) // #nosec G304 -- path is inside the user-supplied checkout
	exists := err == nil
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("reading %s: %w", path, err)
	}
	updated, _, err := remediation.ApplyPatch(string(current), exists, p)
	if errors.Is(err, remediation.ErrNoChange) {
		return "(fix already present)", nil
	}
	if err != nil {
		return "", fmt.Errorf("applying patch to %s: %w", p.FilePath, err)
	}
	return updated, nil
}

func firstNonEmptyArg(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
