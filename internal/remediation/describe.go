package remediation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/CosmoTheDev/pipeline-guardian/models"
)

// Labels are attached to every fix merge request.
var Labels = []string{"ai-generated", "auto-fix"}

// BranchName is the source branch for a fix: ai-fix/<category>-<timestamp>.
func BranchName(category models.Category, now time.Time) string {
	return fmt.Sprintf("ai-fix/%s-%s", strings.ReplaceAll(string(category), "_", "-"), now.UTC().Format("20060102150405"))
}

// Title is the merge request title for a fix.
func Title(category models.Category) string {
	return fmt.Sprintf("AI Fix: %s Resolution", category.Title())
}

// MergeRequestDescription renders the body of a fix merge request.
func MergeRequestDescription(job models.JobFailure, a models.ErrorAnalysis, p *models.Patch) string {
	var b strings.Builder
	b.WriteString("## Automated Fix\n\n")
	b.WriteString("### Problem Detected\n")
	fmt.Fprintf(&b, "- **Error Type:** %s\n", a.Category.Title())
	fmt.Fprintf(&b, "- **Pipeline:** #%d\n", job.PipelineID)
	fmt.Fprintf(&b, "- **Job:** %s\n", job.JobName)
	fmt.Fprintf(&b, "- **Language:** %s\n", a.Language)
	if a.Details.MissingModule != "" {
		fmt.Fprintf(&b, "- **Error:** %s\n", a.Details.MissingModule)
	}
	b.WriteString("\n### AI Analysis\n")
	b.WriteString(a.Explanation)
	b.WriteString("\n\n### Applied Fix\n")
	if p != nil {
		b.WriteString(p.Description)
		fmt.Fprintf(&b, "\n\n- **File:** `%s` (%s)\n", p.FilePath, p.Operation)
		if p.Manual {
			b.WriteString("- This change documents the fix; apply it by hand before merging.\n")
		}
	}
	b.WriteString("\n### Confidence\n")
	fmt.Fprintf(&b, "- Analysis: %.0f%%\n", a.Confidence*100)
	if p != nil {
		fmt.Fprintf(&b, "- Fix: %.0f%%\n", p.Confidence*100)
	}
	b.WriteString("\n---\n*Generated automatically by Pipeline Guardian. Please review before merging.*\n")
	return b.String()
}

// IssueTitle and IssueBody describe a failure that needs a human.
func IssueTitle(job models.JobFailure, a models.ErrorAnalysis) string {
	return fmt.Sprintf("Pipeline failure needs review: %s in %s", a.Category.Title(), job.JobName)
}

func IssueBody(job models.JobFailure, a models.ErrorAnalysis, plan models.FixPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Job **%s** (#%d) in pipeline #%d failed on `%s`.\n\n", job.JobName, job.JobID, job.PipelineID, job.Ref)
	writeAnalysis(&b, a)
	if plan.Reason != "" {
		fmt.Fprintf(&b, "\n**Why no automatic action:** %s\n", plan.Reason)
	}
	return b.String()
}

// AnalysisComment is posted on the failing commit.
func AnalysisComment(job models.JobFailure, a models.ErrorAnalysis, plan models.FixPlan) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## 🤖 Pipeline Failure Analysis: `%s`\n\n", job.JobName)
	writeAnalysis(&b, a)
	switch {
	case plan.HasExistingFix():
		fmt.Fprintf(&b, "\n**Existing fix:** %s\n", plan.ExistingFix)
	case plan.Action == models.PlanRetryJob:
		b.WriteString("\n**Action:** the job was retried automatically.\n")
	case plan.Reason != "":
		fmt.Fprintf(&b, "\n**Action:** %s.\n", plan.Reason)
	}
	return b.String()
}

func writeAnalysis(b *strings.Builder, a models.ErrorAnalysis) {
	fmt.Fprintf(b, "**Category:** %s  \n", a.Category.Title())
	fmt.Fprintf(b, "**Language:** %s  \n", a.Language)
	fmt.Fprintf(b, "**Confidence:** %.0f%%\n\n", a.Confidence*100)
	fmt.Fprintf(b, "### Explanation\n%s\n\n", a.Explanation)
	fmt.Fprintf(b, "### Suggested Solution\n%s\n", a.SuggestedSolution)

	pairs := a.Details.Pairs()
	if len(pairs) == 0 {
		return
	}
	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	b.WriteString("\n### Details\n")
	for _, k := range keys {
		fmt.Fprintf(b, "- `%s`: %s\n", k, pairs[k])
	}
}
