package cmd

import (
	"fmt"
	"io"
	"sort"

	"github.com/spf13/cobra"
)

var statsProject string

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show analysis history counters",
	RunE:  runStats,
}

func init() {
	statsCmd.Flags().StringVar(&statsProject, "project", "", "restrict to one project (default: all)")
}

func runStats(cmd *cobra.Command, _ []string) error {
	a, err := newApp(cmd.Context(), true)
	if err != nil {
		return err
	}
	defer a.close()

	st, err := a.store.Stats(cmd.Context(), statsProject)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if ok, err := structured(out, st); ok {
		return err
	}

	title := "All projects"
	if statsProject != "" {
		title = "Project " + statsProject
	}
	fmt.Fprintln(out, headerStyle.Render(title))
	field(out, "Analyses", st.TotalAnalyses)
	field(out, "Fix MRs", st.FixesCreated)
	field(out, "Pipelines", fmt.Sprintf("%d seen, %d failed", st.PipelinesSeen, st.PipelinesFailed))
	printCounts(out, "By category", st.ByCategory)
	printCounts(out, "By language", st.ByLanguage)
	printCounts(out, "By outcome", st.ByOutcome)
	if len(st.TopPatterns) > 0 {
		fmt.Fprintln(out, labelStyle.Render("Top patterns"))
		for _, p := range st.TopPatterns {
			fmt.Fprintf(out, "  %4d  %-14s %s\n", p.Occurrences, p.Category, dimStyle.Render(p.Summary))
		}
	}
	return nil
}

// printCounts prints a map sorted by descending count.
func printCounts(out io.Writer, label string, counts map[string]int) {
	if len(counts) == 0 {
		return
	}
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	fmt.Fprintln(out, labelStyle.Render(label))
	for _, k := range keys {
		fmt.Fprintf(out, "  %4d  %s\n", counts[k], k)
	}
}
