package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags.
var Version = "dev"

var (
	cfgFile      string
	verbose      bool
	outputFormat string
)

// rootCmd is the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "guardian",
	Short: "CI/CD pipeline failure analysis and automated remediation",
	Long: `guardian watches CI/CD pipelines on GitLab and GitHub. When a pipeline
fails it reads each failed job's log, classifies the failure, and then
retries the job, opens a fix merge request or leaves an analysis comment.
Before risky pipelines run it predicts the chance of failure.

Get started:
  guardian config path   Show where the config file lives
  guardian doctor        Verify credentials, database and AI provider
  guardian serve         Start the webhook receiver
  guardian analyze       Classify a log file locally
  guardian predict       Score the failure risk of a pipeline`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute is the entry point called from main.go.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: ")+err.Error())
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "",
		"config file (default: ~/.guardian/config.json)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false,
		"enable verbose/debug output")
	rootCmd.PersistentFlags().StringVarP(&outputFormat, "output", "o", "text",
		"output format: text, json or yaml")

	rootCmd.Version = Version
	rootCmd.AddCommand(
		serveCmd,
		analyzeCmd,
		processCmd,
		predictCmd,
		patternsCmd,
		statsCmd,
		configCmd,
		doctorCmd,
	)
}
