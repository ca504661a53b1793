package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/pipeline-guardian/internal/ai"
	"github.com/CosmoTheDev/pipeline-guardian/internal/config"
	"github.com/CosmoTheDev/pipeline-guardian/internal/database"
	"github.com/CosmoTheDev/pipeline-guardian/internal/notify"
	"github.com/CosmoTheDev/pipeline-guardian/internal/repository"
)

var (
	doctorCheckHost bool
	doctorProject   string
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Verify configuration, credentials and database",
	Long: `Checks that the configuration is valid, the database can be reached and
migrated, the AI provider is usable and the source-control token is set.

Use --check-host to also call the source-control API with the token.`,
	RunE: runDoctor,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorCheckHost, "check-host", false,
		"list one page of pipelines to prove the token works (needs --project)")
	doctorCmd.Flags().StringVar(&doctorProject, "project", "", "project used by --check-host")
}

type checkResult struct {
	name   string
	status string // ok | warn | fail
	detail string
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	results := []checkResult{checkConfig(cfg), checkDatabase(ctx, cfg), checkAI(cfg)}
	results = append(results, checkHost(ctx, cfg), checkWebhookSecrets(cfg))
	results = append(results, checkSchedules(cfg)...)
	results = append(results, checkNotify(cfg))

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, headerStyle.Render("guardian doctor"))
	allOK := true
	for _, r := range results {
		var status string
		switch r.status {
		case "ok":
			status = successStyle.Render("OK")
		case "warn":
			status = warnStyle.Render("WARN")
		default:
			status = errorStyle.Render("FAIL")
			allOK = false
		}
		fmt.Fprintf(out, "%-22s %s %s\n", r.name+" ", status, dimStyle.Render(r.detail))
	}

	fmt.Fprintln(out)
	if allOK {
		fmt.Fprintln(out, successStyle.Render("All checks passed. guardian is ready."))
		return nil
	}
	fmt.Fprintln(out, warnStyle.Render("Some checks failed. Run 'guardian config edit' to fix them."))
	return fmt.Errorf("doctor found problems")
}

func checkConfig(cfg *config.Config) checkResult {
	if err := cfg.Validate(); err != nil {
		return checkResult{"Configuration", "fail", err.Error()}
	}
	return checkResult{"Configuration", "ok", "provider " + cfg.Guardian.Provider}
}

func checkDatabase(ctx context.Context, cfg *config.Config) checkResult {
	db, err := database.Open(ctx, cfg.Database)
	if err != nil {
		return checkResult{"Database", "fail", err.Error()}
	}
	defer db.Close()
	where := cfg.Database.Path
	if db.Driver() == "mysql" {
		where = "dsn configured"
	}
	return checkResult{"Database", "ok", db.Driver() + ": " + where}
}

func checkAI(cfg *config.Config) checkResult {
	oracle, err := ai.New(cfg.AI)
	if err != nil {
		return checkResult{"AI provider", "fail", err.Error()}
	}
	if !ai.IsConfigured(oracle) {
		return checkResult{"AI provider", "warn", "disabled, keyword classification only"}
	}
	return checkResult{"AI provider", "ok", fmt.Sprintf("%s / %s", oracle.Name(), cfg.AI.Model)}
}

func checkHost(ctx context.Context, cfg *config.Config) checkResult {
	name := "Source control"
	scm, err := repository.New(cfg.Guardian.Provider, cfg)
	if err != nil {
		return checkResult{name, "fail", err.Error()}
	}
	if !doctorCheckHost {
		return checkResult{name, "ok", scm.Name() + " token set"}
	}
	if doctorProject == "" {
		return checkResult{name, "warn", "--check-host needs --project"}
	}
	if _, err := scm.ListPipelines(ctx, doctorProject, "", 1); err != nil {
		return checkResult{name, "fail", err.Error()}
	}
	return checkResult{name, "ok", scm.Name() + " reachable, " + doctorProject + " readable"}
}

// checkWebhookSecrets warns when deliveries for the active provider are
// accepted unauthenticated.
func checkWebhookSecrets(cfg *config.Config) checkResult {
	name := "Webhook secret"
	configured := 0
	switch cfg.Guardian.Provider {
	case "github":
		for _, g := range cfg.Git.GitHub {
			if g.WebhookSecret != "" {
				configured++
			}
		}
	default:
		for _, g := range cfg.Git.GitLab {
			if g.WebhookSecret != "" {
				configured++
			}
		}
	}
	if configured == 0 {
		return checkResult{name, "warn", "none set, deliveries are not verified"}
	}
	return checkResult{name, "ok", fmt.Sprintf("%d configured", configured)}
}

func checkSchedules(cfg *config.Config) []checkResult {
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor)
	var out []checkResult
	for _, s := range []struct{ name, expr string }{
		{"Sweep schedule", cfg.Guardian.SweepSchedule},
		{"Cleanup schedule", cfg.Guardian.CleanupSchedule},
	} {
		if s.expr == "" {
			out = append(out, checkResult{s.name, "warn", "disabled"})
			continue
		}
		if _, err := parser.Parse(s.expr); err != nil {
			out = append(out, checkResult{s.name, "fail", err.Error()})
			continue
		}
		out = append(out, checkResult{s.name, "ok", s.expr})
	}
	return out
}

func checkNotify(cfg *config.Config) checkResult {
	d := notify.NewDispatcher(cfg.Notify)
	if !d.IsAnyConfigured() {
		return checkResult{"Notifications", "warn", "no channels configured"}
	}
	return checkResult{"Notifications", "ok", fmt.Sprint(d.Channels())}
}
