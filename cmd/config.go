package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"os/exec"

	"github.com/spf13/cobra"

	"github.com/CosmoTheDev/pipeline-guardian/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "View and manage guardian configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the current configuration (secrets redacted)",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := config.Load(cfgFile)
		if err != nil {
			return err
		}
		redact(cfg)
		out := cmd.OutOrStdout()
		if ok, err := structured(out, cfg); ok {
			return err
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(cfg)
	},
}

var configPathCmd = &cobra.Command{
	Use:   "path",
	Short: "Print the path to the config file",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.ConfigPath(cfgFile)
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), p)
		return nil
	},
}

var configSetCmd = &cobra.Command{
	Use:   "set <key> <value>",
	Short: "Set a single config value (e.g. guardian.auto_fix false)",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.ConfigPath(cfgFile)
		if err != nil {
			return err
		}
		if err := config.Set(p, args[0], args[1]); err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), successStyle.Render(fmt.Sprintf("Set %s in %s", args[0], p)))
		return nil
	},
}

var configEditCmd = &cobra.Command{
	Use:   "edit",
	Short: "Open the config file in $EDITOR",
	RunE: func(cmd *cobra.Command, args []string) error {
		p, err := config.ConfigPath(cfgFile)
		if err != nil {
			return err
		}
		editor := os.Getenv("EDITOR")
		if editor == "" {
			editor = "nano"
		}
		fmt.Printf("Opening %s with %s...\n", p, editor)
		c := exec.Command(editor, p) // #nosec G204 -- editor is from $EDITOR env var, intentional user-controlled binary
		c.Stdin = os.Stdin
		c.Stdout = os.Stdout
		c.Stderr = os.Stderr
		return c.Run()
	},
}

func init() {
	configCmd.AddCommand(configShowCmd, configPathCmd, configSetCmd, configEditCmd)
}

// redact masks credentials before the config is printed.
func redact(cfg *config.Config) {
	mask := func(s *string, placeholder string) {
		if *s != "" {
			*s = placeholder
		}
	}
	mask(&cfg.AI.OpenAIKey, "sk-***")
	mask(&cfg.AI.AnthropicKey, "sk-ant-***")
	mask(&cfg.AI.ZAIKey, "***")
	mask(&cfg.Database.DSN, "***")
	for i := range cfg.Git.GitHub {
		mask(&cfg.Git.GitHub[i].Token, "ghp-***")
		mask(&cfg.Git.GitHub[i].WebhookSecret, "***")
	}
	for i := range cfg.Git.GitLab {
		mask(&cfg.Git.GitLab[i].Token, "glpat-***")
		mask(&cfg.Git.GitLab[i].WebhookSecret, "***")
	}
	mask(&cfg.Notify.Telegram.BotToken, "tg-***")
	mask(&cfg.Notify.Email.Password, "***")
	mask(&cfg.Notify.Webhook.Secret, "***")
	mask(&cfg.Notify.Slack.WebhookURL, "https://hooks.slack.com/***")
}
