package config

import "time"

// Config is the root configuration structure for guardian.
// Serialised to ~/.guardian/config.json.
type Config struct {
	Database DatabaseConfig `mapstructure:"database" json:"database"`
	AI       AIConfig       `mapstructure:"ai"       json:"ai"`
	Git      GitConfig      `mapstructure:"git"      json:"git"`
	Server   ServerConfig   `mapstructure:"server"   json:"server"`
	Guardian GuardianConfig `mapstructure:"guardian" json:"guardian"`
	Notify   NotifyConfig   `mapstructure:"notify"   json:"notify"`
	Logging  LoggingConfig  `mapstructure:"logging"  json:"logging"`
}

// DatabaseConfig controls the storage backend.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "mysql".
	Driver string `mapstructure:"driver" json:"driver"`
	// Path is the SQLite file path (expanded at runtime).
	Path string `mapstructure:"path"   json:"path"`
	// DSN is the MySQL data source name (used when Driver == "mysql").
	DSN string `mapstructure:"dsn"    json:"dsn"`
}

// AIConfig selects the model that classifies failure logs.
type AIConfig struct {
	// Provider is "openai", "anthropic", "ollama", "zai" or "" for keyword-only classification.
	Provider     string `mapstructure:"provider"          json:"provider"`
	Model        string `mapstructure:"model"             json:"model"`
	OpenAIKey    string `mapstructure:"openai_api_key"    json:"openai_api_key"`
	AnthropicKey string `mapstructure:"anthropic_api_key" json:"anthropic_api_key"`
	ZAIKey       string `mapstructure:"zai_api_key"       json:"zai_api_key"`
	// BaseURL overrides the OpenAI endpoint (Azure OpenAI, LM Studio, proxies).
	BaseURL   string `mapstructure:"base_url"   json:"base_url"`
	OllamaURL string `mapstructure:"ollama_url" json:"ollama_url"`
	// Fallback lists providers tried in order when the primary fails.
	Fallback []string `mapstructure:"fallback" json:"fallback"`
}

// GitConfig holds credentials for each supported git hosting platform.
type GitConfig struct {
	GitHub []GitHubConfig `mapstructure:"github" json:"github"`
	GitLab []GitLabConfig `mapstructure:"gitlab" json:"gitlab"`
}

// GitHubConfig holds credentials for a single GitHub instance.
type GitHubConfig struct {
	Token string `mapstructure:"token" json:"token"`
	// Host allows enterprise GitHub (e.g. github.mycompany.com).
	Host string `mapstructure:"host"  json:"host"`
	// WebhookSecret verifies X-Hub-Signature-256.
	WebhookSecret string `mapstructure:"webhook_secret" json:"webhook_secret"`
}

// GitLabConfig holds credentials for a single GitLab instance.
type GitLabConfig struct {
	Token string `mapstructure:"token" json:"token"`
	Host  string `mapstructure:"host"  json:"host"`
	// WebhookSecret is compared against X-Gitlab-Token.
	WebhookSecret string `mapstructure:"webhook_secret" json:"webhook_secret"`
}

// ServerConfig controls the webhook listener.
type ServerConfig struct {
	Host string `mapstructure:"host" json:"host"`
	// Port is the HTTP port (default: 8080).
	Port int `mapstructure:"port" json:"port"`
	// ProcessTimeout bounds the background processing of one webhook delivery.
	ProcessTimeout time.Duration `mapstructure:"process_timeout" json:"process_timeout"`
}

// GuardianConfig controls failure analysis and remediation.
type GuardianConfig struct {
	// Provider is the default source-control host: "gitlab" or "github".
	Provider         string        `mapstructure:"provider"           json:"provider"`
	Workers          int           `mapstructure:"workers"            json:"workers"`
	PipelineCooldown time.Duration `mapstructure:"pipeline_cooldown"  json:"pipeline_cooldown"`
	FixCooldown      time.Duration `mapstructure:"fix_cooldown"       json:"fix_cooldown"`
	OracleTimeout    time.Duration `mapstructure:"oracle_timeout"     json:"oracle_timeout"`
	AutoRetry        bool          `mapstructure:"auto_retry"         json:"auto_retry"`
	AutoFix          bool          `mapstructure:"auto_fix"           json:"auto_fix"`
	CreateIssues     bool          `mapstructure:"create_issues"      json:"create_issues"`
	CommentOnCommit  bool          `mapstructure:"comment_on_commit"  json:"comment_on_commit"`
	MinFixConfidence float64       `mapstructure:"min_fix_confidence" json:"min_fix_confidence"`
	// HistoryLimit is how many recent pipelines feed the risk predictor.
	HistoryLimit int  `mapstructure:"history_limit" json:"history_limit"`
	RiskCheck    bool `mapstructure:"risk_check"    json:"risk_check"`
	// Timezone decides the hour and weekday used for risk scoring.
	Timezone        string `mapstructure:"timezone"         json:"timezone"`
	SweepSchedule   string `mapstructure:"sweep_schedule"   json:"sweep_schedule"`
	CleanupSchedule string `mapstructure:"cleanup_schedule" json:"cleanup_schedule"`
	RetentionDays   int    `mapstructure:"retention_days"   json:"retention_days"`
}

// Location resolves Timezone, falling back to the local zone.
func (g GuardianConfig) Location() *time.Location {
	if g.Timezone == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(g.Timezone)
	if err != nil {
		return time.Local
	}
	return loc
}

// NotifyConfig configures outbound notifications.
type NotifyConfig struct {
	// Events limits which event types are sent (empty = defaults).
	Events []string `mapstructure:"events" json:"events"`
	// MinSeverity drops events below this level ("" = all).
	MinSeverity string               `mapstructure:"min_severity" json:"min_severity"`
	Slack       SlackNotifyConfig    `mapstructure:"slack"    json:"slack"`
	Telegram    TelegramNotifyConfig `mapstructure:"telegram" json:"telegram"`
	Email       EmailNotifyConfig    `mapstructure:"email"    json:"email"`
	Webhook     WebhookNotifyConfig  `mapstructure:"webhook"  json:"webhook"`
}

type SlackNotifyConfig struct {
	WebhookURL string `mapstructure:"webhook_url" json:"webhook_url"`
}

type TelegramNotifyConfig struct {
	BotToken string `mapstructure:"bot_token" json:"bot_token"`
	ChatID   string `mapstructure:"chat_id"   json:"chat_id"`
}

type EmailNotifyConfig struct {
	SMTPHost string `mapstructure:"smtp_host" json:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port" json:"smtp_port"`
	Username string `mapstructure:"username"  json:"username"`
	Password string `mapstructure:"password"  json:"password"`
	From     string `mapstructure:"from"      json:"from"`
	To       string `mapstructure:"to"        json:"to"`
	UseTLS   bool   `mapstructure:"use_tls"   json:"use_tls"`
}

type WebhookNotifyConfig struct {
	URL    string `mapstructure:"url"    json:"url"`
	Secret string `mapstructure:"secret" json:"secret"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	Level string `mapstructure:"level" json:"level"`
	// Dir receives a JSON log file per run when set.
	Dir string `mapstructure:"dir" json:"dir"`
}
