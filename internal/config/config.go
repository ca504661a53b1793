package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	DefaultConfigDir  = ".guardian"
	DefaultConfigFile = "config.json"
	DefaultDBFile     = ".guardian/guardian.db"
)

// Load reads the config file (falling back to defaults if absent) and returns
// a populated Config. The configPath flag may override the default location.
// Environment variables override keys with dots replaced by underscores:
// SERVER_PORT overrides server.port.
func Load(configPath string) (*Config, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return nil, fmt.Errorf("cannot determine home directory: %w", err)
	}

	v := viper.New()
	v.SetConfigType("json")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(filepath.Join(home, DefaultConfigDir))
	}

	setDefaults(v, home)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isNotExist(err) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	expandPaths(&cfg, home)
	return &cfg, nil
}

// Save writes the config to disk as JSON.
func Save(cfg *Config, configPath string) error {
	configPath, err := ConfigPath(configPath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(configPath), 0o700); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("serialising config: %w", err)
	}
	return os.WriteFile(configPath, data, 0o600)
}

// Set updates a single dotted key (e.g. "guardian.auto_fix") in the config
// file, creating the file when needed. Values are parsed as bool, int,
// float or duration before falling back to a string.
func Set(configPath, key, raw string) error {
	cfg, err := Load(configPath)
	if err != nil {
		return err
	}
	data, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("serialising config: %w", err)
	}
	var tree map[string]any
	if err := json.Unmarshal(data, &tree); err != nil {
		return fmt.Errorf("serialising config: %w", err)
	}

	parts := strings.Split(key, ".")
	node := tree
	for _, p := range parts[:len(parts)-1] {
		next, ok := node[p].(map[string]any)
		if !ok {
			return fmt.Errorf("unknown config section %q in %q", p, key)
		}
		node = next
	}
	leaf := parts[len(parts)-1]
	if _, ok := node[leaf]; !ok {
		return fmt.Errorf("unknown config key %q", key)
	}
	node[leaf] = parseValue(raw)

	data, err = json.Marshal(tree)
	if err != nil {
		return fmt.Errorf("serialising config: %w", err)
	}
	var updated Config
	if err := json.Unmarshal(data, &updated); err != nil {
		return fmt.Errorf("invalid value for %s: %w", key, err)
	}
	return Save(&updated, configPath)
}

func parseValue(raw string) any {
	if i, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return i
	}
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	if b, err := strconv.ParseBool(raw); err == nil {
		return b
	}
	if d, err := time.ParseDuration(raw); err == nil {
		return int64(d)
	}
	if strings.HasPrefix(raw, "[") {
		var list []any
		if json.Unmarshal([]byte(raw), &list) == nil {
			return list
		}
	}
	return raw
}

// ConfigPath returns the effective config file path.
func ConfigPath(override string) (string, error) {
	if override != "" {
		return override, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, DefaultConfigDir, DefaultConfigFile), nil
}

// Validate reports configuration that would stop the service from starting.
func (c *Config) Validate() error {
	var errs []error
	switch c.Database.Driver {
	case "sqlite", "":
	case "mysql":
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn is required for mysql"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported database.driver %q", c.Database.Driver))
	}
	switch c.Guardian.Provider {
	case "gitlab":
		if len(c.Git.GitLab) == 0 || c.Git.GitLab[0].Token == "" {
			errs = append(errs, errors.New("git.gitlab[0].token is required when guardian.provider is gitlab"))
		}
	case "github":
		if len(c.Git.GitHub) == 0 || c.Git.GitHub[0].Token == "" {
			errs = append(errs, errors.New("git.github[0].token is required when guardian.provider is github"))
		}
	default:
		errs = append(errs, fmt.Errorf("unsupported guardian.provider %q (supported: gitlab, github)", c.Guardian.Provider))
	}
	if c.Guardian.MinFixConfidence < 0 || c.Guardian.MinFixConfidence > 1 {
		errs = append(errs, errors.New("guardian.min_fix_confidence must be between 0 and 1"))
	}
	return errors.Join(errs...)
}

// setDefaults populates viper with sensible out-of-the-box values.
func setDefaults(v *viper.Viper, home string) {
	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.path", filepath.Join(home, DefaultDBFile))
	v.SetDefault("database.dsn", "")

	v.SetDefault("ai.provider", "")
	v.SetDefault("ai.model", "")
	v.SetDefault("ai.base_url", "")
	v.SetDefault("ai.ollama_url", "http://localhost:11434")

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.process_timeout", "5m")

	v.SetDefault("guardian.provider", "gitlab")
	v.SetDefault("guardian.workers", 4)
	v.SetDefault("guardian.pipeline_cooldown", "10m")
	v.SetDefault("guardian.fix_cooldown", "1h")
	v.SetDefault("guardian.oracle_timeout", "30s")
	v.SetDefault("guardian.auto_retry", true)
	v.SetDefault("guardian.auto_fix", true)
	v.SetDefault("guardian.create_issues", false)
	v.SetDefault("guardian.comment_on_commit", true)
	v.SetDefault("guardian.min_fix_confidence", 0.0)
	v.SetDefault("guardian.history_limit", 100)
	v.SetDefault("guardian.risk_check", true)
	v.SetDefault("guardian.timezone", "")
	v.SetDefault("guardian.sweep_schedule", "*/15 * * * *")
	v.SetDefault("guardian.cleanup_schedule", "0 3 * * *")
	v.SetDefault("guardian.retention_days", 30)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.dir", "")
}

// expandPaths resolves ~ in configured paths.
func expandPaths(cfg *Config, home string) {
	cfg.Database.Path = expandHome(cfg.Database.Path, home)
	cfg.Logging.Dir = expandHome(cfg.Logging.Dir, home)
}

func expandHome(path, home string) string {
	if strings.HasPrefix(path, "~/") {
		return filepath.Join(home, path[2:])
	}
	return path
}

func isNotExist(err error) bool {
	return os.IsNotExist(err) || strings.Contains(err.Error(), "no such file")
}
