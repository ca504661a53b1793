// Package ai provides the language-model oracle that classifies CI failure
// logs. Providers are thin langchaingo wrappers; Chain adds failover with a
// circuit breaker per provider.
package ai

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/CosmoTheDev/pipeline-guardian/internal/config"
)

// Oracle abstracts calls to a language model.
// To add a new provider:
//  1. Create a file in internal/ai/ (e.g. mymodel.go)
//  2. Implement Oracle (usually by returning an *LLMOracle)
//  3. Register in newSingle()
type Oracle interface {
	// Name returns the provider identifier (e.g. "openai", "ollama").
	Name() string

	// Available verifies the provider is reachable and configured.
	Available(ctx context.Context) bool

	// Generate sends prompt and returns the raw completion text.
	Generate(ctx context.Context, prompt string) (string, error)
}

// New returns the configured Oracle.
// If no provider or API key is set, it returns a Noop; callers should treat
// that as keyword-only classification.
// If fallback providers are configured, returns a Chain that tries them in
// order on failure with circuit breaker protection.
func New(cfg config.AIConfig) (Oracle, error) {
	primary, err := newSingle(cfg.Provider, cfg)
	if err != nil {
		return nil, err
	}

	if len(cfg.Fallback) == 0 {
		return primary, nil
	}

	chain := []Oracle{primary}
	for _, fallbackProvider := range cfg.Fallback {
		p, err := newSingle(fallbackProvider, cfg)
		if err != nil {
			slog.Warn("ai: failed to create fallback provider, skipping", "provider", fallbackProvider, "error", err)
			continue
		}
		if _, noop := p.(*Noop); noop {
			continue
		}
		chain = append(chain, p)
	}

	if len(chain) == 1 {
		return primary, nil
	}
	return NewChain(chain), nil
}

// IsConfigured reports whether o can produce completions at all.
func IsConfigured(o Oracle) bool {
	if o == nil {
		return false
	}
	_, noop := o.(*Noop)
	return !noop
}

func newSingle(provider string, cfg config.AIConfig) (Oracle, error) {
	switch provider {
	case "", "none":
		return &Noop{}, nil
	case "openai":
		if cfg.OpenAIKey == "" {
			return &Noop{}, nil
		}
		return NewOpenAI(cfg)
	case "ollama":
		return NewOllama(cfg)
	case "anthropic":
		if cfg.AnthropicKey == "" {
			return &Noop{}, nil
		}
		return NewAnthropic(cfg)
	case "zai":
		if cfg.ZAIKey == "" {
			return &Noop{}, nil
		}
		return NewZAI(cfg)
	default:
		return nil, fmt.Errorf("unsupported AI provider %q (supported: openai, ollama, anthropic, zai)", provider)
	}
}
