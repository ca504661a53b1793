package ai

import (
	"fmt"

	"github.com/tmc/langchaingo/llms/anthropic"

	"github.com/CosmoTheDev/pipeline-guardian/internal/config"
)

const anthropicDefaultModel = "claude-3-5-haiku-latest"

// NewAnthropic creates an oracle backed by the Anthropic Messages API.
func NewAnthropic(cfg config.AIConfig) (*LLMOracle, error) {
	model := cfg.Model
	if model == "" {
		model = anthropicDefaultModel
	}
	llm, err := anthropic.New(
		anthropic.WithToken(cfg.AnthropicKey),
		anthropic.WithModel(model),
	)
	if err != nil {
		return nil, fmt.Errorf("create anthropic model: %w", err)
	}
	probe := httpProbe("https://api.anthropic.com/v1/models", map[string]string{
		"x-api-key":         cfg.AnthropicKey,
		"anthropic-version": "2023-06-01",
	})
	return newLLMOracle("anthropic", model, llm, probe), nil
}
