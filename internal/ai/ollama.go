package ai

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms/ollama"

	"github.com/CosmoTheDev/pipeline-guardian/internal/config"
)

const (
	defaultOllamaURL   = "http://localhost:11434"
	defaultOllamaModel = "llama3.2"
)

// NewOllama creates an oracle backed by a local Ollama server.
// Configure with: ai.provider = "ollama", ai.ollama_url = "http://localhost:11434"
func NewOllama(cfg config.AIConfig) (*LLMOracle, error) {
	base := cfg.OllamaURL
	if base == "" {
		base = defaultOllamaURL
	}
	base = strings.TrimRight(base, "/")
	model := cfg.Model
	if model == "" {
		model = defaultOllamaModel
	}
	llm, err := ollama.New(
		ollama.WithModel(model),
		ollama.WithServerURL(base),
	)
	if err != nil {
		return nil, fmt.Errorf("create ollama model: %w", err)
	}
	return newLLMOracle("ollama", model, llm, httpProbe(base+"/api/tags", nil)), nil
}
