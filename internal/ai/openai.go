package ai

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/tmc/langchaingo/llms/openai"

	"github.com/CosmoTheDev/pipeline-guardian/internal/config"
)

const (
	defaultOpenAIBase  = "https://api.openai.com/v1"
	defaultOpenAIModel = "gpt-4o-mini"
)

// NewOpenAI creates an OpenAI-backed oracle from cfg. BaseURL may point at
// any OpenAI-compatible server (Azure OpenAI, LM Studio, proxies).
func NewOpenAI(cfg config.AIConfig) (*LLMOracle, error) {
	base := cfg.BaseURL
	if base == "" {
		base = defaultOpenAIBase
	}
	u, err := url.Parse(base)
	if err != nil {
		return nil, fmt.Errorf("invalid OpenAI base URL: %w", err)
	}
	if u.Scheme != "https" && u.Scheme != "http" {
		return nil, fmt.Errorf("invalid OpenAI base URL scheme %q", u.Scheme)
	}
	base = strings.TrimRight(base, "/")

	model := cfg.Model
	if model == "" {
		model = defaultOpenAIModel
	}
	llm, err := openai.New(
		openai.WithToken(cfg.OpenAIKey),
		openai.WithModel(model),
		openai.WithBaseURL(base),
	)
	if err != nil {
		return nil, fmt.Errorf("create openai model: %w", err)
	}
	probe := httpProbe(base+"/models", map[string]string{"Authorization": "Bearer " + cfg.OpenAIKey})
	return newLLMOracle("openai", model, llm, probe), nil
}
