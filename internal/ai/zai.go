package ai

import (
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms/openai"

	"github.com/CosmoTheDev/pipeline-guardian/internal/config"
)

const (
	zaiCodingEndpoint = "https://api.z.ai/api/coding/paas/v4"
	zaiDefaultModel   = "glm-4.6"
)

// NewZAI creates an oracle for Z.AI's OpenAI-compatible API.
func NewZAI(cfg config.AIConfig) (*LLMOracle, error) {
	base := cfg.BaseURL
	if base == "" {
		base = zaiCodingEndpoint
	}
	base = strings.TrimRight(base, "/")
	model := cfg.Model
	if model == "" {
		model = zaiDefaultModel
	}
	llm, err := openai.New(
		openai.WithToken(cfg.ZAIKey),
		openai.WithModel(model),
		openai.WithBaseURL(base),
	)
	if err != nil {
		return nil, fmt.Errorf("create zai model: %w", err)
	}
	probe := httpProbe(base+"/models", map[string]string{"Authorization": "Bearer " + cfg.ZAIKey})
	return newLLMOracle("zai", model, llm, probe), nil
}
