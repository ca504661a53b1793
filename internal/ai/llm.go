package ai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"
)

const (
	defaultMaxTokens   = 1024
	defaultTemperature = 0.1
	probeTimeout       = 5 * time.Second
)

// LLMOracle adapts a langchaingo model to Oracle.
type LLMOracle struct {
	name         string
	model        string
	llm          llms.Model
	probe        func(ctx context.Context) bool
	debug        bool
	debugPrompts bool
}

// debugEnv is GUARDIAN_AI_DEBUG: "all" (or "1"/"true") logs requests and
// prompts, "prompts" logs prompts only.
const debugEnv = "GUARDIAN_AI_DEBUG"

func parseAIDebugEnv() (debug bool, prompts bool) {
	switch strings.TrimSpace(strings.ToLower(os.Getenv(debugEnv))) {
	case "all", "1", "true":
		return true, true
	case "prompts":
		return false, true
	default:
		return false, false
	}
}

func newLLMOracle(name, model string, llm llms.Model, probe func(ctx context.Context) bool) *LLMOracle {
	debug, prompts := parseAIDebugEnv()
	return &LLMOracle{
		name:         name,
		model:        model,
		llm:          llm,
		probe:        probe,
		debug:        debug,
		debugPrompts: prompts,
	}
}

func (o *LLMOracle) Name() string { return o.name }

// Model returns the configured model name.
func (o *LLMOracle) Model() string { return o.model }

func (o *LLMOracle) Available(ctx context.Context) bool {
	if o.probe == nil {
		return true
	}
	return o.probe(ctx)
}

func (o *LLMOracle) Generate(ctx context.Context, prompt string) (string, error) {
	if o.debugPrompts {
		slog.Debug("ai: prompt", "provider", o.name, "model", o.model, "chars", len(prompt), "prompt", prompt)
	}
	start := time.Now()
	out, err := llms.GenerateFromSinglePrompt(ctx, o.llm, prompt,
		llms.WithTemperature(defaultTemperature),
		llms.WithMaxTokens(defaultMaxTokens),
	)
	if err != nil {
		return "", fmt.Errorf("%s generate: %w", o.name, err)
	}
	if o.debug {
		slog.Debug("ai: response", "provider", o.name, "model", o.model,
			"elapsed", time.Since(start).Round(time.Millisecond), "response", out)
	}
	return out, nil
}

// httpProbe reports whether GET url answers 200 with the given headers.
func httpProbe(url string, headers map[string]string) func(ctx context.Context) bool {
	client := &http.Client{Timeout: probeTimeout}
	return func(ctx context.Context) bool {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return false
		}
		for k, v := range headers {
			req.Header.Set(k, v)
		}
		resp, err := client.Do(req) // #nosec G107 -- url comes from trusted local config
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}
}
