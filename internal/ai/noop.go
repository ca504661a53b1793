package ai

import (
	"context"
	"errors"
)

// ErrNotConfigured is returned by Noop for every generation.
var ErrNotConfigured = errors.New("AI provider not configured; set ai.provider to openai, anthropic, ollama or zai")

// Noop is used when no AI provider is configured. Available is always false
// and Generate returns ErrNotConfigured, so classification falls back to
// keyword rules.
type Noop struct{}

func (n *Noop) Name() string                     { return "none" }
func (n *Noop) Available(_ context.Context) bool { return false }

func (n *Noop) Generate(_ context.Context, _ string) (string, error) {
	return "", ErrNotConfigured
}
