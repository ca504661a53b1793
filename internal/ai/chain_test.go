package ai

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CosmoTheDev/pipeline-guardian/internal/config"
)

type stubOracle struct {
	name      string
	out       string
	err       error
	available bool
	calls     int
}

func (s *stubOracle) Name() string                   { return s.name }
func (s *stubOracle) Available(context.Context) bool { return s.available }
func (s *stubOracle) Generate(context.Context, string) (string, error) {
	s.calls++
	return s.out, s.err
}

func TestChainFailsOver(t *testing.T) {
	primary := &stubOracle{name: "openai", err: errors.New("status 503: overloaded")}
	backup := &stubOracle{name: "ollama", out: `{"error_category":"timeout"}`}
	c := NewChain([]Oracle{primary, backup})

	out, err := c.Generate(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, `{"error_category":"timeout"}`, out)

	name, fallback := c.CurrentProvider()
	assert.Equal(t, "ollama", name)
	assert.True(t, fallback)
}

func TestChainOpensCircuitAfterRepeatedFailures(t *testing.T) {
	primary := &stubOracle{name: "openai", err: errors.New("status 500")}
	backup := &stubOracle{name: "ollama", out: "ok"}
	c := NewChain([]Oracle{primary, backup}, WithResetTimeout(time.Hour))

	for i := 0; i < failureThreshold+2; i++ {
		_, err := c.Generate(context.Background(), "p")
		require.NoError(t, err)
	}
	assert.Equal(t, failureThreshold, primary.calls)
	assert.Equal(t, "open", c.States()[0].State)
	assert.Equal(t, "closed", c.States()[1].State)
}

func TestChainAuthErrorOpensImmediately(t *testing.T) {
	primary := &stubOracle{name: "anthropic", err: errors.New("status 401: invalid x-api-key")}
	c := NewChain([]Oracle{primary}, WithResetTimeout(time.Hour))

	_, err := c.Generate(context.Background(), "p")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 401")

	_, err = c.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrAllProvidersOpen)
	assert.Equal(t, 1, primary.calls)
}

func TestChainClientErrorDoesNotTrip(t *testing.T) {
	primary := &stubOracle{name: "openai", err: errors.New("status 400: context length exceeded")}
	c := NewChain([]Oracle{primary})

	for i := 0; i < failureThreshold+1; i++ {
		_, err := c.Generate(context.Background(), "p")
		require.Error(t, err)
	}
	assert.Equal(t, failureThreshold+1, primary.calls)
	assert.Equal(t, "closed", c.States()[0].State)
}

func TestChainAvailable(t *testing.T) {
	c := NewChain([]Oracle{&stubOracle{name: "a"}, &stubOracle{name: "b", available: true}})
	assert.True(t, c.Available(context.Background()))

	c = NewChain([]Oracle{&stubOracle{name: "a"}})
	assert.False(t, c.Available(context.Background()))
}

func TestNewWithoutProviderIsNoop(t *testing.T) {
	o, err := New(config.AIConfig{})
	require.NoError(t, err)
	assert.False(t, IsConfigured(o))
	_, err = o.Generate(context.Background(), "p")
	assert.ErrorIs(t, err, ErrNotConfigured)

	o, err = New(config.AIConfig{Provider: "openai"})
	require.NoError(t, err)
	assert.False(t, IsConfigured(o))

	_, err = New(config.AIConfig{Provider: "bard"})
	assert.Error(t, err)
}

func TestNewBuildsChainWithFallback(t *testing.T) {
	o, err := New(config.AIConfig{Provider: "openai", OpenAIKey: "sk-test", Fallback: []string{"ollama", "anthropic"}})
	require.NoError(t, err)
	chain, ok := o.(*Chain)
	require.True(t, ok)
	// anthropic has no key and is skipped.
	assert.Len(t, chain.States(), 2)
}

func TestParseAIDebugEnv(t *testing.T) {
	t.Setenv("GUARDIAN_AI_DEBUG", "prompts")
	debug, prompts := parseAIDebugEnv()
	assert.False(t, debug)
	assert.True(t, prompts)

	t.Setenv("GUARDIAN_AI_DEBUG", "all")
	debug, prompts = parseAIDebugEnv()
	assert.True(t, debug)
	assert.True(t, prompts)
}
