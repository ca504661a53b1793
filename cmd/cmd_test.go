package cmd

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CosmoTheDev/pipeline-guardian/internal/config"
	"github.com/CosmoTheDev/pipeline-guardian/internal/repository"
	"github.com/CosmoTheDev/pipeline-guardian/models"
)

func withOutput(t *testing.T, format string) {
	t.Helper()
	prev := outputFormat
	outputFormat = format
	t.Cleanup(func() { outputFormat = prev })
}

func TestRedactMasksSecrets(t *testing.T) {
	cfg := &config.Config{}
	cfg.AI.OpenAIKey = "sk-real"
	cfg.Git.GitLab = []config.GitLabConfig{{Token: "glpat-real", WebhookSecret: "hook"}}
	cfg.Notify.Email.Password = "hunter2"

	redact(cfg)

	raw, err := json.Marshal(cfg)
	require.NoError(t, err)
	for _, secret := range []string{"sk-real", "glpat-real", "hook\"", "hunter2"} {
		assert.NotContains(t, string(raw), secret)
	}
	assert.Equal(t, "", cfg.AI.AnthropicKey, "empty values stay empty")
}

func TestStructuredOutput(t *testing.T) {
	v := map[string]int{"analyzed": 2}

	withOutput(t, "json")
	var buf bytes.Buffer
	ok, err := structured(&buf, v)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.JSONEq(t, `{"analyzed":2}`, buf.String())

	withOutput(t, "yaml")
	buf.Reset()
	ok, err = structured(&buf, v)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "analyzed: 2\n", buf.String())

	withOutput(t, "text")
	ok, err = structured(&buf, v)
	assert.NoError(t, err)
	assert.False(t, ok)

	withOutput(t, "xml")
	_, err = structured(&buf, v)
	assert.Error(t, err)
}

func TestReadLogKeepsTail(t *testing.T) {
	big := strings.Repeat("x", repository.MaxTraceBytes) + "ERROR: tail"
	got, err := readLog(strings.NewReader(big), nil)
	require.NoError(t, err)
	assert.Len(t, got, repository.MaxTraceBytes)
	assert.True(t, strings.HasSuffix(got, "ERROR: tail"))

	path := filepath.Join(t.TempDir(), "job.log")
	require.NoError(t, os.WriteFile(path, []byte("boom"), 0o600))
	got, err = readLog(nil, []string{path})
	require.NoError(t, err)
	assert.Equal(t, "boom", got)

	_, err = readLog(nil, []string{filepath.Join(t.TempDir(), "missing.log")})
	assert.Error(t, err)
}

func TestPreviewPatch(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte("requests==2.31.0\n"), 0o600))
	p := &models.Patch{FilePath: "requirements.txt", Operation: models.PatchAppend, Content: "flask"}

	got, err := previewPatch(dir, p)
	require.NoError(t, err)
	assert.Equal(t, "requests==2.31.0\nflask\n", got)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "requirements.txt"), []byte(got), 0o600))
	got, err = previewPatch(dir, p)
	require.NoError(t, err)
	assert.Equal(t, "(fix already present)", got)

	got, err = previewPatch(t.TempDir(), p)
	require.NoError(t, err)
	assert.Equal(t, "flask\n", got)
}

func TestPrintCountsOrdersByCount(t *testing.T) {
	var buf bytes.Buffer
	printCounts(&buf, "By category", map[string]int{"timeout": 1, "dependency": 5, "syntax_error": 1})
	out := buf.String()
	dep := strings.Index(out, "dependency")
	syn := strings.Index(out, "syntax_error")
	tmo := strings.Index(out, "timeout")
	assert.True(t, dep < syn && syn < tmo, out)

	buf.Reset()
	printCounts(&buf, "Empty", nil)
	assert.Empty(t, buf.String())
}

func TestCheckWebhookSecrets(t *testing.T) {
	cfg := &config.Config{}
	cfg.Guardian.Provider = "gitlab"
	assert.Equal(t, "warn", checkWebhookSecrets(cfg).status)

	cfg.Git.GitLab = []config.GitLabConfig{{WebhookSecret: "s"}}
	assert.Equal(t, "ok", checkWebhookSecrets(cfg).status)

	cfg.Guardian.Provider = "github"
	assert.Equal(t, "warn", checkWebhookSecrets(cfg).status)
}

func TestCommandTreeRegistersSubcommands(t *testing.T) {
	names := map[string]bool{}
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"serve", "analyze", "process", "predict", "patterns", "stats", "config", "doctor"} {
		assert.True(t, names[want], want)
	}
}
