package repository

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CosmoTheDev/pipeline-guardian/internal/config"
)

func TestReadTailKeepsEnd(t *testing.T) {
	in := strings.Repeat("a", 100) + strings.Repeat("b", 50)
	out, err := readTail(strings.NewReader(in), 50)
	require.NoError(t, err)
	assert.Equal(t, strings.Repeat("b", 50), out)

	out, err = readTail(strings.NewReader("short"), 50)
	require.NoError(t, err)
	assert.Equal(t, "short", out)
}

func TestDetectProvider(t *testing.T) {
	p, err := DetectProvider("https://gitlab.example.com/group/proj")
	require.NoError(t, err)
	assert.Equal(t, "gitlab", p)

	p, err = DetectProvider("git@github.com:acme/api.git")
	require.NoError(t, err)
	assert.Equal(t, "github", p)

	_, err = DetectProvider("https://bitbucket.org/acme/api")
	assert.Error(t, err)
}

func TestNewRequiresToken(t *testing.T) {
	_, err := New("gitlab", &config.Config{})
	assert.Error(t, err)
	_, err = New("svn", &config.Config{})
	assert.Error(t, err)

	cfg := &config.Config{}
	cfg.Git.GitLab = []config.GitLabConfig{{Token: "t"}}
	scm, err := New("gitlab", cfg)
	require.NoError(t, err)
	assert.Equal(t, "gitlab", scm.Name())
}
