package repository

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gitlab "gitlab.com/gitlab-org/api/client-go"
)

func newTestGitLab(t *testing.T, mux *http.ServeMux) *GitLabProvider {
	t.Helper()
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	g, err := newGitLabWithOptions("test-token", "gitlab.test", gitlab.WithBaseURL(srv.URL+"/api/v4/"))
	require.NoError(t, err)
	return g
}

func TestGitLabListPipelineJobs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v4/projects/42/pipelines/7/jobs", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "test-token", r.Header.Get("PRIVATE-TOKEN"))
		_, _ = w.Write([]byte(`[
			{"id": 1, "name": "build", "stage": "build", "status": "success"},
			{"id": 2, "name": "test", "stage": "test", "status": "failed", "web_url": "https://gitlab.test/j/2"}
		]`))
	})
	g := newTestGitLab(t, mux)

	jobs, err := g.ListPipelineJobs(context.Background(), "42", 7)
	require.NoError(t, err)
	require.Len(t, jobs, 2)
	assert.False(t, jobs[0].Failed())
	assert.True(t, jobs[1].Failed())
	assert.Equal(t, "test", jobs[1].Stage)
	assert.Equal(t, "https://gitlab.test/j/2", jobs[1].WebURL)
}

func TestGitLabJobTrace(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v4/projects/42/jobs/9/trace", func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("ModuleNotFoundError: No module named 'requests'\n"))
	})
	g := newTestGitLab(t, mux)

	trace, err := g.JobTrace(context.Background(), "42", 9)
	require.NoError(t, err)
	assert.Contains(t, trace, "No module named 'requests'")
}

func TestGitLabGetFileMissing(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v4/projects/42/repository/files/requirements.txt/raw", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		_, _ = w.Write([]byte("flask\n"))
	})
	mux.HandleFunc("GET /api/v4/projects/42/repository/files/missing.txt/raw", func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"message":"404 File Not Found"}`, http.StatusNotFound)
	})
	g := newTestGitLab(t, mux)

	content, exists, err := g.GetFile(context.Background(), "42", "requirements.txt", "main")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "flask\n", content)

	content, exists, err = g.GetFile(context.Background(), "42", "missing.txt", "main")
	require.NoError(t, err)
	assert.False(t, exists)
	assert.Empty(t, content)
}

func TestGitLabCommitFileAndMergeRequest(t *testing.T) {
	var commit struct {
		Branch  string `json:"branch"`
		Actions []struct {
			Action   string `json:"action"`
			FilePath string `json:"file_path"`
			Content  string `json:"content"`
		} `json:"actions"`
	}
	var mr map[string]any

	mux := http.NewServeMux()
	mux.HandleFunc("POST /api/v4/projects/42/repository/commits", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&commit))
		_, _ = w.Write([]byte(`{"id": "abc"}`))
	})
	mux.HandleFunc("POST /api/v4/projects/42/merge_requests", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&mr))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"iid": 5, "title": "AI Fix: Dependency Resolution",
			"source_branch": "ai-fix/dependency-20240308160000", "target_branch": "main",
			"web_url": "https://gitlab.test/g/p/-/merge_requests/5"}`))
	})
	g := newTestGitLab(t, mux)
	ctx := context.Background()

	err := g.CommitFile(ctx, "42", FileCommit{
		Branch:  "ai-fix/dependency-20240308160000",
		Path:    "requirements.txt",
		Content: "flask\nrequests\n",
		Message: "fix: add requests",
	})
	require.NoError(t, err)
	assert.Equal(t, "ai-fix/dependency-20240308160000", commit.Branch)
	require.Len(t, commit.Actions, 1)
	assert.Equal(t, "update", commit.Actions[0].Action)
	assert.Equal(t, "requirements.txt", commit.Actions[0].FilePath)

	out, err := g.CreateMergeRequest(ctx, "42", MergeRequestOptions{
		Title:              "AI Fix: Dependency Resolution",
		SourceBranch:       "ai-fix/dependency-20240308160000",
		TargetBranch:       "main",
		Labels:             []string{"ai-generated", "auto-fix"},
		RemoveSourceBranch: true,
	})
	require.NoError(t, err)
	assert.Equal(t, int64(5), out.IID)
	assert.Equal(t, "https://gitlab.test/g/p/-/merge_requests/5", out.URL)
	assert.Equal(t, "ai-generated,auto-fix", mr["labels"])
	assert.Equal(t, true, mr["remove_source_branch"])
}

func TestGitLabListPipelinesDuration(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v4/projects/42/pipelines", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "main", r.URL.Query().Get("ref"))
		_, _ = w.Write([]byte(`[
			{"id": 11, "status": "failed", "ref": "main",
			 "created_at": "2024-03-08T16:00:00Z", "updated_at": "2024-03-08T16:10:00Z"},
			{"id": 10, "status": "success", "ref": "main",
			 "created_at": "2024-03-08T15:00:00Z", "updated_at": "2024-03-08T15:05:00Z"}
		]`))
	})
	g := newTestGitLab(t, mux)

	recs, err := g.ListPipelines(context.Background(), "42", "main", 10)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.True(t, recs[0].Failed())
	assert.Equal(t, 600.0, recs[0].Duration.Seconds())
	assert.Equal(t, 300.0, recs[1].Duration.Seconds())
}
