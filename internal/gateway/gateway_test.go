package gateway

import (
	"bufio"
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/CosmoTheDev/pipeline-guardian/internal/analyzer"
	"github.com/CosmoTheDev/pipeline-guardian/internal/config"
	"github.com/CosmoTheDev/pipeline-guardian/internal/dedup"
	"github.com/CosmoTheDev/pipeline-guardian/internal/guardian"
	"github.com/CosmoTheDev/pipeline-guardian/models"
)

type fakePipelines struct {
	mu       sync.Mutex
	events   []guardian.PipelineEvent
	riskArgs []string
	riskErr  error
}

func (f *fakePipelines) HandlePipelineEvent(_ context.Context, ev guardian.PipelineEvent) guardian.Summary {
	f.mu.Lock()
	f.events = append(f.events, ev)
	f.mu.Unlock()
	return guardian.Summary{Status: guardian.SummaryProcessed, ProjectID: ev.ProjectID, PipelineID: ev.PipelineID, Analyzed: 1}
}

func (f *fakePipelines) AssessRisk(_ context.Context, projectID, ref, sha string, _ time.Time) (models.RiskAssessment, error) {
	f.mu.Lock()
	f.riskArgs = []string{projectID, ref, sha}
	f.mu.Unlock()
	if f.riskErr != nil {
		return models.RiskAssessment{}, f.riskErr
	}
	return models.RiskAssessment{Score: 0.375, Level: models.RiskMedium}, nil
}

func (f *fakePipelines) Patterns(_ context.Context, _ string) (models.FailurePatterns, error) {
	return models.FailurePatterns{TotalAnalyzed: 4, FailedCount: 1, FailureRate: 0.25}, nil
}

type fakeStore struct {
	cutoff time.Time
	err    error
}

func (s *fakeStore) Stats(_ context.Context, projectID string) (*models.DashboardStats, error) {
	return &models.DashboardStats{TotalAnalyses: 7, ByCategory: map[string]int{"dependency": 7}}, s.err
}

func (s *fakeStore) Cleanup(_ context.Context, cutoff time.Time) error {
	s.cutoff = cutoff
	return s.err
}

func testConfig() *config.Config {
	cfg := &config.Config{}
	cfg.Guardian.Provider = "gitlab"
	cfg.Guardian.RetentionDays = 30
	cfg.Server.ProcessTimeout = time.Minute
	return cfg
}

func newTestGateway(t *testing.T, cfg *config.Config) (*Gateway, *fakePipelines, *fakeStore) {
	t.Helper()
	proc := &fakePipelines{}
	store := &fakeStore{}
	gw := New(cfg, Deps{
		Processor:  proc,
		Classifier: analyzer.NewClassifier(nil),
		Cache:      dedup.New(),
		Store:      store,
		Provider:   cfg.Guardian.Provider,
	})
	return gw, proc, store
}

const gitlabPayload = `{
  "object_kind": "pipeline",
  "object_attributes": {
    "id": 31, "status": "failed", "ref": "feature/x", "sha": "abc123",
    "duration": 95, "created_at": "2026-10-16 15:00:00 UTC",
    "url": "https://gitlab.example.com/g/p/-/pipelines/31"
  },
  "project": {"id": 42, "path_with_namespace": "g/p", "default_branch": "main"}
}`

func TestGitLabWebhookDispatchesEvent(t *testing.T) {
	cfg := testConfig()
	cfg.Git.GitLab = []config.GitLabConfig{{WebhookSecret: "s3cret"}}
	gw, proc, _ := newTestGateway(t, cfg)
	h := buildHandler(gw)

	req := httptest.NewRequest(http.MethodPost, "/webhook/gitlab", strings.NewReader(gitlabPayload))
	req.Header.Set(gitlabTokenHeader, "s3cret")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var sum guardian.Summary
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &sum))
	assert.Equal(t, guardian.SummaryProcessed, sum.Status)
	assert.Equal(t, "42", sum.ProjectID)

	require.Len(t, proc.events, 1)
	ev := proc.events[0]
	assert.Equal(t, "gitlab", ev.Provider)
	assert.Equal(t, int64(31), ev.PipelineID)
	assert.Equal(t, "failed", ev.Status)
	assert.Equal(t, "main", ev.DefaultBranch)
	assert.Equal(t, 95*time.Second, ev.Duration)
	assert.Equal(t, time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC), ev.CreatedAt.UTC())
}

func TestGitLabWebhookRejectsBadToken(t *testing.T) {
	cfg := testConfig()
	cfg.Git.GitLab = []config.GitLabConfig{{WebhookSecret: "s3cret"}}
	gw, proc, _ := newTestGateway(t, cfg)

	req := httptest.NewRequest(http.MethodPost, "/webhook/gitlab", strings.NewReader(gitlabPayload))
	req.Header.Set(gitlabTokenHeader, "wrong")
	rec := httptest.NewRecorder()
	buildHandler(gw).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Empty(t, proc.events)
}

func TestGitLabWebhookIgnoresOtherEvents(t *testing.T) {
	gw, proc, _ := newTestGateway(t, testConfig())
	req := httptest.NewRequest(http.MethodPost, "/webhook/gitlab", strings.NewReader(`{"object_kind":"push"}`))
	rec := httptest.NewRecorder()
	buildHandler(gw).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "ignored")
	assert.Empty(t, proc.events)
}

func TestGitLabWebhookMalformedPayload(t *testing.T) {
	gw, _, _ := newTestGateway(t, testConfig())
	for _, body := range []string{`{not json`, `{"object_kind":"pipeline","project":{"id":0}}`} {
		req := httptest.NewRequest(http.MethodPost, "/webhook/gitlab", strings.NewReader(body))
		rec := httptest.NewRecorder()
		buildHandler(gw).ServeHTTP(rec, req)
		assert.Equal(t, http.StatusBadRequest, rec.Code, body)
	}
}

const githubPayload = `{
  "action": "completed",
  "workflow_run": {
    "id": 9001, "status": "completed", "conclusion": "failure",
    "head_branch": "main", "head_sha": "def456",
    "html_url": "https://github.com/acme/api/actions/runs/9001",
    "run_started_at": "2026-10-16T15:00:00Z", "updated_at": "2026-10-16T15:02:30Z"
  },
  "repository": {"full_name": "acme/api", "default_branch": "main"}
}`

func TestGitHubWebhookVerifiesSignature(t *testing.T) {
	cfg := testConfig()
	cfg.Guardian.Provider = "github"
	cfg.Git.GitHub = []config.GitHubConfig{{WebhookSecret: "hook-key"}}
	gw, proc, _ := newTestGateway(t, cfg)
	h := buildHandler(gw)

	send := func(sig string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/webhook/github", strings.NewReader(githubPayload))
		req.Header.Set(githubEventHeader, "workflow_run")
		req.Header.Set(githubSignatureHeader, sig)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	assert.Equal(t, http.StatusUnauthorized, send("sha256=00").Code)
	assert.Equal(t, http.StatusUnauthorized, send("").Code)

	good := "sha256=" + hex.EncodeToString(githubMAC("hook-key", []byte(githubPayload)))
	rec := send(good)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	require.Len(t, proc.events, 1)
	ev := proc.events[0]
	assert.Equal(t, "github", ev.Provider)
	assert.Equal(t, "acme/api", ev.ProjectID)
	assert.Equal(t, guardian.StatusFailed, ev.Status)
	assert.Equal(t, 150*time.Second, ev.Duration)
}

func TestGitHubPing(t *testing.T) {
	cfg := testConfig()
	cfg.Guardian.Provider = "github"
	gw, _, _ := newTestGateway(t, cfg)
	req := httptest.NewRequest(http.MethodPost, "/webhook/github", strings.NewReader(`{}`))
	req.Header.Set(githubEventHeader, "ping")
	rec := httptest.NewRecorder()
	buildHandler(gw).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "pong")
}

func TestWebhookFromUnconfiguredProvider(t *testing.T) {
	gw, proc, _ := newTestGateway(t, testConfig())
	req := httptest.NewRequest(http.MethodPost, "/webhook/github", strings.NewReader(githubPayload))
	req.Header.Set(githubEventHeader, "workflow_run")
	rec := httptest.NewRecorder()
	buildHandler(gw).ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Empty(t, proc.events)
}

func TestGitHubRunStatus(t *testing.T) {
	cases := []struct{ status, conclusion, want string }{
		{"queued", "", guardian.StatusPending},
		{"in_progress", "", guardian.StatusRunning},
		{"completed", "failure", guardian.StatusFailed},
		{"completed", "timed_out", guardian.StatusFailed},
		{"completed", "success", guardian.StatusSuccess},
		{"completed", "cancelled", "cancelled"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, githubRunStatus(c.status, c.conclusion), c.status+"/"+c.conclusion)
	}
}

func TestHealthAndStats(t *testing.T) {
	gw, _, _ := newTestGateway(t, testConfig())
	h := buildHandler(gw)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var health Health
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, "gitlab", health.Provider)
	assert.True(t, health.History)

	gw.deps.Cache.MarkProcessed(dedup.PipelineKey("42", 1))
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats?project=42", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var stats StatsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 1, stats.Cache.Pipelines)
	require.NotNil(t, stats.History)
	assert.Equal(t, 7, stats.History.TotalAnalyses)
}

func TestStatsStoreError(t *testing.T) {
	gw, _, store := newTestGateway(t, testConfig())
	store.err = errors.New("db down")
	rec := httptest.NewRecorder()
	buildHandler(gw).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/stats", nil))
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
}

func TestAnalyzeEndpoint(t *testing.T) {
	gw, _, _ := newTestGateway(t, testConfig())
	body := `{"log":"ModuleNotFoundError: No module named 'flask'","job_name":"test","project_id":"42"}`
	rec := httptest.NewRecorder()
	buildHandler(gw).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(body)))

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var resp AnalyzeResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	assert.Equal(t, models.CategoryDependency, resp.Analysis.Category)
	assert.Equal(t, models.PlanCreateFixMR, resp.Plan.Action)
	assert.True(t, strings.HasPrefix(resp.Plan.DedupKey, "42:dependency:"))
}

func TestAnalyzeRequiresLog(t *testing.T) {
	gw, _, _ := newTestGateway(t, testConfig())
	rec := httptest.NewRecorder()
	buildHandler(gw).ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/analyze", strings.NewReader(`{"log":"  "}`)))
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestPredictEndpoint(t *testing.T) {
	gw, proc, _ := newTestGateway(t, testConfig())
	h := buildHandler(gw)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/predict", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/predict?project=42&at=yesterday", nil))
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/predict?project=42&ref=main&sha=abc&at=2026-10-16T15:00:00Z", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var a models.RiskAssessment
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &a))
	assert.Equal(t, models.RiskMedium, a.Level)
	assert.Equal(t, []string{"42", "main", "abc"}, proc.riskArgs)

	proc.riskErr = errors.New("host unreachable")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/predict?project=42", nil))
	assert.Equal(t, http.StatusBadGateway, rec.Code)
}

func TestPatternsEndpoint(t *testing.T) {
	gw, _, _ := newTestGateway(t, testConfig())
	rec := httptest.NewRecorder()
	buildHandler(gw).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/patterns?project=42", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var fp models.FailurePatterns
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &fp))
	assert.Equal(t, 4, fp.TotalAnalyzed)
}

func TestEventsStreamsPublishedSummaries(t *testing.T) {
	gw, _, _ := newTestGateway(t, testConfig())
	srv := httptest.NewServer(buildHandler(gw))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"/events", nil)
	require.NoError(t, err)
	resp, err := srv.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

	reader := bufio.NewReader(resp.Body)
	readEvent := func() SSEEvent {
		for {
			line, err := reader.ReadString('\n')
			require.NoError(t, err)
			if data, ok := strings.CutPrefix(strings.TrimSpace(line), "data: "); ok {
				var evt SSEEvent
				require.NoError(t, json.Unmarshal([]byte(data), &evt))
				return evt
			}
		}
	}

	assert.Equal(t, EventConnected, readEvent().Type)
	require.Eventually(t, func() bool { return gw.broadcaster.Subscribers() == 1 }, time.Second, 10*time.Millisecond)

	gw.PublishSummary(guardian.Summary{Status: guardian.SummaryProcessed, ProjectID: "42", PipelineID: 7})
	evt := readEvent()
	assert.Equal(t, EventPipelineHandled, evt.Type)
	payload, ok := evt.Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "42", payload["project_id"])
}

func TestParseHookTime(t *testing.T) {
	for _, raw := range []string{"2026-10-16T15:00:00Z", "2026-10-16 15:00:00 UTC", "2026-10-16 17:00:00 +0200"} {
		got, ok := parseHookTime(raw)
		require.True(t, ok, raw)
		assert.True(t, got.Equal(time.Date(2026, 10, 16, 15, 0, 0, 0, time.UTC)), raw)
	}
	_, ok := parseHookTime("")
	assert.False(t, ok)
	_, ok = parseHookTime("last tuesday")
	assert.False(t, ok)
}
