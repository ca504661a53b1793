package guardian

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/CosmoTheDev/pipeline-guardian/internal/notify"
	"github.com/CosmoTheDev/pipeline-guardian/internal/repository"
	"github.com/CosmoTheDev/pipeline-guardian/models"
)

type fakeSCM struct {
	mu sync.Mutex

	jobs      []models.Job
	jobsErr   error
	traces    map[int64]string
	traceErr  map[int64]error
	files     map[string]string
	pipelines []models.PipelineRecord
	commits   int
	mrErr     error

	retried  []int64
	branches []string
	commitsW []repository.FileCommit
	mrs      []repository.MergeRequestOptions
	issues   []repository.IssueOptions
	comments []string
}

func newFakeSCM() *fakeSCM {
	return &fakeSCM{
		traces:   map[int64]string{},
		traceErr: map[int64]error{},
		files:    map[string]string{},
	}
}

func (f *fakeSCM) Name() string { return "fake" }

func (f *fakeSCM) ListPipelineJobs(_ context.Context, _ string, _ int64) ([]models.Job, error) {
	return f.jobs, f.jobsErr
}

func (f *fakeSCM) JobTrace(_ context.Context, _ string, jobID int64) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.traceErr[jobID]; err != nil {
		return "", err
	}
	return f.traces[jobID], nil
}

func (f *fakeSCM) RetryJob(_ context.Context, _ string, jobID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.retried = append(f.retried, jobID)
	return nil
}

func (f *fakeSCM) CreateBranch(_ context.Context, _, branch, _ string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.branches = append(f.branches, branch)
	return nil
}

func (f *fakeSCM) GetFile(_ context.Context, _, path, _ string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	c, ok := f.files[path]
	return c, ok, nil
}

func (f *fakeSCM) CommitFile(_ context.Context, _ string, c repository.FileCommit) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.commitsW = append(f.commitsW, c)
	return nil
}

func (f *fakeSCM) CreateMergeRequest(_ context.Context, _ string, opts repository.MergeRequestOptions) (*models.MergeRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mrErr != nil {
		err := f.mrErr
		f.mrErr = nil
		return nil, err
	}
	f.mrs = append(f.mrs, opts)
	n := len(f.mrs)
	return &models.MergeRequest{
		IID:          int64(n),
		URL:          fmt.Sprintf("https://scm.test/mr/%d", n),
		Title:        opts.Title,
		SourceBranch: opts.SourceBranch,
		TargetBranch: opts.TargetBranch,
	}, nil
}

func (f *fakeSCM) CreateIssue(_ context.Context, _ string, opts repository.IssueOptions) (*models.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.issues = append(f.issues, opts)
	return &models.Issue{IID: int64(len(f.issues)), URL: fmt.Sprintf("https://scm.test/issues/%d", len(f.issues)), Title: opts.Title}, nil
}

func (f *fakeSCM) CommentOnCommit(_ context.Context, _, _, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.comments = append(f.comments, body)
	return nil
}

func (f *fakeSCM) ListPipelines(_ context.Context, _, _ string, _ int) ([]models.PipelineRecord, error) {
	return f.pipelines, nil
}

func (f *fakeSCM) CountRecentCommits(_ context.Context, _, _ string, _ time.Time) (int, error) {
	return f.commits, nil
}

type fakeHistory struct {
	mu        sync.Mutex
	analyses  []models.AnalysisRecord
	patterns  map[string]int
	pipelines []models.PipelineRunRecord
	fixes     []models.FixRecord
}

func newFakeHistory() *fakeHistory { return &fakeHistory{patterns: map[string]int{}} }

func (h *fakeHistory) SaveAnalysis(_ context.Context, rec *models.AnalysisRecord) (string, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	rec.ID = fmt.Sprintf("A%d", len(h.analyses)+1)
	h.analyses = append(h.analyses, *rec)
	return rec.ID, nil
}

func (h *fakeHistory) IncrementErrorPattern(_ context.Context, _ string, category models.Category, fingerprint, _ string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.patterns[string(category)+":"+fingerprint]++
	return nil
}

func (h *fakeHistory) RecordPipeline(_ context.Context, rec models.PipelineRunRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.pipelines = append(h.pipelines, rec)
	return nil
}

func (h *fakeHistory) RecordFix(_ context.Context, rec models.FixRecord) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fixes = append(h.fixes, rec)
	return nil
}

func (h *fakeHistory) RecentFixes(_ context.Context, since time.Time) ([]models.FixRecord, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []models.FixRecord
	for _, f := range h.fixes {
		if !f.CreatedAt.Before(since) {
			out = append(out, f)
		}
	}
	return out, nil
}

func (h *fakeHistory) RecentPipelines(_ context.Context, _ string, _ int) ([]models.PipelineRecord, error) {
	return nil, nil
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []notify.Event
}

func (n *fakeNotifier) Notify(_ context.Context, evt notify.Event) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, evt)
}

func (n *fakeNotifier) types() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]string, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

var errBoom = errors.New("boom")
