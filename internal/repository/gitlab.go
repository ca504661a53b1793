package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gitlab "gitlab.com/gitlab-org/api/client-go"

	"github.com/CosmoTheDev/pipeline-guardian/internal/config"
	"github.com/CosmoTheDev/pipeline-guardian/models"
)

// GitLabProvider implements SourceControl for GitLab (cloud and self-hosted).
// Project IDs may be numeric IDs or "group/project" paths.
type GitLabProvider struct {
	client *gitlab.Client
	host   string
}

// NewGitLab creates a GitLabProvider from the given configuration.
func NewGitLab(cfg config.GitLabConfig) (*GitLabProvider, error) {
	opts := []gitlab.ClientOptionFunc{}
	if cfg.Host != "" && cfg.Host != "gitlab.com" {
		base := fmt.Sprintf("https://%s/api/v4/", cfg.Host)
		opts = append(opts, gitlab.WithBaseURL(base))
	}
	return newGitLabWithOptions(cfg.Token, cfg.Host, opts...)
}

func newGitLabWithOptions(token, host string, opts ...gitlab.ClientOptionFunc) (*GitLabProvider, error) {
	client, err := gitlab.NewClient(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("creating GitLab client: %w", err)
	}
	return &GitLabProvider{client: client, host: host}, nil
}

func (g *GitLabProvider) Name() string { return "gitlab" }

func (g *GitLabProvider) ListPipelineJobs(ctx context.Context, projectID string, pipelineID int64) ([]models.Job, error) {
	var out []models.Job
	opts := &gitlab.ListJobsOptions{ListOptions: gitlab.ListOptions{PerPage: 100, Page: 1}}
	for {
		jobs, resp, err := g.client.Jobs.ListPipelineJobs(projectID, pipelineID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("listing jobs of pipeline %d in %s: %w", pipelineID, projectID, err)
		}
		for _, j := range jobs {
			if j == nil {
				continue
			}
			out = append(out, models.Job{ID: j.ID, Name: j.Name, Stage: j.Stage, Status: j.Status, WebURL: j.WebURL})
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (g *GitLabProvider) JobTrace(ctx context.Context, projectID string, jobID int64) (string, error) {
	trace, _, err := g.client.Jobs.GetTraceFile(projectID, jobID, gitlab.WithContext(ctx))
	if err != nil {
		return "", fmt.Errorf("fetching trace of job %d in %s: %w", jobID, projectID, err)
	}
	return readTail(trace, MaxTraceBytes)
}

func (g *GitLabProvider) RetryJob(ctx context.Context, projectID string, jobID int64) error {
	if _, _, err := g.client.Jobs.RetryJob(projectID, jobID, gitlab.WithContext(ctx)); err != nil {
		return fmt.Errorf("retrying job %d in %s: %w", jobID, projectID, err)
	}
	return nil
}

func (g *GitLabProvider) CreateBranch(ctx context.Context, projectID, branch, ref string) error {
	_, _, err := g.client.Branches.CreateBranch(projectID, &gitlab.CreateBranchOptions{
		Branch: gitlab.Ptr(branch),
		Ref:    gitlab.Ptr(ref),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("creating branch %s from %s in %s: %w", branch, ref, projectID, err)
	}
	return nil
}

func (g *GitLabProvider) GetFile(ctx context.Context, projectID, path, ref string) (string, bool, error) {
	raw, resp, err := g.client.RepositoryFiles.GetRawFile(projectID, path, &gitlab.GetRawFileOptions{
		Ref: gitlab.Ptr(ref),
	}, gitlab.WithContext(ctx))
	if err != nil {
		if (resp != nil && resp.StatusCode == http.StatusNotFound) || errors.Is(err, gitlab.ErrNotFound) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading %s@%s in %s: %w", path, ref, projectID, err)
	}
	return string(raw), true, nil
}

func (g *GitLabProvider) CommitFile(ctx context.Context, projectID string, c FileCommit) error {
	action := gitlab.FileUpdate
	if c.Create {
		action = gitlab.FileCreate
	}
	_, _, err := g.client.Commits.CreateCommit(projectID, &gitlab.CreateCommitOptions{
		Branch:        gitlab.Ptr(c.Branch),
		CommitMessage: gitlab.Ptr(c.Message),
		Actions: []*gitlab.CommitActionOptions{{
			Action:   gitlab.Ptr(action),
			FilePath: gitlab.Ptr(c.Path),
			Content:  gitlab.Ptr(c.Content),
		}},
	}, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("committing %s to %s in %s: %w", c.Path, c.Branch, projectID, err)
	}
	return nil
}

func (g *GitLabProvider) CreateMergeRequest(ctx context.Context, projectID string, opts MergeRequestOptions) (*models.MergeRequest, error) {
	mr, _, err := g.client.MergeRequests.CreateMergeRequest(projectID, &gitlab.CreateMergeRequestOptions{
		Title:              gitlab.Ptr(opts.Title),
		Description:        gitlab.Ptr(opts.Description),
		SourceBranch:       gitlab.Ptr(opts.SourceBranch),
		TargetBranch:       gitlab.Ptr(opts.TargetBranch),
		Labels:             gitlab.Ptr(gitlab.LabelOptions(opts.Labels)),
		RemoveSourceBranch: gitlab.Ptr(opts.RemoveSourceBranch),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("creating MR on %s: %w", projectID, err)
	}
	out := &models.MergeRequest{
		IID:          mr.IID,
		URL:          mr.WebURL,
		Title:        mr.Title,
		SourceBranch: mr.SourceBranch,
		TargetBranch: mr.TargetBranch,
		CreatedAt:    time.Now(),
	}
	if mr.CreatedAt != nil {
		out.CreatedAt = *mr.CreatedAt
	}
	if out.URL == "" {
		out.URL = fmt.Sprintf("https://%s/%s/-/merge_requests/%d", g.hostOrDefault(), projectID, mr.IID)
	}
	return out, nil
}

func (g *GitLabProvider) CreateIssue(ctx context.Context, projectID string, opts IssueOptions) (*models.Issue, error) {
	issue, _, err := g.client.Issues.CreateIssue(projectID, &gitlab.CreateIssueOptions{
		Title:       gitlab.Ptr(opts.Title),
		Description: gitlab.Ptr(opts.Description),
		Labels:      gitlab.Ptr(gitlab.LabelOptions(opts.Labels)),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("creating issue on %s: %w", projectID, err)
	}
	return &models.Issue{IID: issue.IID, URL: issue.WebURL, Title: issue.Title}, nil
}

func (g *GitLabProvider) CommentOnCommit(ctx context.Context, projectID, sha, body string) error {
	_, _, err := g.client.Commits.PostCommitComment(projectID, sha, &gitlab.PostCommitCommentOptions{
		Note: gitlab.Ptr(body),
	}, gitlab.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("commenting on %s in %s: %w", sha, projectID, err)
	}
	return nil
}

func (g *GitLabProvider) ListPipelines(ctx context.Context, projectID, ref string, limit int) ([]models.PipelineRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	opts := &gitlab.ListProjectPipelinesOptions{
		OrderBy:     gitlab.Ptr("id"),
		Sort:        gitlab.Ptr("desc"),
		ListOptions: gitlab.ListOptions{PerPage: int64(min(limit, 100)), Page: 1},
	}
	if ref != "" {
		opts.Ref = gitlab.Ptr(ref)
	}
	var out []models.PipelineRecord
	for len(out) < limit {
		pipelines, resp, err := g.client.Pipelines.ListProjectPipelines(projectID, opts, gitlab.WithContext(ctx))
		if err != nil {
			return nil, fmt.Errorf("listing pipelines of %s: %w", projectID, err)
		}
		for _, p := range pipelines {
			if p == nil || len(out) >= limit {
				continue
			}
			rec := models.PipelineRecord{ID: p.ID, Status: p.Status, Ref: p.Ref}
			if p.CreatedAt != nil {
				rec.CreatedAt = *p.CreatedAt
				if p.UpdatedAt != nil && p.UpdatedAt.After(*p.CreatedAt) {
					rec.Duration = p.UpdatedAt.Sub(*p.CreatedAt)
				}
			}
			out = append(out, rec)
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

func (g *GitLabProvider) CountRecentCommits(ctx context.Context, projectID, ref string, since time.Time) (int, error) {
	opts := &gitlab.ListCommitsOptions{
		Since:       gitlab.Ptr(since),
		ListOptions: gitlab.ListOptions{PerPage: 100},
	}
	if ref != "" {
		opts.RefName = gitlab.Ptr(ref)
	}
	commits, _, err := g.client.Commits.ListCommits(projectID, opts, gitlab.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("listing commits of %s: %w", projectID, err)
	}
	return len(commits), nil
}

func (g *GitLabProvider) hostOrDefault() string {
	if g.host == "" {
		return "gitlab.com"
	}
	return g.host
}
