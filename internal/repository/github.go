package repository

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	gogithub "github.com/google/go-github/v68/github"
	"golang.org/x/oauth2"

	"github.com/CosmoTheDev/pipeline-guardian/internal/config"
	"github.com/CosmoTheDev/pipeline-guardian/models"
)

// GitHubProvider implements SourceControl for GitHub and GitHub Enterprise.
// Project IDs are "owner/repo"; pipelines are workflow runs.
type GitHubProvider struct {
	client *gogithub.Client
	host   string
}

// NewGitHub creates a GitHubProvider from the given configuration.
func NewGitHub(cfg config.GitHubConfig) (*GitHubProvider, error) {
	ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token})
	tc := oauth2.NewClient(context.Background(), ts)
	client := gogithub.NewClient(tc)

	// Support GitHub Enterprise by overriding the base URL.
	if cfg.Host != "" && cfg.Host != "github.com" {
		base := fmt.Sprintf("https://%s/api/v3/", cfg.Host)
		upload := fmt.Sprintf("https://%s/api/uploads/", cfg.Host)
		var err error
		client, err = client.WithEnterpriseURLs(base, upload)
		if err != nil {
			return nil, fmt.Errorf("configuring GitHub enterprise URLs: %w", err)
		}
	}

	return &GitHubProvider{client: client, host: cfg.Host}, nil
}

func (g *GitHubProvider) Name() string { return "github" }

func splitProject(projectID string) (owner, repo string, err error) {
	owner, repo, ok := strings.Cut(projectID, "/")
	if !ok || owner == "" || repo == "" || strings.Contains(repo, "/") {
		return "", "", fmt.Errorf("GitHub project must be owner/repo, got %q", projectID)
	}
	return owner, repo, nil
}

func (g *GitHubProvider) ListPipelineJobs(ctx context.Context, projectID string, pipelineID int64) ([]models.Job, error) {
	owner, repo, err := splitProject(projectID)
	if err != nil {
		return nil, err
	}
	var out []models.Job
	opts := &gogithub.ListWorkflowJobsOptions{ListOptions: gogithub.ListOptions{PerPage: 100}}
	for {
		jobs, resp, err := g.client.Actions.ListWorkflowJobs(ctx, owner, repo, pipelineID, opts)
		if err != nil {
			return nil, fmt.Errorf("listing jobs of run %d in %s: %w", pipelineID, projectID, err)
		}
		for _, j := range jobs.Jobs {
			if j == nil {
				continue
			}
			out = append(out, models.Job{
				ID:     j.GetID(),
				Name:   j.GetName(),
				Stage:  j.GetWorkflowName(),
				Status: jobStatus(j.GetStatus(), j.GetConclusion()),
				WebURL: j.GetHTMLURL(),
			})
		}
		if resp == nil || resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// jobStatus maps GitHub's status/conclusion pair onto GitLab-style job states.
func jobStatus(status, conclusion string) string {
	if status != "completed" {
		return status
	}
	switch conclusion {
	case "failure", "timed_out", "startup_failure":
		return "failed"
	case "cancelled":
		return "canceled"
	case "":
		return status
	default:
		return conclusion
	}
}

func (g *GitHubProvider) JobTrace(ctx context.Context, projectID string, jobID int64) (string, error) {
	owner, repo, err := splitProject(projectID)
	if err != nil {
		return "", err
	}
	logURL, _, err := g.client.Actions.GetWorkflowJobLogs(ctx, owner, repo, jobID, 3)
	if err != nil {
		return "", fmt.Errorf("locating logs of job %d in %s: %w", jobID, projectID, err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, logURL.String(), nil)
	if err != nil {
		return "", err
	}
	resp, err := g.client.Client().Do(req)
	if err != nil {
		return "", fmt.Errorf("downloading logs of job %d: %w", jobID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("downloading logs of job %d: HTTP %d", jobID, resp.StatusCode)
	}
	return readTail(resp.Body, MaxTraceBytes)
}

func (g *GitHubProvider) RetryJob(ctx context.Context, projectID string, jobID int64) error {
	owner, repo, err := splitProject(projectID)
	if err != nil {
		return err
	}
	if _, err := g.client.Actions.RerunJobByID(ctx, owner, repo, jobID); err != nil {
		return fmt.Errorf("re-running job %d in %s: %w", jobID, projectID, err)
	}
	return nil
}

func (g *GitHubProvider) CreateBranch(ctx context.Context, projectID, branch, ref string) error {
	owner, repo, err := splitProject(projectID)
	if err != nil {
		return err
	}
	base, _, err := g.client.Git.GetRef(ctx, owner, repo, "heads/"+ref)
	if err != nil {
		return fmt.Errorf("resolving %s in %s: %w", ref, projectID, err)
	}
	_, _, err = g.client.Git.CreateRef(ctx, owner, repo, &gogithub.Reference{
		Ref:    gogithub.Ptr("refs/heads/" + branch),
		Object: &gogithub.GitObject{SHA: base.GetObject().SHA},
	})
	if err != nil {
		return fmt.Errorf("creating branch %s in %s: %w", branch, projectID, err)
	}
	return nil
}

func (g *GitHubProvider) GetFile(ctx context.Context, projectID, path, ref string) (string, bool, error) {
	content, _, err := g.fileContent(ctx, projectID, path, ref)
	if err != nil || content == nil {
		return "", false, err
	}
	text, err := content.GetContent()
	if err != nil {
		return "", false, fmt.Errorf("decoding %s: %w", path, err)
	}
	return text, true, nil
}

// fileContent returns nil content without error when the path does not exist.
func (g *GitHubProvider) fileContent(ctx context.Context, projectID, path, ref string) (*gogithub.RepositoryContent, string, error) {
	owner, repo, err := splitProject(projectID)
	if err != nil {
		return nil, "", err
	}
	file, _, resp, err := g.client.Repositories.GetContents(ctx, owner, repo, path,
		&gogithub.RepositoryContentGetOptions{Ref: ref})
	if err != nil {
		var ghErr *gogithub.ErrorResponse
		if (resp != nil && resp.StatusCode == http.StatusNotFound) ||
			(errors.As(err, &ghErr) && ghErr.Response != nil && ghErr.Response.StatusCode == http.StatusNotFound) {
			return nil, "", nil
		}
		return nil, "", fmt.Errorf("reading %s@%s in %s: %w", path, ref, projectID, err)
	}
	if file == nil {
		return nil, "", fmt.Errorf("%s in %s is a directory", path, projectID)
	}
	return file, file.GetSHA(), nil
}

func (g *GitHubProvider) CommitFile(ctx context.Context, projectID string, c FileCommit) error {
	owner, repo, err := splitProject(projectID)
	if err != nil {
		return err
	}
	opts := &gogithub.RepositoryContentFileOptions{
		Message: gogithub.Ptr(c.Message),
		Content: []byte(c.Content),
		Branch:  gogithub.Ptr(c.Branch),
	}
	if c.Create {
		_, _, err = g.client.Repositories.CreateFile(ctx, owner, repo, c.Path, opts)
	} else {
		_, sha, lookupErr := g.fileContent(ctx, projectID, c.Path, c.Branch)
		if lookupErr != nil {
			return lookupErr
		}
		if sha == "" {
			_, _, err = g.client.Repositories.CreateFile(ctx, owner, repo, c.Path, opts)
		} else {
			opts.SHA = gogithub.Ptr(sha)
			_, _, err = g.client.Repositories.UpdateFile(ctx, owner, repo, c.Path, opts)
		}
	}
	if err != nil {
		return fmt.Errorf("committing %s to %s in %s: %w", c.Path, c.Branch, projectID, err)
	}
	return nil
}

func (g *GitHubProvider) CreateMergeRequest(ctx context.Context, projectID string, opts MergeRequestOptions) (*models.MergeRequest, error) {
	owner, repo, err := splitProject(projectID)
	if err != nil {
		return nil, err
	}
	pr, _, err := g.client.PullRequests.Create(ctx, owner, repo, &gogithub.NewPullRequest{
		Title:               gogithub.Ptr(opts.Title),
		Body:                gogithub.Ptr(opts.Description),
		Head:                gogithub.Ptr(opts.SourceBranch),
		Base:                gogithub.Ptr(opts.TargetBranch),
		MaintainerCanModify: gogithub.Ptr(true),
	})
	if err != nil {
		return nil, fmt.Errorf("creating PR on %s: %w", projectID, err)
	}
	if len(opts.Labels) > 0 {
		// Labels are best effort; the PR already exists.
		_, _, _ = g.client.Issues.AddLabelsToIssue(ctx, owner, repo, pr.GetNumber(), opts.Labels)
	}
	return &models.MergeRequest{
		IID:          int64(pr.GetNumber()),
		URL:          pr.GetHTMLURL(),
		Title:        pr.GetTitle(),
		SourceBranch: pr.GetHead().GetRef(),
		TargetBranch: pr.GetBase().GetRef(),
		CreatedAt:    pr.GetCreatedAt().Time,
	}, nil
}

func (g *GitHubProvider) CreateIssue(ctx context.Context, projectID string, opts IssueOptions) (*models.Issue, error) {
	owner, repo, err := splitProject(projectID)
	if err != nil {
		return nil, err
	}
	req := &gogithub.IssueRequest{
		Title: gogithub.Ptr(opts.Title),
		Body:  gogithub.Ptr(opts.Description),
	}
	if len(opts.Labels) > 0 {
		req.Labels = &opts.Labels
	}
	issue, _, err := g.client.Issues.Create(ctx, owner, repo, req)
	if err != nil {
		return nil, fmt.Errorf("creating issue on %s: %w", projectID, err)
	}
	return &models.Issue{IID: int64(issue.GetNumber()), URL: issue.GetHTMLURL(), Title: issue.GetTitle()}, nil
}

func (g *GitHubProvider) CommentOnCommit(ctx context.Context, projectID, sha, body string) error {
	owner, repo, err := splitProject(projectID)
	if err != nil {
		return err
	}
	_, _, err = g.client.Repositories.CreateComment(ctx, owner, repo, sha, &gogithub.RepositoryComment{
		Body: gogithub.Ptr(body),
	})
	if err != nil {
		return fmt.Errorf("commenting on %s in %s: %w", sha, projectID, err)
	}
	return nil
}

func (g *GitHubProvider) ListPipelines(ctx context.Context, projectID, ref string, limit int) ([]models.PipelineRecord, error) {
	owner, repo, err := splitProject(projectID)
	if err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = 100
	}
	opts := &gogithub.ListWorkflowRunsOptions{
		Branch:      ref,
		ListOptions: gogithub.ListOptions{PerPage: min(limit, 100)},
	}
	var out []models.PipelineRecord
	for len(out) < limit {
		runs, resp, err := g.client.Actions.ListRepositoryWorkflowRuns(ctx, owner, repo, opts)
		if err != nil {
			return nil, fmt.Errorf("listing workflow runs of %s: %w", projectID, err)
		}
		for _, r := range runs.WorkflowRuns {
			if r == nil || len(out) >= limit {
				continue
			}
			rec := models.PipelineRecord{
				ID:        r.GetID(),
				Status:    jobStatus(r.GetStatus(), r.GetConclusion()),
				Ref:       r.GetHeadBranch(),
				CreatedAt: r.GetCreatedAt().Time,
			}
			start := r.GetRunStartedAt().Time
			if start.IsZero() {
				start = rec.CreatedAt
			}
			if end := r.GetUpdatedAt().Time; end.After(start) {
				rec.Duration = end.Sub(start)
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

func (g *GitHubProvider) CountRecentCommits(ctx context.Context, projectID, ref string, since time.Time) (int, error) {
	owner, repo, err := splitProject(projectID)
	if err != nil {
		return 0, err
	}
	commits, _, err := g.client.Repositories.ListCommits(ctx, owner, repo, &gogithub.CommitsListOptions{
		SHA:         ref,
		Since:       since,
		ListOptions: gogithub.ListOptions{PerPage: 100},
	})
	if err != nil {
		return 0, fmt.Errorf("listing commits of %s: %w", projectID, err)
	}
	return len(commits), nil
}
