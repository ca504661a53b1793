package repository

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/CosmoTheDev/pipeline-guardian/internal/config"
	"github.com/CosmoTheDev/pipeline-guardian/models"
)

// MaxTraceBytes caps how much of a job log is kept; the tail is retained.
const MaxTraceBytes = 4 << 20

// SourceControl abstracts the CI and repository operations the guardian
// needs from a Git hosting platform.
// Implementations: GitLab, GitHub.
type SourceControl interface {
	// Name identifies the provider (e.g. "github", "gitlab").
	Name() string

	// ListPipelineJobs returns every job of a pipeline (a workflow run on GitHub).
	ListPipelineJobs(ctx context.Context, projectID string, pipelineID int64) ([]models.Job, error)

	// JobTrace returns the job log, truncated to its last MaxTraceBytes.
	JobTrace(ctx context.Context, projectID string, jobID int64) (string, error)

	// RetryJob re-runs a single job.
	RetryJob(ctx context.Context, projectID string, jobID int64) error

	// CreateBranch creates branch from ref.
	CreateBranch(ctx context.Context, projectID, branch, ref string) error

	// GetFile reads a file at ref. A missing file is not an error: exists is false.
	GetFile(ctx context.Context, projectID, path, ref string) (content string, exists bool, err error)

	// CommitFile writes one file to a branch.
	CommitFile(ctx context.Context, projectID string, c FileCommit) error

	// CreateMergeRequest opens a merge (pull) request.
	CreateMergeRequest(ctx context.Context, projectID string, opts MergeRequestOptions) (*models.MergeRequest, error)

	// CreateIssue opens a tracker issue.
	CreateIssue(ctx context.Context, projectID string, opts IssueOptions) (*models.Issue, error)

	// CommentOnCommit posts a comment on a commit.
	CommentOnCommit(ctx context.Context, projectID, sha, body string) error

	// ListPipelines returns up to limit recent pipelines on ref, newest first.
	// An empty ref lists all refs.
	ListPipelines(ctx context.Context, projectID, ref string, limit int) ([]models.PipelineRecord, error)

	// CountRecentCommits counts commits on ref since the given time.
	CountRecentCommits(ctx context.Context, projectID, ref string, since time.Time) (int, error)
}

// FileCommit is a single-file commit.
type FileCommit struct {
	Branch  string
	Path    string
	Content string
	Message string
	// Create is true when the file does not exist on Branch yet.
	Create bool
}

// MergeRequestOptions contains all fields needed to open a merge request.
type MergeRequestOptions struct {
	Title              string
	Description        string
	SourceBranch       string
	TargetBranch       string
	Labels             []string
	RemoveSourceBranch bool
}

// IssueOptions contains the fields of a new issue.
type IssueOptions struct {
	Title       string
	Description string
	Labels      []string
}

// New returns the SourceControl for the given platform.
func New(provider string, cfg *config.Config) (SourceControl, error) {
	switch provider {
	case "github":
		if len(cfg.Git.GitHub) == 0 || cfg.Git.GitHub[0].Token == "" {
			return nil, fmt.Errorf("no GitHub token configured; run 'guardian config set' for git.github")
		}
		return NewGitHub(cfg.Git.GitHub[0])
	case "gitlab":
		if len(cfg.Git.GitLab) == 0 || cfg.Git.GitLab[0].Token == "" {
			return nil, fmt.Errorf("no GitLab token configured; run 'guardian config set' for git.gitlab")
		}
		return NewGitLab(cfg.Git.GitLab[0])
	default:
		return nil, fmt.Errorf("unsupported provider %q", provider)
	}
}

// DetectProvider infers the hosting platform from a repository URL.
func DetectProvider(repoURL string) (string, error) {
	lower := strings.ToLower(repoURL)
	switch {
	case strings.Contains(lower, "github.com") || strings.Contains(lower, "github."):
		return "github", nil
	case strings.Contains(lower, "gitlab.com") || strings.Contains(lower, "gitlab."):
		return "gitlab", nil
	default:
		return "", fmt.Errorf("cannot detect provider from URL %q; use --provider flag", repoURL)
	}
}

// readTail reads r keeping at most max trailing bytes.
func readTail(r io.Reader, max int) (string, error) {
	buf := make([]byte, 0, 64<<10)
	chunk := make([]byte, 32<<10)
	for {
		n, err := r.Read(chunk)
		buf = append(buf, chunk[:n]...)
		if len(buf) > 2*max {
			buf = append(buf[:0], buf[len(buf)-max:]...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", err
		}
	}
	if len(buf) > max {
		buf = buf[len(buf)-max:]
	}
	return string(buf), nil
}
