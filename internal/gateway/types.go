package gateway

import (
	"github.com/CosmoTheDev/pipeline-guardian/internal/dedup"
	"github.com/CosmoTheDev/pipeline-guardian/models"
)

// SSEEvent is serialised as JSON and pushed over the GET /events SSE stream.
type SSEEvent struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

// SSE event types.
const (
	EventConnected        = "connected"
	EventGatewayStarted   = "gateway.started"
	EventPipelineHandled  = "pipeline.handled"
	EventCacheSwept       = "cache.swept"
	EventHistoryCleaned   = "history.cleaned"
	EventMaintenanceError = "maintenance.error"
)

// Health is the GET /health response.
type Health struct {
	Status        string `json:"status"`
	Provider      string `json:"provider"`
	Oracle        bool   `json:"oracle"`
	History       bool   `json:"history"`
	UptimeSeconds int64  `json:"uptime_seconds"`
	Timestamp     string `json:"timestamp"`
}

// StatsResponse is the GET /api/stats response.
type StatsResponse struct {
	History *models.DashboardStats `json:"history,omitempty"`
	Cache   dedup.Stats            `json:"cache"`
}

// AnalyzeRequest is the POST /api/analyze body.
type AnalyzeRequest struct {
	Log       string `json:"log"`
	JobName   string `json:"job_name"`
	ProjectID string `json:"project_id"`
}

// AnalyzeResponse pairs the classification with the plan that would follow.
type AnalyzeResponse struct {
	Analysis models.ErrorAnalysis `json:"analysis"`
	Plan     models.FixPlan       `json:"plan"`
}

// gitlabPipelineHook is the subset of a GitLab "Pipeline Hook" payload read.
type gitlabPipelineHook struct {
	ObjectKind       string `json:"object_kind"`
	ObjectAttributes struct {
		ID        int64    `json:"id"`
		Status    string   `json:"status"`
		Ref       string   `json:"ref"`
		SHA       string   `json:"sha"`
		Duration  *float64 `json:"duration"`
		CreatedAt string   `json:"created_at"`
		URL       string   `json:"url"`
	} `json:"object_attributes"`
	Project struct {
		ID                int64  `json:"id"`
		PathWithNamespace string `json:"path_with_namespace"`
		DefaultBranch     string `json:"default_branch"`
		WebURL            string `json:"web_url"`
	} `json:"project"`
}

// githubWorkflowRunHook is the subset of a GitHub "workflow_run" payload read.
type githubWorkflowRunHook struct {
	Action      string `json:"action"`
	WorkflowRun struct {
		ID           int64  `json:"id"`
		Status       string `json:"status"`
		Conclusion   string `json:"conclusion"`
		HeadBranch   string `json:"head_branch"`
		HeadSHA      string `json:"head_sha"`
		HTMLURL      string `json:"html_url"`
		RunStartedAt string `json:"run_started_at"`
		CreatedAt    string `json:"created_at"`
		UpdatedAt    string `json:"updated_at"`
	} `json:"workflow_run"`
	Repository struct {
		FullName      string `json:"full_name"`
		DefaultBranch string `json:"default_branch"`
	} `json:"repository"`
}
