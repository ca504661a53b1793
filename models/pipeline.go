package models

import "time"

// JobFailure is one failed CI job under analysis.
type JobFailure struct {
	ProjectID  string `json:"project_id"`
	PipelineID int64  `json:"pipeline_id"`
	JobID      int64  `json:"job_id"`
	JobName    string `json:"job_name"`
	Stage      string `json:"stage,omitempty"`
	Ref        string `json:"ref"`
	CommitSHA  string `json:"commit_sha,omitempty"`
	RawLog     string `json:"-"`
}

// Job is a CI job as reported by the source-control host.
type Job struct {
	ID     int64  `json:"id"`
	Name   string `json:"name"`
	Stage  string `json:"stage"`
	Status string `json:"status"` // failed | success | running | canceled | ...
	WebURL string `json:"web_url,omitempty"`
}

// Failed reports whether the job finished unsuccessfully.
func (j Job) Failed() bool { return j.Status == "failed" || j.Status == "failure" }

// PipelineRecord is one historical pipeline run used by the risk predictor.
type PipelineRecord struct {
	ID            int64         `json:"id"`
	Status        string        `json:"status"` // success | failed | canceled | running
	Ref           string        `json:"ref,omitempty"`
	Duration      time.Duration `json:"duration"`
	CreatedAt     time.Time     `json:"created_at"`
	FailureReason string        `json:"failure_reason,omitempty"`
}

// Failed reports whether the pipeline ended in failure.
func (p PipelineRecord) Failed() bool { return p.Status == "failed" || p.Status == "failure" }
