package models

import "time"

// PlanAction is the remediation chosen by the planner.
type PlanAction string

const (
	PlanRetryJob    PlanAction = "retry_job"
	PlanCreateFixMR PlanAction = "create_fix_mr"
	PlanNoAction    PlanAction = "no_action"
)

// PatchOperation is the kind of file edit a Patch performs.
type PatchOperation string

const (
	PatchAppend PatchOperation = "append"
	PatchCreate PatchOperation = "create"
	PatchUpdate PatchOperation = "update"
)

// Patch describes a single file edit proposed for a fix merge request.
type Patch struct {
	FilePath  string         `json:"file_path"          yaml:"file_path"`
	Operation PatchOperation `json:"operation"          yaml:"operation"`
	// Content is the fragment to append/insert, or the full file for create.
	Content string `json:"content" yaml:"content"`
	// Anchor is the line after which Content is inserted on update.
	// When InsertBefore is set, Content goes before the anchor line instead.
	Anchor       string `json:"anchor,omitempty"        yaml:"anchor,omitempty"`
	InsertBefore bool   `json:"insert_before,omitempty" yaml:"insert_before,omitempty"`
	// ReplacePrefix makes an update replace the first line starting with it.
	ReplacePrefix string `json:"replace_prefix,omitempty" yaml:"replace_prefix,omitempty"`
	// ReplaceLine makes an update replace the 1-based line number.
	ReplaceLine   int     `json:"replace_line,omitempty"   yaml:"replace_line,omitempty"`
	CommitMessage string  `json:"commit_message"           yaml:"commit_message"`
	Description   string  `json:"description"              yaml:"description"`
	Confidence    float64 `json:"confidence"               yaml:"confidence"`
	// Manual marks an instructions-only patch that documents the fix.
	Manual bool `json:"manual,omitempty" yaml:"manual,omitempty"`
}

// FixPlan is the planner's decision for one analysed job.
type FixPlan struct {
	Action      PlanAction `json:"action"                 yaml:"action"`
	Patch       *Patch     `json:"patch,omitempty"        yaml:"patch,omitempty"`
	DedupKey    string     `json:"dedup_key,omitempty"    yaml:"dedup_key,omitempty"`
	ExistingFix string     `json:"existing_fix,omitempty" yaml:"existing_fix,omitempty"`
	Reason      string     `json:"reason,omitempty"       yaml:"reason,omitempty"`
}

// HasExistingFix reports whether an unexpired fix MR was reused.
func (p FixPlan) HasExistingFix() bool { return p.ExistingFix != "" }

// MergeRequest is a merge/pull request opened for a fix.
type MergeRequest struct {
	IID          int64     `json:"iid"`
	URL          string    `json:"url"`
	Title        string    `json:"title"`
	SourceBranch string    `json:"source_branch"`
	TargetBranch string    `json:"target_branch"`
	CreatedAt    time.Time `json:"created_at"`
}

// Issue is a tracker issue opened for manual review.
type Issue struct {
	IID   int64  `json:"iid"`
	URL   string `json:"url"`
	Title string `json:"title"`
}
