package notify

import "context"

// Event types emitted by the guardian.
const (
	EventFixMRCreated     = "fix_mr_created"
	EventJobRetried       = "job_retried"
	EventManualReview     = "manual_review"
	EventHighRiskPipeline = "high_risk_pipeline"
	EventProcessingFailed = "processing_failed"
)

// Event is one notification.
type Event struct {
	Type     string
	Title    string
	Body     string
	URL      string // merge request, issue or pipeline link
	Severity string // "critical" | "high" | "medium" | "low" | ""
	Project  string
	Metadata map[string]any
}

// Channel is implemented by each notification provider.
type Channel interface {
	Name() string
	IsConfigured() bool
	Send(ctx context.Context, evt Event) error
}

// Notifier accepts events. *Dispatcher implements it.
type Notifier interface {
	Notify(ctx context.Context, evt Event)
}
