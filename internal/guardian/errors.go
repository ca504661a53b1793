package guardian

import "fmt"

// Remediation steps named in StepError.
const (
	StepTrace        = "trace"
	StepRetry        = "retry"
	StepRead         = "read"
	StepApply        = "apply"
	StepBranch       = "branch"
	StepCommit       = "commit"
	StepMergeRequest = "merge_request"
	StepIssue        = "issue"
)

// StepError is a failed source-control action during remediation.
type StepError struct {
	Step string
	Err  error
}

func (e *StepError) Error() string { return fmt.Sprintf("%s: %v", e.Step, e.Err) }

func (e *StepError) Unwrap() error { return e.Err }

func stepErr(step string, err error) error {
	if err == nil {
		return nil
	}
	return &StepError{Step: step, Err: err}
}
