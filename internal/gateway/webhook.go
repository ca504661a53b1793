package gateway

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/CosmoTheDev/pipeline-guardian/internal/guardian"
)

// Webhook headers.
const (
	gitlabTokenHeader     = "X-Gitlab-Token"
	gitlabEventHeader     = "X-Gitlab-Event"
	githubSignatureHeader = "X-Hub-Signature-256"
	githubEventHeader     = "X-GitHub-Event"
)

var errBadSignature = errors.New("webhook signature mismatch")

// handleGitLabWebhook accepts GitLab "Pipeline Hook" deliveries.
func (gw *Gateway) handleGitLabWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	if err := gw.verifyGitLab(r.Header.Get(gitlabTokenHeader)); err != nil {
		gw.logger.Warn("rejected gitlab webhook", "remote", r.RemoteAddr, "error", err)
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	var hook gitlabPipelineHook
	if err := json.Unmarshal(body, &hook); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload: "+err.Error())
		return
	}
	if hook.ObjectKind != "pipeline" {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ignored",
			"reason": fmt.Sprintf("unsupported event %q", firstNonEmpty(hook.ObjectKind, r.Header.Get(gitlabEventHeader))),
		})
		return
	}
	ev, err := gitlabEvent(hook)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	gw.dispatch(w, r, ev)
}

// handleGitHubWebhook accepts GitHub "workflow_run" deliveries.
func (gw *Gateway) handleGitHubWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(w, r)
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, err.Error())
		return
	}
	if err := gw.verifyGitHub(r.Header.Get(githubSignatureHeader), body); err != nil {
		gw.logger.Warn("rejected github webhook", "remote", r.RemoteAddr, "error", err)
		writeError(w, http.StatusUnauthorized, err.Error())
		return
	}

	switch event := r.Header.Get(githubEventHeader); event {
	case "ping":
		writeJSON(w, http.StatusOK, map[string]string{"status": "pong"})
		return
	case "workflow_run":
	default:
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ignored",
			"reason": fmt.Sprintf("unsupported event %q", event),
		})
		return
	}

	var hook githubWorkflowRunHook
	if err := json.Unmarshal(body, &hook); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON payload: "+err.Error())
		return
	}
	ev, err := githubEvent(hook)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	gw.dispatch(w, r, ev)
}

// dispatch runs the processor with a bounded context and replies with the
// summary.
func (gw *Gateway) dispatch(w http.ResponseWriter, r *http.Request, ev guardian.PipelineEvent) {
	if gw.deps.Provider != "" && ev.Provider != gw.deps.Provider {
		writeError(w, http.StatusUnprocessableEntity,
			fmt.Sprintf("provider %q is not configured (serving %q)", ev.Provider, gw.deps.Provider))
		return
	}
	ctx, cancel := context.WithTimeout(r.Context(), gw.processTimeout())
	defer cancel()

	gw.logger.Info("pipeline event",
		"provider", ev.Provider, "project", ev.ProjectID, "pipeline", ev.PipelineID, "status", ev.Status)
	summary := gw.deps.Processor.HandlePipelineEvent(ctx, ev)
	writeJSON(w, http.StatusOK, summary)
}

func (gw *Gateway) verifyGitLab(token string) error {
	secrets := make([]string, 0, len(gw.cfg.Git.GitLab))
	for _, c := range gw.cfg.Git.GitLab {
		if c.WebhookSecret != "" {
			secrets = append(secrets, c.WebhookSecret)
		}
	}
	if len(secrets) == 0 {
		return nil
	}
	for _, s := range secrets {
		if subtle.ConstantTimeCompare([]byte(token), []byte(s)) == 1 {
			return nil
		}
	}
	return errBadSignature
}

func (gw *Gateway) verifyGitHub(signature string, body []byte) error {
	secrets := make([]string, 0, len(gw.cfg.Git.GitHub))
	for _, c := range gw.cfg.Git.GitHub {
		if c.WebhookSecret != "" {
			secrets = append(secrets, c.WebhookSecret)
		}
	}
	if len(secrets) == 0 {
		return nil
	}
	got, ok := strings.CutPrefix(signature, "sha256=")
	if !ok {
		return errBadSignature
	}
	sig, err := hex.DecodeString(got)
	if err != nil {
		return errBadSignature
	}
	for _, s := range secrets {
		if hmac.Equal(sig, githubMAC(s, body)) {
			return nil
		}
	}
	return errBadSignature
}

func githubMAC(secret string, body []byte) []byte {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return mac.Sum(nil)
}

func gitlabEvent(h gitlabPipelineHook) (guardian.PipelineEvent, error) {
	attrs := h.ObjectAttributes
	if h.Project.ID == 0 || attrs.ID == 0 {
		return guardian.PipelineEvent{}, errors.New("payload is missing project.id or object_attributes.id")
	}
	ev := guardian.PipelineEvent{
		Provider:      "gitlab",
		ProjectID:     strconv.FormatInt(h.Project.ID, 10),
		PipelineID:    attrs.ID,
		Status:        attrs.Status,
		Ref:           attrs.Ref,
		CommitSHA:     attrs.SHA,
		DefaultBranch: h.Project.DefaultBranch,
		WebURL:        attrs.URL,
	}
	if attrs.Duration != nil {
		ev.Duration = time.Duration(*attrs.Duration * float64(time.Second))
	}
	if t, ok := parseHookTime(attrs.CreatedAt); ok {
		ev.CreatedAt = t
	}
	return ev, nil
}

func githubEvent(h githubWorkflowRunHook) (guardian.PipelineEvent, error) {
	run := h.WorkflowRun
	if h.Repository.FullName == "" || run.ID == 0 {
		return guardian.PipelineEvent{}, errors.New("payload is missing repository.full_name or workflow_run.id")
	}
	ev := guardian.PipelineEvent{
		Provider:      "github",
		ProjectID:     h.Repository.FullName,
		PipelineID:    run.ID,
		Status:        githubRunStatus(run.Status, run.Conclusion),
		Ref:           run.HeadBranch,
		CommitSHA:     run.HeadSHA,
		DefaultBranch: h.Repository.DefaultBranch,
		WebURL:        run.HTMLURL,
	}
	started, ok := parseHookTime(firstNonEmpty(run.RunStartedAt, run.CreatedAt))
	if ok {
		ev.CreatedAt = started
		if ended, ok := parseHookTime(run.UpdatedAt); ok && ev.Status != guardian.StatusRunning && ended.After(started) {
			ev.Duration = ended.Sub(started)
		}
	}
	return ev, nil
}

// githubRunStatus folds a workflow run's status and conclusion into the
// pipeline statuses the processor understands.
func githubRunStatus(status, conclusion string) string {
	switch status {
	case "queued", "requested", "waiting", "pending":
		return guardian.StatusPending
	case "in_progress":
		return guardian.StatusRunning
	}
	switch conclusion {
	case "failure", "timed_out", "startup_failure":
		return guardian.StatusFailed
	case "success":
		return guardian.StatusSuccess
	case "":
		return status
	default:
		return conclusion
	}
}
