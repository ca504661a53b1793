package notify

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"time"

	"github.com/CosmoTheDev/pipeline-guardian/internal/config"
)

// SignatureHeader carries "sha256=" plus the hex HMAC of the body.
const SignatureHeader = "X-Guardian-Signature"

// WebhookChannel posts events as JSON to any HTTP endpoint.
type WebhookChannel struct {
	cfg    config.WebhookNotifyConfig
	client *http.Client
	now    func() time.Time
}

func NewWebhook(cfg config.WebhookNotifyConfig) *WebhookChannel {
	return &WebhookChannel{cfg: cfg, client: newHTTPClient(), now: time.Now}
}

func (w *WebhookChannel) Name() string       { return "webhook" }
func (w *WebhookChannel) IsConfigured() bool { return w.cfg.URL != "" }

// webhookPayload is the documented body of a guardian webhook.
type webhookPayload struct {
	Type      string         `json:"type"`
	Title     string         `json:"title"`
	Body      string         `json:"body"`
	Severity  string         `json:"severity,omitempty"`
	Project   string         `json:"project,omitempty"`
	URL       string         `json:"url,omitempty"`
	Metadata  map[string]any `json:"metadata,omitempty"`
	Timestamp string         `json:"ts"`
}

func (w *WebhookChannel) Send(ctx context.Context, evt Event) error {
	payload := webhookPayload{
		Type:      evt.Type,
		Title:     evt.Title,
		Body:      evt.Body,
		Severity:  evt.Severity,
		Project:   evt.Project,
		URL:       evt.URL,
		Metadata:  evt.Metadata,
		Timestamp: w.now().UTC().Format(time.RFC3339),
	}
	var sign func(http.Header, []byte)
	if w.cfg.Secret != "" {
		sign = func(h http.Header, body []byte) { h.Set(SignatureHeader, "sha256="+Sign(w.cfg.Secret, body)) }
	}
	return postJSON(ctx, w.client, "webhook", w.cfg.URL, payload, sign)
}

// Sign returns the hex HMAC-SHA256 of body under secret.
func Sign(secret string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}
